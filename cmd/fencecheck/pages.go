package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"fencecheck/internal/source"
)

var pageExtensions = []string{".md", ".markdown", ".mdx"}

func isPageFile(path string) bool {
	return slices.Contains(pageExtensions, strings.ToLower(filepath.Ext(path)))
}

// skipDir reports directories that never hold documentation sources.
func skipDir(name string) bool {
	if len(name) > 1 && strings.HasPrefix(name, ".") {
		return true
	}
	switch name {
	case "target", "node_modules", "vendor", "book":
		return true
	}
	return false
}

// listPageFiles expands files and directories into a sorted, de-duplicated
// list of Markdown files.
func listPageFiles(paths []string) ([]string, error) {
	seen := make(map[string]struct{})
	var files []string
	add := func(p string) {
		p = filepath.Clean(p)
		if _, ok := seen[p]; ok {
			return
		}
		seen[p] = struct{}{}
		files = append(files, p)
	}
	for _, root := range paths {
		info, err := os.Stat(root)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %q: %w", root, err)
		}
		if !info.IsDir() {
			add(root)
			continue
		}
		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != root && skipDir(d.Name()) {
					return filepath.SkipDir
				}
				return nil
			}
			if isPageFile(path) {
				add(path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk %q: %w", root, err)
		}
	}
	slices.Sort(files)
	return files, nil
}

// readPages loads files as pages with paths relative to base.
func readPages(files []string, base string) ([]source.Page, error) {
	pages := make([]source.Page, 0, len(files))
	for _, f := range files {
		content, err := os.ReadFile(f) // #nosec G304 -- paths come from the command line
		if err != nil {
			return nil, fmt.Errorf("failed to read %q: %w", f, err)
		}
		rel, err := source.RelativePath(f, base)
		if err != nil {
			return nil, err
		}
		pages = append(pages, source.NewPage(rel, content))
	}
	return pages, nil
}

// loadPages is listPageFiles followed by readPages.
func loadPages(paths []string, base string) ([]source.Page, error) {
	if len(paths) == 0 {
		paths = []string{"."}
	}
	files, err := listPageFiles(paths)
	if err != nil {
		return nil, err
	}
	return readPages(files, base)
}
