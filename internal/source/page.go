package source

import (
	"crypto/sha256"
	"fmt"
	"path/filepath"
	"strings"
)

// Page is one documentation page handed to the engine as text.
// The engine never opens Path; it only reports it back in results.
type Page struct {
	Path string
	Text string
}

// NewPage builds a Page from raw bytes, dropping a UTF-8 BOM and
// normalizing CRLF line endings so line numbers match what editors show.
func NewPage(path string, content []byte) Page {
	content, _ = removeBOM(content)
	content, _ = normalizeCRLF(content)
	return Page{Path: normalizePath(path), Text: string(content)}
}

// Stem names the page inside fragment ids: the path without extension,
// directories joined with "_", so src/crypto/README.md and
// src/hal/README.md stay apart.
func (p Page) Stem() string {
	path := filepath.ToSlash(filepath.Clean(filepath.FromSlash(p.Path)))
	path = strings.TrimSuffix(path, filepath.Ext(path))
	parts := make([]string, 0, strings.Count(path, "/")+1)
	for _, seg := range strings.Split(path, "/") {
		switch seg {
		case "", ".", "..":
			continue
		}
		parts = append(parts, strings.ReplaceAll(seg, ":", ""))
	}
	if len(parts) == 0 {
		return "page"
	}
	return strings.Join(parts, "_")
}

// Hash returns the SHA-256 of the page text.
func (p Page) Hash() [32]byte {
	return sha256.Sum256([]byte(p.Text))
}

// Location points at a 1-based line of a page.
type Location struct {
	File string
	Line int
}

func (l Location) String() string {
	if l.Line <= 0 {
		return l.File
	}
	return fmt.Sprintf("%s:%d", l.File, l.Line)
}

// Less orders locations by file, then line.
func (l Location) Less(o Location) bool {
	if l.File != o.File {
		return l.File < o.File
	}
	return l.Line < o.Line
}
