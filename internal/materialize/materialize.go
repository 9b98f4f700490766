// Package materialize turns a classified fragment into a throwaway Cargo
// project on disk.
package materialize

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"fencecheck/internal/classify"
	"fencecheck/internal/deps"
	"fencecheck/internal/fragment"
)

// DefaultEdition is used when the materializer has none configured.
const DefaultEdition = "2021"

// ErrNotMaterialized is returned for snippets; nothing is written.
var ErrNotMaterialized = errors.New("snippet fragments are not materialized")

// Error is an infrastructure fault while creating a project.
type Error struct {
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("materialize: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("materialize: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Materializer writes projects under Root.
type Materializer struct {
	Root          string
	KeepOnFailure bool
	Edition       string
	Logger        *zap.Logger
}

// Project is one scratch crate for a (fragment, target) pair.
type Project struct {
	Dir          string
	ManifestPath string
	EntryPath    string
	Manifest     Manifest
	Entry        Entry
	Target       string
	Fragment     fragment.CodeFragment
	Context      classify.ExecutionContext
	// BodyLine is the page line of the first body line.
	BodyLine int

	keepOnFailure bool
	log           *zap.Logger
	released      bool
}

// Materialize creates the project directory. Snippets return
// ErrNotMaterialized; dependency conflicts with the context baseline return
// *deps.ConflictError; filesystem failures return *Error with nothing left
// behind.
func (m *Materializer) Materialize(frag fragment.CodeFragment, ctx classify.ExecutionContext, set *deps.Set, target string) (*Project, error) {
	if !ctx.Compilable() {
		return nil, ErrNotMaterialized
	}
	merged, err := deps.NewSet(deps.Baseline(ctx)...)
	if err != nil {
		return nil, err
	}
	if err := merged.Merge(set); err != nil {
		return nil, err
	}

	edition := m.Edition
	if edition == "" {
		edition = DefaultEdition
	}
	manifest := NewManifest(CrateName(frag.ID()), edition, ctx, merged)
	manifestBytes, err := manifest.Encode()
	if err != nil {
		return nil, &Error{Op: "encode manifest", Err: err}
	}
	entry := Wrap(frag.RawText, ctx)

	root := m.ScratchRoot()
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, &Error{Op: "create scratch root", Path: root, Err: err}
	}
	dir, err := os.MkdirTemp(root, scratchPattern(frag.ID(), target))
	if err != nil {
		return nil, &Error{Op: "create scratch dir", Path: root, Err: err}
	}

	p := &Project{
		Dir:           dir,
		ManifestPath:  filepath.Join(dir, "Cargo.toml"),
		EntryPath:     filepath.Join(dir, filepath.FromSlash(entry.Kind.Path())),
		Manifest:      manifest,
		Entry:         entry,
		Target:        target,
		Fragment:      frag,
		Context:       ctx,
		BodyLine:      frag.Line + 1,
		keepOnFailure: m.KeepOnFailure,
		log:           m.logger(),
	}
	if err := p.write(manifestBytes); err != nil {
		if rmErr := os.RemoveAll(dir); rmErr != nil {
			p.log.Warn("failed to remove partial project", zap.String("dir", dir), zap.Error(rmErr))
		}
		return nil, err
	}
	p.log.Debug("project materialized",
		zap.String("fragment", frag.ID()),
		zap.String("target", target),
		zap.String("dir", dir),
		zap.Stringer("entry", entry.Kind),
		zap.Int("deps", merged.Len()))
	return p, nil
}

// ScratchRoot is Root, or <tmp>/fencecheck when unset.
func (m *Materializer) ScratchRoot() string {
	if m.Root == "" {
		return filepath.Join(os.TempDir(), "fencecheck")
	}
	return m.Root
}

func (m *Materializer) logger() *zap.Logger {
	if m.Logger == nil {
		return zap.NewNop()
	}
	return m.Logger
}

func (p *Project) write(manifest []byte) error {
	if err := os.WriteFile(p.ManifestPath, manifest, 0o600); err != nil {
		return &Error{Op: "write manifest", Path: p.ManifestPath, Err: err}
	}
	if err := os.MkdirAll(filepath.Dir(p.EntryPath), 0o750); err != nil {
		return &Error{Op: "create src dir", Path: filepath.Dir(p.EntryPath), Err: err}
	}
	if err := os.WriteFile(p.EntryPath, []byte(p.Entry.Code), 0o600); err != nil {
		return &Error{Op: "write entry", Path: p.EntryPath, Err: err}
	}
	return nil
}

// Release removes the scratch directory unless the compile failed and
// keep-on-failure is set. Safe to call more than once.
func (p *Project) Release(success bool) error {
	if p == nil || p.released {
		return nil
	}
	p.released = true
	if !success && p.keepOnFailure {
		p.log.Info("keeping failed project", zap.String("fragment", p.Fragment.ID()), zap.String("dir", p.Dir))
		return nil
	}
	if err := os.RemoveAll(p.Dir); err != nil {
		return &Error{Op: "remove scratch dir", Path: p.Dir, Err: err}
	}
	return nil
}

// DocLine maps a line in the generated crate root back to the page.
func (p *Project) DocLine(entryLine int) (int, bool) {
	rel := entryLine - p.Entry.Offset
	if rel < 1 || rel > p.Entry.Lines {
		return 0, false
	}
	return p.BodyLine + rel - 1, true
}

// IsEntryFile reports whether a toolchain-reported path names the crate root.
func (p *Project) IsEntryFile(path string) bool {
	path = filepath.ToSlash(path)
	rel := p.Entry.Kind.Path()
	return path == rel || strings.HasSuffix(path, "/"+rel)
}

func scratchPattern(id, target string) string {
	return CrateName(id) + "-" + CrateName(target) + "-*"
}
