// Package fragment pulls fenced code blocks out of documentation pages.
package fragment

import (
	"fmt"

	"fencecheck/internal/source"
)

// CodeFragment is one fenced block exactly as written in the page.
// Values are never mutated after extraction.
type CodeFragment struct {
	SourceFile    string
	// Stem is source.Page.Stem of the page, unique per page path.
	Stem          string
	Line          int // 1-based line of the opening fence
	Index         int // 1-based ordinal among matching blocks of the page
	Lang          string
	RawAnnotation string
	RawText       string
	Unterminated  bool
}

// ID is <page stem>_<index>. It is stable across runs as long as the page
// keeps its path and block order.
func (f CodeFragment) ID() string {
	return fmt.Sprintf("%s_%d", f.Stem, f.Index)
}

// Location returns the page position of the opening fence.
func (f CodeFragment) Location() source.Location {
	return source.Location{File: f.SourceFile, Line: f.Line}
}

// Annotated reports whether the fence carried any directives at all.
func (f CodeFragment) Annotated() bool {
	return f.RawAnnotation != ""
}
