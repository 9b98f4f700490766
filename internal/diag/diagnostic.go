package diag

import (
	"fmt"
	"strings"
)

// Code tags where a diagnostic came from. Toolchain codes (E0308, ...)
// are kept verbatim; engine-side codes use the constants below.
type Code string

const (
	CodeNone               Code = ""
	CodeTimeout            Code = "timeout"
	CodeToolchainExit      Code = "toolchain-exit"
	CodeToolchainMissing   Code = "toolchain-missing"
	CodeAnnotation         Code = "annotation"
	CodeUnknownDirective   Code = "unknown-directive"
	CodeDependencyConflict Code = "dependency-conflict"
	CodeUnresolvedCrate    Code = "unresolved-crate"
	CodeMaterialize        Code = "materialize"
	CodeNoTarget           Code = "no-target"
	CodeSnippet            Code = "snippet"
	CodeCancelled          Code = "cancelled"
	CodeOutputTruncated    Code = "output-truncated"
	CodeExpectedFailure    Code = "expected-failure"
)

func (c Code) String() string { return string(c) }

// Diagnostic is a toolchain or engine message normalized to one shape.
// File and Line refer to the scratch project when produced by the toolchain.
type Diagnostic struct {
	Severity Severity `json:"severity" yaml:"severity" msgpack:"severity"`
	Code     Code     `json:"code,omitempty" yaml:"code,omitempty" msgpack:"code"`
	Message  string   `json:"message" yaml:"message" msgpack:"message"`
	File     string   `json:"file,omitempty" yaml:"file,omitempty" msgpack:"file"`
	Line     int      `json:"line,omitempty" yaml:"line,omitempty" msgpack:"line"`
	Column   int      `json:"column,omitempty" yaml:"column,omitempty" msgpack:"column"`
}

func New(sev Severity, code Code, msg string) Diagnostic {
	return Diagnostic{Severity: sev, Code: code, Message: msg}
}

func NewError(code Code, msg string) Diagnostic {
	return New(SevError, code, msg)
}

func NewWarning(code Code, msg string) Diagnostic {
	return New(SevWarning, code, msg)
}

// At attaches a position.
func (d Diagnostic) At(file string, line, col int) Diagnostic {
	d.File = file
	d.Line = line
	d.Column = col
	return d
}

// String renders <file>:<line>:<col>: <SEV> [<code>]: <message>.
func (d Diagnostic) String() string {
	var b strings.Builder
	if d.File != "" {
		b.WriteString(d.File)
		if d.Line > 0 {
			fmt.Fprintf(&b, ":%d", d.Line)
			if d.Column > 0 {
				fmt.Fprintf(&b, ":%d", d.Column)
			}
		}
		b.WriteString(": ")
	}
	b.WriteString(d.Severity.String())
	if d.Code != CodeNone {
		fmt.Fprintf(&b, " [%s]", d.Code)
	}
	b.WriteString(": ")
	b.WriteString(d.Message)
	return b.String()
}
