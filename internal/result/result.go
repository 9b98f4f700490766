// Package result holds the per-(fragment, target) outcome record shared by
// the runner, the engine and the aggregator.
package result

import (
	"time"

	"fencecheck/internal/classify"
	"fencecheck/internal/diag"
	"fencecheck/internal/fragment"
)

// Status is the tri-state outcome of one compile attempt.
type Status string

const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Failure classifies failed results so infrastructure faults are never
// confused with real regressions.
type Failure string

const (
	FailureNone           Failure = ""
	FailureCompile        Failure = "compile"
	FailureTimeout        Failure = "timeout"
	FailureConflict       Failure = "dependency_conflict"
	FailureInfrastructure Failure = "infrastructure"
)

// NoTarget marks results that were never tied to a toolchain target.
const NoTarget = "-"

// Context is the serializable view of a classify.ExecutionContext.
type Context struct {
	Kind     classify.Kind `json:"kind" yaml:"kind" msgpack:"kind"`
	Detail   string        `json:"detail,omitempty" yaml:"detail,omitempty" msgpack:"detail"`
	Features []string      `json:"features,omitempty" yaml:"features,omitempty" msgpack:"features"`
}

func ContextOf(ctx classify.ExecutionContext) Context {
	return Context{Kind: ctx.Kind(), Detail: ctx.Detail(), Features: ctx.Features()}
}

func (c Context) String() string {
	if c.Detail == "" {
		return c.Kind.String()
	}
	return c.Kind.String() + "(" + c.Detail + ")"
}

// TestResult is the outcome of one fragment against one target.
type TestResult struct {
	FragmentID  string            `json:"fragment_id" yaml:"fragment_id" msgpack:"fragment_id"`
	SourceFile  string            `json:"source_file" yaml:"source_file" msgpack:"source_file"`
	Line        int               `json:"line" yaml:"line" msgpack:"line"`
	Index       int               `json:"index" yaml:"index" msgpack:"index"`
	Context     Context           `json:"context" yaml:"context" msgpack:"context"`
	Target      string            `json:"target" yaml:"target" msgpack:"target"`
	Status      Status            `json:"status" yaml:"status" msgpack:"status"`
	Success     bool              `json:"success" yaml:"success" msgpack:"success"`
	Skipped     bool              `json:"skipped" yaml:"skipped" msgpack:"skipped"`
	Failure     Failure           `json:"failure,omitempty" yaml:"failure,omitempty" msgpack:"failure"`
	Duration    time.Duration     `json:"-" yaml:"-" msgpack:"duration"`
	DurationMS  int64             `json:"duration_ms" yaml:"duration_ms" msgpack:"-"`
	Cached      bool              `json:"cached,omitempty" yaml:"cached,omitempty" msgpack:"-"`
	Diagnostics []diag.Diagnostic `json:"diagnostics" yaml:"diagnostics" msgpack:"diagnostics"`
}

// For starts a result for frag; the outcome fields are filled by the caller.
func For(frag fragment.CodeFragment, ctx classify.ExecutionContext, target string) TestResult {
	if target == "" {
		target = NoTarget
	}
	return TestResult{
		FragmentID: frag.ID(),
		SourceFile: frag.SourceFile,
		Line:       frag.Line,
		Index:      frag.Index,
		Context:    ContextOf(ctx),
		Target:     target,
	}
}

// Pass marks the result successful.
func (r TestResult) Pass(elapsed time.Duration) TestResult {
	r.Status = StatusPassed
	r.Success = true
	r.Skipped = false
	r.Failure = FailureNone
	r.setDuration(elapsed)
	return r
}

// Fail marks the result failed with the given class.
func (r TestResult) Fail(class Failure, elapsed time.Duration, ds ...diag.Diagnostic) TestResult {
	r.Status = StatusFailed
	r.Success = false
	r.Skipped = false
	r.Failure = class
	r.setDuration(elapsed)
	r.Diagnostics = append(r.Diagnostics, ds...)
	return r
}

// Skip marks the result skipped. Success is always false for skipped results.
func (r TestResult) Skip(ds ...diag.Diagnostic) TestResult {
	r.Status = StatusSkipped
	r.Success = false
	r.Skipped = true
	r.Failure = FailureNone
	r.Diagnostics = append(r.Diagnostics, ds...)
	return r
}

// With appends diagnostics without changing the outcome.
func (r TestResult) With(ds ...diag.Diagnostic) TestResult {
	r.Diagnostics = append(r.Diagnostics, ds...)
	return r
}

func (r *TestResult) setDuration(d time.Duration) {
	r.Duration = d
	r.DurationMS = d.Milliseconds()
}

// FirstError returns the first error-level diagnostic, if any.
func (r TestResult) FirstError() (diag.Diagnostic, bool) {
	for _, d := range r.Diagnostics {
		if d.Severity == diag.SevError {
			return d, true
		}
	}
	return diag.Diagnostic{}, false
}
