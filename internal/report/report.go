// Package report tallies per-target results into the validation report
// consumed by the documentation build and CI.
package report

import (
	"cmp"
	"slices"
	"time"

	"fencecheck/internal/diag"
	"fencecheck/internal/result"
)

// Counters break failures down for metrics.
type Counters struct {
	Compile        int `json:"compile" yaml:"compile"`
	Timeouts       int `json:"timeouts" yaml:"timeouts"`
	Conflicts      int `json:"conflicts" yaml:"conflicts"`
	Infrastructure int `json:"infrastructure" yaml:"infrastructure"`
	ParseWarnings  int `json:"parse_warnings" yaml:"parse_warnings"` // fragments, not targets
	Cached         int `json:"cached" yaml:"cached"`
}

// ValidationReport is derived from the documentation on every run.
type ValidationReport struct {
	RunID      string              `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	Targets    []string            `json:"targets,omitempty" yaml:"targets,omitempty"`
	Total      int                 `json:"total" yaml:"total"`
	Successful int                 `json:"successful" yaml:"successful"`
	Skipped    int                 `json:"skipped" yaml:"skipped"`
	Failed     int                 `json:"failed" yaml:"failed"`
	Counters   Counters            `json:"counters" yaml:"counters"`
	DurationMS int64               `json:"duration_ms" yaml:"duration_ms"`
	Results    []result.TestResult `json:"results" yaml:"results"`
}

// Aggregate sorts and tallies results. The input slice is not modified.
func Aggregate(results []result.TestResult) ValidationReport {
	sorted := slices.Clone(results)
	slices.SortStableFunc(sorted, compareResults)

	rep := ValidationReport{Total: len(sorted), Results: sorted}
	if rep.Results == nil {
		rep.Results = []result.TestResult{}
	}
	warned := make(map[fragmentKey]bool)
	for _, r := range sorted {
		switch r.Status {
		case result.StatusPassed:
			rep.Successful++
		case result.StatusSkipped:
			rep.Skipped++
		default:
			rep.Failed++
		}
		switch r.Failure {
		case result.FailureCompile:
			rep.Counters.Compile++
		case result.FailureTimeout:
			rep.Counters.Timeouts++
		case result.FailureConflict:
			rep.Counters.Conflicts++
		case result.FailureInfrastructure:
			rep.Counters.Infrastructure++
		}
		if r.Cached {
			rep.Counters.Cached++
		}
		if !warned[keyOf(r)] && slices.ContainsFunc(r.Diagnostics, isAnnotationWarning) {
			warned[keyOf(r)] = true
			rep.Counters.ParseWarnings++
		}
	}
	return rep
}

// fragmentKey identifies a fragment across its per-target results.
type fragmentKey struct {
	file string
	id   string
}

func keyOf(r result.TestResult) fragmentKey {
	return fragmentKey{r.SourceFile, r.FragmentID}
}

func isAnnotationWarning(d diag.Diagnostic) bool {
	return d.Code == diag.CodeAnnotation
}

// compareResults orders by page, line, fragment index, then target.
func compareResults(a, b result.TestResult) int {
	return cmp.Or(
		cmp.Compare(a.SourceFile, b.SourceFile),
		cmp.Compare(a.Line, b.Line),
		cmp.Compare(a.Index, b.Index),
		cmp.Compare(a.Target, b.Target),
	)
}

// WithDuration records the wall-clock time of the run.
func (r ValidationReport) WithDuration(d time.Duration) ValidationReport {
	r.DurationMS = d.Milliseconds()
	return r
}

// Stable zeroes everything that legitimately differs between two runs over
// the same documentation, so reports can be diffed byte for byte.
func (r ValidationReport) Stable() ValidationReport {
	r.RunID = ""
	r.DurationMS = 0
	r.Counters.Cached = 0
	r.Results = slices.Clone(r.Results)
	for i := range r.Results {
		r.Results[i].Duration = 0
		r.Results[i].DurationMS = 0
		r.Results[i].Cached = false
	}
	return r
}

// Policy is the CI gating configuration.
type Policy struct {
	FailOnSkip    bool
	SkipThreshold int
}

// ExitCode is 1 when anything failed, or when skips exceed the threshold
// and the policy treats that as failure.
func (r ValidationReport) ExitCode(p Policy) int {
	if r.Failed > 0 {
		return 1
	}
	if p.FailOnSkip && r.Skipped > p.SkipThreshold {
		return 1
	}
	return 0
}

// Passed is the inverse of a non-zero ExitCode.
func (r ValidationReport) Passed(p Policy) bool {
	return r.ExitCode(p) == 0
}
