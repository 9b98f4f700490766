package report

import (
	"slices"

	"fencecheck/internal/result"
)

// FragmentStatus is what the documentation build renders next to one example.
type FragmentStatus struct {
	FragmentID string         `json:"fragment_id" yaml:"fragment_id"`
	SourceFile string         `json:"source_file" yaml:"source_file"`
	Line       int            `json:"line" yaml:"line"`
	Context    result.Context `json:"context" yaml:"context"`
	Status     result.Status  `json:"status" yaml:"status"`
	Passed     []string       `json:"passed,omitempty" yaml:"passed,omitempty"`
	Failed     []string       `json:"failed,omitempty" yaml:"failed,omitempty"`
	// Message is the first error, or the skip reason.
	Message string `json:"message,omitempty" yaml:"message,omitempty"`
}

// Annotations folds per-target results into one status per fragment, in
// report order. A fragment fails if any target failed, passes if some
// target passed and none failed, and is skipped otherwise. Results fold
// by page and fragment, never by id alone.
func Annotations(rep ValidationReport) []FragmentStatus {
	var out []FragmentStatus
	index := make(map[fragmentKey]int)
	for _, r := range rep.Results {
		k := keyOf(r)
		i, ok := index[k]
		if !ok {
			out = append(out, FragmentStatus{
				FragmentID: r.FragmentID,
				SourceFile: r.SourceFile,
				Line:       r.Line,
				Context:    r.Context,
				Status:     result.StatusSkipped,
			})
			i = len(out) - 1
			index[k] = i
		}
		fs := &out[i]
		switch r.Status {
		case result.StatusPassed:
			fs.Passed = append(fs.Passed, r.Target)
			if fs.Status == result.StatusSkipped {
				fs.Status = result.StatusPassed
			}
		case result.StatusFailed:
			fs.Failed = append(fs.Failed, r.Target)
			if fs.Status != result.StatusFailed {
				fs.Message = ""
			}
			fs.Status = result.StatusFailed
			if fs.Message == "" {
				if d, ok := r.FirstError(); ok {
					fs.Message = d.Message
				}
			}
		case result.StatusSkipped:
			if fs.Status == result.StatusSkipped && fs.Message == "" && len(r.Diagnostics) > 0 {
				fs.Message = r.Diagnostics[0].Message
			}
		}
	}
	for i := range out {
		slices.Sort(out[i].Passed)
		slices.Sort(out[i].Failed)
	}
	return out
}
