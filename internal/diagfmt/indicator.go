package diagfmt

import (
	"fmt"
	"html"
	"strings"

	"fencecheck/internal/report"
	"fencecheck/internal/result"
)

var indicatorGlyph = map[result.Status]string{
	result.StatusPassed:  "&#10003;", // ✓
	result.StatusFailed:  "&#10007;", // ✗
	result.StatusSkipped: "&#8856;",  // ⊘
}

// Indicator renders the inline status marker the documentation build puts
// next to an example.
func Indicator(fs report.FragmentStatus) string {
	title := string(fs.Status)
	switch fs.Status {
	case result.StatusPassed:
		title = "compiles on " + strings.Join(fs.Passed, ", ")
	case result.StatusFailed:
		title = "fails on " + strings.Join(fs.Failed, ", ")
		if fs.Message != "" {
			title += ": " + fs.Message
		}
	case result.StatusSkipped:
		if fs.Message != "" {
			title = "not compiled: " + fs.Message
		}
	}
	return fmt.Sprintf(`<span class="fencecheck-status fencecheck-%s" data-fragment="%s" title="%s">%s</span>`,
		fs.Status, html.EscapeString(fs.FragmentID), html.EscapeString(title), indicatorGlyph[fs.Status])
}

// Indicators maps fragment ids to their markers.
func Indicators(rep report.ValidationReport) map[string]string {
	out := make(map[string]string)
	for _, fs := range report.Annotations(rep) {
		out[fs.FragmentID] = Indicator(fs)
	}
	return out
}
