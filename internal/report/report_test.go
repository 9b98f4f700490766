package report

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"fencecheck/internal/classify"
	"fencecheck/internal/diag"
	"fencecheck/internal/fragment"
	"fencecheck/internal/result"
	"fencecheck/internal/source"
)

func res(file string, line, index int, target string) result.TestResult {
	frag := fragment.CodeFragment{SourceFile: file, Stem: "p", Line: line, Index: index}
	return result.For(frag, classify.Hosted{}, target)
}

func TestAggregateOrderAndCounts(t *testing.T) {
	in := []result.TestResult{
		res("b.md", 3, 1, "x86").Pass(time.Millisecond),
		res("a.md", 20, 2, "thumb").Fail(result.FailureTimeout, time.Second, diag.NewError(diag.CodeTimeout, "timeout")),
		res("a.md", 20, 2, "arm").Fail(result.FailureCompile, time.Second, diag.NewError("E0308", "mismatched types")),
		res("a.md", 5, 1, "").Skip(diag.New(diag.SevInfo, diag.CodeSnippet, "marked as snippet")),
		res("a.md", 20, 2, "x86").Fail(result.FailureConflict, 0, diag.NewError(diag.CodeDependencyConflict, "conflict")),
	}
	rep := Aggregate(in)

	type key struct {
		File   string
		Line   int
		Target string
	}
	var got []key
	for _, r := range rep.Results {
		got = append(got, key{r.SourceFile, r.Line, r.Target})
	}
	want := []key{
		{"a.md", 5, "-"},
		{"a.md", 20, "arm"},
		{"a.md", 20, "thumb"},
		{"a.md", 20, "x86"},
		{"b.md", 3, "x86"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
	if rep.Total != 5 || rep.Successful != 1 || rep.Skipped != 1 || rep.Failed != 3 {
		t.Errorf("unexpected tallies: %+v", rep)
	}
	wantCounters := Counters{Compile: 1, Timeouts: 1, Conflicts: 1}
	if diff := cmp.Diff(wantCounters, rep.Counters); diff != "" {
		t.Errorf("counters mismatch (-want +got):\n%s", diff)
	}
	if in[0].SourceFile != "b.md" {
		t.Error("Aggregate must not reorder its input")
	}
}

func TestAggregateIsOrderIndependent(t *testing.T) {
	a := res("a.md", 1, 1, "x").Pass(0)
	b := res("a.md", 9, 2, "x").Skip()
	c := res("c.md", 2, 1, "y").Fail(result.FailureCompile, 0)
	one := Aggregate([]result.TestResult{a, b, c})
	two := Aggregate([]result.TestResult{c, a, b})
	if diff := cmp.Diff(one, two); diff != "" {
		t.Errorf("aggregate depends on publication order (-one +two):\n%s", diff)
	}
}

// An annotation warning is copied onto every target of its fragment but
// counts once.
func TestAggregateParseWarningsPerFragment(t *testing.T) {
	warn := diag.NewWarning(diag.CodeAnnotation, `unknown directive "mystery"`)
	rep := Aggregate([]result.TestResult{
		res("a.md", 4, 1, "x86").Pass(0).With(warn),
		res("a.md", 4, 1, "thumb").Pass(0).With(warn),
		res("a.md", 4, 1, "arm").Fail(result.FailureCompile, 0).With(warn, warn),
		res("b.md", 4, 1, "x86").Pass(0).With(warn),
		res("b.md", 9, 2, "x86").Pass(0),
	})
	if rep.Counters.ParseWarnings != 2 {
		t.Errorf("expected 2 fragments with parse warnings, got %d", rep.Counters.ParseWarnings)
	}
}

func TestAggregateEmpty(t *testing.T) {
	rep := Aggregate(nil)
	b, err := json.Marshal(rep)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"total":0,"successful":0,"skipped":0,"failed":0,"counters":{"compile":0,"timeouts":0,"conflicts":0,"infrastructure":0,"parse_warnings":0,"cached":0},"duration_ms":0,"results":[]}`
	if string(b) != want {
		t.Errorf("expected %s, got %s", want, b)
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name   string
		rep    ValidationReport
		policy Policy
		want   int
	}{
		{"clean", ValidationReport{Total: 2, Successful: 2}, Policy{}, 0},
		{"failed", ValidationReport{Failed: 1}, Policy{}, 1},
		{"skips tolerated", ValidationReport{Skipped: 4}, Policy{}, 0},
		{"skips under threshold", ValidationReport{Skipped: 2}, Policy{FailOnSkip: true, SkipThreshold: 2}, 0},
		{"skips over threshold", ValidationReport{Skipped: 3}, Policy{FailOnSkip: true, SkipThreshold: 2}, 1},
	}
	for _, tt := range tests {
		if got := tt.rep.ExitCode(tt.policy); got != tt.want {
			t.Errorf("%s: expected %d, got %d", tt.name, tt.want, got)
		}
	}
}

func TestStable(t *testing.T) {
	rep := Aggregate([]result.TestResult{res("a.md", 1, 1, "x").Pass(3 * time.Second)})
	rep.RunID = "abc"
	rep = rep.WithDuration(time.Minute)
	s := rep.Stable()
	if s.RunID != "" || s.DurationMS != 0 || s.Results[0].DurationMS != 0 {
		t.Errorf("expected run-specific fields cleared: %+v", s)
	}
	if rep.Results[0].DurationMS != 3000 {
		t.Error("Stable must not modify the receiver's results")
	}
}

func TestAnnotations(t *testing.T) {
	rep := Aggregate([]result.TestResult{
		res("a.md", 1, 1, "x86").Pass(0),
		res("a.md", 1, 1, "thumb").Fail(result.FailureCompile, 0, diag.NewError("E0425", "cannot find value")),
		res("a.md", 8, 2, "x86").Pass(0),
		res("a.md", 12, 3, "").Skip(diag.New(diag.SevInfo, diag.CodeSnippet, "marked as snippet")),
	})
	got := Annotations(rep)
	want := []FragmentStatus{
		{FragmentID: "p_1", SourceFile: "a.md", Line: 1, Context: result.Context{Kind: classify.KindHosted}, Status: result.StatusFailed, Passed: []string{"x86"}, Failed: []string{"thumb"}, Message: "cannot find value"},
		{FragmentID: "p_2", SourceFile: "a.md", Line: 8, Context: result.Context{Kind: classify.KindHosted}, Status: result.StatusPassed, Passed: []string{"x86"}},
		{FragmentID: "p_3", SourceFile: "a.md", Line: 12, Context: result.Context{Kind: classify.KindHosted}, Status: result.StatusSkipped, Message: "marked as snippet"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("annotations mismatch (-want +got):\n%s", diff)
	}
}

func TestAnnotationsKeepSameNamedPagesApart(t *testing.T) {
	ex := fragment.NewExtractor("rust")
	var results []result.TestResult
	for _, p := range []struct {
		path string
		fail bool
	}{
		{"src/crypto/README.md", false},
		{"src/hal/README.md", true},
	} {
		frags := ex.All(source.NewPage(p.path, []byte("```rust\nfn main() {}\n```\n")))
		if len(frags) != 1 {
			t.Fatalf("%s: expected one fragment, got %d", p.path, len(frags))
		}
		r := result.For(frags[0], classify.Hosted{}, "host")
		if p.fail {
			r = r.Fail(result.FailureCompile, 0, diag.NewError("E0425", "cannot find value"))
		} else {
			r = r.Pass(0)
		}
		results = append(results, r)
	}

	got := Annotations(Aggregate(results))
	if len(got) != 2 {
		t.Fatalf("expected 2 fragment statuses, got %d: %+v", len(got), got)
	}
	want := map[string]result.Status{
		"src_crypto_README_1": result.StatusPassed,
		"src_hal_README_1":    result.StatusFailed,
	}
	for _, fs := range got {
		if want[fs.FragmentID] != fs.Status {
			t.Errorf("expected %s to be %s, got %s (%s)", fs.FragmentID, want[fs.FragmentID], fs.Status, fs.SourceFile)
		}
	}
	if got[0].SourceFile != "src/crypto/README.md" || len(got[0].Failed) != 0 {
		t.Errorf("passing page picked up the other page's result: %+v", got[0])
	}
}

func TestAnnotationsFoldByPage(t *testing.T) {
	// ids that collide across pages still fold per page
	rep := Aggregate([]result.TestResult{
		res("a.md", 1, 1, "x86").Pass(0),
		res("b.md", 1, 1, "x86").Fail(result.FailureCompile, 0, diag.NewError("E0425", "cannot find value")),
	})
	got := Annotations(rep)
	if len(got) != 2 || got[0].Status != result.StatusPassed || got[1].Status != result.StatusFailed {
		t.Errorf("unexpected annotations %+v", got)
	}
}
