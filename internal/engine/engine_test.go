package engine

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	"fencecheck/internal/cache"
	"fencecheck/internal/classify"
	"fencecheck/internal/diag"
	"fencecheck/internal/materialize"
	"fencecheck/internal/report"
	"fencecheck/internal/result"
	"fencecheck/internal/source"
	"fencecheck/internal/toolchain"
)

const fakeCargo = `#!/bin/sh
src=src/main.rs
[ -f src/lib.rs ] && src=src/lib.rs
if grep -q FAIL_HERE "$src"; then
  line=$(grep -n FAIL_HERE "$src" | head -n 1 | cut -d: -f1)
  echo "$src:$line:9: error[E0425]: cannot find value FAIL_HERE in this scope" >&2
  exit 101
fi
if grep -q SLEEP_HERE "$src"; then
  exec sleep 5
fi
exit 0
`

var testTargets = toolchain.Targets{
	{Name: "x86_64-unknown-linux-gnu", Kind: toolchain.KindHosted},
	{Name: "thumbv7em-none-eabihf", Kind: toolchain.KindFreestanding, Platforms: []string{"nrf52"}},
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) OnEvent(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) count(status Status) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Status == status {
			n++
		}
	}
	return n
}

type fixture struct {
	scratch string
	opts    Options
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake toolchain is a shell script")
	}
	dir := t.TempDir()
	script := filepath.Join(dir, "fake-cargo.sh")
	if err := os.WriteFile(script, []byte(fakeCargo), 0o600); err != nil {
		t.Fatal(err)
	}
	scratch := filepath.Join(dir, "scratch")
	return &fixture{
		scratch: scratch,
		opts: Options{
			Jobs:         2,
			Targets:      testTargets,
			Materializer: &materialize.Materializer{Root: scratch},
			Runner:       &toolchain.Runner{Command: []string{"/bin/sh", script, "{target}"}, Timeout: 5 * time.Second},
		},
	}
}

func (f *fixture) run(t *testing.T, ctx context.Context, pages ...source.Page) report.ValidationReport {
	t.Helper()
	rep, err := New(f.opts).Run(ctx, pages)
	if err != nil {
		t.Fatalf("unexpected run error: %v", err)
	}
	return rep
}

func page(path string, blocks ...string) source.Page {
	var b strings.Builder
	b.WriteString("# Example\n\n")
	for _, block := range blocks {
		b.WriteString(block)
		b.WriteString("\nSome prose.\n\n")
	}
	return source.NewPage(path, []byte(b.String()))
}

func only(t *testing.T, rep report.ValidationReport) result.TestResult {
	t.Helper()
	if len(rep.Results) != 1 {
		t.Fatalf("expected 1 result, got %d: %+v", len(rep.Results), rep.Results)
	}
	return rep.Results[0]
}

func hasCode(ds []diag.Diagnostic, code diag.Code) bool {
	for _, d := range ds {
		if d.Code == code {
			return true
		}
	}
	return false
}

func scratchEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestHostedFragmentPasses(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := newFixture(t)
	rep := f.run(t, context.Background(), page("docs/intro.md", "```rust\nfn main() {\n    println!(\"hi\");\n}\n```"))

	r := only(t, rep)
	if r.Context.Kind != classify.KindHosted {
		t.Errorf("expected hosted context, got %s", r.Context)
	}
	if !r.Success || r.Skipped || r.Target != "x86_64-unknown-linux-gnu" {
		t.Errorf("expected success on the hosted target, got %+v", r)
	}
	if rep.Successful != 1 || rep.Failed != 0 || rep.RunID == "" {
		t.Errorf("unexpected report %+v", rep)
	}
	if left := scratchEntries(t, f.scratch); len(left) != 0 {
		t.Errorf("scratch projects left behind: %v", left)
	}
}

func TestFreestandingFailureHasErrorDiagnostic(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := newFixture(t)
	rep := f.run(t, context.Background(), page("docs/embedded.md", "```rust,no_std\nlet x = FAIL_HERE;\n```"))

	r := only(t, rep)
	if r.Context.Kind != classify.KindFreestanding || r.Target != "thumbv7em-none-eabihf" {
		t.Errorf("expected freestanding on thumbv7em, got %s on %s", r.Context, r.Target)
	}
	if r.Success || r.Failure != result.FailureCompile {
		t.Fatalf("expected compile failure, got %+v", r)
	}
	d, ok := r.FirstError()
	if !ok {
		t.Fatalf("expected an error diagnostic, got %v", r.Diagnostics)
	}
	// fence on line 3, body starts on line 4
	if d.File != "docs/embedded.md" || d.Line != 4 || d.Code != "E0425" {
		t.Errorf("expected error mapped to docs/embedded.md:4, got %s", d)
	}
}

func TestSnippetIsNeverMaterialized(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := newFixture(t)
	rec := &recorder{}
	f.opts.Progress = rec
	rep := f.run(t, context.Background(), page("docs/sketch.md", "```rust,snippet\nlet x = ...;\n```"))

	r := only(t, rep)
	if !r.Skipped || r.Success || r.Target != result.NoTarget {
		t.Errorf("expected skipped snippet, got %+v", r)
	}
	if _, err := os.Stat(f.scratch); !os.IsNotExist(err) {
		t.Errorf("scratch root should not be created for snippets only: %v", err)
	}
	if rec.count(StatusWorking) != 0 {
		t.Errorf("no job should have started")
	}
}

func TestHardwareWithoutTargetIsSkipped(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := newFixture(t)
	rep := f.run(t, context.Background(), page("docs/board.md", "```rust,hardware=stm32f4\nlet p = pac::Peripherals::take();\n```"))

	r := only(t, rep)
	if !r.Skipped || r.Failure != result.FailureNone {
		t.Fatalf("expected skipped result, got %+v", r)
	}
	if !hasCode(r.Diagnostics, diag.CodeNoTarget) {
		t.Errorf("expected explanatory diagnostic, got %v", r.Diagnostics)
	}
	if !strings.Contains(r.Diagnostics[0].Message, `"stm32f4"`) {
		t.Errorf("diagnostic should name the platform: %s", r.Diagnostics[0])
	}
	if rep.Failed != 0 {
		t.Errorf("missing target must not fail the run")
	}
}

func TestSharedDependencyDoesNotConflict(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := newFixture(t)
	body := "```rust\nuse heapless::Vec;\nfn main() { let _v: Vec<u8, 4> = Vec::new(); }\n```"
	rep := f.run(t, context.Background(), page("docs/collections.md", body, body))

	if rep.Total != 2 || rep.Failed != 0 || rep.Counters.Conflicts != 0 {
		t.Errorf("expected two passing fragments, got %+v", rep)
	}
}

func TestConflictingDependencyFailsFragmentOnly(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := newFixture(t)
	rep := f.run(t, context.Background(), page("docs/collections.md",
		"```rust\nuse heapless::consts::U8;\nuse heapless::Vec;\nfn main() {}\n```",
		"```rust\nfn main() {}\n```"))

	if rep.Total != 2 || rep.Failed != 1 || rep.Successful != 1 || rep.Counters.Conflicts != 1 {
		t.Fatalf("expected one conflict and one pass, got %+v", rep)
	}
	r := rep.Results[0]
	if r.Failure != result.FailureConflict || !hasCode(r.Diagnostics, diag.CodeDependencyConflict) {
		t.Errorf("expected dependency conflict, got %+v", r)
	}
}

func TestTimeoutDoesNotStopRun(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := newFixture(t)
	f.opts.Runner.Timeout = 300 * time.Millisecond
	rep := f.run(t, context.Background(), page("docs/slow.md",
		"```rust\nfn main() { SLEEP_HERE }\n```",
		"```rust\nfn main() {}\n```"))

	if rep.Total != 2 || rep.Counters.Timeouts != 1 || rep.Successful != 1 {
		t.Fatalf("expected one timeout and one pass, got %+v", rep)
	}
	r := rep.Results[0]
	if r.Success || r.Failure != result.FailureTimeout {
		t.Fatalf("expected timeout failure, got %+v", r)
	}
	if len(r.Diagnostics) != 1 || r.Diagnostics[0].Message != "timeout" || r.Diagnostics[0].Severity != diag.SevError {
		t.Errorf("expected single timeout diagnostic, got %v", r.Diagnostics)
	}
}

func TestRunIsIdempotent(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := newFixture(t)
	pages := []source.Page{
		page("docs/b.md", "```rust\nfn main() {}\n```", "```rust,snippet\nx\n```"),
		page("docs/a.md", "```rust,no_std\nlet y = FAIL_HERE;\n```", "```rust,hardware=nrf52\nlet p = 1;\n```"),
	}
	first := f.run(t, context.Background(), pages...).Stable()
	f.opts.Jobs = 1
	second := f.run(t, context.Background(), pages...).Stable()
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("reports differ between runs (-first +second):\n%s", diff)
	}
	var order []string
	for _, r := range first.Results {
		order = append(order, r.FragmentID+"@"+r.Target)
	}
	want := []string{"docs_a_1@thumbv7em-none-eabihf", "docs_a_2@thumbv7em-none-eabihf", "docs_b_1@x86_64-unknown-linux-gnu", "docs_b_2@-"}
	if diff := cmp.Diff(want, order); diff != "" {
		t.Errorf("unexpected order (-want +got):\n%s", diff)
	}
}

func TestCancelledRunSkipsUnstartedJobs(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rep := f.run(t, ctx, page("docs/a.md",
		"```rust\nfn main() {}\n```",
		"```rust\nfn main() {}\n```",
		"```rust,snippet\nx\n```"))

	if rep.Total != 3 || rep.Skipped != 3 {
		t.Fatalf("expected everything skipped, got %+v", rep)
	}
	cancelled := 0
	for _, r := range rep.Results {
		if hasCode(r.Diagnostics, diag.CodeCancelled) {
			cancelled++
			if r.Diagnostics[0].Message != "run cancelled" {
				t.Errorf("unexpected message %q", r.Diagnostics[0].Message)
			}
		}
	}
	if cancelled != 2 {
		t.Errorf("expected 2 cancelled jobs, got %d", cancelled)
	}
}

func TestUnusableScratchRootIsRunError(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := newFixture(t)
	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	f.opts.Materializer.Root = filepath.Join(blocker, "scratch")
	_, err := New(f.opts).Run(context.Background(), []source.Page{page("docs/a.md", "```rust\nfn main() {}\n```")})
	if !IsRunError(err) {
		t.Fatalf("expected *RunError, got %v", err)
	}
}

func TestCompileFailInvertsOutcome(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := newFixture(t)
	rep := f.run(t, context.Background(), page("docs/errors.md",
		"```rust,compile_fail\nfn main() { FAIL_HERE }\n```",
		"```rust,compile_fail\nfn main() {}\n```"))

	if rep.Total != 2 {
		t.Fatalf("expected 2 results, got %d", rep.Total)
	}
	expected, unexpected := rep.Results[0], rep.Results[1]
	if !expected.Success {
		t.Errorf("failing compile_fail example should pass: %+v", expected)
	}
	if _, ok := expected.FirstError(); ok {
		t.Errorf("errors of an expected failure should be downgraded: %v", expected.Diagnostics)
	}
	if unexpected.Success || !hasCode(unexpected.Diagnostics, diag.CodeExpectedFailure) {
		t.Errorf("compiling compile_fail example should fail: %+v", unexpected)
	}
}

func TestAnnotationProblemsBecomeWarnings(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := newFixture(t)
	rep := f.run(t, context.Background(), page("docs/a.md",
		"```rust,target=\"oops\nfn main() {}\n```",
		"```rust,frobnicate\nfn main() {}\n```"))

	if rep.Total != 2 || rep.Successful != 2 {
		t.Fatalf("annotation problems must not fail fragments: %+v", rep)
	}
	if !hasCode(rep.Results[0].Diagnostics, diag.CodeAnnotation) || rep.Results[0].Context.Kind != classify.KindHosted {
		t.Errorf("expected parse warning and default context, got %+v", rep.Results[0])
	}
	if !hasCode(rep.Results[1].Diagnostics, diag.CodeUnknownDirective) {
		t.Errorf("expected unknown directive warning, got %v", rep.Results[1].Diagnostics)
	}
	if rep.Counters.ParseWarnings != 1 {
		t.Errorf("expected 1 parse warning, got %d", rep.Counters.ParseWarnings)
	}
}

func TestCacheServesSecondRun(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := newFixture(t)
	c, err := cache.Open(filepath.Join(t.TempDir(), "cache"))
	if err != nil {
		t.Fatal(err)
	}
	f.opts.Cache = c
	p := page("docs/a.md", "```rust\nfn main() {}\n```", "```rust\nfn main() { FAIL_HERE }\n```")

	first := f.run(t, context.Background(), p)
	if first.Counters.Cached != 0 {
		t.Fatalf("cold cache should not hit: %+v", first.Counters)
	}
	second := f.run(t, context.Background(), p)
	if second.Counters.Cached != 2 {
		t.Errorf("expected both results from cache, got %+v", second.Counters)
	}
	if diff := cmp.Diff(first.Stable(), second.Stable()); diff != "" {
		t.Errorf("cached report differs (-first +second):\n%s", diff)
	}
}

func TestProgressEvents(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := newFixture(t)
	rec := &recorder{}
	f.opts.Progress = rec
	f.run(t, context.Background(), page("docs/a.md", "```rust\nfn main() {}\n```", "```rust\nfn main() { FAIL_HERE }\n```"))

	if q := rec.count(StatusQueued); q != 2 {
		t.Errorf("expected 2 queued events, got %d", q)
	}
	if d, fl := rec.count(StatusDone), rec.count(StatusFailed); d != 2 || fl != 1 {
		// one done per passing job plus the aggregate event
		t.Errorf("expected 2 done and 1 failed, got %d and %d", d, fl)
	}
}

func TestPlanDoesNotTouchDisk(t *testing.T) {
	f := newFixture(t)
	plan := New(f.opts).Plan(context.Background(), []source.Page{
		page("docs/a.md", "```rust\nfn main() {}\n```", "```rust,no_std\nlet x = 1;\n```", "```rust,ignore\nx\n```"),
	})
	if plan.Fragments != 3 || len(plan.Jobs) != 2 || len(plan.Settled) != 1 {
		t.Fatalf("unexpected plan: %d fragments, %d jobs, %d settled", plan.Fragments, len(plan.Jobs), len(plan.Settled))
	}
	want := []string{"docs_a_1@x86_64-unknown-linux-gnu", "docs_a_2@thumbv7em-none-eabihf"}
	if diff := cmp.Diff(want, plan.JobNames()); diff != "" {
		t.Errorf("unexpected jobs (-want +got):\n%s", diff)
	}
	if _, err := os.Stat(f.scratch); !os.IsNotExist(err) {
		t.Errorf("planning must not create the scratch root")
	}
}

func TestEditionDirective(t *testing.T) {
	f := newFixture(t)
	plan := New(f.opts).Plan(context.Background(), []source.Page{
		page("docs/a.md", "```rust,edition2018\nfn main() {}\n```", "```rust,edition=2024\nfn main() {}\n```"),
	})
	if plan.Jobs[0].Edition != "2018" || plan.Jobs[1].Edition != "2024" {
		t.Errorf("unexpected editions %q %q", plan.Jobs[0].Edition, plan.Jobs[1].Edition)
	}
}
