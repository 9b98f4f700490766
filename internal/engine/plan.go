package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"fencecheck/internal/annotation"
	"fencecheck/internal/classify"
	"fencecheck/internal/deps"
	"fencecheck/internal/diag"
	"fencecheck/internal/fragment"
	"fencecheck/internal/result"
	"fencecheck/internal/source"
	"fencecheck/internal/toolchain"
	"fencecheck/internal/trace"
)

// Job is one (fragment, target) compilation.
type Job struct {
	Fragment fragment.CodeFragment
	Context  classify.ExecutionContext
	Deps     *deps.Set
	Target   string
	// Edition overrides the materializer edition when the fence names one.
	Edition string
	// ExpectFailure inverts the outcome for compile_fail examples.
	ExpectFailure bool
	// Warnings are attached to the job's result whatever its outcome.
	Warnings []diag.Diagnostic
}

// Name identifies the job in progress output and traces.
func (j Job) Name() string {
	return j.Fragment.ID() + "@" + j.Target
}

// Plan is the single-threaded output of extraction, classification and
// dependency resolution.
type Plan struct {
	Pages     int
	Fragments int
	Jobs      []Job
	// Settled holds results decided without compiling: snippets, dependency
	// conflicts, contexts with no configured target.
	Settled []result.TestResult
}

// JobNames lists job names in dispatch order.
func (p *Plan) JobNames() []string {
	names := make([]string, len(p.Jobs))
	for i, j := range p.Jobs {
		names[i] = j.Name()
	}
	return names
}

// Plan extracts and classifies every fragment of pages. It never fails:
// problems become settled results or warnings on the fragment's results.
func (e *Engine) Plan(ctx context.Context, pages []source.Page) *Plan {
	ctx, span := trace.StartSpan(ctx, trace.ScopeStage, "plan")
	plan := &Plan{Pages: len(pages)}
	defer func() {
		span.WithExtra("fragments", fmt.Sprint(plan.Fragments)).
			WithExtra("jobs", fmt.Sprint(len(plan.Jobs))).
			End("")
	}()

	ex := fragment.NewExtractor(e.language)
	for _, page := range pages {
		for frag := range ex.Extract(page) {
			plan.Fragments++
			e.planFragment(ctx, plan, frag)
		}
	}
	e.log.Debug("plan ready",
		zap.Int("pages", plan.Pages),
		zap.Int("fragments", plan.Fragments),
		zap.Int("jobs", len(plan.Jobs)),
		zap.Int("settled", len(plan.Settled)))
	return plan
}

func (e *Engine) planFragment(ctx context.Context, plan *Plan, frag fragment.CodeFragment) {
	var warnings []diag.Diagnostic
	warn := func(code diag.Code, msg string) {
		warnings = append(warnings, diag.NewWarning(code, msg).At(frag.SourceFile, frag.Line, 0))
	}

	ann, err := annotation.Parse(frag.RawAnnotation)
	if err != nil {
		// разбор не удался: контекст по умолчанию, предупреждение остаётся на фрагменте
		warn(diag.CodeAnnotation, err.Error())
		ann = annotation.New()
	}
	for _, key := range ann.Unknown() {
		warn(diag.CodeUnknownDirective, fmt.Sprintf("unknown directive %q", key))
	}

	execCtx := e.classifier.Classify(frag, ann)
	trace.Point(ctx, trace.ScopeJob, "classify:"+frag.ID(), execCtx.Kind().String())
	settle := func(r result.TestResult) {
		plan.Settled = append(plan.Settled, r.With(warnings...))
	}

	if !execCtx.Compilable() {
		settle(result.For(frag, execCtx, "").Skip(diag.New(diag.SevInfo, diag.CodeSnippet, execCtx.Detail())))
		return
	}

	explicit, err := deps.ParseDirective(ann.List(annotation.KeyDeps))
	if err != nil {
		warn(diag.CodeAnnotation, err.Error())
	}
	set, err := e.resolver.Resolve(frag, execCtx, explicit...)
	if err != nil {
		var conflict *deps.ConflictError
		if errors.As(err, &conflict) {
			e.log.Debug("dependency conflict", zap.String("fragment", frag.ID()), zap.Error(err))
			settle(result.For(frag, execCtx, "").Fail(result.FailureConflict, 0,
				diag.NewError(diag.CodeDependencyConflict, err.Error()).At(frag.SourceFile, frag.Line, 0)))
			return
		}
		settle(result.For(frag, execCtx, "").Fail(result.FailureInfrastructure, 0,
			diag.NewError(diag.CodeMaterialize, err.Error()).At(frag.SourceFile, frag.Line, 0)))
		return
	}
	for _, name := range e.resolver.Unresolved(frag, explicit...) {
		warn(diag.CodeUnresolvedCrate,
			fmt.Sprintf("crate %q is not in the dependency catalog; add deps=%s@<version> to the fence", name, name))
	}

	targets, err := e.targets.For(execCtx)
	if err != nil {
		var noTarget *toolchain.NoTargetError
		if !errors.As(err, &noTarget) {
			e.log.Warn("target selection failed", zap.String("fragment", frag.ID()), zap.Error(err))
		}
		settle(result.For(frag, execCtx, "").Skip(diag.NewWarning(diag.CodeNoTarget, err.Error()).At(frag.SourceFile, frag.Line, 0)))
		return
	}

	edition := editionOf(ann)
	expectFailure := ann.Has(annotation.KeyCompileFail)
	for _, target := range targets {
		plan.Jobs = append(plan.Jobs, Job{
			Fragment:      frag,
			Context:       execCtx,
			Deps:          set,
			Target:        target,
			Edition:       edition,
			ExpectFailure: expectFailure,
			Warnings:      warnings,
		})
	}
}

// editionOf reads edition=2018 or the rustdoc-style edition2018 flag.
func editionOf(ann annotation.Annotation) string {
	if v, ok := ann.Value(annotation.KeyEdition); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	for _, d := range ann.Directives() {
		if ed, ok := strings.CutPrefix(d.Key, "edition"); ok && len(ed) == 4 {
			return ed
		}
	}
	return ""
}
