// Package engine wires the validation stages together: it plans jobs from
// in-memory pages, compiles them on a bounded worker pool and aggregates
// the outcomes into a report. It never reads documentation from disk.
package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"fencecheck/internal/cache"
	"fencecheck/internal/classify"
	"fencecheck/internal/deps"
	"fencecheck/internal/diag"
	"fencecheck/internal/materialize"
	"fencecheck/internal/observ"
	"fencecheck/internal/report"
	"fencecheck/internal/result"
	"fencecheck/internal/source"
	"fencecheck/internal/toolchain"
	"fencecheck/internal/trace"
)

// Options configures an Engine. Nil collaborators get defaults.
type Options struct {
	Language     string
	Jobs         int // <= 0 means GOMAXPROCS
	Targets      toolchain.Targets
	Classifier   *classify.Classifier
	Resolver     *deps.Resolver
	Materializer *materialize.Materializer
	Runner       *toolchain.Runner
	Cache        *cache.Cache
	Progress     ProgressSink
	Timer        *observ.Timer
	Logger       *zap.Logger
}

// Engine runs validations. It is safe to call Run repeatedly; each call is
// independent.
type Engine struct {
	language     string
	jobs         int
	targets      toolchain.Targets
	classifier   *classify.Classifier
	resolver     *deps.Resolver
	materializer *materialize.Materializer
	runner       *toolchain.Runner
	cache        *cache.Cache
	progress     ProgressSink
	timer        *observ.Timer
	log          *zap.Logger
}

func New(opts Options) *Engine {
	e := &Engine{
		language:     opts.Language,
		jobs:         opts.Jobs,
		targets:      opts.Targets,
		classifier:   opts.Classifier,
		resolver:     opts.Resolver,
		materializer: opts.Materializer,
		runner:       opts.Runner,
		cache:        opts.Cache,
		progress:     opts.Progress,
		timer:        opts.Timer,
		log:          opts.Logger,
	}
	if e.jobs <= 0 {
		e.jobs = runtime.GOMAXPROCS(0)
	}
	if e.targets == nil {
		e.targets = toolchain.DefaultTargets()
	}
	if e.classifier == nil {
		e.classifier = &classify.Classifier{DefaultTarget: e.targets.FirstFreestanding()}
	}
	if e.resolver == nil {
		e.resolver = deps.NewResolver()
	}
	if e.log == nil {
		e.log = zap.NewNop()
	}
	if e.materializer == nil {
		e.materializer = &materialize.Materializer{Logger: e.log}
	}
	if e.runner == nil {
		e.runner = &toolchain.Runner{Logger: e.log}
	}
	if e.progress == nil {
		e.progress = nopSink{}
	}
	return e
}

// Jobs reports the worker pool size.
func (e *Engine) Jobs() int { return e.jobs }

// Run validates pages and returns the aggregated report. The only error is
// a *RunError; a cancelled ctx still yields a report in which unstarted
// jobs are skipped.
func (e *Engine) Run(ctx context.Context, pages []source.Page) (report.ValidationReport, error) {
	start := time.Now()
	ctx, span := trace.StartSpan(ctx, trace.ScopeRun, "validate")
	defer span.End("")

	phase := e.timer.Begin("plan")
	plan := e.Plan(ctx, pages)
	e.timer.End(phase, fmt.Sprintf("%d fragments, %d jobs", plan.Fragments, len(plan.Jobs)))

	results, err := e.Execute(ctx, plan)
	if err != nil {
		span.Fail(err)
		return report.ValidationReport{}, err
	}

	phase = e.timer.Begin("aggregate")
	rep := report.Aggregate(results)
	rep.RunID = uuid.NewString()
	rep.Targets = e.targets.Names()
	rep = rep.WithDuration(time.Since(start))
	e.timer.End(phase, "")
	e.progress.OnEvent(Event{Stage: StageAggregate, Status: StatusDone, Elapsed: time.Since(start)})

	e.log.Info("validation finished",
		zap.String("run", rep.RunID),
		zap.Int("total", rep.Total),
		zap.Int("passed", rep.Successful),
		zap.Int("failed", rep.Failed),
		zap.Int("skipped", rep.Skipped),
		zap.Duration("elapsed", time.Since(start)))
	return rep, nil
}

// Execute compiles the plan's jobs on a bounded pool and returns every
// result, settled ones included, in completion order.
func (e *Engine) Execute(ctx context.Context, plan *Plan) ([]result.TestResult, error) {
	ctx, span := trace.StartSpan(ctx, trace.ScopeStage, "compile")
	defer span.End("")
	phase := e.timer.Begin("compile")
	defer func() { e.timer.End(phase, fmt.Sprintf("%d jobs on %d workers", len(plan.Jobs), e.jobs)) }()

	root := e.materializer.ScratchRoot()
	if len(plan.Jobs) > 0 {
		if err := os.MkdirAll(root, 0o750); err != nil {
			return nil, &RunError{Op: "create scratch root " + root, Err: err}
		}
	}

	for _, job := range plan.Jobs {
		e.progress.OnEvent(Event{Job: job.Name(), Stage: StagePlan, Status: StatusQueued})
	}

	results := make(chan result.TestResult, e.jobs)
	collected := make(chan []result.TestResult, 1)
	go func() {
		out := make([]result.TestResult, 0, len(plan.Settled)+len(plan.Jobs))
		out = append(out, plan.Settled...)
		for r := range results {
			out = append(out, r)
		}
		collected <- out
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.jobs)
	for _, job := range plan.Jobs {
		if gctx.Err() != nil {
			results <- e.cancelled(job)
			continue
		}
		g.Go(func() error {
			// слот мог освободиться уже после отмены
			if gctx.Err() != nil {
				results <- e.cancelled(job)
				return nil
			}
			r, err := e.runJob(ctx, job)
			if err != nil {
				return err
			}
			results <- r
			return nil
		})
	}
	err := g.Wait()
	close(results)
	out := <-collected
	if err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		e.log.Warn("run cancelled", zap.Error(context.Cause(ctx)))
	}
	return out, nil
}

func (e *Engine) cancelled(job Job) result.TestResult {
	e.progress.OnEvent(Event{Job: job.Name(), Stage: StagePlan, Status: StatusSkipped})
	return result.For(job.Fragment, job.Context, job.Target).
		Skip(diag.NewWarning(diag.CodeCancelled, "run cancelled")).
		With(job.Warnings...)
}

// runJob materializes, compiles and releases one project. Only host
// exhaustion is returned as an error.
func (e *Engine) runJob(ctx context.Context, job Job) (result.TestResult, error) {
	ctx, span := trace.StartSpan(ctx, trace.ScopeJob, "job:"+job.Name())
	start := time.Now()

	r, err := e.compile(ctx, job)
	if err != nil {
		span.End(err.Error())
		e.progress.OnEvent(Event{Job: job.Name(), Stage: StageMaterialize, Status: StatusFailed, Err: err, Elapsed: time.Since(start)})
		return result.TestResult{}, err
	}
	if job.ExpectFailure {
		r = expectFailure(r, job)
	}
	r = r.With(job.Warnings...)

	status := StatusDone
	switch {
	case r.Cached:
		status = StatusCached
	case r.Status == result.StatusFailed:
		status = StatusFailed
	}
	span.End(string(r.Status))
	e.timer.Count(string(status), time.Since(start))
	e.progress.OnEvent(Event{Job: job.Name(), Stage: StageCompile, Status: status, Elapsed: time.Since(start)})
	return r, nil
}

func (e *Engine) compile(ctx context.Context, job Job) (result.TestResult, error) {
	log := e.log.With(zap.String("fragment", job.Fragment.ID()), zap.String("target", job.Target))
	key := cache.KeyFor(job.Fragment, result.ContextOf(job.Context), job.Deps, job.Target, e.commandKey(job))
	if e.cache != nil {
		if r, ok, err := e.cache.Get(key, job.Fragment); err != nil {
			log.Warn("cache read failed", zap.Error(err))
		} else if ok {
			log.Debug("cache hit")
			return r, nil
		}
	}

	e.progress.OnEvent(Event{Job: job.Name(), Stage: StageMaterialize, Status: StatusWorking})
	m := *e.materializer
	if job.Edition != "" {
		m.Edition = job.Edition
	}
	p, err := m.Materialize(job.Fragment, job.Context, job.Deps, job.Target)
	if err != nil {
		return e.materializeFailure(job, err)
	}
	success := false
	defer func() {
		if err := p.Release(success); err != nil {
			log.Warn("failed to remove scratch project", zap.String("dir", p.Dir), zap.Error(err))
		}
	}()

	e.progress.OnEvent(Event{Job: job.Name(), Stage: StageCompile, Status: StatusWorking})
	trace.Point(ctx, trace.ScopeCommand, "exec", p.Dir)
	r := e.runner.Run(ctx, p)
	success = r.Success

	if r.Failure == result.FailureInfrastructure {
		log.Error("toolchain infrastructure failure", zap.String("dir", p.Dir))
	}
	if e.cache != nil && cache.Cacheable(r) {
		if err := e.cache.Put(key, r); err != nil {
			log.Warn("cache write failed", zap.Error(err))
		}
	}
	return r, nil
}

func (e *Engine) materializeFailure(job Job, err error) (result.TestResult, error) {
	base := result.For(job.Fragment, job.Context, job.Target)
	at := func(d diag.Diagnostic) diag.Diagnostic {
		return d.At(job.Fragment.SourceFile, job.Fragment.Line, 0)
	}
	var conflict *deps.ConflictError
	if errors.As(err, &conflict) {
		return base.Fail(result.FailureConflict, 0, at(diag.NewError(diag.CodeDependencyConflict, err.Error()))), nil
	}
	if exhausted(err) {
		e.log.Error("host resources exhausted", zap.String("fragment", job.Fragment.ID()), zap.Error(err))
		return result.TestResult{}, &RunError{Op: "materialize " + job.Name(), Err: err}
	}
	e.log.Error("materialization failed", zap.String("fragment", job.Fragment.ID()), zap.String("target", job.Target), zap.Error(err))
	return base.Fail(result.FailureInfrastructure, 0, at(diag.NewError(diag.CodeMaterialize, err.Error()))), nil
}

// commandKey is what the cache keys on for the toolchain: the command
// template plus the edition, which changes the generated manifest.
func (e *Engine) commandKey(job Job) []string {
	cmd := e.runner.Command
	if len(cmd) == 0 {
		cmd = toolchain.DefaultCommand
	}
	edition := job.Edition
	if edition == "" {
		edition = e.materializer.Edition
	}
	return append(append([]string(nil), cmd...), "edition="+edition)
}

// expectFailure turns a compile failure into a pass for compile_fail
// examples and a clean compile into a failure.
func expectFailure(r result.TestResult, job Job) result.TestResult {
	switch {
	case r.Status == result.StatusFailed && r.Failure == result.FailureCompile:
		ds := make([]diag.Diagnostic, 0, len(r.Diagnostics))
		for _, d := range r.Diagnostics {
			if d.Severity == diag.SevError {
				d.Severity = diag.SevInfo
			}
			ds = append(ds, d)
		}
		r.Diagnostics = ds
		return r.Pass(r.Duration)
	case r.Status == result.StatusPassed:
		return r.Fail(result.FailureCompile, r.Duration,
			diag.NewError(diag.CodeExpectedFailure, "example is marked compile_fail but compiled successfully").
				At(job.Fragment.SourceFile, job.Fragment.Line, 0))
	}
	return r
}
