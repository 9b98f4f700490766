// Package trace records spans for runs, pipeline stages and compile jobs so
// slow or hanging validations can be diagnosed after the fact.
//
// Enable tracing via command-line flags:
//
//	fencecheck check --trace=- --trace-level=detail docs/
//
// Implementations:
//
//   - Nop: zero-overhead tracer when disabled
//   - StreamTracer: immediate write to a file or stderr
//   - RingTracer: circular buffer for crash dumps
//   - MultiTracer: fans out to several tracers
//
// Levels: off, error (ring only), phase (run and stage spans), detail (plus
// per-job spans), debug (plus toolchain commands).
//
// Tracers travel through context:
//
//	ctx = trace.WithTracer(ctx, tracer)
//	span := trace.Begin(trace.FromContext(ctx), trace.ScopeStage, "plan", 0)
//	defer span.End("")
package trace
