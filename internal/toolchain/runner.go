// Package toolchain runs the external compiler against materialized
// projects and normalizes what it prints.
package toolchain

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"fencecheck/internal/diag"
	"fencecheck/internal/materialize"
	"fencecheck/internal/result"
	"fencecheck/internal/trace"
)

const (
	DefaultTimeout        = 30 * time.Second
	DefaultMaxOutputBytes = 1 << 20
	// DefaultMaxDiagnostics caps diagnostics kept per compile.
	DefaultMaxDiagnostics = 100
	// how long to wait for output pipes after the process is gone
	waitDelay = 2 * time.Second
)

// DefaultCommand type-checks the project for one target.
var DefaultCommand = []string{"cargo", "check", "--quiet", "--message-format=short", "--target", "{target}"}

// Runner invokes the toolchain once per project.
type Runner struct {
	// Command is a template; {target}, {dir} and {manifest} are substituted.
	Command        []string
	Timeout        time.Duration
	MaxOutputBytes int64
	MaxDiagnostics int
	// Env is appended to the inherited environment.
	Env    []string
	Logger *zap.Logger
}

func (r *Runner) timeout() time.Duration {
	if r.Timeout <= 0 {
		return DefaultTimeout
	}
	return r.Timeout
}

func (r *Runner) logger() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}

// Expand substitutes the template placeholders.
func (r *Runner) Expand(p *materialize.Project) []string {
	tmpl := r.Command
	if len(tmpl) == 0 {
		tmpl = DefaultCommand
	}
	repl := strings.NewReplacer("{target}", p.Target, "{dir}", p.Dir, "{manifest}", p.ManifestPath)
	out := make([]string, len(tmpl))
	for i, a := range tmpl {
		out[i] = repl.Replace(a)
	}
	return out
}

// Run compiles p for p.Target and returns the outcome. It never returns an
// error: timeouts, compile failures and a missing toolchain are all results.
//
// Cancelling ctx does not interrupt the compile; only the per-compile
// timeout does.
func (r *Runner) Run(ctx context.Context, p *materialize.Project) result.TestResult {
	base := result.For(p.Fragment, p.Context, p.Target)
	argv := r.Expand(p)
	log := r.logger().With(zap.String("fragment", base.FragmentID), zap.String("target", p.Target))

	timeout := r.timeout()
	execCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	// #nosec G204 -- the command template comes from the user's configuration
	cmd := exec.CommandContext(execCtx, argv[0], argv[1:]...)
	cmd.Dir = p.Dir
	cmd.Env = append(os.Environ(), r.Env...)
	cmd.WaitDelay = waitDelay
	configureProcess(cmd)

	maxOut := r.MaxOutputBytes
	if maxOut <= 0 {
		maxOut = DefaultMaxOutputBytes
	}
	var stdoutBuf, stderrBuf bytes.Buffer
	stdout := &limitedWriter{w: &stdoutBuf, max: maxOut}
	stderr := &limitedWriter{w: &stderrBuf, max: maxOut}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	log.Debug("compile start", zap.Strings("argv", argv), zap.String("dir", p.Dir))
	_, span := trace.StartSpan(ctx, trace.ScopeCommand, "exec:"+filepath.Base(argv[0]))
	span.WithExtra("dir", p.Dir)
	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)
	span.Fail(err).End(exitDetail(cmd))

	if errors.Is(execCtx.Err(), context.DeadlineExceeded) {
		log.Warn("compile timed out", zap.Duration("timeout", timeout))
		return base.Fail(result.FailureTimeout, elapsed, diag.NewError(diag.CodeTimeout, "timeout"))
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil, errors.Is(err, exec.ErrWaitDelay) && exitedZero(cmd):
	case errors.As(err, &exitErr):
	default:
		log.Error("toolchain unavailable", zap.String("command", argv[0]), zap.Error(err))
		msg := fmt.Sprintf("toolchain %q could not be started: %v", argv[0], err)
		return base.Fail(result.FailureInfrastructure, elapsed, diag.NewError(diag.CodeToolchainMissing, msg))
	}

	bag := r.collect(r.mapDiagnostics(p, ParseDiagnostics(stderrBuf.String()+"\n"+stdoutBuf.String())))
	ds := bag.Items()
	if stdout.truncated || stderr.truncated {
		ds = append(ds, diag.NewWarning(diag.CodeOutputTruncated,
			fmt.Sprintf("toolchain output truncated, %d bytes discarded", stdout.discarded+stderr.discarded)))
	}
	if n := bag.Dropped(); n > 0 {
		ds = append(ds, diag.New(diag.SevInfo, diag.CodeOutputTruncated, fmt.Sprintf("%d more diagnostics not shown", n)))
	}

	if exitErr != nil {
		if !bag.HasErrors() {
			ds = append(ds, diag.NewError(diag.CodeToolchainExit,
				fmt.Sprintf("toolchain exited with status %d", exitErr.ExitCode())))
		}
		log.Debug("compile failed", zap.Int("exit", exitErr.ExitCode()), zap.Int("diagnostics", len(ds)), zap.Duration("elapsed", elapsed))
		return base.Fail(result.FailureCompile, elapsed, ds...)
	}
	log.Debug("compile ok", zap.Duration("elapsed", elapsed))
	return base.Pass(elapsed).With(ds...)
}

// mapDiagnostics rewrites positions in the generated crate root to page
// positions; scaffold lines map to the fence line.
func (r *Runner) mapDiagnostics(p *materialize.Project, ds []diag.Diagnostic) []diag.Diagnostic {
	for i, d := range ds {
		switch {
		case d.File == "":
		case p.IsEntryFile(d.File):
			line, ok := p.DocLine(d.Line)
			if !ok {
				line, d.Column = p.Fragment.Line, 0
			}
			ds[i] = d.At(p.Fragment.SourceFile, line, d.Column)
		case filepath.IsAbs(d.File):
			if rel, err := filepath.Rel(p.Dir, d.File); err == nil && !strings.HasPrefix(rel, "..") {
				ds[i].File = filepath.ToSlash(rel)
			}
		}
	}
	return ds
}

// collect drops repeated diagnostics (cargo reports some once per crate
// target) and keeps at most MaxDiagnostics in toolchain order.
func (r *Runner) collect(ds []diag.Diagnostic) *diag.Bag {
	all := diag.NewBag(0)
	for _, d := range ds {
		all.Add(d)
	}
	all.Dedup()
	limit := r.MaxDiagnostics
	if limit <= 0 {
		limit = DefaultMaxDiagnostics
	}
	bag := diag.NewBag(limit)
	for _, d := range all.Items() {
		bag.Add(d)
	}
	return bag
}

func exitDetail(cmd *exec.Cmd) string {
	if cmd.ProcessState == nil {
		return "not started"
	}
	return cmd.ProcessState.String()
}

func exitedZero(cmd *exec.Cmd) bool {
	return cmd.ProcessState != nil && cmd.ProcessState.ExitCode() == 0
}

// limitedWriter keeps the first max bytes and counts the rest.
type limitedWriter struct {
	w         io.Writer
	max       int64
	written   int64
	truncated bool
	discarded int64
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	if lw.written >= lw.max {
		lw.truncated = true
		lw.discarded += int64(n)
		return n, nil
	}
	remaining := lw.max - lw.written
	if int64(n) > remaining {
		lw.truncated = true
		lw.discarded += int64(n) - remaining
		written, err := lw.w.Write(p[:remaining])
		lw.written += int64(written)
		// report the full length so exec does not fail with a short write
		return n, err
	}
	written, err := lw.w.Write(p)
	lw.written += int64(written)
	return written, err
}
