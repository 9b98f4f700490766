package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"fencecheck/internal/diagfmt"
	"fencecheck/internal/engine"
	"fencecheck/internal/observ"
	"fencecheck/internal/report"
	"fencecheck/internal/source"
)

var checkCmd = &cobra.Command{
	Use:   "check [flags] [path...]",
	Short: "Compile every code example found in the given pages or directories",
	Long: `Extract fenced code examples from Markdown files, compile each against the
configured targets and print a report. Exits 1 when an example fails (or too
many are skipped with --fail-on-skip) and 2 when the run itself could not
complete.`,
	RunE: runCheck,
}

func init() {
	addRunFlags(checkCmd)
	checkCmd.Flags().String("ui", "auto", "progress UI mode (auto|on|off)")
}

func runCheck(cmd *cobra.Command, args []string) error {
	rf, err := readRunFlags(cmd)
	if err != nil {
		return err
	}
	uiValue, err := cmd.Flags().GetString("ui")
	if err != nil {
		return fmt.Errorf("failed to get ui flag: %w", err)
	}
	mode, err := parseSwitch("ui", uiValue)
	if err != nil {
		return err
	}
	showTimings, err := cmd.Root().PersistentFlags().GetBool("timings")
	if err != nil {
		return fmt.Errorf("failed to get timings flag: %w", err)
	}

	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	if err := applyFlagOverrides(cmd, &cfg, rf); err != nil {
		return err
	}

	log, err := newLogger(cmd)
	if err != nil {
		return err
	}
	defer syncLogger(log)
	if cfg.Path != "" {
		log.Debug("configuration", zap.String("path", cfg.Path))
	}

	cleanup, err := setupTracing(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer dumpTraceOnPanic(ctx)

	var timer *observ.Timer
	if showTimings {
		timer = observ.NewTimer()
	}

	phase := timer.Begin("read")
	pages, err := loadPages(args, ".")
	timer.End(phase, fmt.Sprintf("%d pages", len(pages)))
	if err != nil {
		return err
	}

	opts, err := engineOptions(ctx, cfg, log, timer)
	if err != nil {
		return err
	}

	machineOnStdout := rf.output == "" && rf.format != "pretty"
	rep, err := validate(ctx, opts, pages, shouldUseTUI(mode, machineOnStdout))
	if err != nil {
		if engine.IsRunError(err) {
			dumpTraceRing(ctx, cmd.ErrOrStderr())
			fmt.Fprintln(cmd.ErrOrStderr(), "error:", err)
			return &exitError{code: 2}
		}
		return err
	}

	ropts, err := buildRenderOptions(cmd, rf, os.Args[1:])
	if err != nil {
		return err
	}
	phase = timer.Begin("render")
	err = writeReport(rf.output, rep, ropts)
	timer.End(phase, rf.format)
	if err != nil {
		return err
	}

	if showTimings {
		if err := printTimings(cmd.ErrOrStderr(), timer, rf.format == "json"); err != nil {
			return err
		}
	}
	if code := rep.ExitCode(policyOf(cfg)); code != 0 {
		return &exitError{code: code}
	}
	return nil
}

// validate runs the engine with or without the progress view.
func validate(ctx context.Context, opts engine.Options, pages []source.Page, withUI bool) (report.ValidationReport, error) {
	if withUI {
		return runWithUI(ctx, "fencecheck", opts, pages)
	}
	return engine.New(opts).Run(ctx, pages)
}

func buildRenderOptions(cmd *cobra.Command, rf runFlags, invoked []string) (renderOptions, error) {
	maxDiagnostics, err := cmd.Root().PersistentFlags().GetInt("max-diagnostics")
	if err != nil {
		return renderOptions{}, fmt.Errorf("failed to get max-diagnostics flag: %w", err)
	}
	color := false
	if rf.output == "" {
		if color, err = useColor(cmd, os.Stdout); err != nil {
			return renderOptions{}, err
		}
	}
	pathMode := diagfmt.PathModeAuto
	if rf.fullPath {
		pathMode = diagfmt.PathModeAbsolute
	}
	return renderOptions{
		format:  rf.format,
		stable:  rf.stable,
		invoked: invoked,
		pretty: diagfmt.PrettyOpts{
			Color:          color,
			PathMode:       pathMode,
			ShowPassed:     rf.showPassed,
			ShowWarnings:   rf.showPassed,
			MaxDiagnostics: maxDiagnostics,
		},
	}, nil
}
