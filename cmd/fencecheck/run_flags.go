package main

import (
	"fmt"
	"maps"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"fencecheck/internal/config"
	"fencecheck/internal/report"
	"fencecheck/internal/toolchain"
)

// addRunFlags registers the flags shared by check and watch.
func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().String("format", "pretty", "report format (pretty|json|yaml|sarif|annotations|indicators)")
	cmd.Flags().StringP("output", "o", "", "write the report to a file instead of stdout")
	cmd.Flags().IntP("jobs", "j", 0, "max parallel compile jobs (0 = config or number of CPUs)")
	cmd.Flags().Duration("timeout", 0, "per-compile timeout (0 = config)")
	cmd.Flags().Bool("keep-on-failure", false, "keep scratch projects of failed compiles for inspection")
	cmd.Flags().Bool("fail-on-skip", false, "exit non-zero when more examples are skipped than --skip-threshold")
	cmd.Flags().Int("skip-threshold", 0, "skipped examples tolerated with --fail-on-skip")
	cmd.Flags().Bool("stable", false, "omit run ids and durations from machine-readable reports")
	cmd.Flags().Bool("no-cache", false, "compile every example even if a cached outcome exists")
	cmd.Flags().String("lang", "", "fence language tag to validate (default: config or rust)")
	cmd.Flags().StringSlice("target", nil, "only build for these target triples")
	cmd.Flags().Bool("probe-targets", false, "drop configured targets the toolchain does not have installed")
	cmd.Flags().Bool("show-passed", false, "list passing examples in the pretty report")
	cmd.Flags().Bool("fullpath", false, "emit absolute file paths in the pretty report")
}

// runFlags is the parsed form of addRunFlags.
type runFlags struct {
	format     string
	output     string
	stable     bool
	noCache    bool
	showPassed bool
	fullPath   bool
	only       []string
	probe      bool
}

func readRunFlags(cmd *cobra.Command) (runFlags, error) {
	var (
		rf  runFlags
		err error
	)
	if rf.format, err = cmd.Flags().GetString("format"); err != nil {
		return rf, fmt.Errorf("failed to get format flag: %w", err)
	}
	rf.format = strings.ToLower(strings.TrimSpace(rf.format))
	switch rf.format {
	case "pretty", "json", "yaml", "sarif", "annotations", "indicators":
	default:
		return rf, fmt.Errorf("unknown format: %s", rf.format)
	}
	if rf.output, err = cmd.Flags().GetString("output"); err != nil {
		return rf, fmt.Errorf("failed to get output flag: %w", err)
	}
	if rf.stable, err = cmd.Flags().GetBool("stable"); err != nil {
		return rf, fmt.Errorf("failed to get stable flag: %w", err)
	}
	if rf.noCache, err = cmd.Flags().GetBool("no-cache"); err != nil {
		return rf, fmt.Errorf("failed to get no-cache flag: %w", err)
	}
	if rf.showPassed, err = cmd.Flags().GetBool("show-passed"); err != nil {
		return rf, fmt.Errorf("failed to get show-passed flag: %w", err)
	}
	if rf.fullPath, err = cmd.Flags().GetBool("fullpath"); err != nil {
		return rf, fmt.Errorf("failed to get fullpath flag: %w", err)
	}
	if rf.only, err = cmd.Flags().GetStringSlice("target"); err != nil {
		return rf, fmt.Errorf("failed to get target flag: %w", err)
	}
	if rf.probe, err = cmd.Flags().GetBool("probe-targets"); err != nil {
		return rf, fmt.Errorf("failed to get probe-targets flag: %w", err)
	}
	return rf, nil
}

// loadConfig resolves --config, or searches upward from the first path.
func loadConfig(cmd *cobra.Command, paths []string) (config.Config, error) {
	explicit, err := cmd.Root().PersistentFlags().GetString("config")
	if err != nil {
		return config.Config{}, fmt.Errorf("failed to get config flag: %w", err)
	}
	if explicit != "" {
		return config.LoadFile(explicit)
	}
	start := "."
	if len(paths) > 0 {
		start = paths[0]
		if isPageFile(start) {
			start = filepath.Dir(start)
		}
	}
	return config.Load(start)
}

// applyFlagOverrides lets explicitly set flags win over the configuration.
func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config, rf runFlags) error {
	flags := cmd.Flags()
	if flags.Changed("jobs") {
		v, err := flags.GetInt("jobs")
		if err != nil {
			return fmt.Errorf("failed to get jobs flag: %w", err)
		}
		cfg.Engine.Jobs = v
	}
	if flags.Changed("timeout") {
		v, err := flags.GetDuration("timeout")
		if err != nil {
			return fmt.Errorf("failed to get timeout flag: %w", err)
		}
		cfg.Engine.Timeout = config.Duration(v)
	}
	if flags.Changed("keep-on-failure") {
		v, err := flags.GetBool("keep-on-failure")
		if err != nil {
			return fmt.Errorf("failed to get keep-on-failure flag: %w", err)
		}
		cfg.Engine.KeepOnFailure = v
	}
	if flags.Changed("lang") {
		v, err := flags.GetString("lang")
		if err != nil {
			return fmt.Errorf("failed to get lang flag: %w", err)
		}
		cfg.Engine.Language = v
	}
	if flags.Changed("fail-on-skip") {
		v, err := flags.GetBool("fail-on-skip")
		if err != nil {
			return fmt.Errorf("failed to get fail-on-skip flag: %w", err)
		}
		cfg.CI.FailOnSkip = v
	}
	if flags.Changed("skip-threshold") {
		v, err := flags.GetInt("skip-threshold")
		if err != nil {
			return fmt.Errorf("failed to get skip-threshold flag: %w", err)
		}
		cfg.CI.SkipThreshold = v
	}
	if rf.probe {
		cfg.Toolchain.ProbeTargets = true
	}
	if rf.noCache {
		cfg.Cache.Enabled = false
	}
	if len(rf.only) > 0 {
		filtered, err := selectTargets(cfg.Targets, rf.only)
		if err != nil {
			return err
		}
		cfg.Targets = filtered
	}
	if cfg.Engine.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	return nil
}

func selectTargets(ts toolchain.Targets, names []string) (toolchain.Targets, error) {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[strings.TrimSpace(n)] = true
	}
	var out toolchain.Targets
	for _, t := range ts {
		if want[t.Name] {
			out = append(out, t)
			delete(want, t.Name)
		}
	}
	if len(want) > 0 {
		missing := slices.Sorted(maps.Keys(want))
		return nil, fmt.Errorf("target not configured: %s", strings.Join(missing, ", "))
	}
	return out, nil
}

func policyOf(cfg config.Config) report.Policy {
	return report.Policy{FailOnSkip: cfg.CI.FailOnSkip, SkipThreshold: cfg.CI.SkipThreshold}
}
