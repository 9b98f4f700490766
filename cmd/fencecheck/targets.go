package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"fencecheck/internal/toolchain"
)

var targetsCmd = &cobra.Command{
	Use:   "targets [path]",
	Short: "List configured toolchain targets",
	Long:  "Show the targets examples are compiled for and, with --probe, whether the toolchain has them installed.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runTargets,
}

func init() {
	targetsCmd.Flags().Bool("probe", false, "ask the toolchain which targets are installed")
	targetsCmd.Flags().String("format", "pretty", "output format (pretty|json)")
}

type targetRow struct {
	toolchain.Target
	Installed *bool `json:"installed,omitempty"`
}

func runTargets(cmd *cobra.Command, args []string) error {
	probe, err := cmd.Flags().GetBool("probe")
	if err != nil {
		return fmt.Errorf("failed to get probe flag: %w", err)
	}
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return fmt.Errorf("failed to get format flag: %w", err)
	}
	format = strings.ToLower(format)
	if format != "pretty" && format != "json" {
		return fmt.Errorf("unsupported format %q (must be pretty or json)", format)
	}

	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	rows := make([]targetRow, 0, len(cfg.Targets))
	var installed map[string]bool
	if probe {
		installed, err = toolchain.Probe(commandContext(cmd), cfg.Toolchain.Probe)
		if err != nil {
			return err
		}
	}
	for _, t := range cfg.Targets {
		row := targetRow{Target: t}
		if installed != nil {
			ok := installed[t.Name]
			row.Installed = &ok
		}
		rows = append(rows, row)
	}

	if format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}
	colored, err := useColor(cmd, os.Stdout)
	if err != nil {
		return err
	}
	return printTargets(cmd.OutOrStdout(), rows, colored)
}

func printTargets(w io.Writer, rows []targetRow, colored bool) error {
	ok := color.New(color.FgGreen)
	missing := color.New(color.FgRed)
	for _, c := range []*color.Color{ok, missing} {
		if colored {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	width := 0
	for _, r := range rows {
		width = max(width, len(r.Name))
	}
	for _, r := range rows {
		line := fmt.Sprintf("%-*s  %-12s", width, r.Name, r.Kind)
		if len(r.Platforms) > 0 {
			line += " platforms=" + strings.Join(r.Platforms, ",")
		}
		if r.Installed != nil {
			if *r.Installed {
				line += "  " + ok.Sprint("installed")
			} else {
				line += "  " + missing.Sprint("missing")
			}
		}
		if _, err := fmt.Fprintln(w, strings.TrimRight(line, " ")); err != nil {
			return err
		}
	}
	return nil
}
