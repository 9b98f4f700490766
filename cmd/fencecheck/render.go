package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"fencecheck/internal/diagfmt"
	"fencecheck/internal/report"
	"fencecheck/internal/version"
)

type renderOptions struct {
	format  string
	stable  bool
	pretty  diagfmt.PrettyOpts
	invoked []string
}

func renderReport(w io.Writer, rep report.ValidationReport, opts renderOptions) error {
	jsonOpts := diagfmt.JSONOpts{Indent: true, Stable: opts.stable}
	switch opts.format {
	case "pretty":
		return diagfmt.Pretty(w, rep, opts.pretty)
	case "json":
		return diagfmt.JSON(w, rep, jsonOpts)
	case "yaml":
		return diagfmt.YAML(w, rep, jsonOpts)
	case "annotations":
		return diagfmt.AnnotationsJSON(w, rep, jsonOpts)
	case "sarif":
		if opts.stable {
			rep = rep.Stable()
		}
		return diagfmt.Sarif(w, rep, diagfmt.SarifRunMeta{
			ToolName:       "fencecheck",
			ToolVersion:    version.Version,
			InvocationArgs: opts.invoked,
		})
	case "indicators":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		if err := enc.Encode(diagfmt.Indicators(rep)); err != nil {
			return fmt.Errorf("failed to encode JSON: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unknown format: %s", opts.format)
	}
}

// writeReport renders into path, or stdout when path is empty.
func writeReport(path string, rep report.ValidationReport, opts renderOptions) (err error) {
	if path == "" {
		return renderReport(os.Stdout, rep, opts)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600) // #nosec G304 -- output path is a user-supplied flag
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return renderReport(f, rep, opts)
}
