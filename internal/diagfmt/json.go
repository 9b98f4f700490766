package diagfmt

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"fencecheck/internal/report"
)

// AnnotationsOutput is the per-fragment document handed to the
// documentation build.
type AnnotationsOutput struct {
	RunID     string                  `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	Fragments []report.FragmentStatus `json:"fragments" yaml:"fragments"`
	Count     int                     `json:"count" yaml:"count"`
}

// BuildAnnotationsOutput формирует структуру без сериализации.
func BuildAnnotationsOutput(rep report.ValidationReport) AnnotationsOutput {
	fs := report.Annotations(rep)
	if fs == nil {
		fs = []report.FragmentStatus{}
	}
	return AnnotationsOutput{RunID: rep.RunID, Fragments: fs, Count: len(fs)}
}

// JSON writes the report.
func JSON(w io.Writer, rep report.ValidationReport, opts JSONOpts) error {
	if opts.Stable {
		rep = rep.Stable()
	}
	return encodeJSON(w, rep, opts.Indent)
}

// AnnotationsJSON writes per-fragment statuses.
func AnnotationsJSON(w io.Writer, rep report.ValidationReport, opts JSONOpts) error {
	if opts.Stable {
		rep = rep.Stable()
	}
	return encodeJSON(w, BuildAnnotationsOutput(rep), opts.Indent)
}

func encodeJSON(w io.Writer, v any, indent bool) error {
	enc := json.NewEncoder(w)
	if indent {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// YAML writes the report as a YAML document.
func YAML(w io.Writer, rep report.ValidationReport, opts JSONOpts) error {
	if opts.Stable {
		rep = rep.Stable()
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(rep); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}
	return enc.Close()
}
