package diagfmt

import (
	"fmt"
	"io"
	"path/filepath"

	"fencecheck/internal/diag"
	"fencecheck/internal/report"
	"fencecheck/internal/result"
)

const (
	sarifSchema  = "https://json.schemastore.org/sarif-2.1.0.json"
	sarifVersion = "2.1.0"
)

type sarifLog struct {
	Schema  string     `json:"$schema"`
	Version string     `json:"version"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool        sarifTool         `json:"tool"`
	Invocations []sarifInvocation `json:"invocations,omitempty"`
	Results     []sarifResult     `json:"results"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name    string      `json:"name"`
	Version string      `json:"version,omitempty"`
	Rules   []sarifRule `json:"rules"`
}

type sarifRule struct {
	ID               string       `json:"id"`
	ShortDescription sarifMessage `json:"shortDescription"`
}

type sarifInvocation struct {
	Arguments           []string `json:"arguments,omitempty"`
	ExecutionSuccessful bool     `json:"executionSuccessful"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

type sarifResult struct {
	RuleID     string          `json:"ruleId"`
	Level      string          `json:"level"`
	Message    sarifMessage    `json:"message"`
	Locations  []sarifLocation `json:"locations,omitempty"`
	Properties map[string]any  `json:"properties,omitempty"`
}

type sarifLocation struct {
	PhysicalLocation sarifPhysical `json:"physicalLocation"`
}

type sarifPhysical struct {
	ArtifactLocation sarifArtifact `json:"artifactLocation"`
	Region           *sarifRegion  `json:"region,omitempty"`
}

type sarifArtifact struct {
	URI string `json:"uri"`
}

type sarifRegion struct {
	StartLine   int `json:"startLine"`
	StartColumn int `json:"startColumn,omitempty"`
}

var sarifRules = []sarifRule{
	{ID: "fencecheck/" + string(result.FailureCompile), ShortDescription: sarifMessage{Text: "Code example does not compile"}},
	{ID: "fencecheck/" + string(result.FailureTimeout), ShortDescription: sarifMessage{Text: "Code example compilation timed out"}},
	{ID: "fencecheck/" + string(result.FailureConflict), ShortDescription: sarifMessage{Text: "Code example implies conflicting dependency versions"}},
	{ID: "fencecheck/" + string(result.FailureInfrastructure), ShortDescription: sarifMessage{Text: "Validation infrastructure failure"}},
	{ID: "fencecheck/warning", ShortDescription: sarifMessage{Text: "Code example warning"}},
}

// Sarif форматирует отчёт в SARIF (v2.1.0): one result per failed
// (fragment, target) pair plus one per warning diagnostic.
func Sarif(w io.Writer, rep report.ValidationReport, meta SarifRunMeta) error {
	name := meta.ToolName
	if name == "" {
		name = "fencecheck"
	}
	run := sarifRun{
		Tool:    sarifTool{Driver: sarifDriver{Name: name, Version: meta.ToolVersion, Rules: sarifRules}},
		Results: []sarifResult{},
	}
	if len(meta.InvocationArgs) > 0 {
		run.Invocations = []sarifInvocation{{Arguments: meta.InvocationArgs, ExecutionSuccessful: true}}
	}
	for _, r := range rep.Results {
		if r.Status == result.StatusFailed {
			run.Results = append(run.Results, failedResult(r))
		}
		for _, d := range r.Diagnostics {
			if d.Severity != diag.SevWarning {
				continue
			}
			run.Results = append(run.Results, sarifResult{
				RuleID:    "fencecheck/warning",
				Level:     "warning",
				Message:   sarifMessage{Text: fmt.Sprintf("%s [%s]: %s", r.FragmentID, r.Target, d.Message)},
				Locations: location(d.File, d.Line, d.Column, r),
			})
		}
	}
	log := sarifLog{Schema: sarifSchema, Version: sarifVersion, Runs: []sarifRun{run}}
	return encodeJSON(w, log, true)
}

func failedResult(r result.TestResult) sarifResult {
	msg := fmt.Sprintf("%s does not pass on %s", r.FragmentID, r.Target)
	file, line, col := r.SourceFile, r.Line, 0
	if d, ok := r.FirstError(); ok {
		msg = fmt.Sprintf("%s [%s]: %s", r.FragmentID, r.Target, d.Message)
		if d.File == r.SourceFile && d.Line > 0 {
			line, col = d.Line, d.Column
		}
	}
	return sarifResult{
		RuleID:    "fencecheck/" + string(r.Failure),
		Level:     "error",
		Message:   sarifMessage{Text: msg},
		Locations: location(file, line, col, r),
		Properties: map[string]any{
			"fragment": r.FragmentID,
			"target":   r.Target,
			"context":  r.Context.String(),
		},
	}
}

// location prefers the diagnostic position when it points into the page.
func location(file string, line, col int, r result.TestResult) []sarifLocation {
	if file != r.SourceFile || line <= 0 {
		file, line, col = r.SourceFile, r.Line, 0
	}
	if file == "" {
		return nil
	}
	return []sarifLocation{{PhysicalLocation: sarifPhysical{
		ArtifactLocation: sarifArtifact{URI: filepath.ToSlash(file)},
		Region:           &sarifRegion{StartLine: max(line, 1), StartColumn: col},
	}}}
}
