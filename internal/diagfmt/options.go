package diagfmt

import (
	"path/filepath"
)

// PathMode specifies how file paths are displayed.
type PathMode uint8

const (
	// PathModeAuto keeps paths as the report has them.
	PathModeAuto PathMode = iota
	// PathModeAbsolute always uses absolute paths.
	PathModeAbsolute
	PathModeRelative
	PathModeBasename
)

// PrettyOpts configures the human-readable report.
type PrettyOpts struct {
	Color    bool
	PathMode PathMode
	BaseDir  string
	// ShowPassed lists passing results too, not only failures and skips.
	ShowPassed bool
	// ShowWarnings includes warning diagnostics of passing results.
	ShowWarnings bool
	// MaxDiagnostics per result, 0 - без ограничения
	MaxDiagnostics int
}

// JSONOpts configures JSON output.
type JSONOpts struct {
	Indent bool
	// Stable drops run-specific fields (run id, durations).
	Stable bool
}

// SarifRunMeta provides metadata for SARIF output.
type SarifRunMeta struct {
	ToolName       string
	ToolVersion    string
	InvocationArgs []string
}

func formatPath(path, base string, mode PathMode) string {
	if path == "" {
		return path
	}
	switch mode {
	case PathModeAbsolute:
		if abs, err := filepath.Abs(path); err == nil {
			return abs
		}
	case PathModeRelative:
		if base == "" {
			return path
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			return path
		}
		if rel, err := filepath.Rel(base, abs); err == nil {
			return filepath.ToSlash(rel)
		}
	case PathModeBasename:
		return filepath.Base(path)
	}
	return path
}
