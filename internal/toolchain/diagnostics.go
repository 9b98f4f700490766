package toolchain

import (
	"regexp"
	"strconv"
	"strings"

	"fortio.org/safecast"

	"fencecheck/internal/diag"
)

var (
	// src/main.rs:2:18: error[E0308]: mismatched types
	shortRe = regexp.MustCompile(`^(.+?):(\d+):(\d+): (error|warning)(?:\[([A-Za-z0-9_-]+)\])?: (.*)$`)
	// error[E0308]: mismatched types
	headRe = regexp.MustCompile(`^(error|warning)(?:\[([A-Za-z0-9_-]+)\])?: (.*)$`)
	//  --> src/main.rs:2:18
	locRe = regexp.MustCompile(`^\s*--> (.+?):(\d+):(\d+)\s*$`)
)

// summary lines cargo prints after the real diagnostics
var noise = []string{
	"could not compile",
	"aborting due to",
	"build failed",
	"Some errors have detailed explanations",
	"For more information about this error",
	"For more information about an error",
}

// ParseDiagnostics extracts rustc/cargo diagnostics from mixed output in
// both the human and the short message formats. Order of appearance is kept.
func ParseDiagnostics(output string) []diag.Diagnostic {
	var out []diag.Diagnostic
	pending := -1
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimRight(line, "\r")
		if m := shortRe.FindStringSubmatch(line); m != nil && !isNoise(m[6]) {
			d := newDiag(m[4], m[5], m[6])
			out = append(out, d.At(m[1], atoi(m[2]), atoi(m[3])))
			pending = -1
			continue
		}
		if m := headRe.FindStringSubmatch(line); m != nil {
			if isNoise(m[3]) || isCountSummary(m[1], m[3]) {
				pending = -1
				continue
			}
			out = append(out, newDiag(m[1], m[2], m[3]))
			pending = len(out) - 1
			continue
		}
		if m := locRe.FindStringSubmatch(line); m != nil && pending >= 0 {
			out[pending] = out[pending].At(m[1], atoi(m[2]), atoi(m[3]))
			pending = -1
		}
	}
	return out
}

func newDiag(sev, code, msg string) diag.Diagnostic {
	s := diag.SevError
	if sev == "warning" {
		s = diag.SevWarning
	}
	return diag.New(s, diag.Code(code), strings.TrimSpace(msg))
}

func isNoise(msg string) bool {
	for _, n := range noise {
		if strings.Contains(msg, n) {
			return true
		}
	}
	return false
}

// warning: `demo` (lib) generated 2 warnings
func isCountSummary(sev, msg string) bool {
	return sev == "warning" && strings.Contains(msg, " generated ") && strings.Contains(msg, "warning")
}

func atoi(s string) int {
	u, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0
	}
	n, err := safecast.Conv[int](u)
	if err != nil {
		return 0
	}
	return n
}
