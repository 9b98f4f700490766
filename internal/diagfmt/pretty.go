package diagfmt

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"

	"fencecheck/internal/diag"
	"fencecheck/internal/report"
	"fencecheck/internal/result"
)

type palette struct {
	pass, fail, skip, dim, bold *color.Color
}

func newPalette(enabled bool) palette {
	p := palette{
		pass: color.New(color.FgGreen, color.Bold),
		fail: color.New(color.FgRed, color.Bold),
		skip: color.New(color.FgYellow),
		dim:  color.New(color.Faint),
		bold: color.New(color.Bold),
	}
	for _, c := range []*color.Color{p.pass, p.fail, p.skip, p.dim, p.bold} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

// Pretty prints failed and skipped results (and passed ones with
// ShowPassed) followed by a one-line summary:
//
//	FAIL docs/intro.md:12 intro_2 [thumbv7em-none-eabihf] freestanding(thumbv7em-none-eabihf) 1.2s
//	     docs/intro.md:14:5: ERROR [E0425]: cannot find value `x` in this scope
func Pretty(w io.Writer, rep report.ValidationReport, opts PrettyOpts) error {
	pal := newPalette(opts.Color)
	for _, r := range rep.Results {
		if r.Status == result.StatusPassed && !opts.ShowPassed {
			continue
		}
		if err := prettyResult(w, r, pal, opts); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "%s: %d total, %s, %s, %s (%s)\n",
		pal.bold.Sprint("fencecheck"),
		rep.Total,
		pal.pass.Sprintf("%d passed", rep.Successful),
		pal.fail.Sprintf("%d failed", rep.Failed),
		pal.skip.Sprintf("%d skipped", rep.Skipped),
		time.Duration(rep.DurationMS)*time.Millisecond)
	if err != nil {
		return err
	}
	c := rep.Counters
	if c.Timeouts+c.Conflicts+c.Infrastructure > 0 {
		_, err = fmt.Fprintf(w, "  %s\n", pal.dim.Sprintf("timeouts=%d conflicts=%d infrastructure=%d", c.Timeouts, c.Conflicts, c.Infrastructure))
	}
	return err
}

func prettyResult(w io.Writer, r result.TestResult, pal palette, opts PrettyOpts) error {
	var tag string
	switch r.Status {
	case result.StatusPassed:
		tag = pal.pass.Sprint("PASS")
	case result.StatusFailed:
		tag = pal.fail.Sprint("FAIL")
	default:
		tag = pal.skip.Sprint("SKIP")
	}
	extra := ""
	if r.Failure != result.FailureNone && r.Failure != result.FailureCompile {
		extra = " " + pal.fail.Sprintf("(%s)", r.Failure)
	}
	if r.Cached {
		extra += " " + pal.dim.Sprint("(cached)")
	}
	if _, err := fmt.Fprintf(w, "%s %s:%d %s [%s] %s %s%s\n",
		tag, formatPath(r.SourceFile, opts.BaseDir, opts.PathMode), r.Line, r.FragmentID, r.Target,
		r.Context, pal.dim.Sprint(r.Duration.Round(time.Millisecond)), extra); err != nil {
		return err
	}
	shown := 0
	for _, d := range r.Diagnostics {
		if r.Status == result.StatusPassed && !opts.ShowWarnings {
			break
		}
		if opts.MaxDiagnostics > 0 && shown >= opts.MaxDiagnostics {
			if _, err := fmt.Fprintf(w, "     %s\n", pal.dim.Sprintf("... %d more", len(r.Diagnostics)-shown)); err != nil {
				return err
			}
			break
		}
		d.File = formatPath(d.File, opts.BaseDir, opts.PathMode)
		line := d.String()
		switch d.Severity {
		case diag.SevError:
			line = pal.fail.Sprint(line)
		case diag.SevWarning:
			line = pal.skip.Sprint(line)
		}
		if _, err := fmt.Fprintf(w, "     %s\n", line); err != nil {
			return err
		}
		shown++
	}
	return nil
}
