package toolchain

import (
	"fmt"
	"slices"
	"strings"

	"fencecheck/internal/classify"
)

// TargetKind says which contexts a target serves.
type TargetKind string

const (
	KindHosted       TargetKind = "hosted"
	KindFreestanding TargetKind = "freestanding"
)

// Target is one configured toolchain target triple.
type Target struct {
	Name      string     `toml:"name" json:"name" yaml:"name"`
	Kind      TargetKind `toml:"kind" json:"kind" yaml:"kind"`
	Platforms []string   `toml:"platforms" json:"platforms,omitempty" yaml:"platforms,omitempty"`
}

// Validate checks a single target entry.
func (t Target) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("target: missing name")
	}
	switch t.Kind {
	case KindHosted, KindFreestanding:
	default:
		return fmt.Errorf("target %s: unknown kind %q (want %q or %q)", t.Name, t.Kind, KindHosted, KindFreestanding)
	}
	if t.Kind == KindHosted && len(t.Platforms) > 0 {
		return fmt.Errorf("target %s: platforms are only meaningful for freestanding targets", t.Name)
	}
	return nil
}

func (t Target) serves(platform string) bool {
	return slices.ContainsFunc(t.Platforms, func(p string) bool { return strings.EqualFold(p, platform) })
}

// Targets is the configured target list in configuration order.
type Targets []Target

// DefaultTargets covers a Linux host and a Cortex-M4F board.
func DefaultTargets() Targets {
	return Targets{
		{Name: "x86_64-unknown-linux-gnu", Kind: KindHosted},
		{Name: classify.DefaultFreestandingTarget, Kind: KindFreestanding, Platforms: []string{"stm32f4", "stm32f3", "nrf52"}},
	}
}

// NoTargetError explains why a compilable fragment has nothing to build for.
type NoTargetError struct {
	Context classify.ExecutionContext
	Reason  string
}

func (e *NoTargetError) Error() string { return e.Reason }

// For picks the targets a context compiles against:
// hosted and domain contexts use every hosted target; freestanding contexts
// use their named target; hardware contexts use the freestanding targets
// listing the platform (any freestanding target for generic platforms).
func (ts Targets) For(ctx classify.ExecutionContext) ([]string, error) {
	var out []string
	switch c := ctx.(type) {
	case classify.Snippet:
		return nil, nil
	case classify.Hosted, classify.DomainFocused:
		for _, t := range ts {
			if t.Kind == KindHosted {
				out = append(out, t.Name)
			}
		}
		if len(out) == 0 {
			return nil, &NoTargetError{Context: ctx, Reason: "no hosted toolchain target configured"}
		}
	case classify.Freestanding:
		for _, t := range ts {
			if t.Name == c.Target {
				out = append(out, t.Name)
			}
		}
		if len(out) == 0 {
			return nil, &NoTargetError{Context: ctx, Reason: fmt.Sprintf("no toolchain target configured for target %q", c.Target)}
		}
	case classify.HardwareGated:
		for _, t := range ts {
			if t.Kind != KindFreestanding {
				continue
			}
			if c.Platform == classify.GenericPlatform || t.serves(c.Platform) {
				out = append(out, t.Name)
			}
		}
		if len(out) == 0 {
			return nil, &NoTargetError{Context: ctx, Reason: fmt.Sprintf("no toolchain target configured for platform %q", c.Platform)}
		}
	}
	return out, nil
}

// FirstFreestanding returns the first freestanding target name, or "".
func (ts Targets) FirstFreestanding() string {
	for _, t := range ts {
		if t.Kind == KindFreestanding {
			return t.Name
		}
	}
	return ""
}

// Names lists target names in order.
func (ts Targets) Names() []string {
	out := make([]string, 0, len(ts))
	for _, t := range ts {
		out = append(out, t.Name)
	}
	return out
}

// Installed keeps only targets present in the probe result.
func (ts Targets) Installed(installed map[string]bool) Targets {
	var out Targets
	for _, t := range ts {
		if installed[t.Name] {
			out = append(out, t)
		}
	}
	return out
}
