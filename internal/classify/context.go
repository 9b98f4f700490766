// Package classify decides which execution environment a fragment demonstrates.
package classify

import (
	"fmt"
	"slices"
	"strings"
)

// Kind enumerates the context variants.
type Kind uint8

const (
	KindHosted Kind = iota + 1
	KindFreestanding
	KindHardware
	KindDomain
	KindSnippet
)

func (k Kind) String() string {
	switch k {
	case KindHosted:
		return "hosted"
	case KindFreestanding:
		return "freestanding"
	case KindHardware:
		return "hardware"
	case KindDomain:
		return "domain"
	case KindSnippet:
		return "snippet"
	}
	return "unknown"
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	v, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	for k := KindHosted; k <= KindSnippet; k++ {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown context kind %q", s)
}

// ExecutionContext is one of Hosted, Freestanding, HardwareGated,
// DomainFocused or Snippet. No other implementations exist.
type ExecutionContext interface {
	Kind() Kind
	Features() []string
	// Detail is the variant payload: target, platform, topic or reason.
	Detail() string
	Compilable() bool
	String() string
	sealed()
}

// FeatureSet is a sorted, duplicate-free list of feature names.
type FeatureSet []string

// NewFeatureSet sorts and deduplicates names, dropping blanks.
func NewFeatureSet(names ...string) FeatureSet {
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n != "" {
			out = append(out, n)
		}
	}
	slices.Sort(out)
	out = slices.Compact(out)
	if len(out) == 0 {
		return nil
	}
	return FeatureSet(out)
}

// Features returns a copy of the set.
func (f FeatureSet) Features() []string { return slices.Clone([]string(f)) }

// With returns the union of the set and names.
func (f FeatureSet) With(names ...string) FeatureSet {
	return NewFeatureSet(append(slices.Clone([]string(f)), names...)...)
}

func (f FeatureSet) suffix() string {
	if len(f) == 0 {
		return ""
	}
	return " [" + strings.Join(f, ",") + "]"
}

// Hosted code runs on a full operating system with the standard library.
type Hosted struct {
	FeatureSet
}

// Freestanding code has no standard library and no OS; Target is the
// triple it was written for.
type Freestanding struct {
	Target string
	FeatureSet
}

// HardwareGated code needs a specific platform's support crates.
type HardwareGated struct {
	Platform string
	FeatureSet
}

// DomainFocused code belongs to a topic such as "crypto" that carries
// its own dependencies and lints.
type DomainFocused struct {
	Topic string
	FeatureSet
}

// Snippet is never compiled.
type Snippet struct {
	Reason string
}

func (Hosted) Kind() Kind        { return KindHosted }
func (Freestanding) Kind() Kind  { return KindFreestanding }
func (HardwareGated) Kind() Kind { return KindHardware }
func (DomainFocused) Kind() Kind { return KindDomain }
func (Snippet) Kind() Kind       { return KindSnippet }

func (Hosted) Detail() string          { return "" }
func (c Freestanding) Detail() string  { return c.Target }
func (c HardwareGated) Detail() string { return c.Platform }
func (c DomainFocused) Detail() string { return c.Topic }
func (c Snippet) Detail() string       { return c.Reason }

func (Hosted) Compilable() bool        { return true }
func (Freestanding) Compilable() bool  { return true }
func (HardwareGated) Compilable() bool { return true }
func (DomainFocused) Compilable() bool { return true }
func (Snippet) Compilable() bool       { return false }

func (Snippet) Features() []string { return nil }

func (c Hosted) String() string { return "hosted" + c.suffix() }
func (c Freestanding) String() string {
	return fmt.Sprintf("freestanding(%s)%s", c.Target, c.suffix())
}
func (c HardwareGated) String() string {
	return fmt.Sprintf("hardware(%s)%s", c.Platform, c.suffix())
}
func (c DomainFocused) String() string {
	return fmt.Sprintf("domain(%s)%s", c.Topic, c.suffix())
}
func (c Snippet) String() string { return fmt.Sprintf("snippet(%s)", c.Reason) }

func (Hosted) sealed()        {}
func (Freestanding) sealed()  {}
func (HardwareGated) sealed() {}
func (DomainFocused) sealed() {}
func (Snippet) sealed()       {}

// IsFreestanding reports whether ctx builds without the standard library.
func IsFreestanding(ctx ExecutionContext) bool {
	switch ctx.(type) {
	case Freestanding, HardwareGated:
		return true
	}
	return false
}
