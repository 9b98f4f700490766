// Package deps maps what a fragment uses to the crates it needs.
package deps

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Dependency is one manifest entry.
type Dependency struct {
	Name              string
	Version           string // Cargo requirement, "*" when unknown
	Features          []string
	NoDefaultFeatures bool
	Optional          bool
	// Origin names the marker or directive that pulled the dependency in.
	Origin string
}

func (d Dependency) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s@%s", d.Name, d.Version)
	if len(d.Features) > 0 {
		fmt.Fprintf(&b, "[%s]", strings.Join(d.Features, ","))
	}
	return b.String()
}

// ConflictError reports two incompatible requirements for one crate.
type ConflictError struct {
	Name       string
	Existing   string
	Incoming   string
	ExistingBy string
	IncomingBy string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("dependency conflict for %s: %q (from %s) is incompatible with %q (from %s)",
		e.Name, e.Existing, origin(e.ExistingBy), e.Incoming, origin(e.IncomingBy))
}

func origin(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

// Set holds dependencies keyed by name. Adding a name twice unions the
// features when the requirements overlap and fails otherwise.
type Set struct {
	byName map[string]Dependency
}

func NewSet(ds ...Dependency) (*Set, error) {
	s := &Set{}
	for _, d := range ds {
		if err := s.Add(d); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Add merges d into the set.
func (s *Set) Add(d Dependency) error {
	if s.byName == nil {
		s.byName = make(map[string]Dependency)
	}
	d.Features = normalizeFeatures(d.Features)
	if strings.TrimSpace(d.Version) == "" {
		d.Version = "*"
	}
	prev, ok := s.byName[d.Name]
	if !ok {
		s.byName[d.Name] = d
		return nil
	}
	compatible, err := Compatible(prev.Version, d.Version)
	if err != nil {
		return fmt.Errorf("%s: %w", d.Name, err)
	}
	if !compatible {
		return &ConflictError{
			Name:       d.Name,
			Existing:   prev.Version,
			Incoming:   d.Version,
			ExistingBy: prev.Origin,
			IncomingBy: d.Origin,
		}
	}
	merged := prev
	if !sameRange(prev.Version, d.Version) {
		merged.Version = joinRequirements(prev.Version, d.Version)
	}
	merged.Features = normalizeFeatures(append(slices.Clone(prev.Features), d.Features...))
	// default features stay off only if every contributor turned them off
	merged.NoDefaultFeatures = prev.NoDefaultFeatures && d.NoDefaultFeatures
	merged.Optional = prev.Optional && d.Optional
	s.byName[d.Name] = merged
	return nil
}

// Merge adds every dependency of other. The first conflict is returned.
func (s *Set) Merge(other *Set) error {
	if other == nil {
		return nil
	}
	for _, d := range other.List() {
		if err := s.Add(d); err != nil {
			return err
		}
	}
	return nil
}

// List returns dependencies sorted by name.
func (s *Set) List() []Dependency {
	if s == nil {
		return nil
	}
	names := slices.Sorted(maps.Keys(s.byName))
	out := make([]Dependency, 0, len(names))
	for _, n := range names {
		d := s.byName[n]
		d.Features = slices.Clone(d.Features)
		out = append(out, d)
	}
	return out
}

func (s *Set) Get(name string) (Dependency, bool) {
	if s == nil {
		return Dependency{}, false
	}
	d, ok := s.byName[name]
	return d, ok
}

func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.byName)
}

// Clone returns an independent copy.
func (s *Set) Clone() *Set {
	out := &Set{byName: make(map[string]Dependency, s.Len())}
	for _, d := range s.List() {
		out.byName[d.Name] = d
	}
	return out
}

func normalizeFeatures(fs []string) []string {
	out := make([]string, 0, len(fs))
	for _, f := range fs {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	slices.Sort(out)
	out = slices.Compact(out)
	if len(out) == 0 {
		return nil
	}
	return out
}

func joinRequirements(a, b string) string {
	if a == "*" {
		return b
	}
	if b == "*" {
		return a
	}
	return a + ", " + b
}
