// Package annotation parses the directive list that follows a fence tag,
// e.g. "no_std,target=thumbv7em-none-eabihf,features=crypto,hardware".
package annotation

import (
	"slices"
	"strings"
)

// Directive is a single key or key=value entry.
type Directive struct {
	Key      string // normalized key
	Raw      string // key exactly as written
	Value    string
	HasValue bool
}

func (d Directive) String() string {
	if !d.HasValue {
		return d.Key
	}
	if strings.ContainsAny(d.Value, ",\" ") && !isListKey(d.Key) {
		return d.Key + "=" + quote(d.Value)
	}
	return d.Key + "=" + d.Value
}

// Annotation is the ordered directive list of one fragment.
// The zero value is an empty annotation.
type Annotation struct {
	directives []Directive
}

// New builds an annotation from directives, normalizing keys.
func New(ds ...Directive) Annotation {
	out := make([]Directive, 0, len(ds))
	for _, d := range ds {
		if d.Raw == "" {
			d.Raw = d.Key
		}
		d.Key = normalizeKey(d.Key)
		out = append(out, d)
	}
	return Annotation{directives: out}
}

// Len returns the number of directives.
func (a Annotation) Len() int { return len(a.directives) }

// Directives returns a copy of the directive list in source order.
func (a Annotation) Directives() []Directive {
	return slices.Clone(a.directives)
}

// Has reports whether key appears at all, with or without value.
func (a Annotation) Has(key string) bool {
	_, ok := a.lookup(key)
	return ok
}

// Value returns the value of the first directive named key.
// ok is false when the key is absent or carries no value.
func (a Annotation) Value(key string) (string, bool) {
	d, ok := a.lookup(key)
	if !ok || !d.HasValue {
		return "", false
	}
	return d.Value, true
}

// List splits a list-valued directive into trimmed, non-empty items.
func (a Annotation) List(key string) []string {
	v, ok := a.Value(key)
	if !ok {
		return nil
	}
	return splitList(v)
}

// Unknown lists directive keys this package does not recognize, verbatim.
func (a Annotation) Unknown() []string {
	var out []string
	for _, d := range a.directives {
		if _, known := knownKeys[d.Key]; !known {
			out = append(out, d.Raw)
		}
	}
	return out
}

func (a Annotation) String() string {
	parts := make([]string, len(a.directives))
	for i, d := range a.directives {
		parts[i] = d.String()
	}
	return strings.Join(parts, ",")
}

func (a Annotation) lookup(key string) (Directive, bool) {
	key = normalizeKey(key)
	for _, d := range a.directives {
		if d.Key == key {
			return d, true
		}
	}
	return Directive{}, false
}

func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

func quote(v string) string {
	return `"` + strings.ReplaceAll(v, `"`, "") + `"`
}
