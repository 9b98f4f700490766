package deps

import (
	"fmt"
	"slices"
	"strings"

	"fencecheck/internal/classify"
	"fencecheck/internal/fragment"
)

// builtinRoots never name external crates.
var builtinRoots = []string{"std", "core", "alloc", "self", "super", "crate", "proc_macro", "test"}

// Resolver turns fragment text into a dependency set.
type Resolver struct {
	Catalog Catalog
}

// NewResolver returns a resolver over DefaultCatalog.
func NewResolver() *Resolver {
	return &Resolver{Catalog: DefaultCatalog}
}

func (r *Resolver) catalog() Catalog {
	if r == nil || r.Catalog == nil {
		return DefaultCatalog
	}
	return r.Catalog
}

// Resolve collects every catalog entry the fragment implies, plus the
// explicit dependencies, and merges them by name. The same text always
// yields the same set. Incompatible requirements return *ConflictError.
func (r *Resolver) Resolve(frag fragment.CodeFragment, ctx classify.ExecutionContext, explicit ...Dependency) (*Set, error) {
	set := &Set{}
	if !ctx.Compilable() {
		return set, nil
	}
	code := classify.Scrub(frag.RawText)
	kind := ctx.Kind()

	for _, root := range useRoots(code) {
		e, ok := r.catalog().byRoot(root)
		if !ok {
			continue
		}
		if err := set.Add(fromEntry(e, kind, "use "+root)); err != nil {
			return nil, err
		}
	}
	for _, e := range r.catalog() {
		for _, m := range e.Markers {
			if !strings.Contains(code, m) {
				continue
			}
			if err := set.Add(fromEntry(e, kind, m)); err != nil {
				return nil, err
			}
			break
		}
	}
	for _, d := range explicit {
		if err := set.Add(d); err != nil {
			return nil, err
		}
	}
	return set, nil
}

// Unresolved lists crate roots used by the fragment that neither the
// catalog nor the fragment itself (via `mod`) accounts for.
func (r *Resolver) Unresolved(frag fragment.CodeFragment, explicit ...Dependency) []string {
	code := classify.Scrub(frag.RawText)
	local := localModules(code)
	var out []string
	for _, root := range useRoots(code) {
		if _, ok := r.catalog().byRoot(root); ok {
			continue
		}
		if slices.Contains(local, root) {
			continue
		}
		name := crateName(root)
		if slices.ContainsFunc(explicit, func(d Dependency) bool { return d.Name == name }) {
			continue
		}
		out = append(out, name)
	}
	return out
}

func fromEntry(e Entry, kind classify.Kind, origin string) Dependency {
	d := Dependency{
		Name:    e.Name,
		Version: e.Version,
		Origin:  origin,
	}
	if e.NoDefaultFeatures && kind != classify.KindHosted {
		d.NoDefaultFeatures = true
	}
	if fs, ok := e.ContextFeatures[kind]; ok {
		d.Features = slices.Clone(fs)
	}
	return d
}

// useRoots returns crate roots from `use` and `extern crate` items,
// sorted and without duplicates.
func useRoots(code string) []string {
	var roots []string
	for _, line := range strings.Split(code, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimPrefix(line, "pub ")
		var rest string
		switch {
		case strings.HasPrefix(line, "use "):
			rest = strings.TrimSpace(line[len("use "):])
		case strings.HasPrefix(line, "extern crate "):
			rest = strings.TrimSpace(line[len("extern crate "):])
		default:
			continue
		}
		rest = strings.TrimPrefix(rest, "::")
		end := strings.IndexFunc(rest, func(r rune) bool {
			return !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9')
		})
		if end >= 0 {
			rest = rest[:end]
		}
		if rest == "" || slices.Contains(builtinRoots, rest) {
			continue
		}
		roots = append(roots, rest)
	}
	slices.Sort(roots)
	return slices.Compact(roots)
}

func localModules(code string) []string {
	var mods []string
	for _, line := range strings.Split(code, "\n") {
		line = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "pub "))
		if !strings.HasPrefix(line, "mod ") {
			continue
		}
		name := strings.TrimSpace(line[len("mod "):])
		if i := strings.IndexAny(name, " {;"); i >= 0 {
			name = name[:i]
		}
		if name != "" {
			mods = append(mods, name)
		}
	}
	return mods
}

func crateName(root string) string {
	return strings.ReplaceAll(root, "_", "-")
}

// ParseDirective reads deps= items of the form name[@requirement].
func ParseDirective(items []string) ([]Dependency, error) {
	out := make([]Dependency, 0, len(items))
	for _, it := range items {
		name, req, _ := strings.Cut(strings.TrimSpace(it), "@")
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("deps: empty crate name in %q", it)
		}
		req = strings.TrimSpace(req)
		if req == "" {
			req = "*"
		}
		if _, err := parseRequirement(req); err != nil {
			return nil, fmt.Errorf("deps: %w", err)
		}
		out = append(out, Dependency{Name: crateName(name), Version: req, Origin: "deps directive"})
	}
	return out, nil
}

// Lookup exposes catalog entries by crate name, used by `fencecheck targets`
// style listings and tests.
func (r *Resolver) Lookup(name string) (Entry, bool) {
	return r.catalog().byName(name)
}
