package deps

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/mod/semver"
)

// bound is one end of a version range; an empty version means unbounded.
type bound struct {
	version   string // canonical "vX.Y.Z"
	inclusive bool
}

// versionRange is the set of versions a Cargo requirement accepts.
type versionRange struct {
	lo bound
	hi bound
}

var fullRange = versionRange{}

// parseRequirement converts a Cargo requirement ("0.8", "^1.2", "~0.6.1",
// ">=1, <2", "1.*", "=2.0.0", "*") into a range.
func parseRequirement(req string) (versionRange, error) {
	req = strings.TrimSpace(req)
	if req == "" || req == "*" {
		return fullRange, nil
	}
	r := fullRange
	for _, part := range strings.Split(req, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		pr, err := parseComparator(part)
		if err != nil {
			return versionRange{}, fmt.Errorf("invalid version requirement %q: %w", req, err)
		}
		r = intersect(r, pr)
	}
	return r, nil
}

func parseComparator(c string) (versionRange, error) {
	op := ""
	for _, candidate := range []string{">=", "<=", ">", "<", "=", "^", "~"} {
		if strings.HasPrefix(c, candidate) {
			op = candidate
			c = strings.TrimSpace(c[len(candidate):])
			break
		}
	}
	parts, err := splitVersion(c)
	if err != nil {
		return versionRange{}, err
	}
	if len(parts) == 0 {
		return fullRange, nil
	}
	lo := canonical(parts)
	switch op {
	case "", "^":
		return versionRange{lo: bound{lo, true}, hi: bound{caretUpper(parts), false}}, nil
	case "~":
		return versionRange{lo: bound{lo, true}, hi: bound{tildeUpper(parts), false}}, nil
	case "=":
		if len(parts) == 3 {
			return versionRange{lo: bound{lo, true}, hi: bound{lo, true}}, nil
		}
		return versionRange{lo: bound{lo, true}, hi: bound{tildeUpper(parts), false}}, nil
	case ">=":
		return versionRange{lo: bound{lo, true}}, nil
	case ">":
		if len(parts) < 3 {
			return versionRange{lo: bound{tildeUpper(parts), true}}, nil
		}
		return versionRange{lo: bound{lo, false}}, nil
	case "<":
		return versionRange{hi: bound{lo, false}}, nil
	case "<=":
		if len(parts) < 3 {
			return versionRange{hi: bound{tildeUpper(parts), false}}, nil
		}
		return versionRange{hi: bound{lo, true}}, nil
	}
	return versionRange{}, fmt.Errorf("unknown operator in %q", c)
}

// splitVersion parses "1", "1.2", "1.2.3" and wildcard forms "1.*", "1.2.x".
// Pre-release and build suffixes are dropped.
func splitVersion(v string) ([]int, error) {
	if i := strings.IndexAny(v, "-+"); i >= 0 {
		v = v[:i]
	}
	v = strings.TrimPrefix(v, "v")
	if v == "" || v == "*" {
		return nil, nil
	}
	fields := strings.Split(v, ".")
	if len(fields) > 3 {
		return nil, fmt.Errorf("too many components in %q", v)
	}
	out := make([]int, 0, len(fields))
	for _, f := range fields {
		if f == "*" || f == "x" || f == "X" {
			break
		}
		n, err := strconv.Atoi(f)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("bad version component %q", f)
		}
		out = append(out, n)
	}
	return out, nil
}

func canonical(parts []int) string {
	p := [3]int{}
	copy(p[:], parts)
	return fmt.Sprintf("v%d.%d.%d", p[0], p[1], p[2])
}

// caretUpper bumps the left-most non-zero component that was written.
func caretUpper(parts []int) string {
	switch {
	case parts[0] > 0 || len(parts) == 1:
		return canonical([]int{parts[0] + 1})
	case len(parts) == 2 || parts[1] > 0:
		return canonical([]int{0, parts[1] + 1})
	default:
		return canonical([]int{0, 0, parts[2] + 1})
	}
}

func tildeUpper(parts []int) string {
	if len(parts) == 1 {
		return canonical([]int{parts[0] + 1})
	}
	return canonical([]int{parts[0], parts[1] + 1})
}

func intersect(a, b versionRange) versionRange {
	return versionRange{lo: tighterLower(a.lo, b.lo), hi: tighterUpper(a.hi, b.hi)}
}

func tighterLower(a, b bound) bound {
	if a.version == "" {
		return b
	}
	if b.version == "" {
		return a
	}
	switch c := semver.Compare(a.version, b.version); {
	case c > 0:
		return a
	case c < 0:
		return b
	}
	return bound{a.version, a.inclusive && b.inclusive}
}

func tighterUpper(a, b bound) bound {
	if a.version == "" {
		return b
	}
	if b.version == "" {
		return a
	}
	switch c := semver.Compare(a.version, b.version); {
	case c < 0:
		return a
	case c > 0:
		return b
	}
	return bound{a.version, a.inclusive && b.inclusive}
}

func (r versionRange) empty() bool {
	if r.lo.version == "" || r.hi.version == "" {
		return false
	}
	c := semver.Compare(r.lo.version, r.hi.version)
	return c > 0 || (c == 0 && !(r.lo.inclusive && r.hi.inclusive))
}

// Compatible reports whether some version satisfies both requirements.
func Compatible(a, b string) (bool, error) {
	ra, err := parseRequirement(a)
	if err != nil {
		return false, err
	}
	rb, err := parseRequirement(b)
	if err != nil {
		return false, err
	}
	return !intersect(ra, rb).empty(), nil
}

// sameRange reports whether two requirements accept exactly the same versions.
func sameRange(a, b string) bool {
	ra, errA := parseRequirement(a)
	rb, errB := parseRequirement(b)
	return errA == nil && errB == nil && ra == rb
}
