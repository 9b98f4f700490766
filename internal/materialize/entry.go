package materialize

import (
	"regexp"
	"strings"

	"fencecheck/internal/classify"
)

// EntryKind says which crate root a fragment becomes.
type EntryKind uint8

const (
	EntryBin EntryKind = iota
	EntryLib
)

func (k EntryKind) String() string {
	if k == EntryLib {
		return "lib"
	}
	return "bin"
}

// Path is the crate root relative to the project directory.
func (k EntryKind) Path() string {
	if k == EntryLib {
		return "src/lib.rs"
	}
	return "src/main.rs"
}

// Entry is the generated crate root plus where the fragment body sits in it.
type Entry struct {
	Kind EntryKind
	Code string
	// Offset is the number of generated lines before the first body line.
	Offset int
	// Lines is the number of body lines.
	Lines int
}

// domainLints are crate-level lints per DomainFocused topic.
var domainLints = map[string][]string{
	"crypto": {"#![forbid(unsafe_code)]", "#![deny(unused_must_use)]"},
}

var (
	mainFnRe = regexp.MustCompile(`\bfn\s+main\b`)
	// innerAttrRe matches a one-line crate attribute such as #![no_std].
	innerAttrRe = regexp.MustCompile(`^\s*#!\[.*\]\s*$`)
)

// Wrap builds the crate root for a fragment body.
//
// Hosted and domain code: a body with `fn main` is a binary as written; a
// body with other functions is a library; bare statements are wrapped in
// `fn main`. Freestanding code gets #![no_std]; `#[entry]` bodies become
// no_main binaries with a panic handler, anything else a library wrapped
// in `pub fn example_code`. Domain topics add their lints. Leading crate
// attributes of a wrapped body are hoisted above the wrapper.
func Wrap(body string, ctx classify.ExecutionContext) Entry {
	body = strings.TrimRight(body, "\n")
	code := classify.Scrub(body)
	lines := 0
	if body != "" {
		lines = strings.Count(body, "\n") + 1
	}
	hasMain := mainFnRe.MatchString(code)
	hasEntry := strings.Contains(code, "#[entry]") || strings.Contains(code, "#[cortex_m_rt::entry]")
	hasFn := strings.Contains(code, "fn ")

	var head, tail []string
	kind := EntryBin
	wrapFn := ""

	if classify.IsFreestanding(ctx) {
		if !strings.Contains(code, "#![no_std]") {
			head = append(head, "#![no_std]")
		}
		switch {
		case hasEntry:
			if !strings.Contains(code, "#![no_main]") {
				head = append(head, "#![no_main]")
			}
			if !strings.Contains(code, "#[panic_handler]") && !strings.Contains(code, "panic_halt") {
				tail = append(tail, "", "use panic_halt as _;")
			}
		case hasFn:
			kind = EntryLib
		default:
			kind = EntryLib
			wrapFn = "pub fn example_code() {"
		}
	} else {
		switch {
		case hasMain:
		case hasFn:
			kind = EntryLib
		default:
			wrapFn = "fn main() {"
		}
	}
	if d, ok := ctx.(classify.DomainFocused); ok {
		for _, lint := range domainLints[d.Topic] {
			if !strings.Contains(code, lint) {
				head = append(head, lint)
			}
		}
	}
	if kind == EntryLib {
		head = append(head, "#![allow(dead_code, unused_imports, unused_variables)]")
	}
	if wrapFn != "" {
		var hoisted []string
		hoisted, body = hoistCrateAttrs(body)
		head = append(head, hoisted...)
		head = append(head, wrapFn)
		tail = append([]string{"}"}, tail...)
	}

	var b strings.Builder
	for _, h := range head {
		b.WriteString(h)
		b.WriteByte('\n')
	}
	b.WriteString(body)
	b.WriteByte('\n')
	for _, t := range tail {
		b.WriteString(t)
		b.WriteByte('\n')
	}
	return Entry{Kind: kind, Code: b.String(), Offset: len(head), Lines: lines}
}

// hoistCrateAttrs takes the leading #![...] lines out of body. They are
// blanked in place so body lines keep their numbers.
func hoistCrateAttrs(body string) (attrs []string, rest string) {
	lines := strings.Split(body, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "" || strings.HasPrefix(trimmed, "//"):
			continue
		case innerAttrRe.MatchString(line):
			attrs = append(attrs, trimmed)
			lines[i] = ""
			continue
		}
		break
	}
	return attrs, strings.Join(lines, "\n")
}
