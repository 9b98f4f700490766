package fragment

import (
	"iter"
	"strings"

	"fencecheck/internal/source"
)

// DefaultLanguage is the fence tag picked up when none is configured.
const DefaultLanguage = "rust"

// Extractor finds fenced blocks tagged with one language.
type Extractor struct {
	Language string
}

// NewExtractor returns an extractor for lang (DefaultLanguage when empty).
func NewExtractor(lang string) *Extractor {
	lang = strings.TrimSpace(lang)
	if lang == "" {
		lang = DefaultLanguage
	}
	return &Extractor{Language: lang}
}

// Extract is a shorthand for NewExtractor(DefaultLanguage).Extract(page).
func Extract(page source.Page) iter.Seq[CodeFragment] {
	return NewExtractor(DefaultLanguage).Extract(page)
}

// Extract returns a lazy sequence of the page's matching blocks.
// Each range over the sequence rescans the page from the top.
func (e *Extractor) Extract(page source.Page) iter.Seq[CodeFragment] {
	lang := e.Language
	if lang == "" {
		lang = DefaultLanguage
	}
	stem := page.Stem()
	return func(yield func(CodeFragment) bool) {
		sc := scanner{text: page.Text}
		index := 0
		for {
			line, lineNo, ok := sc.next()
			if !ok {
				return
			}
			open, isFence := parseOpenFence(line)
			if !isFence {
				continue
			}
			body, closed := sc.readBody(open)
			if !strings.EqualFold(open.lang, lang) {
				continue
			}
			index++
			frag := CodeFragment{
				SourceFile:    page.Path,
				Stem:          stem,
				Line:          lineNo,
				Index:         index,
				Lang:          open.lang,
				RawAnnotation: open.annotation,
				RawText:       body,
				Unterminated:  !closed,
			}
			if !yield(frag) {
				return
			}
		}
	}
}

// All collects the sequence into a slice.
func (e *Extractor) All(page source.Page) []CodeFragment {
	var out []CodeFragment
	for f := range e.Extract(page) {
		out = append(out, f)
	}
	return out
}

type fence struct {
	char       byte
	width      int
	indent     int
	lang       string
	annotation string
}

// parseOpenFence recognizes ``` / ~~~ openers with an optional info string.
// Info layout: <lang>[,<annotation>] or <lang> <annotation>.
func parseOpenFence(line string) (fence, bool) {
	trimmed := strings.TrimLeft(line, " \t")
	indent := len(line) - len(trimmed)
	if len(trimmed) < 3 {
		return fence{}, false
	}
	ch := trimmed[0]
	if ch != '`' && ch != '~' {
		return fence{}, false
	}
	width := 0
	for width < len(trimmed) && trimmed[width] == ch {
		width++
	}
	if width < 3 {
		return fence{}, false
	}
	info := strings.TrimSpace(trimmed[width:])
	// backtick fences may not carry backticks in the info string
	if ch == '`' && strings.Contains(info, "`") {
		return fence{}, false
	}
	f := fence{char: ch, width: width, indent: indent}
	if info == "" {
		return f, true
	}
	cut := strings.IndexAny(info, ", \t")
	if cut < 0 {
		f.lang = info
		return f, true
	}
	f.lang = info[:cut]
	f.annotation = strings.TrimSpace(strings.TrimLeft(info[cut:], ", \t"))
	return f, true
}

func isCloseFence(line string, open fence) bool {
	trimmed := strings.TrimLeft(line, " \t")
	width := 0
	for width < len(trimmed) && trimmed[width] == open.char {
		width++
	}
	if width < open.width {
		return false
	}
	return strings.TrimSpace(trimmed[width:]) == ""
}

type scanner struct {
	text string
	pos  int
	line int
}

func (s *scanner) next() (string, int, bool) {
	if s.pos >= len(s.text) {
		return "", 0, false
	}
	rest := s.text[s.pos:]
	end := strings.IndexByte(rest, '\n')
	var line string
	if end < 0 {
		line = rest
		s.pos = len(s.text)
	} else {
		line = rest[:end]
		s.pos += end + 1
	}
	s.line++
	return line, s.line, true
}

// readBody consumes lines up to the matching closing fence.
// The opener's indentation is stripped from every body line.
func (s *scanner) readBody(open fence) (string, bool) {
	var lines []string
	for {
		line, _, ok := s.next()
		if !ok {
			return strings.Join(lines, "\n"), false
		}
		if isCloseFence(line, open) {
			return strings.Join(lines, "\n"), true
		}
		lines = append(lines, stripIndent(line, open.indent))
	}
}

func stripIndent(line string, n int) string {
	i := 0
	for i < n && i < len(line) && (line[i] == ' ' || line[i] == '\t') {
		i++
	}
	return line[i:]
}
