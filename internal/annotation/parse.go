package annotation

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// ParseError describes malformed annotation text. Parse still returns
// every directive it managed to read before the error.
type ParseError struct {
	Input  string
	Offset int
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed annotation %q at offset %d: %s", e.Input, e.Offset, e.Reason)
}

type item struct {
	text   string
	offset int
}

// Parse reads a comma-separated directive list. A directive is a bare key
// or key=value; values may be double-quoted to carry literal commas.
// features, hardware and deps take list values: bare items that follow them
// are appended to the list until a key=value item or a build flag appears.
func Parse(raw string) (Annotation, error) {
	raw = norm.NFC.String(raw)
	items, perr := splitItems(raw)

	var out []Directive
	for _, it := range items {
		text := strings.TrimSpace(it.text)
		if text == "" {
			continue
		}
		eq := indexUnquoted(text, '=')
		if eq < 0 {
			key := normalizeKey(text)
			if strings.ContainsAny(text, "\" \t") {
				return Annotation{directives: out}, &ParseError{Input: raw, Offset: it.offset, Reason: fmt.Sprintf("invalid directive %q", text)}
			}
			if n := len(out); n > 0 && isListKey(out[n-1].Key) && out[n-1].HasValue && !stopsList(key) {
				out[n-1].Value = joinList(out[n-1].Value, text)
				continue
			}
			out = append(out, Directive{Key: key, Raw: text})
			continue
		}
		rawKey := strings.TrimSpace(text[:eq])
		if rawKey == "" {
			return Annotation{directives: out}, &ParseError{Input: raw, Offset: it.offset, Reason: "missing key before '='"}
		}
		if strings.ContainsAny(rawKey, "\" \t") {
			return Annotation{directives: out}, &ParseError{Input: raw, Offset: it.offset, Reason: fmt.Sprintf("invalid directive key %q", rawKey)}
		}
		value := unquote(strings.TrimSpace(text[eq+1:]))
		out = append(out, Directive{Key: normalizeKey(rawKey), Raw: rawKey, Value: value, HasValue: true})
	}
	if perr != nil {
		return Annotation{directives: out}, perr
	}
	return Annotation{directives: out}, nil
}

// splitItems splits on commas outside double quotes.
func splitItems(raw string) ([]item, *ParseError) {
	var (
		items   []item
		start   int
		inQuote bool
		quoteAt int
	)
	for i := 0; i < len(raw); i++ {
		switch raw[i] {
		case '"':
			if !inQuote {
				quoteAt = i
			}
			inQuote = !inQuote
		case ',':
			if inQuote {
				continue
			}
			items = append(items, item{text: raw[start:i], offset: start})
			start = i + 1
		}
	}
	if inQuote {
		// drop the unterminated item, keep what came before it
		return items, &ParseError{Input: raw, Offset: quoteAt, Reason: "unterminated quote"}
	}
	items = append(items, item{text: raw[start:], offset: start})
	return items, nil
}

func indexUnquoted(s string, ch byte) int {
	inQuote := false
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"':
			inQuote = !inQuote
		case ch:
			if !inQuote {
				return i
			}
		}
	}
	return -1
}

func unquote(v string) string {
	if len(v) >= 2 && v[0] == '"' && v[len(v)-1] == '"' {
		return v[1 : len(v)-1]
	}
	return v
}

func joinList(value, item string) string {
	if value == "" {
		return item
	}
	return value + "," + item
}
