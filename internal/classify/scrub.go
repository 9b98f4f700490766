package classify

import "strings"

// scrub blanks out comments and the contents of string and char literals
// so markers are only matched against code. Newlines are preserved.
func scrub(src string) string {
	var b strings.Builder
	b.Grow(len(src))
	i := 0
	blank := func(s string) {
		for j := 0; j < len(s); j++ {
			if s[j] == '\n' {
				b.WriteByte('\n')
			} else {
				b.WriteByte(' ')
			}
		}
	}
	for i < len(src) {
		c := src[i]
		switch {
		case strings.HasPrefix(src[i:], "//"):
			end := strings.IndexByte(src[i:], '\n')
			if end < 0 {
				end = len(src) - i
			}
			blank(src[i : i+end])
			i += end
		case strings.HasPrefix(src[i:], "/*"):
			end := blockCommentEnd(src, i)
			blank(src[i:end])
			i = end
		case c == 'r' && rawStringStart(src, i) > 0:
			hashes := rawStringStart(src, i) - 1
			end := rawStringEnd(src, i+hashes+2, hashes)
			b.WriteByte('"')
			blank(src[i+1 : end])
			i = end
		case c == '"':
			end := quotedEnd(src, i+1, '"')
			b.WriteByte('"')
			blank(src[i+1 : end])
			i = end
		case c == '\'':
			if end, ok := charLiteralEnd(src, i); ok {
				b.WriteByte('\'')
				blank(src[i+1 : end])
				i = end
				continue
			}
			// lifetime or label
			b.WriteByte(c)
			i++
		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String()
}

// blockCommentEnd handles nesting; unterminated comments run to EOF.
func blockCommentEnd(src string, start int) int {
	depth := 0
	i := start
	for i < len(src) {
		switch {
		case strings.HasPrefix(src[i:], "/*"):
			depth++
			i += 2
		case strings.HasPrefix(src[i:], "*/"):
			depth--
			i += 2
			if depth == 0 {
				return i
			}
		default:
			i++
		}
	}
	return len(src)
}

// rawStringStart returns 1+number of '#' when src[i:] opens r"..." or r#"..."#,
// and 0 otherwise. A preceding identifier character means r is part of a name.
func rawStringStart(src string, i int) int {
	if i > 0 && isIdent(src[i-1]) {
		return 0
	}
	j := i + 1
	for j < len(src) && src[j] == '#' {
		j++
	}
	if j < len(src) && src[j] == '"' {
		return j - i
	}
	return 0
}

func rawStringEnd(src string, from, hashes int) int {
	closing := "\"" + strings.Repeat("#", hashes)
	idx := strings.Index(src[from:], closing)
	if idx < 0 {
		return len(src)
	}
	return from + idx + len(closing)
}

// quotedEnd returns the index just past the closing quote.
func quotedEnd(src string, from int, q byte) int {
	for i := from; i < len(src); i++ {
		switch src[i] {
		case '\\':
			i++
		case q:
			return i + 1
		}
	}
	return len(src)
}

// charLiteralEnd distinguishes 'x' and '\n' from lifetimes like 'a.
func charLiteralEnd(src string, i int) (int, bool) {
	if i+1 >= len(src) {
		return 0, false
	}
	if src[i+1] == '\\' {
		end := quotedEnd(src, i+1, '\'')
		return end, end <= len(src) && src[end-1] == '\''
	}
	// one UTF-8 rune followed by a quote
	for width := 1; width <= 4 && i+1+width < len(src); width++ {
		if src[i+1+width] == '\'' {
			if width > 1 && src[i+1] < 0x80 {
				return 0, false
			}
			return i + 2 + width, true
		}
	}
	return 0, false
}

func isIdent(c byte) bool {
	return c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

// Scrub blanks comments and literal contents, keeping offsets intact.
func Scrub(src string) string { return scrub(src) }
