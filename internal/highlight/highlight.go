// Package highlight marks case-insensitive matches inside rendered
// transcript text without disturbing the ANSI styling glamour emitted.
package highlight

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

type Result struct {
	Text  string
	Count int
	// Lines holds the zero-based indexes of lines containing at least
	// one match, for jump navigation in the viewport.
	Lines []int
}

// Apply wraps every occurrence of query in mark(). Escape sequences are
// passed through untouched, so a match split visually by styling is
// still found in the visible text between sequences.
func Apply(text, query string, mark func(string) string) Result {
	query = strings.TrimSpace(query)
	if query == "" {
		return Result{Text: text}
	}
	if mark == nil {
		mark = func(s string) string { return s }
	}

	var out strings.Builder
	out.Grow(len(text))
	res := Result{}

	for lineNo, line := range strings.Split(text, "\n") {
		if lineNo > 0 {
			out.WriteByte('\n')
		}
		n := markLine(&out, line, query, mark)
		if n > 0 {
			res.Count += n
			res.Lines = append(res.Lines, lineNo)
		}
	}
	res.Text = out.String()
	return res
}

// markLine highlights matches in one line, treating ANSI CSI sequences
// as invisible. Returns the number of matches.
func markLine(out *strings.Builder, line, query string, mark func(string) string) int {
	total := 0
	for len(line) > 0 {
		esc := strings.IndexByte(line, 0x1b)
		if esc < 0 {
			total += markPlain(out, line, query, mark)
			break
		}
		total += markPlain(out, line[:esc], query, mark)
		seqEnd := escapeEnd(line[esc:])
		out.WriteString(line[esc : esc+seqEnd])
		line = line[esc+seqEnd:]
	}
	return total
}

// escapeEnd returns the length of the escape sequence starting at s[0].
// Only CSI sequences (ESC '[' ... final byte in @-~) occur in glamour
// output; anything else is treated as a lone escape byte.
func escapeEnd(s string) int {
	if len(s) < 2 || s[1] != '[' {
		return 1
	}
	for i := 2; i < len(s); i++ {
		if s[i] >= '@' && s[i] <= '~' {
			return i + 1
		}
	}
	return len(s)
}

// markPlain scans s rune by rune: lowercasing can change a rune's byte
// length, so offsets found in a lowered copy cannot be used to slice the
// original text.
func markPlain(out *strings.Builder, s, query string, mark func(string) string) int {
	count := 0
	for {
		i, n := indexFold(s, query)
		if i < 0 {
			out.WriteString(s)
			return count
		}
		out.WriteString(s[:i])
		out.WriteString(mark(s[i : i+n]))
		s = s[i+n:]
		count++
	}
}

// indexFold returns the byte offset and matched length of the first
// case-insensitive occurrence of query in s, or (-1, 0).
func indexFold(s, query string) (int, int) {
	for i := range s {
		if n, ok := foldPrefix(s[i:], query); ok {
			return i, n
		}
	}
	return -1, 0
}

// foldPrefix reports whether s starts with a case-insensitive match of
// query, and how many bytes of s that match spans.
func foldPrefix(s, query string) (int, bool) {
	n := 0
	for _, qr := range query {
		sr, size := utf8.DecodeRuneInString(s[n:])
		if size == 0 {
			return 0, false
		}
		if sr != qr && unicode.ToLower(sr) != unicode.ToLower(qr) {
			return 0, false
		}
		n += size
	}
	return n, true
}
