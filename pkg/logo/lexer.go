// Package logo implements a small Logo interpreter driving a turtle.
package logo

import (
	"strconv"
	"strings"
)

// Word is a single lexed word together with its 1-based source line.
type Word struct {
	Line int
	Text string
}

func (w Word) String() string {
	return strconv.Itoa(w.Line) + ":" + w.Text
}

// Tokenize splits program text into uppercased words. Comments run from the
// first unescaped ';' to the end of the line. Brackets always become words
// of their own; nesting is resolved by the parser.
func Tokenize(text string) []Word {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	lines := strings.Split(text, "\n")

	words := make([]Word, 0, len(lines)*4)
	for i, line := range lines {
		line = stripComment(line)
		line = strings.ReplaceAll(line, "[", " [ ")
		line = strings.ReplaceAll(line, "]", " ] ")
		for _, f := range strings.Fields(line) {
			words = append(words, Word{Line: i + 1, Text: strings.ToUpper(f)})
		}
	}
	return words
}

// stripComment cuts the line at the first ';' that is not preceded by a
// backslash. Escaped semicolons are kept without their backslash.
func stripComment(line string) string {
	if !strings.Contains(line, ";") {
		return line
	}
	var sb strings.Builder
	sb.Grow(len(line))
	for i := 0; i < len(line); i++ {
		ch := line[i]
		if ch == '\\' && i+1 < len(line) && line[i+1] == ';' {
			sb.WriteByte(';')
			i++
			continue
		}
		if ch == ';' {
			break
		}
		sb.WriteByte(ch)
	}
	return sb.String()
}
