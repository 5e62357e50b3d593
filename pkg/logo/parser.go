package logo

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/antibyte/retroturtle/pkg/logger"
)

// Compiled once; integer must be tried before float.
var (
	integerPattern = regexp.MustCompile(`^[+-]?[0-9]+$`)
	floatPattern   = regexp.MustCompile(`^[+-]?([0-9]+\.[0-9]*|\.[0-9]+|[0-9]+)([eE][+-]?[0-9]+)?$`)
)

// aliases maps abbreviations and alternate spellings to command names.
var aliases = map[string]string{
	"CS":          "CLEARSCREEN",
	"FD":          "FORWARD",
	"BK":          "BACK",
	"PU":          "PENUP",
	"PD":          "PENDOWN",
	"RT":          "RIGHT",
	"LT":          "LEFT",
	"ST":          "SHOWTURTLE",
	"HT":          "HIDETURTLE",
	"SETH":        "SETHEADING",
	"SETPENCOLOR": "SETPENCOLOUR",
}

// ResolveAlias returns the canonical command name for a word.
func ResolveAlias(name string) string {
	name = strings.ToUpper(name)
	if canonical, ok := aliases[name]; ok {
		return canonical
	}
	return name
}

type parser struct {
	words []Word
	pos   int
}

// Parse turns lexed words into a program tree. Nested lists share the
// parser's cursor with their caller. A '[' without a matching ']' yields
// the partial list collected up to the end of input.
func Parse(words []Word) []Node {
	p := &parser{words: words}
	var program []Node
	for p.pos < len(p.words) {
		nodes, closed := p.parseSequence()
		program = append(program, nodes...)
		if closed {
			logger.Debug(logger.AreaInterpreter, "ignoring unmatched ] in line %d", p.words[p.pos-1].Line)
		}
	}
	return program
}

// parseSequence collects nodes until ']' or end of input. closed reports
// whether a ']' ended the sequence.
func (p *parser) parseSequence() (nodes []Node, closed bool) {
	nodes = make([]Node, 0, 8)
	for p.pos < len(p.words) {
		w := p.words[p.pos]
		p.pos++
		switch w.Text {
		case "[":
			items, ok := p.parseSequence()
			if !ok {
				logger.Debug(logger.AreaInterpreter, "unterminated list opened in line %d", w.Line)
			}
			nodes = append(nodes, &List{Span: Span{w.Line}, Items: items})
		case "]":
			return nodes, true
		default:
			nodes = append(nodes, classify(w))
		}
	}
	return nodes, false
}

// classify determines the node type for a single non-bracket word.
func classify(w Word) Node {
	span := Span{w.Line}
	text := w.Text
	switch {
	case strings.HasPrefix(text, ":"):
		return &VariableRef{Span: span, Name: strings.ToUpper(text[1:])}
	case strings.HasPrefix(text, `"`):
		return &WordLiteral{Span: span, Value: text[1:]}
	case integerPattern.MatchString(text):
		if v, err := strconv.ParseFloat(text, 64); err == nil {
			return &NumberLiteral{Span: span, Value: v, IsInt: true}
		}
	case floatPattern.MatchString(text):
		if v, err := strconv.ParseFloat(text, 64); err == nil {
			return &NumberLiteral{Span: span, Value: v}
		}
	case strings.EqualFold(text, "true"):
		return &BooleanLiteral{Span: span, Value: true}
	case strings.EqualFold(text, "false"):
		return &BooleanLiteral{Span: span, Value: false}
	}

	name := ResolveAlias(text)
	return &Command{Span: span, Name: name, Literal: text, Desc: LookupCommand(name)}
}
