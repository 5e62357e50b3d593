package logo

import (
	"math"
	"strconv"
	"strings"
)

// Kind identifies the variant held by a Value.
type Kind int

const (
	KindNone Kind = iota // absent, e.g. an undeclared variable
	KindNumber
	KindBool
	KindWord
	KindList
)

func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindBool:
		return "boolean"
	case KindWord:
		return "word"
	case KindList:
		return "list"
	default:
		return "nothing"
	}
}

// Value is the result of evaluating a node.
type Value struct {
	Kind Kind
	Num  float64
	Bool bool
	Word string
	List []Node // unevaluated list contents
}

// None is the absent value.
var None = Value{}

// NumberValue wraps a float.
func NumberValue(n float64) Value { return Value{Kind: KindNumber, Num: n} }

// BoolValue wraps a boolean.
func BoolValue(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// WordValue wraps a word.
func WordValue(s string) Value { return Value{Kind: KindWord, Word: s} }

// ListValue wraps list contents.
func ListValue(items []Node) Value { return Value{Kind: KindList, List: items} }

// IsNone reports whether v is the absent value.
func (v Value) IsNone() bool { return v.Kind == KindNone }

// Number coerces v to a float. Numeric words convert to their number;
// everything else, including the absent value, is NaN.
func (v Value) Number() float64 {
	switch v.Kind {
	case KindNumber:
		return v.Num
	case KindWord:
		// ParseFloat also accepts INF and NAN, which are not Logo numbers
		if f, err := strconv.ParseFloat(v.Word, 64); err == nil && !math.IsInf(f, 0) {
			return f
		}
	}
	return math.NaN()
}

// Text renders v the way PRINT shows it.
func (v Value) Text() string {
	switch v.Kind {
	case KindNumber:
		return formatNumber(v.Num)
	case KindBool:
		if v.Bool {
			return "TRUE"
		}
		return "FALSE"
	case KindWord:
		return v.Word
	case KindList:
		parts := make([]string, 0, len(v.List))
		for _, n := range v.List {
			parts = append(parts, nodeText(n))
		}
		return strings.Join(parts, " ")
	default:
		return ""
	}
}

func (v Value) String() string {
	if v.Kind == KindList {
		return "[" + v.Text() + "]"
	}
	return v.Text()
}

func formatNumber(n float64) string {
	if n == math.Trunc(n) && math.Abs(n) < 1e15 {
		return strconv.FormatFloat(n, 'f', 0, 64)
	}
	return strconv.FormatFloat(n, 'g', -1, 64)
}

// nodeText renders an unevaluated node back into source form.
func nodeText(n Node) string {
	switch n := n.(type) {
	case *NumberLiteral:
		return formatNumber(n.Value)
	case *BooleanLiteral:
		return BoolValue(n.Value).Text()
	case *WordLiteral:
		return `"` + n.Value
	case *VariableRef:
		return ":" + n.Name
	case *List:
		return ListValue(n.Items).String()
	case *Command:
		return n.Literal
	default:
		return ""
	}
}
