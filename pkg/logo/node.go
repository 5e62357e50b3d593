package logo

// Node is one element of a parsed program. The set of node types is closed:
// NumberLiteral, BooleanLiteral, WordLiteral, VariableRef, List and Command.
type Node interface {
	Line() int
	node()
}

// Span records where a node came from.
type Span struct {
	SourceLine int
}

// Line returns the 1-based source line of the node.
func (s Span) Line() int { return s.SourceLine }

// NumberLiteral is an integer or float constant.
type NumberLiteral struct {
	Span
	Value float64
	IsInt bool // true if the source matched the integer grammar
}

// BooleanLiteral is TRUE or FALSE.
type BooleanLiteral struct {
	Span
	Value bool
}

// WordLiteral is a quoted word ("FOO), stored without the quote.
type WordLiteral struct {
	Span
	Value string
}

// VariableRef is :NAME, resolved through the variable store at run time.
type VariableRef struct {
	Span
	Name string
}

// List is a bracketed sequence of nodes.
type List struct {
	Span
	Items []Node
}

// Command is a command word. Desc is nil when no command with that name
// exists; evaluation then fails with ErrUnknownCommand.
type Command struct {
	Span
	Name    string // alias-resolved name
	Literal string // word as written
	Desc    *Descriptor
}

func (*NumberLiteral) node()  {}
func (*BooleanLiteral) node() {}
func (*WordLiteral) node()    {}
func (*VariableRef) node()    {}
func (*List) node()           {}
func (*Command) node()        {}
