package logo

import (
	"context"
	"errors"

	"github.com/antibyte/retroturtle/pkg/logger"
)

// Interpreter evaluates Logo programs against a persistent variable store
// and turtle. It is not safe for concurrent use; hosts that share one
// instance between goroutines must serialise calls themselves.
type Interpreter struct {
	vars   *Variables
	turtle *Turtle
	events *Emitter

	stepLimit int // 0 = unlimited
	steps     int // command invocations during the current Run

	ctx context.Context // cancellation for the current Run
}

// Option configures an Interpreter.
type Option func(*Interpreter)

// WithStepLimit caps the number of command invocations per Run.
func WithStepLimit(n int) Option {
	return func(in *Interpreter) {
		if n > 0 {
			in.stepLimit = n
		}
	}
}

// WithEmitter makes the interpreter emit through an existing emitter.
func WithEmitter(e *Emitter) Option {
	return func(in *Interpreter) {
		if e != nil {
			in.events = e
		}
	}
}

// New creates an interpreter with an empty variable store and a turtle at
// home.
func New(opts ...Option) *Interpreter {
	in := &Interpreter{
		vars:   NewVariables(),
		events: NewEmitter(),
	}
	for _, opt := range opts {
		opt(in)
	}
	in.turtle = NewTurtle(in.events)
	return in
}

// On registers an event handler.
func (in *Interpreter) On(name EventName, fn Handler) {
	in.events.On(name, fn)
}

// Events returns the interpreter's emitter.
func (in *Interpreter) Events() *Emitter { return in.events }

// Turtle returns the turtle driven by this interpreter.
func (in *Interpreter) Turtle() *Turtle { return in.turtle }

// Variables returns the variable store.
func (in *Interpreter) Variables() *Variables { return in.vars }

// Steps returns the number of commands invoked by the last Run.
func (in *Interpreter) Steps() int { return in.steps }

// RunInput tokenizes, parses and runs one program. Failures are reported
// through the error event and the logger before being returned.
func (in *Interpreter) RunInput(text string) error {
	return in.RunInputContext(context.Background(), text)
}

// RunInputContext is RunInput with cancellation. The context is checked
// before every command, so a cancelled run stops between commands.
func (in *Interpreter) RunInputContext(ctx context.Context, text string) error {
	_, err := in.RunContext(ctx, Parse(Tokenize(text)))
	return err
}

// Run evaluates a parsed program front to back. The first failure stops
// the whole program.
func (in *Interpreter) Run(program []Node) (Value, error) {
	return in.RunContext(context.Background(), program)
}

// RunContext is Run with cancellation.
func (in *Interpreter) RunContext(ctx context.Context, program []Node) (Value, error) {
	in.steps = 0
	in.ctx = ctx
	defer func() { in.ctx = nil }()

	v, err := in.runStream(&stream{nodes: program})
	if err != nil {
		in.report(err)
	}
	return v, err
}

// stream is a program sequence plus a cursor. Commands consume their
// arguments by advancing the cursor of the stream they were found in.
type stream struct {
	nodes []Node
	pos   int
}

func (s *stream) next() (Node, bool) {
	if s.pos >= len(s.nodes) {
		return nil, false
	}
	n := s.nodes[s.pos]
	s.pos++
	return n, true
}

func (s *stream) done() bool {
	return s.pos >= len(s.nodes)
}

// runStream evaluates every remaining node and returns the last value.
func (in *Interpreter) runStream(s *stream) (Value, error) {
	last := None
	for !s.done() {
		n, _ := s.next()
		v, err := in.eval(n, s)
		if err != nil {
			return last, err
		}
		last = v
	}
	return last, nil
}

// eval evaluates a single node. Commands pull their arguments from s.
func (in *Interpreter) eval(n Node, s *stream) (Value, error) {
	switch n := n.(type) {
	case *NumberLiteral:
		return NumberValue(n.Value), nil
	case *BooleanLiteral:
		return BoolValue(n.Value), nil
	case *WordLiteral:
		return WordValue(n.Value), nil
	case *VariableRef:
		v, _ := in.vars.Get(n.Name)
		return v, nil
	case *List:
		return ListValue(n.Items), nil
	case *Command:
		return in.call(n, s)
	default:
		return None, nil
	}
}

// call resolves a command's arguments from s and invokes its behaviour.
func (in *Interpreter) call(cmd *Command, s *stream) (Value, error) {
	if cmd.Desc == nil {
		return None, newError(ErrCategorySyntax, ErrUnknownCommand, cmd.Literal, cmd.Line())
	}
	if in.stepLimit > 0 && in.steps >= in.stepLimit {
		return None, newError(ErrCategoryRuntime, ErrStepLimit, cmd.Name, cmd.Line()).withDetail("limit %d", in.stepLimit)
	}
	if in.ctx != nil {
		if err := in.ctx.Err(); err != nil {
			return None, newError(ErrCategoryRuntime, ErrCancelled, cmd.Name, cmd.Line()).withDetail("%v", err)
		}
	}
	in.steps++

	desc := cmd.Desc
	args := make([]Value, 0, len(desc.Args))
	for i, kind := range desc.Args {
		argNode, ok := s.next()
		if !ok {
			return None, newError(ErrCategorySyntax, ErrMissingArgument, cmd.Name, cmd.Line()).
				withDetail("expected %d, got %d", len(desc.Args), i)
		}
		v, err := in.eval(argNode, s)
		if err != nil {
			return None, err
		}
		if !kind.accepts(v) {
			return None, newError(ErrCategoryRuntime, ErrTypeMismatch, cmd.Name, argNode.Line()).
				withDetail("argument %d must be a %s, got %s", i+1, kind, v.Kind)
		}
		args = append(args, v)
	}

	ctx := &Context{Vars: in.vars, Turtle: in.turtle, Events: in.events, Line: cmd.Line(), interp: in}
	return desc.Fn(ctx, args)
}

// report surfaces a failure through the observation channel.
func (in *Interpreter) report(err error) {
	line := 0
	var le *Error
	if errors.As(err, &le) {
		line = le.Line
	}
	logger.Warn(logger.AreaInterpreter, "program halted: %v", err)
	in.events.Emit(Event{Name: EventError, Text: err.Error(), Line: line})
}

// Context is handed to every command behaviour.
type Context struct {
	Vars   *Variables
	Turtle *Turtle
	Events *Emitter
	Line   int // source line of the command being executed

	interp *Interpreter
}

// RunBlock evaluates the contents of a list on a fresh cursor, leaving the
// list itself untouched so it can be run again.
func (c *Context) RunBlock(items []Node) (Value, error) {
	return c.interp.runStream(&stream{nodes: items})
}
