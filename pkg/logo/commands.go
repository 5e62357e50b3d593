package logo

import (
	"math"
	"sort"
)

// ArgKind describes the shape a command expects in one argument slot.
type ArgKind int

const (
	ArgAny ArgKind = iota
	ArgNumber
	ArgList
	ArgWord
)

func (k ArgKind) String() string {
	switch k {
	case ArgNumber:
		return "number"
	case ArgList:
		return "list"
	case ArgWord:
		return "word"
	default:
		return "value"
	}
}

// accepts checks the shape of an evaluated argument. Numbers are not
// checked here; non-numeric operands become NaN inside the behaviour.
func (k ArgKind) accepts(v Value) bool {
	switch k {
	case ArgList:
		return v.Kind == KindList
	case ArgWord:
		return v.Kind == KindWord
	default:
		return true
	}
}

// CommandFunc is the behaviour of a command.
type CommandFunc func(ctx *Context, args []Value) (Value, error)

// Descriptor defines one command: its name, the number and shape of the
// arguments it consumes, and its behaviour.
type Descriptor struct {
	Name string
	Args []ArgKind
	Fn   CommandFunc
}

var commands = make(map[string]*Descriptor)

func register(name string, args []ArgKind, fn CommandFunc) {
	commands[name] = &Descriptor{Name: name, Args: args, Fn: fn}
}

// LookupCommand returns the descriptor for a canonical command name, or nil.
func LookupCommand(name string) *Descriptor {
	return commands[name]
}

// CommandNames lists all known commands in sorted order.
func CommandNames() []string {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func init() {
	num := []ArgKind{ArgNumber}
	num2 := []ArgKind{ArgNumber, ArgNumber}

	// Control
	register("REPEAT", []ArgKind{ArgNumber, ArgList}, cmdRepeat)

	// Variables and output
	register("MAKE", []ArgKind{ArgWord, ArgAny}, cmdMake)
	register("PRINT", []ArgKind{ArgAny}, cmdPrint)

	// Arithmetic
	register("SUM", num2, arith(func(a, b float64) float64 { return a + b }))
	register("DIFFERENCE", num2, arith(func(a, b float64) float64 { return a - b }))
	register("PRODUCT", num2, arith(func(a, b float64) float64 { return a * b }))
	register("QUOTIENT", num2, arith(func(a, b float64) float64 { return a / b }))
	register("MINUS", num, func(_ *Context, args []Value) (Value, error) {
		return NumberValue(-args[0].Number()), nil
	})

	// Turtle motion
	register("FORWARD", num, turtleNum((*Turtle).Forward))
	register("BACK", num, turtleNum((*Turtle).Back))
	register("LEFT", num, turtleNum((*Turtle).Left))
	register("RIGHT", num, turtleNum((*Turtle).Right))
	register("SETHEADING", num, turtleNum((*Turtle).SetHeading))
	register("SETX", num, turtleNum((*Turtle).SetX))
	register("SETY", num, turtleNum((*Turtle).SetY))
	register("SETXY", num2, func(ctx *Context, args []Value) (Value, error) {
		ctx.Turtle.SetXY(args[0].Number(), args[1].Number())
		return None, nil
	})
	register("HOME", nil, turtleAction((*Turtle).Home))

	// Pen and screen
	register("PENUP", nil, turtleAction((*Turtle).PenUp))
	register("PENDOWN", nil, turtleAction((*Turtle).PenDown))
	register("SETPENCOLOUR", num, cmdSetPenColour)
	register("SHOWTURTLE", nil, turtleAction((*Turtle).Show))
	register("HIDETURTLE", nil, turtleAction((*Turtle).Hide))
	register("CLEAN", nil, turtleAction((*Turtle).Clean))
	register("CLEARSCREEN", nil, turtleAction((*Turtle).ClearScreen))

	// Reporters
	register("XCOR", nil, func(ctx *Context, _ []Value) (Value, error) {
		return NumberValue(ctx.Turtle.X()), nil
	})
	register("YCOR", nil, func(ctx *Context, _ []Value) (Value, error) {
		return NumberValue(ctx.Turtle.Y()), nil
	})
	register("HEADING", nil, func(ctx *Context, _ []Value) (Value, error) {
		return NumberValue(ctx.Turtle.Heading()), nil
	})
}

// cmdRepeat runs the block count times; the result is the value of the
// last statement of the final iteration.
func cmdRepeat(ctx *Context, args []Value) (Value, error) {
	count := math.Trunc(args[0].Number())
	block := args[1].List
	last := None
	for i := 0; float64(i) < count; i++ {
		v, err := ctx.RunBlock(block)
		if err != nil {
			return None, err
		}
		last = v
	}
	return last, nil
}

func cmdMake(ctx *Context, args []Value) (Value, error) {
	ctx.Vars.Set(args[0].Word, args[1])
	return args[1], nil
}

func cmdPrint(ctx *Context, args []Value) (Value, error) {
	ctx.Events.Emit(Event{Name: EventPrint, Text: args[0].Text(), Line: ctx.Line})
	return None, nil
}

func cmdSetPenColour(ctx *Context, args []Value) (Value, error) {
	idx := args[0].Number()
	if math.IsNaN(idx) || idx < 0 || idx >= float64(len(Palette)) {
		return None, nil
	}
	ctx.Turtle.SetPenColour(int(idx))
	return None, nil
}

func arith(op func(a, b float64) float64) CommandFunc {
	return func(_ *Context, args []Value) (Value, error) {
		return NumberValue(op(args[0].Number(), args[1].Number())), nil
	}
}

func turtleNum(fn func(*Turtle, float64)) CommandFunc {
	return func(ctx *Context, args []Value) (Value, error) {
		fn(ctx.Turtle, args[0].Number())
		return None, nil
	}
}

func turtleAction(fn func(*Turtle)) CommandFunc {
	return func(ctx *Context, _ []Value) (Value, error) {
		fn(ctx.Turtle)
		return None, nil
	}
}
