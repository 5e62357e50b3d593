package terminal

import (
	"github.com/antibyte/retroturtle/pkg/logo"
	"github.com/antibyte/retroturtle/pkg/shared"
)

// eventToMessage translates an interpreter event into its wire form.
func eventToMessage(e logo.Event) (shared.Message, bool) {
	switch e.Name {
	case logo.EventPathStart:
		return shared.Message{Type: shared.MessageTypePath, Command: shared.PathStart, X: e.X, Y: e.Y, Color: e.Color}, true
	case logo.EventPathDelta:
		return shared.Message{Type: shared.MessageTypePath, Command: shared.PathDelta, DX: e.DX, DY: e.DY}, true
	case logo.EventPathEnd:
		return shared.Message{Type: shared.MessageTypePath, Command: shared.PathEnd}, true
	case logo.EventPathRemoveAll:
		return shared.Message{Type: shared.MessageTypeClear}, true
	case logo.EventTurtleChange:
		state := shared.TurtleState(e.Turtle)
		return shared.Message{Type: shared.MessageTypeTurtle, Turtle: &state}, true
	case logo.EventPrint:
		return shared.Message{Type: shared.MessageTypePrint, Content: e.Text, Line: e.Line}, true
	case logo.EventError:
		return shared.Message{Type: shared.MessageTypeError, Content: e.Text, Line: e.Line}, true
	}
	return shared.Message{}, false
}

// bridge forwards every event of in to send.
func bridge(in *logo.Interpreter, send func(shared.Message)) {
	in.Events().OnAll(func(e logo.Event) {
		if msg, ok := eventToMessage(e); ok {
			send(msg)
		}
	})
}
