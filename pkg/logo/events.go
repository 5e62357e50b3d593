package logo

// EventName identifies a notification emitted by the interpreter.
type EventName string

const (
	EventPathStart     EventName = "path.start"      // X, Y, Color
	EventPathDelta     EventName = "path.delta"      // DX, DY
	EventPathEnd       EventName = "path.end"        // no payload
	EventPathRemoveAll EventName = "path.remove_all" // no payload
	EventTurtleChange  EventName = "turtle.change"   // Turtle
	EventPrint         EventName = "print"           // Text, Line
	EventError         EventName = "error"           // Text, Line
)

// Event is the payload passed to handlers. Only the fields listed next to
// the event name are meaningful.
type Event struct {
	Name   EventName
	X, Y   float64
	DX, DY float64
	Color  string
	Turtle TurtleState
	Text   string
	Line   int
}

// Handler receives events.
type Handler func(Event)

// Emitter fans events out to registered handlers, synchronously and in
// registration order.
type Emitter struct {
	handlers map[EventName][]Handler
}

// NewEmitter creates an emitter without handlers.
func NewEmitter() *Emitter {
	return &Emitter{handlers: make(map[EventName][]Handler)}
}

// On registers fn for events named name.
func (e *Emitter) On(name EventName, fn Handler) {
	if fn == nil {
		return
	}
	e.handlers[name] = append(e.handlers[name], fn)
}

// OnAll registers fn for every event the interpreter emits.
func (e *Emitter) OnAll(fn Handler) {
	for _, name := range AllEvents() {
		e.On(name, fn)
	}
}

// Emit delivers ev to the handlers registered for ev.Name.
func (e *Emitter) Emit(ev Event) {
	for _, fn := range e.handlers[ev.Name] {
		fn(ev)
	}
}

// AllEvents lists the event names in a stable order.
func AllEvents() []EventName {
	return []EventName{
		EventPathStart, EventPathDelta, EventPathEnd, EventPathRemoveAll,
		EventTurtleChange, EventPrint, EventError,
	}
}
