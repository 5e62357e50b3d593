package logo

import "math"

// Palette holds the sixteen pen colours addressable by SETPENCOLOUR.
var Palette = [16]string{
	"black", "blue", "green", "cyan",
	"red", "magenta", "yellow", "white",
	"brown", "tan", "forest", "aqua",
	"salmon", "purple", "orange", "grey",
}

// DefaultColor is the pen colour of a fresh turtle.
const DefaultColor = "black"

// TurtleState is a snapshot of the turtle, as sent with turtle.change.
type TurtleState struct {
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Heading float64 `json:"heading"`
	Drawing bool    `json:"drawing"`
	Color   string  `json:"color"`
	Visible bool    `json:"visible"`
}

// Turtle is the cursor state machine. Heading 0 points along +Y and grows
// clockwise in degrees. It never draws; it emits path and turtle events.
type Turtle struct {
	x, y    float64
	heading float64
	drawing bool
	color   string
	visible bool

	events *Emitter
}

// NewTurtle creates a turtle at home with the pen down.
func NewTurtle(events *Emitter) *Turtle {
	if events == nil {
		events = NewEmitter()
	}
	return &Turtle{color: DefaultColor, drawing: true, visible: true, events: events}
}

// State returns a snapshot of the turtle.
func (t *Turtle) State() TurtleState {
	return TurtleState{X: t.x, Y: t.y, Heading: t.heading, Drawing: t.drawing, Color: t.color, Visible: t.visible}
}

// X returns the horizontal position.
func (t *Turtle) X() float64 { return t.x }

// Y returns the vertical position.
func (t *Turtle) Y() float64 { return t.y }

// Heading returns the heading in degrees, in [0, 360).
func (t *Turtle) Heading() float64 { return t.heading }

// Drawing reports whether the pen is down.
func (t *Turtle) Drawing() bool { return t.drawing }

// Color returns the pen colour name.
func (t *Turtle) Color() string { return t.color }

// Visible reports whether the turtle glyph is shown.
func (t *Turtle) Visible() bool { return t.visible }

// Sync announces the current state, e.g. to a renderer that just attached.
func (t *Turtle) Sync() {
	if t.drawing {
		t.startPath()
	}
	t.changed()
}

// Forward moves d units along the heading.
func (t *Turtle) Forward(d float64) {
	rad := t.heading * math.Pi / 180
	t.moveBy(round(d*math.Sin(rad)), round(d*math.Cos(rad)))
}

// Back moves d units against the heading.
func (t *Turtle) Back(d float64) {
	t.Forward(-d)
}

// Left turns counterclockwise by a degrees.
func (t *Turtle) Left(a float64) {
	t.SetHeading(t.heading - a)
}

// Right turns clockwise by a degrees.
func (t *Turtle) Right(a float64) {
	t.SetHeading(t.heading + a)
}

// SetHeading sets an absolute heading, normalised into [0, 360).
func (t *Turtle) SetHeading(h float64) {
	if !finite(h) {
		return
	}
	h = math.Mod(h, 360)
	if h < 0 {
		h += 360
	}
	t.heading = round(h)
	t.changed()
}

// SetX moves horizontally to x.
func (t *Turtle) SetX(x float64) {
	t.SetXY(x, t.y)
}

// SetY moves vertically to y.
func (t *Turtle) SetY(y float64) {
	t.SetXY(t.x, y)
}

// SetXY moves to (x, y). Nothing happens if the turtle is already there.
func (t *Turtle) SetXY(x, y float64) {
	if !finite(x) || !finite(y) {
		return
	}
	t.moveBy(round(x-t.x), round(y-t.y))
}

// Home moves to the origin and resets the heading.
func (t *Turtle) Home() {
	if t.x == 0 && t.y == 0 && t.heading == 0 {
		return
	}
	if t.x != 0 || t.y != 0 {
		if t.drawing {
			t.events.Emit(Event{Name: EventPathDelta, DX: -t.x, DY: -t.y})
		}
		t.x, t.y = 0, 0
	}
	t.heading = 0
	t.changed()
}

// PenUp lifts the pen, closing the current path.
func (t *Turtle) PenUp() {
	if !t.drawing {
		return
	}
	t.drawing = false
	t.events.Emit(Event{Name: EventPathEnd})
	t.changed()
}

// PenDown lowers the pen and opens a new path at the current position.
func (t *Turtle) PenDown() {
	if t.drawing {
		return
	}
	t.drawing = true
	t.startPath()
	t.changed()
}

// SetPenColour selects a palette colour. Indices outside the palette are
// ignored.
func (t *Turtle) SetPenColour(index int) {
	if index < 0 || index >= len(Palette) {
		return
	}
	color := Palette[index]
	if color == t.color {
		return
	}
	if t.drawing {
		t.events.Emit(Event{Name: EventPathEnd})
	}
	t.color = color
	if t.drawing {
		t.startPath()
	}
	t.changed()
}

// Show makes the turtle visible.
func (t *Turtle) Show() {
	if t.visible {
		return
	}
	t.visible = true
	t.changed()
}

// Hide makes the turtle invisible.
func (t *Turtle) Hide() {
	if !t.visible {
		return
	}
	t.visible = false
	t.changed()
}

// Clean removes all drawn paths without moving the turtle.
func (t *Turtle) Clean() {
	t.events.Emit(Event{Name: EventPathRemoveAll})
	if t.drawing {
		t.startPath()
	}
}

// ClearScreen is Home followed by Clean.
func (t *Turtle) ClearScreen() {
	t.Home()
	t.Clean()
}

func (t *Turtle) moveBy(dx, dy float64) {
	if dx == 0 && dy == 0 {
		return
	}
	// positions stay finite
	x, y := round(t.x+dx), round(t.y+dy)
	if !finite(dx) || !finite(dy) || !finite(x) || !finite(y) {
		return
	}
	if t.drawing {
		t.events.Emit(Event{Name: EventPathDelta, DX: dx, DY: dy})
	}
	t.x, t.y = x, y
	t.changed()
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func (t *Turtle) startPath() {
	t.events.Emit(Event{Name: EventPathStart, X: t.x, Y: t.y, Color: t.color})
}

func (t *Turtle) changed() {
	t.events.Emit(Event{Name: EventTurtleChange, Turtle: t.State()})
}

// round trims floating point noise from trigonometry.
func round(v float64) float64 {
	const scale = 1e9
	if !finite(v) || math.Abs(v) > 1e15 {
		return v
	}
	r := math.Round(v*scale) / scale
	if r == 0 {
		return 0 // no negative zero
	}
	return r
}
