package logo

import (
	"encoding/json"
	"math"
	"testing"
)

// recorder captures every event emitted by an interpreter.
type recorder struct {
	events []Event
}

func record(in *Interpreter) *recorder {
	r := &recorder{}
	in.Events().OnAll(func(e Event) { r.events = append(r.events, e) })
	return r
}

func (r *recorder) names() []EventName {
	out := make([]EventName, len(r.events))
	for i, e := range r.events {
		out[i] = e.Name
	}
	return out
}

func (r *recorder) count(name EventName) int {
	n := 0
	for _, e := range r.events {
		if e.Name == name {
			n++
		}
	}
	return n
}

func (r *recorder) reset() { r.events = nil }

func TestSetXY(t *testing.T) {
	in := New()
	run(t, in, `SETXY -100 -200`)
	if x, y := in.Turtle().X(), in.Turtle().Y(); x != -100 || y != -200 {
		t.Errorf("Expected (-100,-200), got (%v,%v)", x, y)
	}
	run(t, in, `SETXY 20 39`)
	if x, y := in.Turtle().X(), in.Turtle().Y(); x != 20 || y != 39 {
		t.Errorf("Expected (20,39), got (%v,%v)", x, y)
	}
}

func TestSetXAndSetY(t *testing.T) {
	in := New()
	run(t, in, `SETX 10 SETY -7`)
	if x, y := in.Turtle().X(), in.Turtle().Y(); x != 10 || y != -7 {
		t.Errorf("Expected (10,-7), got (%v,%v)", x, y)
	}
}

func TestSetXYNoOpWithoutNotification(t *testing.T) {
	in := New()
	run(t, in, `SETXY 5 5`)
	r := record(in)
	run(t, in, `SETXY 5 5 SETX 5 SETY 5`)
	if len(r.events) != 0 {
		t.Errorf("Expected no events, got %v", r.names())
	}
}

func TestHome(t *testing.T) {
	in := New()
	run(t, in, `FD 50 RT 45 FD 10 HOME`)
	tu := in.Turtle()
	if tu.X() != 0 || tu.Y() != 0 || tu.Heading() != 0 {
		t.Errorf("Expected (0,0) heading 0, got (%v,%v) heading %v", tu.X(), tu.Y(), tu.Heading())
	}
}

func TestHomeAtHomeIsSilent(t *testing.T) {
	in := New()
	r := record(in)
	run(t, in, `HOME`)
	if len(r.events) != 0 {
		t.Errorf("Expected no events, got %v", r.names())
	}
}

func TestMovement(t *testing.T) {
	tests := []struct {
		name    string
		program string
		x, y    float64
		heading float64
	}{
		{name: "forward along +Y", program: "FD 10", x: 0, y: 10, heading: 0},
		{name: "right turns clockwise", program: "RT 90 FD 10", x: 10, y: 0, heading: 90},
		{name: "left turns counterclockwise", program: "LT 90 FD 10", x: -10, y: 0, heading: 270},
		{name: "back", program: "BK 10", x: 0, y: -10, heading: 0},
		{name: "heading wraps", program: "RT 450", x: 0, y: 0, heading: 90},
		{name: "negative heading wraps", program: "LT 450", x: 0, y: 0, heading: 270},
		{name: "setheading", program: "SETH 180 FD 5", x: 0, y: -5, heading: 180},
		{name: "square returns home", program: "REPEAT 4 [ FD 100 RT 90 ]", x: 0, y: 0, heading: 0},
		{name: "diagonal", program: "RT 45 FD 10", x: 7.071067812, y: 7.071067812, heading: 45},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			in := New()
			run(t, in, test.program)
			tu := in.Turtle()
			if tu.X() != test.x || tu.Y() != test.y {
				t.Errorf("Expected (%v,%v), got (%v,%v)", test.x, test.y, tu.X(), tu.Y())
			}
			if tu.Heading() != test.heading {
				t.Errorf("Expected heading %v, got %v", test.heading, tu.Heading())
			}
		})
	}
}

func TestForwardEmitsDeltaWhenDrawing(t *testing.T) {
	in := New()
	r := record(in)
	run(t, in, `FD 10`)
	if len(r.events) != 2 || r.events[0].Name != EventPathDelta || r.events[1].Name != EventTurtleChange {
		t.Fatalf("Expected delta then change, got %v", r.names())
	}
	if r.events[0].DX != 0 || r.events[0].DY != 10 {
		t.Errorf("Expected delta (0,10), got (%v,%v)", r.events[0].DX, r.events[0].DY)
	}

	r.reset()
	run(t, in, `PU FD 10`)
	if r.count(EventPathDelta) != 0 {
		t.Errorf("Expected no deltas with the pen up, got %v", r.names())
	}
}

func TestPenDownStartsPathAtCurrentPosition(t *testing.T) {
	in := New()
	run(t, in, `PU SETXY 30 40`)
	r := record(in)
	run(t, in, `PD`)
	if len(r.events) == 0 || r.events[0].Name != EventPathStart {
		t.Fatalf("Expected path.start, got %v", r.names())
	}
	start := r.events[0]
	if start.X != 30 || start.Y != 40 || start.Color != DefaultColor {
		t.Errorf("Expected start at (30,40) in %s, got (%v,%v) in %s", DefaultColor, start.X, start.Y, start.Color)
	}
	if !in.Turtle().Drawing() {
		t.Errorf("Expected pen down")
	}
}

func TestPenUpEndsPath(t *testing.T) {
	in := New()
	r := record(in)
	run(t, in, `PU PU`)
	if r.count(EventPathEnd) != 1 {
		t.Errorf("Expected a single path.end, got %v", r.names())
	}
	if in.Turtle().Drawing() {
		t.Errorf("Expected pen up")
	}
}

func TestSetPenColour(t *testing.T) {
	tests := []struct {
		program  string
		expected string
	}{
		{program: "SETPENCOLOUR 0", expected: "black"},
		{program: "SETPENCOLOUR 1", expected: "blue"},
		{program: "SETPENCOLOR 15", expected: "grey"},
		{program: "SETPENCOLOUR 4 SETPENCOLOUR 16", expected: "red"},
		{program: "SETPENCOLOUR 4 SETPENCOLOUR -1", expected: "red"},
		{program: "SETPENCOLOUR 2.7", expected: "green"},
	}
	for _, test := range tests {
		t.Run(test.program, func(t *testing.T) {
			in := New()
			run(t, in, test.program)
			if got := in.Turtle().Color(); got != test.expected {
				t.Errorf("Expected %s, got %s", test.expected, got)
			}
		})
	}
}

func TestSetPenColourRestartsPath(t *testing.T) {
	in := New()
	run(t, in, `FD 10`)
	r := record(in)
	run(t, in, `SETPENCOLOUR 4`)

	names := r.names()
	if len(names) != 3 || names[0] != EventPathEnd || names[1] != EventPathStart || names[2] != EventTurtleChange {
		t.Fatalf("Expected end, start, change, got %v", names)
	}
	if start := r.events[1]; start.Color != "red" || start.X != 0 || start.Y != 10 {
		t.Errorf("Expected red path at (0,10), got %s at (%v,%v)", start.Color, start.X, start.Y)
	}

	r.reset()
	run(t, in, `SETPENCOLOUR 99`)
	if len(r.events) != 0 {
		t.Errorf("Expected out-of-range colour to be silent, got %v", r.names())
	}
}

func TestVisibility(t *testing.T) {
	in := New()
	r := record(in)

	run(t, in, `HT HT`)
	if in.Turtle().Visible() {
		t.Errorf("Expected turtle hidden")
	}
	if n := r.count(EventTurtleChange); n != 1 {
		t.Errorf("Expected one change for HT HT, got %d", n)
	}

	r.reset()
	run(t, in, `ST ST`)
	if !in.Turtle().Visible() {
		t.Errorf("Expected turtle visible")
	}
	if n := r.count(EventTurtleChange); n != 1 {
		t.Errorf("Expected one change for ST ST, got %d", n)
	}
}

func TestClean(t *testing.T) {
	in := New()
	run(t, in, `FD 20`)
	r := record(in)
	run(t, in, `CLEAN`)

	names := r.names()
	if len(names) != 2 || names[0] != EventPathRemoveAll || names[1] != EventPathStart {
		t.Fatalf("Expected remove_all then start, got %v", names)
	}
	if in.Turtle().Y() != 20 {
		t.Errorf("Expected CLEAN to leave the turtle in place")
	}
}

func TestClearScreen(t *testing.T) {
	in := New()
	run(t, in, `RT 90 FD 20`)
	r := record(in)
	run(t, in, `CS`)

	tu := in.Turtle()
	if tu.X() != 0 || tu.Y() != 0 || tu.Heading() != 0 {
		t.Errorf("Expected home, got (%v,%v) heading %v", tu.X(), tu.Y(), tu.Heading())
	}

	var start *Event
	removed := false
	for i := range r.events {
		e := r.events[i]
		if e.Name == EventPathRemoveAll {
			removed = true
		}
		if e.Name == EventPathStart && removed {
			start = &e
		}
	}
	if !removed {
		t.Fatalf("Expected path.remove_all, got %v", r.names())
	}
	if start == nil || start.X != 0 || start.Y != 0 {
		t.Errorf("Expected fresh path at the origin after clearing, got %v", r.names())
	}
}

func TestNaNIsIgnored(t *testing.T) {
	in := New()
	r := record(in)
	run(t, in, `FD :nothing RT :nothing SETXY :a :b`)
	if len(r.events) != 0 {
		t.Errorf("Expected NaN operands to be ignored, got %v", r.names())
	}
	if math.IsNaN(in.Turtle().X()) || math.IsNaN(in.Turtle().Heading()) {
		t.Errorf("Expected turtle state to stay numeric")
	}
}

func TestInfiniteOperandsAreIgnored(t *testing.T) {
	programs := []string{
		`RT 90 FD QUOTIENT 1 0 SETXY 0 0`,
		`RT 90 FD "INF SETXY 0 0`,
		`RT 90 SETX QUOTIENT -1 0 SETY "-INF`,
		`RT 90 BK QUOTIENT 1 0 RT QUOTIENT 1 0`,
	}
	for _, program := range programs {
		t.Run(program, func(t *testing.T) {
			in := New()
			r := record(in)
			run(t, in, program)

			state := in.Turtle().State()
			if state.X != 0 || state.Y != 0 || state.Heading != 90 {
				t.Errorf("Expected (0,0) heading 90, got %+v", state)
			}
			if r.count(EventPathDelta) != 0 {
				t.Errorf("Expected no path.delta, got %v", r.names())
			}
			for _, e := range r.events {
				if _, err := json.Marshal(e); err != nil {
					t.Errorf("Expected %s to encode, got %v", e.Name, err)
				}
			}
		})
	}
}

func TestOverflowingMoveIsIgnored(t *testing.T) {
	in := New()
	tu := in.Turtle()
	tu.SetXY(math.MaxFloat64, 0)
	if tu.X() != math.MaxFloat64 {
		t.Fatalf("Expected x at MaxFloat64, got %v", tu.X())
	}
	r := record(in)
	tu.SetX(-math.MaxFloat64)
	tu.Right(90)
	r.reset()
	tu.Forward(math.MaxFloat64)
	if len(r.events) != 0 {
		t.Errorf("Expected overflowing moves to be ignored, got %v", r.names())
	}
	if tu.X() != math.MaxFloat64 {
		t.Errorf("Expected x unchanged, got %v", tu.X())
	}
}

func TestNumberRejectsInfiniteWords(t *testing.T) {
	tests := []struct {
		word string
		nan  bool
	}{
		{word: "INF", nan: true},
		{word: "-INFINITY", nan: true},
		{word: "NAN", nan: true},
		{word: "5", nan: false},
		{word: "-2.5", nan: false},
	}
	for _, test := range tests {
		t.Run(test.word, func(t *testing.T) {
			got := WordValue(test.word).Number()
			if math.IsNaN(got) != test.nan {
				t.Errorf("Expected NaN=%v for %q, got %v", test.nan, test.word, got)
			}
		})
	}
}

func TestSyncAnnouncesState(t *testing.T) {
	in := New()
	r := record(in)
	in.Turtle().Sync()
	names := r.names()
	if len(names) != 2 || names[0] != EventPathStart || names[1] != EventTurtleChange {
		t.Errorf("Expected start then change, got %v", names)
	}
	if !r.events[1].Turtle.Visible || !r.events[1].Turtle.Drawing {
		t.Errorf("Expected fresh turtle visible with pen down, got %+v", r.events[1].Turtle)
	}
}
