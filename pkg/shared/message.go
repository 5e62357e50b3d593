package shared

// MessageType tags a websocket message. The numbering is part of the wire
// protocol understood by the browser client.
type MessageType int

const (
	MessageTypeText    MessageType = 0 // plain text line
	MessageTypeClear   MessageType = 1 // path.remove_all
	MessageTypePath    MessageType = 2 // path.start / path.delta / path.end, see Command
	MessageTypeTurtle  MessageType = 3 // turtle.change, state in Turtle
	MessageTypeSession MessageType = 4 // session id and token handed to the client
	MessageTypeStatus  MessageType = 5 // outcome of a run
	MessageTypeError   MessageType = 6 // interpreter or protocol failure
	MessageTypePrint   MessageType = 7 // PRINT output
)

// Path commands carried in Message.Command for MessageTypePath.
const (
	PathStart = "start"
	PathDelta = "delta"
	PathEnd   = "end"
)

// TurtleState mirrors the interpreter's turtle snapshot on the wire.
type TurtleState struct {
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Heading float64 `json:"heading"`
	Drawing bool    `json:"drawing"`
	Color   string  `json:"color"`
	Visible bool    `json:"visible"`
}

// Message is a server-to-client websocket message.
type Message struct {
	Type    MessageType `json:"type"`
	Content string      `json:"content,omitempty"`

	SessionID string `json:"sessionId,omitempty"`
	Token     string `json:"token,omitempty"`

	// Path messages
	Command string  `json:"command,omitempty"`
	X       float64 `json:"x,omitempty"`
	Y       float64 `json:"y,omitempty"`
	DX      float64 `json:"dx,omitempty"`
	DY      float64 `json:"dy,omitempty"`
	Color   string  `json:"color,omitempty"`

	Turtle *TurtleState `json:"turtle,omitempty"`

	// Source line for print and error messages.
	Line int `json:"line,omitempty"`

	// Status details such as ok, steps and durationMs.
	Params map[string]interface{} `json:"params,omitempty"`
}
