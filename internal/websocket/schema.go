package websocket

import "github.com/stemsi/exstem-testflow/internal/render"

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionSelect   Action = "select"
	ActionNext     Action = "next"
	ActionPrevious Action = "previous"
	ActionGoTo     Action = "goto"
	ActionFinish   Action = "finish"
	ActionPing     Action = "ping"
)

// Request is every client message. Only the fields of its action are read.
type Request struct {
	Action     Action `json:"action"`
	QuestionID string `json:"question_id,omitempty"`
	AnswerID   string `json:"answer_id,omitempty"`
	Index      *int   `json:"index,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventState     Event = "state"
	EventTick      Event = "tick"
	EventCompleted Event = "completed"
	EventError     Event = "error"
	EventPong      Event = "pong"
)

// StateEvent carries the full question view after any change.
type StateEvent struct {
	Event   Event               `json:"event"`
	Session render.QuestionView `json:"session"`
}

// TickEvent is sent once per second while the countdown runs.
type TickEvent struct {
	Event     Event  `json:"event"`
	Remaining int    `json:"remaining_seconds"`
	Clock     string `json:"clock"`
}

// CompletedEvent is sent when the session finishes, by submit or expiry.
type CompletedEvent struct {
	Event  Event             `json:"event"`
	Result render.ResultView `json:"result"`
}

type ErrorEvent struct {
	Event   Event  `json:"event"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type PongEvent struct {
	Event Event `json:"event"`
}
