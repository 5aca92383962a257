// Package upstream implements the client for the realtime agent engine.
//
// The engine speaks a bidirectional, event-streamed protocol over a
// persistent WebSocket: one JSON object per text frame, discriminated by a
// "type" field. Events are represented as a closed tagged union; unknown
// tags are preserved on decode so callers can apply an explicit drop policy.
package upstream

import "encoding/json"

// EventType discriminates engine events.
type EventType string

// Session -> engine event types.
const (
	EventSessionUpdate          EventType = "session.update"
	EventConversationItemCreate EventType = "conversation.item.create"
	EventResponseCreate         EventType = "response.create"
	EventToolApprove            EventType = "tool.approve"
	EventToolOutput             EventType = "tool.output"
)

// Engine -> session event types.
const (
	EventTextDelta             EventType = "response.text.delta"
	EventTextDone              EventType = "response.text.done"
	EventResponseDone          EventType = "response.done"
	EventToolApprovalRequested EventType = "tool.approval_requested"
	EventToolCall              EventType = "tool.call"
	EventError                 EventType = "error"
)

// Event is one engine protocol event in either direction. Only the fields
// relevant to the event's type are populated.
type Event struct {
	Type EventType `json:"type"`

	// session.update
	Model string `json:"model,omitempty"`

	// conversation.item.create
	Role string `json:"role,omitempty"`
	Text string `json:"text,omitempty"`

	// response.text.delta
	Delta string `json:"delta,omitempty"`

	// tool.approval_requested / tool.approve
	Tool       string `json:"tool,omitempty"`
	ApprovalID string `json:"approval_id,omitempty"`

	// tool.call / tool.output
	CallID  string          `json:"call_id,omitempty"`
	Args    json.RawMessage `json:"args,omitempty"`
	Output  string          `json:"output,omitempty"`
	IsError bool            `json:"is_error,omitempty"`

	// error
	Error string `json:"error,omitempty"`
}

// DecodeEvent parses one engine wire frame.
func DecodeEvent(raw []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		return Event{}, err
	}
	return ev, nil
}

// Encode serializes the event to its wire form.
func (e Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}
