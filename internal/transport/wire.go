// Package transport implements the bidirectional session transport: it
// bridges the browser-side JSON chat protocol to the event-streamed realtime
// agent engine, multiplexing many independent client sessions.
package transport

import "encoding/json"

// WireMessage is one JSON frame exchanged with a chat client.
type WireMessage struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
	Delta   string `json:"delta,omitempty"`
	Text    string `json:"text,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Client -> server frame types.
const (
	TypeUserText = "message"
	TypePing     = "ping"
)

// Server -> client frame types.
const (
	TypeConnected        = "connected"
	TypePong             = "pong"
	TypeTextDelta        = "text.delta"
	TypeAssistantMessage = "assistant.message"
	TypeResponseDone     = "response.done"
	TypeError            = "error"

	// TypeTextDone is reserved in the protocol; the authoritative final
	// text of a response is delivered as an assistant.message frame.
	TypeTextDone = "text.done"
)

// marshalFrame serializes a wire message. The message shape cannot fail to
// marshal, so errors are swallowed.
func marshalFrame(msg WireMessage) []byte {
	data, _ := json.Marshal(msg)
	return data
}

func connectedFrame() []byte {
	return marshalFrame(WireMessage{Type: TypeConnected})
}

func pongFrame() []byte {
	return marshalFrame(WireMessage{Type: TypePong})
}

func errorFrame(detail string) []byte {
	return marshalFrame(WireMessage{Type: TypeError, Error: detail})
}
