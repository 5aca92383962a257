package transport

import (
	"encoding/json"
	"errors"
	"fmt"

	"switchboard/internal/upstream"
)

// ErrMalformedPayload is the sentinel for client frames that cannot be
// decoded. A decode failure is recoverable: the session reports it and
// stays active.
var ErrMalformedPayload = errors.New("malformed payload")

// DecodeError describes why a client frame was rejected.
type DecodeError struct {
	Reason string
	Err    error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode client message: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("decode client message: %s", e.Reason)
}

// Is allows errors.Is to match against ErrMalformedPayload.
func (e *DecodeError) Is(target error) bool {
	return target == ErrMalformedPayload
}

// Unwrap returns the underlying parse error, if any.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// DecodeClientMessage parses a raw client frame into a WireMessage.
// Only ping and message frames are valid inbound; a message frame requires
// non-empty content, since an empty utterance would produce a pointless
// engine turn.
func DecodeClientMessage(raw []byte) (WireMessage, error) {
	var msg WireMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return WireMessage{}, &DecodeError{Reason: "invalid JSON", Err: err}
	}

	switch msg.Type {
	case TypePing:
		return msg, nil
	case TypeUserText:
		if msg.Content == "" {
			return WireMessage{}, &DecodeError{Reason: "message requires content"}
		}
		return msg, nil
	default:
		return WireMessage{}, &DecodeError{Reason: fmt.Sprintf("unknown frame type %q", msg.Type)}
	}
}

// EncodeUpstreamRequest translates a decoded client message into the engine
// events it implies. A user text message produces exactly two events, item
// create then response create; the caller must deliver them back-to-back so
// the pair is never interleaved with another message's events. Ping is a
// transport-local keepalive and produces no upstream events.
func EncodeUpstreamRequest(msg WireMessage) []upstream.Event {
	if msg.Type != TypeUserText {
		return nil
	}
	return []upstream.Event{
		{Type: upstream.EventConversationItemCreate, Role: "user", Text: msg.Content},
		{Type: upstream.EventResponseCreate},
	}
}

// Accumulator reconstructs the in-progress assistant reply from incremental
// delta events. One accumulator belongs to one session.
type Accumulator struct {
	text string
}

// Append extends the buffer with a delta chunk.
func (a *Accumulator) Append(delta string) {
	a.text += delta
}

// SetFinal replaces the buffer with the authoritative full text, overriding
// any drift from partial deltas.
func (a *Accumulator) SetFinal(text string) {
	a.text = text
}

// Reset clears the buffer for the next turn.
func (a *Accumulator) Reset() {
	a.text = ""
}

// Text returns the accumulated reply so far.
func (a *Accumulator) Text() string {
	return a.text
}

// EncodeClientFrames translates one engine event into zero or more client
// wire frames, updating the accumulator as a side effect:
//
//   - text delta: appended to the accumulator, forwarded incrementally
//   - text done: accumulator set to the authoritative text, sent as
//     assistant.message
//   - response done: forwarded, accumulator reset for the next turn
//   - error: forwarded; the accumulator is left intact so partial text
//     already shown to the user stays displayed
//
// Tool events are handled entirely server-side by the session, and unknown
// event kinds are dropped rather than forwarded.
func EncodeClientFrames(ev upstream.Event, acc *Accumulator) [][]byte {
	switch ev.Type {
	case upstream.EventTextDelta:
		acc.Append(ev.Delta)
		return [][]byte{marshalFrame(WireMessage{Type: TypeTextDelta, Delta: ev.Delta})}

	case upstream.EventTextDone:
		acc.SetFinal(ev.Text)
		return [][]byte{marshalFrame(WireMessage{Type: TypeAssistantMessage, Text: ev.Text})}

	case upstream.EventResponseDone:
		acc.Reset()
		return [][]byte{marshalFrame(WireMessage{Type: TypeResponseDone})}

	case upstream.EventError:
		return [][]byte{errorFrame(ev.Error)}

	default:
		return nil
	}
}
