package upstream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEvent(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Event
	}{
		{
			name: "text delta",
			raw:  `{"type":"response.text.delta","delta":"Hel"}`,
			want: Event{Type: EventTextDelta, Delta: "Hel"},
		},
		{
			name: "text done",
			raw:  `{"type":"response.text.done","text":"Hello"}`,
			want: Event{Type: EventTextDone, Text: "Hello"},
		},
		{
			name: "response done",
			raw:  `{"type":"response.done"}`,
			want: Event{Type: EventResponseDone},
		},
		{
			name: "tool approval request",
			raw:  `{"type":"tool.approval_requested","tool":"get_weather","approval_id":"a1"}`,
			want: Event{Type: EventToolApprovalRequested, Tool: "get_weather", ApprovalID: "a1"},
		},
		{
			name: "error",
			raw:  `{"type":"error","error":"overloaded"}`,
			want: Event{Type: EventError, Error: "overloaded"},
		},
		{
			name: "unknown type preserved",
			raw:  `{"type":"session.created"}`,
			want: Event{Type: "session.created"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := DecodeEvent([]byte(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.want, ev)
		})
	}
}

func TestDecodeEventInvalidJSON(t *testing.T) {
	_, err := DecodeEvent([]byte(`{broken`))
	assert.Error(t, err)
}

func TestEventEncodeOmitsEmptyFields(t *testing.T) {
	data, err := Event{Type: EventResponseCreate}.Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"response.create"}`, string(data))
}

func TestEventEncodeToolCallRoundTrip(t *testing.T) {
	data, err := Event{
		Type:   EventToolCall,
		Tool:   "lookup_customer",
		CallID: "c1",
		Args:   []byte(`{"account_number":"1001"}`),
	}.Encode()
	require.NoError(t, err)

	ev, err := DecodeEvent(data)
	require.NoError(t, err)
	assert.Equal(t, EventToolCall, ev.Type)
	assert.Equal(t, "lookup_customer", ev.Tool)
	assert.Equal(t, "c1", ev.CallID)
	assert.JSONEq(t, `{"account_number":"1001"}`, string(ev.Args))
}
