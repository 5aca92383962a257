package transport

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"switchboard/internal/upstream"
)

// readWire reads the next frame from the peer and decodes it.
func readWire(t *testing.T, peer *websocket.Conn) WireMessage {
	t.Helper()
	peer.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := peer.ReadMessage()
	require.NoError(t, err)
	var msg WireMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestChatTransportEndToEnd(t *testing.T) {
	engine := newFakeUpstream()
	registry := NewRegistry()
	chat := NewChatTransport(registry, SessionOptions{Dial: staticDialer(engine)})

	srv := httptest.NewServer(chat)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	peer, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer peer.Close()

	// First frame is always connected.
	msg := readWire(t, peer)
	assert.Equal(t, TypeConnected, msg.Type)

	waitFor(t, time.Second, "session registered", func() bool {
		return registry.Count() == 1
	})

	// Send a message and stream a reply back.
	require.NoError(t, peer.WriteMessage(websocket.TextMessage,
		[]byte(`{"type":"message","content":"hi"}`)))

	waitFor(t, time.Second, "engine received pair", func() bool {
		return len(engine.sentEvents()) == 2
	})

	engine.emit(upstream.Event{Type: upstream.EventTextDelta, Delta: "hey"})
	engine.emit(upstream.Event{Type: upstream.EventTextDone, Text: "hey"})
	engine.emit(upstream.Event{Type: upstream.EventResponseDone})

	assert.Equal(t, TypeTextDelta, readWire(t, peer).Type)
	assert.Equal(t, TypeAssistantMessage, readWire(t, peer).Type)
	assert.Equal(t, TypeResponseDone, readWire(t, peer).Type)

	// Disconnecting the peer drains the registry.
	peer.Close()
	waitFor(t, 2*time.Second, "session deregistered", func() bool {
		return registry.Count() == 0
	})
}

func TestChatTransportName(t *testing.T) {
	chat := NewChatTransport(NewRegistry(), SessionOptions{Dial: staticDialer(newFakeUpstream())})
	assert.Equal(t, "chat", chat.Name())
}

func TestChatTransportConcurrentSessions(t *testing.T) {
	registry := NewRegistry()

	// Each connection gets its own engine via a fresh fake per dial.
	chat := NewChatTransport(registry, SessionOptions{
		Dial: func(ctx context.Context, cfg upstream.Config) (UpstreamHandle, error) {
			return newFakeUpstream(), nil
		},
	})

	srv := httptest.NewServer(chat)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	var peers []*websocket.Conn
	for i := 0; i < 3; i++ {
		peer, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
		require.NoError(t, err)
		peers = append(peers, peer)
		assert.Equal(t, TypeConnected, readWire(t, peer).Type)
	}

	waitFor(t, time.Second, "three sessions", func() bool {
		return registry.Count() == 3
	})

	for _, peer := range peers {
		peer.Close()
	}
	waitFor(t, 2*time.Second, "registry drained", func() bool {
		return registry.Count() == 0
	})
}
