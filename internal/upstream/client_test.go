package upstream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// fakeEngine is a WebSocket server that records the handshake request and
// relays events in both directions.
type fakeEngine struct {
	srv *httptest.Server

	gotAuth  chan string
	gotModel chan string
	inbound  chan Event
	conns    chan *websocket.Conn
}

func newFakeEngine(t *testing.T) *fakeEngine {
	t.Helper()
	fe := &fakeEngine{
		gotAuth:  make(chan string, 1),
		gotModel: make(chan string, 1),
		inbound:  make(chan Event, 32),
		conns:    make(chan *websocket.Conn, 1),
	}

	fe.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fe.gotAuth <- r.Header.Get("Authorization")
		fe.gotModel <- r.URL.Query().Get("model")

		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		fe.conns <- conn

		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if ev, err := DecodeEvent(raw); err == nil {
				fe.inbound <- ev
			}
		}
	}))

	t.Cleanup(fe.srv.Close)
	return fe
}

func (fe *fakeEngine) url() string {
	return "ws" + strings.TrimPrefix(fe.srv.URL, "http")
}

func (fe *fakeEngine) recv(t *testing.T) Event {
	t.Helper()
	select {
	case ev := <-fe.inbound:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for event at engine")
		return Event{}
	}
}

func (fe *fakeEngine) send(t *testing.T, ev Event) {
	t.Helper()
	conn := <-fe.conns
	fe.conns <- conn
	data, err := ev.Encode()
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, data))
}

func TestDialSendsHandshake(t *testing.T) {
	fe := newFakeEngine(t)

	client, err := Dial(context.Background(), Config{
		URL:    fe.url(),
		APIKey: "sk-test-123",
		Model:  "gpt-realtime",
	})
	require.NoError(t, err)
	defer client.Close()

	assert.Equal(t, "Bearer sk-test-123", <-fe.gotAuth)
	assert.Equal(t, "gpt-realtime", <-fe.gotModel)

	// First event announces the session model.
	ev := fe.recv(t)
	assert.Equal(t, EventSessionUpdate, ev.Type)
	assert.Equal(t, "gpt-realtime", ev.Model)
}

func TestDialWithoutAPIKeyOmitsAuthHeader(t *testing.T) {
	fe := newFakeEngine(t)

	client, err := Dial(context.Background(), Config{URL: fe.url(), Model: "m"})
	require.NoError(t, err)
	defer client.Close()

	assert.Empty(t, <-fe.gotAuth)
}

func TestDialInvalidURL(t *testing.T) {
	_, err := Dial(context.Background(), Config{URL: "://not-a-url"})
	assert.Error(t, err)
}

func TestDialRefused(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := Dial(ctx, Config{URL: "ws://127.0.0.1:1", Model: "m"})
	assert.Error(t, err)
}

func TestClientSendAndReceive(t *testing.T) {
	fe := newFakeEngine(t)

	client, err := Dial(context.Background(), Config{URL: fe.url(), Model: "m"})
	require.NoError(t, err)
	defer client.Close()

	fe.recv(t) // session.update

	require.NoError(t, client.Send(Event{
		Type: EventConversationItemCreate,
		Role: "user",
		Text: "hello",
	}))
	ev := fe.recv(t)
	assert.Equal(t, EventConversationItemCreate, ev.Type)
	assert.Equal(t, "hello", ev.Text)

	fe.send(t, Event{Type: EventTextDelta, Delta: "hi"})
	select {
	case got := <-client.Events():
		assert.Equal(t, EventTextDelta, got.Type)
		assert.Equal(t, "hi", got.Delta)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for engine event")
	}
}

func TestClientEventsClosedOnEngineDisconnect(t *testing.T) {
	fe := newFakeEngine(t)

	client, err := Dial(context.Background(), Config{URL: fe.url(), Model: "m"})
	require.NoError(t, err)
	defer client.Close()

	fe.recv(t) // session.update

	conn := <-fe.conns
	conn.Close()

	select {
	case _, ok := <-client.Events():
		assert.False(t, ok, "events channel should be closed")
	case <-time.After(2 * time.Second):
		t.Fatal("events channel not closed after engine disconnect")
	}
}

func TestClientCloseIdempotent(t *testing.T) {
	fe := newFakeEngine(t)

	client, err := Dial(context.Background(), Config{URL: fe.url(), Model: "m"})
	require.NoError(t, err)

	err1 := client.Close()
	err2 := client.Close()
	assert.Equal(t, err1, err2)
}
