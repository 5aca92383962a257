package transport

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// dialTestConn upgrades a connection against a test server and returns both
// ends plus a cleanup function.
func dialTestConn(t *testing.T) (*ClientConn, *websocket.Conn, func()) {
	t.Helper()

	connCh := make(chan *ClientConn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		connCh <- NewClientConn(conn)
	}))

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	peer, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		srv.Close()
		t.Fatalf("dial failed: %v", err)
	}

	var cc *ClientConn
	select {
	case cc = <-connCh:
	case <-time.After(time.Second):
		peer.Close()
		srv.Close()
		t.Fatal("server side connection not established")
	}

	cleanup := func() {
		cc.Close()
		peer.Close()
		srv.Close()
	}
	return cc, peer, cleanup
}

func TestClientConnIdentity(t *testing.T) {
	cc, _, cleanup := dialTestConn(t)
	defer cleanup()

	if cc.ID() == "" {
		t.Error("connection id is empty")
	}
	if cc.connectedAt.IsZero() {
		t.Error("connectedAt is zero")
	}
}

func TestClientConnRoundTrip(t *testing.T) {
	cc, peer, cleanup := dialTestConn(t)
	defer cleanup()

	// Peer -> server.
	if err := peer.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)); err != nil {
		t.Fatalf("peer write failed: %v", err)
	}

	select {
	case raw := <-cc.Inbound():
		if string(raw) != `{"type":"ping"}` {
			t.Errorf("inbound = %q, want ping frame", raw)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for inbound frame")
	}

	// Server -> peer.
	if err := cc.Send([]byte(`{"type":"pong"}`)); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	peer.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := peer.ReadMessage()
	if err != nil {
		t.Fatalf("peer read failed: %v", err)
	}
	if string(data) != `{"type":"pong"}` {
		t.Errorf("peer received %q, want pong frame", data)
	}
}

func TestClientConnCloseFlushesQueuedFrames(t *testing.T) {
	cc, peer, cleanup := dialTestConn(t)
	defer cleanup()

	if err := cc.Send([]byte(`{"type":"error","error":"goodbye"}`)); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	cc.Close()

	// The queued frame must arrive before the close message.
	peer.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := peer.ReadMessage()
	if err != nil {
		t.Fatalf("peer read failed: %v", err)
	}
	if !strings.Contains(string(data), "goodbye") {
		t.Errorf("peer received %q, want final error frame", data)
	}

	// Next read observes the close handshake.
	_, _, err = peer.ReadMessage()
	if err == nil {
		t.Error("expected close after final frame")
	}
}

func TestClientConnSendAfterClose(t *testing.T) {
	cc, _, cleanup := dialTestConn(t)
	defer cleanup()

	cc.Close()
	// The closing signal is immediate even though the socket teardown is
	// asynchronous.
	if err := cc.Send([]byte(`{}`)); err != ErrConnClosed {
		t.Errorf("Send after close = %v, want ErrConnClosed", err)
	}
}

func TestClientConnInboundClosedOnPeerDisconnect(t *testing.T) {
	cc, peer, cleanup := dialTestConn(t)
	defer cleanup()

	peer.Close()

	select {
	case _, ok := <-cc.Inbound():
		if ok {
			t.Error("expected closed inbound channel")
		}
	case <-time.After(time.Second):
		t.Fatal("inbound channel not closed after peer disconnect")
	}
}

func TestClientConnCloseIdempotent(t *testing.T) {
	cc, _, cleanup := dialTestConn(t)
	defer cleanup()

	cc.Close()
	cc.Close()
	cc.Close()
}
