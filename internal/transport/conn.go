package transport

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"switchboard/pkg/logger"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period.
	pingPeriod = 30 * time.Second

	// Maximum message size allowed from peer.
	maxMessageSize = 64 * 1024 // 64KB
)

// ErrConnClosed is returned by Send after the connection has been closed.
var ErrConnClosed = errors.New("connection closed")

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for development
	},
}

// ClientHandle abstracts one inbound client connection. The session owns
// its handle exclusively; no handle is shared or reused across sessions.
type ClientHandle interface {
	// ID returns the stable identifier for this connection.
	ID() string

	// Send enqueues one outbound frame. Frames are dropped if the peer
	// cannot keep up; ErrConnClosed is returned after Close.
	Send(frame []byte) error

	// Inbound returns the stream of raw client frames. The channel is
	// closed once the socket is gone.
	Inbound() <-chan []byte

	// Close tears the connection down. Idempotent.
	Close() error
}

// ClientConn is the WebSocket implementation of ClientHandle.
type ClientConn struct {
	conn        *websocket.Conn
	id          string
	send        chan []byte
	inbound     chan []byte
	closing     chan struct{}
	closeOnce   sync.Once
	connectedAt time.Time
}

// NewClientConn wraps an upgraded WebSocket connection and starts its
// read/write pumps.
func NewClientConn(conn *websocket.Conn) *ClientConn {
	c := &ClientConn{
		conn:        conn,
		id:          uuid.New().String(),
		send:        make(chan []byte, 256),
		inbound:     make(chan []byte, 32),
		closing:     make(chan struct{}),
		connectedAt: time.Now(),
	}
	go c.writePump()
	go c.readPump()

	return c
}

// ID returns the connection identifier.
func (c *ClientConn) ID() string {
	return c.id
}

// Inbound returns the stream of raw frames read from the peer.
func (c *ClientConn) Inbound() <-chan []byte {
	return c.inbound
}

// Send enqueues a frame for delivery. A full buffer drops the frame rather
// than blocking the caller; a slow client must not stall its session.
func (c *ClientConn) Send(frame []byte) error {
	select {
	case <-c.closing:
		return ErrConnClosed
	default:
	}

	select {
	case c.send <- frame:
		return nil
	case <-c.closing:
		return ErrConnClosed
	default:
		logger.Warn().Str("conn_id", c.id).Msg("Client send buffer full, dropping frame")
		return nil
	}
}

// Close signals teardown. The write pump flushes queued frames, sends a
// close message, and closes the socket. Idempotent.
func (c *ClientConn) Close() error {
	c.signalClose()
	return nil
}

// signalClose closes the closing channel exactly once.
func (c *ClientConn) signalClose() {
	c.closeOnce.Do(func() {
		close(c.closing)
	})
}

// readPump pumps frames from the WebSocket into the inbound channel.
func (c *ClientConn) readPump() {
	defer func() {
		c.signalClose()
		close(c.inbound)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				logger.Error().Err(err).Str("conn_id", c.id).Msg("WebSocket read error")
			}
			return
		}

		select {
		case c.inbound <- message:
		case <-c.closing:
			// Teardown in progress, drop further inbound frames.
			return
		}
	}
}

// writePump pumps queued frames to the WebSocket and keeps the connection
// alive with periodic pings.
func (c *ClientConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logger.Error().Err(err).Str("conn_id", c.id).Msg("WebSocket write error")
				c.signalClose()
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.signalClose()
				return
			}

		case <-c.closing:
			c.flushAndClose()
			return
		}
	}
}

// flushAndClose drains queued frames, then sends a close message. Best
// effort: the client should see a final error frame before the socket dies.
func (c *ClientConn) flushAndClose() {
	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		default:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
