package upstream

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"switchboard/pkg/logger"
)

const (
	// Time allowed to write a message to the engine.
	writeWait = 10 * time.Second

	// Maximum frame size accepted from the engine.
	maxMessageSize = 1024 * 1024 // 1MB
)

// Config holds the parameters for one engine connection.
type Config struct {
	URL    string
	APIKey string
	Model  string
}

// Client is one live connection to the realtime agent engine.
// It is owned by exactly one session and must not be shared.
type Client struct {
	conn      *websocket.Conn
	events    chan Event
	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

// Dial establishes a connection to the engine and completes the handshake
// by announcing the session model. The context bounds the whole handshake.
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse upstream url: %w", err)
	}
	q := u.Query()
	q.Set("model", cfg.Model)
	u.RawQuery = q.Encode()

	header := http.Header{}
	if cfg.APIKey != "" {
		header.Set("Authorization", "Bearer "+cfg.APIKey)
	}

	dialer := websocket.Dialer{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}

	conn, resp, err := dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial upstream: %w (status %d)", err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial upstream: %w", err)
	}
	conn.SetReadLimit(maxMessageSize)

	c := &Client{
		conn:   conn,
		events: make(chan Event, 32),
	}

	if err := c.Send(Event{Type: EventSessionUpdate, Model: cfg.Model}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("announce session: %w", err)
	}

	go c.readLoop()

	return c, nil
}

// Send writes one event to the engine. Safe for concurrent use; the owning
// session serializes sends anyway, but teardown paths may race a final send.
func (c *Client) Send(ev Event) error {
	data, err := ev.Encode()
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	return nil
}

// Events returns the stream of engine events. The channel is closed when
// the connection ends, from either side.
func (c *Client) Events() <-chan Event {
	return c.events
}

// readLoop parses engine frames into events until the connection fails.
func (c *Client) readLoop() {
	defer close(c.events)

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Error().Err(err).Msg("Upstream read error")
			}
			return
		}

		ev, err := DecodeEvent(raw)
		if err != nil {
			logger.Error().Err(err).Str("data", string(raw)).Msg("Failed to parse upstream event")
			continue
		}

		c.events <- ev
	}
}

// Close tears down the connection. Idempotent: redundant teardown triggers
// from the owning session are expected and must not error.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()

		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}
