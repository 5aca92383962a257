package transport

import (
	"context"
	"net/http"

	"switchboard/pkg/logger"
)

// Transport is one client-facing protocol surface. The chat transport is
// the only implementation here; a voice transport carrying audio instead of
// text would be a second implementation of the same abstraction.
type Transport interface {
	// Name identifies the transport in logs and status reporting.
	Name() string

	http.Handler
}

// ChatTransport accepts inbound chat WebSocket connections and hands each
// one to a new session.
type ChatTransport struct {
	registry *Registry
	opts     SessionOptions
	baseCtx  context.Context
}

// NewChatTransport creates the chat transport entry point. The options are
// cloned per session; the registry is shared.
func NewChatTransport(registry *Registry, opts SessionOptions) *ChatTransport {
	opts.Registry = registry
	opts.applyDefaults()
	return &ChatTransport{
		registry: registry,
		opts:     opts,
		baseCtx:  context.Background(),
	}
}

// Name implements Transport.
func (t *ChatTransport) Name() string {
	return "chat"
}

// SetBaseContext sets the parent context for session run loops. Cancelling
// it asks every future and current session loop to shut down.
func (t *ChatTransport) SetBaseContext(ctx context.Context) {
	t.baseCtx = ctx
}

// Registry returns the session registry backing this transport.
func (t *ChatTransport) Registry() *Registry {
	return t.registry
}

// ServeHTTP upgrades the inbound connection, constructs a session around
// it, registers it, and starts the session's run loop. The upstream
// handshake happens asynchronously inside the run loop, so accepting new
// connections is never blocked by a slow engine.
func (t *ChatTransport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	client := NewClientConn(conn)
	sess := NewSession(client, t.opts)

	if err := t.registry.Register(sess); err != nil {
		logger.Error().
			Err(err).
			Str("conn_id", client.ID()).
			Msg("Failed to register session")
		client.Close()
		return
	}

	logger.Info().
		Str("session_id", sess.ID()).
		Str("conn_id", client.ID()).
		Str("remote", r.RemoteAddr).
		Msg("Chat session accepted")

	go sess.Run(t.baseCtx)
}
