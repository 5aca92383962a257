package transport

import (
	"context"
	"errors"
	"sync"

	"switchboard/pkg/logger"
)

// ErrAlreadyRegistered is returned when a client connection already has a
// session; each connection maps to at most one session for its lifetime.
var ErrAlreadyRegistered = errors.New("session already registered for connection")

// Registry tracks all live sessions, keyed by their client connection. A
// session appears here exactly while its state is non-terminal; it removes
// itself as part of teardown. The registry is used only for introspection,
// health reporting and bulk teardown, and imposes no cross-session ordering.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry creates an empty session registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
	}
}

// Register inserts a session under its client connection key.
func (r *Registry) Register(s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := s.ClientID()
	if _, exists := r.sessions[key]; exists {
		return ErrAlreadyRegistered
	}
	r.sessions[key] = s
	return nil
}

// Deregister removes a session. Idempotent: teardown paths may call it more
// than once defensively, and it never removes a different session that has
// since claimed the key.
func (r *Registry) Deregister(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := s.ClientID()
	if current, ok := r.sessions[key]; ok && current == s {
		delete(r.sessions, key)
	}
}

// Count returns the number of currently tracked (non-terminal) sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sessions returns a snapshot of the tracked sessions.
func (r *Registry) Sessions() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

// CloseAll requests closure of every tracked session and waits for each to
// finalize, bounded by the context. It iterates a snapshot, so sessions
// deregistering themselves concurrently cannot deadlock the sweep.
func (r *Registry) CloseAll(ctx context.Context) {
	sessions := r.Sessions()
	if len(sessions) == 0 {
		return
	}

	logger.Info().Int("count", len(sessions)).Msg("Closing all sessions")

	for _, s := range sessions {
		s.Close()
	}
	for _, s := range sessions {
		select {
		case <-s.Done():
		case <-ctx.Done():
			logger.Warn().Msg("Timed out waiting for sessions to close")
			return
		}
	}
}
