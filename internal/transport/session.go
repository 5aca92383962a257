package transport

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"switchboard/internal/tools"
	"switchboard/internal/upstream"
	"switchboard/pkg/logger"
)

// State is the session lifecycle state. Transitions are one-directional:
// Initializing -> Active -> Closing -> Closed, with Active skipped when the
// upstream handshake fails.
type State int32

// Session lifecycle states.
const (
	StateInitializing State = iota
	StateActive
	StateClosing
	StateClosed
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// UpstreamHandle abstracts one live connection to the agent engine. The
// session owns its handle exclusively.
type UpstreamHandle interface {
	// Send writes one event to the engine.
	Send(ev upstream.Event) error

	// Events returns the stream of engine events. Closed when the
	// connection ends, from either side.
	Events() <-chan upstream.Event

	// Close tears the connection down. Idempotent.
	Close() error
}

// UpstreamDialer establishes an engine connection. The context bounds the
// whole handshake.
type UpstreamDialer func(ctx context.Context, cfg upstream.Config) (UpstreamHandle, error)

// DialUpstream is the default dialer, backed by the WebSocket engine client.
func DialUpstream(ctx context.Context, cfg upstream.Config) (UpstreamHandle, error) {
	return upstream.Dial(ctx, cfg)
}

// ApprovalPolicy decides whether a tool approval request is granted.
type ApprovalPolicy func(ev upstream.Event) bool

// AutoApproveAll grants every tool approval request. This is a deliberate
// policy choice for this system, not a security boundary; a stricter policy
// (rate limits, allow-lists) is a drop-in replacement.
func AutoApproveAll(ev upstream.Event) bool {
	return true
}

// SessionOptions configures one session.
type SessionOptions struct {
	// Upstream holds the engine connection parameters.
	Upstream upstream.Config

	// Dial establishes the engine connection. Defaults to DialUpstream.
	Dial UpstreamDialer

	// HandshakeTimeout bounds the upstream handshake. Default 10s.
	HandshakeTimeout time.Duration

	// QueueCapacity bounds the inbound queue held while the handshake is
	// in flight; the oldest entry is dropped on overflow. Default 16.
	QueueCapacity int

	// CloseTimeout bounds the wait for handle teardown. Default 5s.
	CloseTimeout time.Duration

	// Approve is the tool approval policy. Defaults to AutoApproveAll.
	Approve ApprovalPolicy

	// Tools executes engine tool calls. Optional; without a registry,
	// tool calls are answered with an error output.
	Tools *tools.Registry

	// Registry tracks the session for its whole non-terminal lifetime.
	Registry *Registry
}

func (o *SessionOptions) applyDefaults() {
	if o.Dial == nil {
		o.Dial = DialUpstream
	}
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = 10 * time.Second
	}
	if o.QueueCapacity <= 0 {
		o.QueueCapacity = 16
	}
	if o.CloseTimeout <= 0 {
		o.CloseTimeout = 5 * time.Second
	}
	if o.Approve == nil {
		o.Approve = AutoApproveAll
	}
}

// Session pairs one client connection with one upstream engine connection
// and runs the codec in both directions. All event processing happens on
// the session's own run loop goroutine, so client-originated and
// upstream-originated events are each handled in strict arrival order and
// the two-event emission for a user message is never interleaved with a
// later message's events.
type Session struct {
	id     string
	client ClientHandle
	opts   SessionOptions

	mu           sync.Mutex
	state        State
	upstreamConn UpstreamHandle
	closingSince time.Time

	acc     Accumulator
	pending []WireMessage

	closeCh   chan struct{}
	closeOnce sync.Once
	done      chan struct{}

	runCtx context.Context
}

// NewSession creates a session in the Initializing state. Run must be
// called to start processing.
func NewSession(client ClientHandle, opts SessionOptions) *Session {
	opts.applyDefaults()
	return &Session{
		id:      uuid.New().String(),
		client:  client,
		opts:    opts,
		state:   StateInitializing,
		closeCh: make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// ClientID returns the identifier of the owned client connection; it is the
// session's registry key.
func (s *Session) ClientID() string {
	return s.client.ID()
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ClosingSince reports when the session entered Closing; zero if it has not.
func (s *Session) ClosingSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closingSince
}

// Done is closed once the session is fully finalized.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Close requests teardown from outside the run loop (registry shutdown,
// sweeper). Idempotent; the run loop performs the actual teardown.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.closeCh)
	})
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if state == StateClosing && s.closingSince.IsZero() {
		s.closingSince = time.Now()
	}
	s.state = state
}

func (s *Session) setUpstream(h UpstreamHandle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upstreamConn = h
}

func (s *Session) upstream() UpstreamHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upstreamConn
}

type dialResult struct {
	handle UpstreamHandle
	err    error
}

// Run is the session's event loop. It drives the whole lifecycle: the
// connected frame, the asynchronous upstream handshake, bidirectional
// translation while Active, and teardown of both handles. It returns once
// the session is Closed.
func (s *Session) Run(ctx context.Context) {
	s.runCtx = ctx

	defer s.finalize()
	defer func() {
		// One session's internal fault must never take down its
		// siblings; anything unanticipated closes this session only.
		if r := recover(); r != nil {
			logger.Error().
				Interface("panic", r).
				Str("session_id", s.id).
				Msg("Session handler panicked")
			s.sendErrorFrame("internal session error")
		}
	}()

	// Tell the client it is connected before the upstream is ready.
	s.client.Send(connectedFrame())

	hsCtx, cancelHandshake := context.WithTimeout(ctx, s.opts.HandshakeTimeout)
	defer cancelHandshake()

	handshake := make(chan dialResult, 1)
	go func() {
		h, err := s.opts.Dial(hsCtx, s.opts.Upstream)
		handshake <- dialResult{handle: h, err: err}
	}()

	handshakeDone := false
	defer func() {
		if !handshakeDone {
			// The dial may still complete after teardown began; reap
			// the handle so it does not leak.
			cancelHandshake()
			go func() {
				if res := <-handshake; res.handle != nil {
					res.handle.Close()
				}
			}()
		}
	}()

	var events <-chan upstream.Event

	for {
		select {
		case res := <-handshake:
			handshakeDone = true
			if res.err != nil {
				logger.Error().
					Err(res.err).
					Str("session_id", s.id).
					Msg("Upstream handshake failed")
				s.sendErrorFrame("upstream connection failed")
				return
			}
			s.setUpstream(res.handle)
			s.setState(StateActive)
			events = res.handle.Events()
			logger.Info().
				Str("session_id", s.id).
				Str("model", s.opts.Upstream.Model).
				Msg("Session active")
			if !s.flushPending() {
				return
			}

		case raw, ok := <-s.client.Inbound():
			if !ok {
				// Client socket gone; nothing left to inform.
				logger.Info().Str("session_id", s.id).Msg("Client disconnected")
				return
			}
			if !s.handleClientFrame(raw) {
				return
			}

		case ev, ok := <-events:
			if !ok {
				// Engine hung up mid-session.
				logger.Warn().Str("session_id", s.id).Msg("Upstream disconnected")
				s.sendErrorFrame("upstream disconnected")
				return
			}
			if !s.handleUpstreamEvent(ev) {
				return
			}

		case <-s.closeCh:
			s.sendErrorFrame("session closed by server")
			return

		case <-ctx.Done():
			s.sendErrorFrame("server shutting down")
			return
		}
	}
}

// handleClientFrame decodes and dispatches one client frame. Returns false
// when the session must close.
func (s *Session) handleClientFrame(raw []byte) bool {
	msg, err := DecodeClientMessage(raw)
	if err != nil {
		// A single malformed message is recoverable: report and stay up.
		logger.Debug().
			Err(err).
			Str("session_id", s.id).
			Msg("Rejected client frame")
		s.client.Send(errorFrame(err.Error()))
		return true
	}

	// Keepalive is transport-local in every state; it never goes upstream.
	if msg.Type == TypePing {
		s.client.Send(pongFrame())
		return true
	}

	switch s.State() {
	case StateInitializing:
		s.enqueuePending(msg)
		return true
	case StateActive:
		return s.forwardUserText(msg)
	default:
		// Closing or Closed: drop.
		return true
	}
}

// enqueuePending buffers a message while the upstream handshake is in
// flight. The queue is bounded; overflow drops the oldest entry so a slow
// handshake cannot grow memory without limit.
func (s *Session) enqueuePending(msg WireMessage) {
	if len(s.pending) >= s.opts.QueueCapacity {
		logger.Warn().
			Str("session_id", s.id).
			Int("capacity", s.opts.QueueCapacity).
			Msg("Pending queue full, dropping oldest message")
		s.pending = s.pending[1:]
	}
	s.pending = append(s.pending, msg)
}

// flushPending replays queued messages in original arrival order once the
// session becomes Active. Returns false when the session must close.
func (s *Session) flushPending() bool {
	pending := s.pending
	s.pending = nil
	for _, msg := range pending {
		if !s.forwardUserText(msg) {
			return false
		}
	}
	return true
}

// forwardUserText translates one user message into its upstream event pair
// and delivers both back-to-back. Returns false when the session must close.
func (s *Session) forwardUserText(msg WireMessage) bool {
	h := s.upstream()
	if h == nil {
		return true
	}

	for _, ev := range EncodeUpstreamRequest(msg) {
		if err := h.Send(ev); err != nil {
			logger.Error().
				Err(err).
				Str("session_id", s.id).
				Msg("Upstream send failed")
			s.sendErrorFrame("upstream send failed")
			return false
		}
	}
	return true
}

// handleUpstreamEvent dispatches one engine event. Tool traffic is handled
// entirely server-side; everything else goes through the codec. Returns
// false when the session must close.
func (s *Session) handleUpstreamEvent(ev upstream.Event) bool {
	switch ev.Type {
	case upstream.EventToolApprovalRequested:
		return s.handleToolApproval(ev)
	case upstream.EventToolCall:
		return s.handleToolCall(ev)
	default:
		for _, frame := range EncodeClientFrames(ev, &s.acc) {
			s.client.Send(frame)
		}
		return true
	}
}

// handleToolApproval applies the injected approval policy.
func (s *Session) handleToolApproval(ev upstream.Event) bool {
	if !s.opts.Approve(ev) {
		logger.Warn().
			Str("session_id", s.id).
			Str("tool", ev.Tool).
			Msg("Tool approval denied by policy")
		return true
	}

	logger.Debug().
		Str("session_id", s.id).
		Str("tool", ev.Tool).
		Msg("Tool call approved")

	h := s.upstream()
	if h == nil {
		return true
	}
	if err := h.Send(upstream.Event{
		Type:       upstream.EventToolApprove,
		Tool:       ev.Tool,
		ApprovalID: ev.ApprovalID,
	}); err != nil {
		s.sendErrorFrame("upstream send failed")
		return false
	}
	return true
}

// handleToolCall executes the named tool and returns its output to the
// engine. Tool failures become error outputs, never session faults.
func (s *Session) handleToolCall(ev upstream.Event) bool {
	var result tools.Result
	if s.opts.Tools != nil {
		result = s.opts.Tools.Execute(s.runCtx, ev.Tool, ev.Args)
	} else {
		result = tools.NewErrorResult("no tools available")
	}

	logger.Debug().
		Str("session_id", s.id).
		Str("tool", ev.Tool).
		Bool("is_error", result.IsError).
		Msg("Tool executed")

	h := s.upstream()
	if h == nil {
		return true
	}
	if err := h.Send(upstream.Event{
		Type:    upstream.EventToolOutput,
		Tool:    ev.Tool,
		CallID:  ev.CallID,
		Output:  result.Content,
		IsError: result.IsError,
	}); err != nil {
		s.sendErrorFrame("upstream send failed")
		return false
	}
	return true
}

// sendErrorFrame informs the client before its connection is torn down for
// cause; silent drops are disallowed.
func (s *Session) sendErrorFrame(detail string) {
	s.client.Send(errorFrame(detail))
}

// finalize tears down both handles and deregisters the session. Runs
// exactly once, on the run loop goroutine, after Run's loop exits.
func (s *Session) finalize() {
	s.setState(StateClosing)

	if h := s.upstream(); h != nil {
		h.Close()
		// Unblock the engine read loop if it is mid-delivery so its
		// events channel can close.
		go func() {
			for range h.Events() {
			}
		}()
	}

	s.client.Close()

	// Wait, bounded, for the client socket to finish closing.
	deadline := time.NewTimer(s.opts.CloseTimeout)
	defer deadline.Stop()
drain:
	for {
		select {
		case _, ok := <-s.client.Inbound():
			if !ok {
				break drain
			}
		case <-deadline.C:
			logger.Warn().Str("session_id", s.id).Msg("Close timeout waiting for client teardown")
			break drain
		}
	}

	s.setState(StateClosed)

	if s.opts.Registry != nil {
		s.opts.Registry.Deregister(s)
	}

	close(s.done)
	logger.Info().Str("session_id", s.id).Msg("Session closed")
}
