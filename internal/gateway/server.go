// Package gateway provides the HTTP gateway server.
package gateway

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"switchboard/internal/config"
	"switchboard/internal/gateway/handlers"
	"switchboard/internal/gateway/middleware"
	"switchboard/internal/transport"
	"switchboard/internal/ui"
	"switchboard/pkg/logger"
)

// Server represents the HTTP gateway server.
type Server struct {
	httpServer  *http.Server
	router      *mux.Router
	config      *config.Config
	chat        *transport.ChatTransport
	registry    *transport.Registry
	rateLimiter *middleware.RateLimiter
	watcher     *Watcher
	static      *ui.StaticServer
	version     string
}

// NewServer creates a new gateway server.
func NewServer(cfg *config.Config, chat *transport.ChatTransport, version string) *Server {
	router := mux.NewRouter()

	rlConfig := middleware.RateLimiterConfig{
		RequestsPerMinute: cfg.Gateway.RateLimit.RequestsPerMinute,
		Burst:             cfg.Gateway.RateLimit.Burst,
		Enabled:           cfg.Gateway.RateLimit.Enabled,
		CleanupInterval:   cfg.Gateway.RateLimit.CleanupInterval,
	}
	if rlConfig.RequestsPerMinute == 0 {
		rlConfig.RequestsPerMinute = 60
	}
	if rlConfig.Burst == 0 {
		rlConfig.Burst = 10
	}
	if rlConfig.CleanupInterval == 0 {
		rlConfig.CleanupInterval = 5 * time.Minute
	}
	rateLimiter := middleware.NewRateLimiter(rlConfig)

	// Apply middleware chain: Recovery -> Logging -> CORS -> RateLimit
	handler := middleware.Recovery(
		middleware.Logging(
			middleware.CORS(
				rateLimiter.RateLimit(router),
			),
		),
	)

	server := &Server{
		httpServer: &http.Server{
			Handler:     handler,
			ReadTimeout: 60 * time.Second,
			// No write timeout: WebSocket connections are long-lived
			WriteTimeout: 0,
			IdleTimeout:  120 * time.Second,
		},
		router:      router,
		config:      cfg,
		chat:        chat,
		registry:    chat.Registry(),
		rateLimiter: rateLimiter,
		static:      ui.NewStaticServer(cfg.Gateway.UIDir, ui.GetEmbedFS()),
		version:     version,
	}

	server.setupRoutes()

	return server
}

// setupRoutes configures the server routes.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", handlers.HealthHandler(s.version)).Methods(http.MethodGet)
	s.router.HandleFunc("/chat-status", handlers.StatusHandler(s.registry)).Methods(http.MethodGet)

	// WebSocket endpoint for browser chat sessions
	s.router.Handle("/chat-stream", s.chat)

	// Static chat UI
	s.router.PathPrefix("/chat").Handler(http.StripPrefix("/chat", s.static))
	s.router.Handle("/", http.RedirectHandler("/chat/", http.StatusMovedPermanently))
}

// Start starts the HTTP server. It blocks until the server stops.
func (s *Server) Start() error {
	handlers.InitStartTime()

	addr := fmt.Sprintf("%s:%d", s.config.Gateway.Host, s.config.Gateway.Port)
	s.httpServer.Addr = addr

	logger.Info().
		Str("addr", addr).
		Str("transport", s.chat.Name()).
		Msg("Starting gateway server")

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server. Live chat sessions are closed
// before the HTTP listener stops accepting connections.
func (s *Server) Shutdown(ctx context.Context) error {
	logger.Info().Int("sessions", s.registry.Count()).Msg("Shutting down gateway server")

	if s.watcher != nil {
		s.watcher.Stop()
	}

	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	s.registry.CloseAll(shutdownCtx)

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}

	return nil
}

// SetWatcher sets the config file watcher so Shutdown can stop it.
func (s *Server) SetWatcher(w *Watcher) {
	s.watcher = w
}

// Router returns the underlying router for testing.
func (s *Server) Router() *mux.Router {
	return s.router
}
