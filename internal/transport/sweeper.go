package transport

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"switchboard/pkg/logger"
)

// Sweeper periodically reports registry stats and reaps sessions stuck in
// Closing beyond a grace period. Stuck sessions should not happen, since
// teardown is bounded by the session close timeout; the sweeper is a
// defensive backstop.
type Sweeper struct {
	registry *Registry
	interval time.Duration
	grace    time.Duration
	cron     *cron.Cron
}

// NewSweeper creates a sweeper over the given registry.
func NewSweeper(registry *Registry, interval, grace time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	if grace <= 0 {
		grace = 30 * time.Second
	}
	return &Sweeper{
		registry: registry,
		interval: interval,
		grace:    grace,
	}
}

// Start schedules the sweep job.
func (s *Sweeper) Start() error {
	c := cron.New()
	spec := fmt.Sprintf("@every %s", s.interval)
	if _, err := c.AddFunc(spec, s.sweep); err != nil {
		return fmt.Errorf("schedule sweep: %w", err)
	}
	c.Start()
	s.cron = c

	logger.Info().Dur("interval", s.interval).Msg("Session sweeper started")
	return nil
}

// Stop halts the sweep schedule. Running sweeps finish.
func (s *Sweeper) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

// sweep logs session stats and force-closes stuck sessions.
func (s *Sweeper) sweep() {
	sessions := s.registry.Sessions()

	stuck := 0
	for _, sess := range sessions {
		if sess.State() != StateClosing {
			continue
		}
		if since := sess.ClosingSince(); !since.IsZero() && time.Since(since) > s.grace {
			logger.Warn().
				Str("session_id", sess.ID()).
				Dur("closing_for", time.Since(since)).
				Msg("Reaping session stuck in closing")
			sess.Close()
			stuck++
		}
	}

	logger.Debug().
		Int("active_sessions", len(sessions)).
		Int("reaped", stuck).
		Msg("Session sweep")
}
