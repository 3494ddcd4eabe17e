package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Sweeper drops idle sessions.
type Sweeper interface {
	Sweep() int
}

// SessionSweepWorker expires idle configurator sessions.
type SessionSweepWorker struct {
	sessions Sweeper
	interval time.Duration
}

// NewSessionSweepWorker constructs a SessionSweepWorker.
func NewSessionSweepWorker(sessions Sweeper, interval time.Duration) *SessionSweepWorker {
	return &SessionSweepWorker{sessions: sessions, interval: interval}
}

// Start sweeps on every tick until ctx is cancelled.
func (w *SessionSweepWorker) Start(ctx context.Context) {
	log.Info().Dur("interval", w.interval).Msg("Starting session sweep worker")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.sessions.Sweep()
		case <-ctx.Done():
			log.Info().Msg("Session sweep worker stopped")
			return
		}
	}
}
