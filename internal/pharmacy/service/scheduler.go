package service

import (
	"context"
	"sync"
	"time"

	"github.com/medflow/pharmacy-backend/pkg/logger"
)

// StatusRefresher is the operation the scheduler runs on each tick.
type StatusRefresher interface {
	RefreshStatuses(ctx context.Context) (int, error)
}

// StatusRefreshScheduler periodically re-derives expiry driven statuses.
type StatusRefreshScheduler struct {
	refresher StatusRefresher
	interval  time.Duration
	logger    *logger.Logger
	cancel    context.CancelFunc
	done      chan struct{}
	once      sync.Once
}

// NewStatusRefreshScheduler creates a scheduler running refresher every interval.
func NewStatusRefreshScheduler(refresher StatusRefresher, interval time.Duration, log *logger.Logger) *StatusRefreshScheduler {
	return &StatusRefreshScheduler{
		refresher: refresher,
		interval:  interval,
		logger:    log.WithComponent("status-refresh"),
		done:      make(chan struct{}),
	}
}

// Start runs one refresh immediately and then one per interval until ctx
// is cancelled or Stop is called.
func (s *StatusRefreshScheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	go func() {
		defer close(s.done)
		s.logger.Info().Dur("interval", s.interval).Msg("status refresh scheduler started")

		s.runCycle(ctx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Info().Msg("status refresh scheduler stopped")
				return
			case <-ticker.C:
				s.runCycle(ctx)
			}
		}
	}()
}

// Stop stops the scheduler and waits for a running cycle to finish.
func (s *StatusRefreshScheduler) Stop() {
	s.once.Do(func() {
		if s.cancel == nil {
			return
		}
		s.cancel()
		<-s.done
	})
}

func (s *StatusRefreshScheduler) runCycle(ctx context.Context) {
	start := time.Now()

	changed, err := s.refresher.RefreshStatuses(ctx)
	if err != nil && ctx.Err() == nil {
		s.logger.Error().Err(err).Int("changed", changed).Msg("status refresh cycle failed")
		return
	}

	s.logger.Info().
		Dur("duration", time.Since(start)).
		Int("changed", changed).
		Msg("status refresh cycle completed")
}
