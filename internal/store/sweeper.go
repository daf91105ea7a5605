package store

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// EventSweeper periodically deletes old processed webhook events so the
// audit table does not grow without bound.
type EventSweeper struct {
	events    *WebhookEventRepository
	logger    *zap.Logger
	retention time.Duration
	interval  time.Duration
}

// NewEventSweeper creates a new retention sweeper.
func NewEventSweeper(events *WebhookEventRepository, retention, interval time.Duration, logger *zap.Logger) *EventSweeper {
	return &EventSweeper{
		events:    events,
		logger:    logger,
		retention: retention,
		interval:  interval,
	}
}

// Start runs the sweep loop until the context is cancelled.
func (s *EventSweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("stopping webhook event sweeper")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *EventSweeper) sweep(ctx context.Context) {
	cutoff := time.Now().Add(-s.retention)
	deleted, err := s.events.DeleteProcessedBefore(ctx, cutoff)
	if err != nil {
		s.logger.Error("failed to sweep webhook events", zap.Error(err))
		return
	}
	if deleted > 0 {
		s.logger.Info("swept old webhook events",
			zap.Int64("deleted", deleted),
			zap.Time("cutoff", cutoff),
		)
	}
}
