package events

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Relay periodically redelivers events whose first dispatch failed.
type Relay struct {
	Bus      *Bus
	Interval time.Duration
	Grace    time.Duration
	Batch    int
	Logger   zerolog.Logger
}

// Run blocks until ctx is canceled.
func (r Relay) Run(ctx context.Context) {
	interval := r.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r Relay) tick(ctx context.Context) {
	sent, err := r.Bus.Redeliver(ctx, r.Grace, r.Batch)
	if err != nil {
		r.Logger.Error().Err(err).Int("sent", sent).Msg("event redelivery incomplete")
		return
	}
	if sent > 0 {
		r.Logger.Info().Int("sent", sent).Msg("events redelivered")
	}
}
