package bootstrap

import (
	"context"
	"time"

	"productshot/internal/infra"
	"productshot/internal/orchestrator"
)

// SweepOnce reconciles stale jobs and purges usage counters for closed windows.
func (s *Services) SweepOnce(ctx context.Context, staleAfter time.Duration, logger infra.Logger) (orchestrator.SweepResult, error) {
	res, err := s.Orchestrator.SweepStale(ctx, staleAfter)
	if err != nil {
		return res, err
	}
	if res.Failed+res.Succeeded > 0 {
		logger.Info().Int("failed", res.Failed).Int("succeeded", res.Succeeded).Int("skipped", res.Skipped).Msg("swept stale jobs")
	}
	n, err := s.Limiter.PurgeStale(ctx)
	if err != nil {
		return res, err
	}
	if n > 0 {
		logger.Debug().Int64("rows", n).Msg("purged usage counters")
	}
	return res, nil
}

// RunSweeper calls SweepOnce every interval until ctx is cancelled.
func (s *Services) RunSweeper(ctx context.Context, interval, staleAfter time.Duration, logger infra.Logger) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.SweepOnce(ctx, staleAfter, logger); err != nil && ctx.Err() == nil {
				logger.Error().Err(err).Msg("sweep failed")
			}
		}
	}
}
