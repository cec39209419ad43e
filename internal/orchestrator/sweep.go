package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"productshot/internal/domain"
)

const (
	sweepBatch      = 100
	timedOutMessage = "job timed out"
)

// SweepResult counts what a sweep changed.
type SweepResult struct {
	Failed    int `json:"failed"`
	Succeeded int `json:"succeeded"`
	Skipped   int `json:"skipped"`
}

// SweepStale reconciles jobs that have been queued or running for longer than
// olderThan. A job that was already charged is completed with the charged
// amount; any other job is failed. olderThan must exceed the pipeline timeout
// so live pipelines are never touched.
func (o *Orchestrator) SweepStale(ctx context.Context, olderThan time.Duration) (SweepResult, error) {
	var res SweepResult
	if olderThan <= o.cfg.JobTimeout {
		return res, fmt.Errorf("orchestrator: sweep threshold %s must exceed job timeout %s", olderThan, o.cfg.JobTimeout)
	}
	before := o.now().UTC().Add(-olderThan)
	jobs, err := o.deps.Jobs.ListStale(ctx, before, sweepBatch)
	if err != nil {
		return res, fmt.Errorf("orchestrator: list stale jobs: %w", err)
	}
	for _, job := range jobs {
		log := o.logger.With().Str("job_id", job.ID).Str("status", string(job.Status)).Logger()
		charge, charged, err := o.deps.Ledger.ChargeForJob(ctx, job.ID)
		if err != nil {
			return res, fmt.Errorf("orchestrator: charge lookup for %s: %w", job.ID, err)
		}
		switch {
		case charged && job.Status == domain.JobStatusRunning:
			err = o.deps.Jobs.MarkSucceeded(ctx, job.ID, int(-charge.Delta), "")
			if err == nil {
				res.Succeeded++
				log.Warn().Int64("delta", charge.Delta).Msg("stale charged job marked succeeded")
			}
		case charged:
			log.Error().Msg("stale job has a charge but never started")
			res.Skipped++
			continue
		default:
			err = o.deps.Jobs.MarkFailed(ctx, job.ID, timedOutMessage)
			if err == nil {
				res.Failed++
				log.Warn().Msg("stale job marked failed")
			}
		}
		if err != nil {
			if errors.Is(err, domain.ErrInvalidTransition) {
				res.Skipped++
				continue
			}
			return res, fmt.Errorf("orchestrator: reconcile %s: %w", job.ID, err)
		}
	}
	return res, nil
}
