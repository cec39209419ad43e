// Package orchestrator admits generation requests and drives each job through
// its pipeline in a background goroutine.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"productshot/internal/compliance"
	"productshot/internal/domain"
	"productshot/internal/providers/image"
	"productshot/internal/ratelimit"
	"productshot/internal/storage"
)

// RateLimiter admits or rejects a request and consumes quota when admitted.
type RateLimiter interface {
	CheckAndConsume(ctx context.Context, userID string) (ratelimit.Decision, error)
}

// Ledger is the subset of the credit ledger the orchestrator relies on.
type Ledger interface {
	HasSufficientCredits(ctx context.Context, userID string, n int64) (bool, int64, error)
	Spend(ctx context.Context, userID string, n int64, jobID string) (*domain.LedgerEntry, error)
	ChargeForJob(ctx context.Context, jobID string) (*domain.LedgerEntry, bool, error)
}

// Config holds pipeline settings.
type Config struct {
	InputBucket       string
	OutputBucket      string
	SignedURLTTL      time.Duration
	FetchTimeout      time.Duration
	JobTimeout        time.Duration
	CostPerGeneration int
}

// Deps are the collaborators the orchestrator drives.
type Deps struct {
	Jobs      domain.JobRepository
	Assets    domain.AssetRepository
	Limiter   RateLimiter
	Ledger    Ledger
	Engine    *compliance.Engine
	Store     storage.ObjectStore
	Fetcher   Fetcher
	Generator image.Generator
	// Base is the parent context of every pipeline. Request contexts are
	// never used because pipelines outlive the request.
	Base context.Context
}

// Orchestrator owns the job state machine.
type Orchestrator struct {
	deps   Deps
	cfg    Config
	base   context.Context
	logger zerolog.Logger
	now    func() time.Time
	wg     sync.WaitGroup
}

// SubmitRequest is an inbound generation request for an authenticated user.
type SubmitRequest struct {
	UserID       string
	ProjectID    string
	InputAssetID string
	Mode         string
	Inputs       compliance.Inputs
}

// New validates deps and cfg and builds an Orchestrator.
func New(deps Deps, cfg Config, logger zerolog.Logger) (*Orchestrator, error) {
	switch {
	case deps.Jobs == nil, deps.Assets == nil:
		return nil, errors.New("orchestrator: job and asset repositories are required")
	case deps.Limiter == nil, deps.Ledger == nil:
		return nil, errors.New("orchestrator: rate limiter and ledger are required")
	case deps.Engine == nil, deps.Store == nil, deps.Fetcher == nil, deps.Generator == nil:
		return nil, errors.New("orchestrator: engine, store, fetcher and generator are required")
	}
	if cfg.CostPerGeneration <= 0 {
		return nil, errors.New("orchestrator: cost per generation must be positive")
	}
	if cfg.JobTimeout <= 0 {
		return nil, errors.New("orchestrator: job timeout must be positive")
	}
	if cfg.InputBucket == "" || cfg.OutputBucket == "" {
		return nil, errors.New("orchestrator: input and output buckets are required")
	}
	if cfg.SignedURLTTL <= 0 {
		cfg.SignedURLTTL = 5 * time.Minute
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 30 * time.Second
	}
	base := deps.Base
	if base == nil {
		base = context.Background()
	}
	return &Orchestrator{
		deps:   deps,
		cfg:    cfg,
		base:   base,
		logger: logger.With().Str("component", "orchestrator").Logger(),
		now:    time.Now,
	}, nil
}

// Submit runs admission synchronously, creates the job in queued and starts
// its pipeline in the background. The returned job is a snapshot taken at
// creation time; callers poll Get for progress.
func (o *Orchestrator) Submit(ctx context.Context, req SubmitRequest) (*domain.Job, error) {
	mode, ok := domain.ParseMode(req.Mode)
	if !ok {
		return nil, domain.InvalidInput("unsupported mode %q", req.Mode)
	}
	req.ProjectID = strings.TrimSpace(req.ProjectID)
	req.InputAssetID = strings.TrimSpace(req.InputAssetID)
	if req.UserID == "" {
		return nil, domain.ErrUnauthorized
	}
	if req.ProjectID == "" {
		return nil, domain.InvalidInput("project_id is required")
	}
	if req.InputAssetID == "" {
		return nil, domain.InvalidInput("input_asset_id is required")
	}
	if err := compliance.ValidateInputs(req.Inputs); err != nil {
		return nil, err
	}

	decision, err := o.deps.Limiter.CheckAndConsume(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: rate limit: %w", err)
	}
	if err := decision.Err(); err != nil {
		o.logger.Info().Str("user_id", req.UserID).Str("blocked_by", string(decision.BlockedBy)).Msg("generation rate limited")
		return nil, err
	}

	cost := int64(o.cfg.CostPerGeneration)
	enough, balance, err := o.deps.Ledger.HasSufficientCredits(ctx, req.UserID, cost)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: credit check: %w", err)
	}
	if !enough {
		return nil, &domain.InsufficientCreditsError{Balance: balance, Required: cost}
	}

	asset, err := o.deps.Assets.GetByID(ctx, req.InputAssetID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("input asset %s: %w", req.InputAssetID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("orchestrator: load input asset: %w", err)
	}
	if asset.UserID != req.UserID {
		return nil, fmt.Errorf("input asset %s: %w", req.InputAssetID, domain.ErrForbidden)
	}
	if asset.ProjectID != req.ProjectID {
		return nil, domain.InvalidInput("input asset %s does not belong to project %s", asset.ID, req.ProjectID)
	}
	if asset.Kind != domain.AssetKindInput {
		return nil, domain.InvalidInput("asset %s is not an input image", asset.ID)
	}

	inputs, err := json.Marshal(req.Inputs)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: encode inputs: %w", err)
	}
	job := &domain.Job{
		ID:           uuid.NewString(),
		UserID:       req.UserID,
		ProjectID:    req.ProjectID,
		Mode:         mode,
		InputAssetID: asset.ID,
		Status:       domain.JobStatusQueued,
		Inputs:       inputs,
	}
	if err := o.deps.Jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("orchestrator: create job: %w", err)
	}

	o.logger.Info().
		Str("job_id", job.ID).
		Str("user_id", job.UserID).
		Str("mode", string(job.Mode)).
		Msg("job queued")

	snapshot := *job
	o.wg.Add(1)
	go o.run(snapshot)
	return job, nil
}

// Get returns the job if it belongs to userID.
func (o *Orchestrator) Get(ctx context.Context, userID, jobID string) (*domain.Job, error) {
	job, err := o.deps.Jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.UserID != userID {
		return nil, domain.ErrNotFound
	}
	return job, nil
}

// Wait blocks until every pipeline started so far has finished.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// WaitContext is Wait bounded by ctx. It reports whether all pipelines
// finished before ctx was done.
func (o *Orchestrator) WaitContext(ctx context.Context) bool {
	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}
