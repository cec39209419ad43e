// Package memstore provides mutex-guarded in-memory implementations of the
// domain repositories for single-process deployments and tests.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"productshot/internal/domain"
)

// JobStore implements domain.JobRepository.
type JobStore struct {
	mu   sync.Mutex
	now  func() time.Time
	jobs map[string]*domain.Job
}

func NewJobStore() *JobStore {
	return &JobStore{now: time.Now, jobs: make(map[string]*domain.Job)}
}

func (s *JobStore) Create(ctx context.Context, job *domain.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now().UTC()
	job.Status = domain.JobStatusQueued
	job.CreatedAt = now
	job.UpdatedAt = now
	cp := *job
	s.jobs[job.ID] = &cp
	return nil
}

func (s *JobStore) GetByID(ctx context.Context, jobID string) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *job
	return &cp, nil
}

func (s *JobStore) MarkRunning(ctx context.Context, jobID string) error {
	return s.transition(jobID, domain.JobStatusRunning, func(j *domain.Job, now time.Time) {
		j.StartedAt = &now
	})
}

func (s *JobStore) MarkSucceeded(ctx context.Context, jobID string, costUnits int, outputAssetID string) error {
	return s.transition(jobID, domain.JobStatusSucceeded, func(j *domain.Job, _ time.Time) {
		j.CostUnits = costUnits
		j.OutputAssetID = outputAssetID
	})
}

func (s *JobStore) MarkFailed(ctx context.Context, jobID string, message string) error {
	return s.transition(jobID, domain.JobStatusFailed, func(j *domain.Job, _ time.Time) {
		j.Error = message
	})
}

func (s *JobStore) transition(jobID string, to domain.JobStatus, apply func(*domain.Job, time.Time)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return domain.ErrNotFound
	}
	if !domain.CanTransition(job.Status, to) {
		return domain.ErrInvalidTransition
	}
	now := s.now().UTC()
	job.Status = to
	job.UpdatedAt = now
	apply(job, now)
	return nil
}

func (s *JobStore) ListStale(ctx context.Context, before time.Time, limit int) ([]domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Job
	for _, job := range s.jobs {
		if job.Status.Terminal() {
			continue
		}
		since := job.CreatedAt
		if job.StartedAt != nil {
			since = *job.StartedAt
		}
		if since.Before(before) {
			out = append(out, *job)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// SetClock overrides the time source used for timestamps.
func (s *JobStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

// AssetStore implements domain.AssetRepository.
type AssetStore struct {
	mu     sync.Mutex
	assets map[string]*domain.Asset
}

func NewAssetStore() *AssetStore {
	return &AssetStore{assets: make(map[string]*domain.Asset)}
}

func (s *AssetStore) Create(ctx context.Context, asset *domain.Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if asset.CreatedAt.IsZero() {
		asset.CreatedAt = time.Now().UTC()
	}
	cp := *asset
	s.assets[asset.ID] = &cp
	return nil
}

func (s *AssetStore) GetByID(ctx context.Context, assetID string) (*domain.Asset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	asset, ok := s.assets[assetID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *asset
	return &cp, nil
}

var (
	_ domain.JobRepository   = (*JobStore)(nil)
	_ domain.AssetRepository = (*AssetStore)(nil)
)
