package domain

import (
	"context"
	"time"
)

// JobRepository persists generation jobs. Mark* methods are conditional
// writes: they return ErrInvalidTransition when the job is not in a state the
// transition may start from, and leave the row untouched.
type JobRepository interface {
	Create(ctx context.Context, job *Job) error
	GetByID(ctx context.Context, jobID string) (*Job, error)
	MarkRunning(ctx context.Context, jobID string) error
	MarkSucceeded(ctx context.Context, jobID string, costUnits int, outputAssetID string) error
	MarkFailed(ctx context.Context, jobID string, message string) error
	ListStale(ctx context.Context, before time.Time, limit int) ([]Job, error)
}

// AssetRepository persists input and output asset rows.
type AssetRepository interface {
	Create(ctx context.Context, asset *Asset) error
	GetByID(ctx context.Context, assetID string) (*Asset, error)
}

// LedgerRepository persists append-only credit entries.
type LedgerRepository interface {
	Balance(ctx context.Context, userID string) (int64, error)
	// Append records an entry unconditionally.
	Append(ctx context.Context, entry *LedgerEntry) error
	// AppendSpend records a negative entry only if the user's balance covers
	// it. It returns an *InsufficientCreditsError otherwise, and
	// ErrAlreadyCharged when an entry with the same reason and reference exists.
	AppendSpend(ctx context.Context, entry *LedgerEntry) error
	List(ctx context.Context, userID string, limit int) ([]LedgerEntry, error)
	FindByRef(ctx context.Context, reason LedgerReason, refType, refID string) (*LedgerEntry, error)
}

// UsageRepository holds rate-limit counters.
type UsageRepository interface {
	// Consume increments every window by one if and only if all windows are
	// below their limit. counts holds the values after the call, in the order
	// of windows.
	Consume(ctx context.Context, userID string, windows []UsageWindow) (counts []int, allowed bool, err error)
	Counts(ctx context.Context, userID string, windows []UsageWindow) ([]int, error)
	PurgeBefore(ctx context.Context, kind WindowKind, before time.Time) (int64, error)
}
