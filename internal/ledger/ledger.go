// Package ledger tracks user credits as an append-only list of signed deltas.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"productshot/internal/domain"
)

// Ledger is the credit ledger service.
type Ledger struct {
	repo   domain.LedgerRepository
	logger zerolog.Logger
}

func New(repo domain.LedgerRepository, logger zerolog.Logger) *Ledger {
	return &Ledger{repo: repo, logger: logger.With().Str("component", "ledger").Logger()}
}

// Balance returns the sum of the user's deltas. It is not clamped.
func (l *Ledger) Balance(ctx context.Context, userID string) (int64, error) {
	b, err := l.repo.Balance(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("ledger: balance: %w", err)
	}
	return b, nil
}

// HasSufficientCredits reports whether the balance covers n units.
func (l *Ledger) HasSufficientCredits(ctx context.Context, userID string, n int64) (bool, int64, error) {
	b, err := l.Balance(ctx, userID)
	if err != nil {
		return false, 0, err
	}
	return b >= n, b, nil
}

// Spend debits n units for a successful job. It fails with
// *domain.InsufficientCreditsError when the balance no longer covers n, and
// with domain.ErrAlreadyCharged when the job was already debited.
func (l *Ledger) Spend(ctx context.Context, userID string, n int64, jobID string) (*domain.LedgerEntry, error) {
	if n <= 0 {
		return nil, domain.InvalidInput("spend amount must be positive, got %d", n)
	}
	if jobID == "" {
		return nil, domain.InvalidInput("spend requires a job reference")
	}
	entry := &domain.LedgerEntry{
		ID:      uuid.NewString(),
		UserID:  userID,
		Delta:   -n,
		Reason:  domain.ReasonGenerationSpend,
		RefType: domain.RefTypeJob,
		RefID:   jobID,
	}
	if err := l.repo.AppendSpend(ctx, entry); err != nil {
		return nil, fmt.Errorf("ledger: spend: %w", err)
	}
	l.logger.Info().
		Str("user_id", userID).
		Str("job_id", jobID).
		Int64("delta", entry.Delta).
		Msg("credits spent")
	return entry, nil
}

// Grant credits n units for any reason other than a generation spend.
func (l *Ledger) Grant(ctx context.Context, userID string, n int64, reason domain.LedgerReason, refType, refID string) (*domain.LedgerEntry, error) {
	if n <= 0 {
		return nil, domain.InvalidInput("grant amount must be positive, got %d", n)
	}
	if reason == domain.ReasonGenerationSpend {
		return nil, domain.InvalidInput("generation_spend cannot be granted")
	}
	if _, ok := domain.ParseLedgerReason(string(reason)); !ok {
		return nil, domain.InvalidInput("unknown ledger reason %q", reason)
	}
	entry := &domain.LedgerEntry{
		ID:      uuid.NewString(),
		UserID:  userID,
		Delta:   n,
		Reason:  reason,
		RefType: refType,
		RefID:   refID,
	}
	if err := l.repo.Append(ctx, entry); err != nil {
		return nil, fmt.Errorf("ledger: grant: %w", err)
	}
	l.logger.Info().
		Str("user_id", userID).
		Str("reason", string(reason)).
		Int64("delta", n).
		Msg("credits granted")
	return entry, nil
}

// Entries lists the newest entries first.
func (l *Ledger) Entries(ctx context.Context, userID string, limit int) ([]domain.LedgerEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	entries, err := l.repo.List(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("ledger: entries: %w", err)
	}
	return entries, nil
}

// ChargeForJob returns the spend entry recorded for jobID, if any.
func (l *Ledger) ChargeForJob(ctx context.Context, jobID string) (*domain.LedgerEntry, bool, error) {
	entry, err := l.repo.FindByRef(ctx, domain.ReasonGenerationSpend, domain.RefTypeJob, jobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("ledger: charge lookup: %w", err)
	}
	return entry, true, nil
}
