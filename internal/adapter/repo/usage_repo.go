package repo

import (
	"context"
	"fmt"
	"time"

	"productshot/internal/domain"
	"productshot/internal/infra"
	"productshot/internal/sqlinline"
)

// UsageRepositoryPG keeps rate-limit counters in usage_counters.
type UsageRepositoryPG struct {
	db infra.Transactor
}

func NewUsageRepository(db infra.Transactor) *UsageRepositoryPG {
	return &UsageRepositoryPG{db: db}
}

// Consume creates missing counter rows, locks every row in the order given,
// and increments them only when all are below their limit. Callers must pass
// windows in a consistent order to avoid lock-order inversions.
func (r *UsageRepositoryPG) Consume(ctx context.Context, userID string, windows []domain.UsageWindow) ([]int, bool, error) {
	counts := make([]int, len(windows))
	allowed := true
	err := r.db.InTx(ctx, func(tx infra.SQLExecutor) error {
		for _, w := range windows {
			if _, err := tx.Exec(ctx, sqlinline.QEnsureUsageCounter, userID, string(w.Kind), w.Start); err != nil {
				return fmt.Errorf("ensure %s counter: %w", w.Kind, err)
			}
		}
		for i, w := range windows {
			if err := tx.QueryRow(ctx, sqlinline.QLockUsageCounter, userID, string(w.Kind), w.Start).Scan(&counts[i]); err != nil {
				return fmt.Errorf("lock %s counter: %w", w.Kind, err)
			}
			if counts[i] >= w.Limit {
				allowed = false
			}
		}
		if !allowed {
			return nil
		}
		for i, w := range windows {
			if err := tx.QueryRow(ctx, sqlinline.QIncrementUsageCounter, userID, string(w.Kind), w.Start).Scan(&counts[i]); err != nil {
				return fmt.Errorf("increment %s counter: %w", w.Kind, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return counts, allowed, nil
}

// Counts reads counters without locking; missing rows count as zero.
func (r *UsageRepositoryPG) Counts(ctx context.Context, userID string, windows []domain.UsageWindow) ([]int, error) {
	counts := make([]int, len(windows))
	for i, w := range windows {
		if err := r.db.QueryRow(ctx, sqlinline.QSelectUsageCounter, userID, string(w.Kind), w.Start).Scan(&counts[i]); err != nil {
			return nil, fmt.Errorf("select %s counter: %w", w.Kind, err)
		}
	}
	return counts, nil
}

func (r *UsageRepositoryPG) PurgeBefore(ctx context.Context, kind domain.WindowKind, before time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, sqlinline.QPurgeUsageCounters, string(kind), before)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

var _ domain.UsageRepository = (*UsageRepositoryPG)(nil)
