package memstore

import (
	"context"
	"sync"
	"time"

	"productshot/internal/domain"
)

// LedgerStore implements domain.LedgerRepository. Entries are kept in
// insertion order per user.
type LedgerStore struct {
	mu      sync.Mutex
	entries map[string][]domain.LedgerEntry
}

func NewLedgerStore() *LedgerStore {
	return &LedgerStore{entries: make(map[string][]domain.LedgerEntry)}
}

func (s *LedgerStore) Balance(ctx context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balanceLocked(userID), nil
}

func (s *LedgerStore) Append(ctx context.Context, entry *domain.LedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.chargedLocked(entry) {
		return domain.ErrAlreadyCharged
	}
	s.appendLocked(entry)
	return nil
}

func (s *LedgerStore) AppendSpend(ctx context.Context, entry *domain.LedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.chargedLocked(entry) {
		return domain.ErrAlreadyCharged
	}
	balance := s.balanceLocked(entry.UserID)
	if balance+entry.Delta < 0 {
		return &domain.InsufficientCreditsError{Balance: balance, Required: -entry.Delta}
	}
	s.appendLocked(entry)
	return nil
}

func (s *LedgerStore) List(ctx context.Context, userID string, limit int) ([]domain.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.entries[userID]
	out := make([]domain.LedgerEntry, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		out = append(out, all[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *LedgerStore) FindByRef(ctx context.Context, reason domain.LedgerReason, refType, refID string) (*domain.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, entries := range s.entries {
		for _, e := range entries {
			if e.Reason == reason && e.RefType == refType && e.RefID == refID {
				cp := e
				return &cp, nil
			}
		}
	}
	return nil, domain.ErrNotFound
}

func (s *LedgerStore) balanceLocked(userID string) int64 {
	var sum int64
	for _, e := range s.entries[userID] {
		sum += e.Delta
	}
	return sum
}

// chargedLocked mirrors the unique index on spend references.
func (s *LedgerStore) chargedLocked(entry *domain.LedgerEntry) bool {
	if entry.Reason != domain.ReasonGenerationSpend || entry.RefID == "" {
		return false
	}
	for _, entries := range s.entries {
		for _, e := range entries {
			if e.Reason == domain.ReasonGenerationSpend && e.RefType == entry.RefType && e.RefID == entry.RefID {
				return true
			}
		}
	}
	return false
}

func (s *LedgerStore) appendLocked(entry *domain.LedgerEntry) {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.entries[entry.UserID] = append(s.entries[entry.UserID], *entry)
}

var _ domain.LedgerRepository = (*LedgerStore)(nil)
