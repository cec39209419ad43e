package memstore

import (
	"context"
	"sync"
	"time"

	"productshot/internal/domain"
)

type usageKey struct {
	userID string
	kind   domain.WindowKind
	start  int64
}

// UsageStore implements domain.UsageRepository.
type UsageStore struct {
	mu     sync.Mutex
	counts map[usageKey]int
}

func NewUsageStore() *UsageStore {
	return &UsageStore{counts: make(map[usageKey]int)}
}

func keyFor(userID string, w domain.UsageWindow) usageKey {
	return usageKey{userID: userID, kind: w.Kind, start: w.Start.UTC().Unix()}
}

func (s *UsageStore) Consume(ctx context.Context, userID string, windows []domain.UsageWindow) ([]int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make([]int, len(windows))
	allowed := true
	for i, w := range windows {
		counts[i] = s.counts[keyFor(userID, w)]
		if counts[i] >= w.Limit {
			allowed = false
		}
	}
	if !allowed {
		return counts, false, nil
	}
	for i, w := range windows {
		k := keyFor(userID, w)
		s.counts[k]++
		counts[i] = s.counts[k]
	}
	return counts, true, nil
}

func (s *UsageStore) Counts(ctx context.Context, userID string, windows []domain.UsageWindow) ([]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make([]int, len(windows))
	for i, w := range windows {
		counts[i] = s.counts[keyFor(userID, w)]
	}
	return counts, nil
}

func (s *UsageStore) PurgeBefore(ctx context.Context, kind domain.WindowKind, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	cutoff := before.UTC().Unix()
	for k := range s.counts {
		if k.kind == kind && k.start < cutoff {
			delete(s.counts, k)
			n++
		}
	}
	return n, nil
}

var _ domain.UsageRepository = (*UsageStore)(nil)
