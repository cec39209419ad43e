package redisstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"productshot/internal/domain"
)

func TestCounterKey(t *testing.T) {
	s := NewUsageStore(nil, "")
	w := domain.UsageWindow{Kind: domain.WindowPerMinute, Start: time.Unix(1700000040, 0)}
	assert.Equal(t, "ratelimit:{user-1}:per_minute:1700000040", s.counterKey("user-1", w))
}

func TestParseConsumeResult(t *testing.T) {
	counts, allowed, err := parseConsumeResult([]any{int64(1), int64(4), int64(41)}, 2)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, []int{4, 41}, counts)

	counts, allowed, err = parseConsumeResult([]any{int64(0), int64(10), int64(40)}, 2)
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, []int{10, 40}, counts)

	_, _, err = parseConsumeResult([]any{int64(1)}, 2)
	assert.Error(t, err)
	_, _, err = parseConsumeResult("OK", 2)
	assert.Error(t, err)
}

func newMiniredisStore(t *testing.T, now time.Time) (*UsageStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	mr.SetTime(now)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewUsageStore(rdb, "test"), mr
}

func usageWindows(now time.Time, perMinute, perDay int) []domain.UsageWindow {
	return []domain.UsageWindow{
		{Kind: domain.WindowPerMinute, Start: domain.WindowPerMinute.Start(now), Limit: perMinute},
		{Kind: domain.WindowPerDay, Start: domain.WindowPerDay.Start(now), Limit: perDay},
	}
}

func TestConsumeScriptRejectsBeyondLimit(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 30, 0, time.UTC)
	store, _ := newMiniredisStore(t, now)
	ctx := context.Background()
	windows := usageWindows(now, 3, 100)

	for i := 1; i <= 3; i++ {
		counts, allowed, err := store.Consume(ctx, "user-1", windows)
		require.NoError(t, err)
		require.True(t, allowed, "request %d", i)
		assert.Equal(t, []int{i, i}, counts)
	}

	counts, allowed, err := store.Consume(ctx, "user-1", windows)
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, []int{3, 3}, counts)

	counts, err = store.Counts(ctx, "user-1", windows)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 3}, counts)

	counts, allowed, err = store.Consume(ctx, "user-2", windows)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, []int{1, 1}, counts)
}

func TestConsumeScriptIsAllOrNothing(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 30, 0, time.UTC)
	store, _ := newMiniredisStore(t, now)
	ctx := context.Background()

	// The day window is exhausted first; the minute counter must not move.
	windows := usageWindows(now, 10, 2)
	for i := 0; i < 2; i++ {
		_, allowed, err := store.Consume(ctx, "user-1", windows)
		require.NoError(t, err)
		require.True(t, allowed)
	}
	for i := 0; i < 3; i++ {
		counts, allowed, err := store.Consume(ctx, "user-1", windows)
		require.NoError(t, err)
		assert.False(t, allowed)
		assert.Equal(t, []int{2, 2}, counts)
	}
}

func TestConsumeScriptExpiresCounters(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 30, 0, time.UTC)
	store, mr := newMiniredisStore(t, now)
	ctx := context.Background()
	windows := usageWindows(now, 1, 100)

	_, allowed, err := store.Consume(ctx, "user-1", windows)
	require.NoError(t, err)
	require.True(t, allowed)

	minuteKey := store.counterKey("user-1", windows[0])
	dayKey := store.counterKey("user-1", windows[1])
	assert.Equal(t, windows[0].End().Add(expiryGrace).Sub(now), mr.TTL(minuteKey))
	assert.Equal(t, windows[1].End().Add(expiryGrace).Sub(now), mr.TTL(dayKey))

	_, allowed, err = store.Consume(ctx, "user-1", windows)
	require.NoError(t, err)
	assert.False(t, allowed)

	mr.FastForward(mr.TTL(minuteKey))
	assert.False(t, mr.Exists(minuteKey))
	assert.True(t, mr.Exists(dayKey))

	later := now.Add(2 * time.Minute)
	counts, allowed, err := store.Consume(ctx, "user-1", usageWindows(later, 1, 100))
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, []int{1, 2}, counts)
}
