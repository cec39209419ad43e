// Package redisstore keeps rate-limit counters in Redis.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"productshot/internal/domain"
)

// expiryGrace keeps a counter readable briefly after its window closes.
const expiryGrace = time.Minute

// consumeScript increments every key only if all keys are below their limit.
// KEYS[i] is a counter, ARGV[i] its limit and ARGV[n+i] its expiry in unix
// milliseconds. It returns {allowed, count1, ..., countN}.
var consumeScript = redis.NewScript(`
local n = #KEYS
for i = 1, n do
  local c = tonumber(redis.call('GET', KEYS[i]) or '0')
  if c >= tonumber(ARGV[i]) then
    local out = {0}
    for j = 1, n do
      out[j + 1] = tonumber(redis.call('GET', KEYS[j]) or '0')
    end
    return out
  end
end
local out = {1}
for i = 1, n do
  local c = redis.call('INCR', KEYS[i])
  if c == 1 then
    redis.call('PEXPIREAT', KEYS[i], ARGV[n + i])
  end
  out[i + 1] = c
end
return out
`)

// UsageStore implements domain.UsageRepository.
type UsageStore struct {
	rdb    redis.Scripter
	prefix string
}

// NewUsageStore builds a store on any client that can run scripts.
func NewUsageStore(rdb redis.Scripter, prefix string) *UsageStore {
	if prefix == "" {
		prefix = "ratelimit"
	}
	return &UsageStore{rdb: rdb, prefix: prefix}
}

// counterKey hash-tags the user so all of a user's keys share a cluster slot.
func (s *UsageStore) counterKey(userID string, w domain.UsageWindow) string {
	return fmt.Sprintf("%s:{%s}:%s:%d", s.prefix, userID, w.Kind, w.Start.UTC().Unix())
}

func (s *UsageStore) Consume(ctx context.Context, userID string, windows []domain.UsageWindow) ([]int, bool, error) {
	if len(windows) == 0 {
		return nil, true, nil
	}
	keys := make([]string, len(windows))
	args := make([]any, 0, 2*len(windows))
	for i, w := range windows {
		keys[i] = s.counterKey(userID, w)
		args = append(args, w.Limit)
	}
	for _, w := range windows {
		args = append(args, w.End().Add(expiryGrace).UnixMilli())
	}
	raw, err := consumeScript.Run(ctx, s.rdb, keys, args...).Result()
	if err != nil {
		return nil, false, fmt.Errorf("redis consume: %w", err)
	}
	return parseConsumeResult(raw, len(windows))
}

func (s *UsageStore) Counts(ctx context.Context, userID string, windows []domain.UsageWindow) ([]int, error) {
	client, ok := s.rdb.(redis.Cmdable)
	if !ok {
		return nil, errors.New("redis client does not support reads")
	}
	keys := make([]string, len(windows))
	for i, w := range windows {
		keys[i] = s.counterKey(userID, w)
	}
	values, err := client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget: %w", err)
	}
	counts := make([]int, len(windows))
	for i, v := range values {
		str, ok := v.(string)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(str)
		if err != nil {
			return nil, fmt.Errorf("redis counter %s: %w", keys[i], err)
		}
		counts[i] = n
	}
	return counts, nil
}

// PurgeBefore is a no-op: counters expire on their own.
func (s *UsageStore) PurgeBefore(ctx context.Context, kind domain.WindowKind, before time.Time) (int64, error) {
	return 0, nil
}

func parseConsumeResult(raw any, n int) ([]int, bool, error) {
	values, ok := raw.([]any)
	if !ok || len(values) != n+1 {
		return nil, false, fmt.Errorf("redis consume: unexpected result %v", raw)
	}
	nums := make([]int, len(values))
	for i, v := range values {
		num, ok := v.(int64)
		if !ok {
			return nil, false, fmt.Errorf("redis consume: unexpected element %T", v)
		}
		nums[i] = int(num)
	}
	return nums[1:], nums[0] == 1, nil
}

var _ domain.UsageRepository = (*UsageStore)(nil)
