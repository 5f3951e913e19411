package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RequestLimiter tracks friend-request volume per user over a rolling
// window, backing the abuse caps of the friend service.
type RequestLimiter interface {
	// AllowOutbound records an outbound request attempt for the user and
	// reports whether it stays within the rolling-window cap.
	AllowOutbound(ctx context.Context, userID uint, max int, window time.Duration) (bool, error)
}

type redisRequestLimiter struct {
	client *redis.Client
}

// NewRedisRequestLimiter creates a new Redis-backed RequestLimiter.
func NewRedisRequestLimiter(client *redis.Client) RequestLimiter {
	return &redisRequestLimiter{client: client}
}

const outboundKeyPrefix = "fr:out:"

// AllowOutbound implements a sliding window over a sorted set: scores
// are send timestamps, members are unique per attempt. Entries older
// than the window are trimmed before counting.
func (l *redisRequestLimiter) AllowOutbound(ctx context.Context, userID uint, max int, window time.Duration) (bool, error) {
	key := outboundKeyPrefix + strconv.FormatUint(uint64(userID), 10)
	now := time.Now()
	cutoff := now.Add(-window)

	if err := l.client.ZRemRangeByScore(ctx, key,
		"0", strconv.FormatInt(cutoff.UnixMilli(), 10)).Err(); err != nil {
		return false, fmt.Errorf("failed to trim request window for user %d: %w", userID, err)
	}

	count, err := l.client.ZCard(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to count request window for user %d: %w", userID, err)
	}
	if count >= int64(max) {
		return false, nil
	}

	member := redis.Z{Score: float64(now.UnixMilli()), Member: uuid.NewString()}
	if err := l.client.ZAdd(ctx, key, member).Err(); err != nil {
		return false, fmt.Errorf("failed to record request for user %d: %w", userID, err)
	}
	// Keep the key from outliving an idle user.
	l.client.Expire(ctx, key, window)

	return true, nil
}
