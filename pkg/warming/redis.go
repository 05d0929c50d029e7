package warming

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter shares one daily budget across replicas. The counter key is
// keyed by UTC date and expires after 48h, so day rollover needs no sweeper.
type RedisLimiter struct {
	client *redis.Client
	prefix string
	limit  int
	now    func() time.Time
}

// NewRedisLimiter creates a Redis-backed limiter. prefix namespaces the
// counter keys (e.g. "send_limit:email"). limit <= 0 disables capping.
func NewRedisLimiter(client *redis.Client, prefix string, limit int) *RedisLimiter {
	return &RedisLimiter{client: client, prefix: prefix, limit: limit, now: time.Now}
}

func (l *RedisLimiter) key() string {
	return fmt.Sprintf("%s:%s", l.prefix, l.now().UTC().Format("2006-01-02"))
}

func (l *RedisLimiter) CanSend(ctx context.Context) (bool, error) {
	if l.limit <= 0 {
		return true, nil
	}
	sent, err := l.SentToday(ctx)
	if err != nil {
		return false, err
	}
	return sent < l.limit, nil
}

func (l *RedisLimiter) RecordSend(ctx context.Context) error {
	key := l.key()
	val, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("incrementing send counter: %w", err)
	}
	if val == 1 {
		if err := l.client.Expire(ctx, key, 48*time.Hour).Err(); err != nil {
			return fmt.Errorf("setting counter expiry: %w", err)
		}
	}
	return nil
}

func (l *RedisLimiter) Remaining(ctx context.Context) (int, error) {
	if l.limit <= 0 {
		return -1, nil
	}
	sent, err := l.SentToday(ctx)
	if err != nil {
		return 0, err
	}
	remaining := l.limit - sent
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

func (l *RedisLimiter) SentToday(ctx context.Context) (int, error) {
	val, err := l.client.Get(ctx, l.key()).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading send counter: %w", err)
	}
	sent, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("parsing send counter: %w", err)
	}
	return sent, nil
}

// Limit returns the configured daily cap.
func (l *RedisLimiter) Limit() int {
	return l.limit
}
