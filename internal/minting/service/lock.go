package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const lockKeyPrefix = "mint_lock:"

// RedisLock implements MintLock on a shared Redis instance so replicas of
// the server serialize initiation for the same (wallet, badge) pair. The TTL
// reclaims keys a crashed holder never released; release itself is
// best-effort and unconditional, which is acceptable because the store's
// uniqueness guard backstops the lock.
type RedisLock struct {
	client *redis.Client
	logger *slog.Logger
}

func NewRedisLock(client *redis.Client, logger *slog.Logger) *RedisLock {
	return &RedisLock{client: client, logger: logger}
}

// Acquire claims the key for ttl. Returns false when another holder has it.
func (l *RedisLock) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return l.client.SetNX(ctx, lockKeyPrefix+key, "1", ttl).Result()
}

// Release drops the key. Failures are logged and swallowed; the TTL will
// collect the key either way.
func (l *RedisLock) Release(ctx context.Context, key string) {
	if err := l.client.Del(ctx, lockKeyPrefix+key).Err(); err != nil {
		l.logger.WarnContext(ctx, "mint_lock_release_failed", "key", key, "error", err)
	}
}

var _ MintLock = (*RedisLock)(nil)
