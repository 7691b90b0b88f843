package onboarding

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisSelectionLocker implements the per-user plan-selection click lock
// with a Redis SETNX key. The TTL bounds how long a crashed request can
// keep a user locked out.
type RedisSelectionLocker struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisSelectionLocker(client *redis.Client, ttl time.Duration) *RedisSelectionLocker {
	return &RedisSelectionLocker{client: client, ttl: ttl}
}

func selectionLockKey(userID uuid.UUID) string {
	return fmt.Sprintf("onboarding:selection_lock:%s", userID.String())
}

// Acquire takes the lock for the user. Returns false when another selection
// is already preparing a redirect.
func (l *RedisSelectionLocker) Acquire(ctx context.Context, userID uuid.UUID) (bool, error) {
	ok, err := l.client.SetNX(ctx, selectionLockKey(userID), "1", l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire selection lock: %w", err)
	}
	return ok, nil
}

// Release drops the lock. Errors are ignored; the TTL reclaims the key.
func (l *RedisSelectionLocker) Release(ctx context.Context, userID uuid.UUID) {
	l.client.Del(ctx, selectionLockKey(userID))
}
