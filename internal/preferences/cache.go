package preferences

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/lumenhq/onboard-api/internal/logging"
)

// Store is the preference access surface consumed by the onboarding flow.
// Both Repository and Cache satisfy it, so the cache can wrap the
// repository transparently.
type Store interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (*Preferences, error)
	Create(ctx context.Context, userID uuid.UUID) (*Preferences, error)
	RecordPlanSelection(ctx context.Context, userID uuid.UUID, planID string) error
	MarkCompleted(ctx context.Context, userID uuid.UUID) error
}

// Cache is a read-through Redis cache over the preferences repository with
// an explicit TTL. Every write invalidates the cached row and publishes a
// change event so watchers re-evaluate their routing decision. Cache misses
// and Redis failures fall back to the repository; the cache never turns a
// healthy database read into an error.
type Cache struct {
	repo    *Repository
	client  *redis.Client
	watcher *Watcher
	ttl     time.Duration
	logger  *logging.Logger
}

func NewCache(repo *Repository, client *redis.Client, watcher *Watcher, ttl time.Duration, logger *logging.Logger) *Cache {
	return &Cache{
		repo:    repo,
		client:  client,
		watcher: watcher,
		ttl:     ttl,
		logger:  logger,
	}
}

func cacheKey(userID uuid.UUID) string {
	return fmt.Sprintf("preferences:%s", userID.String())
}

// GetByUserID returns the cached row when present, otherwise reads through
// to the repository and populates the cache.
func (c *Cache) GetByUserID(ctx context.Context, userID uuid.UUID) (*Preferences, error) {
	key := cacheKey(userID)

	data, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var prefs Preferences
		if unmarshalErr := json.Unmarshal(data, &prefs); unmarshalErr == nil {
			return &prefs, nil
		}
		// Corrupt entry: drop it and fall through to the repository.
		c.client.Del(ctx, key)
	} else if !errors.Is(err, redis.Nil) {
		c.logger.Warn("preferences cache read failed", "user_id", userID, "error", err.Error())
	}

	prefs, err := c.repo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	c.store(ctx, prefs)
	return prefs, nil
}

// Create delegates to the repository and primes the cache with the result.
func (c *Cache) Create(ctx context.Context, userID uuid.UUID) (*Preferences, error) {
	prefs, err := c.repo.Create(ctx, userID)
	if err != nil {
		return nil, err
	}

	c.store(ctx, prefs)
	c.publish(ctx, userID)
	return prefs, nil
}

// RecordPlanSelection writes through to the repository, invalidates the
// cached row and notifies watchers.
func (c *Cache) RecordPlanSelection(ctx context.Context, userID uuid.UUID, planID string) error {
	if err := c.repo.RecordPlanSelection(ctx, userID, planID); err != nil {
		return err
	}

	c.invalidate(ctx, userID)
	c.publish(ctx, userID)
	return nil
}

// MarkCompleted writes through to the repository, invalidates the cached
// row and notifies watchers.
func (c *Cache) MarkCompleted(ctx context.Context, userID uuid.UUID) error {
	if err := c.repo.MarkCompleted(ctx, userID); err != nil {
		return err
	}

	c.invalidate(ctx, userID)
	c.publish(ctx, userID)
	return nil
}

func (c *Cache) store(ctx context.Context, prefs *Preferences) {
	data, err := json.Marshal(prefs)
	if err != nil {
		return
	}

	if err := c.client.Set(ctx, cacheKey(prefs.UserID), data, c.ttl).Err(); err != nil {
		c.logger.Warn("preferences cache write failed", "user_id", prefs.UserID, "error", err.Error())
	}
}

func (c *Cache) invalidate(ctx context.Context, userID uuid.UUID) {
	if err := c.client.Del(ctx, cacheKey(userID)).Err(); err != nil {
		c.logger.Warn("preferences cache invalidation failed", "user_id", userID, "error", err.Error())
	}
}

// publish re-reads the row and broadcasts it as a change event. Best-effort:
// a failed publish only delays watchers until their next poll.
func (c *Cache) publish(ctx context.Context, userID uuid.UUID) {
	if c.watcher == nil {
		return
	}

	prefs, err := c.repo.GetByUserID(ctx, userID)
	if err != nil {
		c.logger.Warn("failed to read preferences for change event", "user_id", userID, "error", err.Error())
		return
	}

	if err := c.watcher.Publish(ctx, prefs); err != nil {
		c.logger.Warn("failed to publish preferences change event", "user_id", userID, "error", err.Error())
	}
}
