package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// LoginCodeRepository stores one-time login codes in Redis. A code is the
// hand-off between signup (or an external auth flow) and a session: it is
// exchanged exactly once and expires quickly.
type LoginCodeRepository struct {
	client *redis.Client
	ttl    time.Duration
}

func NewLoginCodeRepository(client *redis.Client, ttl time.Duration) *LoginCodeRepository {
	return &LoginCodeRepository{client: client, ttl: ttl}
}

// loginCodeKey generates a Redis key for a login code.
// The code is hashed so raw codes never land in Redis.
func loginCodeKey(code string) string {
	return fmt.Sprintf("login_code:%s", hashToken(code))
}

// StoreLoginCode stores a one-time login code for a user with TTL
func (r *LoginCodeRepository) StoreLoginCode(ctx context.Context, userID uuid.UUID, code string) error {
	err := r.client.Set(ctx, loginCodeKey(code), userID.String(), r.ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to store login code: %w", err)
	}
	return nil
}

// ConsumeLoginCode atomically retrieves and deletes a login code, returning
// the user it belongs to. A second exchange of the same code fails.
func (r *LoginCodeRepository) ConsumeLoginCode(ctx context.Context, code string) (uuid.UUID, error) {
	key := loginCodeKey(code)

	userIDStr, err := r.client.GetDel(ctx, key).Result()
	if err == redis.Nil {
		return uuid.Nil, ErrLoginCodeNotFound
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to consume login code: %w", err)
	}

	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to parse user ID: %w", err)
	}

	return userID, nil
}
