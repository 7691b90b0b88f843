package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// TokenService defines the interface for token creation and validation.
type TokenService interface {
	CreateToken(userID uuid.UUID, email string, duration time.Duration) (string, error)
	VerifyToken(tokenStr string) (*TokenClaims, error)
}

// RefreshTokenRepository defines the interface for refresh token storage
type RefreshTokenRepository interface {
	StoreRefreshToken(ctx context.Context, userID uuid.UUID, token string, expiresAt time.Time) error
	GetRefreshToken(ctx context.Context, token string) (*RefreshToken, error)
	RevokeRefreshToken(ctx context.Context, token string) error
	RevokeAllUserTokens(ctx context.Context, userID uuid.UUID) error
}

// RateLimiter throttles authentication endpoints by client IP and applies
// per-email cooldowns on registration.
type RateLimiter interface {
	CheckIPRateLimitWithPurpose(ctx context.Context, ip, purpose string) (bool, error)
	RecordIPRequestWithPurpose(ctx context.Context, ip, purpose string) error
	CheckEmailCooldown(ctx context.Context, email string) (bool, error)
	SetEmailCooldown(ctx context.Context, email string) error
}

// DestinationResolver runs the session bootstrap after an authentication
// exchange completes and resolves where the client should land. It never
// fails; persistence problems degrade to a safe default route.
type DestinationResolver interface {
	Bootstrap(ctx context.Context, userID uuid.UUID, explicitTarget string) Destination
}

// Destination mirrors the onboarding package's resolved navigation target.
// Declared here so the auth package does not import onboarding.
type Destination struct {
	Route string `json:"route"`
	Path  string `json:"destination"`
}
