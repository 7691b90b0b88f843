package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is the account row owned by the authentication subsystem.
// The onboarding flow only ever reads it.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID           uuid.UUID  `bun:"id,pk,type:uuid,default:gen_random_uuid()"`
	Email        string     `bun:"email,notnull,unique"`
	PasswordHash string     `bun:"password_hash,notnull"`
	CreatedAt    time.Time  `bun:"created_at,nullzero,notnull,default:now()"`
	UpdatedAt    time.Time  `bun:"updated_at,nullzero,notnull,default:now()"`
	DeletedAt    *time.Time `bun:"deleted_at,soft_delete,nullzero"`
}

// UserPreferences holds the per-user onboarding state. Exactly one row per
// user; created lazily on first access, never deleted by the onboarding flow.
type UserPreferences struct {
	bun.BaseModel `bun:"table:user_preferences,alias:up"`

	UserID                 uuid.UUID  `bun:"user_id,pk,type:uuid"`
	HasCompletedOnboarding bool       `bun:"has_completed_onboarding,notnull,default:false"`
	OnboardingStep         int        `bun:"onboarding_step,notnull,default:1"`
	SelectedPlanID         *string    `bun:"selected_plan_id"`
	OnboardingStartedAt    *time.Time `bun:"onboarding_started_at"`
	OnboardingCompletedAt  *time.Time `bun:"onboarding_completed_at"`
	CreatedAt              time.Time  `bun:"created_at,nullzero,notnull,default:now()"`
	UpdatedAt              time.Time  `bun:"updated_at,nullzero,notnull,default:now()"`
}

// SubscriptionRecord mirrors the billing provider's authoritative state.
// Owned by billing sync; read-only input to the onboarding gate.
type SubscriptionRecord struct {
	bun.BaseModel `bun:"table:subscription_records,alias:sr"`

	UserID           uuid.UUID  `bun:"user_id,pk,type:uuid"`
	Status           string     `bun:"status,notnull"`
	ProductName      string     `bun:"product_name,nullzero"`
	CurrentPeriodEnd *time.Time `bun:"current_period_end"`
	TrialStart       *time.Time `bun:"trial_start"`
	TrialEnd         *time.Time `bun:"trial_end"`
	TrialUsed        bool       `bun:"trial_used,notnull,default:false"`
	CreatedAt        time.Time  `bun:"created_at,nullzero,notnull,default:now()"`
	UpdatedAt        time.Time  `bun:"updated_at,nullzero,notnull,default:now()"`
}
