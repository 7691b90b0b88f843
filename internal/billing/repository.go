package billing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/lumenhq/onboard-api/internal/database"
)

// ErrNoSubscription means no local record exists for the user. Absence is
// a normal state for new accounts.
var ErrNoSubscription = errors.New("no subscription record")

// Repository persists the local mirror of provider subscription state.
type Repository struct {
	db *bun.DB
}

func NewRepository(db *bun.DB) *Repository {
	return &Repository{db: db}
}

// GetByUserID returns the local subscription record for a user.
func (r *Repository) GetByUserID(ctx context.Context, userID uuid.UUID) (*database.SubscriptionRecord, error) {
	record := new(database.SubscriptionRecord)
	err := r.db.NewSelect().
		Model(record).
		Where("user_id = ?", userID).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoSubscription
		}
		return nil, fmt.Errorf("failed to get subscription record: %w", err)
	}

	return record, nil
}

// Upsert merges the provider's state into the local record. Last write wins;
// the provider is authoritative so there is nothing to reconcile locally.
func (r *Repository) Upsert(ctx context.Context, record *database.SubscriptionRecord) error {
	_, err := r.db.NewInsert().
		Model(record).
		On("CONFLICT (user_id) DO UPDATE").
		Set("status = EXCLUDED.status").
		Set("product_name = EXCLUDED.product_name").
		Set("current_period_end = EXCLUDED.current_period_end").
		Set("trial_start = EXCLUDED.trial_start").
		Set("trial_end = EXCLUDED.trial_end").
		Set("trial_used = EXCLUDED.trial_used").
		Set("updated_at = now()").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to upsert subscription record: %w", err)
	}

	return nil
}
