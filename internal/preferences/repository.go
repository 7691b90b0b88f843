package preferences

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/lumenhq/onboard-api/internal/database"
)

// ErrNotFound means no preferences row exists for the user yet. Callers
// treat this as "fresh user", not as a failure.
var ErrNotFound = errors.New("preferences not found")

// Repository handles preference row persistence
type Repository struct {
	db *bun.DB
}

func NewRepository(db *bun.DB) *Repository {
	return &Repository{db: db}
}

// GetByUserID retrieves the preferences row for a user.
// Returns ErrNotFound when the row does not exist.
func (r *Repository) GetByUserID(ctx context.Context, userID uuid.UUID) (*Preferences, error) {
	dbPrefs := new(database.UserPreferences)
	err := r.db.NewSelect().
		Model(dbPrefs).
		Where("user_id = ?", userID).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get preferences: %w", err)
	}

	return mapDBPreferencesToModel(dbPrefs), nil
}

// Create inserts the initial preferences row for a user. Inserting a row
// that already exists is a no-op, so concurrent bootstraps are safe.
func (r *Repository) Create(ctx context.Context, userID uuid.UUID) (*Preferences, error) {
	now := time.Now()
	dbPrefs := &database.UserPreferences{
		UserID:                 userID,
		HasCompletedOnboarding: false,
		OnboardingStep:         1,
		OnboardingStartedAt:    &now,
	}

	_, err := r.db.NewInsert().
		Model(dbPrefs).
		On("CONFLICT (user_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create preferences: %w", err)
	}

	// Re-read so a lost conflict race still returns the winning row.
	return r.GetByUserID(ctx, userID)
}

// RecordPlanSelection upserts the tentative plan choice and advances the
// progress marker. The step only ever moves forward.
func (r *Repository) RecordPlanSelection(ctx context.Context, userID uuid.UUID, planID string) error {
	now := time.Now()
	dbPrefs := &database.UserPreferences{
		UserID:              userID,
		OnboardingStep:      2,
		SelectedPlanID:      &planID,
		OnboardingStartedAt: &now,
	}

	_, err := r.db.NewInsert().
		Model(dbPrefs).
		On("CONFLICT (user_id) DO UPDATE").
		Set("selected_plan_id = EXCLUDED.selected_plan_id").
		Set("onboarding_step = GREATEST(up.onboarding_step, EXCLUDED.onboarding_step)").
		Set("updated_at = now()").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to record plan selection: %w", err)
	}

	return nil
}

// MarkCompleted upserts the completion fields. Safe to re-apply: the
// completion timestamp is only written once, so repeated invocations do
// not produce divergent values.
func (r *Repository) MarkCompleted(ctx context.Context, userID uuid.UUID) error {
	now := time.Now()
	dbPrefs := &database.UserPreferences{
		UserID:                 userID,
		HasCompletedOnboarding: true,
		OnboardingStep:         3,
		OnboardingStartedAt:    &now,
		OnboardingCompletedAt:  &now,
	}

	_, err := r.db.NewInsert().
		Model(dbPrefs).
		On("CONFLICT (user_id) DO UPDATE").
		Set("has_completed_onboarding = TRUE").
		Set("onboarding_step = GREATEST(up.onboarding_step, EXCLUDED.onboarding_step)").
		Set("onboarding_completed_at = COALESCE(up.onboarding_completed_at, EXCLUDED.onboarding_completed_at)").
		Set("updated_at = now()").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to mark onboarding completed: %w", err)
	}

	return nil
}

// mapDBPreferencesToModel converts database model to domain model
func mapDBPreferencesToModel(dbp *database.UserPreferences) *Preferences {
	return &Preferences{
		UserID:                 dbp.UserID,
		HasCompletedOnboarding: dbp.HasCompletedOnboarding,
		OnboardingStep:         dbp.OnboardingStep,
		SelectedPlanID:         dbp.SelectedPlanID,
		OnboardingStartedAt:    dbp.OnboardingStartedAt,
		OnboardingCompletedAt:  dbp.OnboardingCompletedAt,
		CreatedAt:              dbp.CreatedAt,
		UpdatedAt:              dbp.UpdatedAt,
	}
}
