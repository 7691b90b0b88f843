// Package preferences implements the per-user onboarding preference store:
// a single row per account holding onboarding progress, plus a read-through
// cache and a change feed consumed by the navigation guard.
package preferences

import (
	"time"

	"github.com/google/uuid"
)

// Preferences is the onboarding state row for one user.
type Preferences struct {
	UserID                 uuid.UUID  `json:"user_id"`
	HasCompletedOnboarding bool       `json:"has_completed_onboarding"`
	OnboardingStep         int        `json:"onboarding_step"`
	SelectedPlanID         *string    `json:"selected_plan_id"`
	OnboardingStartedAt    *time.Time `json:"onboarding_started_at"`
	OnboardingCompletedAt  *time.Time `json:"onboarding_completed_at"`
	CreatedAt              time.Time  `json:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at"`
}

// HasSelectedPlan reports whether a plan has been recorded for this user.
func (p *Preferences) HasSelectedPlan() bool {
	return p.SelectedPlanID != nil && *p.SelectedPlanID != ""
}
