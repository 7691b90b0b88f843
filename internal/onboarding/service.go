// Package onboarding implements the post-signup journey: session bootstrap,
// plan selection, checkout hand-off and completion reconciliation, all
// converging on the gate's routing decision.
package onboarding

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/lumenhq/onboard-api/internal/billing"
	"github.com/lumenhq/onboard-api/internal/config"
	"github.com/lumenhq/onboard-api/internal/gate"
	"github.com/lumenhq/onboard-api/internal/logging"
	"github.com/lumenhq/onboard-api/internal/preferences"
)

// ErrSelectionInFlight means a checkout redirect is already being prepared
// for this user; the duplicate click is rejected instead of issuing a
// second redirect.
var ErrSelectionInFlight = errors.New("plan selection already in flight")

// SubscriptionSource reads and refreshes subscription/trial state.
type SubscriptionSource interface {
	Status(ctx context.Context, userID uuid.UUID) (billing.Status, error)
	Resync(ctx context.Context, userID uuid.UUID) error
}

// CheckoutURLBuilder produces the hosted-checkout redirect for a plan.
type CheckoutURLBuilder interface {
	URL(plan billing.Plan, userID uuid.UUID, email string) (string, error)
}

// SelectionLocker guards against concurrent duplicate checkout redirects
// for the same user.
type SelectionLocker interface {
	Acquire(ctx context.Context, userID uuid.UUID) (bool, error)
	Release(ctx context.Context, userID uuid.UUID)
}

// WelcomeMailer sends the post-onboarding welcome mail. Optional.
type WelcomeMailer interface {
	SendWelcomeEmail(ctx context.Context, toEmail, planName string) error
}

// Destination is the resolved navigation target for a user.
type Destination struct {
	Route gate.Route `json:"route"`
	Path  string     `json:"destination"`
}

// Selection is the outcome of a plan choice: either a checkout redirect or
// a short-circuit to the contact route for custom plans.
type Selection struct {
	PlanID      string `json:"plan_id"`
	CheckoutURL string `json:"checkout_url,omitempty"`
	Contact     bool   `json:"contact"`
	Destination string `json:"destination,omitempty"`
}

// Service orchestrates the onboarding flow.
type Service struct {
	prefs    preferences.Store
	subs     SubscriptionSource
	checkout CheckoutURLBuilder
	locker   SelectionLocker
	mailer   WelcomeMailer
	routes   config.OnboardingConfig
	logger   *logging.Logger
}

func NewService(
	prefs preferences.Store,
	subs SubscriptionSource,
	checkout CheckoutURLBuilder,
	locker SelectionLocker,
	mailer WelcomeMailer,
	routes config.OnboardingConfig,
	logger *logging.Logger,
) *Service {
	return &Service{
		prefs:    prefs,
		subs:     subs,
		checkout: checkout,
		locker:   locker,
		mailer:   mailer,
		routes:   routes,
		logger:   logger,
	}
}

// Bootstrap runs once per completed authentication exchange. It guarantees a
// preferences row exists, then resolves the post-login destination via the
// gate. A persistence failure never blocks login: the user is failed open
// toward onboarding. An explicit post-login target, when supplied, takes
// precedence over the computed route.
func (s *Service) Bootstrap(ctx context.Context, userID uuid.UUID, explicitTarget string) Destination {
	if _, err := s.prefs.GetByUserID(ctx, userID); err != nil {
		if errors.Is(err, preferences.ErrNotFound) {
			if _, createErr := s.prefs.Create(ctx, userID); createErr != nil {
				s.logger.Error("failed to create preferences row", "user_id", userID, "error", createErr.Error())
			}
		} else {
			s.logger.Error("failed to read preferences during bootstrap", "user_id", userID, "error", err.Error())
		}
	}

	dest := s.Destination(ctx, userID)

	if explicitTarget != "" {
		// Deep-link override: honored only when explicitly provided.
		dest.Path = explicitTarget
	}

	return dest
}

// Destination gathers fresh preference and subscription state and evaluates
// the gate once. Read failures degrade to the safe default inputs (fresh
// user, no subscription) rather than surfacing an error that would strand
// the client without a route.
func (s *Service) Destination(ctx context.Context, userID uuid.UUID) Destination {
	in := gate.Input{Authenticated: true}

	prefs, err := s.prefs.GetByUserID(ctx, userID)
	switch {
	case err == nil:
		in.OnboardingComplete = prefs.HasCompletedOnboarding
		in.PlanSelected = prefs.HasSelectedPlan()
	case errors.Is(err, preferences.ErrNotFound):
		// Fresh user, nothing to fold in.
	default:
		s.logger.Warn("failed to read preferences, treating user as fresh", "user_id", userID, "error", err.Error())
	}

	status, err := s.subs.Status(ctx, userID)
	if err != nil {
		s.logger.Warn("failed to read subscription status, treating as none", "user_id", userID, "error", err.Error())
	} else {
		in.ActiveOrTrialing = status.ActiveOrTrialing()
		in.InTrial = status.InTrial
	}

	route := gate.Decide(in)
	return Destination{Route: route, Path: s.routes.PathFor(string(route))}
}

// SelectPlan records the user's tentative plan choice and returns the
// checkout redirect. Custom plans short-circuit to the contact route and
// never produce a checkout URL. The preference write is best-effort: the
// provider remains the source of truth for payment state, so a failed write
// must not block the redirect.
func (s *Service) SelectPlan(ctx context.Context, userID uuid.UUID, email, planID string) (*Selection, error) {
	plan, err := billing.PlanByID(planID)
	if err != nil {
		return nil, err
	}

	if plan.Custom {
		return &Selection{
			PlanID:      plan.ID,
			Contact:     true,
			Destination: s.routes.ContactPath,
		}, nil
	}

	acquired, err := s.locker.Acquire(ctx, userID)
	if err != nil {
		// A broken lock store must not block checkout; proceed without it.
		s.logger.Warn("selection lock unavailable", "user_id", userID, "error", err.Error())
	} else if !acquired {
		return nil, ErrSelectionInFlight
	} else {
		defer s.locker.Release(ctx, userID)
	}

	if err := s.prefs.RecordPlanSelection(ctx, userID, plan.ID); err != nil {
		s.logger.Warn("failed to record plan selection", "user_id", userID, "plan", plan.ID, "error", err.Error())
	}

	checkoutURL, err := s.checkout.URL(plan, userID, email)
	if err != nil {
		return nil, err
	}

	s.logger.Info("plan selected", "user_id", userID, "plan", plan.ID)

	return &Selection{PlanID: plan.ID, CheckoutURL: checkoutURL}, nil
}

// Complete reconciles state after the billing provider reports success.
// Idempotent: re-applying it leaves the same completed state. Both the
// completion write and the subscription resync are attempted independently,
// and the user is always sent to the dashboard, even on partial failure; a
// user who already paid is never stranded on an error page.
func (s *Service) Complete(ctx context.Context, userID uuid.UUID, email string) Destination {
	completed := true
	if err := s.prefs.MarkCompleted(ctx, userID); err != nil {
		completed = false
		s.logger.Error("failed to mark onboarding completed", "user_id", userID, "error", err.Error())
	}

	if err := s.subs.Resync(ctx, userID); err != nil {
		s.logger.Warn("subscription resync failed", "user_id", userID, "error", err.Error())
	}

	if completed && s.mailer != nil && email != "" {
		planName := s.selectedPlanName(ctx, userID)
		go func() {
			mailCtx := context.Background()
			if err := s.mailer.SendWelcomeEmail(mailCtx, email, planName); err != nil {
				s.logger.Warn("failed to send welcome email", "email", email, "error", err.Error())
			}
		}()
	}

	s.logger.Info("onboarding completed", "user_id", userID)

	return Destination{Route: gate.RouteDashboard, Path: s.routes.DashboardPath}
}

func (s *Service) selectedPlanName(ctx context.Context, userID uuid.UUID) string {
	prefs, err := s.prefs.GetByUserID(ctx, userID)
	if err != nil || !prefs.HasSelectedPlan() {
		return ""
	}
	plan, err := billing.PlanByID(*prefs.SelectedPlanID)
	if err != nil {
		return ""
	}
	return plan.Name
}
