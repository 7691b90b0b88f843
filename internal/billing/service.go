package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lumenhq/onboard-api/internal/database"
	"github.com/lumenhq/onboard-api/internal/logging"
)

// Subscription statuses as mirrored from the provider.
const (
	StatusActive   = "active"
	StatusTrialing = "trialing"
	StatusCanceled = "canceled"
	StatusNone     = "none"
)

// Status is the derived subscription/trial state fed into the onboarding
// gate. It is a read-only snapshot.
type Status struct {
	Status           string     `json:"status"`
	ProductName      string     `json:"product_name,omitempty"`
	CurrentPeriodEnd *time.Time `json:"current_period_end,omitempty"`
	InTrial          bool       `json:"in_trial"`
	TrialUsed        bool       `json:"trial_used"`
}

// ActiveOrTrialing reports whether the subscription grants full access.
func (s Status) ActiveOrTrialing() bool {
	return s.Status == StatusActive || s.Status == StatusTrialing
}

// RecordStore is the persistence surface the service needs.
type RecordStore interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (*database.SubscriptionRecord, error)
	Upsert(ctx context.Context, record *database.SubscriptionRecord) error
}

// ProviderAPI pulls authoritative subscription state from the billing
// provider.
type ProviderAPI interface {
	FetchSubscription(ctx context.Context, userID uuid.UUID) (*ProviderSubscription, error)
}

// Service exposes subscription status reads and provider resync to the rest
// of the system.
type Service struct {
	store    RecordStore
	provider ProviderAPI
	logger   *logging.Logger
	now      func() time.Time
}

func NewService(store RecordStore, provider ProviderAPI, logger *logging.Logger) *Service {
	return &Service{
		store:    store,
		provider: provider,
		logger:   logger,
		now:      time.Now,
	}
}

// Status returns the user's subscription state from the local mirror.
// An absent record is reported as StatusNone, never as an error.
func (s *Service) Status(ctx context.Context, userID uuid.UUID) (Status, error) {
	record, err := s.store.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNoSubscription) {
			return Status{Status: StatusNone}, nil
		}
		return Status{}, fmt.Errorf("failed to read subscription status: %w", err)
	}

	return Status{
		Status:           record.Status,
		ProductName:      record.ProductName,
		CurrentPeriodEnd: record.CurrentPeriodEnd,
		InTrial:          s.inTrialWindow(record.TrialStart, record.TrialEnd),
		TrialUsed:        record.TrialUsed,
	}, nil
}

// Resync pulls the provider's authoritative state and merges it into the
// local record, so reads stop serving stale "no subscription" data after a
// checkout completes.
func (s *Service) Resync(ctx context.Context, userID uuid.UUID) error {
	sub, err := s.provider.FetchSubscription(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to resync subscription: %w", err)
	}

	record := &database.SubscriptionRecord{
		UserID:           userID,
		Status:           sub.Status,
		ProductName:      sub.ProductName,
		CurrentPeriodEnd: sub.CurrentPeriodEnd,
		TrialStart:       sub.TrialStart,
		TrialEnd:         sub.TrialEnd,
		TrialUsed:        sub.TrialUsed,
	}

	if err := s.store.Upsert(ctx, record); err != nil {
		return err
	}

	s.logger.Info("subscription resynced", "user_id", userID, "status", sub.Status)
	return nil
}

// inTrialWindow reports whether now falls inside [start, end).
func (s *Service) inTrialWindow(start, end *time.Time) bool {
	if start == nil || end == nil {
		return false
	}
	now := s.now()
	return !now.Before(*start) && now.Before(*end)
}
