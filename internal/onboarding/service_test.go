package onboarding

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenhq/onboard-api/internal/billing"
	"github.com/lumenhq/onboard-api/internal/config"
	"github.com/lumenhq/onboard-api/internal/gate"
	"github.com/lumenhq/onboard-api/internal/logging"
	"github.com/lumenhq/onboard-api/internal/preferences"
)

type fakePrefsStore struct {
	mu      sync.Mutex
	rows    map[uuid.UUID]*preferences.Preferences
	getErr  error
	failAll bool
}

func newFakePrefsStore() *fakePrefsStore {
	return &fakePrefsStore{rows: map[uuid.UUID]*preferences.Preferences{}}
}

func (f *fakePrefsStore) GetByUserID(_ context.Context, userID uuid.UUID) (*preferences.Preferences, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return nil, errors.New("store unavailable")
	}
	if f.getErr != nil {
		return nil, f.getErr
	}
	row, ok := f.rows[userID]
	if !ok {
		return nil, preferences.ErrNotFound
	}
	copied := *row
	return &copied, nil
}

func (f *fakePrefsStore) Create(_ context.Context, userID uuid.UUID) (*preferences.Preferences, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return nil, errors.New("store unavailable")
	}
	if row, ok := f.rows[userID]; ok {
		copied := *row
		return &copied, nil
	}
	now := time.Now()
	row := &preferences.Preferences{
		UserID:              userID,
		OnboardingStartedAt: &now,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	f.rows[userID] = row
	copied := *row
	return &copied, nil
}

func (f *fakePrefsStore) RecordPlanSelection(_ context.Context, userID uuid.UUID, planID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return errors.New("store unavailable")
	}
	row, ok := f.rows[userID]
	if !ok {
		now := time.Now()
		row = &preferences.Preferences{UserID: userID, CreatedAt: now}
		f.rows[userID] = row
	}
	row.SelectedPlanID = &planID
	if row.OnboardingStep < 2 {
		row.OnboardingStep = 2
	}
	row.UpdatedAt = time.Now()
	return nil
}

func (f *fakePrefsStore) MarkCompleted(_ context.Context, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return errors.New("store unavailable")
	}
	row, ok := f.rows[userID]
	if !ok {
		now := time.Now()
		row = &preferences.Preferences{UserID: userID, CreatedAt: now}
		f.rows[userID] = row
	}
	row.HasCompletedOnboarding = true
	if row.OnboardingCompletedAt == nil {
		now := time.Now()
		row.OnboardingCompletedAt = &now
	}
	row.UpdatedAt = time.Now()
	return nil
}

type fakeSubs struct {
	status    billing.Status
	statusErr error
	resyncErr error
	resyncs   int
	onResync  func()
}

func (f *fakeSubs) Status(context.Context, uuid.UUID) (billing.Status, error) {
	if f.statusErr != nil {
		return billing.Status{}, f.statusErr
	}
	return f.status, nil
}

func (f *fakeSubs) Resync(context.Context, uuid.UUID) error {
	f.resyncs++
	if f.resyncErr != nil {
		return f.resyncErr
	}
	if f.onResync != nil {
		f.onResync()
	}
	return nil
}

type fakeCheckout struct {
	err error
}

func (f *fakeCheckout) URL(plan billing.Plan, userID uuid.UUID, email string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "https://checkout.test/session?plan=" + plan.ID + "&user=" + userID.String() + "&email=" + email, nil
}

type fakeLocker struct {
	acquired bool
	err      error
	held     bool
}

func (f *fakeLocker) Acquire(context.Context, uuid.UUID) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	if f.held {
		return false, nil
	}
	f.held = true
	return true, nil
}

func (f *fakeLocker) Release(context.Context, uuid.UUID) {
	f.held = false
}

type fakeMailer struct {
	mu    sync.Mutex
	sent  []string
	plans []string
}

func (f *fakeMailer) SendWelcomeEmail(_ context.Context, toEmail, planName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, toEmail)
	f.plans = append(f.plans, planName)
	return nil
}

func (f *fakeMailer) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func testRoutes() config.OnboardingConfig {
	return config.OnboardingConfig{
		LoginPath:      "/login",
		OnboardingPath: "/onboarding",
		DashboardPath:  "/dashboard",
		ContactPath:    "/contact-sales",
	}
}

func newTestService(prefs preferences.Store, subs SubscriptionSource) *Service {
	return NewService(
		prefs,
		subs,
		&fakeCheckout{},
		&fakeLocker{},
		nil,
		testRoutes(),
		logging.NewLogger(true),
	)
}

func TestBootstrapCreatesPreferencesRow(t *testing.T) {
	store := newFakePrefsStore()
	svc := newTestService(store, &fakeSubs{status: billing.Status{Status: billing.StatusNone}})
	userID := uuid.New()

	dest := svc.Bootstrap(context.Background(), userID, "")

	assert.Equal(t, gate.RouteOnboarding, dest.Route)
	assert.Equal(t, "/onboarding", dest.Path)

	row, err := store.GetByUserID(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, userID, row.UserID)
	assert.False(t, row.HasCompletedOnboarding)
	assert.NotNil(t, row.OnboardingStartedAt)
}

func TestBootstrapIsIdempotent(t *testing.T) {
	store := newFakePrefsStore()
	svc := newTestService(store, &fakeSubs{status: billing.Status{Status: billing.StatusNone}})
	userID := uuid.New()

	first := svc.Bootstrap(context.Background(), userID, "")
	second := svc.Bootstrap(context.Background(), userID, "")

	assert.Equal(t, first, second)
}

func TestBootstrapFailsOpenOnStoreFailure(t *testing.T) {
	store := newFakePrefsStore()
	store.failAll = true
	svc := newTestService(store, &fakeSubs{status: billing.Status{Status: billing.StatusNone}})

	dest := svc.Bootstrap(context.Background(), uuid.New(), "")

	// A broken store must not block login; the fresh-user default routes
	// to onboarding.
	assert.Equal(t, gate.RouteOnboarding, dest.Route)
	assert.Equal(t, "/onboarding", dest.Path)
}

func TestBootstrapHonorsExplicitTarget(t *testing.T) {
	store := newFakePrefsStore()
	svc := newTestService(store, &fakeSubs{status: billing.Status{Status: billing.StatusNone}})

	dest := svc.Bootstrap(context.Background(), uuid.New(), "/settings/billing")

	assert.Equal(t, "/settings/billing", dest.Path)
}

func TestDestinationActiveSubscriptionWinsOverBookkeeping(t *testing.T) {
	store := newFakePrefsStore()
	userID := uuid.New()
	_, err := store.Create(context.Background(), userID)
	require.NoError(t, err)

	// Preferences say onboarding is unfinished, but the provider says the
	// subscription is active. Payment state wins.
	svc := newTestService(store, &fakeSubs{status: billing.Status{Status: billing.StatusActive}})

	dest := svc.Destination(context.Background(), userID)

	assert.Equal(t, gate.RouteDashboard, dest.Route)
	assert.Equal(t, "/dashboard", dest.Path)
}

func TestDestinationTrialGrantsDashboard(t *testing.T) {
	store := newFakePrefsStore()
	userID := uuid.New()
	_, err := store.Create(context.Background(), userID)
	require.NoError(t, err)

	svc := newTestService(store, &fakeSubs{status: billing.Status{Status: billing.StatusNone, InTrial: true}})

	dest := svc.Destination(context.Background(), userID)

	assert.Equal(t, gate.RouteDashboard, dest.Route)
}

func TestDestinationSubscriptionReadFailureTreatedAsNone(t *testing.T) {
	store := newFakePrefsStore()
	userID := uuid.New()
	_, err := store.Create(context.Background(), userID)
	require.NoError(t, err)

	svc := newTestService(store, &fakeSubs{statusErr: errors.New("provider down")})

	dest := svc.Destination(context.Background(), userID)

	assert.Equal(t, gate.RouteOnboarding, dest.Route)
}

func TestSelectPlanReturnsCheckoutURL(t *testing.T) {
	store := newFakePrefsStore()
	svc := newTestService(store, &fakeSubs{status: billing.Status{Status: billing.StatusNone}})
	userID := uuid.New()

	selection, err := svc.SelectPlan(context.Background(), userID, "user@example.com", "pro")
	require.NoError(t, err)

	assert.Equal(t, "pro", selection.PlanID)
	assert.False(t, selection.Contact)
	assert.Contains(t, selection.CheckoutURL, "plan=pro")
	assert.Contains(t, selection.CheckoutURL, userID.String())
	assert.Contains(t, selection.CheckoutURL, "user@example.com")

	row, err := store.GetByUserID(context.Background(), userID)
	require.NoError(t, err)
	require.NotNil(t, row.SelectedPlanID)
	assert.Equal(t, "pro", *row.SelectedPlanID)
}

func TestSelectPlanUnknownPlan(t *testing.T) {
	svc := newTestService(newFakePrefsStore(), &fakeSubs{})

	_, err := svc.SelectPlan(context.Background(), uuid.New(), "user@example.com", "platinum")

	assert.ErrorIs(t, err, billing.ErrUnknownPlan)
}

func TestSelectPlanCustomRoutesToContact(t *testing.T) {
	store := newFakePrefsStore()
	svc := newTestService(store, &fakeSubs{})
	userID := uuid.New()

	selection, err := svc.SelectPlan(context.Background(), userID, "user@example.com", "custom")
	require.NoError(t, err)

	assert.True(t, selection.Contact)
	assert.Empty(t, selection.CheckoutURL)
	assert.Equal(t, "/contact-sales", selection.Destination)

	// No tentative selection is recorded for custom plans.
	_, err = store.GetByUserID(context.Background(), userID)
	assert.ErrorIs(t, err, preferences.ErrNotFound)
}

func TestSelectPlanContentionRejected(t *testing.T) {
	locker := &fakeLocker{held: true}
	svc := NewService(
		newFakePrefsStore(),
		&fakeSubs{},
		&fakeCheckout{},
		locker,
		nil,
		testRoutes(),
		logging.NewLogger(true),
	)

	_, err := svc.SelectPlan(context.Background(), uuid.New(), "user@example.com", "pro")

	assert.ErrorIs(t, err, ErrSelectionInFlight)
}

func TestSelectPlanProceedsWhenLockStoreBroken(t *testing.T) {
	locker := &fakeLocker{err: errors.New("redis down")}
	svc := NewService(
		newFakePrefsStore(),
		&fakeSubs{},
		&fakeCheckout{},
		locker,
		nil,
		testRoutes(),
		logging.NewLogger(true),
	)

	selection, err := svc.SelectPlan(context.Background(), uuid.New(), "user@example.com", "starter")
	require.NoError(t, err)
	assert.NotEmpty(t, selection.CheckoutURL)
}

func TestSelectPlanWriteFailureStillRedirects(t *testing.T) {
	store := newFakePrefsStore()
	store.failAll = true
	svc := newTestService(store, &fakeSubs{})

	// The provider is the source of truth for payment; a failed preference
	// write must not block checkout.
	selection, err := svc.SelectPlan(context.Background(), uuid.New(), "user@example.com", "pro")
	require.NoError(t, err)
	assert.Contains(t, selection.CheckoutURL, "plan=pro")
}

func TestCompleteMarksCompletedAndRoutesToDashboard(t *testing.T) {
	store := newFakePrefsStore()
	subs := &fakeSubs{status: billing.Status{Status: billing.StatusNone}}
	svc := newTestService(store, subs)
	userID := uuid.New()

	dest := svc.Complete(context.Background(), userID, "")

	assert.Equal(t, gate.RouteDashboard, dest.Route)
	assert.Equal(t, "/dashboard", dest.Path)
	assert.Equal(t, 1, subs.resyncs)

	row, err := store.GetByUserID(context.Background(), userID)
	require.NoError(t, err)
	assert.True(t, row.HasCompletedOnboarding)
	require.NotNil(t, row.OnboardingCompletedAt)
}

func TestCompleteIsIdempotent(t *testing.T) {
	store := newFakePrefsStore()
	svc := newTestService(store, &fakeSubs{})
	userID := uuid.New()

	svc.Complete(context.Background(), userID, "")
	first, err := store.GetByUserID(context.Background(), userID)
	require.NoError(t, err)

	svc.Complete(context.Background(), userID, "")
	second, err := store.GetByUserID(context.Background(), userID)
	require.NoError(t, err)

	assert.True(t, second.HasCompletedOnboarding)
	assert.Equal(t, first.OnboardingCompletedAt, second.OnboardingCompletedAt)
}

func TestCompleteResyncFailureStillRoutesToDashboard(t *testing.T) {
	store := newFakePrefsStore()
	subs := &fakeSubs{resyncErr: errors.New("provider down")}
	svc := newTestService(store, subs)
	userID := uuid.New()

	dest := svc.Complete(context.Background(), userID, "")

	// A user who already paid is never stranded on an error page.
	assert.Equal(t, gate.RouteDashboard, dest.Route)

	row, err := store.GetByUserID(context.Background(), userID)
	require.NoError(t, err)
	assert.True(t, row.HasCompletedOnboarding)
}

func TestCompleteSendsWelcomeEmail(t *testing.T) {
	store := newFakePrefsStore()
	mailer := &fakeMailer{}
	svc := NewService(
		store,
		&fakeSubs{},
		&fakeCheckout{},
		&fakeLocker{},
		mailer,
		testRoutes(),
		logging.NewLogger(true),
	)
	userID := uuid.New()

	require.NoError(t, store.RecordPlanSelection(context.Background(), userID, "pro"))

	svc.Complete(context.Background(), userID, "user@example.com")

	assert.Eventually(t, func() bool {
		return mailer.sentCount() == 1
	}, time.Second, 10*time.Millisecond)

	mailer.mu.Lock()
	defer mailer.mu.Unlock()
	assert.Equal(t, "user@example.com", mailer.sent[0])
	assert.Equal(t, "Pro", mailer.plans[0])
}

func TestSignupToDashboardScenario(t *testing.T) {
	store := newFakePrefsStore()
	subs := &fakeSubs{status: billing.Status{Status: billing.StatusNone}}
	svc := newTestService(store, subs)
	userID := uuid.New()

	// Fresh signup lands on onboarding.
	dest := svc.Bootstrap(context.Background(), userID, "")
	assert.Equal(t, gate.RouteOnboarding, dest.Route)

	// Picking a plan alone does not unlock the dashboard.
	selection, err := svc.SelectPlan(context.Background(), userID, "user@example.com", "starter")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(selection.CheckoutURL, "https://checkout.test/"))
	assert.Equal(t, gate.RouteOnboarding, svc.Destination(context.Background(), userID).Route)

	// The provider reports an active subscription once checkout finishes.
	subs.onResync = func() {
		subs.status = billing.Status{Status: billing.StatusActive}
	}

	dest = svc.Complete(context.Background(), userID, "")
	assert.Equal(t, gate.RouteDashboard, dest.Route)

	// Every later evaluation keeps routing to the dashboard.
	assert.Equal(t, gate.RouteDashboard, svc.Destination(context.Background(), userID).Route)
}
