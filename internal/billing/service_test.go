package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenhq/onboard-api/internal/database"
	"github.com/lumenhq/onboard-api/internal/logging"
)

type fakeRecordStore struct {
	records map[uuid.UUID]*database.SubscriptionRecord
	getErr  error
}

func newFakeRecordStore() *fakeRecordStore {
	return &fakeRecordStore{records: make(map[uuid.UUID]*database.SubscriptionRecord)}
}

func (f *fakeRecordStore) GetByUserID(_ context.Context, userID uuid.UUID) (*database.SubscriptionRecord, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	record, ok := f.records[userID]
	if !ok {
		return nil, ErrNoSubscription
	}
	return record, nil
}

func (f *fakeRecordStore) Upsert(_ context.Context, record *database.SubscriptionRecord) error {
	f.records[record.UserID] = record
	return nil
}

type fakeProvider struct {
	sub *ProviderSubscription
	err error
}

func (f *fakeProvider) FetchSubscription(context.Context, uuid.UUID) (*ProviderSubscription, error) {
	return f.sub, f.err
}

func newTestService(store RecordStore, provider ProviderAPI) *Service {
	return NewService(store, provider, logging.NewLogger(true))
}

func TestService_Status_AbsentRecordIsNone(t *testing.T) {
	svc := newTestService(newFakeRecordStore(), &fakeProvider{})

	status, err := svc.Status(context.Background(), uuid.New())
	require.NoError(t, err)

	assert.Equal(t, StatusNone, status.Status)
	assert.False(t, status.ActiveOrTrialing())
	assert.False(t, status.InTrial)
}

func TestService_Status_ActiveSubscription(t *testing.T) {
	store := newFakeRecordStore()
	userID := uuid.New()
	periodEnd := time.Now().Add(30 * 24 * time.Hour)
	store.records[userID] = &database.SubscriptionRecord{
		UserID:           userID,
		Status:           StatusActive,
		ProductName:      "Pro",
		CurrentPeriodEnd: &periodEnd,
	}

	svc := newTestService(store, &fakeProvider{})

	status, err := svc.Status(context.Background(), userID)
	require.NoError(t, err)

	assert.Equal(t, StatusActive, status.Status)
	assert.True(t, status.ActiveOrTrialing())
	assert.Equal(t, "Pro", status.ProductName)
}

func TestService_Status_TrialWindow(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		start, end  time.Time
		wantInTrial bool
	}{
		{"inside window", now.Add(-24 * time.Hour), now.Add(24 * time.Hour), true},
		{"window starts now", now, now.Add(24 * time.Hour), true},
		{"window expired", now.Add(-48 * time.Hour), now.Add(-24 * time.Hour), false},
		{"window ends exactly now", now.Add(-24 * time.Hour), now, false},
		{"window not started", now.Add(24 * time.Hour), now.Add(48 * time.Hour), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeRecordStore()
			userID := uuid.New()
			start, end := tt.start, tt.end
			store.records[userID] = &database.SubscriptionRecord{
				UserID:     userID,
				Status:     StatusNone,
				TrialStart: &start,
				TrialEnd:   &end,
			}

			svc := newTestService(store, &fakeProvider{})
			svc.now = func() time.Time { return now }

			status, err := svc.Status(context.Background(), userID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantInTrial, status.InTrial)
		})
	}
}

func TestService_Resync_UpsertsProviderState(t *testing.T) {
	store := newFakeRecordStore()
	userID := uuid.New()
	periodEnd := time.Now().Add(30 * 24 * time.Hour)
	provider := &fakeProvider{sub: &ProviderSubscription{
		Status:           StatusActive,
		ProductName:      "Business",
		CurrentPeriodEnd: &periodEnd,
		TrialUsed:        true,
	}}

	svc := newTestService(store, provider)

	require.NoError(t, svc.Resync(context.Background(), userID))

	record := store.records[userID]
	require.NotNil(t, record)
	assert.Equal(t, StatusActive, record.Status)
	assert.Equal(t, "Business", record.ProductName)
	assert.True(t, record.TrialUsed)
}

func TestService_Resync_ProviderFailure(t *testing.T) {
	provider := &fakeProvider{err: errors.New("provider unreachable")}
	svc := newTestService(newFakeRecordStore(), provider)

	err := svc.Resync(context.Background(), uuid.New())
	assert.Error(t, err)
}
