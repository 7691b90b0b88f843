package onboarding

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenhq/onboard-api/internal/auth"
	"github.com/lumenhq/onboard-api/internal/billing"
	"github.com/lumenhq/onboard-api/internal/logging"
	"github.com/lumenhq/onboard-api/internal/preferences"
	"github.com/lumenhq/onboard-api/internal/ratelimit"
)

// withSession injects an authenticated identity the way the auth middleware
// does.
func withSession(next http.HandlerFunc, userID uuid.UUID, email string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), auth.UserIDContextKey, userID)
		ctx = context.WithValue(ctx, auth.UserEmailContextKey, email)
		next(w, r.WithContext(ctx))
	}
}

func newEventsTestHandler(t *testing.T) *Handler {
	t.Helper()

	// Unreachable Redis: the change feed stays silent, which is exactly the
	// case heartbeats exist for.
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	t.Cleanup(func() { client.Close() })

	store := newFakePrefsStore()
	svc := newTestService(store, &fakeSubs{status: billing.Status{Status: billing.StatusNone}})

	return NewHandler(svc, preferences.NewWatcher(client), ratelimit.NewLimiter(client), logging.NewLogger(true))
}

func TestEventsRequiresAuthentication(t *testing.T) {
	h := newEventsTestHandler(t)

	rec := httptest.NewRecorder()
	h.Events(rec, httptest.NewRequest(http.MethodGet, "/onboarding/events", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestEventsStreamOutlivesServerWriteTimeout(t *testing.T) {
	origInterval := heartbeatInterval
	heartbeatInterval = 50 * time.Millisecond
	defer func() { heartbeatInterval = origInterval }()

	h := newEventsTestHandler(t)

	// The server's write deadline is shorter than the heartbeat interval,
	// mirroring the shipped defaults. The stream must clear the deadline
	// and keep delivering.
	ts := httptest.NewUnstartedServer(withSession(h.Events, uuid.New(), "user@example.com"))
	ts.Config.WriteTimeout = 200 * time.Millisecond
	ts.Start()
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 700*time.Millisecond)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL, nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	start := time.Now()
	body, readErr := io.ReadAll(resp.Body)
	elapsed := time.Since(start)

	// The read must end because our client context expired, not because the
	// server's write deadline tore the connection down at 200ms.
	require.Error(t, readErr)
	assert.Greater(t, elapsed, 500*time.Millisecond)

	payload := string(body)
	assert.Contains(t, payload, "event: destination")
	assert.Contains(t, payload, `"route":"onboarding"`)
	assert.GreaterOrEqual(t, strings.Count(payload, ": heartbeat"), 2)
}
