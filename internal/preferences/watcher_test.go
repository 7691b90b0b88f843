package preferences

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func newTestSubscription(t *testing.T) *Subscription {
	t.Helper()

	// Unreachable Redis is fine here; the lifecycle under test is local.
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	t.Cleanup(func() { client.Close() })

	return NewWatcher(client).Subscribe(context.Background(), uuid.New())
}

func TestSubscriptionCloseIsIdempotent(t *testing.T) {
	sub := newTestSubscription(t)

	assert.NotPanics(t, func() {
		sub.Close()
		sub.Close()
	})
}

func TestSubscriptionConcurrentClose(t *testing.T) {
	sub := newTestSubscription(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sub.Close()
		}()
	}
	wg.Wait()

	// The events channel drains and closes once the feed is shut down.
	select {
	case _, open := <-sub.Events():
		assert.False(t, open)
	case <-time.After(2 * time.Second):
		t.Fatal("events channel not closed after Close")
	}
}
