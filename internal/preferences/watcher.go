package preferences

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ChangeEvent is delivered to subscribers whenever a user's preferences row
// changes. It carries the new row state; consumers recompute derived state
// from it rather than assuming any ordering relative to their own writes.
type ChangeEvent struct {
	Preferences Preferences `json:"preferences"`
}

// Watcher fans preference changes out over Redis pub/sub, one channel per
// user.
type Watcher struct {
	client *redis.Client
}

func NewWatcher(client *redis.Client) *Watcher {
	return &Watcher{client: client}
}

func changeChannel(userID uuid.UUID) string {
	return fmt.Sprintf("preferences:changed:%s", userID.String())
}

// Publish broadcasts the new row state to all subscribers of the user's
// channel.
func (w *Watcher) Publish(ctx context.Context, prefs *Preferences) error {
	payload, err := json.Marshal(ChangeEvent{Preferences: *prefs})
	if err != nil {
		return fmt.Errorf("failed to marshal change event: %w", err)
	}

	if err := w.client.Publish(ctx, changeChannel(prefs.UserID), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish change event: %w", err)
	}

	return nil
}

// Subscribe opens a change feed for a single user's preferences row.
// The returned subscription delivers events until Close is called; callers
// tie its lifetime to the consuming view.
func (w *Watcher) Subscribe(ctx context.Context, userID uuid.UUID) *Subscription {
	pubsub := w.client.Subscribe(ctx, changeChannel(userID))

	sub := &Subscription{
		pubsub: pubsub,
		events: make(chan ChangeEvent, 8),
		done:   make(chan struct{}),
	}
	go sub.pump()

	return sub
}

// Subscription is a handle on one user's change feed with an explicit
// start/stop lifecycle.
type Subscription struct {
	pubsub    *redis.PubSub
	events    chan ChangeEvent
	done      chan struct{}
	closeOnce sync.Once
}

// Events returns the channel change events are delivered on. The channel is
// closed when the subscription is closed.
func (s *Subscription) Events() <-chan ChangeEvent {
	return s.events
}

// Close stops the feed and releases the underlying pub/sub connection.
// Safe to call from multiple goroutines.
func (s *Subscription) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.pubsub.Close()
	})
	return err
}

func (s *Subscription) pump() {
	defer close(s.events)

	for msg := range s.pubsub.Channel() {
		var event ChangeEvent
		if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
			continue
		}

		select {
		case s.events <- event:
		case <-s.done:
			return
		}
	}
}
