// Package feed carries change notifications from the document store to
// connected sessions. A notification names a family and a collection but
// carries no delta: receivers re-read the full snapshot, so dropped or
// coalesced notifications are harmless.
package feed

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// Collection names used in notifications.
const (
	CollectionExpenses   = "expenses"
	CollectionCategories = "categories"
)

// Notification announces that a family's collection changed.
type Notification struct {
	FamilyID   string    `json:"family_id"`
	Collection string    `json:"collection"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewNotification creates a notification stamped with the current time.
func NewNotification(familyID, collection string) Notification {
	return Notification{FamilyID: familyID, Collection: collection, Timestamp: time.Now()}
}

// ToJSON converts the notification to JSON bytes.
func (n Notification) ToJSON() ([]byte, error) {
	return json.Marshal(n)
}

// NotificationFromJSON parses a notification from JSON bytes.
func NotificationFromJSON(data []byte) (Notification, error) {
	var n Notification
	if err := json.Unmarshal(data, &n); err != nil {
		return Notification{}, err
	}
	return n, nil
}

// Publisher is the write side of the feed.
type Publisher interface {
	Publish(ctx context.Context, n Notification) error
}

// Handler consumes one notification. Returning an error signals the feed
// implementation that delivery failed.
type Handler func(ctx context.Context, n Notification) error

// Bus is an in-process feed for single-process deployments and tests.
// Dispatch is synchronous and in publish order, which mirrors the ordered
// delivery guarantee of the hosted service.
type Bus struct {
	mu       sync.Mutex
	handlers []Handler
}

func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers a handler and returns a function that removes it.
func (b *Bus) Subscribe(h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
	idx := len(b.handlers) - 1
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if idx < len(b.handlers) {
			b.handlers[idx] = nil
		}
	}
}

// Publish delivers the notification to every subscriber in order.
func (b *Bus) Publish(ctx context.Context, n Notification) error {
	b.mu.Lock()
	handlers := append([]Handler(nil), b.handlers...)
	b.mu.Unlock()

	for _, h := range handlers {
		if h == nil {
			continue
		}
		if err := h(ctx, n); err != nil {
			return err
		}
	}
	return nil
}
