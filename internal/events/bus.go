// Package events carries memory lifecycle notifications between the facade
// and whoever watches it (CLI verbose output, the browse console).
package events

import (
	"sync"
	"time"
)

// Type names a memory lifecycle event.
type Type string

const (
	MemoryAdded    Type = "memory_added"
	MemoryUpdated  Type = "memory_updated"
	MemoryDeleted  Type = "memory_deleted"
	MemoryCleared  Type = "memory_cleared"
	MemorySearched Type = "memory_searched"
)

// Event is one published notification.
type Event struct {
	Type      Type
	Timestamp time.Time
	EntryID   string
	UserID    string
	Data      map[string]any
}

// Handler receives events synchronously on the publisher's goroutine.
type Handler func(Event)

// Bus fans events out to subscribers.
type Bus struct {
	mu          sync.RWMutex
	handlers    map[Type][]Handler
	allHandlers []Handler
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[Type][]Handler),
	}
}

// Subscribe registers a handler for one event type.
func (b *Bus) Subscribe(t Type, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[t] = append(b.handlers[t], h)
}

// SubscribeAll registers a handler for every event type.
func (b *Bus) SubscribeAll(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.allHandlers = append(b.allHandlers, h)
}

// Publish delivers e to the matching handlers, then to the catch-all ones.
// A nil bus drops the event.
func (b *Bus) Publish(e Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()

	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	for _, h := range b.handlers[e.Type] {
		h(e)
	}
	for _, h := range b.allHandlers {
		h(e)
	}
}

// PublishEntry publishes an event about a single entry.
func (b *Bus) PublishEntry(t Type, entryID, userID string) {
	b.Publish(Event{Type: t, EntryID: entryID, UserID: userID})
}

// PublishWithData publishes an event carrying extra fields.
func (b *Bus) PublishWithData(t Type, data map[string]any) {
	b.Publish(Event{Type: t, Data: data})
}
