// Package events provides the in-process publish/subscribe bus used to
// broadcast sync, run, and backup lifecycle notifications to listeners
// such as the SSE stream.
package events

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// EventType identifies the kind of event flowing through the bus.
type EventType string

const (
	// SyncStarted fires when a price history sync begins.
	SyncStarted EventType = "sync_started"

	// SyncCompleted fires when a price history sync finishes.
	SyncCompleted EventType = "sync_completed"

	// RunStarted fires when a frontier computation run begins.
	RunStarted EventType = "run_started"

	// RunCompleted fires when a frontier computation run finishes.
	RunCompleted EventType = "run_completed"

	// RunFailed fires when a frontier computation run errors out.
	RunFailed EventType = "run_failed"

	// BackupCompleted fires when a remote backup upload finishes.
	BackupCompleted EventType = "backup_completed"

	// ErrorOccurred fires for background failures that have no more
	// specific event type.
	ErrorOccurred EventType = "error"
)

// Event is a single message on the bus.
type Event struct {
	Type      EventType `json:"type"`
	Module    string    `json:"module"`
	Timestamp time.Time `json:"timestamp"`
	Data      EventData `json:"data,omitempty"`
}

// Handler processes a published event. Handlers run synchronously on the
// publisher's goroutine and must not block.
type Handler func(event *Event)

type subscription struct {
	id      int
	handler Handler
}

// Bus is a thread-safe publish/subscribe event bus.
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]subscription
	nextID   int
	log      zerolog.Logger
}

// NewBus creates a new event bus.
func NewBus(log zerolog.Logger) *Bus {
	return &Bus{
		handlers: make(map[EventType][]subscription),
		log:      log.With().Str("component", "events").Logger(),
	}
}

// Subscribe registers a handler for an event type and returns a
// subscription ID for use with Unsubscribe.
func (b *Bus) Subscribe(eventType EventType, handler Handler) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.handlers[eventType] = append(b.handlers[eventType], subscription{id: id, handler: handler})

	return id
}

// Unsubscribe removes a previously registered handler. Unknown IDs are
// ignored.
func (b *Bus) Unsubscribe(eventType EventType, id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.handlers[eventType]
	for i, sub := range subs {
		if sub.id == id {
			b.handlers[eventType] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}

// Publish delivers an event to all handlers subscribed to its type.
func (b *Bus) Publish(event *Event) {
	if event == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	b.mu.RLock()
	subs := make([]subscription, len(b.handlers[event.Type]))
	copy(subs, b.handlers[event.Type])
	b.mu.RUnlock()

	b.log.Debug().
		Str("event_type", string(event.Type)).
		Str("module", event.Module).
		Int("handlers", len(subs)).
		Msg("Publishing event")

	for _, sub := range subs {
		sub.handler(event)
	}
}

// Emit constructs an event from typed data and publishes it. The event
// type comes from the payload itself.
func (b *Bus) Emit(module string, data EventData) {
	b.Publish(&Event{
		Type:      data.EventType(),
		Module:    module,
		Timestamp: time.Now(),
		Data:      data,
	})
}
