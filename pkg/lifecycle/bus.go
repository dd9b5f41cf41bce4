// Package lifecycle broadcasts process-level STOP and RESET events to the
// components that must tear themselves down when a client stops or the
// server state is reset.
package lifecycle

import (
	"sync"
)

// EventType is a lifecycle event.
type EventType int

// Lifecycle events.
const (
	EventStop EventType = iota + 1
	EventReset
)

// String returns the event name.
func (e EventType) String() string {
	switch e {
	case EventStop:
		return "STOP"
	case EventReset:
		return "RESET"
	default:
		return "UNKNOWN"
	}
}

// Handler receives published events.
type Handler func(EventType)

type subscription struct {
	handler Handler
	types   map[EventType]struct{}
}

// Bus is a publish/subscribe broadcaster. The zero value is not usable; use
// NewBus.
type Bus struct {
	mu   sync.RWMutex
	next uint64
	subs map[uint64]*subscription
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[uint64]*subscription)}
}

// Subscribe registers handler for the given event types and returns a
// function that removes it. The returned function is idempotent.
func (b *Bus) Subscribe(handler Handler, types ...EventType) func() {
	sub := &subscription{handler: handler, types: make(map[EventType]struct{}, len(types))}
	for _, t := range types {
		sub.types[t] = struct{}{}
	}

	b.mu.Lock()
	b.next++
	key := b.next
	b.subs[key] = sub
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, key)
			b.mu.Unlock()
		})
	}
}

// Publish delivers event to every subscriber registered for it. Handlers run
// synchronously on the caller's goroutine, outside the bus lock, so they may
// unsubscribe themselves.
func (b *Bus) Publish(event EventType) {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs))
	for _, sub := range b.subs {
		if _, ok := sub.types[event]; ok {
			handlers = append(handlers, sub.handler)
		}
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(event)
	}
}

// Len returns the number of live subscriptions.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
