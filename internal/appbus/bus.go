// Package appbus carries application-wide notifications between otherwise
// unrelated components: any producer, any subscriber, no ambient globals.
package appbus

import (
	"sync"

	"omnibot-console/internal/routes"
)

// Event is the closed set of notifications the bus carries.
type Event interface{ isEvent() }

// ErrorRaised is broadcast for any failed backend call, regardless of
// which view issued it. The alert feed is its only consumer today.
type ErrorRaised struct {
	Title  string
	Detail string
}

// NavigateRequested asks the shell to change routes without the producer
// holding a reference to the guard. The auth screens use it after a
// successful sign-in.
type NavigateRequested struct {
	Route routes.ID
}

// SessionChanged mirrors a foreign-process session store mutation into the
// local shell.
type SessionChanged struct {
	TokenPresent bool
	Route        routes.ID
}

func (ErrorRaised) isEvent()       {}
func (NavigateRequested) isEvent() {}
func (SessionChanged) isEvent()    {}

const subscriberBuffer = 32

// Bus fans events out to all current subscribers. Publish never blocks: a
// subscriber that stops draining loses events rather than stalling the
// producer.
type Bus struct {
	mu     sync.Mutex
	subs   map[int]chan Event
	nextID int
	closed bool
}

func New() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// Publish delivers ev to every subscriber.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribe registers a new subscriber. The returned cancel func removes
// the subscription and closes the channel; it is safe to call twice.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, subscriberBuffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Close shuts the bus down and closes all subscriber channels.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
