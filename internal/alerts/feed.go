// Package alerts keeps the bounded, time-decaying queue of error toasts
// shown by the shell.
package alerts

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// MaxItems caps the feed; pushing beyond it evicts the oldest entry.
	MaxItems = 5
	// DefaultTTL is how long an item stays up before auto-dismissal.
	DefaultTTL = 10 * time.Second
)

type Item struct {
	ID        string
	Title     string
	Detail    string
	CreatedAt time.Time
}

// Feed holds the current toasts, newest first. All methods are safe for
// concurrent use; expiry timers fire on their own goroutines.
type Feed struct {
	mu       sync.Mutex
	items    []Item
	ttl      time.Duration
	onChange func()
}

// New returns an empty feed. onChange is invoked (without the feed lock
// held) after every mutation that alters the visible items; it may be nil.
func New(onChange func()) *Feed {
	return &Feed{ttl: DefaultTTL, onChange: onChange}
}

// Push prepends a new item, trims the feed to MaxItems and schedules the
// item's automatic removal. It returns the new item's id.
func (f *Feed) Push(title, detail string) string {
	it := Item{
		ID:        uuid.NewString(),
		Title:     title,
		Detail:    detail,
		CreatedAt: time.Now(),
	}

	f.mu.Lock()
	f.items = append([]Item{it}, f.items...)
	if len(f.items) > MaxItems {
		f.items = f.items[:MaxItems]
	}
	ttl := f.ttl
	f.mu.Unlock()

	time.AfterFunc(ttl, func() { f.Dismiss(it.ID) })

	f.notify()
	return it.ID
}

// Dismiss removes the item with the given id. Dismissing an id that is
// already gone (user beat the timer, or eviction beat both) is a no-op.
func (f *Feed) Dismiss(id string) {
	f.mu.Lock()
	removed := false
	for i, it := range f.items {
		if it.ID == id {
			f.items = append(f.items[:i], f.items[i+1:]...)
			removed = true
			break
		}
	}
	f.mu.Unlock()

	if removed {
		f.notify()
	}
}

// Items returns a newest-first snapshot of the feed.
func (f *Feed) Items() []Item {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Item, len(f.items))
	copy(out, f.items)
	return out
}

// Len reports the number of live items.
func (f *Feed) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.items)
}

func (f *Feed) notify() {
	if f.onChange != nil {
		f.onChange()
	}
}
