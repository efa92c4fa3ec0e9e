package session

import (
	"context"
	"log"
	"time"
)

// DefaultPollInterval is how often the watcher checks the shared file for
// foreign writes.
const DefaultPollInterval = 500 * time.Millisecond

// Watcher mirrors mutations made by other console processes into this
// one. It delivers ONLY foreign-origin writes: a process never observes
// its own mutations through the watcher, so the local write path and the
// sync path cannot double-apply state.
type Watcher struct {
	store    *Store
	interval time.Duration
	fn       func(Change)
}

// NewWatcher wires a watcher to store. fn is called once per foreign
// mutation, in the order the writes landed in the shared file. An
// interval <= 0 falls back to DefaultPollInterval.
func NewWatcher(store *Store, interval time.Duration, fn func(Change)) *Watcher {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Watcher{store: store, interval: interval, fn: fn}
}

// Run polls until ctx is cancelled. Poll errors are logged and retried on
// the next tick; a transient read failure must not kill the bridge.
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			changes, err := w.store.pendingForeign()
			if err != nil {
				log.Printf("session watcher: %v", err)
				continue
			}
			for _, c := range changes {
				w.fn(c)
			}
		}
	}
}
