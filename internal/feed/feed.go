// Package feed keeps the bounded, ordered log of recent action
// outcomes. Direct pipeline responses and push events both land here;
// entries are deduplicated by execution id with the most recently
// recorded status winning.
package feed

import (
	"sync"

	"github.com/user/ziactl/internal/types"
)

// MaxEntries caps the feed length.
const MaxEntries = 50

// Listener observes every recorded entry. Called outside the feed lock.
type Listener func(entry types.FeedEntry)

// Feed is a newest-first log of action outcomes. Safe for concurrent
// use.
type Feed struct {
	mu        sync.Mutex
	entries   []types.FeedEntry
	listeners []Listener
}

func New() *Feed {
	return &Feed{}
}

// Subscribe registers a listener for subsequently recorded entries.
func (f *Feed) Subscribe(fn Listener) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listeners = append(f.listeners, fn)
}

// Record inserts the entry at the head, removing any prior entry with
// the same execution id, then truncates to MaxEntries. The entry being
// recorded always wins: push events carry later server state than the
// synchronous response they follow.
func (f *Feed) Record(entry types.FeedEntry) {
	f.mu.Lock()
	out := make([]types.FeedEntry, 0, len(f.entries)+1)
	out = append(out, entry)
	for _, e := range f.entries {
		if e.ExecutionID == entry.ExecutionID {
			continue
		}
		out = append(out, e)
	}
	if len(out) > MaxEntries {
		out = out[:MaxEntries]
	}
	f.entries = out
	listeners := f.listeners
	f.mu.Unlock()

	for _, fn := range listeners {
		fn(entry)
	}
}

// List returns the entries newest-first.
func (f *Feed) List() []types.FeedEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]types.FeedEntry, len(f.entries))
	copy(out, f.entries)
	return out
}

// Get returns the entry for an execution id, if present.
func (f *Feed) Get(executionID string) (types.FeedEntry, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.entries {
		if e.ExecutionID == executionID {
			return e, true
		}
	}
	return types.FeedEntry{}, false
}

// Len returns the current number of entries.
func (f *Feed) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries)
}

// Clear drops all entries.
func (f *Feed) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = nil
}
