package feed

import (
	"fmt"
	"testing"
	"time"

	"github.com/user/ziactl/internal/types"
)

func entry(id string, status types.ActionStatus) types.FeedEntry {
	return types.FeedEntry{
		ExecutionID: id,
		ActionType:  "system.run_command",
		Status:      status,
		Source:      types.SourceText,
		RiskLevel:   types.RiskLow,
		CreatedAt:   time.Now(),
	}
}

func TestRecordNewestFirst(t *testing.T) {
	f := New()
	f.Record(entry("a", types.StatusQueued))
	f.Record(entry("b", types.StatusQueued))
	f.Record(entry("c", types.StatusQueued))

	got := f.List()
	if len(got) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(got))
	}
	if got[0].ExecutionID != "c" || got[2].ExecutionID != "a" {
		t.Errorf("expected newest-first order, got %s..%s", got[0].ExecutionID, got[2].ExecutionID)
	}
}

func TestRecordDeduplicatesByExecutionID(t *testing.T) {
	f := New()
	f.Record(entry("a", types.StatusQueued))
	f.Record(entry("b", types.StatusQueued))
	// Later state for "a" arrives via push.
	f.Record(entry("a", types.StatusCompleted))

	got := f.List()
	if len(got) != 2 {
		t.Fatalf("expected 2 entries after dedup, got %d", len(got))
	}
	if got[0].ExecutionID != "a" || got[0].Status != types.StatusCompleted {
		t.Errorf("expected updated entry at head, got %+v", got[0])
	}

	e, ok := f.Get("a")
	if !ok || e.Status != types.StatusCompleted {
		t.Errorf("expected later status to win, got %+v", e)
	}
}

func TestFeedCappedAtMax(t *testing.T) {
	f := New()
	for i := 0; i < MaxEntries*3; i++ {
		f.Record(entry(fmt.Sprintf("exec-%d", i), types.StatusCompleted))
	}
	if f.Len() != MaxEntries {
		t.Errorf("expected feed capped at %d, got %d", MaxEntries, f.Len())
	}
	// Oldest entries fell off the tail.
	if _, ok := f.Get("exec-0"); ok {
		t.Error("expected oldest entry to be evicted")
	}
	got := f.List()
	if got[0].ExecutionID != fmt.Sprintf("exec-%d", MaxEntries*3-1) {
		t.Errorf("expected newest entry at head, got %s", got[0].ExecutionID)
	}
}

func TestClear(t *testing.T) {
	f := New()
	f.Record(entry("a", types.StatusQueued))
	f.Clear()
	if f.Len() != 0 {
		t.Errorf("expected empty feed, got %d", f.Len())
	}
}

func TestSubscribe(t *testing.T) {
	f := New()
	var seen []string
	f.Subscribe(func(e types.FeedEntry) {
		seen = append(seen, e.ExecutionID)
	})

	f.Record(entry("a", types.StatusQueued))
	f.Record(entry("a", types.StatusCompleted))

	if len(seen) != 2 || seen[0] != "a" || seen[1] != "a" {
		t.Errorf("expected listener to see both records, got %v", seen)
	}
}
