// Package confirm tracks the risky action currently awaiting the
// user's decision. One slot is surfaced at a time; the slot self-expires
// against an absolute deadline derived from wall clock, so the countdown
// stays correct across suspend/resume.
package confirm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/user/ziactl/internal/types"
)

const (
	// DefaultTTL is the window a risky action remains confirmable.
	DefaultTTL = 300 * time.Second

	defaultTick = 1 * time.Second
)

// ErrNoActivePending is returned by Confirm and Reject when no
// confirmation is open.
var ErrNoActivePending = errors.New("no active pending confirmation")

// ErrAlreadyPending is returned by Open under the RejectNew policy when
// a confirmation is already open.
var ErrAlreadyPending = errors.New("a confirmation is already pending")

// ReplacePolicy decides what happens when a confirmation-required
// response arrives while another confirmation is still open.
type ReplacePolicy int

const (
	// ReplaceLatest drops the old confirmation in favor of the new one.
	ReplaceLatest ReplacePolicy = iota
	// RejectNew keeps the open confirmation and refuses the newcomer.
	RejectNew
)

// Outcome is the terminal disposition of a tracked confirmation.
// Exactly one occurs per instance.
type Outcome string

const (
	OutcomeConfirmed Outcome = "confirmed"
	OutcomeRejected  Outcome = "rejected"
	OutcomeExpired   Outcome = "expired"
	OutcomeDismissed Outcome = "dismissed"
)

// Resolver is the slice of the request pipeline the tracker uses to
// resolve a confirmation server-side.
type Resolver interface {
	Confirm(ctx context.Context, executionID, confirmationToken string) (*types.ActionResponse, error)
	Reject(ctx context.Context, executionID, reason string) error
}

// Config wires a Tracker.
type Config struct {
	Resolver Resolver
	TTL      time.Duration
	Policy   ReplacePolicy
	// OnResolved, when set, observes every terminal disposition.
	// Called outside the tracker lock.
	OnResolved func(executionID string, outcome Outcome)

	// Tick and Now are injectable for tests.
	Tick time.Duration
	Now  func() time.Time
}

// Tracker holds at most one pending confirmation. Safe for concurrent
// use from the CLI, the push handler, and the deadline watcher.
type Tracker struct {
	cfg Config

	mu      sync.Mutex
	pending *types.PendingConfirmation
	stop    chan struct{}
	closed  bool
}

func NewTracker(cfg Config) *Tracker {
	if cfg.TTL == 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Tick == 0 {
		cfg.Tick = defaultTick
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Tracker{cfg: cfg}
}

// Open installs a pending confirmation and starts its deadline watcher.
// Under ReplaceLatest a prior confirmation is silently replaced; under
// RejectNew Open fails with ErrAlreadyPending.
func (t *Tracker) Open(pc types.PendingConfirmation) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return errors.New("tracker closed")
	}
	if t.pending != nil {
		if t.cfg.Policy == RejectNew {
			t.mu.Unlock()
			return fmt.Errorf("%w: execution %s", ErrAlreadyPending, t.pending.ExecutionID)
		}
		slog.Debug("pending confirmation replaced",
			"old", t.pending.ExecutionID, "new", pc.ExecutionID)
		t.stopWatcherLocked()
	}
	if pc.CreatedAt.IsZero() {
		pc.CreatedAt = t.cfg.Now()
	}
	t.pending = &pc
	t.stop = make(chan struct{})
	go t.watch(pc.ExecutionID, pc.CreatedAt, t.stop)
	t.mu.Unlock()
	return nil
}

// Pending returns a copy of the open confirmation, or nil.
func (t *Tracker) Pending() *types.PendingConfirmation {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pending == nil {
		return nil
	}
	pc := *t.pending
	return &pc
}

// Remaining reports the time left before the open confirmation expires.
// Always derived from the creation timestamp, never counted down.
func (t *Tracker) Remaining() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pending == nil {
		return 0
	}
	return t.remainingAt(t.pending.CreatedAt, t.cfg.Now())
}

func (t *Tracker) remainingAt(createdAt, now time.Time) time.Duration {
	left := t.cfg.TTL - now.Sub(createdAt)
	if left < 0 {
		return 0
	}
	return left
}

// Confirm resolves the open confirmation server-side. On success the
// slot is cleared; on failure the slot stays active and the error is
// surfaced, since the server is the source of truth for expiry and a
// retry may still succeed.
func (t *Tracker) Confirm(ctx context.Context) (*types.ActionResponse, error) {
	t.mu.Lock()
	if t.pending == nil {
		t.mu.Unlock()
		return nil, ErrNoActivePending
	}
	pc := *t.pending
	t.mu.Unlock()

	resp, err := t.cfg.Resolver.Confirm(ctx, pc.ExecutionID, pc.ConfirmationToken)
	if err != nil {
		return nil, err
	}
	t.resolve(pc.ExecutionID, OutcomeConfirmed)
	return resp, nil
}

// Reject declines the open confirmation. The slot is always cleared
// once the request completes, regardless of the server-side outcome:
// rejection has no meaningful undo.
func (t *Tracker) Reject(ctx context.Context, reason string) error {
	t.mu.Lock()
	if t.pending == nil {
		t.mu.Unlock()
		return ErrNoActivePending
	}
	pc := *t.pending
	t.mu.Unlock()

	err := t.cfg.Resolver.Reject(ctx, pc.ExecutionID, reason)
	t.resolve(pc.ExecutionID, OutcomeRejected)
	return err
}

// Dismiss clears the slot locally without contacting the server.
func (t *Tracker) Dismiss() {
	t.resolve("", OutcomeDismissed)
}

// ObservePush clears the slot when a push event reports a terminal
// decision for the tracked execution.
func (t *Tracker) ObservePush(executionID string, status types.ActionStatus) {
	var outcome Outcome
	switch status {
	case types.StatusConfirmed:
		outcome = OutcomeConfirmed
	case types.StatusRejected:
		outcome = OutcomeRejected
	case types.StatusExpired:
		outcome = OutcomeExpired
	default:
		return
	}
	t.resolve(executionID, outcome)
}

// Close cancels the deadline watcher. No transition is reported after
// Close returns.
func (t *Tracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	t.stopWatcherLocked()
	t.pending = nil
}

// resolve clears the slot when executionID matches the open
// confirmation (or unconditionally when executionID is ""), then
// reports the outcome. The four outcomes are mutually exclusive: the
// first resolve wins and later ones find an empty slot.
func (t *Tracker) resolve(executionID string, outcome Outcome) {
	t.mu.Lock()
	if t.pending == nil || (executionID != "" && t.pending.ExecutionID != executionID) {
		t.mu.Unlock()
		return
	}
	id := t.pending.ExecutionID
	t.pending = nil
	t.stopWatcherLocked()
	cb := t.cfg.OnResolved
	t.mu.Unlock()

	slog.Debug("confirmation resolved", "execution_id", id, "outcome", outcome)
	if cb != nil {
		cb(id, outcome)
	}
}

func (t *Tracker) stopWatcherLocked() {
	if t.stop != nil {
		close(t.stop)
		t.stop = nil
	}
}

// watch expires the confirmation when its wall-clock deadline passes.
// Local expiry is advisory UI state: no network call is made, and a
// confirm racing the real deadline still defers to the server.
func (t *Tracker) watch(executionID string, createdAt time.Time, stop chan struct{}) {
	ticker := time.NewTicker(t.cfg.Tick)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if t.remainingAt(createdAt, t.cfg.Now()) == 0 {
				t.resolve(executionID, OutcomeExpired)
				return
			}
		}
	}
}
