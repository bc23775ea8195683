// internal/scheduler/scheduler_test.go
package scheduler

import (
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/user/ziactl/internal/state"
)

func TestSchedulerFiresMacro(t *testing.T) {
	dir := t.TempDir()
	store := state.NewMacroStore(filepath.Join(dir, "macros.json"))

	macro := &state.Macro{
		Name:       "every-second",
		ActionType: "device_control",
		Schedule:   "* * * * * *",
		Enabled:    true,
	}
	if err := store.Add(macro); err != nil {
		t.Fatal(err)
	}

	var fires atomic.Int32
	handler := func(m *state.Macro) {
		if m.Name == "every-second" {
			fires.Add(1)
		}
	}

	sched := New(store, handler)
	if err := sched.Start(); err != nil {
		t.Fatal(err)
	}
	defer sched.Stop()

	// Wait up to 2.5 seconds for at least one fire
	deadline := time.After(2500 * time.Millisecond)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-deadline:
			t.Fatalf("handler did not fire within 2.5s, fires=%d", fires.Load())
		case <-ticker.C:
			if fires.Load() > 0 {
				return
			}
		}
	}
}

func TestSchedulerSkipsDisabled(t *testing.T) {
	dir := t.TempDir()
	store := state.NewMacroStore(filepath.Join(dir, "macros.json"))

	macro := &state.Macro{
		Name:       "disabled-macro",
		ActionType: "send_message",
		Schedule:   "* * * * * *",
		Enabled:    false,
	}
	if err := store.Add(macro); err != nil {
		t.Fatal(err)
	}

	var fires atomic.Int32
	handler := func(m *state.Macro) {
		fires.Add(1)
	}

	sched := New(store, handler)
	if err := sched.Start(); err != nil {
		t.Fatal(err)
	}
	defer sched.Stop()

	time.Sleep(2 * time.Second)

	if n := fires.Load(); n != 0 {
		t.Errorf("expected 0 fires for disabled macro, got %d", n)
	}
}

func TestSchedulerNoScheduleMacros(t *testing.T) {
	dir := t.TempDir()
	store := state.NewMacroStore(filepath.Join(dir, "macros.json"))

	macro := &state.Macro{
		Name:       "manual-only",
		ActionType: "send_message",
		Schedule:   "",
		Enabled:    true,
	}
	if err := store.Add(macro); err != nil {
		t.Fatal(err)
	}

	var fires atomic.Int32
	handler := func(m *state.Macro) {
		fires.Add(1)
	}

	sched := New(store, handler)
	if err := sched.Start(); err != nil {
		t.Fatal(err)
	}
	defer sched.Stop()

	time.Sleep(2 * time.Second)

	if n := fires.Load(); n != 0 {
		t.Errorf("expected 0 fires for macro with no schedule, got %d", n)
	}
}

func TestValidateSchedule(t *testing.T) {
	if err := ValidateSchedule("0 7 * * *"); err != nil {
		t.Errorf("expected valid 5-field expression, got %v", err)
	}
	if err := ValidateSchedule("*/5 * * * * *"); err != nil {
		t.Errorf("expected valid 6-field expression, got %v", err)
	}
	if err := ValidateSchedule("not a cron"); err == nil {
		t.Error("expected error for garbage expression")
	}
}
