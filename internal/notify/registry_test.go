// internal/notify/registry_test.go
package notify

import (
	"log/slog"
	"os"
	"testing"
)

func TestRegistryNotify(t *testing.T) {
	reg := NewRegistry()

	var got Event
	reg.Register("action.", func(event Event) error {
		got = event
		return nil
	})

	err := reg.Notify(Event{Topic: "action.completed", Title: "lights on"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Topic != "action.completed" {
		t.Errorf("expected topic %q, got %q", "action.completed", got.Topic)
	}
	if got.Title != "lights on" {
		t.Errorf("expected title %q, got %q", "lights on", got.Title)
	}
	if got.At.IsZero() {
		t.Error("expected At to be filled in")
	}
}

func TestRegistryNoHandler(t *testing.T) {
	reg := NewRegistry()

	err := reg.Notify(Event{Topic: "unknown.thing"})
	if err == nil {
		t.Fatal("expected error for unregistered prefix, got nil")
	}
}

func TestRegistryMultiplePrefixes(t *testing.T) {
	reg := NewRegistry()

	var actionCalls, confirmCalls int
	reg.Register("action.", func(event Event) error {
		actionCalls++
		return nil
	})
	reg.Register("confirm.", func(event Event) error {
		confirmCalls++
		return nil
	})

	if err := reg.Notify(Event{Topic: "action.failed"}); err != nil {
		t.Fatalf("action notify error: %v", err)
	}
	if err := reg.Notify(Event{Topic: "confirm.expired"}); err != nil {
		t.Fatalf("confirm notify error: %v", err)
	}

	if actionCalls != 1 {
		t.Errorf("expected 1 action call, got %d", actionCalls)
	}
	if confirmCalls != 1 {
		t.Errorf("expected 1 confirm call, got %d", confirmCalls)
	}
}

func TestExecHandler(t *testing.T) {
	dir := t.TempDir()
	out := dir + "/event.txt"

	handler := ExecHandler(`printf '%s|%s' "$ZIA_TOPIC" "$ZIA_TITLE" > ` + out)
	if err := handler(Event{Topic: "action.completed", Title: "lights on"}); err != nil {
		t.Fatalf("exec handler failed: %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "action.completed|lights on" {
		t.Errorf("unexpected command output: %q", string(data))
	}
}

func TestExecHandlerFailure(t *testing.T) {
	handler := ExecHandler("exit 3")
	if err := handler(Event{Topic: "action.failed"}); err == nil {
		t.Fatal("expected error from failing command")
	}
}

func TestLogHandlerNeverFails(t *testing.T) {
	handler := LogHandler(slog.Default())
	if err := handler(Event{Topic: "push.disconnected", Title: "connection lost"}); err != nil {
		t.Errorf("log handler should not fail: %v", err)
	}
}
