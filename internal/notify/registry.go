// internal/notify/registry.go
package notify

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// Event is a user-facing notification about something the engine observed:
// an action finishing, a confirmation resolving, the push channel dropping.
type Event struct {
	Topic string    `json:"topic"`
	Title string    `json:"title"`
	Body  string    `json:"body,omitempty"`
	At    time.Time `json:"at"`
}

// Handler delivers an event to one notification sink.
type Handler func(event Event) error

// Registry routes events to the appropriate handler based on topic
// prefix (e.g. "action.", "confirm.").
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty notification registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
	}
}

// Register adds a handler for events whose topic starts with prefix.
func (r *Registry) Register(prefix string, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[prefix] = handler
}

// Notify finds the handler matching the event's topic prefix and calls it.
// Returns an error if no handler is registered for the prefix.
func (r *Registry) Notify(event Event) error {
	if event.At.IsZero() {
		event.At = time.Now()
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for prefix, handler := range r.handlers {
		if strings.HasPrefix(event.Topic, prefix) {
			return handler(event)
		}
	}
	return fmt.Errorf("no notification handler for topic: %s", event.Topic)
}

// LogHandler returns a handler that writes events to the given logger.
// It never fails, which makes it a safe catch-all sink.
func LogHandler(log *slog.Logger) Handler {
	return func(event Event) error {
		log.Info("notification", "topic", event.Topic, "title", event.Title, "body", event.Body)
		return nil
	}
}

// ExecHandler returns a handler that runs the given shell command for
// each event, with the event exposed as ZIA_TOPIC, ZIA_TITLE and
// ZIA_BODY environment variables. Used to hook desktop notifiers
// (notify-send, osascript) without linking them in.
func ExecHandler(command string) Handler {
	return func(event Event) error {
		cmd := exec.Command("sh", "-c", command)
		cmd.Env = append(os.Environ(),
			"ZIA_TOPIC="+event.Topic,
			"ZIA_TITLE="+event.Title,
			"ZIA_BODY="+event.Body,
		)
		if out, err := cmd.CombinedOutput(); err != nil {
			return fmt.Errorf("notify command: %w: %s", err, strings.TrimSpace(string(out)))
		}
		return nil
	}
}
