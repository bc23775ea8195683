// internal/scheduler/scheduler.go
package scheduler

import (
	"log/slog"

	"github.com/robfig/cron/v3"
	"github.com/user/ziactl/internal/state"
)

// Handler is the callback invoked when a scheduled macro fires.
type Handler func(macro *state.Macro)

// Scheduler evaluates cron expressions from the macro store and fires macros
// through a handler callback.
type Scheduler struct {
	store   *state.MacroStore
	handler Handler
	cron    *cron.Cron
}

// cronParser accepts both standard 5-field cron expressions and 6-field
// expressions with an optional seconds field.
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ValidateSchedule checks that a cron expression parses.
func ValidateSchedule(schedule string) error {
	_, err := cronParser.Parse(schedule)
	return err
}

// New creates a new Scheduler backed by the given macro store. The handler is
// called each time a scheduled macro fires.
func New(store *state.MacroStore, handler Handler) *Scheduler {
	return &Scheduler{
		store:   store,
		handler: handler,
		cron:    cron.New(cron.WithParser(cronParser)),
	}
}

// Start loads macros from the store, registers enabled macros that have a
// schedule as cron entries, and starts the cron ticker.
func (s *Scheduler) Start() error {
	macros, err := s.store.List()
	if err != nil {
		return err
	}

	for _, macro := range macros {
		if macro.Schedule == "" || !macro.Enabled {
			continue
		}

		m := macro
		_, err := s.cron.AddFunc(m.Schedule, func() {
			slog.Info("cron firing macro", "name", m.Name, "action_type", m.ActionType)
			s.handler(m)
		})
		if err != nil {
			slog.Error("invalid cron schedule", "name", m.Name, "schedule", m.Schedule, "error", err)
			continue
		}
		slog.Info("scheduled macro", "name", m.Name, "schedule", m.Schedule)
	}

	s.cron.Start()
	return nil
}

// Reload stops the existing cron, creates a new one, and calls Start() again.
func (s *Scheduler) Reload() error {
	s.cron.Stop()
	s.cron = cron.New(cron.WithParser(cronParser))
	return s.Start()
}

// Stop stops the cron ticker.
func (s *Scheduler) Stop() {
	s.cron.Stop()
}
