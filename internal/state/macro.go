// internal/state/macro.go
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/user/ziactl/internal/types"
)

// Macro represents a named action that can be triggered on a schedule.
type Macro struct {
	ID         types.MacroID  `json:"id"`
	Name       string         `json:"name"`
	ActionType string         `json:"action_type"`
	Params     map[string]any `json:"params,omitempty"`
	Schedule   string         `json:"schedule,omitempty"`
	Enabled    bool           `json:"enabled"`
}

// MacroStore is a JSON-file-backed store for macros.
type MacroStore struct {
	path string
	mu   sync.RWMutex
}

// NewMacroStore creates a new file-backed MacroStore at the given file path.
func NewMacroStore(path string) *MacroStore {
	return &MacroStore{path: path}
}

// Path returns the file path used by this store.
func (s *MacroStore) Path() string {
	return s.path
}

// List returns all macros. Returns an empty slice if the file doesn't exist.
func (s *MacroStore) List() ([]*Macro, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	macros, err := s.load()
	if err != nil {
		return nil, err
	}
	if macros == nil {
		return []*Macro{}, nil
	}
	return macros, nil
}

// Get finds a macro by name. Returns an error if not found.
func (s *MacroStore) Get(name string) (*Macro, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	macros, err := s.load()
	if err != nil {
		return nil, err
	}

	for _, macro := range macros {
		if macro.Name == name {
			return macro, nil
		}
	}
	return nil, fmt.Errorf("macro not found: %s", name)
}

// Add appends a macro, assigning an ID if unset. Returns an error if a
// macro with the same name already exists.
func (s *MacroStore) Add(macro *Macro) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	macros, err := s.load()
	if err != nil {
		return err
	}

	for _, existing := range macros {
		if existing.Name == macro.Name {
			return fmt.Errorf("macro already exists: %s", macro.Name)
		}
	}

	if macro.ID == "" {
		macro.ID = types.NewMacroID()
	}

	macros = append(macros, macro)
	return s.save(macros)
}

// Remove deletes a macro by name. Returns an error if not found.
func (s *MacroStore) Remove(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	macros, err := s.load()
	if err != nil {
		return err
	}

	for i, macro := range macros {
		if macro.Name == name {
			macros = append(macros[:i], macros[i+1:]...)
			return s.save(macros)
		}
	}
	return fmt.Errorf("macro not found: %s", name)
}

// SetEnabled toggles the enabled flag for a macro. Returns an error if not found.
func (s *MacroStore) SetEnabled(name string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	macros, err := s.load()
	if err != nil {
		return err
	}

	for _, macro := range macros {
		if macro.Name == name {
			macro.Enabled = enabled
			return s.save(macros)
		}
	}
	return fmt.Errorf("macro not found: %s", name)
}

// load reads the JSON file and returns the macro list. Returns nil if the file doesn't exist.
func (s *MacroStore) load() ([]*Macro, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read macros file: %w", err)
	}

	var macros []*Macro
	if err := json.Unmarshal(data, &macros); err != nil {
		return nil, fmt.Errorf("unmarshal macros: %w", err)
	}
	return macros, nil
}

// save writes the macro list to disk using atomic write (temp file + rename).
func (s *MacroStore) save(macros []*Macro) error {
	data, err := json.MarshalIndent(macros, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal macros: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create macros dir: %w", err)
	}

	// Atomic write: write to temp file then rename
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp macros file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp macros file: %w", err)
	}
	return nil
}
