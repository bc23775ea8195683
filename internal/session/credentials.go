// Package session holds the in-memory credential state shared by the
// request pipeline and the push channel. Credentials live only for the
// lifetime of the process; persistence, when wanted, is layered on top
// by the caller.
package session

import (
	"sync"
)

// Credentials is the access/refresh token pair for one session. Both
// fields are replaced or cleared together; after a successful login
// neither is ever present without the other.
type Credentials struct {
	Access  string
	Refresh string
}

// Store guards a single credential pair. Mutations are whole-pair
// replacements so a concurrently suspended request never observes a
// half-renewed state.
type Store struct {
	mu    sync.RWMutex
	creds Credentials
}

func NewStore() *Store {
	return &Store{}
}

// Set replaces the whole pair. An empty refresh token keeps the
// previous one: renewal responses may omit refresh_token when the
// server chooses not to rotate it.
func (s *Store) Set(access, refresh string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if refresh == "" {
		refresh = s.creds.Refresh
	}
	s.creds = Credentials{Access: access, Refresh: refresh}
}

// Clear drops both tokens. Used by logout and by a failed renewal.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds = Credentials{}
}

// Get returns a consistent snapshot of the pair.
func (s *Store) Get() Credentials {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creds
}

// Access returns the current access token, or "" when logged out.
func (s *Store) Access() string {
	return s.Get().Access
}

// Refresh returns the current refresh token, or "" when logged out.
func (s *Store) Refresh() string {
	return s.Get().Refresh
}

// Authenticated reports whether a usable pair is present.
func (s *Store) Authenticated() bool {
	c := s.Get()
	return c.Access != "" && c.Refresh != ""
}
