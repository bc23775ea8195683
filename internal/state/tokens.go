// internal/state/tokens.go
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/user/ziactl/internal/session"
)

// tokenFile is the on-disk shape of the cached session tokens.
type tokenFile struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	SavedAt      time.Time `json:"saved_at"`
}

// TokenCache persists session tokens between CLI invocations so that a
// login survives across commands. The file is written with 0600
// permissions since it holds live credentials.
type TokenCache struct {
	path string
}

// NewTokenCache creates a token cache backed by the given file path.
func NewTokenCache(path string) *TokenCache {
	return &TokenCache{path: path}
}

// Path returns the file path used by this cache.
func (c *TokenCache) Path() string {
	return c.path
}

// Load reads cached tokens into the store. A missing file is not an
// error; the store is simply left unauthenticated.
func (c *TokenCache) Load(store *session.Store) error {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read token cache: %w", err)
	}

	var tf tokenFile
	if err := json.Unmarshal(data, &tf); err != nil {
		return fmt.Errorf("unmarshal token cache: %w", err)
	}

	if tf.AccessToken != "" {
		store.Set(tf.AccessToken, tf.RefreshToken)
	}
	return nil
}

// Save writes the store's current tokens to disk. An unauthenticated
// store clears the cache instead.
func (c *TokenCache) Save(store *session.Store) error {
	creds := store.Get()
	if creds.Access == "" {
		return c.Clear()
	}

	tf := tokenFile{
		AccessToken:  creds.Access,
		RefreshToken: creds.Refresh,
		SavedAt:      time.Now(),
	}

	data, err := json.MarshalIndent(tf, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal token cache: %w", err)
	}

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create token cache dir: %w", err)
	}

	// Atomic write: write to temp file then rename
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write temp token cache: %w", err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp token cache: %w", err)
	}
	return nil
}

// Clear removes the cache file. Missing file is not an error.
func (c *TokenCache) Clear() error {
	if err := os.Remove(c.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove token cache: %w", err)
	}
	return nil
}
