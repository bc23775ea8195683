package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

type Config struct {
	DataDir  string `json:"data_dir"`
	LogLevel string `json:"log_level"`
	Server   struct {
		APIURL         string `json:"api_url"`
		WSURL          string `json:"ws_url"`
		TimeoutSeconds int    `json:"timeout_seconds"`
	} `json:"server"`
	Push struct {
		ReconnectAttempts   int `json:"reconnect_attempts"`
		ReconnectBaseMillis int `json:"reconnect_base_ms"`
		PingSeconds         int `json:"ping_seconds"`
	} `json:"push"`
	Confirm struct {
		TTLSeconds    int    `json:"ttl_seconds"`
		ReplacePolicy string `json:"replace_policy"`
	} `json:"confirm"`
	LocalAPI struct {
		Enabled bool   `json:"enabled"`
		Listen  string `json:"listen"`
		Token   string `json:"token"`
	} `json:"local_api"`
	Notify struct {
		// Command, when set, is run (via sh -c) for every engine event
		// with ZIA_TOPIC/ZIA_TITLE/ZIA_BODY in the environment.
		Command string `json:"command"`
	} `json:"notify"`
}

// RequestTimeout returns the pipeline's per-request upper bound.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.TimeoutSeconds) * time.Second
}

func (c *Config) ReconnectBaseDelay() time.Duration {
	return time.Duration(c.Push.ReconnectBaseMillis) * time.Millisecond
}

func (c *Config) PingInterval() time.Duration {
	return time.Duration(c.Push.PingSeconds) * time.Second
}

func (c *Config) ConfirmationTTL() time.Duration {
	return time.Duration(c.Confirm.TTLSeconds) * time.Second
}

func Load(path string) (*Config, error) {
	cfg := &Config{
		DataDir:  filepath.Join(os.Getenv("HOME"), ".ziactl"),
		LogLevel: "info",
	}
	cfg.Server.APIURL = "http://localhost:8000/api/v1"
	cfg.Server.WSURL = "ws://localhost:8000/api/v1/ws/voice"
	cfg.Server.TimeoutSeconds = 15
	cfg.Push.ReconnectAttempts = 5
	cfg.Push.ReconnectBaseMillis = 1000
	cfg.Push.PingSeconds = 30
	cfg.Confirm.TTLSeconds = 300
	cfg.Confirm.ReplacePolicy = "replace"
	cfg.LocalAPI.Enabled = false
	cfg.LocalAPI.Listen = "127.0.0.1:4781"

	// Load from file if exists, otherwise write defaults
	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	} else if os.IsNotExist(err) {
		if err := Save(path, cfg); err != nil {
			return nil, err
		}
	}

	// Override from env (highest precedence)
	if apiURL := os.Getenv("ZIA_API_URL"); apiURL != "" {
		cfg.Server.APIURL = apiURL
	}
	if wsURL := os.Getenv("ZIA_WS_URL"); wsURL != "" {
		cfg.Server.WSURL = wsURL
	}
	if level := os.Getenv("ZIA_LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}
	if token := os.Getenv("ZIA_LOCAL_API_TOKEN"); token != "" {
		cfg.LocalAPI.Token = token
	}

	return cfg, nil
}

// Save writes the config as indented JSON, atomically, creating the
// parent directory when needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	data = append(data, '\n')
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename config: %w", err)
	}
	return nil
}

// ToMap converts the config to a nested map via its JSON form.
func ToMap(cfg *Config) (map[string]any, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// ListValues returns the config as a flat dot-keyed map, with secrets
// masked when mask is true.
func ListValues(cfg *Config, mask bool) (map[string]any, error) {
	m, err := ToMap(cfg)
	if err != nil {
		return nil, err
	}
	flat := Flatten(m)
	if mask {
		flat = MaskSecrets(flat)
	}
	return flat, nil
}

// GetValue loads the config file and returns the value at the given
// dot-separated key.
func GetValue(path, key string) (any, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	flat, err := ListValues(cfg, false)
	if err != nil {
		return nil, err
	}
	v, ok := flat[key]
	if !ok {
		return nil, fmt.Errorf("unknown config key: %s", key)
	}
	return v, nil
}

// SetValue sets the value at the given dot-separated key in the config
// file. The raw value is JSON-parsed when possible (numbers, booleans)
// and stored as a string otherwise.
func SetValue(path, key, raw string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}

	flat := Flatten(m)
	flat[key] = parseScalar(raw)
	nested := Unflatten(flat)

	out, err := json.MarshalIndent(nested, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	out = append(out, '\n')
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, out, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename config: %w", err)
	}
	return nil
}

func parseScalar(raw string) any {
	if raw == "true" || raw == "false" {
		return raw == "true"
	}
	if n, err := strconv.ParseFloat(raw, 64); err == nil {
		return n
	}
	return raw
}
