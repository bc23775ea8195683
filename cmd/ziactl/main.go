package main

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/user/ziactl/internal/api"
	"github.com/user/ziactl/internal/config"
	"github.com/user/ziactl/internal/session"
	"github.com/user/ziactl/internal/state"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "ziactl",
	Short: "Command-line client for the Zia assistant backend",
	Long: `ziactl talks to a Zia assistant backend: it executes actions,
handles risky-action confirmations, follows the live action feed, and
runs saved macros on a schedule via the watch daemon.`,
	SilenceUsage: true,
}

func main() {
	defaultPath := filepath.Join(os.Getenv("HOME"), ".ziactl", "config.json")
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", defaultPath, "config file path")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads the config file, exiting on failure. Commands call this
// instead of handling config errors individually.
func loadConfig() *config.Config {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

// setupLogging configures the default slog logger from config.
func setupLogging(cfg *config.Config) {
	var level slog.Level
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// tokenCache returns the token cache for the configured data dir.
func tokenCache(cfg *config.Config) *state.TokenCache {
	return state.NewTokenCache(filepath.Join(cfg.DataDir, "tokens.json"))
}

// openSession loads cached tokens into a fresh credential store and
// returns an API client over it.
func openSession(cfg *config.Config) (*api.Client, *session.Store, *state.TokenCache, error) {
	store := session.NewStore()
	cache := tokenCache(cfg)
	if err := cache.Load(store); err != nil {
		return nil, nil, nil, err
	}
	client := api.New(cfg.Server.APIURL, store).WithTimeout(cfg.RequestTimeout())
	return client, store, cache, nil
}

// macroStore returns the macro store for the configured data dir.
func macroStore(cfg *config.Config) *state.MacroStore {
	return state.NewMacroStore(filepath.Join(cfg.DataDir, "macros.json"))
}

// prompt displays a labeled prompt with a default value and reads user input.
// If the user enters nothing, the default is returned.
func prompt(scanner *bufio.Scanner, label, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", label, defaultVal)
	} else {
		fmt.Printf("%s: ", label)
	}
	if scanner.Scan() {
		input := strings.TrimSpace(scanner.Text())
		if input != "" {
			return input
		}
	}
	return defaultVal
}
