package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/user/ziactl/internal/confirm"
	"github.com/user/ziactl/internal/feed"
	"github.com/user/ziactl/internal/localapi"
	"github.com/user/ziactl/internal/notify"
	"github.com/user/ziactl/internal/push"
	"github.com/user/ziactl/internal/scheduler"
	"github.com/user/ziactl/internal/state"
	"github.com/user/ziactl/internal/types"
)

func init() {
	rootCmd.AddCommand(watchCmd)
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the watch daemon",
	Long: `Run the long-lived watch daemon: keeps the push channel open,
maintains the action feed, tracks risky-action confirmations, fires
scheduled macros, and serves the local API for other commands.`,
	RunE: runWatch,
}

func writePIDFile(dataDir string) (string, error) {
	pidPath := filepath.Join(dataDir, "ziactl.pid")
	pid := os.Getpid()
	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(pid)+"\n"), 0644); err != nil {
		return "", fmt.Errorf("write PID file: %w", err)
	}
	return pidPath, nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	setupLogging(cfg)

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	// Write PID file
	pidPath, err := writePIDFile(cfg.DataDir)
	if err != nil {
		return err
	}
	defer os.Remove(pidPath)

	client, store, cache, err := openSession(cfg)
	if err != nil {
		return err
	}
	if !store.Authenticated() {
		return fmt.Errorf("not logged in")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Action feed, streamed to the log as it changes
	actionFeed := feed.New()
	actionFeed.Subscribe(func(entry types.FeedEntry) {
		slog.Info("feed update",
			"execution_id", entry.ExecutionID,
			"type", entry.ActionType,
			"status", entry.Status,
			"source", entry.Source,
		)
	})

	// Notifications
	sink := notify.LogHandler(slog.Default())
	if cfg.Notify.Command != "" {
		sink = notify.ExecHandler(cfg.Notify.Command)
	}
	notifier := notify.NewRegistry()
	notifier.Register("action.", sink)
	notifier.Register("confirm.", sink)
	notifier.Register("push.", sink)

	// Confirmation tracker
	policy := confirm.ReplaceLatest
	if cfg.Confirm.ReplacePolicy == "reject_new" {
		policy = confirm.RejectNew
	}
	tracker := confirm.NewTracker(confirm.Config{
		Resolver: client,
		TTL:      cfg.ConfirmationTTL(),
		Policy:   policy,
		OnResolved: func(executionID string, outcome confirm.Outcome) {
			if err := notifier.Notify(notify.Event{
				Topic: "confirm." + string(outcome),
				Title: fmt.Sprintf("confirmation %s", outcome),
				Body:  executionID,
			}); err != nil {
				slog.Debug("notify failed", "error", err)
			}
		},
	})
	defer tracker.Close()

	// Push channel
	manager := push.NewManager(push.Config{
		URL:          cfg.Server.WSURL,
		Creds:        store,
		Dial:         push.DialWebSocket,
		BaseDelay:    cfg.ReconnectBaseDelay(),
		MaxAttempts:  cfg.Push.ReconnectAttempts,
		PingInterval: cfg.PingInterval(),
		Handler: func(msg types.PushMessage) {
			switch msg.Type {
			case types.PushActionResult:
				entry := types.FeedEntryFromResponse(msg.Data, types.SourceAPI, time.Now())
				actionFeed.Record(entry)
				tracker.ObservePush(msg.Data.ExecutionID, msg.Data.Status)
				if msg.Data.ConfirmationRequired {
					pc := types.PendingConfirmation{
						ExecutionID:       msg.Data.ExecutionID,
						ConfirmationToken: msg.Data.ConfirmationToken,
						CreatedAt:         time.Now(),
					}
					if msg.Data.ActionPreview != nil {
						pc.ActionPreview = *msg.Data.ActionPreview
						pc.RiskLevel = msg.Data.ActionPreview.RiskLevel
					}
					if err := tracker.Open(pc); err != nil {
						slog.Warn("pushed confirmation not tracked", "execution_id", pc.ExecutionID, "error", err)
					} else if err := notifier.Notify(notify.Event{
						Topic: "confirm.pending",
						Title: entry.ActionType,
						Body:  fmt.Sprintf("awaiting confirmation, run 'ziactl confirm' within %s", tracker.Remaining().Round(time.Second)),
					}); err != nil {
						slog.Debug("notify failed", "error", err)
					}
				}
				if entry.Status.Terminal() {
					if err := notifier.Notify(notify.Event{
						Topic: "action." + string(entry.Status),
						Title: entry.ActionType,
						Body:  entry.Message,
					}); err != nil {
						slog.Debug("notify failed", "error", err)
					}
				}
			case types.PushStatusUpdate:
				if current, ok := actionFeed.Get(msg.ExecutionID); ok {
					current.Status = msg.Status
					actionFeed.Record(current)
				}
				tracker.ObservePush(msg.ExecutionID, msg.Status)
			}
		},
		OnStatus: func(s push.Status) {
			slog.Info("push channel", "status", s)
			if s == push.StatusError {
				if err := notifier.Notify(notify.Event{
					Topic: "push.disconnected",
					Title: "push channel lost",
				}); err != nil {
					slog.Debug("notify failed", "error", err)
				}
			}
		},
	})
	manager.Start(ctx)
	defer manager.Stop()
	manager.Connect()

	// Seed the feed with anything still pending server-side, so the
	// local API has state before the first push event arrives.
	if items, err := client.Pending(ctx); err != nil {
		slog.Warn("pending fetch failed", "error", err)
	} else {
		for _, entry := range items {
			actionFeed.Record(entry)
		}
	}

	// Macro scheduler
	macros := macroStore(cfg)
	sched := scheduler.New(macros, func(m *state.Macro) {
		req := types.ActionRequest{
			ActionType: m.ActionType,
			Params:     m.Params,
			Source:     types.SourceMacro,
		}
		resp, err := client.Execute(ctx, req)
		if err != nil {
			slog.Error("macro execution failed", "name", m.Name, "error", err)
			return
		}
		actionFeed.Record(types.FeedEntryFromResponse(resp, types.SourceMacro, time.Now()))
		if resp.ConfirmationRequired {
			pc := types.PendingConfirmation{
				ExecutionID:       resp.ExecutionID,
				ConfirmationToken: resp.ConfirmationToken,
				CreatedAt:         time.Now(),
			}
			if resp.ActionPreview != nil {
				pc.ActionPreview = *resp.ActionPreview
				pc.RiskLevel = resp.ActionPreview.RiskLevel
			}
			if err := tracker.Open(pc); err != nil {
				slog.Warn("macro confirmation not tracked", "name", m.Name, "error", err)
			}
		}
		// Renewal may have rotated the tokens.
		if err := cache.Save(store); err != nil {
			slog.Warn("token cache update failed", "error", err)
		}
	})
	if err := sched.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer sched.Stop()
	slog.Info("scheduler started")

	// Local API server
	if cfg.LocalAPI.Enabled {
		apiSrv := localapi.NewServer(actionFeed, tracker, cfg.LocalAPI.Token)
		httpServer := &http.Server{
			Addr:    cfg.LocalAPI.Listen,
			Handler: apiSrv,
		}
		go func() {
			slog.Info("local API started", "listen", cfg.LocalAPI.Listen)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("local API error", "error", err)
			}
		}()
		go func() {
			<-ctx.Done()
			httpServer.Close()
		}()
	}

	slog.Info("ziactl watch started",
		"data_dir", cfg.DataDir,
		"log_level", cfg.LogLevel,
		"api_url", cfg.Server.APIURL,
		"ws_url", cfg.Server.WSURL,
		"local_api", cfg.LocalAPI.Enabled,
		"pid_file", pidPath,
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	for {
		sig := <-sigChan
		if sig == syscall.SIGHUP {
			slog.Info("received SIGHUP, restarting")
			execPath, err := os.Executable()
			if err != nil {
				slog.Error("failed to get executable path", "error", err)
				continue
			}
			// Clean up PID file before re-exec
			os.Remove(pidPath)
			if err := syscall.Exec(execPath, os.Args, os.Environ()); err != nil {
				slog.Error("failed to re-exec", "error", err)
				// Re-write PID file since we failed to re-exec
				if _, writeErr := writePIDFile(cfg.DataDir); writeErr != nil {
					slog.Error("failed to re-write PID file", "error", writeErr)
				}
				continue
			}
		}
		// SIGINT or SIGTERM
		slog.Info("shutting down", "signal", sig)
		if err := cache.Save(store); err != nil {
			slog.Warn("token cache update failed", "error", err)
		}
		return nil
	}
}
