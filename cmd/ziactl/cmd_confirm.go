package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/user/ziactl/internal/config"
	"github.com/user/ziactl/internal/types"
)

func init() {
	rootCmd.AddCommand(confirmCmd, rejectCmd, feedCmd)
}

// localAPIRequest calls the watch daemon's local API and decodes the
// response into out when out is non-nil.
func localAPIRequest(cfg *config.Config, method, path string, body, out any) error {
	if !cfg.LocalAPI.Enabled {
		return fmt.Errorf("local API is disabled; enable it and run 'ziactl watch'")
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	url := "http://" + cfg.LocalAPI.Listen + path
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if cfg.LocalAPI.Token != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.LocalAPI.Token)
	}

	hc := &http.Client{Timeout: 10 * time.Second}
	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("reach watch daemon: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&e) == nil && e.Error != "" {
			return fmt.Errorf("%s", e.Error)
		}
		return fmt.Errorf("watch daemon returned %d", resp.StatusCode)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

var confirmCmd = &cobra.Command{
	Use:   "confirm",
	Short: "Confirm the pending risky action",
	Long: `Confirm the risky action currently awaiting a decision in the watch
daemon. Requires 'ziactl watch' to be running with the local API enabled.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		setupLogging(cfg)

		var resp types.ActionResponse
		if err := localAPIRequest(cfg, http.MethodPost, "/api/confirm", nil, &resp); err != nil {
			return err
		}
		printResult(&resp)
		return nil
	},
}

var feedCmd = &cobra.Command{
	Use:   "feed",
	Short: "Show the watch daemon's action feed",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		setupLogging(cfg)

		var entries []types.FeedEntry
		if err := localAPIRequest(cfg, http.MethodGet, "/api/feed", nil, &entries); err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("Feed is empty.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTYPE\tSTATUS\tRISK\tSOURCE\tWHEN")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				e.ExecutionID,
				e.ActionType,
				e.Status,
				e.RiskLevel,
				e.Source,
				e.CreatedAt.Format("15:04:05"),
			)
		}
		return w.Flush()
	},
}

var rejectCmd = &cobra.Command{
	Use:   "reject [reason...]",
	Short: "Reject the pending risky action",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		setupLogging(cfg)

		body := map[string]string{"reason": strings.Join(args, " ")}
		if err := localAPIRequest(cfg, http.MethodPost, "/api/reject", body, nil); err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, "Rejected.")
		return nil
	},
}
