package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/user/ziactl/internal/config"
	"github.com/user/ziactl/internal/confirm"
	"github.com/user/ziactl/internal/types"
)

func init() {
	rootCmd.AddCommand(doCmd, historyCmd, pendingCmd)

	doCmd.Flags().String("type", "", "structured action type (instead of free-form text)")
	doCmd.Flags().StringArray("param", nil, "structured action parameter as key=value (repeatable)")
	doCmd.Flags().Bool("yes", false, "confirm risky actions without prompting")

	historyCmd.Flags().Int("page", 1, "page number")
	historyCmd.Flags().Int("per-page", 20, "results per page")
}

var doCmd = &cobra.Command{
	Use:   "do [text...]",
	Short: "Execute an action",
	Long: `Execute an action on the backend. Free-form text is interpreted
server-side; alternatively pass --type and --param for a structured call.
Risky actions come back as a preview which must be confirmed before the
deadline passes.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		setupLogging(cfg)

		client, store, cache, err := openSession(cfg)
		if err != nil {
			return err
		}
		if !store.Authenticated() {
			return fmt.Errorf("not logged in")
		}

		actionType, _ := cmd.Flags().GetString("type")
		params, _ := cmd.Flags().GetStringArray("param")
		autoYes, _ := cmd.Flags().GetBool("yes")

		req := types.ActionRequest{Source: types.SourceText}
		switch {
		case actionType != "":
			req.ActionType = actionType
			req.Params = make(map[string]any, len(params))
			for _, p := range params {
				k, v, ok := strings.Cut(p, "=")
				if !ok {
					return fmt.Errorf("invalid --param %q, want key=value", p)
				}
				req.Params[k] = v
			}
		case len(args) > 0:
			req.InputText = strings.Join(args, " ")
		default:
			return fmt.Errorf("provide action text or --type")
		}

		resp, err := client.Execute(cmd.Context(), req)
		if err != nil {
			return fmt.Errorf("execute: %w", err)
		}
		if err := cache.Save(store); err != nil {
			return fmt.Errorf("cache tokens: %w", err)
		}

		if !resp.ConfirmationRequired {
			printResult(resp)
			return nil
		}
		return resolveInline(cmd, cfg, client, resp, autoYes)
	},
}

// resolveInline walks the user through a confirmation-required response:
// show the preview, ask, and resolve before the deadline passes.
func resolveInline(cmd *cobra.Command, cfg *config.Config, client confirm.Resolver, resp *types.ActionResponse, autoYes bool) error {
	tracker := confirm.NewTracker(confirm.Config{
		Resolver: client,
		TTL:      cfg.ConfirmationTTL(),
	})
	defer tracker.Close()

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
		return err
	}

	printPreview(resp)

	answer := "y"
	if !autoYes {
		fmt.Fprintf(os.Stdout, "Confirm? [y/N] (%s to decide): ", tracker.Remaining().Round(time.Second))
		scanner := bufio.NewScanner(os.Stdin)
		if scanner.Scan() {
			answer = strings.ToLower(strings.TrimSpace(scanner.Text()))
		} else {
			answer = "n"
		}
	}

	if answer != "y" && answer != "yes" {
		if err := tracker.Reject(cmd.Context(), "declined"); err != nil {
			return fmt.Errorf("reject: %w", err)
		}
		fmt.Fprintln(os.Stdout, "Rejected.")
		return nil
	}

	result, err := tracker.Confirm(cmd.Context())
	if err != nil {
		return fmt.Errorf("confirm: %w", err)
	}
	printResult(result)
	return nil
}

func printPreview(resp *types.ActionResponse) {
	p := resp.ActionPreview
	if p == nil {
		fmt.Fprintf(os.Stdout, "Action %s requires confirmation.\n", resp.ExecutionID)
		return
	}
	fmt.Fprintf(os.Stdout, "Action: %s\n", p.Action)
	if p.Description != "" {
		fmt.Fprintf(os.Stdout, "Description: %s\n", p.Description)
	}
	fmt.Fprintf(os.Stdout, "Risk: %s\n", p.RiskLevel)
	for _, reason := range p.Reasons {
		fmt.Fprintf(os.Stdout, "  - %s\n", reason)
	}
}

func printResult(resp *types.ActionResponse) {
	fmt.Fprintf(os.Stdout, "Status: %s\n", resp.Status)
	if resp.Message != "" {
		fmt.Fprintf(os.Stdout, "%s\n", resp.Message)
	}
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the server-side action history",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		setupLogging(cfg)

		client, store, cache, err := openSession(cfg)
		if err != nil {
			return err
		}
		if !store.Authenticated() {
			return fmt.Errorf("not logged in")
		}

		page, _ := cmd.Flags().GetInt("page")
		perPage, _ := cmd.Flags().GetInt("per-page")

		hist, err := client.History(cmd.Context(), page, perPage)
		if err != nil {
			return fmt.Errorf("history: %w", err)
		}
		if err := cache.Save(store); err != nil {
			return fmt.Errorf("cache tokens: %w", err)
		}

		if len(hist.Items) == 0 {
			fmt.Println("No actions in history.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTYPE\tSTATUS\tRISK\tSOURCE\tWHEN")
		for _, e := range hist.Items {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				e.ExecutionID,
				e.ActionType,
				e.Status,
				e.RiskLevel,
				e.Source,
				e.CreatedAt.Format("2006-01-02 15:04:05"),
			)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Page %d of %d total actions.\n", hist.Page, hist.Total)
		return nil
	},
}

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List actions awaiting confirmation on the server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		setupLogging(cfg)

		client, store, cache, err := openSession(cfg)
		if err != nil {
			return err
		}
		if !store.Authenticated() {
			return fmt.Errorf("not logged in")
		}

		items, err := client.Pending(cmd.Context())
		if err != nil {
			return fmt.Errorf("pending: %w", err)
		}
		if err := cache.Save(store); err != nil {
			return fmt.Errorf("cache tokens: %w", err)
		}

		if len(items) == 0 {
			fmt.Println("Nothing pending.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTYPE\tRISK\tWHEN")
		for _, e := range items {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				e.ExecutionID,
				e.ActionType,
				e.RiskLevel,
				e.CreatedAt.Format("2006-01-02 15:04:05"),
			)
		}
		return w.Flush()
	},
}
