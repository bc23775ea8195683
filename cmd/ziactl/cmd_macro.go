package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/user/ziactl/internal/scheduler"
	"github.com/user/ziactl/internal/state"
)

func init() {
	rootCmd.AddCommand(macroCmd)
	macroCmd.AddCommand(macroAddCmd, macroListCmd, macroRemoveCmd, macroEnableCmd, macroDisableCmd)

	macroAddCmd.Flags().String("name", "", "macro name (required)")
	macroAddCmd.Flags().String("type", "", "action type (required)")
	macroAddCmd.Flags().StringArray("param", nil, "action parameter as key=value (repeatable)")
	macroAddCmd.Flags().String("schedule", "", "cron schedule expression")
	_ = macroAddCmd.MarkFlagRequired("name")
	_ = macroAddCmd.MarkFlagRequired("type")
}

var macroCmd = &cobra.Command{
	Use:   "macro",
	Short: "Manage saved macros",
}

var macroAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a new macro",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		actionType, _ := cmd.Flags().GetString("type")
		params, _ := cmd.Flags().GetStringArray("param")
		schedule, _ := cmd.Flags().GetString("schedule")

		if schedule != "" {
			if err := scheduler.ValidateSchedule(schedule); err != nil {
				return fmt.Errorf("invalid schedule %q: %w", schedule, err)
			}
		}

		macro := &state.Macro{
			Name:       name,
			ActionType: actionType,
			Schedule:   schedule,
			Enabled:    true,
		}
		if len(params) > 0 {
			macro.Params = make(map[string]any, len(params))
			for _, p := range params {
				k, v, ok := strings.Cut(p, "=")
				if !ok {
					return fmt.Errorf("invalid --param %q, want key=value", p)
				}
				macro.Params[k] = v
			}
		}

		store := macroStore(loadConfig())
		if err := store.Add(macro); err != nil {
			return fmt.Errorf("add macro: %w", err)
		}
		fmt.Fprintf(os.Stdout, "Macro %q added.\n", name)
		return nil
	},
}

var macroListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all macros",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store := macroStore(loadConfig())
		macros, err := store.List()
		if err != nil {
			return fmt.Errorf("list macros: %w", err)
		}

		if len(macros) == 0 {
			fmt.Println("No macros configured.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tTYPE\tSCHEDULE\tENABLED")
		for _, m := range macros {
			fmt.Fprintf(w, "%s\t%s\t%s\t%v\n",
				m.Name,
				m.ActionType,
				m.Schedule,
				m.Enabled,
			)
		}
		return w.Flush()
	},
}

var macroRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a macro",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store := macroStore(loadConfig())
		if err := store.Remove(args[0]); err != nil {
			return fmt.Errorf("remove macro: %w", err)
		}
		fmt.Fprintf(os.Stdout, "Macro %q removed.\n", args[0])
		return nil
	},
}

var macroEnableCmd = &cobra.Command{
	Use:   "enable <name>",
	Short: "Enable a macro",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store := macroStore(loadConfig())
		if err := store.SetEnabled(args[0], true); err != nil {
			return fmt.Errorf("enable macro: %w", err)
		}
		fmt.Fprintf(os.Stdout, "Macro %q enabled.\n", args[0])
		return nil
	},
}

var macroDisableCmd = &cobra.Command{
	Use:   "disable <name>",
	Short: "Disable a macro",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store := macroStore(loadConfig())
		if err := store.SetEnabled(args[0], false); err != nil {
			return fmt.Errorf("disable macro: %w", err)
		}
		fmt.Fprintf(os.Stdout, "Macro %q disabled.\n", args[0])
		return nil
	},
}
