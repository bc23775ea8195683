package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/user/ziactl/internal/config"
)

func init() {
	rootCmd.AddCommand(setupCmd)
}

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Interactive setup wizard",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		scanner := bufio.NewScanner(os.Stdin)

		fmt.Println("ziactl Setup Wizard")
		fmt.Println("Press Enter to accept the default value shown in brackets.")
		fmt.Println()

		// 1. API base URL
		cfg.Server.APIURL = prompt(scanner, "API base URL", cfg.Server.APIURL)

		// 2. Push channel URL
		cfg.Server.WSURL = prompt(scanner, "Push channel URL", cfg.Server.WSURL)

		// 3. Confirmation TTL
		ttlStr := prompt(scanner, "Confirmation TTL seconds", strconv.Itoa(cfg.Confirm.TTLSeconds))
		if n, err := strconv.Atoi(ttlStr); err == nil && n > 0 {
			cfg.Confirm.TTLSeconds = n
		}

		// 4. Local API
		enabled := prompt(scanner, "Enable local API (true/false)", strconv.FormatBool(cfg.LocalAPI.Enabled))
		cfg.LocalAPI.Enabled = enabled == "true"
		if cfg.LocalAPI.Enabled {
			cfg.LocalAPI.Listen = prompt(scanner, "Local API listen address", cfg.LocalAPI.Listen)
			cfg.LocalAPI.Token = prompt(scanner, "Local API token (optional)", cfg.LocalAPI.Token)
		}

		if err := config.Save(cfgPath, cfg); err != nil {
			return fmt.Errorf("save config: %w", err)
		}

		fmt.Println()
		fmt.Println("Configuration saved to", cfgPath)
		return nil
	},
}
