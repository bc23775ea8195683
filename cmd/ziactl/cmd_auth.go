package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(loginCmd, registerCmd, logoutCmd, whoamiCmd)

	loginCmd.Flags().String("email", "", "account email (prompted if omitted)")
	loginCmd.Flags().String("password", "", "account password (prompted if omitted)")

	registerCmd.Flags().String("email", "", "account email (prompted if omitted)")
	registerCmd.Flags().String("password", "", "account password (prompted if omitted)")
	registerCmd.Flags().String("name", "", "display name")
}

// credentialArgs reads email/password from flags, prompting on stdin for
// whichever is missing.
func credentialArgs(cmd *cobra.Command) (string, string) {
	email, _ := cmd.Flags().GetString("email")
	password, _ := cmd.Flags().GetString("password")

	scanner := bufio.NewScanner(os.Stdin)
	if email == "" {
		email = prompt(scanner, "Email", "")
	}
	if password == "" {
		password = prompt(scanner, "Password", "")
	}
	return email, password
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authenticate and cache session tokens",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		setupLogging(cfg)

		client, store, cache, err := openSession(cfg)
		if err != nil {
			return err
		}

		email, password := credentialArgs(cmd)
		if email == "" || password == "" {
			return fmt.Errorf("email and password are required")
		}

		if _, err := client.Login(cmd.Context(), email, password); err != nil {
			return fmt.Errorf("login: %w", err)
		}
		if err := cache.Save(store); err != nil {
			return fmt.Errorf("cache tokens: %w", err)
		}

		fmt.Fprintf(os.Stdout, "Logged in as %s.\n", email)
		return nil
	},
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create a new account and log in",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		setupLogging(cfg)

		client, store, cache, err := openSession(cfg)
		if err != nil {
			return err
		}

		email, password := credentialArgs(cmd)
		if email == "" || password == "" {
			return fmt.Errorf("email and password are required")
		}
		name, _ := cmd.Flags().GetString("name")

		user, err := client.Register(cmd.Context(), email, password, name)
		if err != nil {
			return fmt.Errorf("register: %w", err)
		}

		if _, err := client.Login(cmd.Context(), email, password); err != nil {
			return fmt.Errorf("login after register: %w", err)
		}
		if err := cache.Save(store); err != nil {
			return fmt.Errorf("cache tokens: %w", err)
		}

		fmt.Fprintf(os.Stdout, "Account %s created and logged in.\n", user.Email)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "End the session and drop cached tokens",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		setupLogging(cfg)

		client, _, cache, err := openSession(cfg)
		if err != nil {
			return err
		}

		// Best-effort server-side logout; local state clears regardless.
		client.Logout(cmd.Context())
		if err := cache.Clear(); err != nil {
			return fmt.Errorf("clear token cache: %w", err)
		}

		fmt.Fprintln(os.Stdout, "Logged out.")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the authenticated account",
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

		user, err := client.Me(cmd.Context())
		if err != nil {
			return fmt.Errorf("fetch account: %w", err)
		}
		// Renewal may have rotated the tokens.
		if err := cache.Save(store); err != nil {
			return fmt.Errorf("cache tokens: %w", err)
		}

		fmt.Fprintf(os.Stdout, "Email: %s\n", user.Email)
		if user.DisplayName != "" {
			fmt.Fprintf(os.Stdout, "Name: %s\n", user.DisplayName)
		}
		fmt.Fprintf(os.Stdout, "Role: %s\n", user.Role)
		fmt.Fprintf(os.Stdout, "Member since: %s\n", user.CreatedAt.Format("2006-01-02"))
		return nil
	},
}
