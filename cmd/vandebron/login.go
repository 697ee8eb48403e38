package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Verify portal credentials",
	Long: `Runs the portal login flow with the configured credentials and reports
the authenticated user identity. Useful to check credentials without
fetching any data.`,
	RunE: runLogin,
}

func init() {
	rootCmd.AddCommand(loginCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	client, err := newClient(cfg)
	if err != nil {
		return err
	}

	if err := client.Login(context.Background()); err != nil {
		return fmt.Errorf("logging in: %w", err)
	}

	user := client.User()
	fmt.Printf("✓ Logged in as user %s (organization %s)\n", user.UserID, user.OrgID)
	return nil
}
