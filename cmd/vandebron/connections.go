package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var connectionsCmd = &cobra.Command{
	Use:   "connections",
	Short: "List the account's metering connections",
	Long:  `Logs in and lists every metering connection under the account's shipping address.`,
	RunE:  runConnections,
}

func init() {
	rootCmd.AddCommand(connectionsCmd)
}

func runConnections(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	client, err := newClient(cfg)
	if err != nil {
		return err
	}

	ctx := context.Background()
	if err := client.Login(ctx); err != nil {
		return fmt.Errorf("logging in: %w", err)
	}

	conns, err := client.Connections(ctx)
	if err != nil {
		return fmt.Errorf("listing connections: %w", err)
	}

	if len(conns) == 0 {
		fmt.Println("No connections found")
		return nil
	}

	fmt.Printf("%-15s  %s\n", "Market", "Connection ID")
	fmt.Println("----------------------------------------")
	for _, conn := range conns {
		fmt.Printf("%-15s  %s\n", conn.MarketSegment, conn.ConnectionID)
	}

	return nil
}
