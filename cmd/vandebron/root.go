package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jgoulah/vandebron/internal/config"
	"github.com/jgoulah/vandebron/internal/database"
	"github.com/jgoulah/vandebron/internal/vandebron"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	dbPath  string
)

var rootCmd = &cobra.Command{
	Use:   "vandebron",
	Short: "Fetch electricity usage data from the Vandebron portal",
	Long: `Vandebron is a CLI tool to collect electricity usage data from the
Vandebron customer portal. It logs in through the portal's OpenID Connect
flow, fetches per-connection usage, stores it in a local SQLite database,
and republishes it as JSON or time-series points.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database file (default is ./data.db)")
}

// getConfigPath returns the config file path
func getConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.DefaultConfigPath()
}

// getDBPath returns the database file path (local directory)
func getDBPath() string {
	if dbPath != "" {
		return dbPath
	}
	return "data.db"
}

// loadConfig loads the configuration file
func loadConfig() (*config.Config, error) {
	return config.Load(getConfigPath())
}

// openDB opens the database connection
func openDB() (*database.DB, error) {
	path := getDBPath()

	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	return database.New(path)
}

// newClient builds a portal client from the configured credentials
func newClient(cfg *config.Config) (*vandebron.Client, error) {
	if cfg.Username == "" || cfg.Password == "" {
		return nil, fmt.Errorf("no credentials configured: add username/password to %s", getConfigPath())
	}
	return vandebron.NewClient(cfg.Username, cfg.Password)
}
