package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/abhisek/chatterbox/internal/config"
	"github.com/abhisek/chatterbox/internal/store"
)

// noDB disables the audit trail when passed as the database path.
const noDB = "-"

var rootCmd = &cobra.Command{
	Use:   "chatterbox",
	Short: "Safety gate for a speech-therapy word game",
	Long: "Chatterbox watches a child's answers and behaviour during a picture-card game, " +
		"escalates through GREEN/YELLOW/ORANGE/RED safety levels, and tells the game " +
		"what to say and which choices to offer.",
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to YAML config file")
	rootCmd.PersistentFlags().String("db", "", `Path to SQLite database file (overrides CHATTERBOX_DB; "-" disables)`)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(llmCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig reads --config and builds the logger from it.
func loadConfig(cmd *cobra.Command) (config.Config, *slog.Logger, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("load config: %w", err)
	}
	logger := config.NewLogger(cfg.Logging, os.Stderr)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

// resolveDBPath returns the database path using --db flag (highest priority),
// then the config file or CHATTERBOX_DB, then the default XDG path. The
// empty string means persistence is disabled.
func resolveDBPath(cmd *cobra.Command, cfg config.Config) (string, error) {
	p, _ := cmd.Flags().GetString("db")
	if p == "" {
		p = cfg.DB
	}
	switch p {
	case noDB:
		return "", nil
	case "":
		return store.DefaultDBPath()
	}
	return p, store.EnsureDir(p)
}

// openStore opens the audit trail, or returns nil when it is disabled.
func openStore(cmd *cobra.Command, cfg config.Config) (*store.Store, error) {
	dbPath, err := resolveDBPath(cmd, cfg)
	if err != nil {
		return nil, fmt.Errorf("resolve database path: %w", err)
	}
	if dbPath == "" {
		return nil, nil
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return st, nil
}
