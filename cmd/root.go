package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/agentic-research/pagefly/internal/compose"
	"github.com/agentic-research/pagefly/internal/config"
	"github.com/agentic-research/pagefly/internal/store"
	"github.com/spf13/cobra"
)

var (
	configPath string
	dbPath     string
	logLevel   string

	cfg    *config.Config
	logger *slog.Logger
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to HCL config file")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Path to the page database (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
}

var rootCmd = &cobra.Command{
	Use:           "pagefly",
	Short:         "pagefly: compose pages of markup, scripts and SQL from a SQLite store",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if dbPath != "" {
			c.Database = dbPath
		}
		if logLevel != "" {
			c.LogLevel = logLevel
		}
		cfg = c
		logger = config.NewLogger(cfg.LogLevel, cfg.LogFormat, os.Stderr)
		slog.SetDefault(logger)
		return nil
	},
}

// openStore opens the configured database. Callers close it.
func openStore(ctx context.Context) (*store.SQLiteStore, error) {
	s, err := store.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	logger.Debug("opened page store", "path", cfg.Database)
	return s, nil
}

func newEngine(s *store.SQLiteStore) *compose.Engine {
	return compose.New(s, compose.Options{
		Logger:           logger,
		QueryConcurrency: cfg.QueryConcurrency,
		Lint:             cfg.LintQueries,
		Templates:        cfg.Templates,
	})
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
