package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"github.com/tendant/simple-events/pkg/simpleevents/config"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	// Load .env file if it exists (silently ignore if not found)
	_ = godotenv.Load()

	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func NewRootCommand() *cobra.Command {
	var verbose bool

	rootCmd := &cobra.Command{
		Use:   "eventsadmin",
		Short: "Simple Events Admin CLI",
		Long: `Simple Events Admin CLI

Operates directly on the datastore and blob store configured by the
environment (DATABASE_URL, STORAGE_URL, SIGNING_SECRET, ...). Configuration
can be loaded from a .env file in the current directory.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(NewMigrateCommand())
	rootCmd.AddCommand(NewStatsCommand())
	rootCmd.AddCommand(NewBannerURLCommand())
	rootCmd.AddCommand(NewDeleteEventCommand())

	return rootCmd
}

// loadConfig reads the environment and installs a logger for the command
func loadConfig(cmd *cobra.Command) (*config.ServerConfig, *slog.Logger, error) {
	cfg, err := config.Load(config.WithEnv())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	level := slog.LevelWarn
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
	}))
	slog.SetDefault(logger)

	return cfg, logger, nil
}

// buildRuntime builds the full service without metrics
func buildRuntime(ctx context.Context, cmd *cobra.Command) (*config.Runtime, error) {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	rt, err := cfg.Build(ctx, logger, nil)
	if err != nil {
		return nil, err
	}
	logger.Debug("runtime ready", "database_url", maskPassword(cfg.DatabaseURL), "storage_url", cfg.StorageURL)
	return rt, nil
}
