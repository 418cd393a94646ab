// Package cmd provides the indexer CLI commands.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/quoteindex/quoteindex/pkg/config"
	"github.com/quoteindex/quoteindex/pkg/logger"
)

// globals holds state shared by every subcommand once the root pre-run has
// loaded configuration.
type globals struct {
	configPath string
	source     string
	cfg        *config.Config
}

// NewRootCmd creates the root command for the indexer CLI.
func NewRootCmd() *cobra.Command {
	g := &globals{}

	cmd := &cobra.Command{
		Use:   "indexer",
		Short: "Build and maintain the quote word index",
		Long: `indexer turns a corpus of quote documents into the inverted index and
word-ID snapshots the query server loads.

The corpus lives either in a local directory or in an S3 bucket. Use
--source to override the configured backend for a single run.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return g.load()
		},
	}

	cmd.PersistentFlags().StringVar(&g.configPath, "config", "", "Path to a YAML config file")
	cmd.PersistentFlags().StringVar(&g.source, "source", "", "Storage backend: local or s3 (overrides config)")

	cmd.AddCommand(newBuildCmd(g))
	cmd.AddCommand(newWatchCmd(g))
	cmd.AddCommand(newSplitCmd(g))
	cmd.AddCommand(newUploadCmd(g))

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

func (g *globals) load() error {
	_ = godotenv.Load()

	// Routed through the environment so config.Load validates the final mode.
	if g.source != "" {
		if err := os.Setenv("QI_STORAGE_MODE", g.source); err != nil {
			return fmt.Errorf("applying --source: %w", err)
		}
	}
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	g.cfg = cfg
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Debug("configuration loaded", "storage_mode", cfg.Storage.Mode, "config", g.configPath)
	return nil
}
