// Package cmd defines the CLI commands for the rpv-crawler executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/andrelmbackes/rpv-crawler/internal/config"
	"github.com/andrelmbackes/rpv-crawler/internal/logging"
)

var cfgFile string

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rpv-crawler",
		Short: "Extracts RPV publications from the São Paulo court gazette",
		Long: `rpv-crawler searches the electronic gazette (DJE) for small-claim
payment-order publications over a date range, extracts structured case data
from the raw text, enriches each case against the public case portal, and
persists the consolidated records. Interrupted runs resume from a progress
snapshot on disk.`,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default uses built-in defaults and RPV_* env vars)")

	cmd.AddCommand(newCrawlCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "command failed: %v\n", err)
		os.Exit(1)
	}
}

// setupLogger builds and installs the process logger from config.
func setupLogger(cfg config.Config) (*zap.Logger, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}
