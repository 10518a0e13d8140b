package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/apply-cli/internal/config"
	"github.com/sells-group/apply-cli/internal/resilience"
	"github.com/sells-group/apply-cli/internal/tracker"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "apply-cli",
	Short: "Chat-driven job application assistant",
	Long:  "Paste job posting URLs into a chat session. An LLM agent fills and submits the application through browser automation tools, and every attempt is tracked in a local history file.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if _, err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd)
	},
	SilenceUsage: true,
}

// openStore opens the history file named in the configuration.
func openStore() *tracker.Store {
	return tracker.Open(cfg.Tracker.HistoryFile, tracker.Options{
		PreventDuplicates: cfg.Tracker.PreventDuplicates,
		AutoSave:          cfg.Tracker.AutoSave,
	}, zap.L().Named("tracker"))
}

func retryConfig() resilience.RetryConfig {
	return resilience.FromRetryConfig(
		cfg.Retry.MaxAttempts,
		cfg.Retry.InitialDelaySecs,
		cfg.Retry.BackoffMultiplier,
		cfg.Retry.MaxDelaySecs,
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
