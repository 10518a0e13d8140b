package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/apply-cli/internal/agent"
	"github.com/sells-group/apply-cli/internal/apply"
	"github.com/sells-group/apply-cli/internal/browser"
	"github.com/sells-group/apply-cli/internal/profile"
	"github.com/sells-group/apply-cli/pkg/anthropic"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start the interactive application session (default)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd)
	},
}

func runChat(cmd *cobra.Command) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := zap.L()
	out := cmd.OutOrStdout()

	if cfg.Anthropic.Key == "" {
		return eris.New("chat: anthropic key is not configured (set APPLY_ANTHROPIC_KEY)")
	}

	prof, err := loadProfile(out, cfg.Profile.Path, log)
	if err != nil {
		return err
	}

	tools, err := browser.Connect(ctx,
		browser.CommandTransport(cfg.Browser.Command, cfg.Browser.Args...),
		browser.Options{CallTimeout: cfg.Browser.CallTimeout()},
		log.Named("browser"),
	)
	if err != nil {
		return eris.Wrap(err, "chat: start browser tools")
	}
	defer tools.Close() //nolint:errcheck

	llm := anthropic.NewClient(cfg.Anthropic.Key,
		anthropic.WithRequestsPerMinute(cfg.Anthropic.RequestsPerMinute))
	ag := agent.New(llm, tools, prof, agent.Config{
		Model:         cfg.Anthropic.Model,
		MaxTokens:     int64(cfg.Anthropic.MaxTokens),
		MaxSteps:      cfg.Agent.MaxSteps,
		MaxToolErrors: cfg.Agent.MaxToolErrors,
		Mode:          cfg.Agent.Mode,
	}, log.Named("agent"))

	session := apply.NewSession(openStore(), ag, apply.Config{
		Retry:       retryConfig(),
		TurnTimeout: cfg.Agent.TurnTimeout(),
		ExportPath:  cfg.Tracker.ExportFile,
	}, cmd.InOrStdin(), out, log.Named("apply"))

	err = session.Run(ctx)
	ag.Usage().LogCost(log, cfg.Anthropic.Model, "session")
	if errors.Is(err, context.Canceled) {
		_, _ = fmt.Fprintln(out, "\nInterrupted. Progress saved.")
		return nil
	}
	return err
}

// loadProfile reads the applicant profile and warns about missing fields.
func loadProfile(out io.Writer, path string, log *zap.Logger) (*profile.Profile, error) {
	prof, err := profile.Load(path)
	if err != nil {
		return nil, eris.Wrap(err, "chat: load profile")
	}
	if missing := prof.Validate(); len(missing) > 0 {
		log.Warn("applicant profile is incomplete", zap.String("path", path), zap.Strings("missing", missing))
		_, _ = fmt.Fprintf(out, "Warning: profile %s is missing %s.\n", path, strings.Join(missing, ", "))
	}
	return prof, nil
}

func init() {
	rootCmd.AddCommand(chatCmd)
}
