package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/apply-cli/internal/tracker"
	"github.com/sells-group/apply-cli/pkg/notion"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Mirror tracked applications to external tools",
}

var syncNotionCmd = &cobra.Command{
	Use:   "notion",
	Short: "Upsert every tracked application into the Notion applications database",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if cfg.Notion.Token == "" || cfg.Notion.DatabaseID == "" {
			return eris.New("sync: notion token and database_id must be configured")
		}
		client := notion.NewClient(cfg.Notion.Token)
		return syncNotion(ctx, cmd.OutOrStdout(), client, cfg.Notion.DatabaseID, openStore())
	},
}

func syncNotion(ctx context.Context, out io.Writer, client notion.Client, dbID string, store *tracker.Store) error {
	log := zap.L().With(zap.String("database_id", dbID))

	res, err := notion.SyncApplications(ctx, client, dbID, store)
	// Page ids learned before a failure are kept.
	store.Save()
	if err != nil {
		log.Error("notion sync failed", zap.Int("created", res.Created), zap.Int("updated", res.Updated), zap.Error(err))
		return eris.Wrap(err, "sync: notion")
	}

	log.Info("notion sync complete", zap.Int("created", res.Created), zap.Int("updated", res.Updated))
	_, err = fmt.Fprintf(out, "Notion sync: %d created, %d updated\n", res.Created, res.Updated)
	return err
}

func init() {
	syncCmd.AddCommand(syncNotionCmd)
	rootCmd.AddCommand(syncCmd)
}
