package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/apply-cli/internal/apply"
	"github.com/sells-group/apply-cli/internal/model"
	"github.com/sells-group/apply-cli/internal/tracker"
)

var (
	appsListStatus string
	appsExportOut  string
	appsMarkNote   string
)

var appsCmd = &cobra.Command{
	Use:   "apps",
	Short: "Inspect and manage tracked applications",
}

var appsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tracked applications",
	RunE: func(cmd *cobra.Command, args []string) error {
		return listApps(cmd.OutOrStdout(), openStore(), appsListStatus)
	},
}

var appsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one application with its error history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return showApp(cmd.OutOrStdout(), openStore(), args[0])
	},
}

var appsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show application counts per status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return apply.WriteStats(cmd.OutOrStdout(), openStore().Statistics())
	},
}

var appsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export applications to CSV or XLSX",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := appsExportOut
		if out == "" {
			out = cfg.Tracker.ExportFile
		}
		return exportApps(cmd.OutOrStdout(), openStore(), out)
	},
}

var appsMarkCmd = &cobra.Command{
	Use:   "mark <id> <status>",
	Short: "Set the status of an application by hand",
	Long:  "Set the status of an application, e.g. after finishing a CAPTCHA or a login step in the browser yourself. Valid statuses: " + statusList() + ".",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return markApp(cmd.OutOrStdout(), openStore(), args[0], args[1], appsMarkNote)
	},
}

func listApps(out io.Writer, store *tracker.Store, status string) error {
	if status == "" {
		return apply.WriteTable(out, store.List())
	}
	s, err := model.ParseStatus(strings.ToLower(status))
	if err != nil {
		return eris.Wrap(err, "apps: list")
	}
	return apply.WriteTable(out, store.ByStatus(s))
}

func showApp(out io.Writer, store *tracker.Store, id string) error {
	app, ok := store.Get(id)
	if !ok {
		return eris.Errorf("apps: no application with id %s", id)
	}
	return apply.WriteDetail(out, app)
}

func exportApps(out io.Writer, store *tracker.Store, path string) error {
	if err := store.ExportFile(path); err != nil {
		return eris.Wrap(err, "apps: export")
	}
	_, err := fmt.Fprintf(out, "Exported %d applications to %s\n", store.Len(), path)
	return err
}

func markApp(out io.Writer, store *tracker.Store, id, status, note string) error {
	s, err := model.ParseStatus(strings.ToLower(status))
	if err != nil {
		return eris.Wrap(err, "apps: mark")
	}
	app, ok := store.Get(id)
	if !ok {
		return eris.Errorf("apps: no application with id %s", id)
	}

	if note != "" {
		store.SetMetadata(id, "note", note)
	}
	store.UpdateStatus(id, s, nil)
	store.Save()

	_, err = fmt.Fprintf(out, "%s at %s: %s -> %s\n", app.Position, app.Company, app.Status.Label(), s.Label())
	return err
}

func statusList() string {
	names := make([]string, 0, len(model.Statuses()))
	for _, s := range model.Statuses() {
		names = append(names, string(s))
	}
	return strings.Join(names, ", ")
}

func init() {
	appsListCmd.Flags().StringVar(&appsListStatus, "status", "", "only list applications with this status")
	appsExportCmd.Flags().StringVar(&appsExportOut, "out", "", "output file, .csv or .xlsx (default from config)")
	appsMarkCmd.Flags().StringVar(&appsMarkNote, "note", "", "note stored in the application metadata")

	appsCmd.AddCommand(appsListCmd, appsShowCmd, appsStatsCmd, appsExportCmd, appsMarkCmd)
	rootCmd.AddCommand(appsCmd)
}
