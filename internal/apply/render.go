package apply

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"text/tabwriter"
	"time"

	"github.com/sells-group/apply-cli/internal/model"
)

const maxCellLen = 40

// WriteTable prints one row per application.
func WriteTable(out io.Writer, apps []*model.Application) error {
	if len(apps) == 0 {
		_, err := fmt.Fprintln(out, "No applications tracked.")
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tCOMPANY\tPOSITION\tSTATUS\tATTEMPTS\tUPDATED\tLAST ERROR")
	_, _ = fmt.Fprintln(w, "--\t-------\t--------\t------\t--------\t-------\t----------")
	for _, app := range apps {
		lastErr := "-"
		if e, ok := app.LastError(); ok {
			lastErr = truncate(e.Error.Category+": "+e.Error.Message, maxCellLen)
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			app.ID,
			truncate(app.Company, maxCellLen),
			truncate(app.Position, maxCellLen),
			app.Status.Label(),
			app.Attempts,
			app.UpdatedAt.Local().Format(time.DateTime),
			lastErr,
		)
	}
	return w.Flush()
}

// WriteStats prints the total and the count per status, zero counts included.
func WriteStats(out io.Writer, stats model.Statistics) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Total\t%d\n", stats.Total)
	for _, s := range model.Statuses() {
		_, _ = fmt.Fprintf(w, "%s\t%d\n", s.Label(), stats.ByStatus[s])
	}
	return w.Flush()
}

// WriteDetail prints a single application with its error history.
func WriteDetail(out io.Writer, app *model.Application) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "ID\t%s\n", app.ID)
	_, _ = fmt.Fprintf(w, "URL\t%s\n", app.URL)
	_, _ = fmt.Fprintf(w, "Company\t%s\n", app.Company)
	_, _ = fmt.Fprintf(w, "Position\t%s\n", app.Position)
	_, _ = fmt.Fprintf(w, "Status\t%s\n", app.Status.Label())
	_, _ = fmt.Fprintf(w, "Attempts\t%d\n", app.Attempts)
	_, _ = fmt.Fprintf(w, "Created\t%s\n", app.CreatedAt.Local().Format(time.DateTime))
	_, _ = fmt.Fprintf(w, "Updated\t%s\n", app.UpdatedAt.Local().Format(time.DateTime))
	for _, k := range slices.Sorted(maps.Keys(app.Metadata)) {
		_, _ = fmt.Fprintf(w, "meta.%s\t%v\n", k, app.Metadata[k])
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if len(app.Errors) == 0 {
		return nil
	}
	_, _ = fmt.Fprintln(out, "\nErrors:")
	for _, e := range app.Errors {
		manual := ""
		if e.Error.RequiresManualIntervention {
			manual = " (manual)"
		}
		_, _ = fmt.Fprintf(out, "  %s  [%s]%s %s\n",
			e.Timestamp.Local().Format(time.DateTime), e.Error.Category, manual, e.Error.Message)
	}
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
