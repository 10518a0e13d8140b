package tracker

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/sells-group/apply-cli/internal/model"
)

// ExportColumns is the fixed column set of tabular exports.
var ExportColumns = []string{"id", "company", "position", "url", "status", "created_at", "updated_at", "attempts"}

func exportRow(app *model.Application) []string {
	return []string{
		app.ID,
		app.Company,
		app.Position,
		app.URL,
		string(app.Status),
		formatTime(app.CreatedAt),
		formatTime(app.UpdatedAt),
		strconv.Itoa(app.Attempts),
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339Nano)
}

// ExportCSV writes a header row and one row per application to w. An empty
// store writes nothing at all, not even the header.
func (s *Store) ExportCSV(w io.Writer) error {
	if len(s.apps) == 0 {
		return nil
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(ExportColumns); err != nil {
		return eris.Wrap(err, "tracker: write csv header")
	}
	for _, id := range s.order {
		if err := cw.Write(exportRow(s.apps[id])); err != nil {
			return eris.Wrapf(err, "tracker: write csv row %s", id)
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "tracker: flush csv")
}

// ExportXLSX writes the same table as ExportCSV to a single-sheet workbook at
// path. An empty store leaves an empty file behind.
func (s *Store) ExportXLSX(path string) error {
	if len(s.apps) == 0 {
		return eris.Wrap(os.WriteFile(path, nil, 0o644), "tracker: create xlsx")
	}

	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Applications")
	if err != nil {
		return eris.Wrap(err, "tracker: add sheet")
	}

	header := sheet.AddRow()
	for _, col := range ExportColumns {
		header.AddCell().SetString(col)
	}
	for _, id := range s.order {
		app := s.apps[id]
		row := sheet.AddRow()
		for i, v := range exportRow(app) {
			if ExportColumns[i] == "attempts" {
				row.AddCell().SetInt(app.Attempts)
				continue
			}
			row.AddCell().SetString(v)
		}
	}

	if err := f.Save(path); err != nil {
		return eris.Wrap(err, "tracker: save xlsx")
	}
	return nil
}

// ExportFile writes the export to path, as XLSX for a .xlsx extension and CSV
// otherwise. Errors are logged and returned.
func (s *Store) ExportFile(path string) error {
	err := s.exportFile(path)
	if err != nil {
		s.log.Error("error exporting applications", zap.String("path", path), zap.Error(err))
		return err
	}
	s.log.Info("exported applications", zap.Int("count", len(s.apps)), zap.String("path", path))
	return nil
}

func (s *Store) exportFile(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return eris.Wrap(err, "tracker: create export dir")
		}
	}

	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return s.ExportXLSX(path)
	}

	f, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "tracker: create csv")
	}
	if err := s.ExportCSV(f); err != nil {
		f.Close() //nolint:errcheck
		return err
	}
	return eris.Wrap(f.Close(), "tracker: close csv")
}
