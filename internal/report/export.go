package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"did_alerts/internal/columns"
	"did_alerts/internal/config"
	"did_alerts/internal/snapshot"

	"github.com/rs/zerolog/log"
)

// Exporter writes the CSV side of a report.
type Exporter struct {
	Dir            string
	Headers        []string
	ClientColumns  []int
	SummaryHeaders []string
}

func NewExporter(cfg config.ReportConfig) *Exporter {
	return &Exporter{
		Dir:            cfg.ExportDir,
		Headers:        cfg.ExportHeaders,
		ClientColumns:  cfg.ClientColumns,
		SummaryHeaders: cfg.Headers,
	}
}

type ExportResult struct {
	Dir   string
	Files []string
}

// TargetDate is targetDay in the month of now.
func TargetDate(targetDay int, now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), targetDay, 0, 0, 0, 0, now.Location())
}

// WriteDay writes per-client match files, a combined match file and the
// summary into <Dir>/<YYYY-MM-DD>.
func (e *Exporter) WriteDay(targetDate time.Time, matches []MatchedRow, summaries []Summary) (ExportResult, error) {
	day := targetDate.Day()
	dir := filepath.Join(e.Dir, targetDate.Format("2006-01-02"))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return ExportResult{}, fmt.Errorf("create export directory %s: %w", dir, err)
	}
	result := ExportResult{Dir: dir}

	bySheet := make(map[string][][]string)
	var order []string
	width := 0
	for _, m := range matches {
		if _, ok := bySheet[m.Sheet]; !ok {
			order = append(order, m.Sheet)
		}
		bySheet[m.Sheet] = append(bySheet[m.Sheet], m.Row)
		width = max(width, len(m.Row))
	}

	for _, sheet := range order {
		header := make([]string, len(e.ClientColumns))
		for i, idx := range e.ClientColumns {
			header[i] = e.header(idx)
		}
		var records [][]string
		for _, row := range bySheet[sheet] {
			records = append(records, pick(row, e.ClientColumns))
		}
		path := filepath.Join(dir, fmt.Sprintf("%s_matches_day_%d.csv", fileSafe(sheet), day))
		if err := writeCSV(path, header, records); err != nil {
			return result, err
		}
		result.Files = append(result.Files, path)
	}

	if len(matches) > 0 {
		header := []string{"Sheet"}
		for i := 0; i < width; i++ {
			header = append(header, e.header(i))
		}
		records := make([][]string, len(matches))
		for i, m := range matches {
			records[i] = append([]string{m.Sheet}, m.Row...)
		}
		path := filepath.Join(dir, fmt.Sprintf("all_matches_day_%d.csv", day))
		if err := writeCSV(path, header, records); err != nil {
			return result, err
		}
		result.Files = append(result.Files, path)
	}

	records := make([][]string, len(summaries))
	for i, s := range summaries {
		records[i] = s.Cells(i+1, "")
	}
	path := filepath.Join(dir, fmt.Sprintf("summary_day_%d.csv", day))
	if err := writeCSV(path, e.SummaryHeaders, records); err != nil {
		return result, err
	}
	result.Files = append(result.Files, path)

	log.Info().
		Str("dir", dir).
		Int("files", len(result.Files)).
		Int("matches", len(matches)).
		Msg("Exported day report")
	return result, nil
}

// ExportClient dumps one client's whole sheet, header included, to
// export_<table>_<timestamp>.csv in Dir.
func (e *Exporter) ExportClient(snap snapshot.Snapshot, client string, now time.Time) (string, error) {
	name, rows, ok := snap.Lookup(client)
	if !ok {
		return "", fmt.Errorf("client %q not found in cache", client)
	}
	if err := os.MkdirAll(e.Dir, 0755); err != nil {
		return "", fmt.Errorf("create export directory %s: %w", e.Dir, err)
	}

	var header []string
	var records [][]string
	if len(rows) > 0 {
		header, records = rows[0], rows[1:]
	}
	path := filepath.Join(e.Dir, fmt.Sprintf("export_%s_%s.csv", columns.SanitizeTable(name), now.Format("20060102_150405")))
	if err := writeCSV(path, header, records); err != nil {
		return "", err
	}
	log.Info().Str("client", name).Str("path", path).Int("rows", len(records)).Msg("Exported client")
	return path, nil
}

func (e *Exporter) header(idx int) string {
	if idx >= 0 && idx < len(e.Headers) {
		return e.Headers[idx]
	}
	return fmt.Sprintf("Column %d", idx+1)
}

func pick(row []string, indices []int) []string {
	out := make([]string, len(indices))
	for i, idx := range indices {
		if idx >= 0 && idx < len(row) {
			out[i] = row[idx]
		}
	}
	return out
}

func fileSafe(name string) string {
	return strings.NewReplacer("/", "_", "\\", "_").Replace(name)
}

func writeCSV(path string, header []string, records [][]string) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, closeErr)
		}
	}()

	writer := csv.NewWriter(file)
	if len(header) > 0 {
		if err := writer.Write(header); err != nil {
			return fmt.Errorf("write header %s: %w", path, err)
		}
	}
	if err := writer.WriteAll(records); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
