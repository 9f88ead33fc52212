package report

import (
	"strings"
	"time"

	"did_alerts/internal/snapshot"
)

// MatchedRow is a row that survived the day filter, tagged with its sheet.
type MatchedRow struct {
	Sheet string
	Row   []string
}

// FilterByDay returns the rows after the header whose date cell parses with
// layout and falls on targetDay of any month. Short rows and unparsable
// dates are skipped.
func FilterByDay(rows [][]string, targetDay, dateColumn int, layout string) [][]string {
	if len(rows) < 2 || dateColumn < 0 {
		return nil
	}

	var matched [][]string
	for _, row := range rows[1:] {
		if len(row) <= dateColumn {
			continue
		}
		date, err := time.Parse(layout, strings.TrimSpace(row[dateColumn]))
		if err != nil {
			continue
		}
		if date.Day() == targetDay {
			matched = append(matched, row)
		}
	}
	return matched
}

// Matches runs FilterByDay over every sheet in name order.
func Matches(snap snapshot.Snapshot, targetDay int, opts Options) []MatchedRow {
	var out []MatchedRow
	for _, name := range snap.Names() {
		rows := snap[name]
		cols := opts.resolve(rows)
		for _, row := range FilterByDay(rows, targetDay, cols.Date, opts.DateLayout) {
			out = append(out, MatchedRow{Sheet: name, Row: row})
		}
	}
	return out
}
