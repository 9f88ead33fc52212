package report

import "did_alerts/internal/columns"

// Columns are the positions of the date and price cells in a sheet.
type Columns struct {
	Date  int
	Price int
}

// ColumnResolver decides where the date and price cells live for a sheet,
// given its header row.
type ColumnResolver interface {
	Resolve(header []string) Columns
}

// Fixed ignores the header and always uses the configured positions.
type Fixed Columns

func (f Fixed) Resolve([]string) Columns {
	return Columns(f)
}

// Keyword looks the columns up by header text, falling back to the fixed
// positions for anything the classifier does not find.
type Keyword struct {
	Classifier *columns.Classifier
	Fallback   Fixed
}

func (k Keyword) Resolve(header []string) Columns {
	cols := Columns(k.Fallback)
	if k.Classifier == nil || !columns.LooksLikeHeader(header) {
		return cols
	}
	if idx := k.Classifier.Index(header, columns.Date); idx >= 0 {
		cols.Date = idx
	}
	if idx := k.Classifier.Index(header, columns.Price); idx >= 0 {
		cols.Price = idx
	}
	return cols
}
