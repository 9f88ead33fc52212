package report

import (
	"errors"
	"fmt"
	"time"

	"did_alerts/internal/columns"
	"did_alerts/internal/config"
	"did_alerts/internal/snapshot"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// ErrInvalidTargetDay is returned when the target day does not exist in the
// current month.
var ErrInvalidTargetDay = errors.New("invalid target day")

// Summary is one client's line in the report.
type Summary struct {
	Client       string
	Quantity     int
	Rate         decimal.Decimal
	Total        decimal.Decimal
	DaysToTarget int
	Status       string
}

type Options struct {
	Columns        ColumnResolver
	DateLayout     string
	CurrencySymbol string
	DefaultStatus  string
}

func OptionsFromConfig(cfg config.Config) Options {
	fixed := Fixed{Date: cfg.Columns.DateIndex, Price: cfg.Columns.PriceIndex}
	var resolver ColumnResolver = fixed
	if cfg.Columns.Mode == config.ColumnModeKeyword {
		resolver = Keyword{Classifier: columns.NewClassifier(nil), Fallback: fixed}
	}
	return Options{
		Columns:        resolver,
		DateLayout:     cfg.Columns.DateLayout,
		CurrencySymbol: cfg.Columns.CurrencySymbol,
		DefaultStatus:  cfg.Report.DefaultStatus,
	}
}

func (o Options) resolve(rows [][]string) Columns {
	var header []string
	if len(rows) > 0 {
		header = rows[0]
	}
	if o.Columns == nil {
		return Columns{Date: 1, Price: 3}
	}
	return o.Columns.Resolve(header)
}

// ValidateDay checks that targetDay exists in the month of now.
func ValidateDay(targetDay int, now time.Time) error {
	last := daysInMonth(now)
	if targetDay < 1 || targetDay > last {
		return fmt.Errorf("%w: %d (%s %d has %d days)", ErrInvalidTargetDay, targetDay, now.Month(), now.Year(), last)
	}
	return nil
}

// DaysToTarget is the signed number of days from today to targetDay of the
// current month.
func DaysToTarget(targetDay int, now time.Time) (int, error) {
	if err := ValidateDay(targetDay, now); err != nil {
		return 0, err
	}
	return targetDay - now.Day(), nil
}

func daysInMonth(t time.Time) int {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Aggregate builds one Summary per sheet with at least one row on targetDay,
// ordered by sheet name.
func Aggregate(snap snapshot.Snapshot, targetDay int, now time.Time, opts Options) ([]Summary, error) {
	days, err := DaysToTarget(targetDay, now)
	if err != nil {
		return nil, err
	}

	var out []Summary
	for _, name := range snap.Names() {
		rows := snap[name]
		cols := opts.resolve(rows)
		matched := FilterByDay(rows, targetDay, cols.Date, opts.DateLayout)
		if len(matched) == 0 {
			continue
		}

		total := decimal.Zero
		for _, row := range matched {
			if cols.Price < 0 || cols.Price >= len(row) {
				continue
			}
			total = total.Add(ParsePrice(row[cols.Price], opts.CurrencySymbol))
		}

		qty := len(matched)
		out = append(out, Summary{
			Client:       name,
			Quantity:     qty,
			Rate:         total.Div(decimal.NewFromInt(int64(qty))),
			Total:        total,
			DaysToTarget: days,
			Status:       opts.DefaultStatus,
		})

		log.Debug().
			Str("sheet", name).
			Int("matches", qty).
			Str("total", total.StringFixed(2)).
			Msg("Aggregated sheet")
	}
	return out, nil
}
