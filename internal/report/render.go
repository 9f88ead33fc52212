package report

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

const ruleWidth = 85

// Cells formats a summary the way it appears in the report, prefixed with its
// serial number.
func (s Summary) Cells(serial int, currencySymbol string) []string {
	return []string{
		strconv.Itoa(serial),
		s.Client,
		strconv.Itoa(s.Quantity),
		s.Rate.StringFixed(3),
		currencySymbol + s.Total.StringFixed(2),
		strconv.Itoa(s.DaysToTarget),
		s.Status,
	}
}

// Render lays records out as a fixed-width table. Each column is as wide as
// its longest cell or header plus two. Totals are prefixed with
// currencySymbol.
func Render(records []Summary, targetDay int, headers []string, currencySymbol string) string {
	var b strings.Builder
	if len(records) == 0 {
		fmt.Fprintf(&b, "No aggregated data found for day %d.\n", targetDay)
		return b.String()
	}

	rows := make([][]string, len(records))
	for i, r := range records {
		rows[i] = r.Cells(i+1, currencySymbol)
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = utf8.RuneCountInString(h)
	}
	for _, row := range rows {
		for i := range widths {
			if i < len(row) {
				widths[i] = max(widths[i], utf8.RuneCountInString(row[i]))
			}
		}
	}
	for i := range widths {
		widths[i] += 2
	}

	rule := strings.Repeat("-", ruleWidth)
	b.WriteString(strings.Repeat("=", ruleWidth) + "\n")
	fmt.Fprintf(&b, "DAILY TRANSACTION SUMMARY REPORT for Day %d\n", targetDay)
	b.WriteString(rule + "\n")
	b.WriteString(line(headers, widths) + "\n")
	b.WriteString(rule + "\n")
	for _, row := range rows {
		b.WriteString(line(row, widths) + "\n")
	}
	b.WriteString(rule + "\n")
	fmt.Fprintf(&b, "Total Unique Clients Reported: %d\n", len(rows))
	return b.String()
}

func line(cells []string, widths []int) string {
	var b strings.Builder
	for i, w := range widths {
		cell := ""
		if i < len(cells) {
			cell = cells[i]
		}
		b.WriteString(cell)
		if pad := w - utf8.RuneCountInString(cell); pad > 0 {
			b.WriteString(strings.Repeat(" ", pad))
		}
	}
	return b.String()
}
