package report

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParsePrice reads a money cell such as "$1,234.50". Anything that does not
// parse counts as zero.
func ParsePrice(cell, currencySymbol string) decimal.Decimal {
	s := strings.TrimSpace(cell)
	if currencySymbol != "" {
		s = strings.ReplaceAll(s, currencySymbol, "")
	}
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
