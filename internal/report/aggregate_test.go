package report

import (
	"errors"
	"testing"
	"time"

	"did_alerts/internal/columns"
	"did_alerts/internal/config"
	"did_alerts/internal/snapshot"
)

func fixedOptions() Options {
	return Options{
		Columns:        Fixed{Date: 1, Price: 3},
		DateLayout:     "1/2/2006",
		CurrencySymbol: "$",
		DefaultStatus:  "Active",
	}
}

func TestAggregateSingleMatch(t *testing.T) {
	snap := snapshot.Snapshot{
		"Acme": {
			{"h1", "h2", "h3", "h4"},
			{"x", "03/18/2024", "y", "$10.00"},
			{"x", "03/19/2024", "y", "$5.00"},
		},
	}
	now := time.Date(2024, time.March, 10, 9, 0, 0, 0, time.UTC)

	records, err := Aggregate(snap, 18, now, fixedOptions())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(records))
	}
	r := records[0]
	if r.Client != "Acme" {
		t.Errorf("Expected client Acme, got %s", r.Client)
	}
	if r.Quantity != 1 {
		t.Errorf("Expected quantity 1, got %d", r.Quantity)
	}
	if r.Total.StringFixed(2) != "10.00" {
		t.Errorf("Expected total 10.00, got %s", r.Total.StringFixed(2))
	}
	if r.Rate.StringFixed(3) != "10.000" {
		t.Errorf("Expected rate 10.000, got %s", r.Rate.StringFixed(3))
	}
	if r.DaysToTarget != 8 {
		t.Errorf("Expected 8 days to target, got %d", r.DaysToTarget)
	}
	if r.Status != "Active" {
		t.Errorf("Expected status Active, got %s", r.Status)
	}
}

func TestAggregateUnparsablePriceStillCounts(t *testing.T) {
	snap := snapshot.Snapshot{
		"Beta": {
			{"h1", "h2", "h3", "h4"},
			{"x", "1/5/2024", "y", "$1,234.50"},
			{"x", "2/5/2024", "y", "abc"},
			{"x", "3/5/2024"},
		},
	}
	now := time.Date(2024, time.June, 20, 0, 0, 0, 0, time.UTC)

	records, err := Aggregate(snap, 5, now, fixedOptions())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	r := records[0]
	if r.Quantity != 3 {
		t.Errorf("Expected quantity 3, got %d", r.Quantity)
	}
	if r.Total.StringFixed(2) != "1234.50" {
		t.Errorf("Expected total 1234.50, got %s", r.Total.StringFixed(2))
	}
	if r.Rate.StringFixed(3) != "411.500" {
		t.Errorf("Expected rate 411.500, got %s", r.Rate.StringFixed(3))
	}
	if r.DaysToTarget != -15 {
		t.Errorf("Expected -15 days to target, got %d", r.DaysToTarget)
	}
}

func TestAggregateOmitsSheetsWithoutMatchesAndSorts(t *testing.T) {
	snap := snapshot.Snapshot{
		"Zeta":  {{"h", "h", "h", "h"}, {"x", "1/2/2024", "y", "3"}},
		"Empty": {{"h", "h", "h", "h"}, {"x", "1/3/2024", "y", "3"}},
		"Acme":  {{"h", "h", "h", "h"}, {"x", "1/2/2024", "y", "4"}},
	}
	now := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

	records, err := Aggregate(snap, 2, now, fixedOptions())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(records))
	}
	if records[0].Client != "Acme" || records[1].Client != "Zeta" {
		t.Errorf("Expected Acme then Zeta, got %s then %s", records[0].Client, records[1].Client)
	}
	for _, r := range records {
		if r.Quantity < 1 {
			t.Errorf("Expected quantity >= 1 for %s, got %d", r.Client, r.Quantity)
		}
	}
}

func TestAggregateInvalidDay(t *testing.T) {
	feb := time.Date(2023, time.February, 10, 0, 0, 0, 0, time.UTC)
	for _, day := range []int{0, 29, 30, 32} {
		_, err := Aggregate(snapshot.Snapshot{}, day, feb, fixedOptions())
		if !errors.Is(err, ErrInvalidTargetDay) {
			t.Errorf("Expected ErrInvalidTargetDay for day %d, got %v", day, err)
		}
	}

	leap := time.Date(2024, time.February, 10, 0, 0, 0, 0, time.UTC)
	if _, err := Aggregate(snapshot.Snapshot{}, 29, leap, fixedOptions()); err != nil {
		t.Errorf("Expected day 29 to be valid in a leap February, got %v", err)
	}
}

func TestAggregateKeywordColumns(t *testing.T) {
	snap := snapshot.Snapshot{
		"Gamma": {
			{"Vendor", "Monthly Cost", "DID Number", "Renewal Date"},
			{"Telco", "$2.50", "555", "7/21/2024"},
			{"Telco", "$3.50", "556", "7/21/2024"},
		},
		"NoHeader": {
			{"a", "b", "c", "d"},
			{"x", "8/21/2024", "y", "$1.00"},
		},
	}
	opts := fixedOptions()
	opts.Columns = Keyword{Classifier: columns.NewClassifier(nil), Fallback: Fixed{Date: 1, Price: 3}}
	now := time.Date(2024, time.July, 1, 0, 0, 0, 0, time.UTC)

	records, err := Aggregate(snap, 21, now, opts)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(records))
	}
	if records[0].Client != "Gamma" || records[0].Total.StringFixed(2) != "6.00" {
		t.Errorf("Expected Gamma total 6.00, got %s %s", records[0].Client, records[0].Total.StringFixed(2))
	}
	if records[1].Client != "NoHeader" || records[1].Total.StringFixed(2) != "1.00" {
		t.Errorf("Expected NoHeader total 1.00 via fallback, got %s %s", records[1].Client, records[1].Total.StringFixed(2))
	}
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.Default()
	if _, ok := OptionsFromConfig(cfg).Columns.(Fixed); !ok {
		t.Error("Expected fixed resolver by default")
	}
	cfg.Columns.Mode = config.ColumnModeKeyword
	if _, ok := OptionsFromConfig(cfg).Columns.(Keyword); !ok {
		t.Error("Expected keyword resolver in keyword mode")
	}
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		cell     string
		expected string
	}{
		{"$1,234.50", "1234.50"},
		{" $ 7 ", "7.00"},
		{"12", "12.00"},
		{"-3.25", "-3.25"},
		{"abc", "0.00"},
		{"", "0.00"},
	}
	for _, tt := range tests {
		if got := ParsePrice(tt.cell, "$").StringFixed(2); got != tt.expected {
			t.Errorf("ParsePrice(%q) = %s, expected %s", tt.cell, got, tt.expected)
		}
	}
}
