package columns

import (
	"strings"
	"testing"
)

func TestClassify(t *testing.T) {
	c := NewClassifier(nil)
	tests := []struct {
		header   string
		expected string
	}{
		{"DID Number", DID},
		{"Activation Date", Date},
		{"1 & DID Plus", DIDPlus},
		{"Monthly Cost", Price},
		{"Rate", Price},
		{"Carrier", Vendor},
		{"Notes", ""},
		{"   ", ""},
	}

	for _, tt := range tests {
		if got := c.Classify(tt.header); got != tt.expected {
			t.Errorf("Classify(%q) = %q, expected %q", tt.header, got, tt.expected)
		}
	}
}

func TestStandardizeKeepsUnknownHeaders(t *testing.T) {
	c := NewClassifier(nil)
	got := c.Standardize([]string{"DID", "Date", "Notes", "Price"})
	expected := []string{DID, Date, "Notes", Price}
	for i := range expected {
		if got[i] != expected[i] {
			t.Errorf("Expected %s at %d, got %s", expected[i], i, got[i])
		}
	}
}

func TestIndex(t *testing.T) {
	c := NewClassifier(nil)
	headers := []string{"Number", "Vendor", "Start Date", "Amount"}
	if idx := c.Index(headers, Date); idx != 2 {
		t.Errorf("Expected date index 2, got %d", idx)
	}
	if idx := c.Index(headers, Price); idx != 3 {
		t.Errorf("Expected price index 3, got %d", idx)
	}
	if idx := c.Index(headers, DIDPlus); idx != -1 {
		t.Errorf("Expected -1 for missing column, got %d", idx)
	}
}

func TestCustomRules(t *testing.T) {
	c := NewClassifier([]Rule{{Name: "Client", Match: containsAny("customer")}})
	if got := c.Classify("Customer name"); got != "Client" {
		t.Errorf("Expected Client, got %q", got)
	}
	if got := c.Classify("DID"); got != "" {
		t.Errorf("Expected custom rules to replace defaults, got %q", got)
	}
}

func TestLooksLikeHeader(t *testing.T) {
	if !LooksLikeHeader([]string{"DID Number", "Date", "x"}) {
		t.Error("Expected header row to be detected")
	}
	if LooksLikeHeader([]string{"5551234", "5/03/2024", "$10.00"}) {
		t.Error("Expected data row not to be detected as header")
	}
}

func TestSanitizeColumn(t *testing.T) {
	tests := []struct {
		name     string
		expected string
	}{
		{"DID Number", "did_number"},
		{"1 & DID", "_1_did"},
		{"Price ($)", "price"},
		{"", "col_4"},
		{"_id", "_id"},
	}
	for _, tt := range tests {
		if got := SanitizeColumn(tt.name, 4); got != tt.expected {
			t.Errorf("SanitizeColumn(%q) = %q, expected %q", tt.name, got, tt.expected)
		}
	}
}

func TestSanitizeTable(t *testing.T) {
	tests := []struct {
		name     string
		expected string
	}{
		{"Acme Corp", "acme_corp"},
		{"  Acme -- Corp!! ", "acme_corp"},
		{"2024 Clients", "table_2024_clients"},
		{"!!!", "table"},
	}
	for _, tt := range tests {
		if got := SanitizeTable(tt.name); got != tt.expected {
			t.Errorf("SanitizeTable(%q) = %q, expected %q", tt.name, got, tt.expected)
		}
	}

	long := SanitizeTable(strings.Repeat("a", 100))
	if len(long) != MaxIdentifierLength {
		t.Errorf("Expected length %d, got %d", MaxIdentifierLength, len(long))
	}
}

func TestDedupe(t *testing.T) {
	got := Dedupe([]string{"price", "date", "price", "price"})
	expected := []string{"price", "date", "price_2", "price_3"}
	for i := range expected {
		if got[i] != expected[i] {
			t.Errorf("Expected %s at %d, got %s", expected[i], i, got[i])
		}
	}
}
