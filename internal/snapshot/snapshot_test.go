package snapshot

import "testing"

func TestNamesSorted(t *testing.T) {
	snap := Snapshot{"Zeta": nil, "Acme": nil, "Beta": nil}
	names := snap.Names()
	expected := []string{"Acme", "Beta", "Zeta"}
	for i, name := range expected {
		if names[i] != name {
			t.Errorf("Expected %s at %d, got %s", name, i, names[i])
		}
	}
}

func TestCloneIsDeep(t *testing.T) {
	snap := Snapshot{"Acme": {{"DID", "Date"}, {"555", "5/03/2024"}}}
	clone := snap.Clone()
	clone["Acme"][1][0] = "changed"
	clone["Other"] = nil

	if snap["Acme"][1][0] != "555" {
		t.Errorf("Expected original cell untouched, got %s", snap["Acme"][1][0])
	}
	if snap.Has("Other") {
		t.Error("Expected original snapshot not to gain sheets")
	}
}

func TestRowCount(t *testing.T) {
	snap := Snapshot{"A": {{"h"}, {"1"}}, "B": {{"h"}}}
	if snap.RowCount() != 3 {
		t.Errorf("Expected 3 rows, got %d", snap.RowCount())
	}
}

func TestLookupCaseInsensitive(t *testing.T) {
	snap := Snapshot{"Acme Corp": {{"h"}}}
	name, rows, ok := snap.Lookup("acme corp")
	if !ok {
		t.Fatal("Expected lookup to succeed")
	}
	if name != "Acme Corp" || len(rows) != 1 {
		t.Errorf("Expected Acme Corp with 1 row, got %s with %d", name, len(rows))
	}
	if _, _, ok := snap.Lookup("missing"); ok {
		t.Error("Expected missing sheet lookup to fail")
	}
}
