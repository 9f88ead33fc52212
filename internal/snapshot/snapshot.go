// Package snapshot holds the in-memory copy of the spreadsheet: every client
// sheet mapped to its raw rows, header row first.
package snapshot

import (
	"sort"
	"strings"
)

type Snapshot map[string][][]string

func New() Snapshot {
	return make(Snapshot)
}

// Names returns the sheet names in sorted order.
func (s Snapshot) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s Snapshot) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// RowCount counts every row including headers.
func (s Snapshot) RowCount() int {
	total := 0
	for _, rows := range s {
		total += len(rows)
	}
	return total
}

// Clone deep-copies the snapshot so callers can mutate it freely.
func (s Snapshot) Clone() Snapshot {
	out := make(Snapshot, len(s))
	for name, rows := range s {
		copied := make([][]string, len(rows))
		for i, row := range rows {
			copied[i] = append([]string(nil), row...)
		}
		out[name] = copied
	}
	return out
}

// Lookup finds a sheet by exact name, falling back to a case-insensitive match.
func (s Snapshot) Lookup(name string) (string, [][]string, bool) {
	if rows, ok := s[name]; ok {
		return name, rows, true
	}
	for _, candidate := range s.Names() {
		if strings.EqualFold(candidate, name) {
			return candidate, s[candidate], true
		}
	}
	return "", nil, false
}
