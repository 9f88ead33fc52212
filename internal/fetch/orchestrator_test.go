package fetch

import (
	"context"
	"errors"
	"testing"
	"time"

	"did_alerts/internal/snapshot"
)

type memoryStore struct {
	saved    snapshot.Snapshot
	writes   int
	writeErr error
}

func (m *memoryStore) IsFresh(ctx context.Context, lifetime time.Duration) (bool, time.Time) {
	return false, time.Time{}
}

func (m *memoryStore) ReadAll(ctx context.Context) snapshot.Snapshot {
	return m.saved.Clone()
}

func (m *memoryStore) WriteAll(ctx context.Context, snap snapshot.Snapshot) error {
	m.writes++
	if m.writeErr != nil {
		return m.writeErr
	}
	m.saved = snap.Clone()
	return nil
}

func (m *memoryStore) Clear(ctx context.Context) error {
	m.saved = nil
	return nil
}

func (m *memoryStore) Close() error { return nil }

type recorder struct {
	calls  []string
	rows   map[string][][]string
	errs   map[string]error
	sleeps int
}

func (r *recorder) fetch(ctx context.Context, name string) ([][]string, error) {
	r.calls = append(r.calls, name)
	if err := r.errs[name]; err != nil {
		return nil, err
	}
	return r.rows[name], nil
}

func newTestOrchestrator(store *memoryStore, rec *recorder) *Orchestrator {
	o := NewOrchestrator(store, 500*time.Millisecond)
	o.sleep = func(ctx context.Context, d time.Duration) { rec.sleeps++ }
	return o
}

func TestRefreshFetchesOnlyMissingSheets(t *testing.T) {
	store := &memoryStore{}
	rec := &recorder{rows: map[string][][]string{
		"Beta":  {{"h"}, {"b"}},
		"Gamma": {{"h"}, {"g"}},
	}}
	existing := snapshot.Snapshot{"Acme": {{"h"}, {"cached"}}}

	snap, stats := newTestOrchestrator(store, rec).Refresh(context.Background(), []string{"Acme", "Beta", "Gamma"}, existing, rec.fetch)

	if len(rec.calls) != 2 || rec.calls[0] != "Beta" || rec.calls[1] != "Gamma" {
		t.Errorf("Expected fetches for Beta and Gamma, got %v", rec.calls)
	}
	if stats.Cached != 1 || stats.Fetched != 2 || stats.Failed != 0 {
		t.Errorf("Unexpected stats %+v", stats)
	}
	if snap["Acme"][1][0] != "cached" {
		t.Error("Expected cached sheet to be kept as is")
	}
	if len(snap) != 3 {
		t.Errorf("Expected 3 sheets, got %d", len(snap))
	}
	if rec.sleeps != 2 {
		t.Errorf("Expected a delay after each of 2 live fetches, got %d", rec.sleeps)
	}
	if store.writes != 1 || len(store.saved) != 3 {
		t.Errorf("Expected one write of 3 sheets, got %d writes of %d sheets", store.writes, len(store.saved))
	}
}

func TestRefreshSkipsFailedSheet(t *testing.T) {
	store := &memoryStore{}
	rec := &recorder{
		rows: map[string][][]string{"Acme": {{"h"}, {"a"}}, "Gamma": {{"h"}, {"g"}}},
		errs: map[string]error{"Beta": errors.New("rate limited")},
	}

	snap, stats := newTestOrchestrator(store, rec).Refresh(context.Background(), []string{"Acme", "Beta", "Gamma"}, snapshot.New(), rec.fetch)

	if stats.Failed != 1 || stats.Fetched != 2 {
		t.Errorf("Unexpected stats %+v", stats)
	}
	if len(stats.FailedSheets) != 1 || stats.FailedSheets[0] != "Beta" {
		t.Errorf("Expected Beta recorded as failed, got %v", stats.FailedSheets)
	}
	if snap.Has("Beta") {
		t.Error("Expected failed sheet to be absent from the snapshot")
	}
	if rec.sleeps != 3 {
		t.Errorf("Expected a delay after failed fetches too, got %d", rec.sleeps)
	}
}

func TestRefreshEmptySheetNotInserted(t *testing.T) {
	store := &memoryStore{}
	rec := &recorder{rows: map[string][][]string{"Blank": {}}}

	snap, stats := newTestOrchestrator(store, rec).Refresh(context.Background(), []string{"Blank"}, snapshot.New(), rec.fetch)

	if snap.Has("Blank") {
		t.Error("Expected empty sheet not to be inserted")
	}
	if stats.Fetched != 1 || stats.Empty != 1 {
		t.Errorf("Unexpected stats %+v", stats)
	}
}

func TestRefreshPersistsEvenWithoutChanges(t *testing.T) {
	store := &memoryStore{}
	rec := &recorder{}
	existing := snapshot.Snapshot{"Acme": {{"h"}}}

	newTestOrchestrator(store, rec).Refresh(context.Background(), []string{"Acme"}, existing, rec.fetch)

	if store.writes != 1 {
		t.Errorf("Expected one write, got %d", store.writes)
	}
	if len(rec.calls) != 0 || rec.sleeps != 0 {
		t.Errorf("Expected no fetches or delays, got %d calls and %d sleeps", len(rec.calls), rec.sleeps)
	}
}

func TestRefreshWriteFailureIsNotFatal(t *testing.T) {
	store := &memoryStore{writeErr: errors.New("disk full")}
	rec := &recorder{rows: map[string][][]string{"Acme": {{"h"}, {"a"}}}}

	snap, stats := newTestOrchestrator(store, rec).Refresh(context.Background(), []string{"Acme"}, snapshot.New(), rec.fetch)

	if stats.PersistErr == nil {
		t.Error("Expected persistence error to be recorded")
	}
	if !snap.Has("Acme") {
		t.Error("Expected in-memory snapshot to remain usable")
	}
}

func TestRefreshDoesNotMutateExisting(t *testing.T) {
	store := &memoryStore{}
	rec := &recorder{rows: map[string][][]string{"Beta": {{"h"}}}}
	existing := snapshot.Snapshot{"Acme": {{"h"}}}

	newTestOrchestrator(store, rec).Refresh(context.Background(), []string{"Acme", "Beta"}, existing, rec.fetch)

	if existing.Has("Beta") {
		t.Error("Expected caller's snapshot to be left alone")
	}
}

func TestRefreshStopsOnCancel(t *testing.T) {
	store := &memoryStore{}
	rec := &recorder{rows: map[string][][]string{"Acme": {{"h"}}, "Beta": {{"h"}}}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, stats := newTestOrchestrator(store, rec).Refresh(ctx, []string{"Acme", "Beta"}, snapshot.New(), rec.fetch)

	if len(rec.calls) != 0 {
		t.Errorf("Expected no fetches after cancel, got %v", rec.calls)
	}
	if stats.Total() != 0 {
		t.Errorf("Expected no sheets counted, got %+v", stats)
	}
}
