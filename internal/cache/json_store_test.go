package cache

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"did_alerts/internal/snapshot"
)

func TestJSONStore(t *testing.T) {
	exerciseStore(t, NewJSONStore(filepath.Join(t.TempDir(), "cache", "data.json"), false))
}

func TestJSONStoreCorruptFileReadsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	if err := os.WriteFile(path, []byte(`{"Acme": [["a", `), 0644); err != nil {
		t.Fatal(err)
	}

	store := NewJSONStore(path, false)
	if got := store.ReadAll(context.Background()); len(got) != 0 {
		t.Errorf("Expected empty snapshot for corrupt file, got %d sheets", len(got))
	}

	if err := os.WriteFile(path, []byte(`["not", "an", "object"]`), 0644); err != nil {
		t.Fatal(err)
	}
	if got := store.ReadAll(context.Background()); len(got) != 0 {
		t.Errorf("Expected empty snapshot for wrong shape, got %d sheets", len(got))
	}
}

func TestJSONStoreFreshnessUsesModTime(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	store := NewJSONStore(path, false)
	if err := store.WriteAll(context.Background(), sampleSnapshot()); err != nil {
		t.Fatal(err)
	}

	modTime := time.Date(2024, time.March, 1, 8, 0, 0, 0, time.UTC)
	if err := os.Chtimes(path, modTime, modTime); err != nil {
		t.Fatal(err)
	}

	store.clock = func() time.Time { return modTime.Add(24*time.Hour - time.Second) }
	ok, last := store.IsFresh(context.Background(), 24*time.Hour)
	if !ok {
		t.Error("Expected cache inside lifetime to be fresh")
	}
	if !last.Equal(modTime) {
		t.Errorf("Expected last modified %v, got %v", modTime, last)
	}

	store.clock = func() time.Time { return modTime.Add(24 * time.Hour) }
	if ok, _ := store.IsFresh(context.Background(), 24*time.Hour); ok {
		t.Error("Expected cache exactly at lifetime to be stale")
	}
}

func TestJSONStoreWritesPlainObject(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	store := NewJSONStore(path, false)
	if err := store.WriteAll(context.Background(), snapshot.Snapshot{"Acme": {{"DID"}, {"555"}}}); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	compact := strings.Join(strings.Fields(string(data)), "")
	if compact != `{"Acme":[["DID"],["555"]]}` {
		t.Errorf("Unexpected cache file content %s", compact)
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("Expected no temp files left behind, got %d entries", len(entries))
	}
}

func TestJSONStoreBackup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.json")
	store := NewJSONStore(path, true)
	store.clock = func() time.Time { return time.Date(2024, time.March, 1, 9, 30, 0, 0, time.UTC) }

	ctx := context.Background()
	if err := store.WriteAll(ctx, snapshot.Snapshot{"First": {{"h"}}}); err != nil {
		t.Fatal(err)
	}
	if err := store.WriteAll(ctx, snapshot.Snapshot{"Second": {{"h"}}}); err != nil {
		t.Fatal(err)
	}

	backup := path + ".backup_20240301_093000"
	data, err := os.ReadFile(backup)
	if err != nil {
		t.Fatalf("Expected backup file, got %v", err)
	}
	if !strings.Contains(string(data), "First") {
		t.Errorf("Expected backup to hold the previous snapshot, got %s", data)
	}
}

func TestJSONStoreClearMissingFile(t *testing.T) {
	store := NewJSONStore(filepath.Join(t.TempDir(), "absent.json"), false)
	if err := store.Clear(context.Background()); err != nil {
		t.Errorf("Expected no error clearing missing file, got %v", err)
	}
}
