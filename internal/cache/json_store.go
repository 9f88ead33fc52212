package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"did_alerts/internal/snapshot"

	"github.com/rs/zerolog/log"
)

// JSONStore keeps the snapshot in one JSON object of sheet name to rows. The
// file's modification time is the cache timestamp.
type JSONStore struct {
	path   string
	backup bool
	clock  func() time.Time
}

func NewJSONStore(path string, backup bool) *JSONStore {
	return &JSONStore{path: path, backup: backup, clock: time.Now}
}

func (s *JSONStore) Path() string {
	return s.path
}

func (s *JSONStore) IsFresh(ctx context.Context, lifetime time.Duration) (bool, time.Time) {
	info, err := os.Stat(s.path)
	if err != nil {
		return false, Never
	}
	last := info.ModTime()
	return fresh(last, s.clock(), lifetime), last
}

func (s *JSONStore) ReadAll(ctx context.Context) snapshot.Snapshot {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		log.Debug().Str("path", s.path).Msg("No cache file yet")
		return snapshot.New()
	}
	if err != nil {
		log.Warn().Err(err).Str("path", s.path).Msg("Failed to read cache file, starting empty")
		return snapshot.New()
	}

	snap := snapshot.New()
	if err := json.Unmarshal(data, &snap); err != nil {
		log.Warn().Err(err).Str("path", s.path).Msg("Cache file is corrupt, starting empty")
		return snapshot.New()
	}
	if snap == nil {
		snap = snapshot.New()
	}

	log.Debug().Str("path", s.path).Int("sheets", len(snap)).Msg("Loaded cache file")
	return snap
}

// WriteAll replaces the file through a temp file and rename, so readers see
// either the old or the new snapshot.
func (s *JSONStore) WriteAll(ctx context.Context, snap snapshot.Snapshot) error {
	if snap == nil {
		snap = snapshot.New()
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create cache directory %s: %w", dir, err)
	}

	if s.backup {
		if err := s.backupExisting(); err != nil {
			log.Warn().Err(err).Str("path", s.path).Msg("Failed to back up cache file")
		}
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode cache: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp cache file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp cache file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace cache file: %w", err)
	}

	log.Debug().Str("path", s.path).Int("sheets", len(snap)).Msg("Saved cache file")
	return nil
}

func (s *JSONStore) backupExisting() error {
	src, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer src.Close()

	name := fmt.Sprintf("%s.backup_%s", s.path, s.clock().Format("20060102_150405"))
	dst, err := os.Create(name)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	log.Info().Str("backup", name).Msg("Backed up cache file")
	return dst.Close()
}

func (s *JSONStore) Clear(ctx context.Context) error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove cache file: %w", err)
	}
	return nil
}

func (s *JSONStore) Close() error {
	return nil
}
