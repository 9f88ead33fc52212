// Package fetch fills the snapshot from the spreadsheet, fetching only the
// sheets the cache does not already hold.
package fetch

import (
	"context"
	"time"

	"did_alerts/internal/cache"
	"did_alerts/internal/snapshot"

	"github.com/rs/zerolog/log"
)

// FetchFunc reads all rows of one sheet.
type FetchFunc func(ctx context.Context, sheetName string) ([][]string, error)

type Stats struct {
	Fetched      int
	Cached       int
	Failed       int
	Empty        int
	FailedSheets []string
	PersistErr   error
}

func (s Stats) Total() int {
	return s.Fetched + s.Cached + s.Failed
}

type Orchestrator struct {
	store cache.Store
	delay time.Duration
	sleep func(ctx context.Context, d time.Duration)
}

func NewOrchestrator(store cache.Store, delay time.Duration) *Orchestrator {
	return &Orchestrator{store: store, delay: delay, sleep: sleepContext}
}

// Refresh walks names in order. Sheets already in existing are kept as they
// are; the rest are fetched, with the configured delay after every live
// call. A failed sheet is counted and skipped. The merged snapshot is
// written to the store once at the end; a write failure is recorded in
// Stats and the snapshot is still returned.
func (o *Orchestrator) Refresh(ctx context.Context, names []string, existing snapshot.Snapshot, fetch FetchFunc) (snapshot.Snapshot, Stats) {
	snap := existing.Clone()
	var stats Stats

	for i, name := range names {
		if snap.Has(name) {
			stats.Cached++
			log.Debug().Str("sheet", name).Int("rows", len(snap[name])).Msg("Loaded sheet from cache")
			continue
		}

		if err := ctx.Err(); err != nil {
			log.Warn().Err(err).Int("remaining", len(names)-i).Msg("Fetch cancelled")
			break
		}

		rows, err := fetch(ctx, name)
		switch {
		case err != nil:
			stats.Failed++
			stats.FailedSheets = append(stats.FailedSheets, name)
			log.Error().Err(err).Str("sheet", name).Msg("Failed to fetch sheet")
		case len(rows) == 0:
			stats.Fetched++
			stats.Empty++
			log.Info().Str("sheet", name).Msg("Sheet is empty")
		default:
			snap[name] = rows
			stats.Fetched++
			log.Info().Str("sheet", name).Int("rows", len(rows)).Msg("Fetched sheet")
		}

		o.sleep(ctx, o.delay)
	}

	if err := o.store.WriteAll(ctx, snap); err != nil {
		stats.PersistErr = err
		log.Warn().Err(err).Msg("Failed to save cache, continuing with in-memory data")
	}

	log.Info().
		Int("fetched", stats.Fetched).
		Int("cached", stats.Cached).
		Int("failed", stats.Failed).
		Int("empty", stats.Empty).
		Int("sheets", len(snap)).
		Msg("Refresh complete")
	return snap, stats
}

func sleepContext(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
