// Package cache persists the spreadsheet snapshot between runs.
package cache

import (
	"context"
	"fmt"
	"time"

	"did_alerts/internal/config"
	"did_alerts/internal/snapshot"
)

// Never is the last-modified time reported when nothing has been cached.
var Never = time.Time{}

// Store is a whole-snapshot cache. Reads never fail: a missing or unreadable
// cache reads as an empty snapshot.
type Store interface {
	IsFresh(ctx context.Context, lifetime time.Duration) (bool, time.Time)
	ReadAll(ctx context.Context) snapshot.Snapshot
	WriteAll(ctx context.Context, snap snapshot.Snapshot) error
	Clear(ctx context.Context) error
	Close() error
}

// New opens the backend selected by cfg.Cache.Backend.
func New(ctx context.Context, cfg config.Config) (Store, error) {
	switch cfg.Cache.Backend {
	case config.BackendJSON:
		return NewJSONStore(cfg.CachePath(), cfg.Cache.Backup), nil
	case config.BackendSQL:
		return OpenSQLStore(ctx, cfg.Cache.SQLDriver, cfg.Cache.SQLDSN)
	case config.BackendRedis:
		return NewRedisStore(ctx, RedisOptions{
			Addr:      cfg.Cache.RedisAddr,
			Password:  cfg.Cache.RedisPassword,
			DB:        cfg.Cache.RedisDB,
			KeyPrefix: cfg.Cache.RedisKeyPrefix,
		})
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
	}
}

// fresh is strict: an entry exactly lifetime old is stale.
func fresh(lastModified, now time.Time, lifetime time.Duration) bool {
	if lastModified.IsZero() {
		return false
	}
	return now.Sub(lastModified) < lifetime
}

// Status buckets a cache age the way the interactive menu shows it.
type Status string

const (
	StatusEmpty    Status = "EMPTY"
	StatusFresh    Status = "FRESH"
	StatusStale    Status = "STALE"
	StatusOutdated Status = "OUTDATED"
)

func StatusFor(lastModified, now time.Time) Status {
	if lastModified.IsZero() {
		return StatusEmpty
	}
	age := now.Sub(lastModified)
	switch {
	case age < 30*time.Minute:
		return StatusFresh
	case age < 24*time.Hour:
		return StatusStale
	default:
		return StatusOutdated
	}
}
