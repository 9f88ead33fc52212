package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"did_alerts/internal/cache"
	"did_alerts/internal/config"
	"did_alerts/internal/fetch"
	"did_alerts/internal/notifications"
	"did_alerts/internal/report"
	"did_alerts/internal/sheets"
	"did_alerts/internal/snapshot"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Source supplies client sheets.
type Source interface {
	SheetNames(ctx context.Context) ([]string, error)
	FetchRows(ctx context.Context, sheetName string) ([][]string, error)
}

// Publisher writes the report table back to the spreadsheet.
type Publisher interface {
	Publish(ctx context.Context, rows [][]string) error
}

type Notifier interface {
	NotifyReport(ctx context.Context, targetDay int, alerts []notifications.ClientAlert) error
	GetMetrics() (sent, failed, retries int64)
}

// Connector opens the spreadsheet. It is only called when live data is
// needed, so a fresh cache works without credentials. Publisher may be nil.
type Connector func(ctx context.Context) (Source, Publisher, error)

type Deps struct {
	Store    cache.Store
	Connect  Connector
	Notifier Notifier
	Clock    func() time.Time
}

type Runner struct {
	cfg          config.Config
	store        cache.Store
	connect      Connector
	notifier     Notifier
	orchestrator *fetch.Orchestrator
	exporter     *report.Exporter
	opts         report.Options
	clock        func() time.Time

	source    Source
	publisher Publisher
}

func NewRunner(cfg config.Config, deps Deps) *Runner {
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Runner{
		cfg:          cfg,
		store:        deps.Store,
		connect:      deps.Connect,
		notifier:     deps.Notifier,
		orchestrator: fetch.NewOrchestrator(deps.Store, cfg.Fetch.Delay),
		exporter:     report.NewExporter(cfg.Report),
		opts:         report.OptionsFromConfig(cfg),
		clock:        clock,
	}
}

func (r *Runner) Config() config.Config {
	return r.cfg
}

func (r *Runner) Now() time.Time {
	return r.clock()
}

// ConnectionError is a failure to reach the spreadsheet at all. The run
// cannot continue.
type ConnectionError struct {
	Err  error
	Hint string
}

func (e *ConnectionError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("spreadsheet connection failed: %v (%s)", e.Err, e.Hint)
	}
	return fmt.Sprintf("spreadsheet connection failed: %v", e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

func (r *Runner) ensureConnected(ctx context.Context) error {
	if r.source != nil {
		return nil
	}
	source, publisher, err := r.connect(ctx)
	if err != nil {
		return &ConnectionError{Err: err, Hint: sheets.Hint(err)}
	}
	r.source = source
	r.publisher = publisher
	return nil
}

// Load returns the snapshot to report on. A fresh cache is used as is.
// Otherwise sheets missing from the cache are fetched and the cache is
// rewritten; force ignores the cached sheets and fetches everything.
func (r *Runner) Load(ctx context.Context, force bool) (LoadResult, error) {
	fresh, last := r.store.IsFresh(ctx, r.cfg.Cache.Lifetime)
	if fresh && !force {
		snap := r.store.ReadAll(ctx)
		log.Info().
			Time("last_modified", last).
			Int("sheets", len(snap)).
			Msg("Cache hit, skipping spreadsheet")
		return LoadResult{
			Snapshot:     snap,
			Stats:        fetch.Stats{Cached: len(snap)},
			FromCache:    true,
			LastModified: last,
		}, nil
	}

	if err := r.ensureConnected(ctx); err != nil {
		return LoadResult{}, err
	}

	log.Info().
		Bool("forced", force).
		Time("last_modified", last).
		Msg("Cache stale or missing, refreshing from spreadsheet")

	names, err := r.source.SheetNames(ctx)
	if err != nil {
		if sheets.IsFatal(err) {
			return LoadResult{}, &ConnectionError{Err: err, Hint: sheets.Hint(err)}
		}
		return LoadResult{}, fmt.Errorf("failed to list sheets: %w", err)
	}

	existing := snapshot.New()
	if !force {
		existing = r.store.ReadAll(ctx)
	}
	snap, stats := r.orchestrator.Refresh(ctx, names, existing, r.source.FetchRows)
	return LoadResult{Snapshot: snap, Stats: stats, LastModified: r.clock()}, nil
}

type LoadResult struct {
	Snapshot     snapshot.Snapshot
	Stats        fetch.Stats
	FromCache    bool
	LastModified time.Time
}

// Summary is the operator-facing count of fetched, cached, failed and empty
// sheets, followed by the failed sheet names and any cache write failure.
func (l LoadResult) Summary() string {
	s := l.Stats
	var b strings.Builder
	fmt.Fprintf(&b, "%d sheets: %d fetched, %d cached, %d failed, %d empty",
		len(l.Snapshot), s.Fetched, s.Cached, s.Failed, s.Empty)
	if l.FromCache {
		b.WriteString(" (from cache)")
	}
	b.WriteString(".\n")
	if len(s.FailedSheets) > 0 {
		fmt.Fprintf(&b, "Failed: %s\n", strings.Join(s.FailedSheets, ", "))
	}
	if s.PersistErr != nil {
		fmt.Fprintf(&b, "Warning: cache not saved: %v\n", s.PersistErr)
	}
	return b.String()
}

type Result struct {
	RunID     string
	Day       int
	Load      LoadResult
	Summaries []report.Summary
	Matches   []report.MatchedRow
	Rendered  string
	Export    report.ExportResult
}

// Run produces the report for targetDay: validate the day, load the
// snapshot, aggregate, render, then export, notify and publish. Failures in
// the last three are logged and do not fail the run.
func (r *Runner) Run(ctx context.Context, targetDay int, force bool) (Result, error) {
	now := r.clock()
	result := Result{RunID: uuid.NewString(), Day: targetDay}
	logger := log.With().Str("run_id", result.RunID).Int("day", targetDay).Logger()

	if err := report.ValidateDay(targetDay, now); err != nil {
		return result, err
	}

	load, err := r.Load(ctx, force)
	if err != nil {
		return result, err
	}
	result.Load = load

	summaries, err := report.Aggregate(load.Snapshot, targetDay, now, r.opts)
	if err != nil {
		return result, err
	}
	result.Summaries = summaries
	result.Matches = report.Matches(load.Snapshot, targetDay, r.opts)
	result.Rendered = report.Render(summaries, targetDay, r.cfg.Report.Headers, r.opts.CurrencySymbol)

	export, err := r.exporter.WriteDay(report.TargetDate(targetDay, now), result.Matches, summaries)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to export CSV files")
	}
	result.Export = export

	if r.notifier != nil {
		if err := r.notifier.NotifyReport(ctx, targetDay, alerts(summaries)); err != nil {
			logger.Warn().Err(err).Msg("Failed to send notification")
		}
	}

	if r.cfg.Sheets.ReportSheet != "" {
		if err := r.publish(ctx, summaries); err != nil {
			logger.Warn().Err(err).Msg("Failed to publish report sheet")
		}
	}

	logger.Info().
		Int("clients", len(summaries)).
		Int("matches", len(result.Matches)).
		Bool("from_cache", load.FromCache).
		Int("fetched", load.Stats.Fetched).
		Int("cached", load.Stats.Cached).
		Int("failed", load.Stats.Failed).
		Int("empty", load.Stats.Empty).
		Msg("Report complete")
	return result, nil
}

func (r *Runner) publish(ctx context.Context, summaries []report.Summary) error {
	if err := r.ensureConnected(ctx); err != nil {
		return err
	}
	if r.publisher == nil {
		return errors.New("no report sheet publisher configured")
	}
	rows := [][]string{r.cfg.Report.Headers}
	for i, s := range summaries {
		rows = append(rows, s.Cells(i+1, r.opts.CurrencySymbol))
	}
	return r.publisher.Publish(ctx, rows)
}

func alerts(summaries []report.Summary) []notifications.ClientAlert {
	out := make([]notifications.ClientAlert, len(summaries))
	for i, s := range summaries {
		out[i] = notifications.ClientAlert{
			Client:       s.Client,
			Quantity:     s.Quantity,
			Total:        s.Total.StringFixed(2),
			DaysToTarget: s.DaysToTarget,
		}
	}
	return out
}

// CachedSnapshot reads whatever the cache holds without contacting the
// spreadsheet.
func (r *Runner) CachedSnapshot(ctx context.Context) (snapshot.Snapshot, time.Time) {
	_, last := r.store.IsFresh(ctx, r.cfg.Cache.Lifetime)
	return r.store.ReadAll(ctx), last
}

func (r *Runner) ExportClient(ctx context.Context, client string) (string, error) {
	snap, _ := r.CachedSnapshot(ctx)
	return r.exporter.ExportClient(snap, client, r.clock())
}

func (r *Runner) ClearCache(ctx context.Context) error {
	return r.store.Clear(ctx)
}

// LogMetrics reports notification counters at the end of a process.
func (r *Runner) LogMetrics() {
	if r.notifier == nil {
		return
	}
	sent, failed, retries := r.notifier.GetMetrics()
	log.Info().
		Int64("sent", sent).
		Int64("failed", failed).
		Int64("retries", retries).
		Msg("Notification metrics")
}

func (r *Runner) Close() error {
	return r.store.Close()
}
