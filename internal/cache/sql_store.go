package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"did_alerts/internal/columns"
	"did_alerts/internal/snapshot"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
)

const (
	metaTable     = "did_cache_meta"
	registryTable = "did_cache_sheets"

	rowColumn   = "_row"
	cellsColumn = "_cells"

	metaLastModified = "last_modified"
	metaRunID        = "run_id"
)

// SQLStore keeps one table per sheet. Each table has a typed-as-text column
// per header cell plus the raw row as JSON, so rows of any width round-trip
// exactly. A registry table maps sheet names to tables and records both the
// original and the canonical headers.
type SQLStore struct {
	db     *sql.DB
	driver string
	clock  func() time.Time
}

// OpenSQLStore opens driver ("sqlite3" or "pgx") at dsn and creates the
// bookkeeping tables.
func OpenSQLStore(ctx context.Context, driver, dsn string) (*SQLStore, error) {
	if driver == "sqlite3" {
		if err := ensureSQLiteDir(dsn); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if driver == "sqlite3" {
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	store := &SQLStore{db: db, driver: driver, clock: time.Now}
	if err := store.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare schema: %w", err)
	}
	return store, nil
}

func ensureSQLiteDir(dsn string) error {
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.Index(path, "?"); i >= 0 {
		path = path[:i]
	}
	if path == "" || path == ":memory:" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create database directory: %w", err)
	}
	return nil
}

func (s *SQLStore) ensureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`, metaTable)); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			sheet_name TEXT PRIMARY KEY,
			table_name TEXT NOT NULL UNIQUE,
			position INTEGER NOT NULL,
			headers TEXT NOT NULL,
			canonical TEXT NOT NULL,
			row_count INTEGER NOT NULL
		)`, registryTable))
	return err
}

// ph returns the n-th (1-based) bind placeholder for the driver.
func (s *SQLStore) ph(n int) string {
	if s.driver == "pgx" {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (s *SQLStore) lastModified(ctx context.Context) (time.Time, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT value FROM %s WHERE key = %s`, metaTable, s.ph(1)),
		metaLastModified,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return Never, nil
	}
	if err != nil {
		return Never, err
	}
	return time.Parse(time.RFC3339Nano, value)
}

func (s *SQLStore) IsFresh(ctx context.Context, lifetime time.Duration) (bool, time.Time) {
	last, err := s.lastModified(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to read cache timestamp")
		return false, Never
	}
	return fresh(last, s.clock(), lifetime), last
}

type registryEntry struct {
	sheet string
	table string
}

func (s *SQLStore) registry(ctx context.Context, q interface {
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
}) ([]registryEntry, error) {
	rows, err := q.QueryContext(ctx, fmt.Sprintf(
		`SELECT sheet_name, table_name FROM %s ORDER BY position`, registryTable))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []registryEntry
	for rows.Next() {
		var e registryEntry
		if err := rows.Scan(&e.sheet, &e.table); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *SQLStore) ReadAll(ctx context.Context) snapshot.Snapshot {
	snap, err := s.readAll(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to read cache tables, starting empty")
		return snapshot.New()
	}
	return snap
}

func (s *SQLStore) readAll(ctx context.Context) (snapshot.Snapshot, error) {
	entries, err := s.registry(ctx, s.db)
	if err != nil {
		return nil, err
	}

	snap := snapshot.New()
	for _, e := range entries {
		rows, err := s.readTable(ctx, e.table)
		if err != nil {
			return nil, fmt.Errorf("read table %s for sheet %s: %w", e.table, e.sheet, err)
		}
		snap[e.sheet] = rows
	}
	log.Debug().Int("sheets", len(snap)).Msg("Loaded cache tables")
	return snap, nil
}

func (s *SQLStore) readTable(ctx context.Context, table string) ([][]string, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT %s FROM %s ORDER BY %s`, cellsColumn, quoteIdent(table), rowColumn))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := [][]string{}
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var cells []string
		if err := json.Unmarshal([]byte(raw), &cells); err != nil {
			return nil, err
		}
		if cells == nil {
			cells = []string{}
		}
		out = append(out, cells)
	}
	return out, rows.Err()
}

// WriteAll replaces every cached table in a single transaction.
func (s *SQLStore) WriteAll(ctx context.Context, snap snapshot.Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin cache write: %w", err)
	}
	defer tx.Rollback()

	if err := s.dropAll(ctx, tx); err != nil {
		return err
	}

	names := snap.Names()
	reserved := []string{metaTable, registryTable}
	tables := columns.Dedupe(append(reserved, sanitizedTables(names)...))[len(reserved):]
	classifier := columns.NewClassifier(nil)

	for i, name := range names {
		if err := s.writeSheet(ctx, tx, classifier, i, name, tables[i], snap[name]); err != nil {
			return fmt.Errorf("write sheet %s: %w", name, err)
		}
	}

	now := s.clock().UTC()
	if err := s.setMeta(ctx, tx, metaLastModified, now.Format(time.RFC3339Nano)); err != nil {
		return err
	}
	if err := s.setMeta(ctx, tx, metaRunID, uuid.NewString()); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit cache write: %w", err)
	}
	log.Debug().Int("sheets", len(names)).Str("driver", s.driver).Msg("Saved cache tables")
	return nil
}

func sanitizedTables(names []string) []string {
	out := make([]string, len(names))
	for i, name := range names {
		out[i] = columns.SanitizeTable(name)
	}
	return out
}

func (s *SQLStore) writeSheet(ctx context.Context, tx *sql.Tx, classifier *columns.Classifier, position int, sheet, table string, rows [][]string) error {
	var header []string
	if len(rows) > 0 {
		header = rows[0]
	}

	cols := make([]string, len(header))
	for i, h := range header {
		cols[i] = columns.SanitizeColumn(h, i+1)
	}
	reserved := []string{rowColumn, cellsColumn}
	cols = columns.Dedupe(append(reserved, cols...))[len(reserved):]

	defs := []string{rowColumn + " INTEGER PRIMARY KEY", cellsColumn + " TEXT NOT NULL"}
	for _, c := range cols {
		defs = append(defs, quoteIdent(c)+" TEXT")
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`CREATE TABLE %s (%s)`,
		quoteIdent(table), strings.Join(defs, ", "))); err != nil {
		return fmt.Errorf("create table %s: %w", table, err)
	}

	names := []string{rowColumn, cellsColumn}
	for _, c := range cols {
		names = append(names, quoteIdent(c))
	}
	placeholders := make([]string, len(names))
	for i := range placeholders {
		placeholders[i] = s.ph(i + 1)
	}
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`,
		quoteIdent(table), strings.Join(names, ", "), strings.Join(placeholders, ", ")))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, row := range rows {
		raw, err := json.Marshal(row)
		if err != nil {
			return err
		}
		args := []any{i, string(raw)}
		for c := range cols {
			if c < len(row) {
				args = append(args, row[c])
			} else {
				args = append(args, nil)
			}
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("insert row %d: %w", i, err)
		}
	}

	headersJSON, err := json.Marshal(header)
	if err != nil {
		return err
	}
	canonicalJSON, err := json.Marshal(classifier.Standardize(header))
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, fmt.Sprintf(
		`INSERT INTO %s (sheet_name, table_name, position, headers, canonical, row_count) VALUES (%s, %s, %s, %s, %s, %s)`,
		registryTable, s.ph(1), s.ph(2), s.ph(3), s.ph(4), s.ph(5), s.ph(6)),
		sheet, table, position, string(headersJSON), string(canonicalJSON), len(rows))
	return err
}

func (s *SQLStore) setMeta(ctx context.Context, tx *sql.Tx, key, value string) error {
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE key = %s`, metaTable, s.ph(1)), key); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, fmt.Sprintf(`INSERT INTO %s (key, value) VALUES (%s, %s)`, metaTable, s.ph(1), s.ph(2)), key, value)
	return err
}

func (s *SQLStore) dropAll(ctx context.Context, tx *sql.Tx) error {
	entries, err := s.registry(ctx, tx)
	if err != nil {
		return fmt.Errorf("list cached tables: %w", err)
	}
	for _, e := range entries {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s`, quoteIdent(e.table))); err != nil {
			return fmt.Errorf("drop table %s: %w", e.table, err)
		}
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s`, registryTable)); err != nil {
		return err
	}
	return nil
}

func (s *SQLStore) Clear(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin cache clear: %w", err)
	}
	defer tx.Rollback()

	if err := s.dropAll(ctx, tx); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s`, metaTable)); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}
