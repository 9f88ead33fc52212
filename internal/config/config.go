package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

const (
	BackendJSON  = "json"
	BackendSQL   = "sql"
	BackendRedis = "redis"

	ColumnModeFixed   = "fixed"
	ColumnModeKeyword = "keyword"
)

// Config is built once at startup and passed by value to every component.
type Config struct {
	Sheets  SheetsConfig  `yaml:"sheets" json:"sheets"`
	Cache   CacheConfig   `yaml:"cache" json:"cache"`
	Columns ColumnsConfig `yaml:"columns" json:"columns"`
	Fetch   FetchConfig   `yaml:"fetch" json:"fetch"`
	Report  ReportConfig  `yaml:"report" json:"report"`
	Notify  NotifyConfig  `yaml:"notify" json:"notify"`
}

type SheetsConfig struct {
	SpreadsheetID   string `yaml:"spreadsheet_id" json:"spreadsheet_id"`
	CredentialsFile string `yaml:"credentials_file" json:"credentials_file"`
	// ReportSheet, when set, receives the rendered summary and is never
	// treated as a client sheet.
	ReportSheet string `yaml:"report_sheet" json:"report_sheet"`
}

type CacheConfig struct {
	Backend  string        `yaml:"backend" json:"backend"`
	Dir      string        `yaml:"dir" json:"dir"`
	File     string        `yaml:"file" json:"file"`
	Lifetime time.Duration `yaml:"lifetime" json:"lifetime"`
	Backup   bool          `yaml:"backup" json:"backup"`

	SQLDriver string `yaml:"sql_driver" json:"sql_driver"`
	SQLDSN    string `yaml:"sql_dsn" json:"sql_dsn"`

	RedisAddr      string `yaml:"redis_addr" json:"redis_addr"`
	RedisPassword  string `yaml:"redis_password" json:"redis_password"`
	RedisDB        int    `yaml:"redis_db" json:"redis_db"`
	RedisKeyPrefix string `yaml:"redis_key_prefix" json:"redis_key_prefix"`
}

type ColumnsConfig struct {
	DateIndex      int    `yaml:"date_index" json:"date_index"`
	PriceIndex     int    `yaml:"price_index" json:"price_index"`
	DateLayout     string `yaml:"date_layout" json:"date_layout"`
	Mode           string `yaml:"mode" json:"mode"`
	CurrencySymbol string `yaml:"currency_symbol" json:"currency_symbol"`
}

type FetchConfig struct {
	Delay time.Duration `yaml:"delay" json:"delay"`
}

type ReportConfig struct {
	DefaultStatus string   `yaml:"default_status" json:"default_status"`
	Headers       []string `yaml:"headers" json:"headers"`
	ExportDir     string   `yaml:"export_dir" json:"export_dir"`
	// ExportHeaders names sheet columns by position for CSV exports.
	ExportHeaders []string `yaml:"export_headers" json:"export_headers"`
	// ClientColumns is the subset of positions written to per-client CSVs.
	ClientColumns []int `yaml:"client_columns" json:"client_columns"`
}

type NotifyConfig struct {
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	URL      string `yaml:"url" json:"url"`
	Topic    string `yaml:"topic" json:"topic"`
	Priority string `yaml:"priority" json:"priority"`
}

// Default mirrors the layout of the DID spreadsheet: DID number, date,
// "1 & DID", price, vendor.
func Default() Config {
	return Config{
		Sheets: SheetsConfig{
			CredentialsFile: "service_account_key.json",
		},
		Cache: CacheConfig{
			Backend:        BackendJSON,
			Dir:            "cache",
			File:           "spreadsheet_data_cache.json",
			Lifetime:       24 * time.Hour,
			SQLDriver:      "sqlite3",
			SQLDSN:         filepath.Join("cache", "did_manager.db"),
			RedisAddr:      "localhost:6379",
			RedisKeyPrefix: "did_alerts",
		},
		Columns: ColumnsConfig{
			DateIndex:      1,
			PriceIndex:     3,
			DateLayout:     "1/2/2006",
			Mode:           ColumnModeFixed,
			CurrencySymbol: "$",
		},
		Fetch: FetchConfig{
			Delay: 500 * time.Millisecond,
		},
		Report: ReportConfig{
			DefaultStatus: "Active",
			Headers:       []string{"Serial", "Client", "DID Qty", "DID Rate", "Total Price", "Expiring in Days", "Status"},
			ExportDir:     "temp",
			ExportHeaders: []string{"DID Number", "Date", "1 & DID", "Price", "Vendor"},
			ClientColumns: []int{0, 1, 2},
		},
		Notify: NotifyConfig{
			URL:   "https://ntfy.sh",
			Topic: "did-alerts",
		},
	}
}

// CachePath is the JSON cache file location.
func (c Config) CachePath() string {
	return filepath.Join(c.Cache.Dir, c.Cache.File)
}

func (c Config) Validate() error {
	var errs []error
	if c.Columns.DateIndex < 0 {
		errs = append(errs, fmt.Errorf("date column index must not be negative, got %d", c.Columns.DateIndex))
	}
	if c.Columns.PriceIndex < 0 {
		errs = append(errs, fmt.Errorf("price column index must not be negative, got %d", c.Columns.PriceIndex))
	}
	if strings.TrimSpace(c.Columns.DateLayout) == "" {
		errs = append(errs, errors.New("date layout is required"))
	}
	switch c.Columns.Mode {
	case ColumnModeFixed, ColumnModeKeyword:
	default:
		errs = append(errs, fmt.Errorf("unknown column mode %q", c.Columns.Mode))
	}
	switch c.Cache.Backend {
	case BackendJSON:
		if c.Cache.File == "" {
			errs = append(errs, errors.New("cache file name is required for the json backend"))
		}
	case BackendSQL:
		if c.Cache.SQLDriver != "sqlite3" && c.Cache.SQLDriver != "pgx" {
			errs = append(errs, fmt.Errorf("unsupported sql driver %q (use sqlite3 or pgx)", c.Cache.SQLDriver))
		}
		if c.Cache.SQLDSN == "" {
			errs = append(errs, errors.New("sql dsn is required for the sql backend"))
		}
	case BackendRedis:
		if c.Cache.RedisAddr == "" {
			errs = append(errs, errors.New("redis address is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown cache backend %q", c.Cache.Backend))
	}
	if c.Cache.Lifetime <= 0 {
		errs = append(errs, fmt.Errorf("cache lifetime must be positive, got %s", c.Cache.Lifetime))
	}
	if c.Fetch.Delay < 0 {
		errs = append(errs, fmt.Errorf("fetch delay must not be negative, got %s", c.Fetch.Delay))
	}
	if len(c.Report.Headers) != 7 {
		errs = append(errs, fmt.Errorf("report needs 7 headers, got %d", len(c.Report.Headers)))
	}
	for _, idx := range c.Report.ClientColumns {
		if idx < 0 {
			errs = append(errs, fmt.Errorf("client column index must not be negative, got %d", idx))
		}
	}
	return errors.Join(errs...)
}
