package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Load starts from Default, applies the optional YAML or JSON file at path,
// then environment overrides, and validates the result. A missing file is not
// an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := applyFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		log.Debug().Str("path", path).Msg("Config file not found, using defaults")
		return nil
	}
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	// YAML is a superset of JSON, and the YAML decoder understands "30m"
	// style durations in both.
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	log.Debug().Str("path", path).Msg("Loaded config file")
	return nil
}

func applyEnv(cfg *Config) error {
	var err error

	setString(&cfg.Sheets.SpreadsheetID, "SPREADSHEET_ID")
	setString(&cfg.Sheets.CredentialsFile, "GOOGLE_CREDENTIALS_FILE")
	setString(&cfg.Sheets.ReportSheet, "REPORT_SHEET")

	setString(&cfg.Cache.Backend, "CACHE_BACKEND")
	setString(&cfg.Cache.Dir, "CACHE_DIR")
	setString(&cfg.Cache.File, "CACHE_FILE")
	setString(&cfg.Cache.SQLDriver, "CACHE_SQL_DRIVER")
	setString(&cfg.Cache.SQLDSN, "CACHE_SQL_DSN")
	setString(&cfg.Cache.RedisAddr, "REDIS_ADDR")
	setString(&cfg.Cache.RedisPassword, "REDIS_PASSWORD")
	setString(&cfg.Cache.RedisKeyPrefix, "REDIS_KEY_PREFIX")

	setString(&cfg.Columns.DateLayout, "DATE_LAYOUT")
	setString(&cfg.Columns.Mode, "COLUMN_MODE")
	setString(&cfg.Columns.CurrencySymbol, "CURRENCY_SYMBOL")

	setString(&cfg.Report.DefaultStatus, "DEFAULT_STATUS")
	setString(&cfg.Report.ExportDir, "EXPORT_DIR")
	setList(&cfg.Report.Headers, "REPORT_HEADERS")
	setList(&cfg.Report.ExportHeaders, "EXPORT_HEADERS")

	setString(&cfg.Notify.URL, "NTFY_URL")
	setString(&cfg.Notify.Topic, "NTFY_TOPIC")
	setString(&cfg.Notify.Priority, "NTFY_PRIORITY")

	if err = setDuration(&cfg.Cache.Lifetime, "CACHE_LIFETIME"); err != nil {
		return err
	}
	if err = setDuration(&cfg.Fetch.Delay, "FETCH_DELAY"); err != nil {
		return err
	}
	if err = setBool(&cfg.Cache.Backup, "CACHE_BACKUP"); err != nil {
		return err
	}
	if err = setBool(&cfg.Notify.Enabled, "NTFY_ENABLED"); err != nil {
		return err
	}
	if err = setInt(&cfg.Cache.RedisDB, "REDIS_DB"); err != nil {
		return err
	}
	if err = setInt(&cfg.Columns.DateIndex, "DATE_COLUMN_INDEX"); err != nil {
		return err
	}
	if err = setInt(&cfg.Columns.PriceIndex, "PRICE_COLUMN_INDEX"); err != nil {
		return err
	}
	if err = setIntList(&cfg.Report.ClientColumns, "CLIENT_COLUMNS"); err != nil {
		return err
	}
	return nil
}

func setString(dst *string, key string) {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		*dst = value
	}
}

func setList(dst *[]string, key string) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return
	}
	parts := strings.Split(value, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	*dst = parts
}

func setDuration(dst *time.Duration, key string) error {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("%s: invalid duration %q: %w", key, value, err)
	}
	*dst = d
	return nil
}

func setBool(dst *bool, key string) error {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("%s: invalid boolean %q: %w", key, value, err)
	}
	*dst = b
	return nil
}

func setInt(dst *int, key string) error {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("%s: invalid integer %q: %w", key, value, err)
	}
	*dst = n
	return nil
}

func setIntList(dst *[]int, key string) error {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return nil
	}
	var out []int
	for _, part := range strings.Split(value, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return fmt.Errorf("%s: invalid integer %q: %w", key, part, err)
		}
		out = append(out, n)
	}
	*dst = out
	return nil
}
