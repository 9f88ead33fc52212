package app

import (
	"context"
	"fmt"

	"did_alerts/internal/cache"
	"did_alerts/internal/config"
	"did_alerts/internal/notifications"
	"did_alerts/internal/sheets"

	"github.com/rs/zerolog/log"
)

// Build wires the production dependencies for cfg.
func Build(ctx context.Context, cfg config.Config) (*Runner, error) {
	log.Debug().Str("backend", cfg.Cache.Backend).Msg("Opening cache")
	store, err := cache.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s cache: %w", cfg.Cache.Backend, err)
	}

	return NewRunner(cfg, Deps{
		Store:    store,
		Connect:  SheetsConnector(cfg),
		Notifier: InitializeNotificationClient(cfg),
	}), nil
}

// SheetsConnector creates the Google Sheets client on first use.
func SheetsConnector(cfg config.Config) Connector {
	return func(ctx context.Context) (Source, Publisher, error) {
		if cfg.Sheets.SpreadsheetID == "" {
			return nil, nil, fmt.Errorf("SPREADSHEET_ID is required to fetch from the spreadsheet")
		}

		log.Debug().Str("credentials", cfg.Sheets.CredentialsFile).Msg("Initializing sheets client")
		client, err := sheets.NewClient(ctx, cfg.Sheets.CredentialsFile)
		if err != nil {
			return nil, nil, err
		}

		resilience := config.DefaultResilienceConfig
		source := sheets.NewSource(client, cfg.Sheets.SpreadsheetID, resilience.SheetList, resilience.SheetRead, cfg.Sheets.ReportSheet)

		var publisher Publisher
		if cfg.Sheets.ReportSheet != "" {
			publisher = sheets.NewPublisher(client, cfg.Sheets.SpreadsheetID, cfg.Sheets.ReportSheet, resilience.SheetWrite)
		}

		log.Debug().Msg("Sheets client initialized successfully")
		return source, publisher, nil
	}
}

// InitializeNotificationClient creates and returns the notification client
func InitializeNotificationClient(cfg config.Config) *notifications.Client {
	log.Debug().
		Bool("enabled", cfg.Notify.Enabled).
		Str("base_url", cfg.Notify.URL).
		Str("topic", cfg.Notify.Topic).
		Msg("Initializing notification client")

	client := notifications.NewClient(cfg.Notify.URL, cfg.Notify.Topic, cfg.Notify.Enabled, cfg.Notify.Priority, config.DefaultResilienceConfig.Notification)

	if cfg.Notify.Enabled {
		log.Info().Str("topic", cfg.Notify.Topic).Msg("Notifications enabled")
	} else {
		log.Debug().Msg("Notifications disabled")
	}

	return client
}
