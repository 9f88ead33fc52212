package config

import (
	"time"

	"did_alerts/internal/retry"
)

type ResilienceConfig struct {
	SheetList    retry.Config
	SheetRead    retry.Config
	SheetWrite   retry.Config
	Notification retry.Config
}

var DefaultResilienceConfig = ResilienceConfig{
	SheetList: retry.Config{
		MaxRetries: 3,
		BaseDelay:  2 * time.Second,
		MaxDelay:   30 * time.Second,
		Timeout:    15 * time.Second,
	},
	SheetRead: retry.Config{
		MaxRetries: 3,
		BaseDelay:  2 * time.Second,
		MaxDelay:   30 * time.Second,
		Timeout:    15 * time.Second,
	},
	SheetWrite: retry.Config{
		MaxRetries: 2,
		BaseDelay:  2 * time.Second,
		MaxDelay:   20 * time.Second,
		Timeout:    20 * time.Second,
	},
	Notification: retry.Config{
		MaxRetries: 3,
		BaseDelay:  1 * time.Second,
		MaxDelay:   30 * time.Second,
		Timeout:    10 * time.Second,
	},
}
