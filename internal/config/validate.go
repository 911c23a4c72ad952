package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateProviders(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateStorage() error {
	switch c.Storage.Mode {
	case StorageSQLite:
		if strings.TrimSpace(c.Storage.SQLitePath) == "" {
			return errors.New("storage.sqlite_path must be set when storage.mode is sqlite")
		}
	case StoragePostgres:
		if c.Storage.DSN == "" {
			return errors.New("storage.dsn must be set when storage.mode is postgres (or set CARDFLOW_DATABASE_URL)")
		}
	default:
		return fmt.Errorf("storage.mode must be %q or %q, got %q", StorageSQLite, StoragePostgres, c.Storage.Mode)
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.MaxRetries < 0 {
		return errors.New("workflow.max_retries must not be negative")
	}
	return ensurePositiveMap(map[string]int{
		"workflow.poll_interval_ms":       c.Workflow.PollIntervalMillis,
		"workflow.error_retry_interval":   c.Workflow.ErrorRetryInterval,
		"workflow.retry_delay_ms":         c.Workflow.RetryDelayMillis,
		"workflow.tx_timeout_seconds":     c.Workflow.TxTimeoutSeconds,
		"workflow.worker_count":           c.Workflow.WorkerCount,
		"notifications.request_timeout":   c.Notifications.RequestTimeout,
		"classification.max_image_bytes":  c.Classification.MaxImageBytes,
		"vision.max_image_bytes":          c.Vision.MaxImageBytes,
		"valuation.result_limit":          c.Valuation.ResultLimit,
		"images.thumbnail_max_dim":        c.Images.ThumbnailMaxDim,
		"classification.breaker_failures": c.Classification.BreakerFailures,
	})
}

func (c *Config) validateProviders() error {
	if c.Vision.URL != "" && !isHTTPURL(c.Vision.URL) {
		return fmt.Errorf("vision.url must be an http(s) URL, got %q", c.Vision.URL)
	}
	if c.Classification.Enabled && !isHTTPURL(c.Classification.BaseURL) {
		return fmt.Errorf("classification.base_url must be an http(s) URL, got %q", c.Classification.BaseURL)
	}
	if !isHTTPURL(c.Valuation.BaseURL) {
		return fmt.Errorf("valuation.base_url must be an http(s) URL, got %q", c.Valuation.BaseURL)
	}
	if c.BGRemove.URL != "" && !isHTTPURL(c.BGRemove.URL) {
		return fmt.Errorf("bgremove.url must be an http(s) URL, got %q", c.BGRemove.URL)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
		return nil
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error; got %q", c.Logging.Level)
	}
}

func isHTTPURL(value string) bool {
	lower := strings.ToLower(value)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
