package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeStorage(); err != nil {
		return err
	}
	c.normalizeWorkflow()
	c.normalizeVision()
	c.normalizeClassification()
	c.normalizeValuation()
	c.normalizeBGRemove()
	c.normalizeImages()
	c.normalizeCache()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = filepath.Join(c.Paths.DataDir, "logs")
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.ImageDir, err = expandPath(strings.TrimSpace(c.Paths.ImageDir)); err != nil {
		return fmt.Errorf("paths.image_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.ThumbnailDir) == "" {
		c.Paths.ThumbnailDir = filepath.Join(c.Paths.DataDir, "thumbnails")
	}
	if c.Paths.ThumbnailDir, err = expandPath(c.Paths.ThumbnailDir); err != nil {
		return fmt.Errorf("paths.thumbnail_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeStorage() error {
	if value, ok := os.LookupEnv("CARDFLOW_STORAGE_MODE"); ok && strings.TrimSpace(value) != "" {
		c.Storage.Mode = value
	}
	c.Storage.Mode = strings.ToLower(strings.TrimSpace(c.Storage.Mode))
	if c.Storage.Mode == "" {
		c.Storage.Mode = defaultStorageMode
	}
	if value, ok := os.LookupEnv("CARDFLOW_DATABASE_URL"); ok && strings.TrimSpace(value) != "" {
		c.Storage.DSN = value
	}
	c.Storage.DSN = strings.TrimSpace(c.Storage.DSN)
	if strings.TrimSpace(c.Storage.SQLitePath) == "" {
		c.Storage.SQLitePath = filepath.Join(c.Paths.DataDir, defaultSQLiteFile)
	}
	var err error
	if c.Storage.SQLitePath, err = expandPath(c.Storage.SQLitePath); err != nil {
		return fmt.Errorf("storage.sqlite_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeWorkflow() {
	c.Workflow.PollIntervalMillis = envInt("CARDFLOW_POLL_INTERVAL_MS", c.Workflow.PollIntervalMillis)
	c.Workflow.MaxRetries = envInt("CARDFLOW_MAX_RETRIES", c.Workflow.MaxRetries)
	c.Workflow.RetryDelayMillis = envInt("CARDFLOW_RETRY_DELAY_MS", c.Workflow.RetryDelayMillis)
	c.Workflow.TxTimeoutSeconds = envInt("CARDFLOW_TX_TIMEOUT_SECONDS", c.Workflow.TxTimeoutSeconds)
	c.Workflow.WorkerCount = envInt("CARDFLOW_WORKER_CONCURRENCY", c.Workflow.WorkerCount)

	c.Workflow.PollIntervalMillis = positiveOr(c.Workflow.PollIntervalMillis, defaultPollIntervalMillis)
	c.Workflow.ErrorRetryInterval = positiveOr(c.Workflow.ErrorRetryInterval, defaultErrorRetryInterval)
	c.Workflow.MaxRetries = nonNegativeOr(c.Workflow.MaxRetries, defaultMaxRetries)
	c.Workflow.RetryDelayMillis = positiveOr(c.Workflow.RetryDelayMillis, defaultRetryDelayMillis)
	c.Workflow.TxTimeoutSeconds = positiveOr(c.Workflow.TxTimeoutSeconds, defaultTxTimeoutSeconds)
	c.Workflow.WorkerCount = positiveOr(c.Workflow.WorkerCount, defaultWorkerCount)
}

func (c *Config) normalizeVision() {
	if value, ok := os.LookupEnv("OCR_SERVICE_URL"); ok && strings.TrimSpace(value) != "" {
		c.Vision.URL = value
	}
	if value, ok := os.LookupEnv("OCR_SERVICE_TOKEN"); ok && strings.TrimSpace(value) != "" {
		c.Vision.Token = value
	}
	c.Vision.URL = strings.TrimRight(strings.TrimSpace(c.Vision.URL), "/")
	c.Vision.Token = strings.TrimSpace(c.Vision.Token)
	c.Vision.MaxImageBytes = envInt("CARDFLOW_MAX_IMAGE_BYTES", c.Vision.MaxImageBytes)
	c.Vision.TimeoutSeconds = positiveOr(c.Vision.TimeoutSeconds, defaultVisionTimeoutSeconds)
	c.Vision.MaxImageBytes = positiveOr(c.Vision.MaxImageBytes, defaultVisionMaxImageBytes)
}

func (c *Config) normalizeClassification() {
	if value, ok := os.LookupEnv("COLLECTIBLES_API_KEY"); ok && strings.TrimSpace(value) != "" {
		c.Classification.APIKey = value
	}
	c.Classification.APIKey = strings.TrimSpace(c.Classification.APIKey)
	c.Classification.BaseURL = strings.TrimRight(strings.TrimSpace(c.Classification.BaseURL), "/")
	if c.Classification.BaseURL == "" {
		c.Classification.BaseURL = defaultClassificationBaseURL
	}
	c.Classification.TimeoutSeconds = positiveOr(c.Classification.TimeoutSeconds, defaultClassificationTimeoutSeconds)
	c.Classification.MaxImageBytes = positiveOr(c.Classification.MaxImageBytes, defaultClassificationMaxImageBytes)
	c.Classification.BreakerFailures = positiveOr(c.Classification.BreakerFailures, defaultBreakerFailures)
	c.Classification.BreakerCooldownSeconds = positiveOr(c.Classification.BreakerCooldownSeconds, defaultBreakerCooldownSeconds)
}

func (c *Config) normalizeValuation() {
	if value, ok := os.LookupEnv("MARKETPLACE_TOKEN"); ok && strings.TrimSpace(value) != "" {
		c.Valuation.Token = value
	}
	c.Valuation.Token = strings.TrimSpace(c.Valuation.Token)
	c.Valuation.BaseURL = strings.TrimRight(strings.TrimSpace(c.Valuation.BaseURL), "/")
	if c.Valuation.BaseURL == "" {
		c.Valuation.BaseURL = defaultValuationBaseURL
	}
	c.Valuation.MarketplaceID = strings.TrimSpace(c.Valuation.MarketplaceID)
	if c.Valuation.MarketplaceID == "" {
		c.Valuation.MarketplaceID = defaultValuationMarketplace
	}
	c.Valuation.ResultLimit = positiveOr(c.Valuation.ResultLimit, defaultValuationResultLimit)
	c.Valuation.QueryMaxChars = positiveOr(c.Valuation.QueryMaxChars, defaultValuationQueryMaxChars)
	c.Valuation.TimeoutSeconds = positiveOr(c.Valuation.TimeoutSeconds, defaultValuationTimeoutSeconds)
}

func (c *Config) normalizeBGRemove() {
	if value, ok := os.LookupEnv("BGREMOVE_API_KEY"); ok && strings.TrimSpace(value) != "" {
		c.BGRemove.APIKey = value
	}
	c.BGRemove.APIKey = strings.TrimSpace(c.BGRemove.APIKey)
	c.BGRemove.URL = strings.TrimSpace(c.BGRemove.URL)
	c.BGRemove.TimeoutSeconds = positiveOr(c.BGRemove.TimeoutSeconds, defaultBGRemoveTimeoutSeconds)
}

func (c *Config) normalizeImages() {
	if c.Images.S3Region == "" {
		if value, ok := os.LookupEnv("AWS_REGION"); ok {
			c.Images.S3Region = value
		}
	}
	c.Images.S3Region = strings.TrimSpace(c.Images.S3Region)
	c.Images.S3Endpoint = strings.TrimSpace(c.Images.S3Endpoint)
	c.Images.S3AccessKey = strings.TrimSpace(c.Images.S3AccessKey)
	c.Images.S3SecretKey = strings.TrimSpace(c.Images.S3SecretKey)
	c.Images.ThumbnailBucket = strings.TrimSpace(c.Images.ThumbnailBucket)
	c.Images.ThumbnailPrefix = strings.Trim(strings.TrimSpace(c.Images.ThumbnailPrefix), "/")
	if c.Images.ThumbnailPrefix == "" {
		c.Images.ThumbnailPrefix = defaultThumbnailPrefix
	}
	c.Images.ThumbnailMaxDim = positiveOr(c.Images.ThumbnailMaxDim, defaultThumbnailMaxDim)
}

func (c *Config) normalizeCache() {
	if value, ok := os.LookupEnv("CARDFLOW_REDIS_ADDR"); ok && strings.TrimSpace(value) != "" {
		c.Cache.RedisAddr = value
	}
	c.Cache.RedisAddr = strings.TrimSpace(c.Cache.RedisAddr)
	if c.Cache.RedisDB < 0 {
		c.Cache.RedisDB = 0
	}
	c.Cache.TTLMinutes = positiveOr(c.Cache.TTLMinutes, defaultCacheTTLMinutes)
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	c.Notifications.RequestTimeout = positiveOr(c.Notifications.RequestTimeout, defaultNotifyRequestTimeout)
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "json":
	default:
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

// envInt returns the integer value of key, or current when unset or unparsable.
func envInt(key string, current int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return current
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return current
	}
	return parsed
}

// nonNegativeOr keeps zero, which is meaningful for counts such as retries.
func nonNegativeOr(value, fallback int) int {
	if value < 0 {
		return fallback
	}
	return value
}

func positiveOr(value, fallback int) int {
	if value <= 0 {
		return fallback
	}
	return value
}
