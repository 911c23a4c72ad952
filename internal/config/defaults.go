package config

const (
	defaultConfigPath                   = "~/.config/cardflow/config.toml"
	defaultDataDir                      = "~/.local/share/cardflow"
	defaultLogDir                       = "~/.local/share/cardflow/logs"
	defaultThumbnailDir                 = "~/.local/share/cardflow/thumbnails"
	defaultStorageMode                  = StorageSQLite
	defaultSQLiteFile                   = "cardflow.db"
	defaultPollIntervalMillis           = 1000
	defaultErrorRetryInterval           = 5
	defaultMaxRetries                   = 3
	defaultRetryDelayMillis             = 500
	defaultTxTimeoutSeconds             = 15
	defaultWorkerCount                  = 1
	defaultVisionTimeoutSeconds         = 30
	defaultVisionMaxImageBytes          = 4_000_000
	defaultClassificationBaseURL        = "https://api.ximilar.com"
	defaultClassificationTimeoutSeconds = 30
	defaultClassificationMaxImageBytes  = 2_500_000
	defaultBreakerFailures              = 5
	defaultBreakerCooldownSeconds       = 60
	defaultValuationBaseURL             = "https://api.ebay.com/buy/browse/v1"
	defaultValuationMarketplace         = "EBAY_US"
	defaultValuationResultLimit         = 10
	defaultValuationQueryMaxChars       = 80
	defaultValuationTimeoutSeconds      = 15
	defaultBGRemoveTimeoutSeconds       = 30
	defaultThumbnailPrefix              = "thumbnails"
	defaultThumbnailMaxDim              = 400
	defaultCacheTTLMinutes              = 360
	defaultNotifyRequestTimeout         = 10
	defaultLogFormat                    = "console"
	defaultLogLevel                     = "info"
)

// Storage modes.
const (
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:      defaultDataDir,
			LogDir:       defaultLogDir,
			ThumbnailDir: defaultThumbnailDir,
		},
		Storage: Storage{
			Mode: defaultStorageMode,
		},
		Workflow: Workflow{
			PollIntervalMillis: defaultPollIntervalMillis,
			ErrorRetryInterval: defaultErrorRetryInterval,
			MaxRetries:         defaultMaxRetries,
			RetryDelayMillis:   defaultRetryDelayMillis,
			TxTimeoutSeconds:   defaultTxTimeoutSeconds,
			WorkerCount:        defaultWorkerCount,
		},
		Vision: Vision{
			TimeoutSeconds: defaultVisionTimeoutSeconds,
			MaxImageBytes:  defaultVisionMaxImageBytes,
		},
		Classification: Classification{
			BaseURL:                defaultClassificationBaseURL,
			TimeoutSeconds:         defaultClassificationTimeoutSeconds,
			MaxImageBytes:          defaultClassificationMaxImageBytes,
			BreakerFailures:        defaultBreakerFailures,
			BreakerCooldownSeconds: defaultBreakerCooldownSeconds,
		},
		Valuation: Valuation{
			BaseURL:        defaultValuationBaseURL,
			MarketplaceID:  defaultValuationMarketplace,
			ResultLimit:    defaultValuationResultLimit,
			QueryMaxChars:  defaultValuationQueryMaxChars,
			TimeoutSeconds: defaultValuationTimeoutSeconds,
		},
		BGRemove: BGRemove{
			TimeoutSeconds: defaultBGRemoveTimeoutSeconds,
		},
		Images: Images{
			ThumbnailPrefix: defaultThumbnailPrefix,
			ThumbnailMaxDim: defaultThumbnailMaxDim,
		},
		Cache: Cache{
			TTLMinutes: defaultCacheTTLMinutes,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			BatchReady:     true,
			AssetErrors:    true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
