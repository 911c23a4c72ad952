package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir      string `toml:"data_dir"`
	LogDir       string `toml:"log_dir"`
	ImageDir     string `toml:"image_dir"`
	ThumbnailDir string `toml:"thumbnail_dir"`
}

// Storage selects the asset/job store backend.
type Storage struct {
	Mode       string `toml:"mode"`
	DSN        string `toml:"dsn"`
	SQLitePath string `toml:"sqlite_path"`
}

// Workflow contains worker loop timing and retry settings.
type Workflow struct {
	PollIntervalMillis int `toml:"poll_interval_ms"`
	ErrorRetryInterval int `toml:"error_retry_interval"`
	MaxRetries         int `toml:"max_retries"`
	RetryDelayMillis   int `toml:"retry_delay_ms"`
	TxTimeoutSeconds   int `toml:"tx_timeout_seconds"`
	WorkerCount        int `toml:"worker_count"`
}

// Vision contains the OCR provider connection.
type Vision struct {
	URL            string `toml:"url"`
	Token          string `toml:"token"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	MaxImageBytes  int    `toml:"max_image_bytes"`
}

// Classification contains the collectibles recognition provider connection.
type Classification struct {
	Enabled                bool   `toml:"enabled"`
	BaseURL                string `toml:"base_url"`
	APIKey                 string `toml:"api_key"`
	TimeoutSeconds         int    `toml:"timeout_seconds"`
	MaxImageBytes          int    `toml:"max_image_bytes"`
	BreakerFailures        int    `toml:"breaker_failures"`
	BreakerCooldownSeconds int    `toml:"breaker_cooldown_seconds"`
}

// Valuation contains the marketplace search connection.
type Valuation struct {
	BaseURL        string `toml:"base_url"`
	Token          string `toml:"token"`
	MarketplaceID  string `toml:"marketplace_id"`
	ResultLimit    int    `toml:"result_limit"`
	QueryMaxChars  int    `toml:"query_max_chars"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// BGRemove contains the optional background-removal provider connection.
type BGRemove struct {
	URL            string `toml:"url"`
	APIKey         string `toml:"api_key"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Images contains object storage settings for s3:// references and thumbnails.
type Images struct {
	S3Region        string `toml:"s3_region"`
	S3Endpoint      string `toml:"s3_endpoint"`
	S3AccessKey     string `toml:"s3_access_key"`
	S3SecretKey     string `toml:"s3_secret_key"`
	ThumbnailBucket string `toml:"thumbnail_bucket"`
	ThumbnailPrefix string `toml:"thumbnail_prefix"`
	ThumbnailMaxDim int    `toml:"thumbnail_max_dim"`
}

// Cache contains the optional Redis cache for marketplace lookups.
type Cache struct {
	RedisAddr     string `toml:"redis_addr"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`
	TTLMinutes    int    `toml:"ttl_minutes"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	BatchReady     bool   `toml:"batch_ready"`
	AssetErrors    bool   `toml:"asset_errors"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for cardflow.
//
// Configuration sections by subsystem:
//   - Paths: data, log, image, and thumbnail directories
//   - Storage: sqlite (default) or postgres job/asset store
//   - Workflow: poll interval, retries, transaction timeout, worker count
//   - Vision: OCR provider
//   - Classification: collectibles recognition provider
//   - Valuation: marketplace search provider
//   - BGRemove: background removal provider used for thumbnails
//   - Images: S3 object storage and thumbnail sizing
//   - Cache: Redis cache for marketplace lookups
//   - Notifications: ntfy push notification settings
//   - Logging: log format and level
type Config struct {
	Paths          Paths          `toml:"paths"`
	Storage        Storage        `toml:"storage"`
	Workflow       Workflow       `toml:"workflow"`
	Vision         Vision         `toml:"vision"`
	Classification Classification `toml:"classification"`
	Valuation      Valuation      `toml:"valuation"`
	BGRemove       BGRemove       `toml:"bgremove"`
	Images         Images         `toml:"images"`
	Cache          Cache          `toml:"cache"`
	Notifications  Notifications  `toml:"notifications"`
	Logging        Logging        `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and numeric fields defaulted.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("cardflow.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir, c.Paths.ThumbnailDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// PollInterval returns the idle sleep between claim attempts.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Workflow.PollIntervalMillis) * time.Millisecond
}

// RetryDelay returns the linear backoff unit for stage retries.
func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.Workflow.RetryDelayMillis) * time.Millisecond
}

// TxTimeout returns the bound applied to every stage's atomic persist unit.
func (c *Config) TxTimeout() time.Duration {
	return time.Duration(c.Workflow.TxTimeoutSeconds) * time.Second
}

// LockPath returns the daemon single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "cardflowd.lock")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
