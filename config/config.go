package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Thetaflow ServiceConfig  `yaml:"thetaflow"`
	Terminal  TerminalConfig `yaml:"terminal"`
	Audit     AuditConfig    `yaml:"audit"`
	Bulk      BulkConfig     `yaml:"bulk"`
	Realtime  RealtimeConfig `yaml:"realtime"`
	Writer    WriterConfig   `yaml:"writer"`
	Storage   StorageConfig  `yaml:"storage"`
	Logging   LoggingConfig  `yaml:"logging"`
}

type ServiceConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// TerminalConfig describes the local data terminal endpoint and how hard to
// lean on it.
type TerminalConfig struct {
	BaseURL        string               `yaml:"base_url"`
	Timeout        time.Duration        `yaml:"timeout"`
	ConnectionPool ConnectionPoolConfig `yaml:"connection_pool"`
	Retry          RetryConfig          `yaml:"retry"`
	RateLimit      RateLimitConfig      `yaml:"rate_limit"`
}

type ConnectionPoolConfig struct {
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	MaxConnsPerHost int           `yaml:"max_conns_per_host"`
	IdleConnTimeout time.Duration `yaml:"idle_conn_timeout"`
}

type RetryConfig struct {
	MaxAttempts       int           `yaml:"max_attempts"`
	BaseDelay         time.Duration `yaml:"base_delay"`
	MaxDelay          time.Duration `yaml:"max_delay"`
	BackoffMultiplier int           `yaml:"backoff_multiplier"`
}

type RateLimitConfig struct {
	RequestsPerSecond int `yaml:"requests_per_second"`
	BurstSize         int `yaml:"burst_size"`
}

// AuditConfig points the CSV audit sinks at their files.
type AuditConfig struct {
	RetryLog string `yaml:"retry_log"`
	StatsLog string `yaml:"stats_log"`
}

// BulkConfig drives the historical download engine.
type BulkConfig struct {
	Symbols    []string `yaml:"symbols"`
	StartDate  string   `yaml:"start_date"` // YYYY-MM-DD
	EndDate    string   `yaml:"end_date"`
	MaxWorkers int      `yaml:"max_workers"`
}

// RealtimeConfig drives the polling feed.
type RealtimeConfig struct {
	Symbols          []string      `yaml:"symbols"`
	PollInterval     time.Duration `yaml:"poll_interval"`
	MarketOpen       string        `yaml:"market_open"` // HH:MM:SS eastern
	SnapshotInterval time.Duration `yaml:"snapshot_interval"`
}

type WriterConfig struct {
	OptionRoot     string `yaml:"option_root"`
	UnderlyingRoot string `yaml:"underlying_root"`
	RealtimeRoot   string `yaml:"realtime_root"`
	Compression    string `yaml:"compression"`
}

type StorageConfig struct {
	S3 S3Config `yaml:"s3"`
}

type S3Config struct {
	Enabled         bool   `yaml:"enabled"`
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	PathStyle       bool   `yaml:"path_style"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

type LoggingConfig struct {
	Level         string                 `yaml:"level"`
	Format        string                 `yaml:"format"`
	Output        string                 `yaml:"output"`
	MaxAge        int                    `yaml:"max_age"`
	Fields        map[string]interface{} `yaml:"fields"`
	DashboardName string                 `yaml:"dashboard_name"`
}

const defaultConfigPath = "config/config.yml"

// envConfigPaths maps application environments to their dedicated
// configuration files. The default path is only rewritten when the caller
// did not ask for a specific file.
var envConfigPaths = map[string]string{
	environmentProduction: "config/config.production.yml",
	environmentStaging:    "config/config.staging.yml",
}

func LoadConfig(path string) (*Config, error) {
	path = resolveEnvSpecificPath(path, defaultConfigPath, envConfigPaths)

	// Read configuration file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Config{
		Terminal: TerminalConfig{
			BaseURL: "http://127.0.0.1:25503",
			Timeout: 30 * time.Second,
			Retry: RetryConfig{
				MaxAttempts:       3,
				BaseDelay:         2 * time.Second,
				MaxDelay:          6 * time.Second,
				BackoffMultiplier: 2,
			},
		},
		Audit: AuditConfig{
			RetryLog: "retry_audit.csv",
			StatsLog: "request_stats.csv",
		},
		Realtime: RealtimeConfig{
			PollInterval: time.Minute,
			MarketOpen:   "09:30:00",
		},
		Writer: WriterConfig{
			Compression: "snappy",
		},
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Override S3 settings from environment variables if available
	if config.Storage.S3.Enabled {
		if v := os.Getenv("AWS_ACCESS_KEY_ID"); v != "" {
			config.Storage.S3.AccessKeyID = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_SECRET_ACCESS_KEY"); v != "" {
			config.Storage.S3.SecretAccessKey = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_REGION"); v != "" {
			config.Storage.S3.Region = strings.TrimSpace(v)
		}
		if v := os.Getenv("S3_BUCKET"); v != "" {
			config.Storage.S3.Bucket = strings.TrimSpace(v)
		}
	}

	config.Storage.S3.Bucket = strings.TrimSpace(config.Storage.S3.Bucket)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

func validateConfig(cfg *Config) error {
	if cfg.Thetaflow.Name == "" {
		return fmt.Errorf("thetaflow.name is required")
	}

	if cfg.Thetaflow.Version == "" {
		return fmt.Errorf("thetaflow.version is required")
	}

	if cfg.Terminal.BaseURL == "" {
		return fmt.Errorf("terminal.base_url is required")
	}
	if cfg.Terminal.Timeout <= 0 {
		return fmt.Errorf("terminal.timeout must be greater than 0")
	}
	if cfg.Terminal.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("terminal.retry.max_attempts must be greater than 0")
	}
	if cfg.Terminal.Retry.BaseDelay <= 0 || cfg.Terminal.Retry.MaxDelay < cfg.Terminal.Retry.BaseDelay {
		return fmt.Errorf("terminal.retry delays are invalid")
	}

	if cfg.Bulk.MaxWorkers < 0 {
		return fmt.Errorf("bulk.max_workers must not be negative")
	}
	if len(cfg.Bulk.Symbols) > 0 {
		if _, err := time.Parse("2006-01-02", cfg.Bulk.StartDate); err != nil {
			return fmt.Errorf("bulk.start_date must be YYYY-MM-DD: %w", err)
		}
		if _, err := time.Parse("2006-01-02", cfg.Bulk.EndDate); err != nil {
			return fmt.Errorf("bulk.end_date must be YYYY-MM-DD: %w", err)
		}
	}

	if cfg.Realtime.PollInterval <= 0 {
		return fmt.Errorf("realtime.poll_interval must be greater than 0")
	}
	if _, err := time.Parse("15:04:05", cfg.Realtime.MarketOpen); err != nil {
		return fmt.Errorf("realtime.market_open must be HH:MM:SS: %w", err)
	}

	if cfg.Writer.OptionRoot == "" {
		return fmt.Errorf("writer.option_root is required")
	}
	if cfg.Writer.UnderlyingRoot == "" {
		return fmt.Errorf("writer.underlying_root is required")
	}

	if cfg.Storage.S3.Enabled {
		if cfg.Storage.S3.Bucket == "" {
			return fmt.Errorf("storage.s3.bucket is required when S3 is enabled")
		}
		if cfg.Storage.S3.Region == "" {
			return fmt.Errorf("storage.s3.region is required when S3 is enabled")
		}
		// Development deployments may lean on the default AWS credential
		// chain; production-like ones must be explicit.
		if cfg.Storage.S3.AccessKeyID == "" || cfg.Storage.S3.SecretAccessKey == "" {
			if IsProductionLike(AppEnvironment()) {
				return fmt.Errorf("storage.s3.access_key_id and storage.s3.secret_access_key are required when S3 is enabled")
			}
		}
		if !isValidS3Bucket(cfg.Storage.S3.Bucket) {
			return fmt.Errorf("storage.s3.bucket '%s' is invalid", cfg.Storage.S3.Bucket)
		}
	}

	return nil
}

var s3BucketRegexp = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{1,61}[a-z0-9]$`)

func isValidS3Bucket(name string) bool {
	if len(name) < 3 || len(name) > 63 {
		return false
	}
	if strings.Contains(name, "..") || strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".") {
		return false
	}
	return s3BucketRegexp.MatchString(name)
}
