package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DateLayout is the layout accepted for sync start and end dates
const DateLayout = "2006-01-02"

// Storage backends
const (
	BackendLocal = "local"
	BackendS3    = "s3"
	BackendGCS   = "gcs"
)

// Config holds all configuration options for amosync
type Config struct {
	Upstream  UpstreamConfig  `yaml:"upstream" json:"upstream"`
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`
	Sync      SyncConfig      `yaml:"sync" json:"sync"`
	Storage   StorageConfig   `yaml:"storage" json:"storage"`
	Metrics   MetricsConfig   `yaml:"metrics" json:"metrics"`
	Logging   LoggingConfig   `yaml:"logging" json:"logging"`
}

// UpstreamConfig describes how the AMOS archive is reached
type UpstreamConfig struct {
	BaseURL       string        `yaml:"base_url" json:"base_url" validate:"required,url"`
	Timeout       time.Duration `yaml:"timeout" json:"timeout" validate:"gt=0"`
	UserAgent     string        `yaml:"user_agent" json:"user_agent"`
	MaxRetries    int           `yaml:"max_retries" json:"max_retries" validate:"min=0,max=10"`
	MemoryLimitMB int           `yaml:"memory_limit_mb" json:"memory_limit_mb" validate:"min=1"`
	// ScratchDir is where oversized archives are spooled; empty means os.TempDir()
	ScratchDir string `yaml:"scratch_dir" json:"scratch_dir"`
}

// RateLimitConfig bounds the request rate against the upstream
type RateLimitConfig struct {
	// RequestsPerSecond of 0 disables limiting
	RequestsPerSecond float64 `yaml:"requests_per_second" json:"requests_per_second" validate:"gte=0"`
	Burst             int     `yaml:"burst" json:"burst" validate:"min=1"`
}

// SyncConfig holds batch sync settings
type SyncConfig struct {
	Workers      int    `yaml:"workers" json:"workers" validate:"min=1"`
	SkipExisting bool   `yaml:"skip_existing" json:"skip_existing"`
	StartDate    string `yaml:"start_date,omitempty" json:"start_date,omitempty"`
	EndDate      string `yaml:"end_date,omitempty" json:"end_date,omitempty"`
}

// StorageConfig selects and configures the destination store
type StorageConfig struct {
	Backend         string `yaml:"backend" json:"backend" validate:"oneof=local s3 gcs"`
	Root            string `yaml:"root" json:"root"`
	Bucket          string `yaml:"bucket,omitempty" json:"bucket,omitempty"`
	Prefix          string `yaml:"prefix,omitempty" json:"prefix,omitempty"`
	Region          string `yaml:"region,omitempty" json:"region,omitempty"`
	Endpoint        string `yaml:"endpoint,omitempty" json:"endpoint,omitempty" validate:"omitempty,url"`
	Profile         string `yaml:"profile,omitempty" json:"profile,omitempty"`
	CredentialsFile string `yaml:"credentials_file,omitempty" json:"credentials_file,omitempty"`
	AccessKeyID     string `yaml:"access_key_id,omitempty" json:"-"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty" json:"-"`
}

// MetricsConfig controls the prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Listen  string `yaml:"listen" json:"listen" validate:"required_if=Enabled true"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level" validate:"omitempty,oneof=debug info warn warning error disabled"`
	File  string `yaml:"file,omitempty" json:"file,omitempty"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Upstream: UpstreamConfig{
			BaseURL:       "http://amos.cse.wustl.edu",
			Timeout:       60 * time.Second,
			UserAgent:     "amosync/1.0",
			MaxRetries:    3,
			MemoryLimitMB: 512,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 5,
			Burst:             5,
		},
		Sync: SyncConfig{
			Workers:      4,
			SkipExisting: true,
		},
		Storage: StorageConfig{
			Backend: BackendLocal,
			Root:    "./amos",
		},
		Metrics: MetricsConfig{
			Listen: ":9102",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadFromEnv overrides configuration with AMOSYNC_* environment variables.
// The AMOS_S3_* variables used by older deployments are honoured as well.
func (c *Config) LoadFromEnv() error {
	var errs []error

	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}

	setString("AMOSYNC_BASE_URL", &c.Upstream.BaseURL)
	setString("AMOSYNC_USER_AGENT", &c.Upstream.UserAgent)
	setString("AMOSYNC_SCRATCH_DIR", &c.Upstream.ScratchDir)
	setInt("AMOSYNC_MAX_RETRIES", &c.Upstream.MaxRetries)
	setInt("AMOSYNC_MEMORY_LIMIT_MB", &c.Upstream.MemoryLimitMB)
	if v := os.Getenv("AMOSYNC_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("AMOSYNC_TIMEOUT: %w", err))
		} else {
			c.Upstream.Timeout = d
		}
	}

	if v := os.Getenv("AMOSYNC_REQUESTS_PER_SECOND"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("AMOSYNC_REQUESTS_PER_SECOND: %w", err))
		} else {
			c.RateLimit.RequestsPerSecond = f
		}
	}
	setInt("AMOSYNC_BURST", &c.RateLimit.Burst)

	setInt("AMOSYNC_WORKERS", &c.Sync.Workers)
	if v := os.Getenv("AMOSYNC_SKIP_EXISTING"); v != "" {
		c.Sync.SkipExisting = strings.EqualFold(v, "true") || v == "1"
	}
	setString("AMOSYNC_START_DATE", &c.Sync.StartDate)
	setString("AMOSYNC_END_DATE", &c.Sync.EndDate)

	// Legacy variables first so AMOSYNC_* wins when both are present.
	if bucket := os.Getenv("AMOS_S3_BUCKET"); bucket != "" {
		c.Storage.Backend = BackendS3
		c.Storage.Bucket = bucket
	}
	setString("AMOS_S3_ACCESS_KEY", &c.Storage.AccessKeyID)
	setString("AMOS_S3_SECRET_KEY", &c.Storage.SecretAccessKey)

	setString("AMOSYNC_STORAGE_BACKEND", &c.Storage.Backend)
	setString("AMOSYNC_STORAGE_ROOT", &c.Storage.Root)
	setString("AMOSYNC_BUCKET", &c.Storage.Bucket)
	setString("AMOSYNC_PREFIX", &c.Storage.Prefix)
	setString("AMOSYNC_REGION", &c.Storage.Region)
	setString("AMOSYNC_ENDPOINT", &c.Storage.Endpoint)
	setString("AMOSYNC_PROFILE", &c.Storage.Profile)
	setString("AMOSYNC_CREDENTIALS_FILE", &c.Storage.CredentialsFile)
	setString("AMOSYNC_ACCESS_KEY_ID", &c.Storage.AccessKeyID)
	setString("AMOSYNC_SECRET_ACCESS_KEY", &c.Storage.SecretAccessKey)

	if v := os.Getenv("AMOSYNC_METRICS_ENABLED"); v != "" {
		c.Metrics.Enabled = strings.EqualFold(v, "true") || v == "1"
	}
	setString("AMOSYNC_METRICS_LISTEN", &c.Metrics.Listen)

	setString("AMOSYNC_LOG_LEVEL", &c.Logging.Level)
	setString("AMOSYNC_LOG_FILE", &c.Logging.File)

	return errors.Join(errs...)
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = findConfigFile()
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// DefaultPath is where `config init` writes a fresh config file
func DefaultPath() string {
	return filepath.Join(os.Getenv("HOME"), ".config", "amosync", "config.yaml")
}

// findConfigFile searches for config file in standard locations
func findConfigFile() string {
	locations := []string{
		".amosync.yaml",
		".amosync.yml",
		DefaultPath(),
		filepath.Join(os.Getenv("HOME"), ".amosync.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if err := structValidator().Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			for _, fe := range fieldErrs {
				errs = append(errs, fmt.Errorf("%s: failed %q validation (value %v)", fe.Namespace(), fe.ActualTag(), fe.Value()))
			}
		} else {
			errs = append(errs, err)
		}
	}

	switch c.Storage.Backend {
	case BackendLocal:
		if c.Storage.Root == "" {
			errs = append(errs, errors.New("storage root is required for the local backend"))
		}
	case BackendS3, BackendGCS:
		if c.Storage.Bucket == "" {
			errs = append(errs, fmt.Errorf("storage bucket is required for the %s backend", c.Storage.Backend))
		}
	}

	if (c.Storage.AccessKeyID == "") != (c.Storage.SecretAccessKey == "") {
		errs = append(errs, errors.New("access key id and secret access key must be set together"))
	}

	start, end, err := c.Sync.Range()
	if err != nil {
		errs = append(errs, err)
	} else if start != nil && end != nil && start.After(*end) {
		errs = append(errs, fmt.Errorf("start date %s is after end date %s", c.Sync.StartDate, c.Sync.EndDate))
	}

	return errors.Join(errs...)
}

// Range parses the configured start and end dates. A blank date yields nil.
func (s SyncConfig) Range() (start, end *time.Time, err error) {
	start, err = ParseDate(s.StartDate)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid start date: %w", err)
	}
	end, err = ParseDate(s.EndDate)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid end date: %w", err)
	}
	return start, end, nil
}

// ParseDate parses a YYYY-MM-DD date in UTC; the empty string yields nil
func ParseDate(value string) (*time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(DateLayout, strings.TrimSpace(value), time.UTC)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration.
// Callers only include flags the user actually set.
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if v, ok := flags["base-url"].(string); ok && v != "" {
		c.Upstream.BaseURL = v
	}
	if v, ok := flags["timeout"].(time.Duration); ok && v > 0 {
		c.Upstream.Timeout = v
	}
	if v, ok := flags["scratch-dir"].(string); ok && v != "" {
		c.Upstream.ScratchDir = v
	}
	if v, ok := flags["memory-limit"].(int); ok && v > 0 {
		c.Upstream.MemoryLimitMB = v
	}
	if v, ok := flags["workers"].(int); ok {
		c.Sync.Workers = v
	}
	if v, ok := flags["skip-existing"].(bool); ok {
		c.Sync.SkipExisting = v
	}
	if v, ok := flags["start"].(string); ok && v != "" {
		c.Sync.StartDate = v
	}
	if v, ok := flags["end"].(string); ok && v != "" {
		c.Sync.EndDate = v
	}
	if v, ok := flags["backend"].(string); ok && v != "" {
		c.Storage.Backend = v
	}
	if v, ok := flags["root"].(string); ok && v != "" {
		c.Storage.Root = v
	}
	if v, ok := flags["bucket"].(string); ok && v != "" {
		c.Storage.Bucket = v
	}
	if v, ok := flags["prefix"].(string); ok && v != "" {
		c.Storage.Prefix = v
	}
	if v, ok := flags["metrics-listen"].(string); ok && v != "" {
		c.Metrics.Enabled = true
		c.Metrics.Listen = v
	}
	if v, ok := flags["log-level"].(string); ok && v != "" {
		c.Logging.Level = v
	}
	if v, ok := flags["log-file"].(string); ok && v != "" {
		c.Logging.File = v
	}
}

// Load loads configuration from all sources with proper precedence.
// Precedence order: flags > environment (including .env) > config file > defaults.
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".amosync.env"))

	cfg := DefaultConfig()

	if err := cfg.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := cfg.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg.MergeCommandLineFlags(flags)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}
