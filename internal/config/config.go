package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Database drivers.
const (
	DriverMemory = "memory"
	DriverRedis  = "redis"
	DriverValkey = "valkey"
)

// Config holds the planguard server configuration.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	CORS     CORSConfig     `yaml:"cors"`
	Logging  LoggingConfig  `yaml:"logging"`
	Ledger   LedgerConfig   `yaml:"ledger"`
	Alerts   AlertsConfig   `yaml:"alerts"`
	Catalog  CatalogConfig  `yaml:"catalog"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// CORSConfig lists origins allowed to call the API from a browser.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds ledger store connection settings.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // memory, redis, valkey (default: memory)
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// LedgerConfig holds usage ledger settings.
type LedgerConfig struct {
	TimeoutMs      int    `yaml:"timeout_ms"`
	ArchiveTTLDays int    `yaml:"archive_ttl_days"`
	KeyPrefix      string `yaml:"key_prefix"`
}

// Timeout returns the per-call store timeout.
func (c LedgerConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// ArchiveTTL returns how long closed periods stay readable.
func (c LedgerConfig) ArchiveTTL() time.Duration {
	return time.Duration(c.ArchiveTTLDays) * 24 * time.Hour
}

// AlertsConfig holds alert dispatch settings.
type AlertsConfig struct {
	DefaultThresholdPct float64       `yaml:"default_threshold_pct"`
	QueueSize           int           `yaml:"queue_size"`
	Workers             int           `yaml:"workers"`
	SendTimeoutMs       int           `yaml:"send_timeout_ms"`
	Webhook             WebhookConfig `yaml:"webhook"`
	Stream              StreamConfig  `yaml:"stream"`
}

// WebhookConfig points at the notification service.
type WebhookConfig struct {
	URL   string `yaml:"url"`
	Token string `yaml:"token"`
}

// StreamConfig enables the Redis/Valkey alert stream.
type StreamConfig struct {
	Enabled bool   `yaml:"enabled"`
	Name    string `yaml:"name"`
	MaxLen  int64  `yaml:"max_len"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
// A .env file in the working directory, when present, is loaded first.
func Load(env string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}

	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse expands env variables in data, decodes it, applies defaults and validates.
func Parse(data []byte) (Config, error) {
	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.Driver == "" {
		c.Database.Driver = DriverMemory
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Ledger.TimeoutMs <= 0 {
		c.Ledger.TimeoutMs = 2000
	}
	if c.Ledger.ArchiveTTLDays <= 0 {
		c.Ledger.ArchiveTTLDays = 400
	}
	if c.Ledger.KeyPrefix == "" {
		c.Ledger.KeyPrefix = "planguard:"
	}
	if c.Alerts.DefaultThresholdPct == 0 {
		c.Alerts.DefaultThresholdPct = 80
	}
	if c.Alerts.QueueSize <= 0 {
		c.Alerts.QueueSize = 1024
	}
	if c.Alerts.Workers <= 0 {
		c.Alerts.Workers = 2
	}
	if c.Alerts.SendTimeoutMs <= 0 {
		c.Alerts.SendTimeoutMs = 5000
	}
	if c.Alerts.Stream.Name == "" {
		c.Alerts.Stream.Name = c.Ledger.KeyPrefix + "alerts"
	}
	if c.Alerts.Stream.MaxLen == 0 {
		c.Alerts.Stream.MaxLen = 10_000
	}
	if c.Catalog.Sync.IntervalSec <= 0 {
		c.Catalog.Sync.IntervalSec = 300
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.Database.Driver {
	case DriverMemory:
	case DriverRedis, DriverValkey:
		if len(c.Database.Addrs) == 0 {
			return fmt.Errorf("database.addrs is required for driver %q", c.Database.Driver)
		}
	default:
		return fmt.Errorf("database.driver must be memory, redis or valkey, got %q", c.Database.Driver)
	}
	if t := c.Alerts.DefaultThresholdPct; t <= 0 || t > 100 {
		return fmt.Errorf("alerts.default_threshold_pct must be in (0, 100], got %v", t)
	}
	if c.Alerts.Stream.Enabled && c.Database.Driver == DriverMemory {
		return fmt.Errorf("alerts.stream requires a redis or valkey database")
	}
	if c.Catalog.Sync.Enabled && c.Catalog.Sync.BaseURL == "" && c.Catalog.Sync.APIKey == "" {
		return fmt.Errorf("catalog.sync needs base_url or api_key")
	}
	return c.Catalog.Validate()
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
