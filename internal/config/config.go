package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the newsdex service configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Feeds     []FeedConfig    `yaml:"feeds"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Retention RetentionConfig `yaml:"retention"`
	Grouping  GroupingConfig  `yaml:"grouping"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds storage backend settings.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // sqlite, redis (default: sqlite)
	Path             string   `yaml:"path"`   // sqlite database file
	Addrs            []string `yaml:"addrs"`  // redis addresses
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	ItemTTLDays      int      `yaml:"item_ttl_days"` // redis row expiry
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// FeedConfig describes one ingestion source.
type FeedConfig struct {
	URL      string `yaml:"url"`
	Source   string `yaml:"source"`
	Category string `yaml:"category"`
}

// IngestConfig tunes the ingestion loop.
type IngestConfig struct {
	FetchIntervalMin   int `yaml:"fetch_interval_min"`
	HousekeepIntervalH int `yaml:"housekeep_interval_hours"`
	RetainDays         int `yaml:"retain_days"`
	OpTimeoutSec       int `yaml:"op_timeout_sec"`
}

// RetentionConfig tunes the retention loop.
type RetentionConfig struct {
	IntervalMin     int `yaml:"interval_min"`
	RunTimeoutSec   int `yaml:"run_timeout_sec"`
	DegradeHorizonH int `yaml:"degrade_horizon_hours"`
	EvictHorizonH   int `yaml:"evict_horizon_hours"`
}

// GroupingConfig is the read-time clustering feature flag.
type GroupingConfig struct {
	Enabled   *bool   `yaml:"enabled"` // nil means enabled
	Threshold float64 `yaml:"threshold"`
}

// IsEnabled reports the flag with its enabled-by-default semantics.
func (g GroupingConfig) IsEnabled() bool {
	return g.Enabled == nil || *g.Enabled
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

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
		c.Database.Driver = "sqlite"
	}
	if c.Database.Path == "" {
		c.Database.Path = "newsdex.db"
	}
	if c.Database.ItemTTLDays <= 0 {
		c.Database.ItemTTLDays = 7
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Ingest.FetchIntervalMin <= 0 {
		c.Ingest.FetchIntervalMin = 10
	}
	if c.Ingest.HousekeepIntervalH <= 0 {
		c.Ingest.HousekeepIntervalH = 24
	}
	if c.Ingest.RetainDays <= 0 {
		c.Ingest.RetainDays = 7
	}
	if c.Ingest.OpTimeoutSec <= 0 {
		c.Ingest.OpTimeoutSec = 30
	}
	if c.Retention.IntervalMin <= 0 {
		c.Retention.IntervalMin = 60
	}
	if c.Retention.RunTimeoutSec <= 0 {
		c.Retention.RunTimeoutSec = 60
	}
	if c.Retention.DegradeHorizonH <= 0 {
		c.Retention.DegradeHorizonH = 1
	}
	if c.Retention.EvictHorizonH <= 0 {
		c.Retention.EvictHorizonH = 24
	}
	if c.Grouping.Threshold <= 0 {
		c.Grouping.Threshold = 0.3
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.Database.Driver {
	case "sqlite":
		// path always defaulted
	case "redis":
		if len(c.Database.Addrs) == 0 {
			return fmt.Errorf("database.addrs is required for the redis driver")
		}
	default:
		return fmt.Errorf("database.driver must be \"sqlite\" or \"redis\", got %q", c.Database.Driver)
	}
	if c.Grouping.Threshold > 1 {
		return fmt.Errorf("grouping.threshold must be in (0, 1], got %v", c.Grouping.Threshold)
	}
	for i, f := range c.Feeds {
		if f.URL == "" {
			return fmt.Errorf("feeds[%d].url is required", i)
		}
		if f.Source == "" {
			return fmt.Errorf("feeds[%d].source is required", i)
		}
	}
	return nil
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
