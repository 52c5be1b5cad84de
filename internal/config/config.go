package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"MarketScout/internal/watchlist"
)

// DefaultPath is used when CONFIG_PATH is not set.
const DefaultPath = "configs/config.yaml"

// DefaultLookbackDays is in calendar days. It yields a little over 200
// trading days, enough for the 200-bar EMA behind the trend.
const DefaultLookbackDays = 300

// Storage backends.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
)

// Config holds all application configuration. Durations are in seconds.
type Config struct {
	Finnhub struct {
		APIKey  string `yaml:"api_key"`
		BaseURL string `yaml:"base_url"`
	} `yaml:"finnhub"`
	Yahoo struct {
		ChartURL string `yaml:"chart_url"`
		PageURL  string `yaml:"page_url"`
	} `yaml:"yahoo"`
	Collector struct {
		UpdateInterval int    `yaml:"update_interval"`
		LookbackDays   int    `yaml:"lookback_days"`
		FaultBackoff   int    `yaml:"fault_backoff"`
		StopTimeout    int    `yaml:"stop_timeout"`
		VolatilityCron string `yaml:"volatility_cron"`
	} `yaml:"collector"`
	RateLimit struct {
		Calls         int `yaml:"calls"`
		Window        int `yaml:"window"`
		WarnThreshold int `yaml:"warn_threshold"`
	} `yaml:"rate_limit"`
	Cache struct {
		TTL int `yaml:"ttl"`
	} `yaml:"cache"`
	Watchlist struct {
		Protected []string `yaml:"protected"`
	} `yaml:"watchlist"`
	Storage struct {
		Backend string `yaml:"backend"`
		DataDir string `yaml:"data_dir"`
		Redis   struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
	} `yaml:"storage"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	HTTP struct {
		Timeout int    `yaml:"timeout"`
		Proxy   string `yaml:"proxy"`
	} `yaml:"http"`
	Metrics struct {
		Addr string `yaml:"addr"` // empty disables the server
	} `yaml:"metrics"`
	Log struct {
		Level          string `yaml:"level"`
		Format         string `yaml:"format"`
		TracingEnabled bool   `yaml:"tracing_enabled"`
	} `yaml:"log"`
}

// Path returns CONFIG_PATH or the default config path.
func Path() string {
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		return v
	}
	return DefaultPath
}

// Load reads .env and the YAML file at path, then applies environment
// variable overrides and defaults. Missing files are not an error.
func Load(path string) (*Config, error) {
	// .env is optional; variables already set in the environment win.
	_ = godotenv.Load()

	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func envInt(key string, dst *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func (c *Config) applyEnv() error {
	envString("FINNHUB_API_KEY", &c.Finnhub.APIKey)
	envString("FINNHUB_BASE_URL", &c.Finnhub.BaseURL)
	envString("HTTPS_PROXY", &c.HTTP.Proxy)
	envString("STORAGE_BACKEND", &c.Storage.Backend)
	envString("DATA_DIR", &c.Storage.DataDir)
	envString("REDIS_ADDR", &c.Storage.Redis.Addr)
	envString("REDIS_PASSWORD", &c.Storage.Redis.Password)
	envString("SQLITE_PATH", &c.Database.SQLitePath)
	envString("METRICS_ADDR", &c.Metrics.Addr)
	envString("LOG_LEVEL", &c.Log.Level)
	envString("LOG_FORMAT", &c.Log.Format)
	if v := os.Getenv("LOG_TRACING_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("LOG_TRACING_ENABLED: %w", err)
		}
		c.Log.TracingEnabled = enabled
	}
	return envInt("UPDATE_INTERVAL", &c.Collector.UpdateInterval)
}

func (c *Config) applyDefaults() {
	if c.Collector.UpdateInterval == 0 {
		c.Collector.UpdateInterval = 300
	}
	if c.Collector.LookbackDays == 0 {
		c.Collector.LookbackDays = DefaultLookbackDays
	}
	if c.Collector.FaultBackoff == 0 {
		c.Collector.FaultBackoff = 5
	}
	if c.Collector.StopTimeout == 0 {
		c.Collector.StopTimeout = 10
	}
	if c.Collector.VolatilityCron == "" {
		c.Collector.VolatilityCron = "0 */15 * * * *"
	}
	if c.RateLimit.Calls == 0 {
		c.RateLimit.Calls = 60
	}
	if c.RateLimit.Window == 0 {
		c.RateLimit.Window = 60
	}
	if c.RateLimit.WarnThreshold == 0 {
		// warn at 55 of every 60 allowed calls
		c.RateLimit.WarnThreshold = max(c.RateLimit.Calls*55/60, 1)
	}
	if c.Cache.TTL == 0 {
		c.Cache.TTL = 300
	}
	if len(c.Watchlist.Protected) == 0 {
		c.Watchlist.Protected = append([]string(nil), watchlist.DefaultProtected...)
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = BackendFile
	}
	if c.Storage.DataDir == "" {
		c.Storage.DataDir = "data"
	}
	if c.Storage.Redis.Addr == "" {
		c.Storage.Redis.Addr = "localhost:6379"
	}
	if c.Storage.Redis.Prefix == "" {
		c.Storage.Redis.Prefix = "scout"
	}
	if c.Database.SQLitePath == "" {
		c.Database.SQLitePath = "data/scout.db"
	}
	if c.HTTP.Timeout == 0 {
		c.HTTP.Timeout = 10
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
}

// Validate checks that required fields are set and values are usable.
func (c *Config) Validate() error {
	if c.Finnhub.APIKey == "" {
		return fmt.Errorf("finnhub.api_key is required")
	}
	if c.Collector.UpdateInterval <= 0 {
		return fmt.Errorf("collector.update_interval must be positive")
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be positive")
	}
	if c.RateLimit.Calls <= 0 || c.RateLimit.Window <= 0 {
		return fmt.Errorf("rate_limit.calls and rate_limit.window must be positive")
	}
	if c.RateLimit.WarnThreshold > c.RateLimit.Calls {
		return fmt.Errorf("rate_limit.warn_threshold (%d) exceeds rate_limit.calls (%d)",
			c.RateLimit.WarnThreshold, c.RateLimit.Calls)
	}
	switch strings.ToLower(c.Storage.Backend) {
	case BackendMemory, BackendFile, BackendRedis:
	default:
		return fmt.Errorf("unknown storage.backend %q", c.Storage.Backend)
	}
	for _, t := range c.Watchlist.Protected {
		if !watchlist.ValidateTicker(t) {
			return fmt.Errorf("invalid protected ticker %q", t)
		}
	}
	return nil
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

// UpdateInterval is the pause between collection cycles.
func (c *Config) UpdateInterval() time.Duration { return seconds(c.Collector.UpdateInterval) }

// FaultBackoff is the pause after a failed cycle.
func (c *Config) FaultBackoff() time.Duration { return seconds(c.Collector.FaultBackoff) }

// StopTimeout bounds how long Stop waits for the collector loop.
func (c *Config) StopTimeout() time.Duration { return seconds(c.Collector.StopTimeout) }

// CacheTTL is the default cache time-to-live.
func (c *Config) CacheTTL() time.Duration { return seconds(c.Cache.TTL) }

// RateWindow is the rate limiter window.
func (c *Config) RateWindow() time.Duration { return seconds(c.RateLimit.Window) }

// HTTPTimeout bounds each provider call.
func (c *Config) HTTPTimeout() time.Duration { return seconds(c.HTTP.Timeout) }
