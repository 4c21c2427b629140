// Package config loads the confirmation core's configuration via viper,
// binding environment variables over a YAML file and applying defaults.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the confirmation core's full runtime configuration.
type Config struct {
	Confirmation ConfirmationConfig `mapstructure:"confirmation"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Cache        CacheConfig        `mapstructure:"cache"`
	Log          LogConfig          `mapstructure:"log"`
	App          AppConfig          `mapstructure:"app"`
}

// ConfirmationConfig holds the confirmation core's own knobs.
type ConfirmationConfig struct {
	// TTLMinutes is how long a prepared action remains confirmable before
	// it expires (spec's single numeric knob).
	TTLMinutes int `mapstructure:"ttl_minutes"`

	// PreviewCacheSize bounds the in-process LRU of rendered previews
	// consulted by ListPendingActions.
	PreviewCacheSize int `mapstructure:"preview_cache_size"`

	// RateLimitPerMinute bounds PrepareAction calls per user_id; 0 disables
	// the limiter.
	RateLimitPerMinute int `mapstructure:"rate_limit_per_minute"`

	// Backend selects which cache.Provider backs the store: "redis" or
	// "memory".
	Backend string `mapstructure:"backend"`
}

// RedisConfig holds Redis connection settings, used when
// Confirmation.Backend == "redis".
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`

	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`

	MaxRetries      int           `mapstructure:"max_retries"`
	MinRetryBackoff time.Duration `mapstructure:"min_retry_backoff"`
	MaxRetryBackoff time.Duration `mapstructure:"max_retry_backoff"`
}

// CacheConfig holds generic cache-provider tuning shared by both backends.
type CacheConfig struct {
	DefaultTTL time.Duration `mapstructure:"default_ttl"`
}

// LogConfig mirrors pkg/logger.Config so it can be loaded straight from
// viper and passed through unchanged.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	Filename   string `mapstructure:"filename"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// AppConfig holds process-wide identity used in logging and metrics labels.
type AppConfig struct {
	Name string `mapstructure:"name"`
}

// LoadConfig reads configuration from a YAML file at configPath, overlays
// environment variables (CONFIRMATION_* mapped onto mapstructure paths via
// "." -> "_"), applies defaults for anything unset, and validates the
// result.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	setDefaults(v)
	bindEnv(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", configPath, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadConfigFromEnv builds configuration purely from defaults and
// environment variables, with no backing file. Used by cmd/confirmctl when
// no --config flag is given.
func LoadConfigFromEnv() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	bindEnv(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix("CONFIRMATION")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("confirmation.ttl_minutes", 10)
	v.SetDefault("confirmation.preview_cache_size", 1024)
	v.SetDefault("confirmation.rate_limit_per_minute", 30)
	v.SetDefault("confirmation.backend", "memory")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 1)
	v.SetDefault("redis.dial_timeout", "5s")
	v.SetDefault("redis.read_timeout", "3s")
	v.SetDefault("redis.write_timeout", "3s")
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.min_retry_backoff", "8ms")
	v.SetDefault("redis.max_retry_backoff", "512ms")

	v.SetDefault("cache.default_ttl", "10m")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("log.max_size", 100)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age", 28)
	v.SetDefault("log.compress", true)

	v.SetDefault("app.name", "confirmation-core")
}

// Validate checks invariants that viper's unmarshal can't enforce on its own.
func (c *Config) Validate() error {
	if c.Confirmation.TTLMinutes <= 0 {
		return fmt.Errorf("config: confirmation.ttl_minutes must be positive, got %d", c.Confirmation.TTLMinutes)
	}
	if c.Confirmation.Backend != "redis" && c.Confirmation.Backend != "memory" {
		return fmt.Errorf("config: confirmation.backend must be \"redis\" or \"memory\", got %q", c.Confirmation.Backend)
	}
	if c.Confirmation.Backend == "redis" && c.Redis.Addr == "" {
		return fmt.Errorf("config: redis.addr is required when confirmation.backend is \"redis\"")
	}
	if c.Confirmation.RateLimitPerMinute < 0 {
		return fmt.Errorf("config: confirmation.rate_limit_per_minute must not be negative")
	}
	return nil
}
