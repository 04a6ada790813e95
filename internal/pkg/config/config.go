package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// NewConfig creates and returns a new Config instance
// It loads configuration from file, environment variables, and defaults
func NewConfig() (*Config, error) {
	v := viper.New()

	// Set default values
	setDefaults(v)

	// Set config file name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")     // Standard config directory
	v.AddConfigPath(".")            // Current directory
	v.AddConfigPath("../../config") // Two levels up (when running from service/*/cmd/)

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		// It's okay if config file doesn't exist, we'll use defaults and env vars
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Enable environment variable overrides
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("CRAWLD")

	// Unmarshal config into struct; durations accept strings like "500ms"
	var config Config
	decodeHook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&config, decodeHook); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate config
	if err := validator.New().Struct(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("server.shutdown_timeout", 10)

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
	v.SetDefault("logger.output_path", "stdout")

	// Redis defaults
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)
	v.SetDefault("redis.dial_timeout_sec", 5)
	v.SetDefault("redis.read_timeout_sec", 3)
	v.SetDefault("redis.write_timeout_sec", 3)

	// Database defaults (batch history archive)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "crawld")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 300)

	// Dispatch defaults
	v.SetDefault("dispatch.concurrency", 10)
	v.SetDefault("dispatch.rate_per_sec", 0)
	v.SetDefault("dispatch.max_retries", 3)
	v.SetDefault("dispatch.retry_base_delay", "1s")
	v.SetDefault("dispatch.retry_max_delay", "60s")
	v.SetDefault("dispatch.default_timeout", "0s")
	v.SetDefault("dispatch.queue", "fifo")
	v.SetDefault("dispatch.poll_interval", "100ms")

	// Rate limiter defaults
	v.SetDefault("rate.strategy", "token_bucket")
	v.SetDefault("rate.rate", 10)
	v.SetDefault("rate.burst", 10)
	v.SetDefault("rate.interval", "1s")
	v.SetDefault("rate.ttl", "5m")
	v.SetDefault("rate.storage", "memory")

	// Pool defaults
	v.SetDefault("pool.kind", "memory")
	v.SetDefault("pool.quarantine", "5m")
	v.SetDefault("pool.key_prefix", "crawld:pool")

	// Cron defaults
	v.SetDefault("cron.tick_interval", "5s")
	v.SetDefault("cron.max_concurrent", 4)

	// History defaults
	v.SetDefault("history.enabled", false)
}
