package config

import "time"

// Config holds the application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
	Logger   LoggerConfig   `mapstructure:"logger" validate:"required"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Database DatabaseConfig `mapstructure:"database"`
	Dispatch DispatchConfig `mapstructure:"dispatch" validate:"required"`
	Rate     RateConfig     `mapstructure:"rate"`
	Pool     PoolConfig     `mapstructure:"pool"`
	Cron     CronConfig     `mapstructure:"cron"`
	History  HistoryConfig  `mapstructure:"history"`
}

// ServerConfig holds the ops HTTP server configuration
type ServerConfig struct {
	Host            string `mapstructure:"host" validate:"required"`
	Port            int    `mapstructure:"port" validate:"required,gt=0,lte=65535"`
	ReadTimeout     int    `mapstructure:"read_timeout" validate:"gte=0"`
	WriteTimeout    int    `mapstructure:"write_timeout" validate:"gte=0"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout" validate:"gte=0"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	Format     string `mapstructure:"format" validate:"required,oneof=json console"`
	OutputPath string `mapstructure:"output_path" validate:"required"`
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Addr            string `mapstructure:"addr"`
	Username        string `mapstructure:"username"`
	Password        string `mapstructure:"password"`
	DB              int    `mapstructure:"db" validate:"gte=0"`
	PoolSize        int    `mapstructure:"pool_size" validate:"gte=1"`
	MinIdleConns    int    `mapstructure:"min_idle_conns" validate:"gte=0"`
	DialTimeoutSec  int    `mapstructure:"dial_timeout_sec" validate:"gte=0"`
	ReadTimeoutSec  int    `mapstructure:"read_timeout_sec" validate:"gte=0"`
	WriteTimeoutSec int    `mapstructure:"write_timeout_sec" validate:"gte=0"`
	TLS             bool   `mapstructure:"tls"`
}

// DatabaseConfig holds the batch history database configuration
type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port" validate:"omitempty,gt=0,lte=65535"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"dbname"`
	SSLMode         string `mapstructure:"sslmode" validate:"omitempty,oneof=disable require verify-ca verify-full"`
	MaxOpenConns    int    `mapstructure:"max_open_conns" validate:"gte=0"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime" validate:"gte=0"`
}

// DispatchConfig holds batch dispatcher configuration
type DispatchConfig struct {
	Concurrency    int           `mapstructure:"concurrency" validate:"required,gte=1"`
	RatePerSec     float64       `mapstructure:"rate_per_sec" validate:"gte=0"`
	MaxRetries     int           `mapstructure:"max_retries" validate:"gte=0"`
	RetryBaseDelay time.Duration `mapstructure:"retry_base_delay" validate:"gte=0"`
	RetryMaxDelay  time.Duration `mapstructure:"retry_max_delay" validate:"gte=0"`
	DefaultTimeout time.Duration `mapstructure:"default_timeout" validate:"gte=0"`
	Queue          string        `mapstructure:"queue" validate:"oneof=fifo priority delayed"`
	PollInterval   time.Duration `mapstructure:"poll_interval" validate:"gte=0"`
}

// RateConfig holds the shared fetch rate limiter configuration
type RateConfig struct {
	Strategy string        `mapstructure:"strategy" validate:"oneof=token_bucket leaky_bucket fixed_window sliding_window"`
	Rate     int           `mapstructure:"rate" validate:"gte=1"`
	Burst    int           `mapstructure:"burst" validate:"gte=1"`
	Interval time.Duration `mapstructure:"interval" validate:"gt=0"`
	TTL      time.Duration `mapstructure:"ttl" validate:"gte=0"`
	Storage  string        `mapstructure:"storage" validate:"oneof=memory redis"`
}

// PoolConfig holds cookie/proxy pool configuration
type PoolConfig struct {
	Kind       string        `mapstructure:"kind" validate:"oneof=memory redis"`
	Quarantine time.Duration `mapstructure:"quarantine" validate:"gte=0"`
	KeyPrefix  string        `mapstructure:"key_prefix"`
}

// CronConfig holds the recurring batch scheduler configuration
type CronConfig struct {
	TickInterval  time.Duration `mapstructure:"tick_interval" validate:"gte=0"`
	MaxConcurrent int           `mapstructure:"max_concurrent" validate:"gte=0"`
}

// HistoryConfig controls archival of completed batches
type HistoryConfig struct {
	Enabled bool `mapstructure:"enabled"`
}
