package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server    ServerConfig    `mapstructure:"server" validate:"required"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Storage   StorageConfig   `mapstructure:"storage" validate:"required"`
	Auth      AuthConfig      `mapstructure:"auth" validate:"required"`
	Ledger    LedgerConfig    `mapstructure:"ledger" validate:"required"`
	Queue     QueueConfig     `mapstructure:"queue"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port            int           `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel        string        `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
	Production      bool          `mapstructure:"production"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL          string `mapstructure:"url" validate:"omitempty,url"`
	MaxOpenConns int    `mapstructure:"max_open_conns" validate:"gte=0"`
	MaxIdleConns int    `mapstructure:"max_idle_conns" validate:"gte=0"`
}

// StorageConfig selects the backing store for enrollments and the catalog.
// The memory driver keeps everything in process and is meant for local
// development and demos.
type StorageConfig struct {
	Driver string `mapstructure:"driver" validate:"required,oneof=postgres memory"`
	// SeedFile is a YAML catalog loaded into the memory driver at startup.
	SeedFile string `mapstructure:"seed_file"`
}

// AuthConfig contains the settings used to verify bearer tokens.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret" validate:"required,min=32"`
}

// LedgerConfig controls enrollment behaviour.
type LedgerConfig struct {
	// AutoApprove makes enroll attempt an immediate approval of the new
	// enrollment in the same transaction.
	AutoApprove bool `mapstructure:"auto_approve"`
	// MaxRetries bounds how many times an operation is retried after a
	// concurrency conflict.
	MaxRetries     int           `mapstructure:"max_retries" validate:"gte=0,lte=20"`
	RetryBaseDelay time.Duration `mapstructure:"retry_base_delay" validate:"gte=0"`
}

// QueueConfig controls publishing of enrollment events to the task queue.
type QueueConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	RedisAddr string `mapstructure:"redis_addr" validate:"required_if=Enabled true"`
	Name      string `mapstructure:"name" validate:"required"`
}

// RateLimitConfig limits how fast a single client may submit enrollments.
type RateLimitConfig struct {
	EnrollPerMinute int `mapstructure:"enroll_per_minute" validate:"gte=0"`
}
