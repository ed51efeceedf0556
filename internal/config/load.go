package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every environment variable read by Load,
// e.g. COURSEHUB_SERVER_PORT or COURSEHUB_LEDGER_AUTO_APPROVE.
const EnvPrefix = "COURSEHUB"

// Load configuration from environment variables and optionally a
// config.yaml in the working directory.
// Environment variables take precedence over values from config files.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	return LoadFrom(".")
}

// LoadFrom is Load with an explicit directory to search for config.yaml.
func LoadFrom(dir string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Keys without defaults are invisible to Unmarshal unless bound.
	for _, key := range []string{"database.url", "auth.jwt_secret", "queue.redis_addr"} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks struct tags and the rules that span sections.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if cfg.Storage.Driver == "postgres" && cfg.Database.URL == "" {
		return errors.New("invalid configuration: database.url is required for the postgres storage driver")
	}

	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.shutdown_timeout", 15*time.Second)
	v.SetDefault("server.production", false)

	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 25)

	v.SetDefault("storage.driver", "postgres")
	v.SetDefault("storage.seed_file", "")

	v.SetDefault("ledger.auto_approve", true)
	v.SetDefault("ledger.max_retries", 3)
	v.SetDefault("ledger.retry_base_delay", 20*time.Millisecond)

	v.SetDefault("queue.enabled", false)
	v.SetDefault("queue.name", "enrollment")

	v.SetDefault("rate_limit.enroll_per_minute", 30)
}
