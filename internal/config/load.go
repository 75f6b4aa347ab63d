package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "THROTTLEQ"

var defaults = map[string]any{
	"queue.max_concurrent":        1,
	"queue.retry":                 false,
	"queue.max_retries":           3,
	"queue.wait_between_requests": "1s",
	"queue.retry_delay":           "0s",
	"queue.auto_start":            true,

	"journal.driver": JournalDriverFile,
	"journal.path":   "",
	"journal.name":   "",
	"journal.reset":  false,

	"log.level":  "info",
	"log.format": "json",

	"server.enabled":          false,
	"server.port":             8080,
	"server.shutdown_timeout": "10s",

	"auth.jwt_secret":     "",
	"auth.issuer":         "throttleq",
	"auth.token_lifetime": "24h",

	"fetch.base_url":         "",
	"fetch.cursor_param":     "cursor",
	"fetch.timeout":          "30s",
	"fetch.start_cursor":     "",
	"fetch.token":            "",
	"fetch.token_identifier": "",
	"fetch.token_file":       "",

	"database.url":               "",
	"database.max_open_conns":    5,
	"database.max_idle_conns":    2,
	"database.conn_max_lifetime": "5m",

	"progress.enabled":  true,
	"progress.interval": "1s",
}

// Load reads configuration from defaults, an optional config.yaml in the
// working directory or ./config, and environment variables.
func Load() (*Config, error) {
	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return decode(v)
}

// LoadFile is like Load but reads the given config file, which must exist.
func LoadFile(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return decode(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints and the rules that span sections.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	if c.Journal.Driver == JournalDriverPostgres && c.Database.URL == "" {
		return fmt.Errorf("config validation failed: database.url is required for the postgres journal")
	}
	if c.Server.Enabled && c.Auth.JWTSecret == "" {
		return fmt.Errorf("config validation failed: auth.jwt_secret is required when the admin server is enabled")
	}
	return nil
}
