package config

import (
	"time"

	"github.com/phrazzld/throttleq/internal/task"
)

// Journal drivers.
const (
	JournalDriverNone     = "none"
	JournalDriverFile     = "file"
	JournalDriverPostgres = "postgres"
)

// Config holds all application configuration.
type Config struct {
	Queue    QueueConfig    `mapstructure:"queue"`
	Journal  JournalConfig  `mapstructure:"journal"`
	Log      LogConfig      `mapstructure:"log"`
	Server   ServerConfig   `mapstructure:"server"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Fetch    FetchConfig    `mapstructure:"fetch"`
	Database DatabaseConfig `mapstructure:"database"`
	Progress ProgressConfig `mapstructure:"progress"`
}

// QueueConfig mirrors task.QueueConfig.
type QueueConfig struct {
	MaxConcurrent       int           `mapstructure:"max_concurrent" validate:"gte=1"`
	Retry               bool          `mapstructure:"retry"`
	MaxRetries          int           `mapstructure:"max_retries" validate:"gte=0"`
	WaitBetweenRequests time.Duration `mapstructure:"wait_between_requests" validate:"gte=0"`
	RetryDelay          time.Duration `mapstructure:"retry_delay" validate:"gte=0"`
	AutoStart           bool          `mapstructure:"auto_start"`
}

// TaskConfig converts the settings into the queue's own configuration.
func (c QueueConfig) TaskConfig() task.QueueConfig {
	return task.QueueConfig{
		MaxConcurrent:       c.MaxConcurrent,
		Retry:               c.Retry,
		MaxRetries:          c.MaxRetries,
		WaitBetweenRequests: c.WaitBetweenRequests,
		RetryDelay:          c.RetryDelay,
		AutoStart:           c.AutoStart,
	}
}

// JournalConfig selects where completed results are recorded.
type JournalConfig struct {
	Driver string `mapstructure:"driver" validate:"oneof=none file postgres"`

	// Path is the file journal location; empty creates a temp file
	Path string `mapstructure:"path"`

	// Name identifies the journal in the database
	Name string `mapstructure:"name" validate:"required_if=Driver postgres"`

	// Reset discards existing records at startup
	Reset bool `mapstructure:"reset"`
}

// LogConfig controls the structured logger.
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn warning error"`
	Format string `mapstructure:"format" validate:"oneof=json text"`
}

// ServerConfig contains the admin HTTP server settings.
type ServerConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Port            int           `mapstructure:"port" validate:"gt=0,lt=65536"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

// AuthConfig contains the operator token settings.
type AuthConfig struct {
	JWTSecret     string        `mapstructure:"jwt_secret" validate:"omitempty,min=32"`
	Issuer        string        `mapstructure:"issuer" validate:"required"`
	TokenLifetime time.Duration `mapstructure:"token_lifetime" validate:"gt=0"`
}

// FetchConfig describes the paginated fetch job. An empty BaseURL disables it.
type FetchConfig struct {
	BaseURL     string        `mapstructure:"base_url" validate:"omitempty,url"`
	CursorParam string        `mapstructure:"cursor_param" validate:"required"`
	Timeout     time.Duration `mapstructure:"timeout" validate:"gt=0"`

	// StartCursor resumes paging from a known cursor instead of the first page
	StartCursor string `mapstructure:"start_cursor"`

	// Token is the remote API's bearer token. When empty, TokenIdentifier or
	// TokenFile locate a token saved with "throttleq token save".
	Token           string `mapstructure:"token"`
	TokenIdentifier string `mapstructure:"token_identifier"`
	TokenFile       string `mapstructure:"token_file"`
}

// DatabaseConfig contains the PostgreSQL settings used by the postgres journal.
type DatabaseConfig struct {
	URL             string        `mapstructure:"url" validate:"omitempty,url"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"gte=0"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" validate:"gte=0"`
}

// ProgressConfig controls the terminal progress reporter.
type ProgressConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval" validate:"gt=0"`
}
