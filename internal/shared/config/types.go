package config

import (
	"fmt"
	"time"
)

type ServerConfig struct {
	Host           string   `mapstructure:"host"`
	Port           int      `mapstructure:"port"`
	Mode           string   `mapstructure:"mode"`
	BaseURL        string   `mapstructure:"base_url"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

func (s *ServerConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Username        string `mapstructure:"username"`
	Password        string `mapstructure:"password"`
	Database        string `mapstructure:"database"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
}

func (d *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		d.Username, d.Password, d.Host, d.Port, d.Database)
}

type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Enabled  bool   `mapstructure:"enabled"`
}

func (r *RedisConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// WebhookConfig controls outbound webhook delivery behavior.
type WebhookConfig struct {
	// RequestTimeoutSeconds bounds a single delivery HTTP call.
	RequestTimeoutSeconds int `mapstructure:"request_timeout_seconds"`
	// MaxAttempts is the number of attempts before a delivery dead-letters.
	MaxAttempts int `mapstructure:"max_attempts"`
	// BackoffBaseSeconds is the base interval for exponential backoff.
	BackoffBaseSeconds int `mapstructure:"backoff_base_seconds"`
	// BackoffMaxSeconds caps the backoff interval.
	BackoffMaxSeconds int `mapstructure:"backoff_max_seconds"`
	// ClaimLeaseSeconds is how long a claimed delivery stays invisible to
	// other dispatchers before an abandoned claim becomes due again.
	ClaimLeaseSeconds int `mapstructure:"claim_lease_seconds"`
	// BatchSize bounds the number of due deliveries claimed per poll.
	BatchSize int `mapstructure:"batch_size"`
	// Workers is the number of concurrent senders per dispatcher process.
	Workers int `mapstructure:"workers"`
	// PollIntervalSeconds is the dispatcher poll cadence when idle.
	PollIntervalSeconds int `mapstructure:"poll_interval_seconds"`
}

func (w *WebhookConfig) RequestTimeout() time.Duration {
	return time.Duration(w.RequestTimeoutSeconds) * time.Second
}

func (w *WebhookConfig) BackoffBase() time.Duration {
	return time.Duration(w.BackoffBaseSeconds) * time.Second
}

func (w *WebhookConfig) BackoffMax() time.Duration {
	return time.Duration(w.BackoffMaxSeconds) * time.Second
}

func (w *WebhookConfig) ClaimLease() time.Duration {
	return time.Duration(w.ClaimLeaseSeconds) * time.Second
}

func (w *WebhookConfig) PollInterval() time.Duration {
	return time.Duration(w.PollIntervalSeconds) * time.Second
}

type MailConfig struct {
	SMTPHost     string `mapstructure:"smtp_host"`
	SMTPPort     int    `mapstructure:"smtp_port"`
	SMTPUser     string `mapstructure:"smtp_user"`
	SMTPPassword string `mapstructure:"smtp_password"`
	FromAddress  string `mapstructure:"from_address"`
	FromName     string `mapstructure:"from_name"`
	// OperatorAddress receives dead-letter alert digests. Empty disables alerts.
	OperatorAddress string `mapstructure:"operator_address"`
}
