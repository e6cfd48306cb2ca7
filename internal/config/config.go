// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// TelegramBotToken is the Bot API token. Required by cmd/bot, unused by cmd/worker and cmd/migrate.
	TelegramBotToken string `mapstructure:"TELEGRAM_BOT_TOKEN"`
	// TelegramAPIBaseURL overrides the Bot API base URL (default https://api.telegram.org). Used in tests and for local bot-api servers.
	TelegramAPIBaseURL string `mapstructure:"TELEGRAM_API_BASE_URL"`
	// DatabaseURL is the Postgres DSN for the game store (telegram_links, game_accounts).
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// PollIntervalRaw is the link-table poll interval (e.g. "3s").
	PollIntervalRaw string `mapstructure:"POLL_INTERVAL"`
	// SweepIntervalRaw is the expired-code sweep interval (e.g. "5s").
	SweepIntervalRaw string `mapstructure:"SWEEP_INTERVAL"`
	// ErrorBackoffRaw is the delay after a failed poll or sweep tick (e.g. "10s").
	ErrorBackoffRaw string `mapstructure:"ERROR_BACKOFF"`
	// CodeTTLRaw is how long a verification code stays active (e.g. "1m").
	CodeTTLRaw string `mapstructure:"CODE_TTL"`
	// SupportURL is the support chat linked from user-facing messages (e.g. t.me/yourproject).
	SupportURL string `mapstructure:"SUPPORT_URL"`
	// NewsChannel is the news channel mentioned in the /start message (e.g. @yourchannel).
	NewsChannel string `mapstructure:"NEWS_CHANNEL"`
	// ServerLabel is the game server name shown in messages (e.g. "01").
	ServerLabel string `mapstructure:"SERVER_LABEL"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`

	// Link events (optional). When Kafka brokers are set, the bot emits link events to Kafka.
	// KafkaBrokers is a comma-separated list of Kafka broker addresses (e.g. "localhost:9092").
	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// LinkEventsKafkaTopic is the Kafka topic for link events (default linkbot-events).
	LinkEventsKafkaTopic string `mapstructure:"LINK_EVENTS_KAFKA_TOPIC"`
	// KafkaGroupID is the consumer group ID for the link-event worker.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`
	// LokiURL is the Loki base URL for the link-event worker (e.g. http://localhost:3100).
	LokiURL string `mapstructure:"LOKI_URL"`

	// OTLPEndpoint enables OTel export of link events when set and Kafka is not configured (e.g. http://localhost:4317).
	OTLPEndpoint string `mapstructure:"OTLP_ENDPOINT"`
	// OTLPInsecure forces plaintext OTLP even for https endpoints (standard OTEL_EXPORTER_OTLP_INSECURE behavior).
	OTLPInsecure bool `mapstructure:"OTLP_INSECURE"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("TELEGRAM_BOT_TOKEN", "")
	v.SetDefault("TELEGRAM_API_BASE_URL", "https://api.telegram.org")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("POLL_INTERVAL", "3s")
	v.SetDefault("SWEEP_INTERVAL", "5s")
	v.SetDefault("ERROR_BACKOFF", "10s")
	v.SetDefault("CODE_TTL", "1m")
	v.SetDefault("SUPPORT_URL", "")
	v.SetDefault("NEWS_CHANNEL", "")
	v.SetDefault("SERVER_LABEL", "01")
	v.SetDefault("APP_ENV", "")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("LINK_EVENTS_KAFKA_TOPIC", "linkbot-events")
	v.SetDefault("KAFKA_GROUP_ID", "linkbot-events-worker")
	v.SetDefault("LOKI_URL", "")
	v.SetDefault("OTLP_ENDPOINT", "")
	v.SetDefault("OTLP_INSECURE", false)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.TelegramAPIBaseURL == "" {
		return nil, errors.New("config: TELEGRAM_API_BASE_URL must be set")
	}
	for _, raw := range []string{cfg.PollIntervalRaw, cfg.SweepIntervalRaw, cfg.ErrorBackoffRaw, cfg.CodeTTLRaw} {
		if raw == "" {
			continue
		}
		if d, err := time.ParseDuration(raw); err != nil || d <= 0 {
			return nil, errors.New("config: POLL_INTERVAL, SWEEP_INTERVAL, ERROR_BACKOFF, and CODE_TTL must be positive durations")
		}
	}

	return &cfg, nil
}

// PollInterval parses POLL_INTERVAL as a time.Duration. Returns 3s if unset or invalid.
func (c *Config) PollInterval() time.Duration {
	return durationOr(c.PollIntervalRaw, 3*time.Second)
}

// SweepInterval parses SWEEP_INTERVAL as a time.Duration. Returns 5s if unset or invalid.
func (c *Config) SweepInterval() time.Duration {
	return durationOr(c.SweepIntervalRaw, 5*time.Second)
}

// ErrorBackoff parses ERROR_BACKOFF as a time.Duration. Returns 10s if unset or invalid.
func (c *Config) ErrorBackoff() time.Duration {
	return durationOr(c.ErrorBackoffRaw, 10*time.Second)
}

// CodeTTL parses CODE_TTL as a time.Duration. Returns 1m if unset or invalid.
func (c *Config) CodeTTL() time.Duration {
	return durationOr(c.CodeTTLRaw, time.Minute)
}

func durationOr(raw string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// KafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// Used to decide if link-event production is enabled (non-empty list) and to create the producer.
func (c *Config) KafkaBrokersList() []string {
	if c == nil || c.KafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.KafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
