// Package config loads and validates telemetry configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all telemetry suite configuration.
type Config struct {
	// Logging sinks.
	LogLevel         string // "debug", "info", "warn", "error"
	LogDir           string // Directory for file sinks; created on first use.
	ConsoleLog       bool   // Mirror events to stderr via slog.
	FileLog          bool   // Plain-text file sink.
	JSONLog          bool   // JSON-lines file sink.
	ReasoningLog     bool   // Reasoning JSON sink (LogDir/reasoning/).
	TextLogFile      string // File name of the plain-text sink, relative to LogDir.
	JSONLogFile      string // File name of the JSON-lines sink, relative to LogDir.
	ReasoningLogFile string // File name of the reasoning sink, relative to LogDir/reasoning/.

	// Durable event store. Empty disables the sqlite sink.
	SQLitePath string

	// In-memory retention.
	EventLogCapacity     int // Max events retained in memory.
	MetricCapacity       int // Max points per metric series.
	AlertHistoryCapacity int // Max fired alerts retained.

	// Background collection.
	CollectInterval time.Duration // System sampling / alert evaluation tick.

	// OTEL settings.
	OTELEndpoint string
	OTELInsecure bool
	ServiceName  string

	// Notification connectors. Empty URL/host disables the connector.
	SlackWebhookURL   string
	DiscordWebhookURL string
	TeamsWebhookURL   string
	WebhookURL        string
	SMTPHost          string
	SMTPPort          int
	SMTPUser          string
	SMTPPassword      string
	SMTPFrom          string
	SMTPTo            string // Comma-separated default recipients.
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (Config, error) {
	cfg := Config{
		LogLevel:             envStr("MIHARI_LOG_LEVEL", "info"),
		LogDir:               envStr("MIHARI_LOG_DIR", "logs"),
		ConsoleLog:           envBool("MIHARI_CONSOLE_LOG", true),
		FileLog:              envBool("MIHARI_FILE_LOG", true),
		JSONLog:              envBool("MIHARI_JSON_LOG", true),
		ReasoningLog:         envBool("MIHARI_REASONING_LOG", true),
		TextLogFile:          envStr("MIHARI_TEXT_LOG_FILE", "mihari.log"),
		JSONLogFile:          envStr("MIHARI_JSON_LOG_FILE", "mihari.jsonl"),
		ReasoningLogFile:     envStr("MIHARI_REASONING_LOG_FILE", "reasoning.jsonl"),
		SQLitePath:           envStr("MIHARI_SQLITE_PATH", ""),
		EventLogCapacity:     envInt("MIHARI_EVENT_LOG_CAPACITY", 10000),
		MetricCapacity:       envInt("MIHARI_METRIC_CAPACITY", 1000),
		AlertHistoryCapacity: envInt("MIHARI_ALERT_HISTORY_CAPACITY", 1000),
		CollectInterval:      envDuration("MIHARI_COLLECT_INTERVAL", 30*time.Second),
		OTELEndpoint:         envStr("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTELInsecure:         envBool("OTEL_EXPORTER_OTLP_INSECURE", false),
		ServiceName:          envStr("OTEL_SERVICE_NAME", "mihari"),
		SlackWebhookURL:      envStr("MIHARI_SLACK_WEBHOOK_URL", ""),
		DiscordWebhookURL:    envStr("MIHARI_DISCORD_WEBHOOK_URL", ""),
		TeamsWebhookURL:      envStr("MIHARI_TEAMS_WEBHOOK_URL", ""),
		WebhookURL:           envStr("MIHARI_WEBHOOK_URL", ""),
		SMTPHost:             envStr("MIHARI_SMTP_HOST", ""),
		SMTPPort:             envInt("MIHARI_SMTP_PORT", 587),
		SMTPUser:             envStr("MIHARI_SMTP_USER", ""),
		SMTPPassword:         envStr("MIHARI_SMTP_PASSWORD", ""),
		SMTPFrom:             envStr("MIHARI_SMTP_FROM", ""),
		SMTPTo:               envStr("MIHARI_SMTP_TO", ""),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that configuration values are usable.
func (c Config) Validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: MIHARI_LOG_LEVEL must be one of debug/info/warn/error, got %q", c.LogLevel)
	}
	if c.EventLogCapacity <= 0 {
		return fmt.Errorf("config: MIHARI_EVENT_LOG_CAPACITY must be positive")
	}
	if c.MetricCapacity <= 0 {
		return fmt.Errorf("config: MIHARI_METRIC_CAPACITY must be positive")
	}
	if c.AlertHistoryCapacity <= 0 {
		return fmt.Errorf("config: MIHARI_ALERT_HISTORY_CAPACITY must be positive")
	}
	if c.CollectInterval <= 0 {
		return fmt.Errorf("config: MIHARI_COLLECT_INTERVAL must be positive")
	}
	if c.SMTPPort <= 0 || c.SMTPPort > 65535 {
		return fmt.Errorf("config: MIHARI_SMTP_PORT out of range: %d", c.SMTPPort)
	}
	return nil
}

func envStr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func envBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
