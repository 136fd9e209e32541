package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	FirebaseDbUrl              string
	FirebaseServiceAccountJSON string

	// Zone being monitored and how it is polled
	ZoneID          string
	PollInterval    time.Duration
	LogLimit        int
	StoreTimeout    time.Duration
	DisplayTimezone string

	// Liveness boundaries in seconds
	HeartbeatSeconds int
	StaleSeconds     int

	// Thresholds used when none are persisted
	DefaultStartPct int
	DefaultStopPct  int

	// Circuit breaker around the store
	BreakerFailures int
	BreakerOpenFor  time.Duration

	HTTPAddr string

	TelegramBotToken string
	TelegramChatID   string

	MQTTBroker      string
	MQTTUser        string
	MQTTPass        string
	MQTTTopicPrefix string

	RabbitMQURL      string
	RabbitMQExchange string

	AlertWebhookURL string

	LogLevel       string
	LogDevelopment bool
}

func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	config := &Config{
		FirebaseDbUrl:              getEnv("FIREBASE_DB_URL", ""),
		FirebaseServiceAccountJSON: getEnv("FIREBASE_SERVICE_ACCOUNT_JSON", ""),
		ZoneID:                     getEnv("ZONE_ID", "Z1"),
		PollInterval:               getEnvDuration("POLL_INTERVAL", 5*time.Second),
		LogLimit:                   getEnvInt("LOG_LIMIT", 300),
		StoreTimeout:               getEnvDuration("STORE_TIMEOUT", 10*time.Second),
		DisplayTimezone:            getEnv("DISPLAY_TIMEZONE", "Asia/Kolkata"),
		HeartbeatSeconds:           getEnvInt("HEARTBEAT_SECONDS", 45),
		StaleSeconds:               getEnvInt("STALE_SECONDS", 240),
		DefaultStartPct:            getEnvInt("DEFAULT_START_PCT", 30),
		DefaultStopPct:             getEnvInt("DEFAULT_STOP_PCT", 45),
		BreakerFailures:            getEnvInt("BREAKER_FAILURES", 3),
		BreakerOpenFor:             getEnvDuration("BREAKER_OPEN_FOR", 30*time.Second),
		HTTPAddr:                   getEnv("HTTP_ADDR", ":8080"),
		TelegramBotToken:           getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:             getEnv("TELEGRAM_CHAT_ID", ""),
		MQTTBroker:                 getEnv("MQTT_BROKER", ""),
		MQTTUser:                   getEnv("MQTT_USER", ""),
		MQTTPass:                   getEnv("MQTT_PASS", ""),
		MQTTTopicPrefix:            getEnv("MQTT_TOPIC_PREFIX", "agrosmart"),
		RabbitMQURL:                getEnv("RABBITMQ_URL", ""),
		RabbitMQExchange:           getEnv("RABBITMQ_EXCHANGE", "agrosmart.events"),
		AlertWebhookURL:            getEnv("ALERT_WEBHOOK_URL", ""),
		LogLevel:                   getEnv("LOG_LEVEL", "info"),
		LogDevelopment:             getEnvBool("LOG_DEVELOPMENT", false),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks values that would make the poll cycle meaningless
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ZoneID) == "" {
		return fmt.Errorf("ZONE_ID must not be empty")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be positive, got %s", c.PollInterval)
	}
	if c.LogLimit <= 0 {
		return fmt.Errorf("LOG_LIMIT must be positive, got %d", c.LogLimit)
	}
	if c.HeartbeatSeconds <= 0 || c.HeartbeatSeconds >= c.StaleSeconds {
		return fmt.Errorf("HEARTBEAT_SECONDS (%d) must be positive and below STALE_SECONDS (%d)",
			c.HeartbeatSeconds, c.StaleSeconds)
	}
	if c.DefaultStartPct >= c.DefaultStopPct {
		return fmt.Errorf("DEFAULT_START_PCT (%d) must be below DEFAULT_STOP_PCT (%d)",
			c.DefaultStartPct, c.DefaultStopPct)
	}
	if _, err := time.LoadLocation(c.DisplayTimezone); err != nil {
		return fmt.Errorf("invalid DISPLAY_TIMEZONE %q: %w", c.DisplayTimezone, err)
	}
	return nil
}

// HeartbeatAge is the oldest reading age still considered online
func (c *Config) HeartbeatAge() time.Duration {
	return time.Duration(c.HeartbeatSeconds) * time.Second
}

// StaleAge is the oldest reading age still considered stale rather than offline
func (c *Config) StaleAge() time.Duration {
	return time.Duration(c.StaleSeconds) * time.Second
}

// Location returns the display time zone, falling back to UTC
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.DisplayTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Redacted returns the configuration as log-safe key/value pairs
func (c *Config) Redacted() map[string]string {
	return map[string]string{
		"firebase_db_url":   c.FirebaseDbUrl,
		"firebase_sa_json":  redact(c.FirebaseServiceAccountJSON),
		"zone_id":           c.ZoneID,
		"poll_interval":     c.PollInterval.String(),
		"log_limit":         strconv.Itoa(c.LogLimit),
		"heartbeat_seconds": strconv.Itoa(c.HeartbeatSeconds),
		"stale_seconds":     strconv.Itoa(c.StaleSeconds),
		"display_timezone":  c.DisplayTimezone,
		"http_addr":         c.HTTPAddr,
		"telegram_token":    redact(c.TelegramBotToken),
		"mqtt_broker":       c.MQTTBroker,
		"rabbitmq_url":      redact(c.RabbitMQURL),
		"alert_webhook_url": c.AlertWebhookURL,
	}
}

func redact(s string) string {
	if s == "" {
		return ""
	}
	return "***"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("5s") or plain seconds ("5")
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
