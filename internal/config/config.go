package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Submission transports.
const (
	SubmitModeHTTP   = "http"
	SubmitModeSQS    = "sqs"
	SubmitModeOutbox = "outbox"
)

// Config holds application configuration
type Config struct {
	Port      string
	Env       string
	LogLevel  string
	LogFormat string

	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	SessionTTL       time.Duration
	ScheduleCacheTTL time.Duration

	// Widget behaviour
	Locale              string
	Timezone            string
	ActiveDays          int
	SlotIntervalMinutes int
	CORSAllowedOrigins  []string
	RateLimitRPS        float64
	RateLimitBurst      int

	// Submission
	SubmitMode     string
	SubmitURL      string
	SubmitTimeout  time.Duration
	SubmitQueueURL string
	OutboxInterval time.Duration

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	// Confirmation email
	EmailProvider  string
	SendGridAPIKey string
	EmailFrom      string
	EmailFromName  string

	CatalogSeedPath  string
	ScheduleSeedPath string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:      getEnv("PORT", "8080"),
		Env:       getEnv("ENV", "development"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		DatabaseURL:   getEnv("DATABASE_URL", ""),
		RedisAddr:     getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		SessionTTL:       getEnvAsDuration("SESSION_TTL", 24*time.Hour),
		ScheduleCacheTTL: getEnvAsDuration("SCHEDULE_CACHE_TTL", 5*time.Minute),

		Locale:              getEnv("WIDGET_LOCALE", "ru-RU"),
		Timezone:            getEnv("WIDGET_TIMEZONE", "Europe/Moscow"),
		ActiveDays:          getEnvAsInt("WIDGET_ACTIVE_DAYS", 60),
		SlotIntervalMinutes: getEnvAsInt("WIDGET_SLOT_INTERVAL_MINUTES", 15),
		CORSAllowedOrigins:  getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		RateLimitRPS:        getEnvAsFloat("RATE_LIMIT_RPS", 5),
		RateLimitBurst:      getEnvAsInt("RATE_LIMIT_BURST", 20),

		SubmitMode:     strings.ToLower(strings.TrimSpace(getEnv("SUBMIT_MODE", SubmitModeHTTP))),
		SubmitURL:      getEnv("SUBMIT_URL", ""),
		SubmitTimeout:  getEnvAsDuration("SUBMIT_TIMEOUT", 10*time.Second),
		SubmitQueueURL: getEnv("SUBMIT_QUEUE_URL", ""),
		OutboxInterval: getEnvAsDuration("OUTBOX_INTERVAL", 5*time.Second),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		EmailProvider:  strings.ToLower(strings.TrimSpace(getEnv("EMAIL_PROVIDER", "stub"))),
		SendGridAPIKey: getEnv("SENDGRID_API_KEY", ""),
		EmailFrom:      getEnv("EMAIL_FROM", ""),
		EmailFromName:  getEnv("EMAIL_FROM_NAME", "Booking Widget"),

		CatalogSeedPath:  getEnv("CATALOG_SEED_PATH", ""),
		ScheduleSeedPath: getEnv("SCHEDULE_SEED_PATH", ""),
	}
}

// LoadWithDotenv loads the given .env files (if present) before reading the
// environment. Variables already set in the process win over file values.
func LoadWithDotenv(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return nil, fmt.Errorf("config: load %s: %w", f, err)
		}
	}
	return Load(), nil
}

// Validate checks the settings the widget cannot run without.
func (c *Config) Validate() error {
	var errs []error
	if c.ActiveDays <= 0 {
		errs = append(errs, fmt.Errorf("WIDGET_ACTIVE_DAYS must be positive, got %d", c.ActiveDays))
	}
	if c.SlotIntervalMinutes <= 0 {
		errs = append(errs, fmt.Errorf("WIDGET_SLOT_INTERVAL_MINUTES must be positive, got %d", c.SlotIntervalMinutes))
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("WIDGET_TIMEZONE %q: %w", c.Timezone, err))
	}
	switch c.SubmitMode {
	case SubmitModeHTTP:
		if c.SubmitURL == "" {
			errs = append(errs, errors.New("SUBMIT_URL is required when SUBMIT_MODE=http"))
		}
	case SubmitModeSQS:
		if c.SubmitQueueURL == "" {
			errs = append(errs, errors.New("SUBMIT_QUEUE_URL is required when SUBMIT_MODE=sqs"))
		}
	case SubmitModeOutbox:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required when SUBMIT_MODE=outbox"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown SUBMIT_MODE %q", c.SubmitMode))
	}
	switch c.EmailProvider {
	case "stub", "ses":
	case "sendgrid":
		if c.SendGridAPIKey == "" {
			errs = append(errs, errors.New("SENDGRID_API_KEY is required when EMAIL_PROVIDER=sendgrid"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown EMAIL_PROVIDER %q", c.EmailProvider))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// Location resolves Timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
