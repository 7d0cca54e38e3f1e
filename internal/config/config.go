package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration.
type Config struct {
	Port               string
	Env                string
	LogLevel           string
	CORSAllowedOrigins []string

	// Upstream APIs. BookingAPIBaseURL hosts the services/stylists read
	// endpoints and the booking confirmation endpoint; PaymentsAPIBaseURL
	// hosts payment-intent creation.
	BookingAPIBaseURL  string
	PaymentsAPIBaseURL string

	// Session snapshot store. Empty RedisAddr selects the in-process store.
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool
	SessionTTL    time.Duration

	// AllowFakePayments enables the dev/demo card confirmer. Never enable in
	// production.
	AllowFakePayments bool

	// ProgressCountsCashShortPath makes Progress() treat the confirmation
	// step as the fifth of five for cash bookings instead of the sixth of
	// six. Defaults to the legacy display behavior.
	ProgressCountsCashShortPath bool

	DefaultTipPercentage    float64
	AppointmentDurationMins int
}

// Load reads configuration from environment variables.
func Load() *Config {
	return &Config{
		Port:                        getEnv("PORT", "8080"),
		Env:                         getEnv("ENV", "development"),
		LogLevel:                    getEnv("LOG_LEVEL", "info"),
		CORSAllowedOrigins:          splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "")),
		BookingAPIBaseURL:           getEnv("BOOKING_API_BASE_URL", "http://localhost:5000"),
		PaymentsAPIBaseURL:          getEnv("PAYMENTS_API_BASE_URL", "http://localhost:5000"),
		RedisAddr:                   getEnv("REDIS_ADDR", ""),
		RedisPassword:               getEnv("REDIS_PASSWORD", ""),
		RedisTLS:                    getEnvAsBool("REDIS_TLS", false),
		SessionTTL:                  getEnvAsDuration("SESSION_TTL", 30*time.Minute),
		AllowFakePayments:           getEnvAsBool("ALLOW_FAKE_PAYMENTS", false),
		ProgressCountsCashShortPath: getEnvAsBool("PROGRESS_COUNTS_CASH_SHORT_PATH", false),
		DefaultTipPercentage:        getEnvAsFloat("DEFAULT_TIP_PERCENTAGE", 0),
		AppointmentDurationMins:     getEnvAsInt("APPOINTMENT_DURATION_MINS", 60),
	}
}

// Validate checks that required settings are present and sane.
func (c *Config) Validate() error {
	if c.BookingAPIBaseURL == "" {
		return fmt.Errorf("config: BOOKING_API_BASE_URL is required")
	}
	if c.PaymentsAPIBaseURL == "" {
		return fmt.Errorf("config: PAYMENTS_API_BASE_URL is required")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("config: SESSION_TTL must be positive")
	}
	if c.Env == "production" && c.AllowFakePayments {
		return fmt.Errorf("config: ALLOW_FAKE_PAYMENTS must not be set in production")
	}
	return nil
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

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

func splitCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
