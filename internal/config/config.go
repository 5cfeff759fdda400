package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// Config holds everything the API needs at startup. Values come from the
// environment, optionally seeded from a .env file.
type Config struct {
	Port        string
	DatabaseURL string
	JWTSecret   string
	AppURL      string
	AppVersion  string
	LogLevel    string

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string

	EmailUser         string
	EmailAppPassword  string
	SMTPHost          string
	SMTPPort          int
	FeedbackRecipient string

	RedisURL string

	MetricsUser string
	MetricsPass string

	AllowedOrigins []string
	WebDir         string
	CookieSecure   bool

	RateLimitRPS   float64
	RateLimitBurst int
	TrustedProxies []string

	TokenTTL time.Duration
}

// Load reads .env (if present) and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		zap.S().Debug("No .env file found, reading environment variables directly")
	}
	return FromEnv()
}

// FromEnv builds a Config from the current environment without touching .env.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "3333"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		JWTSecret:   os.Getenv("JWT_SECRET"),
		AppURL:      strings.TrimRight(getEnv("APP_URL", getEnv("NEXT_PUBLIC_APP_URL", "http://localhost:3000")), "/"),
		AppVersion:  getEnv("APP_VERSION", "dev"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		GoogleClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		GoogleClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),

		EmailUser:        os.Getenv("EMAIL_USER"),
		EmailAppPassword: os.Getenv("EMAIL_APP_PASSWORD"),
		SMTPHost:         getEnv("SMTP_HOST", "smtp.gmail.com"),
		SMTPPort:         getEnvAsInt("SMTP_PORT", 587),

		RedisURL: os.Getenv("REDIS_URL"),

		MetricsUser: os.Getenv("METRICS_USER"),
		MetricsPass: os.Getenv("METRICS_PASS"),

		WebDir:       os.Getenv("WEB_DIR"),
		CookieSecure: getEnvAsBool("COOKIE_SECURE", false),

		RateLimitRPS:   getEnvAsFloat("RATE_LIMIT_RPS", 5),
		RateLimitBurst: getEnvAsInt("RATE_LIMIT_BURST", 30),
		TrustedProxies: splitList(os.Getenv("TRUSTED_PROXIES")),

		TokenTTL: 7 * 24 * time.Hour,
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is not set")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is not set")
	}

	cfg.GoogleRedirectURL = getEnv("GOOGLE_REDIRECT_URL", "http://localhost:"+cfg.Port+"/auth/google/callback")
	cfg.FeedbackRecipient = getEnv("FEEDBACK_RECIPIENT", cfg.EmailUser)
	cfg.AllowedOrigins = splitList(getEnv("ALLOWED_ORIGINS", cfg.AppURL))

	return cfg, nil
}

// GoogleEnabled reports whether Google sign-in can be offered.
func (c *Config) GoogleEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

// EmailEnabled reports whether SMTP credentials are present.
func (c *Config) EmailEnabled() bool {
	return c.EmailUser != "" && c.EmailAppPassword != ""
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		zap.S().Warnf("Invalid integer value for %s: %s, using default: %d", key, valueStr, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		zap.S().Warnf("Invalid float value for %s: %s, using default: %v", key, valueStr, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		zap.S().Warnf("Invalid bool value for %s: %s, using default: %t", key, valueStr, defaultValue)
		return defaultValue
	}
	return value
}
