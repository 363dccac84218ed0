package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Confluence ConfluenceConfig
	Cleanup    CleanupConfig
	Settings   SettingsConfig
	App        AppConfig
}

type ServerConfig struct {
	Port           string
	AllowedOrigins []string
}

// DatabaseConfig is optional; an empty DSN (and empty Host) disables Postgres.
type DatabaseConfig struct {
	DSN      string
	Host     string
	Port     int
	User     string
	Password string
	Name     string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type ConfluenceConfig struct {
	BaseURL string

	// Basic credentials used for the app identity when no OAuth client is configured.
	Email    string
	APIToken string

	OAuthClientID     string
	OAuthClientSecret string
	OAuthTokenURL     string
	OAuthScopes       []string

	RequestsPerSecond float64
	Burst             int
	Timeout           time.Duration
}

type CleanupConfig struct {
	SweepSchedule string
	AuditEnabled  bool
}

type SettingsConfig struct {
	// Backend is "redis" or "postgres".
	Backend string
	// AdminToken authorizes settings writes. Empty disables writes.
	AdminToken string
}

type AppConfig struct {
	Environment string
	LogLevel    string
	Version     string
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			AllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", nil),
		},
		Database: DatabaseConfig{
			DSN:      getEnv("DB_DSN", ""),
			Host:     getEnv("DB_HOST", ""),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Name:     getEnv("DB_NAME", "flowme"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Confluence: ConfluenceConfig{
			BaseURL:           strings.TrimRight(getEnv("CONFLUENCE_BASE_URL", ""), "/"),
			Email:             getEnv("CONFLUENCE_EMAIL", ""),
			APIToken:          getEnv("CONFLUENCE_API_TOKEN", ""),
			OAuthClientID:     getEnv("CONFLUENCE_OAUTH_CLIENT_ID", ""),
			OAuthClientSecret: getEnv("CONFLUENCE_OAUTH_CLIENT_SECRET", ""),
			OAuthTokenURL:     getEnv("CONFLUENCE_OAUTH_TOKEN_URL", "https://api.atlassian.com/oauth/token"),
			OAuthScopes:       getEnvAsList("CONFLUENCE_OAUTH_SCOPES", nil),
			RequestsPerSecond: getEnvAsFloat("CONFLUENCE_RPS", 10),
			Burst:             getEnvAsInt("CONFLUENCE_BURST", 20),
			Timeout:           getEnvAsDuration("CONFLUENCE_TIMEOUT", 30*time.Second),
		},
		Cleanup: CleanupConfig{
			SweepSchedule: getEnv("CLEANUP_SWEEP_SCHEDULE", "0 */10 * * * *"),
			AuditEnabled:  getEnvAsBool("CLEANUP_AUDIT_ENABLED", true),
		},
		Settings: SettingsConfig{
			Backend:    strings.ToLower(getEnv("SETTINGS_BACKEND", "redis")),
			AdminToken: getEnv("SETTINGS_ADMIN_TOKEN", ""),
		},
		App: AppConfig{
			Environment: getEnv("APP_ENV", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
			Version:     getEnv("APP_VERSION", "1.0.0"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("PORT is required")
	}

	if c.Confluence.BaseURL == "" {
		return fmt.Errorf("CONFLUENCE_BASE_URL is required")
	}

	if c.Settings.Backend != "redis" && c.Settings.Backend != "postgres" {
		return fmt.Errorf("SETTINGS_BACKEND must be redis or postgres, got %q", c.Settings.Backend)
	}

	if c.Settings.Backend == "postgres" && !c.Database.Enabled() {
		return fmt.Errorf("SETTINGS_BACKEND=postgres requires DB_DSN or DB_HOST")
	}

	return nil
}

// Enabled reports whether any Postgres connection settings were provided.
func (d DatabaseConfig) Enabled() bool {
	return d.DSN != "" || d.Host != ""
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
		log.Printf("Warning: Invalid integer for %s, using default: %d", key, defaultValue)
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
		log.Printf("Warning: Invalid number for %s, using default: %g", key, defaultValue)
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
		log.Printf("Warning: Invalid boolean for %s, using default: %t", key, defaultValue)
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid duration for %s, using default: %s", key, defaultValue)
		return defaultValue
	}

	return value
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
