package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds the server settings read from the environment.
type Config struct {
	// HTTP Server
	Port         string
	SecureCookie bool

	// Database
	DBDriver    string
	DBPath      string
	DatabaseURL string

	// Bootstrap user, created when the database has no users
	AdminUser     string
	AdminPassword string

	// AMQP events (disabled when AMQPURL is empty)
	AMQPURL      string
	AMQPExchange string

	// Budget behaviour
	StrictImport   bool
	IndexScopeUser bool

	LogLevel slog.Level
}

// Load reads a .env file if present, then the environment.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:         getEnv("PORT", "8080"),
		SecureCookie: getEnvBool("SECURE_COOKIE", false),

		DBDriver:    getEnv("DB_DRIVER", "sqlite"),
		DBPath:      getEnv("DB_PATH", "budgets.db"),
		DatabaseURL: getEnv("DATABASE_URL", ""),

		AdminUser:     getEnv("ADMIN_USER", ""),
		AdminPassword: getEnv("ADMIN_PASSWORD", ""),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "budgets"),

		StrictImport:   getEnvBool("IMPORT_STRICT", false),
		IndexScopeUser: getEnvBool("INDEX_SCOPE_USER", true),

		LogLevel: getEnvLevel("LOG_LEVEL", slog.LevelInfo),
	}
}

// Validate returns every configuration problem in a single error.
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	switch c.DBDriver {
	case "sqlite":
		if c.DBPath == "" {
			errors = append(errors, "DB_PATH cannot be empty when using the sqlite driver")
		}
	case "postgres":
		if c.DatabaseURL == "" {
			errors = append(errors, "DATABASE_URL is required when using the postgres driver")
		}
	default:
		errors = append(errors, fmt.Sprintf("invalid database driver '%s': must be one of [sqlite postgres]", c.DBDriver))
	}

	if (c.AdminUser == "") != (c.AdminPassword == "") {
		errors = append(errors, "ADMIN_USER and ADMIN_PASSWORD must be set together")
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvLevel(key string, defaultValue slog.Level) slog.Level {
	if value := os.Getenv(key); value != "" {
		var level slog.Level
		if err := level.UnmarshalText([]byte(value)); err == nil {
			return level
		}
	}
	return defaultValue
}
