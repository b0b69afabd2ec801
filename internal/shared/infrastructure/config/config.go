package config

import (
	"os"
	"strconv"
	"time"

	"github.com/saransh1220/novel-notify/internal/shared/infrastructure/database"
)

// Config holds all configuration for the application
type Config struct {
	Server     ServerConfig
	Database   database.PostgresConfig
	Redis      RedisConfig
	JWT        JWTConfig
	Stream     StreamConfig
	Migrations MigrationConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           string
	AllowedOrigins string
	LogLevel       string
}

// RedisConfig enables cross-instance fan-out when Enabled is set.
type RedisConfig struct {
	database.RedisConfig
	Enabled bool
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret string
	Expiry time.Duration
}

// StreamConfig holds push channel configuration
type StreamConfig struct {
	Heartbeat time.Duration
}

// MigrationConfig controls schema migration at startup. An empty Path
// selects the migrations compiled into the binary.
type MigrationConfig struct {
	Path    string
	AutoRun bool
}

// Load reads configuration from environment variables
func Load() Config {
	return Config{
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			AllowedOrigins: getEnv("ALLOWED_ORIGINS", "http://localhost:4200"),
			LogLevel:       getEnv("LOG_LEVEL", "info"),
		},
		Database: database.PostgresConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "novel_notify"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			RedisConfig: database.RedisConfig{
				Host:     getEnv("REDIS_HOST", "localhost"),
				Port:     getEnv("REDIS_PORT", "6379"),
				Password: getEnv("REDIS_PASSWORD", ""),
				DB:       parseInt(getEnv("REDIS_DB", "0"), 0),
			},
			Enabled: getEnv("REDIS_ENABLED", "false") == "true",
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", "default-dev-secret"),
			Expiry: parseDuration(getEnv("JWT_EXPIRATION", "24h"), 24*time.Hour),
		},
		Stream: StreamConfig{
			Heartbeat: parseDuration(getEnv("STREAM_HEARTBEAT", "15s"), 15*time.Second),
		},
		Migrations: MigrationConfig{
			Path:    getEnv("MIGRATIONS_PATH", ""),
			AutoRun: getEnv("AUTO_MIGRATE", "true") == "true",
		},
	}
}

// getEnv reads an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseDuration parses a duration string or returns a default value
func parseDuration(value string, defaultValue time.Duration) time.Duration {
	if duration, err := time.ParseDuration(value); err == nil && duration > 0 {
		return duration
	}
	return defaultValue
}

func parseInt(value string, defaultValue int) int {
	if n, err := strconv.Atoi(value); err == nil {
		return n
	}
	return defaultValue
}
