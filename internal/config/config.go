// internal/config/config.go
// Centralized configuration management
// Loads from environment variables with sensible defaults

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	// Server
	Port        string
	Environment string

	// Backends
	DatabaseURL string
	RedisURL    string

	// Security
	APIKey string

	// Cache
	CacheEnabled bool
	CacheTTL     time.Duration
	RedisTimeout time.Duration

	// Algorithm parameters
	MinCompatibilityScore float64
	DefaultSelectionSize  int
	MaxSelectionSize      int
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:        getEnv("PORT", "8000"),
		Environment: getEnv("ENVIRONMENT", "development"),

		DatabaseURL: getEnv("DATABASE_URL", ""),
		RedisURL:    getEnv("REDIS_URL", "redis://localhost:6379/0"),

		APIKey: getEnv("API_KEY", "matching-service-secret-key"),

		CacheEnabled: getEnvBool("CACHE_ENABLED", true),
		CacheTTL:     getEnvDuration("CACHE_TTL", "1h"),
		RedisTimeout: getEnvDuration("REDIS_TIMEOUT", "5s"),

		MinCompatibilityScore: getEnvFloat("MIN_COMPATIBILITY_SCORE", 30.0),
		DefaultSelectionSize:  getEnvInt("DEFAULT_SELECTION_SIZE", 5),
		MaxSelectionSize:      getEnvInt("MAX_SELECTION_SIZE", 10),
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("API key is required")
	}
	if c.APIKey == "matching-service-secret-key" && c.Environment == "production" {
		return fmt.Errorf("API key must be changed for production")
	}

	if c.CacheEnabled && c.RedisURL == "" {
		return fmt.Errorf("Redis URL is required when caching is enabled")
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("cache TTL must be positive")
	}

	if c.MinCompatibilityScore < 0 || c.MinCompatibilityScore > 100 {
		return fmt.Errorf("minimum compatibility score must be within 0-100")
	}
	if c.DefaultSelectionSize < 1 || c.DefaultSelectionSize > c.MaxSelectionSize {
		return fmt.Errorf("invalid selection size configuration")
	}
	if c.MaxSelectionSize > 10 {
		return fmt.Errorf("max selection size must not exceed 10")
	}

	return nil
}

// IsProduction returns true if running in production
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// Helper functions

// getEnv gets a string value from environment with a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer value from environment with a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat gets a float value from environment with a default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

// getEnvDuration gets a duration value from environment with a default
func getEnvDuration(key string, defaultValue string) time.Duration {
	value := getEnv(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}
	return duration
}

// getEnvBool gets a boolean value from environment with a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
