package config

import (
	"os"
)

type Config struct {
	Environment string
	DatabaseURL string
	// Dialect names the statement profile transactions are rendered with.
	Dialect string
	// DefaultIsolation overrides the catalog default isolation level.
	// Empty keeps the built-in default. Parsed and validated by the caller.
	DefaultIsolation string
	MetricsAddr      string
	LogDir           string
	// Debug flags
	Debug bool // Enables DEBUG level logging
}

func Load() *Config {
	env := getEnv("ENVIRONMENT", "dev")

	return &Config{
		Environment:      env,
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		Dialect:          getEnv("NOTARY_DIALECT", "postgres"),
		DefaultIsolation: getEnv("NOTARY_DEFAULT_ISOLATION", ""),
		MetricsAddr:      getEnv("METRICS_ADDR", ":9187"),
		LogDir:           getEnv("LOG_DIR", "logs"),
		// Debug flags - default to true in dev/test, false in production
		Debug: getEnv("DEBUG", getDefaultDebug(env)) == "true",
	}
}

// getDefaultDebug returns the default debug setting based on environment
func getDefaultDebug(env string) string {
	if env == "prod" {
		return "false"
	}
	return "true" // Enable DEBUG in dev/test by default
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
