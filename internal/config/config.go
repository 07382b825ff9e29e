// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir             string // Base directory for sqlite databases, always absolute
	AlpacaAPIKey        string
	AlpacaAPISecret     string
	AlpacaBaseURL       string // Paper or live endpoint
	SentimentServiceURL string // Optional external sentiment producer; empty disables it
	LogLevel            string
	Port                int
	DevMode             bool
	AllowPremarket      bool   // Place orders while the market is closed (execute at open)
	CronSchedule        string // Cycle schedule, cron syntax
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("HELMSMAN_DATA_DIR", "./data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:             absDataDir,
		AlpacaAPIKey:        getEnv("ALPACA_API_KEY", ""),
		AlpacaAPISecret:     getEnv("ALPACA_API_SECRET", ""),
		AlpacaBaseURL:       getEnv("ALPACA_BASE_URL", "https://paper-api.alpaca.markets"),
		SentimentServiceURL: getEnv("SENTIMENT_SERVICE_URL", ""),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		Port:                getEnvAsInt("HELMSMAN_PORT", 8010),
		DevMode:             getEnvAsBool("DEV_MODE", false),
		AllowPremarket:      getEnvAsBool("ALLOW_PREMARKET", false),
		// Weekdays 10:00 ET, after the open auction settles
		CronSchedule: getEnv("CYCLE_SCHEDULE", "0 10 * * 1-5"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	// Broker credentials are optional in dev mode (the orchestrator can run
	// against a stub broker in tests); required otherwise.
	if !c.DevMode && (c.AlpacaAPIKey == "" || c.AlpacaAPISecret == "") {
		return fmt.Errorf("broker credentials required: set ALPACA_API_KEY and ALPACA_API_SECRET")
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
