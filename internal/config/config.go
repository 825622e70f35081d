// Package config provides configuration management functionality.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"
)

// Engine variants selectable via OVERSEER_ENGINE.
const (
	EngineRules  = "rules"
	EngineOpenAI = "openai"
)

// Market data provider variants selectable via MARKET_DATA_PROVIDER.
const (
	MarketDataSimulated = "simulated"
	MarketDataHTTP      = "http"
)

// Config holds application configuration
type Config struct {
	Port     int
	DevMode  bool
	LogLevel string
	Pretty   bool

	DataDir   string // Base directory for databases and backups (always absolute)
	BackupDir string

	// Execution
	SessionTimeoutMinutes int
	DefaultMaxSteps       int
	StartingCash          float64

	// Decision engine
	Engine               string
	OpenAIAPIKey         string
	OpenAIModel          string
	OpenAIBaseURL        string
	OpenAITimeoutSeconds int

	// Market data
	MarketDataProvider string
	MarketDataBaseURL  string
	MarketTimezone     string
	MarketOpenHour     int
	MarketCloseHour    int
	Watchlist          []string

	// Fee policy
	CommissionRate float64
	MinCommission  float64
	SellTaxRate    float64
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("DATA_DIR", "./data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		Port:     getEnvAsInt("PORT", 8080),
		DevMode:  getEnvAsBool("DEV_MODE", false),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Pretty:   getEnvAsBool("LOG_PRETTY", true),

		DataDir:   absDataDir,
		BackupDir: getEnv("BACKUP_DIR", filepath.Join(absDataDir, "backups")),

		SessionTimeoutMinutes: getEnvAsInt("SESSION_TIMEOUT_MINUTES", 30),
		DefaultMaxSteps:       getEnvAsInt("DEFAULT_MAX_STEPS", 10),
		StartingCash:          getEnvAsFloat("STARTING_CASH", 1000000),

		Engine:               getEnv("OVERSEER_ENGINE", EngineRules),
		OpenAIAPIKey:         getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:          getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIBaseURL:        getEnv("OPENAI_BASE_URL", ""),
		OpenAITimeoutSeconds: getEnvAsInt("OPENAI_TIMEOUT_SECONDS", 60),

		MarketDataProvider: getEnv("MARKET_DATA_PROVIDER", MarketDataSimulated),
		MarketDataBaseURL:  getEnv("MARKET_DATA_BASE_URL", ""),
		MarketTimezone:     getEnv("MARKET_TIMEZONE", "America/New_York"),
		MarketOpenHour:     getEnvAsInt("MARKET_OPEN_HOUR", 10),
		MarketCloseHour:    getEnvAsInt("MARKET_CLOSE_HOUR", 16),
		Watchlist:          getEnvAsList("WATCHLIST", "AAPL,MSFT,GOOGL,AMZN,NVDA"),

		CommissionRate: getEnvAsFloat("COMMISSION_RATE", 0.0025),
		MinCommission:  getEnvAsFloat("MIN_COMMISSION", 1.0),
		SellTaxRate:    getEnvAsFloat("SELL_TAX_RATE", 0.001),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks configuration consistency. Field errors are aggregated so a
// broken environment reports everything wrong at once.
func (c *Config) Validate() error {
	var err error

	if c.Port <= 0 || c.Port > 65535 {
		err = multierr.Append(err, fmt.Errorf("PORT must be in 1..65535, got %d", c.Port))
	}
	if c.DataDir == "" {
		err = multierr.Append(err, errors.New("DATA_DIR is required"))
	}
	if c.SessionTimeoutMinutes <= 0 {
		err = multierr.Append(err, errors.New("SESSION_TIMEOUT_MINUTES must be positive"))
	}
	if c.DefaultMaxSteps <= 0 {
		err = multierr.Append(err, errors.New("DEFAULT_MAX_STEPS must be positive"))
	}
	if c.StartingCash < 0 {
		err = multierr.Append(err, errors.New("STARTING_CASH cannot be negative"))
	}

	switch c.Engine {
	case EngineRules:
	case EngineOpenAI:
		if c.OpenAIAPIKey == "" {
			err = multierr.Append(err, errors.New("OPENAI_API_KEY is required when OVERSEER_ENGINE=openai"))
		}
		if c.OpenAIModel == "" {
			err = multierr.Append(err, errors.New("OPENAI_MODEL is required when OVERSEER_ENGINE=openai"))
		}
	default:
		err = multierr.Append(err, fmt.Errorf("OVERSEER_ENGINE must be %q or %q, got %q", EngineRules, EngineOpenAI, c.Engine))
	}

	switch c.MarketDataProvider {
	case MarketDataSimulated:
	case MarketDataHTTP:
		if c.MarketDataBaseURL == "" {
			err = multierr.Append(err, errors.New("MARKET_DATA_BASE_URL is required when MARKET_DATA_PROVIDER=http"))
		}
	default:
		err = multierr.Append(err, fmt.Errorf("MARKET_DATA_PROVIDER must be %q or %q, got %q", MarketDataSimulated, MarketDataHTTP, c.MarketDataProvider))
	}

	if c.MarketOpenHour < 0 || c.MarketOpenHour > 23 || c.MarketCloseHour < 0 || c.MarketCloseHour > 23 {
		err = multierr.Append(err, errors.New("market hours must be in 0..23"))
	} else if c.MarketOpenHour >= c.MarketCloseHour {
		err = multierr.Append(err, errors.New("MARKET_OPEN_HOUR must be before MARKET_CLOSE_HOUR"))
	}

	if len(c.Watchlist) == 0 {
		err = multierr.Append(err, errors.New("WATCHLIST cannot be empty"))
	}

	if c.CommissionRate < 0 || c.SellTaxRate < 0 || c.MinCommission < 0 {
		err = multierr.Append(err, errors.New("fee rates cannot be negative"))
	}

	return err
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

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
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

func getEnvAsList(key, defaultValue string) []string {
	raw := getEnv(key, defaultValue)

	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.ToUpper(strings.TrimSpace(part))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
