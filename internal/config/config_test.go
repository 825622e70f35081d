package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Port:                  8080,
		LogLevel:              "info",
		DataDir:               "/tmp/overseer-test",
		BackupDir:             "/tmp/overseer-test/backups",
		SessionTimeoutMinutes: 30,
		DefaultMaxSteps:       10,
		StartingCash:          100000,
		Engine:                EngineRules,
		MarketDataProvider:    MarketDataSimulated,
		MarketTimezone:        "America/New_York",
		MarketOpenHour:        10,
		MarketCloseHour:       16,
		Watchlist:             []string{"AAPL"},
		CommissionRate:        0.0025,
		MinCommission:         1.0,
		SellTaxRate:           0.001,
	}
}

func TestValidateOK(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestValidateAggregatesErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Port = 0
	cfg.SessionTimeoutMinutes = 0
	cfg.Engine = "magic"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PORT")
	assert.Contains(t, err.Error(), "SESSION_TIMEOUT_MINUTES")
	assert.Contains(t, err.Error(), "OVERSEER_ENGINE")
}

func TestValidateOpenAIRequiresKey(t *testing.T) {
	cfg := validConfig()
	cfg.Engine = EngineOpenAI
	cfg.OpenAIModel = "gpt-4o-mini"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OPENAI_API_KEY")

	cfg.OpenAIAPIKey = "sk-test"
	assert.NoError(t, cfg.Validate())
}

func TestValidateHTTPProviderRequiresBaseURL(t *testing.T) {
	cfg := validConfig()
	cfg.MarketDataProvider = MarketDataHTTP

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MARKET_DATA_BASE_URL")
}

func TestValidateMarketWindow(t *testing.T) {
	cfg := validConfig()
	cfg.MarketOpenHour = 18
	cfg.MarketCloseHour = 10

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MARKET_OPEN_HOUR")
}
