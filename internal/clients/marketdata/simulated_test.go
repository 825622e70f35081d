package marketdata

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSimulatedAt(t *testing.T, at time.Time) *Simulated {
	t.Helper()

	provider, err := NewSimulated(SimulatedConfig{
		Timezone:  "UTC",
		OpenHour:  10,
		CloseHour: 16,
	}, zerolog.Nop())
	require.NoError(t, err)

	provider.now = func() time.Time { return at }
	return provider
}

func TestSimulatedRejectsBadTimezone(t *testing.T) {
	_, err := NewSimulated(SimulatedConfig{Timezone: "Mars/Olympus"}, zerolog.Nop())
	assert.Error(t, err)
}

func TestSimulatedPricesAreDeterministic(t *testing.T) {
	at := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC) // Wednesday
	provider := newSimulatedAt(t, at)

	first, err := provider.PriceOf("AAPL")
	require.NoError(t, err)
	second, err := provider.PriceOf("AAPL")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Greater(t, first, 0.0)

	// Independent walks per symbol
	other, err := provider.PriceOf("MSFT")
	require.NoError(t, err)
	assert.NotEqual(t, first, other)

	// A fresh provider replays the same walk
	replay, err := newSimulatedAt(t, at).PriceOf("AAPL")
	require.NoError(t, err)
	assert.Equal(t, first, replay)
}

func TestSimulatedHistoryEndsAtCurrentPrice(t *testing.T) {
	provider := newSimulatedAt(t, time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC))

	history, err := provider.History("AAPL", 30)
	require.NoError(t, err)
	require.Len(t, history, 30)

	price, err := provider.PriceOf("AAPL")
	require.NoError(t, err)
	assert.Equal(t, price, history[len(history)-1])

	// Consecutive closes stay within the walk's daily return band
	for i := 1; i < len(history); i++ {
		change := (history[i] - history[i-1]) / history[i-1]
		assert.InDelta(t, 0, change, 0.026)
	}

	short, err := provider.History("AAPL", 0)
	require.NoError(t, err)
	assert.Len(t, short, 1)
}

func TestSimulatedMarketWindow(t *testing.T) {
	cases := []struct {
		name string
		at   time.Time
		open bool
	}{
		{"weekday midday", time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC), true},
		{"weekday at open", time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC), true},
		{"weekday before open", time.Date(2026, 3, 4, 9, 59, 0, 0, time.UTC), false},
		{"weekday at close", time.Date(2026, 3, 4, 16, 0, 0, 0, time.UTC), false},
		{"saturday", time.Date(2026, 3, 7, 12, 0, 0, 0, time.UTC), false},
		{"sunday", time.Date(2026, 3, 8, 12, 0, 0, 0, time.UTC), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			provider := newSimulatedAt(t, tc.at)
			assert.Equal(t, tc.open, provider.IsMarketOpen())
		})
	}
}
