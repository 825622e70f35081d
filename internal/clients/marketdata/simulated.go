package marketdata

import (
	"fmt"
	"hash/fnv"
	"math"
	"time"

	"github.com/rs/zerolog"
)

// Simulated is a deterministic price provider for paper trading. Each symbol
// follows its own random walk seeded from the symbol name, so prices are
// stable across restarts and across processes.
type Simulated struct {
	location  *time.Location
	openHour  int
	closeHour int
	now       func() time.Time
	log       zerolog.Logger
}

// SimulatedConfig holds the trading-window parameters
type SimulatedConfig struct {
	Timezone  string
	OpenHour  int
	CloseHour int
}

// NewSimulated creates a simulated market data provider
func NewSimulated(cfg SimulatedConfig, log zerolog.Logger) (*Simulated, error) {
	location, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load market timezone %q: %w", cfg.Timezone, err)
	}

	return &Simulated{
		location:  location,
		openHour:  cfg.OpenHour,
		closeHour: cfg.CloseHour,
		now:       time.Now,
		log:       log.With().Str("client", "marketdata_simulated").Logger(),
	}, nil
}

// Name implements Provider
func (s *Simulated) Name() string {
	return "simulated"
}

// PriceOf implements Provider. The price is the last point of the symbol's
// walk up to today, so PriceOf and History agree with each other.
func (s *Simulated) PriceOf(symbol string) (float64, error) {
	walk := s.walk(symbol, 1)
	return walk[len(walk)-1], nil
}

// History implements Provider
func (s *Simulated) History(symbol string, days int) ([]float64, error) {
	if days < 1 {
		days = 1
	}
	return s.walk(symbol, days), nil
}

// IsMarketOpen implements Provider. The simulated market trades on weekdays
// between the configured open and close hours in the configured timezone.
func (s *Simulated) IsMarketOpen() bool {
	now := s.now().In(s.location)

	switch now.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}

	return now.Hour() >= s.openHour && now.Hour() < s.closeHour
}

// walk generates the last n points of the symbol's daily walk, oldest first.
// Each day's return is derived from a hash of (symbol, day), giving a
// reproducible series without storing any state.
func (s *Simulated) walk(symbol string, n int) []float64 {
	base := 20.0 + float64(seed(symbol)%9800)/10.0 // 20.00 .. 999.90
	today := s.now().In(s.location)
	epoch := today.YearDay() + today.Year()*366

	// Replay the walk from a fixed horizon before today so the level drifts
	// but the series stays deterministic.
	const horizon = 365
	price := base
	series := make([]float64, 0, n)

	for day := epoch - horizon; day <= epoch; day++ {
		price *= 1 + dailyReturn(symbol, day)
		if day > epoch-n {
			series = append(series, round2(price))
		}
	}

	return series
}

// dailyReturn maps (symbol, day) to a pseudo-random daily return in
// roughly ±2.5%.
func dailyReturn(symbol string, day int) float64 {
	h := seed(fmt.Sprintf("%s:%d", symbol, day))
	unit := float64(h%10000)/5000.0 - 1.0 // -1.0 .. 1.0
	return unit * 0.025
}

func seed(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
