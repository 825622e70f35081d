package analysis

import (
	"context"
	"fmt"

	"github.com/markcheno/go-talib"
	"github.com/rs/zerolog"
)

const (
	rsiPeriod     = 14
	smaFastPeriod = 10
	smaSlowPeriod = 30
)

// Technical scores symbols from price action: RSI, fast/slow moving average
// crossover and short-term momentum.
type Technical struct {
	log zerolog.Logger
}

// NewTechnical creates the technical analysis provider
func NewTechnical(log zerolog.Logger) *Technical {
	return &Technical{
		log: log.With().Str("component", "analysis_technical").Logger(),
	}
}

// Name implements Provider
func (t *Technical) Name() string {
	return "technical"
}

// Analyze implements Provider
func (t *Technical) Analyze(ctx context.Context, actx *Context) (*Report, error) {
	scores := make(map[string]float64, len(actx.Symbols))
	scored := 0

	for _, symbol := range actx.Symbols {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		closes := actx.History[symbol]
		if len(closes) <= smaSlowPeriod {
			continue
		}

		scores[symbol] = t.score(closes)
		scored++
	}

	return &Report{
		Provider: t.Name(),
		Scores:   scores,
		Summary:  fmt.Sprintf("scored %d of %d symbols on RSI(%d) and SMA(%d/%d) signals", scored, len(actx.Symbols), rsiPeriod, smaFastPeriod, smaSlowPeriod),
	}, nil
}

func (t *Technical) score(closes []float64) float64 {
	score := 0.0

	// RSI: oversold favors buying, overbought favors reducing
	rsi := talib.Rsi(closes, rsiPeriod)
	if last, ok := lastValid(rsi); ok {
		switch {
		case last < 30:
			score += 0.5
		case last > 70:
			score -= 0.5
		}
	}

	// Trend: fast SMA above slow SMA is bullish
	fast := talib.Sma(closes, smaFastPeriod)
	slow := talib.Sma(closes, smaSlowPeriod)
	lastFast, okFast := lastValid(fast)
	lastSlow, okSlow := lastValid(slow)
	if okFast && okSlow && lastSlow != 0 {
		score += clamp((lastFast - lastSlow) / lastSlow * 10)
	}

	// Momentum over the RSI window
	mom := talib.Mom(closes, rsiPeriod)
	if last, ok := lastValid(mom); ok {
		base := closes[len(closes)-1-rsiPeriod]
		if base != 0 {
			score += clamp(last / base * 5)
		}
	}

	return clamp(score / 2)
}

func lastValid(series []float64) (float64, bool) {
	for i := len(series) - 1; i >= 0; i-- {
		v := series[i]
		if v == v { // skip NaN warmup values
			return v, true
		}
	}
	return 0, false
}
