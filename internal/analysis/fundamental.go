package analysis

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/overseer/pkg/formulas"
)

// Fundamental scores symbols on value: where the current price sits within
// its historical range. With no external fundamentals feed, price-relative
// valuation is the proxy — cheap against its own history scores positive,
// stretched scores negative.
type Fundamental struct {
	log zerolog.Logger
}

// NewFundamental creates the fundamental analysis provider
func NewFundamental(log zerolog.Logger) *Fundamental {
	return &Fundamental{
		log: log.With().Str("component", "analysis_fundamental").Logger(),
	}
}

// Name implements Provider
func (f *Fundamental) Name() string {
	return "fundamental"
}

// Analyze implements Provider
func (f *Fundamental) Analyze(ctx context.Context, actx *Context) (*Report, error) {
	scores := make(map[string]float64, len(actx.Symbols))
	scored := 0

	for _, symbol := range actx.Symbols {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		closes := actx.History[symbol]
		price, havePrice := actx.Prices[symbol]
		if !havePrice || len(closes) < 20 {
			continue
		}

		scores[symbol] = f.score(price, closes)
		scored++
	}

	return &Report{
		Provider: f.Name(),
		Scores:   scores,
		Summary:  fmt.Sprintf("valued %d of %d symbols against their own price history", scored, len(actx.Symbols)),
	}, nil
}

func (f *Fundamental) score(price float64, closes []float64) float64 {
	low, high := closes[0], closes[0]
	for _, close := range closes {
		if close < low {
			low = close
		}
		if close > high {
			high = close
		}
	}

	score := 0.0

	// Position in range: bottom of the range scores +1, top scores -1
	if high > low {
		rangePos := (price - low) / (high - low)
		score += 1 - 2*rangePos
	}

	// Discount to the historical mean sweetens or sours the verdict
	mean := formulas.Mean(closes)
	if mean > 0 {
		score += clamp((mean - price) / mean)
	}

	return clamp(score / 2)
}
