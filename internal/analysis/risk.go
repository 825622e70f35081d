package analysis

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/overseer/pkg/formulas"
)

// Risk penalizes symbols for volatility and drawdown, and penalizes
// concentrated holdings. Its scores pull the decision away from instruments
// the portfolio is already overexposed to.
type Risk struct {
	maxPositionWeight float64
	log               zerolog.Logger
}

// NewRisk creates the risk analysis provider. maxPositionWeight is the share
// of total portfolio value above which a holding counts as concentrated.
func NewRisk(maxPositionWeight float64, log zerolog.Logger) *Risk {
	if maxPositionWeight <= 0 {
		maxPositionWeight = 0.25
	}
	return &Risk{
		maxPositionWeight: maxPositionWeight,
		log:               log.With().Str("component", "analysis_risk").Logger(),
	}
}

// Name implements Provider
func (r *Risk) Name() string {
	return "risk"
}

// Analyze implements Provider
func (r *Risk) Analyze(ctx context.Context, actx *Context) (*Report, error) {
	weights := r.positionWeights(actx)

	scores := make(map[string]float64, len(actx.Symbols))
	scored := 0

	for _, symbol := range actx.Symbols {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		closes := actx.History[symbol]
		if len(closes) < 15 {
			continue
		}

		scores[symbol] = r.score(closes, weights[symbol])
		scored++
	}

	return &Report{
		Provider: r.Name(),
		Scores:   scores,
		Summary:  fmt.Sprintf("assessed volatility, drawdown and concentration for %d of %d symbols", scored, len(actx.Symbols)),
	}, nil
}

func (r *Risk) score(closes []float64, weight float64) float64 {
	score := 0.0

	// Annualized volatility above 40% starts to hurt
	vol := formulas.AnnualizedVolatility(formulas.Returns(closes))
	score -= clamp((vol - 0.40) * 2)

	// Deep drawdowns hurt regardless of volatility
	if dd := formulas.MaxDrawdown(closes); dd != nil {
		score -= clamp(*dd)
	}

	// Concentration: holdings above the weight cap get pushed down
	if weight > r.maxPositionWeight {
		score -= clamp((weight - r.maxPositionWeight) * 4)
	}

	return clamp(score)
}

// positionWeights computes each held symbol's share of total portfolio value
func (r *Risk) positionWeights(actx *Context) map[string]float64 {
	total := actx.Cash
	values := make(map[string]float64, len(actx.Positions))

	for _, position := range actx.Positions {
		price, ok := actx.Prices[position.Symbol]
		if !ok {
			price = position.AverageCost
		}
		value := position.Quantity * price
		values[position.Symbol] = value
		total += value
	}

	weights := make(map[string]float64, len(values))
	if total <= 0 {
		return weights
	}
	for symbol, value := range values {
		weights[symbol] = value / total
	}
	return weights
}
