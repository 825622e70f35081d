// Package analysis provides the pluggable analysis providers
// (fundamental/technical/sentiment/risk) that enrich an agent's decision
// context. Providers are a fixed set of variants behind one interface,
// registered explicitly at startup.
package analysis

import (
	"context"

	"github.com/aristath/overseer/internal/domain"
)

// Context carries the market view a provider analyzes. History series are
// daily closes, oldest first.
type Context struct {
	Mode      domain.AgentMode
	Cash      float64
	Positions []domain.Position
	Symbols   []string
	Prices    map[string]float64
	History   map[string][]float64
}

// Report is one provider's verdict. Scores are per symbol in [-1, 1]:
// positive favors holding or buying, negative favors reducing or avoiding.
type Report struct {
	Provider string             `json:"provider"`
	Scores   map[string]float64 `json:"scores"`
	Summary  string             `json:"summary"`
}

// Provider analyzes a market context and produces a report
type Provider interface {
	Name() string
	Analyze(ctx context.Context, actx *Context) (*Report, error)
}

// clamp limits a score to [-1, 1]
func clamp(score float64) float64 {
	if score > 1 {
		return 1
	}
	if score < -1 {
		return -1
	}
	return score
}
