// Package engine provides the decision engines that propose trades for an
// execution cycle. Engines are black boxes to the orchestrator: they receive
// a decision context and return an ordered list of trade intents plus an
// explanation.
package engine

import (
	"context"
	"fmt"

	"github.com/aristath/overseer/internal/analysis"
	"github.com/aristath/overseer/internal/domain"
)

// Context is the market and portfolio view an engine decides from
type Context struct {
	AgentID    string
	Mode       domain.AgentMode
	Cash       float64
	Positions  []domain.Position
	Symbols    []string
	Prices     map[string]float64
	MarketOpen bool
	Reports    []analysis.Report

	// MaxSteps bounds engine-side iterations: no proposal may carry more
	// intents than this.
	MaxSteps int
}

// TradeIntent is a proposed trade, not yet validated or applied
type TradeIntent struct {
	Symbol    string             `json:"symbol"`
	Action    domain.TradeAction `json:"action"`
	Quantity  float64            `json:"quantity"`
	Rationale string             `json:"rationale"`
}

// Proposal is the outcome of one engine invocation. Intents are applied
// strictly in order.
type Proposal struct {
	Intents     []TradeIntent `json:"intents"`
	Explanation string        `json:"explanation"`
}

// Engine proposes trades for a decision context
type Engine interface {
	Name() string
	Propose(ctx context.Context, dctx *Context) (*Proposal, error)
}

// ValidateIntent checks an intent's fields before it reaches the ledger.
// Engines (particularly the LLM-backed one) can emit garbage; this is the
// boundary where it is caught.
func ValidateIntent(intent TradeIntent) error {
	if intent.Symbol == "" {
		return fmt.Errorf("intent has empty symbol")
	}
	if _, err := domain.ParseTradeAction(string(intent.Action)); err != nil {
		return err
	}
	if intent.Quantity <= 0 {
		return fmt.Errorf("intent for %s has non-positive quantity %v", intent.Symbol, intent.Quantity)
	}
	return nil
}

// CapIntents truncates a proposal to at most maxSteps intents, preserving
// order.
func CapIntents(intents []TradeIntent, maxSteps int) []TradeIntent {
	if maxSteps > 0 && len(intents) > maxSteps {
		return intents[:maxSteps]
	}
	return intents
}

// CompositeScores averages every report's score per symbol. Symbols no
// provider scored are absent from the result.
func CompositeScores(reports []analysis.Report) map[string]float64 {
	sums := make(map[string]float64)
	counts := make(map[string]int)

	for _, report := range reports {
		for symbol, score := range report.Scores {
			sums[symbol] += score
			counts[symbol]++
		}
	}

	composite := make(map[string]float64, len(sums))
	for symbol, sum := range sums {
		composite[symbol] = sum / float64(counts[symbol])
	}
	return composite
}
