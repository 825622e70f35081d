package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/aristath/overseer/internal/domain"
)

// Thresholds for the rules engine's composite-score decisions
const (
	buyThreshold  = 0.25
	sellThreshold = -0.25

	// tradeFraction is the share of cash a single buy commits
	tradeFraction = 0.10

	// rebalanceWeight is the target weight per holding in REBALANCING mode
	rebalanceWeight = 0.20
)

// Rules is the deterministic decision engine. It needs no network: it ranks
// the watchlist by the composite analysis score and trades against fixed
// thresholds. Default engine when no LLM key is configured.
type Rules struct {
	log zerolog.Logger
}

// NewRules creates the rules engine
func NewRules(log zerolog.Logger) *Rules {
	return &Rules{
		log: log.With().Str("component", "engine_rules").Logger(),
	}
}

// Name implements Engine
func (e *Rules) Name() string {
	return "rules"
}

// Propose implements Engine
func (e *Rules) Propose(ctx context.Context, dctx *Context) (*Proposal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	composite := CompositeScores(dctx.Reports)

	var intents []TradeIntent
	var notes []string

	switch dctx.Mode {
	case domain.ModeObservation:
		notes = append(notes, e.observe(composite))

	case domain.ModeTrading:
		intents, notes = e.trade(dctx, composite)

	case domain.ModeRebalancing:
		intents, notes = e.rebalance(dctx)

	default:
		return nil, fmt.Errorf("rules engine cannot handle mode %s", dctx.Mode)
	}

	if !dctx.MarketOpen && len(intents) > 0 {
		notes = append(notes, fmt.Sprintf("market closed, withholding %d intents", len(intents)))
		intents = nil
	}

	intents = CapIntents(intents, dctx.MaxSteps)

	explanation := strings.Join(notes, "; ")
	if explanation == "" {
		explanation = "no signals crossed a threshold"
	}

	return &Proposal{
		Intents:     intents,
		Explanation: explanation,
	}, nil
}

func (e *Rules) observe(composite map[string]float64) string {
	best, bestScore := "", -2.0
	for symbol, score := range composite {
		if score > bestScore {
			best, bestScore = symbol, score
		}
	}
	if best == "" {
		return "observation cycle: no scored symbols"
	}
	return fmt.Sprintf("observation cycle: strongest signal %s at %.2f, no trades by mode", best, bestScore)
}

// trade sells held symbols that score below the sell threshold, then buys the
// best-scoring symbols above the buy threshold with a fixed cash fraction
// each.
func (e *Rules) trade(dctx *Context, composite map[string]float64) ([]TradeIntent, []string) {
	var intents []TradeIntent
	var notes []string

	held := make(map[string]domain.Position, len(dctx.Positions))
	for _, position := range dctx.Positions {
		held[position.Symbol] = position
	}

	// Exits first: freed cash funds the entries that follow
	for _, position := range dctx.Positions {
		score, scored := composite[position.Symbol]
		if !scored || score >= sellThreshold {
			continue
		}
		intents = append(intents, TradeIntent{
			Symbol:    position.Symbol,
			Action:    domain.ActionSell,
			Quantity:  position.Quantity,
			Rationale: fmt.Sprintf("composite score %.2f below exit threshold %.2f", score, sellThreshold),
		})
	}

	// Entries: best scores first, deterministic tie-break on symbol
	candidates := make([]string, 0, len(composite))
	for symbol, score := range composite {
		if score > buyThreshold {
			if _, alreadyHeld := held[symbol]; !alreadyHeld {
				candidates = append(candidates, symbol)
			}
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		if composite[candidates[i]] != composite[candidates[j]] {
			return composite[candidates[i]] > composite[candidates[j]]
		}
		return candidates[i] < candidates[j]
	})

	budget := dctx.Cash
	for _, symbol := range candidates {
		price, havePrice := dctx.Prices[symbol]
		if !havePrice || price <= 0 {
			continue
		}

		spend := dctx.Cash * tradeFraction
		if spend > budget {
			break
		}
		quantity := float64(int(spend / price))
		if quantity < 1 {
			continue
		}

		budget -= quantity * price
		intents = append(intents, TradeIntent{
			Symbol:    symbol,
			Action:    domain.ActionBuy,
			Quantity:  quantity,
			Rationale: fmt.Sprintf("composite score %.2f above entry threshold %.2f", composite[symbol], buyThreshold),
		})
	}

	notes = append(notes, fmt.Sprintf("trading cycle: %d intents from %d scored symbols", len(intents), len(composite)))
	return intents, notes
}

// rebalance trims holdings above the target weight back to it. Rebalancing
// only sells; redeploying freed cash is the next trading cycle's job.
func (e *Rules) rebalance(dctx *Context) ([]TradeIntent, []string) {
	total := dctx.Cash
	values := make(map[string]float64, len(dctx.Positions))
	for _, position := range dctx.Positions {
		price, ok := dctx.Prices[position.Symbol]
		if !ok {
			price = position.AverageCost
		}
		value := position.Quantity * price
		values[position.Symbol] = value
		total += value
	}

	var intents []TradeIntent
	if total <= 0 {
		return nil, []string{"rebalancing cycle: empty portfolio"}
	}

	for _, position := range dctx.Positions {
		weight := values[position.Symbol] / total
		if weight <= rebalanceWeight {
			continue
		}

		price, ok := dctx.Prices[position.Symbol]
		if !ok || price <= 0 {
			continue
		}

		excessValue := values[position.Symbol] - total*rebalanceWeight
		quantity := float64(int(excessValue / price))
		if quantity < 1 {
			continue
		}

		intents = append(intents, TradeIntent{
			Symbol:    position.Symbol,
			Action:    domain.ActionSell,
			Quantity:  quantity,
			Rationale: fmt.Sprintf("weight %.1f%% above target %.1f%%", weight*100, rebalanceWeight*100),
		})
	}

	return intents, []string{fmt.Sprintf("rebalancing cycle: trimming %d overweight holdings", len(intents))}
}
