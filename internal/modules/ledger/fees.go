package ledger

import "github.com/aristath/overseer/internal/domain"

// FeePolicy assesses the commission and tax for a trade. The ledger depends
// only on the returned values, so policies are swappable per deployment.
type FeePolicy interface {
	Assess(action domain.TradeAction, quantity, price float64) (fee float64, tax float64)
}

// RateFeePolicy charges a proportional commission with a floor, and a
// proportional tax on sells only.
type RateFeePolicy struct {
	CommissionRate float64
	MinCommission  float64
	SellTaxRate    float64
}

// Assess implements FeePolicy
func (p RateFeePolicy) Assess(action domain.TradeAction, quantity, price float64) (float64, float64) {
	gross := quantity * price

	fee := gross * p.CommissionRate
	if fee < p.MinCommission {
		fee = p.MinCommission
	}

	tax := 0.0
	if action == domain.ActionSell {
		tax = gross * p.SellTaxRate
	}

	return fee, tax
}
