package formulas

import (
	"math"
)

// SharpeRatio calculates the annualized Sharpe ratio from periodic returns.
//
//	Sharpe = (Mean Return - Periodic Risk-free Rate) / Std Dev of Returns
//	Annualized: Sharpe × sqrt(periodsPerYear)
//
// riskFreeRate is annual, as a decimal (0.02 for 2%). Returns nil when there
// is insufficient data or zero dispersion.
func SharpeRatio(returns []float64, riskFreeRate float64, periodsPerYear int) *float64 {
	if len(returns) < 2 {
		return nil
	}

	stdDev := StdDev(returns)
	if stdDev == 0 {
		return nil
	}

	periodicRiskFree := riskFreeRate / float64(periodsPerYear)
	sharpe := (Mean(returns) - periodicRiskFree) / stdDev

	annualized := sharpe * math.Sqrt(float64(periodsPerYear))
	return &annualized
}

// SortinoRatio calculates the annualized Sortino ratio (downside-deviation
// variant of Sharpe). targetReturn is the annual minimum acceptable return.
// Returns nil when no observation falls below the target.
func SortinoRatio(returns []float64, riskFreeRate, targetReturn float64, periodsPerYear int) *float64 {
	if len(returns) < 2 {
		return nil
	}

	periodicMAR := targetReturn / float64(periodsPerYear)

	var downsideSquaredSum float64
	downsideCount := 0
	for _, ret := range returns {
		if ret < periodicMAR {
			deviation := ret - periodicMAR
			downsideSquaredSum += deviation * deviation
			downsideCount++
		}
	}

	if downsideCount == 0 {
		return nil
	}

	downsideDeviation := math.Sqrt(downsideSquaredSum / float64(downsideCount))
	if downsideDeviation == 0 {
		return nil
	}

	periodicRiskFree := riskFreeRate / float64(periodsPerYear)
	sortino := (Mean(returns) - periodicRiskFree) / downsideDeviation

	annualized := sortino * math.Sqrt(float64(periodsPerYear))
	return &annualized
}
