package formulas

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// TradingDaysPerYear is the annualization basis for daily series.
const TradingDaysPerYear = 252

// Mean calculates the arithmetic mean of a slice of float64 values
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.Mean(data, nil)
}

// StdDev calculates the standard deviation of a slice of float64 values
func StdDev(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.StdDev(data, nil)
}

// Variance calculates the variance of a slice of float64 values
func Variance(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.Variance(data, nil)
}

// AnnualizedVolatility calculates annualized volatility from daily returns
func AnnualizedVolatility(dailyReturns []float64) float64 {
	if len(dailyReturns) == 0 {
		return 0
	}
	return StdDev(dailyReturns) * math.Sqrt(TradingDaysPerYear)
}

// Returns converts a value series to percentage returns.
// Returns[i] = (Value[i] - Value[i-1]) / Value[i-1]
func Returns(values []float64) []float64 {
	if len(values) < 2 {
		return []float64{}
	}

	returns := make([]float64, len(values)-1)
	for i := 1; i < len(values); i++ {
		if values[i-1] != 0 {
			returns[i-1] = (values[i] - values[i-1]) / values[i-1]
		}
	}

	return returns
}

// Momentum calculates the percentage change over the last 'days' observations.
// Returns nil when the series is too short.
func Momentum(values []float64, days int) *float64 {
	if len(values) < days+1 {
		return nil
	}

	start := values[len(values)-days-1]
	end := values[len(values)-1]
	if start == 0 {
		return nil
	}

	m := (end - start) / start
	return &m
}
