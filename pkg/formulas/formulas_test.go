package formulas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReturns(t *testing.T) {
	prices := []float64{100, 110, 99}
	returns := Returns(prices)

	require.Len(t, returns, 2)
	assert.InDelta(t, 0.10, returns[0], 1e-9)
	assert.InDelta(t, -0.10, returns[1], 1e-9)
}

func TestReturnsShortSeries(t *testing.T) {
	assert.Empty(t, Returns([]float64{100}))
	assert.Empty(t, Returns(nil))
}

func TestMeanAndStdDev(t *testing.T) {
	data := []float64{2, 4, 4, 4, 5, 5, 7, 9}

	assert.InDelta(t, 5.0, Mean(data), 1e-9)
	// Sample standard deviation of the series above.
	assert.InDelta(t, 2.138, StdDev(data), 1e-3)
	assert.Equal(t, 0.0, Mean(nil))
	assert.Equal(t, 0.0, StdDev(nil))
}

func TestSharpeRatio(t *testing.T) {
	// Constant positive returns have zero dispersion: no ratio.
	flat := []float64{0.01, 0.01, 0.01}
	assert.Nil(t, SharpeRatio(flat, 0, 252))

	returns := []float64{0.01, -0.005, 0.02, 0.007, -0.001}
	sharpe := SharpeRatio(returns, 0, 252)
	require.NotNil(t, sharpe)
	assert.Greater(t, *sharpe, 0.0)

	assert.Nil(t, SharpeRatio([]float64{0.01}, 0, 252))
}

func TestSortinoRatio(t *testing.T) {
	// All returns above target: downside deviation undefined.
	up := []float64{0.01, 0.02, 0.03}
	assert.Nil(t, SortinoRatio(up, 0, 0, 252))

	mixed := []float64{0.02, -0.01, 0.015, -0.02, 0.03}
	sortino := SortinoRatio(mixed, 0, 0, 252)
	require.NotNil(t, sortino)
	assert.Greater(t, *sortino, 0.0)
}

func TestMaxDrawdown(t *testing.T) {
	values := []float64{100, 120, 90, 110, 80}
	dd := MaxDrawdown(values)

	require.NotNil(t, dd)
	// Peak 120 -> trough 80.
	assert.InDelta(t, (120.0-80.0)/120.0, *dd, 1e-9)

	assert.Nil(t, MaxDrawdown([]float64{100}))
}

func TestCurrentDrawdown(t *testing.T) {
	values := []float64{100, 120, 110}
	dd := CurrentDrawdown(values)

	require.NotNil(t, dd)
	assert.InDelta(t, (120.0-110.0)/120.0, *dd, 1e-9)
}

func TestMomentum(t *testing.T) {
	values := []float64{100, 101, 102, 103, 104, 110}
	m := Momentum(values, 5)

	require.NotNil(t, m)
	assert.InDelta(t, 0.10, *m, 1e-9)

	assert.Nil(t, Momentum(values, 10))
}
