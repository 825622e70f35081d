// Package marketdata provides price and trading-calendar providers used to
// build decision contexts and to value positions.
package marketdata

// Provider supplies instrument prices and market clock state. Failures are
// surfaced to the caller; retry policy, if any, lives inside the provider.
type Provider interface {
	// PriceOf returns the current price for a symbol.
	PriceOf(symbol string) (float64, error)

	// History returns up to days daily closing prices for a symbol, oldest
	// first. Providers may return fewer points than requested.
	History(symbol string, days int) ([]float64, error)

	// IsMarketOpen reports whether the market is currently in a trading
	// window.
	IsMarketOpen() bool

	// Name identifies the provider for logging and status endpoints.
	Name() string
}

// Snapshot is a point-in-time view of the market for a set of symbols.
type Snapshot struct {
	Prices  map[string]float64   `json:"prices"`
	History map[string][]float64 `json:"-"`
	Open    bool                 `json:"open"`
}

// TakeSnapshot collects prices and history for all symbols from a provider.
// Symbols whose price lookup fails are skipped; an empty snapshot is still
// usable (positions fall back to average cost for valuation).
func TakeSnapshot(provider Provider, symbols []string, historyDays int) *Snapshot {
	snapshot := &Snapshot{
		Prices:  make(map[string]float64),
		History: make(map[string][]float64),
		Open:    provider.IsMarketOpen(),
	}

	for _, symbol := range symbols {
		price, err := provider.PriceOf(symbol)
		if err != nil {
			continue
		}
		snapshot.Prices[symbol] = price

		if historyDays > 0 {
			if history, err := provider.History(symbol, historyDays); err == nil {
				snapshot.History[symbol] = history
			}
		}
	}

	return snapshot
}
