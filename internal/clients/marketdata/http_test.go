package marketdata

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newQuoteServer(t *testing.T, open bool) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/quote", func(w http.ResponseWriter, r *http.Request) {
		symbol := r.URL.Query().Get("symbol")
		switch symbol {
		case "AAPL":
			fmt.Fprintf(w, `{"symbol": "AAPL", "price": 187.32}`)
		case "FREE":
			fmt.Fprintf(w, `{"symbol": "FREE", "price": 0}`)
		default:
			http.Error(w, "unknown symbol", http.StatusNotFound)
		}
	})
	mux.HandleFunc("/history", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "5", r.URL.Query().Get("days"))
		fmt.Fprintf(w, `{"symbol": "AAPL", "closes": [180.1, 182.4, 181.0, 185.5, 187.32]}`)
	})
	mux.HandleFunc("/clock", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"is_open": %t}`, open)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestHTTPClientPriceOf(t *testing.T) {
	server := newQuoteServer(t, true)
	client := NewHTTPClient(server.URL, zerolog.Nop())

	price, err := client.PriceOf("AAPL")
	require.NoError(t, err)
	assert.Equal(t, 187.32, price)
}

func TestHTTPClientRejectsNonPositivePrice(t *testing.T) {
	server := newQuoteServer(t, true)
	client := NewHTTPClient(server.URL, zerolog.Nop())

	_, err := client.PriceOf("FREE")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-positive price")
}

func TestHTTPClientSurfacesHTTPErrors(t *testing.T) {
	server := newQuoteServer(t, true)
	client := NewHTTPClient(server.URL, zerolog.Nop())

	_, err := client.PriceOf("UNLISTED")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestHTTPClientHistory(t *testing.T) {
	server := newQuoteServer(t, true)
	client := NewHTTPClient(server.URL, zerolog.Nop())

	closes, err := client.History("AAPL", 5)
	require.NoError(t, err)
	assert.Equal(t, []float64{180.1, 182.4, 181.0, 185.5, 187.32}, closes)
}

func TestHTTPClientMarketClock(t *testing.T) {
	openServer := newQuoteServer(t, true)
	assert.True(t, NewHTTPClient(openServer.URL, zerolog.Nop()).IsMarketOpen())

	closedServer := newQuoteServer(t, false)
	assert.False(t, NewHTTPClient(closedServer.URL, zerolog.Nop()).IsMarketOpen())
}

func TestHTTPClientClockFailureReadsAsClosed(t *testing.T) {
	server := newQuoteServer(t, true)
	server.Close()

	client := NewHTTPClient(server.URL, zerolog.Nop())
	assert.False(t, client.IsMarketOpen())
}

type fixedProvider struct {
	prices  map[string]float64
	history map[string][]float64
	open    bool
}

func (p fixedProvider) Name() string { return "fixed" }

func (p fixedProvider) PriceOf(symbol string) (float64, error) {
	price, ok := p.prices[symbol]
	if !ok {
		return 0, errors.New("no quote")
	}
	return price, nil
}

func (p fixedProvider) History(symbol string, days int) ([]float64, error) {
	closes, ok := p.history[symbol]
	if !ok {
		return nil, errors.New("no history")
	}
	return closes, nil
}

func (p fixedProvider) IsMarketOpen() bool { return p.open }

func TestTakeSnapshotSkipsFailedSymbols(t *testing.T) {
	provider := fixedProvider{
		prices:  map[string]float64{"AAPL": 100},
		history: map[string][]float64{"AAPL": {98, 99, 100}},
		open:    true,
	}

	snapshot := TakeSnapshot(provider, []string{"AAPL", "MISSING"}, 3)

	assert.True(t, snapshot.Open)
	assert.Equal(t, map[string]float64{"AAPL": 100}, snapshot.Prices)
	assert.Equal(t, []float64{98, 99, 100}, snapshot.History["AAPL"])
	_, ok := snapshot.Prices["MISSING"]
	assert.False(t, ok)
}

func TestTakeSnapshotSkipsHistoryWhenNotRequested(t *testing.T) {
	provider := fixedProvider{
		prices: map[string]float64{"AAPL": 100},
		open:   false,
	}

	snapshot := TakeSnapshot(provider, []string{"AAPL"}, 0)

	assert.False(t, snapshot.Open)
	assert.Empty(t, snapshot.History)
}
