package marketdata

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

// HTTPClient fetches quotes and the market clock from a JSON quote service.
//
// Expected endpoints:
//
//	GET {base}/quote?symbol=AAPL      -> {"symbol": "AAPL", "price": 187.32}
//	GET {base}/history?symbol=AAPL&days=30 -> {"symbol": "AAPL", "closes": [...]}
//	GET {base}/clock                  -> {"is_open": true}
type HTTPClient struct {
	baseURL string
	client  *http.Client
	log     zerolog.Logger
}

// NewHTTPClient creates a market data client against a quote service
func NewHTTPClient(baseURL string, log zerolog.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		log: log.With().Str("client", "marketdata_http").Logger(),
	}
}

// Name implements Provider
func (c *HTTPClient) Name() string {
	return "http"
}

type quoteResponse struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
}

type historyResponse struct {
	Symbol string    `json:"symbol"`
	Closes []float64 `json:"closes"`
}

type clockResponse struct {
	IsOpen bool `json:"is_open"`
}

// PriceOf implements Provider
func (c *HTTPClient) PriceOf(symbol string) (float64, error) {
	var quote quoteResponse
	params := url.Values{"symbol": {symbol}}
	if err := c.getJSON("/quote", params, &quote); err != nil {
		return 0, fmt.Errorf("failed to fetch quote for %s: %w", symbol, err)
	}

	if quote.Price <= 0 {
		return 0, fmt.Errorf("quote service returned non-positive price %v for %s", quote.Price, symbol)
	}

	return quote.Price, nil
}

// History implements Provider
func (c *HTTPClient) History(symbol string, days int) ([]float64, error) {
	var history historyResponse
	params := url.Values{
		"symbol": {symbol},
		"days":   {strconv.Itoa(days)},
	}
	if err := c.getJSON("/history", params, &history); err != nil {
		return nil, fmt.Errorf("failed to fetch history for %s: %w", symbol, err)
	}

	return history.Closes, nil
}

// IsMarketOpen implements Provider. A clock failure counts as closed: better
// to skip a cycle than to trade against a service in an unknown state.
func (c *HTTPClient) IsMarketOpen() bool {
	var clock clockResponse
	if err := c.getJSON("/clock", nil, &clock); err != nil {
		c.log.Warn().Err(err).Msg("Market clock unavailable, treating market as closed")
		return false
	}
	return clock.IsOpen
}

func (c *HTTPClient) getJSON(path string, params url.Values, out interface{}) error {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	resp, err := c.client.Get(endpoint)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}
