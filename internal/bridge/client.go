// Package bridge is the HTTP client for the out-of-process broker and
// market-data adapter, an external collaborator with a fixed JSON
// contract. Every call is retried per
// pkg/utils.DefaultRetryConfig and wrapped as an errs.Transient
// failure on exhaustion, so callers never have to special-case a
// broker timeout differently from any other TransientExternal fault.
package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"github.com/twequity/trading-engine/internal/errs"
	"github.com/twequity/trading-engine/pkg/types"
	"github.com/twequity/trading-engine/pkg/utils"
)

// Config holds the bridge's base URL and per-request timeout
// (trading.bridge.{url,timeoutMs}).
type Config struct {
	URL     string
	Timeout time.Duration
	Retry   utils.RetryConfig
}

// DefaultConfig returns a Config pointed at localhost with the
// default order-executor retry policy.
func DefaultConfig() Config {
	return Config{
		URL:     "http://localhost:9100",
		Timeout: 5 * time.Second,
		Retry:   utils.DefaultRetryConfig(),
	}
}

// Client talks to the bridge over HTTP.
type Client struct {
	config Config
	http   *http.Client
}

// New builds a Client against config.
func New(config Config) *Client {
	if config.Timeout == 0 {
		config.Timeout = 5 * time.Second
	}
	if config.Retry.MaxAttempts == 0 {
		config.Retry = utils.DefaultRetryConfig()
	}
	return &Client{
		config: config,
		http:   &http.Client{Timeout: config.Timeout},
	}
}

// HealthStatus mirrors GET /health.
type HealthStatus struct {
	Status    string    `json:"status"`
	Connected bool      `json:"connected"`
	Mode      types.Mode `json:"mode"`
}

// Health reports the bridge's connection status, used for the
// staleness check at the top of every engine tick.
func (c *Client) Health(ctx context.Context) (HealthStatus, error) {
	var out HealthStatus
	err := c.getJSON(ctx, "/health", nil, &out)
	return out, err
}

// SignalQuote mirrors GET /signal's response.
type SignalQuote struct {
	CurrentPrice decimal.Decimal  `json:"current_price"`
	Direction    *types.Direction `json:"direction"`
	Momentum3m   decimal.Decimal  `json:"momentum_3m"`
	Momentum5m   decimal.Decimal  `json:"momentum_5m"`
	VolumeRatio  decimal.Decimal  `json:"volume_ratio"`
	ExitSignal   bool             `json:"exit_signal"`
}

// Signal fetches the bridge's momentum/exit hint for symbol.
func (c *Client) Signal(ctx context.Context, symbol string) (SignalQuote, error) {
	var out SignalQuote
	err := c.getJSON(ctx, "/signal", url.Values{"symbol": {symbol}}, &out)
	return out, err
}

// streamQuote is one element of GET /stream/quotes's quotes array.
type streamQuote struct {
	Price     decimal.Decimal `json:"price"`
	Volume    int64            `json:"volume"`
	Timestamp time.Time        `json:"timestamp"`
}

type streamQuotesResponse struct {
	Quotes []streamQuote `json:"quotes"`
	Count  int           `json:"count"`
}

// StreamQuotes fetches up to limit of the most recent trade prints for
// symbol.
func (c *Client) StreamQuotes(ctx context.Context, symbol string, limit int) ([]streamQuote, error) {
	var out streamQuotesResponse
	err := c.getJSON(ctx, "/stream/quotes", url.Values{
		"symbol": {symbol},
		"limit":  {fmt.Sprintf("%d", limit)},
	}, &out)
	return out.Quotes, err
}

type orderBookLevel struct {
	Price  decimal.Decimal `json:"price"`
	Volume int64            `json:"volume"`
}

type orderBookResponse struct {
	Bids      []orderBookLevel `json:"bids"`
	Asks      []orderBookLevel `json:"asks"`
	Timestamp time.Time        `json:"timestamp"`
}

// OrderBook fetches the top-of-book snapshot for symbol and converts it
// into a types.Quote.
func (c *Client) OrderBook(ctx context.Context, symbol string) (types.Quote, error) {
	var out orderBookResponse
	if err := c.getJSON(ctx, "/orderbook/"+symbol, nil, &out); err != nil {
		return types.Quote{}, err
	}
	q := types.Quote{Symbol: symbol, Timestamp: out.Timestamp}
	for _, b := range out.Bids {
		q.Bids = append(q.Bids, types.OrderBookLevel{Price: b.Price, Size: b.Volume})
	}
	for _, a := range out.Asks {
		q.Asks = append(q.Asks, types.OrderBookLevel{Price: a.Price, Size: a.Volume})
	}
	return q, nil
}

// OrderRequest mirrors POST /order's request body.
type OrderRequest struct {
	Symbol   string          `json:"symbol"`
	Action   types.OrderSide `json:"action"`
	Quantity int64           `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

// OrderResponse mirrors POST /order's response body. Status is
// "filled" or "rejected"; OrderID is set only when filled, Reason only
// when rejected.
type OrderResponse struct {
	Status  types.OrderStatus `json:"status"`
	OrderID string            `json:"order_id,omitempty"`
	Reason  string            `json:"reason,omitempty"`
}

// SubmitOrder places an order and blocks for its synchronous fill
// result; simulation mode fills synchronously.
func (c *Client) SubmitOrder(ctx context.Context, req OrderRequest) (OrderResponse, error) {
	var out OrderResponse
	err := c.postJSON(ctx, "/order", req, &out)
	return out, err
}

// Shutdown asks the bridge to stop accepting orders, used when the
// engine itself is shutting down.
func (c *Client) Shutdown(ctx context.Context) error {
	var out struct {
		Status string `json:"status"`
	}
	return c.postJSON(ctx, "/shutdown", struct{}{}, &out)
}

// Account mirrors GET /account.
type Account struct {
	Equity          decimal.Decimal `json:"equity"`
	AvailableMargin decimal.Decimal `json:"available_margin"`
}

// Account fetches the broker-reported equity and available margin.
func (c *Client) Account(ctx context.Context) (Account, error) {
	var out Account
	err := c.getJSON(ctx, "/account", nil, &out)
	return out, err
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out interface{}) error {
	u := c.config.URL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	_, err := utils.Retry(ctx, c.config.Retry, func() (struct{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return struct{}{}, err
		}
		return struct{}{}, c.do(req, out)
	})
	if err != nil {
		return errs.Transient("bridge.get", err)
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return errs.Validation("bridge.post.marshal", err)
	}
	u := c.config.URL + path
	_, err = utils.Retry(ctx, c.config.Retry, func() (struct{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
		if err != nil {
			return struct{}{}, err
		}
		req.Header.Set("Content-Type", "application/json")
		return struct{}{}, c.do(req, out)
	})
	if err != nil {
		return errs.Transient("bridge.post", err)
	}
	return nil
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("bridge: %s %s: status %d", req.Method, req.URL.Path, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("bridge: %s %s: client error status %d (not retried)", req.Method, req.URL.Path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
