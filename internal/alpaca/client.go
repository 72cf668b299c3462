package alpaca

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Bensk-96/pairs-trading-alpaca/internal/ledger"
)

const defaultBaseURL = "https://paper-api.alpaca.markets"

// Client is the single shared venue session: one long-lived HTTP connection
// pool with auth headers, constructed at startup and passed by reference into
// the order manager and the position ledger.
type Client struct {
	http    *http.Client
	baseURL string
	creds   Credentials
	log     zerolog.Logger
}

// ClientOption configures Client construction parameters.
type ClientOption func(*Client)

// WithBaseURL points the client at a different trading API host (tests, live).
func WithBaseURL(base string) ClientOption {
	return func(c *Client) {
		if base != "" {
			c.baseURL = strings.TrimSuffix(base, "/")
		}
	}
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// NewClient builds the shared venue session.
func NewClient(creds Credentials, log zerolog.Logger, opts ...ClientOption) *Client {
	c := &Client{
		http:    &http.Client{Timeout: 10 * time.Second},
		baseURL: defaultBaseURL,
		creds:   creds,
		log:     log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Close releases the session's idle connections. Safe to call on every exit path.
func (c *Client) Close() {
	c.http.CloseIdleConnections()
}

func (c *Client) do(ctx context.Context, method, path string, body any) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("APCA-API-KEY-ID", c.creds.KeyID)
	req.Header.Set("APCA-API-SECRET-KEY", c.creds.SecretKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("http do: %w", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, data, nil
}

// SubmitOrder posts a new order. Any non-200 status comes back as *APIError.
func (c *Client) SubmitOrder(ctx context.Context, req OrderRequest) (Order, error) {
	status, body, err := c.do(ctx, http.MethodPost, "/v2/orders", req)
	if err != nil {
		return Order{}, err
	}
	if status != http.StatusOK {
		return Order{}, &APIError{Status: status, Body: string(body)}
	}
	var order Order
	if err := json.Unmarshal(body, &order); err != nil {
		return Order{}, fmt.Errorf("decode order: %w", err)
	}
	return order, nil
}

// CancelOrder deletes a single order. The venue answers 204 on success, 404 for
// unknown IDs, and 422 when the order is no longer cancelable.
func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	status, body, err := c.do(ctx, http.MethodDelete, "/v2/orders/"+orderID, nil)
	if err != nil {
		return err
	}
	if status != http.StatusNoContent {
		return &APIError{Status: status, Body: string(body)}
	}
	return nil
}

// CancelAllOrders deletes every open order. The venue answers 207 with one
// status entry per order; anything else is an *APIError.
func (c *Client) CancelAllOrders(ctx context.Context) ([]CancelStatus, error) {
	status, body, err := c.do(ctx, http.MethodDelete, "/v2/orders", nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusMultiStatus {
		return nil, &APIError{Status: status, Body: string(body)}
	}
	var statuses []CancelStatus
	if err := json.Unmarshal(body, &statuses); err != nil {
		return nil, fmt.Errorf("decode cancel statuses: %w", err)
	}
	return statuses, nil
}

type closeAllEntry struct {
	Symbol string          `json:"symbol"`
	Status int             `json:"status"`
	Body   json.RawMessage `json:"body"`
}

// CloseAllPositions liquidates the whole book, optionally canceling open orders
// first. The venue answers 207 with one entry per position.
func (c *Client) CloseAllPositions(ctx context.Context, cancelOrders bool) ([]CloseStatus, error) {
	path := "/v2/positions?cancel_orders=" + strconv.FormatBool(cancelOrders)
	status, body, err := c.do(ctx, http.MethodDelete, path, nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusMultiStatus {
		return nil, &APIError{Status: status, Body: string(body)}
	}
	var entries []closeAllEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("decode close statuses: %w", err)
	}
	out := make([]CloseStatus, 0, len(entries))
	for _, e := range entries {
		out = append(out, CloseStatus{Symbol: e.Symbol, Status: e.Status, Body: string(e.Body)})
	}
	return out, nil
}

// ClosePosition liquidates one symbol, fully or by qty/percentage.
func (c *Client) ClosePosition(ctx context.Context, symbol string, params CloseParams) (Order, error) {
	values := url.Values{}
	if params.Qty != nil {
		values.Set("qty", strconv.FormatFloat(*params.Qty, 'f', -1, 64))
	}
	if params.Percentage != nil {
		values.Set("percentage", strconv.FormatFloat(*params.Percentage, 'f', -1, 64))
	}
	path := "/v2/positions/" + symbol
	if encoded := values.Encode(); encoded != "" {
		path += "?" + encoded
	}
	status, body, err := c.do(ctx, http.MethodDelete, path, nil)
	if err != nil {
		return Order{}, err
	}
	if status != http.StatusOK {
		return Order{}, &APIError{Status: status, Body: string(body)}
	}
	var order Order
	if err := json.Unmarshal(body, &order); err != nil {
		return Order{}, fmt.Errorf("decode close order: %w", err)
	}
	return order, nil
}

// Positions fetches the authoritative position for one symbol, or the full book
// when symbol is empty. Implements ledger.Fetcher.
func (c *Client) Positions(ctx context.Context, symbol string) ([]ledger.Position, error) {
	path := "/v2/positions"
	if symbol != "" {
		path += "/" + symbol
	}
	status, body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, &APIError{Status: status, Body: string(body)}
	}

	var payloads []positionPayload
	if symbol != "" {
		var single positionPayload
		if err := json.Unmarshal(body, &single); err != nil {
			return nil, fmt.Errorf("decode position: %w", err)
		}
		payloads = []positionPayload{single}
	} else if err := json.Unmarshal(body, &payloads); err != nil {
		return nil, fmt.Errorf("decode positions: %w", err)
	}

	out := make([]ledger.Position, 0, len(payloads))
	for _, p := range payloads {
		out = append(out, ledger.Position{
			Symbol:        strings.TrimSpace(p.Symbol),
			Qty:           parseFloat(p.Qty),
			AvgEntryPrice: parseFloat(p.AvgEntryPrice),
			MarketValue:   parseFloat(p.MarketValue),
			UnrealizedPL:  parseFloat(p.UnrealizedPL),
		})
	}
	return out, nil
}

// Clock returns the venue market-clock snapshot.
func (c *Client) Clock(ctx context.Context) (Clock, error) {
	status, body, err := c.do(ctx, http.MethodGet, "/v2/clock", nil)
	if err != nil {
		return Clock{}, err
	}
	if status != http.StatusOK {
		return Clock{}, &APIError{Status: status, Body: string(body)}
	}
	var clock Clock
	if err := json.Unmarshal(body, &clock); err != nil {
		return Clock{}, fmt.Errorf("decode clock: %w", err)
	}
	return clock, nil
}

// Calendar returns trading days between start and end (YYYY-MM-DD).
func (c *Client) Calendar(ctx context.Context, start, end string) ([]CalendarDay, error) {
	values := url.Values{}
	if start != "" {
		values.Set("start", start)
	}
	if end != "" {
		values.Set("end", end)
	}
	path := "/v2/calendar"
	if encoded := values.Encode(); encoded != "" {
		path += "?" + encoded
	}
	status, body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, &APIError{Status: status, Body: string(body)}
	}
	var days []CalendarDay
	if err := json.Unmarshal(body, &days); err != nil {
		return nil, fmt.Errorf("decode calendar: %w", err)
	}
	return days, nil
}

// TimeUntilClose reports the remaining session time, false when the market is closed.
func (c *Client) TimeUntilClose(ctx context.Context) (time.Duration, bool, error) {
	clock, err := c.Clock(ctx)
	if err != nil {
		return 0, false, err
	}
	if !clock.IsOpen {
		return 0, false, nil
	}
	return clock.NextClose.Sub(clock.Timestamp), true, nil
}
