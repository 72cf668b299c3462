// Package execution handles order lifecycle and interaction with the venue,
// converting transport and venue failures into typed results callers can act on.
package execution

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/Bensk-96/pairs-trading-alpaca/internal/alpaca"
	"github.com/Bensk-96/pairs-trading-alpaca/internal/metrics"
)

// Side enumerates order directions.
type Side string

const (
	// Buy indicates a long order.
	Buy Side = "buy"
	// Sell indicates a short order.
	Sell Side = "sell"
)

// TimeInForce enumerates the execution policies an order can carry.
type TimeInForce string

const (
	IOC TimeInForce = "ioc"
	Day TimeInForce = "day"
	GTC TimeInForce = "gtc"
)

// ErrorKind classifies a failed order operation so callers can branch without
// string-comparing error text.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindNotFound
	KindNotCancelable
	KindVenueRejected
	KindTransport
)

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindNotFound:
		return "not_found"
	case KindNotCancelable:
		return "not_cancelable"
	case KindVenueRejected:
		return "venue_rejected"
	case KindTransport:
		return "transport"
	default:
		return "unknown"
	}
}

// InsertResult reports the outcome of an order submission.
type InsertResult struct {
	OK      bool
	OrderID string
	Kind    ErrorKind
	Err     error
}

// CancelResult reports the outcome of a single cancellation.
type CancelResult struct {
	OK   bool
	Kind ErrorKind
	Err  error
}

// CancelAllResult reports a bulk cancel. OK is true only when every individual
// cancellation succeeded; Statuses maps order ID to its venue status code.
type CancelAllResult struct {
	OK       bool
	Statuses map[string]int
	Kind     ErrorKind
	Err      error
}

// CloseResult reports one symbol's outcome of a position close.
type CloseResult struct {
	Symbol string
	OK     bool
	Status int
	Kind   ErrorKind
	Err    error
}

// Venue is the slice of the venue session the manager needs.
type Venue interface {
	SubmitOrder(ctx context.Context, req alpaca.OrderRequest) (alpaca.Order, error)
	CancelOrder(ctx context.Context, orderID string) error
	CancelAllOrders(ctx context.Context) ([]alpaca.CancelStatus, error)
	CloseAllPositions(ctx context.Context, cancelOrders bool) ([]alpaca.CloseStatus, error)
	ClosePosition(ctx context.Context, symbol string, params alpaca.CloseParams) (alpaca.Order, error)
}

// Manager submits and cancels orders against the venue. It never retries: a
// failed operation is logged, classified, and handed back to the caller.
type Manager struct {
	venue Venue
	log   zerolog.Logger
}

// NewManager wraps the shared venue session.
func NewManager(venue Venue, log zerolog.Logger) *Manager {
	return &Manager{venue: venue, log: log}
}

func classify(err error) ErrorKind {
	var apiErr *alpaca.APIError
	if !errors.As(err, &apiErr) {
		return KindTransport
	}
	switch apiErr.Status {
	case http.StatusNotFound:
		return KindNotFound
	case http.StatusUnprocessableEntity:
		return KindNotCancelable
	default:
		return KindVenueRejected
	}
}

// Insert submits a limit order. Quantity is the absolute size; direction rides
// on side. tif selects the venue time-in-force policy.
func (m *Manager) Insert(ctx context.Context, symbol string, price, qty float64, side Side, tif TimeInForce) InsertResult {
	if side != Buy && side != Sell {
		return InsertResult{Kind: KindVenueRejected, Err: fmt.Errorf("invalid side %q", side)}
	}
	switch tif {
	case IOC, Day, GTC:
	default:
		return InsertResult{Kind: KindVenueRejected, Err: fmt.Errorf("invalid time in force %q", tif)}
	}

	order, err := m.venue.SubmitOrder(ctx, alpaca.OrderRequest{
		Symbol:      symbol,
		Qty:         qty,
		Side:        string(side),
		Type:        "limit",
		LimitPrice:  price,
		TimeInForce: string(tif),
	})
	if err != nil {
		kind := classify(err)
		m.log.Warn().Err(err).
			Str("symbol", symbol).
			Str("side", string(side)).
			Float64("qty", qty).
			Float64("price", price).
			Str("kind", kind.String()).
			Msg("order insertion failed")
		metrics.OrderFailuresTotal.WithLabelValues(symbol, kind.String()).Inc()
		return InsertResult{Kind: kind, Err: err}
	}

	m.log.Info().
		Str("symbol", symbol).
		Str("side", string(side)).
		Float64("qty", qty).
		Float64("price", price).
		Str("order_id", order.ID).
		Msg("order inserted")
	metrics.OrdersTotal.WithLabelValues(symbol, string(side)).Inc()
	return InsertResult{OK: true, OrderID: order.ID}
}

// Cancel cancels a single order. "Not found" and "no longer cancelable" come
// back as distinct non-fatal kinds so the strategy loop can carry on.
func (m *Manager) Cancel(ctx context.Context, orderID string) CancelResult {
	err := m.venue.CancelOrder(ctx, orderID)
	if err == nil {
		m.log.Info().Str("order_id", orderID).Msg("order canceled")
		return CancelResult{OK: true}
	}
	kind := classify(err)
	m.log.Warn().Err(err).Str("order_id", orderID).Str("kind", kind.String()).Msg("cancel failed")
	return CancelResult{Kind: kind, Err: err}
}

// CancelAll cancels every open order. The venue response may be partial;
// callers must inspect Statuses for per-order outcomes.
func (m *Manager) CancelAll(ctx context.Context) CancelAllResult {
	statuses, err := m.venue.CancelAllOrders(ctx)
	if err != nil {
		kind := classify(err)
		m.log.Warn().Err(err).Str("kind", kind.String()).Msg("cancel all orders failed")
		return CancelAllResult{Statuses: map[string]int{}, Kind: kind, Err: err}
	}

	result := CancelAllResult{OK: true, Statuses: make(map[string]int, len(statuses))}
	for _, st := range statuses {
		result.Statuses[st.ID] = st.Status
		if st.Status != http.StatusOK {
			result.OK = false
			m.log.Warn().Str("order_id", st.ID).Int("status", st.Status).Msg("order cancel rejected")
		}
	}
	return result
}

// CloseAll flattens every position. Each symbol's outcome is independent; one
// failure never masks another's success.
func (m *Manager) CloseAll(ctx context.Context, cancelOrders bool) []CloseResult {
	statuses, err := m.venue.CloseAllPositions(ctx, cancelOrders)
	if err != nil {
		kind := classify(err)
		m.log.Warn().Err(err).Str("kind", kind.String()).Msg("close all positions failed")
		return []CloseResult{{Symbol: "", Kind: kind, Err: err}}
	}

	results := make([]CloseResult, 0, len(statuses))
	for _, st := range statuses {
		res := CloseResult{Symbol: st.Symbol, Status: st.Status, OK: st.Status == http.StatusOK}
		if !res.OK {
			res.Kind = KindVenueRejected
			res.Err = fmt.Errorf("close %s: status %d: %s", st.Symbol, st.Status, st.Body)
			m.log.Warn().Str("symbol", st.Symbol).Int("status", st.Status).Msg("position close rejected")
		} else {
			m.log.Info().Str("symbol", st.Symbol).Msg("position closed")
		}
		results = append(results, res)
	}
	return results
}

// Close flattens one symbol. At most one of qty/percentage may be set; setting
// both is a caller contract violation and panics. Both nil closes fully.
func (m *Manager) Close(ctx context.Context, symbol string, qty, percentage *float64) CloseResult {
	if qty != nil && percentage != nil {
		panic("execution: specify either qty or percentage, not both")
	}
	if qty == nil && percentage == nil {
		m.log.Info().Str("symbol", symbol).Msg("closing full position")
	}

	_, err := m.venue.ClosePosition(ctx, symbol, alpaca.CloseParams{Qty: qty, Percentage: percentage})
	if err != nil {
		kind := classify(err)
		status := 0
		var apiErr *alpaca.APIError
		if errors.As(err, &apiErr) {
			status = apiErr.Status
		}
		m.log.Warn().Err(err).Str("symbol", symbol).Str("kind", kind.String()).Msg("position close failed")
		return CloseResult{Symbol: symbol, Status: status, Kind: kind, Err: err}
	}
	m.log.Info().Str("symbol", symbol).Msg("position closed")
	return CloseResult{Symbol: symbol, OK: true, Status: http.StatusOK}
}
