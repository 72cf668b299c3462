package alpaca

import (
	"fmt"
	"strconv"
	"time"
)

// APIError carries a non-success venue status and response body so callers can
// map it onto their own failure taxonomy.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("venue status %d: %s", e.Status, e.Body)
}

// OrderRequest is the submit-order payload. Type stays "limit"; the caller's
// execution choice rides on TimeInForce.
type OrderRequest struct {
	Symbol      string  `json:"symbol"`
	Qty         float64 `json:"qty"`
	Side        string  `json:"side"`
	Type        string  `json:"type"`
	LimitPrice  float64 `json:"limit_price"`
	TimeInForce string  `json:"time_in_force"`
}

// Order is the venue's order representation as returned by the REST API.
type Order struct {
	ID          string `json:"id"`
	Symbol      string `json:"symbol"`
	Side        string `json:"side"`
	Status      string `json:"status"`
	Qty         string `json:"qty"`
	FilledQty   string `json:"filled_qty"`
	LimitPrice  string `json:"limit_price"`
	TimeInForce string `json:"time_in_force"`
}

// CancelStatus is one entry of the multi-status cancel-all response.
type CancelStatus struct {
	ID     string `json:"id"`
	Status int    `json:"status"`
}

// CloseStatus is one entry of the multi-status close-all response.
type CloseStatus struct {
	Symbol string `json:"symbol"`
	Status int    `json:"status"`
	Body   string `json:"-"`
}

// CloseParams narrows a close-position request. At most one of Qty/Percentage
// may be set; both nil closes the position fully.
type CloseParams struct {
	Qty        *float64
	Percentage *float64
}

// Clock is the venue market-clock snapshot.
type Clock struct {
	IsOpen    bool      `json:"is_open"`
	Timestamp time.Time `json:"timestamp"`
	NextOpen  time.Time `json:"next_open"`
	NextClose time.Time `json:"next_close"`
}

// CalendarDay is one trading day from the venue calendar.
type CalendarDay struct {
	Date  string `json:"date"`
	Open  string `json:"open"`
	Close string `json:"close"`
}

type positionPayload struct {
	Symbol        string `json:"symbol"`
	Qty           string `json:"qty"`
	AvgEntryPrice string `json:"avg_entry_price"`
	MarketValue   string `json:"market_value"`
	UnrealizedPL  string `json:"unrealized_pl"`
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
