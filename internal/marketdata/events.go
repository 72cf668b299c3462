// Package marketdata standardizes streaming event payloads and caches last-known market state.
package marketdata

import "time"

// Trade models a single trade tick for an instrument.
type Trade struct {
	Symbol string
	Price  float64
	Size   float64
	Ts     time.Time
}

// Quote models the best bid/ask for an instrument.
type Quote struct {
	Symbol string
	Bid    float64
	Ask    float64
	Ts     time.Time
}

// Bar models an OHLCV aggregate.
type Bar struct {
	Symbol string
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
	Ts     time.Time
}

// Order update event kinds delivered by the venue's order-update stream.
const (
	EventFill        = "fill"
	EventPartialFill = "partial_fill"
	EventCanceled    = "canceled"
)

// OrderUpdate reports a change to a live order, including the authoritative
// post-fill position for the symbol when the event is a fill or partial fill.
type OrderUpdate struct {
	Event       string
	PositionQty float64
	Order       OrderInfo
	Ts          time.Time
}

// OrderInfo carries the order fields embedded in an update.
type OrderInfo struct {
	ID        string
	Symbol    string
	Side      string
	FilledQty float64
}

// IsFill reports whether the update should drive a position overwrite.
func (u OrderUpdate) IsFill() bool {
	return u.Event == EventFill || u.Event == EventPartialFill
}
