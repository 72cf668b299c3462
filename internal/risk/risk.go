// Package risk encodes guard-rails applied before orders reach the venue.
package risk

// Limits caps order sizing. Zero values disable a limit.
type Limits struct {
	MaxNotionalPerOrder float64
}

// AllowOrder reports whether an order of the given notional may be submitted.
func (l Limits) AllowOrder(notional float64) bool {
	if l.MaxNotionalPerOrder <= 0 {
		return true
	}
	return notional <= l.MaxNotionalPerOrder
}
