// Package ledger caches per-instrument net positions, reconciling venue-reported
// snapshots with fill-driven updates.
package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const defaultTTL = 5 * time.Second

// Position is the raw venue position object cached per symbol for inspection.
type Position struct {
	Symbol        string
	Qty           float64
	AvgEntryPrice float64
	MarketValue   float64
	UnrealizedPL  float64
}

// Fetcher retrieves authoritative positions from the venue. An empty symbol
// fetches the full book.
type Fetcher interface {
	Positions(ctx context.Context, symbol string) ([]Position, error)
}

// Ledger keeps cached quantities fresh on a TTL policy and overwrites them from
// fill events. Writes come from both the refresh path and the order-update
// stream, so state is mutex-guarded.
type Ledger struct {
	mu          sync.Mutex
	fetcher     Fetcher
	log         zerolog.Logger
	ttl         time.Duration
	now         func() time.Time
	lastRefresh time.Time
	qty         map[string]float64
	raw         map[string]Position
}

// Option configures Ledger construction parameters.
type Option func(*Ledger)

// WithTTL overrides the default refresh throttle interval.
func WithTTL(d time.Duration) Option {
	return func(l *Ledger) {
		if d > 0 {
			l.ttl = d
		}
	}
}

// WithClock injects a time source for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

// New constructs a ledger backed by the given position fetcher.
func New(fetcher Fetcher, log zerolog.Logger, opts ...Option) *Ledger {
	l := &Ledger{
		fetcher: fetcher,
		log:     log,
		ttl:     defaultTTL,
		now:     time.Now,
		qty:     make(map[string]float64),
		raw:     make(map[string]Position),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Refresh fetches authoritative positions from the venue unless a refresh ran
// within the TTL. force bypasses the throttle. A fetch failure leaves prior
// state untouched and is logged as a warning, never returned as fatal.
func (l *Ledger) Refresh(ctx context.Context, symbol string, force bool) {
	l.mu.Lock()
	if !force && l.now().Sub(l.lastRefresh) < l.ttl {
		l.mu.Unlock()
		l.log.Debug().Msg("using cached positions")
		return
	}
	l.mu.Unlock()

	// Fetch outside the lock: a stalled venue call must not block ApplyFill.
	positions, err := l.fetcher.Positions(ctx, symbol)
	if err != nil {
		l.log.Warn().Err(err).Str("symbol", symbol).Msg("failed to refresh positions")
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for _, p := range positions {
		l.qty[p.Symbol] = p.Qty
		l.raw[p.Symbol] = p
	}
	l.lastRefresh = l.now()
}

// ApplyFill unconditionally overwrites the cached quantity with the venue-reported
// post-fill position. This is the only write path that is not time-gated.
func (l *Ledger) ApplyFill(symbol string, positionQty float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.qty[symbol] = positionQty
}

// Get returns the cached quantity, defaulting to 0 for unseen symbols.
func (l *Ledger) Get(symbol string) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.qty[symbol]
}

// Raw returns the cached venue position object for the symbol, if any.
func (l *Ledger) Raw(symbol string) (Position, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.raw[symbol]
	return p, ok
}

// All returns a copy of every cached quantity keyed by symbol.
func (l *Ledger) All() map[string]float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]float64, len(l.qty))
	for sym, q := range l.qty {
		out[sym] = q
	}
	return out
}
