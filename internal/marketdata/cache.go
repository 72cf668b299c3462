package marketdata

import "sync"

const defaultHistory = 100

// instrumentState is the last-known view of one symbol. Created lazily on the
// first event and never removed for the life of the process.
type instrumentState struct {
	lastTradePrice float64
	hasTrade       bool
	lastQuote      Quote
	hasQuote       bool
	lastMid        float64
	hasMid         bool
	lastBar        Bar
	hasBar         bool
	trades         []Trade
	bars           []Bar
}

// Cache turns raw streaming events into queryable last-known state per symbol.
// Engines read it concurrently while the ingestion path writes, so all access
// is guarded by a single RWMutex.
type Cache struct {
	mu       sync.RWMutex
	tradeCap int
	barCap   int
	states   map[string]*instrumentState
}

// Option configures Cache construction parameters.
type Option func(*Cache)

// WithTradeHistory overrides the bounded trade-history capacity.
func WithTradeHistory(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.tradeCap = n
		}
	}
}

// WithBarHistory overrides the bounded bar-history capacity.
func WithBarHistory(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.barCap = n
		}
	}
}

// NewCache constructs an empty cache with default history capacities.
func NewCache(opts ...Option) *Cache {
	c := &Cache{
		tradeCap: defaultHistory,
		barCap:   defaultHistory,
		states:   make(map[string]*instrumentState),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Cache) state(symbol string) *instrumentState {
	st := c.states[symbol]
	if st == nil {
		st = &instrumentState{}
		c.states[symbol] = st
	}
	return st
}

// ApplyTrade records the last trade price and appends to the trade history.
// Unknown symbols are accepted and create new state.
func (c *Cache) ApplyTrade(t Trade) {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := c.state(t.Symbol)
	st.lastTradePrice = t.Price
	st.hasTrade = true
	st.trades = append(st.trades, t)
	if len(st.trades) > c.tradeCap {
		st.trades = st.trades[1:]
	}
}

// ApplyQuote records the last quote. The mid-price is only recomputed when both
// sides are positive; a zero-sided quote never nulls out a previously good mid.
func (c *Cache) ApplyQuote(q Quote) {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := c.state(q.Symbol)
	st.lastQuote = q
	st.hasQuote = true
	if q.Bid > 0 && q.Ask > 0 {
		st.lastMid = (q.Bid + q.Ask) / 2
		st.hasMid = true
	}
}

// ApplyBar records the last bar and appends to the bar history.
func (c *Cache) ApplyBar(b Bar) {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := c.state(b.Symbol)
	st.lastBar = b
	st.hasBar = true
	st.bars = append(st.bars, b)
	if len(st.bars) > c.barCap {
		st.bars = st.bars[1:]
	}
}

// LastMidPrice returns the last valid mid-price, or false if no valid quote was ever seen.
func (c *Cache) LastMidPrice(symbol string) (float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	st := c.states[symbol]
	if st == nil || !st.hasMid {
		return 0, false
	}
	return st.lastMid, true
}

// LastTradePrice returns the most recent trade price for the symbol.
func (c *Cache) LastTradePrice(symbol string) (float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	st := c.states[symbol]
	if st == nil || !st.hasTrade {
		return 0, false
	}
	return st.lastTradePrice, true
}

// LastQuote returns the most recent quote, valid or not.
func (c *Cache) LastQuote(symbol string) (Quote, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	st := c.states[symbol]
	if st == nil || !st.hasQuote {
		return Quote{}, false
	}
	return st.lastQuote, true
}

// LastBar returns the most recent bar.
func (c *Cache) LastBar(symbol string) (Bar, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	st := c.states[symbol]
	if st == nil || !st.hasBar {
		return Bar{}, false
	}
	return st.lastBar, true
}

// TradeHistory returns a copy of the bounded trade history, oldest first.
func (c *Cache) TradeHistory(symbol string) []Trade {
	c.mu.RLock()
	defer c.mu.RUnlock()

	st := c.states[symbol]
	if st == nil {
		return nil
	}
	out := make([]Trade, len(st.trades))
	copy(out, st.trades)
	return out
}

// BarHistory returns a copy of the bounded bar history, oldest first.
func (c *Cache) BarHistory(symbol string) []Bar {
	c.mu.RLock()
	defer c.mu.RUnlock()

	st := c.states[symbol]
	if st == nil {
		return nil
	}
	out := make([]Bar, len(st.bars))
	copy(out, st.bars)
	return out
}
