// Package strategy runs one mean-reversion engine per cointegrated pair,
// translating a bounded oscillator over the spread into hedged orders.
package strategy

import (
	"context"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/Bensk-96/pairs-trading-alpaca/internal/execution"
	"github.com/Bensk-96/pairs-trading-alpaca/internal/metrics"
	"github.com/Bensk-96/pairs-trading-alpaca/internal/risk"
)

// Policy selects how orders rest at the venue.
type Policy string

const (
	// PolicyIOC submits immediate-or-cancel orders with no follow-up cancel.
	PolicyIOC Policy = "ioc"
	// PolicyResting submits GTC orders and cancels leftovers after one cycle.
	PolicyResting Policy = "resting"
)

// Spread positions of the three-state machine.
const (
	flat        = 0
	longSpread  = 1
	shortSpread = -1
)

// Signals emitted when the state machine transitions.
const (
	signalLongSpread  = -1 // sell asset1 leg, buy asset2 leg
	signalShortSpread = 1
	signalClose       = 0
)

const tickSize = 0.01

// MarketData is the slice of the market state cache the engine reads.
type MarketData interface {
	LastMidPrice(symbol string) (float64, bool)
}

// PositionSource is the slice of the position ledger the engine reads.
type PositionSource interface {
	Get(symbol string) float64
}

// OrderManager is the slice of the order lifecycle manager the engine drives.
type OrderManager interface {
	Insert(ctx context.Context, symbol string, price, qty float64, side execution.Side, tif execution.TimeInForce) execution.InsertResult
	Cancel(ctx context.Context, orderID string) execution.CancelResult
}

// PairConfig parameterizes one engine from the offline cointegration output.
type PairConfig struct {
	Asset1     string
	Asset2     string
	HedgeRatio float64
	Constant   float64
	Capital    float64
	Downsample int     // seconds between cycles; also sizes the spread window
	K          float64 // oscillator half-width multiplier
	Policy     Policy  // empty derives from Downsample
}

// PairTrade is one independent pair engine. All mutable state is owned by the
// Run goroutine; collaborators are shared and internally synchronized.
type PairTrade struct {
	cfg    PairConfig
	md     MarketData
	pos    PositionSource
	orders OrderManager
	limits risk.Limits
	log    zerolog.Logger

	interval       time.Duration
	sizingInterval time.Duration

	asset1Max float64
	asset2Max float64
	sized     bool

	spread     *Window
	oscillator *Window
	position   int

	signal    int
	hasSignal bool
}

// EngineOption configures PairTrade construction parameters.
type EngineOption func(*PairTrade)

// WithCycleInterval overrides the wall-clock cycle sleep (replay and tests);
// the spread window capacity still derives from Downsample.
func WithCycleInterval(d time.Duration) EngineOption {
	return func(p *PairTrade) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithSizingInterval overrides the poll interval of the initial sizing loop.
func WithSizingInterval(d time.Duration) EngineOption {
	return func(p *PairTrade) {
		if d > 0 {
			p.sizingInterval = d
		}
	}
}

// WithRiskLimits installs pre-submission order guard-rails.
func WithRiskLimits(limits risk.Limits) EngineOption {
	return func(p *PairTrade) { p.limits = limits }
}

// NewPairTrade wires one engine for the given pair.
func NewPairTrade(cfg PairConfig, md MarketData, pos PositionSource, orders OrderManager, log zerolog.Logger, opts ...EngineOption) *PairTrade {
	if cfg.Downsample <= 0 {
		cfg.Downsample = 30
	}
	if cfg.K <= 0 {
		cfg.K = 2
	}
	if cfg.Policy == "" {
		cfg.Policy = defaultPolicy(cfg.Downsample)
	}
	p := &PairTrade{
		cfg:            cfg,
		md:             md,
		pos:            pos,
		orders:         orders,
		log:            log.With().Str("pair", cfg.Asset1+"-"+cfg.Asset2).Logger(),
		interval:       time.Duration(cfg.Downsample) * time.Second,
		sizingInterval: time.Second,
		spread:         NewWindow(spreadWindowCap(cfg.Downsample)),
		oscillator:     NewWindow(2),
		position:       flat,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name identifies the pair in logs and metrics.
func (p *PairTrade) Name() string { return p.cfg.Asset1 + "-" + p.cfg.Asset2 }

// spreadWindowCap is floor(1200/downsample): twenty minutes of history at the
// engine's cadence.
func spreadWindowCap(downsample int) int {
	return int(1200 / downsample)
}

// defaultPolicy mirrors the trading cadence: fast cycles take liquidity with
// IOC, slow ones rest GTC orders and cancel after a cycle.
func defaultPolicy(downsample int) Policy {
	if downsample <= 5 {
		return PolicyIOC
	}
	return PolicyResting
}

// Run drives the engine until the context is canceled: a one-time blocking
// sizing step, then the spread/oscillator/signal/order cycle every interval.
func (p *PairTrade) Run(ctx context.Context) error {
	if err := p.size(ctx); err != nil {
		return err
	}
	p.log.Info().
		Float64("asset1_max", p.asset1Max).
		Float64("asset2_max", p.asset2Max).
		Msg("max positions sized")

	for {
		// The signal never carries across cycles; it is re-derived each pass.
		p.hasSignal = false

		p.updateSpread()
		p.updateOscillator()
		p.generateSignal()

		var orderIDs []string
		if p.hasSignal {
			orderIDs = p.trade(ctx)
		} else {
			p.log.Debug().Msg("no signal this cycle")
		}

		if err := sleepCtx(ctx, p.interval); err != nil {
			return err
		}

		if p.cfg.Policy == PolicyResting {
			for _, id := range orderIDs {
				p.log.Info().Str("order_id", id).Msg("canceling resting order after cycle")
				p.orders.Cancel(ctx, id)
			}
		}
	}
}

// size blocks until both legs have a valid mid-price, then fixes the per-leg
// max positions for the life of the engine.
func (p *PairTrade) size(ctx context.Context) error {
	for {
		if p.trySize() {
			return nil
		}
		if err := sleepCtx(ctx, p.sizingInterval); err != nil {
			return err
		}
	}
}

func (p *PairTrade) trySize() bool {
	if p.sized {
		return true
	}
	mid1, ok1 := p.md.LastMidPrice(p.cfg.Asset1)
	mid2, ok2 := p.md.LastMidPrice(p.cfg.Asset2)
	if !ok1 || !ok2 {
		return false
	}
	asset2Max := p.cfg.Capital / (p.cfg.HedgeRatio*mid1 + mid2)
	p.asset1Max = math.Round(asset2Max * p.cfg.HedgeRatio)
	p.asset2Max = math.Round(asset2Max)
	p.sized = true
	return true
}

// updateSpread pushes the current cointegration residual into the bounded
// window, skipping the cycle silently when either mid is missing.
func (p *PairTrade) updateSpread() {
	mid1, ok1 := p.md.LastMidPrice(p.cfg.Asset1)
	mid2, ok2 := p.md.LastMidPrice(p.cfg.Asset2)
	if !ok1 || !ok2 {
		return
	}
	spread := mid2 - (p.cfg.HedgeRatio*mid1 + p.cfg.Constant)
	p.spread.Push(spread)
	p.log.Debug().Float64("spread", spread).Msg("spread updated")
}

// updateOscillator computes percent_b over the full spread window. A partially
// filled window yields no value.
func (p *PairTrade) updateOscillator() {
	if !p.spread.Full() {
		if n := p.spread.Len(); n%10 == 0 && n > 0 {
			p.log.Info().Int("have", n).Int("need", p.spread.Cap()).Msg("warming up spread window")
		}
		return
	}
	mean := p.spread.Mean()
	std := p.spread.StdDev()
	upper := mean + p.cfg.K*std
	lower := mean - p.cfg.K*std
	latest, _ := p.spread.Latest()
	percentB := (latest - lower) / (upper - lower)
	p.oscillator.Push(percentB)
	p.log.Debug().Float64("percent_b", percentB).Msg("oscillator updated")
}

// generateSignal drives the three-state machine. Entry thresholds are strict,
// exit thresholds inclusive; the operators are part of the strategy. The check
// runs every cycle once two oscillator values exist, so an unchanged oscillator
// can re-fire the same transition check (deliberate, matches the strategy
// research code).
func (p *PairTrade) generateSignal() {
	if p.oscillator.Len() < 2 {
		return
	}
	newest, _ := p.oscillator.Latest()
	oldest := p.oscillator.At(0)

	switch p.position {
	case flat:
		if newest < 0 {
			p.position = longSpread
			p.emit(signalLongSpread, "long_spread")
		} else if newest > 1 {
			p.position = shortSpread
			p.emit(signalShortSpread, "short_spread")
		}
	case longSpread:
		if oldest < 0.5 && newest >= 0.5 {
			p.position = flat
			p.emit(signalClose, "close")
		}
	case shortSpread:
		if oldest > 0.5 && newest <= 0.5 {
			p.position = flat
			p.emit(signalClose, "close")
		}
	}
}

func (p *PairTrade) emit(signal int, action string) {
	p.signal = signal
	p.hasSignal = true
	metrics.SignalsTotal.WithLabelValues(p.Name(), action).Inc()
	p.log.Info().Int("signal", signal).Str("action", action).Msg("signal emitted")
}

// legTargets maps the active signal to signed target positions per leg.
func (p *PairTrade) legTargets() (float64, float64) {
	switch p.signal {
	case signalLongSpread:
		return -p.asset1Max, p.asset2Max
	case signalShortSpread:
		return p.asset1Max, -p.asset2Max
	default:
		return 0, 0
	}
}

// trade nets each leg's target against the current ledger position and submits
// the deltas. Legs are independent: one leg's failure never blocks the other.
func (p *PairTrade) trade(ctx context.Context) []string {
	target1, target2 := p.legTargets()
	qty1 := target1 - p.pos.Get(p.cfg.Asset1)
	qty2 := target2 - p.pos.Get(p.cfg.Asset2)

	var orderIDs []string
	for _, leg := range []struct {
		symbol string
		qty    float64
	}{
		{p.cfg.Asset1, qty1},
		{p.cfg.Asset2, qty2},
	} {
		if id, ok := p.submitLeg(ctx, leg.symbol, leg.qty); ok {
			orderIDs = append(orderIDs, id)
		}
	}
	return orderIDs
}

// submitLeg places one leg's order at the latest mid rounded to the venue tick.
// A zero delta issues no order.
func (p *PairTrade) submitLeg(ctx context.Context, symbol string, qty float64) (string, bool) {
	if qty == 0 {
		return "", false
	}
	mid, ok := p.md.LastMidPrice(symbol)
	if !ok {
		p.log.Warn().Str("symbol", symbol).Msg("no mid price at order time, skipping leg")
		return "", false
	}
	side := execution.Buy
	if qty < 0 {
		side = execution.Sell
	}
	price := roundToTick(mid)
	absQty := math.Abs(qty)

	if !p.limits.AllowOrder(absQty * price) {
		p.log.Warn().
			Str("symbol", symbol).
			Float64("notional", absQty*price).
			Msg("order blocked by risk limit")
		return "", false
	}

	p.log.Info().
		Str("symbol", symbol).
		Str("side", string(side)).
		Float64("qty", absQty).
		Float64("price", price).
		Str("tif", string(p.tif())).
		Msg("placing order")
	res := p.orders.Insert(ctx, symbol, price, absQty, side, p.tif())
	if !res.OK {
		return "", false
	}
	return res.OrderID, true
}

func (p *PairTrade) tif() execution.TimeInForce {
	if p.cfg.Policy == PolicyIOC {
		return execution.IOC
	}
	return execution.GTC
}

func roundToTick(price float64) float64 {
	return math.Round(price/tickSize) * tickSize
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
