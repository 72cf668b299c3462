// Binary trader runs the live pairs-trading session: it waits for the market to
// open, streams quotes and order updates, drives one engine per configured
// pair, and flattens the book before the close.
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	ossignal "os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/Bensk-96/pairs-trading-alpaca/internal/alpaca"
	"github.com/Bensk-96/pairs-trading-alpaca/internal/config"
	"github.com/Bensk-96/pairs-trading-alpaca/internal/execution"
	"github.com/Bensk-96/pairs-trading-alpaca/internal/ledger"
	"github.com/Bensk-96/pairs-trading-alpaca/internal/marketdata"
	"github.com/Bensk-96/pairs-trading-alpaca/internal/metrics"
	"github.com/Bensk-96/pairs-trading-alpaca/internal/risk"
	"github.com/Bensk-96/pairs-trading-alpaca/internal/strategy"
	"github.com/Bensk-96/pairs-trading-alpaca/internal/util"
)

const clockPollInterval = 60 * time.Second

// fanout routes decoded stream events to the market state cache, the position
// ledger, and the fill recorder.
type fanout struct {
	cache    *marketdata.Cache
	book     *ledger.Ledger
	recorder *ledger.JSONLRecorder
}

func (f *fanout) OnTrade(t marketdata.Trade) { f.cache.ApplyTrade(t) }
func (f *fanout) OnQuote(q marketdata.Quote) { f.cache.ApplyQuote(q) }
func (f *fanout) OnBar(b marketdata.Bar)     { f.cache.ApplyBar(b) }

func (f *fanout) OnOrderUpdate(u marketdata.OrderUpdate) {
	if !u.IsFill() {
		return
	}
	f.book.ApplyFill(u.Order.Symbol, u.PositionQty)
	if f.recorder != nil {
		f.recorder.Record(ledger.FillRecord{
			Symbol:      u.Order.Symbol,
			OrderID:     u.Order.ID,
			Side:        u.Order.Side,
			Event:       u.Event,
			FilledQty:   u.Order.FilledQty,
			PositionQty: u.PositionQty,
			Ts:          u.Ts,
		})
	}
}

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		bootLog := util.NewLogger("info")
		bootLog.Fatal().Err(err).Msg("load config")
	}

	log, closeLog, err := util.NewSessionLogger(cfg.App.LogLevel, cfg.App.LogFile)
	if err != nil {
		bootLog := util.NewLogger("info")
		bootLog.Fatal().Err(err).Msg("open session log")
	}
	defer closeLog()

	creds, err := alpaca.LoadCredentials()
	if err != nil {
		log.Fatal().Err(err).Msg("load credentials")
	}

	pairs, err := config.LoadPairs(cfg.PairsFile)
	if err != nil {
		log.Fatal().Err(err).Msg("load pairs")
	}

	_ = metrics.Serve(cfg.App.MetricsAddr)
	log.Info().Str("addr", cfg.App.MetricsAddr).Msg("metrics up")

	ctx, cancel := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	client := alpaca.NewClient(creds, log, alpaca.WithBaseURL(cfg.Alpaca.BaseURL))
	defer client.Close()

	if err := waitForOpen(ctx, client, log); err != nil {
		log.Fatal().Err(err).Msg("waiting for market open")
	}

	remaining, open, err := client.TimeUntilClose(ctx)
	if err != nil || !open {
		log.Fatal().Err(err).Msg("market clock unavailable after open")
	}
	tradeWindow := remaining - time.Duration(cfg.Trading.CloseBufferSecs)*time.Second
	if tradeWindow <= 0 {
		log.Fatal().Dur("remaining", remaining).Msg("not enough session left to trade")
	}
	log.Info().Dur("trade_window", tradeWindow).Msg("market open")

	cache := marketdata.NewCache(
		marketdata.WithTradeHistory(cfg.Data.TradeHistory),
		marketdata.WithBarHistory(cfg.Data.BarHistory),
	)
	book := ledger.New(client, log, ledger.WithTTL(time.Duration(cfg.Trading.PositionTTLSecs)*time.Second))

	var recorder *ledger.JSONLRecorder
	if cfg.FillsPath != "" {
		recorder, err = ledger.NewJSONLRecorder(cfg.FillsPath)
		if err != nil {
			log.Fatal().Err(err).Msg("open fill recorder")
		}
		defer recorder.Close()
	}

	sessionCtx, sessionCancel := context.WithTimeout(ctx, tradeWindow)
	defer sessionCancel()

	stream := alpaca.NewStream(
		cfg.Alpaca.StreamURL,
		streamTradeURL(cfg.Alpaca.BaseURL),
		cfg.Alpaca.Feed,
		config.Symbols(pairs),
		creds,
		&fanout{cache: cache, book: book, recorder: recorder},
		log,
	)
	go func() {
		if err := stream.Run(sessionCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("stream stopped")
			sessionCancel()
		}
	}()

	manager := execution.NewManager(client, log)

	// Start from a clean slate: no resting orders, no positions.
	flatten(ctx, manager, log)
	book.Refresh(ctx, "", true)

	limits := risk.Limits{MaxNotionalPerOrder: cfg.Risk.MaxNotionalPerOrder}
	perPairCapital := cfg.Trading.TotalCapital / float64(len(pairs))

	var wg sync.WaitGroup
	for _, pair := range pairs {
		engine := strategy.NewPairTrade(strategy.PairConfig{
			Asset1:     pair.Asset1,
			Asset2:     pair.Asset2,
			HedgeRatio: pair.HedgeRatio,
			Constant:   pair.Constant,
			Capital:    perPairCapital,
			Downsample: cfg.Trading.Downsample,
			K:          cfg.Trading.BandWidth,
			Policy:     strategy.Policy(cfg.Trading.ExecutionPolicy),
		}, cache, book, manager, log, strategy.WithRiskLimits(limits))

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := engine.Run(sessionCtx); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
				log.Error().Err(err).Str("pair", engine.Name()).Msg("engine stopped")
			}
		}()
	}

	log.Info().Int("pairs", len(pairs)).Float64("capital_per_pair", perPairCapital).Msg("trading session started")
	<-sessionCtx.Done()
	wg.Wait()

	// Shutdown cannot reuse the session context; it is already done.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	log.Info().Msg("session over, flattening book")
	flatten(shutdownCtx, manager, log)
	log.Info().Msg("shutdown complete")
}

// waitForOpen polls the venue clock until the market opens or the context ends.
func waitForOpen(ctx context.Context, client *alpaca.Client, log zerolog.Logger) error {
	for {
		clock, err := client.Clock(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("clock fetch failed, retrying")
		} else if clock.IsOpen {
			return nil
		} else {
			log.Info().Time("next_open", clock.NextOpen).Msg("market closed, waiting")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(clockPollInterval):
		}
	}
}

// flatten cancels all open orders and liquidates every position, logging each
// per-entity outcome. Failures are reported, never retried.
func flatten(ctx context.Context, manager *execution.Manager, log zerolog.Logger) {
	cancelRes := manager.CancelAll(ctx)
	if !cancelRes.OK {
		for id, status := range cancelRes.Statuses {
			if status != 200 {
				log.Warn().Str("order_id", id).Int("status", status).Msg("order not canceled")
			}
		}
	}
	for _, res := range manager.CloseAll(ctx, true) {
		if !res.OK && res.Err != nil {
			log.Warn().Err(res.Err).Str("symbol", res.Symbol).Msg("position not closed")
		}
	}
}

// streamTradeURL derives the account websocket endpoint from the trading API host.
func streamTradeURL(baseURL string) string {
	host := strings.TrimPrefix(strings.TrimPrefix(baseURL, "https://"), "http://")
	return "wss://" + strings.TrimSuffix(host, "/") + "/stream"
}
