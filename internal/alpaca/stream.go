package alpaca

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/Bensk-96/pairs-trading-alpaca/internal/marketdata"
	"github.com/Bensk-96/pairs-trading-alpaca/internal/metrics"
)

// Sink receives decoded streaming events. The trader wires one that fans out to
// the market state cache, the position ledger, and the fill recorder.
type Sink interface {
	OnTrade(marketdata.Trade)
	OnQuote(marketdata.Quote)
	OnBar(marketdata.Bar)
	OnOrderUpdate(marketdata.OrderUpdate)
}

// Stream maintains the venue's two websocket connections: the market-data feed
// (trades/quotes/bars) and the account stream (order updates).
type Stream struct {
	dataURL  string
	tradeURL string
	feed     string
	symbols  []string
	creds    Credentials
	sink     Sink
	log      zerolog.Logger
}

// NewStream builds a stream for the given symbols. dataURL is the market-data
// websocket host, tradeURL the trading-API websocket endpoint.
func NewStream(dataURL, tradeURL, feed string, symbols []string, creds Credentials, sink Sink, log zerolog.Logger) *Stream {
	if feed == "" {
		feed = "iex"
	}
	return &Stream{
		dataURL:  strings.TrimSuffix(dataURL, "/"),
		tradeURL: tradeURL,
		feed:     feed,
		symbols:  symbols,
		creds:    creds,
		sink:     sink,
		log:      log,
	}
}

// Run consumes both streams until the context is canceled. Each connection
// reconnects independently with capped backoff.
func (s *Stream) Run(ctx context.Context) error {
	errs := make(chan error, 2)
	go func() { errs <- s.runLoop(ctx, "market data", s.consumeMarketData) }()
	go func() { errs <- s.runLoop(ctx, "order updates", s.consumeOrderUpdates) }()
	return <-errs
}

func (s *Stream) runLoop(ctx context.Context, name string, consume func(context.Context) error) error {
	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := consume(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.log.Warn().Err(err).Str("stream", name).Msg("stream disconnected, retrying")
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			backoff = time.Duration(math.Min(float64(maxBackoff), float64(backoff)*1.8))
			continue
		}
		return nil
	}
}

func (s *Stream) dial(ctx context.Context, url string) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	conn.SetReadLimit(1 << 20)
	return conn, nil
}

// dataMessage is the flat union of every market-data stream payload; "T"
// discriminates the kind.
type dataMessage struct {
	Type      string    `json:"T"`
	Symbol    string    `json:"S"`
	Price     float64   `json:"p"`
	Size      float64   `json:"s"`
	BidPrice  float64   `json:"bp"`
	AskPrice  float64   `json:"ap"`
	Open      float64   `json:"o"`
	High      float64   `json:"h"`
	Low       float64   `json:"l"`
	Close     float64   `json:"c"`
	Volume    float64   `json:"v"`
	Timestamp time.Time `json:"t"`
	Code      int       `json:"code"`
	Msg       string    `json:"msg"`
}

func (s *Stream) consumeMarketData(ctx context.Context) error {
	url := fmt.Sprintf("%s/v2/%s", s.dataURL, s.feed)
	conn, err := s.dial(ctx, url)
	if err != nil {
		return err
	}
	defer conn.Close()

	auth := map[string]string{"action": "auth", "key": s.creds.KeyID, "secret": s.creds.SecretKey}
	if err := conn.WriteJSON(auth); err != nil {
		return fmt.Errorf("auth write: %w", err)
	}
	sub := map[string]any{
		"action": "subscribe",
		"trades": s.symbols,
		"quotes": s.symbols,
		"bars":   s.symbols,
	}
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("subscribe write: %w", err)
	}
	s.log.Info().Strs("symbols", s.symbols).Str("feed", s.feed).Msg("connected market data stream")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		_, message, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var batch []dataMessage
		if err := json.Unmarshal(message, &batch); err != nil {
			s.log.Warn().Err(err).Msg("failed to decode market data message")
			continue
		}
		for _, msg := range batch {
			s.dispatchData(msg)
		}
	}
}

func (s *Stream) dispatchData(msg dataMessage) {
	switch msg.Type {
	case "t":
		s.sink.OnTrade(marketdata.Trade{Symbol: msg.Symbol, Price: msg.Price, Size: msg.Size, Ts: msg.Timestamp})
		metrics.TradesTotal.WithLabelValues(msg.Symbol).Inc()
	case "q":
		s.sink.OnQuote(marketdata.Quote{Symbol: msg.Symbol, Bid: msg.BidPrice, Ask: msg.AskPrice, Ts: msg.Timestamp})
		metrics.QuotesTotal.WithLabelValues(msg.Symbol).Inc()
	case "b":
		s.sink.OnBar(marketdata.Bar{
			Symbol: msg.Symbol,
			Open:   msg.Open, High: msg.High, Low: msg.Low, Close: msg.Close,
			Volume: msg.Volume,
			Ts:     msg.Timestamp,
		})
	case "error":
		s.log.Warn().Int("code", msg.Code).Str("msg", msg.Msg).Msg("market data stream error")
	}
}

type accountEnvelope struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

type tradeUpdatePayload struct {
	Event       string `json:"event"`
	PositionQty string `json:"position_qty"`
	Order       struct {
		ID        string `json:"id"`
		Symbol    string `json:"symbol"`
		Side      string `json:"side"`
		FilledQty string `json:"filled_qty"`
	} `json:"order"`
}

func (s *Stream) consumeOrderUpdates(ctx context.Context) error {
	conn, err := s.dial(ctx, s.tradeURL)
	if err != nil {
		return err
	}
	defer conn.Close()

	auth := map[string]any{
		"action": "authenticate",
		"data":   map[string]string{"key_id": s.creds.KeyID, "secret_key": s.creds.SecretKey},
	}
	if err := conn.WriteJSON(auth); err != nil {
		return fmt.Errorf("auth write: %w", err)
	}
	listen := map[string]any{
		"action": "listen",
		"data":   map[string][]string{"streams": {"trade_updates"}},
	}
	if err := conn.WriteJSON(listen); err != nil {
		return fmt.Errorf("listen write: %w", err)
	}
	s.log.Info().Msg("connected order update stream")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		_, message, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var env accountEnvelope
		if err := json.Unmarshal(message, &env); err != nil {
			s.log.Warn().Err(err).Msg("failed to decode account message")
			continue
		}
		if env.Stream != "trade_updates" {
			continue
		}
		var payload tradeUpdatePayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			s.log.Warn().Err(err).Msg("failed to decode trade update")
			continue
		}
		update := decodeTradeUpdate(payload)
		if update.IsFill() {
			metrics.FillsTotal.WithLabelValues(update.Order.Symbol, update.Order.Side).Inc()
			s.log.Info().
				Str("event", update.Event).
				Str("symbol", update.Order.Symbol).
				Str("side", update.Order.Side).
				Float64("filled_qty", update.Order.FilledQty).
				Msg("order filled")
		}
		s.sink.OnOrderUpdate(update)
	}
}

func decodeTradeUpdate(p tradeUpdatePayload) marketdata.OrderUpdate {
	return marketdata.OrderUpdate{
		Event:       p.Event,
		PositionQty: parseFloat(p.PositionQty),
		Order: marketdata.OrderInfo{
			ID:        p.Order.ID,
			Symbol:    p.Order.Symbol,
			Side:      p.Order.Side,
			FilledQty: parseFloat(p.Order.FilledQty),
		},
		Ts: time.Now().UTC(),
	}
}
