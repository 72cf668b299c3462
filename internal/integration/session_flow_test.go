package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Bensk-96/pairs-trading-alpaca/internal/alpaca"
	"github.com/Bensk-96/pairs-trading-alpaca/internal/execution"
	"github.com/Bensk-96/pairs-trading-alpaca/internal/ledger"
	"github.com/Bensk-96/pairs-trading-alpaca/internal/marketdata"
	"github.com/Bensk-96/pairs-trading-alpaca/internal/strategy"
)

type receivedOrder struct {
	Symbol string  `json:"symbol"`
	Side   string  `json:"side"`
	Qty    float64 `json:"qty"`
}

// fakeVenue is a minimal trading API: it accepts orders and cancels and serves
// an empty position book.
type fakeVenue struct {
	mu      sync.Mutex
	orders  []receivedOrder
	cancels int
}

func (v *fakeVenue) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/orders", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var req receivedOrder
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		v.mu.Lock()
		v.orders = append(v.orders, req)
		id := fmt.Sprintf("ord-%d", len(v.orders))
		v.mu.Unlock()
		fmt.Fprintf(w, `{"id":%q,"symbol":%q,"side":%q,"status":"accepted"}`, id, req.Symbol, req.Side)
	})
	mux.HandleFunc("/v2/orders/", func(w http.ResponseWriter, r *http.Request) {
		v.mu.Lock()
		v.cancels++
		v.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/v2/positions", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[]`)
	})
	return mux
}

func (v *fakeVenue) orderCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.orders)
}

// A falling spread pushes the oscillator below zero, so the engine should enter
// a long spread: sell the first leg, buy the second, both against the venue.
func TestSessionFlowEntersLongSpread(t *testing.T) {
	venue := &fakeVenue{}
	srv := httptest.NewServer(venue.handler())
	defer srv.Close()

	creds := alpaca.Credentials{KeyID: "key", SecretKey: "secret"}
	client := alpaca.NewClient(creds, zerolog.Nop(), alpaca.WithBaseURL(srv.URL))
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	book := ledger.New(client, zerolog.Nop())
	book.Refresh(ctx, "", true)
	if book.Get("AAA") != 0 {
		t.Fatalf("expected empty book to start")
	}

	cache := marketdata.NewCache()
	go func() {
		ask := 120.1
		for ctx.Err() == nil {
			cache.ApplyQuote(marketdata.Quote{Symbol: "AAA", Bid: 99.9, Ask: 100.1, Ts: time.Now()})
			cache.ApplyQuote(marketdata.Quote{Symbol: "BBB", Bid: ask - 0.2, Ask: ask, Ts: time.Now()})
			ask -= 0.05
			time.Sleep(time.Millisecond)
		}
	}()

	manager := execution.NewManager(client, zerolog.Nop())
	engine := strategy.NewPairTrade(strategy.PairConfig{
		Asset1: "AAA", Asset2: "BBB",
		HedgeRatio: 1, Capital: 30000,
		Downsample: 600, K: 0.2,
	}, cache, book, manager, zerolog.Nop(),
		strategy.WithCycleInterval(10*time.Millisecond),
		strategy.WithSizingInterval(time.Millisecond))

	go func() { _ = engine.Run(ctx) }()

	for venue.orderCount() < 2 {
		select {
		case <-ctx.Done():
			t.Fatalf("timed out waiting for entry orders, got %d", venue.orderCount())
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()

	venue.mu.Lock()
	defer venue.mu.Unlock()
	sides := map[string]string{}
	for _, o := range venue.orders[:2] {
		sides[o.Symbol] = o.Side
		if o.Qty <= 0 {
			t.Fatalf("expected positive order qty, got %+v", o)
		}
	}
	if sides["AAA"] != "sell" || sides["BBB"] != "buy" {
		t.Fatalf("expected sell AAA / buy BBB, got %v", sides)
	}
}

// Fill events must overwrite the cached position so the next cycle nets orders
// against the venue-reported quantity.
func TestFillUpdatesLedger(t *testing.T) {
	venue := &fakeVenue{}
	srv := httptest.NewServer(venue.handler())
	defer srv.Close()

	client := alpaca.NewClient(alpaca.Credentials{KeyID: "k", SecretKey: "s"}, zerolog.Nop(), alpaca.WithBaseURL(srv.URL))
	defer client.Close()

	book := ledger.New(client, zerolog.Nop())
	book.ApplyFill("AAA", -120)
	if got := book.Get("AAA"); got != -120 {
		t.Fatalf("expected -120 after fill, got %.1f", got)
	}
	book.ApplyFill("AAA", 0)
	if got := book.Get("AAA"); got != 0 {
		t.Fatalf("expected flat after closing fill, got %.1f", got)
	}
}
