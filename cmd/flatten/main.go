// Binary flatten is an operator utility: it cancels every open order and
// liquidates every position, then reports the per-entity outcomes. Useful after
// a crashed session or before maintenance.
package main

import (
	"context"
	"flag"
	"time"

	"github.com/Bensk-96/pairs-trading-alpaca/internal/alpaca"
	"github.com/Bensk-96/pairs-trading-alpaca/internal/config"
	"github.com/Bensk-96/pairs-trading-alpaca/internal/execution"
	"github.com/Bensk-96/pairs-trading-alpaca/internal/util"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the YAML config file")
	timeout := flag.Duration("timeout", 30*time.Second, "overall deadline for the flatten")
	flag.Parse()

	log := util.NewLogger("info")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	creds, err := alpaca.LoadCredentials()
	if err != nil {
		log.Fatal().Err(err).Msg("load credentials")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	client := alpaca.NewClient(creds, log, alpaca.WithBaseURL(cfg.Alpaca.BaseURL))
	defer client.Close()
	manager := execution.NewManager(client, log)

	cancelRes := manager.CancelAll(ctx)
	for id, status := range cancelRes.Statuses {
		if status == 200 {
			log.Info().Str("order_id", id).Msg("order canceled")
		} else {
			log.Warn().Str("order_id", id).Int("status", status).Msg("order not canceled")
		}
	}
	if cancelRes.Err != nil {
		log.Warn().Err(cancelRes.Err).Msg("cancel all orders failed")
	}

	failed := 0
	for _, res := range manager.CloseAll(ctx, true) {
		if res.OK {
			log.Info().Str("symbol", res.Symbol).Msg("position closed")
			continue
		}
		failed++
		log.Warn().Err(res.Err).Str("symbol", res.Symbol).Int("status", res.Status).Msg("position not closed")
	}
	if failed > 0 {
		log.Error().Int("failed", failed).Msg("book not fully flat, manual intervention required")
		return
	}
	log.Info().Msg("book flat")
}
