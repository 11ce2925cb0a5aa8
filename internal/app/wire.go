package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/marketfeed/marketfeed/internal/cache/memory"
	"github.com/marketfeed/marketfeed/internal/cache/redis"
	"github.com/marketfeed/marketfeed/internal/collector"
	"github.com/marketfeed/marketfeed/internal/config"
	"github.com/marketfeed/marketfeed/internal/consolidate"
	"github.com/marketfeed/marketfeed/internal/domain"
	"github.com/marketfeed/marketfeed/internal/exchange"
	"github.com/marketfeed/marketfeed/internal/server"
	"github.com/marketfeed/marketfeed/internal/server/handler"
	"github.com/marketfeed/marketfeed/internal/server/ws"
)

// memorySweepInterval is how often the in-process store evicts expired
// entries when running without Redis.
const memorySweepInterval = 30 * time.Second

// Dependencies bundles every component the application runs. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Store     domain.QuoteStore
	Bus       domain.SignalBus
	Exchanges []domain.ExchangeClient
	Collector *collector.Collector
	Hub       *ws.Hub
	Server    *server.Server
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that
// should be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- Quote store and signal bus ---
	// Redis when an address is configured, in-process fallback otherwise.
	if cfg.Redis.Addr != "" {
		redisClient, err := redis.New(ctx, cfg.Redis)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.Store = redis.NewQuoteStore(redisClient)
		deps.Bus = redis.NewSignalBus(redisClient)
	} else {
		logger.Info("redis address not configured, using in-process store")
		store := memory.NewStore()
		store.StartSweeper(ctx, memorySweepInterval)
		deps.Store = store
		deps.Bus = memory.NewBus()
	}

	// --- Exchange clients ---
	httpClient := &http.Client{Timeout: cfg.Collector.RequestTimeout.Duration}
	exchanges, err := exchange.Initialize(ctx, cfg.Exchanges, httpClient, logger)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: exchanges: %w", err)
	}
	deps.Exchanges = exchanges

	exchangeNames := make([]string, len(exchanges))
	for i, ex := range exchanges {
		exchangeNames[i] = ex.Name()
	}

	// --- Consolidator and collector ---
	cons := consolidate.NewConsolidator(
		deps.Store,
		deps.Bus,
		exchangeNames,
		cfg.Cache.ConsolidatedTTL.Duration,
		logger,
	)

	coll, err := collector.New(exchanges, cfg.Symbols, deps.Store, cons, collector.Config{
		PriceInterval:      cfg.Collector.PriceInterval.Duration,
		MarketDataInterval: cfg.Collector.MarketDataInterval.Duration,
		RequestTimeout:     cfg.Collector.RequestTimeout.Duration,
		OrderBookDepth:     cfg.Collector.OrderBookDepth,
		QuoteTTL:           cfg.Cache.QuoteTTL.Duration,
		SnapshotTTL:        cfg.Cache.SnapshotTTL.Duration,
	}, logger)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: collector: %w", err)
	}
	deps.Collector = coll

	// --- WebSocket hub and HTTP server ---
	deps.Hub = ws.NewHub(deps.Bus, cfg.Symbols, logger)

	deps.Server = server.NewServer(
		server.Config{
			Port:        cfg.Server.Port,
			CORSOrigins: cfg.Server.CORSOrigins,
		},
		server.Handlers{
			Health:  handler.NewHealthHandler(logger),
			Prices:  handler.NewPriceHandler(deps.Store, logger),
			Candles: handler.NewCandleHandler(exchanges, logger),
			Status:  handler.NewStatusHandler(exchanges, cfg.Symbols, deps.Hub.Registry(), deps.Store, cfg.Cache.DefaultTTL.Duration, logger),
		},
		deps.Hub,
		logger,
	)

	return deps, cleanup, nil
}
