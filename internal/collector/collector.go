// Package collector schedules the periodic concurrent polling of every
// configured (exchange, symbol) pair and feeds the results into the quote
// store and the consolidator.
package collector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/marketfeed/marketfeed/internal/consolidate"
	"github.com/marketfeed/marketfeed/internal/domain"
	"golang.org/x/sync/errgroup"
)

// Config holds the collector's scheduling parameters.
type Config struct {
	// PriceInterval is the delay between price collection cycles.
	PriceInterval time.Duration
	// MarketDataInterval is the delay between detailed market-data cycles.
	MarketDataInterval time.Duration
	// RequestTimeout bounds every individual exchange request.
	RequestTimeout time.Duration
	// OrderBookDepth is how many book levels per side the market-data
	// cycle pulls.
	OrderBookDepth int
	// QuoteTTL and SnapshotTTL are the store TTLs for the two cycles.
	QuoteTTL    time.Duration
	SnapshotTTL time.Duration
}

// Backoff delays applied after a cycle fails wholesale, both shorter than
// the corresponding normal intervals so a bad cycle heals quickly.
const (
	priceCycleBackoff      = 5 * time.Second
	marketDataCycleBackoff = 10 * time.Second
)

// Collector polls every configured exchange for every configured symbol on
// two independent loops: a fast price loop and a slower detailed
// market-data loop. A failed request is logged and skipped; it never
// disturbs the sibling requests of the same cycle, and a failed cycle never
// stops the loop.
type Collector struct {
	exchanges []domain.ExchangeClient
	symbols   []string
	store     domain.QuoteStore
	cons      *consolidate.Consolidator
	cfg       Config
	logger    *slog.Logger
}

// New creates a Collector. The exchange set must be non-empty; the caller is
// expected to have built it with exchange.Initialize, which enforces that.
func New(exchanges []domain.ExchangeClient, symbols []string, store domain.QuoteStore, cons *consolidate.Consolidator, cfg Config, logger *slog.Logger) (*Collector, error) {
	if len(exchanges) == 0 {
		return nil, fmt.Errorf("collector: %w", domain.ErrNoExchanges)
	}
	return &Collector{
		exchanges: exchanges,
		symbols:   symbols,
		store:     store,
		cons:      cons,
		cfg:       cfg,
		logger:    logger.With(slog.String("component", "collector")),
	}, nil
}

// Run starts both collection loops and blocks until ctx is cancelled. On
// return every in-flight request has unwound (bounded by the request
// timeout) and the exchange clients have been closed.
func (c *Collector) Run(ctx context.Context) error {
	c.logger.Info("collector starting",
		slog.Int("exchanges", len(c.exchanges)),
		slog.Int("symbols", len(c.symbols)),
		slog.Duration("price_interval", c.cfg.PriceInterval),
		slog.Duration("market_data_interval", c.cfg.MarketDataInterval),
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return c.loop(ctx, "price", c.cfg.PriceInterval, priceCycleBackoff, c.collectPrices)
	})
	g.Go(func() error {
		return c.loop(ctx, "market_data", c.cfg.MarketDataInterval, marketDataCycleBackoff, c.collectMarketData)
	})

	err := g.Wait()

	for _, ex := range c.exchanges {
		if cerr := ex.Close(); cerr != nil {
			c.logger.Error("closing exchange",
				slog.String("exchange", ex.Name()),
				slog.String("error", cerr.Error()),
			)
		}
	}
	c.logger.Info("collector stopped")
	return err
}

// loop runs cycle immediately and then at every interval until ctx is
// cancelled. A cycle-level failure is logged and followed by the shorter
// backoff delay instead of the normal interval; the loop itself never exits
// on error.
func (c *Collector) loop(ctx context.Context, name string, interval, backoff time.Duration, cycle func(context.Context) error) error {
	for {
		delay := interval
		if err := cycle(ctx); err != nil && !errors.Is(err, context.Canceled) {
			c.logger.Error("collection cycle failed",
				slog.String("cycle", name),
				slog.String("error", err.Error()),
			)
			delay = backoff
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

// collectPrices polls the ticker for every (exchange, symbol) pair
// concurrently, joined before the cycle ends so shutdown has a well-defined
// quiescence point. Individual failures are counted, not propagated.
func (c *Collector) collectPrices(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("price cycle panic: %v", r)
		}
	}()

	var failed atomic.Int64
	start := time.Now()

	var g errgroup.Group
	for _, ex := range c.exchanges {
		for _, symbol := range c.symbols {
			g.Go(func() error {
				if perr := c.pollPrice(ctx, ex, symbol); perr != nil {
					failed.Add(1)
					if !errors.Is(perr, context.Canceled) {
						c.logger.Warn("price poll failed",
							slog.String("exchange", ex.Name()),
							slog.String("symbol", symbol),
							slog.String("error", perr.Error()),
						)
					}
				}
				return nil
			})
		}
	}
	_ = g.Wait()

	c.logger.Debug("price cycle complete",
		slog.Int("polls", len(c.exchanges)*len(c.symbols)),
		slog.Int64("failed", failed.Load()),
		slog.Duration("took", time.Since(start)),
	)
	return ctx.Err()
}

// pollPrice fetches one quote, stores it, and triggers consolidation for the
// symbol. Consolidation runs inline so it always observes a quote set at
// least as fresh as the write that triggered it.
func (c *Collector) pollPrice(ctx context.Context, ex domain.ExchangeClient, symbol string) error {
	reqCtx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	quote, err := ex.FetchQuote(reqCtx, symbol)
	if err != nil {
		return err
	}

	if err := c.store.SetQuote(ctx, quote, c.cfg.QuoteTTL); err != nil {
		return err
	}

	if _, err := c.cons.Consolidate(ctx, symbol); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	return nil
}

// collectMarketData polls the detailed snapshot (ticker plus top of book)
// for every (exchange, symbol) pair concurrently.
func (c *Collector) collectMarketData(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("market data cycle panic: %v", r)
		}
	}()

	var failed atomic.Int64
	start := time.Now()

	var g errgroup.Group
	for _, ex := range c.exchanges {
		for _, symbol := range c.symbols {
			g.Go(func() error {
				if perr := c.pollMarketData(ctx, ex, symbol); perr != nil {
					failed.Add(1)
					if !errors.Is(perr, context.Canceled) {
						c.logger.Warn("market data poll failed",
							slog.String("exchange", ex.Name()),
							slog.String("symbol", symbol),
							slog.String("error", perr.Error()),
						)
					}
				}
				return nil
			})
		}
	}
	_ = g.Wait()

	c.logger.Debug("market data cycle complete",
		slog.Int("polls", len(c.exchanges)*len(c.symbols)),
		slog.Int64("failed", failed.Load()),
		slog.Duration("took", time.Since(start)),
	)
	return ctx.Err()
}

// pollMarketData fetches the quote and the top of the order book for one
// (exchange, symbol) pair. A missing order book degrades the snapshot
// rather than failing it; the book is optional detail.
func (c *Collector) pollMarketData(ctx context.Context, ex domain.ExchangeClient, symbol string) error {
	reqCtx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	quote, err := ex.FetchQuote(reqCtx, symbol)
	if err != nil {
		return err
	}

	snap := domain.MarketSnapshot{Quote: quote}
	if quote.Bid > 0 && quote.Ask > 0 {
		snap.BidAskSpread = quote.Ask - quote.Bid
	}

	book, err := ex.FetchOrderBook(reqCtx, symbol, c.cfg.OrderBookDepth)
	if err != nil {
		c.logger.Debug("order book unavailable",
			slog.String("exchange", ex.Name()),
			slog.String("symbol", symbol),
			slog.String("error", err.Error()),
		)
	} else {
		snap.OrderBook = book
	}

	return c.store.SetSnapshot(ctx, snap, c.cfg.SnapshotTTL)
}
