// Package consolidate computes the cross-exchange consolidated price for a
// symbol from the latest per-exchange quotes in the store.
package consolidate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/marketfeed/marketfeed/internal/domain"
)

// Consolidator reads the freshest per-exchange quotes for a symbol, derives
// the consolidated view, persists it (plus a history entry), and publishes
// the update on the price channels.
type Consolidator struct {
	store     domain.QuoteStore
	bus       domain.SignalBus
	exchanges []string
	ttl       time.Duration
	logger    *slog.Logger
}

// NewConsolidator creates a Consolidator covering the given exchange names.
func NewConsolidator(store domain.QuoteStore, bus domain.SignalBus, exchanges []string, ttl time.Duration, logger *slog.Logger) *Consolidator {
	return &Consolidator{
		store:     store,
		bus:       bus,
		exchanges: exchanges,
		ttl:       ttl,
		logger:    logger.With(slog.String("component", "consolidator")),
	}
}

// Consolidate recomputes the consolidated price for symbol and pushes it
// through the store, the history ring, and the publish channels. When no
// exchange currently holds a live quote for the symbol it does nothing and
// returns domain.ErrNotFound. A failure reading one exchange's quote only
// excludes that exchange from the computation.
func (c *Consolidator) Consolidate(ctx context.Context, symbol string) (domain.ConsolidatedPrice, error) {
	quotes := make([]domain.Quote, 0, len(c.exchanges))
	for _, exchange := range c.exchanges {
		q, err := c.store.GetQuote(ctx, exchange, symbol)
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				c.logger.Warn("excluding exchange from consolidation",
					slog.String("exchange", exchange),
					slog.String("symbol", symbol),
					slog.String("error", err.Error()),
				)
			}
			continue
		}
		quotes = append(quotes, q)
	}

	if len(quotes) == 0 {
		return domain.ConsolidatedPrice{}, domain.ErrNotFound
	}

	price := Compute(symbol, quotes)

	if err := c.store.SetConsolidated(ctx, price, c.ttl); err != nil {
		return domain.ConsolidatedPrice{}, fmt.Errorf("consolidate %s: %w", symbol, err)
	}
	if err := c.store.AppendHistory(ctx, symbol, price); err != nil {
		return domain.ConsolidatedPrice{}, fmt.Errorf("consolidate %s: history: %w", symbol, err)
	}
	if err := c.publish(ctx, price); err != nil {
		return domain.ConsolidatedPrice{}, fmt.Errorf("consolidate %s: publish: %w", symbol, err)
	}

	return price, nil
}

// Compute derives a ConsolidatedPrice from the contributing quotes: the
// unweighted mean of last prices, the best (highest) bid and best (lowest)
// ask, and the summed 24h base volume. Zero bids and asks count as "not
// observed"; when no ask is observed at all, BestAsk and Spread carry the
// domain.UnknownAsk sentinel rather than a false zero.
func Compute(symbol string, quotes []domain.Quote) domain.ConsolidatedPrice {
	var (
		sum     float64
		volume  float64
		bestBid float64
		bestAsk = math.Inf(1)
	)
	exchanges := make([]string, 0, len(quotes))

	for _, q := range quotes {
		sum += q.Price
		volume += q.Volume24h
		exchanges = append(exchanges, q.Exchange)
		if q.Bid > bestBid {
			bestBid = q.Bid
		}
		if q.Ask > 0 && q.Ask < bestAsk {
			bestAsk = q.Ask
		}
	}

	var spread float64 = domain.UnknownAsk
	if math.IsInf(bestAsk, 1) {
		bestAsk = domain.UnknownAsk
	} else {
		spread = bestAsk - bestBid
	}

	return domain.ConsolidatedPrice{
		Symbol:        symbol,
		Price:         sum / float64(len(quotes)),
		BestBid:       bestBid,
		BestAsk:       bestAsk,
		Spread:        spread,
		Volume24h:     volume,
		ExchangeCount: len(quotes),
		Exchanges:     exchanges,
		Timestamp:     time.Now().UTC(),
	}
}

// publish sends the update to the symbol-scoped channel and the catch-all
// channel consumed by the broadcaster.
func (c *Consolidator) publish(ctx context.Context, price domain.ConsolidatedPrice) error {
	payload, err := json.Marshal(domain.PriceUpdate{
		Symbol:    price.Symbol,
		Data:      price,
		Timestamp: price.Timestamp,
	})
	if err != nil {
		return err
	}

	if err := c.bus.Publish(ctx, domain.PriceUpdatesChannelFor(price.Symbol), payload); err != nil {
		return err
	}
	return c.bus.Publish(ctx, domain.PriceUpdatesChannel, payload)
}
