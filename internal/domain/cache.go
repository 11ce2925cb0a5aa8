package domain

import (
	"context"
	"time"
)

// QuoteStore is the TTL-bounded cache tier for raw quotes, consolidated
// prices, detailed market snapshots, the per-symbol price history ring, and
// generic cache entries. A read after the entry's TTL has elapsed returns
// ErrNotFound, whether or not the value is still physically present.
type QuoteStore interface {
	// Raw per-exchange quotes, keyed (exchange, symbol). Last write wins.
	SetQuote(ctx context.Context, q Quote, ttl time.Duration) error
	GetQuote(ctx context.Context, exchange, symbol string) (Quote, error)

	// Consolidated cross-exchange prices, keyed by symbol.
	SetConsolidated(ctx context.Context, p ConsolidatedPrice, ttl time.Duration) error
	GetConsolidated(ctx context.Context, symbol string) (ConsolidatedPrice, error)
	AllConsolidated(ctx context.Context) (map[string]ConsolidatedPrice, error)

	// AppendHistory prepends a snapshot to the symbol's bounded history
	// ring. Concurrent appends for the same symbol must not lose updates.
	AppendHistory(ctx context.Context, symbol string, p ConsolidatedPrice) error
	// History returns up to limit snapshots, newest first.
	History(ctx context.Context, symbol string, limit int) ([]ConsolidatedPrice, error)

	// Detailed market snapshots, keyed (exchange, symbol).
	SetSnapshot(ctx context.Context, snap MarketSnapshot, ttl time.Duration) error
	GetSnapshot(ctx context.Context, exchange, symbol string) (MarketSnapshot, error)

	// Generic cache entries.
	SetCache(ctx context.Context, key string, value []byte, ttl time.Duration) error
	GetCache(ctx context.Context, key string) ([]byte, error)
	DeleteCache(ctx context.Context, key string) error
}

// HistoryLimit bounds the per-symbol price history ring.
const HistoryLimit = 100

// SignalBus provides publish/subscribe fan-in between the consolidator and
// the broadcaster.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	// Subscribe returns a channel of raw payloads. The subscription and the
	// returned channel are closed when ctx is cancelled.
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// PriceUpdatesChannel is the catch-all pub/sub channel carrying every
// consolidated price update. Symbol-scoped updates additionally go to
// PriceUpdatesChannelFor(symbol).
const PriceUpdatesChannel = "price_updates"

// PriceUpdatesChannelFor returns the symbol-scoped price update channel.
func PriceUpdatesChannelFor(symbol string) string {
	return PriceUpdatesChannel + ":" + symbol
}
