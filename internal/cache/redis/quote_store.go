package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/marketfeed/marketfeed/internal/domain"
	"github.com/redis/go-redis/v9"
)

// QuoteStore implements domain.QuoteStore on Redis.
//
// Key schema:
//
//	quote:{exchange}:{symbol}  - JSON Quote, expiring string
//	consolidated:{symbol}      - JSON ConsolidatedPrice, expiring string
//	history:{symbol}           - list of JSON ConsolidatedPrice, newest first
//	market:{exchange}:{symbol} - JSON MarketSnapshot, expiring string
//	cache:{key}                - opaque bytes, expiring string
//
// TTL expiry is handled by Redis itself, so an expired entry reads back as
// domain.ErrNotFound without any sweeping on our side.
type QuoteStore struct {
	rdb *redis.Client
}

// NewQuoteStore creates a QuoteStore backed by the given Client.
func NewQuoteStore(c *Client) *QuoteStore {
	return &QuoteStore{rdb: c.Underlying()}
}

func quoteKey(exchange, symbol string) string    { return "quote:" + exchange + ":" + symbol }
func consolidatedKey(symbol string) string       { return "consolidated:" + symbol }
func historyKey(symbol string) string            { return "history:" + symbol }
func snapshotKey(exchange, symbol string) string { return "market:" + exchange + ":" + symbol }
func cacheKey(key string) string                 { return "cache:" + key }

// SetQuote stores a raw per-exchange quote with the given TTL, replacing any
// previous value for the same (exchange, symbol).
func (s *QuoteStore) SetQuote(ctx context.Context, q domain.Quote, ttl time.Duration) error {
	data, err := json.Marshal(q)
	if err != nil {
		return fmt.Errorf("redis: marshal quote %s:%s: %w", q.Exchange, q.Symbol, err)
	}
	if err := s.rdb.Set(ctx, quoteKey(q.Exchange, q.Symbol), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis: set quote %s:%s: %w", q.Exchange, q.Symbol, err)
	}
	return nil
}

// GetQuote retrieves the latest raw quote for (exchange, symbol).
// It returns domain.ErrNotFound when the key is absent or expired.
func (s *QuoteStore) GetQuote(ctx context.Context, exchange, symbol string) (domain.Quote, error) {
	data, err := s.rdb.Get(ctx, quoteKey(exchange, symbol)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Quote{}, domain.ErrNotFound
		}
		return domain.Quote{}, fmt.Errorf("redis: get quote %s:%s: %w", exchange, symbol, err)
	}

	var q domain.Quote
	if err := json.Unmarshal(data, &q); err != nil {
		return domain.Quote{}, fmt.Errorf("redis: unmarshal quote %s:%s: %w", exchange, symbol, err)
	}
	return q, nil
}

// SetConsolidated overwrites the consolidated price for a symbol.
func (s *QuoteStore) SetConsolidated(ctx context.Context, p domain.ConsolidatedPrice, ttl time.Duration) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("redis: marshal consolidated %s: %w", p.Symbol, err)
	}
	if err := s.rdb.Set(ctx, consolidatedKey(p.Symbol), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis: set consolidated %s: %w", p.Symbol, err)
	}
	return nil
}

// GetConsolidated retrieves the consolidated price for a symbol.
// It returns domain.ErrNotFound when the key is absent or expired.
func (s *QuoteStore) GetConsolidated(ctx context.Context, symbol string) (domain.ConsolidatedPrice, error) {
	data, err := s.rdb.Get(ctx, consolidatedKey(symbol)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.ConsolidatedPrice{}, domain.ErrNotFound
		}
		return domain.ConsolidatedPrice{}, fmt.Errorf("redis: get consolidated %s: %w", symbol, err)
	}

	var p domain.ConsolidatedPrice
	if err := json.Unmarshal(data, &p); err != nil {
		return domain.ConsolidatedPrice{}, fmt.Errorf("redis: unmarshal consolidated %s: %w", symbol, err)
	}
	return p, nil
}

// AllConsolidated returns every live consolidated price keyed by symbol.
// Keys that expire between the scan and the read are silently omitted.
func (s *QuoteStore) AllConsolidated(ctx context.Context) (map[string]domain.ConsolidatedPrice, error) {
	out := make(map[string]domain.ConsolidatedPrice)

	iter := s.rdb.Scan(ctx, 0, consolidatedKey("*"), 100).Iterator()
	for iter.Next(ctx) {
		data, err := s.rdb.Get(ctx, iter.Val()).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return nil, fmt.Errorf("redis: get %s: %w", iter.Val(), err)
		}
		var p domain.ConsolidatedPrice
		if err := json.Unmarshal(data, &p); err != nil {
			continue
		}
		out[p.Symbol] = p
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis: scan consolidated: %w", err)
	}
	return out, nil
}

// AppendHistory prepends a snapshot to the symbol's history list and trims
// it to domain.HistoryLimit entries. LPUSH and LTRIM run in one transaction
// so concurrent appenders cannot lose each other's writes.
func (s *QuoteStore) AppendHistory(ctx context.Context, symbol string, p domain.ConsolidatedPrice) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("redis: marshal history %s: %w", symbol, err)
	}

	key := historyKey(symbol)
	pipe := s.rdb.TxPipeline()
	pipe.LPush(ctx, key, data)
	pipe.LTrim(ctx, key, 0, domain.HistoryLimit-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: append history %s: %w", symbol, err)
	}
	return nil
}

// History returns up to limit history snapshots for a symbol, newest first.
func (s *QuoteStore) History(ctx context.Context, symbol string, limit int) ([]domain.ConsolidatedPrice, error) {
	if limit <= 0 || limit > domain.HistoryLimit {
		limit = domain.HistoryLimit
	}

	items, err := s.rdb.LRange(ctx, historyKey(symbol), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: history %s: %w", symbol, err)
	}

	out := make([]domain.ConsolidatedPrice, 0, len(items))
	for _, item := range items {
		var p domain.ConsolidatedPrice
		if err := json.Unmarshal([]byte(item), &p); err != nil {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// SetSnapshot stores a detailed market snapshot for (exchange, symbol).
func (s *QuoteStore) SetSnapshot(ctx context.Context, snap domain.MarketSnapshot, ttl time.Duration) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("redis: marshal snapshot %s:%s: %w", snap.Exchange, snap.Symbol, err)
	}
	if err := s.rdb.Set(ctx, snapshotKey(snap.Exchange, snap.Symbol), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis: set snapshot %s:%s: %w", snap.Exchange, snap.Symbol, err)
	}
	return nil
}

// GetSnapshot retrieves the detailed market snapshot for (exchange, symbol).
func (s *QuoteStore) GetSnapshot(ctx context.Context, exchange, symbol string) (domain.MarketSnapshot, error) {
	data, err := s.rdb.Get(ctx, snapshotKey(exchange, symbol)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.MarketSnapshot{}, domain.ErrNotFound
		}
		return domain.MarketSnapshot{}, fmt.Errorf("redis: get snapshot %s:%s: %w", exchange, symbol, err)
	}

	var snap domain.MarketSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return domain.MarketSnapshot{}, fmt.Errorf("redis: unmarshal snapshot %s:%s: %w", exchange, symbol, err)
	}
	return snap, nil
}

// SetCache stores an opaque value under the generic cache namespace.
func (s *QuoteStore) SetCache(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.rdb.Set(ctx, cacheKey(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("redis: set cache %s: %w", key, err)
	}
	return nil
}

// GetCache retrieves a generic cache entry.
func (s *QuoteStore) GetCache(ctx context.Context, key string) ([]byte, error) {
	data, err := s.rdb.Get(ctx, cacheKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("redis: get cache %s: %w", key, err)
	}
	return data, nil
}

// DeleteCache removes a generic cache entry. Deleting a missing key is a
// no-op.
func (s *QuoteStore) DeleteCache(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, cacheKey(key)).Err(); err != nil {
		return fmt.Errorf("redis: delete cache %s: %w", key, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.QuoteStore = (*QuoteStore)(nil)
