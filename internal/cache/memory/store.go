// Package memory implements the domain cache interfaces in process memory.
// It backs deployments that run without Redis and all of the test suites.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/marketfeed/marketfeed/internal/domain"
)

type quoteEntry struct {
	quote     domain.Quote
	expiresAt time.Time
}

type consolidatedEntry struct {
	price     domain.ConsolidatedPrice
	expiresAt time.Time
}

type snapshotEntry struct {
	snap      domain.MarketSnapshot
	expiresAt time.Time
}

type cacheEntry struct {
	value     []byte
	expiresAt time.Time
}

// Store is a mutex-guarded in-memory domain.QuoteStore. Expiry is lazy: an
// entry whose TTL has elapsed reads back as domain.ErrNotFound even while it
// is still physically present. StartSweeper adds proactive eviction so idle
// entries do not accumulate.
type Store struct {
	mu           sync.RWMutex
	quotes       map[string]quoteEntry
	consolidated map[string]consolidatedEntry
	snapshots    map[string]snapshotEntry
	history      map[string][]domain.ConsolidatedPrice
	generic      map[string]cacheEntry

	now func() time.Time // overridable in tests
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		quotes:       make(map[string]quoteEntry),
		consolidated: make(map[string]consolidatedEntry),
		snapshots:    make(map[string]snapshotEntry),
		history:      make(map[string][]domain.ConsolidatedPrice),
		generic:      make(map[string]cacheEntry),
		now:          time.Now,
	}
}

// StartSweeper launches a background goroutine that evicts expired entries
// every interval until ctx is cancelled.
func (s *Store) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.sweep()
			}
		}
	}()
}

func (s *Store) sweep() {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, e := range s.quotes {
		if now.After(e.expiresAt) {
			delete(s.quotes, k)
		}
	}
	for k, e := range s.consolidated {
		if now.After(e.expiresAt) {
			delete(s.consolidated, k)
		}
	}
	for k, e := range s.snapshots {
		if now.After(e.expiresAt) {
			delete(s.snapshots, k)
		}
	}
	for k, e := range s.generic {
		if now.After(e.expiresAt) {
			delete(s.generic, k)
		}
	}
}

func pairKey(exchange, symbol string) string { return exchange + ":" + symbol }

// SetQuote stores a raw per-exchange quote. Last write wins.
func (s *Store) SetQuote(_ context.Context, q domain.Quote, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quotes[pairKey(q.Exchange, q.Symbol)] = quoteEntry{
		quote:     q,
		expiresAt: s.now().Add(ttl),
	}
	return nil
}

// GetQuote retrieves the latest raw quote for (exchange, symbol), or
// domain.ErrNotFound once its TTL has elapsed.
func (s *Store) GetQuote(_ context.Context, exchange, symbol string) (domain.Quote, error) {
	s.mu.RLock()
	e, ok := s.quotes[pairKey(exchange, symbol)]
	s.mu.RUnlock()
	if !ok || s.now().After(e.expiresAt) {
		return domain.Quote{}, domain.ErrNotFound
	}
	return e.quote, nil
}

// SetConsolidated overwrites the consolidated price for a symbol.
func (s *Store) SetConsolidated(_ context.Context, p domain.ConsolidatedPrice, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.consolidated[p.Symbol] = consolidatedEntry{
		price:     p,
		expiresAt: s.now().Add(ttl),
	}
	return nil
}

// GetConsolidated retrieves the consolidated price for a symbol.
func (s *Store) GetConsolidated(_ context.Context, symbol string) (domain.ConsolidatedPrice, error) {
	s.mu.RLock()
	e, ok := s.consolidated[symbol]
	s.mu.RUnlock()
	if !ok || s.now().After(e.expiresAt) {
		return domain.ConsolidatedPrice{}, domain.ErrNotFound
	}
	return e.price, nil
}

// AllConsolidated returns every live consolidated price keyed by symbol.
func (s *Store) AllConsolidated(_ context.Context) (map[string]domain.ConsolidatedPrice, error) {
	now := s.now()
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]domain.ConsolidatedPrice, len(s.consolidated))
	for sym, e := range s.consolidated {
		if now.After(e.expiresAt) {
			continue
		}
		out[sym] = e.price
	}
	return out, nil
}

// AppendHistory prepends a snapshot to the symbol's history ring under the
// store mutex, so concurrent appenders never overwrite each other.
func (s *Store) AppendHistory(_ context.Context, symbol string, p domain.ConsolidatedPrice) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	h := s.history[symbol]
	h = append(h, domain.ConsolidatedPrice{})
	copy(h[1:], h)
	h[0] = p
	if len(h) > domain.HistoryLimit {
		h = h[:domain.HistoryLimit]
	}
	s.history[symbol] = h
	return nil
}

// History returns up to limit history snapshots for a symbol, newest first.
func (s *Store) History(_ context.Context, symbol string, limit int) ([]domain.ConsolidatedPrice, error) {
	if limit <= 0 || limit > domain.HistoryLimit {
		limit = domain.HistoryLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	h := s.history[symbol]
	if len(h) > limit {
		h = h[:limit]
	}
	out := make([]domain.ConsolidatedPrice, len(h))
	copy(out, h)
	return out, nil
}

// SetSnapshot stores a detailed market snapshot for (exchange, symbol).
func (s *Store) SetSnapshot(_ context.Context, snap domain.MarketSnapshot, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[pairKey(snap.Exchange, snap.Symbol)] = snapshotEntry{
		snap:      snap,
		expiresAt: s.now().Add(ttl),
	}
	return nil
}

// GetSnapshot retrieves the detailed market snapshot for (exchange, symbol).
func (s *Store) GetSnapshot(_ context.Context, exchange, symbol string) (domain.MarketSnapshot, error) {
	s.mu.RLock()
	e, ok := s.snapshots[pairKey(exchange, symbol)]
	s.mu.RUnlock()
	if !ok || s.now().After(e.expiresAt) {
		return domain.MarketSnapshot{}, domain.ErrNotFound
	}
	return e.snap, nil
}

// SetCache stores an opaque value under the generic cache namespace.
func (s *Store) SetCache(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := make([]byte, len(value))
	copy(v, value)
	s.generic[key] = cacheEntry{
		value:     v,
		expiresAt: s.now().Add(ttl),
	}
	return nil
}

// GetCache retrieves a generic cache entry.
func (s *Store) GetCache(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	e, ok := s.generic[key]
	s.mu.RUnlock()
	if !ok || s.now().After(e.expiresAt) {
		return nil, domain.ErrNotFound
	}
	return e.value, nil
}

// DeleteCache removes a generic cache entry. Deleting a missing key is a
// no-op.
func (s *Store) DeleteCache(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.generic, key)
	return nil
}

// Compile-time interface check.
var _ domain.QuoteStore = (*Store)(nil)
