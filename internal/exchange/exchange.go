// Package exchange provides REST clients for the supported cryptocurrency
// exchanges behind the domain.ExchangeClient capability interface, plus the
// startup factory that probes and assembles the active exchange set.
package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strconv"

	"github.com/marketfeed/marketfeed/internal/domain"
)

// factories maps exchange names to constructors. All clients share one
// http.Client so the per-request timeout is configured in a single place.
var factories = map[string]func(*http.Client) domain.ExchangeClient{
	"binance":  func(hc *http.Client) domain.ExchangeClient { return NewBinance(hc) },
	"coinbase": func(hc *http.Client) domain.ExchangeClient { return NewCoinbase(hc) },
	"kraken":   func(hc *http.Client) domain.ExchangeClient { return NewKraken(hc) },
}

// Names returns the sorted list of supported exchange identifiers.
func Names() []string {
	out := make([]string, 0, len(factories))
	for name := range factories {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// New creates the client for a known exchange name.
func New(name string, httpClient *http.Client) (domain.ExchangeClient, error) {
	factory, ok := factories[name]
	if !ok {
		return nil, fmt.Errorf("exchange: unknown exchange %q", name)
	}
	return factory(httpClient), nil
}

// Initialize builds clients for the requested exchanges and probes each one
// with ListMarkets. Exchanges that are unknown or fail the probe are logged
// and omitted from the active set. It returns domain.ErrNoExchanges when not
// a single exchange comes up; the service must not start without a source.
func Initialize(ctx context.Context, names []string, httpClient *http.Client, logger *slog.Logger) ([]domain.ExchangeClient, error) {
	active := make([]domain.ExchangeClient, 0, len(names))

	for _, name := range names {
		client, err := New(name, httpClient)
		if err != nil {
			logger.Error("skipping unknown exchange", slog.String("exchange", name))
			continue
		}

		markets, err := client.ListMarkets(ctx)
		if err != nil {
			logger.Error("exchange failed to initialize",
				slog.String("exchange", name),
				slog.String("error", err.Error()),
			)
			_ = client.Close()
			continue
		}

		logger.Info("exchange initialized",
			slog.String("exchange", name),
			slog.Int("markets", len(markets)),
		)
		active = append(active, client)
	}

	if len(active) == 0 {
		return nil, fmt.Errorf("exchange: initialize: %w", domain.ErrNoExchanges)
	}
	return active, nil
}

// getJSON issues a GET request and decodes the JSON response into v. A
// non-2xx status is an error carrying the response body.
func getJSON(ctx context.Context, hc *http.Client, url string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("status %d: %s", resp.StatusCode, truncate(body, 256))
	}

	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		b = b[:n]
	}
	return string(b)
}

// intervalSeconds maps the supported candle intervals to their length.
// Binance takes the name directly, Coinbase wants seconds, Kraken minutes.
var intervalSeconds = map[string]int{
	"1m":  60,
	"5m":  300,
	"15m": 900,
	"1h":  3600,
	"4h":  14400,
	"1d":  86400,
}

func intervalToSeconds(interval string) (int, error) {
	secs, ok := intervalSeconds[interval]
	if !ok {
		return 0, fmt.Errorf("%w: %q", domain.ErrUnknownInterval, interval)
	}
	return secs, nil
}

// tailCandles trims a slice of oldest-first candles to its newest limit
// entries for exchanges whose endpoints have no limit parameter.
func tailCandles(candles []domain.Candle, limit int) []domain.Candle {
	if limit > 0 && len(candles) > limit {
		candles = candles[len(candles)-limit:]
	}
	return candles
}

// toFloat parses exchange numeric fields that arrive as strings. Empty or
// malformed values become zero, which downstream consolidation treats as
// "not observed".
func toFloat(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

// parseLevels converts [["price","size",...], ...] order book rows into
// typed levels, keeping up to depth entries.
func parseLevels(raw [][]json.RawMessage, depth int) []domain.PriceLevel {
	if depth > 0 && len(raw) > depth {
		raw = raw[:depth]
	}
	out := make([]domain.PriceLevel, 0, len(raw))
	for _, row := range raw {
		if len(row) < 2 {
			continue
		}
		var price, size string
		if err := json.Unmarshal(row[0], &price); err != nil {
			continue
		}
		if err := json.Unmarshal(row[1], &size); err != nil {
			continue
		}
		out = append(out, domain.PriceLevel{Price: toFloat(price), Size: toFloat(size)})
	}
	return out
}
