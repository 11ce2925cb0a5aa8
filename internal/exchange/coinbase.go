package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/marketfeed/marketfeed/internal/domain"
)

const coinbaseBaseURL = "https://api.exchange.coinbase.com"

// Coinbase is the REST client for the Coinbase Exchange public market-data
// API.
type Coinbase struct {
	baseURL    string
	httpClient *http.Client
}

// NewCoinbase creates a Coinbase client using the shared HTTP client.
func NewCoinbase(httpClient *http.Client) *Coinbase {
	return &Coinbase{
		baseURL:    coinbaseBaseURL,
		httpClient: httpClient,
	}
}

// Name returns "coinbase".
func (c *Coinbase) Name() string { return "coinbase" }

// coinbaseProduct converts "BTC/USDT" into Coinbase's "BTC-USDT" product id.
func coinbaseProduct(symbol string) string {
	return strings.ReplaceAll(strings.ToUpper(symbol), "/", "-")
}

// FetchQuote combines the product ticker (last trade, bid, ask) with the
// 24h stats endpoint (open/high/low) into one quote.
func (c *Coinbase) FetchQuote(ctx context.Context, symbol string) (domain.Quote, error) {
	product := coinbaseProduct(symbol)

	var ticker struct {
		Price  string    `json:"price"`
		Bid    string    `json:"bid"`
		Ask    string    `json:"ask"`
		Volume string    `json:"volume"`
		Time   time.Time `json:"time"`
	}
	url := fmt.Sprintf("%s/products/%s/ticker", c.baseURL, product)
	if err := getJSON(ctx, c.httpClient, url, &ticker); err != nil {
		return domain.Quote{}, fmt.Errorf("coinbase: ticker %s: %w", symbol, err)
	}

	var stats struct {
		Open   string `json:"open"`
		High   string `json:"high"`
		Low    string `json:"low"`
		Volume string `json:"volume"`
		Last   string `json:"last"`
	}
	url = fmt.Sprintf("%s/products/%s/stats", c.baseURL, product)
	if err := getJSON(ctx, c.httpClient, url, &stats); err != nil {
		return domain.Quote{}, fmt.Errorf("coinbase: stats %s: %w", symbol, err)
	}

	last := toFloat(ticker.Price)
	open := toFloat(stats.Open)
	change := 0.0
	changePct := 0.0
	if open > 0 && last > 0 {
		change = last - open
		changePct = change / open * 100
	}

	return domain.Quote{
		Exchange:       c.Name(),
		Symbol:         symbol,
		Price:          last,
		Bid:            toFloat(ticker.Bid),
		Ask:            toFloat(ticker.Ask),
		Volume24h:      toFloat(stats.Volume),
		QuoteVolume24h: toFloat(stats.Volume) * last,
		High24h:        toFloat(stats.High),
		Low24h:         toFloat(stats.Low),
		Change24h:      change,
		ChangePct24h:   changePct,
		Timestamp:      time.Now().UTC(),
		ExchangeTime:   ticker.Time.UTC(),
	}, nil
}

// FetchOrderBook returns the aggregated level-2 book trimmed to depth levels
// per side.
func (c *Coinbase) FetchOrderBook(ctx context.Context, symbol string, depth int) (domain.OrderBook, error) {
	var resp struct {
		Bids [][]json.RawMessage `json:"bids"`
		Asks [][]json.RawMessage `json:"asks"`
	}

	url := fmt.Sprintf("%s/products/%s/book?level=2", c.baseURL, coinbaseProduct(symbol))
	if err := getJSON(ctx, c.httpClient, url, &resp); err != nil {
		return domain.OrderBook{}, fmt.Errorf("coinbase: book %s: %w", symbol, err)
	}

	return domain.OrderBook{
		Exchange: c.Name(),
		Symbol:   symbol,
		Bids:     parseLevels(resp.Bids, depth),
		Asks:     parseLevels(resp.Asks, depth),
	}, nil
}

// FetchCandles returns up to limit OHLCV bars from the product candles
// endpoint, oldest first. Coinbase reports newest first with no limit
// parameter, so the response is reversed and trimmed here.
func (c *Coinbase) FetchCandles(ctx context.Context, symbol, interval string, limit int) ([]domain.Candle, error) {
	granularity, err := intervalToSeconds(interval)
	if err != nil {
		return nil, fmt.Errorf("coinbase: candles %s: %w", symbol, err)
	}

	// Rows are [time(s), low, high, open, close, volume], all numeric.
	var rows [][]float64
	url := fmt.Sprintf("%s/products/%s/candles?granularity=%d",
		c.baseURL, coinbaseProduct(symbol), granularity)
	if err := getJSON(ctx, c.httpClient, url, &rows); err != nil {
		return nil, fmt.Errorf("coinbase: candles %s: %w", symbol, err)
	}

	out := make([]domain.Candle, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		row := rows[i]
		if len(row) < 6 {
			continue
		}
		out = append(out, domain.Candle{
			Timestamp: time.Unix(int64(row[0]), 0).UTC(),
			Low:       row[1],
			High:      row[2],
			Open:      row[3],
			Close:     row[4],
			Volume:    row[5],
		})
	}
	return tailCandles(out, limit), nil
}

// ListMarkets returns every online product in "BASE/QUOTE" form.
func (c *Coinbase) ListMarkets(ctx context.Context) ([]string, error) {
	var resp []struct {
		BaseCurrency  string `json:"base_currency"`
		QuoteCurrency string `json:"quote_currency"`
		Status        string `json:"status"`
	}

	if err := getJSON(ctx, c.httpClient, c.baseURL+"/products", &resp); err != nil {
		return nil, fmt.Errorf("coinbase: products: %w", err)
	}

	out := make([]string, 0, len(resp))
	for _, p := range resp {
		if p.Status != "online" {
			continue
		}
		out = append(out, p.BaseCurrency+"/"+p.QuoteCurrency)
	}
	return out, nil
}

// Close is a no-op; the HTTP client is shared and owned by the caller.
func (c *Coinbase) Close() error { return nil }

// Compile-time interface check.
var _ domain.ExchangeClient = (*Coinbase)(nil)
