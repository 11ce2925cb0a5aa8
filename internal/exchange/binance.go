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

const binanceBaseURL = "https://api.binance.com"

// Binance is the REST client for the Binance public market-data API. No API
// key is required for the endpoints it uses.
type Binance struct {
	baseURL    string
	httpClient *http.Client
}

// NewBinance creates a Binance client using the shared HTTP client.
func NewBinance(httpClient *http.Client) *Binance {
	return &Binance{
		baseURL:    binanceBaseURL,
		httpClient: httpClient,
	}
}

// Name returns "binance".
func (b *Binance) Name() string { return "binance" }

// binanceSymbol converts "BTC/USDT" into Binance's "BTCUSDT" notation.
func binanceSymbol(symbol string) string {
	return strings.ReplaceAll(strings.ToUpper(symbol), "/", "")
}

// FetchQuote returns the 24h rolling-window ticker for a symbol.
func (b *Binance) FetchQuote(ctx context.Context, symbol string) (domain.Quote, error) {
	var resp struct {
		LastPrice          string `json:"lastPrice"`
		BidPrice           string `json:"bidPrice"`
		AskPrice           string `json:"askPrice"`
		Volume             string `json:"volume"`
		QuoteVolume        string `json:"quoteVolume"`
		HighPrice          string `json:"highPrice"`
		LowPrice           string `json:"lowPrice"`
		PriceChange        string `json:"priceChange"`
		PriceChangePercent string `json:"priceChangePercent"`
		CloseTime          int64  `json:"closeTime"`
	}

	url := fmt.Sprintf("%s/api/v3/ticker/24hr?symbol=%s", b.baseURL, binanceSymbol(symbol))
	if err := getJSON(ctx, b.httpClient, url, &resp); err != nil {
		return domain.Quote{}, fmt.Errorf("binance: ticker %s: %w", symbol, err)
	}

	return domain.Quote{
		Exchange:       b.Name(),
		Symbol:         symbol,
		Price:          toFloat(resp.LastPrice),
		Bid:            toFloat(resp.BidPrice),
		Ask:            toFloat(resp.AskPrice),
		Volume24h:      toFloat(resp.Volume),
		QuoteVolume24h: toFloat(resp.QuoteVolume),
		High24h:        toFloat(resp.HighPrice),
		Low24h:         toFloat(resp.LowPrice),
		Change24h:      toFloat(resp.PriceChange),
		ChangePct24h:   toFloat(resp.PriceChangePercent),
		Timestamp:      time.Now().UTC(),
		ExchangeTime:   time.UnixMilli(resp.CloseTime).UTC(),
	}, nil
}

// FetchOrderBook returns up to depth levels per side from /api/v3/depth.
func (b *Binance) FetchOrderBook(ctx context.Context, symbol string, depth int) (domain.OrderBook, error) {
	var resp struct {
		Bids [][]json.RawMessage `json:"bids"`
		Asks [][]json.RawMessage `json:"asks"`
	}

	url := fmt.Sprintf("%s/api/v3/depth?symbol=%s&limit=%d", b.baseURL, binanceSymbol(symbol), depth)
	if err := getJSON(ctx, b.httpClient, url, &resp); err != nil {
		return domain.OrderBook{}, fmt.Errorf("binance: depth %s: %w", symbol, err)
	}

	return domain.OrderBook{
		Exchange: b.Name(),
		Symbol:   symbol,
		Bids:     parseLevels(resp.Bids, depth),
		Asks:     parseLevels(resp.Asks, depth),
	}, nil
}

// FetchCandles returns up to limit OHLCV bars from /api/v3/klines, oldest
// first. Binance accepts the interval names used across this package as-is.
func (b *Binance) FetchCandles(ctx context.Context, symbol, interval string, limit int) ([]domain.Candle, error) {
	if _, err := intervalToSeconds(interval); err != nil {
		return nil, fmt.Errorf("binance: klines %s: %w", symbol, err)
	}

	// Rows are positional with mixed types:
	// [openTime(ms), open, high, low, close, volume, closeTime, ...].
	var rows [][]json.RawMessage
	url := fmt.Sprintf("%s/api/v3/klines?symbol=%s&interval=%s&limit=%d",
		b.baseURL, binanceSymbol(symbol), interval, limit)
	if err := getJSON(ctx, b.httpClient, url, &rows); err != nil {
		return nil, fmt.Errorf("binance: klines %s: %w", symbol, err)
	}

	out := make([]domain.Candle, 0, len(rows))
	for _, row := range rows {
		if len(row) < 6 {
			continue
		}
		var openTime int64
		if err := json.Unmarshal(row[0], &openTime); err != nil {
			continue
		}
		var ohlcv [5]string
		ok := true
		for i := range ohlcv {
			if err := json.Unmarshal(row[i+1], &ohlcv[i]); err != nil {
				ok = false
				break
			}
		}
		if !ok {
			continue
		}
		out = append(out, domain.Candle{
			Timestamp: time.UnixMilli(openTime).UTC(),
			Open:      toFloat(ohlcv[0]),
			High:      toFloat(ohlcv[1]),
			Low:       toFloat(ohlcv[2]),
			Close:     toFloat(ohlcv[3]),
			Volume:    toFloat(ohlcv[4]),
		})
	}
	return out, nil
}

// ListMarkets returns every actively trading symbol in "BASE/QUOTE" form.
func (b *Binance) ListMarkets(ctx context.Context) ([]string, error) {
	var resp struct {
		Symbols []struct {
			Status     string `json:"status"`
			BaseAsset  string `json:"baseAsset"`
			QuoteAsset string `json:"quoteAsset"`
		} `json:"symbols"`
	}

	url := b.baseURL + "/api/v3/exchangeInfo"
	if err := getJSON(ctx, b.httpClient, url, &resp); err != nil {
		return nil, fmt.Errorf("binance: exchange info: %w", err)
	}

	out := make([]string, 0, len(resp.Symbols))
	for _, s := range resp.Symbols {
		if s.Status != "TRADING" {
			continue
		}
		out = append(out, s.BaseAsset+"/"+s.QuoteAsset)
	}
	return out, nil
}

// Close is a no-op; the HTTP client is shared and owned by the caller.
func (b *Binance) Close() error { return nil }

// Compile-time interface check.
var _ domain.ExchangeClient = (*Binance)(nil)
