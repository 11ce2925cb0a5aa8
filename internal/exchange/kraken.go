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

const krakenBaseURL = "https://api.kraken.com"

// Kraken is the REST client for the Kraken public market-data API.
type Kraken struct {
	baseURL    string
	httpClient *http.Client
}

// NewKraken creates a Kraken client using the shared HTTP client.
func NewKraken(httpClient *http.Client) *Kraken {
	return &Kraken{
		baseURL:    krakenBaseURL,
		httpClient: httpClient,
	}
}

// Name returns "kraken".
func (k *Kraken) Name() string { return "kraken" }

// krakenPair converts "BTC/USDT" into Kraken's "XBTUSDT" pair notation.
// Kraken uses XBT for Bitcoin.
func krakenPair(symbol string) string {
	s := strings.ReplaceAll(strings.ToUpper(symbol), "/", "")
	return strings.ReplaceAll(s, "BTC", "XBT")
}

// krakenResponse is the common envelope around every Kraken public endpoint.
type krakenResponse struct {
	Error  []string        `json:"error"`
	Result json.RawMessage `json:"result"`
}

func (k *Kraken) get(ctx context.Context, path string, result any) error {
	var env krakenResponse
	if err := getJSON(ctx, k.httpClient, k.baseURL+path, &env); err != nil {
		return err
	}
	if len(env.Error) > 0 {
		return fmt.Errorf("api error: %s", strings.Join(env.Error, "; "))
	}
	return json.Unmarshal(env.Result, result)
}

// krakenTicker mirrors one entry of the Ticker result. Kraken packs values
// into positional string arrays: a/b are [price, whole-lot-volume, volume],
// c is [last, volume], v/h/l are [today, last-24h].
type krakenTicker struct {
	Ask    []string `json:"a"`
	Bid    []string `json:"b"`
	Last   []string `json:"c"`
	Volume []string `json:"v"`
	High   []string `json:"h"`
	Low    []string `json:"l"`
	Open   string   `json:"o"`
}

func at(arr []string, i int) float64 {
	if i >= len(arr) {
		return 0
	}
	return toFloat(arr[i])
}

// FetchQuote returns the ticker for a symbol. The result key Kraken uses is
// not always the requested pair name, so the single entry of the result map
// is taken regardless of its key.
func (k *Kraken) FetchQuote(ctx context.Context, symbol string) (domain.Quote, error) {
	var result map[string]krakenTicker
	path := "/0/public/Ticker?pair=" + krakenPair(symbol)
	if err := k.get(ctx, path, &result); err != nil {
		return domain.Quote{}, fmt.Errorf("kraken: ticker %s: %w", symbol, err)
	}
	if len(result) == 0 {
		return domain.Quote{}, fmt.Errorf("kraken: ticker %s: %w", symbol, domain.ErrUnknownSymbol)
	}

	var t krakenTicker
	for _, v := range result {
		t = v
		break
	}

	last := at(t.Last, 0)
	open := toFloat(t.Open)
	change := 0.0
	changePct := 0.0
	if open > 0 && last > 0 {
		change = last - open
		changePct = change / open * 100
	}

	return domain.Quote{
		Exchange:       k.Name(),
		Symbol:         symbol,
		Price:          last,
		Bid:            at(t.Bid, 0),
		Ask:            at(t.Ask, 0),
		Volume24h:      at(t.Volume, 1),
		QuoteVolume24h: at(t.Volume, 1) * last,
		High24h:        at(t.High, 1),
		Low24h:         at(t.Low, 1),
		Change24h:      change,
		ChangePct24h:   changePct,
		Timestamp:      time.Now().UTC(),
	}, nil
}

// FetchOrderBook returns up to depth levels per side from the public Depth
// endpoint.
func (k *Kraken) FetchOrderBook(ctx context.Context, symbol string, depth int) (domain.OrderBook, error) {
	var result map[string]struct {
		Bids [][]json.RawMessage `json:"bids"`
		Asks [][]json.RawMessage `json:"asks"`
	}

	path := fmt.Sprintf("/0/public/Depth?pair=%s&count=%d", krakenPair(symbol), depth)
	if err := k.get(ctx, path, &result); err != nil {
		return domain.OrderBook{}, fmt.Errorf("kraken: depth %s: %w", symbol, err)
	}

	book := domain.OrderBook{
		Exchange: k.Name(),
		Symbol:   symbol,
	}
	for _, v := range result {
		book.Bids = parseLevels(v.Bids, depth)
		book.Asks = parseLevels(v.Asks, depth)
		break
	}
	return book, nil
}

// FetchCandles returns up to limit OHLCV bars from the public OHLC endpoint,
// oldest first. Kraken's result map carries a "last" cursor next to the pair
// entry, so rows are taken from whichever key decodes as an array.
func (k *Kraken) FetchCandles(ctx context.Context, symbol, interval string, limit int) ([]domain.Candle, error) {
	secs, err := intervalToSeconds(interval)
	if err != nil {
		return nil, fmt.Errorf("kraken: ohlc %s: %w", symbol, err)
	}

	var result map[string]json.RawMessage
	path := fmt.Sprintf("/0/public/OHLC?pair=%s&interval=%d", krakenPair(symbol), secs/60)
	if err := k.get(ctx, path, &result); err != nil {
		return nil, fmt.Errorf("kraken: ohlc %s: %w", symbol, err)
	}

	// Rows are [time(s), open, high, low, close, vwap, volume, count] with
	// strings for the price and volume fields.
	var rows [][]json.RawMessage
	for key, raw := range result {
		if key == "last" {
			continue
		}
		if json.Unmarshal(raw, &rows) == nil {
			break
		}
	}

	out := make([]domain.Candle, 0, len(rows))
	for _, row := range rows {
		if len(row) < 7 {
			continue
		}
		var ts int64
		if err := json.Unmarshal(row[0], &ts); err != nil {
			continue
		}
		fields := make([]string, 0, 6)
		ok := true
		for _, cell := range row[1:7] {
			var s string
			if err := json.Unmarshal(cell, &s); err != nil {
				ok = false
				break
			}
			fields = append(fields, s)
		}
		if !ok {
			continue
		}
		out = append(out, domain.Candle{
			Timestamp: time.Unix(ts, 0).UTC(),
			Open:      toFloat(fields[0]),
			High:      toFloat(fields[1]),
			Low:       toFloat(fields[2]),
			Close:     toFloat(fields[3]),
			Volume:    toFloat(fields[5]),
		})
	}
	return tailCandles(out, limit), nil
}

// ListMarkets returns every tradable pair in "BASE/QUOTE" form, translating
// Kraken's XBT back to BTC.
func (k *Kraken) ListMarkets(ctx context.Context) ([]string, error) {
	var result map[string]struct {
		WSName string `json:"wsname"`
	}

	if err := k.get(ctx, "/0/public/AssetPairs", &result); err != nil {
		return nil, fmt.Errorf("kraken: asset pairs: %w", err)
	}

	out := make([]string, 0, len(result))
	for _, p := range result {
		if p.WSName == "" {
			continue
		}
		out = append(out, strings.ReplaceAll(p.WSName, "XBT", "BTC"))
	}
	return out, nil
}

// Close is a no-op; the HTTP client is shared and owned by the caller.
func (k *Kraken) Close() error { return nil }

// Compile-time interface check.
var _ domain.ExchangeClient = (*Kraken)(nil)
