package exchange

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/marketfeed/marketfeed/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoinbaseProduct(t *testing.T) {
	assert.Equal(t, "BTC-USDT", coinbaseProduct("BTC/USDT"))
	assert.Equal(t, "SOL-USDT", coinbaseProduct("sol/usdt"))
}

func TestCoinbaseFetchQuote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/products/BTC-USDT/ticker":
			w.Write([]byte(`{
				"price": "50500.00",
				"bid": "50499.00",
				"ask": "50501.00",
				"volume": "800.0",
				"time": "2026-08-24T12:00:00Z"
			}`))
		case "/products/BTC-USDT/stats":
			w.Write([]byte(`{
				"open": "50000.00",
				"high": "51000.00",
				"low": "49500.00",
				"volume": "800.0",
				"last": "50500.00"
			}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewCoinbase(srv.Client())
	c.baseURL = srv.URL

	q, err := c.FetchQuote(context.Background(), "BTC/USDT")
	require.NoError(t, err)

	assert.Equal(t, "coinbase", q.Exchange)
	assert.Equal(t, 50500.00, q.Price)
	assert.Equal(t, 50499.00, q.Bid)
	assert.Equal(t, 50501.00, q.Ask)
	assert.Equal(t, 800.0, q.Volume24h)
	// Change is derived from the 24h open.
	assert.Equal(t, 500.0, q.Change24h)
	assert.InDelta(t, 1.0, q.ChangePct24h, 1e-9)
}

func TestCoinbaseFetchOrderBook(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/products/BTC-USDT/book", r.URL.Path)
		require.Equal(t, "2", r.URL.Query().Get("level"))
		w.Write([]byte(`{
			"bids": [["50499.00","2.0",4],["50498.00","1.0",2]],
			"asks": [["50501.00","1.5",3]]
		}`))
	}))
	defer srv.Close()

	c := NewCoinbase(srv.Client())
	c.baseURL = srv.URL

	book, err := c.FetchOrderBook(context.Background(), "BTC/USDT", 1)
	require.NoError(t, err)

	// Trimmed to the requested depth.
	require.Len(t, book.Bids, 1)
	require.Len(t, book.Asks, 1)
	assert.Equal(t, 50499.00, book.Bids[0].Price)
	assert.Equal(t, 2.0, book.Bids[0].Size)
}

func TestCoinbaseFetchCandles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/products/BTC-USDT/candles", r.URL.Path)
		require.Equal(t, "3600", r.URL.Query().Get("granularity"))
		// Rows are [time, low, high, open, close, volume], newest first.
		w.Write([]byte(`[
			[1756040400, 50300.0, 50700.0, 50550.0, 50650.0, 80.0],
			[1756036800, 50300.0, 50600.0, 50400.0, 50550.0, 95.2],
			[1756033200, 49800.0, 50500.0, 50000.0, 50400.0, 120.5]
		]`))
	}))
	defer srv.Close()

	c := NewCoinbase(srv.Client())
	c.baseURL = srv.URL

	candles, err := c.FetchCandles(context.Background(), "BTC/USDT", "1h", 2)
	require.NoError(t, err)

	// Reversed to oldest-first, then trimmed to the newest limit bars.
	require.Len(t, candles, 2)
	assert.Equal(t, int64(1756036800), candles[0].Timestamp.Unix())
	assert.Equal(t, 50400.0, candles[0].Open)
	assert.Equal(t, 50550.0, candles[0].Close)
	assert.Equal(t, int64(1756040400), candles[1].Timestamp.Unix())
	assert.Equal(t, 50650.0, candles[1].Close)
}

func TestCoinbaseFetchCandlesUnknownInterval(t *testing.T) {
	c := NewCoinbase(http.DefaultClient)

	_, err := c.FetchCandles(context.Background(), "BTC/USDT", "3h", 10)
	assert.ErrorIs(t, err, domain.ErrUnknownInterval)
}

func TestCoinbaseListMarkets(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/products", r.URL.Path)
		w.Write([]byte(`[
			{"base_currency": "BTC", "quote_currency": "USDT", "status": "online"},
			{"base_currency": "XRP", "quote_currency": "USD", "status": "delisted"},
			{"base_currency": "ETH", "quote_currency": "USDT", "status": "online"}
		]`))
	}))
	defer srv.Close()

	c := NewCoinbase(srv.Client())
	c.baseURL = srv.URL

	markets, err := c.ListMarkets(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"BTC/USDT", "ETH/USDT"}, markets)
}
