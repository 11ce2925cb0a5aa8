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

func TestKrakenPair(t *testing.T) {
	assert.Equal(t, "XBTUSDT", krakenPair("BTC/USDT"))
	assert.Equal(t, "ETHUSDT", krakenPair("ETH/USDT"))
}

func TestKrakenFetchQuote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/0/public/Ticker", r.URL.Path)
		require.Equal(t, "XBTUSDT", r.URL.Query().Get("pair"))
		// The result key differs from the requested pair name.
		w.Write([]byte(`{
			"error": [],
			"result": {
				"XBTUSDT.d": {
					"a": ["50001.0", "1", "1.000"],
					"b": ["49999.0", "2", "2.000"],
					"c": ["50000.0", "0.1"],
					"v": ["100.0", "250.0"],
					"h": ["50500.0", "51000.0"],
					"l": ["49000.0", "48500.0"],
					"o": "49500.0"
				}
			}
		}`))
	}))
	defer srv.Close()

	k := NewKraken(srv.Client())
	k.baseURL = srv.URL

	q, err := k.FetchQuote(context.Background(), "BTC/USDT")
	require.NoError(t, err)

	assert.Equal(t, "kraken", q.Exchange)
	assert.Equal(t, 50000.0, q.Price)
	assert.Equal(t, 49999.0, q.Bid)
	assert.Equal(t, 50001.0, q.Ask)
	// Volume and high/low use the last-24h slot, not today's.
	assert.Equal(t, 250.0, q.Volume24h)
	assert.Equal(t, 51000.0, q.High24h)
	assert.Equal(t, 48500.0, q.Low24h)
	assert.Equal(t, 500.0, q.Change24h)
}

func TestKrakenFetchQuoteAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error": ["EQuery:Unknown asset pair"], "result": null}`))
	}))
	defer srv.Close()

	k := NewKraken(srv.Client())
	k.baseURL = srv.URL

	_, err := k.FetchQuote(context.Background(), "NOPE/USDT")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EQuery:Unknown asset pair")
}

func TestKrakenFetchOrderBook(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/0/public/Depth", r.URL.Path)
		w.Write([]byte(`{
			"error": [],
			"result": {
				"XBTUSDT": {
					"bids": [["49999.0","1.0",1756036800]],
					"asks": [["50001.0","0.5",1756036800],["50002.0","0.7",1756036801]]
				}
			}
		}`))
	}))
	defer srv.Close()

	k := NewKraken(srv.Client())
	k.baseURL = srv.URL

	book, err := k.FetchOrderBook(context.Background(), "BTC/USDT", 10)
	require.NoError(t, err)

	require.Len(t, book.Bids, 1)
	require.Len(t, book.Asks, 2)
	assert.Equal(t, 49999.0, book.Bids[0].Price)
	assert.Equal(t, 0.5, book.Asks[0].Size)
}

func TestKrakenFetchCandles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/0/public/OHLC", r.URL.Path)
		require.Equal(t, "XBTUSDT", r.URL.Query().Get("pair"))
		require.Equal(t, "60", r.URL.Query().Get("interval"), "1h is 60 minutes")
		// Rows are [time, open, high, low, close, vwap, volume, count]; the
		// "last" cursor sits next to the pair entry.
		w.Write([]byte(`{
			"error": [],
			"result": {
				"XBTUSDT": [
					[1756033200, "50000.0", "50500.0", "49800.0", "50400.0", "50150.0", "120.5", 900],
					[1756036800, "50400.0", "50600.0", "50300.0", "50550.0", "50480.0", "95.2", 700]
				],
				"last": 1756036800
			}
		}`))
	}))
	defer srv.Close()

	k := NewKraken(srv.Client())
	k.baseURL = srv.URL

	candles, err := k.FetchCandles(context.Background(), "BTC/USDT", "1h", 10)
	require.NoError(t, err)

	require.Len(t, candles, 2)
	assert.Equal(t, int64(1756033200), candles[0].Timestamp.Unix())
	assert.Equal(t, 50000.0, candles[0].Open)
	assert.Equal(t, 50500.0, candles[0].High)
	assert.Equal(t, 49800.0, candles[0].Low)
	assert.Equal(t, 50400.0, candles[0].Close)
	// Volume comes after the vwap column.
	assert.Equal(t, 120.5, candles[0].Volume)
	assert.Equal(t, 95.2, candles[1].Volume)
}

func TestKrakenFetchCandlesUnknownInterval(t *testing.T) {
	k := NewKraken(http.DefaultClient)

	_, err := k.FetchCandles(context.Background(), "BTC/USDT", "7m", 10)
	assert.ErrorIs(t, err, domain.ErrUnknownInterval)
}

func TestKrakenListMarkets(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/0/public/AssetPairs", r.URL.Path)
		w.Write([]byte(`{
			"error": [],
			"result": {
				"XXBTZUSD": {"wsname": "XBT/USD"},
				"XETHZUSD": {"wsname": "ETH/USD"},
				"LEGACY": {}
			}
		}`))
	}))
	defer srv.Close()

	k := NewKraken(srv.Client())
	k.baseURL = srv.URL

	markets, err := k.ListMarkets(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"BTC/USD", "ETH/USD"}, markets)
}
