package exchange

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/marketfeed/marketfeed/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNames(t *testing.T) {
	assert.Equal(t, []string{"binance", "coinbase", "kraken"}, Names())
}

func TestNewUnknownExchange(t *testing.T) {
	_, err := New("mtgox", http.DefaultClient)
	assert.Error(t, err)
}

func TestInitializeUnknownExchangesOnly(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)
	_, err := Initialize(context.Background(), []string{"mtgox", "ftx"}, http.DefaultClient, logger)
	assert.ErrorIs(t, err, domain.ErrNoExchanges)
}

func TestGetJSONNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	var out map[string]any
	err := getJSON(context.Background(), http.DefaultClient, srv.URL, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 429")
}

func TestIntervalToSeconds(t *testing.T) {
	secs, err := intervalToSeconds("1h")
	require.NoError(t, err)
	assert.Equal(t, 3600, secs)

	secs, err = intervalToSeconds("1d")
	require.NoError(t, err)
	assert.Equal(t, 86400, secs)

	_, err = intervalToSeconds("90s")
	assert.ErrorIs(t, err, domain.ErrUnknownInterval)
}

func TestTailCandles(t *testing.T) {
	candles := []domain.Candle{{Open: 1}, {Open: 2}, {Open: 3}}

	assert.Len(t, tailCandles(candles, 5), 3)
	assert.Len(t, tailCandles(candles, 0), 3)

	trimmed := tailCandles(candles, 2)
	require.Len(t, trimmed, 2)
	assert.Equal(t, 2.0, trimmed[0].Open, "newest bars are kept")
	assert.Equal(t, 3.0, trimmed[1].Open)
}

func TestToFloat(t *testing.T) {
	assert.Equal(t, 50000.5, toFloat("50000.5"))
	assert.Equal(t, 0.0, toFloat(""))
	assert.Equal(t, 0.0, toFloat("not-a-number"))
}

func TestParseLevels(t *testing.T) {
	raw := [][]json.RawMessage{
		{json.RawMessage(`"100.5"`), json.RawMessage(`"2.0"`)},
		{json.RawMessage(`"100.4"`), json.RawMessage(`"1.5"`), json.RawMessage(`3`)},
		{json.RawMessage(`"100.3"`)}, // too short, skipped
		{json.RawMessage(`"100.2"`), json.RawMessage(`"0.5"`)},
	}

	levels := parseLevels(raw, 2)
	require.Len(t, levels, 2)
	assert.Equal(t, domain.PriceLevel{Price: 100.5, Size: 2.0}, levels[0])
	assert.Equal(t, domain.PriceLevel{Price: 100.4, Size: 1.5}, levels[1])
}
