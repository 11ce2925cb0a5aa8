package consolidate

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/marketfeed/marketfeed/internal/cache/memory"
	"github.com/marketfeed/marketfeed/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestComputeBestBidAskAcrossExchanges(t *testing.T) {
	quotes := []domain.Quote{
		{Exchange: "binance", Symbol: "BTC/USDT", Price: 100.5, Bid: 100, Ask: 101, Volume24h: 10},
		{Exchange: "kraken", Symbol: "BTC/USDT", Price: 100.5, Bid: 99, Ask: 102, Volume24h: 5},
	}

	p := Compute("BTC/USDT", quotes)

	assert.Equal(t, 100.0, p.BestBid, "highest bid wins")
	assert.Equal(t, 101.0, p.BestAsk, "lowest ask wins")
	assert.Equal(t, 1.0, p.Spread)
	assert.Equal(t, 15.0, p.Volume24h)
	assert.Equal(t, 2, p.ExchangeCount)
	assert.ElementsMatch(t, []string{"binance", "kraken"}, p.Exchanges)
}

func TestComputeMeanPrice(t *testing.T) {
	quotes := []domain.Quote{
		{Exchange: "binance", Price: 100},
		{Exchange: "coinbase", Price: 110},
		{Exchange: "kraken", Price: 120},
	}

	p := Compute("BTC/USDT", quotes)
	assert.InDelta(t, 110.0, p.Price, 1e-9)
}

func TestComputeIgnoresZeroBidAsk(t *testing.T) {
	quotes := []domain.Quote{
		{Exchange: "binance", Price: 100, Bid: 0, Ask: 0},
		{Exchange: "kraken", Price: 100, Bid: 99, Ask: 101},
	}

	p := Compute("BTC/USDT", quotes)
	assert.Equal(t, 99.0, p.BestBid)
	assert.Equal(t, 101.0, p.BestAsk)
	assert.Equal(t, 2.0, p.Spread)
}

func TestComputeNoAskObserved(t *testing.T) {
	quotes := []domain.Quote{
		{Exchange: "binance", Price: 100, Bid: 99, Ask: 0},
	}

	p := Compute("BTC/USDT", quotes)
	assert.Equal(t, 99.0, p.BestBid)
	assert.Equal(t, float64(domain.UnknownAsk), p.BestAsk, "missing ask must be the sentinel, not zero")
	assert.Equal(t, float64(domain.UnknownAsk), p.Spread)

	// The sentinel must survive JSON encoding; an infinity would not.
	_, err := json.Marshal(p)
	require.NoError(t, err)
}

func TestConsolidateNoQuotes(t *testing.T) {
	store := memory.NewStore()
	bus := memory.NewBus()
	c := NewConsolidator(store, bus, []string{"binance", "kraken"}, time.Minute, testLogger())

	_, err := c.Consolidate(context.Background(), "BTC/USDT")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = store.GetConsolidated(context.Background(), "BTC/USDT")
	assert.ErrorIs(t, err, domain.ErrNotFound, "nothing may be persisted without contributors")
}

func TestConsolidatePersistsAndPublishes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := memory.NewStore()
	bus := memory.NewBus()

	all, err := bus.Subscribe(ctx, domain.PriceUpdatesChannel)
	require.NoError(t, err)
	scoped, err := bus.Subscribe(ctx, domain.PriceUpdatesChannelFor("BTC/USDT"))
	require.NoError(t, err)

	require.NoError(t, store.SetQuote(ctx, domain.Quote{
		Exchange: "binance", Symbol: "BTC/USDT", Price: 100, Bid: 99, Ask: 101, Volume24h: 3,
	}, time.Minute))
	require.NoError(t, store.SetQuote(ctx, domain.Quote{
		Exchange: "kraken", Symbol: "BTC/USDT", Price: 102, Bid: 100, Ask: 103, Volume24h: 4,
	}, time.Minute))

	c := NewConsolidator(store, bus, []string{"binance", "kraken"}, time.Minute, testLogger())
	price, err := c.Consolidate(ctx, "BTC/USDT")
	require.NoError(t, err)
	assert.InDelta(t, 101.0, price.Price, 1e-9)

	stored, err := store.GetConsolidated(ctx, "BTC/USDT")
	require.NoError(t, err)
	assert.Equal(t, price, stored)

	history, err := store.History(ctx, "BTC/USDT", 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, price, history[0])

	for name, ch := range map[string]<-chan []byte{"catch-all": all, "symbol-scoped": scoped} {
		select {
		case payload := <-ch:
			var update domain.PriceUpdate
			require.NoError(t, json.Unmarshal(payload, &update))
			assert.Equal(t, "BTC/USDT", update.Symbol)
			assert.Equal(t, price.Price, update.Data.Price)
		case <-time.After(time.Second):
			t.Fatalf("no update on %s channel", name)
		}
	}
}

func TestConsolidateSkipsExpiredExchange(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	bus := memory.NewBus()

	// Only binance holds a live quote; kraken never reported.
	require.NoError(t, store.SetQuote(ctx, domain.Quote{
		Exchange: "binance", Symbol: "BTC/USDT", Price: 100, Bid: 99, Ask: 101,
	}, time.Minute))

	c := NewConsolidator(store, bus, []string{"binance", "kraken"}, time.Minute, testLogger())
	price, err := c.Consolidate(ctx, "BTC/USDT")
	require.NoError(t, err)

	assert.Equal(t, 1, price.ExchangeCount)
	assert.Equal(t, []string{"binance"}, price.Exchanges)
	assert.Equal(t, 100.0, price.Price)
}
