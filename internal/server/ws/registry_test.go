package ws

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribeIdempotent(t *testing.T) {
	r := NewRegistry()
	c := newConn(nil)
	r.Add(c)

	require.True(t, r.Subscribe(c, "BTC/USDT"))
	require.True(t, r.Subscribe(c, "BTC/USDT"))

	stats := r.Stats()
	assert.Equal(t, 1, stats.TotalConnections)
	assert.Equal(t, 1, stats.TotalSubscriptions)
	assert.Equal(t, []string{"BTC/USDT"}, r.Subscriptions(c))
}

func TestSubscribeUnknownConnection(t *testing.T) {
	r := NewRegistry()
	c := newConn(nil)

	assert.False(t, r.Subscribe(c, "BTC/USDT"))
	assert.Empty(t, r.Subscribers("BTC/USDT"))
}

func TestRemoveDetachesAllSubscriptions(t *testing.T) {
	r := NewRegistry()
	a := newConn(nil)
	b := newConn(nil)
	r.Add(a)
	r.Add(b)

	r.Subscribe(a, "BTC/USDT")
	r.Subscribe(a, "ETH/USDT")
	r.Subscribe(b, "BTC/USDT")

	r.Remove(a)

	stats := r.Stats()
	assert.Equal(t, 1, stats.TotalConnections)
	assert.Equal(t, 1, stats.TotalSubscriptions)
	assert.Equal(t, map[string]int{"BTC/USDT": 1}, stats.PerSymbol)
	assert.Empty(t, r.Subscriptions(a))

	// Removing again is a no-op.
	r.Remove(a)
	assert.Equal(t, 1, r.Stats().TotalConnections)
}

func TestUnsubscribeDropsEmptySymbolSet(t *testing.T) {
	r := NewRegistry()
	c := newConn(nil)
	r.Add(c)
	r.Subscribe(c, "BTC/USDT")

	r.Unsubscribe(c, "BTC/USDT")

	stats := r.Stats()
	assert.Equal(t, 0, stats.TotalSubscriptions)
	assert.NotContains(t, stats.PerSymbol, "BTC/USDT")
	assert.Empty(t, r.Subscribers("BTC/USDT"))
}

func TestSubscribersSnapshot(t *testing.T) {
	r := NewRegistry()
	a := newConn(nil)
	b := newConn(nil)
	r.Add(a)
	r.Add(b)
	r.Subscribe(a, "BTC/USDT")
	r.Subscribe(b, "BTC/USDT")

	subs := r.Subscribers("BTC/USDT")
	require.Len(t, subs, 2)

	// Mutating the registry after the snapshot leaves it intact.
	r.Remove(a)
	assert.Len(t, subs, 2)
	assert.Len(t, r.Subscribers("BTC/USDT"), 1)
}

func TestStatsPerSymbolCounts(t *testing.T) {
	r := NewRegistry()
	a := newConn(nil)
	b := newConn(nil)
	r.Add(a)
	r.Add(b)

	r.Subscribe(a, "BTC/USDT")
	r.Subscribe(a, "ETH/USDT")
	r.Subscribe(b, "BTC/USDT")

	stats := r.Stats()
	assert.Equal(t, 2, stats.TotalConnections)
	assert.Equal(t, 3, stats.TotalSubscriptions)
	assert.Equal(t, map[string]int{"BTC/USDT": 2, "ETH/USDT": 1}, stats.PerSymbol)
}
