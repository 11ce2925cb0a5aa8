package ws

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

// recv drains one queued message from the connection's outbound queue.
func recv(t *testing.T, c *Conn) envelope {
	t.Helper()
	select {
	case data := <-c.send:
		var env envelope
		require.NoError(t, json.Unmarshal(data, &env))
		return env
	case <-time.After(time.Second):
		t.Fatal("no message queued")
		return envelope{}
	}
}

func TestBroadcastPriceUpdateOnlyToSubscribers(t *testing.T) {
	h := testHub(t)

	subscribed := addConn(h)
	other := addConn(h)
	h.registry.Subscribe(subscribed, "BTC/USDT")
	h.registry.Subscribe(other, "ETH/USDT")

	h.BroadcastPriceUpdate(domain.PriceUpdate{
		Symbol:    "BTC/USDT",
		Data:      domain.ConsolidatedPrice{Symbol: "BTC/USDT", Price: 50000},
		Timestamp: time.Now().UTC(),
	})

	env := recv(t, subscribed)
	assert.Equal(t, typePriceUpdate, env.Type)
	assert.Equal(t, "BTC/USDT", env.Symbol)

	select {
	case data := <-other.send:
		t.Fatalf("unsubscribed connection received %s", data)
	default:
	}
}

func TestBroadcastToClosedConnectionRemovesIt(t *testing.T) {
	h := testHub(t)

	c := addConn(h)
	h.registry.Subscribe(c, "BTC/USDT")
	c.close()

	h.BroadcastPriceUpdate(domain.PriceUpdate{
		Symbol: "BTC/USDT",
		Data:   domain.ConsolidatedPrice{Symbol: "BTC/USDT"},
	})

	assert.Empty(t, h.registry.Connections(), "dead connection must be evicted on failed delivery")
}

func TestBroadcastAll(t *testing.T) {
	h := testHub(t)
	a := addConn(h)
	b := addConn(h)

	h.BroadcastAll(envelope{Type: typeConnectionEstablished, Timestamp: time.Now().UTC()})

	assert.Equal(t, typeConnectionEstablished, recv(t, a).Type)
	assert.Equal(t, typeConnectionEstablished, recv(t, b).Type)
}

func TestRunFansOutBusUpdates(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := memory.NewBus()
	h := NewHub(bus, []string{"BTC/USDT"}, slog.New(slog.DiscardHandler))

	c := addConn(h)
	h.registry.Subscribe(c, "BTC/USDT")

	done := make(chan error, 1)
	go func() { done <- h.Run(ctx) }()

	// Give Run a moment to subscribe before publishing.
	time.Sleep(20 * time.Millisecond)

	payload, err := json.Marshal(domain.PriceUpdate{
		Symbol:    "BTC/USDT",
		Data:      domain.ConsolidatedPrice{Symbol: "BTC/USDT", Price: 42000},
		Timestamp: time.Now().UTC(),
	})
	require.NoError(t, err)
	require.NoError(t, bus.Publish(ctx, domain.PriceUpdatesChannel, payload))

	env := recv(t, c)
	assert.Equal(t, typePriceUpdate, env.Type)
	assert.Equal(t, "BTC/USDT", env.Symbol)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("hub did not stop")
	}
	assert.Empty(t, h.registry.Connections(), "shutdown must disconnect everyone")
}

func TestEnqueueAfterClose(t *testing.T) {
	c := newConn(nil)
	require.True(t, c.enqueue([]byte("a")))
	c.close()
	assert.False(t, c.enqueue([]byte("b")))
}

func TestEnqueueDropsWhenBufferFull(t *testing.T) {
	c := newConn(nil)
	for i := 0; i < sendBufferSize; i++ {
		require.True(t, c.enqueue([]byte("m")))
	}
	// A full buffer drops the payload but keeps the connection alive.
	assert.True(t, c.enqueue([]byte("overflow")))
	assert.Equal(t, int64(sendBufferSize), c.MessagesSent())
}
