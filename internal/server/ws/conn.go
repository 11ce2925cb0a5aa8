package ws

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// sendBufferSize is the channel buffer for outgoing messages per connection.
const sendBufferSize = 256

// Conn is one live subscriber connection. Its subscription set lives in the
// Registry; the Conn itself only carries identity, the outbound queue, and
// delivery counters.
type Conn struct {
	id          string
	ws          *websocket.Conn
	send        chan []byte
	done        chan struct{}
	closeOnce   sync.Once
	connectedAt time.Time
	sent        atomic.Int64
}

// newConn wraps an accepted WebSocket connection. ws may be nil in tests
// that exercise only registry and protocol behavior.
func newConn(ws *websocket.Conn) *Conn {
	return &Conn{
		id:          uuid.NewString(),
		ws:          ws,
		send:        make(chan []byte, sendBufferSize),
		done:        make(chan struct{}),
		connectedAt: time.Now().UTC(),
	}
}

// ID returns the connection's unique identifier.
func (c *Conn) ID() string { return c.id }

// MessagesSent returns how many messages have been queued to this connection.
func (c *Conn) MessagesSent() int64 { return c.sent.Load() }

// close marks the connection dead and wakes its write pump. The send channel
// itself is never closed, so concurrent enqueuers cannot panic.
func (c *Conn) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// enqueue appends a marshaled message to the outbound queue. It reports
// false when the connection is closed; a full buffer drops the message but
// keeps the connection (the transport bounds slow-subscriber growth).
func (c *Conn) enqueue(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- data:
		c.sent.Add(1)
		return true
	default:
		return true // dropped for a slow consumer
	}
}
