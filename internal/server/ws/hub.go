// Package ws implements the WebSocket fan-out surface: the subscription
// registry, the subscriber protocol, and the hub that bridges consolidated
// price updates from the signal bus to interested connections.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/marketfeed/marketfeed/internal/domain"
)

const (
	// writeWait is the maximum time to wait for a write to complete.
	writeWait = 10 * time.Second

	// pongWait is the maximum time to wait for a pong from the client.
	pongWait = 60 * time.Second

	// pingPeriod sends pings at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize is the maximum size of an incoming message.
	maxMessageSize = 4096
)

// upgrader configures the WebSocket upgrade parameters.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins. In production, restrict this to known origins.
		return true
	},
}

// Hub owns the subscription registry and fans consolidated price updates out
// to subscribed WebSocket connections. Updates arrive over the signal bus,
// so the hub works identically whether the consolidator runs in this process
// or another one.
type Hub struct {
	registry *Registry
	bus      domain.SignalBus
	symbols  []string // default-available symbols advertised on connect
	logger   *slog.Logger
}

// NewHub creates a Hub reading price updates from the given bus.
func NewHub(bus domain.SignalBus, symbols []string, logger *slog.Logger) *Hub {
	return &Hub{
		registry: NewRegistry(),
		bus:      bus,
		symbols:  symbols,
		logger:   logger.With(slog.String("component", "ws_hub")),
	}
}

// Registry exposes the subscription registry for stats reporting.
func (h *Hub) Registry() *Registry { return h.registry }

// Run subscribes to the catch-all price update channel and fans every update
// out to its symbol's subscribers. It blocks until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) error {
	ch, err := h.bus.Subscribe(ctx, domain.PriceUpdatesChannel)
	if err != nil {
		return err
	}
	h.logger.Info("hub started")
	defer h.logger.Info("hub stopped")

	for {
		select {
		case <-ctx.Done():
			for _, c := range h.registry.Connections() {
				h.disconnect(c)
			}
			return ctx.Err()
		case payload, ok := <-ch:
			if !ok {
				return domain.ErrClosed
			}
			var update domain.PriceUpdate
			if err := json.Unmarshal(payload, &update); err != nil {
				h.logger.Warn("dropping malformed price update",
					slog.String("error", err.Error()),
				)
				continue
			}
			h.BroadcastPriceUpdate(update)
		}
	}
}

// BroadcastPriceUpdate delivers a price update to every connection currently
// subscribed to its symbol. The subscriber set is snapshotted up front, so a
// connection failing or disconnecting mid-broadcast never disturbs delivery
// to the rest.
func (h *Hub) BroadcastPriceUpdate(update domain.PriceUpdate) {
	env := envelope{
		Type:      typePriceUpdate,
		Symbol:    update.Symbol,
		Data:      update.Data,
		Timestamp: update.Timestamp,
	}
	data, err := json.Marshal(env)
	if err != nil {
		h.logger.Error("marshal price update", slog.String("error", err.Error()))
		return
	}

	for _, c := range h.registry.Subscribers(update.Symbol) {
		if !c.enqueue(data) {
			h.disconnect(c)
		}
	}
}

// BroadcastAll delivers an envelope to every live connection with the same
// snapshot semantics as BroadcastPriceUpdate.
func (h *Hub) BroadcastAll(env envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		h.logger.Error("marshal broadcast", slog.String("error", err.Error()))
		return
	}

	for _, c := range h.registry.Connections() {
		if !c.enqueue(data) {
			h.disconnect(c)
		}
	}
}

// HandleWS upgrades an HTTP request to a WebSocket connection and registers
// it with the hub.
// GET /ws/market-data
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, nil)
}

// HandleSymbolWS is HandleWS with an automatic initial subscription taken
// from the request path.
// GET /ws/symbol/{symbol...}
func (h *Hub) HandleSymbolWS(w http.ResponseWriter, r *http.Request) {
	symbol := r.PathValue("symbol")
	if symbol == "" {
		http.Error(w, `{"error":"symbol required"}`, http.StatusBadRequest)
		return
	}
	h.serve(w, r, []string{symbol})
}

func (h *Hub) serve(w http.ResponseWriter, r *http.Request, initial []string) {
	wsConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := newConn(wsConn)
	h.registry.Add(c)
	h.logger.Info("client connected",
		logConn(c),
		slog.Int("total_connections", h.registry.Stats().TotalConnections),
	)

	h.sendTo(c, envelope{
		Type:             typeConnectionEstablished,
		Message:          "Connected to Market Data Service",
		AvailableSymbols: h.symbols,
		Timestamp:        time.Now().UTC(),
	})

	for _, symbol := range initial {
		h.registry.Subscribe(c, symbol)
		h.sendTo(c, envelope{
			Type:      typeSubscriptionConfirmed,
			Symbol:    symbol,
			Message:   "Subscribed to " + symbol,
			Timestamp: time.Now().UTC(),
		})
	}

	go c.writePump()
	go h.readPump(c)
}

// disconnect removes the connection from the registry and tears the socket
// down. Safe to call more than once for the same connection.
func (h *Hub) disconnect(c *Conn) {
	h.registry.Remove(c)
	c.close()
	if c.ws != nil {
		_ = c.ws.Close()
	}
}

// sendTo queues an envelope for a single connection, scheduling a disconnect
// when the connection is already dead.
func (h *Hub) sendTo(c *Conn, env envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		h.logger.Error("marshal envelope", slog.String("error", err.Error()))
		return
	}
	if !c.enqueue(data) {
		h.disconnect(c)
	}
}

// readPump reads frames from the connection and runs each one through the
// protocol state machine, echoing the response only to this connection.
func (h *Hub) readPump(c *Conn) {
	defer func() {
		h.disconnect(c)
		h.logger.Info("client disconnected",
			logConn(c),
			slog.Int("total_connections", h.registry.Stats().TotalConnections),
		)
	}()

	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("unexpected close error",
					logConn(c),
					slog.String("error", err.Error()),
				)
			}
			return
		}
		h.sendTo(c, h.handleMessage(c, raw))
	}
}

// writePump pumps queued messages to the WebSocket connection and sends
// periodic ping frames for keepalive. It exits when the connection is
// closed.
func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		if c.ws != nil {
			_ = c.ws.Close()
		}
	}()

	for {
		select {
		case <-c.done:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			c.ws.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case message := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func logConn(c *Conn) slog.Attr    { return slog.String("conn_id", c.ID()) }
func logSymbol(s string) slog.Attr { return slog.String("symbol", s) }
