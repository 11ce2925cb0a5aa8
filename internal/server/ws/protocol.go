package ws

import (
	"encoding/json"
	"time"
)

// Inbound and outbound message type discriminators. The field names below
// are contractual; clients depend on them.
const (
	typeSubscribe        = "subscribe"
	typeUnsubscribe      = "unsubscribe"
	typePing             = "ping"
	typeGetSubscriptions = "get_subscriptions"

	typeConnectionEstablished   = "connection_established"
	typeSubscriptionConfirmed   = "subscription_confirmed"
	typeUnsubscriptionConfirmed = "unsubscription_confirmed"
	typePong                    = "pong"
	typeSubscriptions           = "subscriptions"
	typePriceUpdate             = "price_update"
	typeError                   = "error"
)

// inboundMessage is the envelope subscribers send.
type inboundMessage struct {
	Type   string `json:"type"`
	Symbol string `json:"symbol"`
}

// envelope is the outbound message format.
type envelope struct {
	Type             string    `json:"type"`
	Symbol           string    `json:"symbol,omitempty"`
	Data             any       `json:"data,omitempty"`
	Message          string    `json:"message,omitempty"`
	Subscriptions    []string  `json:"subscriptions,omitempty"`
	AvailableSymbols []string  `json:"available_symbols,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
}

func errorEnvelope(msg string) envelope {
	return envelope{
		Type:      typeError,
		Message:   msg,
		Timestamp: time.Now().UTC(),
	}
}

// handleMessage is the per-message protocol state machine. Every inbound
// frame produces exactly one response to the requesting connection; a
// malformed frame yields an error envelope, never a teardown.
func (h *Hub) handleMessage(c *Conn, raw []byte) envelope {
	var msg inboundMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return errorEnvelope("Invalid JSON format")
	}

	switch msg.Type {
	case typeSubscribe:
		if msg.Symbol == "" {
			return errorEnvelope("Symbol required for subscription")
		}
		h.registry.Subscribe(c, msg.Symbol)
		h.logger.Debug("subscribed",
			logConn(c), logSymbol(msg.Symbol),
		)
		return envelope{
			Type:      typeSubscriptionConfirmed,
			Symbol:    msg.Symbol,
			Message:   "Subscribed to " + msg.Symbol,
			Timestamp: time.Now().UTC(),
		}

	case typeUnsubscribe:
		if msg.Symbol == "" {
			return errorEnvelope("Symbol required for unsubscription")
		}
		h.registry.Unsubscribe(c, msg.Symbol)
		h.logger.Debug("unsubscribed",
			logConn(c), logSymbol(msg.Symbol),
		)
		return envelope{
			Type:      typeUnsubscriptionConfirmed,
			Symbol:    msg.Symbol,
			Message:   "Unsubscribed from " + msg.Symbol,
			Timestamp: time.Now().UTC(),
		}

	case typePing:
		return envelope{
			Type:      typePong,
			Timestamp: time.Now().UTC(),
		}

	case typeGetSubscriptions:
		return envelope{
			Type:          typeSubscriptions,
			Subscriptions: h.registry.Subscriptions(c),
			Timestamp:     time.Now().UTC(),
		}

	default:
		return errorEnvelope("Unknown message type: " + msg.Type)
	}
}
