package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/marketfeed/marketfeed/internal/domain"
	"github.com/marketfeed/marketfeed/internal/server/ws"
)

// StatusHandler reports the service's runtime state: the active exchange
// set, the configured symbols, per-exchange market lists, and WebSocket
// subscription statistics.
type StatusHandler struct {
	exchanges []domain.ExchangeClient
	symbols   []string
	registry  *ws.Registry
	store     domain.QuoteStore
	cacheTTL  time.Duration
	logger    *slog.Logger
}

// NewStatusHandler creates a StatusHandler. cacheTTL bounds how long market
// lists are served from the generic cache before being refetched.
func NewStatusHandler(exchanges []domain.ExchangeClient, symbols []string, registry *ws.Registry, store domain.QuoteStore, cacheTTL time.Duration, logger *slog.Logger) *StatusHandler {
	return &StatusHandler{
		exchanges: exchanges,
		symbols:   symbols,
		registry:  registry,
		store:     store,
		cacheTTL:  cacheTTL,
		logger:    logger.With(slog.String("handler", "status")),
	}
}

// ListExchanges returns the active exchanges and the configured symbols.
// GET /api/exchanges
func (h *StatusHandler) ListExchanges(w http.ResponseWriter, r *http.Request) {
	names := make([]string, len(h.exchanges))
	for i, ex := range h.exchanges {
		names[i] = ex.Name()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"exchanges": names,
		"symbols":   h.symbols,
	})
}

// ListMarkets returns the symbols one exchange supports. Market lists change
// rarely, so results are memoized in the generic cache.
// GET /api/markets/{exchange}
func (h *StatusHandler) ListMarkets(w http.ResponseWriter, r *http.Request) {
	name := strings.ToLower(r.PathValue("exchange"))

	var client domain.ExchangeClient
	for _, ex := range h.exchanges {
		if ex.Name() == name {
			client = ex
			break
		}
	}
	if client == nil {
		writeError(w, http.StatusNotFound, "unknown exchange "+name)
		return
	}

	cacheKey := "markets:" + name
	if data, err := h.store.GetCache(r.Context(), cacheKey); err == nil {
		var markets []string
		if json.Unmarshal(data, &markets) == nil {
			writeJSON(w, http.StatusOK, map[string]any{
				"exchange": name,
				"markets":  markets,
				"count":    len(markets),
			})
			return
		}
	} else if !errors.Is(err, domain.ErrNotFound) {
		h.logger.Warn("market list cache read failed",
			slog.String("exchange", name),
			slog.String("error", err.Error()),
		)
	}

	markets, err := client.ListMarkets(r.Context())
	if err != nil {
		h.logger.Error("list markets",
			slog.String("exchange", name),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadGateway, "failed to fetch markets from "+name)
		return
	}

	if data, err := json.Marshal(markets); err == nil {
		if err := h.store.SetCache(r.Context(), cacheKey, data, h.cacheTTL); err != nil {
			h.logger.Warn("market list cache write failed",
				slog.String("exchange", name),
				slog.String("error", err.Error()),
			)
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"exchange": name,
		"markets":  markets,
		"count":    len(markets),
	})
}

// WSStats returns the current WebSocket connection and subscription counts.
// GET /api/ws/stats
func (h *StatusHandler) WSStats(w http.ResponseWriter, r *http.Request) {
	stats := h.registry.Stats()
	writeJSON(w, http.StatusOK, map[string]any{
		"stats":     stats,
		"timestamp": time.Now().UTC(),
	})
}
