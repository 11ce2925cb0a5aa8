package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/marketfeed/marketfeed/internal/domain"
)

// CandleHandler serves historical OHLCV bars fetched from a single exchange
// on demand.
type CandleHandler struct {
	exchanges []domain.ExchangeClient
	logger    *slog.Logger
}

// NewCandleHandler creates a CandleHandler over the active exchange set.
func NewCandleHandler(exchanges []domain.ExchangeClient, logger *slog.Logger) *CandleHandler {
	return &CandleHandler{
		exchanges: exchanges,
		logger:    logger.With(slog.String("handler", "candles")),
	}
}

// GetCandles returns historical OHLCV bars for a symbol on one exchange,
// oldest first.
// GET /api/candles/{symbol...}?exchange=binance&interval=1h&limit=100
func (h *CandleHandler) GetCandles(w http.ResponseWriter, r *http.Request) {
	symbol := symbolParam(r)
	name := strings.ToLower(r.URL.Query().Get("exchange"))
	if name == "" {
		writeError(w, http.StatusBadRequest, "exchange parameter required")
		return
	}
	interval := r.URL.Query().Get("interval")
	if interval == "" {
		interval = "1h"
	}
	limit := queryInt(r, "limit", 100)

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

	candles, err := client.FetchCandles(r.Context(), symbol, interval, limit)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownInterval) {
			writeError(w, http.StatusBadRequest, "unsupported interval "+interval)
			return
		}
		h.logger.Error("fetch candles",
			slog.String("symbol", symbol),
			slog.String("exchange", name),
			slog.String("interval", interval),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadGateway, "failed to fetch candles from "+name)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"symbol":   symbol,
		"exchange": name,
		"interval": interval,
		"candles":  candles,
		"count":    len(candles),
	})
}
