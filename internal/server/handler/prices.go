package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/marketfeed/marketfeed/internal/domain"
)

// PriceHandler serves the cached consolidated prices, per-symbol history,
// and detailed market snapshots.
type PriceHandler struct {
	store  domain.QuoteStore
	logger *slog.Logger
}

// NewPriceHandler creates a PriceHandler reading from the given store.
func NewPriceHandler(store domain.QuoteStore, logger *slog.Logger) *PriceHandler {
	return &PriceHandler{
		store:  store,
		logger: logger.With(slog.String("handler", "prices")),
	}
}

// GetPrice returns the current consolidated price for one symbol.
// GET /api/price/{symbol...}
func (h *PriceHandler) GetPrice(w http.ResponseWriter, r *http.Request) {
	symbol := symbolParam(r)

	price, err := h.store.GetConsolidated(r.Context(), symbol)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "price data not found for "+symbol)
			return
		}
		h.logger.Error("get price", slog.String("symbol", symbol), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"symbol": symbol,
		"data":   price,
	})
}

// ListPrices returns every cached consolidated price, optionally filtered by
// a comma-separated symbols parameter.
// GET /api/prices?symbols=BTC/USDT,ETH/USDT
func (h *PriceHandler) ListPrices(w http.ResponseWriter, r *http.Request) {
	prices := make(map[string]domain.ConsolidatedPrice)

	if raw := r.URL.Query().Get("symbols"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			symbol := strings.ToUpper(strings.TrimSpace(s))
			if symbol == "" {
				continue
			}
			price, err := h.store.GetConsolidated(r.Context(), symbol)
			if err != nil {
				continue
			}
			prices[symbol] = price
		}
	} else {
		all, err := h.store.AllConsolidated(r.Context())
		if err != nil {
			h.logger.Error("list prices", slog.String("error", err.Error()))
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		prices = all
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"prices":    prices,
		"count":     len(prices),
		"timestamp": time.Now().UTC(),
	})
}

// GetHistory returns the most recent consolidated price snapshots for a
// symbol, newest first.
// GET /api/history/{symbol...}?limit=20
func (h *PriceHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	symbol := symbolParam(r)
	limit := queryInt(r, "limit", 20)

	history, err := h.store.History(r.Context(), symbol, limit)
	if err != nil {
		h.logger.Error("get history", slog.String("symbol", symbol), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"symbol":  symbol,
		"history": history,
		"count":   len(history),
	})
}

// GetMarketData returns the detailed market snapshot for a symbol on one
// exchange.
// GET /api/market-data/{symbol...}?exchange=binance
func (h *PriceHandler) GetMarketData(w http.ResponseWriter, r *http.Request) {
	symbol := symbolParam(r)
	exchange := strings.ToLower(r.URL.Query().Get("exchange"))
	if exchange == "" {
		writeError(w, http.StatusBadRequest, "exchange parameter required")
		return
	}

	snap, err := h.store.GetSnapshot(r.Context(), exchange, symbol)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "market data not found for "+symbol+" on "+exchange)
			return
		}
		h.logger.Error("get market data",
			slog.String("symbol", symbol),
			slog.String("exchange", exchange),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"symbol":   symbol,
		"exchange": exchange,
		"data":     snap,
	})
}
