package domain

import "time"

// Quote is one exchange's snapshot of a symbol's trading state at one
// instant. Quotes are immutable once stored; a newer poll for the same
// (exchange, symbol) pair supersedes the previous value entirely.
type Quote struct {
	Exchange       string  `json:"exchange"`
	Symbol         string  `json:"symbol"`
	Price          float64 `json:"price"`
	Bid            float64 `json:"bid"`
	Ask            float64 `json:"ask"`
	Volume24h      float64 `json:"volume_24h"`
	QuoteVolume24h float64 `json:"volume_quote_24h"`
	High24h        float64 `json:"high_24h"`
	Low24h         float64 `json:"low_24h"`
	Change24h      float64 `json:"change_24h"`
	ChangePct24h   float64 `json:"change_24h_percent"`
	// Timestamp is when the collector observed the quote; ExchangeTime is
	// the source timestamp reported by the exchange, if any.
	Timestamp    time.Time `json:"timestamp"`
	ExchangeTime time.Time `json:"exchange_timestamp,omitzero"`
}

// ConsolidatedPrice is the cross-exchange best estimate for a symbol,
// synthesized from the latest per-exchange quotes.
//
// Price is the unweighted arithmetic mean of the contributing last prices.
// BestBid is the maximum bid and BestAsk the minimum ask across contributors;
// quotes reporting a zero bid or ask do not contribute to that side. When no
// contributing quote reported an ask, BestAsk and Spread are -1, never a
// false zero.
type ConsolidatedPrice struct {
	Symbol        string    `json:"symbol"`
	Price         float64   `json:"price"`
	BestBid       float64   `json:"best_bid"`
	BestAsk       float64   `json:"best_ask"`
	Spread        float64   `json:"spread"`
	Volume24h     float64   `json:"volume_24h"`
	ExchangeCount int       `json:"exchange_count"`
	Exchanges     []string  `json:"exchanges"`
	Timestamp     time.Time `json:"timestamp"`
}

// UnknownAsk is the sentinel carried in ConsolidatedPrice.BestAsk and Spread
// when none of the contributing quotes reported an ask.
const UnknownAsk = -1

// MarketSnapshot is the detailed per-exchange view of a symbol collected on
// the slower market-data cycle: the full quote plus the top of the order
// book and the quoted spread.
type MarketSnapshot struct {
	Quote
	BidAskSpread float64   `json:"spread"`
	OrderBook    OrderBook `json:"order_book"`
}
