package domain

import "time"

// Candle is one OHLCV bar for a symbol on a single exchange. Timestamp marks
// the bar's open time.
type Candle struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}
