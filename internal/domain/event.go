package domain

import "time"

// PriceUpdate is the event published on the price update channels whenever a
// new consolidated price is computed. The broadcaster fans it out to
// subscribed connections.
type PriceUpdate struct {
	Symbol    string            `json:"symbol"`
	Data      ConsolidatedPrice `json:"data"`
	Timestamp time.Time         `json:"timestamp"`
}
