package domain

// PriceLevel is a single price+size entry in an order book.
type PriceLevel struct {
	Price float64 `json:"price"`
	Size  float64 `json:"size"`
}

// OrderBook is the top of an exchange's order book for a symbol, bids sorted
// best (highest) first and asks best (lowest) first.
type OrderBook struct {
	Exchange string       `json:"exchange"`
	Symbol   string       `json:"symbol"`
	Bids     []PriceLevel `json:"bids"`
	Asks     []PriceLevel `json:"asks"`
}
