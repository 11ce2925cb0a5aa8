package domain

import "context"

// ExchangeClient is the capability an exchange adapter exposes to the
// collector: given a symbol, return a quote (or the top of the order book)
// or fail. Implementations are safe for concurrent use.
type ExchangeClient interface {
	// Name returns the lower-case exchange identifier, e.g. "binance".
	Name() string

	// FetchQuote returns the current ticker for a symbol in "BASE/QUOTE"
	// notation, e.g. "BTC/USDT".
	FetchQuote(ctx context.Context, symbol string) (Quote, error)

	// FetchOrderBook returns up to depth levels per side.
	FetchOrderBook(ctx context.Context, symbol string, depth int) (OrderBook, error)

	// FetchCandles returns up to limit historical OHLCV bars, oldest first.
	// interval is one of "1m", "5m", "15m", "1h", "4h", "1d"; an
	// unsupported interval fails with ErrUnknownInterval.
	FetchCandles(ctx context.Context, symbol, interval string, limit int) ([]Candle, error)

	// ListMarkets returns the symbols the exchange supports. It doubles as
	// the startup connectivity probe.
	ListMarkets(ctx context.Context) ([]string, error)

	// Close releases any connections held by the client.
	Close() error
}
