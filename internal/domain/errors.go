package domain

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrNoExchanges     = errors.New("no exchanges available")
	ErrUnknownSymbol   = errors.New("unknown symbol")
	ErrUnknownInterval = errors.New("unknown interval")
	ErrClosed          = errors.New("closed")
)
