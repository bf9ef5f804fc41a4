package domain

import (
	"errors"
	"fmt"
)

var (
	ErrCacheUnavailable  = errors.New("rate unavailable")
	ErrUnknownInstrument = errors.New("unknown instrument")
	ErrInvalidRequest    = errors.New("invalid request")
	ErrInvalidPrice      = errors.New("invalid price")
)

// UpstreamFetchError wraps a failed ticker fetch: network error, timeout,
// bad status or malformed body.
type UpstreamFetchError struct {
	Market string
	Err    error
}

func (e *UpstreamFetchError) Error() string {
	return fmt.Sprintf("fetch %s ticker: %v", e.Market, e.Err)
}

func (e *UpstreamFetchError) Unwrap() error {
	return e.Err
}
