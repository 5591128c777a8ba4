package types

import (
	"errors"
	"fmt"
)

var (
	ErrInsufficientHistory  = errors.New("insufficient history")
	ErrMalformedCandle      = errors.New("malformed candle")
	ErrInvalidConfiguration = errors.New("invalid configuration")
)

// MalformedCandleError reports one offending candle.
type MalformedCandleError struct {
	Index  int
	Reason string
}

func (e *MalformedCandleError) Error() string {
	return fmt.Sprintf("malformed candle at index %d: %s", e.Index, e.Reason)
}

func (e *MalformedCandleError) Unwrap() error { return ErrMalformedCandle }
