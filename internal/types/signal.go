package types

import "fmt"

// SignalCode is the discrete trading signal emitted per candle.
type SignalCode int

const (
	StrongSell SignalCode = -2
	Sell       SignalCode = -1
	Hold       SignalCode = 0
	Buy        SignalCode = 1
	StrongBuy  SignalCode = 2
)

// String is a display label only; control flow compares codes.
func (s SignalCode) String() string {
	switch s {
	case StrongSell:
		return "Strong Sell"
	case Sell:
		return "Sell"
	case Hold:
		return "Hold"
	case Buy:
		return "Buy"
	case StrongBuy:
		return "Strong Buy"
	}
	return fmt.Sprintf("SignalCode(%d)", int(s))
}

// Tradable reports whether the code opens a position in the simulator.
func (s SignalCode) Tradable() bool { return s == StrongBuy || s == StrongSell }

// Side maps a tradable code to the position side it opens.
func (s SignalCode) Side() (Side, bool) {
	switch s {
	case StrongBuy:
		return Long, true
	case StrongSell:
		return Short, true
	}
	return 0, false
}
