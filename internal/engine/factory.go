package engine

import "signal-backtester/internal/interfaces"

// New returns a Backtester bound to cfg, or an error wrapping
// types.ErrInvalidConfiguration.
func New(cfg Config) (interfaces.Backtester, error) {
	eng, err := newEngine(cfg)
	if err != nil {
		return nil, err
	}
	return eng, nil
}
