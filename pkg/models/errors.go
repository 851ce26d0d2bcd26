package models

import "errors"

// Error taxonomy used by every package. Callers match with errors.Is; the
// wrapping message names the violated invariant.
var (
	// ErrInvalidArgument reports a parameter outside its allowed range
	// (lookback, thresholds, decimal places).
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrTypeMismatch reports a parameter of the wrong kind, such as a
	// fractional lookback or a malformed date string.
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrInvalidValue reports well-typed but semantically invalid input,
	// e.g. end date not after start date or a hedge vector of wrong length.
	ErrInvalidValue = errors.New("invalid value")

	// ErrDataUnavailable reports a market-data provider failure.
	ErrDataUnavailable = errors.New("data unavailable")

	// ErrUndefinedResult reports a metric that has no finite value for
	// the given input, e.g. Sharpe of a zero-volatility return series.
	ErrUndefinedResult = errors.New("undefined result")
)
