package engine

import "errors"

// Failure classes, so callers can decide whether to retry, re-quote or
// surface the condition. None of these should crash the process; they
// are expected business outcomes.
var (
	// ErrValidation marks bad creation input, rejected before any
	// state is recorded.
	ErrValidation = errors.New("invalid order parameters")

	// ErrMarketData marks a tick that cannot be evaluated because the
	// price or liquidity data is missing; the order is skipped for the
	// cycle rather than guessed at.
	ErrMarketData = errors.New("market data unavailable")

	// ErrExecution marks a simulated execution that could not proceed.
	ErrExecution = errors.New("execution failed")

	// ErrNotFound marks an unknown order id.
	ErrNotFound = errors.New("order not found")
)
