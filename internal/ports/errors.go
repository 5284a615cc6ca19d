package ports

import "errors"

// Standard application-level errors.
// Adapters and core components wrap underlying errors with these sentinels
// so callers can branch on errors.Is.
var (
	// General Errors
	ErrUnknown            = errors.New("unknown error occurred")
	ErrConfigurationError = errors.New("invalid or missing configuration")

	// Evaluation Errors
	ErrInvalidMarketData   = errors.New("market data is structurally invalid")
	ErrEvaluationFailed    = errors.New("strategy evaluation failed")
	ErrUnknownStrategy     = errors.New("no strategy registered under that name")
	ErrPositionExists      = errors.New("position already exists for market")
	ErrPositionNotFound    = errors.New("no position found for market")
	ErrQuantityExceedsHeld = errors.New("sell quantity exceeds position quantity")

	// Exchange Specific Errors
	ErrExchangeUnavailable  = errors.New("exchange API is unavailable")
	ErrConnectionFailed     = errors.New("failed to connect to the exchange")
	ErrRateLimited          = errors.New("API rate limit exceeded")
	ErrAuthenticationFailed = errors.New("exchange authentication failed (check API keys)")
	ErrInsufficientFunds    = errors.New("insufficient funds for operation")
	ErrOrderPlacementFailed = errors.New("failed to place order")

	// Database Specific Errors
	ErrDBConnection = errors.New("database connection error")
	ErrQueryFailed  = errors.New("database query failed")
)
