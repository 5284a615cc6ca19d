package ports

import (
	"context"

	"cryptoScalpBot/internal/domain"
)

// Strategy defines the interface for per-tick trading strategies.
// Evaluate is a pure read-only decision: state mutates only through
// UpdatePositionAfterTrade once the external order layer reports a fill.
type Strategy interface {
	// Name returns the registered strategy kind (e.g., "stop_loss_averaging").
	Name() string

	// RequiredHistoryLength returns the minimum number of history samples
	// needed before the strategy can evaluate.
	RequiredHistoryLength() int

	// Evaluate consumes a market snapshot and emits at most one signal.
	// A nil signal with a nil error means "no decision"; malformed data or
	// unexpected failures return a wrapped error.
	Evaluate(ctx context.Context, data *domain.MarketData) (*domain.Signal, error)

	// UpdatePositionAfterTrade reconciles internal state once a signal has
	// actually been filled by the order layer, and returns the recorded
	// trade, including realized PnL and the stop-loss flag for sells.
	UpdatePositionAfterTrade(ctx context.Context, market string, action domain.SignalAction, price, quantity float64, orderRef string) (*domain.Trade, error)

	// Info returns a diagnostic snapshot: thresholds, suspension state,
	// position count and risk status.
	Info() map[string]interface{}
}
