package ports

import (
	"context"

	"cryptoScalpBot/internal/domain"
)

// TradeRepository defines the interface for the trade journal: every
// reconciled fill is appended, and same-day queries feed diagnostics and
// restart-time risk seeding.
type TradeRepository interface {
	// CreateTrade saves a new trade record and returns its assigned ID.
	CreateTrade(ctx context.Context, trade *domain.Trade) (int64, error)
	// FindTodayByMarket retrieves today's trades for a market in chronological order.
	FindTodayByMarket(ctx context.Context, market string) ([]*domain.Trade, error)
	// SumTodayLossByMarket sums the absolute value of today's negative
	// realized PnL for a market.
	SumTodayLossByMarket(ctx context.Context, market string) (float64, error)
}
