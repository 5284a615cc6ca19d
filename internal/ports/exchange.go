package ports

import (
	"context"
	"time"

	"cryptoScalpBot/internal/domain"
)

// OrderResponse represents the essential details returned after placing an order.
type OrderResponse struct {
	OrderID     int64        // Exchange's order ID
	Market      string       // Market the order was placed on
	AvgPrice    float64      // Average filled price (may be 0 before fill data is available)
	ExecutedQty float64      // Quantity filled
	Status      string       // Order status (e.g., NEW, FILLED)
	Side        domain.SignalAction
	Timestamp   time.Time    // Time the order response was generated
}

// ExchangeClient defines the interface for the market-data feed and order
// execution layer. The decision engine never touches this directly; the app
// service uses it to build MarketData snapshots and to execute signals.
type ExchangeClient interface {
	// GetMarketData builds a per-tick snapshot: the current ticker plus a
	// rolling window of the most recent windowSize price/volume samples.
	GetMarketData(ctx context.Context, market string, windowSize int) (*domain.MarketData, error)

	// GetAccountBalance retrieves the available balance for a quote asset (e.g., "USDT").
	GetAccountBalance(ctx context.Context, asset string) (float64, error)

	// PlaceMarketOrder places a market order and returns the fill details.
	PlaceMarketOrder(ctx context.Context, market string, side domain.SignalAction, quantity float64) (*OrderResponse, error)

	// Ping checks connectivity to the exchange API.
	Ping(ctx context.Context) error
}
