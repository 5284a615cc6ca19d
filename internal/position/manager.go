package position

import (
	"fmt"
	"time"

	"cryptoScalpBot/internal/domain"
	"cryptoScalpBot/internal/ports"
)

// dustThreshold is the residual quantity below which a position is treated as
// fully liquidated after a partial sell.
const dustThreshold = 0.00001

// PnL is a fee-inclusive profit/loss breakdown for a position at a price.
type PnL struct {
	Net          float64 // CurrentValue - TotalCost - BuyFees - SellFees
	Rate         float64 // Net / (TotalCost + BuyFees) * 100
	CurrentValue float64
	BuyFees      float64
	SellFees     float64
}

// Compute returns the bilateral-fee PnL for a position at currentPrice:
// fees are charged on the buy leg (against total cost) and on the projected
// sell leg (against current value).
func Compute(pos *domain.Position, currentPrice, feeRate float64) PnL {
	currentValue := currentPrice * pos.TotalQuantity
	buyFees := pos.TotalCost * feeRate
	sellFees := currentValue * feeRate
	net := currentValue - pos.TotalCost - buyFees - sellFees

	var rate float64
	if basis := pos.TotalCost + buyFees; basis > 0 {
		rate = net / basis * 100
	}

	return PnL{
		Net:          net,
		Rate:         rate,
		CurrentValue: currentValue,
		BuyFees:      buyFees,
		SellFees:     sellFees,
	}
}

// Manager owns the mapping from market identifier to its open averaged
// position. All aggregate updates recompute from the full entry list.
type Manager struct {
	feeRate   float64
	positions map[string]*domain.Position
}

// New creates a position manager. feeRate is the per-leg trading fee as a
// fraction (e.g., 0.0005 for 0.05%).
func New(feeRate float64) (*Manager, error) {
	if feeRate < 0 || feeRate >= 1 {
		return nil, fmt.Errorf("%w: fee rate must be within [0, 1)", ports.ErrConfigurationError)
	}
	return &Manager{
		feeRate:   feeRate,
		positions: make(map[string]*domain.Position),
	}, nil
}

func validateFill(market string, price, quantity float64) error {
	if market == "" {
		return fmt.Errorf("market must be a non-empty string")
	}
	if price <= 0 {
		return fmt.Errorf("price must be positive, got %f", price)
	}
	if quantity <= 0 {
		return fmt.Errorf("quantity must be positive, got %f", quantity)
	}
	return nil
}

// AddInitialPosition creates a new position with a single initial entry.
// Fails if a position already exists for the market; callers must check
// HasPosition first.
func (m *Manager) AddInitialPosition(market string, price, quantity float64) (*domain.Position, error) {
	if err := validateFill(market, price, quantity); err != nil {
		return nil, err
	}
	if _, ok := m.positions[market]; ok {
		return nil, fmt.Errorf("%w: %s", ports.ErrPositionExists, market)
	}

	now := time.Now().UTC()
	pos := &domain.Position{
		Market: market,
		Entries: []domain.PositionEntry{{
			Price:     price,
			Quantity:  quantity,
			Cost:      price * quantity,
			Kind:      domain.EntryInitial,
			Timestamp: now,
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}
	pos.Recompute()

	m.positions[market] = pos
	return pos, nil
}

// AddAveragingPosition appends an averaging entry to an existing position and
// recomputes the aggregates over all entries.
func (m *Manager) AddAveragingPosition(market string, price, quantity float64) (*domain.Position, error) {
	if err := validateFill(market, price, quantity); err != nil {
		return nil, err
	}
	pos, ok := m.positions[market]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ports.ErrPositionNotFound, market)
	}

	pos.Entries = append(pos.Entries, domain.PositionEntry{
		Price:     price,
		Quantity:  quantity,
		Cost:      price * quantity,
		Kind:      domain.EntryAveraging,
		Timestamp: time.Now().UTC(),
	})
	pos.Recompute()
	pos.UpdatedAt = time.Now().UTC()

	return pos, nil
}

// PartialSell reduces the position by sellQuantity, scaling every entry's
// quantity and cost by the remaining fraction so the entry list stays the
// source of truth for Recompute. A residual below the dust threshold
// liquidates the position entirely.
func (m *Manager) PartialSell(market string, sellQuantity, sellPrice float64) (*domain.Position, error) {
	if err := validateFill(market, sellPrice, sellQuantity); err != nil {
		return nil, err
	}
	pos, ok := m.positions[market]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ports.ErrPositionNotFound, market)
	}
	if sellQuantity > pos.TotalQuantity {
		return nil, fmt.Errorf("%w: %f > %f", ports.ErrQuantityExceedsHeld, sellQuantity, pos.TotalQuantity)
	}

	remaining := pos.TotalQuantity - sellQuantity
	if remaining < dustThreshold {
		delete(m.positions, market)
		pos.Entries = nil
		pos.TotalQuantity = 0
		pos.TotalCost = 0
		pos.AveragePrice = 0
		pos.UpdatedAt = time.Now().UTC()
		return pos, nil
	}

	// Scaling each entry pro-rata removes cost at the average price and
	// keeps the aggregates consistent with the entry list.
	fraction := remaining / pos.TotalQuantity
	for i := range pos.Entries {
		pos.Entries[i].Quantity *= fraction
		pos.Entries[i].Cost *= fraction
	}
	pos.Recompute()
	pos.UpdatedAt = time.Now().UTC()

	return pos, nil
}

// ClosePosition removes the position entirely. Returns false if none existed.
func (m *Manager) ClosePosition(market string) bool {
	if _, ok := m.positions[market]; !ok {
		return false
	}
	delete(m.positions, market)
	return true
}

// GetPosition returns the open position for a market, or nil.
func (m *Manager) GetPosition(market string) *domain.Position {
	return m.positions[market]
}

// HasPosition reports whether a position is open for the market.
func (m *Manager) HasPosition(market string) bool {
	_, ok := m.positions[market]
	return ok
}

// PositionCount returns the number of open positions.
func (m *Manager) PositionCount() int {
	return len(m.positions)
}

// PositionPnL returns the fee-inclusive PnL of the market's position at
// currentPrice, for external reporting.
func (m *Manager) PositionPnL(market string, currentPrice float64) (PnL, error) {
	pos, ok := m.positions[market]
	if !ok {
		return PnL{}, fmt.Errorf("%w: %s", ports.ErrPositionNotFound, market)
	}
	if currentPrice <= 0 {
		return PnL{}, fmt.Errorf("current price must be positive, got %f", currentPrice)
	}
	return Compute(pos, currentPrice, m.feeRate), nil
}
