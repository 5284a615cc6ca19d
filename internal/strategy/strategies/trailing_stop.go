package strategies

import (
	"fmt"

	"cryptoScalpBot/internal/ports"
)

// TrailingStopManager ratchets a high-water price once a position's profit
// reaches the activation level, and triggers a full exit when the price falls
// a configured percentage below that high.
type TrailingStopManager struct {
	activationProfit float64 // PnL rate (%) at which trailing arms
	trailPercentage  float64 // Drop from the high (%) that triggers the stop
	activated        bool
	highPrice        float64
}

// NewTrailingStopManager validates the parameters and creates a manager.
func NewTrailingStopManager(activationProfit, trailPercentage float64) (*TrailingStopManager, error) {
	if activationProfit <= 0 {
		return nil, fmt.Errorf("%w: trailing activation profit must be positive, got %f", ports.ErrConfigurationError, activationProfit)
	}
	if trailPercentage <= 0 || trailPercentage >= 100 {
		return nil, fmt.Errorf("%w: trail percentage must be within (0, 100), got %f", ports.ErrConfigurationError, trailPercentage)
	}
	return newTrailingStop(activationProfit, trailPercentage), nil
}

func newTrailingStop(activationProfit, trailPercentage float64) *TrailingStopManager {
	return &TrailingStopManager{
		activationProfit: activationProfit,
		trailPercentage:  trailPercentage,
	}
}

// ShouldActivate reports whether trailing should be armed at this profit
// rate. Once armed it stays armed regardless of later drawdown.
func (m *TrailingStopManager) ShouldActivate(pnlRate float64) bool {
	return m.activated || pnlRate >= m.activationProfit
}

// Activate arms the trailing stop with the current price as the initial high.
func (m *TrailingStopManager) Activate(price float64) {
	if m.activated {
		m.UpdateHighPrice(price)
		return
	}
	m.activated = true
	m.highPrice = price
}

// UpdateHighPrice ratchets the high-water mark upward; it never moves down.
func (m *TrailingStopManager) UpdateHighPrice(price float64) {
	if m.activated && price > m.highPrice {
		m.highPrice = price
	}
}

// ShouldTriggerStop reports whether the price has fallen to or below the
// trailing stop price. Always false while unarmed.
func (m *TrailingStopManager) ShouldTriggerStop(price float64) bool {
	if !m.activated || m.highPrice <= 0 {
		return false
	}
	return price <= m.StopPrice()
}

// StopPrice returns the current trigger price, or 0 while unarmed.
func (m *TrailingStopManager) StopPrice() float64 {
	if !m.activated {
		return 0
	}
	return m.highPrice * (1 - m.trailPercentage/100)
}

// IsActivated reports whether trailing is armed.
func (m *TrailingStopManager) IsActivated() bool {
	return m.activated
}

// HighPrice returns the current high-water mark, or 0 while unarmed.
func (m *TrailingStopManager) HighPrice() float64 {
	return m.highPrice
}

// Reset disarms the manager for a new position lifetime.
func (m *TrailingStopManager) Reset() {
	m.activated = false
	m.highPrice = 0
}
