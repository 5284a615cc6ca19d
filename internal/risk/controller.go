package risk

import (
	"context"
	"fmt"
	"math"
	"time"

	"cryptoScalpBot/internal/domain"
	"cryptoScalpBot/internal/ports"
)

// Config holds the scalar guardrails for one strategy instance.
type Config struct {
	DailyLossLimit       float64 // Currency units, e.g., 5000
	ConsecutiveLossLimit int     // Count of back-to-back stop-loss exits, e.g., 3
	MinBalanceThreshold  float64 // Currency units kept untouched, e.g., 10000
}

// DefaultConfig returns the reference guardrails.
func DefaultConfig() Config {
	return Config{
		DailyLossLimit:       5000.0,
		ConsecutiveLossLimit: 3,
		MinBalanceThreshold:  10000.0,
	}
}

// AccountConditions carries the account-level inputs the suspension check
// needs; the host supplies them since the controller performs no I/O.
type AccountConditions struct {
	DailyLoss      float64
	Balance        float64
	MinOrderAmount float64
}

// Status is a diagnostic snapshot of the controller's current state.
type Status struct {
	DailyLossLimit       float64
	ConsecutiveLossLimit int
	MinBalanceThreshold  float64
	CurrentDailyLoss     float64
	ConsecutiveLossCount int
	TotalTradesToday     int
}

// Controller evaluates daily-loss, consecutive-loss and balance guardrails
// against a same-day trade history it owns.
type Controller struct {
	cfg     Config
	logger  ports.Logger
	history []*domain.Trade
	now     func() time.Time // Injectable clock for calendar-day pruning in tests
}

// New creates a risk controller.
func New(cfg Config, logger ports.Logger) (*Controller, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for risk controller")
	}
	if cfg.DailyLossLimit < 0 {
		return nil, fmt.Errorf("%w: daily loss limit cannot be negative", ports.ErrConfigurationError)
	}
	if cfg.ConsecutiveLossLimit <= 0 {
		return nil, fmt.Errorf("%w: consecutive loss limit must be positive", ports.ErrConfigurationError)
	}
	if cfg.MinBalanceThreshold < 0 {
		return nil, fmt.Errorf("%w: minimum balance threshold cannot be negative", ports.ErrConfigurationError)
	}
	return &Controller{cfg: cfg, logger: logger, now: time.Now}, nil
}

// CheckDailyLossLimit reports whether the accumulated daily loss is still
// within the limit. Exactly hitting the limit counts as within.
func (c *Controller) CheckDailyLossLimit(ctx context.Context, currentLoss float64) bool {
	if currentLoss > c.cfg.DailyLossLimit {
		c.logger.Warn(ctx, "Daily loss limit exceeded", map[string]interface{}{
			"currentLoss": currentLoss, "limit": c.cfg.DailyLossLimit,
		})
		return false
	}
	return true
}

// CheckConsecutiveLosses walks the history from the most recent trade
// backward, counting contiguous stop-loss exits, and reports whether the
// streak is still below the limit.
func (c *Controller) CheckConsecutiveLosses(ctx context.Context, history []*domain.Trade) bool {
	streak := trailingStopLosses(history)
	if streak >= c.cfg.ConsecutiveLossLimit {
		c.logger.Warn(ctx, "Consecutive stop-loss limit reached", map[string]interface{}{
			"streak": streak, "limit": c.cfg.ConsecutiveLossLimit,
		})
		return false
	}
	return true
}

// CheckAccountBalance reports whether the balance covers both the configured
// floor and the requested minimum order amount.
func (c *Controller) CheckAccountBalance(ctx context.Context, balance, minOrderAmount float64) bool {
	effectiveMin := math.Max(c.cfg.MinBalanceThreshold, minOrderAmount)
	if balance < effectiveMin {
		c.logger.Warn(ctx, "Account balance below floor", map[string]interface{}{
			"balance": balance, "required": effectiveMin,
		})
		return false
	}
	return true
}

// ShouldSuspendStrategy returns true when any guardrail fails. Inputs that
// cannot be evaluated (NaN) fail safe toward suspension: a broken risk input
// must never read as "all clear".
func (c *Controller) ShouldSuspendStrategy(ctx context.Context, cond AccountConditions) bool {
	if math.IsNaN(cond.DailyLoss) || math.IsNaN(cond.Balance) || math.IsNaN(cond.MinOrderAmount) {
		c.logger.Error(ctx, fmt.Errorf("non-numeric account conditions"), "Suspending strategy on unusable risk inputs")
		return true
	}
	if !c.CheckDailyLossLimit(ctx, cond.DailyLoss) {
		return true
	}
	if !c.CheckConsecutiveLosses(ctx, c.history) {
		return true
	}
	if !c.CheckAccountBalance(ctx, cond.Balance, cond.MinOrderAmount) {
		return true
	}
	return false
}

// ValidateOrderSize caps a requested order size at the balance headroom above
// the protected floor. Returns 0 when the order cannot be placed at all.
func (c *Controller) ValidateOrderSize(ctx context.Context, requested, availableBalance float64) float64 {
	if requested <= 0 || availableBalance <= 0 {
		return 0
	}
	headroom := availableBalance - c.cfg.MinBalanceThreshold
	if headroom <= 0 {
		c.logger.Warn(ctx, "Order rejected to protect balance floor", map[string]interface{}{
			"available": availableBalance, "floor": c.cfg.MinBalanceThreshold,
		})
		return 0
	}
	if requested > headroom {
		c.logger.Info(ctx, "Order size capped to balance headroom", map[string]interface{}{
			"requested": requested, "capped": headroom,
		})
		return headroom
	}
	return requested
}

// RecordTrade appends a reconciled trade, pruning the history to the current
// calendar day first.
func (c *Controller) RecordTrade(ctx context.Context, trade *domain.Trade) {
	kept := c.history[:0]
	for _, t := range c.history {
		if sameDay(t.Timestamp, c.now()) {
			kept = append(kept, t)
		}
	}
	c.history = append(kept, trade)

	c.logger.Info(ctx, "Trade recorded", map[string]interface{}{
		"market":     trade.Market,
		"side":       trade.Side,
		"quantity":   trade.Quantity,
		"price":      trade.Price,
		"isStopLoss": trade.IsStopLoss,
	})
}

// DailyLoss sums the absolute value of today's negative realized PnL.
func (c *Controller) DailyLoss() float64 {
	var total float64
	for _, t := range c.history {
		if t.PnL != nil && *t.PnL < 0 && sameDay(t.Timestamp, c.now()) {
			total += math.Abs(*t.PnL)
		}
	}
	return total
}

// ConsecutiveLossCount returns the current trailing stop-loss streak.
func (c *Controller) ConsecutiveLossCount() int {
	return trailingStopLosses(c.history)
}

// ResetDailyStats clears the owned trade history.
func (c *Controller) ResetDailyStats(ctx context.Context) {
	c.history = nil
	c.logger.Info(ctx, "Daily risk stats reset")
}

// RiskStatus returns a diagnostic snapshot.
func (c *Controller) RiskStatus() Status {
	tradesToday := 0
	for _, t := range c.history {
		if sameDay(t.Timestamp, c.now()) {
			tradesToday++
		}
	}
	return Status{
		DailyLossLimit:       c.cfg.DailyLossLimit,
		ConsecutiveLossLimit: c.cfg.ConsecutiveLossLimit,
		MinBalanceThreshold:  c.cfg.MinBalanceThreshold,
		CurrentDailyLoss:     c.DailyLoss(),
		ConsecutiveLossCount: c.ConsecutiveLossCount(),
		TotalTradesToday:     tradesToday,
	}
}

func trailingStopLosses(history []*domain.Trade) int {
	streak := 0
	for i := len(history) - 1; i >= 0; i-- {
		if !history[i].IsStopLoss {
			break
		}
		streak++
	}
	return streak
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
