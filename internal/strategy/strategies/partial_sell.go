package strategies

import (
	"fmt"

	"cryptoScalpBot/internal/ports"
)

// SellRung pairs a profit-achievement threshold with the fraction of the
// held quantity to sell once it is reached. Thresholds are expressed as a
// fraction of the target profit (0.5 means "half the target reached").
type SellRung struct {
	Threshold float64
	Ratio     float64
}

// DefaultSellRungs returns the reference ladder: sell 30% at half the target
// profit, then 50% of the remainder at the full target.
func DefaultSellRungs() []SellRung {
	return []SellRung{
		{Threshold: 0.5, Ratio: 0.3},
		{Threshold: 1.0, Ratio: 0.5},
	}
}

// PartialSellManager tracks which profit rungs have already been taken for
// one position lifetime. Rungs are read via NextRung and consumed only after
// the resulting fill reconciles, so repeated evaluations of the same tick
// keep returning the same answer.
type PartialSellManager struct {
	targetProfit float64
	rungs        []SellRung
	fired        []bool
}

// NewPartialSellManager validates the rung ladder and creates a manager.
// Nil or empty rungs fall back to the default ladder.
func NewPartialSellManager(targetProfit float64, rungs []SellRung) (*PartialSellManager, error) {
	if targetProfit <= 0 {
		return nil, fmt.Errorf("%w: target profit must be positive, got %f", ports.ErrConfigurationError, targetProfit)
	}
	if len(rungs) == 0 {
		rungs = DefaultSellRungs()
	}
	prev := 0.0
	for _, r := range rungs {
		if r.Threshold <= prev {
			return nil, fmt.Errorf("%w: sell rung thresholds must be strictly increasing", ports.ErrConfigurationError)
		}
		if r.Ratio <= 0 || r.Ratio > 1 {
			return nil, fmt.Errorf("%w: sell rung ratio must be within (0, 1], got %f", ports.ErrConfigurationError, r.Ratio)
		}
		prev = r.Threshold
	}
	return newPartialSeller(targetProfit, rungs), nil
}

func newPartialSeller(targetProfit float64, rungs []SellRung) *PartialSellManager {
	return &PartialSellManager{
		targetProfit: targetProfit,
		rungs:        rungs,
		fired:        make([]bool, len(rungs)),
	}
}

// NextRung returns the sell ratio for the lowest unconsumed rung whose
// threshold the current profit rate has reached. Does not mutate state.
func (m *PartialSellManager) NextRung(pnlRate float64) (float64, bool) {
	if pnlRate <= 0 {
		return 0, false
	}
	achievement := pnlRate / m.targetProfit
	for i, r := range m.rungs {
		if m.fired[i] {
			continue
		}
		if achievement >= r.Threshold {
			return r.Ratio, true
		}
		// Rungs are ordered; an unreached lower rung blocks the rest.
		return 0, false
	}
	return 0, false
}

// Consume marks the lowest unconsumed rung as taken. Called once the partial
// sell the rung produced has been filled.
func (m *PartialSellManager) Consume() {
	for i := range m.fired {
		if !m.fired[i] {
			m.fired[i] = true
			return
		}
	}
}

// SellQuantity converts a rung ratio into a concrete quantity, capped at the
// full holding.
func (m *PartialSellManager) SellQuantity(totalQuantity, ratio float64) float64 {
	if totalQuantity <= 0 || ratio <= 0 {
		return 0
	}
	if ratio >= 1 {
		return totalQuantity
	}
	return totalQuantity * ratio
}

// ConsumedCount returns how many rungs have been taken this position lifetime.
func (m *PartialSellManager) ConsumedCount() int {
	count := 0
	for _, f := range m.fired {
		if f {
			count++
		}
	}
	return count
}

// Reset re-arms every rung for a new position lifetime.
func (m *PartialSellManager) Reset() {
	m.fired = make([]bool, len(m.rungs))
}
