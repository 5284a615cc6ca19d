package domain

import "time"

// PositionEntry is a single fill that contributed to an open position.
type PositionEntry struct {
	Price     float64   // Fill price
	Quantity  float64   // Fill quantity
	Cost      float64   // Price * Quantity at fill time
	Kind      EntryKind // Initial buy or averaging-down buy
	Timestamp time.Time // Time of the fill
}

// Position represents one open averaged holding for a single market.
// TotalCost and TotalQuantity are always the exact sums over Entries after a
// buy; a partial sell reduces both pro-rata against the current average cost.
type Position struct {
	Market        string          // Market identifier (e.g., "KRW-BTC")
	Entries       []PositionEntry // Ordered fills, initial entry first
	AveragePrice  float64         // TotalCost / TotalQuantity
	TotalQuantity float64
	TotalCost     float64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Recompute rebuilds the aggregates from the full entry list. Always called
// after a mutation instead of updating incrementally, so the aggregates
// cannot drift across averaging sequences.
func (p *Position) Recompute() {
	var qty, cost float64
	for _, e := range p.Entries {
		qty += e.Quantity
		cost += e.Cost
	}
	p.TotalQuantity = qty
	p.TotalCost = cost
	if qty > 0 {
		p.AveragePrice = cost / qty
	} else {
		p.AveragePrice = 0
	}
}

// AveragingCount returns how many averaging-down fills the position holds.
func (p *Position) AveragingCount() int {
	count := 0
	for _, e := range p.Entries {
		if e.Kind == EntryAveraging {
			count++
		}
	}
	return count
}

// InitialQuantity returns the quantity of the first fill, used to size
// averaging buys identically to the original entry.
func (p *Position) InitialQuantity() float64 {
	if len(p.Entries) == 0 {
		return 0
	}
	return p.Entries[0].Quantity
}

// Snapshot returns a deep copy safe to attach to a Signal.
func (p *Position) Snapshot() *Position {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Entries = make([]PositionEntry, len(p.Entries))
	copy(cp.Entries, p.Entries)
	return &cp
}
