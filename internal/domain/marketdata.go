package domain

import "time"

// Ticker is the current state of a market as reported by the exchange.
type Ticker struct {
	Market       string    // Market identifier (e.g., "KRW-BTC")
	TradePrice   float64   // Last trade price
	TradeVolume  float64   // Last trade volume
	ChangeRate   float64   // 24h change rate as a fraction (e.g., 0.05 for 5%)
	Timestamp    time.Time // Time of the ticker
}

// Valid reports whether the ticker is structurally usable: positive price,
// non-negative volume, non-empty market id.
func (t Ticker) Valid() bool {
	return t.Market != "" && t.TradePrice > 0 && t.TradeVolume >= 0
}

// MarketData is the per-tick snapshot the engine evaluates: the current
// ticker plus an ordered rolling window of prices, volumes and timestamps.
type MarketData struct {
	CurrentTicker Ticker
	PriceHistory  []float64
	VolumeHistory []float64
	Timestamps    []time.Time
}

// Valid reports whether the snapshot is structurally consistent: a valid
// ticker and history slices of equal length.
func (m *MarketData) Valid() bool {
	if m == nil || !m.CurrentTicker.Valid() {
		return false
	}
	return len(m.PriceHistory) == len(m.VolumeHistory) &&
		len(m.PriceHistory) == len(m.Timestamps)
}

// MarketConditions is an immutable snapshot of derived indicators, produced
// fresh by the analyzer on every tick.
type MarketConditions struct {
	Volatility24h  float64     // Absolute 24h change, percent (>= 0)
	VolumeRatio    float64     // Current volume / baseline volume (>= 0)
	RSI            float64     // Relative Strength Index, 0-100
	PriceChange1m  float64     // Percent change between the two most recent samples
	MarketTrend    MarketTrend // bullish / bearish / neutral
	IsRapidDecline bool
}

// Signal is the engine's per-tick output: at most one per evaluation.
type Signal struct {
	Market      string
	Action      SignalAction
	Confidence  float64 // 0.0 - 1.0
	Price       float64
	Volume      float64
	StrategyID  string
	Timestamp   time.Time
	Reason      SignalReason
	Position    *Position // Snapshot of the position, nil for an initial buy
	Conditions  MarketConditions
	ExpectedPnL *float64 // Fee-inclusive expected PnL for sells, nil when unknown
}
