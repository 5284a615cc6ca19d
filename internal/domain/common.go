package domain

// SignalAction represents the side of a trading signal (buy or sell).
type SignalAction string

const (
	ActionBuy  SignalAction = "buy"
	ActionSell SignalAction = "sell"
)

// SignalReason indicates which rule produced a signal.
type SignalReason string

const (
	ReasonInitialBuy   SignalReason = "initial_buy"
	ReasonAveraging    SignalReason = "averaging"
	ReasonStopLoss     SignalReason = "stop_loss"
	ReasonTakeProfit   SignalReason = "take_profit"
	ReasonPartialSell  SignalReason = "partial_sell"
	ReasonTrailingStop SignalReason = "trailing_stop"
)

// EntryKind distinguishes the first fill of a position from averaging-down fills.
type EntryKind string

const (
	EntryInitial   EntryKind = "initial"
	EntryAveraging EntryKind = "averaging"
)

// MarketTrend is the analyzer's coarse trend classification.
type MarketTrend string

const (
	TrendBullish MarketTrend = "bullish"
	TrendBearish MarketTrend = "bearish"
	TrendNeutral MarketTrend = "neutral"
)

// StrategyStatus makes the engine's suspension state explicit instead of a
// bare boolean, so callers always see why evaluation stopped.
type StrategyStatus struct {
	Suspended bool
	Reason    string
}

// Active reports whether the strategy may evaluate.
func (s StrategyStatus) Active() bool {
	return !s.Suspended
}
