package domain

import "time"

// Trade is an immutable record of one reconciled fill, used by the risk
// controller's daily history and the trade journal.
type Trade struct {
	Market     string
	Side       SignalAction
	Price      float64
	Quantity   float64
	Timestamp  time.Time
	IsStopLoss bool     // True when the fill closed a position at the stop-loss level
	PnL        *float64 // Realized profit/loss, nil until known (buys never have one)
}
