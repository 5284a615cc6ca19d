package analyzer

import (
	"fmt"
	"math"

	"cryptoScalpBot/internal/domain"
	"cryptoScalpBot/internal/ports"
)

// Config holds the analyzer's market-condition thresholds.
type Config struct {
	VolatilityThreshold    float64 // e.g., 5.0 (%) - minimum 24h volatility to pick a market
	VolumeRatioThreshold   float64 // e.g., 1.5 - minimum current/baseline volume ratio
	RapidDeclineThreshold  float64 // e.g., -2.0 (%) - sample-to-sample drop treated as a rapid decline
	RSIOversoldThreshold   float64 // e.g., 30.0
	MarketDeclineThreshold float64 // e.g., -3.0 (%) - drop that suspends the strategy
	RSIPeriod              int     // e.g., 14
}

// DefaultConfig returns the reference thresholds.
func DefaultConfig() Config {
	return Config{
		VolatilityThreshold:    5.0,
		VolumeRatioThreshold:   1.5,
		RapidDeclineThreshold:  -2.0,
		RSIOversoldThreshold:   30.0,
		MarketDeclineThreshold: -3.0,
		RSIPeriod:              14,
	}
}

// minTrendSamples is how many recent prices the trend check averages over.
const minTrendSamples = 5

// Analyzer computes derived market indicators from a rolling price/volume window.
type Analyzer struct {
	cfg    Config
	logger ports.Logger
}

// New creates a new Analyzer instance.
func New(cfg Config, logger ports.Logger) (*Analyzer, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for analyzer")
	}
	if cfg.RSIPeriod <= 0 {
		return nil, fmt.Errorf("%w: RSI period must be positive", ports.ErrConfigurationError)
	}
	if cfg.RSIOversoldThreshold < 0 || cfg.RSIOversoldThreshold > 100 {
		return nil, fmt.Errorf("%w: RSI oversold threshold must be within 0-100", ports.ErrConfigurationError)
	}
	return &Analyzer{cfg: cfg, logger: logger}, nil
}

// AnalyzeMarketConditions validates the snapshot and assembles a fresh
// MarketConditions from the individual indicator calculations. A structurally
// invalid ticker is a hard error, not a soft "insufficient data" case.
func (a *Analyzer) AnalyzeMarketConditions(data *domain.MarketData) (domain.MarketConditions, error) {
	if !data.Valid() {
		return domain.MarketConditions{}, fmt.Errorf("%w: ticker or history window rejected", ports.ErrInvalidMarketData)
	}

	priceChange := a.CalculatePriceChange1m(data)

	return domain.MarketConditions{
		Volatility24h:  a.Calculate24hVolatility(data),
		VolumeRatio:    a.CalculateVolumeRatio(data),
		RSI:            a.CalculateRSI(data.PriceHistory, a.cfg.RSIPeriod),
		PriceChange1m:  priceChange,
		MarketTrend:    a.CheckMarketTrend(data),
		IsRapidDecline: priceChange <= a.cfg.RapidDeclineThreshold,
	}, nil
}

// Calculate24hVolatility returns the absolute 24h change rate as a percentage,
// taken directly from the exchange ticker.
func (a *Analyzer) Calculate24hVolatility(data *domain.MarketData) float64 {
	return math.Abs(data.CurrentTicker.ChangeRate * 100)
}

// CalculateVolumeRatio returns the current trade volume relative to a
// baseline. The baseline is the rolling mean of the volume window when at
// least minTrendSamples samples exist, else the reference constant 1.0.
func (a *Analyzer) CalculateVolumeRatio(data *domain.MarketData) float64 {
	baseline := 1.0
	if len(data.VolumeHistory) >= minTrendSamples {
		var sum float64
		for _, v := range data.VolumeHistory {
			sum += v
		}
		avg := sum / float64(len(data.VolumeHistory))
		if avg > 0 {
			baseline = avg
		}
	}
	return data.CurrentTicker.TradeVolume / baseline
}

// CalculateRSI computes the Relative Strength Index over the most recent
// `period` price deltas using simple (non-smoothed) averages. Returns the
// neutral value 50 when fewer than period+1 samples are supplied, and 100
// when the window contains no losses. The result is clamped to [0, 100].
func (a *Analyzer) CalculateRSI(prices []float64, period int) float64 {
	if period <= 0 || len(prices) < period+1 {
		return 50.0
	}

	var avgGain, avgLoss float64
	for i := len(prices) - period; i < len(prices); i++ {
		change := prices[i] - prices[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	if avgLoss == 0 {
		return 100.0
	}

	rs := avgGain / avgLoss
	rsi := 100 - (100 / (1 + rs))

	return math.Max(0, math.Min(100, rsi))
}

// CalculatePriceChange1m returns the percentage change between the two most
// recent samples of the price history. Despite the name (kept from the
// upstream field), this is a sample-to-sample delta, not a wall-clock minute:
// the cadence is whatever the polling interval delivers.
func (a *Analyzer) CalculatePriceChange1m(data *domain.MarketData) float64 {
	n := len(data.PriceHistory)
	if n < 2 {
		return 0.0
	}
	current := data.PriceHistory[n-1]
	previous := data.PriceHistory[n-2]
	if previous == 0 {
		return 0.0
	}
	return (current - previous) / previous * 100
}

// DetectRapidDecline reports whether the latest sample-to-sample move breaches
// the rapid-decline threshold.
func (a *Analyzer) DetectRapidDecline(data *domain.MarketData) bool {
	return a.CalculatePriceChange1m(data) <= a.cfg.RapidDeclineThreshold
}

// CheckMarketTrend compares the current price to the mean of the last five
// samples: >= +1% is bullish, <= -1% is bearish, anything else (including an
// undersized window) is neutral.
func (a *Analyzer) CheckMarketTrend(data *domain.MarketData) domain.MarketTrend {
	n := len(data.PriceHistory)
	if n < minTrendSamples {
		return domain.TrendNeutral
	}

	recent := data.PriceHistory[n-minTrendSamples:]
	var sum float64
	for _, p := range recent {
		sum += p
	}
	avg := sum / float64(len(recent))
	if avg == 0 {
		return domain.TrendNeutral
	}

	changeRate := (recent[len(recent)-1] - avg) / avg * 100
	switch {
	case changeRate >= 1.0:
		return domain.TrendBullish
	case changeRate <= -1.0:
		return domain.TrendBearish
	default:
		return domain.TrendNeutral
	}
}

// ShouldSelectHighVolatilityCoin reports whether the market is volatile enough
// for the scalping strategy to bother with.
func (a *Analyzer) ShouldSelectHighVolatilityCoin(cond domain.MarketConditions) bool {
	return cond.Volatility24h >= a.cfg.VolatilityThreshold
}

// ShouldAllowBuySignal gates entries: volume above threshold, no rapid decline
// in progress, and the market not sliding past the decline threshold.
func (a *Analyzer) ShouldAllowBuySignal(cond domain.MarketConditions) bool {
	volumeOK := cond.VolumeRatio >= a.cfg.VolumeRatioThreshold
	notRapidDecline := !cond.IsRapidDecline
	notMarketDecline := cond.PriceChange1m > a.cfg.MarketDeclineThreshold
	return volumeOK && notRapidDecline && notMarketDecline
}

// ShouldSuspendStrategy reports whether the market-wide decline is severe
// enough that the strategy should stop evaluating entirely.
func (a *Analyzer) ShouldSuspendStrategy(cond domain.MarketConditions) bool {
	return cond.PriceChange1m <= a.cfg.MarketDeclineThreshold
}

// BuySignalConfidence scores an entry from 0.5 upward: +0.2 for an oversold
// RSI, +0.1 each for high volatility, high volume, and a bullish trend.
// Clamped to [0, 1].
func (a *Analyzer) BuySignalConfidence(cond domain.MarketConditions) float64 {
	confidence := 0.5
	if cond.RSI <= a.cfg.RSIOversoldThreshold {
		confidence += 0.2
	}
	if cond.Volatility24h >= a.cfg.VolatilityThreshold {
		confidence += 0.1
	}
	if cond.VolumeRatio >= a.cfg.VolumeRatioThreshold {
		confidence += 0.1
	}
	if cond.MarketTrend == domain.TrendBullish {
		confidence += 0.1
	}
	return math.Max(0.0, math.Min(1.0, confidence))
}
