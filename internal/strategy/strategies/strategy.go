package strategies

import (
	"fmt"
	"sort"
	"time"

	"cryptoScalpBot/internal/ports"
	"cryptoScalpBot/internal/risk"
	"cryptoScalpBot/internal/strategy/analyzer"
)

// Config carries everything a strategy instance needs: trading thresholds,
// fee and sizing parameters, and the sub-component configurations.
type Config struct {
	Markets []string // Markets the instance trades; empty accepts any

	StopLossLevel      float64       // Percent, e.g., -3.0
	AveragingTrigger   float64       // Percent, e.g., -1.0
	TargetProfit       float64       // Percent, e.g., 0.5
	MaxAveragingCount  int           // e.g., 1
	TradingFee         float64       // Per-leg fee as a fraction, e.g., 0.0005
	MonitoringInterval time.Duration // Polling cadence, e.g., 5s
	OrderQuantity      float64       // Base-asset quantity for an initial buy
	AccountBalance     float64       // Quote-currency balance the risk checks assume
	MinOrderAmount     float64       // Exchange minimum order value
	Enabled            bool

	// Zero values fall back to defaults derived from TargetProfit.
	PartialSellRungs         []SellRung
	TrailingActivationProfit float64 // Percent; 0 means 1.5 * TargetProfit
	TrailingPercentage       float64 // Percent drop from the high; 0 means 1.0

	Analyzer analyzer.Config
	Risk     risk.Config
}

// DefaultConfig returns the reference parameter set.
func DefaultConfig() Config {
	return Config{
		StopLossLevel:      -3.0,
		AveragingTrigger:   -1.0,
		TargetProfit:       0.5,
		MaxAveragingCount:  1,
		TradingFee:         0.0005,
		MonitoringInterval: 5 * time.Second,
		OrderQuantity:      0.1,
		AccountBalance:     100000.0,
		MinOrderAmount:     5000.0,
		Enabled:            true,
		Analyzer:           analyzer.DefaultConfig(),
		Risk:               risk.DefaultConfig(),
	}
}

// Factory builds a strategy instance from its configuration.
type Factory func(id string, cfg Config, logger ports.Logger) (ports.Strategy, error)

var registry = map[string]Factory{}

// Register adds a strategy factory under a kind name. Duplicate names fail.
func Register(name string, factory Factory) error {
	if name == "" {
		return fmt.Errorf("strategy name cannot be empty")
	}
	if factory == nil {
		return fmt.Errorf("strategy factory cannot be nil")
	}
	if _, exists := registry[name]; exists {
		return fmt.Errorf("strategy %q already registered", name)
	}
	registry[name] = factory
	return nil
}

// MustRegister is Register for init-time use.
func MustRegister(name string, factory Factory) {
	if err := Register(name, factory); err != nil {
		panic(err)
	}
}

// New builds a registered strategy by kind name.
func New(name, id string, cfg Config, logger ports.Logger) (ports.Strategy, error) {
	factory, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ports.ErrUnknownStrategy, name)
	}
	return factory(id, cfg, logger)
}

// Names returns the registered strategy kinds in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
