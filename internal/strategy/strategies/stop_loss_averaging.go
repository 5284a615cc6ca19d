package strategies

import (
	"context"
	"fmt"
	"time"

	"cryptoScalpBot/internal/domain"
	"cryptoScalpBot/internal/ports"
	"cryptoScalpBot/internal/position"
	"cryptoScalpBot/internal/risk"
	"cryptoScalpBot/internal/strategy/analyzer"
)

const (
	strategyKind = "stop_loss_averaging"

	// requiredHistoryLength is the minimum rolling-window size before any
	// evaluation happens; shorter windows produce no decision.
	requiredHistoryLength = 50

	// stopLossTolerance widens the stop-loss comparison by 0.01 percentage
	// points so float noise at the boundary still exits.
	stopLossTolerance = 0.01
)

func init() {
	MustRegister(strategyKind, func(id string, cfg Config, logger ports.Logger) (ports.Strategy, error) {
		return NewStopLossAveraging(id, cfg, logger)
	})
}

// StopLossAveraging is the scalping decision engine: it enters on
// oversold/high-volume conditions, averages down once per configured
// allowance, and exits through stop-loss, partial-sell rungs, take-profit or
// a trailing stop.
//
// Evaluate only reads state; positions and counters mutate exclusively
// through UpdatePositionAfterTrade once the order layer reports a fill. Not
// safe for concurrent use; the trading service drives it from a single loop.
type StopLossAveraging struct {
	id       string
	cfg      Config
	logger   ports.Logger
	analyzer *analyzer.Analyzer
	position *position.Manager
	risk     *risk.Controller

	// Per-market exit state, created lazily and dropped on position close.
	partials  map[string]*PartialSellManager
	trailings map[string]*TrailingStopManager

	rungs              []SellRung
	trailingActivation float64
	trailingPct        float64

	status            domain.StrategyStatus
	consecutiveLosses int
	dailyPnL          float64
	lastTradeTime     time.Time
	now               func() time.Time
}

// NewStopLossAveraging validates the configuration and assembles the engine
// with its analyzer, position manager and risk controller. Thresholds outside
// the allowed trading ranges fail hard rather than being clamped.
func NewStopLossAveraging(id string, cfg Config, logger ports.Logger) (*StopLossAveraging, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for strategy")
	}
	if id == "" {
		return nil, fmt.Errorf("%w: strategy id cannot be empty", ports.ErrConfigurationError)
	}
	if cfg.StopLossLevel < -5.0 || cfg.StopLossLevel > -1.0 {
		return nil, fmt.Errorf("%w: stop loss level must be within [-5.0, -1.0], got %.2f", ports.ErrConfigurationError, cfg.StopLossLevel)
	}
	if cfg.AveragingTrigger < -2.0 || cfg.AveragingTrigger > -0.5 {
		return nil, fmt.Errorf("%w: averaging trigger must be within [-2.0, -0.5], got %.2f", ports.ErrConfigurationError, cfg.AveragingTrigger)
	}
	if cfg.TargetProfit < 0.2 || cfg.TargetProfit > 2.0 {
		return nil, fmt.Errorf("%w: target profit must be within [0.2, 2.0], got %.2f", ports.ErrConfigurationError, cfg.TargetProfit)
	}
	if cfg.MaxAveragingCount < 1 || cfg.MaxAveragingCount > 3 {
		return nil, fmt.Errorf("%w: max averaging count must be within [1, 3], got %d", ports.ErrConfigurationError, cfg.MaxAveragingCount)
	}
	if cfg.MonitoringInterval < 5*time.Second || cfg.MonitoringInterval > 60*time.Second {
		return nil, fmt.Errorf("%w: monitoring interval must be within [5s, 60s], got %s", ports.ErrConfigurationError, cfg.MonitoringInterval)
	}
	if cfg.OrderQuantity <= 0 {
		return nil, fmt.Errorf("%w: order quantity must be positive, got %f", ports.ErrConfigurationError, cfg.OrderQuantity)
	}

	trailingActivation := cfg.TrailingActivationProfit
	if trailingActivation == 0 {
		trailingActivation = cfg.TargetProfit * 1.5
	}
	trailingPct := cfg.TrailingPercentage
	if trailingPct == 0 {
		trailingPct = 1.0
	}

	an, err := analyzer.New(cfg.Analyzer, logger)
	if err != nil {
		return nil, fmt.Errorf("create analyzer: %w", err)
	}
	pm, err := position.New(cfg.TradingFee)
	if err != nil {
		return nil, fmt.Errorf("create position manager: %w", err)
	}
	rc, err := risk.New(cfg.Risk, logger)
	if err != nil {
		return nil, fmt.Errorf("create risk controller: %w", err)
	}
	// Validate the exit parameters once; per-market managers are created
	// lazily from the validated values.
	ps, err := NewPartialSellManager(cfg.TargetProfit, cfg.PartialSellRungs)
	if err != nil {
		return nil, fmt.Errorf("create partial sell manager: %w", err)
	}
	if _, err := NewTrailingStopManager(trailingActivation, trailingPct); err != nil {
		return nil, fmt.Errorf("create trailing stop manager: %w", err)
	}

	return &StopLossAveraging{
		id:                 id,
		cfg:                cfg,
		logger:             logger,
		analyzer:           an,
		position:           pm,
		risk:               rc,
		partials:           make(map[string]*PartialSellManager),
		trailings:          make(map[string]*TrailingStopManager),
		rungs:              ps.rungs,
		trailingActivation: trailingActivation,
		trailingPct:        trailingPct,
		now:                time.Now,
	}, nil
}

// Name returns the registered strategy kind.
func (s *StopLossAveraging) Name() string {
	return strategyKind
}

// ID returns the instance identifier carried on emitted signals.
func (s *StopLossAveraging) ID() string {
	return s.id
}

// RequiredHistoryLength returns the minimum history window Evaluate needs.
func (s *StopLossAveraging) RequiredHistoryLength() int {
	return requiredHistoryLength
}

// Status returns the current suspension state.
func (s *StopLossAveraging) Status() domain.StrategyStatus {
	return s.status
}

// Evaluate produces at most one signal for the given snapshot.
//
// Decision order: structural validation, soft gates (disabled, scope,
// history, suspension), stop-loss on a held position, market-decline
// suspension, then exit ladder or entry conditions. Stop-loss outranks the
// market gates so a held position can always exit, but an already-set
// suspension outranks everything.
func (s *StopLossAveraging) Evaluate(ctx context.Context, data *domain.MarketData) (*domain.Signal, error) {
	if !data.Valid() {
		return nil, fmt.Errorf("%w: market data rejected", ports.ErrInvalidMarketData)
	}
	if !s.cfg.Enabled {
		return nil, nil
	}
	market := data.CurrentTicker.Market
	if !s.marketInScope(market) {
		return nil, nil
	}
	if len(data.PriceHistory) < requiredHistoryLength {
		s.logger.Debug(ctx, "Insufficient history for evaluation", map[string]interface{}{
			"market": market, "have": len(data.PriceHistory), "need": requiredHistoryLength,
		})
		return nil, nil
	}
	if s.status.Suspended {
		s.logger.Debug(ctx, "Strategy suspended, skipping evaluation", map[string]interface{}{
			"strategyID": s.id, "reason": s.status.Reason,
		})
		return nil, nil
	}

	price := data.CurrentTicker.TradePrice

	if pos := s.position.GetPosition(market); pos != nil {
		pnl := position.Compute(pos, price, s.cfg.TradingFee)
		if s.stopLossHit(pnl.Rate) {
			cond, err := s.analyzer.AnalyzeMarketConditions(data)
			if err != nil {
				return nil, fmt.Errorf("analyze market conditions: %w", err)
			}
			s.logger.Warn(ctx, "Stop loss triggered", map[string]interface{}{
				"market": market, "pnlRate": pnl.Rate, "level": s.cfg.StopLossLevel,
			})
			return s.sellSignal(pos, price, cond, domain.ReasonStopLoss, 1.0, pos.TotalQuantity, pnl.Net), nil
		}
	}

	cond, err := s.analyzer.AnalyzeMarketConditions(data)
	if err != nil {
		return nil, fmt.Errorf("analyze market conditions: %w", err)
	}

	if s.analyzer.ShouldSuspendStrategy(cond) {
		s.suspend(ctx, fmt.Sprintf("market decline %.2f%% breached threshold", cond.PriceChange1m))
		return nil, nil
	}

	if pos := s.position.GetPosition(market); pos != nil {
		return s.evaluateHolding(ctx, pos, price, cond), nil
	}
	return s.evaluateEntry(ctx, market, price, cond), nil
}

// evaluateEntry gates a fresh entry on the analyzer's buy conditions and the
// risk controller's account guardrails.
func (s *StopLossAveraging) evaluateEntry(ctx context.Context, market string, price float64, cond domain.MarketConditions) *domain.Signal {
	if !s.analyzer.ShouldAllowBuySignal(cond) {
		return nil
	}
	if !s.analyzer.ShouldSelectHighVolatilityCoin(cond) {
		return nil
	}
	if s.risk.ShouldSuspendStrategy(ctx, risk.AccountConditions{
		DailyLoss:      s.risk.DailyLoss(),
		Balance:        s.cfg.AccountBalance,
		MinOrderAmount: s.cfg.MinOrderAmount,
	}) {
		s.suspend(ctx, "risk limits exceeded")
		return nil
	}

	return &domain.Signal{
		Market:     market,
		Action:     domain.ActionBuy,
		Confidence: s.analyzer.BuySignalConfidence(cond),
		Price:      price,
		Volume:     s.cfg.OrderQuantity,
		StrategyID: s.id,
		Timestamp:  s.now(),
		Reason:     domain.ReasonInitialBuy,
		Conditions: cond,
	}
}

// evaluateHolding walks the exit ladder for an open position: trailing stop,
// partial-sell rungs, take-profit, then averaging down. Stop-loss was already
// checked before the market gates.
func (s *StopLossAveraging) evaluateHolding(ctx context.Context, pos *domain.Position, price float64, cond domain.MarketConditions) *domain.Signal {
	pnl := position.Compute(pos, price, s.cfg.TradingFee)

	trailing := s.trailingFor(pos.Market)
	if trailing.ShouldActivate(pnl.Rate) {
		if !trailing.IsActivated() {
			trailing.Activate(price)
			s.logger.Info(ctx, "Trailing stop activated", map[string]interface{}{
				"market": pos.Market, "price": price, "pnlRate": pnl.Rate,
			})
		} else {
			trailing.UpdateHighPrice(price)
		}
	}
	if trailing.ShouldTriggerStop(price) {
		return s.sellSignal(pos, price, cond, domain.ReasonTrailingStop, 1.0, pos.TotalQuantity, pnl.Net)
	}

	if ratio, ok := s.partialFor(pos.Market).NextRung(pnl.Rate); ok {
		quantity := s.partialFor(pos.Market).SellQuantity(pos.TotalQuantity, ratio)
		return s.sellSignal(pos, price, cond, domain.ReasonPartialSell, 0.8, quantity, pnl.Net*ratio)
	}

	if pnl.Rate >= s.takeProfitLevel() {
		return s.sellSignal(pos, price, cond, domain.ReasonTakeProfit, 0.9, pos.TotalQuantity, pnl.Net)
	}

	if pnl.Rate <= s.cfg.AveragingTrigger && pos.AveragingCount() < s.cfg.MaxAveragingCount {
		return &domain.Signal{
			Market:     pos.Market,
			Action:     domain.ActionBuy,
			Confidence: 0.7,
			Price:      price,
			Volume:     pos.InitialQuantity(),
			StrategyID: s.id,
			Timestamp:  s.now(),
			Reason:     domain.ReasonAveraging,
			Position:   pos.Snapshot(),
			Conditions: cond,
		}
	}
	return nil
}

// UpdatePositionAfterTrade reconciles a reported fill into the position
// manager, daily counters and the risk controller's trade history. Realized
// PnL and the stop-loss flag come from the pre-fill position state; after
// mutation the cost basis is gone.
func (s *StopLossAveraging) UpdatePositionAfterTrade(ctx context.Context, market string, action domain.SignalAction, price, quantity float64, orderRef string) (*domain.Trade, error) {
	if market == "" || price <= 0 || quantity <= 0 {
		return nil, fmt.Errorf("invalid trade parameters: market=%q price=%f quantity=%f", market, price, quantity)
	}

	now := s.now()
	trade := &domain.Trade{
		Market:    market,
		Side:      action,
		Price:     price,
		Quantity:  quantity,
		Timestamp: now,
	}

	switch action {
	case domain.ActionBuy:
		if s.position.HasPosition(market) {
			if _, err := s.position.AddAveragingPosition(market, price, quantity); err != nil {
				return nil, fmt.Errorf("record averaging fill: %w", err)
			}
		} else {
			if _, err := s.position.AddInitialPosition(market, price, quantity); err != nil {
				return nil, fmt.Errorf("record initial fill: %w", err)
			}
			s.resetExitState(market)
		}

	case domain.ActionSell:
		pos := s.position.GetPosition(market)
		if pos == nil {
			return nil, fmt.Errorf("%w: %s", ports.ErrPositionNotFound, market)
		}
		pnl := position.Compute(pos, price, s.cfg.TradingFee)

		if quantity >= pos.TotalQuantity {
			realized := pnl.Net
			trade.PnL = &realized
			trade.IsStopLoss = s.stopLossHit(pnl.Rate)
			s.position.ClosePosition(market)
			s.resetExitState(market)
			s.applyRealized(realized, trade.IsStopLoss)
		} else {
			realized := pnl.Net * (quantity / pos.TotalQuantity)
			trade.PnL = &realized
			if _, err := s.position.PartialSell(market, quantity, price); err != nil {
				return nil, fmt.Errorf("record partial sell: %w", err)
			}
			if s.position.HasPosition(market) {
				s.partialFor(market).Consume()
			} else {
				// Residual fell below dust and the position liquidated.
				s.resetExitState(market)
			}
			s.applyRealized(realized, false)
		}

	default:
		return nil, fmt.Errorf("unknown trade action %q", action)
	}

	s.lastTradeTime = now
	s.risk.RecordTrade(ctx, trade)
	s.logger.Info(ctx, "Position reconciled after trade", map[string]interface{}{
		"market": market, "action": string(action), "price": price,
		"quantity": quantity, "orderRef": orderRef, "dailyPnL": s.dailyPnL,
	})
	return trade, nil
}

// SeedTradeHistory replays journal trades into the risk controller and daily
// counters. Called once at startup so a restart does not forget the day's
// losses.
func (s *StopLossAveraging) SeedTradeHistory(ctx context.Context, trades []*domain.Trade) {
	for _, t := range trades {
		s.risk.RecordTrade(ctx, t)
		if t.PnL != nil {
			s.dailyPnL += *t.PnL
		}
		if t.Timestamp.After(s.lastTradeTime) {
			s.lastTradeTime = t.Timestamp
		}
	}
	s.consecutiveLosses = s.risk.ConsecutiveLossCount()
}

// Resume clears the suspension so evaluation restarts on the next tick.
func (s *StopLossAveraging) Resume(ctx context.Context) {
	if !s.status.Suspended {
		return
	}
	s.logger.Info(ctx, "Strategy resumed", map[string]interface{}{
		"strategyID": s.id, "previousReason": s.status.Reason,
	})
	s.status = domain.StrategyStatus{}
}

// Position returns a snapshot of the open position for a market, or nil.
func (s *StopLossAveraging) Position(market string) *domain.Position {
	return s.position.GetPosition(market).Snapshot()
}

// Info returns a diagnostic snapshot of thresholds, counters and risk state.
func (s *StopLossAveraging) Info() map[string]interface{} {
	rs := s.risk.RiskStatus()
	return map[string]interface{}{
		"strategyID":         s.id,
		"type":               strategyKind,
		"stopLossLevel":      s.cfg.StopLossLevel,
		"averagingTrigger":   s.cfg.AveragingTrigger,
		"targetProfit":       s.cfg.TargetProfit,
		"maxAveragingCount":  s.cfg.MaxAveragingCount,
		"tradingFee":         s.cfg.TradingFee,
		"monitoringInterval": s.cfg.MonitoringInterval.String(),
		"suspended":          s.status.Suspended,
		"suspensionReason":   s.status.Reason,
		"consecutiveLosses":  s.consecutiveLosses,
		"dailyPnL":           s.dailyPnL,
		"lastTradeTime":      s.lastTradeTime,
		"positionCount":      s.position.PositionCount(),
		"dailyLoss":          rs.CurrentDailyLoss,
		"tradesToday":        rs.TotalTradesToday,
	}
}

func (s *StopLossAveraging) sellSignal(pos *domain.Position, price float64, cond domain.MarketConditions, reason domain.SignalReason, confidence, quantity, expectedPnL float64) *domain.Signal {
	expected := expectedPnL
	return &domain.Signal{
		Market:      pos.Market,
		Action:      domain.ActionSell,
		Confidence:  confidence,
		Price:       price,
		Volume:      quantity,
		StrategyID:  s.id,
		Timestamp:   s.now(),
		Reason:      reason,
		Position:    pos.Snapshot(),
		Conditions:  cond,
		ExpectedPnL: &expected,
	}
}

func (s *StopLossAveraging) suspend(ctx context.Context, reason string) {
	if s.status.Suspended {
		return
	}
	s.status = domain.StrategyStatus{Suspended: true, Reason: reason}
	s.logger.Warn(ctx, "Strategy suspended", map[string]interface{}{
		"strategyID": s.id, "reason": reason,
	})
}

func (s *StopLossAveraging) applyRealized(realized float64, isStopLoss bool) {
	s.dailyPnL += realized
	if isStopLoss {
		s.consecutiveLosses++
	} else if realized > 0 {
		s.consecutiveLosses = 0
	}
}

func (s *StopLossAveraging) stopLossHit(pnlRate float64) bool {
	return pnlRate <= s.cfg.StopLossLevel+stopLossTolerance
}

// takeProfitLevel is the configured target plus both fee legs, so the target
// is net of fees.
func (s *StopLossAveraging) takeProfitLevel() float64 {
	return s.cfg.TargetProfit + 2*s.cfg.TradingFee*100
}

func (s *StopLossAveraging) marketInScope(market string) bool {
	if len(s.cfg.Markets) == 0 {
		return true
	}
	for _, m := range s.cfg.Markets {
		if m == market {
			return true
		}
	}
	return false
}

func (s *StopLossAveraging) partialFor(market string) *PartialSellManager {
	if m, ok := s.partials[market]; ok {
		return m
	}
	m := newPartialSeller(s.cfg.TargetProfit, s.rungs)
	s.partials[market] = m
	return m
}

func (s *StopLossAveraging) trailingFor(market string) *TrailingStopManager {
	if m, ok := s.trailings[market]; ok {
		return m
	}
	m := newTrailingStop(s.trailingActivation, s.trailingPct)
	s.trailings[market] = m
	return m
}

func (s *StopLossAveraging) resetExitState(market string) {
	delete(s.partials, market)
	delete(s.trailings, market)
}
