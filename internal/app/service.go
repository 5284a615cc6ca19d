package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"cryptoScalpBot/config"
	"cryptoScalpBot/internal/domain"
	"cryptoScalpBot/internal/ports"
)

// historySeeder is implemented by strategies that can replay today's journal
// into their risk state after a restart.
type historySeeder interface {
	SeedTradeHistory(ctx context.Context, trades []*domain.Trade)
}

// serverClock is implemented by exchange adapters that expose the exchange's
// server time.
type serverClock interface {
	GetServerTime(ctx context.Context) (time.Time, error)
}

// maxClockDrift is the local-vs-exchange clock skew beyond which signed
// requests risk rejection by the exchange's recvWindow.
const maxClockDrift = 5 * time.Second

// TradingService drives the decision engine: it polls market data at the
// monitoring interval, executes the signals the strategy emits, and
// reconciles fills back into the strategy and the trade journal.
type TradingService struct {
	cfg       *config.Config
	logger    ports.Logger
	exchange  ports.ExchangeClient
	tradeRepo ports.TradeRepository
	strategy  ports.Strategy
}

// NewTradingService creates a new application service instance.
func NewTradingService(
	cfg *config.Config,
	logger ports.Logger,
	exchange ports.ExchangeClient,
	tradeRepo ports.TradeRepository,
	strat ports.Strategy,
) (*TradingService, error) {
	if cfg == nil || logger == nil || exchange == nil || tradeRepo == nil || strat == nil {
		return nil, fmt.Errorf("missing required dependencies for TradingService")
	}
	if cfg.Market == "" {
		return nil, fmt.Errorf("configuration Market must be set")
	}
	if cfg.MonitoringInterval <= 0 {
		return nil, fmt.Errorf("configuration MonitoringInterval must be positive")
	}

	return &TradingService{
		cfg:       cfg,
		logger:    logger,
		exchange:  exchange,
		tradeRepo: tradeRepo,
		strategy:  strat,
	}, nil
}

// Start runs the polling loop until the context is cancelled or a shutdown
// signal arrives. Per-tick failures are logged and the loop continues; only
// startup failures are fatal.
func (s *TradingService) Start(ctx context.Context) error {
	s.logger.Info(ctx, "Starting Trading Service...", map[string]interface{}{
		"market": s.cfg.Market, "strategy": s.strategy.Name(), "interval": s.cfg.MonitoringInterval.String(),
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		s.logger.Info(ctx, "Received shutdown signal", map[string]interface{}{"signal": sig.String()})
		cancel()
	}()

	if err := s.exchange.Ping(ctx); err != nil {
		s.logger.Error(ctx, err, "Exchange connectivity check failed")
		return fmt.Errorf("exchange connectivity check failed: %w", err)
	}
	s.logger.Info(ctx, "Exchange connectivity verified")

	if clock, ok := s.exchange.(serverClock); ok {
		if serverTime, err := clock.GetServerTime(ctx); err != nil {
			s.logger.Warn(ctx, "Could not read exchange server time", map[string]interface{}{"error": err.Error()})
		} else if drift := time.Since(serverTime); drift.Abs() > maxClockDrift {
			s.logger.Warn(ctx, "Local clock drifts from exchange time, signed requests may be rejected", map[string]interface{}{
				"drift": drift.String(), "allowed": maxClockDrift.String(),
			})
		}
	}

	// Replay today's journal so a restart does not forget the day's losses.
	trades, err := s.tradeRepo.FindTodayByMarket(ctx, s.cfg.Market)
	if err != nil {
		s.logger.Error(ctx, err, "Failed to load today's trades from journal")
		return fmt.Errorf("failed to load today's trades: %w", err)
	}
	if seeder, ok := s.strategy.(historySeeder); ok && len(trades) > 0 {
		seeder.SeedTradeHistory(ctx, trades)
		s.logger.Info(ctx, "Replayed today's journal into strategy state", map[string]interface{}{
			"market": s.cfg.Market, "trades": len(trades),
		})
	}

	ticker := time.NewTicker(s.cfg.MonitoringInterval)
	defer ticker.Stop()

	s.logger.Info(ctx, "Trading loop started")
	for {
		select {
		case <-ctx.Done():
			s.logger.Info(ctx, "Trading loop stopped")
			return nil
		case <-ticker.C:
			if err := s.tick(ctx); err != nil {
				s.logger.Error(ctx, err, "Tick failed", map[string]interface{}{"market": s.cfg.Market})
			}
		}
	}
}

// tick fetches a snapshot, evaluates it and executes at most one signal.
func (s *TradingService) tick(ctx context.Context) error {
	data, err := s.exchange.GetMarketData(ctx, s.cfg.Market, s.strategy.RequiredHistoryLength())
	if err != nil {
		return fmt.Errorf("fetch market data: %w", err)
	}

	sig, err := s.strategy.Evaluate(ctx, data)
	if err != nil {
		return fmt.Errorf("evaluate market data: %w", err)
	}
	if sig == nil {
		return nil
	}

	s.logger.Info(ctx, "Signal generated", map[string]interface{}{
		"market": sig.Market, "action": string(sig.Action), "reason": string(sig.Reason),
		"confidence": sig.Confidence, "price": sig.Price, "volume": sig.Volume,
	})
	return s.executeSignal(ctx, sig)
}

// executeSignal places the order and reconciles the fill. The journal write
// happens last; the strategy state is already consistent, so a journal
// failure is logged rather than halting trading.
func (s *TradingService) executeSignal(ctx context.Context, sig *domain.Signal) error {
	order, err := s.exchange.PlaceMarketOrder(ctx, sig.Market, sig.Action, sig.Volume)
	if err != nil {
		return fmt.Errorf("place %s order for %s: %w", sig.Action, sig.Market, err)
	}

	fillPrice := order.AvgPrice
	if fillPrice <= 0 {
		fillPrice = sig.Price
	}
	fillQty := order.ExecutedQty
	if fillQty <= 0 {
		fillQty = sig.Volume
	}
	orderRef := strconv.FormatInt(order.OrderID, 10)

	trade, err := s.strategy.UpdatePositionAfterTrade(ctx, sig.Market, sig.Action, fillPrice, fillQty, orderRef)
	if err != nil {
		return fmt.Errorf("reconcile fill for %s: %w", sig.Market, err)
	}

	if _, err := s.tradeRepo.CreateTrade(ctx, trade); err != nil {
		s.logger.Error(ctx, err, "Failed to journal trade", map[string]interface{}{
			"market": trade.Market, "side": string(trade.Side), "orderRef": orderRef,
		})
	}
	return nil
}

// Status returns the strategy's diagnostic snapshot.
func (s *TradingService) Status() map[string]interface{} {
	return s.strategy.Info()
}
