package strategies

import (
	"context"
	"errors"
	"testing"
	"time"

	"cryptoScalpBot/internal/domain"
	"cryptoScalpBot/internal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockLogger implements ports.Logger for testing
type mockLogger struct {
	warnMsgs  []string
	errorMsgs []string
}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.warnMsgs = append(m.warnMsgs, msg)
}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
	m.errorMsgs = append(m.errorMsgs, msg)
}

const testMarket = "BTCUSDT"

func newEngine(t *testing.T, cfg Config) *StopLossAveraging {
	t.Helper()
	s, err := NewStopLossAveraging("test-1", cfg, &mockLogger{})
	require.NoError(t, err)
	return s
}

// snapshot builds a full-length window. History is flat at histPrice except
// for the final sample lastPrice, so the sample-to-sample change is
// controllable independently of the ticker price.
func snapshot(tickerPrice, histPrice, lastPrice, tickerVolume float64) *domain.MarketData {
	prices := make([]float64, requiredHistoryLength)
	volumes := make([]float64, requiredHistoryLength)
	timestamps := make([]time.Time, requiredHistoryLength)
	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	for i := range prices {
		prices[i] = histPrice
		volumes[i] = 1.0
		timestamps[i] = base.Add(time.Duration(i) * 5 * time.Second)
	}
	prices[len(prices)-1] = lastPrice

	return &domain.MarketData{
		CurrentTicker: domain.Ticker{
			Market:      testMarket,
			TradePrice:  tickerPrice,
			TradeVolume: tickerVolume,
			ChangeRate:  0.06, // 6% volatility clears the selection gate
			Timestamp:   base.Add(requiredHistoryLength * 5 * time.Second),
		},
		PriceHistory:  prices,
		VolumeHistory: volumes,
		Timestamps:    timestamps,
	}
}

// favorable is a snapshot that passes every entry gate: flat history, high
// volume ratio, high 24h volatility.
func favorable(price float64) *domain.MarketData {
	return snapshot(price, price, price, 2.0)
}

// neutral is a snapshot holding-state evaluations use: flat history, volume
// too thin for a fresh entry.
func neutral(price float64) *domain.MarketData {
	return snapshot(price, price, price, 1.0)
}

// declining carries a -3.5% final sample, which breaches the market-decline
// threshold.
func declining(tickerPrice float64) *domain.MarketData {
	return snapshot(tickerPrice, 100.0, 96.5, 1.0)
}

func openPosition(t *testing.T, s *StopLossAveraging, price, quantity float64) {
	t.Helper()
	_, err := s.UpdatePositionAfterTrade(context.Background(), testMarket, domain.ActionBuy, price, quantity, "ref-buy")
	require.NoError(t, err)
}

func TestNewStopLossAveraging(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(c *Config) {}, wantErr: false},
		{name: "stop loss too deep", mutate: func(c *Config) { c.StopLossLevel = -5.5 }, wantErr: true},
		{name: "stop loss too shallow", mutate: func(c *Config) { c.StopLossLevel = -0.5 }, wantErr: true},
		{name: "averaging trigger too deep", mutate: func(c *Config) { c.AveragingTrigger = -2.5 }, wantErr: true},
		{name: "averaging trigger too shallow", mutate: func(c *Config) { c.AveragingTrigger = -0.4 }, wantErr: true},
		{name: "target profit too small", mutate: func(c *Config) { c.TargetProfit = 0.1 }, wantErr: true},
		{name: "target profit too large", mutate: func(c *Config) { c.TargetProfit = 2.5 }, wantErr: true},
		{name: "averaging count zero", mutate: func(c *Config) { c.MaxAveragingCount = 0 }, wantErr: true},
		{name: "averaging count too high", mutate: func(c *Config) { c.MaxAveragingCount = 4 }, wantErr: true},
		{name: "interval too short", mutate: func(c *Config) { c.MonitoringInterval = time.Second }, wantErr: true},
		{name: "interval too long", mutate: func(c *Config) { c.MonitoringInterval = 2 * time.Minute }, wantErr: true},
		{name: "zero order quantity", mutate: func(c *Config) { c.OrderQuantity = 0 }, wantErr: true},
		{name: "negative fee", mutate: func(c *Config) { c.TradingFee = -0.1 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			s, err := NewStopLossAveraging("test-1", cfg, &mockLogger{})
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ports.ErrConfigurationError))
				return
			}
			require.NoError(t, err)
			require.NotNil(t, s)
			assert.Equal(t, "stop_loss_averaging", s.Name())
			assert.Equal(t, requiredHistoryLength, s.RequiredHistoryLength())
		})
	}

	t.Run("nil logger", func(t *testing.T) {
		_, err := NewStopLossAveraging("test-1", DefaultConfig(), nil)
		require.Error(t, err)
	})

	t.Run("empty id", func(t *testing.T) {
		_, err := NewStopLossAveraging("", DefaultConfig(), &mockLogger{})
		require.Error(t, err)
	})
}

func TestRegistry(t *testing.T) {
	strat, err := New("stop_loss_averaging", "reg-1", DefaultConfig(), &mockLogger{})
	require.NoError(t, err)
	assert.Equal(t, "stop_loss_averaging", strat.Name())

	_, err = New("momentum", "reg-2", DefaultConfig(), &mockLogger{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ports.ErrUnknownStrategy))

	assert.Contains(t, Names(), "stop_loss_averaging")
}

func TestEvaluateSoftGates(t *testing.T) {
	ctx := context.Background()

	t.Run("invalid data is a hard error", func(t *testing.T) {
		s := newEngine(t, DefaultConfig())
		_, err := s.Evaluate(ctx, nil)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ports.ErrInvalidMarketData))

		bad := favorable(100)
		bad.CurrentTicker.TradePrice = 0
		_, err = s.Evaluate(ctx, bad)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ports.ErrInvalidMarketData))
	})

	t.Run("disabled yields no decision", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Enabled = false
		s := newEngine(t, cfg)
		sig, err := s.Evaluate(ctx, favorable(100))
		require.NoError(t, err)
		assert.Nil(t, sig)
	})

	t.Run("market out of scope yields no decision", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Markets = []string{"ETHUSDT"}
		s := newEngine(t, cfg)
		sig, err := s.Evaluate(ctx, favorable(100))
		require.NoError(t, err)
		assert.Nil(t, sig)
	})

	t.Run("short history yields no decision", func(t *testing.T) {
		s := newEngine(t, DefaultConfig())
		data := favorable(100)
		data.PriceHistory = data.PriceHistory[:30]
		data.VolumeHistory = data.VolumeHistory[:30]
		data.Timestamps = data.Timestamps[:30]
		sig, err := s.Evaluate(ctx, data)
		require.NoError(t, err)
		assert.Nil(t, sig)
	})
}

func TestEvaluateInitialBuy(t *testing.T) {
	ctx := context.Background()
	s := newEngine(t, DefaultConfig())

	sig, err := s.Evaluate(ctx, favorable(100))
	require.NoError(t, err)
	require.NotNil(t, sig)

	assert.Equal(t, domain.ActionBuy, sig.Action)
	assert.Equal(t, domain.ReasonInitialBuy, sig.Reason)
	assert.Equal(t, testMarket, sig.Market)
	assert.Equal(t, "test-1", sig.StrategyID)
	assert.InDelta(t, 0.1, sig.Volume, 1e-9)
	// Flat history: RSI 100 (no losses), trend neutral. Volatility and
	// volume each add 0.1 to the 0.5 base.
	assert.InDelta(t, 0.7, sig.Confidence, 1e-9)
	assert.Nil(t, sig.Position)
	assert.Nil(t, sig.ExpectedPnL)
}

func TestEvaluateEntryBlockedByThinVolume(t *testing.T) {
	s := newEngine(t, DefaultConfig())
	sig, err := s.Evaluate(context.Background(), neutral(100))
	require.NoError(t, err)
	assert.Nil(t, sig)
}

func TestEvaluateMarketDeclineSuspends(t *testing.T) {
	ctx := context.Background()
	s := newEngine(t, DefaultConfig())

	sig, err := s.Evaluate(ctx, declining(96.5))
	require.NoError(t, err)
	assert.Nil(t, sig)
	assert.True(t, s.Status().Suspended)
	assert.NotEmpty(t, s.Status().Reason)

	// Suspended: even a perfect entry produces nothing.
	sig, err = s.Evaluate(ctx, favorable(100))
	require.NoError(t, err)
	assert.Nil(t, sig)

	s.Resume(ctx)
	assert.False(t, s.Status().Suspended)

	sig, err = s.Evaluate(ctx, favorable(100))
	require.NoError(t, err)
	require.NotNil(t, sig)
	assert.Equal(t, domain.ReasonInitialBuy, sig.Reason)
}

func TestEvaluateStopLoss(t *testing.T) {
	ctx := context.Background()
	s := newEngine(t, DefaultConfig())
	openPosition(t, s, 100.0, 1.0)

	// At 96 the fee-inclusive rate is about -4.1%, past the -3% level.
	sig, err := s.Evaluate(ctx, neutral(96.0))
	require.NoError(t, err)
	require.NotNil(t, sig)

	assert.Equal(t, domain.ActionSell, sig.Action)
	assert.Equal(t, domain.ReasonStopLoss, sig.Reason)
	assert.InDelta(t, 1.0, sig.Confidence, 1e-9)
	assert.InDelta(t, 1.0, sig.Volume, 1e-9)
	require.NotNil(t, sig.ExpectedPnL)
	assert.InDelta(t, 96.0-100.0-0.05-0.048, *sig.ExpectedPnL, 1e-9)
	require.NotNil(t, sig.Position)
	assert.InDelta(t, 1.0, sig.Position.TotalQuantity, 1e-9)
}

func TestEvaluateStopLossOutranksMarketGates(t *testing.T) {
	// A -3.5% sample decline would suspend, but the stop-loss check runs
	// first for a held position.
	ctx := context.Background()
	s := newEngine(t, DefaultConfig())
	openPosition(t, s, 100.0, 1.0)

	sig, err := s.Evaluate(ctx, declining(96.0))
	require.NoError(t, err)
	require.NotNil(t, sig)
	assert.Equal(t, domain.ReasonStopLoss, sig.Reason)
	assert.False(t, s.Status().Suspended)
}

func TestEvaluateSuspensionOutranksStopLoss(t *testing.T) {
	ctx := context.Background()
	s := newEngine(t, DefaultConfig())
	openPosition(t, s, 100.0, 1.0)

	// Ticker at 99 keeps the position above the stop level while the
	// sample decline suspends the strategy.
	sig, err := s.Evaluate(ctx, declining(99.0))
	require.NoError(t, err)
	assert.Nil(t, sig)
	require.True(t, s.Status().Suspended)

	// Next tick the price has collapsed past the stop level, but the
	// standing suspension blocks everything, stop-loss included.
	sig, err = s.Evaluate(ctx, neutral(96.0))
	require.NoError(t, err)
	assert.Nil(t, sig)
}

func TestEvaluateAveraging(t *testing.T) {
	ctx := context.Background()
	s := newEngine(t, DefaultConfig())
	openPosition(t, s, 100.0, 1.0)

	// About -1.3% at 98.8: past the -1% trigger, above the stop level.
	sig, err := s.Evaluate(ctx, neutral(98.8))
	require.NoError(t, err)
	require.NotNil(t, sig)

	assert.Equal(t, domain.ActionBuy, sig.Action)
	assert.Equal(t, domain.ReasonAveraging, sig.Reason)
	assert.InDelta(t, 0.7, sig.Confidence, 1e-9)
	// Averaging buys repeat the initial fill quantity.
	assert.InDelta(t, 1.0, sig.Volume, 1e-9)
	require.NotNil(t, sig.Position)
}

func TestEvaluateAveragingCap(t *testing.T) {
	ctx := context.Background()
	s := newEngine(t, DefaultConfig())
	openPosition(t, s, 100.0, 1.0)

	_, err := s.UpdatePositionAfterTrade(ctx, testMarket, domain.ActionBuy, 98.8, 1.0, "ref-avg")
	require.NoError(t, err)

	// Blended basis 99.4; at 97 the rate is about -2.5%: the trigger is
	// breached again but the single averaging allowance is spent.
	sig, err := s.Evaluate(ctx, neutral(97.0))
	require.NoError(t, err)
	assert.Nil(t, sig)
}

func TestEvaluatePartialSell(t *testing.T) {
	ctx := context.Background()
	s := newEngine(t, DefaultConfig())
	openPosition(t, s, 100.0, 1.0)

	// About +0.40% at 100.5: half the 0.5% target reached, first rung sells 30%.
	sig, err := s.Evaluate(ctx, neutral(100.5))
	require.NoError(t, err)
	require.NotNil(t, sig)

	assert.Equal(t, domain.ActionSell, sig.Action)
	assert.Equal(t, domain.ReasonPartialSell, sig.Reason)
	assert.InDelta(t, 0.8, sig.Confidence, 1e-9)
	assert.InDelta(t, 0.3, sig.Volume, 1e-9)
	require.NotNil(t, sig.ExpectedPnL)
	assert.InDelta(t, (100.5-100.0-0.05-0.05025)*0.3, *sig.ExpectedPnL, 1e-9)

	// Evaluate does not consume the rung: the same tick replayed produces
	// the same signal.
	again, err := s.Evaluate(ctx, neutral(100.5))
	require.NoError(t, err)
	require.NotNil(t, again)
	assert.Equal(t, domain.ReasonPartialSell, again.Reason)
	assert.InDelta(t, sig.Volume, again.Volume, 1e-9)

	// Reconciling the fill consumes the rung; the same profit level goes quiet.
	_, err = s.UpdatePositionAfterTrade(ctx, testMarket, domain.ActionSell, 100.5, 0.3, "ref-ps")
	require.NoError(t, err)

	sig, err = s.Evaluate(ctx, neutral(100.5))
	require.NoError(t, err)
	assert.Nil(t, sig)
}

func TestEvaluateTakeProfit(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	// Push the rungs out of reach so the full take-profit path is exercised.
	cfg.PartialSellRungs = []SellRung{{Threshold: 3.0, Ratio: 0.5}}
	s := newEngine(t, cfg)
	openPosition(t, s, 100.0, 1.0)

	// About +0.70% at 100.8: past the 0.6% fee-adjusted target.
	sig, err := s.Evaluate(ctx, neutral(100.8))
	require.NoError(t, err)
	require.NotNil(t, sig)

	assert.Equal(t, domain.ActionSell, sig.Action)
	assert.Equal(t, domain.ReasonTakeProfit, sig.Reason)
	assert.InDelta(t, 0.9, sig.Confidence, 1e-9)
	assert.InDelta(t, 1.0, sig.Volume, 1e-9)
	require.NotNil(t, sig.ExpectedPnL)
	assert.Positive(t, *sig.ExpectedPnL)
}

func TestEvaluateTrailingStop(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.PartialSellRungs = []SellRung{{Threshold: 3.0, Ratio: 0.5}}
	s := newEngine(t, cfg)
	openPosition(t, s, 100.0, 1.0)

	// About +0.90% at 101: arms the trailing stop (activation 0.75%).
	// Take-profit fires the same tick, but the signal is not reconciled.
	sig, err := s.Evaluate(ctx, neutral(101.0))
	require.NoError(t, err)
	require.NotNil(t, sig)
	assert.Equal(t, domain.ReasonTakeProfit, sig.Reason)

	// The price then falls 1% below the 101 high: the trailing stop exits
	// the full position ahead of the rest of the ladder.
	sig, err = s.Evaluate(ctx, neutral(99.9))
	require.NoError(t, err)
	require.NotNil(t, sig)
	assert.Equal(t, domain.ReasonTrailingStop, sig.Reason)
	assert.InDelta(t, 1.0, sig.Confidence, 1e-9)
	assert.InDelta(t, 1.0, sig.Volume, 1e-9)
}

func TestEvaluateRiskSuspendsEntries(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.Risk.DailyLossLimit = 100
	s := newEngine(t, cfg)

	pnl := -200.0
	s.SeedTradeHistory(ctx, []*domain.Trade{{
		Market:    testMarket,
		Side:      domain.ActionSell,
		Price:     99,
		Quantity:  1,
		Timestamp: time.Now(),
		PnL:       &pnl,
	}})

	sig, err := s.Evaluate(ctx, favorable(100))
	require.NoError(t, err)
	assert.Nil(t, sig)
	assert.True(t, s.Status().Suspended)
	assert.Equal(t, "risk limits exceeded", s.Status().Reason)
}

func TestEvaluateIsRepeatableOnIdenticalInput(t *testing.T) {
	ctx := context.Background()
	s := newEngine(t, DefaultConfig())

	first, err := s.Evaluate(ctx, favorable(100))
	require.NoError(t, err)
	second, err := s.Evaluate(ctx, favorable(100))
	require.NoError(t, err)

	require.NotNil(t, first)
	require.NotNil(t, second)
	assert.Equal(t, first.Reason, second.Reason)
	assert.InDelta(t, first.Confidence, second.Confidence, 1e-9)
	assert.InDelta(t, first.Volume, second.Volume, 1e-9)
	// No position appeared out of evaluation alone.
	assert.Nil(t, s.Position(testMarket))
}

func TestUpdatePositionAfterTrade(t *testing.T) {
	ctx := context.Background()

	t.Run("invalid parameters", func(t *testing.T) {
		s := newEngine(t, DefaultConfig())
		_, err := s.UpdatePositionAfterTrade(ctx, "", domain.ActionBuy, 100, 1, "ref")
		require.Error(t, err)
		_, err = s.UpdatePositionAfterTrade(ctx, testMarket, domain.ActionBuy, 0, 1, "ref")
		require.Error(t, err)
		_, err = s.UpdatePositionAfterTrade(ctx, testMarket, domain.ActionSell, 100, 1, "ref")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ports.ErrPositionNotFound))
	})

	t.Run("buys build the position", func(t *testing.T) {
		s := newEngine(t, DefaultConfig())
		trade, err := s.UpdatePositionAfterTrade(ctx, testMarket, domain.ActionBuy, 100, 1, "ref-1")
		require.NoError(t, err)
		assert.Equal(t, domain.ActionBuy, trade.Side)
		assert.Nil(t, trade.PnL)

		_, err = s.UpdatePositionAfterTrade(ctx, testMarket, domain.ActionBuy, 98.8, 1, "ref-2")
		require.NoError(t, err)

		pos := s.Position(testMarket)
		require.NotNil(t, pos)
		assert.InDelta(t, 99.4, pos.AveragePrice, 1e-9)
		assert.InDelta(t, 2.0, pos.TotalQuantity, 1e-9)
		assert.Equal(t, 1, pos.AveragingCount())
	})

	t.Run("stop-loss close records loss and streak", func(t *testing.T) {
		s := newEngine(t, DefaultConfig())
		openPosition(t, s, 100.0, 1.0)

		trade, err := s.UpdatePositionAfterTrade(ctx, testMarket, domain.ActionSell, 96.0, 1.0, "ref-sl")
		require.NoError(t, err)
		require.NotNil(t, trade.PnL)
		assert.InDelta(t, 96.0-100.0-0.05-0.048, *trade.PnL, 1e-9)
		assert.True(t, trade.IsStopLoss)

		assert.Nil(t, s.Position(testMarket))
		info := s.Info()
		assert.Equal(t, 1, info["consecutiveLosses"])
		assert.Equal(t, 0, info["positionCount"])
		assert.InDelta(t, *trade.PnL, info["dailyPnL"].(float64), 1e-9)
	})

	t.Run("profitable close resets the streak", func(t *testing.T) {
		s := newEngine(t, DefaultConfig())
		openPosition(t, s, 100.0, 1.0)
		_, err := s.UpdatePositionAfterTrade(ctx, testMarket, domain.ActionSell, 96.0, 1.0, "ref-sl")
		require.NoError(t, err)
		require.Equal(t, 1, s.Info()["consecutiveLosses"])

		openPosition(t, s, 96.0, 1.0)
		trade, err := s.UpdatePositionAfterTrade(ctx, testMarket, domain.ActionSell, 98.0, 1.0, "ref-tp")
		require.NoError(t, err)
		assert.False(t, trade.IsStopLoss)
		assert.Positive(t, *trade.PnL)
		assert.Equal(t, 0, s.Info()["consecutiveLosses"])
	})

	t.Run("partial close keeps the position and realizes pro-rata", func(t *testing.T) {
		s := newEngine(t, DefaultConfig())
		openPosition(t, s, 100.0, 1.0)

		trade, err := s.UpdatePositionAfterTrade(ctx, testMarket, domain.ActionSell, 100.5, 0.3, "ref-ps")
		require.NoError(t, err)
		require.NotNil(t, trade.PnL)
		assert.InDelta(t, (100.5-100.0-0.05-0.05025)*0.3, *trade.PnL, 1e-9)
		assert.False(t, trade.IsStopLoss)

		pos := s.Position(testMarket)
		require.NotNil(t, pos)
		assert.InDelta(t, 0.7, pos.TotalQuantity, 1e-9)
	})
}

func TestAveragingAfterPartialSellKeepsHolding(t *testing.T) {
	ctx := context.Background()
	s := newEngine(t, DefaultConfig())
	openPosition(t, s, 100.0, 1.0)

	_, err := s.UpdatePositionAfterTrade(ctx, testMarket, domain.ActionSell, 100.5, 0.3, "ref-ps")
	require.NoError(t, err)

	// The averaging fill must not resurrect the 0.3 already sold.
	_, err = s.UpdatePositionAfterTrade(ctx, testMarket, domain.ActionBuy, 98.0, 0.7, "ref-avg")
	require.NoError(t, err)

	pos := s.Position(testMarket)
	require.NotNil(t, pos)
	assert.InDelta(t, 1.4, pos.TotalQuantity, 1e-9)
	assert.InDelta(t, 138.6, pos.TotalCost, 1e-9)
	assert.InDelta(t, 99.0, pos.AveragePrice, 1e-9)

	// A later full exit sells exactly what is held.
	sig, err := s.Evaluate(ctx, neutral(94.0))
	require.NoError(t, err)
	require.NotNil(t, sig)
	assert.Equal(t, domain.ReasonStopLoss, sig.Reason)
	assert.InDelta(t, 1.4, sig.Volume, 1e-9)
}

func TestExitStateReArmsOnReopen(t *testing.T) {
	ctx := context.Background()
	s := newEngine(t, DefaultConfig())
	openPosition(t, s, 100.0, 1.0)

	// Spend the averaging allowance and the first rung.
	_, err := s.UpdatePositionAfterTrade(ctx, testMarket, domain.ActionBuy, 98.8, 1.0, "ref-avg")
	require.NoError(t, err)
	_, err = s.UpdatePositionAfterTrade(ctx, testMarket, domain.ActionSell, 100.0, 0.5, "ref-ps")
	require.NoError(t, err)

	// Roughly -2.0% on the blended basis: the trigger is breached but the
	// single averaging allowance is spent.
	sig, err := s.Evaluate(ctx, neutral(97.5))
	require.NoError(t, err)
	assert.Nil(t, sig)

	// Stop out the rest and reopen the market.
	trade, err := s.UpdatePositionAfterTrade(ctx, testMarket, domain.ActionSell, 95.5, 1.5, "ref-sl")
	require.NoError(t, err)
	assert.True(t, trade.IsStopLoss)
	require.Nil(t, s.Position(testMarket))
	openPosition(t, s, 100.0, 1.0)

	// The fresh position starts with a full averaging allowance.
	sig, err = s.Evaluate(ctx, neutral(98.8))
	require.NoError(t, err)
	require.NotNil(t, sig)
	assert.Equal(t, domain.ReasonAveraging, sig.Reason)

	// And a re-armed ladder: rung one fires again at half the target.
	sig, err = s.Evaluate(ctx, neutral(100.5))
	require.NoError(t, err)
	require.NotNil(t, sig)
	assert.Equal(t, domain.ReasonPartialSell, sig.Reason)
	assert.InDelta(t, 0.3, sig.Volume, 1e-9)
}

func TestAveragedStopLossScenario(t *testing.T) {
	// Entry at 100, averaging at 98.8, collapse to 96.3: the blended basis
	// is 99.4 and the fee-inclusive rate about -3.2%, so the whole doubled
	// position exits at the stop level.
	ctx := context.Background()
	s := newEngine(t, DefaultConfig())

	sig, err := s.Evaluate(ctx, favorable(100))
	require.NoError(t, err)
	require.NotNil(t, sig)
	require.Equal(t, domain.ReasonInitialBuy, sig.Reason)
	_, err = s.UpdatePositionAfterTrade(ctx, testMarket, domain.ActionBuy, sig.Price, 1.0, "ref-1")
	require.NoError(t, err)

	sig, err = s.Evaluate(ctx, neutral(98.8))
	require.NoError(t, err)
	require.NotNil(t, sig)
	require.Equal(t, domain.ReasonAveraging, sig.Reason)
	_, err = s.UpdatePositionAfterTrade(ctx, testMarket, domain.ActionBuy, sig.Price, sig.Volume, "ref-2")
	require.NoError(t, err)

	sig, err = s.Evaluate(ctx, neutral(96.3))
	require.NoError(t, err)
	require.NotNil(t, sig)
	assert.Equal(t, domain.ReasonStopLoss, sig.Reason)
	assert.InDelta(t, 2.0, sig.Volume, 1e-9)

	trade, err := s.UpdatePositionAfterTrade(ctx, testMarket, domain.ActionSell, 96.3, sig.Volume, "ref-3")
	require.NoError(t, err)
	require.NotNil(t, trade.PnL)
	// value 192.6 against cost 198.8 plus both fee legs.
	assert.InDelta(t, 192.6-198.8-198.8*0.0005-192.6*0.0005, *trade.PnL, 1e-9)
	assert.True(t, trade.IsStopLoss)
	assert.Nil(t, s.Position(testMarket))
}

func TestSeedTradeHistory(t *testing.T) {
	ctx := context.Background()
	s := newEngine(t, DefaultConfig())

	loss := -150.0
	now := time.Now()
	s.SeedTradeHistory(ctx, []*domain.Trade{
		{Market: testMarket, Side: domain.ActionSell, Price: 99, Quantity: 1, Timestamp: now.Add(-time.Hour), IsStopLoss: true, PnL: &loss},
		{Market: testMarket, Side: domain.ActionSell, Price: 98, Quantity: 1, Timestamp: now, IsStopLoss: true, PnL: &loss},
	})

	info := s.Info()
	assert.InDelta(t, -300.0, info["dailyPnL"].(float64), 1e-9)
	assert.Equal(t, 2, info["consecutiveLosses"])
	assert.InDelta(t, 300.0, info["dailyLoss"].(float64), 1e-9)
	assert.Equal(t, 2, info["tradesToday"])
}

func TestInfo(t *testing.T) {
	s := newEngine(t, DefaultConfig())
	info := s.Info()

	assert.Equal(t, "test-1", info["strategyID"])
	assert.Equal(t, "stop_loss_averaging", info["type"])
	assert.InDelta(t, -3.0, info["stopLossLevel"].(float64), 1e-9)
	assert.InDelta(t, -1.0, info["averagingTrigger"].(float64), 1e-9)
	assert.InDelta(t, 0.5, info["targetProfit"].(float64), 1e-9)
	assert.Equal(t, 1, info["maxAveragingCount"])
	assert.Equal(t, false, info["suspended"])
	assert.Equal(t, 0, info["positionCount"])
}
