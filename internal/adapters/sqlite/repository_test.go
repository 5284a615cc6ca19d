package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"cryptoScalpBot/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockLogger implements ports.Logger for testing
type mockLogger struct {
	errorMsgs []string
}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
	m.errorMsgs = append(m.errorMsgs, msg)
}

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := NewRepository(Config{
		DBPath: filepath.Join(t.TempDir(), "trades.db"),
		Logger: &mockLogger{},
	})
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func pnlPtr(v float64) *float64 { return &v }

func TestNewRepository(t *testing.T) {
	t.Run("requires a logger", func(t *testing.T) {
		_, err := NewRepository(Config{DBPath: filepath.Join(t.TempDir(), "trades.db")})
		require.Error(t, err)
	})

	t.Run("creates the schema on open", func(t *testing.T) {
		repo := newTestRepo(t)

		// The trades table exists: an empty query succeeds.
		trades, err := repo.FindTodayByMarket(context.Background(), "BTCUSDT")
		require.NoError(t, err)
		assert.Empty(t, trades)
	})

	t.Run("reopening an existing journal keeps the data", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "trades.db")
		logger := &mockLogger{}
		ctx := context.Background()

		repo, err := NewRepository(Config{DBPath: dbPath, Logger: logger})
		require.NoError(t, err)
		_, err = repo.CreateTrade(ctx, &domain.Trade{
			Market: "BTCUSDT", Side: domain.ActionBuy, Price: 100, Quantity: 1, Timestamp: time.Now(),
		})
		require.NoError(t, err)
		require.NoError(t, repo.Close())

		reopened, err := NewRepository(Config{DBPath: dbPath, Logger: logger})
		require.NoError(t, err)
		defer reopened.Close()

		trades, err := reopened.FindTodayByMarket(ctx, "BTCUSDT")
		require.NoError(t, err)
		assert.Len(t, trades, 1)
	})
}

func TestCreateTradeAndFindTodayByMarket(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	now := time.Now()

	id1, err := repo.CreateTrade(ctx, &domain.Trade{
		Market:    "BTCUSDT",
		Side:      domain.ActionBuy,
		Price:     100.0,
		Quantity:  1.0,
		Timestamp: now.Add(-2 * time.Minute),
	})
	require.NoError(t, err)
	assert.Positive(t, id1)

	id2, err := repo.CreateTrade(ctx, &domain.Trade{
		Market:     "BTCUSDT",
		Side:       domain.ActionSell,
		Price:      96.0,
		Quantity:   1.0,
		Timestamp:  now,
		IsStopLoss: true,
		PnL:        pnlPtr(-4.098),
	})
	require.NoError(t, err)
	assert.Greater(t, id2, id1)

	// Other markets stay out of the result.
	_, err = repo.CreateTrade(ctx, &domain.Trade{
		Market: "ETHUSDT", Side: domain.ActionBuy, Price: 10, Quantity: 1, Timestamp: now,
	})
	require.NoError(t, err)

	trades, err := repo.FindTodayByMarket(ctx, "BTCUSDT")
	require.NoError(t, err)
	require.Len(t, trades, 2)

	// Chronological order, buy first.
	assert.Equal(t, domain.ActionBuy, trades[0].Side)
	assert.Nil(t, trades[0].PnL)
	assert.False(t, trades[0].IsStopLoss)

	assert.Equal(t, domain.ActionSell, trades[1].Side)
	assert.InDelta(t, 96.0, trades[1].Price, 1e-9)
	assert.True(t, trades[1].IsStopLoss)
	require.NotNil(t, trades[1].PnL)
	assert.InDelta(t, -4.098, *trades[1].PnL, 1e-9)
}

func TestSumTodayLossByMarket(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	now := time.Now()

	t.Run("empty journal sums to zero", func(t *testing.T) {
		loss, err := repo.SumTodayLossByMarket(ctx, "BTCUSDT")
		require.NoError(t, err)
		assert.InDelta(t, 0.0, loss, 1e-9)
	})

	seed := []*domain.Trade{
		{Market: "BTCUSDT", Side: domain.ActionSell, Price: 99, Quantity: 1, Timestamp: now, PnL: pnlPtr(-10.0), IsStopLoss: true},
		{Market: "BTCUSDT", Side: domain.ActionSell, Price: 99, Quantity: 1, Timestamp: now, PnL: pnlPtr(-5.5), IsStopLoss: true},
		{Market: "BTCUSDT", Side: domain.ActionSell, Price: 101, Quantity: 1, Timestamp: now, PnL: pnlPtr(3.0)},
		{Market: "BTCUSDT", Side: domain.ActionBuy, Price: 100, Quantity: 1, Timestamp: now},
		{Market: "ETHUSDT", Side: domain.ActionSell, Price: 10, Quantity: 1, Timestamp: now, PnL: pnlPtr(-99.0)},
	}
	for _, trade := range seed {
		_, err := repo.CreateTrade(ctx, trade)
		require.NoError(t, err)
	}

	t.Run("sums only this market's losses as a positive number", func(t *testing.T) {
		loss, err := repo.SumTodayLossByMarket(ctx, "BTCUSDT")
		require.NoError(t, err)
		assert.InDelta(t, 15.5, loss, 1e-9)
	})
}
