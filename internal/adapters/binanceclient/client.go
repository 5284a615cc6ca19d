package binanceclient

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"cryptoScalpBot/internal/domain"
	"cryptoScalpBot/internal/ports"

	binance "github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
)

const (
	baseURLProduction = "https://api.binance.com"
	baseURLTestnet    = "https://testnet.binance.vision"

	defaultKlineInterval = "1m"
)

// Client implements the ports.ExchangeClient interface using the go-binance
// spot API.
type Client struct {
	spotClient    *binance.Client
	logger        ports.Logger
	klineInterval string
}

// Config holds configuration specific to the Binance client adapter.
type Config struct {
	APIKey        string
	SecretKey     string
	UseTestnet    bool
	KlineInterval string // Candle interval for the rolling window (default "1m")
	Logger        ports.Logger
}

// New creates a new Binance client adapter.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Binance client")
	}
	if cfg.APIKey == "" || cfg.SecretKey == "" {
		cfg.Logger.Warn(context.Background(), "APIKey or SecretKey is empty. Client will only work for public endpoints.")
	}

	client := binance.NewClient(cfg.APIKey, cfg.SecretKey)

	if cfg.UseTestnet {
		client.BaseURL = baseURLTestnet
		cfg.Logger.Info(context.Background(), "Binance client configured for Testnet", map[string]interface{}{"baseURL": client.BaseURL})
	} else {
		client.BaseURL = baseURLProduction
		cfg.Logger.Info(context.Background(), "Binance client configured for Production", map[string]interface{}{"baseURL": client.BaseURL})
	}

	interval := cfg.KlineInterval
	if interval == "" {
		interval = defaultKlineInterval
	}

	return &Client{
		spotClient:    client,
		logger:        cfg.Logger,
		klineInterval: interval,
	}, nil
}

// handleError translates common Binance API errors into standardized ports errors.
func (c *Client) handleError(ctx context.Context, err error, operation string) error {
	if err == nil {
		return nil
	}

	fields := map[string]interface{}{"operation": operation, "originalError": err.Error()}

	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		fields["apiErrorCode"] = apiErr.Code
		fields["apiErrorMessage"] = apiErr.Message

		var mappedErr error
		switch apiErr.Code {
		case -1003: // Too many requests
			mappedErr = ports.ErrRateLimited
		case -1022: // Signature for this request is not valid
			mappedErr = ports.ErrAuthenticationFailed
		case -2014, -2015: // API-key format invalid / invalid key, IP or permissions
			mappedErr = ports.ErrAuthenticationFailed
		case -2010: // New order rejected
			mappedErr = ports.ErrOrderPlacementFailed
		case -3041: // Insufficient balance
			mappedErr = ports.ErrInsufficientFunds
		default:
			mappedErr = ports.ErrUnknown
		}
		finalErr := fmt.Errorf("%s failed: %w: %w", operation, mappedErr, err)
		c.logger.Error(ctx, err, fmt.Sprintf("%s failed with API error", operation), fields)
		return finalErr
	}

	var finalErr error
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		finalErr = fmt.Errorf("%s failed: %w", operation, err)
	} else if strings.Contains(err.Error(), "use of closed network connection") ||
		strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "connection reset by peer") {
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrConnectionFailed, err)
	} else {
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrUnknown, err)
	}

	c.logger.Error(ctx, err, fmt.Sprintf("%s failed", operation), fields)
	return finalErr
}

// GetMarketData builds a per-tick snapshot for the decision engine: the 24h
// ticker stats plus a rolling window of the most recent windowSize candles
// (close prices and volumes).
func (c *Client) GetMarketData(ctx context.Context, market string, windowSize int) (*domain.MarketData, error) {
	op := "GetMarketData"
	if windowSize <= 0 {
		return nil, fmt.Errorf("%s: window size must be positive, got %d", op, windowSize)
	}

	stats, err := c.spotClient.NewListPriceChangeStatsService().Symbol(market).Do(ctx)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}
	if len(stats) == 0 {
		return nil, c.handleError(ctx, fmt.Errorf("no ticker stats returned for market %s", market), op)
	}

	lastPrice, err := strconv.ParseFloat(stats[0].LastPrice, 64)
	if err != nil {
		return nil, c.handleError(ctx, fmt.Errorf("could not parse last price '%s': %w", stats[0].LastPrice, err), op)
	}
	changePct, err := strconv.ParseFloat(stats[0].PriceChangePercent, 64)
	if err != nil {
		return nil, c.handleError(ctx, fmt.Errorf("could not parse change percent '%s': %w", stats[0].PriceChangePercent, err), op)
	}

	klines, err := c.spotClient.NewKlinesService().
		Symbol(market).
		Interval(c.klineInterval).
		Limit(windowSize).
		Do(ctx)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}

	prices := make([]float64, 0, len(klines))
	volumes := make([]float64, 0, len(klines))
	timestamps := make([]time.Time, 0, len(klines))
	for _, k := range klines {
		closePrice, err := strconv.ParseFloat(k.Close, 64)
		if err != nil {
			return nil, c.handleError(ctx, fmt.Errorf("could not parse kline close '%s': %w", k.Close, err), op)
		}
		volume, err := strconv.ParseFloat(k.Volume, 64)
		if err != nil {
			return nil, c.handleError(ctx, fmt.Errorf("could not parse kline volume '%s': %w", k.Volume, err), op)
		}
		prices = append(prices, closePrice)
		volumes = append(volumes, volume)
		timestamps = append(timestamps, time.UnixMilli(k.CloseTime))
	}

	// The current volume is the latest candle's, so the analyzer's ratio
	// compares like with like against the window baseline.
	currentVolume := 0.0
	if len(volumes) > 0 {
		currentVolume = volumes[len(volumes)-1]
	}

	return &domain.MarketData{
		CurrentTicker: domain.Ticker{
			Market:      market,
			TradePrice:  lastPrice,
			TradeVolume: currentVolume,
			ChangeRate:  changePct / 100,
			Timestamp:   time.UnixMilli(stats[0].CloseTime),
		},
		PriceHistory:  prices,
		VolumeHistory: volumes,
		Timestamps:    timestamps,
	}, nil
}

// GetAccountBalance retrieves the free balance for a specific asset (e.g., "USDT").
func (c *Client) GetAccountBalance(ctx context.Context, asset string) (float64, error) {
	op := "GetAccountBalance"
	account, err := c.spotClient.NewGetAccountService().Do(ctx)
	if err != nil {
		return 0, c.handleError(ctx, err, op)
	}

	for _, bal := range account.Balances {
		if bal.Asset == asset {
			balance, err := strconv.ParseFloat(bal.Free, 64)
			if err != nil {
				parseErr := fmt.Errorf("could not parse balance '%s' for asset %s: %w", bal.Free, asset, err)
				return 0, c.handleError(ctx, parseErr, op)
			}
			return balance, nil
		}
	}

	err = fmt.Errorf("asset %s not found in account balance", asset)
	return 0, c.handleError(ctx, err, op)
}

// PlaceMarketOrder places a spot market order and returns the fill details.
func (c *Client) PlaceMarketOrder(ctx context.Context, market string, side domain.SignalAction, quantity float64) (*ports.OrderResponse, error) {
	op := "PlaceMarketOrder"
	if quantity <= 0 {
		return nil, fmt.Errorf("%s: quantity must be positive, got %f", op, quantity)
	}

	var binanceSide binance.SideType
	switch side {
	case domain.ActionBuy:
		binanceSide = binance.SideTypeBuy
	case domain.ActionSell:
		binanceSide = binance.SideTypeSell
	default:
		return nil, fmt.Errorf("%s: unknown order side %q", op, side)
	}

	order, err := c.spotClient.NewCreateOrderService().
		Symbol(market).
		Side(binanceSide).
		Type(binance.OrderTypeMarket).
		Quantity(strconv.FormatFloat(quantity, 'f', -1, 64)).
		Do(ctx)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}

	resp := translateOrderResponse(order, side)
	c.logger.Info(ctx, op+" successful", map[string]interface{}{
		"market": market, "side": string(side), "quantity": quantity,
		"orderID": resp.OrderID, "avgPrice": resp.AvgPrice, "status": resp.Status,
	})
	return resp, nil
}

// Ping checks the connectivity to the exchange API.
func (c *Client) Ping(ctx context.Context) error {
	op := "Ping"
	if err := c.spotClient.NewPingService().Do(ctx); err != nil {
		return c.handleError(ctx, fmt.Errorf("%w: %w", ports.ErrExchangeUnavailable, err), op)
	}
	c.logger.Debug(ctx, op+" successful")
	return nil
}

// GetServerTime retrieves the current server time from the exchange.
func (c *Client) GetServerTime(ctx context.Context) (time.Time, error) {
	op := "GetServerTime"
	serverTimeMs, err := c.spotClient.NewServerTimeService().Do(ctx)
	if err != nil {
		return time.Time{}, c.handleError(ctx, err, op)
	}
	return time.UnixMilli(serverTimeMs), nil
}

// translateOrderResponse converts the spot order response, deriving the
// average fill price from the cumulative quote quantity.
func translateOrderResponse(order *binance.CreateOrderResponse, side domain.SignalAction) *ports.OrderResponse {
	if order == nil {
		return nil
	}
	execQty, _ := strconv.ParseFloat(order.ExecutedQuantity, 64)
	cumQuote, _ := strconv.ParseFloat(order.CummulativeQuoteQuantity, 64)

	avgPrice := 0.0
	if execQty > 0 {
		avgPrice = cumQuote / execQty
	}

	return &ports.OrderResponse{
		OrderID:     order.OrderID,
		Market:      order.Symbol,
		AvgPrice:    avgPrice,
		ExecutedQty: execQty,
		Status:      string(order.Status),
		Side:        side,
		Timestamp:   time.UnixMilli(order.TransactTime),
	}
}
