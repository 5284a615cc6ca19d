package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"cryptoScalpBot/internal/adapters/logger"
)

// Config holds all application configuration. The strategy constructor
// enforces the trading-range limits; this layer only collects presence and
// parse errors.
type Config struct {
	// Binance API
	APIKey    string
	SecretKey string
	IsTestnet bool

	// Trading Parameters
	Market             string  // e.g., "BTCUSDT"
	QuoteAsset         string  // e.g., "USDT"
	StrategyType       string  // Registered strategy kind
	StrategyID         string  // Instance identifier carried on signals
	StopLossLevel      float64 // Percent, e.g., -3.0
	AveragingTrigger   float64 // Percent, e.g., -1.0
	TargetProfit       float64 // Percent, e.g., 0.5
	MaxAveragingCount  int
	TradingFee         float64 // Per-leg fee fraction, e.g., 0.0005
	OrderQuantity      float64 // Base-asset quantity per initial buy
	AccountBalance     float64 // Quote-currency balance the risk checks assume
	MinOrderAmount     float64
	MonitoringInterval time.Duration

	// Exit Parameters
	TrailingActivationProfit float64 // Percent; 0 derives from TargetProfit
	TrailingPercentage       float64 // Percent; 0 uses the default trail

	// Analyzer Parameters
	VolatilityThreshold    float64
	VolumeRatioThreshold   float64
	RapidDeclineThreshold  float64
	RSIOversoldThreshold   float64
	MarketDeclineThreshold float64
	RSIPeriod              int

	// Risk Parameters
	DailyLossLimit       float64
	ConsecutiveLossLimit int
	MinBalanceThreshold  float64

	// Database
	DBPath string

	// Logging
	LogLevel logger.LogLevel
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var err error
	var errs []string

	// Binance API
	cfg.APIKey = getEnv("BINANCE_API_KEY", "")
	cfg.SecretKey = getEnv("BINANCE_API_SECRET", "")
	cfg.IsTestnet = getEnvAsBool("IS_TESTNET", true) // Default to testnet for safety

	if cfg.APIKey == "" {
		errs = append(errs, "BINANCE_API_KEY must be set")
	}
	if cfg.SecretKey == "" {
		errs = append(errs, "BINANCE_API_SECRET must be set")
	}

	// Trading Parameters
	cfg.Market = getEnv("MARKET", "BTCUSDT")
	if cfg.Market == "" {
		errs = append(errs, "MARKET must be set")
	}
	cfg.QuoteAsset = getEnv("QUOTE_ASSET", "USDT")
	cfg.StrategyType = getEnv("STRATEGY_TYPE", "stop_loss_averaging")
	cfg.StrategyID = getEnv("STRATEGY_ID", "scalp-1")

	cfg.StopLossLevel, err = getEnvAsFloatRequired("STOP_LOSS_LEVEL", -3.0)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid STOP_LOSS_LEVEL: %v", err))
	}
	cfg.AveragingTrigger, err = getEnvAsFloatRequired("AVERAGING_TRIGGER", -1.0)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid AVERAGING_TRIGGER: %v", err))
	}
	cfg.TargetProfit, err = getEnvAsFloatRequired("TARGET_PROFIT", 0.5)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid TARGET_PROFIT: %v", err))
	}
	cfg.MaxAveragingCount, err = getEnvAsIntRequired("MAX_AVERAGING_COUNT", 1)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MAX_AVERAGING_COUNT: %v", err))
	}
	cfg.TradingFee, err = getEnvAsFloatRequired("TRADING_FEE", 0.0005)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid TRADING_FEE: %v", err))
	} else if cfg.TradingFee < 0 || cfg.TradingFee >= 1 {
		errs = append(errs, "TRADING_FEE must be within [0.0, 1.0)")
	}
	cfg.OrderQuantity, err = getEnvAsFloatRequired("ORDER_QUANTITY", 0.1)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid ORDER_QUANTITY: %v", err))
	} else if cfg.OrderQuantity <= 0 {
		errs = append(errs, "ORDER_QUANTITY must be positive")
	}
	cfg.AccountBalance, err = getEnvAsFloatRequired("ACCOUNT_BALANCE", 100000.0)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid ACCOUNT_BALANCE: %v", err))
	} else if cfg.AccountBalance < 0 {
		errs = append(errs, "ACCOUNT_BALANCE cannot be negative")
	}
	cfg.MinOrderAmount, err = getEnvAsFloatRequired("MIN_ORDER_AMOUNT", 5000.0)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MIN_ORDER_AMOUNT: %v", err))
	} else if cfg.MinOrderAmount < 0 {
		errs = append(errs, "MIN_ORDER_AMOUNT cannot be negative")
	}

	monitoringSeconds, err := getEnvAsIntRequired("MONITORING_INTERVAL_SECONDS", 5)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MONITORING_INTERVAL_SECONDS: %v", err))
	}
	cfg.MonitoringInterval = time.Duration(monitoringSeconds) * time.Second

	// Exit Parameters (0 falls back to target-derived defaults)
	cfg.TrailingActivationProfit = getEnvAsFloat("TRAILING_ACTIVATION_PROFIT", 0)
	cfg.TrailingPercentage = getEnvAsFloat("TRAILING_PERCENTAGE", 0)

	// Analyzer Parameters
	cfg.VolatilityThreshold = getEnvAsFloat("VOLATILITY_THRESHOLD", 5.0)
	cfg.VolumeRatioThreshold = getEnvAsFloat("VOLUME_RATIO_THRESHOLD", 1.5)
	cfg.RapidDeclineThreshold = getEnvAsFloat("RAPID_DECLINE_THRESHOLD", -2.0)
	cfg.RSIOversoldThreshold = getEnvAsFloat("RSI_OVERSOLD_THRESHOLD", 30.0)
	cfg.MarketDeclineThreshold = getEnvAsFloat("MARKET_DECLINE_THRESHOLD", -3.0)
	cfg.RSIPeriod = getEnvAsInt("RSI_PERIOD", 14)
	if cfg.RSIPeriod <= 0 {
		errs = append(errs, "RSI_PERIOD must be positive")
	}

	// Risk Parameters
	cfg.DailyLossLimit, err = getEnvAsFloatRequired("DAILY_LOSS_LIMIT", 5000.0)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid DAILY_LOSS_LIMIT: %v", err))
	} else if cfg.DailyLossLimit < 0 {
		errs = append(errs, "DAILY_LOSS_LIMIT cannot be negative")
	}
	cfg.ConsecutiveLossLimit, err = getEnvAsIntRequired("CONSECUTIVE_LOSS_LIMIT", 3)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid CONSECUTIVE_LOSS_LIMIT: %v", err))
	} else if cfg.ConsecutiveLossLimit <= 0 {
		errs = append(errs, "CONSECUTIVE_LOSS_LIMIT must be positive")
	}
	cfg.MinBalanceThreshold, err = getEnvAsFloatRequired("MIN_BALANCE_THRESHOLD", 10000.0)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MIN_BALANCE_THRESHOLD: %v", err))
	} else if cfg.MinBalanceThreshold < 0 {
		errs = append(errs, "MIN_BALANCE_THRESHOLD cannot be negative")
	}

	// Database
	cfg.DBPath = getEnv("DB_PATH", "./data/scalp_bot.db")
	if cfg.DBPath == "" {
		errs = append(errs, "DB_PATH must be set")
	}

	// Logging
	cfg.LogLevel = logger.ParseLevel(getEnv("LOG_LEVEL", "INFO"))

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return cfg, nil
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsIntRequired(key string, defaultValue int) (int, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, fmt.Errorf("invalid integer value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloatRequired(key string, defaultValue float64) (float64, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid float value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
