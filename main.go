package main

import (
	"context"
	"log" // Standard log only for fatal errors before the logger is set up

	"cryptoScalpBot/config"
	"cryptoScalpBot/internal/adapters/binanceclient"
	"cryptoScalpBot/internal/adapters/logger"
	"cryptoScalpBot/internal/adapters/sqlite"
	"cryptoScalpBot/internal/app"
	"cryptoScalpBot/internal/risk"
	"cryptoScalpBot/internal/strategy/analyzer"
	"cryptoScalpBot/internal/strategy/strategies"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	// 2. Initialize Logger
	appLogger := logger.NewStdLogger(cfg.LogLevel)
	appLogger.Info(context.Background(), "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String()})

	// 3. Initialize Trade Journal (Database Adapter)
	repo, err := sqlite.NewRepository(sqlite.Config{
		DBPath: cfg.DBPath,
		Logger: appLogger,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize trade journal")
		log.Fatalf("FATAL: Failed to initialize trade journal: %v", err)
	}
	defer func() {
		if err := repo.Close(); err != nil {
			appLogger.Error(context.Background(), err, "Error closing trade journal")
		}
	}()

	// 4. Initialize Exchange Client (Binance Adapter)
	binanceClient, err := binanceclient.New(binanceclient.Config{
		APIKey:     cfg.APIKey,
		SecretKey:  cfg.SecretKey,
		UseTestnet: cfg.IsTestnet,
		Logger:     appLogger,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize Binance client")
		log.Fatalf("FATAL: Failed to initialize Binance client: %v", err)
	}

	// 5. Initialize Strategy via the registry
	strat, err := strategies.New(cfg.StrategyType, cfg.StrategyID, strategies.Config{
		Markets:                  []string{cfg.Market},
		StopLossLevel:            cfg.StopLossLevel,
		AveragingTrigger:         cfg.AveragingTrigger,
		TargetProfit:             cfg.TargetProfit,
		MaxAveragingCount:        cfg.MaxAveragingCount,
		TradingFee:               cfg.TradingFee,
		MonitoringInterval:       cfg.MonitoringInterval,
		OrderQuantity:            cfg.OrderQuantity,
		AccountBalance:           cfg.AccountBalance,
		MinOrderAmount:           cfg.MinOrderAmount,
		Enabled:                  true,
		TrailingActivationProfit: cfg.TrailingActivationProfit,
		TrailingPercentage:       cfg.TrailingPercentage,
		Analyzer: analyzer.Config{
			VolatilityThreshold:    cfg.VolatilityThreshold,
			VolumeRatioThreshold:   cfg.VolumeRatioThreshold,
			RapidDeclineThreshold:  cfg.RapidDeclineThreshold,
			RSIOversoldThreshold:   cfg.RSIOversoldThreshold,
			MarketDeclineThreshold: cfg.MarketDeclineThreshold,
			RSIPeriod:              cfg.RSIPeriod,
		},
		Risk: risk.Config{
			DailyLossLimit:       cfg.DailyLossLimit,
			ConsecutiveLossLimit: cfg.ConsecutiveLossLimit,
			MinBalanceThreshold:  cfg.MinBalanceThreshold,
		},
	}, appLogger)
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize trading strategy")
		log.Fatalf("FATAL: Failed to initialize trading strategy: %v", err)
	}
	appLogger.Info(context.Background(), "Trading strategy initialized", map[string]interface{}{
		"type": cfg.StrategyType, "id": cfg.StrategyID, "market": cfg.Market,
	})

	// 6. Initialize Application Service
	tradingService, err := app.NewTradingService(cfg, appLogger, binanceClient, repo, strat)
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize trading service")
		log.Fatalf("FATAL: Failed to initialize trading service: %v", err)
	}

	// 7. Start the Service
	if err := tradingService.Start(context.Background()); err != nil {
		appLogger.Error(context.Background(), err, "Trading service exited with error")
		log.Fatalf("FATAL: Trading service exited with error: %v", err)
	}

	appLogger.Info(context.Background(), "Application finished gracefully.")
}
