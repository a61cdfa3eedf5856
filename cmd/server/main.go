// Package main provides the API server entry point for the contract-pulse service.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/contract-pulse/internal/accumulator"
	"github.com/contract-pulse/internal/adapter"
	"github.com/contract-pulse/internal/api"
	"github.com/contract-pulse/internal/config"
	"github.com/contract-pulse/internal/logging"
	"github.com/contract-pulse/internal/storage"
	"github.com/contract-pulse/internal/types"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logging.GetGlobalLogger().WithError(err).Fatal("Failed to load configuration")
	}

	logging.InitGlobalLogger(
		logging.ParseLogLevel(cfg.Logging.Level),
		logging.ParseLogFormat(cfg.Logging.Format),
	)
	logger := logging.GetGlobalLogger()
	logger.WithFields(map[string]interface{}{
		"level":  cfg.Logging.Level,
		"format": cfg.Logging.Format,
	}).Info("Structured logging initialized")

	logger.Info("Connecting to databases...")

	postgres, err := storage.NewPostgresDB(&cfg.Database.Postgres)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Postgres")
	}
	defer postgres.Close()

	clickhouseDB, err := storage.NewClickHouseDB(&cfg.Database.ClickHouse)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to ClickHouse")
	}
	defer func() {
		if err := clickhouseDB.Close(); err != nil {
			logger.WithError(err).Warn("Error closing ClickHouse connection")
		}
	}()

	redisCache, err := storage.NewRedisCache(&cfg.Database.Redis)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Redis")
	}
	defer func() {
		if err := redisCache.Close(); err != nil {
			logger.WithError(err).Warn("Error closing Redis connection")
		}
	}()

	logger.Info("Database connections established")

	logger.Info("Initializing chain adapters...")
	chainAdapters := make(map[types.ChainID]adapter.ChainAdapter)
	for _, chainName := range cfg.Chains.Enabled {
		chainCfg, ok := cfg.Chains.Chains[chainName]
		if !ok || chainCfg.RPCPrimary == "" {
			logger.WithField("chain", chainName).Warn("Skipping chain: no RPC endpoint configured")
			continue
		}

		chainID, ok := chainIDFor(chainName)
		if !ok {
			logger.WithField("chain", chainName).Warn("Skipping unknown chain")
			continue
		}

		chainAdapter, err := adapter.NewEthereumAdapter(&adapter.EthereumAdapterConfig{
			ChainID:           chainID,
			RPCURL:            chainCfg.RPCPrimary,
			RequestsPerSecond: chainCfg.RequestsPerSecond,
		})
		if err != nil {
			logger.WithError(err).WithField("chain", chainName).Warn("Failed to create adapter for chain")
			continue
		}

		chainAdapters[chainID] = chainAdapter
		logger.WithFields(map[string]interface{}{
			"chain": chainName,
			"rpc":   chainCfg.RPCPrimary,
		}).Info("Chain adapter initialized")
	}
	if len(chainAdapters) == 0 {
		logger.Fatal("No chain adapters initialized - configure at least one RPC endpoint")
	}

	analysisRepo := storage.NewAnalysisRepository(postgres)
	userRepo := storage.NewUserRepository(postgres)
	archiveRepo := storage.NewTransactionArchiveRepository(clickhouseDB)

	bridge := accumulator.NewRecordBridge(analysisRepo, userRepo, logger)
	planner := accumulator.NewWindowPlanner(
		cfg.Sync.BaseBlockRangeComprehensive,
		cfg.Sync.BaseBlockRangeStandard,
	)

	syncService, err := accumulator.NewService(&accumulator.ServiceConfig{
		Adapters: chainAdapters,
		Bridge:   bridge,
		Planner:  planner,
		Archive:  archiveRepo,
		Cache:    redisCache,
		Controller: accumulator.ControllerConfig{
			EmptyCycleThreshold: cfg.Sync.EmptyCycleThreshold,
			CycleCeiling:        cfg.Sync.CycleCeiling,
			CycleDelay:          cfg.Sync.CycleDelay,
		},
		Logger: logger,
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to create sync service")
	}

	server := api.NewServer(
		&api.ServerConfig{
			Host:            cfg.Server.Host,
			Port:            cfg.Server.Port,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		syncService,
		analysisRepo,
		userRepo,
		redisCache,
		logger,
	)

	go func() {
		if err := server.Start(); err != nil {
			logger.WithError(err).Error("API server stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Graceful shutdown failed")
	}
	logger.Info("Server stopped")
}

// chainIDFor maps a configured chain name to its identifier
func chainIDFor(name string) (types.ChainID, bool) {
	switch name {
	case "ethereum":
		return types.ChainEthereum, true
	case "polygon":
		return types.ChainPolygon, true
	case "arbitrum":
		return types.ChainArbitrum, true
	case "optimism":
		return types.ChainOptimism, true
	case "base":
		return types.ChainBase, true
	default:
		return "", false
	}
}
