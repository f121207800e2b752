package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/disasterproject/fanout/internal/application/orchestrator"
	"github.com/disasterproject/fanout/internal/application/workers"
	"github.com/disasterproject/fanout/internal/config"
	"github.com/disasterproject/fanout/internal/domain"
	redisevents "github.com/disasterproject/fanout/pkg/adapters/events/redis"
	"github.com/disasterproject/fanout/pkg/adapters/llm"
	"github.com/disasterproject/fanout/pkg/adapters/metrics/prometheus"
	redisstorage "github.com/disasterproject/fanout/pkg/adapters/storage/redis"
	"github.com/disasterproject/fanout/pkg/api/grpc"
	"github.com/disasterproject/fanout/pkg/api/http"
	"github.com/disasterproject/fanout/pkg/api/websocket"
)

var (
	// Version is set by build flags
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := initLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("starting fanout orchestrator",
		zap.String("version", Version),
		zap.String("build_time", BuildTime))

	// Initialize Redis client
	redisClient := goredis.NewClient(&goredis.Options{
		Addr:         cfg.Redis.Addr,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		MaxRetries:   cfg.Redis.MaxRetries,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})

	// Test Redis connection
	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal("failed to connect to Redis", zap.Error(err))
	}
	logger.Info("connected to Redis", zap.String("addr", cfg.Redis.Addr))

	// Initialize adapters
	eventBus, err := redisevents.NewStreamsEventBus(
		redisClient,
		"fanout-api",
		fmt.Sprintf("fanout-%d", os.Getpid()),
		logger,
	)
	if err != nil {
		logger.Fatal("failed to create event bus", zap.Error(err))
	}

	resultStore := redisstorage.NewResultStore(redisClient, cfg.Redis.ResultTTL, logger)

	backendFactory, err := llm.NewBackendFactory(&llm.Config{
		Provider:       cfg.LLMProvider,
		RequestTimeout: cfg.Timeouts.RequestTimeout,
		Logger:         logger,
	})
	if err != nil {
		logger.Fatal("failed to create backend factory", zap.Error(err))
	}

	metricsCollector := prometheus.NewCollector()

	// Initialize application components
	credentials, err := cfg.AccountCredentials()
	if err != nil {
		logger.Fatal("failed to parse worker accounts", zap.Error(err))
	}
	accountConfigs := make([]workers.AccountConfig, 0, len(credentials))
	for _, cred := range credentials {
		accountConfigs = append(accountConfigs, workers.AccountConfig{
			Name:       cred.Name,
			Credential: cred.Credential,
		})
	}

	catalog := domain.DefaultCatalog()

	pool, err := workers.NewPool(accountConfigs, cfg.BalanceStrategy(), catalog, backendFactory, logger)
	if err != nil {
		logger.Fatal("failed to create worker pool", zap.Error(err))
	}

	estimator := workers.NewCharEstimator()
	executor := workers.NewExecutor(pool, catalog, estimator, metricsCollector, logger)

	decomposer := orchestrator.NewDecomposer(pool, catalog, estimator, cfg.Engine.MaxSubTasks, logger)
	runner := orchestrator.NewRunner(executor, logger)
	aggregator := orchestrator.NewAggregator(pool, catalog, estimator, logger)

	manager := orchestrator.NewManager(
		decomposer,
		runner,
		aggregator,
		eventBus,
		resultStore,
		metricsCollector,
		orchestrator.ManagerConfig{
			MaxConcurrent:    cfg.Engine.MaxConcurrent,
			ExecutionTimeout: cfg.Timeouts.BatchTimeout,
			RunTimeout:       cfg.Timeouts.RunTimeout,
		},
		logger,
	)

	// Periodic pool usage export
	monitor := workers.NewUsageMonitor(pool, metricsCollector, cfg.Workers.StatsInterval, logger)
	monitor.Start()

	// Initialize API servers
	httpServer := http.NewServer(&http.Config{
		Port:    cfg.HTTPPort,
		Manager: manager,
		Pool:    pool,
		Store:   resultStore,
		Logger:  logger,
	})

	// Add WebSocket handler to HTTP server
	wsHandler := websocket.NewHandler(eventBus, logger)
	httpServer.SetupWebSocket(wsHandler)

	grpcServer, err := grpc.NewServer(&grpc.Config{
		Port:    cfg.GRPCPort,
		Manager: manager,
		Logger:  logger,
	})
	if err != nil {
		logger.Fatal("failed to create gRPC server", zap.Error(err))
	}

	// Start servers
	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	go func() {
		if err := grpcServer.Start(); err != nil {
			logger.Fatal("gRPC server failed", zap.Error(err))
		}
	}()

	logger.Info("fanout orchestrator started",
		zap.Int("http_port", cfg.HTTPPort),
		zap.Int("grpc_port", cfg.GRPCPort),
		zap.Int("worker_accounts", pool.Size()),
		zap.String("balancing", string(cfg.BalanceStrategy())))

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info("received shutdown signal")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Timeouts.ShutdownTimeout)
	defer cancel()

	// Shutdown components
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	if err := grpcServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("gRPC server shutdown error", zap.Error(err))
	}

	if err := manager.Shutdown(shutdownCtx); err != nil {
		logger.Error("run manager shutdown error", zap.Error(err))
	}

	monitor.Stop()

	if err := redisClient.Close(); err != nil {
		logger.Error("Redis close error", zap.Error(err))
	}

	logger.Info("fanout orchestrator shut down complete")
}

// initLogger initializes the logger based on log level
func initLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(zapLevel)
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := config.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}

	return logger
}
