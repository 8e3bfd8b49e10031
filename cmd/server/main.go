package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"agrimarket.walletd/internal/config"
	domainerrors "agrimarket.walletd/internal/domain/errors"
	"agrimarket.walletd/internal/infrastructure/blockchain"
	"agrimarket.walletd/internal/infrastructure/datasources"
	"agrimarket.walletd/internal/infrastructure/jobs"
	"agrimarket.walletd/internal/infrastructure/networks"
	"agrimarket.walletd/internal/infrastructure/provider"
	"agrimarket.walletd/internal/infrastructure/repositories"
	"agrimarket.walletd/internal/infrastructure/storage"
	"agrimarket.walletd/internal/interfaces/http/handlers"
	"agrimarket.walletd/internal/interfaces/http/middleware"
	"agrimarket.walletd/internal/usecases"
	"agrimarket.walletd/pkg/crypto"
	"agrimarket.walletd/pkg/logger"
	"agrimarket.walletd/pkg/metrics"
	"agrimarket.walletd/pkg/redis"
)

const shutdownTimeout = 10 * time.Second

var (
	loadDotenv   = godotenv.Load
	loadCfg      = config.Load
	initLog      = logger.Init
	initRedis    = redis.Init
	openDatabase = datasources.OpenDatabase
	dialProvider = provider.DialRPCProvider
	runServer    = func(ctx context.Context, handler http.Handler, port string) error {
		srv := &http.Server{Addr: ":" + port, Handler: handler}
		errCh := make(chan error, 1)
		go func() { errCh <- srv.ListenAndServe() }()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
)

func main() {
	if err := runMainProcess(); err != nil {
		log.Fatal(err)
	}
}

func runMainProcess() error {
	if err := loadDotenv(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := loadCfg()

	initLog(cfg.Server.Env)
	logger.Info(context.Background(), "Logger initialized", zap.String("env", cfg.Server.Env))

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Storage backend for sessions and role records
	var backends storage.Backends
	switch cfg.Storage.Driver {
	case "redis":
		if err := initRedis(cfg.Redis.URL, cfg.Redis.PASSWORD); err != nil {
			return fmt.Errorf("failed to initialize redis: %w", err)
		}
		defer redis.Close()
		backends.Redis = redis.GetClient()
		logger.Info(ctx, "Redis initialized")
	case "sqlite", "postgres":
		db, err := openDatabase(cfg.Storage, cfg.Database)
		if err != nil {
			return err
		}
		defer closeDatabase(db)
		backends.DB = db
		logger.Info(ctx, "Database connected", zap.String("driver", cfg.Storage.Driver))
	}
	store, err := storage.Open(ctx, cfg.Storage.Driver, backends)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}

	var cipher *crypto.Cipher
	if cfg.Security.SessionEncryptionKey != "" {
		cipher, err = crypto.NewCipher(cfg.Security.SessionEncryptionKey)
		if err != nil {
			return fmt.Errorf("failed to initialize session cipher: %w", err)
		}
	}

	registry := networks.NewRegistry(cfg.Contracts.ByChainID())
	if len(registry.All()) == 0 {
		logger.Warn(ctx, "No marketplace contract configured; every network will be unsupported")
	}

	// Wallet provider. Without one the service runs but every wallet operation reports it.
	var walletProvider provider.Provider
	rpcProvider, err := dialProvider(ctx, cfg.Wallet.ProviderURL)
	switch {
	case errors.Is(err, domainerrors.ErrProviderUnavailable):
		logger.Warn(ctx, "No wallet provider configured")
	case err != nil:
		return fmt.Errorf("failed to dial wallet provider: %w", err)
	default:
		defer rpcProvider.Close()
		walletProvider = rpcProvider

		watchJob := jobs.NewProviderWatchJob(rpcProvider, cfg.Wallet.PollInterval)
		go watchJob.Start(ctx)
		defer watchJob.Stop()
	}
	gateway := provider.NewGateway(walletProvider)

	walletMetrics := metrics.Wallet()
	factory := blockchain.NewContractFactory(gateway, registry, cfg.Events.PollInterval)
	connection := usecases.NewConnectionManager(gateway, factory, registry, walletMetrics)
	events := usecases.NewEventSubscriptionManager(walletMetrics)
	sessions := usecases.NewSessionManager(connection,
		repositories.NewRoleRepository(store),
		repositories.NewSessionRepository(store, cipher),
	)

	// sessions first: a stale session is gone before any listener sees the new account
	connection.AddListener(sessions)
	connection.AddListener(events)
	defer events.Close()
	if err := connection.Start(); err != nil {
		return fmt.Errorf("failed to subscribe to wallet notifications: %w", err)
	}
	defer connection.Close()

	if gateway.Available() {
		if err := connection.Restore(ctx); err != nil {
			logger.Warn(ctx, "Failed to restore wallet connection", zap.Error(err))
		}
	}

	idempotency := middleware.NewIdempotency(store, func() string { return connection.State().Account })

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.LoggerMiddleware())

	applyCORSMiddleware(r)
	registerHealthRoute(r, connection)
	registerMetricsRoute(r)
	registerAPIV1Routes(r, routeDeps{
		connectionHandler: handlers.NewConnectionHandler(connection),
		sessionHandler:    handlers.NewSessionHandler(sessions),
		contractHandler:   handlers.NewContractHandler(connection),
		eventsHandler:     handlers.NewEventsHandler(events),
		idempotency:       idempotency.Middleware(),
	})

	logger.Info(ctx, "AgriMarket wallet service starting",
		zap.String("port", cfg.Server.Port),
		zap.Int("routes", len(r.Routes())),
		zap.Bool("wallet", gateway.Available()),
	)

	if err := runServer(ctx, r, cfg.Server.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	logger.Info(context.Background(), "Server stopped")
	return nil
}

func closeDatabase(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
