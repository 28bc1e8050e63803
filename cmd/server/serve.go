package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bakery-pos/config"
	"bakery-pos/internal/api"
	"bakery-pos/internal/auth"
	"bakery-pos/internal/broker"
	"bakery-pos/internal/redisclient"
	"bakery-pos/internal/service"
	"bakery-pos/internal/store"
	"bakery-pos/internal/util"
	"bakery-pos/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
)

const serviceName = "bakery-pos"

func runServe(port string) error {
	cfg := config.Load()
	if port != "" {
		cfg.Server.Port = port
	}

	decimal.MarshalJSONWithoutQuotes = true

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting bakery POS", zap.String("env", cfg.Server.Env))

	tp, err := initTracing(cfg)
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Warn("Error shutting down tracer", zap.Error(err))
		}
	}()

	ctx := context.Background()

	repo, closeRepo, err := openRepository(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeRepo()

	var (
		mirror     service.StockMirror
		readyCheck func(context.Context) error
		keys       *redisclient.Client
	)
	if cfg.Redis.Enabled {
		redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer redisClient.Close()
		logger.Info("Redis connected", zap.String("addr", cfg.Redis.Addr))

		mirror = redisClient
		keys = redisClient
		readyCheck = redisClient.Ping
	}

	var publisher service.EventPublisher
	var producer *broker.Producer
	if cfg.Kafka.Enabled {
		producer = broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicEvents)
		defer producer.Close()
		publisher = broker.NewEventPublisher(producer)
		logger.Info("Kafka producer initialized", zap.String("topic", cfg.Kafka.TopicEvents))
	}

	inventoryClient := service.NewInventoryClient(repo, mirror)
	if mirror != nil {
		if err := inventoryClient.SyncInventoryToRedis(ctx); err != nil {
			logger.Warn("Failed to sync inventory to Redis", zap.Error(err))
		}
	}

	faults := service.NewRandomFaultPolicy(cfg.Business.FaultRate, cfg.Business.LatencyMin, cfg.Business.LatencyMax)
	recorder := service.NewSaleRecorder(repo, inventoryClient, publisher, faults)
	if keys != nil {
		recorder.EnableIdempotency(keys, cfg.Business.IdempotencyTTL)
	}

	sessions := service.NewSessionService(auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL))

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	var stockWorker *worker.StockAlertWorker
	if cfg.Kafka.Enabled {
		consumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicEvents, cfg.Kafka.ConsumerGroup)
		monitor := service.NewStockMonitor(repo, cfg.Business.LowStockThreshold)
		auditor := service.NewCashoutAuditor(cfg.Business.LargeVarianceThreshold)
		stockWorker = worker.NewStockAlertWorker(consumer, monitor, auditor)
		go func() {
			if err := stockWorker.Start(workerCtx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Stock alert worker error", zap.Error(err))
			}
		}()
	}

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(api.Services{
		Sessions:          sessions,
		Tickets:           service.NewTicketService(sessions, inventoryClient),
		Payments:          service.NewPaymentService(sessions, recorder),
		CashDrawer:        service.NewCashDrawer(repo, publisher, cfg.Business.LargeVarianceThreshold, recorder.CommitLock()),
		Catalog:           service.NewCatalogService(repo, inventoryClient, publisher),
		Reports:           service.NewReportService(repo),
		LowStockThreshold: cfg.Business.LowStockThreshold,
		Ready:             readyCheck,
	})
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
	case err := <-serverErr:
		return fmt.Errorf("failed to start server: %w", err)
	}

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Server forced to shutdown", zap.Error(err))
	}

	workerCancel()
	if stockWorker != nil {
		if err := stockWorker.Stop(); err != nil {
			logger.Warn("Error stopping stock alert worker", zap.Error(err))
		}
	}

	logger.Info("Server exited")
	return nil
}

func initTracing(cfg *config.Config) (*sdktrace.TracerProvider, error) {
	if !cfg.Observ.TracingEnabled {
		return util.InitNoopTracer(serviceName), nil
	}
	tp, err := util.InitTracer(util.TracerOptions{
		ServiceName:    serviceName,
		Environment:    cfg.Server.Env,
		JaegerEndpoint: cfg.Observ.JaegerEndpoint,
		SampleRatio:    cfg.Observ.TraceSampleRatio,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}
	return tp, nil
}

// openRepository returns the configured store and a function that releases it
func openRepository(ctx context.Context, cfg *config.Config) (store.Repository, func(), error) {
	logger := util.GetLogger()

	catalog, err := store.LoadCatalog(cfg.Database.SeedFile)
	if err != nil {
		return nil, nil, err
	}

	switch cfg.Database.StoreBackend {
	case config.StoreMemory:
		logger.Info("Using in-memory store",
			zap.Int("categories", len(catalog.Categories)),
			zap.Int("products", len(catalog.Products)))
		return store.NewMemoryStore(catalog), func() {}, nil

	case config.StorePostgres:
		db, err := store.NewPostgresStore(cfg.Database.URL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if _, err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		seeded, err := db.Seed(ctx, catalog)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		logger.Info("Database connected", zap.Bool("seeded", seeded))
		return db, func() { db.Close() }, nil
	}

	return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Database.StoreBackend)
}
