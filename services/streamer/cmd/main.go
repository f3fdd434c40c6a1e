package main

import (
	"context"
	"log"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/KBroJ/LoopPak-BE-sub001/pkg/cache"
	"github.com/KBroJ/LoopPak-BE-sub001/pkg/config"
	"github.com/KBroJ/LoopPak-BE-sub001/pkg/consumer"
	"github.com/KBroJ/LoopPak-BE-sub001/pkg/db"
	"github.com/KBroJ/LoopPak-BE-sub001/pkg/event"
	"github.com/KBroJ/LoopPak-BE-sub001/pkg/idempotency"
	kafka2 "github.com/KBroJ/LoopPak-BE-sub001/pkg/kafka"
	"github.com/KBroJ/LoopPak-BE-sub001/pkg/metrics"
	"github.com/KBroJ/LoopPak-BE-sub001/pkg/mylogger"
	"github.com/KBroJ/LoopPak-BE-sub001/pkg/utils"
	"github.com/KBroJ/LoopPak-BE-sub001/services/streamer/internal/domain"
	"github.com/KBroJ/LoopPak-BE-sub001/services/streamer/internal/ranking"
	"github.com/KBroJ/LoopPak-BE-sub001/services/streamer/internal/repository"
	"github.com/KBroJ/LoopPak-BE-sub001/services/streamer/internal/service"
	"github.com/KBroJ/LoopPak-BE-sub001/services/streamer/internal/transport/http"
	"github.com/KBroJ/LoopPak-BE-sub001/services/streamer/internal/transport/http/handler"
	"github.com/KBroJ/LoopPak-BE-sub001/services/streamer/internal/transport/kafka"
	"github.com/KBroJ/LoopPak-BE-sub001/services/streamer/internal/worker"
	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

const serviceName = "streamer-service"

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf(".env not found: %v\n", err)
	}

	cfg := config.MustLoad()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := utils.InitTracer(ctx, serviceName, cfg.Env)
	if err != nil {
		log.Fatalf("failed to init tracer: %v", err)
	}

	logger, err := config.NewLogger(config.LoggerConfigFrom(cfg, serviceName))
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	pool, err := db.NewPostgresDB(ctx, cfg.Postgres)
	if err != nil {
		log.Fatalf("failed to create pool: %v", err)
	}
	defer pool.Close()

	rdb, err := cache.NewRedisClient(ctx, cfg.Redis.Addr)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Printf("error closing redis client: %v", err)
		}
	}()

	deadLetters := kafka2.NewDeadLetterWriter(cfg.Kafka.Brokers, cfg.Kafka.DeadLetterTag, logger)
	defer func() {
		if err := deadLetters.Close(); err != nil {
			log.Printf("error closing dead letter writer: %v", err)
		}
	}()

	m := metrics.New()
	uow := db.NewUnitOfWork(pool, logger)
	guard := idempotency.NewGuard(uow, idempotency.NewRepository(pool), m, logger)
	loc := cfg.Ranking.Location()
	weights := domain.Weights{
		Like:  cfg.Ranking.WeightLike,
		Sales: cfg.Ranking.WeightSales,
		View:  cfg.Ranking.WeightView,
	}

	metricsRepo := repository.NewMetricsRepository(pool)
	snapshotRepo := repository.NewSnapshotRepository(pool)

	aggregator := service.NewAggregator(metricsRepo, cache.NewRedisEvictor(rdb, logger), cfg.Aggregator, loc, m, logger)

	engine, err := ranking.NewEngine(rdb, weights, cfg.Ranking.KeyTTL, loc, logger)
	if err != nil {
		log.Fatalf("invalid ranking config: %v", err)
	}

	batch, err := ranking.NewBatch(uow, metricsRepo, snapshotRepo, weights, loc, logger)
	if err != nil {
		log.Fatalf("invalid ranking config: %v", err)
	}

	processor := consumer.NewProcessor(event.NewDomainRegistry(), guard, deadLetters, m, logger)
	catalogConsumer := kafka.NewConsumer(aggregator, engine, processor, logger)
	scheduler := worker.NewRankingScheduler(batch, engine, logger, cfg.Ranking.BatchInterval, cfg.Ranking.CarryOverWeight)

	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.HTTP.Timeout,
		WriteTimeout: cfg.HTTP.Timeout,
	})

	app.Use(otelfiber.Middleware())
	app.Get("/metrics", adaptor.HTTPHandler(m.Handler()))

	http.RegisterRoutes(app, &http.Handlers{
		Ranking: handler.NewRankingHandler(engine, batch, logger),
	})

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		scheduler.Start(ctx)
	}()
	go func() {
		defer wg.Done()

		topics := []string{cfg.Kafka.CatalogTopic, cfg.Kafka.OrderTopic}
		if err := catalogConsumer.Start(ctx, cfg.Kafka.Brokers, cfg.Kafka.GroupID+".streamer", topics); err != nil {
			mylogger.Error(ctx, logger, "Catalog consumer stopped", zap.Error(err))
			stop()
		}
	}()

	port := utils.ParseWithFallback("STREAMER_HTTP_PORT", ":3001")

	go func() {
		mylogger.Info(ctx, logger, "HTTP service listening", zap.String("port", port))
		if err := app.Listen(port); err != nil {
			mylogger.Error(ctx, logger, "HTTP server stopped", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), utils.ParseDurationWithFallback("SHUTDOWN_TIMEOUT", 5*time.Second))
	defer cancel()

	mylogger.Info(shutdownCtx, logger, "Shutting down streamer service")

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		mylogger.Warn(shutdownCtx, logger, "Error shutting down HTTP app", zap.Error(err))
	}

	wg.Wait()

	if err := tp.Shutdown(shutdownCtx); err != nil {
		mylogger.Warn(shutdownCtx, logger, "Failed to shut down telemetry", zap.Error(err))
	}
}
