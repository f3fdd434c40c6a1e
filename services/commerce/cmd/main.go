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
	repository2 "github.com/KBroJ/LoopPak-BE-sub001/pkg/outbox/repository"
	outboxWorker "github.com/KBroJ/LoopPak-BE-sub001/pkg/outbox/worker"
	"github.com/KBroJ/LoopPak-BE-sub001/pkg/utils"
	"github.com/KBroJ/LoopPak-BE-sub001/services/commerce/internal/client/dataplatform"
	"github.com/KBroJ/LoopPak-BE-sub001/services/commerce/internal/client/pg"
	"github.com/KBroJ/LoopPak-BE-sub001/services/commerce/internal/repository"
	"github.com/KBroJ/LoopPak-BE-sub001/services/commerce/internal/service"
	"github.com/KBroJ/LoopPak-BE-sub001/services/commerce/internal/transport/http"
	"github.com/KBroJ/LoopPak-BE-sub001/services/commerce/internal/transport/http/handler"
	"github.com/KBroJ/LoopPak-BE-sub001/services/commerce/internal/transport/kafka"
	"github.com/KBroJ/LoopPak-BE-sub001/services/commerce/internal/worker"
	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

const serviceName = "commerce-service"

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

	kafkaProducer, err := kafka2.NewProducer(cfg.Kafka.Brokers, logger)
	if err != nil {
		log.Fatalf("error creating kafka producer: %v", err)
	}
	defer func() {
		if err := kafkaProducer.Close(); err != nil {
			log.Printf("error closing kafka producer: %v", err)
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
	outboxRepo := repository2.NewOutboxRepository()
	publisher := event.NewPublisher(kafkaProducer, uow, outboxRepo, m, logger)
	evictor := cache.NewRedisEvictor(rdb, logger)
	guard := idempotency.NewGuard(uow, idempotency.NewRepository(pool), m, logger)

	orderRepo := repository.NewOrderRepository(pool, logger)
	productRepo := repository.NewProductRepository(pool, logger)
	paymentRepo := repository.NewPaymentRepository(pool, logger)
	pointRepo := repository.NewPointRepository(pool)
	couponRepo := repository.NewCouponRepository()
	likeRepo := repository.NewLikeRepository()
	userRepo := repository.NewUserRepository(pool, logger)

	gateway := pg.NewClient(cfg.PaymentGateway, pg.NewPolicy(cfg, m, logger), logger)
	sender := dataplatform.NewHTTPSender(cfg.DataPlatform, logger)

	pointService := service.NewPointService(uow, pointRepo, logger)
	couponService := service.NewCouponService(couponRepo, logger)
	paymentService := service.NewPaymentService(uow, paymentRepo, gateway, publisher, sender, cfg.Kafka, logger)
	orderService := service.NewOrderService(
		uow,
		orderRepo,
		productRepo,
		paymentRepo,
		pointService,
		couponService,
		paymentService,
		publisher,
		evictor,
		sender,
		cfg.Kafka,
		logger,
	)
	productService := service.NewCachedProductService(
		service.NewProductService(uow, productRepo, publisher, evictor, cfg.Kafka, logger),
		rdb,
		cfg.Redis.CacheTTL,
		logger,
	)
	likeService := service.NewLikeService(uow, likeRepo, productRepo, publisher, evictor, cfg.Kafka, logger)
	userService := service.NewUserService(uow, userRepo, pointRepo, logger)

	outboxProcessor := outboxWorker.NewOutboxProcessor(pool, outboxRepo, kafkaProducer, logger, cfg.Outbox.BatchSize, cfg.Outbox.Interval)
	paymentSync := worker.NewPaymentSync(paymentService, logger, cfg.PaymentGateway.SyncInterval, cfg.PaymentGateway.SyncOlderThan)

	processor := consumer.NewProcessor(event.NewDomainRegistry(), guard, deadLetters, m, logger)
	paymentConsumer := kafka.NewConsumer(orderService, processor, logger)

	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.HTTP.Timeout,
		WriteTimeout: cfg.HTTP.Timeout,
	})

	app.Use(otelfiber.Middleware())

	app.Use(limiter.New(limiter.Config{
		Max:        cfg.Limiter.Max,
		Expiration: cfg.Limiter.Expiration,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests. Try again later.",
			})
		},
		Next: func(c *fiber.Ctx) bool {
			return c.Path() == "/metrics" || c.Path() == "/api/v1/payments/callback"
		},
	}))

	app.Get("/metrics", adaptor.HTTPHandler(m.Handler()))

	http.RegisterRoutes(app, &http.Handlers{
		User:    handler.NewUserHandler(userService, logger),
		Point:   handler.NewPointHandler(pointService, logger),
		Product: handler.NewProductHandler(productService, logger),
		Like:    handler.NewLikeHandler(likeService, logger),
		Order:   handler.NewOrderHandler(orderService, paymentService, logger),
		Payment: handler.NewPaymentHandler(paymentService, logger),
	})

	var wg sync.WaitGroup

	wg.Add(3)
	go func() {
		defer wg.Done()
		outboxProcessor.Start(ctx)
	}()
	go func() {
		defer wg.Done()
		paymentSync.Start(ctx)
	}()
	go func() {
		defer wg.Done()
		if err := paymentConsumer.Start(ctx, cfg.Kafka.Brokers, cfg.Kafka.GroupID+".commerce", cfg.Kafka.PaymentTopic); err != nil {
			mylogger.Error(ctx, logger, "Payment consumer stopped", zap.Error(err))
			stop()
		}
	}()

	go func() {
		mylogger.Info(ctx, logger, "HTTP service listening", zap.String("port", cfg.HTTP.Port))
		if err := app.Listen(cfg.HTTP.Port); err != nil {
			mylogger.Error(ctx, logger, "HTTP server stopped", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), utils.ParseDurationWithFallback("SHUTDOWN_TIMEOUT", 5*time.Second))
	defer cancel()

	mylogger.Info(shutdownCtx, logger, "Shutting down commerce service")

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		mylogger.Warn(shutdownCtx, logger, "Error shutting down HTTP app", zap.Error(err))
	}

	wg.Wait()

	if err := tp.Shutdown(shutdownCtx); err != nil {
		mylogger.Warn(shutdownCtx, logger, "Failed to shut down telemetry", zap.Error(err))
	}
}
