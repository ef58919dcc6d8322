package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/cobrify/dunning-engine/internal/config"
	"github.com/cobrify/dunning-engine/internal/content"
	"github.com/cobrify/dunning-engine/internal/handler"
	"github.com/cobrify/dunning-engine/internal/infra/postgresql"
	"github.com/cobrify/dunning-engine/internal/infra/postgresql/migrations"
	infraredis "github.com/cobrify/dunning-engine/internal/infra/redis"
	"github.com/cobrify/dunning-engine/internal/observability"
	"github.com/cobrify/dunning-engine/internal/provider"
	"github.com/cobrify/dunning-engine/internal/queue"
	"github.com/cobrify/dunning-engine/internal/repository"
	"github.com/cobrify/dunning-engine/internal/service"
	"github.com/cobrify/dunning-engine/internal/transport"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config", zap.Error(err))
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatal("failed to initialize logger", zap.Error(err))
	}
	defer logger.Sync() //nolint:errcheck

	db, err := postgresql.NewPostgres(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("postgres initialization failed", zap.Error(err))
	}

	if err := migrations.Migrate(db); err != nil {
		logger.Fatal("database migrations failed", zap.Error(err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("postgres underlying db init failed", zap.Error(err))
	}
	defer sqlDB.Close()

	rdb, err := infraredis.NewRedis(cfg.RedisURL)
	if err != nil {
		logger.Fatal("redis initialization failed", zap.Error(err))
	}
	defer rdb.Close()

	locker, err := infraredis.NewRedisSlotLocker(rdb)
	if err != nil {
		logger.Fatal("slot locker initialization failed", zap.Error(err))
	}

	limiter, err := infraredis.NewRedisRateLimiter(rdb, cfg.RateLimitPerSec)
	if err != nil {
		logger.Fatal("rate limiter initialization failed", zap.Error(err))
	}

	rmq, err := queue.NewRabbitMQ(cfg.RabbitMQURL)
	if err != nil {
		logger.Fatal("rabbitmq initialization failed", zap.Error(err))
	}
	defer rmq.Close()

	publisher := queue.NewRabbitMQPublisher(rmq)
	consumer := queue.NewRabbitMQConsumer(rmq, cfg.WorkerConcurrency, logger)

	messageProvider, err := provider.NewWhatsAppProvider(cfg.WhatsAppAPIURL, cfg.WhatsAppAPIToken)
	if err != nil {
		logger.Fatal("whatsapp provider initialization failed", zap.Error(err))
	}

	var generator content.Generator
	if cfg.AIAPIURL != "" {
		generator, err = content.NewHTTPGenerator(cfg.AIAPIURL, cfg.AIAPIKey)
		if err != nil {
			logger.Fatal("content generator initialization failed", zap.Error(err))
		}
	}
	resolver, err := content.NewResolver(generator, logger)
	if err != nil {
		logger.Fatal("content resolver initialization failed", zap.Error(err))
	}

	obligationRepo := repository.NewGormObligationRepo(db)
	clientRepo := repository.NewGormClientRepo(db)
	policyRepo := repository.NewGormPolicyRepo(db)
	attemptRepo := repository.NewGormAttemptRepo(db)
	stateRepo := repository.NewGormClientStateRepo(db)
	historyRepo := repository.NewGormEscalationHistoryRepo(db)

	metrics := observability.NewMetrics()

	escalationService, err := service.NewEscalationService(stateRepo, historyRepo, obligationRepo, policyRepo, logger)
	if err != nil {
		logger.Fatal("escalation service initialization failed", zap.Error(err))
	}
	escalationService.SetMetrics(metrics)

	runService, err := service.NewRunService(
		obligationRepo,
		clientRepo,
		policyRepo,
		attemptRepo,
		historyRepo,
		escalationService,
		resolver,
		messageProvider,
		locker,
		limiter,
		logger,
	)
	if err != nil {
		logger.Fatal("run service initialization failed", zap.Error(err))
	}
	runService.SetMetrics(metrics)

	obligationService, err := service.NewObligationService(obligationRepo, attemptRepo, policyRepo, logger)
	if err != nil {
		logger.Fatal("obligation service initialization failed", zap.Error(err))
	}

	triggerService, err := service.NewTriggerService(policyRepo, publisher, runService, logger)
	if err != nil {
		logger.Fatal("trigger service initialization failed", zap.Error(err))
	}

	workerService, err := service.NewWorkerService(
		consumer,
		runService,
		cfg.WorkerConcurrency,
		time.Duration(cfg.RunTimeBudgetSec)*time.Second,
		logger,
	)
	if err != nil {
		logger.Fatal("worker service initialization failed", zap.Error(err))
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: transport.ErrorHandler(logger),
	})
	app.Use(metrics.HTTPMiddleware())
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	handler.RegisterHealthRoutes(app, sqlDB, rdb)
	if err := handler.RegisterRunRoutes(app, triggerService); err != nil {
		logger.Fatal("run routes registration failed", zap.Error(err))
	}
	if err := handler.RegisterObligationRoutes(app, obligationService); err != nil {
		logger.Fatal("obligation routes registration failed", zap.Error(err))
	}
	if err := handler.RegisterEscalationRoutes(app, escalationService); err != nil {
		logger.Fatal("escalation routes registration failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var scheduler *cron.Cron
	if cfg.RunCron != "" {
		scheduler = cron.New()
		_, err := scheduler.AddFunc(cfg.RunCron, func() {
			result, err := triggerService.TriggerAll(ctx)
			if err != nil {
				logger.Error("scheduled trigger failed", zap.Error(err))
				return
			}
			logger.Info("scheduled trigger enqueued",
				zap.String("runId", result.RunID),
				zap.Int("tenants", result.Tenants),
			)
		})
		if err != nil {
			logger.Fatal("invalid run cron expression",
				zap.String("cron", cfg.RunCron),
				zap.Error(err),
			)
		}
		scheduler.Start()
		defer scheduler.Stop()
	}

	g, groupCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return workerService.Start(groupCtx)
	})

	g.Go(func() error {
		logger.Info("dunning-engine api started", zap.Int("port", cfg.APIPort))
		return app.Listen(fmt.Sprintf(":%d", cfg.APIPort))
	})

	g.Go(func() error {
		<-groupCtx.Done()
		return app.ShutdownWithTimeout(shutdownTimeout)
	})

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		logger.Fatal("dunning-engine terminated", zap.Error(err))
	}

	logger.Info("dunning-engine stopped")
}
