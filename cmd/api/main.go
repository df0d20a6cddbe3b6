package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-grading-api/internal/config"
	"github.com/noah-isme/gema-grading-api/internal/database"
	"github.com/noah-isme/gema-grading-api/internal/handler"
	"github.com/noah-isme/gema-grading-api/internal/middleware"
	"github.com/noah-isme/gema-grading-api/internal/repository"
	"github.com/noah-isme/gema-grading-api/internal/router"
	"github.com/noah-isme/gema-grading-api/internal/service"
	"github.com/noah-isme/gema-grading-api/pkg/htr"
	"github.com/noah-isme/gema-grading-api/pkg/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", cfg.AppName).Logger()
	if cfg.AppEnv == "development" {
		logger = logger.Level(zerolog.DebugLevel)
	} else {
		logger = logger.Level(zerolog.InfoLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("%v", err)
	}

	redisClient, err := database.ConnectRedis(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
	} else {
		logger.Warn().Msg("redis url not set, work list caching disabled")
	}

	natsConn, err := database.ConnectNATS(cfg.NATSURL, cfg.AppName)
	if err != nil {
		log.Fatalf("failed to connect to nats: %v", err)
	}
	var events service.EventPublisher
	if natsConn != nil {
		defer natsConn.Close()
		events = natsConn
	} else {
		logger.Warn().Msg("nats url not set, work events disabled")
	}

	objects, err := storage.New(storage.Config{
		Endpoint:        cfg.Storage.Endpoint,
		AccessKey:       cfg.Storage.AccessKey,
		SecretKey:       cfg.Storage.SecretKey,
		Region:          cfg.Storage.Region,
		UseSSL:          cfg.Storage.UseSSL,
		TempBucket:      cfg.Storage.TempBucket,
		PermanentBucket: cfg.Storage.PermanentBucket,
		PresignTTL:      cfg.Storage.PresignTTL,
	}, logger)
	if err != nil {
		log.Fatalf("failed to create storage client: %v", err)
	}
	if err := objects.EnsureBuckets(ctx); err != nil {
		log.Fatalf("failed to prepare storage buckets: %v", err)
	}

	amqpConn, err := htr.Dial(cfg.HTR.AMQPURL)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer amqpConn.Close()

	htrPublisher, err := htr.NewPublisher(amqpConn, cfg.HTR.RequestQueue, logger)
	if err != nil {
		log.Fatalf("failed to create htr publisher: %v", err)
	}
	defer htrPublisher.Close()

	htrConsumer, err := htr.NewConsumer(amqpConn, cfg.HTR.ResultQueue, cfg.HTR.ConsumerTag, logger)
	if err != nil {
		log.Fatalf("failed to create htr consumer: %v", err)
	}
	defer htrConsumer.Close()

	validate := validator.New(validator.WithRequiredStructEnabled())

	workRepo := repository.NewWorkRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	verificationRepo := repository.NewVerificationRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	activityRepo := repository.NewActivityLogRepository(db)
	classroomRepo := repository.NewClassroomRepository(db)
	subscriptionRepo := repository.NewSubscriptionRepository(db)

	activityService := service.NewActivityService(activityRepo, logger)
	fileService := service.NewFileService(objects, validate, cfg.UploadMaxSizeMB, cfg.Storage.PresignTTL, logger)
	workService := service.NewWorkService(workRepo, taskRepo, fileService, activityService, events, redisClient, service.WorkServiceOptions{
		EventsSubject:    cfg.EventsSubject,
		CacheTTL:         cfg.WorkListCacheTTL,
		StrictReferences: cfg.StrictReferences,
	}, validate, logger)
	aiVerificationService := service.NewAIVerificationService(workRepo, verificationRepo, htrPublisher, activityService, logger)
	aiResultService := service.NewAIResultService(htrConsumer, workRepo, verificationRepo, activityService, logger)
	commentService := service.NewCommentService(workRepo, commentRepo, fileService, activityService, validate, logger)
	taskService := service.NewTaskService(taskRepo, activityService, validate, logger)
	classroomService := service.NewClassroomService(classroomRepo, taskRepo, activityService, validate, logger)
	subscriptionService := service.NewSubscriptionService(subscriptionRepo, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{
		Logger:       &logger,
		AllowOrigins: cfg.AllowOrigins,
		AccessLog:    cfg.AccessLog,
	})
	router.Register(app, cfg, router.Dependencies{
		WorkHandler:         handler.NewWorkHandler(workService, aiVerificationService, logger),
		TaskHandler:         handler.NewTaskHandler(taskService, workService, logger),
		ClassroomHandler:    handler.NewClassroomHandler(classroomService, logger),
		SubscriptionHandler: handler.NewSubscriptionHandler(subscriptionService, logger),
		FileHandler:         handler.NewFileHandler(fileService, logger),
		CommentHandler:      handler.NewCommentHandler(commentService, logger),
		ActivityHandler:     handler.NewActivityHandler(activityService, logger),
		DependencyChecks:    dependencyChecks(db, redisClient, natsConn),
		JWTMiddleware:       middleware.JWTProtected(cfg.JWTSecret),
		AIRateLimit:         cfg.HTR.RateLimit,
	})

	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		if err := aiResultService.Run(ctx); err != nil {
			logger.Error().Err(err).Msg("htr result consumer stopped")
		}
	}()

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(ctx, app, consumerDone, logger)
}

func dependencyChecks(db *gorm.DB, redisClient *redis.Client, natsConn *nats.Conn) map[string]handler.DependencyCheck {
	checks := map[string]handler.DependencyCheck{
		"database": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	}
	if natsConn != nil {
		checks["nats"] = func(context.Context) error {
			if !natsConn.IsConnected() {
				return nats.ErrConnectionClosed
			}
			return nil
		}
	}
	return checks
}

func waitForShutdown(ctx context.Context, app *fiber.App, consumerDone <-chan struct{}, logger zerolog.Logger) {
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	select {
	case <-consumerDone:
	case <-shutdownCtx.Done():
		logger.Warn().Msg("htr result consumer did not stop in time")
	}

	logger.Info().Msg("server stopped")
}
