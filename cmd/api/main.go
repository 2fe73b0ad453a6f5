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
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-assignment-api/internal/cache"
	"github.com/noah-isme/gema-assignment-api/internal/config"
	"github.com/noah-isme/gema-assignment-api/internal/database"
	"github.com/noah-isme/gema-assignment-api/internal/gateway"
	"github.com/noah-isme/gema-assignment-api/internal/handler"
	"github.com/noah-isme/gema-assignment-api/internal/middleware"
	"github.com/noah-isme/gema-assignment-api/internal/notification"
	"github.com/noah-isme/gema-assignment-api/internal/repository"
	"github.com/noah-isme/gema-assignment-api/internal/router"
	"github.com/noah-isme/gema-assignment-api/internal/service"
	"github.com/noah-isme/gema-assignment-api/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", cfg.ServiceName).Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	var studentCache cache.Client = cache.Disabled{}
	if cfg.RedisURL != "" {
		redisClient, err := database.ConnectRedis(cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
		studentCache = cache.NewRedis(redisClient, cfg.StudentCacheTTL, logger)
	} else {
		logger.Warn().Msg("redis url not set, student assignment cache disabled")
	}

	breakerCfg := gateway.BreakerConfig{
		FailureRateThreshold: cfg.BreakerFailureRate,
		MinimumRequests:      cfg.BreakerMinimumRequests,
		Window:               cfg.BreakerWindow,
		OpenTimeout:          cfg.BreakerOpenTimeout,
		HalfOpenRequests:     cfg.BreakerHalfOpenCalls,
	}
	retry := gateway.RetryPolicy{
		MaxAttempts:     cfg.RetryMaxAttempts,
		InitialInterval: cfg.RetryInitialInterval,
		MaxInterval:     cfg.RetryMaxInterval,
		MaxElapsedTime:  cfg.RetryMaxElapsed,
	}
	batchBreaker := gateway.NewBreaker("batch_service", breakerCfg, logger)
	userBreaker := gateway.NewBreaker("user_service", breakerCfg, logger)
	batches := gateway.NewBatchGateway(
		gateway.NewHTTPBatchClient(cfg.BatchServiceURL, cfg.ServiceName, cfg.GatewayTimeout),
		batchBreaker,
		retry,
		logger,
	)
	users := gateway.NewUserGateway(
		gateway.NewHTTPUserClient(cfg.UserServiceURL, cfg.ServiceName, cfg.GatewayTimeout),
		userBreaker,
		retry,
		logger,
	)

	publishers, closePublishers := connectPublishers(cfg, logger)
	defer closePublishers()
	dispatcher := notification.NewDispatcher(logger, publishers...)

	store, err := openStore(cfg, logger)
	if err != nil {
		log.Fatalf("failed to configure file storage: %v", err)
	}
	uploads := storage.UploadPolicy{MaxBytes: cfg.UploadMaxBytes, AllowedExtensions: cfg.UploadExtensions}

	validate := validator.New(validator.WithRequiredStructEnabled())

	assignmentRepo := repository.NewAssignmentRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	bankRepo := repository.NewQuestionBankRepository(db)
	mcqSubmissionRepo := repository.NewMcqSubmissionRepository(db)

	lifecycleService := service.NewLifecycleService(assignmentRepo, batches, studentCache, dispatcher, cfg.FanOutLimit, logger)
	assignmentService := service.NewAssignmentService(assignmentRepo, submissionRepo, bankRepo, mcqSubmissionRepo, batches, studentCache, validate, logger)
	submissionService := service.NewSubmissionService(service.SubmissionDeps{
		Assignments: assignmentRepo,
		Submissions: submissionRepo,
		Users:       users,
		Store:       store,
		Cache:       studentCache,
		Notifier:    dispatcher,
		Validator:   validate,
	}, logger)
	studentService := service.NewStudentAssignmentService(service.StudentAssignmentDeps{
		Assignments:    assignmentRepo,
		Submissions:    submissionRepo,
		Banks:          bankRepo,
		McqSubmissions: mcqSubmissionRepo,
		Batches:        batches,
		Cache:          studentCache,
		Notifier:       dispatcher,
		Store:          store,
		Uploads:        uploads,
		Validator:      validate,
	}, logger)
	mcqService := service.NewMcqService(assignmentRepo, bankRepo, mcqSubmissionRepo, batches, users, studentCache, validate, logger)
	studentMcqService := service.NewStudentMcqService(assignmentRepo, bankRepo, mcqSubmissionRepo, batches, studentCache, dispatcher, validate, logger)

	submitLimiter := middleware.RateLimit("submit", cfg.SubmitRateLimit, cfg.SubmitRateWindow)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    int(cfg.UploadMaxBytes) + 1<<20,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		AssignmentHandler:        handler.NewAssignmentHandler(assignmentService, lifecycleService, logger),
		SubmissionHandler:        handler.NewSubmissionHandler(submissionService, logger),
		McqHandler:               handler.NewMcqHandler(mcqService, lifecycleService, logger),
		StudentAssignmentHandler: handler.NewStudentAssignmentHandler(studentService, submitLimiter, logger),
		StudentMcqHandler:        handler.NewStudentMcqHandler(studentMcqService, submitLimiter, logger),
		JWTMiddleware:            middleware.JWTProtected(cfg.JWTSecret),
		Breakers:                 []*gateway.Breaker{batchBreaker, userBreaker},
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
}

func connectPublishers(cfg config.Config, logger zerolog.Logger) ([]notification.Publisher, func()) {
	var (
		publishers []notification.Publisher
		closers    []func()
	)

	if cfg.NATSURL != "" {
		conn, err := notification.ConnectNATS(cfg.NATSURL, cfg.ServiceName)
		if err != nil {
			logger.Error().Err(err).Msg("nats unavailable, notifications will not use it")
		} else {
			publishers = append(publishers, notification.NewNATSPublisher(conn, cfg.NATSSubject))
			closers = append(closers, conn.Close)
		}
	}

	if cfg.RabbitMQURL != "" {
		conn, err := notification.ConnectRabbitMQ(cfg.RabbitMQURL)
		if err != nil {
			logger.Error().Err(err).Msg("rabbitmq unavailable, notifications will not use it")
		} else {
			publisher, err := notification.NewRabbitMQPublisher(conn, cfg.RabbitMQExchange, cfg.RabbitMQRoute)
			if err != nil {
				logger.Error().Err(err).Msg("failed to open rabbitmq channel")
				_ = conn.Close()
			} else {
				publishers = append(publishers, publisher)
				closers = append(closers, func() {
					_ = publisher.Close()
					_ = conn.Close()
				})
			}
		}
	}

	if len(publishers) == 0 {
		logger.Warn().Msg("no notification transport configured, events will only be logged")
	}

	return publishers, func() {
		for _, closeFn := range closers {
			closeFn()
		}
	}
}

func openStore(cfg config.Config, logger zerolog.Logger) (storage.BlobStore, error) {
	switch cfg.StorageDriver {
	case config.StorageMinIO:
		return storage.NewMinIOStore(storage.MinIOConfig{
			Endpoint:  cfg.MinIOEndpoint,
			AccessKey: cfg.MinIOAccessKey,
			SecretKey: cfg.MinIOSecretKey,
			Bucket:    cfg.MinIOBucket,
			UseSSL:    cfg.MinIOUseSSL,
			Timeout:   cfg.GatewayTimeout,
		})
	case config.StorageCloudinary:
		return storage.NewCloudinaryStore(storage.CloudinaryConfig{
			CloudName: cfg.CloudinaryCloudName,
			APIKey:    cfg.CloudinaryAPIKey,
			APISecret: cfg.CloudinaryAPISecret,
			Folder:    cfg.CloudinaryUploadFolder,
		}, logger)
	default:
		return storage.NewLocalStore(cfg.StorageLocalRoot)
	}
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
