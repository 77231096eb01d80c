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

	"github.com/noah-isme/docflow-api/internal/config"
	"github.com/noah-isme/docflow-api/internal/database"
	"github.com/noah-isme/docflow-api/internal/handler"
	"github.com/noah-isme/docflow-api/internal/i18n"
	"github.com/noah-isme/docflow-api/internal/middleware"
	"github.com/noah-isme/docflow-api/internal/repository"
	"github.com/noah-isme/docflow-api/internal/router"
	"github.com/noah-isme/docflow-api/internal/service"
	cloud "github.com/noah-isme/docflow-api/pkg/cloudinary"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", cfg.AppName).Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL, database.PostgresOptions{
		MaxOpenConns:    cfg.DatabaseMaxOpenConns,
		MaxIdleConns:    cfg.DatabaseMaxIdleConns,
		ConnMaxLifetime: cfg.DatabaseConnLifetime,
	}, logger.With().Str("component", "gorm").Logger())
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := database.Migrate(db); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}
	probes := []handler.HealthProbe{handler.DatabaseProbe(db)}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(context.Background(), cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
		probes = append(probes, handler.RedisProbe(redisClient))
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsConn.Drain()
		probes = append(probes, handler.NATSProbe(natsConn))
	}

	var storage service.FileStorage
	cloudCfg := cloud.Config{
		CloudName: cfg.CloudinaryCloudName,
		APIKey:    cfg.CloudinaryAPIKey,
		APISecret: cfg.CloudinaryAPISecret,
		Folder:    cfg.CloudinaryUploadFolder,
	}
	if cloudCfg.Enabled() {
		store, err := cloud.New(cloudCfg, logger)
		if err != nil {
			log.Fatalf("failed to create cloudinary client: %v", err)
		}
		storage = store
	} else {
		logger.Warn().Msg("cloudinary not configured; document revisions are disabled")
	}

	translator, err := i18n.NewTranslator(cfg.DefaultLocale)
	if err != nil {
		log.Fatalf("failed to load translations: %v", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	documentRepo := repository.NewDocumentRepository(db)
	formRepo := repository.NewFormRepository(db)
	activityRepo := repository.NewActivityLogRepository(db)

	workflow := service.NewApprovalWorkflow(
		service.NewDocumentApprovalStore(documentRepo),
		service.NewFormApprovalStore(formRepo),
		logger,
	)
	stream := service.NewAuditStream(redisClient, natsConn, cfg.AuditChannel, logger)
	activityService := service.NewActivityService(activityRepo, validate, service.ActivityServiceOptions{
		Locator:  workflow,
		Cache:    redisClient,
		CacheTTL: cfg.AuditCacheTTL,
		Stream:   stream,
	}, logger)
	audit := service.NewAuditRunner(repository.NewTransactor(db), activityService, logger)

	normalizer, err := service.NewFormContentNormalizer()
	if err != nil {
		log.Fatalf("failed to compile form content schema: %v", err)
	}

	formService := service.NewFormService(formRepo, workflow, audit, normalizer, validate, logger)
	documentService := service.NewDocumentService(documentRepo, workflow, audit, storage, cfg.UploadMaxMB, validate, logger)
	directoryService := service.NewDirectoryService(documentRepo, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    (cfg.UploadMaxMB + 1) * 1024 * 1024,
	})

	middleware.Register(app, middleware.Config{Logger: &logger, AllowOrigins: cfg.CORSAllowOrigins})
	router.Register(app, cfg, router.Dependencies{
		FormHandler:        handler.NewFormHandler(formService, validate, translator, logger),
		DocumentHandler:    handler.NewDocumentHandler(documentService, directoryService, validate, translator, logger),
		ActivityLogHandler: handler.NewActivityLogHandler(activityService, stream, translator, logger),
		JWTMiddleware:      middleware.JWTProtected(cfg.JWTSecret),
		HealthProbes:       probes,
	})

	streamCtx, stopStream := context.WithCancel(context.Background())
	defer stopStream()
	stream.Start(streamCtx)

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
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
