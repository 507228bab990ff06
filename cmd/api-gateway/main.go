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
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/user-management-api/api/swagger"
	"github.com/noah-isme/user-management-api/internal/events"
	"github.com/noah-isme/user-management-api/internal/handler"
	"github.com/noah-isme/user-management-api/internal/middleware"
	"github.com/noah-isme/user-management-api/internal/migrations"
	"github.com/noah-isme/user-management-api/internal/models"
	"github.com/noah-isme/user-management-api/internal/repository"
	"github.com/noah-isme/user-management-api/internal/service"
	"github.com/noah-isme/user-management-api/pkg/cache"
	"github.com/noah-isme/user-management-api/pkg/config"
	"github.com/noah-isme/user-management-api/pkg/database"
	"github.com/noah-isme/user-management-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/user-management-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/user-management-api/pkg/middleware/requestid"
)

// @title User Management API
// @version 1.0.0
// @description Registration, Elo rating, job claims and verification for transcription staff
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Fatal("server stopped with error", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	if err := database.EnsureSchema(ctx, db, cfg.Database.Schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	if cfg.Database.RunMigrations {
		if err := database.Migrate(ctx, db, cfg.Database.Schema, migrations.FS); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
	}

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, continuing without cache and pub/sub", zap.Error(err))
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	metrics := service.NewMetricsService()
	uow := repository.NewUnitOfWork(db)
	validate := validator.New()

	dispatcher, stopEvents := newDispatcher(cfg, redisClient, metrics, logr)
	defer stopEvents()

	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	availability := service.NewAvailabilityCache(cacheRepo, metrics, cfg.Availability.CacheTTL, logr, cacheRepo.Enabled())

	audit := service.NewAuditService(uow, logr)
	users := service.NewUserService(uow, audit, service.UserServiceConfig{
		Cache:          availability,
		Events:         dispatcher,
		Validator:      validate,
		Logger:         logr,
		BaselineRating: cfg.Elo.BaselineRating,
	})
	auth := service.NewAuthService(uow, audit, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	elo := service.NewEloService(uow, service.EloServiceConfig{
		BaselineRating: cfg.Elo.BaselineRating,
		KFactor:        cfg.Elo.KFactor,
		Events:         dispatcher,
		Metrics:        metrics,
		Validator:      validate,
		Logger:         logr,
	})
	comparisons := service.NewComparisonService(uow, validate, logr)
	statistics := service.NewStatisticsService(uow, audit, service.StatisticsServiceConfig{
		MaxWorkload: cfg.Jobs.MaxWorkload,
		Events:      dispatcher,
		Validator:   validate,
		Logger:      logr,
	})
	requirements := service.NewVerificationRequirementService(uow, audit, validate, logr)
	verification := service.NewVerificationService(uow, validate, logr)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))
	r.Use(middleware.WithResponseMeta())

	ops := handler.NewMetricsHandler(metrics, db)
	r.GET("/health", ops.Health)
	r.GET("/ready", ops.Ready)
	r.GET("/metrics", ops.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	handler.RegisterRoutes(r.Group(cfg.APIPrefix), handler.Handlers{
		Auth:         handler.NewAuthHandler(auth, users),
		Users:        handler.NewUserHandler(users),
		Elo:          handler.NewEloHandler(elo, comparisons),
		Statistics:   handler.NewStatisticsHandler(statistics),
		Verification: handler.NewVerificationHandler(verification, requirements),
		Audit:        handler.NewAuditHandler(audit),
	}, auth)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}

// newDispatcher builds the post-commit event pipeline. Workers outlive the signal context so
// events raised by in-flight requests are still delivered. The returned func delivers what is
// buffered for up to EVENTS_DRAIN_TIMEOUT, then stops and dead-letters the remainder.
func newDispatcher(cfg *config.Config, client *redis.Client, metrics *service.MetricsService, logr *zap.Logger) (events.Emitter, func()) {
	if !cfg.Events.Enabled {
		return events.Noop{}, func() {}
	}

	var sinks []events.Sink
	var deadLetter events.DeadLetterStore
	if client != nil {
		sinks = append(sinks, events.Sink{Name: "redis", Publisher: events.NewRedisPublisher(client, cfg.Events.ChannelPrefix)})
		deadLetter = events.NewRedisDeadLetterStore(client, cfg.Events.DeadLetterKey)
	}
	if cfg.Events.WorkflowURL != "" {
		sinks = append(sinks, events.Sink{
			Name:      "workflow",
			Topics:    []string{models.TopicEloUpdated},
			Publisher: events.NewWebhookNotifier(cfg.Events.WorkflowURL, cfg.Events.WebhookTimeout),
		})
	}
	if len(sinks) == 0 {
		logr.Warn("events enabled but no sink configured")
		return events.Noop{}, func() {}
	}

	dispatcher := events.NewDispatcher(sinks, events.Config{
		Workers:    cfg.Events.Workers,
		MaxRetries: cfg.Events.MaxRetries,
		RetryDelay: cfg.Events.RetryDelay,
	}, deadLetter, metrics, logr)
	dispatcher.Start(context.Background())
	return dispatcher, func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Events.DrainTimeout)
		defer cancel()
		dispatcher.Shutdown(ctx)
	}
}
