package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/lasercare/clinic/internal/config"
	"github.com/lasercare/clinic/internal/domain/admin"
	"github.com/lasercare/clinic/internal/domain/alert"
	"github.com/lasercare/clinic/internal/domain/box"
	"github.com/lasercare/clinic/internal/domain/dashboard"
	"github.com/lasercare/clinic/internal/domain/documents"
	"github.com/lasercare/clinic/internal/domain/patient"
	"github.com/lasercare/clinic/internal/domain/preconsultation"
	"github.com/lasercare/clinic/internal/domain/pricing"
	"github.com/lasercare/clinic/internal/domain/questionnaire"
	"github.com/lasercare/clinic/internal/domain/schedule"
	"github.com/lasercare/clinic/internal/domain/session"
	"github.com/lasercare/clinic/internal/domain/zone"
	"github.com/lasercare/clinic/internal/platform/apperr"
	"github.com/lasercare/clinic/internal/platform/auth"
	"github.com/lasercare/clinic/internal/platform/db"
	"github.com/lasercare/clinic/internal/platform/events"
	"github.com/lasercare/clinic/internal/platform/metrics"
	"github.com/lasercare/clinic/internal/platform/middleware"
	"github.com/lasercare/clinic/internal/platform/openapi"
	"github.com/lasercare/clinic/internal/platform/storage"
)

const version = "1.0.0"

// uploadOverhead is added to the photo size cap for multipart framing and
// the other form fields of an upload request.
const uploadOverhead = 1 << 20

// maxFilesPerRequest bounds the request body of multi-file uploads.
const maxFilesPerRequest = 10

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || cfg.LogLevel == "" {
		level = zerolog.InfoLevel
	}
	if cfg.Debug {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).Level(level).With().Timestamp().Logger()
	}
	return logger
}

// newRedis connects to REDIS_URL, or returns nil when it is unset.
func newRedis(cfg *config.Config) (*redis.Client, error) {
	if cfg.RedisURL == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	return redis.NewClient(opts), nil
}

// newLimiter returns a Redis fixed-window limiter when a client is given
// and an in-memory token bucket otherwise.
func newLimiter(client *redis.Client, perMinute int) middleware.Limiter {
	if client == nil {
		return middleware.NewMemoryLimiter(perMinute)
	}
	return middleware.NewRedisLimiter(client, perMinute)
}

func newStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	if cfg.StorageBackend == "s3" {
		s3, err := storage.NewS3StoreFromEnv(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix)
		if err != nil {
			return nil, err
		}
		return s3, nil
	}
	fs, err := storage.NewFSStore(cfg.PhotosPath)
	if err != nil {
		return nil, err
	}
	return fs, nil
}

func advisoryLocker(pool *pgxpool.Pool) func(ctx context.Context, key int64) error {
	return func(ctx context.Context, key int64) error {
		return db.AdvisoryXactLock(ctx, pool, key)
	}
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Database
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.AppName, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")
	tx := db.NewTransactor(pool)
	lock := advisoryLocker(pool)

	// Storage
	store, err := newStore(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Str("backend", cfg.StorageBackend).Msg("failed to open storage")
	}
	go storage.NewSweeper(store, logger).Run(ctx)

	// Metrics and events
	reg := metrics.NewRegistry()
	httpMetrics := metrics.NewHTTPMetrics(reg)
	eventMetrics := metrics.NewEventMetrics(reg)
	workflowMetrics := metrics.NewWorkflowMetrics(reg)
	bus := events.NewBus(eventMetrics)
	stream := events.NewStreamHandler(bus, logger, eventMetrics)

	// Services
	tokens := auth.NewTokenIssuer(cfg.SigningKey(), time.Duration(cfg.JWTExpireHours)*time.Hour)
	adminSvc := admin.NewService(admin.NewRoleRepo(pool), admin.NewUserRepo(pool), tokens, tx, logger)
	if err := adminSvc.Bootstrap(ctx, cfg.AdminUsername, cfg.AdminPassword); err != nil {
		logger.Fatal().Err(err).Msg("failed to bootstrap roles and administrator")
	}

	zoneSvc := zone.NewService(zone.NewRepo(pool))
	patientSvc := patient.NewService(patient.NewRepo(pool), patient.NewZoneRepo(pool), zoneSvc, logger)
	questionSvc := questionnaire.NewService(questionnaire.NewRepo(pool), tx)
	preconsultSvc := preconsultation.NewService(preconsultation.NewRepo(pool), preconsultation.NewZoneRepo(pool),
		preconsultation.NewResponseRepo(pool), zoneSvc, questionSvc, patientSvc, tx, logger)
	sessionSvc := session.NewService(session.NewRepo(pool), session.NewPhotoRepo(pool), session.NewSideEffectRepo(pool),
		patientSvc, adminSvc, store, tx, logger, cfg.MaxPhotoBytes())
	pricingSvc := pricing.NewService(pricing.NewPackRepo(pool), pricing.NewSubscriptionRepo(pool),
		pricing.NewPaiementRepo(pool), pricing.NewPromotionRepo(pool), zoneSvc, patientSvc, tx, logger)
	boxSvc := box.NewService(box.NewRepo(pool), box.NewAssignmentRepo(pool), adminSvc, tx, lock, logger)
	scheduleSvc := schedule.NewService(schedule.NewRepo(pool), schedule.NewQueueRepo(pool), patientSvc, adminSvc,
		boxSvc, bus, tx, lock, workflowMetrics, logger)
	alertSvc := alert.NewService(patientSvc, preconsultSvc, sessionSvc, logger)
	documentSvc := documents.NewService(documents.NewRepo(pool), patientSvc, store, logger, cfg.MaxPhotoBytes())
	dashboardSvc := dashboard.NewService(dashboard.NewRepo(pool), scheduleSvc, pricingSvc, logger)

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Debug = cfg.Debug
	e.HTTPErrorHandler = apperr.HTTPErrorHandler(logger)

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(httpMetrics.Middleware())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders:     []string{echo.HeaderAuthorization, echo.HeaderContentType, echo.HeaderXRequestID},
		AllowCredentials: true,
	}))

	redisClient, err := newRedis(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure rate limiting")
	}
	if redisClient != nil {
		defer redisClient.Close()
	}
	limiter := newLimiter(redisClient, cfg.RateLimitPerMinute)
	loginLimiter := newLimiter(redisClient, cfg.RateLimitLoginPerMinute)

	e.GET("/health", db.LivenessHandler(cfg.AppName))
	e.GET("/health/db", db.HealthHandler(pool))
	e.GET("/metrics", metrics.Handler(reg))

	public := e.Group("/api/v1",
		middleware.RateLimit(limiter, cfg.RateLimitPerMinute, middleware.ByIP("global"), logger))
	api := public.Group("",
		auth.NewGate(tokens, adminSvc).Middleware(),
		middleware.BodyLimit(maxFilesPerRequest*cfg.MaxPhotoBytes()+uploadOverhead))

	loginThrottle := middleware.RateLimit(loginLimiter, cfg.RateLimitLoginPerMinute, middleware.ByIP("login"), logger)
	admin.NewHandler(adminSvc, cfg.IsProduction()).RegisterRoutes(public, api, loginThrottle)
	zone.NewHandler(zoneSvc).RegisterRoutes(api)
	patient.NewHandler(patientSvc).RegisterRoutes(api)
	questionnaire.NewHandler(questionSvc).RegisterRoutes(api)
	preconsultation.NewHandler(preconsultSvc).RegisterRoutes(api)
	session.NewHandler(sessionSvc).RegisterRoutes(api)
	pricing.NewHandler(pricingSvc).RegisterRoutes(api)
	box.NewHandler(boxSvc).RegisterRoutes(api)
	schedule.NewHandler(scheduleSvc, stream, events.NewUpgrader(cfg.CORSOrigins)).RegisterRoutes(api)
	alert.NewHandler(alertSvc).RegisterRoutes(api)
	documents.NewHandler(documentSvc).RegisterRoutes(api)
	dashboard.NewHandler(dashboardSvc).RegisterRoutes(api)
	openapi.NewGenerator(e.Routes, cfg.AppName, version, "/api/v1",
		"POST /api/v1/auth/login", "GET /api/v1/openapi.json").
		RegisterRoutes(public)

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("environment", cfg.Environment).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}
