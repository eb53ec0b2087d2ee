package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/swagger"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"tumourscan/docs"
	"tumourscan/internal/auth"
	"tumourscan/internal/cache"
	"tumourscan/internal/config"
	"tumourscan/internal/database"
	"tumourscan/internal/database/migration"
	"tumourscan/internal/detection"
	handlers "tumourscan/internal/http/handler"
	"tumourscan/internal/http/middleware"
	"tumourscan/internal/logger"
	"tumourscan/internal/otel"
	"tumourscan/internal/repository/postgres"
	"tumourscan/internal/service"
	"tumourscan/internal/storage"
)

const shutdownTimeout = 10 * time.Second

// @title Tumour Scan API
// @version 1.0
// @description MRI upload, tumour detection and biomarker analysis.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg := config.Load()
	log := logger.New(os.Stdout, cfg.Location(), cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, cfg, log)
	stop()
	if err != nil {
		log.WithError(err).Fatal("server exited")
	}
}

// run owns every resource it opens; deferred cleanup happens before main decides the exit code.
func run(ctx context.Context, cfg *config.AppConfig, log *logrus.Logger) error {
	shutdownTracing, err := otel.Init(ctx, cfg.Tracing, log)
	if err != nil {
		return fmt.Errorf("initialize tracing: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			log.WithError(err).Warn("tracing shutdown failed")
		}
	}()

	db, err := database.NewPostgres(ctx, cfg.Database, log)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	if err := migration.EnsureMigrated(ctx, db, log, cfg.Database.Host); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	objStore, err := storage.NewMinIO(ctx, cfg.MinIO)
	if err != nil {
		return fmt.Errorf("initialize object storage: %w", err)
	}

	provider, err := newProvider(cfg.Inference, log)
	if err != nil {
		return fmt.Errorf("initialize inference provider: %w", err)
	}

	tokens, err := auth.NewTokens(auth.Config{
		Secret:   cfg.Auth.JWTSecret,
		Issuer:   cfg.Auth.Issuer,
		Audience: cfg.Auth.Audience,
		TTL:      cfg.Auth.TokenTTL,
	})
	if err != nil {
		return fmt.Errorf("initialize tokens: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	promMiddleware, err := middleware.NewPrometheusMiddleware(reg, "/health", "/healthz")
	if err != nil {
		return fmt.Errorf("register http metrics: %w", err)
	}
	metrics, err := service.NewMetrics(reg)
	if err != nil {
		return fmt.Errorf("register pipeline metrics: %w", err)
	}
	if err := database.RegisterStats(reg, db, cfg.Database.Name); err != nil {
		return fmt.Errorf("register database pool metrics: %w", err)
	}

	userCache, closeCache, err := newUserCache(ctx, cfg.Cache, log)
	if err != nil {
		return fmt.Errorf("initialize user cache: %w", err)
	}
	defer closeCache()

	imageRepo := postgres.NewMRIImagePostgres(db)
	patientRepo := postgres.NewPatientPostgres(db)
	analysisRepo := postgres.NewAnalysisPostgres(db)
	userRepo := postgres.NewUserPostgres(db)

	svcs := handlers.Services{
		Analysis: service.NewAnalysisService(imageRepo, analysisRepo, provider, cfg.Inference.StaleAfter, metrics, log),
		MRI: service.NewMRIService(objStore, imageRepo, patientRepo, service.UploadLimits{
			MaxFileSize:      cfg.Upload.MaxFileSize,
			AllowedMimeTypes: cfg.Upload.AllowedMimeTypes,
			PresignExpiry:    cfg.MinIO.PresignExpiry,
		}),
		Patients: service.NewPatientService(patientRepo, imageRepo, objStore),
		Auth:     service.NewAuthService(userRepo, tokens, userCache),
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler(),
		BodyLimit:    int(cfg.Upload.MaxFileSize) + 1<<20,
	})

	app.Use(recover.New())
	app.Use(otelfiber.Middleware())
	app.Use(middleware.RequestID())
	app.Use(middleware.Logger(log))
	app.Use(promMiddleware.Handler())

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))

	handlers.RegisterRoutes(app, db, svcs, handlers.RateLimit{
		RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
		Burst:             cfg.RateLimit.Burst,
	})

	// Swagger UI with dynamic host and scheme
	app.Get("/swagger/*", func(c *fiber.Ctx) error {
		scheme := c.Protocol()
		if proto := c.Get("X-Forwarded-Proto"); proto != "" {
			scheme = strings.Split(proto, ",")[0]
		}

		docs.SwaggerInfo.Host = c.Get("Host")
		docs.SwaggerInfo.Schemes = []string{scheme}

		return swagger.HandlerDefault(c)
	})

	go func() {
		<-ctx.Done()
		log.Info("shutting down")
		if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			log.WithError(err).Error("server shutdown failed")
		}
	}()

	addr := ":" + cfg.Port
	log.WithField("addr", addr).Info("listening")
	if err := app.Listen(addr); err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return nil
}

func newProvider(cfg config.InferenceConfig, log logrus.FieldLogger) (detection.Provider, error) {
	if cfg.Mode == "remote" {
		return detection.NewRemote(detection.RemoteConfig{
			BaseURL:         cfg.RemoteURL,
			Timeout:         cfg.Timeout,
			MaxRequests:     uint32(cfg.BreakerMaxRequests),
			Interval:        cfg.BreakerInterval,
			OpenTimeout:     cfg.BreakerOpenTimeout,
			FailureRatio:    cfg.BreakerFailureRatio,
			MinimumRequests: uint32(cfg.BreakerMinimumRequests),
		}, nil, log)
	}

	gen := detection.NewGenerator(detection.NewSource(cfg.Seed))
	return detection.NewSimulated(gen, detection.SimulatedConfig{
		TumourDelay:    cfg.TumourDelay,
		BiomarkerDelay: cfg.BiomarkerDelay,
		Timeout:        cfg.Timeout,
	}), nil
}

func newUserCache(ctx context.Context, cfg config.CacheConfig, log logrus.FieldLogger) (cache.UserCache, func(), error) {
	if cfg.RedisURL == "" {
		return cache.NewLRU(cfg.LRUSize, cfg.TTL), func() {}, nil
	}
	rc, err := cache.NewRedis(ctx, cfg, log)
	if err != nil {
		return nil, nil, err
	}
	log.WithField("component", "user_cache").Info("using redis user cache")
	return rc, func() { _ = rc.Close() }, nil
}
