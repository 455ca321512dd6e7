// Package main is the entry point for the café API server.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/cafeswipe/server/internal/api"
	"github.com/cafeswipe/server/internal/auth"
	"github.com/cafeswipe/server/internal/cafe"
	"github.com/cafeswipe/server/internal/config"
	"github.com/cafeswipe/server/internal/feed"
	"github.com/cafeswipe/server/internal/health"
	"github.com/cafeswipe/server/internal/idempotency"
	"github.com/cafeswipe/server/internal/media"
	"github.com/cafeswipe/server/internal/middleware"
	"github.com/cafeswipe/server/internal/tracing"
)

// noopEnricher serves café records without signed image URLs. It is
// only used when no object store is configured (local development).
type noopEnricher struct{}

func (noopEnricher) EnrichCafes(ctx context.Context, cafes []*cafe.Cafe) error { return nil }
func (noopEnricher) EnrichCafe(ctx context.Context, c *cafe.Cafe) error        { return nil }

// splitOrigins turns a comma-separated origin list into a slice,
// dropping empty entries.
func splitOrigins(raw string) []string {
	var origins []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

func main() {
	help := flag.Bool("help", false, "display help message")
	configPath := flag.String("config", "", "path to optional YAML config file")
	flag.Parse()

	if *help {
		fmt.Println("Cafeswipe API Server")
		fmt.Println()
		fmt.Println("Usage: api [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfg, errs := config.Load(*configPath)
	if len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintln(os.Stderr, "config:", err)
		}
		os.Exit(1)
	}

	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)
	logger.Info("configuration loaded", "summary", cfg.LogSummary())

	// Tracing
	tracerProvider, err := tracing.NewProvider(tracing.Config{
		ServiceName:  "cafeswipe-api",
		Enabled:      cfg.TracingEnabled,
		Environment:  cfg.Env,
		ExporterType: cfg.TracingExporter,
		OTLPEndpoint: cfg.OTLPEndpoint,
		SamplingRate: cfg.TracingSamplingRate,
		InsecureMode: cfg.TracingInsecure,
	})
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}

	// Metrics
	registry := prometheus.NewRegistry()
	httpMetrics := middleware.NewMetrics()
	if err := httpMetrics.Register(registry); err != nil {
		logger.Error("failed to register http metrics", "error", err)
		os.Exit(1)
	}
	mediaMetrics := media.NewMetrics()
	if err := mediaMetrics.Register(registry); err != nil {
		logger.Error("failed to register media metrics", "error", err)
		os.Exit(1)
	}

	// Storage: Postgres when configured, in-memory otherwise.
	var store cafe.Store
	var dbChecker api.HealthChecker
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
		defer db.Close()

		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := db.PingContext(pingCtx); err != nil {
			cancel()
			logger.Error("failed to ping database", "error", err)
			os.Exit(1)
		}
		cancel()

		store = cafe.NewPostgresStore(db, logger)
		dbChecker = health.NewDBChecker(db)
		logger.Info("using postgres store")
	} else {
		store = cafe.NewMemoryStore()
		logger.Warn("DATABASE_URL not set; using in-memory store")
	}

	// Redis backs distributed rate limiting when configured.
	var rateLimitStore middleware.RateLimitStore
	var redisChecker api.HealthChecker
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Error("invalid REDIS_URL", "error", err)
			os.Exit(1)
		}
		client := redis.NewClient(opts)
		defer client.Close()
		rateLimitStore = middleware.NewRedisRateLimitStore(client).
			WithLogger(logger).
			WithMetrics(httpMetrics)
		redisChecker = health.NewRedisChecker(client)
		logger.Info("using redis rate limit store")
	} else {
		inMem := middleware.NewInMemoryRateLimitStore()
		middleware.StartCleanupLoop(cleanupCtx, inMem, 5*time.Minute)
		rateLimitStore = inMem
	}

	// Media signing: required in production, optional in development.
	var enricher feed.Enricher = noopEnricher{}
	var uploads *api.UploadHandlers
	var s3Checker api.HealthChecker
	if cfg.S3Bucket != "" {
		signer, err := media.NewS3Signer(media.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			Endpoint:        cfg.S3Endpoint,
			MaxUploadMB:     cfg.S3MaxUploadSizeMB,
		})
		if err != nil {
			logger.Error("failed to create media signer", "error", err)
			os.Exit(1)
		}
		enricher = media.NewEnricher(signer, media.EnricherConfig{
			SignTTL:     time.Duration(cfg.SignedURLTTLSeconds) * time.Second,
			Concurrency: cfg.SignConcurrency,
			Logger:      logger,
			Metrics:     mediaMetrics,
		})
		uploads = api.NewUploadHandlers(signer)
		s3Checker = health.NewS3Checker(signer.Client(), signer.Bucket())
	} else {
		logger.Warn("S3_BUCKET_NAME not set; serving cafés without signed image URLs")
	}

	// Feed service
	feedCfg := feed.DefaultConfig()
	feedCfg.DislikeCooldown = time.Duration(cfg.DislikeCooldownDays) * 24 * time.Hour
	svc := feed.NewService(store, enricher, feedCfg, logger)

	// Retried café creates dedupe on Idempotency-Key.
	idemStore := idempotency.NewMemoryRepository()
	go idempotency.StartCleanupLoop(cleanupCtx, idemStore, time.Hour, idempotency.DefaultExpiry)

	// JWT tokens, with dual-secret rotation support.
	var tokens *auth.Service
	if cfg.JWTPreviousSecret != "" {
		tokens = auth.NewServiceWithRotation(cfg.JWTSecret, cfg.JWTPreviousSecret)
	} else {
		tokens = auth.NewService(cfg.JWTSecret)
	}

	router := api.NewRouter(api.RouterConfig{
		Feed:        api.NewFeedHandlers(svc),
		Cafes:       api.NewCafeHandlers(svc),
		Preferences: api.NewPreferenceHandlers(svc),
		Uploads:     uploads,
		Health: api.NewHealthHandlers(api.HealthHandlersConfig{
			DBChecker:    dbChecker,
			RedisChecker: redisChecker,
			S3Checker:    s3Checker,
		}),
		Tokens:           tokens,
		RateLimitStore:   rateLimitStore,
		Metrics:          httpMetrics,
		IdempotencyStore: idemStore,
	})

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.Handle("/", router)

	// Middleware chain, outermost first.
	globalLimiter := middleware.RateLimiter(
		rateLimitStore,
		middleware.DefaultGlobalLimit(),
		middleware.IPKeyFunc(),
		httpMetrics,
	)
	cors := middleware.CORS(middleware.CORSConfig{
		AllowedOrigins:   splitOrigins(cfg.CORSAllowedOrigins),
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           600,
	})
	profiling := middleware.Profiling(middleware.ProfilingConfig{
		Enabled:     cfg.ProfilingEnabled,
		Environment: cfg.Env,
	})
	handler := middleware.RequestID(
		middleware.Tracing("cafeswipe-api")(
			middleware.HTTPMetrics(httpMetrics)(
				middleware.Logging(logger)(
					cors(
						globalLimiter(
							profiling(mux),
						),
					),
				),
			),
		),
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting server", "port", cfg.Port, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	if err := tracerProvider.Shutdown(ctx); err != nil {
		logger.Warn("failed to shut down tracer provider", "error", err)
	}

	logger.Info("server stopped")
}
