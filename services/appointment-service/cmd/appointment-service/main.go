package main

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/md-rashed-zaman/apptrequests/libs/auth"
	"github.com/md-rashed-zaman/apptrequests/libs/config"
	"github.com/md-rashed-zaman/apptrequests/libs/db"
	"github.com/md-rashed-zaman/apptrequests/libs/httpx"
	"github.com/md-rashed-zaman/apptrequests/libs/kafkax"
	otelx "github.com/md-rashed-zaman/apptrequests/libs/otel"
	"github.com/md-rashed-zaman/apptrequests/libs/runtime"
	"github.com/md-rashed-zaman/apptrequests/services/appointment-service/internal/availability"
	"github.com/md-rashed-zaman/apptrequests/services/appointment-service/internal/cache"
	"github.com/md-rashed-zaman/apptrequests/services/appointment-service/internal/handlers"
	"github.com/md-rashed-zaman/apptrequests/services/appointment-service/internal/metrics"
	"github.com/md-rashed-zaman/apptrequests/services/appointment-service/internal/outbox"
	"github.com/md-rashed-zaman/apptrequests/services/appointment-service/internal/requests"
	"github.com/md-rashed-zaman/apptrequests/services/appointment-service/internal/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func policyFromEnv() (availability.Policy, error) {
	defaults := availability.DefaultPolicy()
	inHours, err := config.Minutes("EXPIRY_IN_HOURS_GRACE_MINUTES", defaults.InHoursGrace)
	if err != nil {
		return availability.Policy{}, err
	}
	afterBreak, err := config.Minutes("EXPIRY_AFTER_BREAK_GRACE_MINUTES", defaults.AfterBreakGrace)
	if err != nil {
		return availability.Policy{}, err
	}
	nextWindow, err := config.Minutes("EXPIRY_NEXT_WINDOW_GRACE_MINUTES", defaults.NextWindowGrace)
	if err != nil {
		return availability.Policy{}, err
	}
	return availability.Policy{
		InHoursGrace:    inHours,
		AfterBreakGrace: afterBreak,
		NextWindowGrace: nextWindow,
	}, nil
}

func openRedis(ctx context.Context, logger *slog.Logger) *redis.Client {
	raw := strings.TrimSpace(config.String("REDIS_URL", ""))
	if raw == "" {
		logger.Warn("REDIS_URL not set; working hours cache and shared rate limiting disabled")
		return nil
	}
	opts, err := redis.ParseURL(raw)
	if err != nil {
		logger.Error("invalid REDIS_URL; continuing without redis", "err", err)
		return nil
	}
	rdb := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		// The cache and limiter both degrade on errors, so keep the client.
		logger.Warn("redis ping failed", "err", err)
	}
	return rdb
}

func main() {
	_ = godotenv.Load()

	service := config.String("SERVICE_NAME", "appointment-service")
	port, err := config.Port("PORT", "8080")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	jwtSecret, err := config.RequiredString("JWT_SECRET")
	if err != nil {
		panic(err)
	}
	policy, err := policyFromEnv()
	if err != nil {
		panic(err)
	}
	cacheTTL, err := config.Seconds("WORKING_HOURS_CACHE_TTL_SECONDS", 5*time.Minute)
	if err != nil {
		panic(err)
	}
	ratePerMinute, err := config.Int("RATE_LIMIT_PER_MINUTE", 60, 1)
	if err != nil {
		panic(err)
	}
	outboxRetentionDays, err := config.Int("OUTBOX_RETENTION_DAYS", 7, 0)
	if err != nil {
		panic(err)
	}

	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	rdb := openRedis(ctx, logger)
	if rdb != nil {
		defer func() { _ = rdb.Close() }()
	}

	registry := prometheus.DefaultRegisterer
	resolverMetrics := metrics.NewResolver(registry)
	requestMetrics := metrics.NewRequests(registry)

	hoursRepo := storage.NewWorkingHoursRepository(pool)
	var lookup availability.Lookup = hoursRepo
	var invalidator handlers.Invalidator
	if rdb != nil {
		hoursCache := cache.NewWorkingHours(rdb, hoursRepo, cacheTTL, logger)
		lookup = hoursCache
		invalidator = hoursCache
	}

	resolver := availability.NewResolver(lookup,
		availability.WithPolicy(policy),
		availability.WithSink(availability.Sinks(availability.LogSink{Logger: logger}, resolverMetrics)),
	)

	outboxRepo := outbox.NewRepository()
	requestRepo := storage.NewRequestRepository(pool, outboxRepo)
	svc := requests.NewService(requestRepo, resolver, requests.WithMetrics(requestMetrics))

	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: 2 * time.Second,
		BatchSize: 50,
		Retention: time.Duration(outboxRetentionDays) * 24 * time.Hour,
	})
	go outboxPublisher.Run(ctx)

	if err := startGrpcServer(ctx, logger, pool); err != nil {
		logger.Error("grpc server init failed", "err", err)
	}

	var publicLimit httpx.Middleware
	if rdb != nil {
		publicLimit = httpx.NewRedisRateLimiter(rdb, "appointment-requests", ratePerMinute, time.Minute).Middleware(logger, true)
	} else {
		publicLimit = httpx.NewRateLimiter(ratePerMinute, time.Minute).Middleware()
	}

	checks := []runtime.ReadyCheck{
		{Name: "db", Check: db.ReadyCheck(pool)},
		{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	}
	if rdb != nil {
		checks = append(checks, runtime.ReadyCheck{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
	}
	mux := runtime.NewBaseMuxWithReady(checks...)
	mux.Handle("/metrics", promhttp.Handler())
	handlers.Register(mux,
		handlers.NewRequestHandler(svc, logger),
		handlers.NewWorkingHoursHandler(hoursRepo, invalidator, logger),
		handlers.Routes{
			Public:   publicLimit,
			Provider: auth.RequireProvider(jwtSecret),
		},
	)

	httpHandler := httpx.Chain(mux,
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: config.List("CORS_ALLOWED_ORIGINS", ""),
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-Id"},
			MaxAge:         10 * time.Minute,
		}),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRecover(logger),
		httpx.WithBodyLimit(1<<20),
		httpx.WithTimeout(10*time.Second),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "appointments")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}
