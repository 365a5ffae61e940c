package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/clinicware/slotengine/libs/config"
	"github.com/clinicware/slotengine/libs/db"
	"github.com/clinicware/slotengine/libs/httpx"
	"github.com/clinicware/slotengine/libs/kafkax"
	otelx "github.com/clinicware/slotengine/libs/otel"
	"github.com/clinicware/slotengine/libs/runtime"
	"github.com/clinicware/slotengine/services/slot-service/internal/assign"
	"github.com/clinicware/slotengine/services/slot-service/internal/consumer"
	"github.com/clinicware/slotengine/services/slot-service/internal/engine"
	"github.com/clinicware/slotengine/services/slot-service/internal/handlers"
	"github.com/clinicware/slotengine/services/slot-service/internal/inbox"
	"github.com/clinicware/slotengine/services/slot-service/internal/metrics"
	"github.com/clinicware/slotengine/services/slot-service/internal/outbox"
	"github.com/clinicware/slotengine/services/slot-service/internal/slotcache"
	"github.com/clinicware/slotengine/services/slot-service/internal/storage"
)

func main() {
	service := config.String("SERVICE_NAME", "slot-service")
	port, err := config.Port("PORT", "8084")
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
	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	ops := metrics.NewOps(registry)

	bookingRepo := storage.NewBookingRepository(pool)
	ruleRepo := storage.NewRuleRepository(pool)
	staffRepo := storage.NewStaffRepository(pool)
	serviceTypeRepo := storage.NewServiceTypeRepository(pool)
	outboxRepo := outbox.NewRepository(pool)
	inboxRepo := inbox.NewRepository(pool)

	cacheTTL := config.Seconds("SLOT_CACHE_TTL_SECONDS", slotcache.DefaultTTL)
	var slotCache slotcache.Cache
	var redisClient *redis.Client
	if strings.EqualFold(config.String("SLOT_CACHE_BACKEND", "memory"), "redis") {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     config.String("REDIS_ADDR", "localhost:6379"),
			Password: config.String("REDIS_PASSWORD", ""),
			DB:       config.Int("REDIS_DB", 0),
		})
		defer redisClient.Close()
		slotCache = slotcache.NewRedis(redisClient, cacheTTL)
		logger.Info("slot cache backend: redis")
	} else {
		slotCache = slotcache.NewMemory(slotcache.WithTTL(cacheTTL))
		logger.Info("slot cache backend: memory")
	}

	recorder := metrics.NewRecorder(storage.NewMetricsStore(pool), ops, logger)
	go recorder.RunRetention(ctx,
		config.Seconds("METRICS_SWEEP_INTERVAL_SECONDS", time.Hour),
		config.Seconds("METRICS_RETENTION_SECONDS", metrics.DefaultRetention),
	)

	slotEngine := engine.New(serviceTypeRepo, ruleRepo, staffRepo, bookingRepo)
	assigner := assign.New(bookingRepo)
	slotService := engine.NewService(slotEngine, slotCache, recorder, assigner, logger)

	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: config.Seconds("OUTBOX_POLL_SECONDS", 2*time.Second),
		BatchSize: config.Int("OUTBOX_BATCH_SIZE", 50),
	})
	go outboxPublisher.Run(ctx)

	if brokers := config.String("KAFKA_BROKERS", ""); strings.TrimSpace(brokers) != "" {
		changeConsumer := consumer.New(logger, inboxRepo, slotService, ops, consumer.Config{
			Brokers: brokers,
			GroupID: config.String("KAFKA_GROUP_ID", "slot-service"),
		})
		go changeConsumer.Run(ctx)
	}

	slotHandler := handlers.NewSlotHandler(slotService, logger)
	bookingHandler := handlers.NewBookingHandler(bookingRepo, outboxRepo, slotService, ops, logger)
	ruleHandler := handlers.NewRuleHandler(ruleRepo, bookingRepo, outboxRepo, slotService, ops, logger)
	serviceTypeHandler := handlers.NewServiceTypeHandler(serviceTypeRepo, bookingRepo, outboxRepo, slotService, ops, logger)
	metricsHandler := handlers.NewMetricsHandler(slotService, logger)

	readyChecks := []runtime.ReadyCheck{
		{Name: "db", Check: db.ReadyCheck(pool)},
		{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	}
	if redisClient != nil {
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "redis", Check: func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}})
	}
	mux := runtime.NewBaseMuxWithReady(readyChecks...)
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/api/v1/slots", slotHandler.Slots)
	mux.HandleFunc("/api/v1/slots/next", slotHandler.Next)
	mux.HandleFunc("/api/v1/slots/assign", slotHandler.Assign)
	mux.HandleFunc("/api/v1/bookings", bookingHandler.Create)
	mux.HandleFunc("/api/v1/bookings/status", bookingHandler.UpdateStatus)
	mux.HandleFunc("/api/v1/bookings/cancel", bookingHandler.Cancel)
	mux.HandleFunc("/api/v1/rules", ruleHandler.List)
	mux.HandleFunc("/api/v1/rules/create", ruleHandler.Create)
	mux.HandleFunc("/api/v1/rules/update", ruleHandler.Update)
	mux.HandleFunc("/api/v1/rules/delete", ruleHandler.Delete)
	mux.HandleFunc("/api/v1/service-types", serviceTypeHandler.List)
	mux.HandleFunc("/api/v1/service-types/scheduling", serviceTypeHandler.UpdateScheduling)
	mux.HandleFunc("/api/v1/metrics/stats", metricsHandler.Stats)
	mux.HandleFunc("/api/v1/metrics/trend", metricsHandler.Trend)

	middlewares := []httpx.Middleware{
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: strings.Split(config.String("CORS_ALLOWED_ORIGINS", ""), ","),
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type"},
			MaxAge:         10 * time.Minute,
		}),
	}
	if limit := config.Int("RATE_LIMIT_PER_MINUTE", 0); limit > 0 {
		if redisClient != nil {
			limiter := httpx.NewRedisRateLimiter(redisClient, limit, time.Minute, service)
			middlewares = append(middlewares, limiter.Middleware(logger, true))
		} else {
			middlewares = append(middlewares, httpx.NewRateLimiter(limit, time.Minute).Middleware())
		}
	}

	httpHandler := httpx.Chain(mux, middlewares...)
	httpHandler = otelhttp.NewHandler(httpHandler, "slot-service")
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
	recorder.Drain()
	logger.Info("http server stopped")
}
