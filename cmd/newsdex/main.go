package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kailas-cloud/newsdex/internal/config"
	"github.com/kailas-cloud/newsdex/internal/domain"
	"github.com/kailas-cloud/newsdex/internal/fetch"
	"github.com/kailas-cloud/newsdex/internal/ingest"
	logpkg "github.com/kailas-cloud/newsdex/internal/logger"
	"github.com/kailas-cloud/newsdex/internal/metrics"
	"github.com/kailas-cloud/newsdex/internal/retention"
	"github.com/kailas-cloud/newsdex/internal/store"
	storeRedis "github.com/kailas-cloud/newsdex/internal/store/redis"
	storeSqlite "github.com/kailas-cloud/newsdex/internal/store/sqlite"
	chiTransport "github.com/kailas-cloud/newsdex/internal/transport/chi"
	itemsuc "github.com/kailas-cloud/newsdex/internal/usecase/items"
	"github.com/kailas-cloud/newsdex/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting newsdex server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_driver", cfg.Database.Driver),
	)

	// Create the store based on driver
	var st store.Store
	switch cfg.Database.Driver {
	case "sqlite":
		st, err = storeSqlite.New(cfg.Database.Path, logger)
	case "redis":
		st, err = storeRedis.NewStore(storeRedis.Config{
			Addrs:    cfg.Database.Addrs,
			Username: cfg.Database.Username,
			Password: cfg.Database.Password,
			DB:       cfg.Database.DB,
			ItemTTL:  time.Duration(cfg.Database.ItemTTLDays) * 24 * time.Hour,
		}, logger)
	default:
		logger.Fatal("Unknown database driver", zap.String("driver", cfg.Database.Driver))
	}
	if err != nil {
		logger.Fatal("Failed to create store", zap.Error(err))
	}
	defer st.Close()

	// Wait for the backend to be ready
	ctx := context.Background()
	readiness := time.Duration(cfg.Database.ReadinessTimeout) * time.Second
	if waiter, ok := st.(interface {
		WaitForReady(ctx context.Context, timeout time.Duration) error
	}); ok {
		if err := waiter.WaitForReady(ctx, readiness); err != nil {
			logger.Fatal("Store not ready", zap.Error(err))
		}
	} else if err := st.Ping(ctx); err != nil {
		logger.Fatal("Store not ready", zap.Error(err))
	}
	logger.Info("Connected to store")

	// Register pipeline metrics explicitly (no init())
	metrics.RegisterPipelineMetrics()

	feeds, err := parseFeeds(cfg.Feeds)
	if err != nil {
		logger.Fatal("Invalid feed configuration", zap.Error(err))
	}

	// Item read service
	itemSvc := itemsuc.New(st, st).
		WithGrouping(cfg.Grouping.IsEnabled(), cfg.Grouping.Threshold)
	if searcher, ok := st.(store.Searcher); ok {
		itemSvc = itemSvc.WithSearcher(searcher)
	}

	// Ingestion pipeline
	orchestrator := ingest.New(fetch.NewFetcher(), st, feeds, ingest.Config{
		FetchInterval:     time.Duration(cfg.Ingest.FetchIntervalMin) * time.Minute,
		HousekeepInterval: time.Duration(cfg.Ingest.HousekeepIntervalH) * time.Hour,
		RetainFor:         time.Duration(cfg.Ingest.RetainDays) * 24 * time.Hour,
		OpTimeout:         time.Duration(cfg.Ingest.OpTimeoutSec) * time.Second,
	}, logger)
	if housekeeper, ok := st.(store.Housekeeper); ok {
		orchestrator = orchestrator.WithHousekeeper(housekeeper)
	}
	if pruner, ok := st.(store.IndexPruner); ok {
		orchestrator = orchestrator.WithIndexPruner(pruner)
	}

	// Retention policy depends on the backend's reclamation capability
	var policy retention.Policy
	if reclaimer, ok := st.(store.Reclaimer); ok {
		policy = retention.NewPopularityPolicy(reclaimer, logger).WithHorizons(
			time.Duration(cfg.Retention.DegradeHorizonH)*time.Hour,
			time.Duration(cfg.Retention.EvictHorizonH)*time.Hour,
		)
	} else if pruner, ok := st.(store.IndexPruner); ok {
		policy = retention.NewExpiryPolicy(pruner,
			time.Duration(cfg.Ingest.RetainDays)*24*time.Hour, logger)
	}

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := orchestrator.Run(runCtx); err != nil && err != context.Canceled {
			logger.Error("ingestion stopped", zap.Error(err))
		}
	}()
	if policy != nil {
		engine := retention.NewEngine(policy,
			time.Duration(cfg.Retention.IntervalMin)*time.Minute,
			time.Duration(cfg.Retention.RunTimeoutSec)*time.Second,
			logger)
		go func() {
			if err := engine.Run(runCtx); err != nil && err != context.Canceled {
				logger.Error("retention stopped", zap.Error(err))
			}
		}()
	}

	// HTTP API
	server := chiTransport.NewServer(itemSvc, st, logger)
	if cache, ok := st.(store.Cache); ok {
		server = server.WithCache(cache)
	}

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(metrics.Middleware())
	r.Mount("/", server.Routes())

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-runCtx.Done()
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// parseFeeds validates the configured sources up front so a category typo
// fails startup instead of silently miscategorizing a feed.
func parseFeeds(configs []config.FeedConfig) ([]domain.Feed, error) {
	feeds := make([]domain.Feed, 0, len(configs))
	for _, fc := range configs {
		category := domain.CategoryGeneral
		if fc.Category != "" {
			parsed, err := domain.ParseCategory(fc.Category)
			if err != nil {
				return nil, fmt.Errorf("feed %s: %w", fc.URL, err)
			}
			category = parsed
		}
		feeds = append(feeds, domain.Feed{URL: fc.URL, Source: fc.Source, Category: category})
	}
	return feeds, nil
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			// Set X-Request-ID in response header
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
