package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/padhai-ai/chat-gateway/config"
	"github.com/padhai-ai/chat-gateway/internal/audit"
	"github.com/padhai-ai/chat-gateway/internal/logger"
	"github.com/padhai-ai/chat-gateway/internal/metrics"
	"github.com/padhai-ai/chat-gateway/internal/provider/openai"
	"github.com/padhai-ai/chat-gateway/internal/proxy"
	"github.com/padhai-ai/chat-gateway/internal/quota"
	"github.com/padhai-ai/chat-gateway/internal/store"
	"github.com/padhai-ai/chat-gateway/internal/telemetry"
	"github.com/padhai-ai/chat-gateway/pkg/ratelimit"
)

func main() {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	zlog, err := logger.New(cfg.Env)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer zlog.Sync()

	// 2. Init telemetry
	shutdownTracer, err := telemetry.InitTracer("chat-gateway", cfg)
	if err != nil {
		zlog.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdownTracer()

	ctx := context.Background()

	// 3. Day keys for the quota reset boundary
	days, err := quota.NewDayKeys(cfg.QuotaTimezone)
	if err != nil {
		zlog.Fatal("failed to load quota timezone", zap.Error(err))
	}

	// 4. Usage store: Redis when reachable, one-time in-memory fallback
	// otherwise. The fallback is per-process and loses data on restart;
	// responses carry the active backend so clients can tell.
	var usageStore quota.Store
	var limiter *ratelimit.Limiter

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			zlog.Warn("redis unreachable, falling back to in-memory usage store",
				zap.String("addr", cfg.RedisAddr), zap.Error(err))
			rdb.Close()
		} else {
			defer rdb.Close()
			usageStore = store.NewRedis(rdb)
			limiter = ratelimit.NewLimiter(rdb, cfg.DefaultRateLimitTPM)
			zlog.Info("redis connected", zap.String("addr", cfg.RedisAddr))
		}
	}
	if usageStore == nil {
		usageStore = store.NewMemory()
		metrics.StoreFallbackActive.Set(1)
		zlog.Warn("quota tracking is process-local; usage will not survive restarts")
	}

	ledger := quota.NewLedger(usageStore, days, cfg.DailyTokenLimit)

	// 5. Optional Postgres audit log
	var auditStore audit.Store
	if cfg.PostgresDSN != "" {
		pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
		if err != nil {
			zlog.Fatal("failed to connect postgres", zap.Error(err))
		}
		defer pool.Close()

		if err := pool.Ping(ctx); err != nil {
			zlog.Fatal("failed to ping postgres", zap.Error(err))
		}
		auditStore = audit.NewPostgresStore(pool)
		zlog.Info("postgres connected, audit log enabled")
	}

	// 6. Completion gateway
	gateway := proxy.NewGateway(
		openai.New(cfg.OpenAIAPIKey),
		cfg.SystemPrompt,
		cfg.OpenAIModel,
		time.Duration(cfg.UpstreamTimeoutSeconds)*time.Second,
	)

	// 7. Handler
	tracer := otel.GetTracerProvider().Tracer("chat-gateway")
	handler := proxy.NewHandler(ledger, gateway, auditStore, limiter, tracer, zlog)

	// 8. Router
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(metrics.Middleware())

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok","service":"chat-gateway"}`))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Mount("/v1", proxy.Routes(handler))

	// 9. Graceful shutdown
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		zlog.Info("chat gateway starting", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal("server error", zap.Error(err))
		}
	}()

	<-quit
	zlog.Info("shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Fatal("forced shutdown", zap.Error(err))
	}
	zlog.Info("server stopped")
}
