package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/velonet/lead-intake-api/internal/config"
	"github.com/velonet/lead-intake-api/internal/domain"
	"github.com/velonet/lead-intake-api/internal/handler"
	"github.com/velonet/lead-intake-api/internal/infra/cache"
	"github.com/velonet/lead-intake-api/internal/infra/client"
	"github.com/velonet/lead-intake-api/internal/infra/observability"
	"github.com/velonet/lead-intake-api/internal/infra/resilience"
	"github.com/velonet/lead-intake-api/internal/infra/supabase"
	"github.com/velonet/lead-intake-api/internal/service"

	"go.uber.org/zap"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("session_ttl", cfg.SessionTTL),
		zap.Duration("viability_cache_ttl", cfg.ViabilityCacheTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
		zap.Duration("jwt_access_ttl", cfg.JWTAccessTTL),
	)

	if cfg.SupabaseURL == "" {
		logger.Fatal("SUPABASE_URL is required")
	}

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "lead-intake-api")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}
	cb := resilience.NewCircuitBreaker("external-apis")

	// --- Clients ---
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	supabaseClient := supabase.NewClient(
		httpClient,
		cfg.SupabaseURL,
		cfg.SupabaseAnonKey,
		cfg.SupabaseServiceKey,
		cb,
		resilienceCfg,
		logger,
	)
	viacepClient := client.NewViaCEPClient(httpClient, cfg.ViaCEPURL, cb, resilienceCfg)

	// --- Services ---
	viabilityCache := cache.New[*domain.ViabilityResult](cfg.ViabilityCacheTTL)
	viabilitySvc := service.NewViabilityService(supabaseClient, viacepClient, viabilityCache, metrics, logger)

	webhookSvc := service.NewWebhookService(supabaseClient, httpClient, cfg.WebhookMaxConcurrent, metrics, logger)
	intakeSvc := service.NewIntakeService(cfg.SessionTTL, viabilitySvc, supabaseClient, webhookSvc, metrics, logger)

	authSvc := service.NewAuthService(supabaseClient, supabaseClient, cfg.JWTSecret, cfg.JWTAccessTTL, logger)
	adminSvc := service.NewAdminService(
		supabaseClient, supabaseClient, supabaseClient, supabaseClient,
		supabaseClient, supabaseClient, webhookSvc, metrics, logger,
	)

	// --- Router ---
	router := handler.NewRouter(handler.Services{
		Intake:    intakeSvc,
		Viability: viabilitySvc,
		Admin:     adminSvc,
		Auth:      authSvc,
		Configs:   supabaseClient,
	}, metrics, logger)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
