package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/deskledger/finance-embed-go/internal/config"
	"github.com/deskledger/finance-embed-go/internal/domain"
	"github.com/deskledger/finance-embed-go/internal/handler"
	"github.com/deskledger/finance-embed-go/internal/infra/cache"
	"github.com/deskledger/finance-embed-go/internal/infra/credstore"
	"github.com/deskledger/finance-embed-go/internal/infra/ledger"
	"github.com/deskledger/finance-embed-go/internal/infra/observability"
	"github.com/deskledger/finance-embed-go/internal/infra/resilience"
	"github.com/deskledger/finance-embed-go/internal/service"

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
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.String("credentials_file", cfg.CredentialsFile),
		zap.Bool("debug_endpoints", cfg.DebugEndpoints),
	)
	if cfg.HMACSecret == "" {
		logger.Warn("HMAC_SECRET not set: every embed request will be rejected")
	}

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "deskledger-finance-embed")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Cache ---
	summaryCache := cache.New[*domain.FinanceSummary](cfg.CacheTTL)

	// --- Upstream client ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}
	cb := resilience.NewCircuitBreaker("ledger-api")
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	ledgerClient := ledger.NewClient(httpClient, ledger.Config{
		ClientID:       cfg.ClientID,
		ClientSecret:   cfg.ClientSecret,
		RedirectURI:    cfg.RedirectURI,
		TokenURL:       cfg.TokenURL,
		ConnectionsURL: cfg.ConnectionsURL,
		APIURL:         cfg.APIURL,
	}, cb, resilienceCfg, logger)

	// --- Credential store ---
	credStore := credstore.NewFileStore(cfg.CredentialsFile, logger)

	// --- Services ---
	tokenSvc, err := service.NewTokenService(ledgerClient, credStore, service.TokenConfig{
		AuthorizeURL:   cfg.AuthorizeURL,
		ClientID:       cfg.ClientID,
		RedirectURI:    cfg.RedirectURI,
		Scopes:         cfg.Scopes,
		StateSecret:    cfg.HMACSecret,
		TenantOverride: cfg.TenantID,
	}, metrics, logger)
	if err != nil {
		logger.Fatal("failed to init token service", zap.Error(err))
	}

	auth := service.NewAuthenticator(cfg.HMACSecret, logger)
	financeSvc := service.NewFinanceService(tokenSvc, ledgerClient, summaryCache, metrics, logger)

	// --- Router ---
	router := handler.NewRouter(financeSvc, tokenSvc, auth, metrics, logger, handler.Options{
		DebugEndpoints: cfg.DebugEndpoints,
	})

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
