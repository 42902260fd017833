package handler

import (
	"net/http"
	"strconv"

	"github.com/deskledger/finance-embed-go/internal/infra/observability"
	"github.com/deskledger/finance-embed-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// Options toggles optional surfaces.
type Options struct {
	// DebugEndpoints mounts /debug-hmac. Documented risk: the endpoint
	// echoes expected signatures.
	DebugEndpoints bool
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(
	financeSvc *service.FinanceService,
	tokenSvc *service.TokenService,
	auth *service.Authenticator,
	metrics *observability.Metrics,
	logger *zap.Logger,
	opts Options,
) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))
	r.Use(requestCounter(metrics))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(tokenSvc, metrics))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- Embed surface ---
	r.Get("/finance", financeHandler(financeSvc, auth, logger))
	r.Get("/finance/export", financeExportHandler(financeSvc, auth, logger))

	// --- Connect flow ---
	r.Get("/auth/connect", authConnectHandler(tokenSvc, logger))
	r.Get("/auth/callback", authCallbackHandler(tokenSvc, logger))

	if opts.DebugEndpoints {
		r.Get("/debug-hmac", debugHMACHandler(auth))
	}

	return r
}

// healthzHandler reports liveness plus whether the ledger connection is
// authorized, without exposing the credential itself.
func healthzHandler(tokenSvc *service.TokenService, metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := struct {
			Status     string                   `json:"status"`
			Authorized bool                     `json:"authorized"`
			Tenant     string                   `json:"tenant,omitempty"`
			Cache      observability.CacheStats `json:"cache"`
		}{
			Status: "ok",
			Cache:  metrics.SummaryCacheStats(),
		}
		if tokenSvc != nil {
			status.Authorized = tokenSvc.Authorized()
			status.Tenant = tokenSvc.TenantName()
		}
		writeJSON(w, http.StatusOK, status)
	}
}

// requestCounter counts completed requests by status code.
func requestCounter(metrics *observability.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			metrics.IncrRequest(strconv.Itoa(ww.Status()))
		})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}
