package handler

import (
	"fmt"
	"net/http"

	"github.com/deskledger/finance-embed-go/internal/service"

	"go.uber.org/zap"
)

// ============================================================
// Ledger connect flow: GET /auth/connect, GET /auth/callback
// ============================================================

func authConnectHandler(tokenSvc *service.TokenService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, span := tracer.Start(r.Context(), "GET /auth/connect")
		defer span.End()

		target, err := tokenSvc.BeginAuthorization()
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		http.Redirect(w, r, target, http.StatusFound)
	}
}

func authCallbackHandler(tokenSvc *service.TokenService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /auth/callback")
		defer span.End()

		q := r.URL.Query()
		code := q.Get("code")
		if code == "" {
			writeError(w, http.StatusBadRequest, "missing code parameter")
			return
		}
		if err := tokenSvc.ValidateState(q.Get("state")); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		tenantName, err := tokenSvc.CompleteAuthorization(ctx, code)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprintf(w, "Connected to %s. You can close this window.\n", tenantName)
	}
}

// ============================================================
// Signature debugging: GET /debug-hmac
// ============================================================

// debugHMACHandler dumps the full authenticator decision, expected signature
// included. Only mounted when DEBUG_ENDPOINTS is set; never expose it
// without access control.
func debugHMACHandler(auth *service.Authenticator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		decision := auth.Authenticate(q.Get("agentId"), q.Get("area"), q.Get("hmac"))
		writeJSON(w, http.StatusOK, decision)
	}
}
