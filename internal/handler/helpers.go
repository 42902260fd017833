package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/deskledger/finance-embed-go/internal/domain"

	"go.uber.org/zap"
)

// ============================================================
// Shared helper functions
// ============================================================

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// handleServiceError maps domain errors to HTTP responses: 401 for signature
// and authorization failures, 404 for unresolved contacts, 400 for bad
// input, 503 while the breaker is open, 500 for exchange/upstream failures.
func handleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	var invalidSig *domain.ErrInvalidSignature
	var notAuthorized *domain.ErrNotAuthorized
	var authExchange *domain.ErrAuthExchange
	var noTenant *domain.ErrNoTenant
	var notFound *domain.ErrRecordNotFound
	var upstream *domain.ErrUpstreamFetch
	var circuitOpen *domain.ErrCircuitOpen
	var validation *domain.ErrValidation

	switch {
	case errors.As(err, &invalidSig):
		logger.Warn("invalid signature", zap.String("error", err.Error()))
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.As(err, &notAuthorized):
		logger.Warn("not authorized", zap.String("error", err.Error()))
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.As(err, &notFound):
		logger.Debug("contact not found", zap.String("error", err.Error()))
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &validation):
		logger.Debug("validation error", zap.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &authExchange):
		logger.Error("token exchange failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
	case errors.As(err, &noTenant):
		logger.Error("no tenant connection", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
	case errors.As(err, &circuitOpen):
		logger.Warn("circuit open", zap.String("error", err.Error()))
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.As(err, &upstream):
		logger.Error("upstream fetch failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		logger.Error("unhandled error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
