package handler

import (
	"net/http"

	"github.com/deskledger/finance-embed-go/internal/domain"
	"github.com/deskledger/finance-embed-go/internal/infra/render"
	"github.com/deskledger/finance-embed-go/internal/service"

	"go.uber.org/zap"
)

// ============================================================
// Finance embed: GET /finance
// ============================================================

// financeHandler serves the summary for an authenticated embed request.
// Default output is the HTML panel the host platform iframes; format=json
// returns the raw summary.
func financeHandler(financeSvc *service.FinanceService, auth *service.Authenticator, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /finance")
		defer span.End()

		req, err := authenticateEmbed(r, auth)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		summary, err := financeSvc.Summary(ctx, req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		if r.URL.Query().Get("format") == "json" {
			writeJSON(w, http.StatusOK, summary)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := render.HTML(w, req.Area, summary); err != nil {
			logger.Error("render panel", zap.Error(err))
		}
	}
}

// financeExportHandler serves the row list as a CSV attachment, behind the
// same signature check as the panel.
func financeExportHandler(financeSvc *service.FinanceService, auth *service.Authenticator, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /finance/export")
		defer span.End()

		req, err := authenticateEmbed(r, auth)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		summary, err := financeSvc.Summary(ctx, req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="statement.csv"`)
		if err := render.CSV(w, summary); err != nil {
			logger.Error("render csv", zap.Error(err))
		}
	}
}

// authenticateEmbed validates the signed query parameters and extracts the
// summary request. An explicit contactId skips name resolution downstream.
func authenticateEmbed(r *http.Request, auth *service.Authenticator) (service.SummaryRequest, error) {
	q := r.URL.Query()
	decision := auth.Authenticate(q.Get("agentId"), q.Get("area"), q.Get("hmac"))
	if !decision.Valid {
		return service.SummaryRequest{}, &domain.ErrInvalidSignature{Reason: decision.Reason}
	}

	req := service.SummaryRequest{
		Area:      q.Get("area"),
		ContactID: q.Get("contactId"),
	}
	if req.Area == "" && req.ContactID == "" {
		return service.SummaryRequest{}, &domain.ErrValidation{Field: "area", Message: "required"}
	}
	return req, nil
}
