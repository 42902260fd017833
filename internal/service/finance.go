package service

import (
	"context"
	"time"

	"github.com/deskledger/finance-embed-go/internal/domain"
	"github.com/deskledger/finance-embed-go/internal/infra/observability"
	"github.com/deskledger/finance-embed-go/internal/port"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var financeTracer = otel.Tracer("service/finance")

// SummaryRequest identifies whose summary to build. When ContactID is set
// the resolution step is skipped and the id doubles as the cache key.
type SummaryRequest struct {
	Area      string
	ContactID string
}

// FinanceService composes the token lifecycle, contact resolution and
// document aggregation behind the short-TTL result cache.
type FinanceService struct {
	tokens     *TokenService
	accounting port.AccountingClient
	cache      port.Cache[*domain.FinanceSummary]
	metrics    *observability.Metrics
	logger     *zap.Logger
	now        func() time.Time
}

// NewFinanceService creates the finance service with all dependencies injected.
func NewFinanceService(
	tokens *TokenService,
	accounting port.AccountingClient,
	cache port.Cache[*domain.FinanceSummary],
	metrics *observability.Metrics,
	logger *zap.Logger,
) *FinanceService {
	return &FinanceService{
		tokens:     tokens,
		accounting: accounting,
		cache:      cache,
		metrics:    metrics,
		logger:     logger,
		now:        time.Now,
	}
}

// Summary returns the finance summary for the request, consulting the cache
// first. On a miss it refreshes the access token, resolves the contact when
// needed, aggregates documents and stores the result; the cache is only
// populated on full success.
func (s *FinanceService) Summary(ctx context.Context, req SummaryRequest) (*domain.FinanceSummary, error) {
	ctx, span := financeTracer.Start(ctx, "FinanceService.Summary")
	defer span.End()
	span.SetAttributes(attribute.String("area", req.Area))

	start := s.now()
	defer func() {
		s.metrics.RecordRequestDuration("summary", time.Since(start))
	}()

	key := cacheKey(req)
	if cached, ok := s.cache.Get(key); ok {
		s.metrics.IncrCacheHit("summary")
		return cached, nil
	}
	s.metrics.IncrCacheMiss("summary")

	accessToken, err := s.tokens.EnsureAccessToken(ctx)
	if err != nil {
		return nil, err
	}
	tenantID, err := s.tokens.EnsureTenantID(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	contactID := req.ContactID
	var contactName string
	if contactID == "" {
		contact, err := s.accounting.FindContactByName(ctx, accessToken, tenantID, req.Area)
		if err != nil {
			return nil, err
		}
		contactID = contact.ID
		contactName = contact.Name
	}

	summary, err := s.buildSummary(ctx, accessToken, tenantID, contactID, contactName)
	if err != nil {
		s.metrics.IncrUpstreamError("summary")
		return nil, err
	}

	s.cache.Set(key, summary)
	s.logger.Debug("summary built",
		zap.String("key", key),
		zap.Int("rows", len(summary.Rows)),
	)
	return summary, nil
}

// buildSummary fetches open invoices and credit notes for the contact and
// reduces them: invoices add their outstanding balance, credit notes
// subtract theirs; overdue counts only invoices due strictly before now with
// a strictly positive balance. Voided documents never contribute.
func (s *FinanceService) buildSummary(ctx context.Context, accessToken, tenantID, contactID, contactName string) (*domain.FinanceSummary, error) {
	ctx, span := financeTracer.Start(ctx, "FinanceService.buildSummary")
	defer span.End()
	span.SetAttributes(attribute.String("contact.id", contactID))

	invoices, err := s.accounting.OpenInvoices(ctx, accessToken, tenantID, contactID)
	if err != nil {
		return nil, err
	}
	creditNotes, err := s.accounting.OpenCreditNotes(ctx, accessToken, tenantID, contactID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	account := decimal.Zero
	overdue := decimal.Zero
	rows := make([]domain.DocumentRow, 0, len(invoices)+len(creditNotes))

	for _, doc := range invoices {
		if doc.Voided {
			continue
		}
		account = account.Add(doc.Balance)
		if doc.Balance.IsPositive() && !doc.DueDate.IsZero() && doc.DueDate.Before(now) {
			overdue = overdue.Add(doc.Balance)
		}
		rows = append(rows, formatRow(doc, contactName))
	}
	for _, doc := range creditNotes {
		if doc.Voided {
			continue
		}
		account = account.Sub(doc.Balance)
		rows = append(rows, formatRow(doc, contactName))
	}

	return &domain.FinanceSummary{
		AccountBalance: account.StringFixed(2),
		OverdueBalance: overdue.StringFixed(2),
		Rows:           rows,
		AsOf:           now,
	}, nil
}

func formatRow(doc domain.Document, fallbackName string) domain.DocumentRow {
	name := doc.ContactName
	if name == "" {
		name = fallbackName
	}
	return domain.DocumentRow{
		ContactName: name,
		Date:        formatDate(doc.Date),
		Type:        doc.Type,
		Number:      doc.Number,
		DueDate:     formatDate(doc.DueDate),
		Total:       doc.Total.StringFixed(2),
		Balance:     doc.Balance.StringFixed(2),
	}
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

// cacheKey namespaces the two resolution inputs so a display name can never
// alias a contact id.
func cacheKey(req SummaryRequest) string {
	if req.ContactID != "" {
		return "id:" + req.ContactID
	}
	return "name:" + req.Area
}
