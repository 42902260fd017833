package service

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/deskledger/finance-embed-go/internal/domain"
	"github.com/deskledger/finance-embed-go/internal/infra/cache"
	"github.com/deskledger/finance-embed-go/internal/infra/observability"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type stubIdentity struct{}

func (stubIdentity) ExchangeCode(context.Context, string) (*domain.TokenPair, error) {
	return &domain.TokenPair{AccessToken: "access", RefreshToken: "refresh"}, nil
}

func (stubIdentity) RefreshToken(context.Context, string) (*domain.TokenPair, error) {
	return &domain.TokenPair{AccessToken: "access", RefreshToken: "refresh"}, nil
}

func (stubIdentity) Connections(context.Context, string) ([]domain.Tenant, error) {
	return []domain.Tenant{{ID: "tenant-1", Name: "Demo Org"}}, nil
}

type stubStore struct{}

func (stubStore) Load() (*domain.Credential, error) {
	return &domain.Credential{RefreshToken: "refresh", TenantID: "tenant-1", TenantName: "Demo Org"}, nil
}

func (stubStore) Save(*domain.Credential) error { return nil }

type stubAccounting struct {
	contact      *domain.Contact
	contactErr   error
	invoices     []domain.Document
	creditNotes  []domain.Document
	invoicesErr  error
	findCalls    int
	invoiceCalls int
	creditCalls  int
}

func (a *stubAccounting) FindContactByName(_ context.Context, _, _, name string) (*domain.Contact, error) {
	a.findCalls++
	if a.contactErr != nil {
		return nil, a.contactErr
	}
	return a.contact, nil
}

func (a *stubAccounting) OpenInvoices(_ context.Context, _, _, _ string) ([]domain.Document, error) {
	a.invoiceCalls++
	if a.invoicesErr != nil {
		return nil, a.invoicesErr
	}
	return a.invoices, nil
}

func (a *stubAccounting) OpenCreditNotes(_ context.Context, _, _, _ string) ([]domain.Document, error) {
	a.creditCalls++
	return a.creditNotes, nil
}

func dec(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

var fixedNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func newFinanceService(t *testing.T, accounting *stubAccounting, ttl time.Duration) *FinanceService {
	t.Helper()
	tokens, err := NewTokenService(stubIdentity{}, stubStore{}, TokenConfig{StateSecret: "s"}, observability.NewMetrics(), zap.NewNop())
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	svc := NewFinanceService(tokens, accounting, cache.New[*domain.FinanceSummary](ttl), observability.NewMetrics(), zap.NewNop())
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func TestSummary_AggregatesInvoicesAndCreditNotes(t *testing.T) {
	accounting := &stubAccounting{
		contact: &domain.Contact{ID: "contact-1", Name: "Acme Ltd"},
		invoices: []domain.Document{{
			Type:    domain.DocumentInvoice,
			Number:  "INV-001",
			Date:    fixedNow.AddDate(0, -1, 0),
			DueDate: fixedNow.AddDate(0, 0, -1),
			Total:   dec("100"),
			Balance: dec("40"),
		}},
		creditNotes: []domain.Document{{
			Type:    domain.DocumentCreditNote,
			Number:  "CN-001",
			Date:    fixedNow.AddDate(0, 0, -7),
			Total:   dec("10"),
			Balance: dec("10"),
		}},
	}
	svc := newFinanceService(t, accounting, time.Minute)

	summary, err := svc.Summary(context.Background(), SummaryRequest{Area: "Acme Ltd"})
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}

	if summary.AccountBalance != "30.00" {
		t.Errorf("account balance = %q, want 30.00", summary.AccountBalance)
	}
	if summary.OverdueBalance != "40.00" {
		t.Errorf("overdue balance = %q, want 40.00", summary.OverdueBalance)
	}
	if len(summary.Rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(summary.Rows))
	}
	inv := summary.Rows[0]
	if inv.Number != "INV-001" || inv.Total != "100.00" || inv.Balance != "40.00" {
		t.Errorf("invoice row = %+v", inv)
	}
	if inv.ContactName != "Acme Ltd" {
		t.Errorf("row contact name = %q, want resolved contact", inv.ContactName)
	}
	if cn := summary.Rows[1]; cn.Number != "CN-001" || cn.DueDate != "" {
		t.Errorf("credit note row = %+v", cn)
	}
}

func TestSummary_VoidedDocumentsExcluded(t *testing.T) {
	accounting := &stubAccounting{
		contact: &domain.Contact{ID: "contact-1", Name: "Acme Ltd"},
		invoices: []domain.Document{
			{Type: domain.DocumentInvoice, Number: "INV-001", DueDate: fixedNow.AddDate(0, 0, -1), Total: dec("50"), Balance: dec("50")},
			{Type: domain.DocumentInvoice, Number: "INV-002", DueDate: fixedNow.AddDate(0, 0, -1), Total: dec("500"), Balance: dec("500"), Voided: true},
		},
		creditNotes: []domain.Document{
			{Type: domain.DocumentCreditNote, Number: "CN-001", Total: dec("20"), Balance: dec("20"), Voided: true},
		},
	}
	svc := newFinanceService(t, accounting, time.Minute)

	summary, err := svc.Summary(context.Background(), SummaryRequest{Area: "Acme Ltd"})
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}

	if summary.AccountBalance != "50.00" || summary.OverdueBalance != "50.00" {
		t.Errorf("balances = %q / %q, voided documents leaked in", summary.AccountBalance, summary.OverdueBalance)
	}
	if len(summary.Rows) != 1 || summary.Rows[0].Number != "INV-001" {
		t.Errorf("rows = %+v", summary.Rows)
	}
}

func TestSummary_CreditNotesNeverOverdue(t *testing.T) {
	accounting := &stubAccounting{
		contact: &domain.Contact{ID: "contact-1", Name: "Acme Ltd"},
		creditNotes: []domain.Document{{
			Type:    domain.DocumentCreditNote,
			Number:  "CN-001",
			DueDate: fixedNow.AddDate(0, 0, -30),
			Total:   dec("25"),
			Balance: dec("25"),
		}},
	}
	svc := newFinanceService(t, accounting, time.Minute)

	summary, err := svc.Summary(context.Background(), SummaryRequest{Area: "Acme Ltd"})
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}

	if summary.OverdueBalance != "0.00" {
		t.Errorf("overdue = %q, a credit note must never count as overdue", summary.OverdueBalance)
	}
	if summary.AccountBalance != "-25.00" {
		t.Errorf("account balance = %q, want -25.00", summary.AccountBalance)
	}
}

func TestSummary_DueTodayNotOverdue(t *testing.T) {
	accounting := &stubAccounting{
		contact: &domain.Contact{ID: "contact-1", Name: "Acme Ltd"},
		invoices: []domain.Document{{
			Type:    domain.DocumentInvoice,
			Number:  "INV-001",
			DueDate: fixedNow,
			Total:   dec("80"),
			Balance: dec("80"),
		}},
	}
	svc := newFinanceService(t, accounting, time.Minute)

	summary, err := svc.Summary(context.Background(), SummaryRequest{Area: "Acme Ltd"})
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}

	if summary.OverdueBalance != "0.00" {
		t.Errorf("overdue = %q, due-now is not strictly past due", summary.OverdueBalance)
	}
}

func TestSummary_Deterministic(t *testing.T) {
	accounting := &stubAccounting{
		contact: &domain.Contact{ID: "contact-1", Name: "Acme Ltd"},
		invoices: []domain.Document{
			{Type: domain.DocumentInvoice, Number: "INV-001", DueDate: fixedNow.AddDate(0, 0, -1), Total: dec("100"), Balance: dec("40")},
		},
		creditNotes: []domain.Document{
			{Type: domain.DocumentCreditNote, Number: "CN-001", Total: dec("10"), Balance: dec("10")},
		},
	}
	// Zero TTL expires entries immediately, forcing a rebuild per call.
	svc := newFinanceService(t, accounting, 0)

	first, err := svc.Summary(context.Background(), SummaryRequest{Area: "Acme Ltd"})
	if err != nil {
		t.Fatalf("first Summary: %v", err)
	}
	second, err := svc.Summary(context.Background(), SummaryRequest{Area: "Acme Ltd"})
	if err != nil {
		t.Fatalf("second Summary: %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Errorf("rebuilt summary differs:\n%+v\n%+v", first, second)
	}
	if accounting.invoiceCalls != 2 {
		t.Errorf("invoice calls = %d, want a rebuild per request", accounting.invoiceCalls)
	}
}

func TestSummary_SecondCallServedFromCache(t *testing.T) {
	accounting := &stubAccounting{
		contact: &domain.Contact{ID: "contact-1", Name: "Acme Ltd"},
		invoices: []domain.Document{
			{Type: domain.DocumentInvoice, Number: "INV-001", Total: dec("100"), Balance: dec("100")},
		},
	}
	svc := newFinanceService(t, accounting, time.Minute)

	first, err := svc.Summary(context.Background(), SummaryRequest{Area: "Acme Ltd"})
	if err != nil {
		t.Fatalf("first Summary: %v", err)
	}
	second, err := svc.Summary(context.Background(), SummaryRequest{Area: "Acme Ltd"})
	if err != nil {
		t.Fatalf("second Summary: %v", err)
	}

	if first != second {
		t.Error("cached call returned a different instance")
	}
	if accounting.findCalls != 1 || accounting.invoiceCalls != 1 || accounting.creditCalls != 1 {
		t.Errorf("upstream re-queried on a cache hit: find=%d invoices=%d creditNotes=%d",
			accounting.findCalls, accounting.invoiceCalls, accounting.creditCalls)
	}
}

func TestSummary_ExplicitContactIDSkipsResolution(t *testing.T) {
	accounting := &stubAccounting{
		invoices: []domain.Document{
			{Type: domain.DocumentInvoice, Number: "INV-001", ContactName: "Acme Ltd", Total: dec("100"), Balance: dec("100")},
		},
	}
	svc := newFinanceService(t, accounting, time.Minute)

	summary, err := svc.Summary(context.Background(), SummaryRequest{ContactID: "contact-1"})
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}

	if accounting.findCalls != 0 {
		t.Errorf("contact resolved despite an explicit id")
	}
	if summary.Rows[0].ContactName != "Acme Ltd" {
		t.Errorf("row contact name = %q", summary.Rows[0].ContactName)
	}
}

func TestSummary_FailureNotCached(t *testing.T) {
	accounting := &stubAccounting{
		contact:     &domain.Contact{ID: "contact-1", Name: "Acme Ltd"},
		invoicesErr: &domain.ErrUpstreamFetch{Endpoint: "invoices", Err: errors.New("boom")},
	}
	svc := newFinanceService(t, accounting, time.Minute)

	if _, err := svc.Summary(context.Background(), SummaryRequest{Area: "Acme Ltd"}); err == nil {
		t.Fatal("expected upstream failure")
	}

	accounting.invoicesErr = nil
	accounting.invoices = []domain.Document{
		{Type: domain.DocumentInvoice, Number: "INV-001", Total: dec("60"), Balance: dec("60")},
	}
	summary, err := svc.Summary(context.Background(), SummaryRequest{Area: "Acme Ltd"})
	if err != nil {
		t.Fatalf("retry after failure: %v", err)
	}
	if summary.AccountBalance != "60.00" {
		t.Errorf("account balance = %q, failed result must not be served from cache", summary.AccountBalance)
	}
}

func TestSummary_UnknownContactSurfacesNotFound(t *testing.T) {
	accounting := &stubAccounting{contactErr: &domain.ErrRecordNotFound{Name: "Nobody"}}
	svc := newFinanceService(t, accounting, time.Minute)

	_, err := svc.Summary(context.Background(), SummaryRequest{Area: "Nobody"})

	var notFound *domain.ErrRecordNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("err = %v, want ErrRecordNotFound", err)
	}
}

func TestCacheKey_NamespacesIDAndName(t *testing.T) {
	if got := cacheKey(SummaryRequest{ContactID: "abc"}); got != "id:abc" {
		t.Errorf("id key = %q", got)
	}
	if got := cacheKey(SummaryRequest{Area: "abc"}); got != "name:abc" {
		t.Errorf("name key = %q", got)
	}
}
