// Package ledger provides the client for the upstream accounting API: token
// exchanges against its identity service and tenant-scoped JSON queries
// against its accounting endpoints.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/deskledger/finance-embed-go/internal/domain"
	"github.com/deskledger/finance-embed-go/internal/infra/resilience"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("ledger")

// Config holds the upstream endpoints and OAuth client identity.
type Config struct {
	ClientID       string
	ClientSecret   string
	RedirectURI    string
	TokenURL       string
	ConnectionsURL string
	APIURL         string
}

// Client implements port.IdentityClient and port.AccountingClient.
type Client struct {
	httpClient *http.Client
	conf       Config
	cb         *gobreaker.CircuitBreaker
	cfg        resilience.Config
	bulkhead   *resilience.Bulkhead
	logger     *zap.Logger
}

// NewClient creates a ledger client.
func NewClient(httpClient *http.Client, conf Config, cb *gobreaker.CircuitBreaker, cfg resilience.Config, logger *zap.Logger) *Client {
	maxConcurrency := cfg.MaxConcurrency
	if maxConcurrency <= 0 {
		maxConcurrency = 10
	}
	return &Client{
		httpClient: httpClient,
		conf:       conf,
		cb:         cb,
		cfg:        cfg,
		bulkhead:   resilience.NewBulkhead(maxConcurrency),
		logger:     logger,
	}
}

// --- Identity service (implements port.IdentityClient) ---

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// ExchangeCode trades an authorization code for the initial token pair.
// Single attempt: a rejected code is not a transient condition.
func (c *Client) ExchangeCode(ctx context.Context, code string) (*domain.TokenPair, error) {
	ctx, span := tracer.Start(ctx, "Ledger.ExchangeCode")
	defer span.End()

	form := url.Values{
		"grant_type":   {"authorization_code"},
		"code":         {code},
		"redirect_uri": {c.conf.RedirectURI},
	}
	pair, err := c.postTokenForm(ctx, form)
	if err != nil {
		return nil, &domain.ErrAuthExchange{Grant: "authorization_code", Err: err}
	}
	return pair, nil
}

// RefreshToken rotates the token pair. The upstream issues a new refresh
// token on every call; the caller must persist it before using the access
// token.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	ctx, span := tracer.Start(ctx, "Ledger.RefreshToken")
	defer span.End()

	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	}
	pair, err := c.postTokenForm(ctx, form)
	if err != nil {
		return nil, &domain.ErrAuthExchange{Grant: "refresh_token", Err: err}
	}
	return pair, nil
}

func (c *Client) postTokenForm(ctx context.Context, form url.Values) (*domain.TokenPair, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.conf.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.conf.ClientID, c.conf.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("ledger: token request failed", zap.Error(err))
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("ledger: token endpoint rejected grant",
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)),
		)
		return nil, fmt.Errorf("token endpoint returned status %d: %s", resp.StatusCode, string(body))
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}
	if tr.AccessToken == "" {
		return nil, fmt.Errorf("token endpoint returned empty access token")
	}

	return &domain.TokenPair{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
	}, nil
}

// Connections lists the tenants this access token can act on.
func (c *Client) Connections(ctx context.Context, accessToken string) ([]domain.Tenant, error) {
	ctx, span := tracer.Start(ctx, "Ledger.Connections")
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.conf.ConnectionsURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &domain.ErrUpstreamFetch{Endpoint: "connections", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, &domain.ErrUpstreamFetch{
			Endpoint: "connections",
			Err:      fmt.Errorf("status %d: %s", resp.StatusCode, string(body)),
		}
	}

	var tenants []domain.Tenant
	if err := json.NewDecoder(resp.Body).Decode(&tenants); err != nil {
		return nil, &domain.ErrUpstreamFetch{Endpoint: "connections", Err: err}
	}
	return tenants, nil
}

// --- Accounting API (implements port.AccountingClient) ---

type wireContact struct {
	ContactID string `json:"contactId"`
	Name      string `json:"name"`
}

type wireDocument struct {
	Number          string           `json:"number"`
	Contact         wireContact      `json:"contact"`
	Date            string           `json:"date"`
	DueDate         string           `json:"dueDate"`
	Status          string           `json:"status"`
	Total           decimal.Decimal  `json:"total"`
	AmountDue       *decimal.Decimal `json:"amountDue"`
	RemainingCredit *decimal.Decimal `json:"remainingCredit"`
}

// FindContactByName resolves an exact display-name match to a contact id.
func (c *Client) FindContactByName(ctx context.Context, accessToken, tenantID, name string) (*domain.Contact, error) {
	ctx, span := tracer.Start(ctx, "Ledger.FindContactByName")
	defer span.End()
	span.SetAttributes(attribute.String("contact.name", name))

	var out struct {
		Contacts []wireContact `json:"contacts"`
	}
	path := "contacts?where=" + Where().Eq("Name", name).Encode() + "&limit=1"
	if err := c.queryAPI(ctx, "contacts", path, accessToken, tenantID, &out); err != nil {
		return nil, err
	}
	if len(out.Contacts) == 0 {
		return nil, &domain.ErrRecordNotFound{Name: name}
	}

	return &domain.Contact{ID: out.Contacts[0].ContactID, Name: out.Contacts[0].Name}, nil
}

// OpenInvoices lists non-voided invoices for a contact, date descending.
func (c *Client) OpenInvoices(ctx context.Context, accessToken, tenantID, contactID string) ([]domain.Document, error) {
	ctx, span := tracer.Start(ctx, "Ledger.OpenInvoices")
	defer span.End()
	span.SetAttributes(attribute.String("contact.id", contactID))

	var out struct {
		Invoices []wireDocument `json:"invoices"`
	}
	where := Where().EqGUID("Contact.ContactID", contactID).NotEq("Status", "VOIDED")
	path := "invoices?where=" + where.Encode() + "&order=" + url.QueryEscape("Date DESC")
	if err := c.queryAPI(ctx, "invoices", path, accessToken, tenantID, &out); err != nil {
		return nil, err
	}

	return mapDocuments(out.Invoices, domain.DocumentInvoice), nil
}

// OpenCreditNotes lists non-voided credit notes for a contact, date descending.
func (c *Client) OpenCreditNotes(ctx context.Context, accessToken, tenantID, contactID string) ([]domain.Document, error) {
	ctx, span := tracer.Start(ctx, "Ledger.OpenCreditNotes")
	defer span.End()
	span.SetAttributes(attribute.String("contact.id", contactID))

	var out struct {
		CreditNotes []wireDocument `json:"creditNotes"`
	}
	where := Where().EqGUID("Contact.ContactID", contactID).NotEq("Status", "VOIDED")
	path := "creditnotes?where=" + where.Encode() + "&order=" + url.QueryEscape("Date DESC")
	if err := c.queryAPI(ctx, "creditnotes", path, accessToken, tenantID, &out); err != nil {
		return nil, err
	}

	return mapDocuments(out.CreditNotes, domain.DocumentCreditNote), nil
}

// queryAPI executes a bearer + tenant-header authenticated GET against the
// accounting API, with breaker and bulkhead wrapping. Failures come back as
// ErrUpstreamFetch tagged with the endpoint.
func (c *Client) queryAPI(ctx context.Context, endpoint, path string, accessToken, tenantID string, out any) error {
	if err := c.bulkhead.Acquire(ctx); err != nil {
		return &domain.ErrUpstreamFetch{Endpoint: endpoint, Err: err}
	}
	defer c.bulkhead.Release()

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			return c.doQuery(ctx, endpoint, path, accessToken, tenantID, out)
		})
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return &domain.ErrCircuitOpen{}
		}
		return &domain.ErrUpstreamFetch{Endpoint: endpoint, Err: err}
	}
	return nil
}

func (c *Client) doQuery(ctx context.Context, endpoint, path string, accessToken, tenantID string, out any) error {
	reqURL := fmt.Sprintf("%s/%s", strings.TrimSuffix(c.conf.APIURL, "/"), path)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("X-Tenant-Id", tenantID)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("ledger: query failed",
			zap.String("endpoint", endpoint),
			zap.Error(err),
		)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		c.logger.Warn("ledger: non-200 response",
			zap.String("endpoint", endpoint),
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)),
		)
		return fmt.Errorf("%s returned status %d", endpoint, resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

func mapDocuments(rows []wireDocument, docType domain.DocumentType) []domain.Document {
	docs := make([]domain.Document, 0, len(rows))
	for _, r := range rows {
		balance := decimal.Zero
		switch docType {
		case domain.DocumentInvoice:
			if r.AmountDue != nil {
				balance = *r.AmountDue
			}
		case domain.DocumentCreditNote:
			if r.RemainingCredit != nil {
				balance = *r.RemainingCredit
			}
		}
		docs = append(docs, domain.Document{
			Type:        docType,
			Number:      r.Number,
			ContactName: r.Contact.Name,
			Date:        parseDate(r.Date),
			DueDate:     parseDate(r.DueDate),
			Total:       r.Total,
			Balance:     balance,
			Voided:      r.Status == "VOIDED" || r.Status == "DELETED",
		})
	}
	return docs
}

// parseDate accepts RFC3339 or bare-date timestamps; anything else maps to
// the zero time, which renders as an empty date.
func parseDate(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t, _ = time.Parse("2006-01-02", s)
	}
	return t
}
