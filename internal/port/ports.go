// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"

	"github.com/deskledger/finance-embed-go/internal/domain"
)

// IdentityClient talks to the upstream identity provider's token and
// connections endpoints.
type IdentityClient interface {
	// ExchangeCode trades an authorization code for an initial token pair.
	ExchangeCode(ctx context.Context, code string) (*domain.TokenPair, error)
	// RefreshToken rotates the token pair using a refresh token.
	RefreshToken(ctx context.Context, refreshToken string) (*domain.TokenPair, error)
	// Connections lists tenants the access token can act on.
	Connections(ctx context.Context, accessToken string) ([]domain.Tenant, error)
}

// AccountingClient issues tenant-scoped queries against the ledger API.
type AccountingClient interface {
	// FindContactByName resolves an exact display-name match.
	// Returns *domain.ErrRecordNotFound when nothing matches.
	FindContactByName(ctx context.Context, accessToken, tenantID, name string) (*domain.Contact, error)
	// OpenInvoices lists non-voided invoices for a contact, date descending.
	OpenInvoices(ctx context.Context, accessToken, tenantID, contactID string) ([]domain.Document, error)
	// OpenCreditNotes lists non-voided credit notes for a contact, date descending.
	OpenCreditNotes(ctx context.Context, accessToken, tenantID, contactID string) ([]domain.Document, error)
}

// CredentialStore persists the single delegated credential across restarts.
// A passive serialization boundary; the token service owns the value.
type CredentialStore interface {
	Load() (*domain.Credential, error)
	Save(cred *domain.Credential) error
}

// Cache provides generic memoization with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
}
