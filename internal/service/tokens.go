package service

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/deskledger/finance-embed-go/internal/domain"
	"github.com/deskledger/finance-embed-go/internal/infra/observability"
	"github.com/deskledger/finance-embed-go/internal/port"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var tokenTracer = otel.Tracer("service/tokens")

// TokenConfig holds the OAuth client settings for the connect flow.
type TokenConfig struct {
	AuthorizeURL string
	ClientID     string
	RedirectURI  string
	Scopes       string
	// StateSecret signs the state parameter that ties /auth/connect to
	// /auth/callback.
	StateSecret string
	// TenantOverride pins the tenant id instead of committing to the first
	// connection returned.
	TenantOverride string
}

// TokenService owns the delegated credential and its lifecycle: the
// authorization-code exchange, unconditional refresh-on-use, and tenant
// selection. The credential is exposed only through these operations so
// every mutation reaches the store.
type TokenService struct {
	identity port.IdentityClient
	store    port.CredentialStore
	conf     TokenConfig
	metrics  *observability.Metrics
	logger   *zap.Logger

	mu   sync.Mutex
	cred *domain.Credential

	// Coalesces concurrent refresh exchanges into one in-flight call.
	// Each completed flight is forgotten, so sequential calls still rotate.
	refreshGroup singleflight.Group
}

// NewTokenService creates the token service, reloading any persisted
// credential so authorization survives restarts.
func NewTokenService(identity port.IdentityClient, store port.CredentialStore, conf TokenConfig, metrics *observability.Metrics, logger *zap.Logger) (*TokenService, error) {
	cred, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("load credential: %w", err)
	}
	if cred.Authorized() {
		logger.Info("token service: credential restored",
			zap.String("tenant_id", cred.TenantID),
			zap.String("tenant_name", cred.TenantName),
		)
	} else {
		logger.Warn("token service: no credential on record, connect flow required")
	}

	return &TokenService{
		identity: identity,
		store:    store,
		conf:     conf,
		metrics:  metrics,
		logger:   logger,
		cred:     cred,
	}, nil
}

// Authorized reports whether a refresh token is on record.
func (s *TokenService) Authorized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cred.Authorized()
}

// TenantName returns the display name of the committed tenant, if any.
func (s *TokenService) TenantName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cred.TenantName
}

// BeginAuthorization builds the redirect target for the upstream identity
// provider's authorization endpoint. No side effects beyond the URL; the
// state parameter is a short-lived signed token validated on callback.
func (s *TokenService) BeginAuthorization() (string, error) {
	state, err := s.signState()
	if err != nil {
		return "", fmt.Errorf("sign state: %w", err)
	}

	q := url.Values{
		"response_type": {"code"},
		"client_id":     {s.conf.ClientID},
		"redirect_uri":  {s.conf.RedirectURI},
		"scope":         {s.conf.Scopes},
		"state":         {state},
	}
	return s.conf.AuthorizeURL + "?" + q.Encode(), nil
}

// ValidateState checks the callback's state parameter.
func (s *TokenService) ValidateState(state string) error {
	token, err := jwt.Parse(state, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.conf.StateSecret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return &domain.ErrValidation{Field: "state", Message: "invalid or expired"}
	}
	return nil
}

// CompleteAuthorization exchanges the authorization code for an initial
// credential, commits to a tenant, and persists. Returns the selected
// tenant's display name.
func (s *TokenService) CompleteAuthorization(ctx context.Context, code string) (string, error) {
	ctx, span := tokenTracer.Start(ctx, "TokenService.CompleteAuthorization")
	defer span.End()

	pair, err := s.identity.ExchangeCode(ctx, code)
	if err != nil {
		return "", err
	}

	tenants, err := s.identity.Connections(ctx, pair.AccessToken)
	if err != nil {
		return "", err
	}
	tenant, err := s.selectTenant(tenants)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cred = &domain.Credential{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TenantID:     tenant.ID,
		TenantName:   tenant.Name,
	}
	if err := s.store.Save(s.cred); err != nil {
		return "", fmt.Errorf("persist credential: %w", err)
	}

	s.logger.Info("authorization complete",
		zap.String("tenant_id", tenant.ID),
		zap.String("tenant_name", tenant.Name),
	)
	return tenant.Name, nil
}

// EnsureAccessToken performs a refresh-token exchange and returns the new
// access token. Always refreshes, with no expiry tracking; the result cache
// bounds how often this runs. Concurrent callers share one exchange.
func (s *TokenService) EnsureAccessToken(ctx context.Context) (string, error) {
	ctx, span := tokenTracer.Start(ctx, "TokenService.EnsureAccessToken")
	defer span.End()

	if !s.Authorized() {
		return "", &domain.ErrNotAuthorized{}
	}

	v, err, _ := s.refreshGroup.Do("refresh", func() (any, error) {
		s.mu.Lock()
		refreshToken := s.cred.RefreshToken
		s.mu.Unlock()

		pair, err := s.identity.RefreshToken(ctx, refreshToken)
		if err != nil {
			return nil, err
		}
		s.metrics.IncrTokenRefresh()

		s.mu.Lock()
		defer s.mu.Unlock()
		s.cred.AccessToken = pair.AccessToken
		// The refresh token rotates on every exchange; a missing one in the
		// response must never discard the one on record.
		if pair.RefreshToken != "" {
			s.cred.RefreshToken = pair.RefreshToken
		}
		if err := s.store.Save(s.cred); err != nil {
			return nil, fmt.Errorf("persist credential: %w", err)
		}
		return pair.AccessToken, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// EnsureTenantID returns the committed tenant id, re-querying the connections
// list with the given access token when none is on record.
func (s *TokenService) EnsureTenantID(ctx context.Context, accessToken string) (string, error) {
	s.mu.Lock()
	tenantID := s.cred.TenantID
	s.mu.Unlock()
	if tenantID != "" {
		return tenantID, nil
	}

	ctx, span := tokenTracer.Start(ctx, "TokenService.EnsureTenantID")
	defer span.End()

	tenants, err := s.identity.Connections(ctx, accessToken)
	if err != nil {
		return "", err
	}
	tenant, err := s.selectTenant(tenants)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cred.TenantID = tenant.ID
	s.cred.TenantName = tenant.Name
	if err := s.store.Save(s.cred); err != nil {
		return "", fmt.Errorf("persist credential: %w", err)
	}
	return tenant.ID, nil
}

// selectTenant commits to the configured override when present in the list,
// else to the first connection returned. Single-tenant assumption: with
// multiple connections and no override the first one wins, a documented
// limitation surfaced by logging the choice.
func (s *TokenService) selectTenant(tenants []domain.Tenant) (domain.Tenant, error) {
	if len(tenants) == 0 {
		return domain.Tenant{}, &domain.ErrNoTenant{}
	}

	if s.conf.TenantOverride != "" {
		for _, t := range tenants {
			if t.ID == s.conf.TenantOverride {
				return t, nil
			}
		}
		s.logger.Warn("tenant override not in connections list, using it anyway",
			zap.String("tenant_id", s.conf.TenantOverride),
		)
		return domain.Tenant{ID: s.conf.TenantOverride}, nil
	}

	if len(tenants) > 1 {
		s.logger.Warn("multiple tenant connections, committing to the first",
			zap.Int("count", len(tenants)),
			zap.String("selected", tenants[0].Name),
		)
	}
	return tenants[0], nil
}

func (s *TokenService) signState() (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		ID:        uuid.New().String(),
		Issuer:    "deskledger",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(10 * time.Minute)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.conf.StateSecret))
}
