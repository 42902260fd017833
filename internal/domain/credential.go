package domain

// Credential is the delegated grant to the upstream ledger, persisted as a
// single JSON document. The refresh token is the durable half: it survives
// restarts and is only discarded by an explicit re-authorization. The access
// token is treated as always-stale and replaced before each use.
type Credential struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TenantID     string `json:"tenant_id"`
	TenantName   string `json:"tenant_name"`
}

// Authorized reports whether a refresh token is on record, i.e. the connect
// flow has completed at least once.
func (c *Credential) Authorized() bool {
	return c != nil && c.RefreshToken != ""
}

// TokenPair is the result of a token-endpoint exchange.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Tenant is one organisation the credential can act on. All ledger queries
// are scoped to a tenant id.
type Tenant struct {
	ID   string `json:"tenantId"`
	Name string `json:"tenantName"`
}
