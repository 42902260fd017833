package domain

import "fmt"

// Error types for consistent error handling across the service.

// ErrInvalidSignature indicates an embed request failed HMAC validation.
type ErrInvalidSignature struct {
	Reason string
}

func (e *ErrInvalidSignature) Error() string {
	return fmt.Sprintf("invalid request signature: %s", e.Reason)
}

// ErrNotAuthorized indicates no refresh token is on record yet, i.e. the
// connect flow has never completed.
type ErrNotAuthorized struct{}

func (e *ErrNotAuthorized) Error() string {
	return "not authorized: complete the ledger connect flow first"
}

// ErrAuthExchange indicates the upstream token endpoint rejected a grant.
type ErrAuthExchange struct {
	Grant string
	Err   error
}

func (e *ErrAuthExchange) Error() string {
	return fmt.Sprintf("token exchange failed [%s]: %v", e.Grant, e.Err)
}

func (e *ErrAuthExchange) Unwrap() error {
	return e.Err
}

// ErrNoTenant indicates the credential has access to zero tenants.
type ErrNoTenant struct{}

func (e *ErrNoTenant) Error() string {
	return "no tenant connection available for this credential"
}

// ErrRecordNotFound indicates no ledger contact matched the display name.
// A data-entry mismatch, not a transient condition; never retried.
type ErrRecordNotFound struct {
	Name string
}

func (e *ErrRecordNotFound) Error() string {
	return fmt.Sprintf("contact not found: %s", e.Name)
}

// ErrUpstreamFetch wraps a failed ledger API query.
type ErrUpstreamFetch struct {
	Endpoint string
	Err      error
}

func (e *ErrUpstreamFetch) Error() string {
	return fmt.Sprintf("upstream fetch failed [%s]: %v", e.Endpoint, e.Err)
}

func (e *ErrUpstreamFetch) Unwrap() error {
	return e.Err
}

// ErrCircuitOpen indicates the upstream circuit breaker is rejecting calls.
// Transient; clears once the breaker half-opens and the upstream recovers.
type ErrCircuitOpen struct{}

func (e *ErrCircuitOpen) Error() string {
	return "upstream temporarily unavailable: circuit open"
}

// ErrValidation indicates a validation error (bad input).
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}
