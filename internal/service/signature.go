package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"

	"github.com/deskledger/finance-embed-go/internal/domain"

	"go.uber.org/zap"
)

// Authenticator validates inbound embed requests against the shared secret
// the host platform signs with. Stateless; the canonical signed payload is
// exactly the agent identifier string and nothing else. This matches the host
// platform's signing behavior and must not be widened to the full query.
type Authenticator struct {
	secret []byte
	logger *zap.Logger
}

// NewAuthenticator creates an authenticator. An empty secret is tolerated at
// construction and rejected per request.
func NewAuthenticator(secret string, logger *zap.Logger) *Authenticator {
	return &Authenticator{secret: []byte(secret), logger: logger}
}

// Authenticate checks the received signature against an HMAC-SHA256 of the
// agent id, base64-encoded. The comparison is constant time; differing
// lengths fail without leaking timing. Never mutates state.
func (a *Authenticator) Authenticate(agentID, area, receivedSig string) domain.AuthDecision {
	decision := domain.AuthDecision{
		Canonical: agentID,
		Received:  receivedSig,
		AgentID:   agentID,
		Area:      area,
	}

	if len(a.secret) == 0 {
		decision.Reason = "Missing HMAC secret"
		return decision
	}
	if agentID == "" {
		decision.Reason = "Missing agentId"
		return decision
	}

	mac := hmac.New(sha256.New, a.secret)
	mac.Write([]byte(agentID))
	decision.Expected = base64.StdEncoding.EncodeToString(mac.Sum(nil))

	if receivedSig == "" {
		decision.Reason = "Missing hmac signature"
		return decision
	}

	if !hmac.Equal([]byte(receivedSig), []byte(decision.Expected)) {
		decision.Reason = "Signature mismatch"
		a.logger.Debug("signature mismatch",
			zap.String("agent_id", agentID),
			zap.String("received", receivedSig),
		)
		return decision
	}

	decision.Valid = true
	return decision
}
