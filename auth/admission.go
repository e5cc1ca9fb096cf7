//go:generate go run go.uber.org/mock/mockgen -source=admission.go -destination=../mocks/mock_admission.go -package=mocks
package auth

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"tribehub/contract"
	"tribehub/domain"
	"tribehub/errors"
)

type IAdmission interface {
	Admit(conn *domain.Connection, credential string)
	AllowMessage(conn *domain.Connection) error
}

// Admission authenticates and rate-limits connections at open time and on
// each inbound message. An absent or invalid credential degrades the
// connection to anonymous instead of breaking the handshake.
type Admission struct {
	verifier contract.ITokenVerifier
	log      *slog.Logger
	now      func() time.Time
}

func NewAdmission(verifier contract.ITokenVerifier, log *slog.Logger) *Admission {
	return &Admission{verifier: verifier, log: log, now: time.Now}
}

// Admit resolves the optional bearer credential. On success the connection
// is marked authenticated with its identity; verification failures are
// logged, never propagated, so clients that omit credentials still connect.
func (a *Admission) Admit(conn *domain.Connection, credential string) {
	credential = strings.TrimPrefix(strings.TrimSpace(credential), "Bearer ")
	if credential == "" {
		a.log.Debug("Anonymous connection admitted", "connection_id", conn.ID)
		return
	}

	identity, err := a.verifier.Verify(credential)
	if err != nil {
		a.log.Warn("Credential rejected, connection stays anonymous",
			"connection_id", conn.ID,
			"error", fmt.Errorf("%w: %v", errors.ErrInvalidCredential, err))
		return
	}

	conn.Identity = identity
	conn.Authenticated = true
}

// AllowMessage enforces the per-connection fixed window. The connection
// stays open; only the offending message is refused.
func (a *Admission) AllowMessage(conn *domain.Connection) error {
	if !conn.AllowMessage(a.now()) {
		return errors.ErrRateLimitExceeded
	}
	return nil
}
