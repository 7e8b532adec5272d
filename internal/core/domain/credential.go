package domain

import (
	"crypto/rand"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// CredentialIDPrefix is the prefix for credential IDs.
const CredentialIDPrefix = "lmcr-"

// Credential is a short-lived proof, issued by the access service, that
// Owner held TokenID for ApplicationID at ledger sequence LedgerSeq.
type Credential struct {
	// ID is the unique credential id. Format: lmcr-{ulid_lowercase}.
	ID string `json:"id"`

	Owner         Address `json:"owner"`
	ApplicationID string  `json:"application_id"`
	TokenID       uint64  `json:"token_id"`

	// LedgerSeq is the last committed ledger sequence observed at issuance.
	LedgerSeq uint64 `json:"ledger_seq"`

	// IssuedAt and ExpiresAt are Unix milliseconds.
	IssuedAt  int64 `json:"issued_at" table:"ms"`
	ExpiresAt int64 `json:"expires_at" table:"ms"`
}

// IsExpired reports whether the credential is past its expiry at nowMs.
func (c *Credential) IsExpired(nowMs int64) bool {
	return nowMs >= c.ExpiresAt
}

// GenerateCredentialID generates a new credential ID using ULID.
func GenerateCredentialID() (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return "", ErrInternalServer.WithCause(err)
	}
	return CredentialIDPrefix + strings.ToLower(id.String()), nil
}

// Verification is the answer to "is this credential still good".
type Verification struct {
	Owner         Address `json:"owner"`
	ApplicationID string  `json:"application_id"`
	TokenID       uint64  `json:"token_id"`
	CredentialID  string  `json:"credential_id"`
	ExpiresAt     int64   `json:"expires_at" table:"ms"`
	Valid         bool    `json:"valid"`
	Reason        string  `json:"reason,omitempty"`
}

// Verification reasons.
const (
	ReasonExpired     = "expired"
	ReasonInvalidated = "ownership_changed"
)

// Clone returns a copy of the credential.
func (c *Credential) Clone() *Credential {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}
