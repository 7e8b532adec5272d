// Package domain defines the core domain models for licmesh.
//
// Domain models are pure value objects and entities without any
// IO dependencies or framework coupling.
package domain

import (
	"strings"
)

// License constraints.
const (
	MaxApplicationIDLength = 256
	MaxMetadataRefLength   = 2048
)

// License is one minted token. The ledger owns the canonical copy; every
// record handed out of the ledger is a clone.
type License struct {
	// ID is dense and assigned from 1. Zero means "no license".
	ID uint64 `json:"id"`

	// Owner is the current holder.
	Owner Address `json:"owner"`

	// ApplicationID is the application this license unlocks (immutable).
	ApplicationID string `json:"application_id"`

	// AppHash is Keccak-256 of ApplicationID, computed once at mint.
	AppHash AppHash `json:"app_hash" table:"wide"`

	// MetadataRef is an opaque pointer to off-ledger metadata.
	MetadataRef string `json:"metadata_ref,omitempty" table:"wide"`

	// ExpiresAt is the absolute expiry (Unix milliseconds). Zero is perpetual.
	ExpiresAt int64 `json:"expires_at" table:"ms"`

	// Soulbound tokens can never be transferred.
	Soulbound bool `json:"soulbound"`

	// Ephemeral tokens can be redeemed exactly once.
	Ephemeral bool `json:"ephemeral"`

	// Redeemed is set by a successful redeem; only meaningful when Ephemeral.
	Redeemed bool `json:"redeemed"`

	// MintedAt is the mint timestamp (Unix milliseconds).
	MintedAt int64 `json:"minted_at" table:"ms"`
}

// IsExpired reports whether the license is expired at nowMs. Expiry is
// evaluated at read time only; expired tokens stay in the ledger.
func (l *License) IsExpired(nowMs int64) bool {
	if l.ExpiresAt == 0 {
		return false
	}
	return nowMs >= l.ExpiresAt
}

// Clone returns a copy of the license.
func (l *License) Clone() *License {
	if l == nil {
		return nil
	}
	c := *l
	return &c
}

// Validate checks the mint-time fields.
func (l *License) Validate() error {
	var violations []string

	if l.Owner == ZeroAddress {
		violations = append(violations, "owner is the zero address")
	}
	if l.ApplicationID == "" {
		violations = append(violations, "application_id is required")
	}
	if len(l.ApplicationID) > MaxApplicationIDLength {
		violations = append(violations, "application_id exceeds 256 characters")
	}
	if len(l.MetadataRef) > MaxMetadataRefLength {
		violations = append(violations, "metadata_ref exceeds 2048 characters")
	}
	if l.ExpiresAt < 0 {
		violations = append(violations, "expires_at is negative")
	}

	if len(violations) > 0 {
		return ErrInvalidArgument.WithDetails(strings.Join(violations, "; "))
	}
	return nil
}
