package service

import (
	"context"

	"github.com/yndnr/licmesh/internal/core/domain"
)

// CredentialStore tracks issued credentials and the per-token invalidation
// watermark. It is the target of the reconciler.
type CredentialStore interface {
	// Track records a newly issued credential.
	Track(ctx context.Context, cred *domain.Credential) error

	// Get retrieves a credential by ID.
	// Returns domain.ErrCredentialNotFound if absent.
	Get(ctx context.Context, id string) (*domain.Credential, error)

	// InvalidateToken raises the token's watermark to seq (never lowers it)
	// and drops every tracked credential for the token issued before seq.
	// It returns the number of credentials dropped. Repeating a call is a
	// no-op.
	InvalidateToken(ctx context.Context, tokenID, seq uint64) (int, error)

	// Watermark returns the highest invalidation seq recorded for the token,
	// or 0.
	Watermark(ctx context.Context, tokenID uint64) (uint64, error)

	// DeleteExpired removes credentials expired at nowMs and returns the count.
	DeleteExpired(ctx context.Context, nowMs int64) (int, error)

	// Count returns the number of tracked credentials.
	Count(ctx context.Context) (int, error)
}
