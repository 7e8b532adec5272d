package handler

import (
	"context"
	"net/http"

	"github.com/yndnr/licmesh/internal/core/domain"
	"github.com/yndnr/licmesh/internal/telemetry/logger"
)

// Request headers.
const (
	// HeaderCaller optionally restates the principal; it must match the
	// address bound to the request's API key.
	HeaderCaller = "X-Ledger-Caller"

	// HeaderAPIKeyID and HeaderAPIKey carry the API key. The same pair may
	// be sent as "Authorization: Bearer <key_id>:<secret>".
	HeaderAPIKeyID = "X-API-Key-ID"
	HeaderAPIKey   = "X-API-Key"

	// HeaderRequestID carries the request id in both directions.
	HeaderRequestID = "X-Request-ID"

	// HeaderForwardedBy names the follower that forwarded a ledger write.
	// A request carrying it is never forwarded again.
	HeaderForwardedBy = "X-Licmesh-Forwarded-By"
)

type contextKey string

const callerKey contextKey = "licmesh.caller"

// WithCaller stores the request principal in ctx.
func WithCaller(ctx context.Context, caller domain.Address) context.Context {
	return context.WithValue(ctx, callerKey, caller)
}

// CallerFromContext returns the request principal, if one was set.
func CallerFromContext(ctx context.Context) (domain.Address, bool) {
	caller, ok := ctx.Value(callerKey).(domain.Address)
	return caller, ok
}

// requireCaller returns the principal or ErrAuthRequired.
func requireCaller(r *http.Request) (domain.Address, error) {
	caller, ok := CallerFromContext(r.Context())
	if !ok || caller == domain.ZeroAddress {
		return domain.ZeroAddress, domain.ErrAuthRequired.WithDetails("this operation requires an api key")
	}
	return caller, nil
}

// getRequestID returns the id assigned by the RequestID middleware, falling
// back to the inbound header.
func getRequestID(r *http.Request) string {
	if id := logger.RequestIDFromContext(r.Context()); id != "" {
		return id
	}
	return r.Header.Get(HeaderRequestID)
}
