package httpserver

import (
	"context"
	"crypto/rand"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/yndnr/licmesh/internal/core/domain"
	"github.com/yndnr/licmesh/internal/core/service"
	"github.com/yndnr/licmesh/internal/server/httpserver/handler"
	"github.com/yndnr/licmesh/internal/telemetry/logger"
	"github.com/yndnr/licmesh/internal/telemetry/metric"
)

// Context keys for request-scoped values.
type contextKey string

// ContextKeyStartTime is the context key for request start time.
const ContextKeyStartTime contextKey = "start_time"

// maxRequestIDLength bounds inbound X-Request-ID values.
const maxRequestIDLength = 128

// Middleware wraps an http.Handler with additional functionality.
type Middleware func(http.Handler) http.Handler

// Chain chains multiple middlewares together. The first middleware is the
// outermost.
func Chain(h http.Handler, middlewares ...Middleware) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// RequestID adds a unique request ID to each request and a request-scoped
// logger to its context.
func RequestID(base *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Check for existing request ID in header
			requestID := r.Header.Get(handler.HeaderRequestID)
			if requestID == "" || len(requestID) > maxRequestIDLength {
				requestID = "req-" + strings.ToLower(ulid.MustNew(ulid.Now(), rand.Reader).String())
			}

			w.Header().Set(handler.HeaderRequestID, requestID)

			ctx := logger.WithRequestID(r.Context(), requestID)
			ctx = context.WithValue(ctx, ContextKeyStartTime, time.Now())
			if base != nil {
				ctx = logger.WithLogger(ctx, logger.FromSlog(base))
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Caller authenticates the request's API key and stores the address bound
// to it as the request principal. A request without a key stays anonymous
// unless it asserts X-Ledger-Caller, which is rejected. With a key the
// header is optional and must name the key's own address.
func Caller(auth *service.AuthService) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			keyID, secret := apiKeyFromRequest(r)
			asserted := r.Header.Get(handler.HeaderCaller)

			if keyID == "" && secret == "" {
				if asserted != "" {
					writeMiddlewareError(w, r, domain.ErrAuthRequired.WithDetailsf("%s requires an api key", handler.HeaderCaller))
					return
				}
				next.ServeHTTP(w, r)
				return
			}
			if keyID == "" || secret == "" {
				writeMiddlewareError(w, r, domain.ErrAPIKeyInvalid.WithDetails("api key needs both id and secret"))
				return
			}
			if auth == nil {
				writeMiddlewareError(w, r, domain.ErrAPIKeyInvalid.WithDetails("no api keys configured"))
				return
			}

			caller, err := auth.Authenticate(r.Context(), keyID, secret)
			if err != nil {
				logger.L(r.Context()).Warn("authentication failed",
					"key_id", keyID,
					"path", r.URL.Path,
					"client_ip", getClientIP(r))
				writeMiddlewareError(w, r, domain.ErrAPIKeyInvalid)
				return
			}
			if asserted != "" {
				claimed, err := domain.ParseAddress(asserted)
				if err != nil {
					writeMiddlewareError(w, r, domain.ErrInvalidArgument.WithDetailsf("malformed %s header", handler.HeaderCaller))
					return
				}
				if claimed != caller {
					writeMiddlewareError(w, r, domain.ErrCallerMismatch.WithDetailsf("key %s acts as %s", keyID, caller.Hex()))
					return
				}
			}

			ctx := handler.WithCaller(r.Context(), caller)
			ctx = logger.WithPrincipal(ctx, caller.Hex())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// apiKeyFromRequest reads X-API-Key-ID and X-API-Key, or
// "Authorization: Bearer <key_id>:<secret>".
func apiKeyFromRequest(r *http.Request) (keyID, secret string) {
	keyID = r.Header.Get(handler.HeaderAPIKeyID)
	secret = r.Header.Get(handler.HeaderAPIKey)
	if keyID != "" || secret != "" {
		return keyID, secret
	}
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return "", ""
	}
	keyID, secret, _ = strings.Cut(strings.TrimSpace(token), ":")
	return keyID, secret
}

// AdminOnly rejects callers without the admin role. It must run after
// Caller.
func AdminOnly(auth domain.Authorizer) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller, ok := handler.CallerFromContext(r.Context())
			if !ok {
				writeMiddlewareError(w, r, domain.ErrAuthRequired.WithDetails("admin routes require an api key"))
				return
			}
			if auth == nil || !auth.HasRole(caller, domain.RoleAdmin) {
				logger.L(r.Context()).Warn("admin access denied",
					logger.Caller(caller),
					"path", r.URL.Path,
					"client_ip", getClientIP(r))
				writeMiddlewareError(w, r, domain.ErrUnauthorized.WithDetailsf("%s role required", domain.RoleAdmin))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Audit logs every request and records its duration under route.
func Audit(base *slog.Logger, metrics *metric.Registry, route string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Wrap response writer to capture status code
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			start, ok := r.Context().Value(ContextKeyStartTime).(time.Time)
			if !ok {
				start = time.Now()
			}

			next.ServeHTTP(wrapped, r)

			duration := time.Since(start)
			metrics.ObserveRequest(route, strconv.Itoa(wrapped.statusCode), duration.Seconds())

			if base == nil {
				return
			}
			attrs := []any{
				"request_id", logger.RequestIDFromContext(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"status", wrapped.statusCode,
				"duration_ms", duration.Milliseconds(),
				"client_ip", getClientIP(r),
			}
			if caller, ok := handler.CallerFromContext(r.Context()); ok {
				attrs = append(attrs, logger.Caller(caller))
			}

			// Log based on status code
			switch {
			case wrapped.statusCode >= 500:
				base.Error("request completed with error", attrs...)
			case wrapped.statusCode >= 400:
				base.Warn("request completed with client error", attrs...)
			default:
				base.Debug("request completed", attrs...)
			}
		})
	}
}

// Recover recovers from panics and returns 500 error.
func Recover(base *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					if base != nil {
						base.Error("panic recovered",
							"request_id", logger.RequestIDFromContext(r.Context()),
							"error", err,
							"path", r.URL.Path,
						)
					}
					writeMiddlewareError(w, r, domain.ErrInternalServer)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

func writeMiddlewareError(w http.ResponseWriter, r *http.Request, err *domain.DomainError) {
	handler.WriteDomainError(w, logger.RequestIDFromContext(r.Context()), err)
}

// getClientIP extracts the client IP from the request.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
