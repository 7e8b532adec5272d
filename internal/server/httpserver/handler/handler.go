package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/yndnr/licmesh/internal/core/domain"
	"github.com/yndnr/licmesh/internal/core/service"
	"github.com/yndnr/licmesh/internal/host"
)

// maxBodyBytes bounds request bodies; batch mints are the largest.
const maxBodyBytes = 4 << 20

// Config holds the handler's dependencies.
type Config struct {
	Ledger     host.Ledger
	Access     *service.AccessService
	Reconciler *service.Reconciler // optional

	// Ready reports whether the node can serve writes. Nil means always.
	Ready func() error

	Logger *slog.Logger
}

// Handler is the main HTTP handler that routes requests to appropriate handlers.
type Handler struct {
	ledger     host.Ledger
	access     *service.AccessService
	reconciler *service.Reconciler
	ready      func() error
	logger     *slog.Logger
	mux        *http.ServeMux
}

// New creates a new Handler with the given dependencies.
func New(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		ledger:     cfg.Ledger,
		access:     cfg.Access,
		reconciler: cfg.Reconciler,
		ready:      cfg.Ready,
		logger:     logger,
		mux:        http.NewServeMux(),
	}
	h.registerRoutes()
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// Route patterns served by Handler, grouped by the middleware chain the
// router mounts them behind.
var (
	PublicRoutes = []string{
		"GET /health",
		"GET /ready",
	}

	APIRoutes = []string{
		"POST /v1/licenses",
		"POST /v1/licenses/batch",
		"POST /v1/licenses/open-mint",
		"GET /v1/licenses/{id}",
		"POST /v1/licenses/{id}/transfer",
		"POST /v1/licenses/{id}/burn",
		"POST /v1/licenses/{id}/revoke",
		"POST /v1/licenses/{id}/redeem",
		"GET /v1/licenses/{id}/royalty",
		"GET /v1/owners/{owner}/licenses/{app}",
		"POST /v1/access",
		"POST /v1/access/verify",
		"GET /v1/ledger/stats",
	}

	AdminRoutes = []string{
		"GET /v1/reconciler/parked",
		"POST /v1/reconciler/parked/{seq}/retry",
	}

	// LedgerWriteRoutes are the APIRoutes that execute a ledger command.
	// On a clustered follower they are forwarded to the leader.
	LedgerWriteRoutes = map[string]bool{
		"POST /v1/licenses":               true,
		"POST /v1/licenses/batch":         true,
		"POST /v1/licenses/open-mint":     true,
		"POST /v1/licenses/{id}/transfer": true,
		"POST /v1/licenses/{id}/burn":     true,
		"POST /v1/licenses/{id}/revoke":   true,
		"POST /v1/licenses/{id}/redeem":   true,
	}
)

// registerRoutes registers all HTTP routes.
func (h *Handler) registerRoutes() {
	// Health endpoints
	h.mux.HandleFunc("GET /health", h.handleHealth)
	h.mux.HandleFunc("GET /ready", h.handleReady)

	// Ledger transitions
	h.mux.HandleFunc("POST /v1/licenses", h.handleMint)
	h.mux.HandleFunc("POST /v1/licenses/batch", h.handleBatchMint)
	h.mux.HandleFunc("POST /v1/licenses/open-mint", h.handleOpenMint)
	h.mux.HandleFunc("POST /v1/licenses/{id}/transfer", h.handleTransfer)
	h.mux.HandleFunc("POST /v1/licenses/{id}/burn", h.handleBurn)
	h.mux.HandleFunc("POST /v1/licenses/{id}/revoke", h.handleRevoke)
	h.mux.HandleFunc("POST /v1/licenses/{id}/redeem", h.handleRedeem)

	// Ledger reads
	h.mux.HandleFunc("GET /v1/licenses/{id}", h.handleGetLicense)
	h.mux.HandleFunc("GET /v1/licenses/{id}/royalty", h.handleRoyalty)
	h.mux.HandleFunc("GET /v1/owners/{owner}/licenses/{app}", h.handleLookup)
	h.mux.HandleFunc("GET /v1/ledger/stats", h.handleStats)

	// Access
	h.mux.HandleFunc("POST /v1/access", h.handleIssueAccess)
	h.mux.HandleFunc("POST /v1/access/verify", h.handleVerifyAccess)

	// Reconciler (admin)
	h.mux.HandleFunc("GET /v1/reconciler/parked", h.handleListParked)
	h.mux.HandleFunc("POST /v1/reconciler/parked/{seq}/retry", h.handleRetryParked)
}

// writeJSON writes a JSON response with standard envelope format.
func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	requestID := getRequestID(r)
	response := NewResponse(requestID, data)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set(HeaderRequestID, requestID)
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

// writeError writes an error response with standard envelope format.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, status int, code, message string, details any) {
	WriteError(w, getRequestID(r), status, code, message, details)
}

// WriteError writes an error envelope. Middleware uses it for responses
// produced before a handler runs.
func WriteError(w http.ResponseWriter, requestID string, status int, code, message string, details any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Error-Code", code)
	w.Header().Set(HeaderRequestID, requestID)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(NewErrorResponse(requestID, code, message, details))
}

// WriteDomainError writes err as an envelope with its mapped status.
func WriteDomainError(w http.ResponseWriter, requestID string, err *domain.DomainError) {
	WriteError(w, requestID, ErrorCodeToHTTPStatus(err.Code), err.Code, err.Message, detailsOf(err))
}

// handleServiceError converts service errors to HTTP responses.
func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var de *domain.DomainError
	if errors.As(err, &de) {
		status := ErrorCodeToHTTPStatus(de.Code)
		if status >= http.StatusInternalServerError {
			h.logger.Error("request failed",
				"request_id", getRequestID(r),
				"path", r.URL.Path,
				"code", de.Code,
				"error", err)
		}
		h.writeError(w, r, status, de.Code, de.Message, detailsOf(de))
		return
	}

	// Generic internal error
	h.logger.Error("internal error", "request_id", getRequestID(r), "path", r.URL.Path, "error", err)
	h.writeError(w, r, http.StatusInternalServerError, domain.ErrInternalServer.Code, domain.ErrInternalServer.Message, nil)
}

func detailsOf(de *domain.DomainError) any {
	if de.Details == "" {
		return nil
	}
	return de.Details
}

// ErrorCodeToHTTPStatus maps an LM-<AREA>-<NNNN> code to its HTTP status:
// the first three digits of NNNN.
func ErrorCodeToHTTPStatus(code string) int {
	i := strings.LastIndexByte(code, '-')
	if i < 0 || len(code)-i-1 != 4 {
		return http.StatusInternalServerError
	}
	n, err := strconv.Atoi(code[i+1:])
	if err != nil {
		return http.StatusInternalServerError
	}
	status := n / 10
	if status < 400 || status > 599 {
		return http.StatusInternalServerError
	}
	return status
}

// decodeBody decodes a JSON body into dst. Unknown fields are rejected.
func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return domain.ErrBadRequest.WithDetailsf("invalid request body: %v", err)
	}
	return nil
}

// pathTokenID parses the {id} path segment.
func pathTokenID(r *http.Request) (uint64, error) {
	raw := r.PathValue("id")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidArgument.WithDetailsf("malformed token id %q", raw)
	}
	return id, nil
}
