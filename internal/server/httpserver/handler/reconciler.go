package handler

import (
	"net/http"
	"strconv"

	"github.com/yndnr/licmesh/internal/core/domain"
)

// handleListParked handles GET /v1/reconciler/parked.
func (h *Handler) handleListParked(w http.ResponseWriter, r *http.Request) {
	if h.reconciler == nil {
		h.handleServiceError(w, r, domain.ErrServiceUnavailable.WithDetails("reconciler is not running"))
		return
	}
	parked := h.reconciler.Parked()
	h.writeJSON(w, r, http.StatusOK, map[string]any{
		"cursor": h.reconciler.Cursor(),
		"count":  len(parked),
		"events": parked,
	})
}

// handleRetryParked handles POST /v1/reconciler/parked/{seq}/retry.
func (h *Handler) handleRetryParked(w http.ResponseWriter, r *http.Request) {
	if h.reconciler == nil {
		h.handleServiceError(w, r, domain.ErrServiceUnavailable.WithDetails("reconciler is not running"))
		return
	}
	raw := r.PathValue("seq")
	seq, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		h.handleServiceError(w, r, domain.ErrInvalidArgument.WithDetailsf("malformed seq %q", raw))
		return
	}

	if err := h.reconciler.RetryParked(r.Context(), seq); err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, map[string]any{
		"seq":     seq,
		"retried": true,
	})
}
