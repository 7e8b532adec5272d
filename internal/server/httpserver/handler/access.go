package handler

import (
	"net/http"

	"github.com/yndnr/licmesh/internal/core/domain"
)

// handleIssueAccess handles POST /v1/access.
//
// Credentials are only issued to the caller; Owner, when present, must
// name the caller.
func (h *Handler) handleIssueAccess(w http.ResponseWriter, r *http.Request) {
	caller, err := requireCaller(r)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	var req IssueAccessRequest
	if err := decodeBody(r, &req); err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	if req.Owner != "" {
		owner, err := domain.ParseAddress(req.Owner)
		if err != nil {
			h.handleServiceError(w, r, err)
			return
		}
		if owner != caller {
			h.handleServiceError(w, r, domain.ErrUnauthorized.WithDetails("credentials are issued to the caller only"))
			return
		}
	}

	res, err := h.access.IssueAccess(r.Context(), caller, req.ApplicationID)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusCreated, IssueAccessResponse{
		Credential:   res.Token,
		CredentialID: res.Credential.ID,
		TokenID:      res.Credential.TokenID,
		LedgerSeq:    res.Credential.LedgerSeq,
		ExpiresAt:    res.Credential.ExpiresAt,
	})
}

// handleVerifyAccess handles POST /v1/access/verify. An invalidated or
// expired credential is a successful answer with valid=false.
func (h *Handler) handleVerifyAccess(w http.ResponseWriter, r *http.Request) {
	var req VerifyAccessRequest
	if err := decodeBody(r, &req); err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	if req.Credential == "" {
		h.handleServiceError(w, r, domain.ErrMissingArgument.WithDetails("credential is required"))
		return
	}

	v, err := h.access.VerifyCredential(r.Context(), req.Credential)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, v)
}
