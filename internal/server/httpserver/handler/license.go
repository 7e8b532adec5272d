package handler

import (
	"net/http"
	"strconv"

	"github.com/yndnr/licmesh/internal/core/domain"
	"github.com/yndnr/licmesh/internal/ledger"
)

// handleMint handles POST /v1/licenses.
func (h *Handler) handleMint(w http.ResponseWriter, r *http.Request) {
	caller, err := requireCaller(r)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	var req MintRequest
	if err := decodeBody(r, &req); err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	if req.Owner == "" {
		h.handleServiceError(w, r, domain.ErrMissingArgument.WithDetails("owner is required"))
		return
	}
	owner, err := domain.ParseAddress(req.Owner)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	params := req.params()
	params.Owner = owner
	res, err := h.ledger.Execute(r.Context(), ledger.Command{
		Op:     ledger.OpMint,
		Caller: caller,
		Mint:   &params,
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusCreated, MintResponse{TokenID: res.TokenID, Seq: lastSeq(res)})
}

// handleOpenMint handles POST /v1/licenses/open-mint. The caller mints to
// itself.
func (h *Handler) handleOpenMint(w http.ResponseWriter, r *http.Request) {
	caller, err := requireCaller(r)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	var req MintRequest
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
			h.handleServiceError(w, r, domain.ErrInvalidArgument.WithDetails("open mint always mints to the caller"))
			return
		}
	}
	proof := make([]domain.Hash, 0, len(req.Proof))
	for _, node := range req.Proof {
		hash, err := parseHash(node)
		if err != nil {
			h.handleServiceError(w, r, err)
			return
		}
		proof = append(proof, hash)
	}

	params := req.params()
	res, err := h.ledger.Execute(r.Context(), ledger.Command{
		Op:     ledger.OpOpenMint,
		Caller: caller,
		Mint:   &params,
		Proof:  proof,
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusCreated, MintResponse{TokenID: res.TokenID, Seq: lastSeq(res)})
}

// handleBatchMint handles POST /v1/licenses/batch.
//
// Entries succeed or fail independently; the response carries one item
// per entry in request order.
func (h *Handler) handleBatchMint(w http.ResponseWriter, r *http.Request) {
	caller, err := requireCaller(r)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	var req BatchMintRequest
	if err := decodeBody(r, &req); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	cols := ledger.BatchColumns{
		ApplicationIDs: req.ApplicationIDs,
		MetadataRefs:   req.MetadataRefs,
		ExpiresAt:      req.ExpiresAt,
		Soulbound:      req.Soulbound,
		Ephemeral:      req.Ephemeral,
	}
	cols.Owners = make([]domain.Address, len(req.Owners))
	for i, raw := range req.Owners {
		if cols.Owners[i], err = domain.ParseAddress(raw); err != nil {
			h.handleServiceError(w, r, err)
			return
		}
	}
	rows, err := cols.Rows()
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	res, err := h.ledger.Execute(r.Context(), ledger.Command{
		Op:     ledger.OpBatchMint,
		Caller: caller,
		Batch:  rows,
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	out := BatchMintResponse{Items: make([]BatchItem, len(res.Batch))}
	for i, item := range res.Batch {
		out.Items[i] = BatchItem{Index: i, TokenID: item.TokenID, Code: "OK"}
		if item.OK() {
			out.Minted++
			continue
		}
		out.Failed++
		out.Items[i].Code = domain.GetErrorCode(item.Err)
		out.Items[i].Message = item.Err.Error()
	}
	h.writeJSON(w, r, http.StatusOK, out)
}

// handleTransfer handles POST /v1/licenses/{id}/transfer.
func (h *Handler) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var req TransferRequest
	if err := decodeBody(r, &req); err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	to, err := domain.ParseAddress(req.To)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.transition(w, r, ledger.OpTransfer, to)
}

// handleBurn handles POST /v1/licenses/{id}/burn.
func (h *Handler) handleBurn(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, ledger.OpBurn, domain.ZeroAddress)
}

// handleRevoke handles POST /v1/licenses/{id}/revoke.
func (h *Handler) handleRevoke(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, ledger.OpRevoke, domain.ZeroAddress)
}

// handleRedeem handles POST /v1/licenses/{id}/redeem.
func (h *Handler) handleRedeem(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, ledger.OpRedeem, domain.ZeroAddress)
}

// transition runs a single-token command on the {id} path segment.
func (h *Handler) transition(w http.ResponseWriter, r *http.Request, op ledger.Op, to domain.Address) {
	caller, err := requireCaller(r)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	id, err := pathTokenID(r)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	res, err := h.ledger.Execute(r.Context(), ledger.Command{
		Op:      op,
		Caller:  caller,
		TokenID: id,
		To:      to,
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, TransitionResponse{TokenID: id, Events: res.Events})
}

// handleGetLicense handles GET /v1/licenses/{id}.
func (h *Handler) handleGetLicense(w http.ResponseWriter, r *http.Request) {
	id, err := pathTokenID(r)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	v, err := h.ledger.View(id)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, licenseResponse(v))
}

// handleLookup handles GET /v1/owners/{owner}/licenses/{app}.
func (h *Handler) handleLookup(w http.ResponseWriter, r *http.Request) {
	owner, err := domain.ParseAddress(r.PathValue("owner"))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	app := r.PathValue("app")
	if app == "" {
		h.handleServiceError(w, r, domain.ErrMissingArgument.WithDetails("application id is required"))
		return
	}

	v, seq, ok := h.ledger.ViewOf(owner, domain.HashApplicationID(app))
	if !ok {
		h.handleServiceError(w, r, domain.ErrLicenseNotFound.WithDetailsf("%s holds no license for %q", owner.Hex(), app))
		return
	}
	h.writeJSON(w, r, http.StatusOK, LookupResponse{License: licenseResponse(v), Seq: seq})
}

// handleRoyalty handles GET /v1/licenses/{id}/royalty?sale_price=N.
func (h *Handler) handleRoyalty(w http.ResponseWriter, r *http.Request) {
	id, err := pathTokenID(r)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	raw := r.URL.Query().Get("sale_price")
	price, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		h.handleServiceError(w, r, domain.ErrInvalidArgument.WithDetailsf("malformed sale_price %q", raw))
		return
	}

	receiver, amount, err := h.ledger.RoyaltyInfo(id, price)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, RoyaltyResponse{
		TokenID:   id,
		SalePrice: price,
		Receiver:  receiver,
		Amount:    amount,
	})
}

// handleStats handles GET /v1/ledger/stats.
func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, h.ledger.Stats())
}

func licenseResponse(v *ledger.View) *LicenseResponse {
	return &LicenseResponse{
		License:     v.License,
		Expired:     v.Expired,
		MetadataURI: v.MetadataURI,
	}
}

func (req *MintRequest) params() ledger.MintParams {
	return ledger.MintParams{
		ApplicationID: req.ApplicationID,
		MetadataRef:   req.MetadataRef,
		ExpiresAt:     req.ExpiresAt,
		Soulbound:     req.Soulbound,
		Ephemeral:     req.Ephemeral,
	}
}

// lastSeq returns the sequence of the last event a command emitted.
func lastSeq(res ledger.Result) uint64 {
	if len(res.Events) == 0 {
		return 0
	}
	return res.Events[len(res.Events)-1].Seq
}

// parseHash parses a 0x-prefixed 32-byte hex digest.
func parseHash(s string) (domain.Hash, error) {
	var h domain.Hash
	if err := h.UnmarshalText([]byte(s)); err != nil {
		return domain.Hash{}, domain.ErrInvalidArgument.WithDetailsf("malformed proof node %q", s)
	}
	return h, nil
}
