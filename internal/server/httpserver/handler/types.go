package handler

import (
	"time"

	"github.com/yndnr/licmesh/internal/core/domain"
)

// Response is the standard API response envelope.
// All JSON responses use this format (except /metrics which uses Prometheus format).
type Response struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
	Timestamp int64  `json:"timestamp"`
	Data      any    `json:"data,omitempty"`
	Details   any    `json:"details,omitempty"` // Additional error details
}

// NewResponse creates a success response.
func NewResponse(requestID string, data any) *Response {
	return &Response{
		Code:      "OK",
		Message:   "Success",
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
		Data:      data,
	}
}

// NewErrorResponse creates an error response.
func NewErrorResponse(requestID, code, message string, details any) *Response {
	return &Response{
		Code:      code,
		Message:   message,
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
		Details:   details,
	}
}

// MintRequest is the request body for POST /v1/licenses and, without Owner,
// POST /v1/licenses/open-mint.
type MintRequest struct {
	Owner         string `json:"owner,omitempty"`
	ApplicationID string `json:"application_id"`
	MetadataRef   string `json:"metadata_ref,omitempty"`
	ExpiresAt     int64  `json:"expires_at,omitempty"`
	Soulbound     bool   `json:"soulbound,omitempty"`
	Ephemeral     bool   `json:"ephemeral,omitempty"`

	// Proof is the allowlist membership proof for open mint, as 0x-hex nodes.
	Proof []string `json:"proof,omitempty"`
}

// MintResponse is the response body for the mint endpoints.
type MintResponse struct {
	TokenID uint64 `json:"token_id"`
	Seq     uint64 `json:"seq"`
}

// BatchMintRequest is the column-oriented body for POST /v1/licenses/batch.
type BatchMintRequest struct {
	Owners         []string `json:"owners"`
	ApplicationIDs []string `json:"application_ids"`
	MetadataRefs   []string `json:"metadata_refs,omitempty"`
	ExpiresAt      []int64  `json:"expires_at,omitempty"`
	Soulbound      []bool   `json:"soulbound,omitempty"`
	Ephemeral      []bool   `json:"ephemeral,omitempty"`
}

// BatchItem is the outcome of one batch entry.
type BatchItem struct {
	Index   int    `json:"index"`
	TokenID uint64 `json:"token_id,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

// BatchMintResponse is the response body for POST /v1/licenses/batch.
type BatchMintResponse struct {
	Minted int         `json:"minted"`
	Failed int         `json:"failed"`
	Items  []BatchItem `json:"items"`
}

// TransferRequest is the request body for POST /v1/licenses/{id}/transfer.
type TransferRequest struct {
	To string `json:"to"`
}

// TransitionResponse is the response body for transfer, burn, revoke and
// redeem.
type TransitionResponse struct {
	TokenID uint64         `json:"token_id"`
	Events  []domain.Event `json:"events"`
}

// LicenseResponse is a license record with its derived fields.
type LicenseResponse struct {
	*domain.License
	Expired     bool   `json:"expired"`
	MetadataURI string `json:"metadata_uri"`
}

// LookupResponse is the response body for GET /v1/owners/{owner}/licenses/{app}.
type LookupResponse struct {
	License *LicenseResponse `json:"license"`
	Seq     uint64           `json:"seq"`
}

// RoyaltyResponse is the response body for GET /v1/licenses/{id}/royalty.
type RoyaltyResponse struct {
	TokenID   uint64         `json:"token_id"`
	SalePrice uint64         `json:"sale_price"`
	Receiver  domain.Address `json:"receiver"`
	Amount    uint64         `json:"amount"`
}

// IssueAccessRequest is the request body for POST /v1/access.
type IssueAccessRequest struct {
	Owner         string `json:"owner,omitempty"`
	ApplicationID string `json:"application_id"`
}

// IssueAccessResponse is the response body for POST /v1/access.
type IssueAccessResponse struct {
	Credential   string `json:"credential"`
	CredentialID string `json:"credential_id"`
	TokenID      uint64 `json:"token_id"`
	LedgerSeq    uint64 `json:"ledger_seq"`
	ExpiresAt    int64  `json:"expires_at" table:"ms"`
}

// VerifyAccessRequest is the request body for POST /v1/access/verify.
type VerifyAccessRequest struct {
	Credential string `json:"credential"`
}
