// Package domain defines the core domain models for licmesh.
package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a business domain error with a structured error code.
// Codes follow the pattern LM-<AREA>-<NNNN>; the last three digits mirror the
// HTTP status the error maps to at the API boundary.
type DomainError struct {
	Code    string // Error code (e.g., "LM-LEDG-4040")
	Message string // Human-readable message
	Details string // Optional additional details
	Cause   error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a DomainError with the same code.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new DomainError with the given code and message.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *DomainError) WithDetails(details string) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		Cause:   e.Cause,
	}
}

// WithDetailsf is WithDetails with a format string.
func (e *DomainError) WithDetailsf(format string, args ...any) *DomainError {
	return e.WithDetails(fmt.Sprintf(format, args...))
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		Cause:   cause,
	}
}

// IsDomainError checks if an error is a DomainError with the given code.
// If code is empty, it only checks if the error is a DomainError.
func IsDomainError(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		if code == "" {
			return true
		}
		return de.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error if it's a DomainError.
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// ============================================================================
// Ledger Errors (LEDG)
// ============================================================================

var (
	// ErrUnauthorized indicates the caller lacks the capability for the operation.
	ErrUnauthorized = NewDomainError("LM-LEDG-4030", "caller not authorized")

	// ErrNotOwner indicates the caller does not own the token.
	ErrNotOwner = NewDomainError("LM-LEDG-4031", "caller is not the token owner")

	// ErrSoulboundLocked indicates a transfer of a soulbound token.
	ErrSoulboundLocked = NewDomainError("LM-LEDG-4032", "token is soulbound")

	// ErrNotAllowlisted indicates the open-mint claimant failed the allowlist proof.
	ErrNotAllowlisted = NewDomainError("LM-LEDG-4033", "claimant not in allowlist")

	// ErrOpenMintDisabled indicates open minting is switched off.
	ErrOpenMintDisabled = NewDomainError("LM-LEDG-4034", "open mint disabled")

	// ErrLicenseNotFound indicates no live token has the requested id.
	ErrLicenseNotFound = NewDomainError("LM-LEDG-4040", "license not found")

	// ErrDuplicateLicense indicates the owner already holds a license for the application.
	ErrDuplicateLicense = NewDomainError("LM-LEDG-4090", "owner already holds a license for application")

	// ErrSlotOccupied indicates the ownership slot is held by another token.
	ErrSlotOccupied = NewDomainError("LM-LEDG-4091", "ownership slot occupied")

	// ErrNotEphemeral indicates redemption of a non-ephemeral token.
	ErrNotEphemeral = NewDomainError("LM-LEDG-4092", "token is not ephemeral")

	// ErrAlreadyRedeemed indicates the ephemeral token was already redeemed.
	ErrAlreadyRedeemed = NewDomainError("LM-LEDG-4093", "token already redeemed")

	// ErrCapacityExceeded indicates the configured supply cap was reached.
	ErrCapacityExceeded = NewDomainError("LM-LEDG-4094", "license supply exhausted")

	// ErrArityMismatch indicates batch columns of different lengths.
	ErrArityMismatch = NewDomainError("LM-LEDG-4001", "batch arity mismatch")
)

// ============================================================================
// Access Errors (ACCS)
// ============================================================================

var (
	// ErrNoLicense indicates the owner holds no license for the application.
	ErrNoLicense = NewDomainError("LM-ACCS-4030", "no license for application")

	// ErrLicenseExpired indicates the license exists but expired.
	ErrLicenseExpired = NewDomainError("LM-ACCS-4031", "license expired")

	// ErrCredentialMalformed indicates the credential could not be parsed or its signature is bad.
	ErrCredentialMalformed = NewDomainError("LM-ACCS-4000", "malformed credential")

	// ErrCredentialNotFound indicates the credential id is unknown to the store.
	ErrCredentialNotFound = NewDomainError("LM-ACCS-4040", "credential not found")
)

// ============================================================================
// Authentication Errors (AUTH)
// ============================================================================

var (
	// ErrAuthRequired indicates a request that asserts a caller without an API key.
	ErrAuthRequired = NewDomainError("LM-AUTH-4010", "authentication required")

	// ErrAPIKeyInvalid indicates an unknown, disabled or mismatched API key.
	ErrAPIKeyInvalid = NewDomainError("LM-AUTH-4011", "invalid api key")

	// ErrCallerMismatch indicates an X-Ledger-Caller header naming another principal than the key.
	ErrCallerMismatch = NewDomainError("LM-AUTH-4030", "caller does not match api key")
)

// ============================================================================
// System Errors (SYS)
// ============================================================================

var (
	// ErrInternalServer indicates an internal server error.
	ErrInternalServer = NewDomainError("LM-SYS-5000", "internal server error")

	// ErrStorageError indicates a storage layer error.
	ErrStorageError = NewDomainError("LM-SYS-5001", "storage error")

	// ErrServiceUnavailable indicates the service is temporarily unavailable.
	ErrServiceUnavailable = NewDomainError("LM-SYS-5030", "service unavailable")

	// ErrNotLeader indicates a write reached a follower node.
	ErrNotLeader = NewDomainError("LM-SYS-5031", "not the raft leader")

	// ErrBadRequest indicates a malformed request.
	ErrBadRequest = NewDomainError("LM-SYS-4000", "bad request")
)

// ============================================================================
// Argument Errors (ARG)
// ============================================================================

var (
	// ErrInvalidArgument indicates an invalid argument.
	ErrInvalidArgument = NewDomainError("LM-ARG-4000", "invalid argument")

	// ErrMissingArgument indicates a required argument is missing.
	ErrMissingArgument = NewDomainError("LM-ARG-4001", "missing required argument")
)
