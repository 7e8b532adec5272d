// Package domain defines the core domain models for licmesh.
//
// Domain models are pure value objects and entities without any
// IO dependencies or framework coupling. This package contains:
//
//   - License: a minted token and its lifecycle flags
//   - Event: a committed ledger transition with its global sequence
//   - Credential: short-lived access proof issued to a license holder
//   - Role / Authorizer: mint and admin capabilities
//   - Errors: domain error codes
package domain
