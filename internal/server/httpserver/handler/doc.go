// Package handler provides HTTP request handlers for licmesh.
//
// This package contains handlers for all HTTP endpoints:
//
//   - license.go: ledger transitions and reads
//   - access.go: credential issuance and verification
//   - reconciler.go: parked event inspection and retry
//   - health.go: health and readiness checks
//
// All handlers follow a consistent pattern:
//
//   - Parse and validate request
//   - Execute a ledger command or call a domain service
//   - Format and return response
//   - Handle errors with appropriate HTTP status codes
package handler
