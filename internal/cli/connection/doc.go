// Package connection is the licmesh-cli HTTP client.
//
// Requests carry the caller principal in X-Ledger-Caller. Responses use the
// server's envelope; ParseResponse unwraps data on success and returns an
// *APIError carrying the LM-* code otherwise.
package connection
