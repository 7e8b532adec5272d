// Package logger provides structured logging for licmesh.
//
// It wraps log/slog:
//
//   - logger.go: logger construction, dynamic level, process default
//   - context.go: request ID and ledger principal carried on the context
//   - redact.go: sensitive data redaction
//
// Issued access credentials are signed JWTs and are masked wherever they
// appear as attribute values. Attributes whose key names a secret are
// fully redacted.
package logger
