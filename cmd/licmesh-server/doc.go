// Package main provides the entry point for licmesh-server.
//
// The server hosts the license ledger and the access issuance service:
//
//   - HTTP/HTTPS API for license transitions, lookups and credential issuance
//   - Reconciler that invalidates credentials after ownership changes
//   - Optional Raft replication of the ledger across nodes
//   - Prometheus metrics on /metrics
//
// Usage:
//
//	licmesh-server [flags]
//	licmesh-server -config /etc/licmesh/server.yaml
//
// Environment variables prefixed with LICMESH_ override file settings.
package main
