// Package service provides the access-side services of licmesh.
//
// AccessService answers "does this owner currently hold a live license for
// this application" with a short-lived signed credential, and verifies
// those credentials for downstream services without touching the ledger.
// Reconciler consumes the ledger's committed event feed and invalidates
// credentials whose ownership fact has changed.
//
// Storage dependencies are expressed as interfaces (CredentialStore,
// LicenseReader) and implemented in internal/storage and internal/host.
package service
