// Package main provides the entry point for licmesh-cli.
//
// The CLI talks to licmesh-server over HTTP:
//
//   - License transitions (mint, transfer, burn, revoke, redeem)
//   - Access credential issuance and verification
//   - Allowlist root and proof generation
//   - Reconciler and system inspection
//
// Usage:
//
//	licmesh-cli [global flags] command [flags]
//	licmesh-cli --caller 0x... license lookup --owner 0x... --app demo
//	licmesh-cli --api-key lmak-...:lmas_... license mint --owner 0x... --app demo
//	licmesh-cli apikey create --address 0x...
//	licmesh-cli -o json system stats
package main
