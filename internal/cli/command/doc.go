// Package command defines the licmesh-cli commands on urfave/cli/v2.
//
// Command groups:
//
//   - license: mint, batch-mint, open-mint, transfer, burn, revoke, redeem,
//     get, lookup, royalty
//   - access: issue and verify access credentials
//   - allowlist: build open mint roots and proofs locally
//   - reconciler: list and retry parked events (admin)
//   - system: health, readiness and ledger counters
//   - config: CLI settings and offline server config checks
//
// Each action resolves settings (file, environment, flags), makes one
// round trip through connection.HTTPClient and prints through output.
package command
