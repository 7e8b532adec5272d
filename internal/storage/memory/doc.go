// Package memory provides in-memory credential storage for licmesh.
//
// Credentials are held in a sharded map keyed by credential ID, with a
// secondary index from token ID to the set of credential IDs issued for
// it. Invalidation watermarks are kept per token.
//
// Thread Safety:
//
// Single-key reads go straight to the sharded maps. Operations that touch
// more than one index (Track, InvalidateToken, DeleteExpired) hold the
// store-wide lock.
package memory
