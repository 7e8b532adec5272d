// Package httpserver provides the HTTP/HTTPS server for licmesh.
//
// This package implements the external API using stdlib net/http:
//
//   - License endpoints: /v1/licenses, /v1/licenses/{id}/..., /v1/owners/{owner}/licenses/{app}
//   - Access endpoints: /v1/access, /v1/access/verify
//   - Admin endpoints: /v1/reconciler/parked
//   - Health endpoints: /health, /ready, /metrics
//
// The caller is the address bound to the request's API key, sent as
// "Authorization: Bearer <key_id>:<secret>" or the X-API-Key-ID/X-API-Key
// pair. Admin endpoints additionally require the admin role.
//
// On a Raft follower, ledger writes are proxied to the leader's API with
// the key unchanged; reads are served from the local replica.
package httpserver
