// Package storage provides persistent storage for licmesh.
//
// BadgerEngine is an embedded KV engine (Badger v3) with background value
// log GC and Prometheus size gauges. BadgerCredentialStore builds the
// durable credential store on top of it, so issued credentials and token
// invalidation watermarks survive restarts.
//
// Key layout:
//
//	cred/{credential_id}          -> JSON credential
//	tok/{token_id:8}/{cred_id}    -> empty (secondary index)
//	wm/{token_id:8}               -> uint64 watermark
//
// The ledger journal lives in the journal subpackage; in-memory credential
// storage in the memory subpackage.
package storage
