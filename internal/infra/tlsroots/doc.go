// Package tlsroots handles the TLS material of licmesh binaries.
//
//   - roots.go: trusted CA pool for the CLI's HTTPS client
//   - keypair.go: the server key pair, reloadable without a restart
//
// KeyPair does no file watching itself; the server feeds it change
// notifications from the config watcher.
package tlsroots
