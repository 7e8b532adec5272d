// Package config holds licmesh-cli settings.
//
// Precedence, lowest first: built-in defaults, ~/.licmesh/cli.yaml,
// LICMESH_CLI_* environment variables, command-line flags.
package config
