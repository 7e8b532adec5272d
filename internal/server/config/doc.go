// Package config defines the licmesh-server configuration.
//
//   - spec.go: ServerConfig and its sections
//   - default.go: default values
//   - verify.go: validation
//   - sanitize.go: masking of secrets for logging
//   - convert.go: mapping onto ledger, auth, cluster and storage options
//
// Configuration is loaded via internal/infra/confloader from a YAML file
// and LICMESH_ environment variables.
package config
