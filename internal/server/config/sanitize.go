package config

import "strings"

// Sanitize returns a copy of the config with secrets masked, for logging.
func Sanitize(cfg *ServerConfig) *ServerConfig {
	sanitized := *cfg

	if sanitized.Credential.Secret != "" {
		sanitized.Credential.Secret = maskSecret(sanitized.Credential.Secret)
	}

	// Slices are shared with cfg; copy before anyone mutates them.
	sanitized.Roles.Minters = append([]string(nil), cfg.Roles.Minters...)
	sanitized.Roles.Admins = append([]string(nil), cfg.Roles.Admins...)
	sanitized.Cluster.Peers = append([]PeerConfig(nil), cfg.Cluster.Peers...)

	sanitized.Auth.APIKeys = append([]APIKeyConfig(nil), cfg.Auth.APIKeys...)
	for i := range sanitized.Auth.APIKeys {
		if sanitized.Auth.APIKeys[i].SecretHash != "" {
			sanitized.Auth.APIKeys[i].SecretHash = "****"
		}
	}

	return &sanitized
}

// maskSecret masks a secret value for safe logging.
func maskSecret(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return s[:2] + strings.Repeat("*", len(s)-4) + s[len(s)-2:]
}
