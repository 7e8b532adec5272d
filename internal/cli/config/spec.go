package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/yndnr/licmesh/internal/cli/output"
	"github.com/yndnr/licmesh/internal/core/domain"
)

// DefaultServer is where licmesh-server listens out of the box.
const DefaultServer = "http://127.0.0.1:5480"

// CLIConfig is the configuration for licmesh-cli (~/.licmesh/cli.yaml).
type CLIConfig struct {
	// Server is the licmesh-server base URL or host:port.
	Server string `koanf:"server" yaml:"server"`

	// Caller optionally restates the principal; the server checks it
	// against the address bound to APIKey.
	Caller string `koanf:"caller" yaml:"caller,omitempty"`

	// APIKey is "<key_id>:<secret>" as printed by "apikey create".
	APIKey string `koanf:"api_key" yaml:"api_key,omitempty"`

	// CAFile trusts an extra PEM bundle for https servers.
	CAFile string `koanf:"ca_file" yaml:"ca_file,omitempty"`

	// Insecure skips server certificate verification.
	Insecure bool `koanf:"insecure" yaml:"insecure,omitempty"`

	// Output is table, json or yaml.
	Output string `koanf:"output" yaml:"output"`

	// Timeout bounds each request.
	Timeout time.Duration `koanf:"timeout" yaml:"-"`
}

// Default returns the default CLI configuration.
func Default() *CLIConfig {
	return &CLIConfig{
		Server:  DefaultServer,
		Output:  string(output.FormatTable),
		Timeout: 30 * time.Second,
	}
}

// Validate checks the configuration.
func (c *CLIConfig) Validate() error {
	var errs []string
	if strings.TrimSpace(c.Server) == "" {
		errs = append(errs, "server is required")
	}
	if c.Caller != "" {
		if _, err := domain.ParseAddress(c.Caller); err != nil {
			errs = append(errs, fmt.Sprintf("caller %q is not a 0x-hex address", c.Caller))
		}
	}
	if c.APIKey != "" {
		id, secret, ok := strings.Cut(c.APIKey, ":")
		if !ok || secret == "" || !domain.IsValidAPIKeyID(id) {
			errs = append(errs, "api_key must be <key_id>:<secret>")
		}
	}
	if _, err := output.ParseFormat(c.Output); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Timeout < 0 {
		errs = append(errs, "timeout must not be negative")
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid cli config: %s", strings.Join(errs, "; "))
	}
	return nil
}
