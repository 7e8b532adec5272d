package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/yndnr/licmesh/internal/infra/confloader"
)

// EnvPrefix is the environment prefix for CLI settings (LICMESH_CLI_SERVER).
const EnvPrefix = "LICMESH_CLI_"

// DefaultConfigPath returns the default CLI config file path.
func DefaultConfigPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".licmesh", "cli.yaml")
}

// Load reads defaults, then the file at path when it exists, then
// LICMESH_CLI_* environment variables. An empty path means
// DefaultConfigPath.
func Load(path string) (*CLIConfig, error) {
	if path == "" {
		path = DefaultConfigPath()
	}

	loader := confloader.NewLoader(
		confloader.WithEnvPrefix(EnvPrefix),
		confloader.WithOptionalConfigFile(path),
	)
	cfg := Default()
	if err := loader.Load(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg as YAML with owner-only permissions.
func Save(cfg *CLIConfig, path string) error {
	if path == "" {
		path = DefaultConfigPath()
	}

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(fileView{CLIConfig: *cfg, Timeout: cfg.Timeout.String()})
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// fileView renders durations as "30s" rather than nanoseconds.
type fileView struct {
	CLIConfig `yaml:",inline"`
	Timeout   string `yaml:"timeout"`
}

// Overrides are command-line values; empty fields leave cfg unchanged.
type Overrides struct {
	Server   string
	Caller   string
	APIKey   string
	CAFile   string
	Output   string
	Insecure bool
}

// Merge applies flag overrides on top of cfg.
func Merge(cfg *CLIConfig, o Overrides) *CLIConfig {
	out := *cfg
	if o.Server != "" {
		out.Server = o.Server
	}
	if o.Caller != "" {
		out.Caller = o.Caller
	}
	if o.APIKey != "" {
		out.APIKey = o.APIKey
	}
	if o.CAFile != "" {
		out.CAFile = o.CAFile
	}
	if o.Output != "" {
		out.Output = o.Output
	}
	if o.Insecure {
		out.Insecure = true
	}
	return &out
}
