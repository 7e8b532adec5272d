package command

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/licmesh/internal/cli/config"
	"github.com/yndnr/licmesh/internal/cli/connection"
	"github.com/yndnr/licmesh/internal/cli/output"
	"github.com/yndnr/licmesh/internal/core/domain"
	"github.com/yndnr/licmesh/internal/infra/buildinfo"
)

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    "licmesh-cli",
		Usage:   "License ledger command-line tool",
		Version: buildinfo.String(),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			LicenseCommand(),
			AccessCommand(),
			AllowlistCommand(),
			ReconcilerCommand(),
			SystemCommand(),
			ConfigCommand(),
			APIKeyCommand(),
		},
	}
}

// globalFlags returns the global CLI flags.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Usage:   "CLI config file (default ~/.licmesh/cli.yaml)",
			EnvVars: []string{"LICMESH_CLI_CONFIG"},
		},
		&cli.StringFlag{
			Name:    "server",
			Aliases: []string{"s"},
			Usage:   "licmesh-server address (default " + config.DefaultServer + ")",
			EnvVars: []string{"LICMESH_SERVER"},
		},
		&cli.StringFlag{
			Name:    "caller",
			Aliases: []string{"u"},
			Usage:   "Principal address sent as X-Ledger-Caller; must match the api key",
			EnvVars: []string{"LICMESH_CALLER"},
		},
		&cli.StringFlag{
			Name:    "api-key",
			Aliases: []string{"k"},
			Usage:   "API key as <key_id>:<secret>",
			EnvVars: []string{"LICMESH_API_KEY"},
		},
		&cli.StringFlag{
			Name:  "ca-file",
			Usage: "PEM bundle trusted for https servers",
		},
		&cli.BoolFlag{
			Name:  "insecure",
			Usage: "Skip server certificate verification",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: table, json, yaml",
		},
		&cli.BoolFlag{
			Name:    "wide",
			Aliases: []string{"w"},
			Usage:   "Show wide output (more columns)",
		},
	}
}

// GlobalFlags defines flags available to all commands.
type GlobalFlags struct {
	Config   string
	Server   string
	Caller   string
	APIKey   string
	CAFile   string
	Insecure bool
	Output   string
	Wide     bool
}

// ParseGlobalFlags extracts global flags from context.
func ParseGlobalFlags(c *cli.Context) *GlobalFlags {
	return &GlobalFlags{
		Config:   c.String("config"),
		Server:   c.String("server"),
		Caller:   c.String("caller"),
		APIKey:   c.String("api-key"),
		CAFile:   c.String("ca-file"),
		Insecure: c.Bool("insecure"),
		Output:   c.String("output"),
		Wide:     c.Bool("wide"),
	}
}

// loadSettings resolves the effective configuration: file and environment
// first, then flags.
func loadSettings(c *cli.Context) (*config.CLIConfig, error) {
	flags := ParseGlobalFlags(c)

	cfg, err := config.Load(flags.Config)
	if err != nil {
		return nil, err
	}
	cfg = config.Merge(cfg, config.Overrides{
		Server:   flags.Server,
		Caller:   flags.Caller,
		APIKey:   flags.APIKey,
		CAFile:   flags.CAFile,
		Output:   flags.Output,
		Insecure: flags.Insecure,
	})
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// EnsureConnected builds the HTTP client from the effective settings.
func EnsureConnected(c *cli.Context) (*connection.HTTPClient, *config.CLIConfig, error) {
	cfg, err := loadSettings(c)
	if err != nil {
		return nil, nil, err
	}
	client, err := connection.NewHTTPClient(connection.Options{
		Server:   cfg.Server,
		Caller:   cfg.Caller,
		APIKey:   cfg.APIKey,
		CAFile:   cfg.CAFile,
		Insecure: cfg.Insecure,
		Timeout:  cfg.Timeout,
	})
	if err != nil {
		return nil, nil, err
	}
	return client, cfg, nil
}

// ensureCaller is EnsureConnected for commands that act as a principal.
func ensureCaller(c *cli.Context) (*connection.HTTPClient, *config.CLIConfig, error) {
	client, cfg, err := EnsureConnected(c)
	if err != nil {
		return nil, nil, err
	}
	if cfg.APIKey == "" {
		return nil, nil, fmt.Errorf("api key required (--api-key, LICMESH_API_KEY or api_key in cli.yaml)")
	}
	return client, cfg, nil
}

// requestContext bounds one command's server round trips.
func requestContext(c *cli.Context, cfg *config.CLIConfig) (context.Context, context.CancelFunc) {
	parent := c.Context
	if parent == nil {
		parent = context.Background()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = connection.DefaultTimeout
	}
	return context.WithTimeout(parent, timeout)
}

// render writes data in the selected output format.
func render(c *cli.Context, cfg *config.CLIConfig, data any) error {
	format, err := output.ParseFormat(cfg.Output)
	if err != nil {
		return err
	}
	return output.NewFormatter(format, c.Bool("wide")).Format(stdout(c), data)
}

// textOutput reports whether human-oriented lines should be printed.
func textOutput(cfg *config.CLIConfig) bool {
	format, _ := output.ParseFormat(cfg.Output)
	return format == output.FormatTable
}

func stdout(c *cli.Context) io.Writer {
	if c.App != nil && c.App.Writer != nil {
		return c.App.Writer
	}
	return os.Stdout
}

func parseAddressArg(name, s string) (domain.Address, error) {
	if s == "" {
		return domain.ZeroAddress, fmt.Errorf("--%s is required", name)
	}
	addr, err := domain.ParseAddress(s)
	if err != nil {
		return domain.ZeroAddress, fmt.Errorf("--%s: %q is not a 0x-hex address", name, s)
	}
	return addr, nil
}

// PrintError prints an error message to stderr.
func PrintError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
}
