package command

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/licmesh/internal/cli/config"
	"github.com/yndnr/licmesh/internal/core/domain"
	"github.com/yndnr/licmesh/internal/infra/confloader"
	serverconfig "github.com/yndnr/licmesh/internal/server/config"
)

// ConfigCommand returns the config subcommand group.
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Configuration management",
		Subcommands: []*cli.Command{
			{
				Name:  "cli",
				Usage: "CLI local configuration",
				Subcommands: []*cli.Command{
					{
						Name:   "show",
						Usage:  "Show the effective CLI configuration",
						Action: configCLIShow,
					},
					{
						Name:   "validate",
						Usage:  "Validate the CLI configuration file",
						Action: configCLIValidate,
					},
					{
						Name:  "init",
						Usage: "Write a CLI configuration file from the current flags",
						Flags: []cli.Flag{
							&cli.BoolFlag{Name: "force", Usage: "Overwrite an existing file"},
						},
						Action: configCLIInit,
					},
				},
			},
			{
				Name:  "server",
				Usage: "Server configuration",
				Subcommands: []*cli.Command{
					{
						Name:      "test",
						Usage:     "Check a licmesh-server configuration file",
						ArgsUsage: "FILE",
						Action:    configServerTest,
					},
				},
			},
		},
	}
}

func configPath(c *cli.Context) string {
	if path := c.String("config"); path != "" {
		return path
	}
	return config.DefaultConfigPath()
}

func configCLIShow(c *cli.Context) error {
	cfg, err := loadSettings(c)
	if err != nil {
		return err
	}

	path := configPath(c)
	if textOutput(cfg) {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			fmt.Fprintf(stdout(c), "Config file: %s (not found, using defaults)\n\n", path)
		} else {
			fmt.Fprintf(stdout(c), "Config file: %s\n\n", path)
		}
	}
	return render(c, cfg, map[string]any{
		"server":   cfg.Server,
		"caller":   cfg.Caller,
		"api_key":  maskAPIKey(cfg.APIKey),
		"ca_file":  cfg.CAFile,
		"insecure": cfg.Insecure,
		"output":   cfg.Output,
		"timeout":  cfg.Timeout.String(),
	})
}

// maskAPIKey keeps the key id and masks the secret.
func maskAPIKey(s string) string {
	if s == "" {
		return ""
	}
	id, secret, _ := strings.Cut(s, ":")
	return id + ":" + domain.MaskAPIKeySecret(secret)
}

func configCLIValidate(c *cli.Context) error {
	path := configPath(c)
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(stdout(c), "No configuration file found at %s, using defaults.\n", path)
		return nil
	}

	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	fmt.Fprintf(stdout(c), "Configuration file is valid: %s\n", path)
	return nil
}

func configCLIInit(c *cli.Context) error {
	path := configPath(c)
	if _, err := os.Stat(path); err == nil && !c.Bool("force") {
		return fmt.Errorf("%s exists (use --force to overwrite)", path)
	}

	cfg, err := loadSettings(c)
	if err != nil {
		return err
	}
	if err := config.Save(cfg, path); err != nil {
		return err
	}
	fmt.Fprintf(stdout(c), "Wrote %s\n", path)
	return nil
}

// configServerTest loads a server file the way licmesh-server does,
// without the environment, and runs the same checks.
func configServerTest(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		return fmt.Errorf("configuration file path required")
	}

	cfg := serverconfig.Default()
	loader := confloader.NewLoader()
	if err := loader.LoadFile(path); err != nil {
		return err
	}
	if err := loader.Unmarshal(cfg); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}
	if err := serverconfig.Verify(cfg); err != nil {
		return err
	}

	fmt.Fprintf(stdout(c), "Configuration is valid: %s\n", path)
	return nil
}
