package command

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/licmesh/internal/core/domain"
)

// APIKeyCommand returns the apikey subcommand group.
func APIKeyCommand() *cli.Command {
	return &cli.Command{
		Name:    "apikey",
		Aliases: []string{"key"},
		Usage:   "Provision API keys",
		Subcommands: []*cli.Command{
			{
				Name:  "create",
				Usage: "Generate a key bound to an address and print its server config entry",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "address",
						Aliases:  []string{"a"},
						Usage:    "Ledger address the key acts as",
						Required: true,
					},
				},
				Action: apikeyCreate,
			},
		},
	}
}

// apiKeyCreated is the machine-readable result of apikey create.
type apiKeyCreated struct {
	KeyID      string `json:"key_id" yaml:"key_id"`
	Address    string `json:"address" yaml:"address"`
	SecretHash string `json:"secret_hash" yaml:"secret_hash"`
	APIKey     string `json:"api_key" yaml:"api_key"`
}

// apikeyCreate runs locally; the server learns the key from its config.
func apikeyCreate(c *cli.Context) error {
	addr, err := parseAddressArg("address", c.String("address"))
	if err != nil {
		return err
	}
	cfg, err := loadSettings(c)
	if err != nil {
		return err
	}

	key, secret, err := domain.NewAPIKey(addr)
	if err != nil {
		return err
	}
	res := &apiKeyCreated{
		KeyID:      key.KeyID,
		Address:    addr.Hex(),
		SecretHash: key.SecretHash,
		APIKey:     key.KeyID + ":" + secret,
	}
	if !textOutput(cfg) {
		return render(c, cfg, res)
	}

	w := stdout(c)
	fmt.Fprintf(w, "API key created for %s\n\n", res.Address)
	fmt.Fprintf(w, "Client key (shown once): %s\n\n", res.APIKey)
	fmt.Fprintf(w, "Add to the server configuration under auth.api_keys:\n")
	fmt.Fprintf(w, "  - id: %s\n", res.KeyID)
	fmt.Fprintf(w, "    address: \"%s\"\n", res.Address)
	fmt.Fprintf(w, "    secret_hash: \"%s\"\n", res.SecretHash)
	return nil
}
