package command

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/yndnr/licmesh/internal/cli/config"
	"github.com/yndnr/licmesh/internal/cli/connection"
	"github.com/yndnr/licmesh/internal/core/domain"
	"github.com/yndnr/licmesh/internal/ledger"
	"github.com/yndnr/licmesh/internal/server/httpserver/handler"
)

// LicenseCommand returns the license subcommand group.
func LicenseCommand() *cli.Command {
	return &cli.Command{
		Name:    "license",
		Aliases: []string{"lic"},
		Usage:   "License ledger operations",
		Subcommands: []*cli.Command{
			{
				Name:   "mint",
				Usage:  "Mint a license to an owner (minter role)",
				Flags:  append(mintFlags(), &cli.StringFlag{Name: "owner", Usage: "Owner address", Required: true}),
				Action: licenseMint,
			},
			{
				Name:  "batch-mint",
				Usage: "Mint many licenses from a YAML or JSON file (minter role)",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "File with a list of {owner, application_id, metadata_ref, expires_at, soulbound, ephemeral}", Required: true},
				},
				Action: licenseBatchMint,
			},
			{
				Name:  "open-mint",
				Usage: "Mint a license to the caller through the open mint window",
				Flags: append(mintFlags(),
					&cli.StringSliceFlag{Name: "proof", Usage: "Allowlist proof node (0x-hex, repeatable)"},
					&cli.StringFlag{Name: "allowlist", Usage: "Address file to derive the caller's proof from"},
				),
				Action: licenseOpenMint,
			},
			{
				Name:      "transfer",
				Usage:     "Transfer a license",
				ArgsUsage: "TOKEN_ID",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "to", Usage: "Recipient address", Required: true},
				},
				Action: licenseTransfer,
			},
			{
				Name:      "burn",
				Usage:     "Burn a license (owner only)",
				ArgsUsage: "TOKEN_ID",
				Action:    licenseTransition("burn"),
			},
			{
				Name:      "revoke",
				Usage:     "Revoke a license (admin role)",
				ArgsUsage: "TOKEN_ID",
				Action:    licenseTransition("revoke"),
			},
			{
				Name:      "redeem",
				Usage:     "Redeem an ephemeral license (owner only)",
				ArgsUsage: "TOKEN_ID",
				Action:    licenseTransition("redeem"),
			},
			{
				Name:      "get",
				Usage:     "Show a license",
				ArgsUsage: "TOKEN_ID",
				Action:    licenseGet,
			},
			{
				Name:  "lookup",
				Usage: "Find the license an owner holds for an application",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "owner", Usage: "Owner address", Required: true},
					&cli.StringFlag{Name: "app", Usage: "Application id", Required: true},
				},
				Action: licenseLookup,
			},
			{
				Name:      "royalty",
				Usage:     "Quote the royalty for a sale",
				ArgsUsage: "TOKEN_ID",
				Flags: []cli.Flag{
					&cli.Uint64Flag{Name: "sale-price", Usage: "Sale price in the smallest unit", Required: true},
				},
				Action: licenseRoyalty,
			},
		},
	}
}

func mintFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "app", Usage: "Application id", Required: true},
		&cli.StringFlag{Name: "metadata", Usage: "Off-ledger metadata reference"},
		&cli.StringFlag{Name: "expires", Usage: "Absolute expiry (RFC3339 or Unix milliseconds)"},
		&cli.DurationFlag{Name: "ttl", Usage: "Expiry relative to now"},
		&cli.BoolFlag{Name: "soulbound", Usage: "Never transferable"},
		&cli.BoolFlag{Name: "ephemeral", Usage: "Redeemable once"},
	}
}

// parseExpiry resolves --expires / --ttl to Unix milliseconds. Zero means
// perpetual.
func parseExpiry(expires string, ttl time.Duration, now time.Time) (int64, error) {
	if expires != "" && ttl != 0 {
		return 0, fmt.Errorf("--expires and --ttl are mutually exclusive")
	}
	if ttl < 0 {
		return 0, fmt.Errorf("--ttl must be positive")
	}
	if ttl > 0 {
		return now.Add(ttl).UnixMilli(), nil
	}
	if expires == "" {
		return 0, nil
	}
	if ms, err := strconv.ParseInt(expires, 10, 64); err == nil {
		return ms, nil
	}
	t, err := time.Parse(time.RFC3339, expires)
	if err != nil {
		return 0, fmt.Errorf("expiry %q: want RFC3339 or Unix milliseconds", expires)
	}
	return t.UnixMilli(), nil
}

func mintRequest(c *cli.Context) (*handler.MintRequest, error) {
	expiresAt, err := parseExpiry(c.String("expires"), c.Duration("ttl"), time.Now())
	if err != nil {
		return nil, err
	}
	return &handler.MintRequest{
		ApplicationID: c.String("app"),
		MetadataRef:   c.String("metadata"),
		ExpiresAt:     expiresAt,
		Soulbound:     c.Bool("soulbound"),
		Ephemeral:     c.Bool("ephemeral"),
	}, nil
}

func tokenIDArg(c *cli.Context) (uint64, error) {
	raw := c.Args().First()
	if raw == "" {
		return 0, fmt.Errorf("token id required")
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("token id %q must be a positive integer", raw)
	}
	return id, nil
}

func licenseMint(c *cli.Context) error {
	owner, err := parseAddressArg("owner", c.String("owner"))
	if err != nil {
		return err
	}
	req, err := mintRequest(c)
	if err != nil {
		return err
	}
	req.Owner = owner.Hex()

	client, cfg, err := ensureCaller(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c, cfg)
	defer cancel()

	var res handler.MintResponse
	if err := client.Call(ctx, http.MethodPost, "/v1/licenses", req, &res); err != nil {
		return err
	}
	return renderMint(c, cfg, &res)
}

func licenseOpenMint(c *cli.Context) error {
	req, err := mintRequest(c)
	if err != nil {
		return err
	}

	client, cfg, err := ensureCaller(c)
	if err != nil {
		return err
	}

	req.Proof = c.StringSlice("proof")
	if path := c.String("allowlist"); path != "" {
		if len(req.Proof) > 0 {
			return fmt.Errorf("--proof and --allowlist are mutually exclusive")
		}
		members, err := readAddressFile(path)
		if err != nil {
			return err
		}
		caller, err := parseAddressArg("caller", cfg.Caller)
		if err != nil {
			return err
		}
		proof, ok := ledger.NewAllowlist(members).Proof(caller)
		if !ok {
			return fmt.Errorf("caller %s is not in %s", caller.Hex(), path)
		}
		for _, node := range proof {
			req.Proof = append(req.Proof, node.Hex())
		}
	}

	ctx, cancel := requestContext(c, cfg)
	defer cancel()

	var res handler.MintResponse
	if err := client.Call(ctx, http.MethodPost, "/v1/licenses/open-mint", req, &res); err != nil {
		return err
	}
	return renderMint(c, cfg, &res)
}

func renderMint(c *cli.Context, cfg *config.CLIConfig, res *handler.MintResponse) error {
	if textOutput(cfg) {
		fmt.Fprintf(stdout(c), "Minted license %d (seq %d)\n", res.TokenID, res.Seq)
		return nil
	}
	return render(c, cfg, res)
}

// batchRow is one entry of a batch-mint file.
type batchRow struct {
	Owner         string `yaml:"owner"`
	ApplicationID string `yaml:"application_id"`
	MetadataRef   string `yaml:"metadata_ref"`
	ExpiresAt     string `yaml:"expires_at"`
	Soulbound     bool   `yaml:"soulbound"`
	Ephemeral     bool   `yaml:"ephemeral"`
}

// readBatchFile parses a batch-mint file into the column-oriented request.
// JSON files parse too, as YAML is a superset.
func readBatchFile(path string) (*handler.BatchMintRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read batch file: %w", err)
	}
	var rows []batchRow
	if err := yaml.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("parse batch file: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("batch file %s has no entries", path)
	}

	req := &handler.BatchMintRequest{}
	for i, row := range rows {
		expiresAt, err := parseExpiry(row.ExpiresAt, 0, time.Time{})
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		req.Owners = append(req.Owners, row.Owner)
		req.ApplicationIDs = append(req.ApplicationIDs, row.ApplicationID)
		req.MetadataRefs = append(req.MetadataRefs, row.MetadataRef)
		req.ExpiresAt = append(req.ExpiresAt, expiresAt)
		req.Soulbound = append(req.Soulbound, row.Soulbound)
		req.Ephemeral = append(req.Ephemeral, row.Ephemeral)
	}
	return req, nil
}

func licenseBatchMint(c *cli.Context) error {
	req, err := readBatchFile(c.String("file"))
	if err != nil {
		return err
	}

	client, cfg, err := ensureCaller(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c, cfg)
	defer cancel()

	var res handler.BatchMintResponse
	if err := client.Call(ctx, http.MethodPost, "/v1/licenses/batch", req, &res); err != nil {
		return err
	}

	if !textOutput(cfg) {
		return render(c, cfg, &res)
	}
	if err := render(c, cfg, res.Items); err != nil {
		return err
	}
	fmt.Fprintf(stdout(c), "\n%d minted, %d failed\n", res.Minted, res.Failed)
	if res.Failed > 0 {
		return cli.Exit("", 1)
	}
	return nil
}

func licenseTransfer(c *cli.Context) error {
	id, err := tokenIDArg(c)
	if err != nil {
		return err
	}
	to, err := parseAddressArg("to", c.String("to"))
	if err != nil {
		return err
	}
	return postTransition(c, id, "transfer", &handler.TransferRequest{To: to.Hex()})
}

// licenseTransition handles the body-less single-token transitions.
func licenseTransition(op string) cli.ActionFunc {
	return func(c *cli.Context) error {
		id, err := tokenIDArg(c)
		if err != nil {
			return err
		}
		return postTransition(c, id, op, nil)
	}
}

func postTransition(c *cli.Context, id uint64, op string, body any) error {
	client, cfg, err := ensureCaller(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c, cfg)
	defer cancel()

	var res handler.TransitionResponse
	path := fmt.Sprintf("/v1/licenses/%d/%s", id, op)
	if err := client.Call(ctx, http.MethodPost, path, body, &res); err != nil {
		return err
	}

	if !textOutput(cfg) {
		return render(c, cfg, &res)
	}
	return render(c, cfg, res.Events)
}

func licenseGet(c *cli.Context) error {
	id, err := tokenIDArg(c)
	if err != nil {
		return err
	}

	client, cfg, err := EnsureConnected(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c, cfg)
	defer cancel()

	var res handler.LicenseResponse
	if err := client.Call(ctx, http.MethodGet, fmt.Sprintf("/v1/licenses/%d", id), nil, &res); err != nil {
		return err
	}
	return render(c, cfg, &res)
}

func licenseLookup(c *cli.Context) error {
	owner, err := parseAddressArg("owner", c.String("owner"))
	if err != nil {
		return err
	}
	app := strings.TrimSpace(c.String("app"))
	if app == "" {
		return fmt.Errorf("--app is required")
	}

	client, cfg, err := EnsureConnected(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c, cfg)
	defer cancel()

	var res handler.LookupResponse
	path := "/v1/owners/" + owner.Hex() + "/licenses/" + url.PathEscape(app)
	if err := client.Call(ctx, http.MethodGet, path, nil, &res); err != nil {
		if connection.IsCode(err, domain.ErrLicenseNotFound.Code) && textOutput(cfg) {
			fmt.Fprintf(stdout(c), "%s holds no license for %s\n", owner.Hex(), app)
			return cli.Exit("", 1)
		}
		return err
	}

	if !textOutput(cfg) {
		return render(c, cfg, &res)
	}
	return render(c, cfg, res.License)
}

func licenseRoyalty(c *cli.Context) error {
	id, err := tokenIDArg(c)
	if err != nil {
		return err
	}

	client, cfg, err := EnsureConnected(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c, cfg)
	defer cancel()

	var res handler.RoyaltyResponse
	path := fmt.Sprintf("/v1/licenses/%d/royalty?sale_price=%d", id, c.Uint64("sale-price"))
	if err := client.Call(ctx, http.MethodGet, path, nil, &res); err != nil {
		return err
	}
	return render(c, cfg, &res)
}
