package command

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/licmesh/internal/core/domain"
	"github.com/yndnr/licmesh/internal/server/httpserver/handler"
)

// AccessCommand returns the access subcommand group.
func AccessCommand() *cli.Command {
	return &cli.Command{
		Name:  "access",
		Usage: "Access credential issuance and verification",
		Subcommands: []*cli.Command{
			{
				Name:  "issue",
				Usage: "Issue an access credential for the caller's license",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "app", Usage: "Application id", Required: true},
				},
				Action: accessIssue,
			},
			{
				Name:      "verify",
				Usage:     "Verify an access credential (\"-\" reads it from stdin)",
				ArgsUsage: "CREDENTIAL",
				Action:    accessVerify,
			},
		},
	}
}

func accessIssue(c *cli.Context) error {
	client, cfg, err := ensureCaller(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c, cfg)
	defer cancel()

	req := &handler.IssueAccessRequest{ApplicationID: c.String("app")}
	var res handler.IssueAccessResponse
	if err := client.Call(ctx, http.MethodPost, "/v1/access", req, &res); err != nil {
		return err
	}

	if textOutput(cfg) && !c.Bool("wide") {
		// The bare token is what callers pipe onward.
		fmt.Fprintln(stdout(c), res.Credential)
		return nil
	}
	return render(c, cfg, &res)
}

func accessVerify(c *cli.Context) error {
	credential := c.Args().First()
	if credential == "-" {
		data, err := io.ReadAll(io.LimitReader(os.Stdin, 64<<10))
		if err != nil {
			return fmt.Errorf("read credential: %w", err)
		}
		credential = string(data)
	}
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return fmt.Errorf("credential required")
	}

	client, cfg, err := EnsureConnected(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c, cfg)
	defer cancel()

	var res domain.Verification
	req := &handler.VerifyAccessRequest{Credential: credential}
	if err := client.Call(ctx, http.MethodPost, "/v1/access/verify", req, &res); err != nil {
		return err
	}
	if err := render(c, cfg, &res); err != nil {
		return err
	}
	if !res.Valid {
		return cli.Exit("", 1)
	}
	return nil
}
