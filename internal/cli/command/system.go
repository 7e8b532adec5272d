package command

import (
	"fmt"
	"net/http"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/licmesh/internal/cli/connection"
	"github.com/yndnr/licmesh/internal/ledger"
)

// SystemCommand returns the system subcommand group.
func SystemCommand() *cli.Command {
	return &cli.Command{
		Name:    "system",
		Aliases: []string{"sys"},
		Usage:   "Server status",
		Subcommands: []*cli.Command{
			{
				Name:   "health",
				Usage:  "Check server liveness",
				Action: systemHealth,
			},
			{
				Name:   "ready",
				Usage:  "Check whether the server accepts ledger traffic",
				Action: systemReady,
			},
			{
				Name:   "stats",
				Usage:  "Show ledger counters",
				Action: systemStats,
			},
		},
	}
}

type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Seq     uint64 `json:"seq,omitempty"`
	Time    string `json:"time"`
}

func systemHealth(c *cli.Context) error {
	return probe(c, "/health")
}

func systemReady(c *cli.Context) error {
	return probe(c, "/ready")
}

func probe(c *cli.Context, path string) error {
	client, cfg, err := EnsureConnected(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c, cfg)
	defer cancel()

	var res healthResponse
	if err := client.Call(ctx, http.MethodGet, path, nil, &res); err != nil {
		if textOutput(cfg) && connection.IsCode(err, "LM-SYS-5030") {
			fmt.Fprintf(stdout(c), "%s: not ready (%v)\n", client.BaseURL(), err)
			return cli.Exit("", 1)
		}
		return err
	}

	if !textOutput(cfg) {
		return render(c, cfg, &res)
	}
	line := fmt.Sprintf("%s: %s", client.BaseURL(), res.Status)
	if res.Version != "" {
		line += " (version " + res.Version + ")"
	}
	if path == "/ready" {
		line += fmt.Sprintf(" at seq %d", res.Seq)
	}
	fmt.Fprintln(stdout(c), line)
	return nil
}

func systemStats(c *cli.Context) error {
	client, cfg, err := EnsureConnected(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c, cfg)
	defer cancel()

	var res ledger.Stats
	if err := client.Call(ctx, http.MethodGet, "/v1/ledger/stats", nil, &res); err != nil {
		return err
	}
	return render(c, cfg, &res)
}
