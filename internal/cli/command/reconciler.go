package command

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/licmesh/internal/cli/output"
	"github.com/yndnr/licmesh/internal/core/service"
)

// ReconcilerCommand returns the reconciler subcommand group (admin role).
func ReconcilerCommand() *cli.Command {
	return &cli.Command{
		Name:  "reconciler",
		Usage: "Inspect and retry parked reconciliation events",
		Subcommands: []*cli.Command{
			{
				Name:   "parked",
				Usage:  "List parked events",
				Action: reconcilerParked,
			},
			{
				Name:      "retry",
				Usage:     "Retry a parked event",
				ArgsUsage: "SEQ",
				Action:    reconcilerRetry,
			},
		},
	}
}

type parkedList struct {
	Cursor uint64                `json:"cursor"`
	Count  int                   `json:"count"`
	Events []service.ParkedEvent `json:"events"`
}

func reconcilerParked(c *cli.Context) error {
	client, cfg, err := ensureCaller(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c, cfg)
	defer cancel()

	var res parkedList
	if err := client.Call(ctx, http.MethodGet, "/v1/reconciler/parked", nil, &res); err != nil {
		return err
	}

	if !textOutput(cfg) {
		return render(c, cfg, &res)
	}

	table := &output.Table{}
	table.SetHeaders("SEQ", "TYPE", "TOKEN_ID", "ATTEMPTS", "PARKED_AT", "ERROR")
	for _, p := range res.Events {
		table.AddRow(
			strconv.FormatUint(p.Event.Seq, 10),
			string(p.Event.Type),
			strconv.FormatUint(p.Event.TokenID, 10),
			strconv.Itoa(p.Attempts),
			output.FormatMillis(p.ParkedAt),
			p.Error,
		)
	}
	if err := render(c, cfg, table); err != nil {
		return err
	}
	fmt.Fprintf(stdout(c), "\ncursor %d, %d parked\n", res.Cursor, res.Count)
	return nil
}

func reconcilerRetry(c *cli.Context) error {
	raw := c.Args().First()
	seq, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || seq == 0 {
		return fmt.Errorf("seq %q must be a positive integer", raw)
	}

	client, cfg, err := ensureCaller(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c, cfg)
	defer cancel()

	var res struct {
		Seq     uint64 `json:"seq"`
		Retried bool   `json:"retried"`
	}
	if err := client.Call(ctx, http.MethodPost, fmt.Sprintf("/v1/reconciler/parked/%d/retry", seq), nil, &res); err != nil {
		return err
	}

	if textOutput(cfg) {
		fmt.Fprintf(stdout(c), "Event %d reconciled\n", res.Seq)
		return nil
	}
	return render(c, cfg, &res)
}
