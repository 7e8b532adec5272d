package command

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/licmesh/internal/cli/output"
	"github.com/yndnr/licmesh/internal/core/domain"
	"github.com/yndnr/licmesh/internal/ledger"
)

// AllowlistCommand returns the allowlist subcommand group. Everything runs
// locally; no server is contacted.
func AllowlistCommand() *cli.Command {
	fileFlag := &cli.StringFlag{
		Name:     "file",
		Aliases:  []string{"f"},
		Usage:    "Address file, one 0x-hex address per line (# comments)",
		Required: true,
	}
	return &cli.Command{
		Name:  "allowlist",
		Usage: "Build open mint allowlist roots and proofs",
		Subcommands: []*cli.Command{
			{
				Name:   "root",
				Usage:  "Print the merkle root to commit in ledger.open_mint.allowlist_root",
				Flags:  []cli.Flag{fileFlag},
				Action: allowlistRoot,
			},
			{
				Name:  "proof",
				Usage: "Print the membership proof for an address",
				Flags: []cli.Flag{
					fileFlag,
					&cli.StringFlag{Name: "address", Usage: "Member address", Required: true},
				},
				Action: allowlistProof,
			},
		},
	}
}

// readAddressFile parses one address per line, skipping blanks and
// #-comments.
func readAddressFile(path string) ([]domain.Address, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open address file: %w", err)
	}
	defer f.Close()

	var members []domain.Address
	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if i := strings.IndexByte(text, '#'); i >= 0 {
			text = strings.TrimSpace(text[:i])
		}
		if text == "" {
			continue
		}
		addr, err := domain.ParseAddress(text)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %q is not a 0x-hex address", path, line, text)
		}
		members = append(members, addr)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read address file: %w", err)
	}
	if len(members) == 0 {
		return nil, fmt.Errorf("address file %s is empty", path)
	}
	return members, nil
}

func allowlistRoot(c *cli.Context) error {
	members, err := readAddressFile(c.String("file"))
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout(c), ledger.NewAllowlist(members).Root().Hex())
	return nil
}

func allowlistProof(c *cli.Context) error {
	members, err := readAddressFile(c.String("file"))
	if err != nil {
		return err
	}
	addr, err := parseAddressArg("address", c.String("address"))
	if err != nil {
		return err
	}

	list := ledger.NewAllowlist(members)
	proof, ok := list.Proof(addr)
	if !ok {
		return fmt.Errorf("%s is not in %s", addr.Hex(), c.String("file"))
	}

	nodes := make([]string, len(proof))
	for i, node := range proof {
		nodes[i] = node.Hex()
	}

	format, err := output.ParseFormat(c.String("output"))
	if err != nil {
		return err
	}
	if format == output.FormatTable {
		for _, n := range nodes {
			fmt.Fprintln(stdout(c), n)
		}
		return nil
	}
	return output.NewFormatter(format, false).Format(stdout(c), map[string]any{
		"address": addr.Hex(),
		"root":    list.Root().Hex(),
		"proof":   nodes,
	})
}
