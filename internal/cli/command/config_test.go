package command

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/licmesh/internal/cli/config"
)

func TestConfigCommand(t *testing.T) {
	cmd := ConfigCommand()
	if cmd.Name != "config" {
		t.Errorf("Name = %q, want %q", cmd.Name, "config")
	}

	var cliCmd *cli.Command
	for _, sub := range cmd.Subcommands {
		if sub.Name == "cli" {
			cliCmd = sub
		}
	}
	if cliCmd == nil {
		t.Fatal("cli subcommand not found")
	}

	subNames := make(map[string]bool)
	for _, sub := range cliCmd.Subcommands {
		subNames[sub.Name] = true
	}
	for _, want := range []string{"show", "validate", "init"} {
		if !subNames[want] {
			t.Errorf("cli should have %q subcommand", want)
		}
	}
}

func TestConfigCLIShow_Defaults(t *testing.T) {
	ctx, out := makeTestContext(nil, nil)
	if err := configCLIShow(ctx); err != nil {
		t.Fatalf("configCLIShow() error = %v", err)
	}

	output := out.String()
	if !strings.Contains(output, "not found, using defaults") {
		t.Errorf("output = %q", output)
	}
	if !strings.Contains(output, config.DefaultServer) {
		t.Errorf("output missing default server:\n%s", output)
	}
}

func TestConfigCLIShow_MasksAPIKey(t *testing.T) {
	ctx, out := makeTestContext(nil, map[string]any{"api-key": "lmak-01arz3ndektsv4rrffq69g5fav:lmas_abcdefghijklmnop"})
	if err := configCLIShow(ctx); err != nil {
		t.Fatalf("configCLIShow() error = %v", err)
	}
	output := out.String()
	if strings.Contains(output, "abcdefghijklmnop") {
		t.Errorf("output leaks the secret:\n%s", output)
	}
	if !strings.Contains(output, "lmak-01arz3ndektsv4rrffq69g5fav:") {
		t.Errorf("output missing the key id:\n%s", output)
	}
}

func TestConfigCLIInitAndValidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cli.yaml")

	ctx, out := makeTestContext(nil, map[string]any{
		"config": path,
		"server": "https://ledger.example:5480",
		"caller": testCaller,
	})
	if err := configCLIInit(ctx); err != nil {
		t.Fatalf("configCLIInit() error = %v", err)
	}
	if !strings.Contains(out.String(), "Wrote "+path) {
		t.Errorf("output = %q", out.String())
	}

	saved, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if saved.Server != "https://ledger.example:5480" || saved.Caller != testCaller {
		t.Errorf("saved = %+v", saved)
	}

	// A second init refuses to clobber the file.
	ctx, _ = makeTestContext(nil, map[string]any{"config": path})
	if err := configCLIInit(ctx); err == nil {
		t.Error("configCLIInit() should refuse to overwrite without --force")
	}

	ctx, out = makeTestContext(nil, map[string]any{"config": path})
	if err := configCLIValidate(ctx); err != nil {
		t.Fatalf("configCLIValidate() error = %v", err)
	}
	if !strings.Contains(out.String(), "valid") {
		t.Errorf("output = %q", out.String())
	}
}

func TestConfigCLIValidate_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cli.yaml")
	if err := os.WriteFile(path, []byte("output: xml\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	ctx, _ := makeTestContext(nil, map[string]any{"config": path})
	if err := configCLIValidate(ctx); err == nil {
		t.Error("configCLIValidate() should reject output: xml")
	}
}

func TestConfigServerTest(t *testing.T) {
	dir := t.TempDir()

	valid := filepath.Join(dir, "server.yaml")
	content := `http:
  addr: 127.0.0.1:5480
credential:
  secret: 0123456789abcdef0123456789abcdef
storage:
  data_dir: ` + filepath.Join(dir, "data") + `
`
	if err := os.WriteFile(valid, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	ctx, out := makeTestContext(nil, nil, valid)
	if err := configServerTest(ctx); err != nil {
		t.Fatalf("configServerTest() error = %v", err)
	}
	if !strings.Contains(out.String(), "Configuration is valid") {
		t.Errorf("output = %q", out.String())
	}

	invalid := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(invalid, []byte("ledger:\n  transfer_policy: steal\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	ctx, _ = makeTestContext(nil, nil, invalid)
	if err := configServerTest(ctx); err == nil {
		t.Error("configServerTest() should reject a bad transfer policy")
	}

	ctx, _ = makeTestContext(nil, nil)
	if err := configServerTest(ctx); err == nil {
		t.Error("configServerTest() without a file should fail")
	}
}
