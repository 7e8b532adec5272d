package config

import (
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/yndnr/licmesh/internal/core/domain"
	"github.com/yndnr/licmesh/internal/ledger"
)

const (
	testSecret = "0123456789abcdef0123456789abcdef"
	testMinter = "0x00000000000000000000000000000000000000aa"
)

const testKeyID = "lmak-01arz3ndektsv4rrffq69g5fav"

func testKeyHash(t *testing.T) string {
	t.Helper()
	hash, err := domain.HashAPIKeySecret("lmas_test-secret")
	if err != nil {
		t.Fatalf("HashAPIKeySecret() error = %v", err)
	}
	return hash
}

func validConfig(t *testing.T) *ServerConfig {
	t.Helper()
	cfg := Default()
	cfg.Storage.DataDir = t.TempDir()
	cfg.Credential.Secret = testSecret
	cfg.Roles.Minters = []string{testMinter}
	return cfg
}

func mustAddress(t *testing.T, s string) domain.Address {
	t.Helper()
	a, err := domain.ParseAddress(s)
	if err != nil {
		t.Fatalf("ParseAddress(%q) error = %v", s, err)
	}
	return a
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.HTTP.Addr != DefaultHTTPAddr {
		t.Errorf("HTTP.Addr = %q, want %q", cfg.HTTP.Addr, DefaultHTTPAddr)
	}
	if cfg.Ledger.TransferPolicy != string(ledger.TransferReject) {
		t.Errorf("Ledger.TransferPolicy = %q, want reject", cfg.Ledger.TransferPolicy)
	}
	if cfg.Credential.TTL != DefaultCredentialTTL {
		t.Errorf("Credential.TTL = %v, want %v", cfg.Credential.TTL, DefaultCredentialTTL)
	}
	if cfg.Storage.CredentialBackend != BackendMemory {
		t.Errorf("Storage.CredentialBackend = %q, want memory", cfg.Storage.CredentialBackend)
	}
	if cfg.Cluster.Enabled {
		t.Error("cluster should be disabled by default")
	}
	if cfg.Log.Level != DefaultLogLevel || cfg.Log.Format != DefaultLogFormat {
		t.Errorf("Log = %+v", cfg.Log)
	}
}

func TestVerify_Valid(t *testing.T) {
	if err := Verify(validConfig(t)); err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
}

func TestVerify_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ServerConfig)
		wantErr string
	}{
		{"bad http addr", func(c *ServerConfig) { c.HTTP.Addr = "nope" }, "http.addr"},
		{"cert without key", func(c *ServerConfig) { c.HTTP.TLSCertFile = "/tmp/cert.pem" }, "set together"},
		{"transfer policy", func(c *ServerConfig) { c.Ledger.TransferPolicy = "replace" }, "transfer_policy"},
		{"allowlist root", func(c *ServerConfig) { c.Ledger.OpenMint.AllowlistRoot = "0x1234" }, "allowlist_root"},
		{"royalty bps", func(c *ServerConfig) {
			c.Ledger.Royalty.Receiver = testMinter
			c.Ledger.Royalty.BasisPoints = 10001
		}, "basis_points"},
		{"royalty receiver missing", func(c *ServerConfig) { c.Ledger.Royalty.BasisPoints = 250 }, "receiver"},
		{"bad minter", func(c *ServerConfig) { c.Roles.Minters = []string{"0xnothex"} }, "roles.minters"},
		{"api key address", func(c *ServerConfig) {
			c.Auth.APIKeys = []APIKeyConfig{{ID: testKeyID, Address: "alice", SecretHash: testKeyHash(t)}}
		}, "auth.api_keys[0]"},
		{"api key plaintext secret", func(c *ServerConfig) {
			c.Auth.APIKeys = []APIKeyConfig{{ID: testKeyID, Address: testMinter, SecretHash: "lmas_plaintext"}}
		}, "secret hash"},
		{"api key duplicate id", func(c *ServerConfig) {
			k := APIKeyConfig{ID: testKeyID, Address: testMinter, SecretHash: testKeyHash(t)}
			upper := k
			upper.ID = strings.ToUpper(k.ID)
			c.Auth.APIKeys = []APIKeyConfig{k, upper}
		}, "duplicate id"},
		{"short secret", func(c *ServerConfig) { c.Credential.Secret = "short" }, "credential.secret"},
		{"zero ttl", func(c *ServerConfig) { c.Credential.TTL = 0 }, "credential.ttl"},
		{"batch size", func(c *ServerConfig) { c.Reconciler.BatchSize = 0 }, "batch_size"},
		{"no data dir", func(c *ServerConfig) { c.Storage.DataDir = "" }, "data_dir"},
		{"backend", func(c *ServerConfig) { c.Storage.CredentialBackend = "redis" }, "credential_backend"},
		{"badger gc interval", func(c *ServerConfig) {
			c.Storage.CredentialBackend = BackendBadger
			c.Storage.Badger.GCInterval = "soon"
		}, "gc_interval"},
		{"raft addr", func(c *ServerConfig) {
			c.Cluster.Enabled = true
			c.Cluster.RaftAddr = ""
		}, "raft_addr"},
		{"duplicate peer", func(c *ServerConfig) {
			c.Cluster.Enabled = true
			c.Cluster.Bootstrap = true
			c.Cluster.Peers = []PeerConfig{{ID: "n2", Addr: "10.0.0.2:5483"}, {ID: "n2", Addr: "10.0.0.3:5483"}}
		}, "duplicate"},
		{"peers without bootstrap", func(c *ServerConfig) {
			c.Cluster.Enabled = true
			c.Cluster.Peers = []PeerConfig{{ID: "n2", Addr: "10.0.0.2:5483"}}
		}, "bootstrap"},
		{"api url scheme", func(c *ServerConfig) {
			c.Cluster.Enabled = true
			c.Cluster.NodeID = "n1"
			c.Cluster.APIURLs = map[string]string{"n2": "10.0.0.2:5480"}
		}, "cluster.api_urls.n2"},
		{"api urls need node id", func(c *ServerConfig) {
			c.Cluster.Enabled = true
			c.Cluster.APIURLs = map[string]string{"n2": "https://10.0.0.2:5480"}
		}, "node_id"},
		{"forward ca file", func(c *ServerConfig) {
			c.Cluster.Enabled = true
			c.Cluster.ForwardCAFile = "/nonexistent/ca.pem"
		}, "forward_ca_file"},
		{"log level", func(c *ServerConfig) { c.Log.Level = "verbose" }, "log.level"},
		{"log format", func(c *ServerConfig) { c.Log.Format = "xml" }, "log.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(cfg)
			err := Verify(cfg)
			if err == nil {
				t.Fatal("Verify() expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Verify() error = %q, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestSanitize(t *testing.T) {
	cfg := validConfig(t)
	sanitized := Sanitize(cfg)

	if cfg.Credential.Secret != testSecret {
		t.Error("Sanitize() modified the original")
	}
	if sanitized.Credential.Secret == testSecret || !strings.HasPrefix(sanitized.Credential.Secret, "01") {
		t.Errorf("secret not masked: %q", sanitized.Credential.Secret)
	}

	sanitized.Roles.Minters[0] = "changed"
	if cfg.Roles.Minters[0] != testMinter {
		t.Error("Sanitize() shares the minters slice")
	}

	hash := testKeyHash(t)
	cfg.Auth.APIKeys = []APIKeyConfig{{ID: testKeyID, Address: testMinter, SecretHash: hash}}
	sanitized = Sanitize(cfg)
	if sanitized.Auth.APIKeys[0].SecretHash != "****" || cfg.Auth.APIKeys[0].SecretHash != hash {
		t.Errorf("api key hash: sanitized %q, original %q", sanitized.Auth.APIKeys[0].SecretHash, cfg.Auth.APIKeys[0].SecretHash)
	}
}

func TestToAPIKeys(t *testing.T) {
	cfg := validConfig(t)
	hash := testKeyHash(t)
	cfg.Auth.APIKeys = []APIKeyConfig{
		{ID: strings.ToUpper(testKeyID), Address: testMinter, SecretHash: hash, Disabled: true},
	}

	keys, err := ToAPIKeys(cfg)
	if err != nil {
		t.Fatalf("ToAPIKeys() error = %v", err)
	}
	if len(keys) != 1 {
		t.Fatalf("ToAPIKeys() = %d keys, want 1", len(keys))
	}
	k := keys[0]
	if k.KeyID != testKeyID || k.Address != mustAddress(t, testMinter) || !k.Disabled {
		t.Errorf("key = %+v", k)
	}
	if !k.VerifySecret("lmas_test-secret") {
		t.Error("configured hash does not verify its secret")
	}
}

func TestMaskSecret(t *testing.T) {
	tests := []struct{ in, want string }{
		{"", "****"},
		{"abcd", "****"},
		{"abcdef", "ab**ef"},
	}
	for _, tt := range tests {
		if got := maskSecret(tt.in); got != tt.want {
			t.Errorf("maskSecret(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestToLedgerOptions(t *testing.T) {
	cfg := validConfig(t)
	cfg.Ledger.MaxSupply = 100
	cfg.Ledger.TransferPolicy = "overwrite"
	cfg.Ledger.OpenMint.Enabled = true
	cfg.Ledger.OpenMint.AllowlistRoot = "0x" + strings.Repeat("ab", 32)
	cfg.Ledger.Royalty.Receiver = testMinter
	cfg.Ledger.Royalty.BasisPoints = 250

	opts, err := ToLedgerOptions(cfg)
	if err != nil {
		t.Fatalf("ToLedgerOptions() error = %v", err)
	}
	if opts.MaxSupply != 100 || opts.TransferPolicy != ledger.TransferOverwrite || !opts.OpenMint.Enabled {
		t.Errorf("options = %+v", opts)
	}
	if opts.OpenMint.AllowlistRoot[0] != 0xab {
		t.Errorf("allowlist root = %x", opts.OpenMint.AllowlistRoot)
	}
	if opts.Royalty.Receiver != mustAddress(t, testMinter) || opts.Royalty.BasisPoints != 250 {
		t.Errorf("royalty = %+v", opts.Royalty)
	}
}

func TestToAuthorizer(t *testing.T) {
	cfg := validConfig(t)
	roles, err := ToAuthorizer(cfg)
	if err != nil {
		t.Fatalf("ToAuthorizer() error = %v", err)
	}
	if !roles.HasRole(mustAddress(t, testMinter), domain.RoleMinter) {
		t.Error("configured minter lacks the minter role")
	}
}

func TestToRaftConfig(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := validConfig(t)
	cfg.Cluster.Enabled = true
	cfg.Cluster.Bootstrap = true
	cfg.Cluster.Peers = []PeerConfig{{ID: "n2", Addr: "10.0.0.2:5483"}}

	rc, err := ToRaftConfig(cfg, logger)
	if err != nil {
		t.Fatalf("ToRaftConfig() error = %v", err)
	}
	if !strings.HasPrefix(rc.NodeID, "lmnode-") || len(rc.NodeID) != len("lmnode-")+16 {
		t.Errorf("generated NodeID = %q", rc.NodeID)
	}
	if rc.DataDir != filepath.Join(cfg.Storage.DataDir, "raft") {
		t.Errorf("DataDir = %q", rc.DataDir)
	}
	if len(rc.Peers) != 1 || rc.Peers[0].ID != "n2" || !rc.Bootstrap {
		t.Errorf("peers/bootstrap = %+v/%v", rc.Peers, rc.Bootstrap)
	}

	cfg.Cluster.NodeID = "node-a"
	rc, _ = ToRaftConfig(cfg, logger)
	if rc.NodeID != "node-a" {
		t.Errorf("NodeID = %q, want node-a", rc.NodeID)
	}

	if _, err := ToRaftConfig(nil, logger); err == nil {
		t.Error("ToRaftConfig(nil) should fail")
	}
}

func TestToClusterAPIs(t *testing.T) {
	cfg := validConfig(t)
	cfg.Cluster.APIURLs = map[string]string{
		"n1": "https://10.0.0.1:5480",
		"n2": "http://10.0.0.2:5480",
	}
	apis, err := ToClusterAPIs(cfg)
	if err != nil {
		t.Fatalf("ToClusterAPIs() error = %v", err)
	}
	if len(apis) != 2 || apis["n1"].Host != "10.0.0.1:5480" || apis["n2"].Scheme != "http" {
		t.Errorf("ToClusterAPIs() = %v", apis)
	}

	cfg.Cluster.APIURLs["n3"] = "ftp://10.0.0.3"
	if _, err := ToClusterAPIs(cfg); err == nil {
		t.Error("ToClusterAPIs() should reject a non-http URL")
	}
}

func TestToKVConfig(t *testing.T) {
	cfg := validConfig(t)
	kv := ToKVConfig(cfg)
	if kv.Dir != filepath.Join(cfg.Storage.DataDir, "credentials") {
		t.Errorf("Dir = %q", kv.Dir)
	}
	if kv.GCInterval != 10*time.Minute {
		t.Errorf("GCInterval = %v, want 10m", kv.GCInterval)
	}
	if kv.GCDiscardRatio != 0.5 {
		t.Errorf("GCDiscardRatio = %v, want 0.5", kv.GCDiscardRatio)
	}
	if !kv.SyncWrites {
		t.Error("SyncWrites should default to true")
	}
}
