package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/yndnr/licmesh/internal/core/domain"
	"github.com/yndnr/licmesh/internal/core/service"
	"github.com/yndnr/licmesh/internal/ledger"
)

// Verify validates the configuration.
func Verify(cfg *ServerConfig) error {
	checks := []func(*ServerConfig) error{
		verifyHTTP,
		verifyLedger,
		verifyRoles,
		verifyAuth,
		verifyCredential,
		verifyReconciler,
		verifyStorage,
		verifyCluster,
		verifyLog,
	}
	for _, check := range checks {
		if err := check(cfg); err != nil {
			return err
		}
	}
	return nil
}

func verifyHTTP(cfg *ServerConfig) error {
	h := cfg.HTTP
	if _, _, err := net.SplitHostPort(h.Addr); err != nil {
		return fmt.Errorf("http.addr %q: %w", h.Addr, err)
	}
	if (h.TLSCertFile == "") != (h.TLSKeyFile == "") {
		return errors.New("http.tls_cert_file and http.tls_key_file must be set together")
	}
	for _, f := range []string{h.TLSCertFile, h.TLSKeyFile} {
		if f == "" {
			continue
		}
		if _, err := os.Stat(f); err != nil {
			return fmt.Errorf("http tls file: %w", err)
		}
	}
	return nil
}

func verifyLedger(cfg *ServerConfig) error {
	l := cfg.Ledger
	switch ledger.TransferPolicy(l.TransferPolicy) {
	case ledger.TransferReject, ledger.TransferOverwrite:
	default:
		return fmt.Errorf("ledger.transfer_policy must be %q or %q, got %q",
			ledger.TransferReject, ledger.TransferOverwrite, l.TransferPolicy)
	}
	if l.OpenMint.AllowlistRoot != "" {
		if _, err := parseHash(l.OpenMint.AllowlistRoot); err != nil {
			return fmt.Errorf("ledger.open_mint.allowlist_root: %w", err)
		}
	}
	if l.Royalty.BasisPoints > ledger.MaxBasisPoints {
		return fmt.Errorf("ledger.royalty.basis_points must be at most %d", ledger.MaxBasisPoints)
	}
	if l.Royalty.BasisPoints > 0 && l.Royalty.Receiver == "" {
		return errors.New("ledger.royalty.receiver is required when basis_points is set")
	}
	if l.Royalty.Receiver != "" {
		if _, err := domain.ParseAddress(l.Royalty.Receiver); err != nil {
			return fmt.Errorf("ledger.royalty.receiver: %w", err)
		}
	}
	return nil
}

func verifyRoles(cfg *ServerConfig) error {
	if _, err := parseAddresses(cfg.Roles.Minters); err != nil {
		return fmt.Errorf("roles.minters: %w", err)
	}
	if _, err := parseAddresses(cfg.Roles.Admins); err != nil {
		return fmt.Errorf("roles.admins: %w", err)
	}
	return nil
}

func verifyAuth(cfg *ServerConfig) error {
	if _, err := ToAPIKeys(cfg); err != nil {
		return fmt.Errorf("auth.%w", err)
	}
	return nil
}

func verifyCredential(cfg *ServerConfig) error {
	c := cfg.Credential
	if len(c.Secret) < service.MinSecretLength {
		return fmt.Errorf("credential.secret must be at least %d bytes", service.MinSecretLength)
	}
	if c.TTL <= 0 {
		return errors.New("credential.ttl must be positive")
	}
	if c.GCInterval <= 0 {
		return errors.New("credential.gc_interval must be positive")
	}
	return nil
}

func verifyReconciler(cfg *ServerConfig) error {
	r := cfg.Reconciler
	if r.BatchSize < 1 {
		return errors.New("reconciler.batch_size must be at least 1")
	}
	if r.MaxAttempts < 1 {
		return errors.New("reconciler.max_attempts must be at least 1")
	}
	if r.Backoff < 0 {
		return errors.New("reconciler.backoff must not be negative")
	}
	return nil
}

func verifyStorage(cfg *ServerConfig) error {
	s := cfg.Storage
	if s.DataDir == "" {
		return errors.New("storage.data_dir is required")
	}
	if err := os.MkdirAll(s.DataDir, 0750); err != nil {
		return fmt.Errorf("cannot create data directory: %w", err)
	}

	switch s.CredentialBackend {
	case BackendMemory:
	case BackendBadger:
		if _, err := time.ParseDuration(s.Badger.GCInterval); err != nil {
			return fmt.Errorf("storage.badger.gc_interval: %w", err)
		}
		if s.Badger.GCThreshold <= 0 || s.Badger.GCThreshold >= 1 {
			return errors.New("storage.badger.gc_threshold must be between 0 and 1")
		}
	default:
		return fmt.Errorf("storage.credential_backend must be %q or %q, got %q",
			BackendMemory, BackendBadger, s.CredentialBackend)
	}
	return nil
}

func verifyCluster(cfg *ServerConfig) error {
	c := cfg.Cluster
	if !c.Enabled {
		return nil
	}
	if _, _, err := net.SplitHostPort(c.RaftAddr); err != nil {
		return fmt.Errorf("cluster.raft_addr %q: %w", c.RaftAddr, err)
	}
	if c.ApplyTimeout <= 0 {
		return errors.New("cluster.apply_timeout must be positive")
	}
	seen := make(map[string]bool, len(c.Peers))
	for i, p := range c.Peers {
		if p.ID == "" || p.Addr == "" {
			return fmt.Errorf("cluster.peers[%d]: id and addr are required", i)
		}
		if seen[p.ID] {
			return fmt.Errorf("cluster.peers[%d]: duplicate id %q", i, p.ID)
		}
		seen[p.ID] = true
	}
	if len(c.Peers) > 0 && !c.Bootstrap {
		return errors.New("cluster.peers only apply with cluster.bootstrap")
	}
	if len(c.APIURLs) > 0 && c.NodeID == "" {
		return errors.New("cluster.api_urls requires a fixed cluster.node_id")
	}
	for id, raw := range c.APIURLs {
		if _, err := parseAPIURL(raw); err != nil {
			return fmt.Errorf("cluster.api_urls.%s: %w", id, err)
		}
	}
	if c.ForwardCAFile != "" {
		if _, err := os.Stat(c.ForwardCAFile); err != nil {
			return fmt.Errorf("cluster.forward_ca_file: %w", err)
		}
	}
	return nil
}

func parseAPIURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%q is not an http(s) base URL", raw)
	}
	return u, nil
}

func verifyLog(cfg *ServerConfig) error {
	switch strings.ToLower(cfg.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", cfg.Log.Level)
	}
	switch strings.ToLower(cfg.Log.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("log.format %q is not json or text", cfg.Log.Format)
	}
	return nil
}

func parseAddresses(in []string) ([]domain.Address, error) {
	out := make([]domain.Address, 0, len(in))
	for _, s := range in {
		a, err := domain.ParseAddress(s)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func parseHash(s string) (domain.Hash, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
	if err != nil {
		return domain.Hash{}, err
	}
	if len(raw) != len(domain.Hash{}) {
		return domain.Hash{}, fmt.Errorf("want %d bytes, got %d", len(domain.Hash{}), len(raw))
	}
	return domain.BytesToHash(raw), nil
}
