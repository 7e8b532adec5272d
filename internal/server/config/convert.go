package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/yndnr/licmesh/internal/cluster"
	"github.com/yndnr/licmesh/internal/core/domain"
	"github.com/yndnr/licmesh/internal/ledger"
	"github.com/yndnr/licmesh/internal/storage"
	"github.com/yndnr/licmesh/internal/storage/journal"
)

// ToLedgerOptions maps the ledger section onto engine options.
func ToLedgerOptions(cfg *ServerConfig) (ledger.Options, error) {
	l := cfg.Ledger
	opts := ledger.Options{
		MaxSupply:      l.MaxSupply,
		TransferPolicy: ledger.TransferPolicy(l.TransferPolicy),
		BaseURI:        l.BaseURI,
		OpenMint:       ledger.OpenMintPolicy{Enabled: l.OpenMint.Enabled},
		Royalty:        ledger.RoyaltyPolicy{BasisPoints: l.Royalty.BasisPoints},
	}
	if l.OpenMint.AllowlistRoot != "" {
		root, err := parseHash(l.OpenMint.AllowlistRoot)
		if err != nil {
			return ledger.Options{}, fmt.Errorf("allowlist root: %w", err)
		}
		opts.OpenMint.AllowlistRoot = root
	}
	if l.Royalty.Receiver != "" {
		receiver, err := domain.ParseAddress(l.Royalty.Receiver)
		if err != nil {
			return ledger.Options{}, fmt.Errorf("royalty receiver: %w", err)
		}
		opts.Royalty.Receiver = receiver
	}
	return opts, nil
}

// ToAuthorizer builds the static role table.
func ToAuthorizer(cfg *ServerConfig) (*domain.StaticRoles, error) {
	minters, err := parseAddresses(cfg.Roles.Minters)
	if err != nil {
		return nil, fmt.Errorf("minters: %w", err)
	}
	admins, err := parseAddresses(cfg.Roles.Admins)
	if err != nil {
		return nil, fmt.Errorf("admins: %w", err)
	}
	return domain.NewStaticRoles(minters, admins), nil
}

// ToAPIKeys parses the configured API keys. Ids are matched
// case-insensitively and must be unique.
func ToAPIKeys(cfg *ServerConfig) ([]*domain.APIKey, error) {
	keys := make([]*domain.APIKey, 0, len(cfg.Auth.APIKeys))
	seen := make(map[string]bool, len(cfg.Auth.APIKeys))
	for i, k := range cfg.Auth.APIKeys {
		addr, err := domain.ParseAddress(k.Address)
		if err != nil {
			return nil, fmt.Errorf("api_keys[%d]: %w", i, err)
		}
		key := &domain.APIKey{
			KeyID:      strings.ToLower(k.ID),
			Address:    addr,
			SecretHash: k.SecretHash,
			Disabled:   k.Disabled,
		}
		if err := key.Validate(); err != nil {
			return nil, fmt.Errorf("api_keys[%d]: %w", i, err)
		}
		if seen[key.KeyID] {
			return nil, fmt.Errorf("api_keys[%d]: duplicate id %s", i, key.KeyID)
		}
		seen[key.KeyID] = true
		keys = append(keys, key)
	}
	return keys, nil
}

// ToJournalConfig returns the local host's journal configuration.
func ToJournalConfig(cfg *ServerConfig, logger *slog.Logger) journal.Config {
	return journal.Config{
		Path:            filepath.Join(cfg.Storage.DataDir, journal.DefaultFileName),
		SyncEveryAppend: cfg.Storage.JournalSync,
		Logger:          logger,
	}
}

// ToKVConfig returns the Badger credential store configuration.
func ToKVConfig(cfg *ServerConfig) storage.KVConfig {
	b := cfg.Storage.Badger
	// Verify has already rejected an unparsable interval; zero falls back
	// to the engine default.
	interval, _ := time.ParseDuration(b.GCInterval)
	return storage.KVConfig{
		Dir:               filepath.Join(cfg.Storage.DataDir, "credentials"),
		GCInterval:        interval,
		GCDiscardRatio:    b.GCThreshold,
		BlockCacheBytes:   b.CacheSize,
		ValueLogFileBytes: b.ValueLogFileSize,
		Memtables:         b.NumMemtables,
		SyncWrites:        b.SyncWrites,
	}
}

// ToRaftConfig maps the cluster section onto a Raft node configuration,
// generating a node id when none is configured.
func ToRaftConfig(cfg *ServerConfig, logger *slog.Logger) (cluster.RaftConfig, error) {
	if cfg == nil {
		return cluster.RaftConfig{}, fmt.Errorf("server config is nil")
	}

	nodeID := cfg.Cluster.NodeID
	if nodeID == "" {
		generated, err := generateNodeID()
		if err != nil {
			return cluster.RaftConfig{}, fmt.Errorf("generate node ID: %w", err)
		}
		nodeID = generated
		logger.Warn("generated cluster node ID; set cluster.node_id to keep it across restarts", "node_id", nodeID)
	}

	dataDir := cfg.Cluster.DataDir
	if dataDir == "" {
		dataDir = filepath.Join(cfg.Storage.DataDir, "raft")
	}

	peers := make([]cluster.Peer, 0, len(cfg.Cluster.Peers))
	for _, p := range cfg.Cluster.Peers {
		peers = append(peers, cluster.Peer{ID: p.ID, Addr: p.Addr})
	}

	return cluster.RaftConfig{
		NodeID:         nodeID,
		BindAddr:       cfg.Cluster.RaftAddr,
		DataDir:        dataDir,
		Bootstrap:      cfg.Cluster.Bootstrap,
		Peers:          peers,
		SnapshotRetain: cfg.Cluster.SnapshotRetain,
		Logger:         logger,
	}, nil
}

// generateNodeID returns "lmnode-" followed by 16 hex chars.
func generateNodeID() (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return "lmnode-" + hex.EncodeToString(buf), nil
}

// ToClusterAPIs parses cluster.api_urls for leader forwarding.
func ToClusterAPIs(cfg *ServerConfig) (map[string]*url.URL, error) {
	apis := make(map[string]*url.URL, len(cfg.Cluster.APIURLs))
	for id, raw := range cfg.Cluster.APIURLs {
		u, err := parseAPIURL(raw)
		if err != nil {
			return nil, fmt.Errorf("cluster.api_urls.%s: %w", id, err)
		}
		apis[id] = u
	}
	return apis, nil
}
