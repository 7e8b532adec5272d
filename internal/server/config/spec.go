package config

import "time"

// ServerConfig is the root configuration for licmesh-server.
type ServerConfig struct {
	HTTP       HTTPSection       `koanf:"http"`
	Ledger     LedgerSection     `koanf:"ledger"`
	Roles      RolesSection      `koanf:"roles"`
	Auth       AuthSection       `koanf:"auth"`
	Credential CredentialSection `koanf:"credential"`
	Reconciler ReconcilerSection `koanf:"reconciler"`
	Storage    StorageSection    `koanf:"storage"`
	Cluster    ClusterSection    `koanf:"cluster"`
	Log        LogSection        `koanf:"log"`
}

// HTTPSection configures the HTTP API.
type HTTPSection struct {
	Addr            string        `koanf:"addr"`
	TLSCertFile     string        `koanf:"tls_cert_file"`
	TLSKeyFile      string        `koanf:"tls_key_file"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// LedgerSection configures ledger policy.
type LedgerSection struct {
	// MaxSupply caps the number of ids ever minted. Zero is unlimited.
	MaxSupply uint64 `koanf:"max_supply"`

	// TransferPolicy is "reject" or "overwrite".
	TransferPolicy string `koanf:"transfer_policy"`

	// BaseURI prefixes relative metadata references.
	BaseURI string `koanf:"base_uri"`

	OpenMint OpenMintSection `koanf:"open_mint"`
	Royalty  RoyaltySection  `koanf:"royalty"`
}

// OpenMintSection configures self-service minting.
type OpenMintSection struct {
	Enabled bool `koanf:"enabled"`

	// AllowlistRoot is the hex Merkle root; empty allows everyone.
	AllowlistRoot string `koanf:"allowlist_root"`
}

// RoyaltySection configures the royalty policy.
type RoyaltySection struct {
	Receiver    string `koanf:"receiver"`
	BasisPoints uint64 `koanf:"basis_points"`
}

// RolesSection lists capability holders by address.
type RolesSection struct {
	Minters []string `koanf:"minters"`
	Admins  []string `koanf:"admins"`
}

// AuthSection provisions the API keys callers authenticate with.
type AuthSection struct {
	APIKeys []APIKeyConfig `koanf:"api_keys"`
}

// APIKeyConfig binds one API key to the address it acts as. SecretHash is
// the Argon2id hash printed by "licmesh-cli apikey create"; plaintext
// secrets never appear in configuration.
type APIKeyConfig struct {
	ID         string `koanf:"id"`
	Address    string `koanf:"address"`
	SecretHash string `koanf:"secret_hash"`
	Disabled   bool   `koanf:"disabled"`
}

// CredentialSection configures access credentials.
type CredentialSection struct {
	// Secret keys credential signatures. At least 32 bytes.
	Secret string `koanf:"secret"`

	Issuer string        `koanf:"issuer"`
	TTL    time.Duration `koanf:"ttl"`

	// GCInterval is how often expired credentials are swept.
	GCInterval time.Duration `koanf:"gc_interval"`
}

// ReconcilerSection configures the ownership-change reconciler.
type ReconcilerSection struct {
	BatchSize   int           `koanf:"batch_size"`
	MaxAttempts int           `koanf:"max_attempts"`
	Backoff     time.Duration `koanf:"backoff"`
}

// Credential store backends.
const (
	BackendMemory = "memory"
	BackendBadger = "badger"
)

// StorageSection configures persistence.
type StorageSection struct {
	DataDir string `koanf:"data_dir"`

	// JournalSync fsyncs the ledger journal after every append.
	JournalSync bool `koanf:"journal_sync"`

	// CredentialBackend is "memory" or "badger".
	CredentialBackend string `koanf:"credential_backend"`

	Badger BadgerSection `koanf:"badger"`
}

// BadgerSection tunes the Badger credential store.
type BadgerSection struct {
	GCInterval       string  `koanf:"gc_interval"`
	GCThreshold      float64 `koanf:"gc_threshold"`
	CacheSize        int64   `koanf:"cache_size"`
	ValueLogFileSize int64   `koanf:"value_log_file_size"`
	NumMemtables     int     `koanf:"num_memtables"`
	SyncWrites       bool    `koanf:"sync_writes"`
}

// ClusterSection configures the replicated host.
type ClusterSection struct {
	// Enabled replaces the local journaled host with a Raft group.
	Enabled bool `koanf:"enabled"`

	// NodeID is the unique identifier for this node. Generated when empty.
	NodeID string `koanf:"node_id"`

	// RaftAddr is the Raft TCP bind address (e.g. "10.0.0.5:5483").
	RaftAddr string `koanf:"raft_addr"`

	// DataDir holds the Raft log and snapshots. Defaults to
	// storage.data_dir/raft.
	DataDir string `koanf:"data_dir"`

	// Bootstrap forms a new cluster from this node and Peers.
	Bootstrap bool `koanf:"bootstrap"`

	Peers []PeerConfig `koanf:"peers"`

	ApplyTimeout   time.Duration `koanf:"apply_timeout"`
	SnapshotRetain int           `koanf:"snapshot_retain"`

	// APIURLs maps node ids to their HTTP API base URL. A follower
	// forwards ledger writes to the leader's entry; without one it
	// answers not-leader.
	APIURLs map[string]string `koanf:"api_urls"`

	// ForwardCAFile adds a CA trusted when forwarding to an https leader.
	ForwardCAFile string `koanf:"forward_ca_file"`
}

// PeerConfig is a static Raft voter.
type PeerConfig struct {
	ID   string `koanf:"id"`
	Addr string `koanf:"addr"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}
