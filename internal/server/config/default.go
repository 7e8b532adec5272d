package config

import "time"

// Default configuration values.
const (
	DefaultHTTPAddr        = "127.0.0.1:5480"
	DefaultReadTimeout     = 10 * time.Second
	DefaultWriteTimeout    = 10 * time.Second
	DefaultShutdownTimeout = 15 * time.Second

	DefaultTransferPolicy = "reject"

	DefaultCredentialIssuer = "licmesh"
	DefaultCredentialTTL    = 5 * time.Minute
	DefaultGCInterval       = time.Minute

	DefaultReconcilerBatchSize   = 256
	DefaultReconcilerMaxAttempts = 3
	DefaultReconcilerBackoff     = 100 * time.Millisecond

	DefaultDataDir = "/var/lib/licmesh-server/data"

	DefaultRaftAddr       = "127.0.0.1:5483"
	DefaultApplyTimeout   = 5 * time.Second
	DefaultSnapshotRetain = 3

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// Default returns the default server configuration.
func Default() *ServerConfig {
	return &ServerConfig{
		HTTP: HTTPSection{
			Addr:            DefaultHTTPAddr,
			ReadTimeout:     DefaultReadTimeout,
			WriteTimeout:    DefaultWriteTimeout,
			ShutdownTimeout: DefaultShutdownTimeout,
		},
		Ledger: LedgerSection{
			TransferPolicy: DefaultTransferPolicy,
		},
		Credential: CredentialSection{
			Issuer:     DefaultCredentialIssuer,
			TTL:        DefaultCredentialTTL,
			GCInterval: DefaultGCInterval,
		},
		Reconciler: ReconcilerSection{
			BatchSize:   DefaultReconcilerBatchSize,
			MaxAttempts: DefaultReconcilerMaxAttempts,
			Backoff:     DefaultReconcilerBackoff,
		},
		Storage: StorageSection{
			DataDir:           DefaultDataDir,
			JournalSync:       true,
			CredentialBackend: BackendMemory,
			Badger: BadgerSection{
				GCInterval:       "10m",
				GCThreshold:      0.5,
				CacheSize:        16 << 20,
				ValueLogFileSize: 64 << 20,
				NumMemtables:     2,
				SyncWrites:       true,
			},
		},
		Cluster: ClusterSection{
			RaftAddr:       DefaultRaftAddr,
			ApplyTimeout:   DefaultApplyTimeout,
			SnapshotRetain: DefaultSnapshotRetain,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
