package storage

import "time"

// KVConfig locates and tunes the Badger database behind the credential
// store. Zero tuning fields keep Badger's own defaults.
type KVConfig struct {
	Dir      string
	InMemory bool // tests only; Dir is ignored

	// GCInterval is the value log GC period. Zero means 10m.
	GCInterval time.Duration
	// GCDiscardRatio is handed to RunValueLogGC; a file is rewritten when
	// at least this share of it is stale.
	GCDiscardRatio float64

	BlockCacheBytes   int64
	ValueLogFileBytes int64
	Memtables         int

	// SyncWrites fsyncs every commit so a watermark raised by an
	// invalidation survives a crash.
	SyncWrites bool
}

// DefaultKVConfig returns the production settings for dir.
func DefaultKVConfig(dir string) KVConfig {
	return KVConfig{
		Dir:               dir,
		GCInterval:        10 * time.Minute,
		GCDiscardRatio:    0.5,
		BlockCacheBytes:   16 << 20,
		ValueLogFileBytes: 64 << 20,
		Memtables:         2,
		SyncWrites:        true,
	}
}

// Usage is the credential database's footprint and GC history.
type Usage struct {
	LSMBytes      int64
	ValueLogBytes int64
	LastGC        time.Time // zero until the first completed GC
	Reclaimed     uint64    // approximate, one value log file per rewrite
}

// TotalBytes is the combined on-disk size.
func (u Usage) TotalBytes() int64 { return u.LSMBytes + u.ValueLogBytes }
