// Package journal provides the append-only ledger event journal.
//
// Every committed event is framed and appended before it is published, so
// a restarted node rebuilds its ledger by replaying the file from the top.
// A torn final frame (crash mid-write) is truncated on open; corruption
// anywhere else is an error.
package journal

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/yndnr/licmesh/internal/core/domain"
)

// File format constants.
const (
	MagicBytes      = "LICMJRN\x01"
	DefaultFileName = "ledger.journal"
	DefaultFilePerm = 0600
	DefaultDirPerm  = 0750
)

// Config configures a Journal.
type Config struct {
	// Path is the journal file. Its directory is created if missing.
	Path string

	// SyncEveryAppend fsyncs after each Append. When false the OS decides.
	SyncEveryAppend bool

	Logger *slog.Logger
}

// Journal is an append-only file of ledger events.
type Journal struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	file    *os.File
	size    int64
	lastSeq uint64
	closed  bool
}

// Open opens or creates the journal at cfg.Path.
func Open(cfg Config) (*Journal, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("journal: path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), DefaultDirPerm); err != nil {
		return nil, fmt.Errorf("journal: create dir: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	file, err := os.OpenFile(cfg.Path, os.O_CREATE|os.O_RDWR, DefaultFilePerm)
	if err != nil {
		return nil, fmt.Errorf("journal: open: %w", err)
	}

	j := &Journal{cfg: cfg, logger: logger, file: file}
	if err := j.init(); err != nil {
		file.Close()
		return nil, err
	}
	return j, nil
}

// init writes the header on a fresh file, or validates it and positions
// the cursor after the last intact frame.
func (j *Journal) init() error {
	stat, err := j.file.Stat()
	if err != nil {
		return fmt.Errorf("journal: stat: %w", err)
	}

	if stat.Size() == 0 {
		if _, err := j.file.Write([]byte(MagicBytes)); err != nil {
			return fmt.Errorf("journal: write header: %w", err)
		}
		j.size = int64(len(MagicBytes))
		return j.file.Sync()
	}

	end, lastSeq, err := j.scan(nil)
	if err != nil {
		return err
	}
	if end < stat.Size() {
		j.logger.Warn("truncating torn journal tail",
			"path", j.cfg.Path,
			"valid_bytes", end,
			"file_bytes", stat.Size())
		if err := j.file.Truncate(end); err != nil {
			return fmt.Errorf("journal: truncate: %w", err)
		}
	}
	if _, err := j.file.Seek(end, io.SeekStart); err != nil {
		return fmt.Errorf("journal: seek: %w", err)
	}
	j.size = end
	j.lastSeq = lastSeq
	return nil
}

// scan walks all frames, calling fn for each. It returns the offset just
// past the last intact frame.
func (j *Journal) scan(fn func(domain.Event) error) (int64, uint64, error) {
	r := bufio.NewReader(io.NewSectionReader(j.file, 0, 1<<62))

	magic := make([]byte, len(MagicBytes))
	if _, err := io.ReadFull(r, magic); err != nil || string(magic) != MagicBytes {
		return 0, 0, fmt.Errorf("journal: invalid magic in %s", j.cfg.Path)
	}

	offset := int64(len(MagicBytes))
	var lastSeq uint64
	for {
		ev, n, err := readFrame(r)
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return offset, lastSeq, nil
		}
		if err != nil {
			return 0, 0, fmt.Errorf("journal: frame at offset %d: %w", offset, err)
		}
		if fn != nil {
			if err := fn(*ev); err != nil {
				return 0, 0, err
			}
		}
		offset += n
		lastSeq = ev.Seq
	}
}

// Append writes events in order.
func (j *Journal) Append(events ...domain.Event) error {
	if len(events) == 0 {
		return nil
	}

	var buf []byte
	for i := range events {
		frame, err := encodeFrame(&events[i])
		if err != nil {
			return err
		}
		buf = append(buf, frame...)
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return fmt.Errorf("journal: closed")
	}
	n, err := j.file.Write(buf)
	j.size += int64(n)
	if err != nil {
		return fmt.Errorf("journal: write: %w", err)
	}
	if j.cfg.SyncEveryAppend {
		if err := j.file.Sync(); err != nil {
			return fmt.Errorf("journal: sync: %w", err)
		}
	}
	j.lastSeq = events[len(events)-1].Seq
	return nil
}

// Replay calls fn for every event in the journal, in order.
func (j *Journal) Replay(fn func(domain.Event) error) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return fmt.Errorf("journal: closed")
	}
	_, _, err := j.scan(fn)
	return err
}

// LastSeq returns the sequence number of the last appended event.
func (j *Journal) LastSeq() uint64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.lastSeq
}

// Size returns the file size in bytes.
func (j *Journal) Size() int64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.size
}

// Close syncs and closes the file.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return nil
	}
	j.closed = true
	if err := j.file.Sync(); err != nil {
		j.file.Close()
		return fmt.Errorf("journal: sync: %w", err)
	}
	return j.file.Close()
}
