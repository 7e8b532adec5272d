package cluster

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/hashicorp/raft"

	"github.com/yndnr/licmesh/internal/core/domain"
	"github.com/yndnr/licmesh/internal/host"
	"github.com/yndnr/licmesh/internal/ledger"
	"github.com/yndnr/licmesh/internal/telemetry/logger"
)

// LogEntryType identifies the kind of a replicated log entry.
type LogEntryType uint8

const (
	// LogEntryCommand carries a ledger.Command.
	LogEntryCommand LogEntryType = iota + 1
)

// LogEntry is the envelope written to the Raft log.
type LogEntry struct {
	Type    LogEntryType    `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// EncodeCommand wraps cmd in a log entry. The command must carry an
// explicit At so every replica stamps the same time.
func EncodeCommand(cmd ledger.Command) ([]byte, error) {
	payload, err := json.Marshal(cmd)
	if err != nil {
		return nil, fmt.Errorf("marshal command: %w", err)
	}
	return json.Marshal(LogEntry{Type: LogEntryCommand, Payload: payload})
}

// FSM applies committed log entries to a ledger engine.
type FSM struct {
	mu     sync.RWMutex
	engine *ledger.Engine
	feed   *host.Feed
	logger *slog.Logger
}

// NewFSM creates an FSM around engine. Committed events are published on
// feed.
func NewFSM(engine *ledger.Engine, feed *host.Feed, log *slog.Logger) *FSM {
	if log == nil {
		log = slog.Default()
	}
	if feed == nil {
		feed = host.NewFeed()
	}
	return &FSM{
		engine: engine,
		feed:   feed,
		logger: log,
	}
}

// Apply implements raft.FSM. It returns the ledger.Result of the command.
//
// A domain error is a normal outcome and travels inside the Result. An
// entry that cannot be decoded means the log is corrupt, and the replica
// stops rather than diverge.
func (f *FSM) Apply(l *raft.Log) interface{} {
	var entry LogEntry
	if err := json.Unmarshal(l.Data, &entry); err != nil {
		f.logger.Error("failed to unmarshal log entry", "index", l.Index, "error", err)
		panic(fmt.Sprintf("raft log corrupted at index %d: %v", l.Index, err))
	}

	switch entry.Type {
	case LogEntryCommand:
		var cmd ledger.Command
		if err := json.Unmarshal(entry.Payload, &cmd); err != nil {
			f.logger.Error("failed to unmarshal command", "index", l.Index, "error", err)
			panic(fmt.Sprintf("raft command corrupted at index %d: %v", l.Index, err))
		}
		return f.applyCommand(cmd)
	default:
		f.logger.Warn("unknown log entry type", "index", l.Index, "type", entry.Type)
		return ledger.Result{Err: domain.ErrInvalidArgument.WithDetailsf("log entry type %d", entry.Type)}
	}
}

func (f *FSM) applyCommand(cmd ledger.Command) ledger.Result {
	f.mu.Lock()
	res := f.engine.Execute(cmd)
	f.feed.Publish(res.Events...)
	f.mu.Unlock()
	return res
}

// Snapshot implements raft.FSM.
func (f *FSM) Snapshot() (raft.FSMSnapshot, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return &fsmSnapshot{state: f.engine.Snapshot()}, nil
}

// Restore implements raft.FSM. Events before the snapshot are no longer
// available, so the feed restarts at the snapshot's sequence.
func (f *FSM) Restore(rc io.ReadCloser) error {
	defer rc.Close()

	gz, err := gzip.NewReader(rc)
	if err != nil {
		return fmt.Errorf("open snapshot: %w", err)
	}
	defer gz.Close()

	var state ledger.State
	if err := json.NewDecoder(gz).Decode(&state); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.engine.Restore(&state); err != nil {
		return fmt.Errorf("restore snapshot: %w", err)
	}
	if err := f.engine.CheckInvariants(); err != nil {
		return fmt.Errorf("restore snapshot: %w", err)
	}
	f.feed.ResetTo(state.Seq)

	f.logger.Info("ledger restored from snapshot",
		logger.Seq(state.Seq),
		"licenses", len(state.Licenses),
		"slots", len(state.Slots))
	return nil
}

// ReadLicense resolves the (owner, app) slot at the applied sequence.
func (f *FSM) ReadLicense(owner domain.Address, app domain.AppHash) (*domain.License, uint64, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	l, ok := f.engine.LicenseOf(owner, app)
	return l, f.engine.Seq(), ok
}

// Get returns a license by id.
func (f *FSM) Get(id uint64) (*domain.License, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.engine.Get(id)
}

// View returns the license for id with its derived fields.
func (f *FSM) View(id uint64) (*ledger.View, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.engine.View(id)
}

// ViewOf resolves a slot to its View and the sequence it was read at.
func (f *FSM) ViewOf(owner domain.Address, app domain.AppHash) (*ledger.View, uint64, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	v, ok := f.engine.ViewOf(owner, app)
	return v, f.engine.Seq(), ok
}

// RoyaltyInfo returns the royalty receiver and amount for id.
func (f *FSM) RoyaltyInfo(id uint64, salePrice uint64) (domain.Address, uint64, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.engine.RoyaltyInfo(id, salePrice)
}

// Stats returns the replica's ledger stats.
func (f *FSM) Stats() ledger.Stats {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.engine.Stats()
}

// Feed returns the committed event stream.
func (f *FSM) Feed() *host.Feed {
	return f.feed
}

// fsmSnapshot holds a detached copy of the ledger state.
type fsmSnapshot struct {
	state *ledger.State
}

// Persist implements raft.FSMSnapshot.
func (s *fsmSnapshot) Persist(sink raft.SnapshotSink) error {
	err := func() error {
		gz := gzip.NewWriter(sink)
		if err := json.NewEncoder(gz).Encode(s.state); err != nil {
			return fmt.Errorf("encode snapshot: %w", err)
		}
		if err := gz.Close(); err != nil {
			return fmt.Errorf("flush snapshot: %w", err)
		}
		return nil
	}()

	if err != nil {
		sink.Cancel()
		return err
	}
	return sink.Close()
}

// Release implements raft.FSMSnapshot.
func (s *fsmSnapshot) Release() {}
