package cluster

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb"
)

// Peer is a voting member listed at bootstrap.
type Peer struct {
	ID   string `koanf:"id" json:"id"`
	Addr string `koanf:"addr" json:"addr"`
}

// RaftConfig configures the Raft node.
type RaftConfig struct {
	// NodeID is the unique node identifier.
	NodeID string

	// BindAddr is the address to bind for Raft communication.
	BindAddr string

	// DataDir is the directory for Raft data.
	DataDir string

	// Bootstrap forms a new cluster from this node and Peers.
	Bootstrap bool

	// Peers are the other voters of a bootstrapped cluster.
	Peers []Peer

	// SnapshotRetain is the number of snapshots kept on disk.
	SnapshotRetain int

	// InMemory keeps log, stable and snapshot stores in memory and uses an
	// in-process transport. For tests.
	InMemory bool

	// Logger for logging.
	Logger *slog.Logger
}

// RaftNode wraps hashicorp/raft with the ledger FSM.
type RaftNode struct {
	raft      *raft.Raft
	transport raft.Transport
	fsm       *FSM
	config    *raft.Config
	logger    *slog.Logger

	// Stores
	logStore      raft.LogStore
	stableStore   raft.StableStore
	snapshotStore raft.SnapshotStore

	// Leader notifications
	leaderCh chan bool
}

// NewRaftNode creates a new Raft node.
func NewRaftNode(cfg RaftConfig, fsm *FSM) (*RaftNode, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.NodeID == "" {
		return nil, fmt.Errorf("raft: node_id is required")
	}
	if cfg.SnapshotRetain <= 0 {
		cfg.SnapshotRetain = 3
	}

	raftConfig := raft.DefaultConfig()
	raftConfig.LocalID = raft.ServerID(cfg.NodeID)
	raftConfig.Logger = newHCLogger(cfg.Logger, "raft")

	// Tuning for lower latency
	raftConfig.HeartbeatTimeout = 1000 * time.Millisecond
	raftConfig.ElectionTimeout = 1000 * time.Millisecond
	raftConfig.CommitTimeout = 50 * time.Millisecond
	raftConfig.LeaderLeaseTimeout = 500 * time.Millisecond

	var (
		transport     raft.Transport
		logStore      raft.LogStore
		stableStore   raft.StableStore
		snapshotStore raft.SnapshotStore
	)

	if cfg.InMemory {
		_, transport = raft.NewInmemTransport(raft.ServerAddress(cfg.BindAddr))
		store := raft.NewInmemStore()
		logStore, stableStore = store, store
		snapshotStore = raft.NewInmemSnapshotStore()
	} else {
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("raft: data_dir is required")
		}
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}

		addr, err := net.ResolveTCPAddr("tcp", cfg.BindAddr)
		if err != nil {
			return nil, fmt.Errorf("resolve bind addr: %w", err)
		}
		tcp, err := raft.NewTCPTransport(cfg.BindAddr, addr, 3, 10*time.Second, os.Stderr)
		if err != nil {
			return nil, fmt.Errorf("create transport: %w", err)
		}
		transport = tcp

		bolt, err := raftboltdb.NewBoltStore(filepath.Join(cfg.DataDir, "raft-log.db"))
		if err != nil {
			tcp.Close()
			return nil, fmt.Errorf("create log store: %w", err)
		}
		logStore = bolt

		stable, err := raftboltdb.NewBoltStore(filepath.Join(cfg.DataDir, "raft-stable.db"))
		if err != nil {
			bolt.Close()
			tcp.Close()
			return nil, fmt.Errorf("create stable store: %w", err)
		}
		stableStore = stable

		snapshotStore, err = raft.NewFileSnapshotStore(cfg.DataDir, cfg.SnapshotRetain, os.Stderr)
		if err != nil {
			stable.Close()
			bolt.Close()
			tcp.Close()
			return nil, fmt.Errorf("create snapshot store: %w", err)
		}
	}

	leaderCh := make(chan bool, 10)
	raftConfig.NotifyCh = leaderCh

	r, err := raft.NewRaft(raftConfig, fsm, logStore, stableStore, snapshotStore, transport)
	if err != nil {
		closeStores(logStore, stableStore)
		closeTransport(transport)
		return nil, fmt.Errorf("create raft: %w", err)
	}

	node := &RaftNode{
		raft:          r,
		transport:     transport,
		fsm:           fsm,
		config:        raftConfig,
		logger:        cfg.Logger,
		logStore:      logStore,
		stableStore:   stableStore,
		snapshotStore: snapshotStore,
		leaderCh:      leaderCh,
	}

	if cfg.Bootstrap {
		servers := []raft.Server{{
			ID:      raft.ServerID(cfg.NodeID),
			Address: transport.LocalAddr(),
		}}
		for _, p := range cfg.Peers {
			if p.ID == cfg.NodeID {
				continue
			}
			servers = append(servers, raft.Server{
				ID:      raft.ServerID(p.ID),
				Address: raft.ServerAddress(p.Addr),
			})
		}

		f := r.BootstrapCluster(raft.Configuration{Servers: servers})
		if err := f.Error(); err != nil && !errors.Is(err, raft.ErrCantBootstrap) {
			node.Close()
			return nil, fmt.Errorf("bootstrap cluster: %w", err)
		}

		cfg.Logger.Info("raft cluster bootstrapped",
			"node_id", cfg.NodeID,
			"addr", string(transport.LocalAddr()),
			"voters", len(servers))
	}

	cfg.Logger.Info("raft node created",
		"node_id", cfg.NodeID,
		"bind_addr", cfg.BindAddr,
		"bootstrap", cfg.Bootstrap,
		"in_memory", cfg.InMemory)

	return node, nil
}

// Apply proposes a log entry and waits for it to be applied. It returns
// the FSM's response.
func (n *RaftNode) Apply(data []byte, timeout time.Duration) (interface{}, error) {
	f := n.raft.Apply(data, timeout)
	if err := f.Error(); err != nil {
		return nil, fmt.Errorf("raft apply: %w", err)
	}
	return f.Response(), nil
}

// IsLeader returns true if this node is the Raft leader.
func (n *RaftNode) IsLeader() bool {
	return n.raft.State() == raft.Leader
}

// Leader returns the current leader address.
func (n *RaftNode) Leader() string {
	addr, _ := n.raft.LeaderWithID()
	return string(addr)
}

// NodeID returns this node's id.
func (n *RaftNode) NodeID() string {
	return string(n.config.LocalID)
}

// LeaderID returns the leader's node id, or "" when there is none.
func (n *RaftNode) LeaderID() string {
	_, id := n.raft.LeaderWithID()
	return string(id)
}

// WaitForLeader blocks until the cluster has a leader or ctx is done.
func (n *RaftNode) WaitForLeader(ctx context.Context) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		if n.LeaderID() != "" {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("wait for leader: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

// AddVoter adds a voting member to the Raft cluster.
func (n *RaftNode) AddVoter(nodeID, addr string, timeout time.Duration) error {
	f := n.raft.AddVoter(raft.ServerID(nodeID), raft.ServerAddress(addr), 0, timeout)
	if err := f.Error(); err != nil {
		return fmt.Errorf("add voter: %w", err)
	}
	return nil
}

// RemoveServer removes a server from the Raft cluster.
func (n *RaftNode) RemoveServer(nodeID string, timeout time.Duration) error {
	f := n.raft.RemoveServer(raft.ServerID(nodeID), 0, timeout)
	if err := f.Error(); err != nil {
		return fmt.Errorf("remove server: %w", err)
	}
	return nil
}

// Snapshot triggers a snapshot.
func (n *RaftNode) Snapshot() error {
	f := n.raft.Snapshot()
	if err := f.Error(); err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	return nil
}

// Members returns the current voter set.
func (n *RaftNode) Members() ([]Peer, error) {
	f := n.raft.GetConfiguration()
	if err := f.Error(); err != nil {
		return nil, fmt.Errorf("get configuration: %w", err)
	}
	servers := f.Configuration().Servers
	out := make([]Peer, 0, len(servers))
	for _, s := range servers {
		out = append(out, Peer{ID: string(s.ID), Addr: string(s.Address)})
	}
	return out, nil
}

// LeaderCh returns a channel that notifies on leader changes.
func (n *RaftNode) LeaderCh() <-chan bool {
	return n.leaderCh
}

// Stats returns Raft statistics.
func (n *RaftNode) Stats() map[string]string {
	return n.raft.Stats()
}

// Close gracefully shuts down the Raft node.
func (n *RaftNode) Close() error {
	n.logger.Info("shutting down raft node")

	if err := n.raft.Shutdown().Error(); err != nil {
		n.logger.Error("raft shutdown failed", "error", err)
	}

	closeStores(n.logStore, n.stableStore)
	if err := closeTransport(n.transport); err != nil {
		n.logger.Error("close transport failed", "error", err)
	}

	n.logger.Info("raft node shutdown complete")
	return nil
}

// closeStores closes bolt-backed stores; in-memory stores have nothing to
// release. Log and stable store may be the same value.
func closeStores(stores ...interface{}) {
	seen := make(map[*raftboltdb.BoltStore]bool)
	for _, s := range stores {
		if b, ok := s.(*raftboltdb.BoltStore); ok && !seen[b] {
			seen[b] = true
			b.Close()
		}
	}
}

func closeTransport(t raft.Transport) error {
	if c, ok := t.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
