package cluster

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/hashicorp/raft"

	"github.com/yndnr/licmesh/internal/core/domain"
	"github.com/yndnr/licmesh/internal/host"
	"github.com/yndnr/licmesh/internal/ledger"
	"github.com/yndnr/licmesh/internal/telemetry/metric"
)

// DefaultApplyTimeout bounds how long a proposal waits for commit.
const DefaultApplyTimeout = 5 * time.Second

// HostConfig configures a RaftHost.
type HostConfig struct {
	ApplyTimeout time.Duration

	// Now stamps commands before they are proposed. Defaults to time.Now.
	Now func() time.Time

	// APIs maps node ids to their HTTP API base URL so followers can
	// forward writes to the leader.
	APIs map[string]*url.URL

	Metrics *metric.Registry
	Logger  *slog.Logger
}

// RaftHost is a host.Ledger backed by a Raft group. Writes go through the
// leader's log; reads come from the local FSM.
type RaftHost struct {
	node    *RaftNode
	fsm     *FSM
	cfg     HostConfig
	logger  *slog.Logger
	metrics *metric.Registry
}

var _ host.Ledger = (*RaftHost)(nil)

// NewRaftHost creates a host over an already started node and its FSM.
func NewRaftHost(node *RaftNode, fsm *FSM, cfg HostConfig) *RaftHost {
	if cfg.ApplyTimeout <= 0 {
		cfg.ApplyTimeout = DefaultApplyTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &RaftHost{
		node:    node,
		fsm:     fsm,
		cfg:     cfg,
		logger:  logger,
		metrics: cfg.Metrics,
	}
}

// Execute implements host.Ledger.
func (h *RaftHost) Execute(ctx context.Context, cmd ledger.Command) (ledger.Result, error) {
	if err := ctx.Err(); err != nil {
		return ledger.Result{}, err
	}

	// 1. Only the leader proposes
	if !h.node.IsLeader() {
		return ledger.Result{}, domain.ErrNotLeader.WithDetailsf("leader is %q", h.node.LeaderID())
	}

	// 2. Fix the timestamp so every replica applies the same command
	if cmd.At == 0 {
		cmd.At = h.cfg.Now().UnixMilli()
	}
	data, err := EncodeCommand(cmd)
	if err != nil {
		return ledger.Result{}, domain.ErrInternalServer.WithCause(err)
	}

	// 3. Propose and wait for the FSM to apply it
	timeout := h.cfg.ApplyTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if d := time.Until(deadline); d < timeout {
			timeout = d
		}
	}
	resp, err := h.node.Apply(data, timeout)
	if err != nil {
		if errors.Is(err, raft.ErrNotLeader) || errors.Is(err, raft.ErrLeadershipLost) {
			return ledger.Result{}, domain.ErrNotLeader.WithCause(err)
		}
		h.logger.Error("raft apply failed", "op", cmd.Op, "error", err)
		return ledger.Result{}, domain.ErrServiceUnavailable.WithCause(err)
	}

	res, ok := resp.(ledger.Result)
	if !ok {
		return ledger.Result{}, domain.ErrInternalServer.WithCause(fmt.Errorf("unexpected fsm response %T", resp))
	}

	h.metrics.ObserveTransition(string(cmd.Op), domain.GetErrorCode(res.Err))
	for _, ev := range res.Events {
		h.metrics.ObserveEvent(string(ev.Type))
	}
	return res, res.Err
}

// LeaderAPI reports whether this node leads and, if not, the leader's API
// base URL when it is known.
func (h *RaftHost) LeaderAPI() (*url.URL, bool) {
	return leaderAPI(h.cfg.APIs, h.node.IsLeader(), h.node.LeaderID())
}

func leaderAPI(apis map[string]*url.URL, isLeader bool, leaderID string) (*url.URL, bool) {
	if isLeader {
		return nil, true
	}
	if leaderID == "" {
		return nil, false
	}
	return apis[leaderID], false
}

// ReadLicense implements host.Ledger.
func (h *RaftHost) ReadLicense(owner domain.Address, app domain.AppHash) (*domain.License, uint64, bool) {
	return h.fsm.ReadLicense(owner, app)
}

// Get implements host.Ledger.
func (h *RaftHost) Get(id uint64) (*domain.License, error) {
	return h.fsm.Get(id)
}

// View implements host.Ledger.
func (h *RaftHost) View(id uint64) (*ledger.View, error) {
	return h.fsm.View(id)
}

// ViewOf implements host.Ledger.
func (h *RaftHost) ViewOf(owner domain.Address, app domain.AppHash) (*ledger.View, uint64, bool) {
	return h.fsm.ViewOf(owner, app)
}

// RoyaltyInfo implements host.Ledger.
func (h *RaftHost) RoyaltyInfo(id uint64, salePrice uint64) (domain.Address, uint64, error) {
	return h.fsm.RoyaltyInfo(id, salePrice)
}

// Stats implements host.Ledger.
func (h *RaftHost) Stats() ledger.Stats {
	return h.fsm.Stats()
}

// Feed implements host.Ledger.
func (h *RaftHost) Feed() *host.Feed {
	return h.fsm.Feed()
}

// Node returns the underlying Raft node.
func (h *RaftHost) Node() *RaftNode {
	return h.node
}
