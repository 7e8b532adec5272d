package host

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/yndnr/licmesh/internal/core/domain"
	"github.com/yndnr/licmesh/internal/ledger"
	"github.com/yndnr/licmesh/internal/storage/journal"
	"github.com/yndnr/licmesh/internal/telemetry/logger"
	"github.com/yndnr/licmesh/internal/telemetry/metric"
)

// Local is a single-process host. A RWMutex provides the global order:
// writers are exclusive, readers share.
type Local struct {
	mu      sync.RWMutex
	engine  *ledger.Engine
	journal *journal.Journal // optional
	feed    *Feed
	metrics *metric.Registry
	logger  *slog.Logger

	// failed is set when a committed transition could not be journaled.
	// The in-memory state is then ahead of disk, so the host refuses
	// further writes until restarted.
	failed error
}

// LocalConfig configures a Local host.
type LocalConfig struct {
	Journal *journal.Journal
	Metrics *metric.Registry
	Logger  *slog.Logger
}

// NewLocal creates a Local host around engine.
func NewLocal(engine *ledger.Engine, cfg LocalConfig) *Local {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Local{
		engine:  engine,
		journal: cfg.Journal,
		feed:    NewFeed(),
		metrics: cfg.Metrics,
		logger:  log,
	}
}

// Recover replays the journal into the engine and republishes the events,
// so consumers catch up from the beginning. Call once before serving.
func (h *Local) Recover(ctx context.Context) error {
	if h.journal == nil {
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	var replayed []domain.Event
	err := h.journal.Replay(func(ev domain.Event) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := h.engine.ApplyEvent(ev); err != nil {
			return err
		}
		replayed = append(replayed, ev)
		return nil
	})
	if err != nil {
		return fmt.Errorf("recover ledger: %w", err)
	}
	if err := h.engine.CheckInvariants(); err != nil {
		return fmt.Errorf("recover ledger: %w", err)
	}

	h.feed.Publish(replayed...)
	stats := h.engine.Stats()
	h.logger.Info("ledger recovered from journal",
		"events", len(replayed),
		logger.Seq(stats.Seq),
		"live", stats.Live)
	return nil
}

// Execute implements Ledger.
func (h *Local) Execute(ctx context.Context, cmd ledger.Command) (ledger.Result, error) {
	if err := ctx.Err(); err != nil {
		return ledger.Result{}, err
	}

	h.mu.Lock()
	if h.failed != nil {
		h.mu.Unlock()
		return ledger.Result{}, domain.ErrServiceUnavailable.WithCause(h.failed)
	}

	res := h.engine.Execute(cmd)
	if len(res.Events) > 0 && h.journal != nil {
		if err := h.journal.Append(res.Events...); err != nil {
			// The transition is neither journaled nor published.
			h.engine.Rollback()
			h.failed = err
			h.mu.Unlock()
			h.logger.Error("journal append failed, ledger is now read-only",
				"op", cmd.Op,
				logger.Seq(res.Events[len(res.Events)-1].Seq),
				"error", err)
			return ledger.Result{}, domain.ErrStorageError.WithCause(err)
		}
	}
	h.feed.Publish(res.Events...)
	h.mu.Unlock()

	h.metrics.ObserveTransition(string(cmd.Op), domain.GetErrorCode(res.Err))
	for _, ev := range res.Events {
		h.metrics.ObserveEvent(string(ev.Type))
	}
	return res, res.Err
}

// ReadLicense implements Ledger.
func (h *Local) ReadLicense(owner domain.Address, app domain.AppHash) (*domain.License, uint64, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	l, ok := h.engine.LicenseOf(owner, app)
	return l, h.engine.Seq(), ok
}

// Get implements Ledger.
func (h *Local) Get(id uint64) (*domain.License, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.engine.Get(id)
}

// View implements Ledger.
func (h *Local) View(id uint64) (*ledger.View, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.engine.View(id)
}

// ViewOf implements Ledger.
func (h *Local) ViewOf(owner domain.Address, app domain.AppHash) (*ledger.View, uint64, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	v, ok := h.engine.ViewOf(owner, app)
	return v, h.engine.Seq(), ok
}

// RoyaltyInfo implements Ledger.
func (h *Local) RoyaltyInfo(id uint64, salePrice uint64) (domain.Address, uint64, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.engine.RoyaltyInfo(id, salePrice)
}

// Stats implements Ledger.
func (h *Local) Stats() ledger.Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.engine.Stats()
}

// Feed implements Ledger.
func (h *Local) Feed() *Feed {
	return h.feed
}

// Err returns the failure that made the host read-only, or nil.
func (h *Local) Err() error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.failed
}
