package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/yndnr/licmesh/internal/core/domain"
	"github.com/yndnr/licmesh/internal/host"
	"github.com/yndnr/licmesh/internal/telemetry/logger"
	"github.com/yndnr/licmesh/internal/telemetry/metric"
)

// Reconciler defaults.
const (
	DefaultBatchSize   = 256
	DefaultMaxAttempts = 3
	DefaultBackoff     = 100 * time.Millisecond
)

// EventSource is an ordered, cursor-based stream of committed events.
// host.Feed implements it.
type EventSource interface {
	// Read blocks until at least one event with Seq > cursor exists.
	Read(ctx context.Context, cursor uint64, max int) ([]domain.Event, error)
	Head() uint64
	Base() uint64
}

// compactor is implemented by sources that can drop consumed events.
type compactor interface {
	Compact(upTo uint64)
}

// ReconcilerConfig configures a Reconciler.
type ReconcilerConfig struct {
	// BatchSize is the maximum number of events read per poll.
	BatchSize int

	// MaxAttempts is how many times a failing invalidation is tried before
	// the event is parked.
	MaxAttempts int

	// Backoff is the linear retry step: attempt n waits n*Backoff.
	Backoff time.Duration

	// CompactSource drops consumed events from the source. Only enable
	// when the reconciler is the source's sole consumer.
	CompactSource bool

	Metrics *metric.Registry
}

// ParkedEvent is an event whose invalidation kept failing.
type ParkedEvent struct {
	Event    domain.Event `json:"event"`
	Attempts int          `json:"attempts"`
	Error    string       `json:"error"`
	ParkedAt int64        `json:"parked_at"`
}

// Reconciler consumes ledger events and invalidates credentials whose
// ownership fact changed.
//
// Events are keyed by token ID and sequence: an event whose Seq is not
// newer than the last one processed for its token is discarded, so
// redelivery and stale replays are harmless. Handle and Run must be driven
// from a single goroutine; Parked, Cursor and RetryParked are safe to call
// concurrently.
type Reconciler struct {
	source EventSource
	store  CredentialStore
	cfg    ReconcilerConfig

	lastSeq map[uint64]uint64 // token ID -> last processed seq

	mu     sync.Mutex
	cursor uint64
	parked map[uint64]ParkedEvent // keyed by event seq
}

// NewReconciler creates a reconciler reading from source.
func NewReconciler(source EventSource, store CredentialStore, cfg ReconcilerConfig) *Reconciler {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = DefaultBackoff
	}
	return &Reconciler{
		source:  source,
		store:   store,
		cfg:     cfg,
		lastSeq: make(map[uint64]uint64),
		parked:  make(map[uint64]ParkedEvent),
	}
}

// Run processes events until ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context) error {
	log := logger.L(ctx)
	log.Info("reconciler started", "cursor", r.Cursor())

	for {
		cursor := r.Cursor()
		events, err := r.source.Read(ctx, cursor, r.cfg.BatchSize)
		if err != nil {
			if ctx.Err() != nil {
				log.Info("reconciler stopped", "cursor", cursor)
				return ctx.Err()
			}
			if errors.Is(err, host.ErrCursorCompacted) {
				base := r.source.Base()
				log.Warn("reconciler cursor compacted, skipping ahead",
					"cursor", cursor, "base", base, "skipped", base-cursor)
				r.setCursor(base)
				continue
			}
			return err
		}

		for _, ev := range events {
			if err := r.Handle(ctx, ev); err != nil {
				return err
			}
			r.setCursor(ev.Seq)
		}

		head := r.source.Head()
		cursor = r.Cursor()
		if head > cursor {
			r.cfg.Metrics.SetReconcileLag(head - cursor)
		} else {
			r.cfg.Metrics.SetReconcileLag(0)
		}
		if c, ok := r.source.(compactor); ok && r.cfg.CompactSource {
			c.Compact(cursor)
		}
	}
}

// Handle processes one event. It returns an error only when ctx is done;
// invalidation failures are retried and then parked.
func (r *Reconciler) Handle(ctx context.Context, ev domain.Event) error {
	// 1. Discard anything not newer than what this token has seen
	if last, ok := r.lastSeq[ev.TokenID]; ok && ev.Seq <= last {
		r.cfg.Metrics.IncDiscarded()
		logger.L(ctx).Debug("stale event discarded",
			logger.Seq(ev.Seq), "type", string(ev.Type), logger.Token(ev.TokenID), "last_seq", last)
		return nil
	}

	// 2. Only ownership changes invalidate; the rest advance the watermark
	if ev.InvalidatesAccess() {
		if err := r.invalidate(ctx, ev); err != nil {
			return err
		}
	}

	r.lastSeq[ev.TokenID] = ev.Seq
	return nil
}

// invalidate retries with linear backoff and parks the event on exhaustion.
func (r *Reconciler) invalidate(ctx context.Context, ev domain.Event) error {
	log := logger.L(ctx)

	var lastErr error
	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		n, err := r.store.InvalidateToken(ctx, ev.TokenID, ev.Seq)
		if err == nil {
			r.cfg.Metrics.IncInvalidations()
			log.Info("credentials invalidated",
				logger.Seq(ev.Seq), "type", string(ev.Type), logger.Token(ev.TokenID), "dropped", n)
			return nil
		}
		lastErr = err
		log.Warn("invalidation failed",
			logger.Seq(ev.Seq), logger.Token(ev.TokenID), "attempt", attempt, "error", err)

		if attempt == r.cfg.MaxAttempts {
			break
		}
		select {
		case <-time.After(time.Duration(attempt) * r.cfg.Backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	r.park(ev, r.cfg.MaxAttempts, lastErr)
	log.Error("event parked",
		logger.Seq(ev.Seq), "type", string(ev.Type), logger.Token(ev.TokenID), "error", lastErr)
	return nil
}

func (r *Reconciler) park(ev domain.Event, attempts int, err error) {
	r.mu.Lock()
	r.parked[ev.Seq] = ParkedEvent{
		Event:    ev,
		Attempts: attempts,
		Error:    err.Error(),
		ParkedAt: time.Now().UnixMilli(),
	}
	r.mu.Unlock()
	r.cfg.Metrics.IncParked()
}

// Parked returns parked events ordered by sequence.
func (r *Reconciler) Parked() []ParkedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]ParkedEvent, 0, len(r.parked))
	for _, p := range r.parked {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Event.Seq < out[j].Event.Seq })
	return out
}

// RetryParked retries the invalidation of a parked event once. On success
// the event is removed from the parked set.
func (r *Reconciler) RetryParked(ctx context.Context, seq uint64) error {
	r.mu.Lock()
	p, ok := r.parked[seq]
	r.mu.Unlock()
	if !ok {
		return domain.ErrInvalidArgument.WithDetailsf("no parked event with seq %d", seq)
	}

	if _, err := r.store.InvalidateToken(ctx, p.Event.TokenID, p.Event.Seq); err != nil {
		r.mu.Lock()
		p.Attempts++
		p.Error = err.Error()
		r.parked[seq] = p
		r.mu.Unlock()
		return err
	}

	r.mu.Lock()
	delete(r.parked, seq)
	r.mu.Unlock()
	r.cfg.Metrics.IncInvalidations()
	logger.L(ctx).Info("parked event retried", logger.Seq(seq), logger.Token(p.Event.TokenID))
	return nil
}

// Cursor returns the sequence of the last event consumed.
func (r *Reconciler) Cursor() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cursor
}

func (r *Reconciler) setCursor(seq uint64) {
	r.mu.Lock()
	r.cursor = seq
	r.mu.Unlock()
}
