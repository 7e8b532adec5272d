package host

import (
	"context"
	"sync"

	"github.com/yndnr/licmesh/internal/core/domain"
)

// ErrCursorCompacted is returned to a reader whose cursor points below the
// compacted prefix of the feed.
var ErrCursorCompacted = domain.NewDomainError("LM-SYS-4100", "feed cursor compacted")

// Feed is the ordered, append-only stream of committed ledger events.
// Consumers read from a cursor (the last sequence they processed);
// publishing never waits on consumers.
type Feed struct {
	mu     sync.Mutex
	events []domain.Event
	base   uint64        // seq of the event before events[0]
	notify chan struct{} // closed and replaced on every publish
}

// NewFeed creates an empty feed.
func NewFeed() *Feed {
	return &Feed{notify: make(chan struct{})}
}

// Publish appends events. Events must carry consecutive sequence numbers
// following the last published one.
func (f *Feed) Publish(events ...domain.Event) {
	if len(events) == 0 {
		return
	}

	f.mu.Lock()
	if len(f.events) == 0 && f.base == 0 {
		f.base = events[0].Seq - 1
	}
	f.events = append(f.events, events...)
	ch := f.notify
	f.notify = make(chan struct{})
	f.mu.Unlock()

	close(ch)
}

// Head returns the sequence of the last published event.
func (f *Feed) Head() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.base + uint64(len(f.events))
}

// Base returns the sequence below which events have been compacted away.
func (f *Feed) Base() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.base
}

// Read returns up to max events with Seq > cursor, blocking until at least
// one is available or ctx is done.
func (f *Feed) Read(ctx context.Context, cursor uint64, max int) ([]domain.Event, error) {
	for {
		f.mu.Lock()
		if cursor < f.base {
			f.mu.Unlock()
			return nil, ErrCursorCompacted.WithDetailsf("cursor=%d base=%d", cursor, f.base)
		}
		head := f.base + uint64(len(f.events))
		if cursor < head {
			start := int(cursor - f.base)
			end := len(f.events)
			if max > 0 && end-start > max {
				end = start + max
			}
			out := make([]domain.Event, end-start)
			copy(out, f.events[start:end])
			f.mu.Unlock()
			return out, nil
		}
		ch := f.notify
		f.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Compact drops events with Seq <= upTo. Readers behind upTo get
// ErrCursorCompacted.
func (f *Feed) Compact(upTo uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if upTo <= f.base {
		return
	}
	n := upTo - f.base
	if n > uint64(len(f.events)) {
		n = uint64(len(f.events))
	}
	rest := make([]domain.Event, len(f.events)-int(n))
	copy(rest, f.events[n:])
	f.events = rest
	f.base += n
}

// Len returns the number of retained events.
func (f *Feed) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

// ResetTo discards all retained events and positions the feed so the next
// published event is seq+1. Used after a snapshot restore.
func (f *Feed) ResetTo(seq uint64) {
	f.mu.Lock()
	f.events = nil
	f.base = seq
	ch := f.notify
	f.notify = make(chan struct{})
	f.mu.Unlock()

	close(ch)
}
