package ledger

import (
	"fmt"
	"sort"

	"github.com/yndnr/licmesh/internal/core/domain"
)

// Slot is one serialized ownership index entry.
type Slot struct {
	Owner   domain.Address `json:"owner"`
	AppHash domain.AppHash `json:"app_hash"`
	TokenID uint64         `json:"token_id"`
}

// State is a point-in-time image of the ledger. The index is stored
// explicitly rather than derived, since the overwrite policy can leave
// live tokens without a slot.
type State struct {
	Seq      uint64           `json:"seq"`
	NextID   uint64           `json:"next_id"`
	Licenses []domain.License `json:"licenses"`
	Slots    []Slot           `json:"slots"`
}

// Snapshot captures the current state.
func (e *Engine) Snapshot() *State {
	s := &State{
		Seq:      e.seq,
		NextID:   e.registry.NextID(),
		Licenses: make([]domain.License, 0, e.registry.Len()),
		Slots:    make([]Slot, 0, e.index.Len()),
	}
	for _, l := range e.registry.All() {
		s.Licenses = append(s.Licenses, *l)
	}
	e.index.Range(func(owner domain.Address, app domain.AppHash, id uint64) bool {
		s.Slots = append(s.Slots, Slot{Owner: owner, AppHash: app, TokenID: id})
		return true
	})
	sort.Slice(s.Slots, func(i, j int) bool { return s.Slots[i].TokenID < s.Slots[j].TokenID })
	return s
}

// Restore replaces the current state with s.
func (e *Engine) Restore(s *State) error {
	if s == nil {
		return domain.ErrMissingArgument.WithDetails("state")
	}

	registry := NewRegistry(e.opts.MaxSupply)
	for i := range s.Licenses {
		registry.put(&s.Licenses[i])
	}
	if s.NextID > registry.nextID {
		registry.nextID = s.NextID
	}

	index := NewIndex()
	for _, sl := range s.Slots {
		if sl.TokenID == 0 {
			return fmt.Errorf("restore: slot %s/%s holds the zero id", sl.Owner.Hex(), sl.AppHash.Hex())
		}
		index.Overwrite(sl.Owner, sl.AppHash, sl.TokenID)
	}

	e.registry = registry
	e.index = index
	e.seq = s.Seq
	e.pending = nil
	e.undo = nil
	return nil
}

// ApplyEvent re-applies a committed event. Events must arrive in sequence
// order with no gaps; journal recovery and follower catch-up use this to
// rebuild state without re-running capability or policy checks.
func (e *Engine) ApplyEvent(ev domain.Event) error {
	if ev.Seq != e.seq+1 {
		return fmt.Errorf("apply event: seq %d does not follow %d", ev.Seq, e.seq)
	}
	e.undo = nil

	switch ev.Type {
	case domain.EventMinted:
		l := &domain.License{
			ID:            ev.TokenID,
			Owner:         ev.To,
			ApplicationID: ev.ApplicationID,
			AppHash:       ev.AppHash,
			MetadataRef:   ev.MetadataRef,
			ExpiresAt:     ev.ExpiresAt,
			Soulbound:     ev.Soulbound,
			Ephemeral:     ev.Ephemeral,
			MintedAt:      ev.Timestamp,
		}
		e.registry.put(l)
		e.index.Overwrite(l.Owner, l.AppHash, l.ID)

	case domain.EventTransferred:
		if !e.registry.Exists(ev.TokenID) {
			return fmt.Errorf("apply event %d: transfer of missing token %d", ev.Seq, ev.TokenID)
		}
		e.index.ClearIf(ev.From, ev.AppHash, ev.TokenID)
		e.index.Overwrite(ev.To, ev.AppHash, ev.TokenID)
		e.registry.SetOwner(ev.TokenID, ev.To)

	case domain.EventSlotOverwritten:
		// The following Transferred event repoints the slot.

	case domain.EventBurned, domain.EventRevoked:
		e.index.ClearIf(ev.From, ev.AppHash, ev.TokenID)
		e.registry.Remove(ev.TokenID)

	case domain.EventRedeemed:
		e.registry.SetRedeemed(ev.TokenID)

	default:
		return fmt.Errorf("apply event %d: unknown type %q", ev.Seq, ev.Type)
	}

	e.seq = ev.Seq
	return nil
}
