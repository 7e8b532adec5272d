package ledger

import (
	"github.com/yndnr/licmesh/internal/core/domain"
)

// undoLog holds the prior value of every record and slot touched by the
// command being executed, so a host can revert the command when it cannot
// make it durable.
type undoLog struct {
	seq      uint64
	nextID   uint64
	licenses map[uint64]*domain.License // nil value: id was absent
	slots    map[slotKey]slotPrior
}

type slotPrior struct {
	id uint64
	ok bool
}

func (e *Engine) beginUndo() {
	e.undo = &undoLog{
		seq:      e.seq,
		nextID:   e.registry.nextID,
		licenses: make(map[uint64]*domain.License),
		slots:    make(map[slotKey]slotPrior),
	}
}

// saveLicense records id's current record the first time it is touched.
func (e *Engine) saveLicense(id uint64) {
	if e.undo == nil {
		return
	}
	if _, seen := e.undo.licenses[id]; seen {
		return
	}
	if l, ok := e.registry.raw(id); ok {
		e.undo.licenses[id] = l.Clone()
	} else {
		e.undo.licenses[id] = nil
	}
}

// saveSlot records the slot's current occupant the first time it is touched.
func (e *Engine) saveSlot(owner domain.Address, app domain.AppHash) {
	if e.undo == nil {
		return
	}
	k := slotKey{owner, app}
	if _, seen := e.undo.slots[k]; seen {
		return
	}
	id, ok := e.index.slots[k]
	e.undo.slots[k] = slotPrior{id: id, ok: ok}
}

// Rollback reverts the most recent Execute, including its sequence numbers
// and id allocations. It reports false when there is nothing to revert:
// no Execute ran, or state was replaced since by ApplyEvent or Restore.
func (e *Engine) Rollback() bool {
	u := e.undo
	if u == nil {
		return false
	}
	for id, prior := range u.licenses {
		if prior == nil {
			delete(e.registry.records, id)
			continue
		}
		e.registry.records[id] = prior
	}
	for k, prior := range u.slots {
		if prior.ok {
			e.index.slots[k] = prior.id
		} else {
			delete(e.index.slots, k)
		}
	}
	e.registry.nextID = u.nextID
	e.seq = u.seq
	e.pending = nil
	e.undo = nil
	return true
}
