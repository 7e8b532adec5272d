package ledger

import (
	"github.com/yndnr/licmesh/internal/core/domain"
)

// slotKey addresses one ownership slot.
type slotKey struct {
	owner domain.Address
	app   domain.AppHash
}

// Index is the (owner, application) -> token id map. A missing slot means
// "no license"; id 0 is never stored.
type Index struct {
	slots map[slotKey]uint64
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{slots: make(map[slotKey]uint64)}
}

// Lookup returns the token id occupying the slot.
func (i *Index) Lookup(owner domain.Address, app domain.AppHash) (uint64, bool) {
	id, ok := i.slots[slotKey{owner, app}]
	return id, ok
}

// Set points the slot at id. It fails with ErrSlotOccupied when a different
// token already holds the slot.
func (i *Index) Set(owner domain.Address, app domain.AppHash, id uint64) error {
	k := slotKey{owner, app}
	if cur, ok := i.slots[k]; ok && cur != id {
		return domain.ErrSlotOccupied.WithDetailsf("owner=%s app=%s token_id=%d", owner.Hex(), app.Hex(), cur)
	}
	i.slots[k] = id
	return nil
}

// Overwrite points the slot at id unconditionally and returns the id it
// displaced (0 if the slot was empty or already held id).
func (i *Index) Overwrite(owner domain.Address, app domain.AppHash, id uint64) uint64 {
	k := slotKey{owner, app}
	prev := i.slots[k]
	i.slots[k] = id
	if prev == id {
		return 0
	}
	return prev
}

// Clear empties the slot. No-op if absent.
func (i *Index) Clear(owner domain.Address, app domain.AppHash) {
	delete(i.slots, slotKey{owner, app})
}

// ClearIf empties the slot only while it still points at id, so a token
// that lost its slot never clears another token's entry.
func (i *Index) ClearIf(owner domain.Address, app domain.AppHash, id uint64) bool {
	k := slotKey{owner, app}
	if cur, ok := i.slots[k]; ok && cur == id {
		delete(i.slots, k)
		return true
	}
	return false
}

// Len returns the number of occupied slots.
func (i *Index) Len() int {
	return len(i.slots)
}

// Range calls fn for every occupied slot until fn returns false.
func (i *Index) Range(fn func(owner domain.Address, app domain.AppHash, id uint64) bool) {
	for k, id := range i.slots {
		if !fn(k.owner, k.app, id) {
			return
		}
	}
}
