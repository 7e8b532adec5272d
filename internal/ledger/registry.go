package ledger

import (
	"sort"

	"github.com/yndnr/licmesh/internal/core/domain"
)

// MintParams describes one license to mint.
type MintParams struct {
	Owner         domain.Address `json:"owner"`
	ApplicationID string         `json:"application_id"`
	MetadataRef   string         `json:"metadata_ref,omitempty"`
	ExpiresAt     int64          `json:"expires_at,omitempty"`
	Soulbound     bool           `json:"soulbound,omitempty"`
	Ephemeral     bool           `json:"ephemeral,omitempty"`
}

// Registry maps token ids to license records.
//
// Ids are assigned densely from 1 and never reused, so the capacity limit
// counts every id ever allocated, burned or not.
type Registry struct {
	records   map[uint64]*domain.License
	nextID    uint64
	maxSupply uint64 // 0 = unbounded
}

// NewRegistry creates an empty registry. maxSupply of 0 means unbounded.
func NewRegistry(maxSupply uint64) *Registry {
	return &Registry{
		records:   make(map[uint64]*domain.License),
		nextID:    1,
		maxSupply: maxSupply,
	}
}

// CanMint reports whether n more ids can be allocated.
func (r *Registry) CanMint(n uint64) bool {
	if r.maxSupply == 0 {
		return true
	}
	return r.Minted()+n <= r.maxSupply
}

// NextID returns the id the next mint will receive.
func (r *Registry) NextID() uint64 {
	return r.nextID
}

// Minted returns how many ids have ever been allocated.
func (r *Registry) Minted() uint64 {
	return r.nextID - 1
}

// Mint allocates the next id and stores a record for p.
func (r *Registry) Mint(p MintParams, appHash domain.AppHash, nowMs int64) (*domain.License, error) {
	if !r.CanMint(1) {
		return nil, domain.ErrCapacityExceeded.WithDetailsf("max_supply=%d", r.maxSupply)
	}

	l := &domain.License{
		ID:            r.nextID,
		Owner:         p.Owner,
		ApplicationID: p.ApplicationID,
		AppHash:       appHash,
		MetadataRef:   p.MetadataRef,
		ExpiresAt:     p.ExpiresAt,
		Soulbound:     p.Soulbound,
		Ephemeral:     p.Ephemeral,
		MintedAt:      nowMs,
	}
	r.records[l.ID] = l
	r.nextID++
	return l.Clone(), nil
}

// put stores a record under its own id. Used by replay and restore, which
// must reproduce ids exactly.
func (r *Registry) put(l *domain.License) {
	r.records[l.ID] = l.Clone()
	if l.ID >= r.nextID {
		r.nextID = l.ID + 1
	}
}

// Get returns a copy of the record for id.
func (r *Registry) Get(id uint64) (*domain.License, bool) {
	l, ok := r.records[id]
	if !ok {
		return nil, false
	}
	return l.Clone(), true
}

// OwnerOf returns the current owner of id.
func (r *Registry) OwnerOf(id uint64) (domain.Address, error) {
	l, ok := r.records[id]
	if !ok {
		return domain.ZeroAddress, domain.ErrLicenseNotFound.WithDetailsf("token_id=%d", id)
	}
	return l.Owner, nil
}

// Exists reports whether id is live.
func (r *Registry) Exists(id uint64) bool {
	_, ok := r.records[id]
	return ok
}

// SetOwner changes the owner of a live record.
func (r *Registry) SetOwner(id uint64, owner domain.Address) {
	if l, ok := r.records[id]; ok {
		l.Owner = owner
	}
}

// SetRedeemed marks a live record redeemed.
func (r *Registry) SetRedeemed(id uint64) {
	if l, ok := r.records[id]; ok {
		l.Redeemed = true
	}
}

// Remove deletes the record for id. No-op if absent.
func (r *Registry) Remove(id uint64) {
	delete(r.records, id)
}

// Len returns the number of live records.
func (r *Registry) Len() int {
	return len(r.records)
}

// All returns copies of all live records ordered by id.
func (r *Registry) All() []*domain.License {
	out := make([]*domain.License, 0, len(r.records))
	for _, l := range r.records {
		out = append(out, l.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// raw returns the stored record without copying. Engine-internal.
func (r *Registry) raw(id uint64) (*domain.License, bool) {
	l, ok := r.records[id]
	return l, ok
}
