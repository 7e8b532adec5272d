// Package ledger implements the license ownership ledger: the token
// registry, the ownership index and the transition engine that is the only
// writer of both.
package ledger

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/yndnr/licmesh/internal/core/domain"
)

// TransferPolicy decides what a transfer does when the receiver already
// holds a live license for the same application.
type TransferPolicy string

const (
	// TransferReject fails the transfer with ErrSlotOccupied.
	TransferReject TransferPolicy = "reject"

	// TransferOverwrite repoints the receiver's slot at the incoming token.
	// The receiver's previous token stays live but loses its index entry; a
	// SlotOverwritten event names it.
	TransferOverwrite TransferPolicy = "overwrite"
)

// OpenMintPolicy gates self-service minting.
type OpenMintPolicy struct {
	Enabled bool
	// AllowlistRoot, when non-zero, restricts open mint to addresses with a
	// membership proof against it.
	AllowlistRoot domain.Hash
}

// Options configures an Engine.
type Options struct {
	MaxSupply      uint64
	TransferPolicy TransferPolicy
	OpenMint       OpenMintPolicy
	Royalty        RoyaltyPolicy
	BaseURI        string

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// Stats summarizes ledger state.
type Stats struct {
	Live     int    `json:"live"`
	Minted   uint64 `json:"minted"`
	Slots    int    `json:"slots"`
	Orphaned int    `json:"orphaned"`
	Seq      uint64 `json:"seq"`
}

// Engine applies ledger transitions. Each transition runs every check
// before its first mutation, so a failed call leaves no trace.
//
// Engine is not safe for concurrent use. Hosts serialize all calls.
type Engine struct {
	registry *Registry
	index    *Index
	auth     domain.Authorizer
	opts     Options

	seq     uint64
	pending []domain.Event
	undo    *undoLog // prior values for the current Execute
}

// NewEngine creates an Engine.
func NewEngine(auth domain.Authorizer, opts Options) (*Engine, error) {
	if auth == nil {
		return nil, domain.ErrMissingArgument.WithDetails("authorizer")
	}
	if err := opts.Royalty.Validate(); err != nil {
		return nil, err
	}
	switch opts.TransferPolicy {
	case "":
		opts.TransferPolicy = TransferReject
	case TransferReject, TransferOverwrite:
	default:
		return nil, domain.ErrInvalidArgument.WithDetailsf("transfer policy %q", opts.TransferPolicy)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Engine{
		registry: NewRegistry(opts.MaxSupply),
		index:    NewIndex(),
		auth:     auth,
		opts:     opts,
	}, nil
}

func (e *Engine) nowMs() int64 {
	return e.opts.Now().UnixMilli()
}

// emit assigns the next sequence number and queues the event.
func (e *Engine) emit(ev domain.Event) {
	e.seq++
	ev.Seq = e.seq
	e.pending = append(e.pending, ev)
}

// TakeEvents returns and clears events emitted since the last call.
func (e *Engine) TakeEvents() []domain.Event {
	out := e.pending
	e.pending = nil
	return out
}

// Seq returns the sequence number of the last emitted event.
func (e *Engine) Seq() uint64 {
	return e.seq
}

// ============================================================================
// Transitions
// ============================================================================

// Mint mints a license to p.Owner. The caller must hold RoleMinter.
func (e *Engine) Mint(caller domain.Address, p MintParams) (uint64, error) {
	e.undo = nil
	return e.mint(caller, p, e.nowMs())
}

func (e *Engine) mint(caller domain.Address, p MintParams, at int64) (uint64, error) {
	if !e.auth.HasRole(caller, domain.RoleMinter) {
		return 0, domain.ErrUnauthorized.WithDetailsf("mint requires %s", domain.RoleMinter)
	}
	return e.mintChecked(p, at)
}

// mintChecked performs the duplicate/capacity checks and the mutation.
// Capability checks are the caller's job.
func (e *Engine) mintChecked(p MintParams, at int64) (uint64, error) {
	// 1. Validate input
	candidate := domain.License{
		Owner:         p.Owner,
		ApplicationID: p.ApplicationID,
		MetadataRef:   p.MetadataRef,
		ExpiresAt:     p.ExpiresAt,
	}
	if err := candidate.Validate(); err != nil {
		return 0, err
	}
	appHash := domain.HashApplicationID(p.ApplicationID)

	// 2. One live license per (owner, app)
	if id, ok := e.index.Lookup(p.Owner, appHash); ok {
		return 0, domain.ErrDuplicateLicense.WithDetailsf("owner=%s app=%s token_id=%d", p.Owner.Hex(), p.ApplicationID, id)
	}

	// 3. Capacity
	if !e.registry.CanMint(1) {
		return 0, domain.ErrCapacityExceeded.WithDetailsf("max_supply=%d", e.opts.MaxSupply)
	}

	// 4. Apply
	e.saveLicense(e.registry.NextID())
	e.saveSlot(p.Owner, appHash)
	l, err := e.registry.Mint(p, appHash, at)
	if err != nil {
		return 0, err
	}
	if err := e.index.Set(l.Owner, appHash, l.ID); err != nil {
		// Unreachable after the lookup above; undo to keep the call atomic.
		e.registry.Remove(l.ID)
		return 0, err
	}

	e.emit(domain.Event{
		Type:          domain.EventMinted,
		TokenID:       l.ID,
		Timestamp:     at,
		To:            l.Owner,
		ApplicationID: l.ApplicationID,
		AppHash:       appHash,
		MetadataRef:   l.MetadataRef,
		ExpiresAt:     l.ExpiresAt,
		Soulbound:     l.Soulbound,
		Ephemeral:     l.Ephemeral,
	})
	return l.ID, nil
}

// BatchResult is the outcome of one batch entry.
type BatchResult struct {
	TokenID uint64 `json:"token_id,omitempty"`
	Err     error  `json:"-"`
}

// OK reports whether the entry was minted.
func (r BatchResult) OK() bool {
	return r.Err == nil
}

// BatchMint mints every entry independently. The returned slice has one
// result per entry, in order; a failed entry does not roll back earlier
// ones and does not stop later ones. The call itself fails only when the
// caller lacks RoleMinter, in which case nothing is minted.
func (e *Engine) BatchMint(caller domain.Address, entries []MintParams) ([]BatchResult, error) {
	e.undo = nil
	return e.batchMint(caller, entries, e.nowMs())
}

func (e *Engine) batchMint(caller domain.Address, entries []MintParams, at int64) ([]BatchResult, error) {
	if !e.auth.HasRole(caller, domain.RoleMinter) {
		return nil, domain.ErrUnauthorized.WithDetailsf("batch mint requires %s", domain.RoleMinter)
	}

	results := make([]BatchResult, len(entries))
	for i, p := range entries {
		id, err := e.mintChecked(p, at)
		results[i] = BatchResult{TokenID: id, Err: err}
	}
	return results, nil
}

// OpenMint mints a license to the caller without a minter role, when open
// minting is enabled and, if an allowlist root is set, proof places the
// caller in it. p.Owner is ignored.
func (e *Engine) OpenMint(caller domain.Address, p MintParams, proof []domain.Hash) (uint64, error) {
	e.undo = nil
	return e.openMint(caller, p, proof, e.nowMs())
}

func (e *Engine) openMint(caller domain.Address, p MintParams, proof []domain.Hash, at int64) (uint64, error) {
	if !e.opts.OpenMint.Enabled {
		return 0, domain.ErrOpenMintDisabled
	}
	root := e.opts.OpenMint.AllowlistRoot
	if root != (domain.Hash{}) && !VerifyMembership(proof, root, caller) {
		return 0, domain.ErrNotAllowlisted.WithDetailsf("claimant=%s", caller.Hex())
	}

	p.Owner = caller
	return e.mintChecked(p, at)
}

// Transfer moves id from `from` to `to`. `from` is the caller and must own
// the token.
func (e *Engine) Transfer(from, to domain.Address, id uint64) error {
	e.undo = nil
	return e.transfer(from, to, id, e.nowMs())
}

func (e *Engine) transfer(from, to domain.Address, id uint64, at int64) error {
	// 1. Validate input
	if to == domain.ZeroAddress {
		return domain.ErrInvalidArgument.WithDetails("transfer to the zero address")
	}
	if from == to {
		return domain.ErrInvalidArgument.WithDetails("transfer to self")
	}

	// 2. Ownership and lock checks
	l, ok := e.registry.raw(id)
	if !ok {
		return domain.ErrLicenseNotFound.WithDetailsf("token_id=%d", id)
	}
	if l.Owner != from {
		return domain.ErrNotOwner.WithDetailsf("token_id=%d", id)
	}
	if l.Soulbound {
		return domain.ErrSoulboundLocked.WithDetailsf("token_id=%d", id)
	}

	// 3. Receiver slot
	displaced, occupied := e.index.Lookup(to, l.AppHash)
	if occupied && e.opts.TransferPolicy == TransferReject {
		return domain.ErrSlotOccupied.WithDetailsf("receiver=%s app=%s token_id=%d", to.Hex(), l.ApplicationID, displaced)
	}

	// 4. Apply
	e.saveLicense(id)
	e.saveSlot(from, l.AppHash)
	e.saveSlot(to, l.AppHash)
	if occupied {
		e.emit(domain.Event{
			Type:          domain.EventSlotOverwritten,
			TokenID:       displaced,
			Timestamp:     at,
			From:          to,
			ApplicationID: l.ApplicationID,
			AppHash:       l.AppHash,
		})
	}
	e.index.ClearIf(from, l.AppHash, id)
	e.index.Overwrite(to, l.AppHash, id)
	l.Owner = to

	e.emit(domain.Event{
		Type:          domain.EventTransferred,
		TokenID:       id,
		Timestamp:     at,
		From:          from,
		To:            to,
		ApplicationID: l.ApplicationID,
		AppHash:       l.AppHash,
	})
	return nil
}

// Burn destroys id. The caller must own it.
func (e *Engine) Burn(caller domain.Address, id uint64) error {
	e.undo = nil
	return e.burn(caller, id, e.nowMs())
}

func (e *Engine) burn(caller domain.Address, id uint64, at int64) error {
	l, ok := e.registry.raw(id)
	if !ok {
		return domain.ErrLicenseNotFound.WithDetailsf("token_id=%d", id)
	}
	if l.Owner != caller {
		return domain.ErrNotOwner.WithDetailsf("token_id=%d", id)
	}
	e.destroy(l, domain.EventBurned, at)
	return nil
}

// Revoke destroys id regardless of its owner. The caller must hold RoleAdmin.
func (e *Engine) Revoke(caller domain.Address, id uint64) error {
	e.undo = nil
	return e.revoke(caller, id, e.nowMs())
}

func (e *Engine) revoke(caller domain.Address, id uint64, at int64) error {
	if !e.auth.HasRole(caller, domain.RoleAdmin) {
		return domain.ErrUnauthorized.WithDetailsf("revoke requires %s", domain.RoleAdmin)
	}
	l, ok := e.registry.raw(id)
	if !ok {
		return domain.ErrLicenseNotFound.WithDetailsf("token_id=%d", id)
	}
	e.destroy(l, domain.EventRevoked, at)
	return nil
}

// destroy removes the record and the slot it still owns.
func (e *Engine) destroy(l *domain.License, typ domain.EventType, at int64) {
	e.saveLicense(l.ID)
	e.saveSlot(l.Owner, l.AppHash)
	e.index.ClearIf(l.Owner, l.AppHash, l.ID)
	e.registry.Remove(l.ID)

	e.emit(domain.Event{
		Type:          typ,
		TokenID:       l.ID,
		Timestamp:     at,
		From:          l.Owner,
		ApplicationID: l.ApplicationID,
		AppHash:       l.AppHash,
	})
}

// Redeem flips the redeemed flag of an ephemeral token, once.
func (e *Engine) Redeem(caller domain.Address, id uint64) error {
	e.undo = nil
	return e.redeem(caller, id, e.nowMs())
}

func (e *Engine) redeem(caller domain.Address, id uint64, at int64) error {
	l, ok := e.registry.raw(id)
	if !ok {
		return domain.ErrLicenseNotFound.WithDetailsf("token_id=%d", id)
	}
	if l.Owner != caller {
		return domain.ErrNotOwner.WithDetailsf("token_id=%d", id)
	}
	if !l.Ephemeral {
		return domain.ErrNotEphemeral.WithDetailsf("token_id=%d", id)
	}
	if l.Redeemed {
		return domain.ErrAlreadyRedeemed.WithDetailsf("token_id=%d", id)
	}

	e.saveLicense(id)
	e.registry.SetRedeemed(id)
	e.emit(domain.Event{
		Type:          domain.EventRedeemed,
		TokenID:       id,
		Timestamp:     at,
		From:          caller,
		ApplicationID: l.ApplicationID,
		AppHash:       l.AppHash,
	})
	return nil
}

// ============================================================================
// Reads
// ============================================================================

// Get returns a copy of the license for id.
func (e *Engine) Get(id uint64) (*domain.License, error) {
	l, ok := e.registry.Get(id)
	if !ok {
		return nil, domain.ErrLicenseNotFound.WithDetailsf("token_id=%d", id)
	}
	return l, nil
}

// OwnerOf returns the current owner of id.
func (e *Engine) OwnerOf(id uint64) (domain.Address, error) {
	return e.registry.OwnerOf(id)
}

// Lookup returns the token id in the (owner, app) slot.
func (e *Engine) Lookup(owner domain.Address, app domain.AppHash) (uint64, bool) {
	return e.index.Lookup(owner, app)
}

// LicenseOf resolves the slot and returns a copy of the record in it.
func (e *Engine) LicenseOf(owner domain.Address, app domain.AppHash) (*domain.License, bool) {
	id, ok := e.index.Lookup(owner, app)
	if !ok {
		return nil, false
	}
	return e.registry.Get(id)
}

// RoyaltyInfo returns the royalty receiver and amount for a sale of id.
func (e *Engine) RoyaltyInfo(id uint64, salePrice uint64) (domain.Address, uint64, error) {
	if !e.registry.Exists(id) {
		return domain.ZeroAddress, 0, domain.ErrLicenseNotFound.WithDetailsf("token_id=%d", id)
	}
	return e.opts.Royalty.Receiver, e.opts.Royalty.Amount(salePrice), nil
}

// MetadataURI returns the resolvable metadata location of id.
func (e *Engine) MetadataURI(id uint64) (string, error) {
	l, ok := e.registry.raw(id)
	if !ok {
		return "", domain.ErrLicenseNotFound.WithDetailsf("token_id=%d", id)
	}
	ref := l.MetadataRef
	if ref == "" {
		ref = strconv.FormatUint(id, 10)
	}
	if e.opts.BaseURI == "" || strings.Contains(ref, "://") {
		return ref, nil
	}
	return strings.TrimSuffix(e.opts.BaseURI, "/") + "/" + strings.TrimPrefix(ref, "/"), nil
}

// View is a license record together with the values derived from it at
// read time.
type View struct {
	License     *domain.License
	MetadataURI string
	Expired     bool
}

// View returns the license for id with its metadata URI and expiry as of
// the engine clock.
func (e *Engine) View(id uint64) (*View, error) {
	l, ok := e.registry.Get(id)
	if !ok {
		return nil, domain.ErrLicenseNotFound.WithDetailsf("token_id=%d", id)
	}
	return e.view(l)
}

// ViewOf resolves the (owner, app) slot and returns its View.
func (e *Engine) ViewOf(owner domain.Address, app domain.AppHash) (*View, bool) {
	l, ok := e.LicenseOf(owner, app)
	if !ok {
		return nil, false
	}
	v, err := e.view(l)
	return v, err == nil
}

func (e *Engine) view(l *domain.License) (*View, error) {
	uri, err := e.MetadataURI(l.ID)
	if err != nil {
		return nil, err
	}
	return &View{License: l, MetadataURI: uri, Expired: l.IsExpired(e.nowMs())}, nil
}

// Stats returns a summary of ledger state.
func (e *Engine) Stats() Stats {
	s := Stats{
		Live:   e.registry.Len(),
		Minted: e.registry.Minted(),
		Slots:  e.index.Len(),
		Seq:    e.seq,
	}
	s.Orphaned = s.Live - s.Slots
	return s
}

// CheckInvariants verifies that every index entry points at a live token
// owned by the slot's owner for the slot's application, and that each live
// token is indexed at most once. Orphans left by the overwrite policy are
// tolerated only under that policy.
func (e *Engine) CheckInvariants() error {
	indexed := make(map[uint64]bool, e.index.Len())
	var err error
	e.index.Range(func(owner domain.Address, app domain.AppHash, id uint64) bool {
		if id == 0 {
			err = fmt.Errorf("slot %s/%s holds the zero id", owner.Hex(), app.Hex())
			return false
		}
		l, ok := e.registry.raw(id)
		if !ok {
			err = fmt.Errorf("slot %s/%s references missing token %d", owner.Hex(), app.Hex(), id)
			return false
		}
		if l.Owner != owner || l.AppHash != app {
			err = fmt.Errorf("slot %s/%s references token %d owned by %s", owner.Hex(), app.Hex(), id, l.Owner.Hex())
			return false
		}
		if indexed[id] {
			err = fmt.Errorf("token %d indexed twice", id)
			return false
		}
		indexed[id] = true
		return true
	})
	if err != nil {
		return err
	}

	if e.opts.TransferPolicy != TransferOverwrite && len(indexed) != e.registry.Len() {
		return fmt.Errorf("%d live tokens but %d indexed", e.registry.Len(), len(indexed))
	}
	return nil
}
