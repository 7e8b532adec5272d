package ledger

import (
	"errors"
	"math/rand"
	"reflect"
	"testing"
	"time"

	"github.com/yndnr/licmesh/internal/core/domain"
)

var (
	minter = domain.Address{0xaa}
	admin  = domain.Address{0xad}
	u1     = domain.Address{0x01}
	u2     = domain.Address{0x02}
	u3     = domain.Address{0x03}
)

func newTestEngine(t *testing.T, opts Options) *Engine {
	t.Helper()
	if opts.Now == nil {
		fixed := time.UnixMilli(1_700_000_000_000)
		opts.Now = func() time.Time { return fixed }
	}
	e, err := NewEngine(domain.NewStaticRoles([]domain.Address{minter}, []domain.Address{admin}), opts)
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	return e
}

func mustMint(t *testing.T, e *Engine, to domain.Address, app string) uint64 {
	t.Helper()
	id, err := e.Mint(minter, MintParams{Owner: to, ApplicationID: app})
	if err != nil {
		t.Fatalf("Mint(%s, %q) error = %v", to.Hex(), app, err)
	}
	return id
}

func TestEngine_MintAssignsDenseIDs(t *testing.T) {
	e := newTestEngine(t, Options{})

	for want := uint64(1); want <= 3; want++ {
		app := string(rune('a' + want))
		if got := mustMint(t, e, u1, app); got != want {
			t.Errorf("Mint() id = %d, want %d", got, want)
		}
	}

	events := e.TakeEvents()
	if len(events) != 3 {
		t.Fatalf("events = %d, want 3", len(events))
	}
	for i, ev := range events {
		if ev.Type != domain.EventMinted || ev.Seq != uint64(i+1) || ev.TokenID != uint64(i+1) {
			t.Errorf("event[%d] = %+v", i, ev)
		}
	}
}

func TestEngine_MintUnauthorized(t *testing.T) {
	e := newTestEngine(t, Options{})

	_, err := e.Mint(u1, MintParams{Owner: u1, ApplicationID: "demo"})
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("Mint() error = %v, want ErrUnauthorized", err)
	}
	if e.Stats().Live != 0 || e.Seq() != 0 {
		t.Error("unauthorized mint must not mutate state")
	}
}

// A second mint for an occupied (owner, app) pair is rejected untouched.
func TestEngine_DuplicateMintLeavesStateUnchanged(t *testing.T) {
	e := newTestEngine(t, Options{})
	if id := mustMint(t, e, u1, "demo"); id != 1 {
		t.Fatalf("first mint id = %d, want 1", id)
	}
	before := e.Snapshot()

	_, err := e.Mint(minter, MintParams{Owner: u1, ApplicationID: "demo"})
	if !errors.Is(err, domain.ErrDuplicateLicense) {
		t.Fatalf("second Mint() error = %v, want ErrDuplicateLicense", err)
	}
	if !reflect.DeepEqual(before, e.Snapshot()) {
		t.Error("state changed after rejected duplicate mint")
	}

	// Another owner or another application is fine.
	mustMint(t, e, u2, "demo")
	mustMint(t, e, u1, "other")
}

func TestEngine_Capacity(t *testing.T) {
	e := newTestEngine(t, Options{MaxSupply: 2})
	mustMint(t, e, u1, "a")
	id := mustMint(t, e, u1, "b")

	if err := e.Burn(u1, id); err != nil {
		t.Fatalf("Burn() error = %v", err)
	}
	// Burned ids are never reused, so they still count toward the cap.
	_, err := e.Mint(minter, MintParams{Owner: u1, ApplicationID: "c"})
	if !errors.Is(err, domain.ErrCapacityExceeded) {
		t.Errorf("Mint() error = %v, want ErrCapacityExceeded", err)
	}
}

// Transfer moves the slot from sender to receiver and keeps the id.
func TestEngine_TransferMovesSlot(t *testing.T) {
	e := newTestEngine(t, Options{})
	id := mustMint(t, e, u1, "demo")
	hash := domain.HashApplicationID("demo")

	if err := e.Transfer(u1, u2, id); err != nil {
		t.Fatalf("Transfer() error = %v", err)
	}

	if _, ok := e.Lookup(u1, hash); ok {
		t.Error("sender slot should be cleared")
	}
	if got, ok := e.Lookup(u2, hash); !ok || got != id {
		t.Errorf("receiver slot = %d,%v want %d,true", got, ok, id)
	}
	if owner, _ := e.OwnerOf(id); owner != u2 {
		t.Errorf("OwnerOf() = %s, want %s", owner.Hex(), u2.Hex())
	}
	if err := e.CheckInvariants(); err != nil {
		t.Error(err)
	}
}

func TestEngine_TransferFailures(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(e *Engine) uint64
		from    domain.Address
		to      domain.Address
		wantErr error
	}{
		{
			name:    "not owner",
			setup:   func(e *Engine) uint64 { return mustMint(t, e, u1, "demo") },
			from:    u2,
			to:      u3,
			wantErr: domain.ErrNotOwner,
		},
		{
			name: "soulbound",
			setup: func(e *Engine) uint64 {
				id, _ := e.Mint(minter, MintParams{Owner: u1, ApplicationID: "demo", Soulbound: true})
				return id
			},
			from:    u1,
			to:      u2,
			wantErr: domain.ErrSoulboundLocked,
		},
		{
			name:    "missing token",
			setup:   func(e *Engine) uint64 { return 42 },
			from:    u1,
			to:      u2,
			wantErr: domain.ErrLicenseNotFound,
		},
		{
			name:    "zero receiver",
			setup:   func(e *Engine) uint64 { return mustMint(t, e, u1, "demo") },
			from:    u1,
			to:      domain.ZeroAddress,
			wantErr: domain.ErrInvalidArgument,
		},
		{
			name: "receiver slot occupied",
			setup: func(e *Engine) uint64 {
				mustMint(t, e, u2, "demo")
				return mustMint(t, e, u1, "demo")
			},
			from:    u1,
			to:      u2,
			wantErr: domain.ErrSlotOccupied,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(t, Options{})
			id := tt.setup(e)
			e.TakeEvents()
			before := e.Snapshot()

			err := e.Transfer(tt.from, tt.to, id)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Transfer() error = %v, want %v", err, tt.wantErr)
			}
			if !reflect.DeepEqual(before, e.Snapshot()) {
				t.Error("failed transfer changed state")
			}
			if len(e.TakeEvents()) != 0 {
				t.Error("failed transfer emitted events")
			}
		})
	}
}

func TestEngine_TransferOverwritePolicy(t *testing.T) {
	e := newTestEngine(t, Options{TransferPolicy: TransferOverwrite})
	orphan := mustMint(t, e, u2, "demo")
	incoming := mustMint(t, e, u1, "demo")
	e.TakeEvents()

	if err := e.Transfer(u1, u2, incoming); err != nil {
		t.Fatalf("Transfer() error = %v", err)
	}

	events := e.TakeEvents()
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2", len(events))
	}
	if events[0].Type != domain.EventSlotOverwritten || events[0].TokenID != orphan || events[0].From != u2 {
		t.Errorf("first event = %+v, want slot_overwritten of %d", events[0], orphan)
	}
	if events[1].Type != domain.EventTransferred || events[1].Seq != events[0].Seq+1 {
		t.Errorf("second event = %+v", events[1])
	}

	hash := domain.HashApplicationID("demo")
	if got, _ := e.Lookup(u2, hash); got != incoming {
		t.Errorf("slot = %d, want %d", got, incoming)
	}
	if st := e.Stats(); st.Orphaned != 1 {
		t.Errorf("Stats().Orphaned = %d, want 1", st.Orphaned)
	}

	// Burning the orphan must not clear the slot it no longer owns.
	if err := e.Burn(u2, orphan); err != nil {
		t.Fatalf("Burn(orphan) error = %v", err)
	}
	if got, ok := e.Lookup(u2, hash); !ok || got != incoming {
		t.Errorf("slot after orphan burn = %d,%v want %d,true", got, ok, incoming)
	}
	if err := e.CheckInvariants(); err != nil {
		t.Error(err)
	}
}

func TestEngine_BurnAndRevoke(t *testing.T) {
	e := newTestEngine(t, Options{})
	a := mustMint(t, e, u1, "a")
	b := mustMint(t, e, u1, "b")

	if err := e.Burn(u2, a); !errors.Is(err, domain.ErrNotOwner) {
		t.Errorf("Burn(non-owner) error = %v, want ErrNotOwner", err)
	}
	if err := e.Burn(u1, a); err != nil {
		t.Fatalf("Burn() error = %v", err)
	}
	if _, err := e.Get(a); !errors.Is(err, domain.ErrLicenseNotFound) {
		t.Errorf("Get(burned) error = %v", err)
	}

	if err := e.Revoke(u1, b); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("Revoke(non-admin) error = %v, want ErrUnauthorized", err)
	}
	if err := e.Revoke(admin, b); err != nil {
		t.Fatalf("Revoke() error = %v", err)
	}
	if _, ok := e.Lookup(u1, domain.HashApplicationID("b")); ok {
		t.Error("revoked token still indexed")
	}
	if err := e.Revoke(admin, b); !errors.Is(err, domain.ErrLicenseNotFound) {
		t.Errorf("second Revoke() error = %v", err)
	}

	events := e.TakeEvents()
	last := events[len(events)-1]
	if last.Type != domain.EventRevoked || last.From != u1 {
		t.Errorf("last event = %+v, want revoked from u1", last)
	}

	// The pair is free again after burn.
	mustMint(t, e, u1, "a")
}

// Redeem flips the flag once and only for the owner of an ephemeral token.
func TestEngine_Redeem(t *testing.T) {
	e := newTestEngine(t, Options{})
	eph, _ := e.Mint(minter, MintParams{Owner: u1, ApplicationID: "demo", Ephemeral: true})
	plain := mustMint(t, e, u1, "plain")

	if eph != 1 {
		t.Fatalf("ephemeral id = %d, want 1", eph)
	}
	if err := e.Redeem(u2, eph); !errors.Is(err, domain.ErrNotOwner) {
		t.Errorf("Redeem(non-owner) error = %v", err)
	}
	if err := e.Redeem(u1, plain); !errors.Is(err, domain.ErrNotEphemeral) {
		t.Errorf("Redeem(plain) error = %v", err)
	}
	if err := e.Redeem(u1, eph); err != nil {
		t.Fatalf("Redeem() error = %v", err)
	}
	if l, _ := e.Get(eph); !l.Redeemed {
		t.Error("redeemed flag not set")
	}
	if err := e.Redeem(u1, eph); !errors.Is(err, domain.ErrAlreadyRedeemed) {
		t.Errorf("second Redeem() error = %v, want ErrAlreadyRedeemed", err)
	}

	// Redeem is not an ownership change.
	if got, _ := e.Lookup(u1, domain.HashApplicationID("demo")); got != eph {
		t.Error("redeem must leave the slot alone")
	}
}

func TestEngine_BatchMintPartialSuccess(t *testing.T) {
	e := newTestEngine(t, Options{})
	mustMint(t, e, u2, "demo")

	results, err := e.BatchMint(minter, []MintParams{
		{Owner: u1, ApplicationID: "demo"},
		{Owner: u2, ApplicationID: "demo"},
		{Owner: u1, ApplicationID: "demo"},
		{Owner: u3, ApplicationID: "demo"},
	})
	if err != nil {
		t.Fatalf("BatchMint() error = %v", err)
	}

	want := []struct {
		id  uint64
		err error
	}{
		{2, nil},
		{0, domain.ErrDuplicateLicense},
		{0, domain.ErrDuplicateLicense},
		{3, nil},
	}
	for i, w := range want {
		if results[i].TokenID != w.id || !errors.Is(results[i].Err, w.err) {
			t.Errorf("result[%d] = %d,%v want %d,%v", i, results[i].TokenID, results[i].Err, w.id, w.err)
		}
	}
	if err := e.CheckInvariants(); err != nil {
		t.Error(err)
	}
}

func TestEngine_BatchMintUnauthorized(t *testing.T) {
	e := newTestEngine(t, Options{})

	_, err := e.BatchMint(u1, []MintParams{{Owner: u1, ApplicationID: "demo"}})
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("BatchMint() error = %v, want ErrUnauthorized", err)
	}
	if e.Stats().Live != 0 {
		t.Error("unauthorized batch minted")
	}
}

func TestBatchColumns_Rows(t *testing.T) {
	tests := []struct {
		name    string
		cols    BatchColumns
		wantLen int
		wantErr error
	}{
		{
			name:    "required only",
			cols:    BatchColumns{Owners: []domain.Address{u1, u2}, ApplicationIDs: []string{"a", "b"}},
			wantLen: 2,
		},
		{
			name: "all columns",
			cols: BatchColumns{
				Owners:         []domain.Address{u1},
				ApplicationIDs: []string{"a"},
				MetadataRefs:   []string{"ipfs://x"},
				ExpiresAt:      []int64{5},
				Soulbound:      []bool{true},
				Ephemeral:      []bool{true},
			},
			wantLen: 1,
		},
		{
			name:    "short applications",
			cols:    BatchColumns{Owners: []domain.Address{u1, u2}, ApplicationIDs: []string{"a"}},
			wantErr: domain.ErrArityMismatch,
		},
		{
			name: "short optional",
			cols: BatchColumns{
				Owners:         []domain.Address{u1, u2},
				ApplicationIDs: []string{"a", "b"},
				ExpiresAt:      []int64{1},
			},
			wantErr: domain.ErrArityMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := tt.cols.Rows()
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Rows() error = %v, want %v", err, tt.wantErr)
			}
			if len(rows) != tt.wantLen {
				t.Errorf("Rows() len = %d, want %d", len(rows), tt.wantLen)
			}
		})
	}
}

func TestEngine_OpenMint(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		e := newTestEngine(t, Options{})
		_, err := e.OpenMint(u1, MintParams{ApplicationID: "demo"}, nil)
		if !errors.Is(err, domain.ErrOpenMintDisabled) {
			t.Errorf("OpenMint() error = %v, want ErrOpenMintDisabled", err)
		}
	})

	t.Run("no allowlist", func(t *testing.T) {
		e := newTestEngine(t, Options{OpenMint: OpenMintPolicy{Enabled: true}})
		id, err := e.OpenMint(u1, MintParams{Owner: u2, ApplicationID: "demo"}, nil)
		if err != nil {
			t.Fatalf("OpenMint() error = %v", err)
		}
		if owner, _ := e.OwnerOf(id); owner != u1 {
			t.Errorf("open mint must mint to the caller, got %s", owner.Hex())
		}
		if _, err := e.OpenMint(u1, MintParams{ApplicationID: "demo"}, nil); !errors.Is(err, domain.ErrDuplicateLicense) {
			t.Errorf("repeat OpenMint() error = %v, want ErrDuplicateLicense", err)
		}
	})

	t.Run("allowlist", func(t *testing.T) {
		list := NewAllowlist([]domain.Address{u1, u2, u3})
		e := newTestEngine(t, Options{OpenMint: OpenMintPolicy{Enabled: true, AllowlistRoot: list.Root()}})

		proof, ok := list.Proof(u2)
		if !ok {
			t.Fatal("Proof(u2) not found")
		}
		if _, err := e.OpenMint(u2, MintParams{ApplicationID: "demo"}, proof); err != nil {
			t.Errorf("OpenMint(member) error = %v", err)
		}

		outsider := domain.Address{0x99}
		if _, err := e.OpenMint(outsider, MintParams{ApplicationID: "demo"}, proof); !errors.Is(err, domain.ErrNotAllowlisted) {
			t.Errorf("OpenMint(outsider) error = %v, want ErrNotAllowlisted", err)
		}
	})
}

func TestEngine_Execute(t *testing.T) {
	e := newTestEngine(t, Options{})

	res := e.Execute(Command{Op: OpMint, Caller: minter, At: 123, Mint: &MintParams{Owner: u1, ApplicationID: "demo"}})
	if res.Err != nil || res.TokenID != 1 {
		t.Fatalf("Execute(mint) = %+v", res)
	}
	if len(res.Events) != 1 || res.Events[0].Timestamp != 123 {
		t.Errorf("Execute(mint) events = %+v", res.Events)
	}
	if l, _ := e.Get(1); l.MintedAt != 123 {
		t.Errorf("MintedAt = %d, want command time", l.MintedAt)
	}

	res = e.Execute(Command{Op: OpTransfer, Caller: u2, To: u3, TokenID: 1})
	if !errors.Is(res.Err, domain.ErrNotOwner) || len(res.Events) != 0 {
		t.Errorf("Execute(bad transfer) = %+v", res)
	}

	res = e.Execute(Command{Op: "bogus"})
	if !errors.Is(res.Err, domain.ErrInvalidArgument) {
		t.Errorf("Execute(bogus) error = %v", res.Err)
	}

	res = e.Execute(Command{Op: OpMint, Caller: minter})
	if !errors.Is(res.Err, domain.ErrMissingArgument) {
		t.Errorf("Execute(mint without params) error = %v", res.Err)
	}
}

func TestEngine_RoyaltyAndMetadata(t *testing.T) {
	receiver := domain.Address{0x77}
	e := newTestEngine(t, Options{
		Royalty: RoyaltyPolicy{Receiver: receiver, BasisPoints: 250},
		BaseURI: "https://meta.example/licenses/",
	})
	id, _ := e.Mint(minter, MintParams{Owner: u1, ApplicationID: "demo", MetadataRef: "demo.json"})
	bare := mustMint(t, e, u1, "bare")

	to, amount, err := e.RoyaltyInfo(id, 10_000)
	if err != nil || to != receiver || amount != 250 {
		t.Errorf("RoyaltyInfo() = %s,%d,%v", to.Hex(), amount, err)
	}
	if _, amount, _ := e.RoyaltyInfo(id, ^uint64(0)); amount == 0 {
		t.Error("RoyaltyInfo() should not overflow on large prices")
	}
	if _, _, err := e.RoyaltyInfo(99, 1); !errors.Is(err, domain.ErrLicenseNotFound) {
		t.Errorf("RoyaltyInfo(missing) error = %v", err)
	}

	if uri, _ := e.MetadataURI(id); uri != "https://meta.example/licenses/demo.json" {
		t.Errorf("MetadataURI() = %q", uri)
	}
	if uri, _ := e.MetadataURI(bare); uri != "https://meta.example/licenses/2" {
		t.Errorf("MetadataURI(bare) = %q", uri)
	}

	if _, err := NewEngine(domain.NewStaticRoles(nil, nil), Options{Royalty: RoyaltyPolicy{BasisPoints: 10001}}); err == nil {
		t.Error("NewEngine() should reject basis points above 10000")
	}
}

// Random operation sequences never leave a dangling, duplicate or missing
// index entry, and replaying the emitted events rebuilds identical state.
func TestEngine_RandomSequencesPreserveIndex(t *testing.T) {
	owners := []domain.Address{u1, u2, u3, {0x04}}
	apps := []string{"alpha", "beta", "gamma"}

	for _, policy := range []TransferPolicy{TransferReject, TransferOverwrite} {
		t.Run(string(policy), func(t *testing.T) {
			rng := rand.New(rand.NewSource(7))
			e := newTestEngine(t, Options{TransferPolicy: policy})
			var log []domain.Event

			for step := 0; step < 2000; step++ {
				owner := owners[rng.Intn(len(owners))]
				id := uint64(rng.Intn(int(e.registry.NextID())) + 1)

				switch rng.Intn(6) {
				case 0, 1:
					_, _ = e.Mint(minter, MintParams{Owner: owner, ApplicationID: apps[rng.Intn(len(apps))], Ephemeral: rng.Intn(2) == 0})
				case 2:
					if from, err := e.OwnerOf(id); err == nil {
						_ = e.Transfer(from, owner, id)
					}
				case 3:
					if from, err := e.OwnerOf(id); err == nil {
						_ = e.Burn(from, id)
					}
				case 4:
					_ = e.Revoke(admin, id)
				case 5:
					if from, err := e.OwnerOf(id); err == nil {
						_ = e.Redeem(from, id)
					}
				}

				if err := e.CheckInvariants(); err != nil {
					t.Fatalf("step %d: %v", step, err)
				}
				log = append(log, e.TakeEvents()...)
			}

			replayed := newTestEngine(t, Options{TransferPolicy: policy})
			for _, ev := range log {
				if err := replayed.ApplyEvent(ev); err != nil {
					t.Fatalf("ApplyEvent() error = %v", err)
				}
			}
			if !reflect.DeepEqual(e.Snapshot(), replayed.Snapshot()) {
				t.Error("replayed state differs from live state")
			}
		})
	}
}

func TestEngine_View(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	e := newTestEngine(t, Options{
		BaseURI: "https://meta.example/licenses/",
		Now:     func() time.Time { return now },
	})
	id, err := e.Mint(minter, MintParams{Owner: u1, ApplicationID: "demo", MetadataRef: "demo.json", ExpiresAt: now.UnixMilli() + 1000})
	if err != nil {
		t.Fatalf("Mint() error = %v", err)
	}

	tests := []struct {
		name    string
		at      time.Time
		expired bool
	}{
		{"before expiry", now, false},
		{"at expiry", now.Add(time.Second), true},
		{"after expiry", now.Add(time.Hour), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			now = tt.at
			v, err := e.View(id)
			if err != nil {
				t.Fatalf("View() error = %v", err)
			}
			if v.License.ID != id || v.MetadataURI != "https://meta.example/licenses/demo.json" || v.Expired != tt.expired {
				t.Errorf("View() = %+v, want expired=%v", v, tt.expired)
			}
			byslot, ok := e.ViewOf(u1, domain.HashApplicationID("demo"))
			if !ok || !reflect.DeepEqual(v, byslot) {
				t.Errorf("ViewOf() = %+v, %v; want %+v", byslot, ok, v)
			}
		})
	}

	if err := e.Burn(u1, id); err != nil {
		t.Fatalf("Burn() error = %v", err)
	}
	if _, err := e.View(id); !errors.Is(err, domain.ErrLicenseNotFound) {
		t.Errorf("View(burned) error = %v, want ErrLicenseNotFound", err)
	}
	if _, ok := e.ViewOf(u1, domain.HashApplicationID("demo")); ok {
		t.Error("ViewOf(burned) = ok")
	}
}

func TestEngine_SnapshotRestore(t *testing.T) {
	e := newTestEngine(t, Options{})
	mustMint(t, e, u1, "a")
	b := mustMint(t, e, u1, "b")
	_ = e.Burn(u1, b)
	snap := e.Snapshot()

	r := newTestEngine(t, Options{})
	if err := r.Restore(snap); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if !reflect.DeepEqual(snap, r.Snapshot()) {
		t.Error("restored snapshot differs")
	}
	if r.Seq() != e.Seq() {
		t.Errorf("Seq() = %d, want %d", r.Seq(), e.Seq())
	}
	// Next id continues after the burned one.
	if id := mustMint(t, r, u2, "a"); id != 3 {
		t.Errorf("next id after restore = %d, want 3", id)
	}
}

func TestEngine_ApplyEventRejectsGaps(t *testing.T) {
	e := newTestEngine(t, Options{})
	err := e.ApplyEvent(domain.Event{Seq: 2, Type: domain.EventMinted, TokenID: 1, To: u1})
	if err == nil {
		t.Error("ApplyEvent() should reject a sequence gap")
	}
}

func TestEngine_RollbackRevertsLastExecute(t *testing.T) {
	overwrite := Options{TransferPolicy: TransferOverwrite}
	tests := []struct {
		name string
		opts Options
		cmd  Command
	}{
		{"mint", Options{}, Command{Op: OpMint, Caller: minter, Mint: &MintParams{Owner: u3, ApplicationID: "demo"}}},
		{"batch", Options{}, Command{Op: OpBatchMint, Caller: minter, Batch: []MintParams{
			{Owner: u3, ApplicationID: "demo"}, {Owner: u3, ApplicationID: "other"}, {Owner: u1, ApplicationID: "demo"},
		}}},
		{"transfer", Options{}, Command{Op: OpTransfer, Caller: u1, To: u3, TokenID: 1}},
		{"transfer overwrite", overwrite, Command{Op: OpTransfer, Caller: u1, To: u2, TokenID: 1}},
		{"burn", Options{}, Command{Op: OpBurn, Caller: u1, TokenID: 1}},
		{"revoke", Options{}, Command{Op: OpRevoke, Caller: admin, TokenID: 2}},
		{"redeem", Options{}, Command{Op: OpRedeem, Caller: u1, TokenID: 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(t, tt.opts)
			mustMint(t, e, u1, "demo")
			mustMint(t, e, u2, "demo")
			if _, err := e.Mint(minter, MintParams{Owner: u1, ApplicationID: "trial", Ephemeral: true}); err != nil {
				t.Fatalf("Mint(ephemeral) error = %v", err)
			}
			e.TakeEvents()
			before := e.Snapshot()

			res := e.Execute(tt.cmd)
			if res.Err != nil || len(res.Events) == 0 {
				t.Fatalf("Execute() = %+v", res)
			}
			if !e.Rollback() {
				t.Fatal("Rollback() = false after Execute")
			}

			if after := e.Snapshot(); !reflect.DeepEqual(before, after) {
				t.Errorf("state after rollback = %+v, want %+v", after, before)
			}
			if err := e.CheckInvariants(); err != nil {
				t.Errorf("CheckInvariants() = %v", err)
			}
			if e.Rollback() {
				t.Error("second Rollback() = true")
			}

			// Ids and sequence numbers are handed out again.
			res = e.Execute(Command{Op: OpMint, Caller: minter, Mint: &MintParams{Owner: u3, ApplicationID: "next"}})
			if res.Err != nil || res.TokenID != 4 || res.Events[0].Seq != 4 {
				t.Errorf("Execute(mint) after rollback = %+v", res)
			}
		})
	}
}

func TestEngine_RollbackWithoutExecute(t *testing.T) {
	e := newTestEngine(t, Options{})
	if e.Rollback() {
		t.Error("Rollback() = true on a fresh engine")
	}

	e.Execute(Command{Op: OpMint, Caller: minter, Mint: &MintParams{Owner: u1, ApplicationID: "demo"}})
	mustMint(t, e, u2, "demo")
	if e.Rollback() {
		t.Error("Rollback() = true after a direct transition")
	}
}
