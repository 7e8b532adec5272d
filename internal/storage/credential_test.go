package storage

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/yndnr/licmesh/internal/core/domain"
)

func newCred(id string, tokenID, seq uint64, expiresAt int64) *domain.Credential {
	return &domain.Credential{
		ID:            id,
		Owner:         domain.Address{0x01},
		ApplicationID: "demo",
		TokenID:       tokenID,
		LedgerSeq:     seq,
		IssuedAt:      1000,
		ExpiresAt:     expiresAt,
	}
}

func TestBadgerCredentialStore_TrackGet(t *testing.T) {
	s := NewBadgerCredentialStore(newTestEngine(t))
	ctx := context.Background()

	want := newCred("lmcr-a", 7, 3, 9_000)
	if err := s.Track(ctx, want); err != nil {
		t.Fatalf("Track() error = %v", err)
	}

	got, err := s.Get(ctx, "lmcr-a")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if *got != *want {
		t.Errorf("Get() = %+v, want %+v", got, want)
	}

	if _, err := s.Get(ctx, "lmcr-none"); !errors.Is(err, domain.ErrCredentialNotFound) {
		t.Errorf("Get(missing) error = %v", err)
	}
}

func TestBadgerCredentialStore_InvalidateToken(t *testing.T) {
	s := NewBadgerCredentialStore(newTestEngine(t))
	ctx := context.Background()

	_ = s.Track(ctx, newCred("lmcr-1", 1, 2, 9_000))
	_ = s.Track(ctx, newCred("lmcr-2", 1, 5, 9_000))
	_ = s.Track(ctx, newCred("lmcr-3", 1, 8, 9_000))
	_ = s.Track(ctx, newCred("lmcr-4", 256, 1, 9_000)) // multi-byte token id

	n, err := s.InvalidateToken(ctx, 1, 6)
	if err != nil || n != 2 {
		t.Fatalf("InvalidateToken() = %d, %v, want 2", n, err)
	}
	if _, err := s.Get(ctx, "lmcr-3"); err != nil {
		t.Error("newer credential dropped")
	}
	if _, err := s.Get(ctx, "lmcr-4"); err != nil {
		t.Error("credential of another token dropped")
	}

	if n, _ := s.InvalidateToken(ctx, 1, 6); n != 0 {
		t.Errorf("repeat InvalidateToken() dropped %d, want 0", n)
	}
	_, _ = s.InvalidateToken(ctx, 1, 3)
	if wm, _ := s.Watermark(ctx, 1); wm != 6 {
		t.Errorf("Watermark(1) = %d, want 6", wm)
	}
	if c, _ := s.Count(ctx); c != 2 {
		t.Errorf("Count() = %d, want 2", c)
	}
}

func TestBadgerCredentialStore_DeleteExpired(t *testing.T) {
	s := NewBadgerCredentialStore(newTestEngine(t))
	ctx := context.Background()

	for i, exp := range []int64{100, 200, 300, 400} {
		_ = s.Track(ctx, newCred("lmcr-"+string(rune('a'+i)), 1, 1, exp))
	}

	n, err := s.DeleteExpired(ctx, 300)
	if err != nil || n != 3 {
		t.Fatalf("DeleteExpired() = %d, %v, want 3", n, err)
	}
	if c, _ := s.Count(ctx); c != 1 {
		t.Errorf("Count() = %d, want 1", c)
	}

	// The token index entries went with the records.
	if n, _ := s.InvalidateToken(ctx, 1, 10); n != 1 {
		t.Errorf("InvalidateToken() after GC dropped %d, want 1", n)
	}
}

func TestBadgerCredentialStore_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	cfg := DefaultKVConfig(dir)
	engine, err := NewBadgerEngine(cfg, slog.Default())
	if err != nil {
		t.Fatal(err)
	}
	s := NewBadgerCredentialStore(engine)
	_ = s.Track(ctx, newCred("lmcr-a", 1, 9, 9_000))
	_, _ = s.InvalidateToken(ctx, 2, 4)
	if err := engine.Close(); err != nil {
		t.Fatal(err)
	}

	engine, err = NewBadgerEngine(cfg, slog.Default())
	if err != nil {
		t.Fatal(err)
	}
	defer engine.Close()
	s = NewBadgerCredentialStore(engine)

	if _, err := s.Get(ctx, "lmcr-a"); err != nil {
		t.Errorf("Get() after reopen error = %v", err)
	}
	if wm, _ := s.Watermark(ctx, 2); wm != 4 {
		t.Errorf("Watermark(2) after reopen = %d, want 4", wm)
	}
}
