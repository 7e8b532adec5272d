package service

import (
	"context"
	"errors"
	"sync"

	"github.com/yndnr/licmesh/internal/core/domain"
)

var errStoreDown = errors.New("store down")

// fakeStore is an in-test CredentialStore with failure injection.
type fakeStore struct {
	mu         sync.Mutex
	creds      map[string]*domain.Credential
	watermarks map[uint64]uint64

	failTrack  bool
	failTokens map[uint64]int // token ID -> remaining failing InvalidateToken calls (-1 = forever)
	calls      map[uint64]int // token ID -> InvalidateToken calls
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		creds:      make(map[string]*domain.Credential),
		watermarks: make(map[uint64]uint64),
		failTokens: make(map[uint64]int),
		calls:      make(map[uint64]int),
	}
}

func (s *fakeStore) Track(_ context.Context, cred *domain.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failTrack {
		return domain.ErrStorageError.WithCause(errStoreDown)
	}
	s.creds[cred.ID] = cred.Clone()
	return nil
}

func (s *fakeStore) Get(_ context.Context, id string) (*domain.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.creds[id]
	if !ok {
		return nil, domain.ErrCredentialNotFound
	}
	return c.Clone(), nil
}

func (s *fakeStore) InvalidateToken(_ context.Context, tokenID, seq uint64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[tokenID]++

	if n, ok := s.failTokens[tokenID]; ok && n != 0 {
		if n > 0 {
			s.failTokens[tokenID] = n - 1
		}
		return 0, errStoreDown
	}

	s.watermarks[tokenID] = max(s.watermarks[tokenID], seq)
	dropped := 0
	for id, c := range s.creds {
		if c.TokenID == tokenID && c.LedgerSeq < seq {
			delete(s.creds, id)
			dropped++
		}
	}
	return dropped, nil
}

func (s *fakeStore) Watermark(_ context.Context, tokenID uint64) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.watermarks[tokenID], nil
}

func (s *fakeStore) DeleteExpired(_ context.Context, nowMs int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, c := range s.creds {
		if c.IsExpired(nowMs) {
			delete(s.creds, id)
			n++
		}
	}
	return n, nil
}

func (s *fakeStore) Count(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.creds), nil
}

func (s *fakeStore) invalidateCalls(tokenID uint64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[tokenID]
}
