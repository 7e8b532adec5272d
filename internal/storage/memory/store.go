package memory

import (
	"context"
	"sync"

	"github.com/yndnr/licmesh/internal/core/domain"
	"github.com/yndnr/licmesh/internal/core/service"
	"github.com/yndnr/licmesh/pkg/cmap"
)

var _ service.CredentialStore = (*Store)(nil)

// Store provides in-memory credential storage.
type Store struct {
	// Primary index: CredentialID -> Credential
	creds *cmap.Map[string, *domain.Credential]

	// Secondary index: TokenID -> set of CredentialIDs
	tokenIndex *TokenIndex

	// TokenID -> highest invalidation seq
	watermarks *cmap.Map[uint64, uint64]

	// Global lock for operations requiring atomicity across indexes
	mu sync.Mutex
}

// New creates a new in-memory credential store.
func New() *Store {
	return &Store{
		creds:      cmap.New[string, *domain.Credential](),
		tokenIndex: NewTokenIndex(),
		watermarks: cmap.New[uint64, uint64](),
	}
}

// Track stores a newly issued credential.
func (s *Store) Track(_ context.Context, cred *domain.Credential) error {
	if cred == nil || cred.ID == "" {
		return domain.ErrMissingArgument.WithDetails("credential id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.creds.Set(cred.ID, cred.Clone())
	s.tokenIndex.Add(cred.TokenID, cred.ID)
	return nil
}

// Get retrieves a credential by ID.
func (s *Store) Get(_ context.Context, id string) (*domain.Credential, error) {
	cred, ok := s.creds.Get(id)
	if !ok {
		return nil, domain.ErrCredentialNotFound
	}
	return cred.Clone(), nil
}

// InvalidateToken raises the token watermark and drops stale credentials.
func (s *Store) InvalidateToken(_ context.Context, tokenID, seq uint64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.watermarks.Update(tokenID, func(cur uint64, _ bool) uint64 {
		return max(cur, seq)
	})

	dropped := 0
	for _, id := range s.tokenIndex.Get(tokenID) {
		cred, ok := s.creds.Get(id)
		if !ok || cred.LedgerSeq >= seq {
			continue
		}
		s.creds.Delete(id)
		s.tokenIndex.Remove(tokenID, id)
		dropped++
	}
	return dropped, nil
}

// Watermark returns the highest invalidation seq for the token.
func (s *Store) Watermark(_ context.Context, tokenID uint64) (uint64, error) {
	wm, _ := s.watermarks.Get(tokenID)
	return wm, nil
}

// DeleteExpired removes credentials expired at nowMs.
func (s *Store) DeleteExpired(_ context.Context, nowMs int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var expired []*domain.Credential
	s.creds.Range(func(_ string, cred *domain.Credential) bool {
		if cred.IsExpired(nowMs) {
			expired = append(expired, cred)
		}
		return true
	})

	for _, cred := range expired {
		s.creds.Delete(cred.ID)
		s.tokenIndex.Remove(cred.TokenID, cred.ID)
	}
	return len(expired), nil
}

// Count returns the number of tracked credentials.
func (s *Store) Count(_ context.Context) (int, error) {
	return s.creds.Count(), nil
}

// CountByToken returns the number of tracked credentials for a token.
func (s *Store) CountByToken(tokenID uint64) int {
	return s.tokenIndex.Count(tokenID)
}
