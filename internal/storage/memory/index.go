package memory

import (
	"sync"

	"github.com/yndnr/licmesh/pkg/cmap"
)

// IDSet is a concurrent-safe set of credential IDs.
type IDSet struct {
	mu    sync.RWMutex
	items map[string]struct{}
}

// NewIDSet creates a new ID set.
func NewIDSet() *IDSet {
	return &IDSet{
		items: make(map[string]struct{}),
	}
}

// Add adds an ID to the set.
func (s *IDSet) Add(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[id] = struct{}{}
}

// Remove removes an ID from the set.
func (s *IDSet) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, id)
}

// Contains checks if an ID is in the set.
func (s *IDSet) Contains(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.items[id]
	return ok
}

// Len returns the number of items in the set.
func (s *IDSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Items returns a copy of all IDs.
func (s *IDSet) Items() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]string, 0, len(s.items))
	for id := range s.items {
		items = append(items, id)
	}
	return items
}

// TokenIndex maps a license token ID to the credentials issued for it.
type TokenIndex struct {
	index *cmap.Map[uint64, *IDSet]
}

// NewTokenIndex creates a new token index.
func NewTokenIndex() *TokenIndex {
	return &TokenIndex{
		index: cmap.New[uint64, *IDSet](),
	}
}

// Add adds a credential to the token's set.
func (i *TokenIndex) Add(tokenID uint64, credID string) {
	set, _ := i.index.GetOrSet(tokenID, NewIDSet())
	set.Add(credID)
}

// Remove removes a credential from the token's set.
func (i *TokenIndex) Remove(tokenID uint64, credID string) {
	set, ok := i.index.Get(tokenID)
	if !ok {
		return
	}

	set.Remove(credID)

	// Clean up empty sets
	if set.Len() == 0 {
		i.index.Delete(tokenID)
	}
}

// Get returns all credential IDs for a token.
func (i *TokenIndex) Get(tokenID uint64) []string {
	set, ok := i.index.Get(tokenID)
	if !ok {
		return nil
	}
	return set.Items()
}

// Count returns the number of credentials for a token.
func (i *TokenIndex) Count(tokenID uint64) int {
	set, ok := i.index.Get(tokenID)
	if !ok {
		return 0
	}
	return set.Len()
}
