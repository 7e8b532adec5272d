package service

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"strings"
	"sync"

	"github.com/yndnr/licmesh/internal/core/domain"
	"github.com/yndnr/licmesh/internal/telemetry/logger"
	"github.com/yndnr/licmesh/internal/telemetry/metric"
)

// AuthConfig configures AuthService.
type AuthConfig struct {
	Metrics *metric.Registry
}

// AuthService resolves API keys to the ledger principals they are bound to.
//
// Argon2 runs once per key; afterwards a SHA-256 digest of the accepted
// secret answers until the key set is replaced.
type AuthService struct {
	mu       sync.RWMutex
	keys     map[string]*domain.APIKey
	verified map[string][sha256.Size]byte
	metrics  *metric.Registry
}

// NewAuthService creates an AuthService holding keys.
func NewAuthService(keys []*domain.APIKey, cfg AuthConfig) (*AuthService, error) {
	s := &AuthService{metrics: cfg.Metrics}
	if err := s.SetKeys(keys); err != nil {
		return nil, err
	}
	return s, nil
}

// SetKeys replaces the key set and drops every cached verification. On
// error the previous set stays in force.
func (s *AuthService) SetKeys(keys []*domain.APIKey) error {
	next := make(map[string]*domain.APIKey, len(keys))
	for _, k := range keys {
		if err := k.Validate(); err != nil {
			return err
		}
		id := strings.ToLower(k.KeyID)
		if _, dup := next[id]; dup {
			return domain.ErrInvalidArgument.WithDetailsf("duplicate api key %s", id)
		}
		clone := *k
		clone.KeyID = id
		next[id] = &clone
	}

	s.mu.Lock()
	s.keys = next
	s.verified = make(map[string][sha256.Size]byte)
	s.mu.Unlock()
	return nil
}

// Len returns the number of configured keys.
func (s *AuthService) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.keys)
}

// Authenticate returns the address bound to keyID when secret matches it.
// Unknown, disabled and mismatched keys all return ErrAPIKeyInvalid.
func (s *AuthService) Authenticate(ctx context.Context, keyID, secret string) (domain.Address, error) {
	id := strings.ToLower(keyID)
	digest := sha256.Sum256([]byte(secret))

	s.mu.RLock()
	key, ok := s.keys[id]
	cached, hit := s.verified[id]
	s.mu.RUnlock()

	if !ok || key.Disabled {
		return s.reject(ctx, id, "unknown or disabled key")
	}
	if hit && subtle.ConstantTimeCompare(cached[:], digest[:]) == 1 {
		s.metrics.ObserveAuth("")
		return key.Address, nil
	}
	if !key.VerifySecret(secret) {
		return s.reject(ctx, id, "secret mismatch")
	}

	s.mu.Lock()
	// A reload may have replaced the key meanwhile.
	if s.keys[id] == key {
		s.verified[id] = digest
	}
	s.mu.Unlock()

	s.metrics.ObserveAuth("")
	return key.Address, nil
}

func (s *AuthService) reject(ctx context.Context, keyID, reason string) (domain.Address, error) {
	s.metrics.ObserveAuth(domain.ErrAPIKeyInvalid.Code)
	logger.L(ctx).Warn("api key rejected", "key_id", keyID, "reason", reason)
	return domain.ZeroAddress, domain.ErrAPIKeyInvalid
}
