package storage

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v3"

	"github.com/yndnr/licmesh/internal/core/domain"
	"github.com/yndnr/licmesh/internal/core/service"
)

var _ service.CredentialStore = (*BadgerCredentialStore)(nil)

var (
	credPrefix = []byte("cred/")
	tokPrefix  = []byte("tok/")
	wmPrefix   = []byte("wm/")
)

const (
	// conflictRetries bounds retries of a transaction that lost a write
	// conflict.
	conflictRetries = 5

	// deleteChunk is the number of credentials removed per transaction.
	deleteChunk = 512
)

// BadgerCredentialStore is a CredentialStore persisted in Badger.
type BadgerCredentialStore struct {
	engine *BadgerEngine
}

// NewBadgerCredentialStore creates a credential store on engine.
func NewBadgerCredentialStore(engine *BadgerEngine) *BadgerCredentialStore {
	return &BadgerCredentialStore{engine: engine}
}

func credKey(id string) []byte {
	return append(append([]byte{}, credPrefix...), id...)
}

func tokenPrefix(tokenID uint64) []byte {
	k := make([]byte, 0, len(tokPrefix)+9)
	k = append(k, tokPrefix...)
	k = binary.BigEndian.AppendUint64(k, tokenID)
	return append(k, '/')
}

func tokenKey(tokenID uint64, id string) []byte {
	return append(tokenPrefix(tokenID), id...)
}

func wmKey(tokenID uint64) []byte {
	k := make([]byte, 0, len(wmPrefix)+8)
	k = append(k, wmPrefix...)
	return binary.BigEndian.AppendUint64(k, tokenID)
}

// update runs fn in a transaction, retrying on write conflicts.
func (s *BadgerCredentialStore) update(fn func(txn *badger.Txn) error) error {
	var err error
	for i := 0; i < conflictRetries; i++ {
		err = s.engine.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return err
}

// Track stores a newly issued credential.
func (s *BadgerCredentialStore) Track(ctx context.Context, cred *domain.Credential) error {
	if cred == nil || cred.ID == "" {
		return domain.ErrMissingArgument.WithDetails("credential id is required")
	}

	data, err := json.Marshal(cred)
	if err != nil {
		return domain.ErrInternalServer.WithCause(err)
	}

	err = s.update(func(txn *badger.Txn) error {
		if err := txn.Set(credKey(cred.ID), data); err != nil {
			return err
		}
		return txn.Set(tokenKey(cred.TokenID, cred.ID), nil)
	})
	if err != nil {
		return domain.ErrStorageError.WithCause(fmt.Errorf("track credential: %w", err))
	}
	return nil
}

// Get retrieves a credential by ID.
func (s *BadgerCredentialStore) Get(ctx context.Context, id string) (*domain.Credential, error) {
	data, err := s.engine.Get(ctx, credKey(id))
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return nil, domain.ErrCredentialNotFound
		}
		return nil, domain.ErrStorageError.WithCause(err)
	}

	var cred domain.Credential
	if err := json.Unmarshal(data, &cred); err != nil {
		return nil, domain.ErrStorageError.WithCause(fmt.Errorf("decode credential %s: %w", id, err))
	}
	return &cred, nil
}

// InvalidateToken raises the token watermark and drops stale credentials
// in a single transaction.
func (s *BadgerCredentialStore) InvalidateToken(ctx context.Context, tokenID, seq uint64) (int, error) {
	var dropped int

	err := s.update(func(txn *badger.Txn) error {
		dropped = 0

		// 1. Raise the watermark
		current, err := readWatermark(txn, tokenID)
		if err != nil {
			return err
		}
		if seq > current {
			var buf [8]byte
			binary.BigEndian.PutUint64(buf[:], seq)
			if err := txn.Set(wmKey(tokenID), buf[:]); err != nil {
				return err
			}
		}

		// 2. Collect credentials issued before seq
		prefix := tokenPrefix(tokenID)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)

		var stale []string
		for it.Rewind(); it.Valid(); it.Next() {
			id := string(bytes.TrimPrefix(it.Item().Key(), prefix))
			cred, err := getCred(txn, id)
			if err != nil {
				it.Close()
				return err
			}
			if cred == nil || cred.LedgerSeq < seq {
				stale = append(stale, id)
			}
		}
		it.Close()

		// 3. Drop them
		for _, id := range stale {
			if err := txn.Delete(credKey(id)); err != nil {
				return err
			}
			if err := txn.Delete(tokenKey(tokenID, id)); err != nil {
				return err
			}
			dropped++
		}
		return nil
	})
	if err != nil {
		return 0, domain.ErrStorageError.WithCause(fmt.Errorf("invalidate token %d: %w", tokenID, err))
	}
	return dropped, nil
}

// Watermark returns the highest invalidation seq for the token.
func (s *BadgerCredentialStore) Watermark(ctx context.Context, tokenID uint64) (uint64, error) {
	var wm uint64
	err := s.engine.View(func(txn *badger.Txn) error {
		var err error
		wm, err = readWatermark(txn, tokenID)
		return err
	})
	if err != nil {
		return 0, domain.ErrStorageError.WithCause(err)
	}
	return wm, nil
}

// DeleteExpired removes credentials expired at nowMs.
func (s *BadgerCredentialStore) DeleteExpired(ctx context.Context, nowMs int64) (int, error) {
	var expired []*domain.Credential
	var decodeErr error

	err := s.engine.Scan(ctx, credPrefix, func(_, value []byte) bool {
		var cred domain.Credential
		if err := json.Unmarshal(value, &cred); err != nil {
			decodeErr = err
			return false
		}
		if cred.IsExpired(nowMs) {
			expired = append(expired, &cred)
		}
		return true
	})
	if err == nil {
		err = decodeErr
	}
	if err != nil {
		return 0, domain.ErrStorageError.WithCause(fmt.Errorf("scan credentials: %w", err))
	}

	deleted := 0
	for start := 0; start < len(expired); start += deleteChunk {
		end := min(start+deleteChunk, len(expired))
		chunk := expired[start:end]
		err := s.update(func(txn *badger.Txn) error {
			for _, cred := range chunk {
				if err := txn.Delete(credKey(cred.ID)); err != nil {
					return err
				}
				if err := txn.Delete(tokenKey(cred.TokenID, cred.ID)); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return deleted, domain.ErrStorageError.WithCause(err)
		}
		deleted += len(chunk)
	}
	return deleted, nil
}

// Count returns the number of tracked credentials.
func (s *BadgerCredentialStore) Count(ctx context.Context) (int, error) {
	count := 0
	err := s.engine.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = credPrefix
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, domain.ErrStorageError.WithCause(err)
	}
	return count, nil
}

func readWatermark(txn *badger.Txn, tokenID uint64) (uint64, error) {
	item, err := txn.Get(wmKey(tokenID))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var wm uint64
	err = item.Value(func(val []byte) error {
		if len(val) != 8 {
			return fmt.Errorf("watermark for token %d: bad length %d", tokenID, len(val))
		}
		wm = binary.BigEndian.Uint64(val)
		return nil
	})
	return wm, err
}

// getCred returns nil without error when the record is gone.
func getCred(txn *badger.Txn, id string) (*domain.Credential, error) {
	item, err := txn.Get(credKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var cred domain.Credential
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &cred)
	})
	if err != nil {
		return nil, err
	}
	return &cred, nil
}
