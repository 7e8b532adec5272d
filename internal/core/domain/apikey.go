package domain

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/crypto/argon2"
)

// API key constants.
const (
	// APIKeyIDPrefix is the prefix for API key ids (public).
	APIKeyIDPrefix = "lmak-"

	// APIKeySecretPrefix is the prefix for API key secrets (sensitive).
	APIKeySecretPrefix = "lmas_"

	// APIKeySecretLength is the number of random secret bytes.
	APIKeySecretLength = 32
)

// Argon2id parameters for API key secret hashing.
const (
	Argon2Memory      uint32 = 16384 // KB
	Argon2Time        uint32 = 2
	Argon2Parallelism uint8  = 2
	Argon2KeyLen      uint32 = 32
	Argon2SaltLen            = 16
)

// argon2Prefix heads every encoded secret hash.
const argon2Prefix = "$argon2id$v=19$m=16384,t=2,p=2$"

// APIKey binds a secret to the ledger principal it authenticates. Keys are
// provisioned in server configuration; the server never sees plaintext
// secrets at rest.
type APIKey struct {
	// KeyID is the public identifier: lmak-{ulid_lowercase}.
	KeyID string `json:"key_id"`

	// Address is the caller every request made with this key acts as.
	Address Address `json:"address"`

	// SecretHash is the encoded Argon2id hash of the secret.
	SecretHash string `json:"-"`

	Disabled bool `json:"disabled,omitempty"`
}

// NewAPIKey creates a key for addr and returns it with the plaintext
// secret. The secret is not recoverable afterwards.
func NewAPIKey(addr Address) (*APIKey, string, error) {
	if addr == ZeroAddress {
		return nil, "", ErrInvalidArgument.WithDetails("api key address must not be zero")
	}
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return nil, "", ErrInternalServer.WithCause(err)
	}

	raw := make([]byte, APIKeySecretLength)
	if _, err := rand.Read(raw); err != nil {
		return nil, "", ErrInternalServer.WithCause(err)
	}
	secret := APIKeySecretPrefix + base64.RawURLEncoding.EncodeToString(raw)

	hash, err := HashAPIKeySecret(secret)
	if err != nil {
		return nil, "", err
	}
	return &APIKey{
		KeyID:      APIKeyIDPrefix + strings.ToLower(id.String()),
		Address:    addr,
		SecretHash: hash,
	}, secret, nil
}

// HashAPIKeySecret returns the encoded Argon2id hash of secret:
// $argon2id$v=19$m=16384,t=2,p=2$<salt>$<hash>.
func HashAPIKeySecret(secret string) (string, error) {
	salt := make([]byte, Argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", ErrInternalServer.WithCause(err)
	}
	hash := argon2.IDKey([]byte(secret), salt, Argon2Time, Argon2Memory, Argon2Parallelism, Argon2KeyLen)
	return argon2Prefix +
		base64.RawStdEncoding.EncodeToString(salt) + "$" +
		base64.RawStdEncoding.EncodeToString(hash), nil
}

// decodeSecretHash splits an encoded hash into salt and digest.
func decodeSecretHash(encoded string) (salt, hash []byte, err error) {
	rest, ok := strings.CutPrefix(encoded, argon2Prefix)
	if !ok {
		return nil, nil, fmt.Errorf("unsupported hash format")
	}
	saltB64, hashB64, ok := strings.Cut(rest, "$")
	if !ok {
		return nil, nil, fmt.Errorf("missing hash segment")
	}
	if salt, err = base64.RawStdEncoding.DecodeString(saltB64); err != nil {
		return nil, nil, fmt.Errorf("salt: %w", err)
	}
	if hash, err = base64.RawStdEncoding.DecodeString(hashB64); err != nil {
		return nil, nil, fmt.Errorf("hash: %w", err)
	}
	if len(hash) != int(Argon2KeyLen) {
		return nil, nil, fmt.Errorf("hash is %d bytes, want %d", len(hash), Argon2KeyLen)
	}
	return salt, hash, nil
}

// VerifySecret reports whether secret matches the key's hash.
func (k *APIKey) VerifySecret(secret string) bool {
	salt, want, err := decodeSecretHash(k.SecretHash)
	if err != nil {
		return false
	}
	got := argon2.IDKey([]byte(secret), salt, Argon2Time, Argon2Memory, Argon2Parallelism, Argon2KeyLen)
	return subtle.ConstantTimeCompare(got, want) == 1
}

// Validate checks the key's fields.
func (k *APIKey) Validate() error {
	var violations []string
	if !IsValidAPIKeyID(k.KeyID) {
		violations = append(violations, fmt.Sprintf("key id %q is malformed", k.KeyID))
	}
	if k.Address == ZeroAddress {
		violations = append(violations, "address is required")
	}
	if _, _, err := decodeSecretHash(k.SecretHash); err != nil {
		violations = append(violations, "secret hash: "+err.Error())
	}
	if len(violations) > 0 {
		return ErrInvalidArgument.WithDetails(strings.Join(violations, "; "))
	}
	return nil
}

// IsValidAPIKeyID checks the lmak-{ulid} format, case-insensitively.
func IsValidAPIKeyID(id string) bool {
	id = strings.ToLower(id)
	if !strings.HasPrefix(id, APIKeyIDPrefix) || len(id) != len(APIKeyIDPrefix)+26 {
		return false
	}
	_, err := ulid.Parse(strings.ToUpper(id[len(APIKeyIDPrefix):]))
	return err == nil
}

// MaskAPIKeySecret masks a secret for logging.
func MaskAPIKeySecret(secret string) string {
	body, ok := strings.CutPrefix(secret, APIKeySecretPrefix)
	if !ok || len(body) <= 6 {
		return "***REDACTED***"
	}
	return APIKeySecretPrefix + body[:3] + "..." + body[len(body)-3:]
}
