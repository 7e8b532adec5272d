package domain

import (
	"errors"
	"strings"
	"testing"
)

func TestNewAPIKey(t *testing.T) {
	addr := Address{0x01}
	key, secret, err := NewAPIKey(addr)
	if err != nil {
		t.Fatalf("NewAPIKey() error = %v", err)
	}
	if !IsValidAPIKeyID(key.KeyID) || key.Address != addr {
		t.Errorf("NewAPIKey() = %+v", key)
	}
	if !strings.HasPrefix(secret, APIKeySecretPrefix) || strings.Contains(key.SecretHash, secret) {
		t.Errorf("secret = %q, hash = %q", secret, key.SecretHash)
	}
	if err := key.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}

	if !key.VerifySecret(secret) {
		t.Error("VerifySecret(secret) = false")
	}
	for _, wrong := range []string{"", secret + "x", strings.TrimPrefix(secret, APIKeySecretPrefix)} {
		if key.VerifySecret(wrong) {
			t.Errorf("VerifySecret(%q) = true", wrong)
		}
	}

	if _, _, err := NewAPIKey(ZeroAddress); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("NewAPIKey(zero) error = %v, want ErrInvalidArgument", err)
	}
}

func TestHashAPIKeySecret_Salted(t *testing.T) {
	a, _ := HashAPIKeySecret("lmas_same")
	b, _ := HashAPIKeySecret("lmas_same")
	if a == b {
		t.Error("two hashes of one secret are identical")
	}
	key := &APIKey{SecretHash: b}
	if !key.VerifySecret("lmas_same") {
		t.Error("VerifySecret() = false for a fresh hash")
	}
}

func TestAPIKey_Validate(t *testing.T) {
	good, _, err := NewAPIKey(Address{0x01})
	if err != nil {
		t.Fatalf("NewAPIKey() error = %v", err)
	}

	tests := []struct {
		name   string
		mutate func(k *APIKey)
		want   string
	}{
		{"malformed id", func(k *APIKey) { k.KeyID = "lmak-short" }, "key id"},
		{"zero address", func(k *APIKey) { k.Address = ZeroAddress }, "address"},
		{"plaintext hash", func(k *APIKey) { k.SecretHash = "lmas_plain" }, "unsupported hash format"},
		{"truncated hash", func(k *APIKey) { k.SecretHash = k.SecretHash[:len(k.SecretHash)-4] }, "secret hash"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k := *good
			tt.mutate(&k)
			err := k.Validate()
			if !errors.Is(err, ErrInvalidArgument) || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() = %v, want %q", err, tt.want)
			}
			if k.VerifySecret("anything") {
				t.Error("VerifySecret() = true on an invalid key")
			}
		})
	}
}

func TestIsValidAPIKeyID(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"lmak-01arz3ndektsv4rrffq69g5fav", true},
		{"LMAK-01ARZ3NDEKTSV4RRFFQ69G5FAV", true},
		{"tmak-01arz3ndektsv4rrffq69g5fav", false},
		{"lmak-01arz3ndektsv4rrffq69g5fa", false},
		{"lmak-01arz3ndektsv4rrffq69g5fa!", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsValidAPIKeyID(tt.id); got != tt.want {
			t.Errorf("IsValidAPIKeyID(%q) = %v, want %v", tt.id, got, tt.want)
		}
	}
}

func TestMaskAPIKeySecret(t *testing.T) {
	tests := []struct {
		secret string
		want   string
	}{
		{"lmas_abcdefghijkl", "lmas_abc...jkl"},
		{"lmas_abc", "***REDACTED***"},
		{"plain-secret-value", "***REDACTED***"},
	}
	for _, tt := range tests {
		if got := MaskAPIKeySecret(tt.secret); got != tt.want {
			t.Errorf("MaskAPIKeySecret(%q) = %q, want %q", tt.secret, got, tt.want)
		}
	}
}
