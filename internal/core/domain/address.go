package domain

import (
	"encoding/hex"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"
)

// Address identifies a license holder. The ledger treats it as an opaque
// 20-byte principal; the zero address never owns anything.
type Address = common.Address

// ZeroAddress is the null principal.
var ZeroAddress Address

// ParseAddress parses a 0x-prefixed hex address.
func ParseAddress(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return ZeroAddress, ErrInvalidArgument.WithDetailsf("malformed address %q", s)
	}
	return common.HexToAddress(s), nil
}

// AppHash is the fixed-width digest of an application id. Index keys always
// use the digest, never the raw string.
type AppHash [32]byte

// HashApplicationID returns Keccak-256 of the UTF-8 application id.
func HashApplicationID(appID string) AppHash {
	var h AppHash
	copy(h[:], Keccak256([]byte(appID)))
	return h
}

// Keccak256 returns the legacy Keccak-256 digest of the concatenated inputs.
func Keccak256(data ...[]byte) []byte {
	d := sha3.NewLegacyKeccak256()
	for _, b := range data {
		d.Write(b)
	}
	return d.Sum(nil)
}

// Hex returns the 0x-prefixed hex form.
func (h AppHash) Hex() string {
	return "0x" + hex.EncodeToString(h[:])
}

// String implements fmt.Stringer.
func (h AppHash) String() string {
	return h.Hex()
}

// MarshalText implements encoding.TextMarshaler.
func (h AppHash) MarshalText() ([]byte, error) {
	return []byte(h.Hex()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *AppHash) UnmarshalText(text []byte) error {
	s := strings.TrimPrefix(string(text), "0x")
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != len(h) {
		return ErrInvalidArgument.WithDetailsf("malformed app hash %q", string(text))
	}
	copy(h[:], b)
	return nil
}

// Hash is a 32-byte digest used for allowlist roots and proof nodes.
type Hash = common.Hash

// BytesToHash converts b to a Hash, left-padding or truncating as needed.
func BytesToHash(b []byte) Hash {
	return common.BytesToHash(b)
}

// HexToHash parses a 0x-prefixed hex digest.
func HexToHash(s string) Hash {
	return common.HexToHash(s)
}
