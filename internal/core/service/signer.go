package service

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/hkdf"

	"github.com/yndnr/licmesh/internal/core/domain"
)

const (
	// DefaultIssuer is the JWT "iss" claim of issued credentials.
	DefaultIssuer = "licmesh"

	// MinSecretLength is the minimum accepted signing secret length in bytes.
	MinSecretLength = 32

	signingKeyInfo = "licmesh credential signing v1"
)

// CredentialClaims is the JWT payload of an access credential.
// Millisecond timestamps are carried alongside the second-precision
// registered claims.
type CredentialClaims struct {
	Owner         string `json:"own"`
	ApplicationID string `json:"app"`
	TokenID       uint64 `json:"tid"`
	LedgerSeq     uint64 `json:"seq"`
	IssuedAtMs    int64  `json:"iat_ms"`
	ExpiresAtMs   int64  `json:"exp_ms"`
	jwt.RegisteredClaims
}

// Signer signs and parses credential JWTs with an HMAC key derived from a
// configured secret.
type Signer struct {
	key    []byte
	keyID  string
	issuer string
	parser *jwt.Parser
}

// NewSigner derives the signing key from secret with HKDF-SHA256.
func NewSigner(secret []byte, issuer string) (*Signer, error) {
	if len(secret) < MinSecretLength {
		return nil, domain.ErrInvalidArgument.WithDetailsf(
			"signing secret must be at least %d bytes", MinSecretLength)
	}
	if issuer == "" {
		issuer = DefaultIssuer
	}

	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(signingKeyInfo)), key); err != nil {
		return nil, fmt.Errorf("derive signing key: %w", err)
	}
	sum := sha256.Sum256(key)

	return &Signer{
		key:    key,
		keyID:  hex.EncodeToString(sum[:4]),
		issuer: issuer,
		// Expiry is checked by the caller against its own clock.
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithoutClaimsValidation(),
		),
	}, nil
}

// KeyID identifies the derived key without revealing it.
func (s *Signer) KeyID() string {
	return s.keyID
}

// Sign encodes cred as a compact HS256 JWT.
func (s *Signer) Sign(cred *domain.Credential) (string, error) {
	claims := CredentialClaims{
		Owner:         cred.Owner.Hex(),
		ApplicationID: cred.ApplicationID,
		TokenID:       cred.TokenID,
		LedgerSeq:     cred.LedgerSeq,
		IssuedAtMs:    cred.IssuedAt,
		ExpiresAtMs:   cred.ExpiresAt,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        cred.ID,
			Issuer:    s.issuer,
			Subject:   cred.Owner.Hex(),
			IssuedAt:  jwt.NewNumericDate(time.UnixMilli(cred.IssuedAt)),
			ExpiresAt: jwt.NewNumericDate(time.UnixMilli(cred.ExpiresAt)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token.Header["kid"] = s.keyID
	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", domain.ErrInternalServer.WithCause(err)
	}
	return signed, nil
}

// Parse verifies the signature and decodes the credential. Any failure is
// reported as ErrCredentialMalformed. Expiry is not checked.
func (s *Signer) Parse(tokenString string) (*domain.Credential, error) {
	var claims CredentialClaims
	_, err := s.parser.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		if kid, _ := token.Header["kid"].(string); kid != s.keyID {
			return nil, fmt.Errorf("unknown key id %q", kid)
		}
		return s.key, nil
	})
	if err != nil {
		return nil, domain.ErrCredentialMalformed.WithCause(err)
	}

	if claims.Issuer != s.issuer || claims.ID == "" {
		return nil, domain.ErrCredentialMalformed.WithDetails("unexpected issuer or missing id")
	}
	owner, err := domain.ParseAddress(claims.Owner)
	if err != nil {
		return nil, domain.ErrCredentialMalformed.WithCause(err)
	}

	return &domain.Credential{
		ID:            claims.ID,
		Owner:         owner,
		ApplicationID: claims.ApplicationID,
		TokenID:       claims.TokenID,
		LedgerSeq:     claims.LedgerSeq,
		IssuedAt:      claims.IssuedAtMs,
		ExpiresAt:     claims.ExpiresAtMs,
	}, nil
}
