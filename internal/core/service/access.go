package service

import (
	"context"
	"time"

	"github.com/yndnr/licmesh/internal/core/domain"
	"github.com/yndnr/licmesh/internal/telemetry/logger"
	"github.com/yndnr/licmesh/internal/telemetry/metric"
)

// DefaultCredentialTTL is the default lifetime of an access credential.
const DefaultCredentialTTL = 5 * time.Minute

// Verification results used as metric labels.
const (
	verifyValid     = "valid"
	verifyInvalid   = "invalid"
	verifyMalformed = "malformed"
)

// LicenseReader is the read side of the ledger host that issuance needs.
type LicenseReader interface {
	// ReadLicense resolves the (owner, app) slot in one atomic read and
	// returns the record and the ledger sequence it was read at.
	ReadLicense(owner domain.Address, app domain.AppHash) (*domain.License, uint64, bool)
}

// AccessConfig configures AccessService.
type AccessConfig struct {
	// TTL is the credential lifetime. Default: 5m.
	TTL time.Duration

	// Now is the time source shared with the ledger. Default: time.Now.
	Now func() time.Time

	Metrics *metric.Registry
}

// AccessService issues and verifies access credentials.
//
// It holds no mutable state of its own and is safe for concurrent use.
type AccessService struct {
	ledger  LicenseReader
	store   CredentialStore
	signer  *Signer
	ttl     time.Duration
	now     func() time.Time
	metrics *metric.Registry
}

// NewAccessService creates a new AccessService.
func NewAccessService(ledger LicenseReader, store CredentialStore, signer *Signer, cfg AccessConfig) *AccessService {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultCredentialTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &AccessService{
		ledger:  ledger,
		store:   store,
		signer:  signer,
		ttl:     cfg.TTL,
		now:     cfg.Now,
		metrics: cfg.Metrics,
	}
}

// IssueResult is the outcome of a successful issuance.
type IssueResult struct {
	Credential *domain.Credential
	// Token is the signed credential handed to the client.
	Token string
}

// IssueAccess issues a credential asserting that owner currently holds a
// live license for appID.
func (s *AccessService) IssueAccess(ctx context.Context, owner domain.Address, appID string) (*IssueResult, error) {
	res, err := s.issue(ctx, owner, appID)
	s.metrics.ObserveIssue(errorCode(err))
	return res, err
}

func (s *AccessService) issue(ctx context.Context, owner domain.Address, appID string) (*IssueResult, error) {
	// 1. Validate input
	if owner == domain.ZeroAddress {
		return nil, domain.ErrInvalidArgument.WithDetails("owner must not be the zero address")
	}
	if appID == "" {
		return nil, domain.ErrMissingArgument.WithDetails("application_id is required")
	}
	if len(appID) > domain.MaxApplicationIDLength {
		return nil, domain.ErrInvalidArgument.WithDetailsf(
			"application_id exceeds %d bytes", domain.MaxApplicationIDLength)
	}

	// 2. One atomic ledger read
	license, seq, ok := s.ledger.ReadLicense(owner, domain.HashApplicationID(appID))
	if !ok {
		return nil, domain.ErrNoLicense.WithDetailsf("%s holds no license for %q", owner.Hex(), appID)
	}

	// 3. Expiry is derived at read time
	now := s.now()
	nowMs := now.UnixMilli()
	if license.IsExpired(nowMs) {
		return nil, domain.ErrLicenseExpired.WithDetailsf("license %d expired at %d", license.ID, license.ExpiresAt)
	}

	// 4. Build and sign the credential
	id, err := domain.GenerateCredentialID()
	if err != nil {
		return nil, err
	}
	cred := &domain.Credential{
		ID:            id,
		Owner:         owner,
		ApplicationID: appID,
		TokenID:       license.ID,
		LedgerSeq:     seq,
		IssuedAt:      nowMs,
		ExpiresAt:     nowMs + s.ttl.Milliseconds(),
	}
	token, err := s.signer.Sign(cred)
	if err != nil {
		return nil, err
	}

	// 5. Track it so the reconciler can invalidate it
	if err := s.store.Track(ctx, cred); err != nil {
		return nil, err
	}

	logger.L(ctx).Info("access issued",
		logger.Owner(owner),
		logger.App(appID),
		logger.Token(license.ID),
		logger.Credential(cred.ID),
		"ledger_seq", seq)

	return &IssueResult{Credential: cred, Token: token}, nil
}

// VerifyCredential checks a credential without querying the ledger.
//
// A credential is valid while unexpired and not invalidated: its token's
// invalidation watermark must not exceed the sequence it was issued at.
// The issuing record need not be in the local store, so any replica that
// shares the signing secret can verify.
// Malformed or forged input returns ErrCredentialMalformed.
func (s *AccessService) VerifyCredential(ctx context.Context, token string) (*domain.Verification, error) {
	cred, err := s.signer.Parse(token)
	if err != nil {
		s.metrics.ObserveVerify(verifyMalformed)
		return nil, err
	}

	v := &domain.Verification{
		Owner:         cred.Owner,
		ApplicationID: cred.ApplicationID,
		TokenID:       cred.TokenID,
		CredentialID:  cred.ID,
		ExpiresAt:     cred.ExpiresAt,
	}

	reason, err := s.check(ctx, cred)
	if err != nil {
		return nil, err
	}
	v.Valid = reason == ""
	v.Reason = reason

	if v.Valid {
		s.metrics.ObserveVerify(verifyValid)
	} else {
		s.metrics.ObserveVerify(verifyInvalid)
	}
	return v, nil
}

// check returns the reason cred is no longer valid, or "".
func (s *AccessService) check(ctx context.Context, cred *domain.Credential) (string, error) {
	if cred.IsExpired(s.now().UnixMilli()) {
		return domain.ReasonExpired, nil
	}

	wm, err := s.store.Watermark(ctx, cred.TokenID)
	if err != nil {
		return "", err
	}
	if wm > cred.LedgerSeq {
		return domain.ReasonInvalidated, nil
	}
	return "", nil
}

// errorCode returns the domain code of err for metric labels.
func errorCode(err error) string {
	if err == nil {
		return ""
	}
	if code := domain.GetErrorCode(err); code != "" {
		return code
	}
	return domain.ErrInternalServer.Code
}
