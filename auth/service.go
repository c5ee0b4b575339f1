package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/invisicipher/secure-image-backend/apperr"
	"github.com/invisicipher/secure-image-backend/interfaces"
)

// Service composes the challenge issuer, signature verifier, commitment
// codec, identity store and credential ledger into the register and
// authenticate flows.
type Service struct {
	profiles interfaces.IdentityStore
	ledger   interfaces.CredentialLedger
	issuer   *Issuer
	tokens   interfaces.TokenCodec
	log      *slog.Logger
	now      func() time.Time
}

// NewService creates the authentication service with its collaborators.
func NewService(profiles interfaces.IdentityStore, ledger interfaces.CredentialLedger, issuer *Issuer, tokens interfaces.TokenCodec, log *slog.Logger) *Service {
	return &Service{
		profiles: profiles,
		ledger:   ledger,
		issuer:   issuer,
		tokens:   tokens,
		log:      log,
		now:      time.Now,
	}
}

// IssueChallenge validates the address and issues a fresh sign-in challenge,
// replacing any prior unconsumed one for the same address.
func (s *Service) IssueChallenge(address string) (string, error) {
	addr, err := interfaces.NewWalletAddressFromHex(address)
	if err != nil {
		return "", apperr.Validation("invalid Ethereum address")
	}

	message, err := s.issuer.Issue(addr)
	if err != nil {
		return "", apperr.Dependency("failed to issue challenge", err)
	}

	s.log.Debug("Issued authentication challenge", slog.String("address", addr.String()))
	return message, nil
}

// CheckUser reports whether the address is registered and, if so, its role.
func (s *Service) CheckUser(ctx context.Context, address string) (bool, interfaces.Role, error) {
	addr, err := interfaces.NewWalletAddressFromHex(address)
	if err != nil {
		return false, "", apperr.Validation("invalid Ethereum address")
	}

	profile, err := s.profiles.Get(ctx, addr)
	if errors.Is(err, interfaces.ErrProfileNotFound) {
		return false, "", nil
	}
	if err != nil {
		return false, "", apperr.Dependency("failed to look up profile", err)
	}
	return true, profile.Role, nil
}

// Register validates the request, persists the profile, and best-effort
// anchors the credential commitment on the ledger.
//
// The identity-store write is the durable outcome of registration: if the
// ledger anchor fails afterwards, the registration is still reported as
// successful with outcome RegisterPersistedOnly carrying the underlying
// cause. No retry and no rollback are performed; this is the one place a
// dependency failure is absorbed rather than surfaced as a hard failure.
func (s *Service) Register(ctx context.Context, address, username string, role interfaces.Role, permissions interfaces.Permissions) (interfaces.RegisterResult, error) {
	addr, err := interfaces.NewWalletAddressFromHex(address)
	if err != nil {
		return interfaces.RegisterResult{}, apperr.Validation("invalid Ethereum address")
	}
	if username == "" {
		return interfaces.RegisterResult{}, apperr.Validation("missing required fields")
	}
	if err := role.Validate(); err != nil {
		return interfaces.RegisterResult{}, apperr.Validation(err.Error())
	}

	profile := interfaces.Profile{
		Address:     addr,
		Username:    username,
		Role:        role,
		Permissions: permissions,
		CreatedAt:   s.now(),
	}

	err = s.profiles.Create(ctx, profile)
	if errors.Is(err, interfaces.ErrProfileExists) {
		return interfaces.RegisterResult{}, apperr.Conflict("user with this address is already registered")
	}
	if err != nil {
		return interfaces.RegisterResult{}, apperr.Dependency("failed to persist profile", err)
	}

	s.log.Info("User registered",
		slog.String("address", addr.String()),
		slog.String("username", username),
		slog.String("role", string(role)))

	receipt, err := s.ledger.AnchorCredential(ctx, addr, username, role, permissions)
	if err != nil {
		s.log.Error("Failed to anchor credential on ledger",
			"err", err,
			slog.String("address", addr.String()))
		return interfaces.RegisterResult{
			Outcome:   interfaces.RegisterPersistedOnly,
			Profile:   profile,
			AnchorErr: err,
		}, nil
	}

	s.log.Info("Credential anchored",
		slog.String("address", addr.String()),
		slog.String("txHash", receipt.TxHash),
		slog.Uint64("blockNumber", receipt.BlockNumber))

	return interfaces.RegisterResult{
		Outcome: interfaces.RegisterAnchored,
		Profile: profile,
		Receipt: &receipt,
	}, nil
}

// Authenticate runs the challenge-response flow and, on success, issues a
// bearer token embedding the profile claims.
//
// The outstanding challenge is consumed up front and never restored: a
// client whose flow fails after that point must request a fresh challenge.
func (s *Service) Authenticate(ctx context.Context, address, signature string) (string, interfaces.Claims, error) {
	addr, err := interfaces.NewWalletAddressFromHex(address)
	if err != nil {
		return "", interfaces.Claims{}, apperr.Validation("invalid Ethereum address")
	}

	message, ok := s.issuer.Consume(addr)
	if !ok {
		return "", interfaces.Claims{}, apperr.Validation("no pending challenge for this address")
	}

	recovered, err := RecoverSigner(message, signature)
	if err != nil {
		return "", interfaces.Claims{}, err
	}
	if !recovered.Equal(addr) {
		s.log.Warn("Signature verification failed",
			slog.String("claimed", addr.String()),
			slog.String("recovered", recovered.String()))
		return "", interfaces.Claims{}, apperr.Auth("invalid signature", nil)
	}

	profile, err := s.profiles.Get(ctx, addr)
	if errors.Is(err, interfaces.ErrProfileNotFound) {
		return "", interfaces.Claims{}, apperr.NotFound("user not found")
	}
	if err != nil {
		return "", interfaces.Claims{}, apperr.Dependency("failed to load profile", err)
	}

	calculated := CredentialHash(profile.Username, profile.Role, profile.Permissions)
	anchored, found, err := s.ledger.ReadCredentialHash(ctx, addr)
	if err != nil {
		return "", interfaces.Claims{}, apperr.Dependency("failed to read anchored credential", err)
	}
	if !found {
		s.log.Error("No credential anchor on ledger", slog.String("address", addr.String()))
		return "", interfaces.Claims{}, apperr.Integrity("inconsistent record: no anchor", addr.String())
	}
	if anchored != calculated {
		s.log.Error("Credential commitment mismatch", slog.String("address", addr.String()))
		return "", interfaces.Claims{}, apperr.Integrity("tampering suspected: credentials may have been altered", addr.String())
	}

	claims := interfaces.Claims{
		Address:     profile.Address,
		Username:    profile.Username,
		Role:        profile.Role,
		Permissions: profile.Permissions,
	}

	token, err := s.tokens.Issue(claims)
	if err != nil {
		return "", interfaces.Claims{}, apperr.Dependency("failed to issue token", err)
	}

	s.log.Info("Authentication successful", slog.String("address", addr.String()))
	return token, claims, nil
}
