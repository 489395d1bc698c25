package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/layer-3/mintbox/core"
	"github.com/layer-3/mintbox/internal/eth"
	"github.com/layer-3/mintbox/ports"
)

// AuthService handles authentication business logic
type AuthService struct {
	nonces     *NonceStore
	identities ports.IdentityStore
	sessions   ports.SessionStore
	verifier   ports.SignatureVerifier
	tokenizer  ports.Tokenizer
	eventPub   ports.EventPublisher
	logger     zerolog.Logger
}

// NewAuthService creates a new authentication service
func NewAuthService(
	identities ports.IdentityStore,
	sessions ports.SessionStore,
	verifier ports.SignatureVerifier,
	tokenizer ports.Tokenizer,
	eventPub ports.EventPublisher,
	logger zerolog.Logger,
) *AuthService {
	return &AuthService{
		nonces:     NewNonceStore(identities),
		identities: identities,
		sessions:   sessions,
		verifier:   verifier,
		tokenizer:  tokenizer,
		eventPub:   eventPub,
		logger:     logger,
	}
}

// RequestNonce issues a fresh login challenge for address.
// An active session is left untouched.
func (s *AuthService) RequestNonce(ctx context.Context, address string) (string, error) {
	if !eth.IsAddress(strings.TrimSpace(address)) {
		return "", fmt.Errorf("%w: invalid wallet address", core.ErrValidation)
	}
	return s.nonces.Issue(ctx, address)
}

// Login verifies the signed challenge and opens a session
func (s *AuthService) Login(ctx context.Context, address, signature string) (*core.LoginResult, error) {
	address = strings.TrimSpace(address)
	if !eth.IsAddress(address) || strings.TrimSpace(signature) == "" {
		return nil, fmt.Errorf("%w: walletAddress and signature are required", core.ErrValidation)
	}

	identity, err := s.identities.FindByAddress(ctx, address)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			s.logger.Warn().Str("address", core.NormalizeAddress(address)).Msg("login for unknown identity")
			return nil, core.ErrIdentityNotFound
		}
		return nil, persistenceError("failed to load identity", err)
	}

	if !s.verifier.VerifyNonceSignature(address, signature, identity.Nonce) {
		s.logger.Warn().Str("address", identity.Address).Msg("login with invalid signature")
		return nil, core.ErrInvalidSignature
	}

	// Rotate only if nobody consumed the nonce since we read it
	next, err := GenerateNonce()
	if err != nil {
		return nil, err
	}
	rotated, err := s.identities.RotateNonce(ctx, identity.Address, identity.Nonce, next)
	if err != nil {
		return nil, persistenceError("failed to rotate nonce", err)
	}
	if !rotated {
		s.logger.Warn().Str("address", identity.Address).Msg("nonce consumed by concurrent login")
		return nil, core.ErrInvalidSignature
	}

	result, err := s.openSession(ctx, identity.Snapshot())
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("address", identity.Address).Msg("logged in")
	return result, nil
}

// Refresh rotates the refresh credential of address and issues a new pair.
// The identity snapshot is reloaded so profile changes are picked up.
func (s *AuthService) Refresh(ctx context.Context, address string) (*core.LoginResult, error) {
	if _, err := s.currentSession(ctx, address); err != nil {
		return nil, err
	}

	identity, err := s.identities.FindByAddress(ctx, address)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, fmt.Errorf("%w: identity no longer exists", core.ErrInvalidToken)
		}
		return nil, persistenceError("failed to load identity", err)
	}

	return s.openSession(ctx, identity.Snapshot())
}

// RenewAccess mints a new access credential from the stored refresh credential
func (s *AuthService) RenewAccess(ctx context.Context, address string) (core.IssuedToken, *core.IdentitySnapshot, error) {
	snapshot, err := s.currentSession(ctx, address)
	if err != nil {
		return core.IssuedToken{}, nil, err
	}

	access, err := s.tokenizer.IssueAccessToken(*snapshot)
	if err != nil {
		return core.IssuedToken{}, nil, fmt.Errorf("failed to issue access token: %w", err)
	}
	return access, snapshot, nil
}

// Authenticate verifies an access credential without touching any store
func (s *AuthService) Authenticate(accessToken string) (*core.IdentitySnapshot, error) {
	return s.tokenizer.VerifyAccessToken(accessToken)
}

// Logout revokes the session of address and reports how many entries were removed
func (s *AuthService) Logout(ctx context.Context, address string) (int64, error) {
	removed, err := s.sessions.Delete(ctx, address)
	if err != nil {
		return 0, fmt.Errorf("failed to revoke session: %w", err)
	}

	// The session is already gone; a lost event only delays other instances
	if err := s.eventPub.PublishLogout(ctx, core.NormalizeAddress(address)); err != nil {
		s.logger.Warn().Err(err).Str("address", core.NormalizeAddress(address)).Msg("failed to publish logout event")
	}

	s.logger.Info().Str("address", core.NormalizeAddress(address)).Int64("removed", removed).Msg("logged out")
	return removed, nil
}

func (s *AuthService) currentSession(ctx context.Context, address string) (*core.IdentitySnapshot, error) {
	if !eth.IsAddress(strings.TrimSpace(address)) {
		return nil, fmt.Errorf("%w: invalid wallet address", core.ErrUnauthorized)
	}

	token, found, err := s.sessions.Get(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}
	if !found {
		return nil, core.ErrSessionExpired
	}

	snapshot, err := s.tokenizer.VerifyRefreshToken(token)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(snapshot.WalletAddress, strings.TrimSpace(address)) {
		return nil, fmt.Errorf("%w: session belongs to another address", core.ErrInvalidToken)
	}
	return snapshot, nil
}

func (s *AuthService) openSession(ctx context.Context, snapshot core.IdentitySnapshot) (*core.LoginResult, error) {
	access, err := s.tokenizer.IssueAccessToken(snapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to issue access token: %w", err)
	}
	refresh, err := s.tokenizer.IssueRefreshToken(snapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to issue refresh token: %w", err)
	}

	if err := s.sessions.Put(ctx, snapshot.WalletAddress, refresh.Token, core.RefreshTokenTTL); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}

	return &core.LoginResult{
		Access:   access,
		Refresh:  refresh,
		Identity: snapshot,
	}, nil
}
