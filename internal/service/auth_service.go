package service

import (
	"context"
	"fmt"
	"time"

	"nft-marketplace/internal/core/ports"
	"nft-marketplace/pkg/apperror"
	"nft-marketplace/pkg/ethsig"

	"github.com/rs/zerolog"
)

// LoginMessage is the text a wallet signs to obtain a session.
func LoginMessage(nonce string, timestamp int64) string {
	return fmt.Sprintf("Sign in to marketplace\nnonce: %s\ntimestamp: %d", nonce, timestamp)
}

// AuthServiceImpl implements ports.AuthService with wallet signatures.
type AuthServiceImpl struct {
	tokenSvc ports.TokenService
	nonces   ports.NonceStore
	maxDrift time.Duration
	nonceTTL time.Duration
	log      zerolog.Logger
	now      func() time.Time
}

// NewAuthService creates a new AuthServiceImpl.
func NewAuthService(
	tokenSvc ports.TokenService,
	nonces ports.NonceStore,
	maxDrift time.Duration,
	nonceTTL time.Duration,
	log zerolog.Logger,
) *AuthServiceImpl {
	return &AuthServiceImpl{
		tokenSvc: tokenSvc,
		nonces:   nonces,
		maxDrift: maxDrift,
		nonceTTL: nonceTTL,
		log:      log,
		now:      time.Now,
	}
}

// Login verifies a personal_sign proof and issues a session token.
// Pipeline: check timestamp -> verify signature -> consume nonce -> issue token.
func (s *AuthServiceImpl) Login(ctx context.Context, req ports.LoginRequest) (string, time.Time, error) {
	if req.Nonce == "" {
		return "", time.Time{}, apperror.Validation("nonce is required")
	}

	drift := s.now().Sub(time.Unix(req.Timestamp, 0))
	if drift < 0 {
		drift = -drift
	}
	if drift > s.maxDrift {
		return "", time.Time{}, apperror.ErrTimestampExpired()
	}

	signer, err := ethsig.RecoverAddress([]byte(LoginMessage(req.Nonce, req.Timestamp)), req.Signature)
	if err != nil || signer != req.Address {
		return "", time.Time{}, apperror.ErrInvalidSignature()
	}

	isNew, err := s.nonces.CheckAndSet(ctx, req.Address.Hex(), req.Nonce, s.nonceTTL)
	if err != nil {
		s.log.Warn().Err(err).Msg("nonce store error, allowing request")
	} else if !isNew {
		return "", time.Time{}, apperror.ErrNonceUsed()
	}

	token, expiresAt, err := s.tokenSvc.Generate(req.Address)
	if err != nil {
		return "", time.Time{}, apperror.InternalError(fmt.Errorf("generate token: %w", err))
	}

	s.log.Info().Str("address", req.Address.Hex()).Msg("wallet signed in")
	return token, expiresAt, nil
}
