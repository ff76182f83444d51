package service

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"testing"
	"time"

	"nft-marketplace/internal/core/ports"
	"nft-marketplace/internal/core/ports/mocks"
	"nft-marketplace/pkg/apperror"
	"nft-marketplace/pkg/ethsig"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var authNow = time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

func setupAuthService(t *testing.T) (
	*AuthServiceImpl,
	*mocks.MockTokenService,
	*mocks.MockNonceStore,
	*gomock.Controller,
) {
	ctrl := gomock.NewController(t)
	tokenSvc := mocks.NewMockTokenService(ctrl)
	nonces := mocks.NewMockNonceStore(ctrl)

	svc := NewAuthService(tokenSvc, nonces, 5*time.Minute, 10*time.Minute, newTestLogger())
	svc.now = func() time.Time { return authNow }
	return svc, tokenSvc, nonces, ctrl
}

func signedLogin(t *testing.T, key *ecdsa.PrivateKey, nonce string, ts int64) ports.LoginRequest {
	t.Helper()
	sig, err := ethsig.Sign([]byte(LoginMessage(nonce, ts)), key)
	require.NoError(t, err)
	return ports.LoginRequest{
		Address:   crypto.PubkeyToAddress(key.PublicKey),
		Nonce:     nonce,
		Timestamp: ts,
		Signature: sig,
	}
}

func TestAuthService_Login_Success(t *testing.T) {
	svc, tokenSvc, nonces, ctrl := setupAuthService(t)
	defer ctrl.Finish()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	req := signedLogin(t, key, "n-1", authNow.Unix())

	expiry := authNow.Add(24 * time.Hour)
	nonces.EXPECT().CheckAndSet(gomock.Any(), req.Address.Hex(), "n-1", 10*time.Minute).Return(true, nil)
	tokenSvc.EXPECT().Generate(req.Address).Return("jwt-token", expiry, nil)

	token, exp, err := svc.Login(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "jwt-token", token)
	assert.Equal(t, expiry, exp)
}

func TestAuthService_Login_NonceReused(t *testing.T) {
	svc, _, nonces, ctrl := setupAuthService(t)
	defer ctrl.Finish()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	req := signedLogin(t, key, "n-1", authNow.Unix())

	nonces.EXPECT().CheckAndSet(gomock.Any(), gomock.Any(), "n-1", gomock.Any()).Return(false, nil)

	_, _, err = svc.Login(context.Background(), req)
	assert.True(t, apperror.HasCode(err, "SEC_004"))
}

func TestAuthService_Login_NonceStoreDownAllows(t *testing.T) {
	svc, tokenSvc, nonces, ctrl := setupAuthService(t)
	defer ctrl.Finish()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	req := signedLogin(t, key, "n-2", authNow.Unix())

	nonces.EXPECT().CheckAndSet(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(false, errors.New("redis down"))
	tokenSvc.EXPECT().Generate(req.Address).Return("jwt-token", authNow, nil)

	_, _, err = svc.Login(context.Background(), req)
	require.NoError(t, err)
}

func TestAuthService_Login_Rejections(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	otherKey, err := crypto.GenerateKey()
	require.NoError(t, err)

	tests := []struct {
		name string
		req  func() ports.LoginRequest
		code string
	}{
		{"empty nonce", func() ports.LoginRequest {
			return signedLogin(t, key, "", authNow.Unix())
		}, "PAY_002"},
		{"stale timestamp", func() ports.LoginRequest {
			return signedLogin(t, key, "n", authNow.Add(-6*time.Minute).Unix())
		}, "SEC_003"},
		{"future timestamp", func() ports.LoginRequest {
			return signedLogin(t, key, "n", authNow.Add(6*time.Minute).Unix())
		}, "SEC_003"},
		{"signed by someone else", func() ports.LoginRequest {
			req := signedLogin(t, otherKey, "n", authNow.Unix())
			req.Address = crypto.PubkeyToAddress(key.PublicKey)
			return req
		}, "SEC_002"},
		{"signature over different nonce", func() ports.LoginRequest {
			req := signedLogin(t, key, "n", authNow.Unix())
			req.Nonce = "m"
			return req
		}, "SEC_002"},
		{"garbage signature", func() ports.LoginRequest {
			return ports.LoginRequest{Address: common.HexToAddress("0x01"), Nonce: "n", Timestamp: authNow.Unix(), Signature: "0xdead"}
		}, "SEC_002"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// No nonce or token calls are expected.
			svc, _, _, ctrl := setupAuthService(t)
			defer ctrl.Finish()

			_, _, err := svc.Login(context.Background(), tt.req())
			assert.True(t, apperror.HasCode(err, tt.code), "got %v", err)
		})
	}
}

func TestAuthService_Login_TokenError(t *testing.T) {
	svc, tokenSvc, nonces, ctrl := setupAuthService(t)
	defer ctrl.Finish()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	req := signedLogin(t, key, "n-3", authNow.Unix())

	nonces.EXPECT().CheckAndSet(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(true, nil)
	tokenSvc.EXPECT().Generate(gomock.Any()).Return("", time.Time{}, errors.New("signing failed"))

	_, _, err = svc.Login(context.Background(), req)
	assert.True(t, apperror.HasCode(err, "SYS_001"))
}
