package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNonceStore_CheckAndSet_NewNonce(t *testing.T) {
	_, client := newTestClient(t)
	store := NewNonceStore(client)

	ok, err := store.CheckAndSet(context.Background(), testBuyer.Hex(), "nonce-abc", 5*time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "new nonce should return true")
}

func TestNonceStore_CheckAndSet_ReplayNonce(t *testing.T) {
	_, client := newTestClient(t)
	store := NewNonceStore(client)
	ctx := context.Background()

	ok, err := store.CheckAndSet(ctx, testBuyer.Hex(), "nonce-xyz", 5*time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	// Replay
	ok, err = store.CheckAndSet(ctx, testBuyer.Hex(), "nonce-xyz", 5*time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "replayed nonce should return false")
}

func TestNonceStore_CheckAndSet_ScopedPerWallet(t *testing.T) {
	_, client := newTestClient(t)
	store := NewNonceStore(client)
	ctx := context.Background()

	ok1, err := store.CheckAndSet(ctx, "0x70997970C51812dc3A010C7d01b50e0d17dc79C8", "nonce-123", 5*time.Minute)
	require.NoError(t, err)
	assert.True(t, ok1)

	ok2, err := store.CheckAndSet(ctx, testBuyer.Hex(), "nonce-123", 5*time.Minute)
	require.NoError(t, err)
	assert.True(t, ok2, "same nonce for a different wallet should be valid")
}

func TestNonceStore_CheckAndSet_ExpiredNonce(t *testing.T) {
	s, client := newTestClient(t)
	store := NewNonceStore(client)
	ctx := context.Background()

	ok, err := store.CheckAndSet(ctx, testBuyer.Hex(), "nonce-expire", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	// Fast-forward past TTL
	s.FastForward(2 * time.Second)

	ok, err = store.CheckAndSet(ctx, testBuyer.Hex(), "nonce-expire", time.Second)
	require.NoError(t, err)
	assert.True(t, ok, "expired nonce should be accepted again")
}
