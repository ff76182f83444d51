package redis

import (
	"context"
	"io"
	"strconv"
	"testing"

	"nft-marketplace/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient(t *testing.T) {
	s := miniredis.RunT(t)
	cfg := config.RedisConfig{Host: s.Host(), Port: mustPort(t, s), DB: 0}

	client, err := NewClient(context.Background(), cfg, zerolog.New(io.Discard))
	require.NoError(t, err)
	defer client.Close()

	h := NewHealthCheck(client)
	assert.Equal(t, "redis", h.Name())
	assert.NoError(t, h.Ping(context.Background()))
}

func TestNewClient_Unreachable(t *testing.T) {
	s := miniredis.RunT(t)
	cfg := config.RedisConfig{Host: s.Host(), Port: mustPort(t, s)}
	s.Close()

	_, err := NewClient(context.Background(), cfg, zerolog.New(io.Discard))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ping redis at "+cfg.Addr())
}

func mustPort(t *testing.T, s *miniredis.Miniredis) int {
	t.Helper()
	port, err := strconv.Atoi(s.Port())
	require.NoError(t, err)
	return port
}
