package redis

import (
	"context"
	"fmt"

	"nft-marketplace/config"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// keyspace prefixes every key this service writes, so one Redis can be
// shared with other tenants.
const keyspace = "mkt:"

// NewClient creates a Redis client and verifies connectivity. Login nonces,
// purchase receipts, rate limit windows and the event stream all live on it.
func NewClient(ctx context.Context, cfg config.RedisConfig, log zerolog.Logger) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", cfg.Addr(), err)
	}

	log.Debug().
		Str("addr", cfg.Addr()).
		Int("db", cfg.DB).
		Msg("redis ping ok")

	return client, nil
}
