package postgres

import (
	"context"
	"errors"
	"fmt"

	"nft-marketplace/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// IdempotencyRepo implements ports.IdempotencyRepository.
type IdempotencyRepo struct {
	pool Pool
}

// NewIdempotencyRepo creates a new IdempotencyRepo.
func NewIdempotencyRepo(pool Pool) *IdempotencyRepo {
	return &IdempotencyRepo{pool: pool}
}

// Create inserts an idempotency log, usually inside the purchase transaction.
// An existing key is left untouched.
func (r *IdempotencyRepo) Create(ctx context.Context, log *domain.IdempotencyLog) error {
	query := `INSERT INTO idempotency_logs (key, listing_id, response_json, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (key) DO NOTHING`

	_, err := conn(ctx, r.pool).Exec(ctx, query, log.Key, int64(log.ListingID), log.ResponseJSON, log.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert idempotency log: %w", err)
	}
	return nil
}

// Get fetches an idempotency log by key.
func (r *IdempotencyRepo) Get(ctx context.Context, key string) (*domain.IdempotencyLog, error) {
	query := `SELECT key, listing_id, response_json, created_at FROM idempotency_logs WHERE key = $1`

	log := &domain.IdempotencyLog{}
	var listingID int64
	err := conn(ctx, r.pool).QueryRow(ctx, query, key).Scan(&log.Key, &listingID, &log.ResponseJSON, &log.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get idempotency log: %w", err)
	}
	log.ListingID = uint64(listingID)
	return log, nil
}
