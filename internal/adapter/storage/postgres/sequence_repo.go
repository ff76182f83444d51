package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// SequenceRepo implements ports.SequenceRepository on the sequences table.
// Next holds the counter row lock until the surrounding transaction ends,
// so a rolled back allocation leaves no gap.
type SequenceRepo struct {
	pool Pool
}

// NewSequenceRepo creates a new SequenceRepo.
func NewSequenceRepo(pool Pool) *SequenceRepo {
	return &SequenceRepo{pool: pool}
}

// Next increments and returns the named counter. The first value is 1.
func (r *SequenceRepo) Next(ctx context.Context, name string) (uint64, error) {
	query := `INSERT INTO sequences (name, value) VALUES ($1, 1)
		ON CONFLICT (name) DO UPDATE SET value = sequences.value + 1
		RETURNING value`

	var v int64
	if err := conn(ctx, r.pool).QueryRow(ctx, query, name).Scan(&v); err != nil {
		return 0, fmt.Errorf("next sequence value: %w", err)
	}
	return uint64(v), nil
}

// Current returns the last value handed out, 0 if none.
func (r *SequenceRepo) Current(ctx context.Context, name string) (uint64, error) {
	query := `SELECT value FROM sequences WHERE name = $1`

	var v int64
	err := conn(ctx, r.pool).QueryRow(ctx, query, name).Scan(&v)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("current sequence value: %w", err)
	}
	return uint64(v), nil
}
