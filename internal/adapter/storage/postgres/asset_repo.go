package postgres

import (
	"context"
	"errors"
	"fmt"

	"nft-marketplace/internal/core/domain"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
)

// AssetRepo implements ports.AssetRepository.
type AssetRepo struct {
	pool Pool
}

// NewAssetRepo creates a new AssetRepo.
func NewAssetRepo(pool Pool) *AssetRepo {
	return &AssetRepo{pool: pool}
}

// Create inserts a freshly minted asset.
func (r *AssetRepo) Create(ctx context.Context, a *domain.Asset) error {
	query := `INSERT INTO assets (registry, id, owner, metadata_uri, minted_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := conn(ctx, r.pool).Exec(ctx, query,
		a.Registry.Hex(), int64(a.ID), a.Owner.Hex(), a.MetadataURI, a.MintedAt,
	)
	if err != nil {
		return fmt.Errorf("insert asset: %w", err)
	}
	return nil
}

// Get fetches an asset (non-locking read).
func (r *AssetRepo) Get(ctx context.Context, registry common.Address, id uint64) (*domain.Asset, error) {
	query := `SELECT registry, id, owner, metadata_uri, minted_at
		FROM assets WHERE registry = $1 AND id = $2`

	return r.scanAsset(conn(ctx, r.pool).QueryRow(ctx, query, registry.Hex(), int64(id)))
}

// GetForUpdate fetches an asset with pessimistic locking.
// This MUST be called within a transaction.
func (r *AssetRepo) GetForUpdate(ctx context.Context, registry common.Address, id uint64) (*domain.Asset, error) {
	query := `SELECT registry, id, owner, metadata_uri, minted_at
		FROM assets WHERE registry = $1 AND id = $2 FOR UPDATE`

	return r.scanAsset(conn(ctx, r.pool).QueryRow(ctx, query, registry.Hex(), int64(id)))
}

// UpdateOwner records a transfer.
func (r *AssetRepo) UpdateOwner(ctx context.Context, registry common.Address, id uint64, owner common.Address) error {
	query := `UPDATE assets SET owner = $1 WHERE registry = $2 AND id = $3`

	tag, err := conn(ctx, r.pool).Exec(ctx, query, owner.Hex(), registry.Hex(), int64(id))
	if err != nil {
		return fmt.Errorf("update asset owner: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("asset not found: %d", id)
	}
	return nil
}

// CountByOwner counts the assets owner holds in registry.
func (r *AssetRepo) CountByOwner(ctx context.Context, registry common.Address, owner common.Address) (uint64, error) {
	query := `SELECT COUNT(*) FROM assets WHERE registry = $1 AND owner = $2`

	var n int64
	if err := conn(ctx, r.pool).QueryRow(ctx, query, registry.Hex(), owner.Hex()).Scan(&n); err != nil {
		return 0, fmt.Errorf("count assets by owner: %w", err)
	}
	return uint64(n), nil
}

// SetApproval upserts an operator approval.
func (r *AssetRepo) SetApproval(ctx context.Context, ap domain.OperatorApproval) error {
	query := `INSERT INTO operator_approvals (registry, owner, operator, approved)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (registry, owner, operator) DO UPDATE SET approved = EXCLUDED.approved`

	_, err := conn(ctx, r.pool).Exec(ctx, query, ap.Registry.Hex(), ap.Owner.Hex(), ap.Operator.Hex(), ap.Approved)
	if err != nil {
		return fmt.Errorf("upsert approval: %w", err)
	}
	return nil
}

// IsApproved reports the stored approval, false when never set.
func (r *AssetRepo) IsApproved(ctx context.Context, registry, owner, operator common.Address) (bool, error) {
	query := `SELECT approved FROM operator_approvals
		WHERE registry = $1 AND owner = $2 AND operator = $3`

	var approved bool
	err := conn(ctx, r.pool).QueryRow(ctx, query, registry.Hex(), owner.Hex(), operator.Hex()).Scan(&approved)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("get approval: %w", err)
	}
	return approved, nil
}

func (r *AssetRepo) scanAsset(row pgx.Row) (*domain.Asset, error) {
	var (
		a               domain.Asset
		registry, owner string
		id              int64
	)
	err := row.Scan(&registry, &id, &owner, &a.MetadataURI, &a.MintedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan asset: %w", err)
	}
	a.Registry = common.HexToAddress(registry)
	a.ID = uint64(id)
	a.Owner = common.HexToAddress(owner)
	return &a, nil
}
