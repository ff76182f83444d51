package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"nft-marketplace/internal/core/domain"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
)

const listingColumns = `id, registry, asset_id, price::text, seller, sold, buyer, created_at, sold_at`

// ListingRepo implements ports.ListingRepository.
type ListingRepo struct {
	pool Pool
}

// NewListingRepo creates a new ListingRepo.
func NewListingRepo(pool Pool) *ListingRepo {
	return &ListingRepo{pool: pool}
}

// Create inserts a new listing.
func (r *ListingRepo) Create(ctx context.Context, l *domain.Listing) error {
	query := `INSERT INTO listings (id, registry, asset_id, price, seller, sold, buyer, created_at, sold_at)
		VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, $8, $9)`

	_, err := conn(ctx, r.pool).Exec(ctx, query,
		int64(l.ID), l.Registry.Hex(), int64(l.AssetID), numeric(l.Price), l.Seller.Hex(),
		l.Sold, hexPtr(l.Buyer), l.CreatedAt, l.SoldAt,
	)
	if err != nil {
		return fmt.Errorf("insert listing: %w", err)
	}
	return nil
}

// Get fetches a listing by id (non-locking read).
func (r *ListingRepo) Get(ctx context.Context, id uint64) (*domain.Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM listings WHERE id = $1`
	return scanListing(conn(ctx, r.pool).QueryRow(ctx, query, int64(id)))
}

// GetForUpdate fetches a listing with pessimistic locking.
// This MUST be called within a transaction.
func (r *ListingRepo) GetForUpdate(ctx context.Context, id uint64) (*domain.Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM listings WHERE id = $1 FOR UPDATE`
	return scanListing(conn(ctx, r.pool).QueryRow(ctx, query, int64(id)))
}

// MarkSold persists the sale fields of l.
func (r *ListingRepo) MarkSold(ctx context.Context, l *domain.Listing) error {
	query := `UPDATE listings SET sold = TRUE, buyer = $1, sold_at = $2 WHERE id = $3 AND sold = FALSE`

	tag, err := conn(ctx, r.pool).Exec(ctx, query, hexPtr(l.Buyer), l.SoldAt, int64(l.ID))
	if err != nil {
		return fmt.Errorf("mark listing sold: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("listing %d not found or already sold", l.ID)
	}
	return nil
}

// List fetches listings with filtering and pagination, oldest first.
func (r *ListingRepo) List(ctx context.Context, filter domain.ListingFilter) ([]domain.Listing, int64, error) {
	var conditions []string
	var args []any
	argIdx := 1

	if filter.Seller != nil {
		conditions = append(conditions, fmt.Sprintf("seller = $%d", argIdx))
		args = append(args, filter.Seller.Hex())
		argIdx++
	}
	if filter.Buyer != nil {
		conditions = append(conditions, fmt.Sprintf("buyer = $%d", argIdx))
		args = append(args, filter.Buyer.Hex())
		argIdx++
	}
	if filter.Sold != nil {
		conditions = append(conditions, fmt.Sprintf("sold = $%d", argIdx))
		args = append(args, *filter.Sold)
		argIdx++
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	q := conn(ctx, r.pool)

	// Count total
	var total int64
	if err := q.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM listings %s", where), args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count listings: %w", err)
	}

	// Fetch page
	dataQuery := fmt.Sprintf(`SELECT %s FROM listings %s ORDER BY id LIMIT $%d OFFSET $%d`,
		listingColumns, where, argIdx, argIdx+1)
	args = append(args, filter.PageSize, filter.Offset())

	rows, err := q.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list listings: %w", err)
	}
	defer rows.Close()

	var out []domain.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate listing rows: %w", err)
	}
	return out, total, nil
}

// CountSince counts listings created and sold at or after since (nil = all time).
func (r *ListingRepo) CountSince(ctx context.Context, since *time.Time) (int64, int64, error) {
	var listed, sold int64
	var err error
	q := conn(ctx, r.pool)

	if since == nil {
		err = q.QueryRow(ctx, `SELECT
			COUNT(*) AS listed,
			COUNT(*) FILTER (WHERE sold) AS sold
			FROM listings`).Scan(&listed, &sold)
	} else {
		err = q.QueryRow(ctx, `SELECT
			COUNT(*) FILTER (WHERE created_at >= $1) AS listed,
			COUNT(*) FILTER (WHERE sold AND sold_at >= $1) AS sold
			FROM listings`, *since).Scan(&listed, &sold)
	}
	if err != nil {
		return 0, 0, fmt.Errorf("count listings since: %w", err)
	}
	return listed, sold, nil
}

func scanListing(row pgx.Row) (*domain.Listing, error) {
	var (
		l                       domain.Listing
		id, assetID             int64
		registry, price, seller string
		buyer                   *string
	)
	err := row.Scan(&id, &registry, &assetID, &price, &seller, &l.Sold, &buyer, &l.CreatedAt, &l.SoldAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan listing: %w", err)
	}
	l.Price, err = parseNumeric(price)
	if err != nil {
		return nil, fmt.Errorf("scan listing price: %w", err)
	}
	l.ID = uint64(id)
	l.Registry = common.HexToAddress(registry)
	l.AssetID = uint64(assetID)
	l.Seller = common.HexToAddress(seller)
	l.Buyer = addrPtr(buyer)
	return &l, nil
}
