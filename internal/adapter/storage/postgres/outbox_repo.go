package postgres

import (
	"context"
	"fmt"
	"time"

	"nft-marketplace/internal/core/domain"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
)

const eventColumns = `seq, id, type, listing_id, registry, asset_id, price::text, seller, buyer, created_at, delivered_at`

// OutboxRepo implements ports.EventOutbox on the events table.
type OutboxRepo struct {
	pool Pool
}

// NewOutboxRepo creates a new OutboxRepo.
func NewOutboxRepo(pool Pool) *OutboxRepo {
	return &OutboxRepo{pool: pool}
}

// Append inserts e and sets e.Seq.
func (r *OutboxRepo) Append(ctx context.Context, e *domain.Event) error {
	query := `INSERT INTO events (id, type, listing_id, registry, asset_id, price, seller, buyer, created_at)
		VALUES ($1, $2, $3, $4, $5, $6::numeric, $7, $8, $9)
		RETURNING seq`

	var seq int64
	err := conn(ctx, r.pool).QueryRow(ctx, query,
		e.ID, string(e.Type), int64(e.ListingID), e.Registry.Hex(), int64(e.AssetID),
		numeric(e.Price), e.Seller.Hex(), hexPtr(e.Buyer), e.CreatedAt,
	).Scan(&seq)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	e.Seq = uint64(seq)
	return nil
}

// Pending returns undelivered events in seq order.
func (r *OutboxRepo) Pending(ctx context.Context, limit int) ([]domain.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE delivered_at IS NULL ORDER BY seq LIMIT $1`
	return r.queryEvents(ctx, query, limit)
}

// Since returns events after afterSeq regardless of delivery.
func (r *OutboxRepo) Since(ctx context.Context, afterSeq uint64, limit int) ([]domain.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE seq > $1 ORDER BY seq LIMIT $2`
	return r.queryEvents(ctx, query, int64(afterSeq), limit)
}

// MarkDelivered stamps the given events.
func (r *OutboxRepo) MarkDelivered(ctx context.Context, seqs []uint64, at time.Time) error {
	if len(seqs) == 0 {
		return nil
	}
	ids := make([]int64, len(seqs))
	for i, s := range seqs {
		ids[i] = int64(s)
	}

	query := `UPDATE events SET delivered_at = $1 WHERE seq = ANY($2) AND delivered_at IS NULL`
	if _, err := conn(ctx, r.pool).Exec(ctx, query, at, ids); err != nil {
		return fmt.Errorf("mark events delivered: %w", err)
	}
	return nil
}

func (r *OutboxRepo) queryEvents(ctx context.Context, query string, args ...any) ([]domain.Event, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []domain.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate event rows: %w", err)
	}
	return out, nil
}

func scanEvent(row pgx.Row) (domain.Event, error) {
	var (
		e                            domain.Event
		seq, listingID, assetID      int64
		typ, registry, price, seller string
		buyer                        *string
	)
	err := row.Scan(&seq, &e.ID, &typ, &listingID, &registry, &assetID, &price, &seller, &buyer, &e.CreatedAt, &e.DeliveredAt)
	if err != nil {
		return e, fmt.Errorf("scan event: %w", err)
	}
	if e.Price, err = parseNumeric(price); err != nil {
		return e, fmt.Errorf("scan event price: %w", err)
	}
	e.Seq = uint64(seq)
	e.Type = domain.EventType(typ)
	e.ListingID = uint64(listingID)
	e.Registry = common.HexToAddress(registry)
	e.AssetID = uint64(assetID)
	e.Seller = common.HexToAddress(seller)
	e.Buyer = addrPtr(buyer)
	return e, nil
}
