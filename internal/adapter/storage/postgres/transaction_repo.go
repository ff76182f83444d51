package postgres

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"nft-marketplace/internal/core/domain"

	"github.com/ethereum/go-ethereum/common"
)

// TransactionRepo implements ports.TransactionRepository.
type TransactionRepo struct {
	pool Pool
}

// NewTransactionRepo creates a new TransactionRepo.
func NewTransactionRepo(pool Pool) *TransactionRepo {
	return &TransactionRepo{pool: pool}
}

// Create inserts a ledger entry.
func (r *TransactionRepo) Create(ctx context.Context, t *domain.Transaction) error {
	query := `INSERT INTO transactions (id, account, type, amount, listing_id, created_at)
		VALUES ($1, $2, $3, $4::numeric, $5, $6)`

	_, err := conn(ctx, r.pool).Exec(ctx, query,
		t.ID, t.Account.Hex(), string(t.Type), numeric(t.Amount), int64(t.ListingID), t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// List fetches an account's ledger entries with filtering and pagination.
func (r *TransactionRepo) List(ctx context.Context, params domain.TransactionListParams) ([]domain.Transaction, int64, error) {
	var conditions []string
	var args []any
	argIdx := 1

	conditions = append(conditions, fmt.Sprintf("account = $%d", argIdx))
	args = append(args, params.Account.Hex())
	argIdx++

	if params.Type != nil {
		conditions = append(conditions, fmt.Sprintf("type = $%d", argIdx))
		args = append(args, string(*params.Type))
		argIdx++
	}

	where := "WHERE " + strings.Join(conditions, " AND ")
	q := conn(ctx, r.pool)

	// Count total
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM transactions %s", where)
	var total int64
	if err := q.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}

	// Fetch page
	offset := 0
	if params.Page > 1 {
		offset = (params.Page - 1) * params.PageSize
	}
	dataQuery := fmt.Sprintf(`SELECT id, account, type, amount::text, listing_id, created_at
		FROM transactions %s ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d`, where, argIdx, argIdx+1)
	args = append(args, params.PageSize, offset)

	rows, err := q.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var txns []domain.Transaction
	for rows.Next() {
		var (
			t               domain.Transaction
			account, amount string
			typ             string
			listingID       int64
		)
		if err := rows.Scan(&t.ID, &account, &typ, &amount, &listingID, &t.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan transaction row: %w", err)
		}
		if t.Amount, err = parseNumeric(amount); err != nil {
			return nil, 0, fmt.Errorf("scan transaction amount: %w", err)
		}
		t.Account = common.HexToAddress(account)
		t.Type = domain.TransactionType(typ)
		t.ListingID = uint64(listingID)
		txns = append(txns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate transaction rows: %w", err)
	}
	return txns, total, nil
}

// SumByType totals entries of typ created at or after since (nil = all time).
func (r *TransactionRepo) SumByType(ctx context.Context, typ domain.TransactionType, since *time.Time) (*big.Int, error) {
	query := `SELECT COALESCE(SUM(amount), 0)::text FROM transactions WHERE type = $1`
	args := []any{string(typ)}
	if since != nil {
		query += ` AND created_at >= $2`
		args = append(args, *since)
	}

	var sum string
	if err := conn(ctx, r.pool).QueryRow(ctx, query, args...).Scan(&sum); err != nil {
		return nil, fmt.Errorf("sum transactions: %w", err)
	}
	return parseNumeric(sum)
}
