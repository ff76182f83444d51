package postgres

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"nft-marketplace/internal/core/domain"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
)

// AccountRepo implements ports.AccountRepository. The balance column has a
// non-negative CHECK, so an uncovered debit fails at the database too.
type AccountRepo struct {
	pool Pool
}

// NewAccountRepo creates a new AccountRepo.
func NewAccountRepo(pool Pool) *AccountRepo {
	return &AccountRepo{pool: pool}
}

// Get fetches an account (non-locking read). Missing accounts read as zero.
func (r *AccountRepo) Get(ctx context.Context, address common.Address) (*domain.Account, error) {
	query := `SELECT balance::text, updated_at FROM accounts WHERE address = $1`
	return r.scanAccount(address, conn(ctx, r.pool).QueryRow(ctx, query, address.Hex()))
}

// GetForUpdate fetches an account with pessimistic locking.
// This MUST be called within a transaction.
func (r *AccountRepo) GetForUpdate(ctx context.Context, address common.Address) (*domain.Account, error) {
	query := `SELECT balance::text, updated_at FROM accounts WHERE address = $1 FOR UPDATE`
	return r.scanAccount(address, conn(ctx, r.pool).QueryRow(ctx, query, address.Hex()))
}

// LockAll row-locks the given accounts, creating empty ones first so every
// address has a row to lock. Rows are locked in byte order of the address
// text whatever the argument order, so two settlements touching the same
// accounts cannot deadlock. This MUST be called within a transaction.
func (r *AccountRepo) LockAll(ctx context.Context, addresses []common.Address) error {
	if len(addresses) == 0 {
		return nil
	}
	keys := make([]string, len(addresses))
	for i, a := range addresses {
		keys[i] = a.Hex()
	}

	q := conn(ctx, r.pool)
	ensure := `INSERT INTO accounts (address, balance, updated_at)
		SELECT a, 0, $2 FROM unnest($1::text[]) AS a ORDER BY a COLLATE "C"
		ON CONFLICT (address) DO NOTHING`
	if _, err := q.Exec(ctx, ensure, keys, time.Now().UTC()); err != nil {
		return fmt.Errorf("ensure accounts: %w", err)
	}

	lock := `SELECT address FROM accounts WHERE address = ANY($1::text[])
		ORDER BY address COLLATE "C" FOR UPDATE`
	rows, err := q.Query(ctx, lock, keys)
	if err != nil {
		return fmt.Errorf("lock accounts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("lock accounts: %w", err)
	}
	return nil
}

// AddBalance applies a signed delta, creating the account on first credit.
func (r *AccountRepo) AddBalance(ctx context.Context, address common.Address, delta *big.Int) error {
	query := `INSERT INTO accounts (address, balance, updated_at) VALUES ($1, $2::numeric, $3)
		ON CONFLICT (address) DO UPDATE
		SET balance = accounts.balance + EXCLUDED.balance, updated_at = EXCLUDED.updated_at`

	_, err := conn(ctx, r.pool).Exec(ctx, query, address.Hex(), numeric(delta), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("add account balance: %w", err)
	}
	return nil
}

func (r *AccountRepo) scanAccount(address common.Address, row pgx.Row) (*domain.Account, error) {
	acct := &domain.Account{Address: address, Balance: new(big.Int)}

	var balance string
	err := row.Scan(&balance, &acct.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return acct, nil
		}
		return nil, fmt.Errorf("scan account: %w", err)
	}
	if acct.Balance, err = parseNumeric(balance); err != nil {
		return nil, fmt.Errorf("scan account balance: %w", err)
	}
	return acct, nil
}
