package service

import (
	"context"
	"fmt"
	"math/big"
	"slices"
	"time"

	"nft-marketplace/internal/core/domain"
	"nft-marketplace/internal/core/ports"
	"nft-marketplace/pkg/apperror"
	"nft-marketplace/pkg/money"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// AccountServiceImpl implements ports.AccountService. Every balance movement
// writes a ledger entry in the same transaction.
type AccountServiceImpl struct {
	accounts   ports.AccountRepository
	txRepo     ports.TransactionRepository
	transactor ports.Transactor
	log        zerolog.Logger
	now        func() time.Time
}

// NewAccountService creates a new AccountServiceImpl.
func NewAccountService(
	accounts ports.AccountRepository,
	txRepo ports.TransactionRepository,
	transactor ports.Transactor,
	log zerolog.Logger,
) *AccountServiceImpl {
	return &AccountServiceImpl{
		accounts:   accounts,
		txRepo:     txRepo,
		transactor: transactor,
		log:        log,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Lock row-locks accounts for the rest of the caller's transaction. Duplicate
// and zero addresses are dropped; the rest are locked in address order.
func (s *AccountServiceImpl) Lock(ctx context.Context, accounts ...common.Address) error {
	keys := make([]common.Address, 0, len(accounts))
	for _, a := range accounts {
		if a != (common.Address{}) {
			keys = append(keys, a)
		}
	}
	slices.SortFunc(keys, func(a, b common.Address) int { return a.Cmp(b) })
	keys = slices.Compact(keys)
	if len(keys) == 0 {
		return nil
	}
	return s.transactor.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.accounts.LockAll(ctx, keys); err != nil {
			return apperror.InternalError(fmt.Errorf("lock accounts: %w", err))
		}
		return nil
	})
}

// Debit removes amount from account. A zero amount is a no-op.
func (s *AccountServiceImpl) Debit(ctx context.Context, account common.Address, amount *big.Int, typ domain.TransactionType, listingID uint64) error {
	if amount == nil || amount.Sign() < 0 {
		return apperror.ErrInvalidAmount()
	}
	if amount.Sign() == 0 {
		return nil
	}
	return s.transactor.WithinTx(ctx, func(ctx context.Context) error {
		acct, err := s.accounts.GetForUpdate(ctx, account)
		if err != nil {
			return apperror.InternalError(fmt.Errorf("lock account: %w", err))
		}
		if !acct.Covers(amount) {
			return apperror.ErrInsufficientFunds()
		}
		if err := s.accounts.AddBalance(ctx, account, new(big.Int).Neg(amount)); err != nil {
			return apperror.InternalError(fmt.Errorf("debit balance: %w", err))
		}
		if err := s.txRepo.Create(ctx, domain.NewTransaction(account, typ, amount, listingID, s.now())); err != nil {
			return apperror.InternalError(fmt.Errorf("create transaction: %w", err))
		}
		return nil
	})
}

// Credit adds amount to account. A zero amount is a no-op.
func (s *AccountServiceImpl) Credit(ctx context.Context, account common.Address, amount *big.Int, typ domain.TransactionType, listingID uint64) error {
	if amount == nil || amount.Sign() < 0 {
		return apperror.ErrInvalidAmount()
	}
	if amount.Sign() == 0 {
		return nil
	}
	return s.transactor.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.accounts.AddBalance(ctx, account, amount); err != nil {
			return apperror.InternalError(fmt.Errorf("credit balance: %w", err))
		}
		if err := s.txRepo.Create(ctx, domain.NewTransaction(account, typ, amount, listingID, s.now())); err != nil {
			return apperror.InternalError(fmt.Errorf("create transaction: %w", err))
		}
		return nil
	})
}

// Deposit credits funds the buyer can later spend on purchases.
func (s *AccountServiceImpl) Deposit(ctx context.Context, account common.Address, amount *big.Int) (*domain.Account, error) {
	if account == (common.Address{}) {
		return nil, apperror.Validation("account address is required")
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}

	var acct *domain.Account
	err := s.transactor.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.Credit(ctx, account, amount, domain.TransactionTypeDeposit, 0); err != nil {
			return err
		}
		var err error
		acct, err = s.accounts.Get(ctx, account)
		if err != nil {
			return apperror.InternalError(fmt.Errorf("read account: %w", err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("account", account.Hex()).
		Str("amount_eth", money.FormatEther(amount)).
		Msg("deposit processed successfully")

	return acct, nil
}

// Withdraw removes funds from the withdrawable balance.
func (s *AccountServiceImpl) Withdraw(ctx context.Context, account common.Address, amount *big.Int) (*domain.Account, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}

	var acct *domain.Account
	err := s.transactor.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.Debit(ctx, account, amount, domain.TransactionTypeWithdrawal, 0); err != nil {
			return err
		}
		var err error
		acct, err = s.accounts.Get(ctx, account)
		if err != nil {
			return apperror.InternalError(fmt.Errorf("read account: %w", err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("account", account.Hex()).
		Str("amount_eth", money.FormatEther(amount)).
		Msg("withdrawal processed successfully")

	return acct, nil
}

// Balance returns the account's withdrawable balance.
func (s *AccountServiceImpl) Balance(ctx context.Context, account common.Address) (*domain.Account, error) {
	acct, err := s.accounts.Get(ctx, account)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("read account: %w", err))
	}
	return acct, nil
}

// Transactions returns a page of the account's ledger entries, newest first.
func (s *AccountServiceImpl) Transactions(ctx context.Context, params domain.TransactionListParams) ([]domain.Transaction, int64, error) {
	params.Page, params.PageSize = clampPage(params.Page, params.PageSize)
	txns, total, err := s.txRepo.List(ctx, params)
	if err != nil {
		return nil, 0, apperror.InternalError(err)
	}
	return txns, total, nil
}

func clampPage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}
