package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// TransactionType represents the kind of balance movement.
type TransactionType string

const (
	TransactionTypeDeposit        TransactionType = "DEPOSIT"
	TransactionTypeWithdrawal     TransactionType = "WITHDRAWAL"
	TransactionTypePurchase       TransactionType = "PURCHASE"
	TransactionTypeSaleProceeds   TransactionType = "SALE_PROCEEDS"
	TransactionTypePlatformFee    TransactionType = "PLATFORM_FEE"
	TransactionTypeExcessRetained TransactionType = "EXCESS_RETAINED"
)

// Valid reports whether t is a known transaction type.
func (t TransactionType) Valid() bool {
	switch t {
	case TransactionTypeDeposit, TransactionTypeWithdrawal, TransactionTypePurchase,
		TransactionTypeSaleProceeds, TransactionTypePlatformFee, TransactionTypeExcessRetained:
		return true
	}
	return false
}

// IsCredit reports whether entries of this type add to the account balance.
func (t TransactionType) IsCredit() bool {
	switch t {
	case TransactionTypeWithdrawal, TransactionTypePurchase:
		return false
	default:
		return true
	}
}

// Transaction represents an immutable ledger entry for one balance movement.
// Amount is always positive; the type carries the direction.
type Transaction struct {
	ID        uuid.UUID       `json:"id"`
	Account   common.Address  `json:"account"`
	Type      TransactionType `json:"transaction_type"`
	Amount    *big.Int        `json:"amount"` // wei
	ListingID uint64          `json:"listing_id,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// NewTransaction builds a ledger entry stamped with a fresh id.
func NewTransaction(account common.Address, typ TransactionType, amount *big.Int, listingID uint64, at time.Time) *Transaction {
	return &Transaction{
		ID:        uuid.New(),
		Account:   account,
		Type:      typ,
		Amount:    new(big.Int).Set(amount),
		ListingID: listingID,
		CreatedAt: at,
	}
}

// Delta returns the signed balance change the entry represents.
func (t *Transaction) Delta() *big.Int {
	if t.Type.IsCredit() {
		return new(big.Int).Set(t.Amount)
	}
	return new(big.Int).Neg(t.Amount)
}

// TransactionListParams holds filter + pagination for listing ledger entries.
type TransactionListParams struct {
	Account  common.Address
	Type     *TransactionType
	Page     int
	PageSize int
}

// MarketStats aggregates settled activity over a period.
type MarketStats struct {
	Listed       int64    `json:"listed"`
	Sold         int64    `json:"sold"`
	Volume       *big.Int `json:"volume"`        // sum of sale proceeds
	FeesReceived *big.Int `json:"fees_received"` // sum of platform fees
	Retained     *big.Int `json:"retained"`      // sum of retained excess
}
