package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Account is the withdrawable balance held for an address.
// Missing accounts read as a zero balance.
type Account struct {
	Address   common.Address `json:"address"`
	Balance   *big.Int       `json:"balance"` // wei
	UpdatedAt time.Time      `json:"updated_at"`
}

// Covers reports whether the balance is at least amount.
func (a *Account) Covers(amount *big.Int) bool {
	return a.Balance.Cmp(amount) >= 0
}
