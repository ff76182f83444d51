package domain

import (
	"fmt"
	"math/big"
)

// MaxFeePercent bounds the marketplace fee rate.
const MaxFeePercent = 100

var hundred = big.NewInt(100)

// FeeRate is the whole-number marketplace fee percentage, fixed when the
// marketplace is constructed.
type FeeRate uint64

// NewFeeRate validates percent against [0, MaxFeePercent].
func NewFeeRate(percent int64) (FeeRate, error) {
	if percent < 0 || percent > MaxFeePercent {
		return 0, fmt.Errorf("fee percent %d out of range [0,%d]", percent, MaxFeePercent)
	}
	return FeeRate(percent), nil
}

// Percent returns the rate as an integer percentage.
func (r FeeRate) Percent() uint64 {
	return uint64(r)
}

// Fee returns floor(price * rate / 100).
func (r FeeRate) Fee(price *big.Int) *big.Int {
	fee := new(big.Int).Mul(price, new(big.Int).SetUint64(uint64(r)))
	// price is non-negative, so Quo truncation equals floor.
	return fee.Quo(fee, hundred)
}

// TotalPayable returns price + fee together with the fee.
func (r FeeRate) TotalPayable(price *big.Int) (total, fee *big.Int) {
	fee = r.Fee(price)
	total = new(big.Int).Add(price, fee)
	return total, fee
}

// ExcessPolicy decides what happens to payment above the total payable.
type ExcessPolicy string

const (
	// ExcessRefund leaves the excess with the buyer.
	ExcessRefund ExcessPolicy = "refund"
	// ExcessRetain keeps the excess on the marketplace account.
	ExcessRetain ExcessPolicy = "retain"
)

// Valid reports whether p is a known policy.
func (p ExcessPolicy) Valid() bool {
	return p == ExcessRefund || p == ExcessRetain
}
