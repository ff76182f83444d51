// Package money converts between wire representations of currency amounts.
// Amounts are held as *big.Int in wei; decimal ether strings are for display
// and for operator-facing inputs only.
package money

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// EtherDecimals is the number of wei digits in one ether.
const EtherDecimals = 18

var (
	ErrMalformed = errors.New("amount is not a base-10 integer")
	ErrNegative  = errors.New("amount must not be negative")
	ErrFraction  = errors.New("amount has more than 18 fractional digits")
)

// ParseWei parses a non-negative base-10 wei amount.
func ParseWei(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrMalformed, s)
	}
	if v.Sign() < 0 {
		return nil, ErrNegative
	}
	return v, nil
}

// ParseEther converts a decimal ether string such as "2.02" into wei.
func ParseEther(s string) (*big.Int, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrMalformed, s)
	}
	if d.IsNegative() {
		return nil, ErrNegative
	}
	wei := d.Shift(EtherDecimals)
	if !wei.Equal(wei.Truncate(0)) {
		return nil, ErrFraction
	}
	return wei.BigInt(), nil
}

// FormatEther renders a wei amount as a trimmed decimal ether string.
func FormatEther(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	return decimal.NewFromBigInt(wei, -EtherDecimals).String()
}

// EtherFloat approximates a wei amount in ether. Use for metrics only.
func EtherFloat(wei *big.Int) float64 {
	if wei == nil {
		return 0
	}
	f, _ := decimal.NewFromBigInt(wei, -EtherDecimals).Float64()
	return f
}

// MustEther is ParseEther for literals known to be valid.
func MustEther(s string) *big.Int {
	v, err := ParseEther(s)
	if err != nil {
		panic(err)
	}
	return v
}
