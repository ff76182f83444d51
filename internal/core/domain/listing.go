package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Listing is a sale offer for one asset held in marketplace custody.
// ID 0 is never allocated. Sold only moves from false to true.
type Listing struct {
	ID        uint64          `json:"listing_id"`
	Registry  common.Address  `json:"registry"`
	AssetID   uint64          `json:"asset_id"`
	Price     *big.Int        `json:"price"`
	Seller    common.Address  `json:"seller"`
	Sold      bool            `json:"sold"`
	Buyer     *common.Address `json:"buyer,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	SoldAt    *time.Time      `json:"sold_at,omitempty"`
}

// MarkSold closes the listing for buyer. It reports false when the listing
// was already sold and leaves it untouched.
func (l *Listing) MarkSold(buyer common.Address, at time.Time) bool {
	if l.Sold {
		return false
	}
	l.Sold = true
	l.Buyer = &buyer
	l.SoldAt = &at
	return true
}

// Clone returns a deep copy so stores never hand out shared pointers.
func (l *Listing) Clone() *Listing {
	c := *l
	if l.Price != nil {
		c.Price = new(big.Int).Set(l.Price)
	}
	if l.Buyer != nil {
		b := *l.Buyer
		c.Buyer = &b
	}
	if l.SoldAt != nil {
		s := *l.SoldAt
		c.SoldAt = &s
	}
	return &c
}

// ListingFilter narrows listing queries. Nil fields do not filter.
type ListingFilter struct {
	Seller   *common.Address
	Buyer    *common.Address
	Sold     *bool
	Page     int
	PageSize int
}

// Matches reports whether l passes every set filter field.
func (f ListingFilter) Matches(l *Listing) bool {
	if f.Seller != nil && l.Seller != *f.Seller {
		return false
	}
	if f.Buyer != nil && (l.Buyer == nil || *l.Buyer != *f.Buyer) {
		return false
	}
	if f.Sold != nil && l.Sold != *f.Sold {
		return false
	}
	return true
}

// Offset returns the zero-based index of the first row of the page.
func (f ListingFilter) Offset() int {
	if f.Page <= 1 {
		return 0
	}
	return (f.Page - 1) * f.PageSize
}

// Receipt summarizes a settled purchase.
type Receipt struct {
	ListingID      uint64         `json:"listing_id"`
	Registry       common.Address `json:"registry"`
	AssetID        uint64         `json:"asset_id"`
	Seller         common.Address `json:"seller"`
	Buyer          common.Address `json:"buyer"`
	Price          *big.Int       `json:"price"`
	FeePaid        *big.Int       `json:"fee_paid"`
	TotalPaid      *big.Int       `json:"total_paid"`
	ExcessRefunded *big.Int       `json:"excess_refunded"`
	ExcessRetained *big.Int       `json:"excess_retained"`
	SettledAt      time.Time      `json:"settled_at"`
}
