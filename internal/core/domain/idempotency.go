package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// IdempotencyLog represents a cached purchase result to prevent double-processing.
type IdempotencyLog struct {
	Key          string    `json:"key"` // Format: "purchase:<buyer>:<client key>"
	ListingID    uint64    `json:"listing_id"`
	ResponseJSON []byte    `json:"response_json"` // Cached receipt to return
	CreatedAt    time.Time `json:"created_at"`
}

// BuildPurchaseIdempotencyKey scopes a client supplied key to the buyer.
func BuildPurchaseIdempotencyKey(buyer common.Address, clientKey string) string {
	return "purchase:" + buyer.Hex() + ":" + clientKey
}
