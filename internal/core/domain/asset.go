package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Asset is a unique non-fungible record issued by a registry.
// MetadataURI is fixed at mint and never rewritten.
type Asset struct {
	Registry    common.Address `json:"registry"`
	ID          uint64         `json:"asset_id"`
	Owner       common.Address `json:"owner"`
	MetadataURI string         `json:"metadata_uri"`
	MintedAt    time.Time      `json:"minted_at"`
}

// OperatorApproval grants Operator the right to move every asset Owner holds
// in Registry.
type OperatorApproval struct {
	Registry common.Address
	Owner    common.Address
	Operator common.Address
	Approved bool
}

// RegistryInfo describes a registry collection.
type RegistryInfo struct {
	Address    common.Address `json:"address"`
	Name       string         `json:"name"`
	Symbol     string         `json:"symbol"`
	TokenCount uint64         `json:"token_count"`
}

// AssetSequence names the id counter of a registry's assets.
func AssetSequence(registry common.Address) string {
	return "asset:" + registry.Hex()
}

// ListingSequence names the marketplace listing id counter.
const ListingSequence = "listing"
