package dto

// Amounts travel as base-10 wei strings. Responses repeat them as decimal
// ether in the matching *_eth field for display.

// LoginRequest is the request body for wallet sign-in.
type LoginRequest struct {
	Address   string `json:"address" binding:"required,eth_address"`
	Nonce     string `json:"nonce" binding:"required,min=8,max=64,safe_id"`
	Timestamp int64  `json:"timestamp" binding:"required"`
	Signature string `json:"signature" binding:"required,hexadecimal"`
}

// LoginResponse is the response body for successful login.
type LoginResponse struct {
	Token  string `json:"token"`
	Expiry int64  `json:"expiry"` // Unix timestamp
}

// MintRequest is the request body for minting an asset to the caller.
type MintRequest struct {
	MetadataURI string `json:"metadata_uri" binding:"required,max=2048,uri"`
}

// ApprovalRequest sets or clears the caller's operator approval.
type ApprovalRequest struct {
	Operator string `json:"operator" binding:"required,eth_address"`
	Approved *bool  `json:"approved" binding:"required"`
}

// TransferRequest moves an asset. From defaults to the caller.
type TransferRequest struct {
	From string `json:"from,omitempty" binding:"omitempty,eth_address"`
	To   string `json:"to" binding:"required,eth_address"`
}

// CreateListingRequest offers an asset for sale. Registry defaults to the
// server's own registry.
type CreateListingRequest struct {
	Registry string `json:"registry,omitempty" binding:"omitempty,eth_address"`
	AssetID  uint64 `json:"asset_id" binding:"required,gt=0"`
	Price    string `json:"price" binding:"required,price"`
}

// PurchaseRequest carries the payment attached to a purchase.
type PurchaseRequest struct {
	Payment string `json:"payment" binding:"required,wei"`
}

// AmountRequest is the request body for deposits and withdrawals.
type AmountRequest struct {
	Amount string `json:"amount" binding:"required,wei"`
}

// RegistryResponse describes the asset registry.
type RegistryResponse struct {
	Address    string `json:"address"`
	Name       string `json:"name"`
	Symbol     string `json:"symbol"`
	TokenCount uint64 `json:"token_count"`
}

// AssetResponse describes one asset.
type AssetResponse struct {
	Registry    string `json:"registry"`
	AssetID     uint64 `json:"asset_id"`
	Owner       string `json:"owner"`
	MetadataURI string `json:"metadata_uri"`
	MintedAt    string `json:"minted_at,omitempty"`
}

// ApprovalResponse reports an operator approval.
type ApprovalResponse struct {
	Registry string `json:"registry"`
	Owner    string `json:"owner"`
	Operator string `json:"operator"`
	Approved bool   `json:"approved"`
}

// MarketplaceResponse exposes the marketplace parameters.
type MarketplaceResponse struct {
	Address      string `json:"address"`
	FeeAccount   string `json:"fee_account"`
	FeePercent   uint64 `json:"fee_percent"`
	ExcessPolicy string `json:"excess_policy"`
	ListingCount uint64 `json:"listing_count"`
}

// ListingResponse describes one listing.
type ListingResponse struct {
	ListingID uint64  `json:"listing_id"`
	Registry  string  `json:"registry"`
	AssetID   uint64  `json:"asset_id"`
	Price     string  `json:"price"`
	PriceEth  string  `json:"price_eth"`
	Seller    string  `json:"seller"`
	Sold      bool    `json:"sold"`
	Buyer     *string `json:"buyer,omitempty"`
	CreatedAt string  `json:"created_at"`
	SoldAt    *string `json:"sold_at,omitempty"`
}

// TotalPayableResponse is the price plus fee a buyer must attach.
type TotalPayableResponse struct {
	ListingID uint64 `json:"listing_id"`
	Price     string `json:"price"`
	Fee       string `json:"fee"`
	Total     string `json:"total"`
	TotalEth  string `json:"total_eth"`
}

// ReceiptResponse summarizes a settled purchase.
type ReceiptResponse struct {
	ListingID      uint64 `json:"listing_id"`
	Registry       string `json:"registry"`
	AssetID        uint64 `json:"asset_id"`
	Seller         string `json:"seller"`
	Buyer          string `json:"buyer"`
	Price          string `json:"price"`
	FeePaid        string `json:"fee_paid"`
	TotalPaid      string `json:"total_paid"`
	TotalPaidEth   string `json:"total_paid_eth"`
	ExcessRefunded string `json:"excess_refunded"`
	ExcessRetained string `json:"excess_retained"`
	SettledAt      string `json:"settled_at"`
}

// BalanceResponse is the response for balance queries, deposits and
// withdrawals.
type BalanceResponse struct {
	Address    string `json:"address"`
	Balance    string `json:"balance"`
	BalanceEth string `json:"balance_eth"`
	UpdatedAt  string `json:"updated_at,omitempty"`
}

// TransactionResponse is one ledger entry.
type TransactionResponse struct {
	ID              string `json:"id"`
	Account         string `json:"account"`
	TransactionType string `json:"transaction_type"`
	Amount          string `json:"amount"`
	AmountEth       string `json:"amount_eth"`
	ListingID       uint64 `json:"listing_id,omitempty"`
	CreatedAt       string `json:"created_at"`
}

// MarketStatsResponse is the response for marketplace statistics.
type MarketStatsResponse struct {
	Period          string `json:"period"`
	Listed          int64  `json:"listed"`
	Sold            int64  `json:"sold"`
	Volume          string `json:"volume"`
	VolumeEth       string `json:"volume_eth"`
	FeesReceived    string `json:"fees_received"`
	FeesReceivedEth string `json:"fees_received_eth"`
	Retained        string `json:"retained"`
	RetainedEth     string `json:"retained_eth"`
}
