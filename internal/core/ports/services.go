package ports

//go:generate mockgen -source=services.go -destination=mocks/mock_services.go -package=mocks

import (
	"context"
	"math/big"
	"time"

	"nft-marketplace/internal/core/domain"

	"github.com/ethereum/go-ethereum/common"
)

// AssetRegistry is the ownership-transfer capability the marketplace needs
// from any registry it lists assets of.
type AssetRegistry interface {
	Address() common.Address
	Mint(ctx context.Context, caller common.Address, metadataURI string) (uint64, error)
	OwnerOf(ctx context.Context, assetID uint64) (common.Address, error)
	// Transfer moves assetID from -> to. caller must be from or an operator
	// approved by from.
	Transfer(ctx context.Context, caller common.Address, assetID uint64, from, to common.Address) error
	SetApprovalForAll(ctx context.Context, owner, operator common.Address, approved bool) error
	IsApprovedForAll(ctx context.Context, owner, operator common.Address) (bool, error)
}

// RegistryService adds collection queries on top of AssetRegistry.
type RegistryService interface {
	AssetRegistry
	Info(ctx context.Context) (*domain.RegistryInfo, error)
	BalanceOf(ctx context.Context, owner common.Address) (uint64, error)
	TokenURI(ctx context.Context, assetID uint64) (string, error)
	GetAsset(ctx context.Context, assetID uint64) (*domain.Asset, error)
}

// SignatureService handles HMAC-SHA256 signing and verification.
type SignatureService interface {
	Sign(secretKey string, payload string) string
	Verify(secretKey string, payload string, signature string) bool
	BuildCanonicalString(timestamp int64, eventID string, body string) string
}

// TokenService handles JWT token operations.
type TokenService interface {
	Generate(address common.Address) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	Address common.Address
}

// IdempotencyCache is the Redis-layer idempotency check (fast path).
type IdempotencyCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // Returns cached response JSON or nil
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// NonceStore manages nonce uniqueness for replay attack prevention.
type NonceStore interface {
	// CheckAndSet atomically checks if nonce exists, sets it if not.
	// Returns true if nonce is new (valid), false if already used.
	CheckAndSet(ctx context.Context, scope string, nonce string, ttl time.Duration) (bool, error)
}

// MetadataCache caches immutable token URIs.
type MetadataCache interface {
	Get(registry common.Address, assetID uint64) (string, bool)
	Set(registry common.Address, assetID uint64, uri string)
}

// EventPublisher delivers one event to a downstream sink.
type EventPublisher interface {
	Name() string
	Publish(ctx context.Context, event domain.EventPayload) error
}

// --- Service Ports (Business Logic) ---

// MarketplaceService defines listing and settlement business logic.
type MarketplaceService interface {
	Address() common.Address
	Info(ctx context.Context) (*MarketplaceInfo, error)
	CreateListing(ctx context.Context, req CreateListingRequest) (*domain.Listing, error)
	GetListing(ctx context.Context, id uint64) (*domain.Listing, error)
	ListListings(ctx context.Context, filter domain.ListingFilter) ([]domain.Listing, int64, error)
	ListingCount(ctx context.Context) (uint64, error)
	TotalPayable(ctx context.Context, id uint64) (total, fee *big.Int, err error)
	Purchase(ctx context.Context, req PurchaseRequest) (*domain.Receipt, error)
}

// MarketplaceInfo exposes the marketplace's fixed parameters.
type MarketplaceInfo struct {
	Address      common.Address
	FeeAccount   common.Address
	FeePercent   uint64
	ExcessPolicy domain.ExcessPolicy
	ListingCount uint64
}

// CreateListingRequest holds validated input for listing creation.
type CreateListingRequest struct {
	Registry common.Address
	AssetID  uint64
	Price    *big.Int
	Seller   common.Address
}

// PurchaseRequest holds validated input for a purchase.
type PurchaseRequest struct {
	ListingID      uint64
	Buyer          common.Address
	Payment        *big.Int
	IdempotencyKey string // optional
}

// FundsService is the currency primitive used by settlement. Lock, Debit
// and Credit must run inside the caller's transaction; Lock the accounts a
// settlement touches before moving funds so row locks are taken in one order.
type FundsService interface {
	Lock(ctx context.Context, accounts ...common.Address) error
	Debit(ctx context.Context, account common.Address, amount *big.Int, typ domain.TransactionType, listingID uint64) error
	Credit(ctx context.Context, account common.Address, amount *big.Int, typ domain.TransactionType, listingID uint64) error
}

// AccountService defines deposit/withdraw and balance queries.
type AccountService interface {
	FundsService
	Deposit(ctx context.Context, account common.Address, amount *big.Int) (*domain.Account, error)
	Withdraw(ctx context.Context, account common.Address, amount *big.Int) (*domain.Account, error)
	Balance(ctx context.Context, account common.Address) (*domain.Account, error)
	Transactions(ctx context.Context, params domain.TransactionListParams) ([]domain.Transaction, int64, error)
}

// AuthService defines wallet sign-in.
type AuthService interface {
	Login(ctx context.Context, req LoginRequest) (string, time.Time, error) // token, expiry, error
}

// LoginRequest carries a personal_sign login proof.
type LoginRequest struct {
	Address   common.Address
	Nonce     string
	Timestamp int64
	Signature string // 0x-prefixed 65 byte hex
}

// ReportingService defines marketplace statistics.
type ReportingService interface {
	GetMarketStats(ctx context.Context, period string) (*domain.MarketStats, error)
}

// AuditService records audit entries.
type AuditService interface {
	Log(ctx context.Context, entry *domain.AuditLog)
}
