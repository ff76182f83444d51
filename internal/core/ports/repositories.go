package ports

//go:generate mockgen -source=repositories.go -destination=mocks/mock_repositories.go -package=mocks

import (
	"context"
	"math/big"
	"time"

	"nft-marketplace/internal/core/domain"

	"github.com/ethereum/go-ethereum/common"
)

// Transactor runs fn inside a storage transaction. The transaction travels in
// the context handed to fn; repositories pick it up from there. Nested calls
// join the outer transaction. fn's error rolls everything back.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// SequenceRepository hands out gapless, monotonically increasing ids.
// Next inside a rolled back transaction does not consume the id.
type SequenceRepository interface {
	Next(ctx context.Context, name string) (uint64, error)
	Current(ctx context.Context, name string) (uint64, error)
}

// AssetRepository persists registry assets and operator approvals.
// Get methods return nil, nil when the asset does not exist.
type AssetRepository interface {
	Create(ctx context.Context, asset *domain.Asset) error
	Get(ctx context.Context, registry common.Address, id uint64) (*domain.Asset, error)
	GetForUpdate(ctx context.Context, registry common.Address, id uint64) (*domain.Asset, error)
	UpdateOwner(ctx context.Context, registry common.Address, id uint64, owner common.Address) error
	CountByOwner(ctx context.Context, registry common.Address, owner common.Address) (uint64, error)
	SetApproval(ctx context.Context, approval domain.OperatorApproval) error
	IsApproved(ctx context.Context, registry, owner, operator common.Address) (bool, error)
}

// ListingRepository persists marketplace listings.
// Get methods return nil, nil when the listing does not exist.
type ListingRepository interface {
	Create(ctx context.Context, listing *domain.Listing) error
	Get(ctx context.Context, id uint64) (*domain.Listing, error)
	GetForUpdate(ctx context.Context, id uint64) (*domain.Listing, error)
	// MarkSold persists Sold, Buyer and SoldAt of an already mutated listing.
	MarkSold(ctx context.Context, listing *domain.Listing) error
	List(ctx context.Context, filter domain.ListingFilter) ([]domain.Listing, int64, error)
	// CountSince counts listings created and sold at or after since (nil = all time).
	CountSince(ctx context.Context, since *time.Time) (listed, sold int64, err error)
}

// AccountRepository persists withdrawable balances. A missing account reads
// as a zero balance.
type AccountRepository interface {
	Get(ctx context.Context, address common.Address) (*domain.Account, error)
	GetForUpdate(ctx context.Context, address common.Address) (*domain.Account, error)
	// LockAll row-locks every address, creating empty accounts as needed,
	// in a fixed order independent of the argument order.
	LockAll(ctx context.Context, addresses []common.Address) error
	// AddBalance applies a signed delta. Callers check coverage first.
	AddBalance(ctx context.Context, address common.Address, delta *big.Int) error
}

// TransactionRepository defines persistence operations for ledger entries.
type TransactionRepository interface {
	Create(ctx context.Context, transaction *domain.Transaction) error
	List(ctx context.Context, params domain.TransactionListParams) ([]domain.Transaction, int64, error)
	// SumByType totals entries of typ created at or after since (nil = all time).
	SumByType(ctx context.Context, typ domain.TransactionType, since *time.Time) (*big.Int, error)
}

// EventOutbox stores events transactionally with the state change they
// describe. Append assigns Seq.
type EventOutbox interface {
	Append(ctx context.Context, event *domain.Event) error
	// Pending returns undelivered events in Seq order.
	Pending(ctx context.Context, limit int) ([]domain.Event, error)
	MarkDelivered(ctx context.Context, seqs []uint64, at time.Time) error
	// Since returns events with Seq > afterSeq regardless of delivery, in order.
	Since(ctx context.Context, afterSeq uint64, limit int) ([]domain.Event, error)
}

// IdempotencyRepository defines persistence for idempotency logs (DB backup).
type IdempotencyRepository interface {
	Create(ctx context.Context, log *domain.IdempotencyLog) error
	Get(ctx context.Context, key string) (*domain.IdempotencyLog, error)
}

// AuditRepository persists audit entries.
type AuditRepository interface {
	Create(ctx context.Context, log *domain.AuditLog) error
}

// WebhookRepository records webhook delivery attempts.
type WebhookRepository interface {
	Create(ctx context.Context, log *domain.WebhookDeliveryLog) error
	ListByEvent(ctx context.Context, seq uint64) ([]domain.WebhookDeliveryLog, error)
}

// Store bundles every repository of one storage backend.
type Store struct {
	Transactor   Transactor
	Sequences    SequenceRepository
	Assets       AssetRepository
	Listings     ListingRepository
	Accounts     AccountRepository
	Transactions TransactionRepository
	Outbox       EventOutbox
	Idempotency  IdempotencyRepository
	Audit        AuditRepository
	Webhooks     WebhookRepository
	Health       HealthChecker
}
