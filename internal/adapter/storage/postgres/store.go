package postgres

import "nft-marketplace/internal/core/ports"

// NewStore wires every PostgreSQL repository onto one pool.
func NewStore(pool Pool) ports.Store {
	return ports.Store{
		Transactor:   NewTransactor(pool),
		Sequences:    NewSequenceRepo(pool),
		Assets:       NewAssetRepo(pool),
		Listings:     NewListingRepo(pool),
		Accounts:     NewAccountRepo(pool),
		Transactions: NewTransactionRepo(pool),
		Outbox:       NewOutboxRepo(pool),
		Idempotency:  NewIdempotencyRepo(pool),
		Audit:        NewAuditRepo(pool),
		Webhooks:     NewWebhookRepo(pool),
		Health:       NewHealthCheck(pool),
	}
}
