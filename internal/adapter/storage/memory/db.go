// Package memory is a process-local storage backend. Every write transaction
// runs under one lock and is undone from a journal on failure, so it offers
// the same atomicity the postgres backend gets from the database.
package memory

import (
	"context"
	"errors"
	"math/big"
	"sync"

	"nft-marketplace/internal/core/domain"
	"nft-marketplace/internal/core/ports"

	"github.com/ethereum/go-ethereum/common"
)

type assetKey struct {
	registry common.Address
	id       uint64
}

type approvalKey struct {
	registry common.Address
	owner    common.Address
	operator common.Address
}

// DB holds all tables of the memory backend.
type DB struct {
	mu sync.RWMutex

	sequences    map[string]uint64
	assets       map[assetKey]*domain.Asset
	approvals    map[approvalKey]bool
	listings     map[uint64]*domain.Listing
	accounts     map[common.Address]*domain.Account
	transactions []*domain.Transaction
	events       []*domain.Event
	eventSeq     uint64
	idempotency  map[string]*domain.IdempotencyLog
	audit        []*domain.AuditLog
	webhooks     []*domain.WebhookDeliveryLog
}

// NewDB returns an empty database.
func NewDB() *DB {
	return &DB{
		sequences:   make(map[string]uint64),
		assets:      make(map[assetKey]*domain.Asset),
		approvals:   make(map[approvalKey]bool),
		listings:    make(map[uint64]*domain.Listing),
		accounts:    make(map[common.Address]*domain.Account),
		idempotency: make(map[string]*domain.IdempotencyLog),
	}
}

// NewStore wires every memory repository around db.
func NewStore(db *DB) ports.Store {
	return ports.Store{
		Transactor:   NewTransactor(db),
		Sequences:    NewSequenceRepository(db),
		Assets:       NewAssetRepository(db),
		Listings:     NewListingRepository(db),
		Accounts:     NewAccountRepository(db),
		Transactions: NewTransactionRepository(db),
		Outbox:       NewEventOutbox(db),
		Idempotency:  NewIdempotencyRepository(db),
		Audit:        NewAuditRepository(db),
		Webhooks:     NewWebhookRepository(db),
		Health:       NewHealthChecker(),
	}
}

type txKey struct{}

// tx is an open write transaction. undo holds inverse operations in
// application order.
type tx struct {
	db   *DB
	undo []func()
	done bool
}

func (t *tx) onRollback(f func()) {
	if t != nil {
		t.undo = append(t.undo, f)
	}
}

func (t *tx) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

// txFrom returns the live transaction of db carried by ctx, if any.
func (db *DB) txFrom(ctx context.Context) *tx {
	t, ok := ctx.Value(txKey{}).(*tx)
	if !ok || t.db != db || t.done {
		return nil
	}
	return t
}

// write runs fn with the write lock held, joining the transaction in ctx
// when there is one. Outside a transaction the write autocommits.
func (db *DB) write(ctx context.Context, fn func(t *tx) error) error {
	if t := db.txFrom(ctx); t != nil {
		return fn(t)
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	return fn(nil)
}

// read runs fn under the read lock unless ctx already holds the write lock.
func (db *DB) read(ctx context.Context, fn func()) {
	if db.txFrom(ctx) != nil {
		fn()
		return
	}
	db.mu.RLock()
	defer db.mu.RUnlock()
	fn()
}

type transactor struct {
	db *DB
}

// NewTransactor creates a Transactor for db.
func NewTransactor(db *DB) ports.Transactor {
	return &transactor{db: db}
}

func (tr *transactor) WithinTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if tr.db.txFrom(ctx) != nil {
		return fn(ctx)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	tr.db.mu.Lock()
	defer tr.db.mu.Unlock()

	t := &tx{db: tr.db}
	defer func() {
		if r := recover(); r != nil {
			t.rollback()
			t.done = true
			panic(r)
		}
		if err != nil {
			t.rollback()
		}
		t.done = true
	}()

	return fn(context.WithValue(ctx, txKey{}, t))
}

func cloneInt(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}

func cloneAsset(a *domain.Asset) *domain.Asset {
	c := *a
	return &c
}

func cloneEvent(e *domain.Event) domain.Event {
	c := *e
	c.Price = cloneInt(e.Price)
	if e.Buyer != nil {
		b := *e.Buyer
		c.Buyer = &b
	}
	if e.DeliveredAt != nil {
		d := *e.DeliveredAt
		c.DeliveredAt = &d
	}
	return c
}

func cloneTransaction(t *domain.Transaction) domain.Transaction {
	c := *t
	c.Amount = cloneInt(t.Amount)
	return c
}

func paginate(total, page, pageSize int) (start, end int) {
	if pageSize <= 0 {
		return 0, total
	}
	if page < 1 {
		page = 1
	}
	start = (page - 1) * pageSize
	if start > total {
		start = total
	}
	end = start + pageSize
	if end > total {
		end = total
	}
	return start, end
}

type healthChecker struct{}

// NewHealthChecker reports the memory backend as always reachable.
func NewHealthChecker() ports.HealthChecker {
	return healthChecker{}
}

func (healthChecker) Ping(ctx context.Context) error { return ctx.Err() }

func (healthChecker) Name() string { return "memory" }

var errNotFound = errors.New("record not found")
