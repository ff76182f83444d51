package memory

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"time"

	"nft-marketplace/internal/core/domain"
	"nft-marketplace/internal/core/ports"

	"github.com/ethereum/go-ethereum/common"
)

// --- Sequences ---

type sequenceRepo struct{ db *DB }

// NewSequenceRepository creates a memory-backed SequenceRepository.
func NewSequenceRepository(db *DB) ports.SequenceRepository {
	return &sequenceRepo{db: db}
}

func (r *sequenceRepo) Next(ctx context.Context, name string) (uint64, error) {
	var next uint64
	err := r.db.write(ctx, func(t *tx) error {
		prev := r.db.sequences[name]
		next = prev + 1
		r.db.sequences[name] = next
		t.onRollback(func() { r.db.sequences[name] = prev })
		return nil
	})
	return next, err
}

func (r *sequenceRepo) Current(ctx context.Context, name string) (uint64, error) {
	var cur uint64
	r.db.read(ctx, func() { cur = r.db.sequences[name] })
	return cur, nil
}

// --- Assets ---

type assetRepo struct{ db *DB }

// NewAssetRepository creates a memory-backed AssetRepository.
func NewAssetRepository(db *DB) ports.AssetRepository {
	return &assetRepo{db: db}
}

func (r *assetRepo) Create(ctx context.Context, asset *domain.Asset) error {
	k := assetKey{asset.Registry, asset.ID}
	return r.db.write(ctx, func(t *tx) error {
		if _, ok := r.db.assets[k]; ok {
			return fmt.Errorf("asset %d already exists", asset.ID)
		}
		r.db.assets[k] = cloneAsset(asset)
		t.onRollback(func() { delete(r.db.assets, k) })
		return nil
	})
}

func (r *assetRepo) Get(ctx context.Context, registry common.Address, id uint64) (*domain.Asset, error) {
	var out *domain.Asset
	r.db.read(ctx, func() {
		if a, ok := r.db.assets[assetKey{registry, id}]; ok {
			out = cloneAsset(a)
		}
	})
	return out, nil
}

// GetForUpdate is Get: the transaction already holds the only write lock.
func (r *assetRepo) GetForUpdate(ctx context.Context, registry common.Address, id uint64) (*domain.Asset, error) {
	return r.Get(ctx, registry, id)
}

func (r *assetRepo) UpdateOwner(ctx context.Context, registry common.Address, id uint64, owner common.Address) error {
	return r.db.write(ctx, func(t *tx) error {
		a, ok := r.db.assets[assetKey{registry, id}]
		if !ok {
			return fmt.Errorf("update owner of asset %d: %w", id, errNotFound)
		}
		prev := a.Owner
		a.Owner = owner
		t.onRollback(func() { a.Owner = prev })
		return nil
	})
}

func (r *assetRepo) CountByOwner(ctx context.Context, registry common.Address, owner common.Address) (uint64, error) {
	var n uint64
	r.db.read(ctx, func() {
		for k, a := range r.db.assets {
			if k.registry == registry && a.Owner == owner {
				n++
			}
		}
	})
	return n, nil
}

func (r *assetRepo) SetApproval(ctx context.Context, approval domain.OperatorApproval) error {
	k := approvalKey{approval.Registry, approval.Owner, approval.Operator}
	return r.db.write(ctx, func(t *tx) error {
		prev, had := r.db.approvals[k]
		if approval.Approved {
			r.db.approvals[k] = true
		} else {
			delete(r.db.approvals, k)
		}
		t.onRollback(func() {
			if had {
				r.db.approvals[k] = prev
			} else {
				delete(r.db.approvals, k)
			}
		})
		return nil
	})
}

func (r *assetRepo) IsApproved(ctx context.Context, registry, owner, operator common.Address) (bool, error) {
	var ok bool
	r.db.read(ctx, func() { ok = r.db.approvals[approvalKey{registry, owner, operator}] })
	return ok, nil
}

// --- Listings ---

type listingRepo struct{ db *DB }

// NewListingRepository creates a memory-backed ListingRepository.
func NewListingRepository(db *DB) ports.ListingRepository {
	return &listingRepo{db: db}
}

func (r *listingRepo) Create(ctx context.Context, l *domain.Listing) error {
	return r.db.write(ctx, func(t *tx) error {
		if _, ok := r.db.listings[l.ID]; ok {
			return fmt.Errorf("listing %d already exists", l.ID)
		}
		r.db.listings[l.ID] = l.Clone()
		id := l.ID
		t.onRollback(func() { delete(r.db.listings, id) })
		return nil
	})
}

func (r *listingRepo) Get(ctx context.Context, id uint64) (*domain.Listing, error) {
	var out *domain.Listing
	r.db.read(ctx, func() {
		if l, ok := r.db.listings[id]; ok {
			out = l.Clone()
		}
	})
	return out, nil
}

// GetForUpdate is Get: the transaction already holds the only write lock.
func (r *listingRepo) GetForUpdate(ctx context.Context, id uint64) (*domain.Listing, error) {
	return r.Get(ctx, id)
}

func (r *listingRepo) MarkSold(ctx context.Context, l *domain.Listing) error {
	return r.db.write(ctx, func(t *tx) error {
		cur, ok := r.db.listings[l.ID]
		if !ok {
			return fmt.Errorf("mark listing %d sold: %w", l.ID, errNotFound)
		}
		prev := cur.Clone()
		r.db.listings[l.ID] = l.Clone()
		t.onRollback(func() { r.db.listings[prev.ID] = prev })
		return nil
	})
}

func (r *listingRepo) List(ctx context.Context, filter domain.ListingFilter) ([]domain.Listing, int64, error) {
	var matched []*domain.Listing
	r.db.read(ctx, func() {
		for _, l := range r.db.listings {
			if filter.Matches(l) {
				matched = append(matched, l.Clone())
			}
		}
	})
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })

	start, end := paginate(len(matched), filter.Page, filter.PageSize)
	out := make([]domain.Listing, 0, end-start)
	for _, l := range matched[start:end] {
		out = append(out, *l)
	}
	return out, int64(len(matched)), nil
}

func (r *listingRepo) CountSince(ctx context.Context, since *time.Time) (listed, sold int64, err error) {
	r.db.read(ctx, func() {
		for _, l := range r.db.listings {
			if since == nil || !l.CreatedAt.Before(*since) {
				listed++
			}
			if l.Sold && (since == nil || (l.SoldAt != nil && !l.SoldAt.Before(*since))) {
				sold++
			}
		}
	})
	return listed, sold, nil
}

// --- Accounts ---

type accountRepo struct{ db *DB }

// NewAccountRepository creates a memory-backed AccountRepository.
func NewAccountRepository(db *DB) ports.AccountRepository {
	return &accountRepo{db: db}
}

func (r *accountRepo) Get(ctx context.Context, address common.Address) (*domain.Account, error) {
	out := &domain.Account{Address: address, Balance: new(big.Int)}
	r.db.read(ctx, func() {
		if a, ok := r.db.accounts[address]; ok {
			out.Balance = cloneInt(a.Balance)
			out.UpdatedAt = a.UpdatedAt
		}
	})
	return out, nil
}

// GetForUpdate is Get: the transaction already holds the only write lock.
func (r *accountRepo) GetForUpdate(ctx context.Context, address common.Address) (*domain.Account, error) {
	return r.Get(ctx, address)
}

// LockAll only has to join the write lock; it serializes every writer.
func (r *accountRepo) LockAll(ctx context.Context, _ []common.Address) error {
	return r.db.write(ctx, func(*tx) error { return nil })
}

func (r *accountRepo) AddBalance(ctx context.Context, address common.Address, delta *big.Int) error {
	return r.db.write(ctx, func(t *tx) error {
		a, ok := r.db.accounts[address]
		if !ok {
			a = &domain.Account{Address: address, Balance: new(big.Int)}
			r.db.accounts[address] = a
		}
		next := new(big.Int).Add(a.Balance, delta)
		if next.Sign() < 0 {
			if !ok {
				delete(r.db.accounts, address)
			}
			return fmt.Errorf("balance of %s would go negative", address.Hex())
		}
		prevBalance, prevUpdated := a.Balance, a.UpdatedAt
		a.Balance = next
		a.UpdatedAt = time.Now()
		t.onRollback(func() {
			if !ok {
				delete(r.db.accounts, address)
				return
			}
			a.Balance, a.UpdatedAt = prevBalance, prevUpdated
		})
		return nil
	})
}

// --- Ledger ---

type transactionRepo struct{ db *DB }

// NewTransactionRepository creates a memory-backed TransactionRepository.
func NewTransactionRepository(db *DB) ports.TransactionRepository {
	return &transactionRepo{db: db}
}

func (r *transactionRepo) Create(ctx context.Context, txn *domain.Transaction) error {
	return r.db.write(ctx, func(t *tx) error {
		c := cloneTransaction(txn)
		r.db.transactions = append(r.db.transactions, &c)
		n := len(r.db.transactions) - 1
		t.onRollback(func() { r.db.transactions = r.db.transactions[:n] })
		return nil
	})
}

func (r *transactionRepo) List(ctx context.Context, params domain.TransactionListParams) ([]domain.Transaction, int64, error) {
	var matched []domain.Transaction
	r.db.read(ctx, func() {
		// newest first
		for i := len(r.db.transactions) - 1; i >= 0; i-- {
			txn := r.db.transactions[i]
			if txn.Account != params.Account {
				continue
			}
			if params.Type != nil && txn.Type != *params.Type {
				continue
			}
			matched = append(matched, cloneTransaction(txn))
		}
	})
	start, end := paginate(len(matched), params.Page, params.PageSize)
	return matched[start:end], int64(len(matched)), nil
}

func (r *transactionRepo) SumByType(ctx context.Context, typ domain.TransactionType, since *time.Time) (*big.Int, error) {
	sum := new(big.Int)
	r.db.read(ctx, func() {
		for _, txn := range r.db.transactions {
			if txn.Type != typ {
				continue
			}
			if since != nil && txn.CreatedAt.Before(*since) {
				continue
			}
			sum.Add(sum, txn.Amount)
		}
	})
	return sum, nil
}

// --- Outbox ---

type eventOutbox struct{ db *DB }

// NewEventOutbox creates a memory-backed EventOutbox.
func NewEventOutbox(db *DB) ports.EventOutbox {
	return &eventOutbox{db: db}
}

func (o *eventOutbox) Append(ctx context.Context, e *domain.Event) error {
	return o.db.write(ctx, func(t *tx) error {
		prevSeq := o.db.eventSeq
		o.db.eventSeq++
		e.Seq = o.db.eventSeq
		c := cloneEvent(e)
		o.db.events = append(o.db.events, &c)
		n := len(o.db.events) - 1
		t.onRollback(func() {
			o.db.events = o.db.events[:n]
			o.db.eventSeq = prevSeq
		})
		return nil
	})
}

func (o *eventOutbox) Pending(ctx context.Context, limit int) ([]domain.Event, error) {
	var out []domain.Event
	o.db.read(ctx, func() {
		for _, e := range o.db.events {
			if e.DeliveredAt != nil {
				continue
			}
			out = append(out, cloneEvent(e))
			if limit > 0 && len(out) == limit {
				return
			}
		}
	})
	return out, nil
}

func (o *eventOutbox) MarkDelivered(ctx context.Context, seqs []uint64, at time.Time) error {
	return o.db.write(ctx, func(t *tx) error {
		for _, seq := range seqs {
			if seq == 0 || seq > uint64(len(o.db.events)) {
				return fmt.Errorf("event %d: %w", seq, errNotFound)
			}
			e := o.db.events[seq-1]
			if e.DeliveredAt != nil {
				continue
			}
			ts := at
			e.DeliveredAt = &ts
			t.onRollback(func() { e.DeliveredAt = nil })
		}
		return nil
	})
}

func (o *eventOutbox) Since(ctx context.Context, afterSeq uint64, limit int) ([]domain.Event, error) {
	var out []domain.Event
	o.db.read(ctx, func() {
		for i := afterSeq; i < uint64(len(o.db.events)); i++ {
			out = append(out, cloneEvent(o.db.events[i]))
			if limit > 0 && len(out) == limit {
				return
			}
		}
	})
	return out, nil
}

// --- Idempotency ---

type idempotencyRepo struct{ db *DB }

// NewIdempotencyRepository creates a memory-backed IdempotencyRepository.
func NewIdempotencyRepository(db *DB) ports.IdempotencyRepository {
	return &idempotencyRepo{db: db}
}

func (r *idempotencyRepo) Create(ctx context.Context, log *domain.IdempotencyLog) error {
	return r.db.write(ctx, func(t *tx) error {
		if _, ok := r.db.idempotency[log.Key]; ok {
			return nil // ON CONFLICT DO NOTHING
		}
		c := *log
		c.ResponseJSON = append([]byte(nil), log.ResponseJSON...)
		r.db.idempotency[log.Key] = &c
		t.onRollback(func() { delete(r.db.idempotency, c.Key) })
		return nil
	})
}

func (r *idempotencyRepo) Get(ctx context.Context, key string) (*domain.IdempotencyLog, error) {
	var out *domain.IdempotencyLog
	r.db.read(ctx, func() {
		if l, ok := r.db.idempotency[key]; ok {
			c := *l
			out = &c
		}
	})
	return out, nil
}

// --- Audit ---

type auditRepo struct{ db *DB }

// NewAuditRepository creates a memory-backed AuditRepository.
func NewAuditRepository(db *DB) ports.AuditRepository {
	return &auditRepo{db: db}
}

func (r *auditRepo) Create(ctx context.Context, log *domain.AuditLog) error {
	return r.db.write(ctx, func(t *tx) error {
		c := *log
		r.db.audit = append(r.db.audit, &c)
		n := len(r.db.audit) - 1
		t.onRollback(func() { r.db.audit = r.db.audit[:n] })
		return nil
	})
}

// AuditLogs returns a snapshot of recorded audit entries.
func (db *DB) AuditLogs() []domain.AuditLog {
	db.mu.RLock()
	defer db.mu.RUnlock()
	out := make([]domain.AuditLog, 0, len(db.audit))
	for _, l := range db.audit {
		out = append(out, *l)
	}
	return out
}

// --- Webhooks ---

type webhookRepo struct{ db *DB }

// NewWebhookRepository creates a memory-backed WebhookRepository.
func NewWebhookRepository(db *DB) ports.WebhookRepository {
	return &webhookRepo{db: db}
}

func (r *webhookRepo) Create(ctx context.Context, log *domain.WebhookDeliveryLog) error {
	return r.db.write(ctx, func(t *tx) error {
		c := *log
		r.db.webhooks = append(r.db.webhooks, &c)
		n := len(r.db.webhooks) - 1
		t.onRollback(func() { r.db.webhooks = r.db.webhooks[:n] })
		return nil
	})
}

func (r *webhookRepo) ListByEvent(ctx context.Context, seq uint64) ([]domain.WebhookDeliveryLog, error) {
	var out []domain.WebhookDeliveryLog
	r.db.read(ctx, func() {
		for _, l := range r.db.webhooks {
			if l.EventSeq == seq {
				out = append(out, *l)
			}
		}
	})
	return out, nil
}
