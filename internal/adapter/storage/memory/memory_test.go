package memory

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"nft-marketplace/internal/core/domain"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	registry = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	alice    = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	bob      = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
)

func TestWithinTx_RollbackUndoesEveryWrite(t *testing.T) {
	ctx := context.Background()
	store := NewStore(NewDB())
	boom := errors.New("boom")

	err := store.Transactor.WithinTx(ctx, func(ctx context.Context) error {
		id, err := store.Sequences.Next(ctx, domain.ListingSequence)
		require.NoError(t, err)
		require.NoError(t, store.Listings.Create(ctx, &domain.Listing{ID: id, Price: big.NewInt(1), Seller: alice}))
		require.NoError(t, store.Accounts.AddBalance(ctx, alice, big.NewInt(50)))
		require.NoError(t, store.Outbox.Append(ctx, &domain.Event{Type: domain.EventListed, ListingID: id, Price: big.NewInt(1)}))
		require.NoError(t, store.Transactions.Create(ctx, domain.NewTransaction(alice, domain.TransactionTypeDeposit, big.NewInt(50), 0, time.Now())))
		return boom
	})
	require.ErrorIs(t, err, boom)

	cur, _ := store.Sequences.Current(ctx, domain.ListingSequence)
	assert.Equal(t, uint64(0), cur, "rolled back id must not be consumed")

	l, _ := store.Listings.Get(ctx, 1)
	assert.Nil(t, l)

	acct, _ := store.Accounts.Get(ctx, alice)
	assert.Equal(t, 0, acct.Balance.Sign())

	pending, _ := store.Outbox.Pending(ctx, 10)
	assert.Empty(t, pending)

	txns, total, _ := store.Transactions.List(ctx, domain.TransactionListParams{Account: alice})
	assert.Empty(t, txns)
	assert.Zero(t, total)
}

func TestWithinTx_CommitKeepsWrites(t *testing.T) {
	ctx := context.Background()
	store := NewStore(NewDB())

	err := store.Transactor.WithinTx(ctx, func(ctx context.Context) error {
		return store.Accounts.AddBalance(ctx, alice, big.NewInt(7))
	})
	require.NoError(t, err)

	acct, _ := store.Accounts.Get(ctx, alice)
	assert.Equal(t, int64(7), acct.Balance.Int64())
}

func TestWithinTx_NestedJoinsOuter(t *testing.T) {
	ctx := context.Background()
	store := NewStore(NewDB())

	err := store.Transactor.WithinTx(ctx, func(ctx context.Context) error {
		inner := store.Transactor.WithinTx(ctx, func(ctx context.Context) error {
			return store.Accounts.AddBalance(ctx, alice, big.NewInt(3))
		})
		require.NoError(t, inner)
		return errors.New("outer fails")
	})
	require.Error(t, err)

	acct, _ := store.Accounts.Get(ctx, alice)
	assert.Equal(t, 0, acct.Balance.Sign(), "inner write belongs to the outer tx")
}

func TestWithinTx_PanicRollsBack(t *testing.T) {
	ctx := context.Background()
	store := NewStore(NewDB())

	assert.Panics(t, func() {
		_ = store.Transactor.WithinTx(ctx, func(ctx context.Context) error {
			_ = store.Accounts.AddBalance(ctx, alice, big.NewInt(3))
			panic("boom")
		})
	})

	acct, _ := store.Accounts.Get(ctx, alice)
	assert.Equal(t, 0, acct.Balance.Sign())

	// lock was released
	require.NoError(t, store.Accounts.AddBalance(ctx, alice, big.NewInt(1)))
}

func TestWithinTx_ConcurrentIncrementsSerialize(t *testing.T) {
	ctx := context.Background()
	store := NewStore(NewDB())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.Transactor.WithinTx(ctx, func(ctx context.Context) error {
				acct, err := store.Accounts.GetForUpdate(ctx, alice)
				if err != nil {
					return err
				}
				_ = acct
				return store.Accounts.AddBalance(ctx, alice, big.NewInt(1))
			})
		}()
	}
	wg.Wait()

	acct, _ := store.Accounts.Get(ctx, alice)
	assert.Equal(t, int64(50), acct.Balance.Int64())
}

func TestAccounts_RejectNegativeBalance(t *testing.T) {
	ctx := context.Background()
	repo := NewAccountRepository(NewDB())

	err := repo.AddBalance(ctx, alice, big.NewInt(-1))
	assert.Error(t, err)

	acct, _ := repo.Get(ctx, alice)
	assert.Equal(t, 0, acct.Balance.Sign())
}

func TestAccounts_LockAllInsideTx(t *testing.T) {
	db := NewDB()
	repo := NewAccountRepository(db)

	err := NewTransactor(db).WithinTx(context.Background(), func(ctx context.Context) error {
		if err := repo.LockAll(ctx, []common.Address{bob, alice}); err != nil {
			return err
		}
		return repo.AddBalance(ctx, alice, big.NewInt(7))
	})
	require.NoError(t, err)

	acct, _ := repo.Get(context.Background(), alice)
	assert.Equal(t, int64(7), acct.Balance.Int64())
}

func TestAssets_OwnerAndApproval(t *testing.T) {
	ctx := context.Background()
	repo := NewAssetRepository(NewDB())

	require.NoError(t, repo.Create(ctx, &domain.Asset{Registry: registry, ID: 1, Owner: alice, MetadataURI: "ipfs://a"}))
	assert.Error(t, repo.Create(ctx, &domain.Asset{Registry: registry, ID: 1, Owner: bob}))

	got, err := repo.Get(ctx, registry, 1)
	require.NoError(t, err)
	require.NotNil(t, got)
	got.Owner = bob // copies only
	again, _ := repo.Get(ctx, registry, 1)
	assert.Equal(t, alice, again.Owner)

	missing, err := repo.Get(ctx, registry, 2)
	assert.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, repo.UpdateOwner(ctx, registry, 1, bob))
	n, _ := repo.CountByOwner(ctx, registry, bob)
	assert.Equal(t, uint64(1), n)

	require.NoError(t, repo.SetApproval(ctx, domain.OperatorApproval{Registry: registry, Owner: bob, Operator: alice, Approved: true}))
	ok, _ := repo.IsApproved(ctx, registry, bob, alice)
	assert.True(t, ok)
	ok, _ = repo.IsApproved(ctx, registry, alice, bob)
	assert.False(t, ok)

	require.NoError(t, repo.SetApproval(ctx, domain.OperatorApproval{Registry: registry, Owner: bob, Operator: alice, Approved: false}))
	ok, _ = repo.IsApproved(ctx, registry, bob, alice)
	assert.False(t, ok)
}

func TestListings_ListFiltersAndPages(t *testing.T) {
	ctx := context.Background()
	repo := NewListingRepository(NewDB())
	now := time.Now()

	for i := uint64(1); i <= 5; i++ {
		seller := alice
		if i%2 == 0 {
			seller = bob
		}
		require.NoError(t, repo.Create(ctx, &domain.Listing{ID: i, Price: big.NewInt(int64(i)), Seller: seller, CreatedAt: now}))
	}
	l, _ := repo.GetForUpdate(ctx, 3)
	require.True(t, l.MarkSold(bob, now))
	require.NoError(t, repo.MarkSold(ctx, l))

	all, total, err := repo.List(ctx, domain.ListingFilter{Page: 1, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	require.Len(t, all, 2)
	assert.Equal(t, uint64(1), all[0].ID)

	bySeller, total, _ := repo.List(ctx, domain.ListingFilter{Seller: &alice})
	assert.Equal(t, int64(3), total)
	assert.Len(t, bySeller, 3)

	purchases, _, _ := repo.List(ctx, domain.ListingFilter{Buyer: &bob})
	require.Len(t, purchases, 1)
	assert.Equal(t, uint64(3), purchases[0].ID)

	listed, sold, _ := repo.CountSince(ctx, nil)
	assert.Equal(t, int64(5), listed)
	assert.Equal(t, int64(1), sold)

	future := now.Add(time.Hour)
	listed, sold, _ = repo.CountSince(ctx, &future)
	assert.Zero(t, listed)
	assert.Zero(t, sold)
}

func TestOutbox_PendingAndDelivered(t *testing.T) {
	ctx := context.Background()
	outbox := NewEventOutbox(NewDB())

	for i := uint64(1); i <= 3; i++ {
		e := &domain.Event{Type: domain.EventListed, ListingID: i, Price: big.NewInt(1)}
		require.NoError(t, outbox.Append(ctx, e))
		assert.Equal(t, i, e.Seq)
	}

	pending, _ := outbox.Pending(ctx, 2)
	require.Len(t, pending, 2)
	assert.Equal(t, uint64(1), pending[0].Seq)

	require.NoError(t, outbox.MarkDelivered(ctx, []uint64{1, 2}, time.Now()))
	pending, _ = outbox.Pending(ctx, 10)
	require.Len(t, pending, 1)
	assert.Equal(t, uint64(3), pending[0].Seq)

	assert.Error(t, outbox.MarkDelivered(ctx, []uint64{9}, time.Now()))

	since, _ := outbox.Since(ctx, 1, 0)
	require.Len(t, since, 2)
	assert.Equal(t, uint64(2), since[0].Seq)
}

func TestIdempotency_FirstWriteWins(t *testing.T) {
	ctx := context.Background()
	repo := NewIdempotencyRepository(NewDB())

	require.NoError(t, repo.Create(ctx, &domain.IdempotencyLog{Key: "k", ListingID: 1, ResponseJSON: []byte("a")}))
	require.NoError(t, repo.Create(ctx, &domain.IdempotencyLog{Key: "k", ListingID: 2, ResponseJSON: []byte("b")}))

	got, err := repo.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), got.ListingID)

	missing, _ := repo.Get(ctx, "nope")
	assert.Nil(t, missing)
}

func TestTransactions_SumByType(t *testing.T) {
	ctx := context.Background()
	repo := NewTransactionRepository(NewDB())
	old := time.Now().Add(-48 * time.Hour)

	require.NoError(t, repo.Create(ctx, domain.NewTransaction(alice, domain.TransactionTypePlatformFee, big.NewInt(2), 1, old)))
	require.NoError(t, repo.Create(ctx, domain.NewTransaction(alice, domain.TransactionTypePlatformFee, big.NewInt(3), 2, time.Now())))
	require.NoError(t, repo.Create(ctx, domain.NewTransaction(bob, domain.TransactionTypeSaleProceeds, big.NewInt(100), 2, time.Now())))

	sum, _ := repo.SumByType(ctx, domain.TransactionTypePlatformFee, nil)
	assert.Equal(t, int64(5), sum.Int64())

	since := time.Now().Add(-time.Hour)
	sum, _ = repo.SumByType(ctx, domain.TransactionTypePlatformFee, &since)
	assert.Equal(t, int64(3), sum.Int64())

	list, total, _ := repo.List(ctx, domain.TransactionListParams{Account: alice, Page: 1, PageSize: 1})
	assert.Equal(t, int64(2), total)
	require.Len(t, list, 1)
	assert.Equal(t, int64(3), list[0].Amount.Int64(), "newest first")
}

func TestWebhooks_ListByEvent(t *testing.T) {
	ctx := context.Background()
	repo := NewWebhookRepository(NewDB())

	require.NoError(t, repo.Create(ctx, &domain.WebhookDeliveryLog{EventSeq: 1, Attempt: 1, Status: domain.WebhookStatusFailed}))
	require.NoError(t, repo.Create(ctx, &domain.WebhookDeliveryLog{EventSeq: 1, Attempt: 2, Status: domain.WebhookStatusDelivered}))
	require.NoError(t, repo.Create(ctx, &domain.WebhookDeliveryLog{EventSeq: 2, Attempt: 1}))

	logs, err := repo.ListByEvent(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, logs, 2)
}

func TestHealthChecker(t *testing.T) {
	h := NewHealthChecker()
	assert.Equal(t, "memory", h.Name())
	assert.NoError(t, h.Ping(context.Background()))
}

func TestNonceStore_RejectsReplayUntilExpiry(t *testing.T) {
	ctx := context.Background()
	store := NewNonceStore()
	now := time.Unix(1700000000, 0)
	store.now = func() time.Time { return now }

	ok, err := store.CheckAndSet(ctx, alice.Hex(), "n-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.CheckAndSet(ctx, alice.Hex(), "n-1", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "replayed nonce")

	ok, err = store.CheckAndSet(ctx, bob.Hex(), "n-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "nonces are scoped per address")

	now = now.Add(2 * time.Minute)
	ok, err = store.CheckAndSet(ctx, alice.Hex(), "n-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "expired nonce may be reused")
}

func TestNonceStore_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewNonceStore().CheckAndSet(ctx, "s", "n", time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
}
