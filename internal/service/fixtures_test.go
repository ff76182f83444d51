package service

import (
	"context"
	"math/big"
	"testing"

	"nft-marketplace/internal/adapter/storage/memory"
	"nft-marketplace/internal/core/domain"
	"nft-marketplace/internal/core/ports"
	"nft-marketplace/pkg/money"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

var (
	testRegistryAddr = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	testMarketAddr   = common.HexToAddress("0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512")
	testFeeAccount   = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	testSeller       = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	testBuyer        = common.HexToAddress("0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC")
	testOther        = common.HexToAddress("0x90F79bf6EB2c4f870365E785982E1f101E93b906")
)

// testingT is satisfied by *testing.T and *rapid.T.
type testingT interface {
	require.TestingT
	Helper()
}

// testMarket wires the real services over one in-memory store.
type testMarket struct {
	db       *memory.DB
	store    ports.Store
	registry *RegistryServiceImpl
	accounts *AccountServiceImpl
	market   *MarketplaceServiceImpl
}

func newTestMarket(t testingT, policy domain.ExcessPolicy, cache ports.IdempotencyCache) *testMarket {
	t.Helper()

	db := memory.NewDB()
	store := memory.NewStore(db)
	log := newTestLogger()

	registry := NewRegistryService(
		RegistryConfig{Address: testRegistryAddr, Name: "DApp NFT", Symbol: "DAPP"},
		store.Assets, store.Sequences, store.Transactor, nil, nil, log,
	)
	accounts := NewAccountService(store.Accounts, store.Transactions, store.Transactor, log)

	rate, err := domain.NewFeeRate(1)
	require.NoError(t, err)

	market, err := NewMarketplaceService(
		MarketplaceConfig{
			Address:      testMarketAddr,
			FeeAccount:   testFeeAccount,
			FeeRate:      rate,
			ExcessPolicy: policy,
		},
		[]ports.AssetRegistry{registry},
		store.Listings, store.Sequences, store.Outbox, accounts,
		store.Idempotency, cache, store.Transactor, nil, log,
	)
	require.NoError(t, err)

	return &testMarket{db: db, store: store, registry: registry, accounts: accounts, market: market}
}

// mintAndList mints an asset to seller, approves the marketplace and lists it.
func (m *testMarket) mintAndList(t *testing.T, seller common.Address, priceEther string) *domain.Listing {
	t.Helper()
	ctx := context.Background()

	assetID, err := m.registry.Mint(ctx, seller, "ipfs://token")
	require.NoError(t, err)
	require.NoError(t, m.registry.SetApprovalForAll(ctx, seller, testMarketAddr, true))

	l, err := m.market.CreateListing(ctx, ports.CreateListingRequest{
		Registry: testRegistryAddr,
		AssetID:  assetID,
		Price:    money.MustEther(priceEther),
		Seller:   seller,
	})
	require.NoError(t, err)
	return l
}

func (m *testMarket) fund(t *testing.T, account common.Address, ether string) {
	t.Helper()
	_, err := m.accounts.Deposit(context.Background(), account, money.MustEther(ether))
	require.NoError(t, err)
}

func (m *testMarket) balance(t *testing.T, account common.Address) *big.Int {
	t.Helper()
	acct, err := m.accounts.Balance(context.Background(), account)
	require.NoError(t, err)
	return acct.Balance
}
