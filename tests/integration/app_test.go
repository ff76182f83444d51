package integration

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	httpHandler "nft-marketplace/internal/adapter/http/handler"
	"nft-marketplace/internal/adapter/storage/cache"
	"nft-marketplace/internal/adapter/storage/memory"
	redisStorage "nft-marketplace/internal/adapter/storage/redis"
	"nft-marketplace/internal/adapter/ws"
	"nft-marketplace/internal/core/domain"
	"nft-marketplace/internal/core/ports"
	"nft-marketplace/internal/service"
	"nft-marketplace/pkg/ethsig"

	"github.com/alicebob/miniredis/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

var (
	registryAddr    = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	marketplaceAddr = common.HexToAddress("0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512")
	feeAccount      = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
)

const eventStream = "marketplace:events"

// testApp runs the full stack over the memory store, with miniredis behind
// the nonce, idempotency and rate limit stores and a live event relay.
type testApp struct {
	server *httptest.Server
	redis  *miniredis.Miniredis
	store  ports.Store
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})

	log := zerolog.New(io.Discard)
	store := memory.NewStore(memory.NewDB())
	metrics := service.NopMetrics()

	tokenSvc := service.NewJWTTokenService("test-jwt-secret-key-32bytes!!", time.Hour, "test-issuer")
	authSvc := service.NewAuthService(tokenSvc, redisStorage.NewNonceStore(rdb), 5*time.Minute, 10*time.Minute, log)
	registrySvc := service.NewRegistryService(
		service.RegistryConfig{Address: registryAddr, Name: "DApp NFT", Symbol: "DAPP"},
		store.Assets, store.Sequences, store.Transactor, cache.NewMetadataCache(1), metrics, log,
	)
	accountSvc := service.NewAccountService(store.Accounts, store.Transactions, store.Transactor, log)
	marketSvc, err := service.NewMarketplaceService(
		service.MarketplaceConfig{
			Address:      marketplaceAddr,
			FeeAccount:   feeAccount,
			FeeRate:      1,
			ExcessPolicy: domain.ExcessRefund,
		},
		[]ports.AssetRegistry{registrySvc},
		store.Listings, store.Sequences, store.Outbox, accountSvc,
		store.Idempotency, redisStorage.NewIdempotencyCache(rdb), store.Transactor, metrics, log,
	)
	require.NoError(t, err)

	hub := ws.NewHub(store.Outbox, log)
	stream := redisStorage.NewStreamPublisher(rdb, eventStream, 1000, log)
	relay := service.NewEventRelay(store.Outbox, []ports.EventPublisher{hub, stream}, 20*time.Millisecond, 0, metrics, log)
	marketSvc.SetEventNotifier(relay.Notify)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{}, 2)
	go func() { _ = hub.Run(ctx); done <- struct{}{} }()
	go func() { _ = relay.Run(ctx); done <- struct{}{} }()

	auditSvc := service.NewAuditService(store.Audit, log)
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		AuthSvc:         authSvc,
		RegistrySvc:     registrySvc,
		MarketSvc:       marketSvc,
		AccountSvc:      accountSvc,
		ReportingSvc:    service.NewReportingService(store.Listings, store.Transactions),
		TokenSvc:        tokenSvc,
		HealthCheckers:  []ports.HealthChecker{store.Health, redisStorage.NewHealthCheck(rdb)},
		AuditSvc:        auditSvc,
		EventStream:     hub.ServeWS,
		DefaultRegistry: registryAddr,
		Logger:          log,
	})
	server := httptest.NewServer(router)

	t.Cleanup(func() {
		server.Close()
		cancel()
		<-done
		<-done
		auditSvc.Wait()
		_ = rdb.Close()
		mr.Close()
	})
	return &testApp{server: server, redis: mr, store: store}
}

// wallet is a user holding a real secp256k1 key.
type wallet struct {
	key     *ecdsa.PrivateKey
	address common.Address
	token   string
}

var nonceSeq atomic.Int64

func newWallet(t *testing.T) *wallet {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return &wallet{key: key, address: crypto.PubkeyToAddress(key.PublicKey)}
}

// login signs a fresh nonce and stores the session token on w.
func (a *testApp) login(t *testing.T, w *wallet) {
	t.Helper()
	nonce := fmt.Sprintf("nonce-%08d", nonceSeq.Add(1))
	ts := time.Now().Unix()
	sig, err := ethsig.Sign([]byte(service.LoginMessage(nonce, ts)), w.key)
	require.NoError(t, err)

	status, body := a.do(t, http.MethodPost, "/api/v1/auth/login", nil, map[string]any{
		"address":   w.address.Hex(),
		"nonce":     nonce,
		"timestamp": ts,
		"signature": sig,
	})
	require.Equal(t, http.StatusOK, status, string(body))

	var resp struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(body, &resp))
	require.NotEmpty(t, resp.Data.Token)
	w.token = resp.Data.Token
}

// do sends a JSON request, signed in as w when w is not nil.
func (a *testApp) do(t *testing.T, method, path string, w *wallet, body any, headers ...string) (int, []byte) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, a.server.URL+path, rd)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if w != nil {
		req.Header.Set("Authorization", "Bearer "+w.token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, raw
}

// data decodes the data field of a success envelope into out.
func data(t *testing.T, body []byte, out any) {
	t.Helper()
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(body, &env), string(body))
	require.NoError(t, json.Unmarshal(env.Data, out), string(body))
}

func errorCode(t *testing.T, body []byte) string {
	t.Helper()
	var env struct {
		ErrorCode string `json:"error_code"`
	}
	require.NoError(t, json.Unmarshal(body, &env), string(body))
	return env.ErrorCode
}

// mintAndList mints an asset to seller, approves the marketplace and lists
// the asset at price wei. It returns the listing id.
func (a *testApp) mintAndList(t *testing.T, seller *wallet, price string) uint64 {
	t.Helper()
	status, body := a.do(t, http.MethodPost, "/api/v1/assets", seller, map[string]any{
		"metadata_uri": "ipfs://bafy/token.json",
	})
	require.Equal(t, http.StatusCreated, status, string(body))
	var asset struct {
		AssetID uint64 `json:"asset_id"`
	}
	data(t, body, &asset)

	status, body = a.do(t, http.MethodPut, "/api/v1/approvals", seller, map[string]any{
		"operator": marketplaceAddr.Hex(),
		"approved": true,
	})
	require.Equal(t, http.StatusOK, status, string(body))

	status, body = a.do(t, http.MethodPost, "/api/v1/listings", seller, map[string]any{
		"asset_id": asset.AssetID,
		"price":    price,
	})
	require.Equal(t, http.StatusCreated, status, string(body))
	var listing struct {
		ListingID uint64 `json:"listing_id"`
	}
	data(t, body, &listing)
	return listing.ListingID
}

func (a *testApp) deposit(t *testing.T, w *wallet, amount string) {
	t.Helper()
	status, body := a.do(t, http.MethodPost, "/api/v1/accounts/me/deposit", w, map[string]any{"amount": amount})
	require.Equal(t, http.StatusOK, status, string(body))
}

// balance reads the ledger directly so non-signed-in accounts can be checked.
func (a *testApp) balance(t *testing.T, addr common.Address) *big.Int {
	t.Helper()
	acct, err := a.store.Accounts.Get(context.Background(), addr)
	require.NoError(t, err)
	if acct == nil {
		return new(big.Int)
	}
	return acct.Balance
}

func wei(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("bad wei literal " + s)
	}
	return v
}
