package integration

import (
	"math/big"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestConcurrentPurchases races many buyers for one listing. Exactly one
// settles; every other attempt is rejected as already sold and no wei is
// created or lost.
func TestConcurrentPurchases(t *testing.T) {
	app := newTestApp(t)
	seller := newWallet(t)
	app.login(t, seller)
	id := app.mintAndList(t, seller, twoEther)
	path := "/api/v1/listings/" + strconv.FormatUint(id, 10) + "/purchase"

	const buyers = 25
	const deposit = "3000000000000000000"
	wallets := make([]*wallet, buyers)
	for i := range wallets {
		wallets[i] = newWallet(t)
		app.login(t, wallets[i])
		app.deposit(t, wallets[i], deposit)
	}

	var (
		wg        sync.WaitGroup
		settled   atomic.Int64
		soldOut   atomic.Int64
		unexpected atomic.Int64
	)
	start := make(chan struct{})
	for _, w := range wallets {
		wg.Add(1)
		go func(w *wallet) {
			defer wg.Done()
			<-start
			status, _ := app.do(t, http.MethodPost, path, w, map[string]any{"payment": twoPlusFee})
			switch status {
			case http.StatusOK:
				settled.Add(1)
			case http.StatusConflict:
				soldOut.Add(1)
			default:
				unexpected.Add(1)
			}
		}(w)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int64(1), settled.Load())
	assert.Equal(t, int64(buyers-1), soldOut.Load())
	assert.Zero(t, unexpected.Load())

	sum := new(big.Int)
	for _, w := range wallets {
		sum.Add(sum, app.balance(t, w.address))
	}
	sum.Add(sum, app.balance(t, seller.address))
	sum.Add(sum, app.balance(t, feeAccount))

	want := new(big.Int).Mul(wei(deposit), big.NewInt(buyers))
	assert.Equal(t, want, sum, "settlement conserves wei")
	assert.Equal(t, wei(twoEther), app.balance(t, seller.address))
}

// TestConcurrentWithdrawals drains one account from many goroutines; the
// balance never goes negative and exactly the covered withdrawals succeed.
func TestConcurrentWithdrawals(t *testing.T) {
	app := newTestApp(t)
	w := newWallet(t)
	app.login(t, w)
	app.deposit(t, w, "2500")

	const attempts = 50
	var (
		wg      sync.WaitGroup
		ok      atomic.Int64
		refused atomic.Int64
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			status, _ := app.do(t, http.MethodPost, "/api/v1/accounts/me/withdraw", w, map[string]any{"amount": "100"})
			switch status {
			case http.StatusOK:
				ok.Add(1)
			case http.StatusPaymentRequired:
				refused.Add(1)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int64(attempts), ok.Load()+refused.Load())
	assert.Equal(t, int64(25), ok.Load())
	assert.Zero(t, app.balance(t, w.address).Sign())
}
