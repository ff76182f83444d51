package integration

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"testing"
	"time"

	"nft-marketplace/internal/core/domain"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readEvent(t *testing.T, conn *websocket.Conn) domain.EventPayload {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var p domain.EventPayload
	require.NoError(t, json.Unmarshal(raw, &p))
	return p
}

func TestIntegration_EventFeed(t *testing.T) {
	app := newTestApp(t)
	seller, buyer := newWallet(t), newWallet(t)
	app.login(t, seller)
	app.login(t, buyer)
	app.deposit(t, buyer, "5000000000000000000")

	url := "ws" + strings.TrimPrefix(app.server.URL, "http") + "/api/v1/events/ws?since=0"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	resp.Body.Close()
	defer conn.Close()

	id := app.mintAndList(t, seller, twoEther)
	status, body := app.do(t, http.MethodPost, "/api/v1/listings/"+strconv.FormatUint(id, 10)+"/purchase", buyer,
		map[string]any{"payment": twoPlusFee})
	require.Equal(t, http.StatusOK, status, string(body))

	listed := readEvent(t, conn)
	assert.Equal(t, domain.EventListed, listed.Type)
	assert.Equal(t, id, listed.ListingID)
	assert.Equal(t, seller.address.Hex(), listed.Seller)
	assert.Equal(t, twoEther, listed.Price)
	assert.Empty(t, listed.Buyer)

	sold := readEvent(t, conn)
	assert.Equal(t, domain.EventSold, sold.Type)
	assert.Equal(t, id, sold.ListingID)
	assert.Equal(t, buyer.address.Hex(), sold.Buyer)
	assert.Greater(t, sold.Seq, listed.Seq)

	require.Eventually(t, func() bool {
		entries, err := app.redis.Stream(eventStream)
		return err == nil && len(entries) == 2
	}, 3*time.Second, 10*time.Millisecond, "relay mirrors events to the redis stream")
}

func TestIntegration_EventFeedFiltersTypes(t *testing.T) {
	app := newTestApp(t)
	seller, buyer := newWallet(t), newWallet(t)
	app.login(t, seller)
	app.login(t, buyer)
	app.deposit(t, buyer, "5000000000000000000")

	url := "ws" + strings.TrimPrefix(app.server.URL, "http") + "/api/v1/events/ws?since=0&types=sold"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	resp.Body.Close()
	defer conn.Close()

	id := app.mintAndList(t, seller, twoEther)
	status, _ := app.do(t, http.MethodPost, "/api/v1/listings/"+strconv.FormatUint(id, 10)+"/purchase", buyer,
		map[string]any{"payment": twoPlusFee})
	require.Equal(t, http.StatusOK, status)

	got := readEvent(t, conn)
	assert.Equal(t, domain.EventSold, got.Type)
}
