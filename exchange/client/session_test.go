package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betbot/gohyper/exchange/signing"
	"github.com/betbot/gohyper/exchange/types"
	"github.com/betbot/gohyper/exchange/ws"
)

const testPrivateKey = "e908f86dbb4d55ac876378565aafeabc187f6690f046459397b17d9b9a19688e"

type wireEnvelope struct {
	Action       json.RawMessage `json:"action"`
	Nonce        uint64          `json:"nonce"`
	Signature    types.Signature `json:"signature"`
	VaultAddress *string         `json:"vaultAddress"`
	ExpiresAfter *uint64         `json:"expiresAfter"`
}

func (e wireEnvelope) actionType() string {
	var v struct {
		Type string `json:"type"`
	}
	_ = json.Unmarshal(e.Action, &v)
	return v.Type
}

type wsFrame struct {
	Method  string `json:"method"`
	ID      uint64 `json:"id"`
	Request struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	} `json:"request"`
	Subscription types.Subscription `json:"subscription"`
}

type venueConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *venueConn) send(raw string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.WriteMessage(websocket.TextMessage, []byte(raw))
}

// fakeVenue 同时提供 /ws、/exchange、/info 的模拟交易所
type fakeVenue struct {
	srv      *httptest.Server
	upgrader websocket.Upgrader

	mu        sync.Mutex
	envelopes []wireEnvelope
	conns     []*venueConn
	// onAction 返回 /exchange 响应体；返回空串表示不响应
	onAction func(env wireEnvelope) string
	onInfo   func(req map[string]any) string
}

func newFakeVenue(t *testing.T) *fakeVenue {
	t.Helper()
	v := &fakeVenue{
		onAction: func(wireEnvelope) string { return `{"status":"ok","response":{"type":"default"}}` },
		onInfo:   func(map[string]any) string { return `{}` },
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", v.handleWS)
	mux.HandleFunc("/exchange", v.handleExchange)
	mux.HandleFunc("/info", v.handleInfo)
	v.srv = httptest.NewServer(mux)
	t.Cleanup(func() {
		v.mu.Lock()
		for _, c := range v.conns {
			c.conn.Close()
		}
		v.mu.Unlock()
		v.srv.Close()
	})
	return v
}

func (v *fakeVenue) set(onAction func(wireEnvelope) string) {
	v.mu.Lock()
	v.onAction = onAction
	v.mu.Unlock()
}

func (v *fakeVenue) record(env wireEnvelope) func(wireEnvelope) string {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.envelopes = append(v.envelopes, env)
	return v.onAction
}

func (v *fakeVenue) lastEnvelope() wireEnvelope {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.envelopes[len(v.envelopes)-1]
}

func (v *fakeVenue) handleExchange(w http.ResponseWriter, r *http.Request) {
	var env wireEnvelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	h := v.record(env)
	_, _ = w.Write([]byte(h(env)))
}

func (v *fakeVenue) handleInfo(w http.ResponseWriter, r *http.Request) {
	var req map[string]any
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	v.mu.Lock()
	h := v.onInfo
	v.mu.Unlock()
	_, _ = w.Write([]byte(h(req)))
}

func (v *fakeVenue) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := v.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	vc := &venueConn{conn: conn}
	v.mu.Lock()
	v.conns = append(v.conns, vc)
	v.mu.Unlock()
	send := vc.send
	for {
		var f wsFrame
		if err := conn.ReadJSON(&f); err != nil {
			return
		}
		switch f.Method {
		case "ping":
			send(`{"channel":"pong"}`)
		case "subscribe":
			send(`{"channel":"subscriptionResponse","data":{"method":"subscribe"}}`)
		case "post":
			switch f.Request.Type {
			case "action":
				var env wireEnvelope
				_ = json.Unmarshal(f.Request.Payload, &env)
				body := v.record(env)(env)
				if body == "" {
					continue
				}
				send(fmt.Sprintf(`{"channel":"post","data":{"id":%d,"response":{"type":"action","payload":%s}}}`, f.ID, body))
			case "info":
				var req map[string]any
				_ = json.Unmarshal(f.Request.Payload, &req)
				v.mu.Lock()
				h := v.onInfo
				v.mu.Unlock()
				send(fmt.Sprintf(`{"channel":"post","data":{"id":%d,"response":{"type":"info","payload":{"type":%q,"data":%s}}}}`, f.ID, req["type"], h(req)))
			}
		}
	}
}

func (v *fakeVenue) push(raw string) {
	v.mu.Lock()
	conns := append([]*venueConn(nil), v.conns...)
	v.mu.Unlock()
	for _, c := range conns {
		c.send(raw)
	}
}

func testDirectory() *types.AssetDirectory {
	dir := types.NewAssetDirectory()
	dir.AddPerps(&types.Meta{Universe: []types.AssetMeta{
		{Name: "BTC", SzDecimals: 5},
		{Name: "ETH", SzDecimals: 4},
	}})
	return dir
}

func newTestSession(t *testing.T, v *fakeVenue, mutate func(*Config)) *Session {
	t.Helper()
	id, err := signing.IdentityFromHex(testPrivateKey)
	require.NoError(t, err)

	cfg := DefaultConfig(types.NetworkTestnet)
	cfg.BaseURL = v.srv.URL
	cfg.RequestTimeout = 2 * time.Second
	cfg.WS.ReconnectDelay = 10 * time.Millisecond
	cfg.WS.MaxReconnectDelay = 50 * time.Millisecond
	if mutate != nil {
		mutate(&cfg)
	}
	s, err := NewSession(cfg, id, WithAssetDirectory(testDirectory()))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func recoverL1Signer(t *testing.T, env wireEnvelope, action types.Action, opts signing.SignOptions) common.Address {
	t.Helper()
	require.NoError(t, json.Unmarshal(env.Action, action))
	digest, err := signing.NewSigner(types.NetworkTestnet).Digest(derefAction(action), env.Nonce, opts)
	require.NoError(t, err)
	addr, err := signing.RecoverSigner(digest, env.Signature)
	require.NoError(t, err)
	return addr
}

func derefAction(a types.Action) types.Action {
	switch v := a.(type) {
	case *types.BulkOrder:
		return *v
	case *types.BulkCancel:
		return *v
	}
	return a
}

func TestSession_PlaceOrderOverWebSocketReturnsFill(t *testing.T) {
	v := newFakeVenue(t)
	v.set(func(env wireEnvelope) string {
		return `{"status":"ok","response":{"type":"order","data":{"statuses":[{"filled":{"totalSz":"1.0","avgPx":"30000","oid":12345}}]}}}`
	})
	s := newTestSession(t, v, nil)
	require.NoError(t, s.Start(context.Background()))

	resp, err := s.PlaceOrder(context.Background(), types.OrderRequest{
		Coin:      "BTC",
		IsBuy:     true,
		Price:     30000,
		Size:      1.0,
		OrderType: types.LimitOrder(types.TifGtc),
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "order", resp.Type)
	require.Len(t, resp.Statuses, 1)
	require.NotNil(t, resp.Statuses[0].Filled)
	assert.Equal(t, "1.0", resp.Statuses[0].Filled.TotalSz)
	assert.Equal(t, "30000", resp.Statuses[0].Filled.AvgPx)
	assert.EqualValues(t, 12345, resp.Statuses[0].Filled.Oid)

	env := v.lastEnvelope()
	assert.Equal(t, "order", env.actionType())
	assert.Nil(t, env.VaultAddress)
	assert.Nil(t, env.ExpiresAfter)

	var order types.BulkOrder
	signer := recoverL1Signer(t, env, &order, signing.SignOptions{})
	assert.Equal(t, s.Address(), signer)
	require.Len(t, order.Orders, 1)
	assert.EqualValues(t, 0, order.Orders[0].Asset)
	assert.Equal(t, "30000", order.Orders[0].LimitPx)
	assert.Equal(t, "1", order.Orders[0].Size)
}

func TestSession_ConcurrentSubmitsUseDistinctNonces(t *testing.T) {
	v := newFakeVenue(t)
	s := newTestSession(t, v, func(c *Config) { c.Transport = TransportREST })

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.ReserveRequestWeight(context.Background(), 1)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	v.mu.Lock()
	defer v.mu.Unlock()
	seen := map[uint64]bool{}
	for _, env := range v.envelopes {
		assert.False(t, seen[env.Nonce], "duplicate nonce %d", env.Nonce)
		seen[env.Nonce] = true
	}
	assert.Len(t, seen, 10)
}

func TestSession_TimeoutSurfacesRequestTimeout(t *testing.T) {
	v := newFakeVenue(t)
	v.set(func(wireEnvelope) string { return "" })
	s := newTestSession(t, v, nil)
	require.NoError(t, s.Start(context.Background()))
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	require.NoError(t, s.WaitConnected(ctx))

	_, err := s.ReserveRequestWeight(context.Background(), 10, WithTimeout(100*time.Millisecond))
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrTimeout))
	var reqErr *types.RequestError
	require.True(t, errors.As(err, &reqErr))
	assert.Equal(t, types.RequestTimeout, reqErr.Kind)
	assert.Equal(t, 0, s.Transport().Stats().PendingRequests)
}

func TestSession_CancelViaREST(t *testing.T) {
	v := newFakeVenue(t)
	v.set(func(env wireEnvelope) string {
		return `{"status":"ok","response":{"type":"cancel","data":{"statuses":["success"]}}}`
	})
	s := newTestSession(t, v, nil)

	resp, err := s.Cancel(context.Background(), "ETH", []uint64{42}, ViaREST())
	require.NoError(t, err)
	require.Len(t, resp.Statuses, 1)
	assert.Equal(t, "success", resp.Statuses[0].Status)
	assert.True(t, resp.Statuses[0].OK())
	// REST 提交不需要 WS 连接
	assert.Equal(t, ws.StateDisconnected, s.State())

	env := v.lastEnvelope()
	var cancel types.BulkCancel
	assert.Equal(t, s.Address(), recoverL1Signer(t, env, &cancel, signing.SignOptions{}))
	require.Len(t, cancel.Cancels, 1)
	assert.EqualValues(t, 1, cancel.Cancels[0].Asset)
	assert.EqualValues(t, 42, cancel.Cancels[0].Oid)
	assert.Less(t, s.RemainingRESTWeight(), 1200)
}

func TestSession_ReserveRequestWeightDefaultResponse(t *testing.T) {
	v := newFakeVenue(t)
	s := newTestSession(t, v, nil)

	resp, err := s.ReserveRequestWeight(context.Background(), 1000)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "default", resp.Type)
	assert.Empty(t, resp.Statuses)
	assert.JSONEq(t, `{"status":"ok","response":{"type":"default"}}`, string(resp.Raw))

	env := v.lastEnvelope()
	assert.JSONEq(t, `{"type":"reserveRequestWeight","weight":1000}`, string(env.Action))
}

func TestSession_PerElementErrors(t *testing.T) {
	v := newFakeVenue(t)
	v.set(func(wireEnvelope) string {
		return `{"status":"ok","response":{"type":"order","data":{"statuses":[{"error":"Order must have minimum value of $10."},{"resting":{"oid":7}}]}}}`
	})
	s := newTestSession(t, v, nil)

	resp, err := s.PlaceOrders(context.Background(), []types.OrderRequest{
		{Coin: "BTC", IsBuy: true, Price: 1, Size: 0.0001, OrderType: types.LimitOrder(types.TifAlo)},
		{Coin: "ETH", IsBuy: false, Price: 2000, Size: 1, OrderType: types.LimitOrder(types.TifGtc)},
	}, types.GroupingNA, nil)
	require.NoError(t, err)

	errs := resp.StatusErrors()
	require.Len(t, errs, 1)
	var exErr *types.ExchangeError
	require.True(t, errors.As(errs[0], &exErr))
	assert.Equal(t, 0, exErr.Index)
	oid, ok := resp.Statuses[1].Oid()
	assert.True(t, ok)
	assert.EqualValues(t, 7, oid)
}

func TestSession_NonceRejectionIsExchangeError(t *testing.T) {
	v := newFakeVenue(t)
	v.set(func(wireEnvelope) string {
		return `{"status":"err","response":"Invalid nonce: duplicate nonce 1700000000000"}`
	})
	s := newTestSession(t, v, nil)

	for _, via := range []SubmitOption{ViaWebSocket(), ViaREST()} {
		resp, err := s.ScheduleCancel(context.Background(), nil, via)
		require.Error(t, err)
		var exErr *types.ExchangeError
		require.True(t, errors.As(err, &exErr))
		assert.Equal(t, -1, exErr.Index)
		assert.True(t, exErr.IsNonceError())
		require.NotNil(t, resp)
		assert.Equal(t, "err", resp.Status)
	}
}

func TestSession_VaultAndExpiresAreBound(t *testing.T) {
	vault := common.HexToAddress("0x1719884eb866cb12b2287399b15f7db5e7d775ea")
	v := newFakeVenue(t)
	s := newTestSession(t, v, func(c *Config) {
		c.VaultAddress = &vault
		c.Transport = TransportREST
	})

	_, err := s.UpdateLeverage(context.Background(), "BTC", true, 10, WithExpiresAfter(1700000060000))
	require.NoError(t, err)

	env := v.lastEnvelope()
	require.NotNil(t, env.VaultAddress)
	assert.Equal(t, "0x1719884eb866cb12b2287399b15f7db5e7d775ea", *env.VaultAddress)
	require.NotNil(t, env.ExpiresAfter)
	assert.EqualValues(t, 1700000060000, *env.ExpiresAfter)

	expires := uint64(1700000060000)
	var action types.UpdateLeverage
	require.NoError(t, json.Unmarshal(env.Action, &action))
	digest, err := signing.NewSigner(types.NetworkTestnet).Digest(action, env.Nonce, signing.SignOptions{VaultAddress: &vault, ExpiresAfter: &expires})
	require.NoError(t, err)
	addr, err := signing.RecoverSigner(digest, env.Signature)
	require.NoError(t, err)
	assert.Equal(t, s.Address(), addr)
}

func TestSession_UsdSendIgnoresVault(t *testing.T) {
	vault := common.HexToAddress("0x1719884eb866cb12b2287399b15f7db5e7d775ea")
	v := newFakeVenue(t)
	s := newTestSession(t, v, func(c *Config) {
		c.VaultAddress = &vault
		c.Transport = TransportREST
	})

	_, err := s.UsdSend(context.Background(), "0x0D1d9635D0640821d15e323ac8AdADfA9c111414", "1")
	require.NoError(t, err)

	env := v.lastEnvelope()
	assert.Nil(t, env.VaultAddress)
	var action types.UsdSend
	require.NoError(t, json.Unmarshal(env.Action, &action))
	assert.Equal(t, env.Nonce, action.Time)
	assert.Equal(t, "Testnet", action.HyperliquidChain)
	assert.Equal(t, "0x0d1d9635d0640821d15e323ac8adadfa9c111414", action.Destination)

	digest, err := signing.NewSigner(types.NetworkTestnet).Digest(action, env.Nonce, signing.SignOptions{})
	require.NoError(t, err)
	addr, err := signing.RecoverSigner(digest, env.Signature)
	require.NoError(t, err)
	assert.Equal(t, s.Address(), addr)
}

func TestSession_InvalidActionIsNeverSent(t *testing.T) {
	v := newFakeVenue(t)
	s := newTestSession(t, v, func(c *Config) { c.Transport = TransportREST })

	_, err := s.SubmitAction(context.Background(), types.NewBulkCancel())
	var sigErr *types.SigningError
	require.True(t, errors.As(err, &sigErr))
	assert.Equal(t, "validate", sigErr.Op)

	v.mu.Lock()
	defer v.mu.Unlock()
	assert.Empty(t, v.envelopes)
}

func TestSession_ReadOnlyCannotSubmit(t *testing.T) {
	v := newFakeVenue(t)
	cfg := DefaultConfig(types.NetworkTestnet)
	cfg.BaseURL = v.srv.URL
	s, err := NewSession(cfg, nil)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.ReserveRequestWeight(context.Background(), 1, ViaREST())
	var sigErr *types.SigningError
	require.True(t, errors.As(err, &sigErr))
	assert.Equal(t, "identity", sigErr.Op)
}

func TestSession_LoadAssetsAndInfo(t *testing.T) {
	v := newFakeVenue(t)
	v.onInfo = func(req map[string]any) string {
		switch req["type"] {
		case "meta":
			if req["dex"] == "test" {
				return `{"universe":[{"name":"test:ABC","szDecimals":2}],"marginTables":[]}`
			}
			return `{"universe":[{"name":"BTC","szDecimals":5},{"name":"ETH","szDecimals":4}],"marginTables":[]}`
		case "spotMeta":
			return `{"universe":[{"tokens":[1,0],"name":"PURR/USDC","index":0,"isCanonical":true}],
				"tokens":[{"name":"USDC","szDecimals":8,"weiDecimals":8,"index":0},{"name":"PURR","szDecimals":0,"weiDecimals":5,"index":1}]}`
		case "perpDexs":
			return `[null,{"name":"test","fullName":"test dex","deployer":"0x0"}]`
		}
		return `{}`
	}
	s := newTestSession(t, v, nil)

	for _, via := range []SubmitOption{ViaREST(), ViaWebSocket()} {
		dir, err := s.LoadAssets(context.Background(), via)
		require.NoError(t, err)
		asset, err := dir.Asset("ETH")
		require.NoError(t, err)
		assert.EqualValues(t, 1, asset)
		asset, err = dir.Asset("PURR/USDC")
		require.NoError(t, err)
		assert.EqualValues(t, 10000, asset)
		asset, err = dir.Asset("test:ABC")
		require.NoError(t, err)
		assert.EqualValues(t, 110000, asset)
	}
}

func TestSession_SubscribeReceivesPushes(t *testing.T) {
	v := newFakeVenue(t)
	s := newTestSession(t, v, nil)

	stream, err := s.Subscribe(types.AllMidsSubscription())
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	require.NoError(t, s.WaitConnected(ctx))

	require.Eventually(t, func() bool {
		v.push(`{"channel":"allMids","data":{"mids":{"BTC":"30000.5"}}}`)
		select {
		case msg := <-stream.C():
			mids, err := types.DecodeData[types.AllMids](msg)
			return err == nil && mids.Mids["BTC"] == "30000.5"
		case <-time.After(50 * time.Millisecond):
			return false
		}
	}, 3*time.Second, 20*time.Millisecond)

	stream.Close()
	assert.Empty(t, s.Transport().Subscriptions())
}

func TestSession_ClosedRejectsEverything(t *testing.T) {
	v := newFakeVenue(t)
	s := newTestSession(t, v, nil)
	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err := s.ReserveRequestWeight(context.Background(), 1)
	assert.ErrorIs(t, err, types.ErrSessionClosed)
	_, err = s.ReserveRequestWeight(context.Background(), 1, ViaREST())
	assert.ErrorIs(t, err, types.ErrSessionClosed)
	_, err = s.Subscribe(types.AllMidsSubscription())
	assert.ErrorIs(t, err, types.ErrSessionClosed)
	assert.ErrorIs(t, s.Info(context.Background(), map[string]string{"type": "meta"}, nil), types.ErrSessionClosed)
	assert.ErrorIs(t, s.Start(context.Background()), types.ErrSessionClosed)
	assert.Equal(t, ws.StateClosed, s.State())
}
