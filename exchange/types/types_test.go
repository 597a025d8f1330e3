package types

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFloatToWire(t *testing.T) {
	cases := map[float64]string{
		1.0:     "1",
		0.1:     "0.1",
		123.456: "123.456",
		30000:   "30000",
	}
	for in, want := range cases {
		got, err := FloatToWire(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := FloatToWire(1e-9)
	assert.Error(t, err, "超过 8 位小数不能悄悄截断")
	_, err = FloatToWire(math.NaN())
	assert.Error(t, err)
}

func TestRoundPrice(t *testing.T) {
	assert.Equal(t, "1234.6", DecimalToWire(RoundPrice(1234.567, 0, false)))
	assert.Equal(t, "30000", DecimalToWire(RoundPrice(30000, 5, false)))
	assert.Equal(t, "0.000123", DecimalToWire(RoundPrice(0.000123456, 0, false)))
	// 现货允许 8 位小数
	assert.Equal(t, "0.00012346", DecimalToWire(RoundPrice(0.000123456, 0, true)))
	assert.Equal(t, "1.23", DecimalToWire(RoundSize(1.23456, 2)))
}

func testDirectory() *AssetDirectory {
	dir := NewAssetDirectory()
	dir.AddPerps(&Meta{Universe: []AssetMeta{{Name: "BTC", SzDecimals: 5}, {Name: "ETH", SzDecimals: 4}}})
	dir.AddSpot(&SpotMeta{
		Tokens: []TokenInfo{
			{Name: "USDC", Index: 0, SzDecimals: 8},
			{Name: "PURR", Index: 1, SzDecimals: 0},
			{Name: "HYPE", Index: 2, SzDecimals: 2},
		},
		Universe: []SpotAssetMeta{
			{Name: "PURR/USDC", Tokens: [2]int{1, 0}, Index: 0},
			{Name: "@1", Tokens: [2]int{2, 0}, Index: 1},
		},
	})
	dir.AddBuilderPerps(1, &Meta{Universe: []AssetMeta{{Name: "test:ABC", SzDecimals: 1}}})
	return dir
}

func TestAssetDirectory(t *testing.T) {
	dir := testDirectory()

	asset, err := dir.Asset("btc")
	require.NoError(t, err)
	assert.Equal(t, uint32(0), asset)

	info, ok := dir.Lookup("HYPE/USDC")
	require.True(t, ok)
	assert.Equal(t, uint32(10001), info.Asset)
	assert.True(t, info.Spot)
	assert.Equal(t, int32(2), info.SzDecimals)

	asset, err = dir.Asset("PURR/USDC")
	require.NoError(t, err)
	assert.Equal(t, uint32(10000), asset)

	asset, err = dir.Asset("test:ABC")
	require.NoError(t, err)
	assert.Equal(t, uint32(110000), asset)

	name, ok := dir.Name(10001)
	require.True(t, ok)
	assert.Equal(t, "@1", name)

	_, err = dir.Asset("DOGE")
	assert.Error(t, err)
}

func TestOrderRequestToWire(t *testing.T) {
	dir := testDirectory()
	w, err := OrderRequest{
		Coin:      "BTC",
		IsBuy:     true,
		Price:     30123.456,
		Size:      0.0012345,
		OrderType: LimitOrder(TifGtc),
	}.ToWire(dir)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), w.Asset)
	assert.Equal(t, "30123", w.LimitPx)
	assert.Equal(t, "0.00123", w.Size)
	assert.NoError(t, w.Validate())

	_, err = OrderRequest{Coin: "DOGE", Price: 1, Size: 1, OrderType: LimitOrder(TifGtc)}.ToWire(dir)
	assert.Error(t, err)
}

func TestCloid(t *testing.T) {
	c := NewCloid()
	assert.True(t, IsValidCloid(c), c)
	assert.False(t, IsValidCloid("0x123"))
	assert.False(t, IsValidCloid("00000000000000000000000000000000"))
}

func TestParseExchangeResponse(t *testing.T) {
	resp, err := ParseExchangeResponse([]byte(`{"status":"ok","response":{"type":"cancel","data":{"statuses":["success",{"error":"Order was never placed"}]}}}`))
	require.NoError(t, err)
	assert.NoError(t, resp.Err())
	assert.Equal(t, "cancel", resp.Type)
	require.Len(t, resp.Statuses, 2)
	assert.Equal(t, "success", resp.Statuses[0].Status)
	assert.True(t, resp.Statuses[0].OK())

	errs := resp.StatusErrors()
	require.Len(t, errs, 1)
	var exErr *ExchangeError
	require.True(t, errors.As(errs[0], &exErr))
	assert.Equal(t, 1, exErr.Index)

	resp, err = ParseExchangeResponse([]byte(`{"status":"err","response":"Invalid nonce: duplicate"}`))
	require.NoError(t, err)
	require.True(t, errors.As(resp.Err(), &exErr))
	assert.Equal(t, -1, exErr.Index)
	assert.True(t, exErr.IsNonceError())

	_, err = ParseExchangeResponse([]byte(`{"status":"maybe"}`))
	assert.Error(t, err)
}

func TestMarginTable(t *testing.T) {
	var meta Meta
	raw := `{"universe":[{"name":"BTC","szDecimals":5,"maxLeverage":50,"marginTableId":50}],
		"marginTables":[[50,{"description":"tiered","marginTiers":[{"lowerBound":"0.0","maxLeverage":50},{"lowerBound":"100000.0","maxLeverage":20}]}]]}`
	require.NoError(t, json.Unmarshal([]byte(raw), &meta))
	require.Len(t, meta.MarginTables, 1)
	table := meta.MarginTables[0]
	assert.Equal(t, uint32(50), table.ID)
	assert.Equal(t, uint32(50), table.MaxLeverageFor(decimal.NewFromInt(10)))
	assert.Equal(t, uint32(20), table.MaxLeverageFor(decimal.NewFromInt(200000)))
}

func TestSubscriptionKeys(t *testing.T) {
	sub := OrderUpdatesSubscription(" 0xABCdef ")
	assert.Equal(t, "0xabcdef", sub.User)
	assert.Equal(t, ChannelOrderUpdates, sub.RouteKey())
	assert.Equal(t, "candle:BTC:1m", CandleSubscription("BTC", "1m").RouteKey())
	assert.Equal(t, "userFills:0xabc", UserFillsSubscription("0xABC").RouteKey())
	assert.Equal(t, ChannelUser, UserEventsSubscription("0xabc").RouteKey())
	assert.Equal(t, "clearinghouseState:0xabc", ClearinghouseStateSubscription("0xABC", "").RouteKey())
	assert.Equal(t, "clearinghouseState:0xabc:xyz", ClearinghouseStateSubscription("0xABC", "xyz").RouteKey())
	assert.Equal(t, "webData2:0xabc:xyz", WebData2Subscription("0xabc", "xyz").RouteKey())

	assert.Error(t, L2BookSubscription("").Validate())
	assert.Error(t, Subscription{Type: "nope"}.Validate())
	assert.NoError(t, AllMidsSubscription().Validate())

	// 身份只取决于规范化后的字段
	assert.Equal(t, UserFillsSubscription("0xABC").Identity(), UserFillsSubscription("0xabc").Identity())
}

func TestNetwork(t *testing.T) {
	n, err := ParseNetwork("Test")
	require.NoError(t, err)
	assert.Equal(t, NetworkTestnet, n)
	assert.False(t, n.IsMainnet())
	assert.Equal(t, "Testnet", n.ChainName())

	_, err = ParseNetwork("devnet")
	assert.Error(t, err)

	assert.Equal(t, "wss://api.hyperliquid.xyz/ws", WsURL(MainnetAPIURL))
	assert.Equal(t, "ws://localhost:3001/ws", WsURL(LocalAPIURL+"/"))
}
