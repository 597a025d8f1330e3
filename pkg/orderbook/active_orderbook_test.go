package orderbook

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betbot/gohyper/exchange/types"
)

func order(coin string, oid uint64) types.BasicOrder {
	return types.BasicOrder{Coin: coin, Side: "B", LimitPx: "100", Sz: "1", OrigSz: "1", Oid: oid}
}

func update(coin string, oid uint64, status string) types.OrderUpdate {
	return types.OrderUpdate{Order: order(coin, oid), Status: status}
}

func TestAddUpdateLifecycle(t *testing.T) {
	b := NewActiveOrderBook("")
	var news, fills, cancels int
	b.OnNew(func(types.BasicOrder) { news++ })
	b.OnFilled(func(types.OrderUpdate) { fills++ })
	b.OnCanceled(func(types.OrderUpdate) { cancels++ })

	b.Add(order("BTC", 1))
	b.Update(update("BTC", 1, StatusOpen)) // 已存在，不重复回调
	b.Update(update("ETH", 2, StatusOpen))
	assert.Equal(t, 2, b.NumOfOrders())
	assert.Equal(t, 2, news)

	b.Update(update("BTC", 1, StatusFilled))
	b.Update(update("ETH", 2, "marginCanceled"))
	assert.Equal(t, 0, b.NumOfOrders())
	assert.Equal(t, 1, fills)
	assert.Equal(t, 1, cancels)
}

func TestTerminalBeforeAdd(t *testing.T) {
	b := NewActiveOrderBook("BTC")
	var filled []uint64
	b.OnFilled(func(u types.OrderUpdate) { filled = append(filled, u.Order.Oid) })

	b.Update(update("BTC", 7, StatusFilled))
	assert.Equal(t, 0, b.NumOfOrders())
	assert.Empty(t, filled)

	b.Add(order("BTC", 7))
	assert.False(t, b.Exists(7), "已成交的订单不应再挂到本地簿上")
	assert.Equal(t, []uint64{7}, filled)
}

func TestCoinFilterAndSeed(t *testing.T) {
	b := NewActiveOrderBook("ETH")
	b.Add(order("BTC", 1))
	b.Update(update("BTC", 2, StatusOpen))
	assert.Equal(t, 0, b.NumOfOrders())

	b.Seed([]types.BasicOrder{order("ETH", 5), order("BTC", 6), order("ETH", 3)})
	got := b.Orders()
	require.Len(t, got, 2)
	assert.Equal(t, uint64(3), got[0].Oid)
	assert.Equal(t, uint64(5), got[1].Oid)

	o, ok := b.Get(5)
	require.True(t, ok)
	assert.Equal(t, "ETH", o.Coin)
	assert.True(t, b.Remove(5))
	assert.False(t, b.Remove(5))
}

func TestGracefulCancel(t *testing.T) {
	b := NewActiveOrderBook("")
	b.Add(order("BTC", 1))
	b.Add(order("BTC", 2))
	b.Add(order("ETH", 3))

	var mu sync.Mutex
	calls := map[string][]uint64{}
	cancel := func(ctx context.Context, coin string, oids []uint64) error {
		mu.Lock()
		calls[coin] = append(calls[coin], oids...)
		mu.Unlock()
		// 模拟推送稍后到达
		go func() {
			time.Sleep(10 * time.Millisecond)
			for _, oid := range oids {
				b.Update(update(coin, oid, StatusCanceled))
			}
		}()
		return nil
	}

	ctx, done := context.WithTimeout(context.Background(), 2*time.Second)
	defer done()
	require.NoError(t, b.GracefulCancel(ctx, cancel))
	assert.Equal(t, 0, b.NumOfOrders())

	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, []uint64{1, 2}, calls["BTC"])
	assert.ElementsMatch(t, []uint64{3}, calls["ETH"])
}

func TestGracefulCancelTimeout(t *testing.T) {
	b := NewActiveOrderBook("")
	b.SetCancelTimeout(30 * time.Millisecond)
	b.Add(order("BTC", 1))

	err := b.GracefulCancel(context.Background(), func(context.Context, string, []uint64) error { return nil })
	assert.Error(t, err)
	assert.Equal(t, 1, b.NumOfOrders())
}
