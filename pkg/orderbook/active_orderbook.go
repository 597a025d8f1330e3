package orderbook

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/betbot/gohyper/exchange/types"
	"github.com/betbot/gohyper/exchange/ws"
	"github.com/betbot/gohyper/pkg/logger"
	"github.com/betbot/gohyper/pkg/sigchan"
)

const (
	DefaultCancelOrderWaitTime = 50 * time.Millisecond
	DefaultOrderCancelTimeout  = 15 * time.Second
)

// orderUpdates 里仍在簿上的状态，其余都是终态
const (
	StatusOpen      = "open"
	StatusTriggered = "triggered"
	StatusFilled    = "filled"
	StatusCanceled  = "canceled"
)

// IsTerminal 订单是否已离开订单簿
func IsTerminal(status string) bool {
	return status != StatusOpen && status != StatusTriggered
}

// ActiveOrderBook 本地活跃订单，按 oid 索引
// 数据来源：下单响应（Add）、openOrders 快照（Seed）、orderUpdates 推送（Update / Run）
type ActiveOrderBook struct {
	// Coin 为空时跟踪所有 coin
	Coin string

	mu      sync.RWMutex
	orders  map[uint64]types.BasicOrder
	pending map[uint64]types.OrderUpdate // 先于 Add 到达的终态推送

	newCallbacks      []func(types.BasicOrder)
	filledCallbacks   []func(types.OrderUpdate)
	canceledCallbacks []func(types.OrderUpdate)

	C *sigchan.Chan

	cancelOrderWaitTime time.Duration
	cancelOrderTimeout  time.Duration
}

// NewActiveOrderBook 创建活跃订单簿
func NewActiveOrderBook(coin string) *ActiveOrderBook {
	return &ActiveOrderBook{
		Coin:                coin,
		orders:              make(map[uint64]types.BasicOrder),
		pending:             make(map[uint64]types.OrderUpdate),
		C:                   sigchan.New(1),
		cancelOrderWaitTime: DefaultCancelOrderWaitTime,
		cancelOrderTimeout:  DefaultOrderCancelTimeout,
	}
}

// SetCancelTimeout 修改 GracefulCancel 的等待上限
func (b *ActiveOrderBook) SetCancelTimeout(d time.Duration) {
	b.cancelOrderTimeout = d
}

func (b *ActiveOrderBook) tracks(coin string) bool {
	return b.Coin == "" || b.Coin == coin
}

// Add 登记一个挂单；如果它的终态推送已经先到，直接按终态处理
func (b *ActiveOrderBook) Add(order types.BasicOrder) {
	if !b.tracks(order.Coin) {
		return
	}
	b.mu.Lock()
	if u, ok := b.pending[order.Oid]; ok {
		delete(b.pending, order.Oid)
		b.mu.Unlock()
		b.fireTerminal(u)
		return
	}
	_, existed := b.orders[order.Oid]
	b.orders[order.Oid] = order
	b.mu.Unlock()

	if !existed {
		for _, cb := range b.newCallbacks {
			cb(order)
		}
	}
	b.C.Emit()
}

// Seed 用 openOrders 快照替换当前内容
func (b *ActiveOrderBook) Seed(orders []types.BasicOrder) {
	b.mu.Lock()
	b.orders = make(map[uint64]types.BasicOrder, len(orders))
	for _, o := range orders {
		if b.tracks(o.Coin) {
			b.orders[o.Oid] = o
		}
	}
	b.mu.Unlock()
	b.C.Emit()
}

// Update 应用一条 orderUpdates 推送
func (b *ActiveOrderBook) Update(u types.OrderUpdate) {
	if !b.tracks(u.Order.Coin) {
		return
	}
	oid := u.Order.Oid

	b.mu.Lock()
	_, exists := b.orders[oid]
	if !IsTerminal(u.Status) {
		b.orders[oid] = u.Order
		b.mu.Unlock()
		if !exists {
			for _, cb := range b.newCallbacks {
				cb(u.Order)
			}
		}
		b.C.Emit()
		return
	}
	if !exists {
		// 终态先到：记下来，等 Add 时处理
		b.pending[oid] = u
		b.mu.Unlock()
		return
	}
	delete(b.orders, oid)
	b.mu.Unlock()

	b.fireTerminal(u)
}

func (b *ActiveOrderBook) fireTerminal(u types.OrderUpdate) {
	switch u.Status {
	case StatusFilled:
		for _, cb := range b.filledCallbacks {
			cb(u)
		}
	default:
		// canceled / rejected / marginCanceled 等都按撤单处理
		for _, cb := range b.canceledCallbacks {
			cb(u)
		}
	}
	b.C.Emit()
}

// Run 消费 orderUpdates 流直到流关闭或 ctx 结束
func (b *ActiveOrderBook) Run(ctx context.Context, stream *ws.Stream) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-stream.C():
			if !ok {
				return
			}
			updates, err := types.DecodeData[[]types.OrderUpdate](msg)
			if err != nil {
				logger.Warnf("解析 orderUpdates 失败: %v", err)
				continue
			}
			for _, u := range updates {
				b.Update(u)
			}
		}
	}
}

// Remove 移除订单
func (b *ActiveOrderBook) Remove(oid uint64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.orders[oid]; exists {
		delete(b.orders, oid)
		return true
	}
	return false
}

// Get 获取订单
func (b *ActiveOrderBook) Get(oid uint64) (types.BasicOrder, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	o, ok := b.orders[oid]
	return o, ok
}

// Exists 检查订单是否存在
func (b *ActiveOrderBook) Exists(oid uint64) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.orders[oid]
	return ok
}

// NumOfOrders 活跃订单数量
func (b *ActiveOrderBook) NumOfOrders() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.orders)
}

// Orders 所有活跃订单，按 oid 升序
func (b *ActiveOrderBook) Orders() []types.BasicOrder {
	b.mu.RLock()
	out := make([]types.BasicOrder, 0, len(b.orders))
	for _, o := range b.orders {
		out = append(out, o)
	}
	b.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Oid < out[j].Oid })
	return out
}

// OnNew 注册新订单回调
func (b *ActiveOrderBook) OnNew(cb func(types.BasicOrder)) {
	b.newCallbacks = append(b.newCallbacks, cb)
}

// OnFilled 注册成交回调
func (b *ActiveOrderBook) OnFilled(cb func(types.OrderUpdate)) {
	b.filledCallbacks = append(b.filledCallbacks, cb)
}

// OnCanceled 注册撤单回调
func (b *ActiveOrderBook) OnCanceled(cb func(types.OrderUpdate)) {
	b.canceledCallbacks = append(b.canceledCallbacks, cb)
}

// CancelFunc 按 coin 批量撤单
type CancelFunc func(ctx context.Context, coin string, oids []uint64) error

// GracefulCancel 撤掉所有活跃订单，并等待推送确认它们离开订单簿
func (b *ActiveOrderBook) GracefulCancel(ctx context.Context, cancel CancelFunc) error {
	byCoin := make(map[string][]uint64)
	for _, o := range b.Orders() {
		byCoin[o.Coin] = append(byCoin[o.Coin], o.Oid)
	}
	for coin, oids := range byCoin {
		if err := cancel(ctx, coin, oids); err != nil {
			logger.Warnf("撤销 %s 订单 %v 失败: %v", coin, oids, err)
		}
	}
	return b.waitOrderClear(ctx)
}

func (b *ActiveOrderBook) waitOrderClear(ctx context.Context) error {
	ticker := time.NewTicker(b.cancelOrderWaitTime)
	defer ticker.Stop()

	timeout := time.NewTimer(b.cancelOrderTimeout)
	defer timeout.Stop()

	for {
		if b.NumOfOrders() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timeout.C:
			return fmt.Errorf("等待撤单超时，仍有 %d 个订单", b.NumOfOrders())
		case <-ticker.C:
		case <-b.C.C():
		}
	}
}
