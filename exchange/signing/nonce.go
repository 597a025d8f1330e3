package signing

import (
	"sync/atomic"
	"time"
)

// NonceClock 为同一签名身份生成严格递增的毫秒级 nonce
// 每次取 max(当前毫秒, 上一次 + 1)，系统时间回拨时也不会重复
type NonceClock struct {
	last atomic.Uint64
	now  func() time.Time
}

// NonceOption NonceClock 选项
type NonceOption func(*NonceClock)

// WithNowFunc 替换时间源（测试中模拟时钟回拨）
func WithNowFunc(now func() time.Time) NonceOption {
	return func(c *NonceClock) {
		c.now = now
	}
}

// NewNonceClock 创建 nonce 时钟
func NewNonceClock(opts ...NonceOption) *NonceClock {
	c := &NonceClock{now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Next 返回下一个 nonce，并发安全
func (c *NonceClock) Next() uint64 {
	for {
		prev := c.last.Load()
		next := uint64(c.now().UnixMilli())
		if next <= prev {
			next = prev + 1
		}
		if c.last.CompareAndSwap(prev, next) {
			return next
		}
	}
}

// Peek 最近一次发出的 nonce
func (c *NonceClock) Peek() uint64 {
	return c.last.Load()
}

// Reset 仅供测试：把计数器设置为 floor，生产代码不能调用
func (c *NonceClock) Reset(floor uint64) {
	c.last.Store(floor)
}
