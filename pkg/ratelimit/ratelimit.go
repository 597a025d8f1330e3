package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// RateLimiter 按权重计费的速率限制器接口
type RateLimiter interface {
	WaitN(ctx context.Context, weight int) error
	AllowN(weight int) bool
	GetRemaining() int
	GetResetTime() time.Time
}

type spend struct {
	at     time.Time
	weight int
}

// SlidingWindow 带权重的滑动窗口速率限制器
// 交易所 REST 限制按 IP 每分钟 1200 权重，每个请求按类型消耗不同权重
type SlidingWindow struct {
	limit      int           // 窗口内的权重上限
	windowSize time.Duration // 窗口大小
	spends     []spend
	used       int
	mu         sync.Mutex
	now        func() time.Time
}

// NewSlidingWindow 创建新的滑动窗口速率限制器
func NewSlidingWindow(limit int, windowSize time.Duration) *SlidingWindow {
	return &SlidingWindow{
		limit:      limit,
		windowSize: windowSize,
		now:        time.Now,
	}
}

// evict 移除窗口外的记录，调用方持锁
func (sw *SlidingWindow) evict(now time.Time) {
	cutoff := now.Add(-sw.windowSize)
	i := 0
	for ; i < len(sw.spends); i++ {
		if sw.spends[i].at.After(cutoff) {
			break
		}
		sw.used -= sw.spends[i].weight
	}
	if i > 0 {
		sw.spends = append(sw.spends[:0], sw.spends[i:]...)
	}
}

// AllowN 检查并扣除权重
func (sw *SlidingWindow) AllowN(weight int) bool {
	if weight <= 0 {
		return true
	}
	sw.mu.Lock()
	defer sw.mu.Unlock()

	now := sw.now()
	sw.evict(now)
	if sw.used+weight > sw.limit {
		return false
	}
	sw.spends = append(sw.spends, spend{at: now, weight: weight})
	sw.used += weight
	return true
}

// WaitN 等待直到可以消耗 weight
// 单次权重超过上限时直接报错，否则会永远等下去
func (sw *SlidingWindow) WaitN(ctx context.Context, weight int) error {
	if weight > sw.limit {
		return fmt.Errorf("请求权重 %d 超过窗口上限 %d", weight, sw.limit)
	}
	for {
		if sw.AllowN(weight) {
			return nil
		}

		// 等到最早的记录滑出窗口
		sw.mu.Lock()
		waitTime := 100 * time.Millisecond
		if len(sw.spends) > 0 {
			waitTime = sw.spends[0].at.Add(sw.windowSize).Sub(sw.now())
		}
		sw.mu.Unlock()
		if waitTime <= 0 {
			waitTime = time.Millisecond
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(waitTime):
		}
	}
}

// GetRemaining 获取窗口内剩余权重
func (sw *SlidingWindow) GetRemaining() int {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	sw.evict(sw.now())
	return max(0, sw.limit-sw.used)
}

// GetResetTime 最早一条记录滑出窗口的时间
func (sw *SlidingWindow) GetResetTime() time.Time {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	now := sw.now()
	sw.evict(now)
	if len(sw.spends) == 0 {
		return now
	}
	return sw.spends[0].at.Add(sw.windowSize)
}

// 预置的限制器名称
const (
	LimiterREST = "rest"
)

// RateLimitManager 速率限制管理器
type RateLimitManager struct {
	limiters map[string]RateLimiter
	mu       sync.RWMutex
}

// NewRateLimitManager 创建速率限制管理器，默认 REST 1200 权重/分钟
func NewRateLimitManager() *RateLimitManager {
	return NewRateLimitManagerWithLimit(1200, time.Minute)
}

// NewRateLimitManagerWithLimit 指定 REST 权重上限
func NewRateLimitManagerWithLimit(limit int, window time.Duration) *RateLimitManager {
	return &RateLimitManager{
		limiters: map[string]RateLimiter{
			LimiterREST: NewSlidingWindow(limit, window),
		},
	}
}

// SetLimiter 替换或新增限制器
func (rlm *RateLimitManager) SetLimiter(name string, l RateLimiter) {
	rlm.mu.Lock()
	defer rlm.mu.Unlock()
	rlm.limiters[name] = l
}

// GetLimiter 获取指定名称的限制器，没有时回落到 REST 限制器
func (rlm *RateLimitManager) GetLimiter(name string) RateLimiter {
	rlm.mu.RLock()
	defer rlm.mu.RUnlock()
	if limiter, ok := rlm.limiters[name]; ok {
		return limiter
	}
	return rlm.limiters[LimiterREST]
}

// WaitN 等待直到允许消耗 weight
func (rlm *RateLimitManager) WaitN(ctx context.Context, name string, weight int) error {
	return rlm.GetLimiter(name).WaitN(ctx, weight)
}

// GetRemaining 获取剩余权重
func (rlm *RateLimitManager) GetRemaining(name string) int {
	return rlm.GetLimiter(name).GetRemaining()
}

// ExchangeWeight /exchange 请求权重：1 + floor(批量长度 / 40)
func ExchangeWeight(batchLen int) int {
	if batchLen < 0 {
		batchLen = 0
	}
	return 1 + batchLen/40
}

// InfoWeight /info 请求权重
func InfoWeight(infoType string) int {
	switch infoType {
	case "l2Book", "allMids", "clearinghouseState", "orderStatus", "spotClearinghouseState", "exchangeStatus":
		return 2
	case "userRole":
		return 60
	default:
		return 20
	}
}
