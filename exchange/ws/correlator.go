package ws

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/betbot/gohyper/exchange/types"
)

type postResult struct {
	resp *types.PostResponse
	err  error
}

// Pending 在途的 post 请求
type Pending struct {
	ID       uint64
	IssuedAt time.Time
	done     chan postResult // 容量 1，只会写入一次
}

// Correlator 按请求 ID 关联 post 请求与响应
// 每个请求只会被解决一次：谁先从表里取走条目，谁负责写入结果
type Correlator struct {
	nextID  atomic.Uint64
	mu      sync.Mutex
	pending map[uint64]*Pending
	log     *logrus.Entry
}

// NewCorrelator 创建关联器
func NewCorrelator(log *logrus.Entry) *Correlator {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Correlator{
		pending: make(map[uint64]*Pending),
		log:     log,
	}
}

// Register 分配新的请求 ID（会话内单调递增，从 1 开始）并登记
func (c *Correlator) Register() *Pending {
	p := &Pending{
		ID:       c.nextID.Add(1),
		IssuedAt: time.Now(),
		done:     make(chan postResult, 1),
	}
	c.mu.Lock()
	c.pending[p.ID] = p
	c.mu.Unlock()
	return p
}

func (c *Correlator) take(id uint64) *Pending {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.pending[id]
	if !ok {
		return nil
	}
	delete(c.pending, id)
	return p
}

// Resolve 用响应解决对应请求；未知 ID（已超时或从未发出）返回 false 并丢弃
func (c *Correlator) Resolve(resp *types.PostResponse) bool {
	if resp == nil {
		return false
	}
	p := c.take(resp.ID)
	if p == nil {
		c.log.Debugf("丢弃未知 post 响应: id=%d type=%s", resp.ID, resp.Response.Type)
		return false
	}
	p.done <- postResult{resp: resp}
	return true
}

// Fail 以错误结束指定请求
func (c *Correlator) Fail(id uint64, err error) bool {
	p := c.take(id)
	if p == nil {
		return false
	}
	p.done <- postResult{err: err}
	return true
}

// FailAll 以 ConnectionLost 结束所有在途请求，返回数量
func (c *Correlator) FailAll(cause error) int {
	c.mu.Lock()
	all := c.pending
	c.pending = make(map[uint64]*Pending)
	c.mu.Unlock()

	for id, p := range all {
		p.done <- postResult{err: &types.RequestError{ID: id, Kind: types.RequestConnectionLost, Err: cause}}
	}
	if len(all) > 0 {
		c.log.Warnf("连接断开，%d 个在途 post 请求失败", len(all))
	}
	return len(all)
}

// Len 在途请求数量
func (c *Correlator) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Await 等待请求结果
// 超时返回 RequestError{Timeout}；调用方取消返回 RequestError{Canceled}
// 两种情况下条目都会被移除，之后到达的响应会被丢弃
func (c *Correlator) Await(ctx context.Context, p *Pending, timeout time.Duration) (*types.PostResponse, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r := <-p.done:
		return r.resp, r.err
	case <-timer.C:
		if c.take(p.ID) != nil {
			return nil, &types.RequestError{ID: p.ID, Kind: types.RequestTimeout, Err: types.ErrTimeout}
		}
	case <-ctx.Done():
		if c.take(p.ID) != nil {
			return nil, &types.RequestError{ID: p.ID, Kind: types.RequestCanceled, Err: ctx.Err()}
		}
	}
	// 条目已被其他路径取走，结果马上就会写入
	r := <-p.done
	return r.resp, r.err
}
