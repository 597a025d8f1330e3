package sigchan

import "sync"

// Chan 非阻塞的信号 channel，只通知事件发生，不传递数据
// 多个等待者需要同时被唤醒时用 Broadcast
type Chan struct {
	c chan struct{}

	mu      sync.Mutex
	waiters []chan struct{}
}

// New 创建新的信号 channel
func New(bufferSize int) *Chan {
	return &Chan{
		c: make(chan struct{}, bufferSize),
	}
}

// Emit 发送信号（非阻塞），channel 已满时忽略
func (c *Chan) Emit() {
	select {
	case c.c <- struct{}{}:
	default:
	}
}

// C 返回内部的 channel（用于 select）
func (c *Chan) C() <-chan struct{} {
	return c.c
}

// Wait 返回一个在下一次 Broadcast 时关闭的 channel
func (c *Chan) Wait() <-chan struct{} {
	ch := make(chan struct{})
	c.mu.Lock()
	c.waiters = append(c.waiters, ch)
	c.mu.Unlock()
	return ch
}

// Cancel 撤销 Wait 返回的 channel；已被 Broadcast 唤醒的忽略
func (c *Chan) Cancel(ch <-chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, w := range c.waiters {
		if w == ch {
			c.waiters = append(c.waiters[:i], c.waiters[i+1:]...)
			return
		}
	}
}

func (c *Chan) waiting() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.waiters)
}

// Broadcast 唤醒所有 Wait 的调用者，同时 Emit 一次
func (c *Chan) Broadcast() {
	c.mu.Lock()
	ws := c.waiters
	c.waiters = nil
	c.mu.Unlock()
	for _, ch := range ws {
		close(ch)
	}
	c.Emit()
}
