package syncgroup

import (
	"sync"
)

// SyncGroup 按批管理 goroutine：每条连接一批（读循环 + 心跳 + 关闭），
// 任何一个退出都通过 OnExit 通知整批收尾，RunAndWait 返回后才能重连
type SyncGroup struct {
	wg sync.WaitGroup

	mu     sync.Mutex
	fns    []func()
	onExit func()
}

func NewSyncGroup() *SyncGroup {
	return &SyncGroup{}
}

// OnExit 每个函数返回时调用一次，通常传入连接的 cancel
func (w *SyncGroup) OnExit(fn func()) {
	w.mu.Lock()
	w.onExit = fn
	w.mu.Unlock()
}

// Add 添加一个待启动的函数，Run 时统一启动
func (w *SyncGroup) Add(fn func()) {
	if fn == nil {
		return
	}
	w.mu.Lock()
	w.fns = append(w.fns, fn)
	w.mu.Unlock()
}

// Run 启动已添加的函数并清空列表
func (w *SyncGroup) Run() {
	w.mu.Lock()
	fns, onExit := w.fns, w.onExit
	w.fns = nil
	w.mu.Unlock()

	w.wg.Add(len(fns))
	for _, fn := range fns {
		go func(f func()) {
			defer w.wg.Done()
			if onExit != nil {
				defer onExit()
			}
			f()
		}(fn)
	}
}

// Wait 等待已启动的函数全部返回
func (w *SyncGroup) Wait() {
	w.wg.Wait()
}

// RunAndWait Run 之后 Wait
func (w *SyncGroup) RunAndWait() {
	w.Run()
	w.Wait()
}
