package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/betbot/gohyper/pkg/logger"
)

// Handler 关闭处理函数，应在 ctx 结束前返回
type Handler func(ctx context.Context)

// Manager 优雅关闭管理器
type Manager struct {
	mu        sync.Mutex
	callbacks []namedHandler
	done      bool
}

type namedHandler struct {
	name string
	fn   Handler
}

// NewManager 创建新的关闭管理器
func NewManager() *Manager {
	return &Manager{}
}

// OnShutdown 注册关闭回调，name 只用于日志
func (m *Manager) OnShutdown(name string, handler Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = append(m.callbacks, namedHandler{name: name, fn: handler})
}

// Shutdown 并发执行所有关闭回调，直到全部完成或 ctx 超时；重复调用无效
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.Lock()
	if m.done {
		m.mu.Unlock()
		return
	}
	m.done = true
	callbacks := m.callbacks
	m.mu.Unlock()

	if len(callbacks) == 0 {
		logger.Info("没有注册的关闭回调")
		return
	}

	logger.Infof("开始优雅关闭，共 %d 个回调", len(callbacks))

	var wg sync.WaitGroup
	wg.Add(len(callbacks))
	for _, cb := range callbacks {
		go func(h namedHandler) {
			defer wg.Done()
			start := time.Now()
			h.fn(ctx)
			logger.Debugf("关闭回调 %s 完成，耗时 %s", h.name, time.Since(start))
		}(cb)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("所有关闭回调已完成")
	case <-ctx.Done():
		logger.Warnf("关闭超时: %v", ctx.Err())
	}
}

// WaitForSignal 阻塞直到收到 SIGINT/SIGTERM 或 ctx 结束
// 收到 SIGHUP 时切换日志文件并继续等待
func WaitForSignal(ctx context.Context) os.Signal {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(ch)

	for {
		select {
		case <-ctx.Done():
			return nil
		case sig := <-ch:
			if sig == syscall.SIGHUP {
				if err := logger.Rotate(); err != nil {
					logger.Warnf("切换日志文件失败: %v", err)
				}
				continue
			}
			logger.Infof("收到信号 %s", sig)
			return sig
		}
	}
}
