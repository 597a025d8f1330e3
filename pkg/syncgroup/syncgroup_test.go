package syncgroup

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRunAndWait(t *testing.T) {
	var n atomic.Int32
	sg := NewSyncGroup()
	for i := 0; i < 3; i++ {
		sg.Add(func() { n.Add(1) })
	}
	sg.Add(nil)
	sg.RunAndWait()
	assert.Equal(t, int32(3), n.Load())

	// 已启动过的函数不会被再次启动
	sg.RunAndWait()
	assert.Equal(t, int32(3), n.Load())
}

func TestOnExitStopsBatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var exits atomic.Int32
	sg := NewSyncGroup()
	sg.OnExit(func() {
		exits.Add(1)
		cancel()
	})
	// 第一个函数立即返回，其余的等 ctx 结束
	sg.Add(func() {})
	sg.Add(func() { <-ctx.Done() })
	sg.Add(func() { <-ctx.Done() })

	done := make(chan struct{})
	go func() {
		sg.RunAndWait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("整批 goroutine 没有随第一个退出而结束")
	}
	assert.Equal(t, int32(3), exits.Load())
}
