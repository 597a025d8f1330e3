package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"expvar"
	"net"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/betbot/gohyper/pkg/logger"
)

// SnapshotFunc 返回可 JSON 编码的运行时快照
type SnapshotFunc func() any

// debugRoutes /debug 下的所有路由；pprof 显式挂到自己的 mux 上，不碰 DefaultServeMux
func debugRoutes(snapshot SnapshotFunc) map[string]http.Handler {
	routes := map[string]http.Handler{
		"/debug/vars":          expvar.Handler(),
		"/debug/pprof/":        http.HandlerFunc(pprof.Index),
		"/debug/pprof/cmdline": http.HandlerFunc(pprof.Cmdline),
		"/debug/pprof/profile": http.HandlerFunc(pprof.Profile),
		"/debug/pprof/symbol":  http.HandlerFunc(pprof.Symbol),
		"/debug/pprof/trace":   http.HandlerFunc(pprof.Trace),
	}
	if snapshot != nil {
		routes["/debug/session"] = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			if err := json.NewEncoder(w).Encode(snapshot()); err != nil {
				logger.Warnf("编码会话快照失败: %v", err)
			}
		})
	}
	return routes
}

// StartAsync 在 listenAddr 上启动 debug 服务，ctx 结束时关闭；只应监听 localhost 或内网
func StartAsync(ctx context.Context, listenAddr string, snapshot SnapshotFunc) (*http.Server, error) {
	mux := http.NewServeMux()
	for path, h := range debugRoutes(snapshot) {
		mux.Handle(path, h)
	}

	ln, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return nil, err
	}
	srv := &http.Server{
		Addr:              ln.Addr().String(),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warnf("debug 服务退出: %v", err)
		}
	}()
	context.AfterFunc(ctx, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	})

	logger.Infof("debug 服务: http://%s/debug/vars", srv.Addr)
	return srv, nil
}
