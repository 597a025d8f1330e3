package ws

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/betbot/gohyper/exchange/types"
	"github.com/betbot/gohyper/pkg/logger"
	"github.com/betbot/gohyper/pkg/sigchan"
	"github.com/betbot/gohyper/pkg/syncgroup"
)

var errNotConnected = errors.New("websocket 未连接")

// Transport 单条 WebSocket 连接：自动重连、心跳、订阅重放、post 请求关联
type Transport struct {
	cfg        Config
	log        *logrus.Entry
	correlator *Correlator
	router     *Router
	limiter    *rate.Limiter

	state       atomic.Int32
	hookMu      sync.RWMutex
	stateHook   func(State)
	connectedCh *sigchan.Chan

	connMu  sync.RWMutex
	conn    *websocket.Conn
	writeMu sync.Mutex

	// subs 按首次订阅顺序保存，重连后按此顺序重放
	subsMu sync.Mutex
	subs   []types.Subscription
	refs   map[string]int

	lastPong   atomic.Int64
	connects   atomic.Int64
	reconnects atomic.Int64

	runMu     sync.Mutex
	started   bool
	cancel    context.CancelFunc
	loopDone  chan struct{}
	closeOnce sync.Once
}

// NewTransport 创建传输层，调用 Start 之后才会连接
func NewTransport(cfg Config) *Transport {
	cfg.applyDefaults()
	log := logger.Component("ws")
	perSecond := float64(cfg.MessagesPerMinute) / 60.0
	burst := cfg.MessagesPerMinute / 10
	if burst < 1 {
		burst = 1
	}

	t := &Transport{
		cfg:         cfg,
		log:         log,
		limiter:     rate.NewLimiter(rate.Limit(perSecond), burst),
		connectedCh: sigchan.New(1),
		refs:        make(map[string]int),
		loopDone:    make(chan struct{}),
	}
	t.correlator = NewCorrelator(log)
	t.router = NewRouter(t.correlator, func() { t.lastPong.Store(time.Now().UnixNano()) }, log)
	return t
}

// Start 启动连接循环，只生效一次；ctx 取消后连接循环退出
func (t *Transport) Start(ctx context.Context) error {
	t.runMu.Lock()
	defer t.runMu.Unlock()
	if t.State() == StateClosed {
		return types.ErrSessionClosed
	}
	if t.started {
		return nil
	}
	t.started = true
	runCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	go t.run(runCtx)
	return nil
}

// WaitConnected 等待连接建立
func (t *Transport) WaitConnected(ctx context.Context) error {
	wake := t.connectedCh.Wait()
	defer func() { t.connectedCh.Cancel(wake) }()

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		switch t.State() {
		case StateConnected:
			return nil
		case StateClosed:
			return types.ErrSessionClosed
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-wake:
			// 被唤醒后重新登记，只保留一个等待者
			wake = t.connectedCh.Wait()
		case <-ticker.C:
		}
	}
}

// State 当前连接状态
func (t *Transport) State() State {
	return State(t.state.Load())
}

// OnStateChange 注册状态变化回调，回调在状态切换的 goroutine 里同步执行
// 切换到 Connected 时持有订阅锁，回调里不能同步调用 Subscribe / Unsubscribe
func (t *Transport) OnStateChange(fn func(State)) {
	t.hookMu.Lock()
	t.stateHook = fn
	t.hookMu.Unlock()
}

func (t *Transport) setState(s State) {
	var old State
	for {
		old = State(t.state.Load())
		if old == StateClosed && s != StateClosed {
			return
		}
		if t.state.CompareAndSwap(int32(old), int32(s)) {
			break
		}
	}
	if old == s {
		return
	}
	t.log.Debugf("连接状态: %s -> %s", old, s)
	t.hookMu.RLock()
	hook := t.stateHook
	t.hookMu.RUnlock()
	if hook != nil {
		hook(s)
	}
	if s == StateConnected || s == StateClosed {
		t.connectedCh.Broadcast()
	}
}

func (t *Transport) run(ctx context.Context) {
	defer close(t.loopDone)

	delay := t.cfg.ReconnectDelay
	for {
		if ctx.Err() != nil {
			return
		}
		t.setState(StateConnecting)
		conn, err := t.dial(ctx)
		if err != nil {
			t.setState(StateDisconnected)
			if ctx.Err() != nil {
				return
			}
			t.log.Warnf("连接失败，%s 后重试: %v", delay, err)
			if !sleepCtx(ctx, delay) {
				return
			}
			delay *= 2
			if delay > t.cfg.MaxReconnectDelay {
				delay = t.cfg.MaxReconnectDelay
			}
			continue
		}
		delay = t.cfg.ReconnectDelay

		if t.connects.Add(1) > 1 {
			t.reconnects.Add(1)
		}
		t.serve(ctx, conn)
		if ctx.Err() != nil {
			return
		}
		t.log.Infof("连接断开，%s 后重连", t.cfg.ReconnectDelay)
		if !sleepCtx(ctx, t.cfg.ReconnectDelay) {
			return
		}
	}
}

func (t *Transport) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := t.cfg.Dialer
	if dialer == nil {
		d := &websocket.Dialer{
			HandshakeTimeout: t.cfg.HandshakeTimeout,
			Proxy:            http.ProxyFromEnvironment,
		}
		if t.cfg.ProxyURL != "" {
			proxyURL, err := url.Parse(t.cfg.ProxyURL)
			if err != nil {
				return nil, &types.ConnectionError{URL: t.cfg.URL, Err: fmt.Errorf("代理地址无效: %w", err)}
			}
			d.Proxy = http.ProxyURL(proxyURL)
		}
		dialer = d
	}

	dialCtx, cancel := context.WithTimeout(ctx, t.cfg.HandshakeTimeout)
	defer cancel()
	conn, resp, err := dialer.DialContext(dialCtx, t.cfg.URL, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, &types.ConnectionError{URL: t.cfg.URL, Err: err}
	}
	return conn, nil
}

// serve 处理一条已建立的连接，直到连接断开或 ctx 取消
func (t *Transport) serve(ctx context.Context, conn *websocket.Conn) {
	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	t.connMu.Lock()
	t.conn = conn
	t.connMu.Unlock()
	t.lastPong.Store(time.Now().UnixNano())

	// 在 subsMu 内切换到 Connected 并重放，保证每个订阅在每条连接上只发送一次
	t.subsMu.Lock()
	t.setState(StateConnected)
	replay := make([]types.Subscription, len(t.subs))
	copy(replay, t.subs)
	for _, sub := range replay {
		if err := t.writeJSON(connCtx, types.SubscriptionRequest{Method: "subscribe", Subscription: sub}); err != nil {
			t.log.Warnf("重放订阅失败 %s: %v", sub, err)
			cancel()
			break
		}
	}
	t.subsMu.Unlock()
	if len(replay) > 0 {
		t.log.Infof("已连接，重放 %d 个订阅", len(replay))
	} else {
		t.log.Infof("已连接: %s", t.cfg.URL)
	}

	// 读循环或心跳任何一个退出，整条连接收尾
	sg := syncgroup.NewSyncGroup()
	sg.OnExit(cancel)
	sg.Add(func() { t.readLoop(connCtx, conn) })
	sg.Add(func() { t.heartbeat(connCtx) })
	sg.Add(func() {
		<-connCtx.Done()
		conn.Close()
	})
	sg.RunAndWait()

	t.connMu.Lock()
	if t.conn == conn {
		t.conn = nil
	}
	t.connMu.Unlock()
	t.setState(StateDisconnected)
	t.correlator.FailAll(types.ErrConnectionLost)
}

func (t *Transport) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				t.log.Warnf("读取失败: %v", err)
			}
			return
		}
		t.router.Dispatch(data)
	}
}

// heartbeat 定时发送 ping；发出 ping 后 PongTimeout 内没有 pong 就断开连接
func (t *Transport) heartbeat(ctx context.Context) {
	check := t.cfg.PongTimeout / 4
	if check > time.Second {
		check = time.Second
	}
	if check < 5*time.Millisecond {
		check = 5 * time.Millisecond
	}
	pingT := time.NewTicker(t.cfg.PingInterval)
	defer pingT.Stop()
	checkT := time.NewTicker(check)
	defer checkT.Stop()

	var pingAt time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case <-pingT.C:
			if err := t.writeJSON(ctx, types.PingRequest{Method: "ping"}); err != nil {
				if ctx.Err() == nil {
					t.log.Warnf("发送 ping 失败: %v", err)
				}
				return
			}
			if pingAt.IsZero() {
				pingAt = time.Now()
			}
		case <-checkT.C:
			if pingAt.IsZero() {
				continue
			}
			if t.lastPong.Load() >= pingAt.UnixNano() {
				pingAt = time.Time{}
				continue
			}
			if time.Since(pingAt) > t.cfg.PongTimeout {
				t.log.Warnf("%s 内未收到 pong，断开重连", t.cfg.PongTimeout)
				return
			}
		}
	}
}

// writeJSON 单写者发送；发送前先过出站限速
func (t *Transport) writeJSON(ctx context.Context, v any) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return err
	}
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	t.connMu.RLock()
	conn := t.conn
	t.connMu.RUnlock()
	if conn == nil {
		return errNotConnected
	}
	if err := conn.SetWriteDeadline(time.Now().Add(t.cfg.WriteTimeout)); err != nil {
		return err
	}
	return conn.WriteJSON(v)
}

// Subscribe 订阅并返回推送流
// 相同身份的订阅只向服务端发送一次；连接未建立时先登记，连接后统一发送
func (t *Transport) Subscribe(sub types.Subscription) (*Stream, error) {
	if err := sub.Validate(); err != nil {
		return nil, err
	}
	if t.State() == StateClosed {
		return nil, types.ErrSessionClosed
	}

	s := newStream(sub, t.cfg.SubscriberBacklogWarn, t.release, t.log)
	id := sub.Identity()

	// 挂载路由与引用计数在同一临界区内，和 Unsubscribe / release 互斥
	t.subsMu.Lock()
	defer t.subsMu.Unlock()
	t.router.attach(s)
	if t.State() == StateClosed {
		t.router.detach(s)
		s.shutdown()
		return nil, types.ErrSessionClosed
	}
	t.refs[id]++
	if t.refs[id] > 1 {
		return s, nil
	}
	t.subs = append(t.subs, sub)
	if t.State() == StateConnected {
		if err := t.writeJSON(context.Background(), types.SubscriptionRequest{Method: "subscribe", Subscription: sub}); err != nil {
			t.log.Warnf("发送订阅失败 %s，将在重连后重放: %v", sub, err)
		}
	}
	return s, nil
}

// release 流关闭回调：最后一个同身份的流关闭时退订
func (t *Transport) release(s *Stream) {
	id := s.sub.Identity()

	t.subsMu.Lock()
	defer t.subsMu.Unlock()
	t.router.detach(s)
	if t.refs[id] == 0 {
		return
	}
	t.refs[id]--
	if t.refs[id] > 0 {
		return
	}
	t.removeSubLocked(id)
}

// Unsubscribe 取消订阅并关闭该身份下所有推送流；未订阅时什么也不做
func (t *Transport) Unsubscribe(sub types.Subscription) error {
	if t.State() == StateClosed {
		return types.ErrSessionClosed
	}
	id := sub.Identity()

	t.subsMu.Lock()
	defer t.subsMu.Unlock()
	for _, s := range t.router.detachIdentity(sub.RouteKey(), id) {
		s.shutdown()
	}
	if _, ok := t.refs[id]; !ok {
		return nil
	}
	t.removeSubLocked(id)
	return nil
}

func (t *Transport) removeSubLocked(id string) {
	delete(t.refs, id)
	for i, sub := range t.subs {
		if sub.Identity() != id {
			continue
		}
		t.subs = append(t.subs[:i], t.subs[i+1:]...)
		if t.State() == StateConnected {
			if err := t.writeJSON(context.Background(), types.SubscriptionRequest{Method: "unsubscribe", Subscription: sub}); err != nil {
				t.log.Warnf("发送退订失败 %s: %v", sub, err)
			}
		}
		return
	}
}

// Subscriptions 当前订阅（按首次订阅顺序）
func (t *Transport) Subscriptions() []types.Subscription {
	t.subsMu.Lock()
	defer t.subsMu.Unlock()
	out := make([]types.Subscription, len(t.subs))
	copy(out, t.subs)
	return out
}

// Post 发送 post 请求并等待响应
// 超时返回 RequestError{Timeout}；连接断开返回 RequestError{ConnectionLost}
func (t *Transport) Post(ctx context.Context, typ types.PostRequestType, payload any) (*types.PostResponse, error) {
	return t.PostTimeout(ctx, typ, payload, t.cfg.RequestTimeout)
}

// PostTimeout 同 Post，使用指定超时
func (t *Transport) PostTimeout(ctx context.Context, typ types.PostRequestType, payload any, timeout time.Duration) (*types.PostResponse, error) {
	if t.State() == StateClosed {
		return nil, types.ErrSessionClosed
	}
	if timeout <= 0 {
		timeout = t.cfg.RequestTimeout
	}
	p := t.correlator.Register()
	if err := t.writeJSON(ctx, types.NewPostRequest(p.ID, typ, payload)); err != nil {
		kind := types.RequestConnectionLost
		if ctx.Err() != nil {
			kind = types.RequestCanceled
		}
		t.correlator.Fail(p.ID, &types.RequestError{ID: p.ID, Kind: kind, Err: err})
	}
	return t.correlator.Await(ctx, p, timeout)
}

// Close 关闭连接并停止重连；在途请求以 ConnectionLost 失败，推送流全部关闭
// 之后的所有操作返回 ErrSessionClosed
func (t *Transport) Close() error {
	t.closeOnce.Do(func() {
		t.setState(StateClosed)

		t.runMu.Lock()
		started := t.started
		cancel := t.cancel
		t.runMu.Unlock()

		if cancel != nil {
			cancel()
		}
		t.connMu.RLock()
		conn := t.conn
		t.connMu.RUnlock()
		if conn != nil {
			conn.Close()
		}
		if started {
			<-t.loopDone
		}
		t.correlator.FailAll(types.ErrConnectionLost)
		t.router.closeAll()
		t.log.Info("websocket 已关闭")
	})
	return nil
}

// Stats 运行状态快照
type Stats struct {
	State           State
	Subscriptions   int
	Streams         int
	PendingRequests int
	Connects        int64
	Reconnects      int64
	LastPong        time.Time
}

// Stats 返回运行状态
func (t *Transport) Stats() Stats {
	t.subsMu.Lock()
	nsubs := len(t.subs)
	t.subsMu.Unlock()
	var lastPong time.Time
	if v := t.lastPong.Load(); v > 0 {
		lastPong = time.Unix(0, v)
	}
	return Stats{
		State:           t.State(),
		Subscriptions:   nsubs,
		Streams:         t.router.StreamCount(),
		PendingRequests: t.correlator.Len(),
		Connects:        t.connects.Load(),
		Reconnects:      t.reconnects.Load(),
		LastPong:        lastPong,
	}
}

// DebugSnapshot 排障用的单行状态
func (t *Transport) DebugSnapshot() string {
	st := t.Stats()
	lastPong := ""
	if !st.LastPong.IsZero() {
		lastPong = st.LastPong.Format(time.RFC3339Nano)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "state=%s url=%s subs=%d streams=%d pending=%d connects=%d reconnects=%d lastPong=%s",
		st.State, t.cfg.URL, st.Subscriptions, st.Streams, st.PendingRequests, st.Connects, st.Reconnects, lastPong)
	return b.String()
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
