package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/betbot/gohyper/exchange/signing"
	"github.com/betbot/gohyper/exchange/types"
	"github.com/betbot/gohyper/exchange/ws"
	"github.com/betbot/gohyper/internal/metrics"
	"github.com/betbot/gohyper/pkg/logger"
)

// Option 会话构造选项
type Option func(*Session)

// WithNonceClock 使用外部 nonce 时钟（同一私钥的多个会话应共享一个时钟）
func WithNonceClock(clock *signing.NonceClock) Option {
	return func(s *Session) { s.clock = clock }
}

// WithAssetDirectory 预置资产目录，省去 LoadAssets
func WithAssetDirectory(dir *types.AssetDirectory) Option {
	return func(s *Session) { s.assets = dir }
}

// WithDialer 替换 WS 拨号器
func WithDialer(d ws.Dialer) Option {
	return func(s *Session) { s.cfg.WS.Dialer = d }
}

// Session 一个签名身份与一条交易所连接的组合
// 负责 nonce、签名、提交以及行情订阅
type Session struct {
	cfg      Config
	identity *signing.Identity
	signer   *signing.Signer
	clock    *signing.NonceClock

	transport *ws.Transport
	rest      *restTransport

	assetsMu sync.RWMutex
	assets   *types.AssetDirectory

	closed atomic.Bool
	log    *logrus.Entry
}

// NewSession 创建会话；identity 可以为空（只读会话，只能订阅和查询）
func NewSession(cfg Config, identity *signing.Identity, opts ...Option) (*Session, error) {
	if cfg.Transport == "" {
		cfg.Transport = TransportWebSocket
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultConfig(cfg.Network).RequestTimeout
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Session{
		cfg:      cfg,
		identity: identity,
		signer:   signing.NewSigner(cfg.Network),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.clock == nil {
		s.clock = signing.NewNonceClock()
	}

	fields := logrus.Fields{"component": "session", "network": string(cfg.Network)}
	if identity != nil {
		fields["address"] = identity.Address().Hex()
	}
	s.log = logger.WithFields(fields)

	base := cfg.baseURL()
	wsCfg := s.cfg.WS
	if wsCfg.URL == "" {
		wsCfg.URL = types.WsURL(base)
	}
	if wsCfg.RequestTimeout <= 0 {
		wsCfg.RequestTimeout = cfg.RequestTimeout
	}
	s.transport = ws.NewTransport(wsCfg)
	s.rest = newRESTTransport(base, cfg.HTTP, cfg.RESTWeightPerMinute)
	return s, nil
}

// Start 建立 WS 连接（非阻塞）；只用 REST 的会话不需要调用
func (s *Session) Start(ctx context.Context) error {
	if s.closed.Load() {
		return types.ErrSessionClosed
	}
	return s.transport.Start(ctx)
}

// WaitConnected 等待 WS 连接建立
func (s *Session) WaitConnected(ctx context.Context) error {
	if s.closed.Load() {
		return types.ErrSessionClosed
	}
	return s.transport.WaitConnected(ctx)
}

// Address 签名地址
func (s *Session) Address() common.Address {
	if s.identity == nil {
		return common.Address{}
	}
	return s.identity.Address()
}

// State WS 连接状态
func (s *Session) State() ws.State {
	return s.transport.State()
}

// Transport 底层 WS 传输，用于状态回调和排障
func (s *Session) Transport() *ws.Transport {
	return s.transport
}

// RemainingRESTWeight 当前窗口剩余的 REST 权重
func (s *Session) RemainingRESTWeight() int {
	return s.rest.remaining()
}

// SubmitOption 单次提交选项
type SubmitOption func(*submitOptions)

type submitOptions struct {
	via          TransportKind
	vault        *common.Address
	noVault      bool
	expiresAfter *uint64
	timeout      time.Duration
}

// ViaREST 本次提交走 HTTP /exchange
func ViaREST() SubmitOption {
	return func(o *submitOptions) { o.via = TransportREST }
}

// ViaWebSocket 本次提交走 WS post
func ViaWebSocket() SubmitOption {
	return func(o *submitOptions) { o.via = TransportWebSocket }
}

// WithVault 本次提交代指定 vault 签名，覆盖会话配置
func WithVault(addr common.Address) SubmitOption {
	return func(o *submitOptions) { o.vault = &addr }
}

// WithoutVault 本次提交不使用会话配置的 vault
func WithoutVault() SubmitOption {
	return func(o *submitOptions) { o.noVault = true }
}

// WithExpiresAfter 本次提交携带指定的过期时间（毫秒时间戳）
func WithExpiresAfter(ms uint64) SubmitOption {
	return func(o *submitOptions) { o.expiresAfter = &ms }
}

// WithTimeout 本次提交的响应超时
func WithTimeout(d time.Duration) SubmitOption {
	return func(o *submitOptions) { o.timeout = d }
}

func (s *Session) resolveOptions(opts []SubmitOption) submitOptions {
	o := submitOptions{via: s.cfg.Transport, vault: s.cfg.VaultAddress, timeout: s.cfg.RequestTimeout}
	for _, opt := range opts {
		opt(&o)
	}
	if o.noVault {
		o.vault = nil
	}
	if o.expiresAfter == nil && s.cfg.ExpiresAfter > 0 {
		ms := uint64(time.Now().Add(s.cfg.ExpiresAfter).UnixMilli())
		o.expiresAfter = &ms
	}
	return o
}

// SubmitAction 签名并提交一个动作，返回解码后的交易所响应
//
// 整个请求被拒绝（例如 nonce 过期）时同时返回响应和 *types.ExchangeError；
// 批量中单个元素的失败不算错误，用 ExchangeResponse.StatusErrors 检查。
// 签名失败的动作不会被发送；失败的请求不会自动重发。
func (s *Session) SubmitAction(ctx context.Context, action types.Action, opts ...SubmitOption) (*types.ExchangeResponse, error) {
	resp, err := s.submitAction(ctx, action, opts...)
	if err != nil {
		metrics.RecordFailure(err)
	} else {
		metrics.ActionsSubmitted.Add(1)
	}
	return resp, err
}

func (s *Session) submitAction(ctx context.Context, action types.Action, opts ...SubmitOption) (*types.ExchangeResponse, error) {
	if s.closed.Load() {
		return nil, types.ErrSessionClosed
	}
	if s.identity == nil {
		return nil, &types.SigningError{Op: "identity", Err: errors.New("只读会话不能提交动作")}
	}
	o := s.resolveOptions(opts)

	if o.via == TransportWebSocket {
		if err := s.ensureConnected(ctx, o.timeout); err != nil {
			return nil, err
		}
	}

	// 用户签名动作的 nonce 就是动作里的 time
	var nonce uint64
	if ua, ok := action.(types.UserSignedAction); ok {
		nonce = ua.SignTime()
	} else {
		nonce = s.clock.Next()
	}

	signed, err := s.signer.SignAction(action, nonce, s.identity, signing.SignOptions{
		VaultAddress: o.vault,
		ExpiresAfter: o.expiresAfter,
	})
	if err != nil {
		return nil, err
	}
	env := signing.BuildEnvelope(*signed)

	log := s.log.WithFields(logrus.Fields{"action": action.ActionType(), "nonce": nonce, "via": string(o.via)})
	log.Debug("提交动作")

	var raw []byte
	switch o.via {
	case TransportREST:
		raw, err = s.rest.exchange(ctx, env, actionWeight(action))
		if err != nil {
			log.Warnf("REST 提交失败: %v", err)
			return nil, err
		}
	default:
		resp, err := s.transport.PostTimeout(ctx, types.PostRequestAction, env, o.timeout)
		if err != nil {
			log.Warnf("WS 提交失败: %v", err)
			return nil, err
		}
		if resp.IsError() {
			exErr := &types.ExchangeError{Index: -1, Message: resp.ErrorMessage()}
			log.Warnf("交易所拒绝请求: %s", exErr.Message)
			return nil, exErr
		}
		raw = resp.Response.Payload
	}

	out, err := types.ParseExchangeResponse(raw)
	if err != nil {
		return nil, err
	}
	if err := out.Err(); err != nil {
		log.Warnf("交易所拒绝请求: %v", err)
		return out, err
	}
	if errs := out.StatusErrors(); len(errs) > 0 {
		log.Infof("%d/%d 个元素失败: %v", len(errs), len(out.Statuses), errs[0])
	}
	return out, nil
}

func (s *Session) ensureConnected(ctx context.Context, timeout time.Duration) error {
	if s.transport.State() == ws.StateConnected {
		return nil
	}
	if err := s.transport.Start(context.Background()); err != nil {
		return err
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := s.transport.WaitConnected(waitCtx); err != nil {
		if errors.Is(err, types.ErrSessionClosed) {
			return err
		}
		return &types.RequestError{Kind: types.RequestConnectionLost, Err: fmt.Errorf("等待连接: %w", err)}
	}
	return nil
}

// Info 只读查询，payload 形如 {"type":"meta"}；结果解码进 out（可为 nil）
func (s *Session) Info(ctx context.Context, payload any, out any, opts ...SubmitOption) error {
	if s.closed.Load() {
		return types.ErrSessionClosed
	}
	metrics.InfoRequests.Add(1)
	o := s.resolveOptions(opts)

	var data json.RawMessage
	switch o.via {
	case TransportREST:
		raw, err := s.rest.info(ctx, payload)
		if err != nil {
			return err
		}
		data = raw
	default:
		if err := s.ensureConnected(ctx, o.timeout); err != nil {
			return err
		}
		resp, err := s.transport.PostTimeout(ctx, types.PostRequestInfo, payload, o.timeout)
		if err != nil {
			return err
		}
		if resp.IsError() {
			return &types.ExchangeError{Index: -1, Message: resp.ErrorMessage()}
		}
		data = unwrapInfoPayload(resp.Response.Payload)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("解析 info 响应失败: %w", err)
	}
	return nil
}

// unwrapInfoPayload WS info 响应形如 {"type":"meta","data":{...}}，取出 data
func unwrapInfoPayload(payload json.RawMessage) json.RawMessage {
	var v struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(payload, &v); err == nil && v.Type != "" && len(v.Data) > 0 {
		return v.Data
	}
	return payload
}

// Subscribe 订阅推送，返回的流在重连后继续有效；Stream.Close 取消订阅
func (s *Session) Subscribe(sub types.Subscription) (*ws.Stream, error) {
	if s.closed.Load() {
		return nil, types.ErrSessionClosed
	}
	if err := s.transport.Start(context.Background()); err != nil {
		return nil, err
	}
	return s.transport.Subscribe(sub)
}

// Unsubscribe 取消订阅，关闭该订阅的所有流
func (s *Session) Unsubscribe(sub types.Subscription) error {
	if s.closed.Load() {
		return types.ErrSessionClosed
	}
	return s.transport.Unsubscribe(sub)
}

// Close 关闭会话；在途请求以 ConnectionLost 失败，之后的操作返回 ErrSessionClosed
func (s *Session) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.log.Info("会话关闭")
	return s.transport.Close()
}
