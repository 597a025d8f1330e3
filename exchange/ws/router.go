package ws

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/betbot/gohyper/exchange/types"
)

// Classify 解析单个入站帧，纯函数
// 非 JSON 文本（例如 "Websocket connection established."）归为 KindNoData
func Classify(raw []byte) (types.InboundMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || (trimmed[0] != '{' && trimmed[0] != '[') {
		return types.InboundMessage{Kind: types.KindNoData}, nil
	}

	var frame types.WsFrame
	if err := json.Unmarshal(trimmed, &frame); err != nil {
		return types.InboundMessage{}, &types.ProtocolError{Err: fmt.Errorf("帧解析失败: %w", err)}
	}
	msg := types.InboundMessage{Channel: frame.Channel, Data: frame.Data}

	switch frame.Channel {
	case types.ChannelPost:
		var resp types.PostResponse
		if err := json.Unmarshal(frame.Data, &resp); err != nil {
			return msg, &types.ProtocolError{Channel: frame.Channel, Err: err}
		}
		msg.Kind = types.KindPostResponse
		msg.Post = &resp
		return msg, nil
	case types.ChannelPong:
		msg.Kind = types.KindPong
		return msg, nil
	case types.ChannelSubscriptionResponse:
		msg.Kind = types.KindSubscriptionResponse
		return msg, nil
	case types.ChannelError:
		msg.Kind = types.KindError
		var s string
		if err := json.Unmarshal(frame.Data, &s); err != nil {
			s = string(frame.Data)
		}
		msg.Err = s
		return msg, nil
	}

	key, ok, err := dataRouteKey(frame.Channel, frame.Data)
	if err != nil {
		return msg, &types.ProtocolError{Channel: frame.Channel, Err: err}
	}
	if !ok {
		msg.Kind = types.KindUnknown
		return msg, nil
	}
	msg.Kind = types.KindData
	msg.RouteKey = key
	return msg, nil
}

// dataRouteKey 计算数据帧的路由 key，必须与 Subscription.RouteKey 一致
func dataRouteKey(channel string, data json.RawMessage) (string, bool, error) {
	switch channel {
	case types.ChannelAllMids, types.ChannelOrderUpdates, types.ChannelNotification, types.ChannelUser:
		return channel, true, nil

	case types.ChannelL2Book, types.ChannelBbo:
		var v struct {
			Coin string `json:"coin"`
		}
		if err := json.Unmarshal(data, &v); err != nil {
			return "", false, err
		}
		return types.RouteKey(channel, v.Coin), true, nil

	case types.ChannelActiveAssetCtx, types.ChannelActiveSpotAssetCtx:
		var v struct {
			Coin string `json:"coin"`
		}
		if err := json.Unmarshal(data, &v); err != nil {
			return "", false, err
		}
		// 现货资产上下文与永续共用一个订阅类型
		return types.RouteKey(types.ChannelActiveAssetCtx, v.Coin), true, nil

	case types.ChannelTrades:
		var v []struct {
			Coin string `json:"coin"`
		}
		if err := json.Unmarshal(data, &v); err != nil {
			return "", false, err
		}
		if len(v) == 0 {
			return "", false, fmt.Errorf("trades 推送为空")
		}
		return types.RouteKey(channel, v[0].Coin), true, nil

	case types.ChannelCandle:
		var v struct {
			Coin     string `json:"s"`
			Interval string `json:"i"`
		}
		if err := json.Unmarshal(data, &v); err != nil {
			return "", false, err
		}
		return types.RouteKey(channel, v.Coin, v.Interval), true, nil

	case types.ChannelClearinghouseState, types.ChannelWebData2:
		var v struct {
			User string `json:"user"`
			Dex  string `json:"dex"`
		}
		if err := json.Unmarshal(data, &v); err != nil {
			return "", false, err
		}
		return types.UserDexRouteKey(channel, v.User, v.Dex), true, nil

	case types.ChannelUserFills, types.ChannelUserFundings, types.ChannelUserNonFundingLedgerUpdates:
		var v struct {
			User string `json:"user"`
		}
		if err := json.Unmarshal(data, &v); err != nil {
			return "", false, err
		}
		return types.RouteKey(channel, strings.ToLower(v.User)), true, nil
	}
	return "", false, nil
}

// Router 把入站帧分发给关联器、心跳回调或订阅者
type Router struct {
	correlator *Correlator
	onPong     func()
	log        *logrus.Entry

	mu      sync.RWMutex
	streams map[string]map[*Stream]struct{}

	unknownMu   sync.Mutex
	unknownSeen map[string]struct{}
}

// NewRouter 创建路由器
func NewRouter(correlator *Correlator, onPong func(), log *logrus.Entry) *Router {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	if onPong == nil {
		onPong = func() {}
	}
	return &Router{
		correlator:  correlator,
		onPong:      onPong,
		log:         log,
		streams:     make(map[string]map[*Stream]struct{}),
		unknownSeen: make(map[string]struct{}),
	}
}

// Dispatch 处理单个入站帧；协议错误只记日志，不影响后续帧
func (r *Router) Dispatch(raw []byte) types.InboundMessage {
	msg, err := Classify(raw)
	if err != nil {
		r.log.Warnf("丢弃无法解析的帧: %v, raw=%s", err, truncateForLog(string(raw), 256))
		return msg
	}

	switch msg.Kind {
	case types.KindPostResponse:
		r.correlator.Resolve(msg.Post)
	case types.KindPong:
		r.onPong()
	case types.KindSubscriptionResponse:
		r.log.Debugf("订阅确认: %s", truncateForLog(string(msg.Data), 200))
	case types.KindError:
		r.log.Warnf("服务端错误: %s", msg.Err)
	case types.KindData:
		r.deliver(msg)
	case types.KindUnknown:
		r.unknownOnce(msg.Channel)
	}
	return msg
}

func (r *Router) unknownOnce(channel string) {
	r.unknownMu.Lock()
	_, seen := r.unknownSeen[channel]
	if !seen {
		r.unknownSeen[channel] = struct{}{}
	}
	r.unknownMu.Unlock()
	if !seen {
		r.log.Infof("忽略未知 channel: %s", channel)
	}
}

func (r *Router) deliver(msg types.InboundMessage) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for s := range r.streams[msg.RouteKey] {
		s.push(msg)
	}
}

func (r *Router) attach(s *Stream) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.streams[s.routeKey]
	if !ok {
		set = make(map[*Stream]struct{})
		r.streams[s.routeKey] = set
	}
	set[s] = struct{}{}
}

func (r *Router) detach(s *Stream) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set := r.streams[s.routeKey]
	delete(set, s)
	if len(set) == 0 {
		delete(r.streams, s.routeKey)
	}
}

func (r *Router) detachIdentity(routeKey, identity string) []*Stream {
	r.mu.Lock()
	defer r.mu.Unlock()
	set := r.streams[routeKey]
	var out []*Stream
	for s := range set {
		if s.sub.Identity() == identity {
			out = append(out, s)
			delete(set, s)
		}
	}
	if len(set) == 0 {
		delete(r.streams, routeKey)
	}
	return out
}

// StreamCount 当前挂载的订阅者数量
func (r *Router) StreamCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, set := range r.streams {
		n += len(set)
	}
	return n
}

func (r *Router) closeAll() {
	r.mu.Lock()
	var all []*Stream
	for _, set := range r.streams {
		for s := range set {
			all = append(all, s)
		}
	}
	r.streams = make(map[string]map[*Stream]struct{})
	r.mu.Unlock()

	for _, s := range all {
		s.shutdown()
	}
}
