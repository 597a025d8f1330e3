package types

import (
	"encoding/json"
	"fmt"
)

// 入站帧 channel 标签
const (
	ChannelAllMids                     = "allMids"
	ChannelL2Book                      = "l2Book"
	ChannelTrades                      = "trades"
	ChannelOrderUpdates                = "orderUpdates"
	ChannelUserFills                   = "userFills"
	ChannelCandle                      = "candle"
	ChannelClearinghouseState          = "clearinghouseState"
	ChannelNotification                = "notification"
	ChannelWebData2                    = "webData2"
	ChannelActiveAssetCtx              = "activeAssetCtx"
	ChannelActiveSpotAssetCtx          = "activeSpotAssetCtx"
	ChannelBbo                         = "bbo"
	ChannelUser                        = "user"
	ChannelUserFundings                = "userFundings"
	ChannelUserNonFundingLedgerUpdates = "userNonFundingLedgerUpdates"
	ChannelPost                        = "post"
	ChannelSubscriptionResponse        = "subscriptionResponse"
	ChannelPong                        = "pong"
	ChannelError                       = "error"
)

// MessageKind 入站消息分类
type MessageKind int

const (
	KindUnknown MessageKind = iota
	KindData
	KindPostResponse
	KindSubscriptionResponse
	KindPong
	KindError
	KindNoData
)

func (k MessageKind) String() string {
	switch k {
	case KindData:
		return "data"
	case KindPostResponse:
		return "post"
	case KindSubscriptionResponse:
		return "subscriptionResponse"
	case KindPong:
		return "pong"
	case KindError:
		return "error"
	case KindNoData:
		return "noData"
	default:
		return "unknown"
	}
}

// InboundMessage 解析后的入站帧
// 数据帧的 Data 保留原始 JSON，由订阅者按需用 DecodeData 解码
type InboundMessage struct {
	Kind     MessageKind
	Channel  string
	RouteKey string
	Data     json.RawMessage
	Post     *PostResponse
	Err      string
}

// DecodeData 把数据帧的 data 解码成具体类型
func DecodeData[T any](m InboundMessage) (T, error) {
	var out T
	if len(m.Data) == 0 {
		return out, fmt.Errorf("channel %s 没有 data", m.Channel)
	}
	if err := json.Unmarshal(m.Data, &out); err != nil {
		return out, fmt.Errorf("解析 %s 数据失败: %w", m.Channel, err)
	}
	return out, nil
}

// WsFrame 入站帧的外层结构，先只解析 channel
type WsFrame struct {
	Channel string          `json:"channel"`
	Data    json.RawMessage `json:"data"`
}

// PostResponse post 请求的响应
type PostResponse struct {
	ID       uint64           `json:"id"`
	Response PostResponseBody `json:"response"`
}

// PostResponseBody type 为 action / info / error
// error 时 payload 是字符串
type PostResponseBody struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// IsError 服务端拒绝了整个 post 请求（非业务错误）
func (p *PostResponse) IsError() bool {
	return p.Response.Type == "error"
}

// ErrorMessage error 类型响应里的字符串
func (p *PostResponse) ErrorMessage() string {
	var s string
	if err := json.Unmarshal(p.Response.Payload, &s); err != nil {
		return string(p.Response.Payload)
	}
	return s
}

// ---------- 数据帧结构（只覆盖常用字段） ----------

// AllMids {"mids": {"BTC": "30000.0", ...}}
type AllMids struct {
	Mids map[string]string `json:"mids"`
}

// Level 订单簿档位
type Level struct {
	Px string `json:"px"`
	Sz string `json:"sz"`
	N  int    `json:"n"`
}

// L2Book 订单簿快照，Levels[0] 为买盘，Levels[1] 为卖盘
type L2Book struct {
	Coin   string     `json:"coin"`
	Time   int64      `json:"time"`
	Levels [2][]Level `json:"levels"`
}

// Trade 公开成交
type Trade struct {
	Coin  string    `json:"coin"`
	Side  string    `json:"side"`
	Px    string    `json:"px"`
	Sz    string    `json:"sz"`
	Time  int64     `json:"time"`
	Hash  string    `json:"hash"`
	Tid   uint64    `json:"tid"`
	Users [2]string `json:"users"`
}

// Bbo 最优买卖价，缺档时为 null
type Bbo struct {
	Coin string    `json:"coin"`
	Time int64     `json:"time"`
	Bbo  [2]*Level `json:"bbo"`
}

// Candle K 线
type Candle struct {
	OpenTime  int64  `json:"t"`
	CloseTime int64  `json:"T"`
	Coin      string `json:"s"`
	Interval  string `json:"i"`
	Open      string `json:"o"`
	Close     string `json:"c"`
	High      string `json:"h"`
	Low       string `json:"l"`
	Volume    string `json:"v"`
	Trades    int64  `json:"n"`
}

// BasicOrder 订单更新里的订单信息
type BasicOrder struct {
	Coin      string `json:"coin"`
	Side      string `json:"side"`
	LimitPx   string `json:"limitPx"`
	Sz        string `json:"sz"`
	Oid       uint64 `json:"oid"`
	Timestamp int64  `json:"timestamp"`
	OrigSz    string `json:"origSz"`
	Cloid     string `json:"cloid,omitempty"`
}

// OrderUpdate orderUpdates 推送（data 为数组）
type OrderUpdate struct {
	Order           BasicOrder `json:"order"`
	Status          string     `json:"status"`
	StatusTimestamp int64      `json:"statusTimestamp"`
}

// Fill 用户成交
type Fill struct {
	Coin          string `json:"coin"`
	Px            string `json:"px"`
	Sz            string `json:"sz"`
	Side          string `json:"side"`
	Time          int64  `json:"time"`
	StartPosition string `json:"startPosition"`
	Dir           string `json:"dir"`
	ClosedPnl     string `json:"closedPnl"`
	Hash          string `json:"hash"`
	Oid           uint64 `json:"oid"`
	Crossed       bool   `json:"crossed"`
	Fee           string `json:"fee"`
	Tid           uint64 `json:"tid"`
	FeeToken      string `json:"feeToken"`
	Cloid         string `json:"cloid,omitempty"`
}

// UserFills userFills 推送
type UserFills struct {
	IsSnapshot bool   `json:"isSnapshot"`
	User       string `json:"user"`
	Fills      []Fill `json:"fills"`
}

// UserFundings userFundings 推送，fundings 结构按需解码
type UserFundings struct {
	IsSnapshot bool            `json:"isSnapshot"`
	User       string          `json:"user"`
	Fundings   json.RawMessage `json:"fundings"`
}

// Notification 系统通知
type Notification struct {
	Notification string `json:"notification"`
}

// ActiveAssetCtx 资产上下文（资金费率、标记价等）
type ActiveAssetCtx struct {
	Coin string          `json:"coin"`
	Ctx  json.RawMessage `json:"ctx"`
}

// ClearinghouseState 账户状态推送
type ClearinghouseState struct {
	Dex                string          `json:"dex"`
	User               string          `json:"user"`
	ClearinghouseState json.RawMessage `json:"clearinghouseState"`
}
