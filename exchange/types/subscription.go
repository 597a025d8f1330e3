package types

import (
	"encoding/json"
	"fmt"
	"strings"
)

// 订阅类型（subscription.type）
const (
	SubAllMids                     = "allMids"
	SubNotification                = "notification"
	SubWebData2                    = "webData2"
	SubClearinghouseState          = "clearinghouseState"
	SubCandle                      = "candle"
	SubL2Book                      = "l2Book"
	SubBbo                         = "bbo"
	SubTrades                      = "trades"
	SubOrderUpdates                = "orderUpdates"
	SubUserEvents                  = "userEvents"
	SubUserFills                   = "userFills"
	SubUserFundings                = "userFundings"
	SubUserNonFundingLedgerUpdates = "userNonFundingLedgerUpdates"
	SubActiveAssetCtx              = "activeAssetCtx"
)

// Subscription 行情/用户数据订阅
// 身份 = type + 关键字段，相同身份的订阅只保留一份
type Subscription struct {
	Type     string `json:"type"`
	User     string `json:"user,omitempty"`
	Coin     string `json:"coin,omitempty"`
	Interval string `json:"interval,omitempty"`
	Dex      string `json:"dex,omitempty"`
}

func AllMidsSubscription() Subscription {
	return Subscription{Type: SubAllMids}
}

func NotificationSubscription(user string) Subscription {
	return Subscription{Type: SubNotification, User: normalizeUser(user)}
}

func WebData2Subscription(user, dex string) Subscription {
	return Subscription{Type: SubWebData2, User: normalizeUser(user), Dex: dex}
}

func ClearinghouseStateSubscription(user, dex string) Subscription {
	return Subscription{Type: SubClearinghouseState, User: normalizeUser(user), Dex: dex}
}

func CandleSubscription(coin, interval string) Subscription {
	return Subscription{Type: SubCandle, Coin: coin, Interval: interval}
}

func L2BookSubscription(coin string) Subscription {
	return Subscription{Type: SubL2Book, Coin: coin}
}

func BboSubscription(coin string) Subscription {
	return Subscription{Type: SubBbo, Coin: coin}
}

func TradesSubscription(coin string) Subscription {
	return Subscription{Type: SubTrades, Coin: coin}
}

func OrderUpdatesSubscription(user string) Subscription {
	return Subscription{Type: SubOrderUpdates, User: normalizeUser(user)}
}

func UserEventsSubscription(user string) Subscription {
	return Subscription{Type: SubUserEvents, User: normalizeUser(user)}
}

func UserFillsSubscription(user string) Subscription {
	return Subscription{Type: SubUserFills, User: normalizeUser(user)}
}

func UserFundingsSubscription(user string) Subscription {
	return Subscription{Type: SubUserFundings, User: normalizeUser(user)}
}

func UserNonFundingLedgerUpdatesSubscription(user string) Subscription {
	return Subscription{Type: SubUserNonFundingLedgerUpdates, User: normalizeUser(user)}
}

func ActiveAssetCtxSubscription(coin string) Subscription {
	return Subscription{Type: SubActiveAssetCtx, Coin: coin}
}

func normalizeUser(user string) string {
	return strings.ToLower(strings.TrimSpace(user))
}

// Validate 检查订阅的关键字段是否齐全
func (s Subscription) Validate() error {
	switch s.Type {
	case SubAllMids:
		return nil
	case SubL2Book, SubBbo, SubTrades, SubActiveAssetCtx:
		if s.Coin == "" {
			return fmt.Errorf("%s 订阅缺少 coin", s.Type)
		}
	case SubCandle:
		if s.Coin == "" || s.Interval == "" {
			return fmt.Errorf("candle 订阅需要 coin 和 interval")
		}
	case SubNotification, SubWebData2, SubClearinghouseState, SubOrderUpdates, SubUserEvents,
		SubUserFills, SubUserFundings, SubUserNonFundingLedgerUpdates:
		if s.User == "" {
			return fmt.Errorf("%s 订阅缺少 user", s.Type)
		}
	default:
		return fmt.Errorf("未知的订阅类型: %q", s.Type)
	}
	return nil
}

// Identity 订阅去重用的身份（规范化 JSON）
func (s Subscription) Identity() string {
	s.User = normalizeUser(s.User)
	b, _ := json.Marshal(s)
	return string(b)
}

// Channel 该订阅的推送在入站帧里使用的 channel
func (s Subscription) Channel() string {
	if s.Type == SubUserEvents {
		return ChannelUser
	}
	return s.Type
}

// RouteKey 入站数据帧按此 key 分发给订阅者
// orderUpdates / notification / userEvents 的推送里不带 user，只按 channel 匹配
func (s Subscription) RouteKey() string {
	switch s.Type {
	case SubAllMids, SubOrderUpdates, SubNotification, SubUserEvents:
		return s.Channel()
	case SubL2Book, SubBbo, SubTrades, SubActiveAssetCtx:
		return RouteKey(s.Channel(), s.Coin)
	case SubCandle:
		return RouteKey(s.Channel(), s.Coin, s.Interval)
	case SubClearinghouseState, SubWebData2:
		return UserDexRouteKey(s.Channel(), s.User, s.Dex)
	default:
		return RouteKey(s.Channel(), normalizeUser(s.User))
	}
}

func (s Subscription) String() string {
	return s.Identity()
}

// UserDexRouteKey 按 user 和 dex 区分的频道；默认 dex（空串）不追加，入站帧用同一规则
func UserDexRouteKey(channel, user, dex string) string {
	if dex == "" {
		return RouteKey(channel, normalizeUser(user))
	}
	return RouteKey(channel, normalizeUser(user), dex)
}

// RouteKey 拼接路由 key：channel:part1:part2
func RouteKey(channel string, parts ...string) string {
	if len(parts) == 0 {
		return channel
	}
	return channel + ":" + strings.Join(parts, ":")
}
