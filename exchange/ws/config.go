package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// State 连接状态
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateClosed // 终态，不再重连
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// MarshalText 以名称输出状态，用于 JSON 快照
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Dialer 建立 WebSocket 连接，默认使用 gorilla 的 websocket.Dialer
type Dialer interface {
	DialContext(ctx context.Context, urlStr string, requestHeader http.Header) (*websocket.Conn, *http.Response, error)
}

// Config 传输层配置
type Config struct {
	URL      string
	ProxyURL string

	// 心跳：每 PingInterval 发送 {"method":"ping"}，PongTimeout 内没有 pong 则断开重连
	PingInterval time.Duration
	PongTimeout  time.Duration

	// 重连退避：从 ReconnectDelay 开始翻倍，上限 MaxReconnectDelay，无限重试直到 Close
	ReconnectDelay    time.Duration
	MaxReconnectDelay time.Duration

	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration

	// RequestTimeout post 请求等待响应的超时
	RequestTimeout time.Duration

	// MessagesPerMinute 出站帧限速（交易所限制每分钟 2000 条）
	MessagesPerMinute int

	// SubscriberBacklogWarn 订阅者积压超过该条数时告警
	SubscriberBacklogWarn int

	Dialer Dialer
}

// DefaultConfig 返回默认配置
func DefaultConfig(url string) Config {
	return Config{
		URL:                   url,
		PingInterval:          50 * time.Second,
		PongTimeout:           30 * time.Second,
		ReconnectDelay:        1 * time.Second,
		MaxReconnectDelay:     30 * time.Second,
		HandshakeTimeout:      30 * time.Second,
		WriteTimeout:          10 * time.Second,
		RequestTimeout:        10 * time.Second,
		MessagesPerMinute:     2000,
		SubscriberBacklogWarn: 1000,
	}
}

func (c *Config) applyDefaults() {
	def := DefaultConfig(c.URL)
	if c.PingInterval <= 0 {
		c.PingInterval = def.PingInterval
	}
	if c.PongTimeout <= 0 {
		c.PongTimeout = def.PongTimeout
	}
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = def.ReconnectDelay
	}
	if c.MaxReconnectDelay < c.ReconnectDelay {
		c.MaxReconnectDelay = def.MaxReconnectDelay
		if c.MaxReconnectDelay < c.ReconnectDelay {
			c.MaxReconnectDelay = c.ReconnectDelay
		}
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = def.HandshakeTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = def.RequestTimeout
	}
	if c.MessagesPerMinute <= 0 {
		c.MessagesPerMinute = def.MessagesPerMinute
	}
	if c.SubscriberBacklogWarn <= 0 {
		c.SubscriberBacklogWarn = def.SubscriberBacklogWarn
	}
}

func truncateForLog(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	return s[:n] + "...(truncated)"
}
