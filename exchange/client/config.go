package client

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/betbot/gohyper/exchange/types"
	"github.com/betbot/gohyper/exchange/ws"
	"github.com/betbot/gohyper/pkg/config"
	sdkhttp "github.com/betbot/gohyper/pkg/sdk/http"
)

// TransportKind 动作提交通道
type TransportKind string

const (
	TransportWebSocket TransportKind = "ws"
	TransportREST      TransportKind = "rest"
)

// Config 会话配置
type Config struct {
	Network types.Network
	// BaseURL 覆盖网络默认地址（http(s)://host），WS 地址由它推导
	BaseURL string

	// Transport 动作与 info 请求的默认通道
	Transport TransportKind

	// VaultAddress 代理（vault / 子账户）地址，非空时所有 L1 动作都代其签名
	VaultAddress *common.Address
	// ExpiresAfter 大于 0 时每个 L1 动作携带 expiresAfter = now + ExpiresAfter
	ExpiresAfter time.Duration

	RequestTimeout time.Duration

	// WS 连接参数，URL 留空时由 BaseURL 推导
	WS ws.Config

	// RESTWeightPerMinute REST 权重预算，交易所默认每分钟 1200
	RESTWeightPerMinute int
	HTTP                sdkhttp.Options
}

// DefaultConfig 指定网络的默认配置
func DefaultConfig(network types.Network) Config {
	return Config{
		Network:             network,
		Transport:           TransportWebSocket,
		RequestTimeout:      10 * time.Second,
		WS:                  ws.DefaultConfig(""),
		RESTWeightPerMinute: 1200,
		HTTP:                sdkhttp.Options{Timeout: 30 * time.Second, RetryCount: 0},
	}
}

func (c Config) baseURL() string {
	if c.BaseURL != "" {
		return strings.TrimSuffix(c.BaseURL, "/")
	}
	return c.Network.BaseURL()
}

// Validate 检查配置
func (c Config) Validate() error {
	switch c.Network {
	case types.NetworkMainnet, types.NetworkTestnet, types.NetworkLocal:
	default:
		return fmt.Errorf("未知网络: %q", c.Network)
	}
	switch c.Transport {
	case TransportWebSocket, TransportREST:
	default:
		return fmt.Errorf("未知传输方式: %q", c.Transport)
	}
	if c.ExpiresAfter < 0 {
		return fmt.Errorf("expiresAfter 不能为负")
	}
	return nil
}

// FromAppConfig 把配置文件里的交易所配置转换成会话配置
func FromAppConfig(app *config.Config) (Config, error) {
	network, err := types.ParseNetwork(app.Network)
	if err != nil {
		return Config{}, err
	}
	cfg := DefaultConfig(network)
	cfg.BaseURL = app.BaseURL
	if app.Transport != "" {
		cfg.Transport = TransportKind(strings.ToLower(app.Transport))
	}
	if app.VaultAddress != "" {
		if !common.IsHexAddress(app.VaultAddress) {
			return Config{}, fmt.Errorf("vault 地址无效: %s", app.VaultAddress)
		}
		addr := common.HexToAddress(app.VaultAddress)
		cfg.VaultAddress = &addr
	}
	cfg.ExpiresAfter = app.ExpiresAfter
	if app.RequestTimeout > 0 {
		cfg.RequestTimeout = app.RequestTimeout
	}
	if app.PingInterval > 0 {
		cfg.WS.PingInterval = app.PingInterval
	}
	if app.ReconnectDelay > 0 {
		cfg.WS.ReconnectDelay = app.ReconnectDelay
	}
	if app.MaxReconnectDelay > 0 {
		cfg.WS.MaxReconnectDelay = app.MaxReconnectDelay
	}
	cfg.WS.ProxyURL = app.ProxyURL
	cfg.HTTP.ProxyURL = app.ProxyURL
	if app.RESTWeightPerMinute > 0 {
		cfg.RESTWeightPerMinute = app.RESTWeightPerMinute
	}
	return cfg, cfg.Validate()
}
