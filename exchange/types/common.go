package types

import (
	"fmt"
	"strings"
)

// Network 交易所网络
type Network string

const (
	NetworkMainnet Network = "mainnet"
	NetworkTestnet Network = "testnet"
	NetworkLocal   Network = "local"
)

// 交易所 REST 基础地址
const (
	MainnetAPIURL = "https://api.hyperliquid.xyz"
	TestnetAPIURL = "https://api.hyperliquid-testnet.xyz"
	LocalAPIURL   = "http://localhost:3001"
)

// REST 端点
const (
	EndpointExchange = "/exchange"
	EndpointInfo     = "/info"
)

// ParseNetwork 解析网络名称（大小写不敏感）
func ParseNetwork(s string) (Network, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "mainnet", "main":
		return NetworkMainnet, nil
	case "testnet", "test":
		return NetworkTestnet, nil
	case "local", "localhost":
		return NetworkLocal, nil
	default:
		return "", fmt.Errorf("未知的网络: %s (支持 mainnet, testnet, local)", s)
	}
}

// BaseURL 返回网络对应的 REST 基础地址
func (n Network) BaseURL() string {
	switch n {
	case NetworkTestnet:
		return TestnetAPIURL
	case NetworkLocal:
		return LocalAPIURL
	default:
		return MainnetAPIURL
	}
}

// IsMainnet 只有主网使用 source "a"，其余网络（testnet/local）都按测试网签名
func (n Network) IsMainnet() bool {
	return n == NetworkMainnet || n == ""
}

// ChainName 用户签名动作里的 hyperliquidChain 字段
func (n Network) ChainName() string {
	if n.IsMainnet() {
		return "Mainnet"
	}
	return "Testnet"
}

// WsURL 从 REST 基础地址推导 WebSocket 地址：http(s)://host -> ws(s)://host/ws
func WsURL(baseURL string) string {
	u := strings.TrimSuffix(strings.TrimSpace(baseURL), "/")
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	if strings.HasSuffix(u, "/ws") {
		return u
	}
	return u + "/ws"
}
