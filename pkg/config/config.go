package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// 环境变量前缀
const envPrefix = "HL_"

// WalletConfig 钱包配置，三种来源按优先级任选其一：私钥 > 助记词 > 加密存储
type WalletConfig struct {
	PrivateKey     string
	Mnemonic       string
	DerivationPath string // 默认 m/44'/60'/0'/0/0

	SecretStorePath     string // badger 目录
	SecretKeyName       string // 存储里的键名，值可以是私钥也可以是助记词
	SecretEncryptionKey string // 32 字节，base64 或 hex
}

// HasSource 是否配置了任意一种签名来源
func (w WalletConfig) HasSource() bool {
	return w.PrivateKey != "" || w.Mnemonic != "" || w.SecretStorePath != ""
}

// ProxyConfig 代理配置
type ProxyConfig struct {
	Host string
	Port int
}

// URL 代理地址，未配置时为空
func (p *ProxyConfig) URL() string {
	if p == nil || p.Host == "" || p.Port <= 0 {
		return ""
	}
	return fmt.Sprintf("http://%s:%d", p.Host, p.Port)
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string
	File       string
	MaxSize    int // MB
	MaxBackups int
	MaxAge     int // 天
	Compress   bool
	JSON       bool
}

// Config 应用配置
type Config struct {
	Network   string // mainnet / testnet / local
	BaseURL   string // 覆盖网络默认地址
	Transport string // ws / rest

	VaultAddress string
	ExpiresAfter time.Duration

	RequestTimeout    time.Duration
	PingInterval      time.Duration
	ReconnectDelay    time.Duration
	MaxReconnectDelay time.Duration

	Proxy               *ProxyConfig
	ProxyURL            string
	RESTWeightPerMinute int

	Wallet WalletConfig
	Log    LogConfig
}

// ConfigFile 配置文件结构（用于 YAML/JSON 解析）
// 时长字段使用 Go duration 字符串，例如 "30s"
type ConfigFile struct {
	Network   string `yaml:"network" json:"network"`
	BaseURL   string `yaml:"base_url" json:"base_url"`
	Transport string `yaml:"transport" json:"transport"`

	VaultAddress string `yaml:"vault_address" json:"vault_address"`
	ExpiresAfter string `yaml:"expires_after" json:"expires_after"`

	RequestTimeout      string `yaml:"request_timeout" json:"request_timeout"`
	PingInterval        string `yaml:"ping_interval" json:"ping_interval"`
	ReconnectDelay      string `yaml:"reconnect_delay" json:"reconnect_delay"`
	MaxReconnectDelay   string `yaml:"max_reconnect_delay" json:"max_reconnect_delay"`
	RESTWeightPerMinute int    `yaml:"rest_weight_per_minute" json:"rest_weight_per_minute"`

	Proxy struct {
		Host string `yaml:"host" json:"host"`
		Port int    `yaml:"port" json:"port"`
		URL  string `yaml:"url" json:"url"`
	} `yaml:"proxy" json:"proxy"`

	Wallet struct {
		PrivateKey          string `yaml:"private_key" json:"private_key"`
		Mnemonic            string `yaml:"mnemonic" json:"mnemonic"`
		DerivationPath      string `yaml:"derivation_path" json:"derivation_path"`
		SecretStorePath     string `yaml:"secret_store" json:"secret_store"`
		SecretKeyName       string `yaml:"secret_key_name" json:"secret_key_name"`
		SecretEncryptionKey string `yaml:"secret_encryption_key" json:"secret_encryption_key"`
	} `yaml:"wallet" json:"wallet"`

	Log struct {
		Level      string `yaml:"level" json:"level"`
		File       string `yaml:"file" json:"file"`
		MaxSize    int    `yaml:"max_size" json:"max_size"`
		MaxBackups int    `yaml:"max_backups" json:"max_backups"`
		MaxAge     int    `yaml:"max_age" json:"max_age"`
		Compress   *bool  `yaml:"compress" json:"compress"`
		JSON       bool   `yaml:"json" json:"json"`
	} `yaml:"log" json:"log"`
}

// LoadFromFile 从指定文件加载配置；filePath 为空时只使用环境变量和默认值
// 优先级：环境变量 > 配置文件 > 默认值；每次调用都重新读取，不做缓存
func LoadFromFile(filePath string) (*Config, error) {
	cf := &ConfigFile{}
	if filePath != "" {
		var err error
		cf, err = loadConfigFile(filePath)
		if err != nil {
			return nil, fmt.Errorf("加载配置文件失败 %s: %w", filePath, err)
		}
	}

	return build(cf)
}

// build 把文件配置与环境变量合并成最终配置
func build(cf *ConfigFile) (*Config, error) {
	c := &Config{
		Network:             strings.ToLower(getEnv("NETWORK", orDefault(cf.Network, "mainnet"))),
		BaseURL:             getEnv("BASE_URL", cf.BaseURL),
		Transport:           strings.ToLower(getEnv("TRANSPORT", orDefault(cf.Transport, "ws"))),
		VaultAddress:        getEnv("VAULT_ADDRESS", cf.VaultAddress),
		RESTWeightPerMinute: parseIntEnv("REST_WEIGHT_PER_MINUTE", orDefaultInt(cf.RESTWeightPerMinute, 1200)),
		Wallet: WalletConfig{
			PrivateKey:          getEnv("PRIVATE_KEY", cf.Wallet.PrivateKey),
			Mnemonic:            getEnv("MNEMONIC", cf.Wallet.Mnemonic),
			DerivationPath:      getEnv("DERIVATION_PATH", orDefault(cf.Wallet.DerivationPath, "m/44'/60'/0'/0/0")),
			SecretStorePath:     getEnv("SECRET_STORE", cf.Wallet.SecretStorePath),
			SecretKeyName:       getEnv("SECRET_KEY_NAME", orDefault(cf.Wallet.SecretKeyName, "private_key")),
			SecretEncryptionKey: getEnv("SECRET_ENCRYPTION_KEY", cf.Wallet.SecretEncryptionKey),
		},
		Log: LogConfig{
			Level:      getEnv("LOG_LEVEL", orDefault(cf.Log.Level, "info")),
			File:       getEnv("LOG_FILE", cf.Log.File),
			MaxSize:    orDefaultInt(cf.Log.MaxSize, 100),
			MaxBackups: orDefaultInt(cf.Log.MaxBackups, 3),
			MaxAge:     orDefaultInt(cf.Log.MaxAge, 7),
			Compress:   cf.Log.Compress == nil || *cf.Log.Compress,
			JSON:       parseBoolEnv("LOG_JSON", cf.Log.JSON),
		},
	}

	durations := []struct {
		key  string
		file string
		def  time.Duration
		dst  *time.Duration
	}{
		{"EXPIRES_AFTER", cf.ExpiresAfter, 0, &c.ExpiresAfter},
		{"REQUEST_TIMEOUT", cf.RequestTimeout, 10 * time.Second, &c.RequestTimeout},
		{"PING_INTERVAL", cf.PingInterval, 50 * time.Second, &c.PingInterval},
		{"RECONNECT_DELAY", cf.ReconnectDelay, time.Second, &c.ReconnectDelay},
		{"MAX_RECONNECT_DELAY", cf.MaxReconnectDelay, 30 * time.Second, &c.MaxReconnectDelay},
	}
	for _, d := range durations {
		v, err := parseDuration(getEnv(d.key, strings.TrimSpace(d.file)), d.def)
		if err != nil {
			return nil, fmt.Errorf("%s 格式错误: %w", strings.ToLower(d.key), err)
		}
		*d.dst = v
	}

	c.Proxy = parseProxy(cf)
	c.ProxyURL = getEnv("PROXY_URL", cf.Proxy.URL)
	if c.ProxyURL == "" {
		c.ProxyURL = c.Proxy.URL()
	}
	return c, nil
}

// parseProxy 代理 host/port（环境变量 > 配置文件）
func parseProxy(cf *ConfigFile) *ProxyConfig {
	host := getEnv("PROXY_HOST", cf.Proxy.Host)
	port := parseIntEnv("PROXY_PORT", cf.Proxy.Port)
	if host == "" || port <= 0 {
		return nil
	}
	return &ProxyConfig{Host: host, Port: port}
}

// loadConfigFile 加载配置文件（支持 YAML 和 JSON）
func loadConfigFile(filePath string) (*ConfigFile, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var configFile ConfigFile
	ext := strings.ToLower(filepath.Ext(filePath))

	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &configFile); err != nil {
			return nil, fmt.Errorf("解析 YAML 配置文件失败: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &configFile); err != nil {
			return nil, fmt.Errorf("解析 JSON 配置文件失败: %w", err)
		}
	default:
		return nil, fmt.Errorf("不支持的配置文件格式: %s (支持 .yaml, .yml, .json)", ext)
	}

	return &configFile, nil
}

// Validate 验证配置；requireWallet 为 false 时允许只读（无签名）运行
func (c *Config) Validate(requireWallet bool) error {
	switch c.Network {
	case "mainnet", "testnet", "local":
	default:
		return fmt.Errorf("HL_NETWORK 无效: %q（mainnet / testnet / local）", c.Network)
	}
	if c.Network == "local" && c.BaseURL == "" {
		return fmt.Errorf("local 网络必须配置 HL_BASE_URL")
	}
	switch c.Transport {
	case "ws", "rest":
	default:
		return fmt.Errorf("HL_TRANSPORT 无效: %q（ws / rest）", c.Transport)
	}
	if c.VaultAddress != "" && !isHexAddress(c.VaultAddress) {
		return fmt.Errorf("HL_VAULT_ADDRESS 不是合法地址: %s", c.VaultAddress)
	}
	if c.ExpiresAfter < 0 {
		return fmt.Errorf("HL_EXPIRES_AFTER 不能为负数")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("HL_REQUEST_TIMEOUT 必须大于 0")
	}
	if c.MaxReconnectDelay < c.ReconnectDelay {
		return fmt.Errorf("HL_MAX_RECONNECT_DELAY 不能小于 HL_RECONNECT_DELAY")
	}
	if c.RESTWeightPerMinute <= 0 {
		return fmt.Errorf("HL_REST_WEIGHT_PER_MINUTE 必须大于 0")
	}
	if requireWallet {
		if !c.Wallet.HasSource() {
			return fmt.Errorf("未配置签名私钥（HL_PRIVATE_KEY / HL_MNEMONIC / HL_SECRET_STORE 任选其一）")
		}
		if c.Wallet.SecretStorePath != "" && c.Wallet.PrivateKey == "" && c.Wallet.Mnemonic == "" && c.Wallet.SecretEncryptionKey == "" {
			return fmt.Errorf("使用 HL_SECRET_STORE 时必须配置 HL_SECRET_ENCRYPTION_KEY")
		}
	}
	return nil
}

func isHexAddress(s string) bool {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(s) != 40 {
		return false
	}
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}

func parseDuration(v string, def time.Duration) (time.Duration, error) {
	if v == "" {
		return def, nil
	}
	// 纯数字按毫秒处理
	if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	return time.ParseDuration(v)
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return strings.TrimSpace(v)
}

func orDefaultInt(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

// getEnv 读取 HL_ 前缀的环境变量，未设置时返回 defaultValue
func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(envPrefix + key)); value != "" {
		return value
	}
	return defaultValue
}

func parseIntEnv(key string, defaultValue int) int {
	value := os.Getenv(envPrefix + key)
	if value == "" {
		return defaultValue
	}
	if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
		return n
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) bool {
	value := os.Getenv(envPrefix + key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return defaultValue
	}
	return b
}
