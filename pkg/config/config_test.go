package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestDefaultsWithoutFile(t *testing.T) {
	c, err := LoadFromFile("")
	require.NoError(t, err)
	assert.Equal(t, "mainnet", c.Network)
	assert.Equal(t, "ws", c.Transport)
	assert.Equal(t, 10*time.Second, c.RequestTimeout)
	assert.Equal(t, 50*time.Second, c.PingInterval)
	assert.Equal(t, 1200, c.RESTWeightPerMinute)
	assert.Equal(t, "m/44'/60'/0'/0/0", c.Wallet.DerivationPath)
	assert.True(t, c.Log.Compress)
	assert.NoError(t, c.Validate(false))
	assert.Error(t, c.Validate(true), "没有私钥时要求签名应当失败")
}

func TestYAMLFile(t *testing.T) {
	p := writeFile(t, "cfg.yaml", `
network: testnet
transport: REST
vault_address: "0x1111111111111111111111111111111111111111"
expires_after: 90s
request_timeout: "2500"
proxy:
  host: 127.0.0.1
  port: 7890
wallet:
  private_key: "0xabc"
log:
  level: debug
  compress: false
`)
	c, err := LoadFromFile(p)
	require.NoError(t, err)
	assert.Equal(t, "testnet", c.Network)
	assert.Equal(t, "rest", c.Transport)
	assert.Equal(t, 90*time.Second, c.ExpiresAfter)
	assert.Equal(t, 2500*time.Millisecond, c.RequestTimeout)
	assert.Equal(t, "http://127.0.0.1:7890", c.ProxyURL)
	assert.Equal(t, "debug", c.Log.Level)
	assert.False(t, c.Log.Compress)
	assert.NoError(t, c.Validate(true))

	again, err := LoadFromFile(p)
	require.NoError(t, err)
	assert.Same(t, c, again)
}

func TestEnvOverridesFile(t *testing.T) {
	p := writeFile(t, "cfg.json", `{"network":"testnet","ping_interval":"20s","wallet":{"private_key":"0x01"}}`)
	t.Setenv("HL_NETWORK", "MAINNET")
	t.Setenv("HL_PING_INTERVAL", "5s")
	t.Setenv("HL_PRIVATE_KEY", "0x02")
	t.Setenv("HL_REST_WEIGHT_PER_MINUTE", "600")

	c, err := LoadFromFile(p)
	require.NoError(t, err)
	assert.Equal(t, "mainnet", c.Network)
	assert.Equal(t, 5*time.Second, c.PingInterval)
	assert.Equal(t, "0x02", c.Wallet.PrivateKey)
	assert.Equal(t, 600, c.RESTWeightPerMinute)
}

func TestLoadFromFileRereadsEnvironment(t *testing.T) {
	t.Setenv("HL_NETWORK", "testnet")
	first, err := LoadFromFile("")
	require.NoError(t, err)
	assert.Equal(t, "testnet", first.Network)

	t.Setenv("HL_NETWORK", "mainnet")
	second, err := LoadFromFile("")
	require.NoError(t, err)
	assert.Equal(t, "mainnet", second.Network)
	assert.NotSame(t, first, second)
}

func TestBadDuration(t *testing.T) {
	p := writeFile(t, "cfg.yml", "request_timeout: soon\n")
	_, err := LoadFromFile(p)
	assert.Error(t, err)
}

func TestUnsupportedExtension(t *testing.T) {
	p := writeFile(t, "cfg.toml", "network = 'mainnet'\n")
	_, err := LoadFromFile(p)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Network:             "mainnet",
			Transport:           "ws",
			RequestTimeout:      time.Second,
			ReconnectDelay:      time.Second,
			MaxReconnectDelay:   time.Minute,
			RESTWeightPerMinute: 1200,
		}
	}
	cases := []struct {
		name   string
		mutate func(c *Config)
		ok     bool
	}{
		{"ok", func(c *Config) {}, true},
		{"bad network", func(c *Config) { c.Network = "devnet" }, false},
		{"local needs url", func(c *Config) { c.Network = "local" }, false},
		{"local with url", func(c *Config) { c.Network = "local"; c.BaseURL = "http://127.0.0.1:3001" }, true},
		{"bad transport", func(c *Config) { c.Transport = "grpc" }, false},
		{"bad vault", func(c *Config) { c.VaultAddress = "0x1234" }, false},
		{"negative expiry", func(c *Config) { c.ExpiresAfter = -time.Second }, false},
		{"backoff inverted", func(c *Config) { c.MaxReconnectDelay = time.Millisecond }, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := base()
			tc.mutate(c)
			err := c.Validate(false)
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestSecretStoreNeedsKey(t *testing.T) {
	c := &Config{
		Network:             "mainnet",
		Transport:           "ws",
		RequestTimeout:      time.Second,
		MaxReconnectDelay:   time.Second,
		RESTWeightPerMinute: 1,
		Wallet:              WalletConfig{SecretStorePath: "/tmp/x"},
	}
	assert.Error(t, c.Validate(true))
	c.Wallet.SecretEncryptionKey = "k"
	assert.NoError(t, c.Validate(true))
}
