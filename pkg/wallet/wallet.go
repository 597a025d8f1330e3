// Package wallet 把配置里的签名来源（私钥、助记词、加密存储）解析成签名身份
package wallet

import (
	"strings"

	hdwallet "github.com/miguelmota/go-ethereum-hdwallet"
	"github.com/pkg/errors"

	"github.com/betbot/gohyper/exchange/signing"
	"github.com/betbot/gohyper/pkg/config"
	"github.com/betbot/gohyper/pkg/secretstore"
)

// DefaultDerivationPath 以太坊默认派生路径
const DefaultDerivationPath = "m/44'/60'/0'/0/0"

// ErrNoSource 没有配置任何签名来源
var ErrNoSource = errors.New("wallet: 未配置签名来源")

// FromMnemonic 按派生路径从助记词得到签名身份
func FromMnemonic(mnemonic, derivationPath string) (*signing.Identity, error) {
	mnemonic = strings.TrimSpace(mnemonic)
	if mnemonic == "" {
		return nil, errors.New("wallet: 助记词为空")
	}
	if strings.TrimSpace(derivationPath) == "" {
		derivationPath = DefaultDerivationPath
	}

	w, err := hdwallet.NewFromMnemonic(mnemonic)
	if err != nil {
		return nil, errors.Wrap(err, "wallet: 助记词无效")
	}
	path, err := hdwallet.ParseDerivationPath(strings.TrimSpace(derivationPath))
	if err != nil {
		return nil, errors.Wrap(err, "wallet: 派生路径无效")
	}
	acct, err := w.Derive(path, false)
	if err != nil {
		return nil, errors.Wrap(err, "wallet: 派生失败")
	}
	key, err := w.PrivateKey(acct)
	if err != nil {
		return nil, errors.Wrap(err, "wallet: 导出私钥失败")
	}
	return signing.NewIdentity(key)
}

// FromSecretStore 从 badger 存储读取 keyName 对应的值
// 值含空格时按助记词处理，否则按十六进制私钥处理
func FromSecretStore(path string, encryptionKey, keyName, derivationPath string) (*signing.Identity, error) {
	key, err := secretstore.ParseKey(encryptionKey)
	if err != nil {
		return nil, errors.Wrap(err, "wallet: 存储密钥无效")
	}
	if key == nil {
		return nil, errors.New("wallet: 存储密钥为空")
	}
	ss, err := secretstore.Open(secretstore.OpenOptions{Path: path, EncryptionKey: key, ReadOnly: true})
	if err != nil {
		return nil, err
	}
	defer ss.Close()

	val, ok, err := ss.GetString(keyName)
	if err != nil {
		return nil, err
	}
	if !ok || strings.TrimSpace(val) == "" {
		return nil, errors.Errorf("wallet: 存储中没有 %s", keyName)
	}
	return fromSecret(val, derivationPath)
}

func fromSecret(val, derivationPath string) (*signing.Identity, error) {
	val = strings.TrimSpace(val)
	if strings.ContainsAny(val, " \t\n") {
		return FromMnemonic(val, derivationPath)
	}
	return signing.IdentityFromHex(val)
}

// Resolve 按 私钥 > 助记词 > 加密存储 的顺序解析签名身份
func Resolve(cfg config.WalletConfig) (*signing.Identity, error) {
	switch {
	case cfg.PrivateKey != "":
		id, err := signing.IdentityFromHex(cfg.PrivateKey)
		return id, errors.Wrap(err, "wallet")
	case cfg.Mnemonic != "":
		return FromMnemonic(cfg.Mnemonic, cfg.DerivationPath)
	case cfg.SecretStorePath != "":
		return FromSecretStore(cfg.SecretStorePath, cfg.SecretEncryptionKey, cfg.SecretKeyName, cfg.DerivationPath)
	}
	return nil, ErrNoSource
}
