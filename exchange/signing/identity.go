package signing

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Identity 签名身份：私钥句柄 + 派生地址
// 私钥只在内存中使用，String() 只输出地址，不会被日志打印出来
type Identity struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// NewIdentity 从私钥创建签名身份
func NewIdentity(key *ecdsa.PrivateKey) (*Identity, error) {
	if key == nil || key.D == nil || key.D.Sign() == 0 {
		return nil, errors.New("私钥为空")
	}
	return &Identity{key: key, address: crypto.PubkeyToAddress(key.PublicKey)}, nil
}

// IdentityFromHex 从十六进制私钥（可带 0x 前缀）创建签名身份
func IdentityFromHex(hexKey string) (*Identity, error) {
	hexKey = strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("解析私钥失败: %w", err)
	}
	return NewIdentity(key)
}

// Address 签名者地址
func (i *Identity) Address() common.Address {
	return i.address
}

func (i *Identity) String() string {
	if i == nil {
		return "<nil>"
	}
	return i.address.Hex()
}

// GoString 防止 %#v 打印出私钥
func (i *Identity) GoString() string {
	return "signing.Identity{" + i.String() + "}"
}

func (i *Identity) valid() bool {
	return i != nil && i.key != nil
}
