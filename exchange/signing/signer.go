package signing

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/betbot/gohyper/exchange/types"
)

// SignOptions 签名选项
type SignOptions struct {
	// VaultAddress 代理（vault / 子账户）地址，设置后地址会被绑定进摘要
	VaultAddress *common.Address
	// ExpiresAfter 动作过期时间（毫秒时间戳）
	ExpiresAfter *uint64
}

// SignedAction 签名完成的动作，只发送一次；重发必须换新 nonce 重新签名
type SignedAction struct {
	Action       types.Action
	Nonce        uint64
	Signature    types.Signature
	VaultAddress *common.Address
	ExpiresAfter *uint64
}

// Signer 按网络签名交易所动作
type Signer struct {
	network types.Network
}

// NewSigner 创建签名器
func NewSigner(network types.Network) *Signer {
	return &Signer{network: network}
}

// Network 签名器使用的网络
func (s *Signer) Network() types.Network {
	return s.network
}

// Digest 计算动作的 EIP-712 摘要（不签名），用于测试与签名恢复
func (s *Signer) Digest(action types.Action, nonce uint64, opts SignOptions) (common.Hash, error) {
	if action == nil {
		return common.Hash{}, &types.SigningError{Op: "validate", Err: errors.New("action 为空")}
	}
	if err := action.Validate(); err != nil {
		return common.Hash{}, &types.SigningError{Op: "validate", Err: fmt.Errorf("%s: %w", action.ActionType(), err)}
	}

	if ua, ok := action.(types.UserSignedAction); ok {
		if ua.SignTime() != nonce {
			return common.Hash{}, &types.SigningError{Op: "validate", Err: fmt.Errorf("用户签名动作的 time (%d) 必须等于 nonce (%d)", ua.SignTime(), nonce)}
		}
		td, err := UserSignedTypedData(ua)
		if err != nil {
			return common.Hash{}, &types.SigningError{Op: "typed-data", Err: err}
		}
		digest, err := hashTypedData(td)
		if err != nil {
			return common.Hash{}, &types.SigningError{Op: "hash", Err: err}
		}
		return digest, nil
	}

	connectionID, err := ActionHash(action, nonce, opts.VaultAddress, opts.ExpiresAfter)
	if err != nil {
		return common.Hash{}, &types.SigningError{Op: "hash", Err: err}
	}
	digest, err := hashTypedData(L1TypedData(connectionID, s.network.IsMainnet()))
	if err != nil {
		return common.Hash{}, &types.SigningError{Op: "hash", Err: err}
	}
	return digest, nil
}

// Sign 对动作签名
// 身份无效或动作校验失败时返回 *types.SigningError，不会计算摘要
func (s *Signer) Sign(action types.Action, nonce uint64, id *Identity, opts SignOptions) (types.Signature, error) {
	if !id.valid() {
		return types.Signature{}, &types.SigningError{Op: "identity", Err: errors.New("签名身份无效")}
	}
	digest, err := s.Digest(action, nonce, opts)
	if err != nil {
		return types.Signature{}, err
	}
	sig, err := signHash(digest, id.key)
	if err != nil {
		return types.Signature{}, &types.SigningError{Op: "sign", Err: err}
	}
	return sig, nil
}

// SignAction 签名并打包为 SignedAction
// 用户签名动作不携带 vaultAddress
func (s *Signer) SignAction(action types.Action, nonce uint64, id *Identity, opts SignOptions) (*SignedAction, error) {
	if _, ok := action.(types.UserSignedAction); ok {
		opts.VaultAddress = nil
		opts.ExpiresAfter = nil
	}
	sig, err := s.Sign(action, nonce, id, opts)
	if err != nil {
		return nil, err
	}
	return &SignedAction{
		Action:       action,
		Nonce:        nonce,
		Signature:    sig,
		VaultAddress: opts.VaultAddress,
		ExpiresAfter: opts.ExpiresAfter,
	}, nil
}

// BuildEnvelope 组装线上信封，纯函数，不修改任何状态
func BuildEnvelope(sa SignedAction) types.Envelope {
	return types.Envelope{
		Action:       sa.Action,
		Nonce:        sa.Nonce,
		Signature:    sa.Signature,
		VaultAddress: sa.VaultAddress,
		ExpiresAfter: sa.ExpiresAfter,
	}
}
