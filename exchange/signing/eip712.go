package signing

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/betbot/gohyper/exchange/types"
)

var eip712DomainType = []apitypes.Type{
	{Name: "name", Type: "string"},
	{Name: "version", Type: "string"},
	{Name: "chainId", Type: "uint256"},
	{Name: "verifyingContract", Type: "address"},
}

// 用户签名动作的 EIP-712 字段（转账与提现相同）
var transferFields = []apitypes.Type{
	{Name: "hyperliquidChain", Type: "string"},
	{Name: "destination", Type: "string"},
	{Name: "amount", Type: "string"},
	{Name: "time", Type: "uint64"},
}

// L1TypedData 构建 phantom agent 的 EIP-712 结构
func L1TypedData(connectionID common.Hash, mainnet bool) apitypes.TypedData {
	source := TestnetSource
	if mainnet {
		source = MainnetSource
	}
	return apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": eip712DomainType,
			"Agent": {
				{Name: "source", Type: "string"},
				{Name: "connectionId", Type: "bytes32"},
			},
		},
		PrimaryType: "Agent",
		Domain: apitypes.TypedDataDomain{
			Name:              ExchangeDomainName,
			Version:           ExchangeDomainVersion,
			ChainId:           math.NewHexOrDecimal256(ExchangeChainID),
			VerifyingContract: ZeroAddress,
		},
		Message: apitypes.TypedDataMessage{
			"source":       source,
			"connectionId": connectionID.Bytes(),
		},
	}
}

// UserSignedTypedData 构建转账/提现的 EIP-712 结构
func UserSignedTypedData(action types.UserSignedAction) (apitypes.TypedData, error) {
	var (
		primaryType string
		message     apitypes.TypedDataMessage
	)
	switch a := action.(type) {
	case types.UsdSend:
		primaryType = "HyperliquidTransaction:UsdSend"
		message = transferMessage(a.HyperliquidChain, a.Destination, a.Amount, a.Time)
	case types.Withdraw:
		primaryType = "HyperliquidTransaction:Withdraw"
		message = transferMessage(a.HyperliquidChain, a.Destination, a.Amount, a.Time)
	default:
		return apitypes.TypedData{}, fmt.Errorf("不支持的用户签名动作: %s", action.ActionType())
	}
	return apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": eip712DomainType,
			primaryType:    transferFields,
		},
		PrimaryType: primaryType,
		Domain: apitypes.TypedDataDomain{
			Name:              UserSignedDomainName,
			Version:           UserSignedDomainVersion,
			ChainId:           math.NewHexOrDecimal256(UserSignedChainID),
			VerifyingContract: ZeroAddress,
		},
		Message: message,
	}, nil
}

func transferMessage(chain, destination, amount string, timeMs uint64) apitypes.TypedDataMessage {
	return apitypes.TypedDataMessage{
		"hyperliquidChain": chain,
		"destination":      destination,
		"amount":           amount,
		"time":             new(big.Int).SetUint64(timeMs),
	}
}

// hashTypedData 计算 EIP-712 最终哈希 keccak256("\x19\x01" || domainSeparator || structHash)
func hashTypedData(typedData apitypes.TypedData) (common.Hash, error) {
	hash, _, err := apitypes.TypedDataAndHash(typedData)
	if err != nil {
		return common.Hash{}, fmt.Errorf("计算 EIP712 哈希失败: %w", err)
	}
	return common.BytesToHash(hash), nil
}

// signHash 使用 RFC6979 确定性 secp256k1 签名
func signHash(hash common.Hash, key *ecdsa.PrivateKey) (types.Signature, error) {
	sig, err := crypto.Sign(hash.Bytes(), key)
	if err != nil {
		return types.Signature{}, fmt.Errorf("签名失败: %w", err)
	}
	return types.NewSignature(sig), nil
}

// RecoverSigner 从摘要和签名恢复签名者地址
func RecoverSigner(digest common.Hash, sig types.Signature) (common.Address, error) {
	raw, err := sig.Bytes()
	if err != nil {
		return common.Address{}, fmt.Errorf("解析签名失败: %w", err)
	}
	pub, err := crypto.SigToPub(digest.Bytes(), raw)
	if err != nil {
		return common.Address{}, fmt.Errorf("恢复公钥失败: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}
