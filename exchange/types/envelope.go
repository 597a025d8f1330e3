package types

import (
	"encoding/json"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Signature 交易所格式的签名：r/s 为最短十六进制，v 为 27 或 28
type Signature struct {
	R string `json:"r"`
	S string `json:"s"`
	V uint8  `json:"v"`
}

// NewSignature 从 65 字节 [R || S || V] 构造（V 为 0/1 恢复 ID）
func NewSignature(sig []byte) Signature {
	r := new(big.Int).SetBytes(sig[:32])
	s := new(big.Int).SetBytes(sig[32:64])
	return Signature{
		R: hexutil.EncodeBig(r),
		S: hexutil.EncodeBig(s),
		V: sig[64] + 27,
	}
}

// Bytes 还原为 65 字节 [R || S || V]（V 为 0/1），用于恢复签名者地址
func (s Signature) Bytes() ([]byte, error) {
	r, err := hexutil.DecodeBig(s.R)
	if err != nil {
		return nil, err
	}
	ss, err := hexutil.DecodeBig(s.S)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 65)
	r.FillBytes(out[:32])
	ss.FillBytes(out[32:64])
	out[64] = s.V - 27
	return out, nil
}

// Envelope 已签名动作的线上格式（REST /exchange 请求体，或 WS post 的 payload）
// vaultAddress 与 expiresAfter 缺省时显式序列化为 null
type Envelope struct {
	Action       Action          `json:"action"`
	Nonce        uint64          `json:"nonce"`
	Signature    Signature       `json:"signature"`
	VaultAddress *common.Address `json:"vaultAddress"`
	ExpiresAfter *uint64         `json:"expiresAfter"`
}

// MarshalJSON 地址按交易所习惯输出为小写
func (e Envelope) MarshalJSON() ([]byte, error) {
	var vault *string
	if e.VaultAddress != nil {
		v := lowerHex(*e.VaultAddress)
		vault = &v
	}
	return json.Marshal(struct {
		Action       Action    `json:"action"`
		Nonce        uint64    `json:"nonce"`
		Signature    Signature `json:"signature"`
		VaultAddress *string   `json:"vaultAddress"`
		ExpiresAfter *uint64   `json:"expiresAfter"`
	}{e.Action, e.Nonce, e.Signature, vault, e.ExpiresAfter})
}

func lowerHex(a common.Address) string {
	return hexutil.Encode(a.Bytes())
}

// PostRequestType WS post 请求类型
type PostRequestType string

const (
	PostRequestAction PostRequestType = "action"
	PostRequestInfo   PostRequestType = "info"
)

// PostRequest WS 出站 post 帧
// {"method":"post","id":N,"request":{"type":"action"|"info","payload":...}}
type PostRequest struct {
	Method  string          `json:"method"`
	ID      uint64          `json:"id"`
	Request PostRequestBody `json:"request"`
}

// PostRequestBody post 帧内的请求体
type PostRequestBody struct {
	Type    PostRequestType `json:"type"`
	Payload any             `json:"payload"`
}

// NewPostRequest 构造 post 帧
func NewPostRequest(id uint64, typ PostRequestType, payload any) PostRequest {
	return PostRequest{Method: "post", ID: id, Request: PostRequestBody{Type: typ, Payload: payload}}
}

// SubscriptionRequest WS 订阅/退订帧
type SubscriptionRequest struct {
	Method       string       `json:"method"`
	Subscription Subscription `json:"subscription"`
}

// PingRequest 心跳帧 {"method":"ping"}
type PingRequest struct {
	Method string `json:"method"`
}
