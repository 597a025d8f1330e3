package signing

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/betbot/gohyper/exchange/types"
)

// EncodeAction 按交易所的 msgpack 规则编码动作：
// 结构体按字段声明顺序编码为 map，整数使用最短编码，空的可选字段省略
func EncodeAction(action types.Action) ([]byte, error) {
	data, err := packCompact(action)
	if err != nil {
		return nil, fmt.Errorf("msgpack 编码 %s 失败: %w", action.ActionType(), err)
	}
	return data, nil
}

func packCompact(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.UseCompactInts(true)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ActionHash 计算 L1 动作的 connectionId：
//
//	keccak256(msgpack(action) || nonce(8 字节大端) || vaultTag || expiresTag)
//
// vaultTag 无 vault 时为 0x00，否则为 0x01 || 20 字节地址
// expiresTag 仅在设置 expiresAfter 时追加：0x00 || expiresAfter(8 字节大端)
func ActionHash(action types.Action, nonce uint64, vault *common.Address, expiresAfter *uint64) (common.Hash, error) {
	data, err := EncodeAction(action)
	if err != nil {
		return common.Hash{}, err
	}
	return connectionID(data, nonce, vault, expiresAfter), nil
}

// connectionID 在已编码的动作后拼接 nonce 与 vault/expires 标记再取 keccak
func connectionID(data []byte, nonce uint64, vault *common.Address, expiresAfter *uint64) common.Hash {
	var u64 [8]byte
	binary.BigEndian.PutUint64(u64[:], nonce)
	data = append(data, u64[:]...)

	if vault == nil {
		data = append(data, 0x00)
	} else {
		data = append(data, 0x01)
		data = append(data, vault.Bytes()...)
	}

	if expiresAfter != nil {
		binary.BigEndian.PutUint64(u64[:], *expiresAfter)
		data = append(data, 0x00)
		data = append(data, u64[:]...)
	}

	return crypto.Keccak256Hash(data)
}
