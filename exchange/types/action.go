package types

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// 动作类型标签
const (
	ActionTypeOrder                = "order"
	ActionTypeCancel               = "cancel"
	ActionTypeCancelByCloid        = "cancelByCloid"
	ActionTypeModify               = "modify"
	ActionTypeBatchModify          = "batchModify"
	ActionTypeUpdateLeverage       = "updateLeverage"
	ActionTypeUpdateIsolatedMargin = "updateIsolatedMargin"
	ActionTypeReserveRequestWeight = "reserveRequestWeight"
	ActionTypeScheduleCancel       = "scheduleCancel"
	ActionTypeUsdSend              = "usdSend"
	ActionTypeWithdraw             = "withdraw3"
)

// Action 交易所动作（封闭的变体集合）
// 每个变体的字段顺序就是交易所签名 schema 的顺序，type 永远是第一个字段
type Action interface {
	ActionType() string
	Validate() error
	isAction()
}

// UserSignedAction 由用户直接按 EIP-712 签名的动作（转账/提现），不走 L1 phantom agent
type UserSignedAction interface {
	Action
	// SignTime 签名 payload 中的 time 字段，同时作为 nonce
	SignTime() uint64
	isUserSigned()
}

// BulkOrder 批量下单
type BulkOrder struct {
	Type     string       `json:"type" msgpack:"type"`
	Orders   []OrderWire  `json:"orders" msgpack:"orders"`
	Grouping Grouping     `json:"grouping" msgpack:"grouping"`
	Builder  *BuilderInfo `json:"builder,omitempty" msgpack:"builder,omitempty"`
}

// NewBulkOrder 构造批量下单动作
func NewBulkOrder(orders []OrderWire, grouping Grouping, builder *BuilderInfo) BulkOrder {
	if grouping == "" {
		grouping = GroupingNA
	}
	if builder != nil {
		b := *builder
		b.Builder = strings.ToLower(b.Builder)
		builder = &b
	}
	return BulkOrder{Type: ActionTypeOrder, Orders: orders, Grouping: grouping, Builder: builder}
}

func (BulkOrder) ActionType() string { return ActionTypeOrder }
func (BulkOrder) isAction() {}

func (a BulkOrder) Validate() error {
	if err := checkType(a.Type, ActionTypeOrder); err != nil {
		return err
	}
	if len(a.Orders) == 0 {
		return fmt.Errorf("orders 不能为空")
	}
	for i, o := range a.Orders {
		if err := o.Validate(); err != nil {
			return fmt.Errorf("orders[%d]: %w", i, err)
		}
	}
	switch a.Grouping {
	case GroupingNA, GroupingNormalTpsl, GroupingPositionTpsl:
	default:
		return fmt.Errorf("无效的 grouping: %q", a.Grouping)
	}
	if a.Builder != nil && !common.IsHexAddress(a.Builder.Builder) {
		return fmt.Errorf("无效的 builder 地址: %q", a.Builder.Builder)
	}
	return nil
}

// CancelWire {"a": asset, "o": oid}
type CancelWire struct {
	Asset uint32 `json:"a" msgpack:"a"`
	Oid   uint64 `json:"o" msgpack:"o"`
}

// BulkCancel 按 oid 批量撤单
type BulkCancel struct {
	Type    string       `json:"type" msgpack:"type"`
	Cancels []CancelWire `json:"cancels" msgpack:"cancels"`
}

// NewBulkCancel 构造撤单动作
func NewBulkCancel(cancels ...CancelWire) BulkCancel {
	return BulkCancel{Type: ActionTypeCancel, Cancels: cancels}
}

func (BulkCancel) ActionType() string { return ActionTypeCancel }
func (BulkCancel) isAction() {}

func (a BulkCancel) Validate() error {
	if err := checkType(a.Type, ActionTypeCancel); err != nil {
		return err
	}
	if len(a.Cancels) == 0 {
		return fmt.Errorf("cancels 不能为空")
	}
	for i, c := range a.Cancels {
		if c.Oid == 0 {
			return fmt.Errorf("cancels[%d]: 缺少 oid", i)
		}
	}
	return nil
}

// CancelByCloidWire {"asset": asset, "cloid": "0x..."}
type CancelByCloidWire struct {
	Asset uint32 `json:"asset" msgpack:"asset"`
	Cloid string `json:"cloid" msgpack:"cloid"`
}

// BulkCancelByCloid 按 cloid 批量撤单
type BulkCancelByCloid struct {
	Type    string              `json:"type" msgpack:"type"`
	Cancels []CancelByCloidWire `json:"cancels" msgpack:"cancels"`
}

// NewBulkCancelByCloid 构造按 cloid 撤单动作
func NewBulkCancelByCloid(cancels ...CancelByCloidWire) BulkCancelByCloid {
	return BulkCancelByCloid{Type: ActionTypeCancelByCloid, Cancels: cancels}
}

func (BulkCancelByCloid) ActionType() string { return ActionTypeCancelByCloid }
func (BulkCancelByCloid) isAction() {}

func (a BulkCancelByCloid) Validate() error {
	if err := checkType(a.Type, ActionTypeCancelByCloid); err != nil {
		return err
	}
	if len(a.Cancels) == 0 {
		return fmt.Errorf("cancels 不能为空")
	}
	for i, c := range a.Cancels {
		if !IsValidCloid(c.Cloid) {
			return fmt.Errorf("cancels[%d]: 无效的 cloid %q", i, c.Cloid)
		}
	}
	return nil
}

// ModifyOrder 改单
type ModifyOrder struct {
	Type  string    `json:"type" msgpack:"type"`
	Oid   uint64    `json:"oid" msgpack:"oid"`
	Order OrderWire `json:"order" msgpack:"order"`
}

// NewModifyOrder 构造改单动作
func NewModifyOrder(oid uint64, order OrderWire) ModifyOrder {
	return ModifyOrder{Type: ActionTypeModify, Oid: oid, Order: order}
}

func (ModifyOrder) ActionType() string { return ActionTypeModify }
func (ModifyOrder) isAction() {}

func (a ModifyOrder) Validate() error {
	if err := checkType(a.Type, ActionTypeModify); err != nil {
		return err
	}
	if a.Oid == 0 {
		return fmt.Errorf("缺少 oid")
	}
	return a.Order.Validate()
}

// ModifyWire batchModify 中的单个改单
type ModifyWire struct {
	Oid   uint64    `json:"oid" msgpack:"oid"`
	Order OrderWire `json:"order" msgpack:"order"`
}

// BulkModify 批量改单
type BulkModify struct {
	Type     string       `json:"type" msgpack:"type"`
	Modifies []ModifyWire `json:"modifies" msgpack:"modifies"`
}

// NewBulkModify 构造批量改单动作
func NewBulkModify(modifies ...ModifyWire) BulkModify {
	return BulkModify{Type: ActionTypeBatchModify, Modifies: modifies}
}

func (BulkModify) ActionType() string { return ActionTypeBatchModify }
func (BulkModify) isAction() {}

func (a BulkModify) Validate() error {
	if err := checkType(a.Type, ActionTypeBatchModify); err != nil {
		return err
	}
	if len(a.Modifies) == 0 {
		return fmt.Errorf("modifies 不能为空")
	}
	for i, m := range a.Modifies {
		if m.Oid == 0 {
			return fmt.Errorf("modifies[%d]: 缺少 oid", i)
		}
		if err := m.Order.Validate(); err != nil {
			return fmt.Errorf("modifies[%d]: %w", i, err)
		}
	}
	return nil
}

// UpdateLeverage 调整杠杆
type UpdateLeverage struct {
	Type     string `json:"type" msgpack:"type"`
	Asset    uint32 `json:"asset" msgpack:"asset"`
	IsCross  bool   `json:"isCross" msgpack:"isCross"`
	Leverage uint32 `json:"leverage" msgpack:"leverage"`
}

// NewUpdateLeverage 构造调整杠杆动作
func NewUpdateLeverage(asset uint32, isCross bool, leverage uint32) UpdateLeverage {
	return UpdateLeverage{Type: ActionTypeUpdateLeverage, Asset: asset, IsCross: isCross, Leverage: leverage}
}

func (UpdateLeverage) ActionType() string { return ActionTypeUpdateLeverage }
func (UpdateLeverage) isAction() {}

func (a UpdateLeverage) Validate() error {
	if err := checkType(a.Type, ActionTypeUpdateLeverage); err != nil {
		return err
	}
	if a.Leverage == 0 {
		return fmt.Errorf("leverage 必须大于 0")
	}
	return nil
}

// UpdateIsolatedMargin 调整逐仓保证金，ntli 为 USDC 数额 * 1e6，可为负
type UpdateIsolatedMargin struct {
	Type  string `json:"type" msgpack:"type"`
	Asset uint32 `json:"asset" msgpack:"asset"`
	IsBuy bool   `json:"isBuy" msgpack:"isBuy"`
	Ntli  int64  `json:"ntli" msgpack:"ntli"`
}

// NewUpdateIsolatedMargin 构造调整逐仓保证金动作
func NewUpdateIsolatedMargin(asset uint32, isBuy bool, ntli int64) UpdateIsolatedMargin {
	return UpdateIsolatedMargin{Type: ActionTypeUpdateIsolatedMargin, Asset: asset, IsBuy: isBuy, Ntli: ntli}
}

func (UpdateIsolatedMargin) ActionType() string { return ActionTypeUpdateIsolatedMargin }
func (UpdateIsolatedMargin) isAction() {}

func (a UpdateIsolatedMargin) Validate() error {
	if err := checkType(a.Type, ActionTypeUpdateIsolatedMargin); err != nil {
		return err
	}
	if a.Ntli == 0 {
		return fmt.Errorf("ntli 不能为 0")
	}
	return nil
}

// ReserveRequestWeight 购买额外的请求权重
type ReserveRequestWeight struct {
	Type   string `json:"type" msgpack:"type"`
	Weight uint64 `json:"weight" msgpack:"weight"`
}

// NewReserveRequestWeight 构造购买请求权重动作
func NewReserveRequestWeight(weight uint64) ReserveRequestWeight {
	return ReserveRequestWeight{Type: ActionTypeReserveRequestWeight, Weight: weight}
}

func (ReserveRequestWeight) ActionType() string { return ActionTypeReserveRequestWeight }
func (ReserveRequestWeight) isAction() {}

func (a ReserveRequestWeight) Validate() error {
	if err := checkType(a.Type, ActionTypeReserveRequestWeight); err != nil {
		return err
	}
	if a.Weight == 0 {
		return fmt.Errorf("weight 必须大于 0")
	}
	return nil
}

// ScheduleCancel 定时全部撤单（dead man's switch），Time 为空表示取消定时
type ScheduleCancel struct {
	Type string  `json:"type" msgpack:"type"`
	Time *uint64 `json:"time,omitempty" msgpack:"time,omitempty"`
}

// NewScheduleCancel 构造定时撤单动作
func NewScheduleCancel(at *uint64) ScheduleCancel {
	return ScheduleCancel{Type: ActionTypeScheduleCancel, Time: at}
}

func (ScheduleCancel) ActionType() string { return ActionTypeScheduleCancel }
func (ScheduleCancel) isAction() {}

func (a ScheduleCancel) Validate() error {
	return checkType(a.Type, ActionTypeScheduleCancel)
}

// UsdSend USDC 转账（用户签名）
type UsdSend struct {
	Type             string `json:"type"`
	SignatureChainID string `json:"signatureChainId"`
	HyperliquidChain string `json:"hyperliquidChain"`
	Destination      string `json:"destination"`
	Amount           string `json:"amount"`
	Time             uint64 `json:"time"`
}

// NewUsdSend 构造转账动作，destination 统一小写
func NewUsdSend(network Network, destination, amount string, timeMs uint64) UsdSend {
	return UsdSend{
		Type:             ActionTypeUsdSend,
		SignatureChainID: UserSignedChainIDHex,
		HyperliquidChain: network.ChainName(),
		Destination:      strings.ToLower(destination),
		Amount:           amount,
		Time:             timeMs,
	}
}

func (UsdSend) ActionType() string { return ActionTypeUsdSend }
func (UsdSend) isAction() {}
func (UsdSend) isUserSigned() {}
func (a UsdSend) SignTime() uint64 { return a.Time }

func (a UsdSend) Validate() error {
	if err := checkType(a.Type, ActionTypeUsdSend); err != nil {
		return err
	}
	return validateTransfer(a.Destination, a.Amount, a.Time)
}

// Withdraw 提现到链上地址（用户签名）
type Withdraw struct {
	Type             string `json:"type"`
	SignatureChainID string `json:"signatureChainId"`
	HyperliquidChain string `json:"hyperliquidChain"`
	Destination      string `json:"destination"`
	Amount           string `json:"amount"`
	Time             uint64 `json:"time"`
}

// NewWithdraw 构造提现动作
func NewWithdraw(network Network, destination, amount string, timeMs uint64) Withdraw {
	return Withdraw{
		Type:             ActionTypeWithdraw,
		SignatureChainID: UserSignedChainIDHex,
		HyperliquidChain: network.ChainName(),
		Destination:      strings.ToLower(destination),
		Amount:           amount,
		Time:             timeMs,
	}
}

func (Withdraw) ActionType() string { return ActionTypeWithdraw }
func (Withdraw) isAction() {}
func (Withdraw) isUserSigned() {}
func (a Withdraw) SignTime() uint64 { return a.Time }

func (a Withdraw) Validate() error {
	if err := checkType(a.Type, ActionTypeWithdraw); err != nil {
		return err
	}
	return validateTransfer(a.Destination, a.Amount, a.Time)
}

// UserSignedChainIDHex 用户签名动作使用的 EIP-712 chainId (421614)
const UserSignedChainIDHex = "0x66eee"

func validateTransfer(destination, amount string, timeMs uint64) error {
	if !common.IsHexAddress(destination) {
		return fmt.Errorf("无效的目标地址: %q", destination)
	}
	if err := validateWireNumber("amount", amount); err != nil {
		return err
	}
	if timeMs == 0 {
		return fmt.Errorf("缺少 time")
	}
	return nil
}

// checkType type 字段必须与变体一致，否则签名的 payload 与发送的不一致
func checkType(got, want string) error {
	if got != want {
		return fmt.Errorf("type 字段应为 %q，实际为 %q", want, got)
	}
	return nil
}
