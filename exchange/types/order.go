package types

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// Tif 限价单有效方式
type Tif string

const (
	TifAlo Tif = "Alo" // Add Liquidity Only，只做 maker
	TifIoc Tif = "Ioc" // Immediate Or Cancel
	TifGtc Tif = "Gtc" // Good Till Cancel
)

// Tpsl 触发单类型
type Tpsl string

const (
	TpslTakeProfit Tpsl = "tp"
	TpslStopLoss   Tpsl = "sl"
)

// Grouping 批量下单的分组方式
type Grouping string

const (
	GroupingNA           Grouping = "na"
	GroupingNormalTpsl   Grouping = "normalTpsl"
	GroupingPositionTpsl Grouping = "positionTpsl"
)

// LimitWire {"tif": "Gtc"}
type LimitWire struct {
	Tif Tif `json:"tif" msgpack:"tif"`
}

// TriggerWire 触发单参数，字段顺序固定
type TriggerWire struct {
	IsMarket  bool   `json:"isMarket" msgpack:"isMarket"`
	TriggerPx string `json:"triggerPx" msgpack:"triggerPx"`
	Tpsl      Tpsl   `json:"tpsl" msgpack:"tpsl"`
}

// OrderTypeWire 二选一：{"limit":{...}} 或 {"trigger":{...}}
type OrderTypeWire struct {
	Limit   *LimitWire   `json:"limit,omitempty" msgpack:"limit,omitempty"`
	Trigger *TriggerWire `json:"trigger,omitempty" msgpack:"trigger,omitempty"`
}

// LimitOrder 构造限价单类型
func LimitOrder(tif Tif) OrderTypeWire {
	return OrderTypeWire{Limit: &LimitWire{Tif: tif}}
}

// TriggerOrder 构造触发单类型
func TriggerOrder(isMarket bool, triggerPx string, tpsl Tpsl) OrderTypeWire {
	return OrderTypeWire{Trigger: &TriggerWire{IsMarket: isMarket, TriggerPx: triggerPx, Tpsl: tpsl}}
}

func (t OrderTypeWire) validate() error {
	switch {
	case t.Limit != nil && t.Trigger != nil:
		return fmt.Errorf("订单类型只能是 limit 或 trigger 之一")
	case t.Limit != nil:
		switch t.Limit.Tif {
		case TifAlo, TifIoc, TifGtc:
			return nil
		default:
			return fmt.Errorf("无效的 tif: %q", t.Limit.Tif)
		}
	case t.Trigger != nil:
		if err := validateWireNumber("triggerPx", t.Trigger.TriggerPx); err != nil {
			return err
		}
		if t.Trigger.Tpsl != TpslTakeProfit && t.Trigger.Tpsl != TpslStopLoss {
			return fmt.Errorf("无效的 tpsl: %q", t.Trigger.Tpsl)
		}
		return nil
	default:
		return fmt.Errorf("缺少订单类型")
	}
}

// OrderWire 交易所签名 schema 中的订单，字段顺序 a,b,p,s,r,t,c 不可改变
type OrderWire struct {
	Asset      uint32        `json:"a" msgpack:"a"`
	IsBuy      bool          `json:"b" msgpack:"b"`
	LimitPx    string        `json:"p" msgpack:"p"`
	Size       string        `json:"s" msgpack:"s"`
	ReduceOnly bool          `json:"r" msgpack:"r"`
	OrderType  OrderTypeWire `json:"t" msgpack:"t"`
	Cloid      string        `json:"c,omitempty" msgpack:"c,omitempty"`
}

// Validate 下单参数校验
func (o OrderWire) Validate() error {
	if err := validateWireNumber("p", o.LimitPx); err != nil {
		return err
	}
	if err := validateWireNumber("s", o.Size); err != nil {
		return err
	}
	if o.Cloid != "" && !IsValidCloid(o.Cloid) {
		return fmt.Errorf("无效的 cloid: %q", o.Cloid)
	}
	return o.OrderType.validate()
}

// BuilderInfo builder 费用，b 为小写地址，f 单位为十分之一个基点
type BuilderInfo struct {
	Builder string `json:"b" msgpack:"b"`
	Fee     uint64 `json:"f" msgpack:"f"`
}

var cloidPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{32}$`)

// IsValidCloid cloid 必须是 0x + 32 位十六进制（16 字节）
func IsValidCloid(s string) bool {
	return cloidPattern.MatchString(s)
}

// NewCloid 生成随机 cloid（uuid v4 的 16 字节）
func NewCloid() string {
	id := uuid.New()
	return "0x" + strings.ReplaceAll(id.String(), "-", "")
}

// CloidFromUUID 把已有 uuid 转为 cloid
func CloidFromUUID(id uuid.UUID) string {
	return "0x" + strings.ReplaceAll(id.String(), "-", "")
}

// validateWireNumber 价格/数量必须是已规范化的十进制字符串且大于 0
func validateWireNumber(field, s string) error {
	if s == "" {
		return fmt.Errorf("%s 不能为空", field)
	}
	d, err := ParseWireDecimal(s)
	if err != nil {
		return fmt.Errorf("%s 不是合法数字: %q", field, s)
	}
	if !d.IsPositive() {
		return fmt.Errorf("%s 必须大于 0: %q", field, s)
	}
	return nil
}

// OrderRequest 以 coin 名称和浮点价格描述的下单请求，提交前通过 ToWire 转换
type OrderRequest struct {
	Coin       string
	IsBuy      bool
	Price      float64
	Size       float64
	ReduceOnly bool
	OrderType  OrderTypeWire
	Cloid      string
}

// ToWire 查找资产 ID，按 szDecimals 取整后编码为签名用的字符串
func (r OrderRequest) ToWire(dir *AssetDirectory) (OrderWire, error) {
	info, ok := dir.Lookup(r.Coin)
	if !ok {
		return OrderWire{}, fmt.Errorf("未知的 coin: %s", r.Coin)
	}
	if r.Price <= 0 || r.Size <= 0 {
		return OrderWire{}, fmt.Errorf("价格和数量必须大于 0: px=%v sz=%v", r.Price, r.Size)
	}
	px := DecimalToWire(RoundPrice(r.Price, info.SzDecimals, info.Spot))
	sz := DecimalToWire(RoundSize(r.Size, info.SzDecimals))
	orderType := r.OrderType
	if orderType.Trigger != nil {
		t := *orderType.Trigger
		trigger, err := ParseWireDecimal(t.TriggerPx)
		if err != nil {
			return OrderWire{}, fmt.Errorf("triggerPx 不是合法数字: %q", t.TriggerPx)
		}
		t.TriggerPx = DecimalToWire(trigger)
		orderType.Trigger = &t
	}
	return OrderWire{
		Asset:      info.Asset,
		IsBuy:      r.IsBuy,
		LimitPx:    px,
		Size:       sz,
		ReduceOnly: r.ReduceOnly,
		OrderType:  orderType,
		Cloid:      r.Cloid,
	}, nil
}
