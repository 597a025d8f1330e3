package types

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// 资产 ID 编号规则
const (
	SpotAssetOffset        = 10000
	BuilderPerpAssetOffset = 100000
	BuilderPerpDexStride   = 10000
)

// AssetMeta 永续合约元数据
type AssetMeta struct {
	Name          string `json:"name"`
	SzDecimals    int32  `json:"szDecimals"`
	MarginTableID uint32 `json:"marginTableId"`
	MaxLeverage   uint32 `json:"maxLeverage"`
	OnlyIsolated  bool   `json:"onlyIsolated,omitempty"`
	IsDelisted    bool   `json:"isDelisted,omitempty"`
	MarginMode    string `json:"marginMode,omitempty"` // strictIsolated / noCross
}

// MarginTier 保证金档位
type MarginTier struct {
	LowerBound  decimal.Decimal `json:"lowerBound"`
	MaxLeverage uint32          `json:"maxLeverage"`
}

// MarginTable 保证金表，线上格式为 [id, {description, marginTiers}]
type MarginTable struct {
	ID          uint32
	Description string       `json:"description"`
	MarginTiers []MarginTier `json:"marginTiers"`
}

func (m *MarginTable) UnmarshalJSON(data []byte) error {
	var tuple []json.RawMessage
	if err := json.Unmarshal(data, &tuple); err != nil {
		return err
	}
	if len(tuple) != 2 {
		return fmt.Errorf("marginTables 元素长度应为 2，实际 %d", len(tuple))
	}
	if err := json.Unmarshal(tuple[0], &m.ID); err != nil {
		return err
	}
	var body struct {
		Description string       `json:"description"`
		MarginTiers []MarginTier `json:"marginTiers"`
	}
	if err := json.Unmarshal(tuple[1], &body); err != nil {
		return err
	}
	m.Description = body.Description
	m.MarginTiers = body.MarginTiers
	return nil
}

// MaxLeverageFor 名义价值对应的最大杠杆
func (m MarginTable) MaxLeverageFor(notional decimal.Decimal) uint32 {
	var lev uint32
	for _, t := range m.MarginTiers {
		if notional.GreaterThanOrEqual(t.LowerBound) {
			lev = t.MaxLeverage
		}
	}
	return lev
}

// Meta info {"type":"meta"} 的响应
type Meta struct {
	Universe     []AssetMeta   `json:"universe"`
	MarginTables []MarginTable `json:"marginTables"`
}

// SpotAssetMeta 现货交易对
type SpotAssetMeta struct {
	Tokens      [2]int `json:"tokens"`
	Name        string `json:"name"`
	Index       int    `json:"index"`
	IsCanonical bool   `json:"isCanonical"`
}

// TokenInfo 现货代币
type TokenInfo struct {
	Name        string `json:"name"`
	SzDecimals  int32  `json:"szDecimals"`
	WeiDecimals int32  `json:"weiDecimals"`
	Index       int    `json:"index"`
	TokenID     string `json:"tokenId"`
	IsCanonical bool   `json:"isCanonical"`
}

// SpotMeta info {"type":"spotMeta"} 的响应
type SpotMeta struct {
	Universe []SpotAssetMeta `json:"universe"`
	Tokens   []TokenInfo     `json:"tokens"`
}

// PerpDex perpDexs 列表中的一项（第一项为 null，表示默认 dex）
type PerpDex struct {
	Name     string `json:"name"`
	FullName string `json:"fullName"`
	Deployer string `json:"deployer"`
}

// AssetInfo 资产目录中的一项
type AssetInfo struct {
	Asset      uint32
	SzDecimals int32
	Spot       bool
}

// AssetDirectory coin 名称到资产 ID 的映射
type AssetDirectory struct {
	byName  map[string]AssetInfo
	byAsset map[uint32]string
}

// NewAssetDirectory 创建空目录
func NewAssetDirectory() *AssetDirectory {
	return &AssetDirectory{
		byName:  make(map[string]AssetInfo),
		byAsset: make(map[uint32]string),
	}
}

func (d *AssetDirectory) add(name string, info AssetInfo) {
	d.byName[name] = info
	if _, ok := d.byAsset[info.Asset]; !ok {
		d.byAsset[info.Asset] = name
	}
}

// AddPerps 默认 dex 的永续，资产 ID 为 universe 下标
func (d *AssetDirectory) AddPerps(meta *Meta) {
	for i, a := range meta.Universe {
		d.add(a.Name, AssetInfo{Asset: uint32(i), SzDecimals: a.SzDecimals})
	}
}

// AddBuilderPerps builder 部署的永续：100000 + dexIndex*10000 + 下标
func (d *AssetDirectory) AddBuilderPerps(dexIndex int, meta *Meta) {
	for i, a := range meta.Universe {
		asset := uint32(BuilderPerpAssetOffset + dexIndex*BuilderPerpDexStride + i)
		d.add(a.Name, AssetInfo{Asset: asset, SzDecimals: a.SzDecimals})
	}
}

// AddSpot 现货：10000 + index，同时登记 "BASE/QUOTE" 别名
func (d *AssetDirectory) AddSpot(meta *SpotMeta) {
	tokens := make(map[int]TokenInfo, len(meta.Tokens))
	for _, t := range meta.Tokens {
		tokens[t.Index] = t
	}
	for _, pair := range meta.Universe {
		base, ok1 := tokens[pair.Tokens[0]]
		quote, ok2 := tokens[pair.Tokens[1]]
		if !ok1 || !ok2 {
			continue
		}
		info := AssetInfo{Asset: uint32(SpotAssetOffset + pair.Index), SzDecimals: base.SzDecimals, Spot: true}
		d.add(pair.Name, info)
		d.add(base.Name+"/"+quote.Name, info)
	}
}

// Lookup 按 coin 名称查找
func (d *AssetDirectory) Lookup(coin string) (AssetInfo, bool) {
	info, ok := d.byName[coin]
	if !ok {
		info, ok = d.byName[strings.ToUpper(coin)]
	}
	return info, ok
}

// Asset 按 coin 名称查找资产 ID
func (d *AssetDirectory) Asset(coin string) (uint32, error) {
	info, ok := d.Lookup(coin)
	if !ok {
		return 0, fmt.Errorf("未知的 coin: %s", coin)
	}
	return info.Asset, nil
}

// Name 资产 ID 反查名称
func (d *AssetDirectory) Name(asset uint32) (string, bool) {
	name, ok := d.byAsset[asset]
	return name, ok
}

// Len 目录中的名称数量（包含别名）
func (d *AssetDirectory) Len() int {
	return len(d.byName)
}
