package types

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// 价格/数量在签名 payload 中最多保留 8 位小数
const wireDecimals = 8

// ParseWireDecimal 解析价格/数量字符串
func ParseWireDecimal(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(strings.TrimSpace(s))
}

// FloatToWire 把浮点数转为签名用的十进制字符串
// 四舍五入到 8 位小数并去掉末尾的 0（1.0 -> "1"，0.10 -> "0.1"）
// 如果四舍五入改变了数值（精度超过 8 位），返回错误而不是悄悄截断
func FloatToWire(x float64) (string, error) {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return "", fmt.Errorf("无法编码非有限数值: %v", x)
	}
	rounded := decimal.NewFromFloat(x).Round(wireDecimals)
	f, _ := rounded.Float64()
	if math.Abs(f-x) >= 1e-12 {
		return "", fmt.Errorf("数值 %v 超出 %d 位小数精度", x, wireDecimals)
	}
	return DecimalToWire(rounded), nil
}

// DecimalToWire 规范化 decimal 的字符串形式
func DecimalToWire(d decimal.Decimal) string {
	s := d.Round(wireDecimals).StringFixed(wireDecimals)
	if strings.Contains(s, ".") {
		s = strings.TrimRight(s, "0")
		s = strings.TrimSuffix(s, ".")
	}
	if s == "-0" {
		return "0"
	}
	return s
}

// RoundPrice 按交易所价格规则取整：最多 5 位有效数字，且小数位不超过 maxDecimals - szDecimals
// 永续 maxDecimals 为 6，现货为 8
func RoundPrice(px float64, szDecimals int32, spot bool) decimal.Decimal {
	maxDecimals := int32(6)
	if spot {
		maxDecimals = 8
	}
	d := decimal.NewFromFloat(px)
	// 整数价格不受有效数字限制
	if d.Equal(d.Truncate(0)) {
		return d
	}
	intDigits := int32(len(d.Abs().Truncate(0).String()))
	if d.Abs().LessThan(decimal.NewFromInt(1)) {
		intDigits = 0
	}
	sig := int32(5) - intDigits
	if d.Abs().LessThan(decimal.NewFromInt(1)) {
		// 0.000123 这样的价格，有效数字从第一个非零位开始
		exp := d.Abs().Exponent()
		coef := d.Abs().Coefficient().String()
		leadingZeros := -exp - int32(len(coef))
		sig = leadingZeros + 5
	}
	places := maxDecimals - szDecimals
	if sig < places {
		places = sig
	}
	if places < 0 {
		places = 0
	}
	return d.Round(places)
}

// RoundSize 数量按 szDecimals 取整
func RoundSize(sz float64, szDecimals int32) decimal.Decimal {
	return decimal.NewFromFloat(sz).Round(szDecimals)
}
