package types

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// RestingStatus 挂单成功
type RestingStatus struct {
	Oid   uint64 `json:"oid"`
	Cloid string `json:"cloid,omitempty"`
}

// FilledStatus 立即成交
type FilledStatus struct {
	TotalSz string `json:"totalSz"`
	AvgPx   string `json:"avgPx"`
	Oid     uint64 `json:"oid"`
	Cloid   string `json:"cloid,omitempty"`
}

// OrderStatus 批量请求中单个元素的结果
// 可能是对象 {resting}/{filled}/{error}，也可能是字符串（撤单成功返回 "success"）
type OrderStatus struct {
	Resting *RestingStatus `json:"resting,omitempty"`
	Filled  *FilledStatus  `json:"filled,omitempty"`
	Error   string         `json:"error,omitempty"`
	Status  string         `json:"-"`
}

func (s *OrderStatus) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &s.Status)
	}
	type alias OrderStatus
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*s = OrderStatus(a)
	return nil
}

// OK 该元素没有报错
func (s OrderStatus) OK() bool {
	return s.Error == ""
}

// Oid 挂单或成交的订单 ID
func (s OrderStatus) Oid() (uint64, bool) {
	switch {
	case s.Resting != nil:
		return s.Resting.Oid, true
	case s.Filled != nil:
		return s.Filled.Oid, true
	}
	return 0, false
}

// ExchangeResponse /exchange（或 WS action post）的响应
type ExchangeResponse struct {
	Status string
	// Type 为 response.type，例如 order / cancel / default
	Type     string
	Statuses []OrderStatus
	// ErrMessage status 为 err 时的错误字符串
	ErrMessage string
	Raw        json.RawMessage
}

type exchangeResponseWire struct {
	Status   string          `json:"status"`
	Response json.RawMessage `json:"response"`
}

type exchangeResponseBody struct {
	Type string `json:"type"`
	Data *struct {
		Statuses []OrderStatus `json:"statuses"`
	} `json:"data,omitempty"`
}

// ParseExchangeResponse 解析 {"status":"ok"|"err","response":...}
// status 为 err 时 response 为字符串
func ParseExchangeResponse(raw []byte) (*ExchangeResponse, error) {
	var w exchangeResponseWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("解析交易所响应失败: %w", err)
	}
	out := &ExchangeResponse{Status: w.Status, Raw: append(json.RawMessage(nil), raw...)}
	switch w.Status {
	case "ok":
		if len(w.Response) == 0 || string(w.Response) == "null" {
			return out, nil
		}
		var body exchangeResponseBody
		if err := json.Unmarshal(w.Response, &body); err != nil {
			return nil, fmt.Errorf("解析交易所响应 response 失败: %w", err)
		}
		out.Type = body.Type
		if body.Data != nil {
			out.Statuses = body.Data.Statuses
		}
	case "err":
		var msg string
		if err := json.Unmarshal(w.Response, &msg); err != nil {
			msg = string(w.Response)
		}
		out.ErrMessage = msg
	default:
		return nil, fmt.Errorf("未知的响应状态: %q", w.Status)
	}
	return out, nil
}

// Err 整个请求被拒绝时返回 *ExchangeError（例如 nonce 过期），否则为 nil
// 单个元素的失败通过 StatusErrors 获取
func (r *ExchangeResponse) Err() error {
	if r.Status == "err" {
		return &ExchangeError{Index: -1, Message: r.ErrMessage}
	}
	return nil
}

// StatusErrors 返回每个失败元素对应的 *ExchangeError，其他元素可能已经成功
func (r *ExchangeResponse) StatusErrors() []error {
	var errs []error
	for i, s := range r.Statuses {
		if !s.OK() {
			errs = append(errs, &ExchangeError{Index: i, Message: s.Error})
		}
	}
	return errs
}
