package types

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrTimeout post 请求在超时时间内没有收到响应
	ErrTimeout = errors.New("request timeout")
	// ErrConnectionLost 请求在途时连接断开
	ErrConnectionLost = errors.New("connection lost")
	// ErrSessionClosed 会话已关闭，所有操作立即失败
	ErrSessionClosed = errors.New("session closed")
)

// SigningError 签名失败（身份无效或动作校验失败），只影响本次提交
type SigningError struct {
	Op  string
	Err error
}

func (e *SigningError) Error() string {
	return fmt.Sprintf("签名失败 (%s): %v", e.Op, e.Err)
}

func (e *SigningError) Unwrap() error { return e.Err }

// ConnectionError 建立连接或握手失败，传输层会退避重试
type ConnectionError struct {
	URL string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("连接 %s 失败: %v", e.URL, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// RequestErrorKind post 请求失败类别
type RequestErrorKind int

const (
	RequestTimeout RequestErrorKind = iota + 1
	RequestConnectionLost
	RequestCanceled
)

func (k RequestErrorKind) String() string {
	switch k {
	case RequestTimeout:
		return "timeout"
	case RequestConnectionLost:
		return "connection lost"
	case RequestCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// RequestError post 请求没有得到响应
type RequestError struct {
	ID   uint64
	Kind RequestErrorKind
	Err  error
}

func (e *RequestError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("post 请求 #%d %s: %v", e.ID, e.Kind, e.Err)
	}
	return fmt.Sprintf("post 请求 #%d %s", e.ID, e.Kind)
}

func (e *RequestError) Unwrap() error { return e.Err }

// Is 让 errors.Is(err, ErrTimeout) / errors.Is(err, ErrConnectionLost) 可用
func (e *RequestError) Is(target error) bool {
	switch target {
	case ErrTimeout:
		return e.Kind == RequestTimeout
	case ErrConnectionLost:
		return e.Kind == RequestConnectionLost
	}
	return false
}

// ExchangeError 交易所返回的业务错误
// Index 为批量请求中的位置，整体失败时为 -1
type ExchangeError struct {
	Index   int
	Message string
}

func (e *ExchangeError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("交易所拒绝: %s", e.Message)
	}
	return fmt.Sprintf("交易所拒绝 (#%d): %s", e.Index, e.Message)
}

// IsNonceError nonce 过期或重复。不能用同一个 nonce 重试
func (e *ExchangeError) IsNonceError() bool {
	return strings.Contains(strings.ToLower(e.Message), "nonce")
}

// ProtocolError 无法解析的入站帧，只记录日志，不影响读循环
type ProtocolError struct {
	Channel string
	Err     error
}

func (e *ProtocolError) Error() string {
	if e.Channel == "" {
		return fmt.Sprintf("协议错误: %v", e.Err)
	}
	return fmt.Sprintf("协议错误 (channel=%s): %v", e.Channel, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }
