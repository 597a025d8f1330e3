package metrics

import (
	"errors"
	"expvar"
	"sync"

	"github.com/betbot/gohyper/exchange/types"
)

var (
	ActionsSubmitted = expvar.NewInt("hl_actions_submitted")
	ActionsRejected  = expvar.NewInt("hl_actions_rejected")
	InfoRequests     = expvar.NewInt("hl_info_requests")
	// RequestFailures 按失败类别计数：timeout / connection lost / canceled / signing / other
	RequestFailures = expvar.NewMap("hl_request_failures")
)

var publishMu sync.Mutex

// RecordFailure 按错误类别累加 RequestFailures
func RecordFailure(err error) {
	if err == nil {
		return
	}
	var reqErr *types.RequestError
	var signErr *types.SigningError
	var exErr *types.ExchangeError
	switch {
	case errors.As(err, &reqErr):
		RequestFailures.Add(reqErr.Kind.String(), 1)
	case errors.As(err, &signErr):
		RequestFailures.Add("signing", 1)
	case errors.As(err, &exErr):
		ActionsRejected.Add(1)
	case errors.Is(err, types.ErrSessionClosed):
		RequestFailures.Add("closed", 1)
	default:
		RequestFailures.Add("other", 1)
	}
}

// Publish 以 expvar.Func 发布一个快照；同名变量已存在时忽略
func Publish(name string, fn func() any) {
	publishMu.Lock()
	defer publishMu.Unlock()
	if expvar.Get(name) != nil {
		return
	}
	expvar.Publish(name, expvar.Func(fn))
}
