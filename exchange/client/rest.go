package client

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"github.com/betbot/gohyper/exchange/types"
	"github.com/betbot/gohyper/pkg/ratelimit"
	sdkhttp "github.com/betbot/gohyper/pkg/sdk/http"
)

// restTransport /exchange 与 /info 的 HTTP 通道，按权重预算限速
// /exchange 用单独的客户端，重试次数固定为 0，不受 HTTP 配置影响
type restTransport struct {
	http     *sdkhttp.Client
	exchHTTP *sdkhttp.Client
	limits   *ratelimit.RateLimitManager
}

func newRESTTransport(baseURL string, opts sdkhttp.Options, weightPerMinute int) *restTransport {
	limits := ratelimit.NewRateLimitManager()
	if weightPerMinute > 0 {
		limits = ratelimit.NewRateLimitManagerWithLimit(weightPerMinute, time.Minute)
	}
	exchOpts := opts
	exchOpts.RetryCount = 0
	return &restTransport{
		http:     sdkhttp.NewClient(baseURL, opts),
		exchHTTP: sdkhttp.NewClient(baseURL, exchOpts),
		limits:   limits,
	}
}

// exchange 发送签名信封；信封只发送一次，不做重试
func (r *restTransport) exchange(ctx context.Context, env types.Envelope, weight int) ([]byte, error) {
	if err := r.limits.WaitN(ctx, ratelimit.LimiterREST, weight); err != nil {
		return nil, errors.Wrap(err, "等待 REST 权重")
	}
	return r.exchHTTP.PostJSON(ctx, types.EndpointExchange, env)
}

// info 发送只读查询
func (r *restTransport) info(ctx context.Context, payload any) (json.RawMessage, error) {
	if err := r.limits.WaitN(ctx, ratelimit.LimiterREST, ratelimit.InfoWeight(infoType(payload))); err != nil {
		return nil, errors.Wrap(err, "等待 REST 权重")
	}
	return r.http.PostJSON(ctx, types.EndpointInfo, payload)
}

func (r *restTransport) remaining() int {
	return r.limits.GetRemaining(ratelimit.LimiterREST)
}

// infoType 取出 info 请求的 type 字段，用于计算权重
func infoType(payload any) string {
	b, err := json.Marshal(payload)
	if err != nil {
		return ""
	}
	var v struct {
		Type string `json:"type"`
	}
	_ = json.Unmarshal(b, &v)
	return v.Type
}

// actionWeight /exchange 请求权重按批量长度计算
func actionWeight(action types.Action) int {
	n := 0
	switch a := action.(type) {
	case types.BulkOrder:
		n = len(a.Orders)
	case types.BulkCancel:
		n = len(a.Cancels)
	case types.BulkCancelByCloid:
		n = len(a.Cancels)
	case types.BulkModify:
		n = len(a.Modifies)
	}
	return ratelimit.ExchangeWeight(n)
}
