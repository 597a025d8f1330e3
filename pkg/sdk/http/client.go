package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
)

// Options HTTP 客户端选项
type Options struct {
	Timeout    time.Duration
	RetryCount int
	ProxyURL   string
	UserAgent  string
}

// DefaultOptions 默认选项：只读请求可以重试
func DefaultOptions() Options {
	return Options{
		Timeout:    30 * time.Second,
		RetryCount: 3,
		UserAgent:  "gohyper",
	}
}

type Client struct {
	client    *resty.Client
	userAgent string
}

// NewClient 创建 JSON HTTP 客户端
// resty 会自动从环境变量读取代理配置（HTTP_PROXY, HTTPS_PROXY），ProxyURL 非空时覆盖
func NewClient(host string, opts Options) *Client {
	host = strings.TrimSuffix(host, "/")
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultOptions().Timeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultOptions().UserAgent
	}

	client := resty.New().
		SetBaseURL(host).
		SetTimeout(opts.Timeout).
		SetRetryCount(opts.RetryCount).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(10 * time.Second).
		AddRetryCondition(func(resp *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return resp.StatusCode() == http.StatusTooManyRequests || resp.StatusCode() >= 500
		}).
		SetRetryAfter(func(client *resty.Client, resp *resty.Response) (time.Duration, error) {
			// 429 限流时优先使用 Retry-After 头
			if resp != nil && resp.StatusCode() == http.StatusTooManyRequests {
				if retryAfter := resp.Header().Get("Retry-After"); retryAfter != "" {
					if seconds, err := time.ParseDuration(retryAfter + "s"); err == nil {
						return seconds, nil
					}
				}
				return 2 * time.Second, nil
			}
			return 0, nil
		})
	if opts.ProxyURL != "" {
		client.SetProxy(opts.ProxyURL)
	}

	return &Client{client: client, userAgent: opts.UserAgent}
}

type RequestOptions struct {
	Headers map[string]string
	Data    any
	Params  map[string]any
}

// 仅设置本次请求的默认 Header（不要再改 client 级 Header）
func (c *Client) newRequest(ctx context.Context) *resty.Request {
	r := c.client.R()
	if ctx != nil {
		r.SetContext(ctx)
	}
	r.SetHeader("Accept", "application/json")
	r.SetHeader("User-Agent", c.userAgent)
	return r
}

// DoRequest 发送请求；out 非空时把 2xx 响应体解码进去
func (c *Client) DoRequest(ctx context.Context, method, endpoint string, opt *RequestOptions, out any) (*resty.Response, error) {
	rc := c.newRequest(ctx)
	if opt != nil {
		for k, v := range opt.Headers {
			rc.SetHeader(k, v)
		}
		if opt.Params != nil {
			rc.SetQueryParamsFromValues(toValues(opt.Params))
		}
		if opt.Data != nil {
			rc.SetHeader("Content-Type", "application/json")
			rc.SetBody(opt.Data)
		}
	}
	if out != nil {
		rc.SetResult(out)
	}

	switch strings.ToUpper(method) {
	case http.MethodGet:
		return rc.Get(endpoint)
	case http.MethodPost:
		return rc.Post(endpoint)
	default:
		return nil, fmt.Errorf("unsupported method: %s", method)
	}
}

// PostJSON POST JSON 并返回原始响应体，非 2xx 返回 *HTTPError
func (c *Client) PostJSON(ctx context.Context, endpoint string, body any) ([]byte, error) {
	resp, err := c.DoRequest(ctx, http.MethodPost, endpoint, &RequestOptions{Data: body}, nil)
	if err := ParseHTTPError(resp, err); err != nil {
		return nil, errors.Wrapf(err, "POST %s", endpoint)
	}
	return resp.Body(), nil
}

func toValues(m map[string]any) map[string][]string {
	v := make(map[string][]string, len(m))
	for k, val := range m {
		switch t := val.(type) {
		case []string:
			v[k] = t
		default:
			v[k] = []string{fmt.Sprint(val)}
		}
	}
	return v
}

// HTTPError 非 2xx 响应
type HTTPError struct {
	StatusCode int
	Status     string
	Body       any
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http %d: %v", e.StatusCode, e.Body)
}

// ParseHTTPError 把传输错误和非 2xx 响应统一成 error
func ParseHTTPError(resp *resty.Response, err error) error {
	if err != nil {
		return errors.WithStack(err)
	}
	if resp == nil {
		return errors.New("empty response")
	}
	if resp.IsSuccess() {
		return nil
	}
	var body any
	b := resp.Body()
	_ = json.Unmarshal(b, &body)
	if body == nil {
		body = string(b)
	}
	return &HTTPError{StatusCode: resp.StatusCode(), Status: resp.Status(), Body: body}
}
