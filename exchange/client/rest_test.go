package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betbot/gohyper/exchange/types"
	sdkhttp "github.com/betbot/gohyper/pkg/sdk/http"
)

func TestRESTTransport_ExchangeIsNeverRetried(t *testing.T) {
	var exchHits, infoHits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case types.EndpointExchange:
			exchHits.Add(1)
			w.WriteHeader(http.StatusInternalServerError)
		case types.EndpointInfo:
			// 第一次失败，重试后成功
			if infoHits.Add(1) == 1 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			_, _ = w.Write([]byte(`{"universe":[]}`))
		}
	}))
	defer srv.Close()

	rest := newRESTTransport(srv.URL, sdkhttp.Options{RetryCount: 3}, 0)

	env := types.Envelope{Action: types.NewReserveRequestWeight(1), Nonce: 1}
	_, err := rest.exchange(context.Background(), env, 1)
	require.Error(t, err)
	var httpErr *sdkhttp.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusInternalServerError, httpErr.StatusCode)
	assert.EqualValues(t, 1, exchHits.Load())

	body, err := rest.info(context.Background(), map[string]string{"type": "meta"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"universe":[]}`, string(body))
	assert.EqualValues(t, 2, infoHits.Load())
}
