package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/info", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "gohyper", r.Header.Get("User-Agent"))
		b, _ := io.ReadAll(r.Body)
		var req map[string]string
		require.NoError(t, json.Unmarshal(b, &req))
		assert.Equal(t, "meta", req["type"])
		_, _ = w.Write([]byte(`{"universe":[]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", Options{RetryCount: 0})
	body, err := c.PostJSON(context.Background(), "/info", map[string]string{"type": "meta"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"universe":[]}`, string(body))
}

func TestPostJSON_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`"Failed to deserialize the JSON body"`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, Options{RetryCount: 0})
	_, err := c.PostJSON(context.Background(), "/exchange", map[string]string{})
	require.Error(t, err)
	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusUnprocessableEntity, httpErr.StatusCode)
	assert.Equal(t, "Failed to deserialize the JSON body", httpErr.Body)
}
