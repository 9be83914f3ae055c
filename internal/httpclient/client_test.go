package httpclient_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/otoken-adapter/internal/apperror"
	"github.com/fd1az/otoken-adapter/internal/httpclient"
)

func TestRequest_GetDecodesResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/swap/v1/quote", r.URL.Path)
		assert.Equal(t, "1000", r.URL.Query().Get("buyAmount"))
		assert.Equal(t, "secret", r.Header.Get("0x-api-key"))
		w.Write([]byte(`{"price":"0.5"}`))
	}))
	defer srv.Close()

	c, err := httpclient.New(
		httpclient.WithBaseURL(srv.URL),
		httpclient.WithHeaders(map[string]string{"0x-api-key": "secret"}),
	)
	require.NoError(t, err)

	var out struct {
		Price string `json:"price"`
	}
	resp, err := c.NewRequest().
		SetQueryParam("buyAmount", "1000").
		SetResult(&out).
		Get(context.Background(), "/swap/v1/quote")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "0.5", out.Price)
}

func TestRequest_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/limited" {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"reason":"Validation Failed"}`))
	}))
	defer srv.Close()

	c, err := httpclient.New(httpclient.WithBaseURL(srv.URL))
	require.NoError(t, err)

	_, err = c.NewRequest().Get(context.Background(), "/quote")
	require.Error(t, err)
	assert.Equal(t, apperror.CodeExternalServiceError, apperror.GetCode(err))
	assert.Contains(t, err.Error(), "Validation Failed")

	_, err = c.NewRequest().Get(context.Background(), "/limited")
	assert.Equal(t, apperror.CodeRateLimitExceeded, apperror.GetCode(err))
}

func TestRequest_CustomErrorHandler(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c, err := httpclient.New(httpclient.WithBaseURL(srv.URL))
	require.NoError(t, err)

	resp, err := c.NewRequest().
		SetErrorHandler(func(int, []byte) error { return nil }).
		Get(context.Background(), "/missing")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
