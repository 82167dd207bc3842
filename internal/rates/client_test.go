package rates

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/susu3304/finbot/internal/common"
)

func TestClient_Fetch(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"result": "success",
			"base_code": "USD",
			"conversion_rates": {"USD": 1, "EUR": 0.9213, "RUB": 92.5}
		}`))
	}))
	defer srv.Close()

	c := NewClient("k3y", WithBaseURL(srv.URL+"/"))
	got, err := c.Fetch(context.Background(), "usd")
	require.NoError(t, err)

	assert.Equal(t, "/k3y/latest/USD", gotPath)
	assert.Equal(t, "0.9213", got["EUR"].String())
	assert.Equal(t, "92.5", got["RUB"].String())
}

func TestClient_FetchUnavailable(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "boom", http.StatusInternalServerError)
			},
		},
		{
			name: "result not success",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"result":"error","error-type":"invalid-key"}`))
			},
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`<html>`))
			},
		},
		{
			name: "no rates",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"result":"success","conversion_rates":{}}`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			got, err := NewClient("key", WithBaseURL(srv.URL)).Fetch(context.Background(), "USD")
			assert.Nil(t, got)
			assert.ErrorIs(t, err, common.ErrUpstreamUnavailable)
		})
	}
}

func TestClient_FetchTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := NewClient("key", WithBaseURL(srv.URL), WithTimeout(50*time.Millisecond))

	start := time.Now()
	_, err := c.Fetch(context.Background(), "USD")
	assert.ErrorIs(t, err, common.ErrUpstreamUnavailable)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestClient_FetchKeepsKeyOutOfErrors(t *testing.T) {
	c := NewClient("super-secret", WithBaseURL("http://127.0.0.1:1"))
	_, err := c.Fetch(context.Background(), "USD")
	require.ErrorIs(t, err, common.ErrUpstreamUnavailable)
	assert.NotContains(t, err.Error(), "super-secret")
}

func TestClient_FetchWithoutKey(t *testing.T) {
	_, err := NewClient("").Fetch(context.Background(), "USD")
	assert.ErrorIs(t, err, common.ErrUpstreamUnavailable)
}

type countingFetcher struct {
	calls int
	err   error
}

func (f *countingFetcher) Fetch(_ context.Context, base string) (Rates, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return Rates{base: decimal.NewFromInt(1)}, nil
}

func TestRequestCache(t *testing.T) {
	ctx := context.Background()
	f := &countingFetcher{}
	cache := NewRequestCache(f)

	for i := 0; i < 3; i++ {
		r, err := cache.Fetch(ctx, "usd")
		require.NoError(t, err)
		assert.Contains(t, r, "USD")
	}
	assert.Equal(t, 1, f.calls)

	_, err := cache.Fetch(ctx, "EUR")
	require.NoError(t, err)
	assert.Equal(t, 2, f.calls)

	// A new request starts with an empty cache.
	_, err = NewRequestCache(f).Fetch(ctx, "USD")
	require.NoError(t, err)
	assert.Equal(t, 3, f.calls)
}

func TestRequestCacheDoesNotKeepFailures(t *testing.T) {
	ctx := context.Background()
	f := &countingFetcher{err: common.NewUpstreamError("test", context.DeadlineExceeded)}
	cache := NewRequestCache(f)

	_, err := cache.Fetch(ctx, "USD")
	assert.ErrorIs(t, err, common.ErrUpstreamUnavailable)

	f.err = nil
	_, err = cache.Fetch(ctx, "USD")
	require.NoError(t, err)
	assert.Equal(t, 2, f.calls)
}
