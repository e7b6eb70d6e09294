package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/corvidlabs/wsloop/executor"
)

func TestGetFetchesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Test", "1")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("hello world"))
	}))
	defer srv.Close()

	exec, err := executor.New()
	require.NoError(t, err)
	defer exec.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	resp, err := Get(ctx, exec, srv.URL)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "hello world", string(resp.Body))
	require.Equal(t, "1", resp.Header.Get("X-Test"))
}

func TestDoRecordsMetricsAndStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	exec, err := executor.New()
	require.NoError(t, err)
	defer exec.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	resp, err := Do(ctx, exec, &Request{Method: http.MethodGet, URL: srv.URL})
	require.NoError(t, err)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	snap := exec.Metrics.GetSnapshot()
	require.Equal(t, 1, snap["httpclient.requests_total"])
	require.Equal(t, http.StatusNoContent, snap["httpclient.last_status"])
}

func TestDoRejectsEmptyURL(t *testing.T) {
	exec, err := executor.New()
	require.NoError(t, err)
	defer exec.Close()

	_, err = Do(context.Background(), exec, &Request{})
	require.Error(t, err)
}

func TestDoSurfacesTransportErrorOnUnreachableHost(t *testing.T) {
	exec, err := executor.New()
	require.NoError(t, err)
	defer exec.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	_, err = Do(ctx, exec, &Request{Method: http.MethodGet, URL: "http://127.0.0.1:1"})
	require.Error(t, err)

	snap := exec.Metrics.GetSnapshot()
	require.Equal(t, 1, snap["httpclient.failures_total"])
}
