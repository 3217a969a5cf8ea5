package http

import (
	"context"
	"encoding/json"
	gohttp "net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostJSON(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(gohttp.HandlerFunc(func(w gohttp.ResponseWriter, r *gohttp.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "order.placed", r.Header.Get("X-Event"))
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	resp, err := New(time.Second).Post(srv.URL).Header("X-Event", "order.placed").
		Body(map[string]any{"order_number": "BE-1"}).Send(context.Background())
	require.NoError(t, err)
	require.NoError(t, resp.Throw())

	var out struct{ OK bool }
	require.NoError(t, resp.JSON(&out))
	assert.True(t, out.OK)
	assert.Equal(t, "BE-1", got["order_number"])
}

func TestRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(gohttp.HandlerFunc(func(w gohttp.ResponseWriter, _ *gohttp.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(gohttp.StatusBadGateway)
			return
		}
		w.WriteHeader(gohttp.StatusNoContent)
	}))
	defer srv.Close()

	resp, err := New(time.Second).Post(srv.URL).Retry(3, time.Millisecond).Send(context.Background())
	require.NoError(t, err)
	assert.Equal(t, gohttp.StatusNoContent, resp.StatusCode)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClientErrorsAreNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(gohttp.HandlerFunc(func(w gohttp.ResponseWriter, _ *gohttp.Request) {
		calls.Add(1)
		w.WriteHeader(gohttp.StatusBadRequest)
	}))
	defer srv.Close()

	resp, err := New(time.Second).Post(srv.URL).Retry(3, time.Millisecond).Send(context.Background())
	require.NoError(t, err)
	assert.ErrorContains(t, resp.Throw(), "HTTP 400")
	assert.Equal(t, int32(1), calls.Load())
}

func TestRetryStopsOnCancel(t *testing.T) {
	srv := httptest.NewServer(gohttp.HandlerFunc(func(w gohttp.ResponseWriter, _ *gohttp.Request) {
		w.WriteHeader(gohttp.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := New(time.Second).Post(srv.URL).Retry(5, time.Second).Send(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
