package netx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProber_Online(t *testing.T) {
	t.Run("2xx is online", func(t *testing.T) {
		var method string
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			method = r.Method
			w.WriteHeader(http.StatusOK)
		}))
		defer ts.Close()

		assert.True(t, NewProber(ts.URL, time.Second).Online(context.Background()))
		assert.Equal(t, http.MethodHead, method)
	})

	t.Run("error status is still online", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer ts.Close()

		assert.True(t, NewProber(ts.URL, time.Second).Online(context.Background()))
	})

	t.Run("closed server is offline", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		url := ts.URL
		ts.Close()

		assert.False(t, NewProber(url, time.Second).Online(context.Background()))
	})

	t.Run("bad url is offline", func(t *testing.T) {
		assert.False(t, NewProber("://bad", time.Second).Online(context.Background()))
	})

	t.Run("timeout is offline", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
		}))
		defer ts.Close()

		assert.False(t, NewProber(ts.URL, 20*time.Millisecond).Online(context.Background()))
	})
}

func TestStatic(t *testing.T) {
	assert.True(t, Static(true).Online(context.Background()))
	assert.False(t, Static(false).Online(context.Background()))
}
