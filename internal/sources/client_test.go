package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer srv.Close()

	var v any
	err := NewClient(time.Second, nil).GetJSON(context.Background(), srv.URL, &v)

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNotFound, se.Code)
}

func TestClientSendsUserAgent(t *testing.T) {
	var ua string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	var v map[string]bool
	require.NoError(t, NewClient(time.Second, NewHostLimiter(100, 10)).GetJSON(context.Background(), srv.URL, &v))
	assert.True(t, v["ok"])
	assert.Equal(t, userAgent, ua)
}

func TestClientHonoursRetryAfter(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Retry-After", "60")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(time.Second, NewHostLimiter(100, 10))
	var v any
	var se *StatusError
	require.ErrorAs(t, c.GetJSON(context.Background(), srv.URL, &v), &se)
	assert.Equal(t, http.StatusTooManyRequests, se.Code)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, c.GetJSON(ctx, srv.URL+"/again", &v), context.DeadlineExceeded)
	assert.Equal(t, int32(1), hits.Load())
}

func TestRetryAfter(t *testing.T) {
	assert.Equal(t, 30*time.Second, retryAfter("30"))
	assert.Equal(t, 5*time.Minute, retryAfter("3600"))
	assert.Zero(t, retryAfter(""))
	d := retryAfter(time.Now().Add(2 * time.Minute).UTC().Format(http.TimeFormat))
	assert.InDelta(t, float64(2*time.Minute), float64(d), float64(2*time.Second))
}
