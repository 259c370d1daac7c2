package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiter_PerKeyBuckets(t *testing.T) {
	now := time.Date(2024, 6, 17, 10, 0, 0, 0, time.UTC)
	l := NewLimiter(1, 2, time.Minute)
	l.now = func() time.Time { return now }

	ok, left := l.Allow("acme")
	assert.True(t, ok)
	assert.Equal(t, 1, left)
	ok, _ = l.Allow("acme")
	assert.True(t, ok)
	ok, left = l.Allow("acme")
	assert.False(t, ok)
	assert.Zero(t, left)

	ok, _ = l.Allow("globex")
	assert.True(t, ok, "tenants do not share a bucket")

	now = now.Add(time.Second)
	ok, _ = l.Allow("acme")
	assert.True(t, ok, "refilled after a second")
}

func TestLimiter_Cleanup(t *testing.T) {
	now := time.Date(2024, 6, 17, 10, 0, 0, 0, time.UTC)
	l := NewLimiter(1, 1, time.Minute)
	l.now = func() time.Time { return now }

	l.Allow("acme")
	now = now.Add(30 * time.Second)
	l.Allow("globex")
	assert.Equal(t, 2, l.Cleanup())

	now = now.Add(45 * time.Second)
	assert.Equal(t, 1, l.Cleanup())
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	l := NewLimiter(1, 1, time.Minute)
	r := gin.New()
	r.Use(l.Middleware())
	r.GET("/api/v1/subdomains/:subdomain/rules", func(c *gin.Context) { c.Status(http.StatusOK) })

	call := func(subdomain string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/subdomains/"+subdomain+"/rules", nil))
		return w
	}

	require.Equal(t, http.StatusOK, call("acme").Code)
	w := call("acme")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), "RATE_LIMITED")

	assert.Equal(t, http.StatusOK, call("globex").Code)
}
