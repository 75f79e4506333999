// SPDX-License-Identifier: MIT

package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func testConfig() Config {
	return Config{
		GlobalRate:  rate.Inf,
		GlobalBurst: 1,
		PerKeyRate:  rate.Every(time.Hour),
		PerKeyBurst: 2,
		IdleTTL:     time.Minute,
	}
}

func TestLimiter_PerKey(t *testing.T) {
	l := New("login", testConfig())
	assert.True(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.1"))
	assert.False(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.2"), "other clients keep their own bucket")
}

func TestLimiter_IdleCleanup(t *testing.T) {
	l := New("login", testConfig())
	now := time.Now()
	l.now = func() time.Time { return now }
	l.Allow("a")

	now = now.Add(2 * time.Minute)
	l.Allow("b")
	l.mu.Lock()
	_, stillThere := l.perKey["a"]
	l.mu.Unlock()
	assert.False(t, stillThere)
}

func TestMiddleware(t *testing.T) {
	l := New("recovery", testConfig())
	h := l.Middleware(nil, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusAccepted) }))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/auth/recovery/request", nil)
		req.RemoteAddr = "192.0.2.1:1234"
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{202, 202, 429}, codes)
}

func TestClientIP(t *testing.T) {
	trusted := ParseCIDRs([]string{"10.0.0.0/8", "bogus"})
	assert.Len(t, trusted, 1)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.1.2.3:5555"
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.1.2.3")
	assert.Equal(t, "203.0.113.9", ClientIP(req, trusted))

	req.RemoteAddr = "198.51.100.7:5555"
	assert.Equal(t, "198.51.100.7", ClientIP(req, trusted), "untrusted peers cannot spoof")

	req.RemoteAddr = "10.1.2.3:5555"
	req.Header.Del("X-Forwarded-For")
	req.Header.Set("X-Real-IP", "203.0.113.10")
	assert.Equal(t, "203.0.113.10", ClientIP(req, trusted))
}

func TestPerMinute(t *testing.T) {
	c := PerMinute(30)
	assert.InDelta(t, 0.5, float64(c.PerKeyRate), 1e-9)
	assert.Equal(t, 20, c.PerKeyBurst)
}
