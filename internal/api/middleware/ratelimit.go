// SPDX-License-Identifier: MIT

package middleware

import (
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"

	"github.com/seedlab/seedlab/internal/api/problem"
	"github.com/seedlab/seedlab/internal/audit"
	"github.com/seedlab/seedlab/internal/ratelimit"
)

// RateLimitConfig holds configuration for the sliding window limiter.
type RateLimitConfig struct {
	RequestLimit   int
	WindowSize     time.Duration
	TrustedProxies []*net.IPNet
	Audit          *audit.Logger
}

// RateLimit limits requests per client IP using httprate's sliding window counter.
// A zero or negative limit disables it.
func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	if cfg.RequestLimit <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = time.Minute
	}
	return httprate.Limit(
		cfg.RequestLimit,
		cfg.WindowSize,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			return ratelimit.ClientIP(r, cfg.TrustedProxies), nil
		}),
		httprate.WithLimitHandler(TooManyRequests(cfg.Audit, cfg.TrustedProxies, cfg.WindowSize)),
	)
}

// TooManyRequests writes a 429 problem with a Retry-After hint and audits the rejection.
func TooManyRequests(a *audit.Logger, trusted []*net.IPNet, retry time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a.RateLimitExceeded(ratelimit.ClientIP(r, trusted), r.URL.Path)
		w.Header().Set("Retry-After", strconv.Itoa(int(retry.Seconds())))
		problem.Write(w, r, http.StatusTooManyRequests, "system/rate-limit", "Too Many Requests",
			"RATE_LIMITED", "Too many requests. Please try again later.", nil)
	}
}
