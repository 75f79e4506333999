// SPDX-License-Identifier: MIT

// Package ratelimit provides keyed token-bucket limiters for credential endpoints.
package ratelimit

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/time/rate"
)

var (
	rateLimitExceeded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "seedlab",
			Name:      "ratelimit_exceeded_total",
			Help:      "Total rate limit rejections",
		},
		[]string{"limit_type", "scope"},
	)
)

// Config holds rate limiting configuration
type Config struct {
	// Global limits across all keys
	GlobalRate  rate.Limit // requests per second
	GlobalBurst int        // max burst size

	// Per-key limits (client IP)
	PerKeyRate  rate.Limit
	PerKeyBurst int

	// Idle keys are dropped after this long
	IdleTTL time.Duration
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		GlobalRate:  50,
		GlobalBurst: 100,
		PerKeyRate:  rate.Every(2 * time.Second),
		PerKeyBurst: 10,
		IdleTTL:     10 * time.Minute,
	}
}

// PerMinute builds a config allowing rpm requests per minute per key.
func PerMinute(rpm int) Config {
	cfg := DefaultConfig()
	if rpm <= 0 {
		return cfg
	}
	cfg.PerKeyRate = rate.Limit(float64(rpm) / 60.0)
	cfg.PerKeyBurst = rpm
	if cfg.PerKeyBurst > 20 {
		cfg.PerKeyBurst = 20
	}
	return cfg
}

type keyed struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter manages rate limiting keyed by client
type Limiter struct {
	config Config
	scope  string

	global *rate.Limiter
	perKey map[string]*keyed
	mu     sync.Mutex

	lastCleanup time.Time
	now         func() time.Time
}

// New creates a new rate limiter; scope labels the rejection metric.
func New(scope string, config Config) *Limiter {
	return &Limiter{
		config:      config,
		scope:       scope,
		global:      rate.NewLimiter(config.GlobalRate, config.GlobalBurst),
		perKey:      make(map[string]*keyed),
		lastCleanup: time.Now(),
		now:         time.Now,
	}
}

// Allow checks if a request from key is allowed under rate limits
func (l *Limiter) Allow(key string) bool {
	if !l.global.Allow() {
		rateLimitExceeded.WithLabelValues("global", l.scope).Inc()
		return false
	}

	l.mu.Lock()
	now := l.now()
	k, ok := l.perKey[key]
	if !ok {
		k = &keyed{limiter: rate.NewLimiter(l.config.PerKeyRate, l.config.PerKeyBurst)}
		l.perKey[key] = k
	}
	k.lastSeen = now
	allowed := k.limiter.AllowN(now, 1)
	l.cleanupLocked(now)
	l.mu.Unlock()

	if !allowed {
		rateLimitExceeded.WithLabelValues("per_ip", l.scope).Inc()
	}
	return allowed
}

// cleanupLocked drops limiters idle for longer than IdleTTL.
func (l *Limiter) cleanupLocked(now time.Time) {
	if l.config.IdleTTL <= 0 || now.Sub(l.lastCleanup) < l.config.IdleTTL {
		return
	}
	for key, k := range l.perKey {
		if now.Sub(k.lastSeen) > l.config.IdleTTL {
			delete(l.perKey, key)
		}
	}
	l.lastCleanup = now
}

// Middleware rejects over-limit requests with 429 using onReject.
func (l *Limiter) Middleware(trusted []*net.IPNet, onReject http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Allow(ClientIP(r, trusted)) {
				w.Header().Set("Retry-After", "60")
				onReject(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP extracts the client IP. Forwarding headers are honoured only
// when the direct peer is inside one of the trusted proxy networks.
func ClientIP(r *http.Request, trusted []*net.IPNet) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if !isTrusted(host, trusted) {
		return host
	}

	// X-Forwarded-For can contain multiple IPs: "client, proxy1, proxy2"
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	return host
}

func isTrusted(host string, trusted []*net.IPNet) bool {
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	for _, n := range trusted {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// ParseCIDRs parses proxy networks, skipping invalid entries.
func ParseCIDRs(cidrs []string) []*net.IPNet {
	var out []*net.IPNet
	for _, c := range cidrs {
		if _, n, err := net.ParseCIDR(strings.TrimSpace(c)); err == nil {
			out = append(out, n)
		}
	}
	return out
}
