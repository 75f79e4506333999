// SPDX-License-Identifier: MIT

package middleware

import (
	"net"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/seedlab/seedlab/internal/audit"
	"github.com/seedlab/seedlab/internal/log"
)

// StackConfig configures the canonical HTTP ingress middleware stack.
type StackConfig struct {
	AllowedOrigins []string
	EnableCSRF     bool
	TrustedProxies []*net.IPNet
	CSP            string

	EnableMetrics  bool
	TracingService string // empty disables tracing
	EnableLogging  bool

	RateLimitRPM int // 0 disables the global limiter
	Audit        *audit.Logger
}

// NewRouter constructs a chi router with the canonical middleware stack applied.
func NewRouter(cfg StackConfig) *chi.Mux {
	r := chi.NewRouter()
	ApplyStack(r, cfg)
	return r
}

// ApplyStack applies the canonical middleware stack to r.
func ApplyStack(r chi.Router, cfg StackConfig) {
	// 1. Recoverer (outermost safety net)
	r.Use(Recoverer)
	// 2. Correlation and caller identity
	r.Use(RequestID)
	r.Use(Client(cfg.TrustedProxies))
	// 3. CORS before CSRF so preflights are answered
	r.Use(CORS(cfg.AllowedOrigins))
	if cfg.EnableCSRF {
		r.Use(CSRFProtection(cfg.AllowedOrigins))
	}
	// 4. Security headers
	r.Use(SecurityHeaders(cfg.CSP, cfg.TrustedProxies))
	// 5. Observability
	if cfg.EnableMetrics {
		r.Use(Metrics())
	}
	if cfg.TracingService != "" {
		r.Use(OTelHTTP(cfg.TracingService))
	}
	if cfg.EnableLogging {
		r.Use(log.Middleware())
	}
	// 6. Global rate limit
	r.Use(RateLimit(RateLimitConfig{
		RequestLimit:   cfg.RateLimitRPM,
		WindowSize:     time.Minute,
		TrustedProxies: cfg.TrustedProxies,
		Audit:          cfg.Audit,
	}))
}
