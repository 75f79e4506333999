// SPDX-License-Identifier: MIT

package middleware

import (
	"net"
	"net/http"

	"github.com/google/uuid"

	"github.com/seedlab/seedlab/internal/api/problem"
	"github.com/seedlab/seedlab/internal/log"
	"github.com/seedlab/seedlab/internal/ratelimit"
)

// RequestID adds a unique ID to every request.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get(problem.HeaderRequestID)
		if reqID == "" || len(reqID) > 128 {
			reqID = uuid.New().String()
		}
		w.Header().Set(problem.HeaderRequestID, reqID)
		ctx := log.ContextWithRequestID(r.Context(), reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Client records the caller address and user agent for audit and device records.
func Client(trusted []*net.IPNet) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := log.ContextWithClient(r.Context(), log.Client{
				IP:        ratelimit.ClientIP(r, trusted),
				UserAgent: r.UserAgent(),
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
