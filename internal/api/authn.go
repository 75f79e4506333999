// SPDX-License-Identifier: MIT

package api

import (
	"net/http"
	"strings"

	"github.com/seedlab/seedlab/internal/api/problem"
	"github.com/seedlab/seedlab/internal/auth"
	"github.com/seedlab/seedlab/internal/authz"
	"github.com/seedlab/seedlab/internal/log"
)

// authenticate verifies the bearer access token and stores the principal in
// the request context. allowQuery also accepts ?access_token=, which
// EventSource clients need because they cannot set headers.
func (s *Server) authenticate(allowQuery bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := auth.ExtractBearer(r)
			if raw == "" && allowQuery {
				raw = strings.TrimSpace(r.URL.Query().Get("access_token"))
			}
			logger := log.WithComponentFromContext(r.Context(), "authn")
			if raw == "" {
				logger.Debug().Str(log.FieldEvent, "auth.missing_token").Msg("access token missing")
				writeUnauthorized(w, r, "Missing bearer token")
				return
			}
			claims, err := s.auth.Issuer().Parse(raw)
			if err != nil {
				logger.Info().Err(err).Str(log.FieldEvent, "auth.invalid_token").Msg("access token rejected")
				writeUnauthorized(w, r, "Invalid or expired access token")
				return
			}
			p, err := claims.Principal()
			if err != nil {
				writeUnauthorized(w, r, "Invalid or expired access token")
				return
			}
			ctx := authz.WithPrincipal(r.Context(), p)
			ctx = log.ContextWithUserID(ctx, p.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// op enforces the scopes registered for operationID before calling h.
// Unregistered operations panic at route construction.
func (s *Server) op(operationID string, h http.HandlerFunc) http.HandlerFunc {
	required, ok := authz.RequiredScopes(operationID)
	if !ok {
		panic("api: operation " + operationID + " has no scope policy")
	}
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := authz.PrincipalFrom(r.Context())
		if !ok {
			writeUnauthorized(w, r, "Authentication required")
			return
		}
		if !p.Scopes.Allows(required) {
			s.audit.Forbidden(r.Context(), p.Username, operationID)
			problem.Write(w, r, http.StatusForbidden, "auth/forbidden", "Forbidden", "FORBIDDEN",
				"Insufficient scope for "+operationID, nil)
			return
		}
		h(w, r)
	}
}

func writeUnauthorized(w http.ResponseWriter, r *http.Request, detail string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="seedlab"`)
	problem.Write(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized", "UNAUTHORIZED", detail, nil)
}

// principal returns the authenticated caller; op guarantees one is present.
func principal(r *http.Request) authz.Principal {
	p, _ := authz.PrincipalFrom(r.Context())
	return p
}
