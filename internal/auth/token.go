// SPDX-License-Identifier: MIT

package auth

import (
	"net/http"
	"strings"
)

// RefreshCookie carries the refresh token for browser clients.
const RefreshCookie = "seedlab_refresh"

// ExtractBearer returns the access token from the Authorization header.
func ExtractBearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// ExtractRefresh returns the refresh token from the request body value or,
// failing that, the refresh cookie.
func ExtractRefresh(r *http.Request, fromBody string) string {
	if t := strings.TrimSpace(fromBody); t != "" {
		return t
	}
	if c, err := r.Cookie(RefreshCookie); err == nil {
		return c.Value
	}
	return ""
}

// SetRefreshCookie stores the refresh token in an HttpOnly cookie scoped to /api/v1/auth.
func SetRefreshCookie(w http.ResponseWriter, r *http.Request, token string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookie,
		Value:    token,
		Path:     "/api/v1/auth",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https"),
		SameSite: http.SameSiteStrictMode,
	})
}

// ClearRefreshCookie removes the refresh cookie.
func ClearRefreshCookie(w http.ResponseWriter, r *http.Request) {
	SetRefreshCookie(w, r, "", -1)
}
