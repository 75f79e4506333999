// SPDX-License-Identifier: MIT

package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractBearer(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/v1/lotes", nil)
	assert.Empty(t, ExtractBearer(r))

	r.Header.Set("Authorization", "Bearer abc.def ")
	assert.Equal(t, "abc.def", ExtractBearer(r))

	r.Header.Set("Authorization", "bearer lower")
	assert.Equal(t, "lower", ExtractBearer(r))

	r.Header.Set("Authorization", "Basic Zm9vOmJhcg==")
	assert.Empty(t, ExtractBearer(r))
}

func TestExtractRefresh_BodyWinsOverCookie(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", nil)
	r.AddCookie(&http.Cookie{Name: RefreshCookie, Value: "from-cookie"})

	assert.Equal(t, "from-body", ExtractRefresh(r, " from-body "))
	assert.Equal(t, "from-cookie", ExtractRefresh(r, ""))
}

func TestSetRefreshCookie(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
	w := httptest.NewRecorder()
	SetRefreshCookie(w, r, "tok", 60)

	cookies := w.Result().Cookies()
	if assert.Len(t, cookies, 1) {
		c := cookies[0]
		assert.Equal(t, RefreshCookie, c.Name)
		assert.True(t, c.HttpOnly)
		assert.False(t, c.Secure)
		assert.Equal(t, "/api/v1/auth", c.Path)
	}
}
