// SPDX-License-Identifier: MIT

package problem

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seedlab/seedlab/internal/log"
)

func TestWrite(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/v1/lotes/9", nil)
	r = r.WithContext(log.ContextWithRequestID(r.Context(), "req-1"))
	w := httptest.NewRecorder()

	Write(w, r, http.StatusNotFound, "lots/not_found", "Not Found", "NOT_FOUND", "lote 9 not found",
		map[string]any{"fields": map[string]string{"id": "unknown"}, "status": 200})

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
	assert.Equal(t, "req-1", w.Header().Get(HeaderRequestID))

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "lots/not_found", body["type"])
	assert.Equal(t, "NOT_FOUND", body["code"])
	assert.Equal(t, float64(404), body["status"], "reserved keys cannot be overridden")
	assert.Equal(t, "/api/v1/lotes/9", body["instance"])
	assert.Equal(t, "req-1", body["requestId"])
	assert.Contains(t, body, "fields")
}
