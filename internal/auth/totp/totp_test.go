// SPDX-License-Identifier: MIT

package totp

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateEnrollment(t *testing.T) {
	e, err := Generate("SeedLab", "ana@lab.test")
	require.NoError(t, err)
	assert.NotEmpty(t, e.Secret)
	assert.Contains(t, e.URI, "otpauth://totp/")
	assert.Contains(t, e.URI, "issuer=SeedLab")

	png, err := base64.StdEncoding.DecodeString(e.QRCode)
	require.NoError(t, err)
	assert.Equal(t, []byte("\x89PNG"), png[:4])
}

func TestValidateWindow(t *testing.T) {
	e, err := Generate("SeedLab", "ana")
	require.NoError(t, err)
	now := time.Date(2024, 5, 10, 12, 0, 15, 0, time.UTC)

	code, err := Code(e.Secret, now)
	require.NoError(t, err)
	assert.True(t, Validate(code, e.Secret, now))
	assert.True(t, Validate(" "+code+" ", e.Secret, now))
	assert.True(t, Validate(code, e.Secret, now.Add(Period*time.Second)), "one step later")
	assert.True(t, Validate(code, e.Secret, now.Add(-Period*time.Second)), "one step earlier")
	assert.False(t, Validate(code, e.Secret, now.Add(3*Period*time.Second)))
	assert.False(t, Validate("12345", e.Secret, now))
	assert.False(t, Validate(code, "", now))
}
