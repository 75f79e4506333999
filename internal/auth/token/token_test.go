// SPDX-License-Identifier: MIT

package token

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seedlab/seedlab/internal/authz"
)

const secret = "0123456789abcdef0123456789abcdef"

func TestIssueAndParse(t *testing.T) {
	iss := NewIssuer(secret, "seedlab", 15*time.Minute)
	p := authz.Principal{UserID: 42, Username: "ana", Role: authz.RoleAnalista, Scopes: authz.ScopesForRole(authz.RoleAnalista)}

	raw, issued, err := iss.Issue(p)
	require.NoError(t, err)
	assert.NotEmpty(t, issued.ID)

	c, err := iss.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "42", c.Subject)
	assert.Equal(t, "ana", c.Username)

	got, err := c.Principal()
	require.NoError(t, err)
	assert.Equal(t, int64(42), got.UserID)
	assert.True(t, got.Scopes.Has(authz.ScopeWrite))
	assert.True(t, got.Scopes.Has(authz.ScopeRead))
	assert.False(t, got.Scopes.Has(authz.ScopeApprove))
}

func TestParseRejects(t *testing.T) {
	iss := NewIssuer(secret, "seedlab", time.Minute)
	p := authz.Principal{UserID: 1, Username: "x", Role: authz.RoleAdmin, Scopes: authz.ScopesForRole(authz.RoleAdmin)}
	raw, _, err := iss.Issue(p)
	require.NoError(t, err)

	other := NewIssuer("ffffffffffffffffffffffffffffffff", "seedlab", time.Minute)
	_, err = other.Parse(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)

	wrongIss := NewIssuer(secret, "someone-else", time.Minute)
	_, err = wrongIss.Parse(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)

	later := NewIssuer(secret, "seedlab", time.Minute)
	later.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = later.Parse(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "1", "iss": "seedlab"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = iss.Parse(none)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = Claims{}.Principal()
	assert.ErrorIs(t, err, ErrInvalidToken)
}
