// SPDX-License-Identifier: MIT

package authz

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScopesForRole(t *testing.T) {
	admin := ScopesForRole(RoleAdmin)
	assert.Equal(t, []string{"lims:admin", "lims:approve", "lims:read", "lims:write"}, admin.Strings())

	analista := ScopesForRole("analista")
	assert.True(t, analista.Has(ScopeWrite))
	assert.True(t, analista.Has(ScopeRead))
	assert.False(t, analista.Has(ScopeApprove))

	obs := ScopesForRole(RoleObservador)
	assert.Equal(t, []string{"lims:read"}, obs.Strings())

	assert.Empty(t, ScopesForRole("ROOT"))
}

func TestSetAllows(t *testing.T) {
	s := NewSet(" LIMS:WRITE ")
	assert.True(t, s.Allows(nil))
	assert.True(t, s.Allows([]Scope{ScopeRead}))
	assert.True(t, s.Allows([]Scope{ScopeAdmin, ScopeWrite}))
	assert.False(t, s.Allows([]Scope{ScopeApprove}))
}

func TestPrincipalContext(t *testing.T) {
	_, ok := PrincipalFrom(context.Background())
	assert.False(t, ok)

	ctx := WithPrincipal(context.Background(), Principal{UserID: 3, Role: RoleAnalista, Scopes: ScopesForRole(RoleAnalista)})
	p, ok := PrincipalFrom(ctx)
	require.True(t, ok)
	assert.Equal(t, int64(3), p.UserID)
	assert.False(t, p.IsAdmin())
	assert.False(t, p.CanApprove())
	assert.True(t, System().IsAdmin())
}

func TestPolicyEveryOperationScoped(t *testing.T) {
	for _, op := range Operations() {
		scopes, ok := RequiredScopes(op)
		require.True(t, ok)
		assert.NotEmpty(t, scopes, op)
	}
	_, ok := RequiredScopes("Nope")
	assert.False(t, ok)
}
