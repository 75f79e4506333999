// SPDX-License-Identifier: MIT

package authz

import "context"

// Principal is the authenticated caller of a request.
type Principal struct {
	UserID   int64
	Username string
	Role     string
	Scopes   Set
}

// IsAdmin reports whether the caller holds the admin scope.
func (p Principal) IsAdmin() bool { return p.Scopes.Has(ScopeAdmin) }

// CanApprove reports whether the caller may approve analyses.
func (p Principal) CanApprove() bool { return p.Scopes.Has(ScopeApprove) }

type principalKey struct{}

// WithPrincipal stores the caller in ctx.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the caller stored in ctx.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

// System is the principal used by background jobs and the CLI.
func System() Principal {
	return Principal{Username: "system", Role: RoleAdmin, Scopes: ScopesForRole(RoleAdmin)}
}
