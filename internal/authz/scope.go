// SPDX-License-Identifier: MIT

// Package authz maps roles to scopes and holds the per-operation scope policy.
package authz

import (
	"sort"
	"strings"
)

// Scope defines a named permission for API access.
type Scope string

const (
	ScopeRead    Scope = "lims:read"
	ScopeWrite   Scope = "lims:write"
	ScopeApprove Scope = "lims:approve"
	ScopeAdmin   Scope = "lims:admin"
)

// Role names as persisted on users.
const (
	RoleAdmin      = "ADMIN"
	RoleAnalista   = "ANALISTA"
	RoleObservador = "OBSERVADOR"
)

// Set is a normalized scope set with implications applied.
type Set map[Scope]struct{}

// NewSet normalizes scopes and applies implications admin ⇒ approve ⇒ write ⇒ read.
func NewSet(scopes ...string) Set {
	set := Set{}
	for _, s := range scopes {
		s = strings.TrimSpace(strings.ToLower(s))
		if s == "" {
			continue
		}
		set[Scope(s)] = struct{}{}
	}
	applyImpliedScopes(set)
	return set
}

func applyImpliedScopes(set Set) {
	if _, ok := set[ScopeAdmin]; ok {
		set[ScopeApprove] = struct{}{}
	}
	if _, ok := set[ScopeApprove]; ok {
		set[ScopeWrite] = struct{}{}
	}
	if _, ok := set[ScopeWrite]; ok {
		set[ScopeRead] = struct{}{}
	}
}

// ScopesForRole returns the scopes granted to a role. Unknown roles get none.
func ScopesForRole(role string) Set {
	switch strings.ToUpper(role) {
	case RoleAdmin:
		return NewSet(string(ScopeAdmin))
	case RoleAnalista:
		return NewSet(string(ScopeWrite))
	case RoleObservador:
		return NewSet(string(ScopeRead))
	default:
		return Set{}
	}
}

// ValidRole reports whether role is one of the known roles.
func ValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleAnalista, RoleObservador:
		return true
	}
	return false
}

// Has reports whether the set contains scope.
func (s Set) Has(scope Scope) bool {
	_, ok := s[scope]
	return ok
}

// Allows reports whether the set satisfies at least one required scope.
func (s Set) Allows(required []Scope) bool {
	if len(required) == 0 {
		return true
	}
	for _, scope := range required {
		if s.Has(scope) {
			return true
		}
	}
	return false
}

// Strings returns the scopes sorted.
func (s Set) Strings() []string {
	out := make([]string, 0, len(s))
	for scope := range s {
		out = append(out, string(scope))
	}
	sort.Strings(out)
	return out
}
