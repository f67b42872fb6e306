package authz

import (
	"fmt"
	"sort"
)

// Scope qualifies the breadth of a permission grant.
type Scope string

const (
	ScopeAll             Scope = "all"
	ScopeCrossDepartment Scope = "cross_department"
	ScopeDepartment      Scope = "department"
	ScopeProcessArea     Scope = "process_area"
	ScopeStation         Scope = "station"
	ScopeAssignedOnly    Scope = "assigned_only"
)

// scopeRank orders scopes by permissiveness. Higher rank wins.
var scopeRank = map[Scope]int{
	ScopeAll:             6,
	ScopeCrossDepartment: 5,
	ScopeDepartment:      4,
	ScopeProcessArea:     3,
	ScopeStation:         2,
	ScopeAssignedOnly:    1,
}

// Known reports whether the scope qualifier is one this service ranks.
func (s Scope) Known() bool {
	_, ok := scopeRank[s]
	return ok
}

// Covers reports whether s is at least as permissive as other. Both scopes
// must be known; callers validate at the boundary.
func (s Scope) Covers(other Scope) bool {
	return scopeRank[s] >= scopeRank[other]
}

// ScopeCandidate is one grant of a permission: the scope it was granted at
// and the role that granted it.
type ScopeCandidate struct {
	Scope Scope
	Role  string
}

// ResolveScope picks the single most permissive scope among candidates that
// all name the same permission. Roles tied at the winning scope are all
// retained as contributors, sorted for determinism. The result does not
// depend on candidate order.
func ResolveScope(candidates []ScopeCandidate) (Scope, []string, error) {
	if len(candidates) == 0 {
		return "", nil, fmt.Errorf("%w: empty scope candidate set", ErrInvalidArgument)
	}
	var winner Scope
	best := 0
	for _, c := range candidates {
		rank, ok := scopeRank[c.Scope]
		if !ok {
			return "", nil, fmt.Errorf("%w: %q", ErrUnknownScope, c.Scope)
		}
		if rank > best {
			best = rank
			winner = c.Scope
		}
	}
	seen := make(map[string]struct{}, len(candidates))
	roles := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if c.Scope != winner {
			continue
		}
		if _, dup := seen[c.Role]; dup {
			continue
		}
		seen[c.Role] = struct{}{}
		roles = append(roles, c.Role)
	}
	sort.Strings(roles)
	return winner, roles, nil
}
