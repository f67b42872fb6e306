package authz

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveScopePicksMostPermissive(t *testing.T) {
	scope, roles, err := ResolveScope([]ScopeCandidate{
		{Scope: ScopeAssignedOnly, Role: "operator"},
		{Scope: ScopeDepartment, Role: "supervisor"},
		{Scope: ScopeStation, Role: "inspector"},
	})
	require.NoError(t, err)
	require.Equal(t, ScopeDepartment, scope)
	require.Equal(t, []string{"supervisor"}, roles)
}

func TestResolveScopeTieRetainsAllContributors(t *testing.T) {
	scope, roles, err := ResolveScope([]ScopeCandidate{
		{Scope: ScopeDepartment, Role: "supervisor"},
		{Scope: ScopeDepartment, Role: "auditor"},
		{Scope: ScopeAssignedOnly, Role: "operator"},
	})
	require.NoError(t, err)
	require.Equal(t, ScopeDepartment, scope)
	require.Equal(t, []string{"auditor", "supervisor"}, roles)
}

func TestResolveScopeOrderIndependence(t *testing.T) {
	candidates := []ScopeCandidate{
		{Scope: ScopeAssignedOnly, Role: "operator"},
		{Scope: ScopeAll, Role: "admin"},
		{Scope: ScopeDepartment, Role: "supervisor"},
		{Scope: ScopeCrossDepartment, Role: "coordinator"},
		{Scope: ScopeProcessArea, Role: "planner"},
		{Scope: ScopeStation, Role: "inspector"},
	}
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 20; i++ {
		shuffled := append([]ScopeCandidate(nil), candidates...)
		rng.Shuffle(len(shuffled), func(a, b int) {
			shuffled[a], shuffled[b] = shuffled[b], shuffled[a]
		})
		scope, roles, err := ResolveScope(shuffled)
		require.NoError(t, err)
		require.Equal(t, ScopeAll, scope)
		require.Equal(t, []string{"admin"}, roles)
	}
}

func TestResolveScopeEmptyInputIsCallerError(t *testing.T) {
	_, _, err := ResolveScope(nil)
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestResolveScopeUnknownQualifierFailsClosed(t *testing.T) {
	_, _, err := ResolveScope([]ScopeCandidate{
		{Scope: ScopeAll, Role: "admin"},
		{Scope: Scope("galaxy"), Role: "operator"},
	})
	require.ErrorIs(t, err, ErrUnknownScope)
}

func TestResolveScopeDeduplicatesContributors(t *testing.T) {
	scope, roles, err := ResolveScope([]ScopeCandidate{
		{Scope: ScopeDepartment, Role: "supervisor"},
		{Scope: ScopeDepartment, Role: "supervisor"},
	})
	require.NoError(t, err)
	require.Equal(t, ScopeDepartment, scope)
	require.Equal(t, []string{"supervisor"}, roles)
}

func TestScopeCovers(t *testing.T) {
	require.True(t, ScopeAll.Covers(ScopeAssignedOnly))
	require.True(t, ScopeDepartment.Covers(ScopeDepartment))
	require.False(t, ScopeStation.Covers(ScopeDepartment))
	require.False(t, ScopeAssignedOnly.Covers(ScopeAll))
}

func TestParsePermissionName(t *testing.T) {
	name, scope, err := ParsePermissionName("documents.view.department")
	require.NoError(t, err)
	require.Equal(t, PermissionName("documents.view"), name)
	require.Equal(t, ScopeDepartment, scope)

	name, scope, err = ParsePermissionName("documents.approve")
	require.NoError(t, err)
	require.Equal(t, PermissionName("documents.approve"), name)
	require.Equal(t, Scope(""), scope)

	_, _, err = ParsePermissionName("documents")
	require.ErrorIs(t, err, ErrInvalidArgument)

	_, _, err = ParsePermissionName("documents..department")
	require.ErrorIs(t, err, ErrInvalidArgument)

	_, _, err = ParsePermissionName("documents.view.galaxy")
	require.ErrorIs(t, err, ErrUnknownScope)
}
