package authz

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu          sync.Mutex
	assignments map[uuid.UUID][]Assignment
	grants      map[int64][]RoleGrant
	listCalls   int
	listErr     error
	grantErr    error

	// listGate, when set, blocks ListActiveAssignments until closed.
	listGate chan struct{}
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		assignments: make(map[uuid.UUID][]Assignment),
		grants:      make(map[int64][]RoleGrant),
	}
}

func (f *fakeStore) ListActiveAssignments(ctx context.Context, userID uuid.UUID) ([]Assignment, error) {
	if f.listGate != nil {
		<-f.listGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]Assignment(nil), f.assignments[userID]...), nil
}

func (f *fakeStore) GetPermissionsForRole(ctx context.Context, roleID int64) ([]RoleGrant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.grantErr != nil {
		return nil, f.grantErr
	}
	return append([]RoleGrant(nil), f.grants[roleID]...), nil
}

func (f *fakeStore) assign(userID uuid.UUID, roleID int64, roleName string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.assignments[userID] = append(f.assignments[userID], Assignment{
		ID:            int64(len(f.assignments[userID]) + 1),
		UserID:        userID,
		RoleID:        roleID,
		RoleName:      roleName,
		EffectiveFrom: time.Now().Add(-time.Hour),
	})
}

func (f *fakeStore) revoke(userID uuid.UUID, roleID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.assignments[userID][:0]
	for _, a := range f.assignments[userID] {
		if a.RoleID != roleID {
			kept = append(kept, a)
		}
	}
	f.assignments[userID] = kept
}

func (f *fakeStore) grant(roleID int64, name string, override string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.grants[roleID] = append(f.grants[roleID], RoleGrant{Name: name, ScopeOverride: override})
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

const (
	roleOperator   = int64(1)
	roleSupervisor = int64(2)
	roleAuditor    = int64(3)
)

func TestCalculateEmptyAssignmentsYieldsEmptySet(t *testing.T) {
	store := newFakeStore()
	calc := NewCalculator(store, store, testLogger())

	perms, err := calc.Calculate(context.Background(), uuid.New(), ContextDefault)
	require.NoError(t, err)
	require.Empty(t, perms)
}

func TestCalculateResolvesScopeConflicts(t *testing.T) {
	store := newFakeStore()
	store.grant(roleOperator, "documents.view.assigned_only", "")
	store.grant(roleSupervisor, "documents.view.department", "")
	store.grant(roleSupervisor, "documents.approve.department", "")

	user := uuid.New()
	store.assign(user, roleOperator, "operator")
	store.assign(user, roleSupervisor, "supervisor")

	calc := NewCalculator(store, store, testLogger())
	perms, err := calc.Calculate(context.Background(), user, ContextDefault)
	require.NoError(t, err)
	require.Len(t, perms, 2)

	byName := make(map[PermissionName]EffectivePermission, len(perms))
	for _, p := range perms {
		byName[p.Permission] = p
	}
	view := byName["documents.view"]
	require.Equal(t, ScopeDepartment, view.Scope)
	require.Equal(t, []string{"supervisor"}, view.Roles)
	require.Equal(t, ContextDefault, view.Context)

	approve := byName["documents.approve"]
	require.Equal(t, ScopeDepartment, approve.Scope)
	require.Equal(t, []string{"supervisor"}, approve.Roles)
}

func TestCalculateIsAdditive(t *testing.T) {
	store := newFakeStore()
	store.grant(roleOperator, "documents.view.assigned_only", "")
	store.grant(roleSupervisor, "documents.approve.department", "")
	store.grant(roleAuditor, "documents.view.cross_department", "")

	calc := NewCalculator(store, store, testLogger())

	single := uuid.New()
	store.assign(single, roleOperator, "operator")
	base, err := calc.Calculate(context.Background(), single, ContextDefault)
	require.NoError(t, err)

	combined := uuid.New()
	store.assign(combined, roleOperator, "operator")
	store.assign(combined, roleSupervisor, "supervisor")
	store.assign(combined, roleAuditor, "auditor")
	all, err := calc.Calculate(context.Background(), combined, ContextDefault)
	require.NoError(t, err)

	// Adding roles never removes a permission and never narrows a scope.
	held := make(map[PermissionName]Scope, len(all))
	for _, p := range all {
		held[p.Permission] = p.Scope
	}
	for _, p := range base {
		scope, ok := held[p.Permission]
		require.True(t, ok, "permission %s lost by adding roles", p.Permission)
		require.True(t, scope.Covers(p.Scope))
	}
	require.Equal(t, ScopeCrossDepartment, held["documents.view"])
	require.Equal(t, ScopeDepartment, held["documents.approve"])
}

func TestCalculateScopeOverrideWins(t *testing.T) {
	store := newFakeStore()
	store.grant(roleOperator, "documents.view.assigned_only", "department")

	user := uuid.New()
	store.assign(user, roleOperator, "operator")

	calc := NewCalculator(store, store, testLogger())
	perms, err := calc.Calculate(context.Background(), user, ContextDefault)
	require.NoError(t, err)
	require.Len(t, perms, 1)
	require.Equal(t, ScopeDepartment, perms[0].Scope)
}

func TestCalculateSkipsMalformedGrants(t *testing.T) {
	store := newFakeStore()
	store.grant(roleOperator, "documents.view.department", "")
	store.grant(roleOperator, "broken", "")
	store.grant(roleOperator, "documents.edit.galaxy", "")
	store.grant(roleOperator, "documents.archive.station", "nebula")

	user := uuid.New()
	store.assign(user, roleOperator, "operator")

	calc := NewCalculator(store, store, testLogger())
	perms, err := calc.Calculate(context.Background(), user, ContextDefault)
	require.NoError(t, err)
	require.Len(t, perms, 1)
	require.Equal(t, PermissionName("documents.view"), perms[0].Permission)
}

func TestCalculatePropagatesStoreErrors(t *testing.T) {
	store := newFakeStore()
	store.listErr = storeErr("list active assignments", context.DeadlineExceeded)

	calc := NewCalculator(store, store, testLogger())
	_, err := calc.Calculate(context.Background(), uuid.New(), ContextDefault)
	require.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestCalculateThreadsContextLabel(t *testing.T) {
	store := newFakeStore()
	store.grant(roleAuditor, "documents.view.all", "")

	user := uuid.New()
	store.assign(user, roleAuditor, "auditor")

	calc := NewCalculator(store, store, testLogger())
	perms, err := calc.Calculate(context.Background(), user, "auditor")
	require.NoError(t, err)
	require.Len(t, perms, 1)
	require.Equal(t, "auditor", perms[0].Context)
}
