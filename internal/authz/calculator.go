package authz

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// AssignmentStore lists the role assignments currently active for a user.
// The store owns assignment writes; this service only reads.
type AssignmentStore interface {
	ListActiveAssignments(ctx context.Context, userID uuid.UUID) ([]Assignment, error)
}

// Catalog reports the permissions granted to a role, direct and inherited.
type Catalog interface {
	GetPermissionsForRole(ctx context.Context, roleID int64) ([]RoleGrant, error)
}

// Calculator produces the effective permission set for one user in one
// context by taking the union of grants across every active assignment and
// resolving per-permission scope conflicts.
type Calculator struct {
	assignments AssignmentStore
	catalog     Catalog
	logger      *slog.Logger
}

// NewCalculator constructs a Calculator.
func NewCalculator(assignments AssignmentStore, catalog Catalog, logger *slog.Logger) *Calculator {
	return &Calculator{assignments: assignments, catalog: catalog, logger: logger}
}

// Calculate resolves the full effective permission set for the user under
// the given context label. A user with no active assignments yields an empty
// set, not an error. Collaborator failures propagate unmodified so the
// caller never caches a failure as "no permissions".
func (c *Calculator) Calculate(ctx context.Context, userID uuid.UUID, contextLabel string) ([]EffectivePermission, error) {
	if contextLabel == "" {
		contextLabel = ContextDefault
	}
	active, err := c.assignments.ListActiveAssignments(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(active) == 0 {
		return []EffectivePermission{}, nil
	}

	// Union of grants across all assignments, grouped by permission name.
	// Additional roles only ever add names or widen scopes.
	order := make([]PermissionName, 0, 16)
	grouped := make(map[PermissionName][]ScopeCandidate, 16)
	for _, assignment := range active {
		grants, err := c.catalog.GetPermissionsForRole(ctx, assignment.RoleID)
		if err != nil {
			return nil, err
		}
		for _, grant := range grants {
			name, scope, ok := c.normalizeGrant(assignment.RoleName, grant)
			if !ok {
				continue
			}
			if _, exists := grouped[name]; !exists {
				order = append(order, name)
			}
			grouped[name] = append(grouped[name], ScopeCandidate{Scope: scope, Role: assignment.RoleName})
		}
	}

	now := time.Now().UTC()
	result := make([]EffectivePermission, 0, len(order))
	for _, name := range order {
		candidates := grouped[name]
		scope, roles, err := ResolveScope(candidates)
		if err != nil {
			// Candidates were validated during normalization; a failure here
			// is a bad record that slipped through. Skip, do not abort.
			c.logger.Warn("skipping unresolvable permission",
				slog.String("permission", string(name)), slog.Any("error", err))
			continue
		}
		result = append(result, EffectivePermission{
			Permission:   name,
			Scope:        scope,
			Context:      contextLabel,
			Roles:        roles,
			CalculatedAt: now,
		})
	}
	return result, nil
}

// normalizeGrant parses a raw catalog grant into a base permission name and
// an effective scope. Malformed records are logged and skipped so one bad
// row never aborts the whole calculation.
func (c *Calculator) normalizeGrant(roleName string, grant RoleGrant) (PermissionName, Scope, bool) {
	name, embedded, err := ParsePermissionName(grant.Name)
	if err != nil {
		c.logger.Warn("skipping malformed permission grant",
			slog.String("role", roleName),
			slog.String("permission", grant.Name),
			slog.Any("error", err))
		return "", "", false
	}
	scope := embedded
	if grant.ScopeOverride != "" {
		scope = Scope(grant.ScopeOverride)
	}
	if !scope.Known() {
		c.logger.Warn("skipping grant with unknown scope",
			slog.String("role", roleName),
			slog.String("permission", grant.Name),
			slog.String("scope", string(scope)))
		return "", "", false
	}
	return name, scope, true
}
