package authz

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed read adapters for the assignment
// store and the role/permission catalog. Both stores are owned and written
// by the external role-administration service; this repository only reads.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListActiveAssignments returns the user's assignments with status active
// whose validity window contains the current time, joined with the role
// name. Inactive roles do not contribute.
func (r *Repository) ListActiveAssignments(ctx context.Context, userID uuid.UUID) ([]Assignment, error) {
	const query = `
		SELECT a.id, a.user_id, a.role_id, r.name,
		       COALESCE(a.department, ''), COALESCE(a.process_area, ''), COALESCE(a.site, ''),
		       a.effective_from, a.effective_until,
		       COALESCE(a.granted_by, ''), COALESCE(a.reason, '')
		FROM user_role_assignments a
		JOIN roles r ON r.id = a.role_id
		WHERE a.user_id = $1
		  AND a.status = 'active'
		  AND r.is_active
		  AND a.effective_from <= now()
		  AND (a.effective_until IS NULL OR a.effective_until > now())
		ORDER BY a.id`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, storeErr("list active assignments", err)
	}
	defer rows.Close()
	var assignments []Assignment
	for rows.Next() {
		var a Assignment
		if err := rows.Scan(&a.ID, &a.UserID, &a.RoleID, &a.RoleName,
			&a.Department, &a.ProcessArea, &a.Site,
			&a.EffectiveFrom, &a.EffectiveUntil,
			&a.GrantedBy, &a.Reason); err != nil {
			return nil, storeErr("scan assignment", err)
		}
		assignments = append(assignments, a)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list active assignments", err)
	}
	return assignments, nil
}

// GetPermissionsForRole returns every grant the catalog records for the
// role, direct and hierarchy-inherited. Inherited grants are materialised by
// the catalog into role_permissions with is_inherited set.
func (r *Repository) GetPermissionsForRole(ctx context.Context, roleID int64) ([]RoleGrant, error) {
	const query = `
		SELECT p.name, COALESCE(rp.granted_scope, ''), rp.is_inherited
		FROM role_permissions rp
		JOIN permissions p ON p.id = rp.permission_id
		WHERE rp.role_id = $1
		ORDER BY p.name`
	rows, err := r.pool.Query(ctx, query, roleID)
	if err != nil {
		return nil, storeErr("get permissions for role", err)
	}
	defer rows.Close()
	var grants []RoleGrant
	for rows.Next() {
		var g RoleGrant
		if err := rows.Scan(&g.Name, &g.ScopeOverride, &g.Inherited); err != nil {
			return nil, storeErr("scan grant", err)
		}
		grants = append(grants, g)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("get permissions for role", err)
	}
	return grants, nil
}

// ListRecentlyExpired returns the distinct users with an active assignment
// whose effective_until lapsed within the lookback window. The expiry sweep
// invalidates their cached permissions.
func (r *Repository) ListRecentlyExpired(ctx context.Context, lookback time.Duration) ([]uuid.UUID, error) {
	const query = `
		SELECT DISTINCT a.user_id
		FROM user_role_assignments a
		WHERE a.status = 'active'
		  AND a.effective_until IS NOT NULL
		  AND a.effective_until <= now()
		  AND a.effective_until > now() - make_interval(secs => $1)`
	rows, err := r.pool.Query(ctx, query, lookback.Seconds())
	if err != nil {
		return nil, storeErr("list recently expired", err)
	}
	defer rows.Close()
	var users []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, storeErr("scan user id", err)
		}
		users = append(users, id)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list recently expired", err)
	}
	return users, nil
}

// storeErr classifies a collaborator failure as retryable. Postgres errors
// keep their SQLSTATE in the message for operators.
func storeErr(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return fmt.Errorf("%w: %s: %s (SQLSTATE %s)", ErrStoreUnavailable, op, pgErr.Message, pgErr.Code)
	}
	return fmt.Errorf("%w: %s: %v", ErrStoreUnavailable, op, err)
}
