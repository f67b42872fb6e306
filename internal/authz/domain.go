package authz

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ContextDefault is the context label used when the caller does not request
// a specialized overlay such as an auditor or emergency context.
const ContextDefault = "default"

// PermissionName identifies a permission in dotted <category>.<action> form,
// e.g. "documents.view". The scope qualifier travels separately on the grant.
type PermissionName string

// ParsePermissionName validates a dotted permission name as stored in the
// catalog. Accepted forms are <category>.<action> and
// <category>.<action>.<scope>; in the latter the trailing segment must be a
// known scope qualifier and is returned separately.
func ParsePermissionName(raw string) (PermissionName, Scope, error) {
	raw = strings.TrimSpace(raw)
	parts := strings.Split(raw, ".")
	for _, p := range parts {
		if p == "" {
			return "", "", fmt.Errorf("%w: malformed permission name %q", ErrInvalidArgument, raw)
		}
	}
	switch len(parts) {
	case 2:
		return PermissionName(raw), "", nil
	case 3:
		scope := Scope(parts[2])
		if !scope.Known() {
			return "", "", fmt.Errorf("%w: permission name %q carries unrecognized qualifier %q", ErrUnknownScope, raw, parts[2])
		}
		return PermissionName(parts[0] + "." + parts[1]), scope, nil
	default:
		return "", "", fmt.Errorf("%w: malformed permission name %q", ErrInvalidArgument, raw)
	}
}

// Role describes a catalog role definition. The catalog owns these records;
// this service only reads them.
type Role struct {
	ID             int64
	Name           string
	DisplayName    string
	HierarchyLevel int
	Departments    []string
	CombinableWith []int64
	IsSystem       bool
	Active         bool
}

// Assignment is one active role held by a user, with its validity window and
// department/process-area context. A user may hold any number of these at
// once; that plurality is what makes the permission model additive.
type Assignment struct {
	ID             int64
	UserID         uuid.UUID
	RoleID         int64
	RoleName       string
	Department     string
	ProcessArea    string
	Site           string
	EffectiveFrom  time.Time
	EffectiveUntil *time.Time
	GrantedBy      string
	Reason         string
}

// RoleGrant is a raw permission grant reported by the catalog for one role.
// Name is the full dotted catalog name; ScopeOverride, when non-empty,
// replaces the qualifier embedded in the name.
type RoleGrant struct {
	Name          string
	ScopeOverride string
	Inherited     bool
}

// EffectivePermission is the conflict-resolved outcome for one permission
// name: the winning scope and every role that contributed a grant.
type EffectivePermission struct {
	Permission   PermissionName `json:"permission"`
	Scope        Scope          `json:"scope"`
	Context      string         `json:"context"`
	Roles        []string       `json:"roles"`
	CalculatedAt time.Time      `json:"calculated_at"`
}

// Decision reports the outcome of a single permission check.
type Decision struct {
	UserID     uuid.UUID `json:"user_id"`
	Permission string    `json:"permission"`
	Scope      string    `json:"scope,omitempty"`
	Allowed    bool      `json:"allowed"`
	Reason     string    `json:"reason"`
	CheckedAt  time.Time `json:"checked_at"`
	CacheHit   bool      `json:"cache_hit"`
}
