package authz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/archivum-dms/archivum/internal/observability"
)

// Service is the permission check facade, the only surface external code
// should call. Checks are cache-or-calculate; any unrecoverable error during
// a check results in denial, never in a silent grant.
type Service struct {
	calc    *Calculator
	cache   *Cache
	logger  *slog.Logger
	metrics *observability.AuthzMetrics
	group   singleflight.Group
}

// NewService constructs the facade. Metrics may be nil.
func NewService(calc *Calculator, cache *Cache, logger *slog.Logger, metrics *observability.AuthzMetrics) *Service {
	return &Service{calc: calc, cache: cache, logger: logger, metrics: metrics}
}

// effective returns the cached or freshly calculated set for (user, context)
// and whether the cache answered. Concurrent recalculations collapse via
// singleflight keyed by (user, context, generation); keying by generation
// keeps the collapse from ever sharing a pre-invalidation result with a
// post-invalidation caller.
func (s *Service) effective(ctx context.Context, userID uuid.UUID, contextLabel string) ([]EffectivePermission, bool, error) {
	if contextLabel == "" {
		contextLabel = ContextDefault
	}

	gen, err := s.cache.Generation(ctx, userID)
	if err != nil {
		// Cache backend trouble degrades to a direct calculation; a cache
		// outage must not deny users that still have valid roles.
		s.logger.Warn("permission cache unavailable, calculating directly", slog.Any("error", err))
		perms, err := s.calc.Calculate(ctx, userID, contextLabel)
		return perms, false, err
	}

	if perms, err := s.cache.Get(ctx, userID, contextLabel, gen); err == nil {
		s.metrics.CacheHit()
		return perms, true, nil
	} else if !errors.Is(err, ErrCacheMiss) {
		s.logger.Warn("permission cache read failed", slog.Any("error", err))
	}
	s.metrics.CacheMiss()

	key := fmt.Sprintf("%s:%s:g%d", userID, contextLabel, gen)
	resultChan := s.group.DoChan(key, func() (interface{}, error) {
		started := time.Now()
		perms, err := s.calc.Calculate(ctx, userID, contextLabel)
		if err != nil {
			return nil, err
		}
		s.metrics.CalculationObserved(time.Since(started))
		if err := s.cache.Put(ctx, userID, contextLabel, gen, perms); err != nil {
			s.logger.Warn("permission cache write failed", slog.Any("error", err))
		}
		return perms, nil
	})
	select {
	case <-ctx.Done():
		// A deadline hit while waiting on the calculation is retryable like
		// any other store outage.
		return nil, false, fmt.Errorf("%w: %v", ErrStoreUnavailable, ctx.Err())
	case res := <-resultChan:
		if res.Err != nil {
			return nil, false, res.Err
		}
		return res.Val.([]EffectivePermission), false, nil
	}
}

// HasPermission reports whether the user holds the named permission in the
// default context. An empty name and an absent permission are both false,
// never an error: deny by default.
func (s *Service) HasPermission(ctx context.Context, userID uuid.UUID, permission string) (bool, error) {
	permission = strings.TrimSpace(permission)
	if permission == "" {
		return false, nil
	}
	perms, _, err := s.effective(ctx, userID, ContextDefault)
	if err != nil {
		s.metrics.CheckObserved("error")
		return false, err
	}
	allowed := findPermission(perms, PermissionName(permission)) != nil
	s.metrics.CheckObserved(outcome(allowed))
	return allowed, nil
}

// HasPermissionWithScope additionally requires the held scope to be at least
// as permissive as requiredScope.
func (s *Service) HasPermissionWithScope(ctx context.Context, userID uuid.UUID, permission, requiredScope string) (bool, error) {
	permission = strings.TrimSpace(permission)
	if permission == "" {
		return false, nil
	}
	required := Scope(strings.TrimSpace(requiredScope))
	if !required.Known() {
		return false, fmt.Errorf("%w: %q", ErrUnknownScope, requiredScope)
	}
	perms, _, err := s.effective(ctx, userID, ContextDefault)
	if err != nil {
		s.metrics.CheckObserved("error")
		return false, err
	}
	held := findPermission(perms, PermissionName(permission))
	allowed := held != nil && held.Scope.Covers(required)
	s.metrics.CheckObserved(outcome(allowed))
	return allowed, nil
}

// GetEffectivePermissions exposes the full resolved set for diagnostics and
// UI enumeration. An empty context label means the default context.
func (s *Service) GetEffectivePermissions(ctx context.Context, userID uuid.UUID, contextLabel string) ([]EffectivePermission, error) {
	perms, _, err := s.effective(ctx, userID, contextLabel)
	return perms, err
}

// Check runs a permission check and wraps the outcome in a Decision for the
// HTTP surface. requiredScope may be empty for a plain membership check.
func (s *Service) Check(ctx context.Context, userID uuid.UUID, permission, requiredScope string) (Decision, error) {
	decision := Decision{
		UserID:     userID,
		Permission: permission,
		Scope:      requiredScope,
		CheckedAt:  time.Now().UTC(),
	}
	permission = strings.TrimSpace(permission)
	if permission == "" {
		decision.Reason = "empty permission name"
		s.metrics.CheckObserved("denied")
		return decision, nil
	}
	var required Scope
	if requiredScope != "" {
		required = Scope(strings.TrimSpace(requiredScope))
		if !required.Known() {
			return decision, fmt.Errorf("%w: %q", ErrUnknownScope, requiredScope)
		}
	}
	perms, cacheHit, err := s.effective(ctx, userID, ContextDefault)
	if err != nil {
		s.metrics.CheckObserved("error")
		return decision, err
	}
	decision.CacheHit = cacheHit
	held := findPermission(perms, PermissionName(permission))
	switch {
	case held == nil:
		decision.Reason = "permission not granted by any active role"
	case required != "" && !held.Scope.Covers(required):
		decision.Reason = fmt.Sprintf("held scope %q narrower than required %q", held.Scope, required)
	default:
		decision.Allowed = true
		decision.Reason = fmt.Sprintf("granted at scope %q by %s", held.Scope, strings.Join(held.Roles, ", "))
	}
	s.metrics.CheckObserved(outcome(decision.Allowed))
	return decision, nil
}

// InvalidateUserCache drops every cached context entry for the user. The
// role-administration write path must call this synchronously after every
// assignment mutation, once the mutation is durably committed.
func (s *Service) InvalidateUserCache(ctx context.Context, userID uuid.UUID) error {
	if err := s.cache.Invalidate(ctx, userID); err != nil {
		return err
	}
	s.metrics.InvalidationObserved()
	s.logger.Info("permission cache invalidated", slog.String("user", userID.String()))
	return nil
}

func findPermission(perms []EffectivePermission, name PermissionName) *EffectivePermission {
	for i := range perms {
		if perms[i].Permission == name {
			return &perms[i]
		}
	}
	return nil
}

func outcome(allowed bool) string {
	if allowed {
		return "allowed"
	}
	return "denied"
}
