package authz

import "errors"

var (
	// ErrInvalidArgument indicates malformed or empty required input.
	ErrInvalidArgument = errors.New("authz: invalid argument")
	// ErrUnknownScope indicates an unrecognized scope qualifier. Unranked
	// scopes fail closed instead of being ordered arbitrarily.
	ErrUnknownScope = errors.New("authz: unknown scope")
	// ErrStoreUnavailable indicates a transient failure reaching the
	// assignment store or catalog. Retryable by the caller and never cached.
	ErrStoreUnavailable = errors.New("authz: store unavailable")
)
