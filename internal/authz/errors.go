package authz

import "errors"

var (
	// ErrForbidden is the single outward failure of every gate. Unknown
	// subjects, empty group memberships, missing policies and lookup errors
	// all collapse into it so callers cannot tell which check failed.
	ErrForbidden = errors.New("authz: forbidden")

	// ErrNotFound is returned by resolvers when a row is absent. Gates
	// normalize it to ErrForbidden before it leaves the package; surfacing
	// it would leak the existence of resources the caller cannot see.
	ErrNotFound = errors.New("authz: not found")
)
