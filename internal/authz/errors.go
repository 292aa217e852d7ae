package authz

import "errors"

var (
	// ErrUnauthenticated reports a missing principal. This is an
	// authentication failure for the boundary to handle, not a denial.
	ErrUnauthenticated = errors.New("authz: unauthenticated")

	// ErrInvalidPermissionQuery reports a (group, action) pair outside the
	// closed vocabulary. It is a programming error and must never be
	// interpreted as either allow or deny.
	ErrInvalidPermissionQuery = errors.New("authz: invalid permission query")

	// ErrInvalidInput reports malformed caller input.
	ErrInvalidInput = errors.New("authz: invalid input")
)
