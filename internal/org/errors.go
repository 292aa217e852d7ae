package org

import "errors"

var (
	ErrNotFound      = errors.New("org: not found")
	ErrAlreadyExists = errors.New("org: already exists")
	ErrInvalidInput  = errors.New("org: invalid input")

	// ErrDepartmentInUse blocks deleting a department with assigned users.
	ErrDepartmentInUse = errors.New("org: department has assigned users")
	// ErrPositionInUse blocks deleting a position with assigned users.
	ErrPositionInUse = errors.New("org: position has assigned users")
	// ErrPositionMismatch reports a position that does not belong to the
	// requested department.
	ErrPositionMismatch = errors.New("org: position does not belong to department")
)
