package org

import (
	"context"

	"taskera.org/internal/auth"
	"taskera.org/internal/authz"
)

// DepartmentStore manages departments.
type DepartmentStore interface {
	Create(ctx context.Context, d *authz.Department) error
	Find(ctx context.Context, id string) (*authz.Department, error)
	List(ctx context.Context) ([]DepartmentSummary, error)
	Update(ctx context.Context, d *authz.Department) error
	Delete(ctx context.Context, id string) error
	CountUsers(ctx context.Context, id string) (int, error)
}

// PositionStore manages positions and their permission documents.
type PositionStore interface {
	Create(ctx context.Context, p *authz.Position) error
	Find(ctx context.Context, id string) (*authz.Position, error)
	ListByDepartment(ctx context.Context, departmentID string) ([]PositionSummary, error)
	Update(ctx context.Context, p *authz.Position) error
	Delete(ctx context.Context, id string) error
	CountUsers(ctx context.Context, id string) (int, error)
}

// UserDirectory is the admin-side view of user records.
type UserDirectory interface {
	Find(ctx context.Context, id string) (*auth.User, error)
	List(ctx context.Context, filter UserFilter, pred authz.Predicate) ([]*auth.User, error)
	UpdateStatus(ctx context.Context, userID string, status authz.AccountStatus) error
	Assign(ctx context.Context, userID, departmentID, positionID string, status authz.AccountStatus) error
	Delete(ctx context.Context, userID string) error
}

// AccessRequestStore manages access requests.
type AccessRequestStore interface {
	Create(ctx context.Context, r *AccessRequest) error
	Find(ctx context.Context, id string) (*AccessRequest, error)
	ListPending(ctx context.Context) ([]*AccessRequest, error)
	Update(ctx context.Context, r *AccessRequest) error
}

// Store bundles directory persistence.
type Store interface {
	Departments() DepartmentStore
	Positions() PositionStore
	Users() UserDirectory
	AccessRequests() AccessRequestStore
}
