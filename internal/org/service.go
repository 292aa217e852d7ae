package org

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"taskera.org/internal/audit"
	"taskera.org/internal/auth"
	"taskera.org/internal/authz"
	"taskera.org/internal/ids"
	"taskera.org/internal/obs"
)

// Service implements directory administration: departments, positions,
// account lifecycle and assignment. Every mutation runs through the
// authorization engine with the caller's principal; denials come back as
// *authz.DeniedError so the boundary can map them to specific messages.
type Service struct {
	store Store
	now   func() time.Time
}

// NewService constructs a Service.
func NewService(store Store) (*Service, error) {
	if store == nil {
		return nil, errors.New("org store is required")
	}
	return &Service{store: store, now: time.Now}, nil
}

// guard runs an instance authorization check and records the decision.
func guard(p authz.Principal, group authz.Group, action authz.Action, res *authz.Resource) error {
	d, err := authz.Authorize(p, group, action, res)
	if err != nil {
		return err
	}
	outcome := "allow"
	if !d.Allowed {
		outcome = string(d.Reason)
	}
	obs.ObserveDecision(string(group), string(action), outcome)
	if !d.Allowed {
		return authz.Denied(d)
	}
	return nil
}

// Departments ---------------------------------------------------------------

// CreateDepartment creates a department. Requires department.manage.
func (s *Service) CreateDepartment(ctx context.Context, actor authz.Principal, name, description string) (*authz.Department, error) {
	if err := guard(actor, authz.GroupDepartment, authz.ActionManage, nil); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: department name is required", ErrInvalidInput)
	}
	dept := &authz.Department{
		ID:          ids.New(),
		Name:        name,
		Description: strings.TrimSpace(description),
	}
	if err := s.store.Departments().Create(ctx, dept); err != nil {
		return nil, err
	}
	_ = audit.LogEvent(ctx, "org.department.create", map[string]any{"department_id": dept.ID, "name": dept.Name})
	return dept, nil
}

// ListDepartments lists departments with counts. Open to any principal
// that passes the status gate.
func (s *Service) ListDepartments(ctx context.Context, actor authz.Principal) ([]DepartmentSummary, error) {
	if d := authz.CheckAccess(actor); !d.Allowed {
		return nil, authz.Denied(d)
	}
	return s.store.Departments().List(ctx)
}

// UpdateDepartment renames a department. Requires department.manage.
func (s *Service) UpdateDepartment(ctx context.Context, actor authz.Principal, id, name, description string) (*authz.Department, error) {
	if err := guard(actor, authz.GroupDepartment, authz.ActionManage, nil); err != nil {
		return nil, err
	}
	dept, err := s.store.Departments().Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if name = strings.TrimSpace(name); name != "" {
		dept.Name = name
	}
	dept.Description = strings.TrimSpace(description)
	if err := s.store.Departments().Update(ctx, dept); err != nil {
		return nil, err
	}
	_ = audit.LogEvent(ctx, "org.department.update", map[string]any{"department_id": dept.ID})
	return dept, nil
}

// DeleteDepartment removes an empty department. A department with assigned
// users cannot be deleted.
func (s *Service) DeleteDepartment(ctx context.Context, actor authz.Principal, id string) error {
	if err := guard(actor, authz.GroupDepartment, authz.ActionManage, nil); err != nil {
		return err
	}
	if _, err := s.store.Departments().Find(ctx, id); err != nil {
		return err
	}
	count, err := s.store.Departments().CountUsers(ctx, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return ErrDepartmentInUse
	}
	if err := s.store.Departments().Delete(ctx, id); err != nil {
		return err
	}
	_ = audit.LogEvent(ctx, "org.department.delete", map[string]any{"department_id": id})
	return nil
}

// Positions -----------------------------------------------------------------

// CreatePosition adds a position to a department. Requires
// department.editHierarchy. An empty permissions document gets the default
// preset for the level; the document is validated before it is ever
// stored, so a bad token never reaches the database.
func (s *Service) CreatePosition(ctx context.Context, actor authz.Principal, name string, level int, departmentID string, perms authz.Permissions) (*authz.Position, error) {
	if err := guard(actor, authz.GroupDepartment, authz.ActionEditHierarchy, nil); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: position name is required", ErrInvalidInput)
	}
	if level < 1 {
		return nil, fmt.Errorf("%w: level must be 1 or greater", ErrInvalidInput)
	}
	if perms == (authz.Permissions{}) {
		perms = authz.DefaultPermissions(level)
	}
	if err := perms.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.store.Departments().Find(ctx, departmentID); err != nil {
		return nil, err
	}
	pos := &authz.Position{
		ID:           ids.New(),
		Name:         name,
		Level:        level,
		DepartmentID: departmentID,
		Permissions:  perms,
	}
	if err := s.store.Positions().Create(ctx, pos); err != nil {
		return nil, err
	}
	_ = audit.LogEvent(ctx, "org.position.create", map[string]any{
		"position_id":   pos.ID,
		"department_id": departmentID,
		"level":         level,
	})
	return pos, nil
}

// ListPositions lists a department's positions with user counts.
func (s *Service) ListPositions(ctx context.Context, actor authz.Principal, departmentID string) ([]PositionSummary, error) {
	if d := authz.CheckAccess(actor); !d.Allowed {
		return nil, authz.Denied(d)
	}
	return s.store.Positions().ListByDepartment(ctx, departmentID)
}

// UpdatePosition changes a position's name, level or permissions. Requires
// department.editHierarchy.
func (s *Service) UpdatePosition(ctx context.Context, actor authz.Principal, id, name string, level int, perms authz.Permissions) (*authz.Position, error) {
	if err := guard(actor, authz.GroupDepartment, authz.ActionEditHierarchy, nil); err != nil {
		return nil, err
	}
	if level < 1 {
		return nil, fmt.Errorf("%w: level must be 1 or greater", ErrInvalidInput)
	}
	if err := perms.Validate(); err != nil {
		return nil, err
	}
	pos, err := s.store.Positions().Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if name = strings.TrimSpace(name); name != "" {
		pos.Name = name
	}
	pos.Level = level
	pos.Permissions = perms
	if err := s.store.Positions().Update(ctx, pos); err != nil {
		return nil, err
	}
	_ = audit.LogEvent(ctx, "org.position.update", map[string]any{"position_id": pos.ID})
	return pos, nil
}

// DeletePosition removes an unoccupied position. A position with assigned
// users cannot be deleted.
func (s *Service) DeletePosition(ctx context.Context, actor authz.Principal, id string) error {
	if err := guard(actor, authz.GroupDepartment, authz.ActionEditHierarchy, nil); err != nil {
		return err
	}
	if _, err := s.store.Positions().Find(ctx, id); err != nil {
		return err
	}
	count, err := s.store.Positions().CountUsers(ctx, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return ErrPositionInUse
	}
	if err := s.store.Positions().Delete(ctx, id); err != nil {
		return err
	}
	_ = audit.LogEvent(ctx, "org.position.delete", map[string]any{"position_id": id})
	return nil
}

// Users ---------------------------------------------------------------------

// ListUsers lists the subset of users the actor may see, pushed down to
// storage as a predicate. A none predicate skips the query entirely.
func (s *Service) ListUsers(ctx context.Context, actor authz.Principal, filter UserFilter) ([]*auth.User, error) {
	pred, err := authz.ScopeFor(actor, authz.GroupUser, authz.ActionViewDetails)
	if err != nil {
		return nil, err
	}
	if pred.Kind == authz.MatchNone {
		return nil, nil
	}
	users, err := s.store.Users().List(ctx, filter, pred)
	if err != nil {
		return nil, err
	}
	return users, nil
}

// GetUser returns a user's details. Self-lookup is always permitted;
// anything else goes through the user.viewDetails scope.
func (s *Service) GetUser(ctx context.Context, actor authz.Principal, id string) (*auth.User, error) {
	target, err := s.store.Users().Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if target.ID == actor.UserID {
		return target, nil
	}
	res, err := s.userResource(ctx, target)
	if err != nil {
		return nil, err
	}
	if err := guard(actor, authz.GroupUser, authz.ActionViewDetails, res); err != nil {
		return nil, err
	}
	return target, nil
}

// UpdateUserStatus drives the account lifecycle for another user. The
// engine's self-modification guard makes changing one's own status
// impossible, and the transition table rejects illegal edges.
func (s *Service) UpdateUserStatus(ctx context.Context, actor authz.Principal, targetID string, status authz.AccountStatus) error {
	target, err := s.store.Users().Find(ctx, targetID)
	if err != nil {
		return err
	}
	res, err := s.userResource(ctx, target)
	if err != nil {
		return err
	}
	if err := guard(actor, authz.GroupUser, authz.ActionUpdateStatus, res); err != nil {
		return err
	}
	if !authz.CanTransition(target.Status, status) {
		return fmt.Errorf("%w: cannot move account from %s to %s", ErrInvalidInput, target.Status, status)
	}
	if err := s.store.Users().UpdateStatus(ctx, targetID, status); err != nil {
		return err
	}
	_ = audit.LogEvent(ctx, "org.user.status", map[string]any{
		"user_id": targetID,
		"from":    string(target.Status),
		"to":      string(status),
	})
	return nil
}

// AssignUser places a user into a department and position, activating the
// account; an empty department clears the assignment and returns the
// account to UNASSIGNED. Assignment is distinct from the lifecycle table:
// it only ever moves accounts between UNASSIGNED and ACTIVE.
func (s *Service) AssignUser(ctx context.Context, actor authz.Principal, targetID, departmentID, positionID string) error {
	target, err := s.store.Users().Find(ctx, targetID)
	if err != nil {
		return err
	}
	res, err := s.userResource(ctx, target)
	if err != nil {
		return err
	}
	if err := guard(actor, authz.GroupDepartment, authz.ActionManage, res); err != nil {
		return err
	}
	if target.Status != authz.StatusUnassigned && target.Status != authz.StatusActive {
		return fmt.Errorf("%w: cannot assign account in status %s", ErrInvalidInput, target.Status)
	}

	status := authz.StatusUnassigned
	if departmentID != "" {
		if positionID == "" {
			return fmt.Errorf("%w: position is required with a department", ErrInvalidInput)
		}
		pos, err := s.store.Positions().Find(ctx, positionID)
		if err != nil {
			return err
		}
		if pos.DepartmentID != departmentID {
			return ErrPositionMismatch
		}
		status = authz.StatusActive
	} else {
		positionID = ""
	}

	if err := s.store.Users().Assign(ctx, targetID, departmentID, positionID, status); err != nil {
		return err
	}
	_ = audit.LogEvent(ctx, "org.user.assign", map[string]any{
		"user_id":       targetID,
		"department_id": departmentID,
		"position_id":   positionID,
		"status":        string(status),
	})
	return nil
}

// DeleteUser removes a user record. The engine denies self-deletion
// unconditionally.
func (s *Service) DeleteUser(ctx context.Context, actor authz.Principal, targetID string) error {
	target, err := s.store.Users().Find(ctx, targetID)
	if err != nil {
		return err
	}
	res, err := s.userResource(ctx, target)
	if err != nil {
		return err
	}
	if err := guard(actor, authz.GroupUser, authz.ActionDelete, res); err != nil {
		return err
	}
	if err := s.store.Users().Delete(ctx, targetID); err != nil {
		return err
	}
	_ = audit.LogEvent(ctx, "org.user.delete", map[string]any{"user_id": targetID, "email": target.Email})
	return nil
}

// Access requests -----------------------------------------------------------

// RequestAccess files an application to join a department. Only unassigned
// accounts have a reason to apply.
func (s *Service) RequestAccess(ctx context.Context, actor authz.Principal, departmentID, reason, supervisorName string) (*AccessRequest, error) {
	if d := authz.CheckAccess(actor); !d.Allowed {
		return nil, authz.Denied(d)
	}
	if actor.Status != authz.StatusUnassigned {
		return nil, fmt.Errorf("%w: account is already assigned", ErrInvalidInput)
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, fmt.Errorf("%w: reason is required", ErrInvalidInput)
	}
	if _, err := s.store.Departments().Find(ctx, departmentID); err != nil {
		return nil, err
	}
	req := &AccessRequest{
		ID:             ids.New(),
		UserID:         actor.UserID,
		DepartmentID:   departmentID,
		Reason:         reason,
		SupervisorName: strings.TrimSpace(supervisorName),
		Status:         RequestPending,
	}
	if err := s.store.AccessRequests().Create(ctx, req); err != nil {
		return nil, err
	}
	return req, nil
}

// ListPendingRequests returns unreviewed access requests. Requires
// department.manage.
func (s *Service) ListPendingRequests(ctx context.Context, actor authz.Principal) ([]*AccessRequest, error) {
	if err := guard(actor, authz.GroupDepartment, authz.ActionManage, nil); err != nil {
		return nil, err
	}
	return s.store.AccessRequests().ListPending(ctx)
}

// ReviewAccessRequest resolves a pending request. Approval requires a
// position inside the requested department and performs the assignment.
func (s *Service) ReviewAccessRequest(ctx context.Context, actor authz.Principal, requestID string, status RequestStatus, notes, positionID string) (*AccessRequest, error) {
	if err := guard(actor, authz.GroupDepartment, authz.ActionManage, nil); err != nil {
		return nil, err
	}
	req, err := s.store.AccessRequests().Find(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.Status != RequestPending && req.Status != RequestMoreInfoNeeded {
		return nil, fmt.Errorf("%w: request already reviewed", ErrInvalidInput)
	}
	switch status {
	case RequestApproved:
		if positionID == "" {
			return nil, fmt.Errorf("%w: approval requires a position", ErrInvalidInput)
		}
		if err := s.AssignUser(ctx, actor, req.UserID, req.DepartmentID, positionID); err != nil {
			return nil, err
		}
	case RequestRejected, RequestMoreInfoNeeded:
		// review recorded below, nothing else to do
	default:
		return nil, fmt.Errorf("%w: unsupported review status %s", ErrInvalidInput, status)
	}

	now := s.now().UTC()
	req.Status = status
	req.ReviewNotes = strings.TrimSpace(notes)
	req.ReviewedBy = actor.UserID
	req.ReviewedAt = &now
	if err := s.store.AccessRequests().Update(ctx, req); err != nil {
		return nil, err
	}
	_ = audit.LogEvent(ctx, "org.access_request.review", map[string]any{
		"request_id": req.ID,
		"status":     string(status),
	})
	return req, nil
}

// userResource builds the engine's view of a target user, including the
// target's position so subordinate scopes can compare levels.
func (s *Service) userResource(ctx context.Context, target *auth.User) (*authz.Resource, error) {
	res := &authz.Resource{
		ID:           target.ID,
		OwnerID:      target.ID,
		DepartmentID: target.DepartmentID,
	}
	if target.PositionID != "" {
		pos, err := s.store.Positions().Find(ctx, target.PositionID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		res.Position = pos
	}
	return res, nil
}
