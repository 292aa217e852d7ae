package org

import (
	"context"
	"errors"
	"strings"
	"testing"

	"taskera.org/internal/auth"
	"taskera.org/internal/authz"
)

type memStore struct {
	depts     map[string]*authz.Department
	positions map[string]*authz.Position
	users     map[string]*auth.User
	requests  map[string]*AccessRequest
}

func newMemStore() *memStore {
	return &memStore{
		depts:     map[string]*authz.Department{},
		positions: map[string]*authz.Position{},
		users:     map[string]*auth.User{},
		requests:  map[string]*AccessRequest{},
	}
}

func (m *memStore) Departments() DepartmentStore       { return (*memDepts)(m) }
func (m *memStore) Positions() PositionStore           { return (*memPositions)(m) }
func (m *memStore) Users() UserDirectory               { return (*memUsers)(m) }
func (m *memStore) AccessRequests() AccessRequestStore { return (*memRequests)(m) }

type memDepts memStore

func (m *memDepts) Create(_ context.Context, d *authz.Department) error {
	m.depts[d.ID] = d
	return nil
}

func (m *memDepts) Find(_ context.Context, id string) (*authz.Department, error) {
	d, ok := m.depts[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *memDepts) List(_ context.Context) ([]DepartmentSummary, error) {
	var out []DepartmentSummary
	for _, d := range m.depts {
		out = append(out, DepartmentSummary{Department: *d})
	}
	return out, nil
}

func (m *memDepts) Update(_ context.Context, d *authz.Department) error {
	if _, ok := m.depts[d.ID]; !ok {
		return ErrNotFound
	}
	m.depts[d.ID] = d
	return nil
}

func (m *memDepts) Delete(_ context.Context, id string) error {
	delete(m.depts, id)
	return nil
}

func (m *memDepts) CountUsers(_ context.Context, id string) (int, error) {
	n := 0
	for _, u := range m.users {
		if u.DepartmentID == id {
			n++
		}
	}
	return n, nil
}

type memPositions memStore

func (m *memPositions) Create(_ context.Context, p *authz.Position) error {
	m.positions[p.ID] = p
	return nil
}

func (m *memPositions) Find(_ context.Context, id string) (*authz.Position, error) {
	p, ok := m.positions[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memPositions) ListByDepartment(_ context.Context, departmentID string) ([]PositionSummary, error) {
	var out []PositionSummary
	for _, p := range m.positions {
		if p.DepartmentID == departmentID {
			out = append(out, PositionSummary{Position: *p})
		}
	}
	return out, nil
}

func (m *memPositions) Update(_ context.Context, p *authz.Position) error {
	if _, ok := m.positions[p.ID]; !ok {
		return ErrNotFound
	}
	m.positions[p.ID] = p
	return nil
}

func (m *memPositions) Delete(_ context.Context, id string) error {
	delete(m.positions, id)
	return nil
}

func (m *memPositions) CountUsers(_ context.Context, id string) (int, error) {
	n := 0
	for _, u := range m.users {
		if u.PositionID == id {
			n++
		}
	}
	return n, nil
}

type memUsers memStore

func (m *memUsers) Find(_ context.Context, id string) (*auth.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) List(_ context.Context, filter UserFilter, pred authz.Predicate) ([]*auth.User, error) {
	var out []*auth.User
	for _, u := range m.users {
		if filter.Status != "" && u.Status != filter.Status {
			continue
		}
		if filter.DepartmentID != "" && u.DepartmentID != filter.DepartmentID {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(u.Name), strings.ToLower(filter.Search)) {
			continue
		}
		res := authz.Resource{ID: u.ID, OwnerID: u.ID, DepartmentID: u.DepartmentID}
		if p, ok := m.positions[u.PositionID]; ok {
			res.Position = p
		}
		if !pred.Matches(res) {
			continue
		}
		cp := *u
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memUsers) UpdateStatus(_ context.Context, userID string, status authz.AccountStatus) error {
	u, ok := m.users[userID]
	if !ok {
		return ErrNotFound
	}
	u.Status = status
	return nil
}

func (m *memUsers) Assign(_ context.Context, userID, departmentID, positionID string, status authz.AccountStatus) error {
	u, ok := m.users[userID]
	if !ok {
		return ErrNotFound
	}
	u.DepartmentID = departmentID
	u.PositionID = positionID
	u.Status = status
	return nil
}

func (m *memUsers) Delete(_ context.Context, userID string) error {
	delete(m.users, userID)
	return nil
}

type memRequests memStore

func (m *memRequests) Create(_ context.Context, r *AccessRequest) error {
	m.requests[r.ID] = r
	return nil
}

func (m *memRequests) Find(_ context.Context, id string) (*AccessRequest, error) {
	r, ok := m.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memRequests) ListPending(_ context.Context) ([]*AccessRequest, error) {
	var out []*AccessRequest
	for _, r := range m.requests {
		if r.Status == RequestPending {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memRequests) Update(_ context.Context, r *AccessRequest) error {
	if _, ok := m.requests[r.ID]; !ok {
		return ErrNotFound
	}
	m.requests[r.ID] = r
	return nil
}

func adminPrincipal(deptID string) authz.Principal {
	return authz.Principal{
		UserID:       "admin-1",
		Status:       authz.StatusActive,
		DepartmentID: deptID,
		Position: &authz.Position{
			ID:           "pos-admin",
			Name:         "Head",
			Level:        1,
			DepartmentID: deptID,
			Permissions:  authz.AdminPermissions(),
		},
	}
}

func memberPrincipal(deptID string) authz.Principal {
	return authz.Principal{
		UserID:       "member-1",
		Status:       authz.StatusActive,
		DepartmentID: deptID,
		Position: &authz.Position{
			ID:           "pos-member",
			Name:         "Member",
			Level:        5,
			DepartmentID: deptID,
			Permissions:  authz.MemberPermissions(),
		},
	}
}

func newTestService(t *testing.T) (*Service, *memStore) {
	t.Helper()
	st := newMemStore()
	svc, err := NewService(st)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, st
}

func TestDepartmentLifecycle(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	admin := adminPrincipal("dept-eng")

	dept, err := svc.CreateDepartment(ctx, admin, "  Engineering ", "builds things")
	if err != nil {
		t.Fatalf("CreateDepartment: %v", err)
	}
	if dept.Name != "Engineering" {
		t.Fatalf("name not trimmed: %q", dept.Name)
	}

	if _, err := svc.UpdateDepartment(ctx, admin, dept.ID, "Platform", ""); err != nil {
		t.Fatalf("UpdateDepartment: %v", err)
	}
	if st.depts[dept.ID].Name != "Platform" {
		t.Fatalf("rename not persisted")
	}

	st.users["u1"] = &auth.User{ID: "u1", Status: authz.StatusActive, DepartmentID: dept.ID}
	if err := svc.DeleteDepartment(ctx, admin, dept.ID); !errors.Is(err, ErrDepartmentInUse) {
		t.Fatalf("delete with users: got %v, want ErrDepartmentInUse", err)
	}

	delete(st.users, "u1")
	if err := svc.DeleteDepartment(ctx, admin, dept.ID); err != nil {
		t.Fatalf("delete empty department: %v", err)
	}
}

func TestDepartmentManageRequiresPermission(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateDepartment(ctx, memberPrincipal("dept-eng"), "Rogue", "")
	var denied *authz.DeniedError
	if !errors.As(err, &denied) {
		t.Fatalf("member create department: got %v, want DeniedError", err)
	}
	if denied.Decision.Reason != authz.DenyNoPermission {
		t.Fatalf("deny reason = %s, want %s", denied.Decision.Reason, authz.DenyNoPermission)
	}
}

func TestPositionValidation(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	admin := adminPrincipal("dept-eng")
	st.depts["dept-eng"] = &authz.Department{ID: "dept-eng", Name: "Engineering"}

	if _, err := svc.CreatePosition(ctx, admin, "Lead", 0, "dept-eng", authz.MemberPermissions()); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("level 0: got %v, want ErrInvalidInput", err)
	}

	bad := authz.MemberPermissions()
	bad.Project.View = authz.Scope("everything")
	if _, err := svc.CreatePosition(ctx, admin, "Lead", 2, "dept-eng", bad); !errors.Is(err, authz.ErrInvalidInput) {
		t.Fatalf("bad scope token: got %v, want authz.ErrInvalidInput", err)
	}

	pos, err := svc.CreatePosition(ctx, admin, "Lead", 2, "dept-eng", authz.ManagerPermissions())
	if err != nil {
		t.Fatalf("CreatePosition: %v", err)
	}

	st.users["u1"] = &auth.User{ID: "u1", Status: authz.StatusActive, DepartmentID: "dept-eng", PositionID: pos.ID}
	if err := svc.DeletePosition(ctx, admin, pos.ID); !errors.Is(err, ErrPositionInUse) {
		t.Fatalf("delete occupied position: got %v, want ErrPositionInUse", err)
	}
}

func TestAssignUserActivatesAccount(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	admin := adminPrincipal("dept-eng")

	st.depts["dept-eng"] = &authz.Department{ID: "dept-eng", Name: "Engineering"}
	st.positions["pos-1"] = &authz.Position{ID: "pos-1", Name: "Member", Level: 5, DepartmentID: "dept-eng", Permissions: authz.MemberPermissions()}
	st.positions["pos-other"] = &authz.Position{ID: "pos-other", Name: "Member", Level: 5, DepartmentID: "dept-sales", Permissions: authz.MemberPermissions()}
	st.users["u1"] = &auth.User{ID: "u1", Status: authz.StatusUnassigned}

	if err := svc.AssignUser(ctx, admin, "u1", "dept-eng", "pos-other"); !errors.Is(err, ErrPositionMismatch) {
		t.Fatalf("cross-department position: got %v, want ErrPositionMismatch", err)
	}

	if err := svc.AssignUser(ctx, admin, "u1", "dept-eng", "pos-1"); err != nil {
		t.Fatalf("AssignUser: %v", err)
	}
	u := st.users["u1"]
	if u.Status != authz.StatusActive || u.DepartmentID != "dept-eng" || u.PositionID != "pos-1" {
		t.Fatalf("assignment not applied: %+v", u)
	}

	// Clearing the assignment returns the account to UNASSIGNED.
	if err := svc.AssignUser(ctx, admin, "u1", "", ""); err != nil {
		t.Fatalf("clear assignment: %v", err)
	}
	if u := st.users["u1"]; u.Status != authz.StatusUnassigned || u.DepartmentID != "" {
		t.Fatalf("assignment not cleared: %+v", u)
	}
}

func TestAssignUserRejectsGatedStatuses(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	admin := adminPrincipal("dept-eng")

	st.depts["dept-eng"] = &authz.Department{ID: "dept-eng", Name: "Engineering"}
	st.positions["pos-1"] = &authz.Position{ID: "pos-1", Name: "Member", Level: 5, DepartmentID: "dept-eng", Permissions: authz.MemberPermissions()}
	st.users["u1"] = &auth.User{ID: "u1", Status: authz.StatusSuspended}

	if err := svc.AssignUser(ctx, admin, "u1", "dept-eng", "pos-1"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("assign suspended account: got %v, want ErrInvalidInput", err)
	}
}

func TestUpdateUserStatusEnforcesTransitions(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	admin := adminPrincipal("dept-eng")

	st.users["u1"] = &auth.User{ID: "u1", Status: authz.StatusActive}
	if err := svc.UpdateUserStatus(ctx, admin, "u1", authz.StatusSuspended); err != nil {
		t.Fatalf("suspend active user: %v", err)
	}
	if err := svc.UpdateUserStatus(ctx, admin, "u1", authz.StatusPendingVerification); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("illegal transition: got %v, want ErrInvalidInput", err)
	}

	st.users["u2"] = &auth.User{ID: "u2", Status: authz.StatusArchived}
	if err := svc.UpdateUserStatus(ctx, admin, "u2", authz.StatusActive); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("archived is terminal: got %v, want ErrInvalidInput", err)
	}
}

func TestUpdateUserStatusSelfGuard(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	admin := adminPrincipal("dept-eng")

	st.users[admin.UserID] = &auth.User{ID: admin.UserID, Status: authz.StatusActive, DepartmentID: "dept-eng"}
	err := svc.UpdateUserStatus(ctx, admin, admin.UserID, authz.StatusSuspended)
	var denied *authz.DeniedError
	if !errors.As(err, &denied) || denied.Decision.Reason != authz.DenySelfModification {
		t.Fatalf("self-suspension: got %v, want self_modification denial", err)
	}

	if err := svc.DeleteUser(ctx, admin, admin.UserID); !errors.As(err, &denied) {
		t.Fatalf("self-deletion: got %v, want DeniedError", err)
	}
}

func TestListUsersScoping(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	st.positions["pos-sub"] = &authz.Position{ID: "pos-sub", Name: "Junior", Level: 7, DepartmentID: "dept-eng", Permissions: authz.MemberPermissions()}
	st.users["u1"] = &auth.User{ID: "u1", Name: "Ada", Status: authz.StatusActive, DepartmentID: "dept-eng", PositionID: "pos-sub"}
	st.users["u2"] = &auth.User{ID: "u2", Name: "Grace", Status: authz.StatusActive, DepartmentID: "dept-sales"}

	// A manager's department scope sees only the engineering user.
	manager := authz.Principal{
		UserID:       "mgr-1",
		Status:       authz.StatusActive,
		DepartmentID: "dept-eng",
		Position: &authz.Position{
			ID: "pos-mgr", Name: "Lead", Level: 2, DepartmentID: "dept-eng",
			Permissions: authz.ManagerPermissions(),
		},
	}
	got, err := svc.ListUsers(ctx, manager, UserFilter{})
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if len(got) != 1 || got[0].ID != "u1" {
		t.Fatalf("department scope leaked: %+v", got)
	}

	// A position with no user.viewDetails grant skips the query entirely.
	blind := manager
	perms := authz.ManagerPermissions()
	perms.User.ViewDetails = authz.ScopeNone
	blind.Position = &authz.Position{ID: "pos-blind", Name: "Clerk", Level: 6, DepartmentID: "dept-eng", Permissions: perms}
	got, err = svc.ListUsers(ctx, blind, UserFilter{})
	if err != nil {
		t.Fatalf("ListUsers without grant: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("grantless principal should see nobody, got %d", len(got))
	}
}

func TestGetUserSelfAlwaysAllowed(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	// Department-scoped visibility: colleagues yes, other departments no.
	manager := authz.Principal{
		UserID:       "mgr-1",
		Status:       authz.StatusActive,
		DepartmentID: "dept-eng",
		Position: &authz.Position{
			ID: "pos-mgr", Name: "Lead", Level: 2, DepartmentID: "dept-eng",
			Permissions: authz.ManagerPermissions(),
		},
	}
	st.users[manager.UserID] = &auth.User{ID: manager.UserID, Name: "Me", Status: authz.StatusActive, DepartmentID: "dept-eng"}
	st.users["u2"] = &auth.User{ID: "u2", Name: "Outsider", Status: authz.StatusActive, DepartmentID: "dept-sales"}

	if _, err := svc.GetUser(ctx, manager, manager.UserID); err != nil {
		t.Fatalf("self lookup: %v", err)
	}
	var denied *authz.DeniedError
	if _, err := svc.GetUser(ctx, manager, "u2"); !errors.As(err, &denied) {
		t.Fatalf("cross-department lookup: got %v, want DeniedError", err)
	}
	if denied.Decision.Reason != authz.DenyOutOfScope {
		t.Fatalf("deny reason = %s, want %s", denied.Decision.Reason, authz.DenyOutOfScope)
	}
}

func TestAccessRequestFlow(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	admin := adminPrincipal("dept-eng")

	st.depts["dept-eng"] = &authz.Department{ID: "dept-eng", Name: "Engineering"}
	st.positions["pos-1"] = &authz.Position{ID: "pos-1", Name: "Member", Level: 5, DepartmentID: "dept-eng", Permissions: authz.MemberPermissions()}
	st.users["u1"] = &auth.User{ID: "u1", Status: authz.StatusUnassigned}

	applicant := authz.Principal{UserID: "u1", Status: authz.StatusUnassigned}
	req, err := svc.RequestAccess(ctx, applicant, "dept-eng", "joining the team", "Dana")
	if err != nil {
		t.Fatalf("RequestAccess: %v", err)
	}

	// An already assigned account has nothing to apply for.
	if _, err := svc.RequestAccess(ctx, memberPrincipal("dept-eng"), "dept-eng", "again", ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("assigned applicant: got %v, want ErrInvalidInput", err)
	}

	pending, err := svc.ListPendingRequests(ctx, admin)
	if err != nil {
		t.Fatalf("ListPendingRequests: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("pending count = %d, want 1", len(pending))
	}

	if _, err := svc.ReviewAccessRequest(ctx, admin, req.ID, RequestApproved, "welcome", ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("approval without position: got %v, want ErrInvalidInput", err)
	}

	reviewed, err := svc.ReviewAccessRequest(ctx, admin, req.ID, RequestApproved, "welcome", "pos-1")
	if err != nil {
		t.Fatalf("ReviewAccessRequest: %v", err)
	}
	if reviewed.Status != RequestApproved || reviewed.ReviewedBy != admin.UserID || reviewed.ReviewedAt == nil {
		t.Fatalf("review not recorded: %+v", reviewed)
	}
	if u := st.users["u1"]; u.Status != authz.StatusActive || u.PositionID != "pos-1" {
		t.Fatalf("approval did not assign: %+v", u)
	}

	if _, err := svc.ReviewAccessRequest(ctx, admin, req.ID, RequestRejected, "", ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("double review: got %v, want ErrInvalidInput", err)
	}
}

func TestCreatePositionDefaultsPermissions(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	admin := adminPrincipal("dept-eng")
	st.depts["dept-eng"] = &authz.Department{ID: "dept-eng", Name: "Engineering"}

	lead, err := svc.CreatePosition(ctx, admin, "Team Lead", 2, "dept-eng", authz.Permissions{})
	if err != nil {
		t.Fatalf("CreatePosition lead: %v", err)
	}
	if lead.Permissions != authz.ManagerPermissions() {
		t.Fatalf("lead permissions = %+v, want manager preset", lead.Permissions)
	}

	ic, err := svc.CreatePosition(ctx, admin, "Engineer", 4, "dept-eng", authz.Permissions{})
	if err != nil {
		t.Fatalf("CreatePosition engineer: %v", err)
	}
	if ic.Permissions != authz.MemberPermissions() {
		t.Fatalf("engineer permissions = %+v, want member preset", ic.Permissions)
	}
}
