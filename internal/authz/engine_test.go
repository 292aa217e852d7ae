package authz

import (
	"errors"
	"testing"
)

func TestAuthorizeRequiresPrincipal(t *testing.T) {
	if _, err := Authorize(Principal{}, GroupTask, ActionEdit, nil); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestAuthorizeDeniesEverythingForGatedStatuses(t *testing.T) {
	actions := []struct {
		group  Group
		action Action
	}{
		{GroupProject, ActionView},
		{GroupProject, ActionCreate},
		{GroupTask, ActionEdit},
		{GroupUser, ActionViewDetails},
		{GroupDepartment, ActionManage},
	}
	for _, status := range []AccountStatus{StatusPendingVerification, StatusSuspended, StatusArchived} {
		p := Principal{
			UserID:   "u1",
			Status:   status,
			Position: &Position{ID: "pos1", Level: 1, DepartmentID: "d1", Permissions: AdminPermissions()},
		}
		for _, a := range actions {
			d, err := Authorize(p, a.group, a.action, nil)
			if err != nil {
				t.Fatalf("%s %s.%s: %v", status, a.group, a.action, err)
			}
			if d.Allowed {
				t.Fatalf("%s %s.%s: allowed despite gated status", status, a.group, a.action)
			}
			if d.Reason != DenyAccountStatus || d.Status != status {
				t.Fatalf("%s %s.%s: reason=%s status=%s", status, a.group, a.action, d.Reason, d.Status)
			}
		}
	}
}

func TestSelfModificationGuard(t *testing.T) {
	p := Principal{
		UserID:       "admin",
		Status:       StatusActive,
		DepartmentID: "d1",
		Position:     &Position{ID: "pos1", Level: 1, DepartmentID: "d1", Permissions: AdminPermissions()},
	}
	self := &Resource{ID: "admin", OwnerID: "admin"}

	for _, action := range []Action{ActionUpdateStatus, ActionDelete} {
		d, err := Authorize(p, GroupUser, action, self)
		if err != nil {
			t.Fatalf("user.%s: %v", action, err)
		}
		if d.Allowed {
			t.Fatalf("user.%s on self must be denied", action)
		}
		if d.Reason != DenySelfModification {
			t.Fatalf("user.%s: reason %s, want self_modification", action, d.Reason)
		}
	}

	// The same actions against another user pass through the grant.
	other := &Resource{ID: "u2", Position: &Position{DepartmentID: "d1", Level: 3}}
	d, err := Authorize(p, GroupUser, ActionUpdateStatus, other)
	if err != nil {
		t.Fatalf("user.updateStatus other: %v", err)
	}
	if !d.Allowed {
		t.Fatalf("admin denied status change for another user: %+v", d)
	}
}

func TestAuthorizeNoPermissionShortCircuits(t *testing.T) {
	perms := MemberPermissions() // user.edit is none
	p := Principal{
		UserID:       "u1",
		Status:       StatusActive,
		DepartmentID: "d1",
		Position:     &Position{ID: "pos1", Level: 2, DepartmentID: "d1", Permissions: perms},
	}
	d, err := Authorize(p, GroupUser, ActionEdit, &Resource{ID: "u2"})
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if d.Allowed || d.Reason != DenyNoPermission {
		t.Fatalf("decision = %+v, want no_permission deny", d)
	}
}

func TestUnassignedPrincipalCannotViewTeamProject(t *testing.T) {
	p := Principal{UserID: "u1", Status: StatusUnassigned}
	teamProject := &Resource{ID: "proj9", OwnerID: "someone-else"}

	d, err := Authorize(p, GroupProject, ActionView, teamProject)
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if d.Allowed {
		t.Fatal("unassigned principal saw a team project")
	}
	if d.Reason != DenyOutOfScope {
		t.Fatalf("reason = %s, want out_of_scope", d.Reason)
	}

	own := &Resource{ID: "proj1", OwnerID: "u1"}
	d, err = Authorize(p, GroupProject, ActionView, own)
	if err != nil {
		t.Fatalf("authorize own: %v", err)
	}
	if !d.Allowed {
		t.Fatalf("unassigned principal denied own project: %+v", d)
	}
}

func TestSubordinateViewDetailsScenarios(t *testing.T) {
	perms := Permissions{
		User: UserPermissions{ViewDetails: ScopeSubordinate},
	}
	q := Principal{
		UserID:       "q",
		Status:       StatusActive,
		DepartmentID: "d",
		Position:     &Position{ID: "posQ", Level: 2, DepartmentID: "d", Permissions: perms},
	}

	r := &Resource{ID: "r", Position: &Position{DepartmentID: "d", Level: 3}}
	s := &Resource{ID: "s", Position: &Position{DepartmentID: "d", Level: 1}}
	tt := &Resource{ID: "t", Position: &Position{DepartmentID: "e", Level: 3}}

	if d, err := Authorize(q, GroupUser, ActionViewDetails, r); err != nil || !d.Allowed {
		t.Fatalf("level-3 same dept: %+v %v", d, err)
	}
	if d, err := Authorize(q, GroupUser, ActionViewDetails, s); err != nil || d.Allowed {
		t.Fatalf("level-1 same dept must be denied: %+v %v", d, err)
	}
	if d, err := Authorize(q, GroupUser, ActionViewDetails, tt); err != nil || d.Allowed {
		t.Fatalf("other department must be denied: %+v %v", d, err)
	}
}

func TestTaskCreateModes(t *testing.T) {
	base := Principal{
		UserID:       "u1",
		Status:       StatusActive,
		DepartmentID: "d1",
	}
	withCreate := func(mode Scope) Principal {
		p := base
		p.Position = &Position{
			ID: "pos1", Level: 2, DepartmentID: "d1",
			Permissions: Permissions{Task: TaskPermissions{Create: mode}},
		}
		return p
	}

	assignedProject := &Resource{ID: "proj1", OwnerID: "boss", AssigneeIDs: []string{"u1"}}
	foreignProject := &Resource{ID: "proj2", OwnerID: "boss"}

	// standalone: no project target only
	p := withCreate(ScopeStandalone)
	if d, _ := Authorize(p, GroupTask, ActionCreate, nil); !d.Allowed {
		t.Fatal("standalone create without project denied")
	}
	if d, _ := Authorize(p, GroupTask, ActionCreate, assignedProject); d.Allowed {
		t.Fatal("standalone create into a project allowed")
	}

	// assigned_project: assigned projects only
	p = withCreate(ScopeAssignedProject)
	if d, _ := Authorize(p, GroupTask, ActionCreate, assignedProject); !d.Allowed {
		t.Fatal("create into assigned project denied")
	}
	if d, _ := Authorize(p, GroupTask, ActionCreate, foreignProject); d.Allowed {
		t.Fatal("create into foreign project allowed")
	}
	if d, _ := Authorize(p, GroupTask, ActionCreate, nil); d.Allowed {
		t.Fatal("assigned_project mode allowed a standalone task")
	}

	// any_project: unrestricted
	p = withCreate(ScopeAnyProject)
	if d, _ := Authorize(p, GroupTask, ActionCreate, foreignProject); !d.Allowed {
		t.Fatal("any_project create denied")
	}

	// none
	p = withCreate(ScopeNone)
	if d, _ := Authorize(p, GroupTask, ActionCreate, nil); d.Allowed {
		t.Fatal("create without grant allowed")
	}
}

func TestScopeForReturnsStoragePredicate(t *testing.T) {
	perms := Permissions{Task: TaskPermissions{Edit: ScopeDepartment}}
	p := Principal{
		UserID:       "u1",
		Status:       StatusActive,
		DepartmentID: "d1",
		Position:     &Position{ID: "pos1", Level: 2, DepartmentID: "d1", Permissions: perms},
	}
	pred, err := ScopeFor(p, GroupTask, ActionEdit)
	if err != nil {
		t.Fatalf("scope: %v", err)
	}
	if pred.Kind != MatchDepartment || pred.DepartmentID != "d1" {
		t.Fatalf("predicate = %+v", pred)
	}

	// Gated principals get the denial itself, never a usable predicate.
	p.Status = StatusSuspended
	_, err = ScopeFor(p, GroupTask, ActionEdit)
	var denied *DeniedError
	if !errors.As(err, &denied) {
		t.Fatalf("scope gated: got %v, want DeniedError", err)
	}
	if denied.Decision.Reason != DenyAccountStatus || denied.Decision.Status != StatusSuspended {
		t.Fatalf("gated decision = %+v", denied.Decision)
	}
}

func TestScopeForInvalidQuery(t *testing.T) {
	p := Principal{UserID: "u1", Status: StatusActive}
	if _, err := ScopeFor(p, GroupDepartment, ActionView); !errors.Is(err, ErrInvalidPermissionQuery) {
		t.Fatalf("expected ErrInvalidPermissionQuery, got %v", err)
	}
}
