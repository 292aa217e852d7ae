package authz

import (
	"encoding/json"
	"fmt"
)

// Scope is a closed access-breadth token. The zero value ScopeNone matches
// nothing. The stored JSON form uses the literal false for ScopeNone and a
// string for every other token, matching the document shape positions are
// persisted with.
type Scope string

const (
	ScopeNone        Scope = ""
	ScopeOwn         Scope = "own"
	ScopeAssigned    Scope = "assigned"
	ScopeDepartment  Scope = "department"
	ScopeAll         Scope = "all"
	ScopeSubordinate Scope = "subordinate"

	// Task creation modes. These are not resource filters: they constrain
	// where a new task may be placed.
	ScopeStandalone      Scope = "standalone"
	ScopeAssignedProject Scope = "assigned_project"
	ScopeAnyProject      Scope = "any_project"
)

// UnmarshalJSON accepts false or a string token. The literal true is
// rejected: boolean grants use plain bool fields, never Scope.
func (s *Scope) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		if b {
			return fmt.Errorf("%w: scope cannot be true", ErrInvalidInput)
		}
		*s = ScopeNone
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: scope must be false or a string", ErrInvalidInput)
	}
	*s = Scope(raw)
	return nil
}

// MarshalJSON renders ScopeNone as false to keep the stored shape stable.
func (s Scope) MarshalJSON() ([]byte, error) {
	if s == ScopeNone {
		return []byte("false"), nil
	}
	return json.Marshal(string(s))
}

func (s Scope) oneOf(domain ...Scope) bool {
	for _, d := range domain {
		if s == d {
			return true
		}
	}
	return false
}

// Group identifies a permission resource group.
type Group string

const (
	GroupProject    Group = "project"
	GroupTask       Group = "task"
	GroupUser       Group = "user"
	GroupDepartment Group = "department"
)

// Action identifies an operation within a group.
type Action string

const (
	ActionCreate        Action = "create"
	ActionDelete        Action = "delete"
	ActionEdit          Action = "edit"
	ActionView          Action = "view"
	ActionAssignUsers   Action = "assignUsers"
	ActionCreateSubtask Action = "createSubtask"
	ActionInvite        Action = "invite"
	ActionViewDetails   Action = "viewDetails"
	ActionUpdateStatus  Action = "updateStatus"
	ActionManage        Action = "manage"
	ActionEditHierarchy Action = "editHierarchy"
)

// ProjectPermissions controls the project group.
type ProjectPermissions struct {
	Create      bool  `json:"create"`
	Delete      Scope `json:"delete"`
	Edit        Scope `json:"edit"`
	View        Scope `json:"view"`
	AssignUsers bool  `json:"assignUsers"`
}

// TaskPermissions controls the task group.
type TaskPermissions struct {
	Create        Scope `json:"create"`
	Delete        Scope `json:"delete"`
	Edit          Scope `json:"edit"`
	CreateSubtask Scope `json:"createSubtask"`
}

// UserPermissions controls visibility of and edits to other users.
type UserPermissions struct {
	Invite      bool  `json:"invite"`
	Edit        Scope `json:"edit"`
	ViewDetails Scope `json:"viewDetails"`
}

// DepartmentPermissions controls directory administration.
type DepartmentPermissions struct {
	Manage        bool `json:"manage"`
	EditHierarchy bool `json:"editHierarchy"`
}

// Permissions is the fixed-shape grant document attached to a position.
// Every field is restricted to a closed token set; Validate rejects any
// document whose tokens fall outside their field's domain, so a stored
// grant either round-trips exactly or fails loudly at load time.
type Permissions struct {
	Project    ProjectPermissions    `json:"project"`
	Task       TaskPermissions       `json:"task"`
	User       UserPermissions       `json:"user"`
	Department DepartmentPermissions `json:"department"`
}

// Validate checks every scope field against its closed domain.
func (p Permissions) Validate() error {
	checks := []struct {
		field  string
		value  Scope
		domain []Scope
	}{
		{"project.delete", p.Project.Delete, []Scope{ScopeNone, ScopeOwn, ScopeDepartment, ScopeAll}},
		{"project.edit", p.Project.Edit, []Scope{ScopeNone, ScopeOwn, ScopeAssigned, ScopeDepartment, ScopeAll}},
		{"project.view", p.Project.View, []Scope{ScopeNone, ScopeOwn, ScopeAssigned, ScopeDepartment, ScopeAll}},
		{"task.create", p.Task.Create, []Scope{ScopeNone, ScopeStandalone, ScopeAssignedProject, ScopeAnyProject}},
		{"task.delete", p.Task.Delete, []Scope{ScopeNone, ScopeOwn, ScopeAssigned, ScopeDepartment, ScopeAll}},
		{"task.edit", p.Task.Edit, []Scope{ScopeNone, ScopeOwn, ScopeAssigned, ScopeDepartment, ScopeAll}},
		{"task.createSubtask", p.Task.CreateSubtask, []Scope{ScopeNone, ScopeOwn, ScopeAssigned}},
		{"user.edit", p.User.Edit, []Scope{ScopeNone, ScopeSubordinate, ScopeDepartment, ScopeAll}},
		{"user.viewDetails", p.User.ViewDetails, []Scope{ScopeNone, ScopeSubordinate, ScopeDepartment, ScopeAll}},
	}
	for _, c := range checks {
		if !c.value.oneOf(c.domain...) {
			return fmt.Errorf("%w: %s has invalid scope %q", ErrInvalidInput, c.field, string(c.value))
		}
	}
	return nil
}

// DecodePermissions parses and validates a stored permissions document.
func DecodePermissions(data []byte) (Permissions, error) {
	var p Permissions
	if err := json.Unmarshal(data, &p); err != nil {
		return Permissions{}, fmt.Errorf("authz: decode permissions: %w", err)
	}
	if err := p.Validate(); err != nil {
		return Permissions{}, err
	}
	return p, nil
}

func boolScope(granted bool) Scope {
	if granted {
		return ScopeAll
	}
	return ScopeNone
}

// lookup returns the stored token for a (group, action) pair. Boolean grants
// are folded into the scope domain as all/none. Pairs outside the closed
// vocabulary fail with ErrInvalidPermissionQuery.
func (p Permissions) lookup(group Group, action Action) (Scope, error) {
	switch group {
	case GroupProject:
		switch action {
		case ActionCreate:
			return boolScope(p.Project.Create), nil
		case ActionDelete:
			return p.Project.Delete, nil
		case ActionEdit:
			return p.Project.Edit, nil
		case ActionView:
			return p.Project.View, nil
		case ActionAssignUsers:
			return boolScope(p.Project.AssignUsers), nil
		}
	case GroupTask:
		switch action {
		case ActionCreate:
			return p.Task.Create, nil
		case ActionDelete:
			return p.Task.Delete, nil
		case ActionEdit:
			return p.Task.Edit, nil
		case ActionCreateSubtask:
			return p.Task.CreateSubtask, nil
		}
	case GroupUser:
		switch action {
		case ActionInvite:
			return boolScope(p.User.Invite), nil
		case ActionEdit:
			return p.User.Edit, nil
		case ActionViewDetails:
			return p.User.ViewDetails, nil
		case ActionUpdateStatus, ActionDelete:
			// Account lifecycle and removal are directory administration;
			// they ride on the department.manage grant.
			return boolScope(p.Department.Manage), nil
		}
	case GroupDepartment:
		switch action {
		case ActionManage:
			return boolScope(p.Department.Manage), nil
		case ActionEditHierarchy:
			return boolScope(p.Department.EditHierarchy), nil
		}
	}
	return ScopeNone, fmt.Errorf("%w: %s.%s", ErrInvalidPermissionQuery, group, action)
}

// GetPermission resolves the scope token the principal holds for an action.
// A principal without a position falls back to the personal baseline, never
// to an error: absence of a position is absence of grants, not of limits.
func GetPermission(p Principal, group Group, action Action) (Scope, error) {
	perms := personalBaseline
	if p.Position != nil {
		perms = p.Position.Permissions
	}
	token, err := perms.lookup(group, action)
	if err != nil {
		return ScopeNone, err
	}
	// Positionless and unassigned principals never see past their own
	// resources regardless of what any grant says.
	if p.Position == nil || p.Status == StatusUnassigned {
		token = capToOwn(group, action, token)
	}
	return token, nil
}

// capToOwn narrows a token to own-or-nothing for scope-limited principals.
func capToOwn(group Group, action Action, token Scope) Scope {
	switch token {
	case ScopeNone, ScopeOwn:
		return token
	case ScopeStandalone:
		// Standalone task creation is already personal.
		return token
	case ScopeAssignedProject, ScopeAnyProject:
		return ScopeStandalone
	case ScopeSubordinate, ScopeDepartment, ScopeAssigned:
		if group == GroupUser {
			return ScopeNone
		}
		return ScopeOwn
	case ScopeAll:
		// Boolean grants in the user and department groups are team
		// features; they do not apply to unassigned accounts.
		if group == GroupUser || group == GroupDepartment || action == ActionAssignUsers {
			return ScopeNone
		}
		if group == GroupProject && action == ActionCreate {
			return token
		}
		return ScopeOwn
	default:
		return ScopeOwn
	}
}
