package authz

// personalBaseline is what a principal without a position resolves grants
// against: personal projects and tasks only, no visibility into anyone
// else. Used for unassigned accounts and position lookup misses.
var personalBaseline = Permissions{
	Project: ProjectPermissions{
		Create: true,
		Delete: ScopeOwn,
		Edit:   ScopeOwn,
		View:   ScopeOwn,
	},
	Task: TaskPermissions{
		Create:        ScopeStandalone,
		Delete:        ScopeOwn,
		Edit:          ScopeOwn,
		CreateSubtask: ScopeOwn,
	},
}

// MemberPermissions is the default grant seeded for a regular team-member
// position: full control over own work, read access across the team.
func MemberPermissions() Permissions {
	return Permissions{
		Project: ProjectPermissions{
			Create:      true,
			Delete:      ScopeOwn,
			Edit:        ScopeOwn,
			View:        ScopeAll,
			AssignUsers: true,
		},
		Task: TaskPermissions{
			Create:        ScopeAnyProject,
			Delete:        ScopeOwn,
			Edit:          ScopeOwn,
			CreateSubtask: ScopeOwn,
		},
		User: UserPermissions{
			Invite:      true,
			ViewDetails: ScopeAll,
		},
	}
}

// ManagerPermissions is the default grant for a department lead: department
// breadth over projects and tasks, subordinate visibility over users.
func ManagerPermissions() Permissions {
	return Permissions{
		Project: ProjectPermissions{
			Create:      true,
			Delete:      ScopeDepartment,
			Edit:        ScopeDepartment,
			View:        ScopeAll,
			AssignUsers: true,
		},
		Task: TaskPermissions{
			Create:        ScopeAnyProject,
			Delete:        ScopeDepartment,
			Edit:          ScopeDepartment,
			CreateSubtask: ScopeAssigned,
		},
		User: UserPermissions{
			Invite:      true,
			Edit:        ScopeSubordinate,
			ViewDetails: ScopeDepartment,
		},
	}
}

// DefaultPermissions picks the preset for a new position by authority
// level: leads (level 1 and 2) get the manager grant, everyone else the
// member grant.
func DefaultPermissions(level int) Permissions {
	if level <= 2 {
		return ManagerPermissions()
	}
	return MemberPermissions()
}

// AdminPermissions is the full grant seeded for the system administrator
// position.
func AdminPermissions() Permissions {
	return Permissions{
		Project: ProjectPermissions{
			Create:      true,
			Delete:      ScopeAll,
			Edit:        ScopeAll,
			View:        ScopeAll,
			AssignUsers: true,
		},
		Task: TaskPermissions{
			Create:        ScopeAnyProject,
			Delete:        ScopeAll,
			Edit:          ScopeAll,
			CreateSubtask: ScopeAssigned,
		},
		User: UserPermissions{
			Invite:      true,
			Edit:        ScopeAll,
			ViewDetails: ScopeAll,
		},
		Department: DepartmentPermissions{
			Manage:        true,
			EditHierarchy: true,
		},
	}
}
