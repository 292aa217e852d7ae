package authz

// SameDepartment reports whether two positions belong to the same department.
func SameDepartment(a, b Position) bool {
	return a.DepartmentID != "" && a.DepartmentID == b.DepartmentID
}

// IsSubordinate reports whether position a is subordinate to position b:
// same department and a strictly lower authority (larger level number).
// There is no tree walk; authority is a flat level comparison inside one
// department.
func IsSubordinate(a, b Position) bool {
	return SameDepartment(a, b) && a.Level > b.Level
}
