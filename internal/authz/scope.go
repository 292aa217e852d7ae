package authz

// Match is the predicate family a scope token resolves to.
type Match string

const (
	MatchNone        Match = "none"
	MatchOwn         Match = "own"
	MatchAssigned    Match = "assigned"
	MatchDepartment  Match = "department"
	MatchAll         Match = "all"
	MatchSubordinate Match = "subordinate"
)

// Predicate is a pure, storage-agnostic resource filter derived from a
// scope token. It evaluates single instances in memory via Matches; stores
// switch on Kind and render the equivalent WHERE clause from the carried
// ids. The resolver never fetches anything.
type Predicate struct {
	Kind Match

	// UserID is the principal, set for own and assigned predicates.
	UserID string
	// DepartmentID is set for department and subordinate predicates.
	DepartmentID string
	// Level is the principal's authority level, set for subordinate.
	Level int
}

// Matches evaluates the predicate against one resource snapshot.
func (p Predicate) Matches(r Resource) bool {
	switch p.Kind {
	case MatchAll:
		return true
	case MatchOwn:
		return r.OwnerID == p.UserID
	case MatchAssigned:
		return r.OwnerID == p.UserID || r.assignedTo(p.UserID)
	case MatchDepartment:
		return r.DepartmentID != "" && r.DepartmentID == p.DepartmentID
	case MatchSubordinate:
		return r.Position != nil &&
			IsSubordinate(*r.Position, Position{DepartmentID: p.DepartmentID, Level: p.Level})
	default:
		return false
	}
}

// ResolveScope translates a scope token into a predicate for the principal.
// A department token degrades to own when the principal has no department.
// Subordinate requires a position; without one it matches nothing.
func ResolveScope(p Principal, token Scope) Predicate {
	switch token {
	case ScopeAll:
		return Predicate{Kind: MatchAll}
	case ScopeOwn:
		return Predicate{Kind: MatchOwn, UserID: p.UserID}
	case ScopeAssigned:
		return Predicate{Kind: MatchAssigned, UserID: p.UserID}
	case ScopeDepartment:
		if p.DepartmentID == "" {
			return Predicate{Kind: MatchOwn, UserID: p.UserID}
		}
		return Predicate{Kind: MatchDepartment, DepartmentID: p.DepartmentID}
	case ScopeSubordinate:
		if p.Position == nil || p.DepartmentID == "" {
			return Predicate{Kind: MatchNone}
		}
		return Predicate{Kind: MatchSubordinate, DepartmentID: p.DepartmentID, Level: p.Position.Level}
	default:
		return Predicate{Kind: MatchNone}
	}
}
