package authz

import "time"

// Department groups positions and users.
type Department struct {
	ID          string
	Name        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Position is a named role inside exactly one department. Level 1 is the
// highest authority; larger numbers rank lower.
type Position struct {
	ID           string
	Name         string
	Level        int
	DepartmentID string
	Permissions  Permissions
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Principal is the authenticated actor an authorization check runs for.
// It is rebuilt per request from verified token claims plus a fresh lookup
// of the user's current status, department and position; the token itself
// carries identity only.
type Principal struct {
	UserID       string
	Status       AccountStatus
	DepartmentID string
	Position     *Position
}

// Assigned reports whether the principal currently holds a position.
func (p Principal) Assigned() bool {
	return p.Position != nil
}

// Resource is the instance snapshot a predicate is evaluated against.
// OwnerID and CreatorID mirror the stored columns: ownership checks use
// OwnerID, CreatorID is immutable attribution only. DepartmentID is the
// department the resource belongs to (the creator's department for projects
// and tasks, the user's own department for user records). AssigneeIDs lists
// users linked through explicit assignment rows. Position is set for
// user-group resources so subordinate checks can compare levels.
type Resource struct {
	ID           string
	OwnerID      string
	CreatorID    string
	DepartmentID string
	AssigneeIDs  []string
	Position     *Position
}

func (r Resource) assignedTo(userID string) bool {
	for _, id := range r.AssigneeIDs {
		if id == userID {
			return true
		}
	}
	return false
}
