package authz

import "testing"

func activePrincipal() Principal {
	return Principal{
		UserID:       "u1",
		Status:       StatusActive,
		DepartmentID: "d1",
		Position:     &Position{ID: "pos1", Level: 2, DepartmentID: "d1"},
	}
}

func TestResolveScopeAllMatchesEverything(t *testing.T) {
	pred := ResolveScope(activePrincipal(), ScopeAll)
	resources := []Resource{
		{ID: "r1", OwnerID: "u1"},
		{ID: "r2", OwnerID: "someone-else"},
		{ID: "r3", DepartmentID: "other-dept"},
	}
	for _, r := range resources {
		if !pred.Matches(r) {
			t.Fatalf("all predicate rejected %s", r.ID)
		}
	}
}

func TestResolveScopeNoneMatchesNothing(t *testing.T) {
	pred := ResolveScope(activePrincipal(), ScopeNone)
	if pred.Kind != MatchNone {
		t.Fatalf("kind = %s", pred.Kind)
	}
	if pred.Matches(Resource{ID: "r1", OwnerID: "u1"}) {
		t.Fatal("none predicate matched an owned resource")
	}
}

func TestResolveScopeOwn(t *testing.T) {
	pred := ResolveScope(activePrincipal(), ScopeOwn)
	if !pred.Matches(Resource{ID: "r1", OwnerID: "u1"}) {
		t.Fatal("own predicate rejected owned resource")
	}
	if pred.Matches(Resource{ID: "r2", OwnerID: "u2", CreatorID: "u1"}) {
		t.Fatal("own must compare OwnerID, not CreatorID")
	}
}

func TestResolveScopeAssigned(t *testing.T) {
	pred := ResolveScope(activePrincipal(), ScopeAssigned)
	if !pred.Matches(Resource{ID: "r1", OwnerID: "u1"}) {
		t.Fatal("assigned predicate must include owned resources")
	}
	if !pred.Matches(Resource{ID: "r2", OwnerID: "u2", AssigneeIDs: []string{"u3", "u1"}}) {
		t.Fatal("assigned predicate rejected an assignment")
	}
	if pred.Matches(Resource{ID: "r3", OwnerID: "u2", AssigneeIDs: []string{"u3"}}) {
		t.Fatal("assigned predicate matched unrelated resource")
	}
}

func TestResolveScopeDepartment(t *testing.T) {
	pred := ResolveScope(activePrincipal(), ScopeDepartment)
	if !pred.Matches(Resource{ID: "r1", OwnerID: "u2", DepartmentID: "d1"}) {
		t.Fatal("department predicate rejected same-department resource")
	}
	if pred.Matches(Resource{ID: "r2", OwnerID: "u2", DepartmentID: "d2"}) {
		t.Fatal("department predicate matched foreign department")
	}
	if pred.Matches(Resource{ID: "r3", OwnerID: "u2"}) {
		t.Fatal("department predicate matched department-less resource")
	}
}

func TestDepartmentScopeDegradesToOwnWithoutDepartment(t *testing.T) {
	p := activePrincipal()
	p.DepartmentID = ""
	pred := ResolveScope(p, ScopeDepartment)
	if pred.Kind != MatchOwn {
		t.Fatalf("kind = %s, want own", pred.Kind)
	}
	if !pred.Matches(Resource{ID: "r1", OwnerID: "u1"}) {
		t.Fatal("degraded predicate rejected owned resource")
	}
}

func TestResolveScopeSubordinate(t *testing.T) {
	pred := ResolveScope(activePrincipal(), ScopeSubordinate)

	below := Resource{ID: "u3", Position: &Position{DepartmentID: "d1", Level: 3}}
	above := Resource{ID: "u0", Position: &Position{DepartmentID: "d1", Level: 1}}
	peer := Resource{ID: "u4", Position: &Position{DepartmentID: "d1", Level: 2}}
	elsewhere := Resource{ID: "u5", Position: &Position{DepartmentID: "d9", Level: 3}}

	if !pred.Matches(below) {
		t.Fatal("lower-authority same-department user must match")
	}
	if pred.Matches(above) {
		t.Fatal("higher-authority user matched")
	}
	if pred.Matches(peer) {
		t.Fatal("same-level user matched")
	}
	if pred.Matches(elsewhere) {
		t.Fatal("other-department user matched")
	}
}

func TestSubordinateWithoutPositionMatchesNothing(t *testing.T) {
	p := activePrincipal()
	p.Position = nil
	pred := ResolveScope(p, ScopeSubordinate)
	if pred.Kind != MatchNone {
		t.Fatalf("kind = %s, want none", pred.Kind)
	}
}

func TestIsSubordinate(t *testing.T) {
	lead := Position{ID: "a", DepartmentID: "d1", Level: 1}
	worker := Position{ID: "b", DepartmentID: "d1", Level: 3}
	foreign := Position{ID: "c", DepartmentID: "d2", Level: 3}

	if !IsSubordinate(worker, lead) {
		t.Fatal("worker should be subordinate to lead")
	}
	if IsSubordinate(lead, worker) {
		t.Fatal("subordination is not symmetric")
	}
	if IsSubordinate(worker, worker) {
		t.Fatal("a position is not its own subordinate")
	}
	if IsSubordinate(foreign, lead) {
		t.Fatal("subordination never crosses departments")
	}
	if !SameDepartment(worker, lead) || SameDepartment(worker, foreign) {
		t.Fatal("SameDepartment comparison wrong")
	}
}
