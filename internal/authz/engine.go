package authz

// DenyReason classifies why a decision came back negative, so callers can
// render a specific message without leaking unrelated resource data.
type DenyReason string

const (
	DenyAccountStatus    DenyReason = "account_status"
	DenySelfModification DenyReason = "self_modification"
	DenyNoPermission     DenyReason = "no_permission"
	DenyOutOfScope       DenyReason = "out_of_scope"
)

// Decision is an authorization outcome. Denial is data, not an error: the
// zero Reason means allowed. Status is set for account-status denials so
// the boundary can tell a pending account from a suspended one.
type Decision struct {
	Allowed bool
	Reason  DenyReason
	Status  AccountStatus
}

func allow() Decision {
	return Decision{Allowed: true}
}

func deny(reason DenyReason) Decision {
	return Decision{Reason: reason}
}

func denyStatus(status AccountStatus) Decision {
	return Decision{Reason: DenyAccountStatus, Status: status}
}

// Authorize decides whether the principal may perform action on a specific
// resource instance. The order is fixed: status gate, self-modification
// guard, permission lookup, scope evaluation. Errors are reserved for
// malformed queries and missing principals; a well-formed "no" is a
// Decision, never an error.
//
// res may be nil for actions that have no target instance (creating a
// standalone task or a project, inviting a user); for those the stored
// token alone decides.
func Authorize(p Principal, group Group, action Action, res *Resource) (Decision, error) {
	if p.UserID == "" {
		return Decision{}, ErrUnauthenticated
	}

	if d := CheckAccess(p); !d.Allowed {
		return d, nil
	}

	// Hard exceptions: nobody drives their own account lifecycle or
	// removes their own record, whatever their grants say.
	if group == GroupUser && (action == ActionUpdateStatus || action == ActionDelete) &&
		res != nil && res.ID == p.UserID {
		return deny(DenySelfModification), nil
	}

	token, err := GetPermission(p, group, action)
	if err != nil {
		return Decision{}, err
	}
	if token == ScopeNone {
		return deny(DenyNoPermission), nil
	}

	if group == GroupTask && action == ActionCreate {
		return authorizeTaskCreate(p, token, res), nil
	}

	if res == nil {
		// Token granted and no instance to evaluate against.
		return allow(), nil
	}

	if ResolveScope(p, token).Matches(*res) {
		return allow(), nil
	}
	return deny(DenyOutOfScope), nil
}

// authorizeTaskCreate applies the task creation modes. The resource, when
// present, is the project the task is being placed into.
func authorizeTaskCreate(p Principal, token Scope, project *Resource) Decision {
	switch token {
	case ScopeStandalone:
		if project == nil {
			return allow()
		}
		return deny(DenyOutOfScope)
	case ScopeAssignedProject:
		if project == nil {
			return deny(DenyOutOfScope)
		}
		if project.OwnerID == p.UserID || project.assignedTo(p.UserID) {
			return allow()
		}
		return deny(DenyOutOfScope)
	case ScopeAnyProject:
		return allow()
	default:
		return deny(DenyNoPermission)
	}
}

// ScopeFor answers the collection-style question: which subset of a resource
// group may the principal touch with this action. It returns the predicate
// for the caller to apply at the storage layer. A MatchNone predicate means
// the caller can skip the query entirely. Status-gated principals get the
// denial itself, so callers surface the remediation instead of an empty
// list.
func ScopeFor(p Principal, group Group, action Action) (Predicate, error) {
	if p.UserID == "" {
		return Predicate{}, ErrUnauthenticated
	}
	if d := CheckAccess(p); !d.Allowed {
		return Predicate{}, Denied(d)
	}
	token, err := GetPermission(p, group, action)
	if err != nil {
		return Predicate{}, err
	}
	return ResolveScope(p, token), nil
}
