package authz

import (
	"fmt"
	"strings"
)

// AccountStatus is the lifecycle state of a user account. Exactly one value
// holds at any time; only Active and Unassigned principals get past the
// status gate.
type AccountStatus string

const (
	StatusPendingVerification AccountStatus = "PENDING_VERIFICATION"
	StatusUnassigned          AccountStatus = "UNASSIGNED"
	StatusActive              AccountStatus = "ACTIVE"
	StatusSuspended           AccountStatus = "SUSPENDED"
	StatusArchived            AccountStatus = "ARCHIVED"
)

// ParseAccountStatus validates a stored or submitted status value.
func ParseAccountStatus(raw string) (AccountStatus, error) {
	switch AccountStatus(strings.ToUpper(strings.TrimSpace(raw))) {
	case StatusPendingVerification:
		return StatusPendingVerification, nil
	case StatusUnassigned:
		return StatusUnassigned, nil
	case StatusActive:
		return StatusActive, nil
	case StatusSuspended:
		return StatusSuspended, nil
	case StatusArchived:
		return StatusArchived, nil
	default:
		return "", fmt.Errorf("%w: unknown account status %q", ErrInvalidInput, raw)
	}
}

// transitions lists the legal forward edges of the account lifecycle.
// Archived is terminal and reachable from every other state.
var transitions = map[AccountStatus][]AccountStatus{
	StatusPendingVerification: {StatusUnassigned, StatusArchived},
	StatusUnassigned:          {StatusActive, StatusArchived},
	StatusActive:              {StatusSuspended, StatusArchived},
	StatusSuspended:           {StatusActive, StatusArchived},
	StatusArchived:            {},
}

// CanTransition reports whether from -> to is a legal lifecycle transition.
func CanTransition(from, to AccountStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CheckAccess is the account status gate: it decides whether the principal
// may act at all, before any permission is consulted. Unassigned accounts
// pass the gate but are scope-capped downstream; everything except Active
// and Unassigned is denied with a status-specific reason.
func CheckAccess(p Principal) Decision {
	switch p.Status {
	case StatusActive, StatusUnassigned:
		return allow()
	case StatusPendingVerification, StatusSuspended, StatusArchived:
		return denyStatus(p.Status)
	default:
		// Unknown stored status is treated like a suspension: locked out
		// until an administrator repairs the record.
		return denyStatus(p.Status)
	}
}
