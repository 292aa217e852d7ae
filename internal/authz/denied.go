package authz

import "fmt"

// DeniedError carries a deny Decision across boundaries that can only
// return an error. Authorize returns the Decision as data; ScopeFor and
// the services wrap it when their signature has no room for a Decision
// value.
type DeniedError struct {
	Decision Decision
}

func (e *DeniedError) Error() string {
	if e.Decision.Reason == DenyAccountStatus {
		return fmt.Sprintf("denied: account %s", e.Decision.Status)
	}
	return fmt.Sprintf("denied: %s", e.Decision.Reason)
}

// Denied wraps a deny decision as an error. Passing an allowed decision is
// a programming error; callers check Allowed first.
func Denied(d Decision) error {
	return &DeniedError{Decision: d}
}
