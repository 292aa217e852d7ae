package org

import (
	"time"

	"taskera.org/internal/authz"
)

// DepartmentSummary is a department with assignment counts, the shape the
// admin screens list.
type DepartmentSummary struct {
	authz.Department
	UserCount     int
	PositionCount int
}

// PositionSummary is a position with its user count.
type PositionSummary struct {
	authz.Position
	UserCount int
}

// UserFilter narrows directory listings.
type UserFilter struct {
	Status       authz.AccountStatus
	DepartmentID string
	Search       string
}

// RequestStatus is the review state of an access request.
type RequestStatus string

const (
	RequestPending        RequestStatus = "PENDING"
	RequestApproved       RequestStatus = "APPROVED"
	RequestRejected       RequestStatus = "REJECTED"
	RequestMoreInfoNeeded RequestStatus = "MORE_INFO_NEEDED"
)

// AccessRequest is an unassigned user's application to join a department.
// Approval is the normal path from UNASSIGNED to ACTIVE: the reviewer picks
// a position and the approval performs the assignment.
type AccessRequest struct {
	ID             string
	UserID         string
	DepartmentID   string
	Reason         string
	SupervisorName string
	Status         RequestStatus
	ReviewNotes    string
	ReviewedBy     string
	ReviewedAt     *time.Time
	CreatedAt      time.Time
}
