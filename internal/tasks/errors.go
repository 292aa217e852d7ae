package tasks

import "errors"

var (
	ErrNotFound     = errors.New("tasks: not found")
	ErrInvalidInput = errors.New("tasks: invalid input")

	// ErrProjectMismatch reports a subtask parent in a different project
	// than the one requested.
	ErrProjectMismatch = errors.New("tasks: parent task belongs to a different project")
	// ErrAssigneeNotEligible reports an assignment target that is not an
	// active account.
	ErrAssigneeNotEligible = errors.New("tasks: assignee is not an active account")
	// ErrHasSubtasks blocks deleting a task that still has subtasks.
	ErrHasSubtasks = errors.New("tasks: task has subtasks")
)
