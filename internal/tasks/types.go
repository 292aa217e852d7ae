package tasks

import "time"

// TaskStatus is the workflow state of a task.
type TaskStatus string

const (
	StatusTodo       TaskStatus = "TODO"
	StatusInProgress TaskStatus = "IN_PROGRESS"
	StatusInReview   TaskStatus = "IN_REVIEW"
	StatusDone       TaskStatus = "DONE"
)

// ValidStatus reports whether s is a known workflow state.
func ValidStatus(s TaskStatus) bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusInReview, StatusDone:
		return true
	}
	return false
}

// Priority orders tasks within a view.
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
	PriorityUrgent Priority = "URGENT"
)

// ValidPriority reports whether p is a known priority.
func ValidPriority(p Priority) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Project is a container for tasks. OwnerID is the current owner and is what
// "own" scopes compare against; CreatorID is immutable attribution.
// DepartmentID is the creator's department at creation time and anchors
// department scopes. MemberIDs are explicit assignment rows.
type Project struct {
	ID           string
	Name         string
	Description  string
	OwnerID      string
	CreatorID    string
	DepartmentID string
	MemberIDs    []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Task is a unit of work. ProjectID is empty for standalone personal tasks.
// ParentID is set for subtasks and points at a task in the same project.
type Task struct {
	ID           string
	Title        string
	Description  string
	Status       TaskStatus
	Priority     Priority
	ProjectID    string
	ParentID     string
	OwnerID      string
	CreatorID    string
	DepartmentID string
	AssigneeIDs  []string
	DueAt        *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Standalone reports whether the task lives outside any project.
func (t *Task) Standalone() bool {
	return t.ProjectID == ""
}

// Comment is a note on a task.
type Comment struct {
	ID        string
	TaskID    string
	AuthorID  string
	Body      string
	CreatedAt time.Time
}

// Attachment is file metadata hung off a task. Bytes live elsewhere; this
// records what was attached and by whom.
type Attachment struct {
	ID          string
	TaskID      string
	UploaderID  string
	FileName    string
	ContentType string
	SizeBytes   int64
	CreatedAt   time.Time
}

// AttachmentInput is the request shape for registering an attachment.
type AttachmentInput struct {
	FileName    string
	ContentType string
	SizeBytes   int64
}

// ProjectStats aggregates a project's top-level tasks. Subtasks are left
// out of the counts; ByStatus holds one bucket per workflow state present.
type ProjectStats struct {
	ProjectID       string
	TotalTasks      int
	CompletedTasks  int
	ProgressPercent int
	ByStatus        map[TaskStatus]int
}

// TaskFilter narrows task listings.
type TaskFilter struct {
	ProjectID string
	Status    TaskStatus
	Priority  Priority
	Search    string
}

// CreateProjectInput is the request shape for a new project.
type CreateProjectInput struct {
	Name        string
	Description string
}

// CreateTaskInput is the request shape for a new task. An empty ProjectID
// creates a standalone task; ParentID creates a subtask under an existing
// task.
type CreateTaskInput struct {
	Title       string
	Description string
	Priority    Priority
	ProjectID   string
	ParentID    string
	DueAt       *time.Time
}

// UpdateTaskInput carries the editable task fields. Nil pointers leave the
// field unchanged.
type UpdateTaskInput struct {
	Title       *string
	Description *string
	Priority    *Priority
	DueAt       *time.Time
}
