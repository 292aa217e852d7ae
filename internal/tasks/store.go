package tasks

import (
	"context"

	"taskera.org/internal/authz"
)

// ProjectStore persists projects and their membership rows.
type ProjectStore interface {
	Create(ctx context.Context, p *Project) error
	Find(ctx context.Context, id string) (*Project, error)
	// List returns the projects the predicate admits, already filtered in
	// storage.
	List(ctx context.Context, pred authz.Predicate) ([]*Project, error)
	Update(ctx context.Context, p *Project) error
	Delete(ctx context.Context, id string) error
	// SetMembers replaces the project's assignment rows.
	SetMembers(ctx context.Context, projectID string, userIDs []string) error
}

// TaskStore persists tasks and their assignment rows.
type TaskStore interface {
	Create(ctx context.Context, t *Task) error
	Find(ctx context.Context, id string) (*Task, error)
	// ListByProject returns a project's tasks matching the filter.
	ListByProject(ctx context.Context, projectID string, filter TaskFilter) ([]*Task, error)
	// ListForUser returns tasks the user owns or is assigned to, including
	// standalone tasks.
	ListForUser(ctx context.Context, userID string, filter TaskFilter) ([]*Task, error)
	Update(ctx context.Context, t *Task) error
	Delete(ctx context.Context, id string) error
	CountSubtasks(ctx context.Context, id string) (int, error)
	// SetAssignees replaces the task's assignment rows.
	SetAssignees(ctx context.Context, taskID string, userIDs []string) error
}

// CommentStore persists task comments.
type CommentStore interface {
	Create(ctx context.Context, c *Comment) error
	Find(ctx context.Context, id string) (*Comment, error)
	ListByTask(ctx context.Context, taskID string) ([]*Comment, error)
	Update(ctx context.Context, c *Comment) error
	Delete(ctx context.Context, id string) error
}

// AttachmentStore persists attachment metadata.
type AttachmentStore interface {
	Create(ctx context.Context, a *Attachment) error
	Find(ctx context.Context, id string) (*Attachment, error)
	ListByTask(ctx context.Context, taskID string) ([]*Attachment, error)
	Delete(ctx context.Context, id string) error
}

// Member is the slice of a user record assignment validation needs.
type Member struct {
	ID           string
	DepartmentID string
	Status       authz.AccountStatus
}

// MemberDirectory resolves users for assignment validation.
type MemberDirectory interface {
	Member(ctx context.Context, userID string) (Member, error)
}

// Store bundles task-domain persistence.
type Store interface {
	Projects() ProjectStore
	Tasks() TaskStore
	Comments() CommentStore
	Attachments() AttachmentStore
	Members() MemberDirectory
}
