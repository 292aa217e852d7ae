package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"taskera.org/internal/audit"
	"taskera.org/internal/authz"
	"taskera.org/internal/ids"
	"taskera.org/internal/obs"
)

// Service implements the project and task operations. Instance checks go
// through the engine with a resource snapshot; list reads resolve the
// caller's predicate once and push it into storage.
type Service struct {
	store Store
}

// NewService constructs a Service.
func NewService(store Store) (*Service, error) {
	if store == nil {
		return nil, errors.New("tasks store is required")
	}
	return &Service{store: store}, nil
}

func guard(p authz.Principal, group authz.Group, action authz.Action, res *authz.Resource) error {
	d, err := authz.Authorize(p, group, action, res)
	if err != nil {
		return err
	}
	outcome := "allow"
	if !d.Allowed {
		outcome = string(d.Reason)
	}
	obs.ObserveDecision(string(group), string(action), outcome)
	if !d.Allowed {
		return authz.Denied(d)
	}
	return nil
}

func projectResource(p *Project) *authz.Resource {
	return &authz.Resource{
		ID:           p.ID,
		OwnerID:      p.OwnerID,
		CreatorID:    p.CreatorID,
		DepartmentID: p.DepartmentID,
		AssigneeIDs:  p.MemberIDs,
	}
}

func taskResource(t *Task) *authz.Resource {
	return &authz.Resource{
		ID:           t.ID,
		OwnerID:      t.OwnerID,
		CreatorID:    t.CreatorID,
		DepartmentID: t.DepartmentID,
		AssigneeIDs:  t.AssigneeIDs,
	}
}

// Projects -------------------------------------------------------------------

// CreateProject creates a project owned by the actor. Unassigned accounts
// may create personal projects; the department anchor stays empty for them.
func (s *Service) CreateProject(ctx context.Context, actor authz.Principal, in CreateProjectInput) (*Project, error) {
	if err := guard(actor, authz.GroupProject, authz.ActionCreate, nil); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: project name is required", ErrInvalidInput)
	}
	p := &Project{
		ID:           ids.New(),
		Name:         name,
		Description:  strings.TrimSpace(in.Description),
		OwnerID:      actor.UserID,
		CreatorID:    actor.UserID,
		DepartmentID: actor.DepartmentID,
	}
	if err := s.store.Projects().Create(ctx, p); err != nil {
		return nil, err
	}
	_ = audit.LogEvent(ctx, "tasks.project.create", map[string]any{"project_id": p.ID})
	return p, nil
}

// GetProject returns a project the actor may view.
func (s *Service) GetProject(ctx context.Context, actor authz.Principal, id string) (*Project, error) {
	p, err := s.store.Projects().Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := guard(actor, authz.GroupProject, authz.ActionView, projectResource(p)); err != nil {
		return nil, err
	}
	return p, nil
}

// ListProjects returns the projects the actor's view scope admits.
func (s *Service) ListProjects(ctx context.Context, actor authz.Principal) ([]*Project, error) {
	pred, err := authz.ScopeFor(actor, authz.GroupProject, authz.ActionView)
	if err != nil {
		return nil, err
	}
	if pred.Kind == authz.MatchNone {
		return nil, nil
	}
	return s.store.Projects().List(ctx, pred)
}

// UpdateProject edits a project's name and description.
func (s *Service) UpdateProject(ctx context.Context, actor authz.Principal, id, name, description string) (*Project, error) {
	p, err := s.store.Projects().Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := guard(actor, authz.GroupProject, authz.ActionEdit, projectResource(p)); err != nil {
		return nil, err
	}
	if name = strings.TrimSpace(name); name != "" {
		p.Name = name
	}
	p.Description = strings.TrimSpace(description)
	if err := s.store.Projects().Update(ctx, p); err != nil {
		return nil, err
	}
	_ = audit.LogEvent(ctx, "tasks.project.update", map[string]any{"project_id": p.ID})
	return p, nil
}

// DeleteProject removes a project and, through storage cascade, its tasks.
func (s *Service) DeleteProject(ctx context.Context, actor authz.Principal, id string) error {
	p, err := s.store.Projects().Find(ctx, id)
	if err != nil {
		return err
	}
	if err := guard(actor, authz.GroupProject, authz.ActionDelete, projectResource(p)); err != nil {
		return err
	}
	if err := s.store.Projects().Delete(ctx, id); err != nil {
		return err
	}
	_ = audit.LogEvent(ctx, "tasks.project.delete", map[string]any{"project_id": id})
	return nil
}

// SetProjectMembers replaces a project's assignment rows. Requires the
// assignUsers grant and edit access to the project; every member must be an
// active account.
func (s *Service) SetProjectMembers(ctx context.Context, actor authz.Principal, projectID string, userIDs []string) error {
	p, err := s.store.Projects().Find(ctx, projectID)
	if err != nil {
		return err
	}
	res := projectResource(p)
	if err := guard(actor, authz.GroupProject, authz.ActionAssignUsers, res); err != nil {
		return err
	}
	if err := guard(actor, authz.GroupProject, authz.ActionEdit, res); err != nil {
		return err
	}
	userIDs = dedupe(userIDs)
	if err := s.checkEligible(ctx, userIDs); err != nil {
		return err
	}
	if err := s.store.Projects().SetMembers(ctx, projectID, userIDs); err != nil {
		return err
	}
	_ = audit.LogEvent(ctx, "tasks.project.members", map[string]any{
		"project_id": projectID,
		"members":    len(userIDs),
	})
	return nil
}

// ProjectStats summarizes a project's top-level tasks by workflow state,
// gated on view access to the project.
func (s *Service) ProjectStats(ctx context.Context, actor authz.Principal, projectID string) (*ProjectStats, error) {
	p, err := s.store.Projects().Find(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if err := guard(actor, authz.GroupProject, authz.ActionView, projectResource(p)); err != nil {
		return nil, err
	}
	list, err := s.store.Tasks().ListByProject(ctx, projectID, TaskFilter{})
	if err != nil {
		return nil, err
	}
	stats := &ProjectStats{ProjectID: projectID, ByStatus: map[TaskStatus]int{}}
	for _, t := range list {
		if t.ParentID != "" {
			continue
		}
		stats.TotalTasks++
		stats.ByStatus[t.Status]++
	}
	stats.CompletedTasks = stats.ByStatus[StatusDone]
	if stats.TotalTasks > 0 {
		stats.ProgressPercent = (stats.CompletedTasks*100 + stats.TotalTasks/2) / stats.TotalTasks
	}
	return stats, nil
}

// Tasks -----------------------------------------------------------------------

// CreateTask creates a task. The creation mode comes from the actor's
// task.create token: standalone tasks take no project, assigned_project
// requires membership or ownership of the target project, any_project is
// unrestricted. ParentID creates a subtask under the parent's project and is
// governed by createSubtask instead.
func (s *Service) CreateTask(ctx context.Context, actor authz.Principal, in CreateTaskInput) (*Task, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: task title is required", ErrInvalidInput)
	}
	priority := in.Priority
	if priority == "" {
		priority = PriorityMedium
	}
	if !ValidPriority(priority) {
		return nil, fmt.Errorf("%w: unknown priority %q", ErrInvalidInput, string(in.Priority))
	}

	projectID := in.ProjectID
	if in.ParentID != "" {
		parent, err := s.store.Tasks().Find(ctx, in.ParentID)
		if err != nil {
			return nil, err
		}
		if projectID != "" && projectID != parent.ProjectID {
			return nil, ErrProjectMismatch
		}
		projectID = parent.ProjectID
		if err := guard(actor, authz.GroupTask, authz.ActionCreateSubtask, taskResource(parent)); err != nil {
			return nil, err
		}
	} else if projectID != "" {
		project, err := s.store.Projects().Find(ctx, projectID)
		if err != nil {
			return nil, err
		}
		if err := guard(actor, authz.GroupTask, authz.ActionCreate, projectResource(project)); err != nil {
			return nil, err
		}
	} else {
		if err := guard(actor, authz.GroupTask, authz.ActionCreate, nil); err != nil {
			return nil, err
		}
	}

	t := &Task{
		ID:           ids.New(),
		Title:        title,
		Description:  strings.TrimSpace(in.Description),
		Status:       StatusTodo,
		Priority:     priority,
		ProjectID:    projectID,
		ParentID:     in.ParentID,
		OwnerID:      actor.UserID,
		CreatorID:    actor.UserID,
		DepartmentID: actor.DepartmentID,
		DueAt:        in.DueAt,
	}
	if err := s.store.Tasks().Create(ctx, t); err != nil {
		return nil, err
	}
	_ = audit.LogEvent(ctx, "tasks.task.create", map[string]any{"task_id": t.ID, "project_id": projectID})
	return t, nil
}

// GetTask returns a task the actor may see. Owners and assignees always see
// their tasks; everything else rides on view access to the enclosing
// project. Standalone tasks are visible to their owner and assignees only.
func (s *Service) GetTask(ctx context.Context, actor authz.Principal, id string) (*Task, error) {
	t, err := s.store.Tasks().Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkTaskVisible(ctx, actor, t); err != nil {
		return nil, err
	}
	return t, nil
}

// ListProjectTasks lists a project's tasks after a single view check on the
// project itself.
func (s *Service) ListProjectTasks(ctx context.Context, actor authz.Principal, projectID string, filter TaskFilter) ([]*Task, error) {
	p, err := s.store.Projects().Find(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if err := guard(actor, authz.GroupProject, authz.ActionView, projectResource(p)); err != nil {
		return nil, err
	}
	return s.store.Tasks().ListByProject(ctx, projectID, filter)
}

// ListMyTasks lists tasks the actor owns or is assigned to, standalone ones
// included.
func (s *Service) ListMyTasks(ctx context.Context, actor authz.Principal, filter TaskFilter) ([]*Task, error) {
	if actor.UserID == "" {
		return nil, authz.ErrUnauthenticated
	}
	if d := authz.CheckAccess(actor); !d.Allowed {
		return nil, authz.Denied(d)
	}
	return s.store.Tasks().ListForUser(ctx, actor.UserID, filter)
}

// UpdateTask edits task fields under the task.edit scope.
func (s *Service) UpdateTask(ctx context.Context, actor authz.Principal, id string, in UpdateTaskInput) (*Task, error) {
	t, err := s.store.Tasks().Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := guard(actor, authz.GroupTask, authz.ActionEdit, taskResource(t)); err != nil {
		return nil, err
	}
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return nil, fmt.Errorf("%w: task title is required", ErrInvalidInput)
		}
		t.Title = title
	}
	if in.Description != nil {
		t.Description = strings.TrimSpace(*in.Description)
	}
	if in.Priority != nil {
		if !ValidPriority(*in.Priority) {
			return nil, fmt.Errorf("%w: unknown priority %q", ErrInvalidInput, string(*in.Priority))
		}
		t.Priority = *in.Priority
	}
	if in.DueAt != nil {
		t.DueAt = in.DueAt
	}
	if err := s.store.Tasks().Update(ctx, t); err != nil {
		return nil, err
	}
	_ = audit.LogEvent(ctx, "tasks.task.update", map[string]any{"task_id": t.ID})
	return t, nil
}

// UpdateTaskStatus moves a task through the workflow. Assignees may always
// move tasks assigned to them; anyone else needs the task.edit scope.
func (s *Service) UpdateTaskStatus(ctx context.Context, actor authz.Principal, id string, status TaskStatus) (*Task, error) {
	if !ValidStatus(status) {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, string(status))
	}
	t, err := s.store.Tasks().Find(ctx, id)
	if err != nil {
		return nil, err
	}
	res := taskResource(t)
	assigned := authz.Predicate{Kind: authz.MatchAssigned, UserID: actor.UserID}
	if d := authz.CheckAccess(actor); !d.Allowed {
		return nil, authz.Denied(d)
	}
	if !assigned.Matches(*res) {
		if err := guard(actor, authz.GroupTask, authz.ActionEdit, res); err != nil {
			return nil, err
		}
	}
	t.Status = status
	if err := s.store.Tasks().Update(ctx, t); err != nil {
		return nil, err
	}
	_ = audit.LogEvent(ctx, "tasks.task.status", map[string]any{"task_id": t.ID, "status": string(status)})
	return t, nil
}

// DeleteTask removes a task under the task.delete scope. Tasks with
// subtasks must have those removed first.
func (s *Service) DeleteTask(ctx context.Context, actor authz.Principal, id string) error {
	t, err := s.store.Tasks().Find(ctx, id)
	if err != nil {
		return err
	}
	if err := guard(actor, authz.GroupTask, authz.ActionDelete, taskResource(t)); err != nil {
		return err
	}
	count, err := s.store.Tasks().CountSubtasks(ctx, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return ErrHasSubtasks
	}
	if err := s.store.Tasks().Delete(ctx, id); err != nil {
		return err
	}
	_ = audit.LogEvent(ctx, "tasks.task.delete", map[string]any{"task_id": id})
	return nil
}

// AssignTask replaces a task's assignment rows. Requires the assignUsers
// grant; every assignee must be an active account.
func (s *Service) AssignTask(ctx context.Context, actor authz.Principal, taskID string, userIDs []string) error {
	t, err := s.store.Tasks().Find(ctx, taskID)
	if err != nil {
		return err
	}
	if err := guard(actor, authz.GroupProject, authz.ActionAssignUsers, taskResource(t)); err != nil {
		return err
	}
	userIDs = dedupe(userIDs)
	if err := s.checkEligible(ctx, userIDs); err != nil {
		return err
	}
	if err := s.store.Tasks().SetAssignees(ctx, taskID, userIDs); err != nil {
		return err
	}
	_ = audit.LogEvent(ctx, "tasks.task.assign", map[string]any{
		"task_id":   taskID,
		"assignees": len(userIDs),
	})
	return nil
}

// Comments --------------------------------------------------------------------

// AddComment appends a comment to a task the actor may see.
func (s *Service) AddComment(ctx context.Context, actor authz.Principal, taskID, body string) (*Comment, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, fmt.Errorf("%w: comment body is required", ErrInvalidInput)
	}
	t, err := s.store.Tasks().Find(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if err := s.checkTaskVisible(ctx, actor, t); err != nil {
		return nil, err
	}
	c := &Comment{
		ID:        ids.New(),
		TaskID:    taskID,
		AuthorID:  actor.UserID,
		Body:      body,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.Comments().Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// ListComments returns a task's comments, gated on task visibility.
func (s *Service) ListComments(ctx context.Context, actor authz.Principal, taskID string) ([]*Comment, error) {
	t, err := s.store.Tasks().Find(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if err := s.checkTaskVisible(ctx, actor, t); err != nil {
		return nil, err
	}
	return s.store.Comments().ListByTask(ctx, taskID)
}

// UpdateComment rewrites a comment's body. The author may edit their own
// comment; anyone else needs the task.edit scope on the enclosing task.
func (s *Service) UpdateComment(ctx context.Context, actor authz.Principal, commentID, body string) (*Comment, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, fmt.Errorf("%w: comment body is required", ErrInvalidInput)
	}
	c, err := s.store.Comments().Find(ctx, commentID)
	if err != nil {
		return nil, err
	}
	if err := s.checkCommentAccess(ctx, actor, c); err != nil {
		return nil, err
	}
	c.Body = body
	if err := s.store.Comments().Update(ctx, c); err != nil {
		return nil, err
	}
	_ = audit.LogEvent(ctx, "tasks.comment.update", map[string]any{"task_id": c.TaskID, "comment_id": c.ID})
	return c, nil
}

// DeleteComment removes a comment under the same rule as UpdateComment.
func (s *Service) DeleteComment(ctx context.Context, actor authz.Principal, commentID string) error {
	c, err := s.store.Comments().Find(ctx, commentID)
	if err != nil {
		return err
	}
	if err := s.checkCommentAccess(ctx, actor, c); err != nil {
		return err
	}
	if err := s.store.Comments().Delete(ctx, commentID); err != nil {
		return err
	}
	_ = audit.LogEvent(ctx, "tasks.comment.delete", map[string]any{"task_id": c.TaskID, "comment_id": commentID})
	return nil
}

// checkCommentAccess admits the author past the status gate alone; other
// actors go through the task.edit guard.
func (s *Service) checkCommentAccess(ctx context.Context, actor authz.Principal, c *Comment) error {
	if actor.UserID == "" {
		return authz.ErrUnauthenticated
	}
	if c.AuthorID == actor.UserID {
		if d := authz.CheckAccess(actor); !d.Allowed {
			return authz.Denied(d)
		}
		return nil
	}
	t, err := s.store.Tasks().Find(ctx, c.TaskID)
	if err != nil {
		return err
	}
	return guard(actor, authz.GroupTask, authz.ActionEdit, taskResource(t))
}

// Attachments -----------------------------------------------------------------

const maxAttachmentBytes = 25 << 20

// AddAttachment records attachment metadata on a task the actor may see.
// The file bytes are stored out of band.
func (s *Service) AddAttachment(ctx context.Context, actor authz.Principal, taskID string, in AttachmentInput) (*Attachment, error) {
	name := strings.TrimSpace(in.FileName)
	if name == "" {
		return nil, fmt.Errorf("%w: file name is required", ErrInvalidInput)
	}
	if in.SizeBytes <= 0 || in.SizeBytes > maxAttachmentBytes {
		return nil, fmt.Errorf("%w: attachment size must be between 1 and %d bytes", ErrInvalidInput, maxAttachmentBytes)
	}
	t, err := s.store.Tasks().Find(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if err := s.checkTaskVisible(ctx, actor, t); err != nil {
		return nil, err
	}
	a := &Attachment{
		ID:          ids.New(),
		TaskID:      taskID,
		UploaderID:  actor.UserID,
		FileName:    name,
		ContentType: strings.TrimSpace(in.ContentType),
		SizeBytes:   in.SizeBytes,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.store.Attachments().Create(ctx, a); err != nil {
		return nil, err
	}
	_ = audit.LogEvent(ctx, "tasks.attachment.add", map[string]any{"task_id": taskID, "attachment_id": a.ID})
	return a, nil
}

// ListAttachments returns a task's attachment metadata, gated on task
// visibility.
func (s *Service) ListAttachments(ctx context.Context, actor authz.Principal, taskID string) ([]*Attachment, error) {
	t, err := s.store.Tasks().Find(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if err := s.checkTaskVisible(ctx, actor, t); err != nil {
		return nil, err
	}
	return s.store.Attachments().ListByTask(ctx, taskID)
}

// DeleteAttachment removes attachment metadata. The uploader may remove
// their own attachment; anyone else needs the task.edit scope.
func (s *Service) DeleteAttachment(ctx context.Context, actor authz.Principal, attachmentID string) error {
	a, err := s.store.Attachments().Find(ctx, attachmentID)
	if err != nil {
		return err
	}
	t, err := s.store.Tasks().Find(ctx, a.TaskID)
	if err != nil {
		return err
	}
	if a.UploaderID == actor.UserID {
		if d := authz.CheckAccess(actor); !d.Allowed {
			return authz.Denied(d)
		}
	} else if err := guard(actor, authz.GroupTask, authz.ActionEdit, taskResource(t)); err != nil {
		return err
	}
	if err := s.store.Attachments().Delete(ctx, attachmentID); err != nil {
		return err
	}
	_ = audit.LogEvent(ctx, "tasks.attachment.delete", map[string]any{"task_id": a.TaskID, "attachment_id": attachmentID})
	return nil
}

// checkTaskVisible applies the task visibility rule: owner or assignee
// always, otherwise view access to the enclosing project.
func (s *Service) checkTaskVisible(ctx context.Context, actor authz.Principal, t *Task) error {
	if actor.UserID == "" {
		return authz.ErrUnauthenticated
	}
	if d := authz.CheckAccess(actor); !d.Allowed {
		return authz.Denied(d)
	}
	assigned := authz.Predicate{Kind: authz.MatchAssigned, UserID: actor.UserID}
	if assigned.Matches(*taskResource(t)) {
		return nil
	}
	if t.Standalone() {
		return authz.Denied(authz.Decision{Reason: authz.DenyOutOfScope})
	}
	p, err := s.store.Projects().Find(ctx, t.ProjectID)
	if err != nil {
		return err
	}
	return guard(actor, authz.GroupProject, authz.ActionView, projectResource(p))
}

// checkEligible verifies every user id resolves to an active account.
func (s *Service) checkEligible(ctx context.Context, userIDs []string) error {
	for _, id := range userIDs {
		m, err := s.store.Members().Member(ctx, id)
		if err != nil {
			return err
		}
		if m.Status != authz.StatusActive {
			return fmt.Errorf("%w: %s", ErrAssigneeNotEligible, id)
		}
	}
	return nil
}

func dedupe(list []string) []string {
	seen := make(map[string]struct{}, len(list))
	out := list[:0]
	for _, id := range list {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
