package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"taskera.org/internal/tasks"
)

type taskStore struct {
	db *sql.DB
}

const taskColumns = `t.id, t.title, t.description, t.status, t.priority,
	coalesce(t.project_id,''), coalesce(t.parent_id,''), t.owner_id, t.creator_id,
	coalesce(t.department_id,''), t.due_at, t.created_at, t.updated_at`

func scanTask(row interface{ Scan(...any) error }) (*tasks.Task, error) {
	var t tasks.Task
	var status, priority string
	var due sql.NullTime
	err := row.Scan(&t.ID, &t.Title, &t.Description, &status, &priority,
		&t.ProjectID, &t.ParentID, &t.OwnerID, &t.CreatorID, &t.DepartmentID,
		&due, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.Status = tasks.TaskStatus(status)
	t.Priority = tasks.Priority(priority)
	if due.Valid {
		d := due.Time
		t.DueAt = &d
	}
	return &t, nil
}

func (st *taskStore) Create(ctx context.Context, t *tasks.Task) error {
	_, err := st.db.ExecContext(ctx, `
		insert into tasks(id, title, description, status, priority, project_id, parent_id,
			owner_id, creator_id, department_id, due_at, created_at, updated_at)
		values ($1, $2, $3, $4, $5, nullif($6,''), nullif($7,''), $8, $9, nullif($10,''), $11, now(), now())
	`, t.ID, t.Title, t.Description, string(t.Status), string(t.Priority),
		t.ProjectID, t.ParentID, t.OwnerID, t.CreatorID, t.DepartmentID, t.DueAt)
	if isForeignKeyViolation(err) {
		return tasks.ErrNotFound
	}
	return err
}

func (st *taskStore) Find(ctx context.Context, id string) (*tasks.Task, error) {
	t, err := scanTask(st.db.QueryRowContext(ctx,
		`select `+taskColumns+` from tasks t where t.id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, tasks.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if t.AssigneeIDs, err = st.assignees(ctx, id); err != nil {
		return nil, err
	}
	return t, nil
}

func (st *taskStore) assignees(ctx context.Context, taskID string) ([]string, error) {
	rows, err := st.db.QueryContext(ctx,
		`select user_id from task_assignees where task_id=$1 order by user_id`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func filterClauses(f tasks.TaskFilter, args *[]any) []string {
	var where []string
	arg := func(v any) string {
		*args = append(*args, v)
		return fmt.Sprintf("$%d", len(*args))
	}
	if f.Status != "" {
		where = append(where, "t.status = "+arg(string(f.Status)))
	}
	if f.Priority != "" {
		where = append(where, "t.priority = "+arg(string(f.Priority)))
	}
	if f.Search != "" {
		where = append(where, "lower(t.title) like "+arg("%"+strings.ToLower(f.Search)+"%"))
	}
	return where
}

func (st *taskStore) list(ctx context.Context, where []string, args []any) ([]*tasks.Task, error) {
	rows, err := st.db.QueryContext(ctx, `
		select `+taskColumns+`
		from tasks t
		where `+strings.Join(where, " and ")+`
		order by t.created_at desc
	`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*tasks.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (st *taskStore) ListByProject(ctx context.Context, projectID string, f tasks.TaskFilter) ([]*tasks.Task, error) {
	args := []any{projectID}
	where := append([]string{"t.project_id = $1"}, filterClauses(f, &args)...)
	return st.list(ctx, where, args)
}

// ListForUser covers the "my tasks" view: owned tasks plus explicit
// assignments, standalone tasks included.
func (st *taskStore) ListForUser(ctx context.Context, userID string, f tasks.TaskFilter) ([]*tasks.Task, error) {
	args := []any{userID}
	where := append([]string{
		"(t.owner_id = $1 or exists(select 1 from task_assignees ta where ta.task_id = t.id and ta.user_id = $1))",
	}, filterClauses(f, &args)...)
	return st.list(ctx, where, args)
}

func (st *taskStore) Update(ctx context.Context, t *tasks.Task) error {
	res, err := st.db.ExecContext(ctx, `
		update tasks
		set title=$2, description=$3, status=$4, priority=$5, owner_id=$6, due_at=$7, updated_at=now()
		where id=$1
	`, t.ID, t.Title, t.Description, string(t.Status), string(t.Priority), t.OwnerID, t.DueAt)
	if err != nil {
		return err
	}
	return oneRow(res, tasks.ErrNotFound)
}

func (st *taskStore) Delete(ctx context.Context, id string) error {
	res, err := st.db.ExecContext(ctx, `delete from tasks where id=$1`, id)
	if isForeignKeyViolation(err) {
		return tasks.ErrHasSubtasks
	}
	if err != nil {
		return err
	}
	return oneRow(res, tasks.ErrNotFound)
}

func (st *taskStore) CountSubtasks(ctx context.Context, id string) (int, error) {
	var n int
	err := st.db.QueryRowContext(ctx,
		`select count(*) from tasks where parent_id=$1`, id).Scan(&n)
	return n, err
}

func (st *taskStore) SetAssignees(ctx context.Context, taskID string, userIDs []string) error {
	tx, err := st.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`delete from task_assignees where task_id=$1`, taskID); err != nil {
		return err
	}
	for _, userID := range userIDs {
		if _, err := tx.ExecContext(ctx, `
			insert into task_assignees(task_id, user_id) values ($1, $2)
		`, taskID, userID); err != nil {
			if isForeignKeyViolation(err) {
				return tasks.ErrNotFound
			}
			return err
		}
	}
	return tx.Commit()
}

type commentStore struct {
	db *sql.DB
}

func (st *commentStore) Create(ctx context.Context, c *tasks.Comment) error {
	_, err := st.db.ExecContext(ctx, `
		insert into comments(id, task_id, author_id, body, created_at)
		values ($1, $2, $3, $4, $5)
	`, c.ID, c.TaskID, c.AuthorID, c.Body, c.CreatedAt)
	if isForeignKeyViolation(err) {
		return tasks.ErrNotFound
	}
	return err
}

func (st *commentStore) Find(ctx context.Context, id string) (*tasks.Comment, error) {
	var c tasks.Comment
	err := st.db.QueryRowContext(ctx, `
		select id, task_id, author_id, body, created_at from comments where id=$1
	`, id).Scan(&c.ID, &c.TaskID, &c.AuthorID, &c.Body, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, tasks.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (st *commentStore) ListByTask(ctx context.Context, taskID string) ([]*tasks.Comment, error) {
	rows, err := st.db.QueryContext(ctx, `
		select id, task_id, author_id, body, created_at
		from comments where task_id=$1 order by created_at
	`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*tasks.Comment
	for rows.Next() {
		var c tasks.Comment
		if err := rows.Scan(&c.ID, &c.TaskID, &c.AuthorID, &c.Body, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

func (st *commentStore) Update(ctx context.Context, c *tasks.Comment) error {
	res, err := st.db.ExecContext(ctx, `update comments set body=$2 where id=$1`, c.ID, c.Body)
	if err != nil {
		return err
	}
	return oneRow(res, tasks.ErrNotFound)
}

func (st *commentStore) Delete(ctx context.Context, id string) error {
	res, err := st.db.ExecContext(ctx, `delete from comments where id=$1`, id)
	if err != nil {
		return err
	}
	return oneRow(res, tasks.ErrNotFound)
}

type attachmentStore struct {
	db *sql.DB
}

const attachmentColumns = `id, task_id, uploader_id, file_name, content_type, size_bytes, created_at`

func scanAttachment(row interface{ Scan(...any) error }) (*tasks.Attachment, error) {
	var a tasks.Attachment
	err := row.Scan(&a.ID, &a.TaskID, &a.UploaderID, &a.FileName, &a.ContentType,
		&a.SizeBytes, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (st *attachmentStore) Create(ctx context.Context, a *tasks.Attachment) error {
	_, err := st.db.ExecContext(ctx, `
		insert into attachments(id, task_id, uploader_id, file_name, content_type, size_bytes, created_at)
		values ($1, $2, $3, $4, $5, $6, $7)
	`, a.ID, a.TaskID, a.UploaderID, a.FileName, a.ContentType, a.SizeBytes, a.CreatedAt)
	if isForeignKeyViolation(err) {
		return tasks.ErrNotFound
	}
	return err
}

func (st *attachmentStore) Find(ctx context.Context, id string) (*tasks.Attachment, error) {
	a, err := scanAttachment(st.db.QueryRowContext(ctx,
		`select `+attachmentColumns+` from attachments where id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, tasks.ErrNotFound
	}
	return a, err
}

func (st *attachmentStore) ListByTask(ctx context.Context, taskID string) ([]*tasks.Attachment, error) {
	rows, err := st.db.QueryContext(ctx,
		`select `+attachmentColumns+` from attachments where task_id=$1 order by created_at`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*tasks.Attachment
	for rows.Next() {
		a, err := scanAttachment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (st *attachmentStore) Delete(ctx context.Context, id string) error {
	res, err := st.db.ExecContext(ctx, `delete from attachments where id=$1`, id)
	if err != nil {
		return err
	}
	return oneRow(res, tasks.ErrNotFound)
}
