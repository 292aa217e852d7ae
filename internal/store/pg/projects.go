package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"taskera.org/internal/authz"
	"taskera.org/internal/tasks"
)

type projectStore struct {
	db *sql.DB
}

func (st *projectStore) Create(ctx context.Context, p *tasks.Project) error {
	_, err := st.db.ExecContext(ctx, `
		insert into projects(id, name, description, owner_id, creator_id, department_id, created_at, updated_at)
		values ($1, $2, $3, $4, $5, nullif($6,''), now(), now())
	`, p.ID, p.Name, p.Description, p.OwnerID, p.CreatorID, p.DepartmentID)
	if isForeignKeyViolation(err) {
		return tasks.ErrNotFound
	}
	return err
}

func (st *projectStore) Find(ctx context.Context, id string) (*tasks.Project, error) {
	var p tasks.Project
	err := st.db.QueryRowContext(ctx, `
		select id, name, description, owner_id, creator_id, coalesce(department_id,''), created_at, updated_at
		from projects where id=$1
	`, id).Scan(&p.ID, &p.Name, &p.Description, &p.OwnerID, &p.CreatorID, &p.DepartmentID,
		&p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, tasks.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if p.MemberIDs, err = st.members(ctx, id); err != nil {
		return nil, err
	}
	return &p, nil
}

func (st *projectStore) members(ctx context.Context, projectID string) ([]string, error) {
	rows, err := st.db.QueryContext(ctx,
		`select user_id from project_members where project_id=$1 order by user_id`, projectID)
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

// List applies the caller's view predicate in SQL. Assigned scope joins the
// membership rows; the other kinds are plain column comparisons.
func (st *projectStore) List(ctx context.Context, pred authz.Predicate) ([]*tasks.Project, error) {
	where := "true"
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	switch pred.Kind {
	case authz.MatchAll:
	case authz.MatchOwn:
		where = "p.owner_id = " + arg(pred.UserID)
	case authz.MatchAssigned:
		n := arg(pred.UserID)
		where = "(p.owner_id = " + n +
			" or exists(select 1 from project_members pm where pm.project_id = p.id and pm.user_id = " + n + "))"
	case authz.MatchDepartment:
		where = "p.department_id = " + arg(pred.DepartmentID)
	default:
		return nil, nil
	}

	rows, err := st.db.QueryContext(ctx, `
		select p.id, p.name, p.description, p.owner_id, p.creator_id, coalesce(p.department_id,''), p.created_at, p.updated_at
		from projects p
		where `+where+`
		order by p.created_at desc
	`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*tasks.Project
	for rows.Next() {
		var p tasks.Project
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.OwnerID, &p.CreatorID,
			&p.DepartmentID, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

func (st *projectStore) Update(ctx context.Context, p *tasks.Project) error {
	res, err := st.db.ExecContext(ctx, `
		update projects set name=$2, description=$3, owner_id=$4, updated_at=now() where id=$1
	`, p.ID, p.Name, p.Description, p.OwnerID)
	if err != nil {
		return err
	}
	return oneRow(res, tasks.ErrNotFound)
}

func (st *projectStore) Delete(ctx context.Context, id string) error {
	res, err := st.db.ExecContext(ctx, `delete from projects where id=$1`, id)
	if err != nil {
		return err
	}
	return oneRow(res, tasks.ErrNotFound)
}

// SetMembers replaces the assignment rows in one transaction.
func (st *projectStore) SetMembers(ctx context.Context, projectID string, userIDs []string) error {
	tx, err := st.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`delete from project_members where project_id=$1`, projectID); err != nil {
		return err
	}
	for _, userID := range userIDs {
		if _, err := tx.ExecContext(ctx, `
			insert into project_members(project_id, user_id) values ($1, $2)
		`, projectID, userID); err != nil {
			if isForeignKeyViolation(err) {
				return tasks.ErrNotFound
			}
			return err
		}
	}
	return tx.Commit()
}
