package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"taskera.org/internal/auth"
	"taskera.org/internal/authz"
	"taskera.org/internal/org"
)

type departmentStore struct {
	db *sql.DB
}

func (st *departmentStore) Create(ctx context.Context, d *authz.Department) error {
	_, err := st.db.ExecContext(ctx, `
		insert into departments(id, name, description, created_at, updated_at)
		values ($1, $2, $3, now(), now())
	`, d.ID, d.Name, d.Description)
	if isUniqueViolation(err) {
		return org.ErrAlreadyExists
	}
	return err
}

func (st *departmentStore) Find(ctx context.Context, id string) (*authz.Department, error) {
	var d authz.Department
	err := st.db.QueryRowContext(ctx, `
		select id, name, description, created_at, updated_at from departments where id=$1
	`, id).Scan(&d.ID, &d.Name, &d.Description, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, org.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (st *departmentStore) List(ctx context.Context) ([]org.DepartmentSummary, error) {
	rows, err := st.db.QueryContext(ctx, `
		select d.id, d.name, d.description, d.created_at, d.updated_at,
			(select count(*) from users u where u.department_id = d.id),
			(select count(*) from positions p where p.department_id = d.id)
		from departments d
		order by d.name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []org.DepartmentSummary
	for rows.Next() {
		var s org.DepartmentSummary
		if err := rows.Scan(&s.ID, &s.Name, &s.Description, &s.CreatedAt, &s.UpdatedAt,
			&s.UserCount, &s.PositionCount); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (st *departmentStore) Update(ctx context.Context, d *authz.Department) error {
	res, err := st.db.ExecContext(ctx, `
		update departments set name=$2, description=$3, updated_at=now() where id=$1
	`, d.ID, d.Name, d.Description)
	if isUniqueViolation(err) {
		return org.ErrAlreadyExists
	}
	if err != nil {
		return err
	}
	return oneRow(res, org.ErrNotFound)
}

func (st *departmentStore) Delete(ctx context.Context, id string) error {
	res, err := st.db.ExecContext(ctx, `delete from departments where id=$1`, id)
	if isForeignKeyViolation(err) {
		return org.ErrDepartmentInUse
	}
	if err != nil {
		return err
	}
	return oneRow(res, org.ErrNotFound)
}

func (st *departmentStore) CountUsers(ctx context.Context, id string) (int, error) {
	var n int
	err := st.db.QueryRowContext(ctx,
		`select count(*) from users where department_id=$1`, id).Scan(&n)
	return n, err
}

// positionStore serves both the org admin surface and position resolution
// for principal construction. The permissions document lives in a jsonb
// column and is validated on the way out, so a hand-edited row with a bad
// token fails loudly instead of granting something unintended.
type positionStore struct {
	db *sql.DB
}

func (st *positionStore) Create(ctx context.Context, p *authz.Position) error {
	perms, err := json.Marshal(p.Permissions)
	if err != nil {
		return err
	}
	_, err = st.db.ExecContext(ctx, `
		insert into positions(id, name, level, department_id, permissions, created_at, updated_at)
		values ($1, $2, $3, $4, $5, now(), now())
	`, p.ID, p.Name, p.Level, p.DepartmentID, perms)
	if isUniqueViolation(err) {
		return org.ErrAlreadyExists
	}
	if isForeignKeyViolation(err) {
		return org.ErrNotFound
	}
	return err
}

func scanPosition(row interface{ Scan(...any) error }) (*authz.Position, error) {
	var p authz.Position
	var perms []byte
	err := row.Scan(&p.ID, &p.Name, &p.Level, &p.DepartmentID, &perms, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.Permissions, err = authz.DecodePermissions(perms)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (st *positionStore) Find(ctx context.Context, id string) (*authz.Position, error) {
	p, err := scanPosition(st.db.QueryRowContext(ctx, `
		select id, name, level, department_id, permissions, created_at, updated_at
		from positions where id=$1
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, org.ErrNotFound
	}
	return p, err
}

// FindPosition is the auth-side lookup; it reports auth.ErrNotFound so the
// caller's sentinel checks stay within its own package.
func (st *positionStore) FindPosition(ctx context.Context, id string) (*authz.Position, error) {
	p, err := st.Find(ctx, id)
	if errors.Is(err, org.ErrNotFound) {
		return nil, auth.ErrNotFound
	}
	return p, err
}

func (st *positionStore) ListByDepartment(ctx context.Context, departmentID string) ([]org.PositionSummary, error) {
	rows, err := st.db.QueryContext(ctx, `
		select p.id, p.name, p.level, p.department_id, p.permissions, p.created_at, p.updated_at,
			(select count(*) from users u where u.position_id = p.id)
		from positions p
		where p.department_id=$1
		order by p.level, p.name
	`, departmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []org.PositionSummary
	for rows.Next() {
		var s org.PositionSummary
		var perms []byte
		if err := rows.Scan(&s.ID, &s.Name, &s.Level, &s.DepartmentID, &perms,
			&s.CreatedAt, &s.UpdatedAt, &s.UserCount); err != nil {
			return nil, err
		}
		if s.Permissions, err = authz.DecodePermissions(perms); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (st *positionStore) Update(ctx context.Context, p *authz.Position) error {
	perms, err := json.Marshal(p.Permissions)
	if err != nil {
		return err
	}
	res, err := st.db.ExecContext(ctx, `
		update positions set name=$2, level=$3, permissions=$4, updated_at=now() where id=$1
	`, p.ID, p.Name, p.Level, perms)
	if err != nil {
		return err
	}
	return oneRow(res, org.ErrNotFound)
}

func (st *positionStore) Delete(ctx context.Context, id string) error {
	res, err := st.db.ExecContext(ctx, `delete from positions where id=$1`, id)
	if isForeignKeyViolation(err) {
		return org.ErrPositionInUse
	}
	if err != nil {
		return err
	}
	return oneRow(res, org.ErrNotFound)
}

func (st *positionStore) CountUsers(ctx context.Context, id string) (int, error) {
	var n int
	err := st.db.QueryRowContext(ctx,
		`select count(*) from users where position_id=$1`, id).Scan(&n)
	return n, err
}

type requestStore struct {
	db *sql.DB
}

func (st *requestStore) Create(ctx context.Context, r *org.AccessRequest) error {
	_, err := st.db.ExecContext(ctx, `
		insert into access_requests(id, user_id, department_id, reason, supervisor_name, status, created_at)
		values ($1, $2, $3, $4, $5, $6, now())
	`, r.ID, r.UserID, r.DepartmentID, r.Reason, r.SupervisorName, string(r.Status))
	if isForeignKeyViolation(err) {
		return org.ErrNotFound
	}
	return err
}

func scanRequest(row interface{ Scan(...any) error }) (*org.AccessRequest, error) {
	var r org.AccessRequest
	var status string
	var reviewedBy sql.NullString
	var reviewedAt sql.NullTime
	err := row.Scan(&r.ID, &r.UserID, &r.DepartmentID, &r.Reason, &r.SupervisorName,
		&status, &r.ReviewNotes, &reviewedBy, &reviewedAt, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	r.Status = org.RequestStatus(status)
	if reviewedBy.Valid {
		r.ReviewedBy = reviewedBy.String
	}
	if reviewedAt.Valid {
		t := reviewedAt.Time
		r.ReviewedAt = &t
	}
	return &r, nil
}

const requestColumns = `id, user_id, department_id, reason, supervisor_name, status,
	coalesce(review_notes,''), reviewed_by, reviewed_at, created_at`

func (st *requestStore) Find(ctx context.Context, id string) (*org.AccessRequest, error) {
	r, err := scanRequest(st.db.QueryRowContext(ctx,
		`select `+requestColumns+` from access_requests where id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, org.ErrNotFound
	}
	return r, err
}

func (st *requestStore) ListPending(ctx context.Context) ([]*org.AccessRequest, error) {
	rows, err := st.db.QueryContext(ctx,
		`select `+requestColumns+` from access_requests where status=$1 order by created_at`,
		string(org.RequestPending))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*org.AccessRequest
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (st *requestStore) Update(ctx context.Context, r *org.AccessRequest) error {
	res, err := st.db.ExecContext(ctx, `
		update access_requests
		set status=$2, review_notes=$3, reviewed_by=nullif($4,''), reviewed_at=$5
		where id=$1
	`, r.ID, string(r.Status), r.ReviewNotes, r.ReviewedBy, r.ReviewedAt)
	if err != nil {
		return err
	}
	return oneRow(res, org.ErrNotFound)
}
