package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"taskera.org/internal/auth"
	"taskera.org/internal/authz"
	"taskera.org/internal/org"
	"taskera.org/internal/tasks"
)

// userStore serves three consumers over the same table: account CRUD for
// the auth service, the admin directory for org, and member resolution for
// task assignment.
type userStore struct {
	db *sql.DB
}

const userColumns = `id, email, name, password_hash, status, email_verified,
	coalesce(verification_token_hash,''), verified_at,
	coalesce(department_id,''), coalesce(position_id,''), created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*auth.User, error) {
	var u auth.User
	var status string
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &status, &u.EmailVerified,
		&u.VerifyTokenHash, &u.VerifiedAt, &u.DepartmentID, &u.PositionID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	u.Status, err = authz.ParseAccountStatus(status)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (st *userStore) Create(ctx context.Context, u *auth.User) error {
	_, err := st.db.ExecContext(ctx, `
		insert into users(id, email, name, password_hash, status, email_verified,
			verification_token_hash, created_at, updated_at)
		values ($1, lower($2), $3, $4, $5, $6, nullif($7,''), now(), now())
	`, u.ID, u.Email, u.Name, u.PasswordHash, string(u.Status), u.EmailVerified, u.VerifyTokenHash)
	if isUniqueViolation(err) {
		return auth.ErrAlreadyExists
	}
	return err
}

func (st *userStore) Find(ctx context.Context, id string) (*auth.User, error) {
	u, err := scanUser(st.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	return u, err
}

func (st *userStore) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	u, err := scanUser(st.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where email=lower($1)`, email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	return u, err
}

func (st *userStore) MarkVerified(ctx context.Context, userID string) error {
	res, err := st.db.ExecContext(ctx, `
		update users
		set email_verified=true, verification_token_hash=null, verified_at=now(), status=$2, updated_at=now()
		where id=$1
	`, userID, string(authz.StatusUnassigned))
	if err != nil {
		return err
	}
	return oneRow(res, auth.ErrNotFound)
}

// List renders the caller's visibility predicate into the WHERE clause, so
// out-of-scope rows never leave the database.
func (st *userStore) List(ctx context.Context, filter org.UserFilter, pred authz.Predicate) ([]*auth.User, error) {
	where := []string{"true"}
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	switch pred.Kind {
	case authz.MatchAll:
	case authz.MatchOwn, authz.MatchAssigned:
		where = append(where, "u.id = "+arg(pred.UserID))
	case authz.MatchDepartment:
		where = append(where, "u.department_id = "+arg(pred.DepartmentID))
	case authz.MatchSubordinate:
		where = append(where,
			"u.department_id = "+arg(pred.DepartmentID),
			"p.level > "+arg(pred.Level))
	default:
		return nil, nil
	}

	if filter.Status != "" {
		where = append(where, "u.status = "+arg(string(filter.Status)))
	}
	if filter.DepartmentID != "" {
		where = append(where, "u.department_id = "+arg(filter.DepartmentID))
	}
	if filter.Search != "" {
		n := arg("%" + strings.ToLower(filter.Search) + "%")
		where = append(where, "(lower(u.name) like "+n+" or u.email like "+n+")")
	}

	query := `
		select u.id, u.email, u.name, u.password_hash, u.status, u.email_verified,
			coalesce(u.verification_token_hash,''), u.verified_at,
			coalesce(u.department_id,''), coalesce(u.position_id,''), u.created_at, u.updated_at
		from users u
		left join positions p on p.id = u.position_id
		where ` + strings.Join(where, " and ") + `
		order by u.created_at`

	rows, err := st.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*auth.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (st *userStore) UpdateStatus(ctx context.Context, userID string, status authz.AccountStatus) error {
	res, err := st.db.ExecContext(ctx, `
		update users set status=$2, updated_at=now() where id=$1
	`, userID, string(status))
	if err != nil {
		return err
	}
	return oneRow(res, org.ErrNotFound)
}

func (st *userStore) Assign(ctx context.Context, userID, departmentID, positionID string, status authz.AccountStatus) error {
	res, err := st.db.ExecContext(ctx, `
		update users
		set department_id=nullif($2,''), position_id=nullif($3,''), status=$4, updated_at=now()
		where id=$1
	`, userID, departmentID, positionID, string(status))
	if isForeignKeyViolation(err) {
		return org.ErrNotFound
	}
	if err != nil {
		return err
	}
	return oneRow(res, org.ErrNotFound)
}

func (st *userStore) Delete(ctx context.Context, userID string) error {
	res, err := st.db.ExecContext(ctx, `delete from users where id=$1`, userID)
	if err != nil {
		return err
	}
	return oneRow(res, org.ErrNotFound)
}

// Member resolves the slice of a user record assignment validation needs.
func (st *userStore) Member(ctx context.Context, userID string) (tasks.Member, error) {
	var m tasks.Member
	var status string
	err := st.db.QueryRowContext(ctx, `
		select id, coalesce(department_id,''), status from users where id=$1
	`, userID).Scan(&m.ID, &m.DepartmentID, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return tasks.Member{}, tasks.ErrNotFound
	}
	if err != nil {
		return tasks.Member{}, err
	}
	m.Status, err = authz.ParseAccountStatus(status)
	if err != nil {
		return tasks.Member{}, err
	}
	return m, nil
}

func oneRow(res sql.Result, missing error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return missing
	}
	return nil
}
