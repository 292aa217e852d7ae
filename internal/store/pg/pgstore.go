package pg

import (
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"taskera.org/internal/auth"
	"taskera.org/internal/org"
	"taskera.org/internal/tasks"
)

// Store is the Postgres persistence layer. The service bundles it exposes
// share one pool; Auth, Org and Tasks are views over the same row stores.
type Store struct {
	db *sql.DB
}

func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Tuned pool defaults; adjust under load tests
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// NewStore wraps an existing handle. Used by tests with a mock driver.
func NewStore(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

// Auth returns the persistence bundle the auth service consumes.
func (s *Store) Auth() auth.Store { return authView{s} }

// Org returns the persistence bundle the directory service consumes.
func (s *Store) Org() org.Store { return orgView{s} }

// Tasks returns the persistence bundle the task service consumes.
func (s *Store) Tasks() tasks.Store { return tasksView{s} }

type authView struct{ s *Store }

func (v authView) Users() auth.UserStore                 { return &userStore{v.s.db} }
func (v authView) Positions() auth.PositionDirectory     { return &positionStore{v.s.db} }
func (v authView) RefreshTokens() auth.RefreshTokenStore { return &tokenStore{v.s.db} }

var _ auth.Store = authView{}

type orgView struct{ s *Store }

func (v orgView) Departments() org.DepartmentStore       { return &departmentStore{v.s.db} }
func (v orgView) Positions() org.PositionStore           { return &positionStore{v.s.db} }
func (v orgView) Users() org.UserDirectory               { return &userStore{v.s.db} }
func (v orgView) AccessRequests() org.AccessRequestStore { return &requestStore{v.s.db} }

var _ org.Store = orgView{}

type tasksView struct{ s *Store }

func (v tasksView) Projects() tasks.ProjectStore       { return &projectStore{v.s.db} }
func (v tasksView) Tasks() tasks.TaskStore             { return &taskStore{v.s.db} }
func (v tasksView) Comments() tasks.CommentStore       { return &commentStore{v.s.db} }
func (v tasksView) Attachments() tasks.AttachmentStore { return &attachmentStore{v.s.db} }
func (v tasksView) Members() tasks.MemberDirectory     { return &userStore{v.s.db} }

var _ tasks.Store = tasksView{}

// --- helpers ---

func isUniqueViolation(err error) bool {
	var pg *pgconn.PgError
	return errors.As(err, &pg) && pg.Code == "23505"
}

func isForeignKeyViolation(err error) bool {
	var pg *pgconn.PgError
	return errors.As(err, &pg) && pg.Code == "23503"
}
