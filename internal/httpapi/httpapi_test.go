package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"taskera.org/internal/auth"
	"taskera.org/internal/authz"
	"taskera.org/internal/org"
	"taskera.org/internal/tasks"
)

// memStore backs every service with plain maps so handler tests run the
// real middleware, services and engine end to end.
type memStore struct {
	users    map[string]*auth.User
	tokens   map[string]*auth.RefreshToken
	depts    map[string]*authz.Department
	position map[string]*authz.Position
	requests map[string]*org.AccessRequest
	projects map[string]*tasks.Project
	taskRows map[string]*tasks.Task
	comments map[string][]*tasks.Comment
	attach   map[string]*tasks.Attachment
}

func newMemStore() *memStore {
	return &memStore{
		users:    map[string]*auth.User{},
		tokens:   map[string]*auth.RefreshToken{},
		depts:    map[string]*authz.Department{},
		position: map[string]*authz.Position{},
		requests: map[string]*org.AccessRequest{},
		projects: map[string]*tasks.Project{},
		taskRows: map[string]*tasks.Task{},
		comments: map[string][]*tasks.Comment{},
		attach:   map[string]*tasks.Attachment{},
	}
}

// auth.Store

func (m *memStore) Users() auth.UserStore                 { return (*memUsers)(m) }
func (m *memStore) Positions() auth.PositionDirectory     { return (*memPositions)(m) }
func (m *memStore) RefreshTokens() auth.RefreshTokenStore { return (*memTokens)(m) }

type memUsers memStore

func (m *memUsers) Create(_ context.Context, u *auth.User) error {
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return auth.ErrAlreadyExists
		}
	}
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *memUsers) Find(_ context.Context, id string) (*auth.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) FindByEmail(_ context.Context, email string) (*auth.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (m *memUsers) MarkVerified(_ context.Context, userID string) error {
	u, ok := m.users[userID]
	if !ok {
		return auth.ErrNotFound
	}
	u.EmailVerified = true
	u.Status = authz.StatusUnassigned
	u.VerifyTokenHash = ""
	return nil
}

type memPositions memStore

func (m *memPositions) FindPosition(_ context.Context, id string) (*authz.Position, error) {
	p, ok := m.position[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

type memTokens memStore

func (m *memTokens) Create(_ context.Context, tok *auth.RefreshToken) error {
	cp := *tok
	m.tokens[tok.ID] = &cp
	return nil
}

func (m *memTokens) Find(_ context.Context, id string) (*auth.RefreshToken, error) {
	tok, ok := m.tokens[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	cp := *tok
	return &cp, nil
}

func (m *memTokens) MarkRevoked(_ context.Context, id string) error {
	tok, ok := m.tokens[id]
	if !ok {
		return auth.ErrNotFound
	}
	tok.Revoked = true
	return nil
}

func (m *memTokens) MarkRevokedByUser(_ context.Context, userID string) error {
	for _, tok := range m.tokens {
		if tok.UserID == userID {
			tok.Revoked = true
		}
	}
	return nil
}

// org.Store

type orgStore struct{ m *memStore }

func (o orgStore) Departments() org.DepartmentStore       { return (*memDepts)(o.m) }
func (o orgStore) Positions() org.PositionStore           { return (*memOrgPositions)(o.m) }
func (o orgStore) Users() org.UserDirectory               { return (*memDirectory)(o.m) }
func (o orgStore) AccessRequests() org.AccessRequestStore { return (*memRequests)(o.m) }

type memDepts memStore

func (m *memDepts) Create(_ context.Context, d *authz.Department) error {
	cp := *d
	m.depts[d.ID] = &cp
	return nil
}

func (m *memDepts) Find(_ context.Context, id string) (*authz.Department, error) {
	d, ok := m.depts[id]
	if !ok {
		return nil, org.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *memDepts) List(_ context.Context) ([]org.DepartmentSummary, error) {
	var out []org.DepartmentSummary
	for _, d := range m.depts {
		out = append(out, org.DepartmentSummary{Department: *d})
	}
	return out, nil
}

func (m *memDepts) Update(_ context.Context, d *authz.Department) error {
	if _, ok := m.depts[d.ID]; !ok {
		return org.ErrNotFound
	}
	cp := *d
	m.depts[d.ID] = &cp
	return nil
}

func (m *memDepts) Delete(_ context.Context, id string) error {
	delete(m.depts, id)
	return nil
}

func (m *memDepts) CountUsers(_ context.Context, id string) (int, error) {
	n := 0
	for _, u := range m.users {
		if u.DepartmentID == id {
			n++
		}
	}
	return n, nil
}

type memOrgPositions memStore

func (m *memOrgPositions) Create(_ context.Context, p *authz.Position) error {
	cp := *p
	m.position[p.ID] = &cp
	return nil
}

func (m *memOrgPositions) Find(_ context.Context, id string) (*authz.Position, error) {
	p, ok := m.position[id]
	if !ok {
		return nil, org.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memOrgPositions) ListByDepartment(_ context.Context, departmentID string) ([]org.PositionSummary, error) {
	var out []org.PositionSummary
	for _, p := range m.position {
		if p.DepartmentID == departmentID {
			out = append(out, org.PositionSummary{Position: *p})
		}
	}
	return out, nil
}

func (m *memOrgPositions) Update(_ context.Context, p *authz.Position) error {
	if _, ok := m.position[p.ID]; !ok {
		return org.ErrNotFound
	}
	cp := *p
	m.position[p.ID] = &cp
	return nil
}

func (m *memOrgPositions) Delete(_ context.Context, id string) error {
	delete(m.position, id)
	return nil
}

func (m *memOrgPositions) CountUsers(_ context.Context, id string) (int, error) {
	n := 0
	for _, u := range m.users {
		if u.PositionID == id {
			n++
		}
	}
	return n, nil
}

type memDirectory memStore

func (m *memDirectory) Find(ctx context.Context, id string) (*auth.User, error) {
	u, err := (*memUsers)(m).Find(ctx, id)
	if err != nil {
		return nil, org.ErrNotFound
	}
	return u, nil
}

func (m *memDirectory) List(_ context.Context, filter org.UserFilter, pred authz.Predicate) ([]*auth.User, error) {
	var out []*auth.User
	for _, u := range m.users {
		if filter.Status != "" && u.Status != filter.Status {
			continue
		}
		res := authz.Resource{ID: u.ID, OwnerID: u.ID, DepartmentID: u.DepartmentID}
		if p, ok := m.position[u.PositionID]; ok {
			res.Position = p
		}
		if !pred.Matches(res) {
			continue
		}
		cp := *u
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memDirectory) UpdateStatus(_ context.Context, userID string, status authz.AccountStatus) error {
	u, ok := m.users[userID]
	if !ok {
		return org.ErrNotFound
	}
	u.Status = status
	return nil
}

func (m *memDirectory) Assign(_ context.Context, userID, departmentID, positionID string, status authz.AccountStatus) error {
	u, ok := m.users[userID]
	if !ok {
		return org.ErrNotFound
	}
	u.DepartmentID = departmentID
	u.PositionID = positionID
	u.Status = status
	return nil
}

func (m *memDirectory) Delete(_ context.Context, userID string) error {
	delete(m.users, userID)
	return nil
}

type memRequests memStore

func (m *memRequests) Create(_ context.Context, r *org.AccessRequest) error {
	cp := *r
	m.requests[r.ID] = &cp
	return nil
}

func (m *memRequests) Find(_ context.Context, id string) (*org.AccessRequest, error) {
	r, ok := m.requests[id]
	if !ok {
		return nil, org.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memRequests) ListPending(_ context.Context) ([]*org.AccessRequest, error) {
	var out []*org.AccessRequest
	for _, r := range m.requests {
		if r.Status == org.RequestPending {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memRequests) Update(_ context.Context, r *org.AccessRequest) error {
	if _, ok := m.requests[r.ID]; !ok {
		return org.ErrNotFound
	}
	cp := *r
	m.requests[r.ID] = &cp
	return nil
}

// tasks.Store

type taskStore struct{ m *memStore }

func (t taskStore) Projects() tasks.ProjectStore       { return (*memProjects)(t.m) }
func (t taskStore) Tasks() tasks.TaskStore             { return (*memTasks)(t.m) }
func (t taskStore) Comments() tasks.CommentStore       { return (*memComments)(t.m) }
func (t taskStore) Attachments() tasks.AttachmentStore { return (*memAttachments)(t.m) }
func (t taskStore) Members() tasks.MemberDirectory     { return (*memMembers)(t.m) }

type memProjects memStore

func (m *memProjects) Create(_ context.Context, p *tasks.Project) error {
	cp := *p
	m.projects[p.ID] = &cp
	return nil
}

func (m *memProjects) Find(_ context.Context, id string) (*tasks.Project, error) {
	p, ok := m.projects[id]
	if !ok {
		return nil, tasks.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memProjects) List(_ context.Context, pred authz.Predicate) ([]*tasks.Project, error) {
	var out []*tasks.Project
	for _, p := range m.projects {
		res := authz.Resource{ID: p.ID, OwnerID: p.OwnerID, DepartmentID: p.DepartmentID, AssigneeIDs: p.MemberIDs}
		if pred.Matches(res) {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memProjects) Update(_ context.Context, p *tasks.Project) error {
	if _, ok := m.projects[p.ID]; !ok {
		return tasks.ErrNotFound
	}
	cp := *p
	m.projects[p.ID] = &cp
	return nil
}

func (m *memProjects) Delete(_ context.Context, id string) error {
	delete(m.projects, id)
	return nil
}

func (m *memProjects) SetMembers(_ context.Context, projectID string, userIDs []string) error {
	p, ok := m.projects[projectID]
	if !ok {
		return tasks.ErrNotFound
	}
	p.MemberIDs = userIDs
	return nil
}

type memTasks memStore

func (m *memTasks) Create(_ context.Context, t *tasks.Task) error {
	cp := *t
	m.taskRows[t.ID] = &cp
	return nil
}

func (m *memTasks) Find(_ context.Context, id string) (*tasks.Task, error) {
	t, ok := m.taskRows[id]
	if !ok {
		return nil, tasks.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *memTasks) ListByProject(_ context.Context, projectID string, _ tasks.TaskFilter) ([]*tasks.Task, error) {
	var out []*tasks.Task
	for _, t := range m.taskRows {
		if t.ProjectID == projectID {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memTasks) ListForUser(_ context.Context, userID string, _ tasks.TaskFilter) ([]*tasks.Task, error) {
	pred := authz.Predicate{Kind: authz.MatchAssigned, UserID: userID}
	var out []*tasks.Task
	for _, t := range m.taskRows {
		if pred.Matches(authz.Resource{ID: t.ID, OwnerID: t.OwnerID, AssigneeIDs: t.AssigneeIDs}) {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memTasks) Update(_ context.Context, t *tasks.Task) error {
	if _, ok := m.taskRows[t.ID]; !ok {
		return tasks.ErrNotFound
	}
	cp := *t
	m.taskRows[t.ID] = &cp
	return nil
}

func (m *memTasks) Delete(_ context.Context, id string) error {
	delete(m.taskRows, id)
	return nil
}

func (m *memTasks) CountSubtasks(_ context.Context, id string) (int, error) {
	n := 0
	for _, t := range m.taskRows {
		if t.ParentID == id {
			n++
		}
	}
	return n, nil
}

func (m *memTasks) SetAssignees(_ context.Context, taskID string, userIDs []string) error {
	t, ok := m.taskRows[taskID]
	if !ok {
		return tasks.ErrNotFound
	}
	t.AssigneeIDs = userIDs
	return nil
}

type memComments memStore

func (m *memComments) Create(_ context.Context, c *tasks.Comment) error {
	m.comments[c.TaskID] = append(m.comments[c.TaskID], c)
	return nil
}

func (m *memComments) Find(_ context.Context, id string) (*tasks.Comment, error) {
	for _, list := range m.comments {
		for _, c := range list {
			if c.ID == id {
				cp := *c
				return &cp, nil
			}
		}
	}
	return nil, tasks.ErrNotFound
}

func (m *memComments) ListByTask(_ context.Context, taskID string) ([]*tasks.Comment, error) {
	return m.comments[taskID], nil
}

func (m *memComments) Update(_ context.Context, c *tasks.Comment) error {
	for _, existing := range m.comments[c.TaskID] {
		if existing.ID == c.ID {
			existing.Body = c.Body
			return nil
		}
	}
	return tasks.ErrNotFound
}

func (m *memComments) Delete(_ context.Context, id string) error {
	for taskID, list := range m.comments {
		for i, c := range list {
			if c.ID == id {
				m.comments[taskID] = append(list[:i], list[i+1:]...)
				return nil
			}
		}
	}
	return tasks.ErrNotFound
}

type memAttachments memStore

func (m *memAttachments) Create(_ context.Context, a *tasks.Attachment) error {
	cp := *a
	m.attach[a.ID] = &cp
	return nil
}

func (m *memAttachments) Find(_ context.Context, id string) (*tasks.Attachment, error) {
	a, ok := m.attach[id]
	if !ok {
		return nil, tasks.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *memAttachments) ListByTask(_ context.Context, taskID string) ([]*tasks.Attachment, error) {
	var out []*tasks.Attachment
	for _, a := range m.attach {
		if a.TaskID == taskID {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memAttachments) Delete(_ context.Context, id string) error {
	delete(m.attach, id)
	return nil
}

type memMembers memStore

func (m *memMembers) Member(_ context.Context, userID string) (tasks.Member, error) {
	u, ok := m.users[userID]
	if !ok {
		return tasks.Member{}, tasks.ErrNotFound
	}
	return tasks.Member{ID: u.ID, DepartmentID: u.DepartmentID, Status: u.Status}, nil
}

// --- fixture ---

type fixture struct {
	api     *API
	handler http.Handler
	store   *memStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	t.Setenv("TASKERA_AUTH_SECRET", "test-secret")
	auth.ResetSecretForTests()
	t.Cleanup(auth.ResetSecretForTests)

	store := newMemStore()
	authSvc, err := auth.NewService(store)
	if err != nil {
		t.Fatalf("auth.NewService: %v", err)
	}
	orgSvc, err := org.NewService(orgStore{store})
	if err != nil {
		t.Fatalf("org.NewService: %v", err)
	}
	taskSvc, err := tasks.NewService(taskStore{store})
	if err != nil {
		t.Fatalf("tasks.NewService: %v", err)
	}
	api := New(authSvc, orgSvc, taskSvc, ReadyProbe{}, "test")
	return &fixture{
		api:     api,
		handler: api.Handler(),
		store:   store,
	}
}

// seedAdmin places an active administrator and returns a bearer token.
func (f *fixture) seedAdmin(t *testing.T) string {
	t.Helper()
	f.store.depts["dept-admin"] = &authz.Department{ID: "dept-admin", Name: "Administration"}
	f.store.position["pos-admin"] = &authz.Position{
		ID: "pos-admin", Name: "Admin", Level: 1, DepartmentID: "dept-admin",
		Permissions: authz.AdminPermissions(),
	}
	f.store.users["admin"] = &auth.User{
		ID: "admin", Email: "admin@taskera.test", Status: authz.StatusActive,
		DepartmentID: "dept-admin", PositionID: "pos-admin",
	}
	return f.token(t, "admin")
}

func (f *fixture) token(t *testing.T, userID string) string {
	t.Helper()
	tok, err := auth.GenerateToken(userID, 5*time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	return tok
}

func (f *fixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.RemoteAddr = "192.0.2.1:1234"
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(strings.NewReader(rec.Body.String())).Decode(v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}
