package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"taskera.org/internal/auth"
	"taskera.org/internal/authz"
	"taskera.org/internal/obs"
	"taskera.org/internal/org"
	"taskera.org/internal/tasks"
)

// ReadyProbe reports backing-store readiness.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// API is the HTTP layer. Routing is a flat ServeMux plus manual dispatch on
// the id-bearing paths; authorization lives in the services, this layer only
// authenticates, decodes and maps errors.
type API struct {
	mux        *http.ServeMux
	auth       *auth.Service
	org        *org.Service
	tasks      *tasks.Service
	readyProbe ReadyProbe
	version    string
}

func New(authSvc *auth.Service, orgSvc *org.Service, taskSvc *tasks.Service, rp ReadyProbe, version string) *API {
	a := &API{
		mux:        http.NewServeMux(),
		auth:       authSvc,
		org:        orgSvc,
		tasks:      taskSvc,
		readyProbe: rp,
		version:    version,
	}

	a.mux.HandleFunc("/healthz", a.handleHealthz)
	a.mux.HandleFunc("/readyz", a.handleReadyz)
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/v1/auth/register", a.handleRegister)
	a.mux.HandleFunc("/v1/auth/verify", a.handleVerify)
	a.mux.HandleFunc("/v1/auth/login", a.handleLogin)
	a.mux.HandleFunc("/v1/auth/refresh", a.handleRefresh)
	a.mux.HandleFunc("/v1/auth/logout", a.handleLogout)
	a.mux.HandleFunc("/v1/me", a.handleMe)

	a.mux.HandleFunc("/v1/users", a.handleUsers)
	a.mux.HandleFunc("/v1/users/", a.handleUserResource)
	a.mux.HandleFunc("/v1/departments", a.handleDepartments)
	a.mux.HandleFunc("/v1/departments/", a.handleDepartmentResource)
	a.mux.HandleFunc("/v1/positions/", a.handlePositionResource)
	a.mux.HandleFunc("/v1/access-requests", a.handleAccessRequests)
	a.mux.HandleFunc("/v1/access-requests/", a.handleAccessRequestResource)

	a.mux.HandleFunc("/v1/projects", a.handleProjects)
	a.mux.HandleFunc("/v1/projects/", a.handleProjectResource)
	a.mux.HandleFunc("/v1/tasks", a.handleTasks)
	a.mux.HandleFunc("/v1/tasks/", a.handleTaskResource)
	a.mux.HandleFunc("/v1/comments/", a.handleCommentResource)
	a.mux.HandleFunc("/v1/attachments/", a.handleAttachmentResource)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the fully wrapped handler chain.
func (a *API) Handler() http.Handler {
	h := a.withAuth(a.mux)
	h = RateLimit(h, 20, 10)
	h = MaxBodyBytes(h, 1<<20)
	h = CORS(h)
	h = SecurityHeaders(h)
	h = RequestID(h)
	h = Logging(h)
	return obs.Instrument(h)
}

func (a *API) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "taskera-api",
		"version": a.version,
	})
}

func (a *API) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		obs.SetReady(false)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	obs.SetReady(true)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{"error": msg})
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	for _, m := range allowed {
		w.Header().Add("Allow", m)
	}
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// principal pulls the authenticated principal from the request context; the
// authn middleware guarantees it on protected paths.
func principal(r *http.Request) (authz.Principal, bool) {
	return auth.PrincipalFromContext(r.Context())
}

// denialMessage renders a deny decision as remediation text. Account-status
// denials name the specific obstacle; the rest stay deliberately terse.
func denialMessage(d authz.Decision) string {
	switch d.Reason {
	case authz.DenyAccountStatus:
		switch d.Status {
		case authz.StatusPendingVerification:
			return "account pending verification: confirm your email address"
		case authz.StatusSuspended:
			return "account suspended: contact an administrator"
		case authz.StatusArchived:
			return "account archived"
		default:
			return "account is not permitted to perform this operation"
		}
	case authz.DenySelfModification:
		return "operation cannot target your own account"
	case authz.DenyNoPermission:
		return "permission not granted"
	case authz.DenyOutOfScope:
		return "resource is outside your permission scope"
	default:
		return "forbidden"
	}
}

// respondServiceError maps service-layer errors onto HTTP codes. Denials
// carry their decision; sentinel errors map by package.
func respondServiceError(w http.ResponseWriter, err error) {
	var denied *authz.DeniedError
	switch {
	case errors.As(err, &denied):
		writeJSON(w, http.StatusForbidden, map[string]any{
			"error":  denialMessage(denied.Decision),
			"reason": string(denied.Decision.Reason),
		})
	case errors.Is(err, authz.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, "authentication required")
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, auth.ErrAccountArchived):
		writeError(w, http.StatusForbidden, "account archived")
	case errors.Is(err, auth.ErrInvalidToken):
		writeError(w, http.StatusUnauthorized, "invalid token")
	case errors.Is(err, auth.ErrAlreadyExists):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, org.ErrDepartmentInUse),
		errors.Is(err, org.ErrPositionInUse),
		errors.Is(err, org.ErrAlreadyExists):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, tasks.ErrHasSubtasks):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, auth.ErrNotFound),
		errors.Is(err, org.ErrNotFound),
		errors.Is(err, tasks.ErrNotFound):
		writeError(w, http.StatusNotFound, "resource not found")
	case errors.Is(err, auth.ErrInvalidInput),
		errors.Is(err, org.ErrInvalidInput),
		errors.Is(err, tasks.ErrInvalidInput),
		errors.Is(err, org.ErrPositionMismatch),
		errors.Is(err, tasks.ErrProjectMismatch),
		errors.Is(err, tasks.ErrAssigneeNotEligible),
		errors.Is(err, authz.ErrInvalidInput),
		errors.Is(err, authz.ErrInvalidPermissionQuery):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
