package httpapi

import (
	"net/http"
	"strings"

	"taskera.org/internal/authz"
	"taskera.org/internal/org"
)

type departmentRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type positionRequest struct {
	Name        string            `json:"name"`
	Level       int               `json:"level"`
	Permissions authz.Permissions `json:"permissions"`
}

type statusRequest struct {
	Status string `json:"status"`
}

type assignmentRequest struct {
	DepartmentID string `json:"department_id"`
	PositionID   string `json:"position_id"`
}

type accessRequestCreate struct {
	DepartmentID   string `json:"department_id"`
	Reason         string `json:"reason"`
	SupervisorName string `json:"supervisor_name"`
}

type accessRequestReview struct {
	Status     string `json:"status"`
	Notes      string `json:"notes"`
	PositionID string `json:"position_id"`
}

// splitResource parses "/v1/<collection>/<id>[/<sub>]" into id and sub.
func splitResource(path, prefix string) (id, sub string, ok bool) {
	rest := strings.Trim(strings.TrimPrefix(path, prefix), "/")
	if rest == "" {
		return "", "", false
	}
	parts := strings.Split(rest, "/")
	switch len(parts) {
	case 1:
		return parts[0], "", true
	case 2:
		return parts[0], parts[1], true
	default:
		return "", "", false
	}
}

func (a *API) handleUsers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	p, ok := principal(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	q := r.URL.Query()
	filter := org.UserFilter{
		Status:       authz.AccountStatus(q.Get("status")),
		DepartmentID: q.Get("department_id"),
		Search:       q.Get("q"),
	}
	users, err := a.org.ListUsers(r.Context(), p, filter)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	out := make([]userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toUserResponse(u))
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": out})
}

func (a *API) handleUserResource(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	id, sub, ok := splitResource(r.URL.Path, "/v1/users/")
	if !ok {
		writeError(w, http.StatusNotFound, "resource not found")
		return
	}

	switch sub {
	case "":
		switch r.Method {
		case http.MethodGet:
			user, err := a.org.GetUser(r.Context(), p, id)
			if err != nil {
				respondServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, toUserResponse(user))
		case http.MethodDelete:
			if err := a.org.DeleteUser(r.Context(), p, id); err != nil {
				respondServiceError(w, err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		default:
			methodNotAllowed(w, http.MethodGet, http.MethodDelete)
		}
	case "status":
		if r.Method != http.MethodPut {
			methodNotAllowed(w, http.MethodPut)
			return
		}
		var req statusRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		status, err := authz.ParseAccountStatus(req.Status)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := a.org.UpdateUserStatus(r.Context(), p, id, status); err != nil {
			respondServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	case "assignment":
		if r.Method != http.MethodPut {
			methodNotAllowed(w, http.MethodPut)
			return
		}
		var req assignmentRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := a.org.AssignUser(r.Context(), p, id, req.DepartmentID, req.PositionID); err != nil {
			respondServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeError(w, http.StatusNotFound, "resource not found")
	}
}

func (a *API) handleDepartments(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	switch r.Method {
	case http.MethodGet:
		depts, err := a.org.ListDepartments(r.Context(), p)
		if err != nil {
			respondServiceError(w, err)
			return
		}
		out := make([]map[string]any, 0, len(depts))
		for _, d := range depts {
			out = append(out, map[string]any{
				"id":             d.ID,
				"name":           d.Name,
				"description":    d.Description,
				"user_count":     d.UserCount,
				"position_count": d.PositionCount,
			})
		}
		writeJSON(w, http.StatusOK, map[string]any{"departments": out})
	case http.MethodPost:
		var req departmentRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		dept, err := a.org.CreateDepartment(r.Context(), p, req.Name, req.Description)
		if err != nil {
			respondServiceError(w, err)
			return
		}
		w.Header().Set("Location", "/v1/departments/"+dept.ID)
		writeJSON(w, http.StatusCreated, dept)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleDepartmentResource(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	id, sub, ok := splitResource(r.URL.Path, "/v1/departments/")
	if !ok {
		writeError(w, http.StatusNotFound, "resource not found")
		return
	}

	switch sub {
	case "":
		switch r.Method {
		case http.MethodPut:
			var req departmentRequest
			if err := decodeJSON(r, &req); err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			dept, err := a.org.UpdateDepartment(r.Context(), p, id, req.Name, req.Description)
			if err != nil {
				respondServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, dept)
		case http.MethodDelete:
			if err := a.org.DeleteDepartment(r.Context(), p, id); err != nil {
				respondServiceError(w, err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		default:
			methodNotAllowed(w, http.MethodPut, http.MethodDelete)
		}
	case "positions":
		switch r.Method {
		case http.MethodGet:
			positions, err := a.org.ListPositions(r.Context(), p, id)
			if err != nil {
				respondServiceError(w, err)
				return
			}
			out := make([]map[string]any, 0, len(positions))
			for _, pos := range positions {
				out = append(out, map[string]any{
					"id":          pos.ID,
					"name":        pos.Name,
					"level":       pos.Level,
					"permissions": pos.Permissions,
					"user_count":  pos.UserCount,
				})
			}
			writeJSON(w, http.StatusOK, map[string]any{"positions": out})
		case http.MethodPost:
			var req positionRequest
			if err := decodeJSON(r, &req); err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			pos, err := a.org.CreatePosition(r.Context(), p, req.Name, req.Level, id, req.Permissions)
			if err != nil {
				respondServiceError(w, err)
				return
			}
			w.Header().Set("Location", "/v1/positions/"+pos.ID)
			writeJSON(w, http.StatusCreated, pos)
		default:
			methodNotAllowed(w, http.MethodGet, http.MethodPost)
		}
	default:
		writeError(w, http.StatusNotFound, "resource not found")
	}
}

func (a *API) handlePositionResource(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	id, sub, ok := splitResource(r.URL.Path, "/v1/positions/")
	if !ok || sub != "" {
		writeError(w, http.StatusNotFound, "resource not found")
		return
	}

	switch r.Method {
	case http.MethodPut:
		var req positionRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		pos, err := a.org.UpdatePosition(r.Context(), p, id, req.Name, req.Level, req.Permissions)
		if err != nil {
			respondServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, pos)
	case http.MethodDelete:
		if err := a.org.DeletePosition(r.Context(), p, id); err != nil {
			respondServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, http.MethodPut, http.MethodDelete)
	}
}

func (a *API) handleAccessRequests(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	switch r.Method {
	case http.MethodGet:
		pending, err := a.org.ListPendingRequests(r.Context(), p)
		if err != nil {
			respondServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"requests": pending})
	case http.MethodPost:
		var req accessRequestCreate
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		created, err := a.org.RequestAccess(r.Context(), p, req.DepartmentID, req.Reason, req.SupervisorName)
		if err != nil {
			respondServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleAccessRequestResource(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	id, sub, ok := splitResource(r.URL.Path, "/v1/access-requests/")
	if !ok || sub != "review" {
		writeError(w, http.StatusNotFound, "resource not found")
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	var req accessRequestReview
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	reviewed, err := a.org.ReviewAccessRequest(r.Context(), p, id,
		org.RequestStatus(strings.ToUpper(strings.TrimSpace(req.Status))), req.Notes, req.PositionID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reviewed)
}
