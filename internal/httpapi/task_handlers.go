package httpapi

import (
	"net/http"
	"time"

	"taskera.org/internal/tasks"
)

type projectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type membersRequest struct {
	UserIDs []string `json:"user_ids"`
}

type taskCreateRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Priority    string     `json:"priority"`
	ProjectID   string     `json:"project_id"`
	ParentID    string     `json:"parent_id"`
	DueAt       *time.Time `json:"due_at"`
}

type taskUpdateRequest struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Priority    *string    `json:"priority"`
	DueAt       *time.Time `json:"due_at"`
}

type taskStatusRequest struct {
	Status string `json:"status"`
}

type commentRequest struct {
	Body string `json:"body"`
}

type attachmentRequest struct {
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"size_bytes"`
}

func (a *API) handleProjects(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	switch r.Method {
	case http.MethodGet:
		projects, err := a.tasks.ListProjects(r.Context(), p)
		if err != nil {
			respondServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"projects": projects})
	case http.MethodPost:
		var req projectRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		project, err := a.tasks.CreateProject(r.Context(), p, tasks.CreateProjectInput{
			Name:        req.Name,
			Description: req.Description,
		})
		if err != nil {
			respondServiceError(w, err)
			return
		}
		w.Header().Set("Location", "/v1/projects/"+project.ID)
		writeJSON(w, http.StatusCreated, project)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleProjectResource(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	id, sub, ok := splitResource(r.URL.Path, "/v1/projects/")
	if !ok {
		writeError(w, http.StatusNotFound, "resource not found")
		return
	}

	switch sub {
	case "":
		switch r.Method {
		case http.MethodGet:
			project, err := a.tasks.GetProject(r.Context(), p, id)
			if err != nil {
				respondServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, project)
		case http.MethodPut:
			var req projectRequest
			if err := decodeJSON(r, &req); err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			project, err := a.tasks.UpdateProject(r.Context(), p, id, req.Name, req.Description)
			if err != nil {
				respondServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, project)
		case http.MethodDelete:
			if err := a.tasks.DeleteProject(r.Context(), p, id); err != nil {
				respondServiceError(w, err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		default:
			methodNotAllowed(w, http.MethodGet, http.MethodPut, http.MethodDelete)
		}
	case "members":
		if r.Method != http.MethodPut {
			methodNotAllowed(w, http.MethodPut)
			return
		}
		var req membersRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := a.tasks.SetProjectMembers(r.Context(), p, id, req.UserIDs); err != nil {
			respondServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	case "tasks":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, http.MethodGet)
			return
		}
		list, err := a.tasks.ListProjectTasks(r.Context(), p, id, taskFilterFromQuery(r))
		if err != nil {
			respondServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"tasks": list})
	case "stats":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, http.MethodGet)
			return
		}
		stats, err := a.tasks.ProjectStats(r.Context(), p, id)
		if err != nil {
			respondServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	default:
		writeError(w, http.StatusNotFound, "resource not found")
	}
}

func taskFilterFromQuery(r *http.Request) tasks.TaskFilter {
	q := r.URL.Query()
	return tasks.TaskFilter{
		Status:   tasks.TaskStatus(q.Get("status")),
		Priority: tasks.Priority(q.Get("priority")),
		Search:   q.Get("q"),
	}
}

func (a *API) handleTasks(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	switch r.Method {
	case http.MethodGet:
		list, err := a.tasks.ListMyTasks(r.Context(), p, taskFilterFromQuery(r))
		if err != nil {
			respondServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"tasks": list})
	case http.MethodPost:
		var req taskCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		task, err := a.tasks.CreateTask(r.Context(), p, tasks.CreateTaskInput{
			Title:       req.Title,
			Description: req.Description,
			Priority:    tasks.Priority(req.Priority),
			ProjectID:   req.ProjectID,
			ParentID:    req.ParentID,
			DueAt:       req.DueAt,
		})
		if err != nil {
			respondServiceError(w, err)
			return
		}
		w.Header().Set("Location", "/v1/tasks/"+task.ID)
		writeJSON(w, http.StatusCreated, task)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleTaskResource(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	id, sub, ok := splitResource(r.URL.Path, "/v1/tasks/")
	if !ok {
		writeError(w, http.StatusNotFound, "resource not found")
		return
	}

	switch sub {
	case "":
		switch r.Method {
		case http.MethodGet:
			task, err := a.tasks.GetTask(r.Context(), p, id)
			if err != nil {
				respondServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, task)
		case http.MethodPut:
			var req taskUpdateRequest
			if err := decodeJSON(r, &req); err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			in := tasks.UpdateTaskInput{
				Title:       req.Title,
				Description: req.Description,
				DueAt:       req.DueAt,
			}
			if req.Priority != nil {
				pr := tasks.Priority(*req.Priority)
				in.Priority = &pr
			}
			task, err := a.tasks.UpdateTask(r.Context(), p, id, in)
			if err != nil {
				respondServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, task)
		case http.MethodDelete:
			if err := a.tasks.DeleteTask(r.Context(), p, id); err != nil {
				respondServiceError(w, err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		default:
			methodNotAllowed(w, http.MethodGet, http.MethodPut, http.MethodDelete)
		}
	case "status":
		if r.Method != http.MethodPut {
			methodNotAllowed(w, http.MethodPut)
			return
		}
		var req taskStatusRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		task, err := a.tasks.UpdateTaskStatus(r.Context(), p, id, tasks.TaskStatus(req.Status))
		if err != nil {
			respondServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, task)
	case "assignees":
		if r.Method != http.MethodPut {
			methodNotAllowed(w, http.MethodPut)
			return
		}
		var req membersRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := a.tasks.AssignTask(r.Context(), p, id, req.UserIDs); err != nil {
			respondServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	case "comments":
		switch r.Method {
		case http.MethodGet:
			comments, err := a.tasks.ListComments(r.Context(), p, id)
			if err != nil {
				respondServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"comments": comments})
		case http.MethodPost:
			var req commentRequest
			if err := decodeJSON(r, &req); err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			comment, err := a.tasks.AddComment(r.Context(), p, id, req.Body)
			if err != nil {
				respondServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, comment)
		default:
			methodNotAllowed(w, http.MethodGet, http.MethodPost)
		}
	case "attachments":
		switch r.Method {
		case http.MethodGet:
			attachments, err := a.tasks.ListAttachments(r.Context(), p, id)
			if err != nil {
				respondServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"attachments": attachments})
		case http.MethodPost:
			var req attachmentRequest
			if err := decodeJSON(r, &req); err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			attachment, err := a.tasks.AddAttachment(r.Context(), p, id, tasks.AttachmentInput{
				FileName:    req.FileName,
				ContentType: req.ContentType,
				SizeBytes:   req.SizeBytes,
			})
			if err != nil {
				respondServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, attachment)
		default:
			methodNotAllowed(w, http.MethodGet, http.MethodPost)
		}
	default:
		writeError(w, http.StatusNotFound, "resource not found")
	}
}

func (a *API) handleCommentResource(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	id, sub, ok := splitResource(r.URL.Path, "/v1/comments/")
	if !ok || sub != "" {
		writeError(w, http.StatusNotFound, "resource not found")
		return
	}
	switch r.Method {
	case http.MethodPut:
		var req commentRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		comment, err := a.tasks.UpdateComment(r.Context(), p, id, req.Body)
		if err != nil {
			respondServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, comment)
	case http.MethodDelete:
		if err := a.tasks.DeleteComment(r.Context(), p, id); err != nil {
			respondServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, http.MethodPut, http.MethodDelete)
	}
}

func (a *API) handleAttachmentResource(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	id, sub, ok := splitResource(r.URL.Path, "/v1/attachments/")
	if !ok || sub != "" {
		writeError(w, http.StatusNotFound, "resource not found")
		return
	}
	if r.Method != http.MethodDelete {
		methodNotAllowed(w, http.MethodDelete)
		return
	}
	if err := a.tasks.DeleteAttachment(r.Context(), p, id); err != nil {
		respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
