package httpapi

import (
	"net/http"
	"time"

	"taskera.org/internal/audit"
	"taskera.org/internal/auth"
)

type registerRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type verifyRequest struct {
	UserID string `json:"user_id"`
	Token  string `json:"token"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type userResponse struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	Name         string `json:"name"`
	Status       string `json:"status"`
	DepartmentID string `json:"department_id,omitempty"`
	PositionID   string `json:"position_id,omitempty"`
	CreatedAt    string `json:"created_at,omitempty"`
}

// registerResponse carries the new account and its verification token. The
// token normally travels to the address being verified; no mail transport is
// wired, so the response is the delivery channel.
type registerResponse struct {
	User              userResponse `json:"user"`
	VerificationToken string       `json:"verification_token"`
}

type tokenResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	ExpiresIn    int64        `json:"expires_in"`
	User         userResponse `json:"user"`
}

func toUserResponse(u *auth.User) userResponse {
	resp := userResponse{
		ID:           u.ID,
		Email:        u.Email,
		Name:         u.Name,
		Status:       string(u.Status),
		DepartmentID: u.DepartmentID,
		PositionID:   u.PositionID,
	}
	if !u.CreatedAt.IsZero() {
		resp.CreatedAt = u.CreatedAt.UTC().Format(time.RFC3339)
	}
	return resp
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	user, verifyToken, err := a.auth.Register(r.Context(), req.Email, req.Name, req.Password)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.register", map[string]any{"user_id": user.ID})
	writeJSON(w, http.StatusCreated, registerResponse{
		User:              toUserResponse(user),
		VerificationToken: verifyToken,
	})
}

func (a *API) handleVerify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	var req verifyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.auth.VerifyEmail(r.Context(), req.UserID, req.Token); err != nil {
		respondServiceError(w, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.verify", map[string]any{"user_id": req.UserID})
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	user, pair, err := a.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.login", map[string]any{"user_id": user.ID})
	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    pair.ExpiresIn,
		User:         toUserResponse(user),
	})
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	pair, err := a.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
		"expires_in":    pair.ExpiresIn,
	})
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	p, ok := principal(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	if err := a.auth.Logout(r.Context(), p.UserID); err != nil {
		respondServiceError(w, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.logout", map[string]any{"user_id": p.UserID})
	w.WriteHeader(http.StatusNoContent)
}

// handleMe returns the caller's own record; always permitted for an
// authenticated principal, whatever the account status.
func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	p, ok := principal(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	user, err := a.org.GetUser(r.Context(), p, p.UserID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}
