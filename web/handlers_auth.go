package web

import (
	"errors"
	"net/http"

	"github.com/fieldbase/fieldbase/app"
)

// RegisterRequest creates a workspace plus its first member.
type RegisterRequest struct {
	WorkspaceSlug string `json:"workspaceSlug"`
	WorkspaceName string `json:"workspaceName"`
	Email         string `json:"email"`
	Name          string `json:"name"`
	Password      string `json:"password"`
}

// LoginRequest authenticates a workspace member.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register handles workspace signup.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.WorkspaceSlug == "" || req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "workspaceSlug, email and password are required")
		return
	}

	ws, session, err := h.auth.Register(r.Context(), req.WorkspaceSlug, req.WorkspaceName, req.Email, req.Name, req.Password)
	if err != nil {
		h.storeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"workspace": ws,
		"session":   session,
	})
}

// Login handles member login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeBody(w, r, &req) {
		return
	}

	session, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, app.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid email or password")
			return
		}
		h.storeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"session": session})
}
