package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// WorkspaceRequest is the body of a workspace patch. Absent fields are left
// untouched.
type WorkspaceRequest struct {
	Name   *string `json:"name"`
	Active *bool   `json:"active"`
}

// GetWorkspace returns the caller's workspace.
func (h *Handler) GetWorkspace(w http.ResponseWriter, r *http.Request) {
	ws, err := h.workspaces.Get(r.Context(), chi.URLParam(r, "workspaceID"))
	if err != nil {
		h.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ws)
}

// UpdateWorkspace renames or toggles the workspace.
func (h *Handler) UpdateWorkspace(w http.ResponseWriter, r *http.Request) {
	var req WorkspaceRequest
	if !decodeBody(w, r, &req) {
		return
	}

	ctx := r.Context()
	id := chi.URLParam(r, "workspaceID")

	if req.Name != nil {
		if _, err := h.workspaces.Rename(ctx, id, *req.Name); err != nil {
			h.storeError(w, err)
			return
		}
	}
	if req.Active != nil {
		if _, err := h.workspaces.SetActive(ctx, id, *req.Active); err != nil {
			h.storeError(w, err)
			return
		}
	}

	ws, err := h.workspaces.Get(ctx, id)
	if err != nil {
		h.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ws)
}
