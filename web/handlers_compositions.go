package web

import (
	"net/http"

	"github.com/fieldbase/fieldbase/domain/composition"
	"github.com/go-chi/chi/v5"
)

// CompositionRequest is the body of composition create/update.
type CompositionRequest struct {
	Slug        string             `json:"slug"`
	Name        string             `json:"name"`
	Config      composition.Config `json:"config"`
	AccessLevel string             `json:"accessLevel"`
	Active      *bool              `json:"isActive,omitempty"`
}

// PreviewRequest runs an unsaved config against live data.
type PreviewRequest struct {
	Config composition.Config `json:"config"`
	Params map[string]any     `json:"params,omitempty"`
}

// ListCompositions returns the workspace's compositions.
func (h *Handler) ListCompositions(w http.ResponseWriter, r *http.Request) {
	comps, err := h.compositions.List(r.Context(), chi.URLParam(r, "workspaceID"))
	if err != nil {
		h.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"compositions": comps})
}

// CreateComposition stores a new composition.
func (h *Handler) CreateComposition(w http.ResponseWriter, r *http.Request) {
	var req CompositionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Slug == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "slug is required")
		return
	}

	comp, err := h.compositions.Create(r.Context(), composition.Composition{
		WorkspaceID: chi.URLParam(r, "workspaceID"),
		Slug:        req.Slug,
		Name:        req.Name,
		Config:      req.Config,
		AccessLevel: req.AccessLevel,
	})
	if err != nil {
		h.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, comp)
}

// GetComposition returns one composition.
func (h *Handler) GetComposition(w http.ResponseWriter, r *http.Request) {
	comp, err := h.compositions.Get(r.Context(), chi.URLParam(r, "workspaceID"), chi.URLParam(r, "id"))
	if err != nil {
		h.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, comp)
}

// UpdateComposition replaces a composition's mutable attributes.
func (h *Handler) UpdateComposition(w http.ResponseWriter, r *http.Request) {
	var req CompositionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	comp, err := h.compositions.Update(r.Context(), composition.Composition{
		ID:          chi.URLParam(r, "id"),
		WorkspaceID: chi.URLParam(r, "workspaceID"),
		Slug:        req.Slug,
		Name:        req.Name,
		Config:      req.Config,
		AccessLevel: req.AccessLevel,
		Active:      active,
	})
	if err != nil {
		h.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, comp)
}

// DeleteComposition removes a composition.
func (h *Handler) DeleteComposition(w http.ResponseWriter, r *http.Request) {
	if err := h.compositions.Delete(r.Context(), chi.URLParam(r, "workspaceID"), chi.URLParam(r, "id")); err != nil {
		h.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// PreviewComposition runs an unsaved config. The response is always 200;
// success or failure lives in the body so the builder UI can attribute a
// failure to the config clause that caused it.
func (h *Handler) PreviewComposition(w http.ResponseWriter, r *http.Request) {
	var req PreviewRequest
	if !decodeBody(w, r, &req) {
		return
	}

	result := h.compose.Preview(r.Context(), chi.URLParam(r, "workspaceID"), req.Config, req.Params)
	writeJSON(w, http.StatusOK, result)
}
