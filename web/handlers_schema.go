package web

import (
	"net/http"

	"github.com/fieldbase/fieldbase/domain/schema"
	"github.com/go-chi/chi/v5"
)

// CollectionRequest is the body of collection create/update.
type CollectionRequest struct {
	Slug string `json:"slug"`
	Name string `json:"name"`
}

// FieldRequest is the body of field create/update.
type FieldRequest struct {
	Slug     string              `json:"slug"`
	Name     string              `json:"name"`
	Type     string              `json:"type"`
	Required bool                `json:"required"`
	Unique   bool                `json:"unique"`
	Default  any                 `json:"default,omitempty"`
	Options  schema.FieldOptions `json:"options"`
	SortOrder int                `json:"sortOrder"`
}

// ListCollections returns the workspace's collections.
func (h *Handler) ListCollections(w http.ResponseWriter, r *http.Request) {
	cols, err := h.schemas.ListCollections(r.Context(), chi.URLParam(r, "workspaceID"))
	if err != nil {
		h.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"collections": cols})
}

// CreateCollection creates an empty collection.
func (h *Handler) CreateCollection(w http.ResponseWriter, r *http.Request) {
	var req CollectionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Slug == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "slug is required")
		return
	}

	col, err := h.schemas.CreateCollection(r.Context(), chi.URLParam(r, "workspaceID"), req.Slug, req.Name)
	if err != nil {
		h.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, col)
}

// GetCollection returns one collection with its fields.
func (h *Handler) GetCollection(w http.ResponseWriter, r *http.Request) {
	col, fields, err := h.schemas.GetCollection(r.Context(), chi.URLParam(r, "workspaceID"), chi.URLParam(r, "id"))
	if err != nil {
		h.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"collection": col,
		"fields":     fields,
	})
}

// UpdateCollection renames or re-slugs a collection.
func (h *Handler) UpdateCollection(w http.ResponseWriter, r *http.Request) {
	var req CollectionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	col, err := h.schemas.UpdateCollection(r.Context(), schema.Collection{
		ID:          chi.URLParam(r, "id"),
		WorkspaceID: chi.URLParam(r, "workspaceID"),
		Slug:        req.Slug,
		Name:        req.Name,
	})
	if err != nil {
		h.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, col)
}

// DeleteCollection removes a collection, its fields and records.
func (h *Handler) DeleteCollection(w http.ResponseWriter, r *http.Request) {
	if err := h.schemas.DeleteCollection(r.Context(), chi.URLParam(r, "workspaceID"), chi.URLParam(r, "id")); err != nil {
		h.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// CreateField adds a field to a collection.
func (h *Handler) CreateField(w http.ResponseWriter, r *http.Request) {
	var req FieldRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Slug == "" || req.Type == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "slug and type are required")
		return
	}
	if !schema.FieldType(req.Type).Known() {
		writeError(w, http.StatusBadRequest, "invalid_request", "unknown field type")
		return
	}

	field, err := h.schemas.CreateField(r.Context(), chi.URLParam(r, "workspaceID"), schema.Field{
		CollectionID: chi.URLParam(r, "id"),
		Slug:         req.Slug,
		Name:         req.Name,
		Type:         schema.FieldType(req.Type),
		Required:     req.Required,
		Unique:       req.Unique,
		Default:      req.Default,
		Options:      req.Options,
		SortOrder:    req.SortOrder,
	})
	if err != nil {
		h.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, field)
}

// UpdateField modifies a field definition.
func (h *Handler) UpdateField(w http.ResponseWriter, r *http.Request) {
	var req FieldRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Type != "" && !schema.FieldType(req.Type).Known() {
		writeError(w, http.StatusBadRequest, "invalid_request", "unknown field type")
		return
	}

	field, err := h.schemas.UpdateField(r.Context(), chi.URLParam(r, "workspaceID"), schema.Field{
		ID:        chi.URLParam(r, "id"),
		Slug:      req.Slug,
		Name:      req.Name,
		Type:      schema.FieldType(req.Type),
		Required:  req.Required,
		Unique:    req.Unique,
		Default:   req.Default,
		Options:   req.Options,
		SortOrder: req.SortOrder,
	})
	if err != nil {
		h.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, field)
}

// DeleteField removes a field definition.
func (h *Handler) DeleteField(w http.ResponseWriter, r *http.Request) {
	if err := h.schemas.DeleteField(r.Context(), chi.URLParam(r, "workspaceID"), chi.URLParam(r, "id")); err != nil {
		h.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
