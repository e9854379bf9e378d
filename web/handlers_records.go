package web

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/fieldbase/fieldbase/app"
	"github.com/go-chi/chi/v5"
)

// ListRecords returns a page of a collection's records.
func (h *Handler) ListRecords(w http.ResponseWriter, r *http.Request) {
	limit := parseIntQuery(r, "limit", 50)
	offset := parseIntQuery(r, "offset", 0)

	recs, err := h.records.List(r.Context(), chi.URLParam(r, "workspaceID"), chi.URLParam(r, "id"), limit, offset)
	if err != nil {
		h.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"records": recs,
		"limit":   limit,
		"offset":  offset,
	})
}

// CreateRecord validates and stores a new record.
func (h *Handler) CreateRecord(w http.ResponseWriter, r *http.Request) {
	var data map[string]any
	if !decodeBody(w, r, &data) {
		return
	}

	rec, err := h.records.Create(r.Context(), chi.URLParam(r, "workspaceID"), chi.URLParam(r, "id"), data)
	if err != nil {
		h.recordError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// GetRecord returns one record.
func (h *Handler) GetRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := h.records.Get(r.Context(), chi.URLParam(r, "workspaceID"), chi.URLParam(r, "id"))
	if err != nil {
		h.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// UpdateRecord validates a partial payload and merges it over the stored
// record. An explicit null clears the field.
func (h *Handler) UpdateRecord(w http.ResponseWriter, r *http.Request) {
	var data map[string]any
	if !decodeBody(w, r, &data) {
		return
	}

	rec, err := h.records.Update(r.Context(), chi.URLParam(r, "workspaceID"), chi.URLParam(r, "id"), data)
	if err != nil {
		h.recordError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// DeleteRecord removes a record.
func (h *Handler) DeleteRecord(w http.ResponseWriter, r *http.Request) {
	if err := h.records.Delete(r.Context(), chi.URLParam(r, "workspaceID"), chi.URLParam(r, "id")); err != nil {
		h.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// recordError maps validation failures onto a 400 carrying every field
// error, and defers to storeError for the rest.
func (h *Handler) recordError(w http.ResponseWriter, err error) {
	var validationErr *app.ValidationError
	if errors.As(err, &validationErr) {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error": map[string]any{
				"code":    "validation_failed",
				"message": "record validation failed",
				"details": validationErr.Errors,
			},
		})
		return
	}
	h.storeError(w, err)
}

func parseIntQuery(r *http.Request, name string, defaultVal int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	return v
}
