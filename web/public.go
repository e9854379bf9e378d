package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// ExecuteComposition runs a saved composition by its public path. Query
// string parameters bind the config's named holes; a repeated key becomes a
// list, which is what `in` filters expect.
func (h *Handler) ExecuteComposition(w http.ResponseWriter, r *http.Request) {
	workspaceSlug := chi.URLParam(r, "workspaceSlug")
	compositionSlug := chi.URLParam(r, "compositionSlug")

	authenticated := getClaims(r.Context()) != nil
	params := queryParams(r)

	result := h.compose.Execute(r.Context(), workspaceSlug, compositionSlug, params, authenticated)
	if result.Error != nil {
		writeJSON(w, result.Status, map[string]any{"error": result.Error})
		return
	}

	writeJSON(w, result.Status, map[string]any{
		"data":     result.Data,
		"metadata": result.Metadata,
	})
}

// queryParams flattens the query string into a param map. Single values stay
// scalar strings; repeated keys become lists.
func queryParams(r *http.Request) map[string]any {
	values := r.URL.Query()
	if len(values) == 0 {
		return nil
	}

	params := make(map[string]any, len(values))
	for key, vals := range values {
		if len(vals) == 1 {
			params[key] = vals[0]
			continue
		}
		list := make([]any, len(vals))
		for i, v := range vals {
			list[i] = v
		}
		params[key] = list
	}
	return params
}
