// Package web provides the HTTP surface: the public composition endpoint
// and the workspace management API. All responses are JSON.
package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/fieldbase/fieldbase/adapters/auth"
	"github.com/fieldbase/fieldbase/adapters/metrics"
	"github.com/fieldbase/fieldbase/app"
	"github.com/fieldbase/fieldbase/ports"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// Handler provides all HTTP endpoints.
type Handler struct {
	auth         *app.AuthService
	workspaces   *app.WorkspaceService
	schemas      *app.SchemaService
	records      *app.RecordService
	compositions *app.CompositionService
	compose      *app.ComposeService
	metrics      *metrics.Collector
	logger       zerolog.Logger
	version      string
	startTime    time.Time
}

// Deps contains dependencies for the HTTP handler.
type Deps struct {
	Auth         *app.AuthService
	Workspaces   *app.WorkspaceService
	Schemas      *app.SchemaService
	Records      *app.RecordService
	Compositions *app.CompositionService
	Compose      *app.ComposeService
	Metrics      *metrics.Collector
	Logger       zerolog.Logger
	Version      string
}

// NewHandler creates the HTTP handler.
func NewHandler(deps Deps) *Handler {
	return &Handler{
		auth:         deps.Auth,
		workspaces:   deps.Workspaces,
		schemas:      deps.Schemas,
		records:      deps.Records,
		compositions: deps.Compositions,
		compose:      deps.Compose,
		metrics:      deps.Metrics,
		logger:       deps.Logger.With().Str("component", "web").Logger(),
		version:      deps.Version,
		startTime:    time.Now(),
	}
}

// Router returns the full API router.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(h.requestMetrics)

	r.Get("/healthz", h.Health)
	r.Get("/version", h.Version)

	// Public composition endpoint. Auth is optional here: a valid token
	// upgrades the caller for internal-tier compositions.
	r.With(h.OptionalAuth).Get("/c/{workspaceSlug}/{compositionSlug}", h.ExecuteComposition)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)

		r.Route("/workspaces/{workspaceID}", func(r chi.Router) {
			r.Use(h.RequireAuth)
			r.Use(h.RequireWorkspace)

			r.Get("/", h.GetWorkspace)
			r.Patch("/", h.UpdateWorkspace)

			r.Get("/collections", h.ListCollections)
			r.Post("/collections", h.CreateCollection)
			r.Get("/collections/{id}", h.GetCollection)
			r.Put("/collections/{id}", h.UpdateCollection)
			r.Delete("/collections/{id}", h.DeleteCollection)

			r.Post("/collections/{id}/fields", h.CreateField)
			r.Put("/fields/{id}", h.UpdateField)
			r.Delete("/fields/{id}", h.DeleteField)

			r.Get("/collections/{id}/records", h.ListRecords)
			r.Post("/collections/{id}/records", h.CreateRecord)
			r.Get("/records/{id}", h.GetRecord)
			r.Patch("/records/{id}", h.UpdateRecord)
			r.Delete("/records/{id}", h.DeleteRecord)

			r.Get("/compositions", h.ListCompositions)
			r.Post("/compositions", h.CreateComposition)
			r.Get("/compositions/{id}", h.GetComposition)
			r.Put("/compositions/{id}", h.UpdateComposition)
			r.Delete("/compositions/{id}", h.DeleteComposition)
			r.Post("/compositions/preview", h.PreviewComposition)
		})
	})

	return r
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(h.startTime).Round(time.Second).String(),
	})
}

// Version reports the build version.
func (h *Handler) Version(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": h.version})
}

// requestMetrics records request counts and latency per route pattern.
func (h *Handler) requestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.metrics == nil {
			next.ServeHTTP(w, r)
			return
		}

		h.metrics.RequestsInFlight.Inc()
		defer h.metrics.RequestsInFlight.Dec()

		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		pattern := chi.RouteContext(r.Context()).RoutePattern()
		if pattern == "" {
			pattern = "unmatched"
		}
		h.metrics.RequestsTotal.WithLabelValues(r.Method, pattern, strconv.Itoa(ww.Status())).Inc()
		h.metrics.RequestDuration.WithLabelValues(r.Method, pattern).Observe(time.Since(start).Seconds())
	})
}

// RequireAuth validates the Bearer token and stores its claims in context.
func (h *Handler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := h.bearerClaims(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
			return
		}
		next.ServeHTTP(w, r.WithContext(withClaims(r.Context(), claims)))
	})
}

// OptionalAuth attaches claims when a valid Bearer token is present and
// passes the request through untouched otherwise.
func (h *Handler) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if claims, ok := h.bearerClaims(r); ok {
			r = r.WithContext(withClaims(r.Context(), claims))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireWorkspace checks that the session belongs to the workspace named in
// the URL. A foreign workspace is reported as missing, not forbidden.
func (h *Handler) RequireWorkspace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := getClaims(r.Context())
		if claims == nil || claims.WorkspaceID != chi.URLParam(r, "workspaceID") {
			writeError(w, http.StatusNotFound, "not_found", "workspace not found")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) bearerClaims(r *http.Request) (*auth.Claims, bool) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || header[:len(prefix)] != prefix {
		return nil, false
	}
	c, err := h.auth.Validate(header[len(prefix):])
	if err != nil {
		return nil, false
	}
	return c, true
}

// storeError maps store sentinels onto HTTP errors.
func (h *Handler) storeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ports.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "resource not found")
	case errors.Is(err, ports.ErrDuplicate):
		writeError(w, http.StatusConflict, "duplicate", "resource already exists")
	default:
		h.logger.Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return false
	}
	return true
}
