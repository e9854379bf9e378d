package web_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldbase/fieldbase/adapters/auth"
	"github.com/fieldbase/fieldbase/adapters/clock"
	"github.com/fieldbase/fieldbase/adapters/hasher"
	"github.com/fieldbase/fieldbase/adapters/idgen"
	"github.com/fieldbase/fieldbase/adapters/memory"
	"github.com/fieldbase/fieldbase/adapters/sqlite"
	"github.com/fieldbase/fieldbase/app"
	"github.com/fieldbase/fieldbase/web"
)

// testServer wires the full stack over an in-memory database.
type testServer struct {
	t      *testing.T
	server *httptest.Server
	token  string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	db, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { db.Close() })

	logger := zerolog.Nop()
	clk := clock.Real{}
	ids := idgen.UUID{}

	workspaces := sqlite.NewWorkspaceStore(db)
	collections := sqlite.NewCollectionStore(db)
	fields := sqlite.NewFieldStore(db)
	records := sqlite.NewRecordStore(db)
	compositions := sqlite.NewCompositionStore(db)
	users := sqlite.NewUserStore(db)

	registry := memory.NewSchemaCache(collections, fields, clk, time.Minute)
	executor := sqlite.NewExecutor(db)
	tokens := auth.NewTokenService("test-secret", time.Hour)

	handler := web.NewHandler(web.Deps{
		Auth:         app.NewAuthService(workspaces, users, tokens, hasher.Fake{}, ids, clk, logger),
		Workspaces:   app.NewWorkspaceService(workspaces, clk, logger),
		Schemas:      app.NewSchemaService(collections, fields, registry, ids, logger),
		Records:      app.NewRecordService(records, registry, ids, clk, logger),
		Compositions: app.NewCompositionService(compositions, ids, clk, logger),
		Compose:      app.NewComposeService(workspaces, compositions, registry, executor, clk, logger, app.ComposeConfig{MaxLimit: 100}),
		Logger:       logger,
		Version:      "test",
	})

	server := httptest.NewServer(handler.Router())
	t.Cleanup(server.Close)
	return &testServer{t: t, server: server}
}

func (s *testServer) request(method, path string, body any) (int, map[string]any) {
	s.t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, s.server.URL+path, reader)
	require.NoError(s.t, err)
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(s.t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	raw, err := io.ReadAll(resp.Body)
	require.NoError(s.t, err)
	if len(raw) > 0 {
		require.NoError(s.t, json.Unmarshal(raw, &decoded), "body: %s", raw)
	}
	return resp.StatusCode, decoded
}

// register signs up a workspace and keeps the session token for later calls.
func (s *testServer) register(slug, email string) string {
	s.t.Helper()

	status, body := s.request(http.MethodPost, "/api/v1/register", map[string]any{
		"workspaceSlug": slug,
		"workspaceName": slug,
		"email":         email,
		"password":      "hunter2",
	})
	require.Equal(s.t, http.StatusCreated, status, "register: %v", body)

	s.token = body["session"].(map[string]any)["token"].(string)
	return body["workspace"].(map[string]any)["id"].(string)
}

func (s *testServer) api(wsID string, parts ...any) string {
	path := "/api/v1/workspaces/" + wsID
	for _, p := range parts {
		path += fmt.Sprintf("/%v", p)
	}
	return path
}

// buildTaskSchema creates a tasks collection with a minimal schema and a few
// records, returning the collection ID.
func (s *testServer) buildTaskSchema(wsID string) string {
	s.t.Helper()

	status, body := s.request(http.MethodPost, s.api(wsID, "collections"), map[string]any{
		"slug": "tasks", "name": "Tasks",
	})
	require.Equal(s.t, http.StatusCreated, status, "create collection: %v", body)
	colID := body["id"].(string)

	for _, f := range []map[string]any{
		{"slug": "title", "name": "Title", "type": "text", "required": true},
		{"slug": "estimate", "name": "Estimate", "type": "number"},
		{"slug": "done", "name": "Done", "type": "boolean", "default": false},
	} {
		status, body = s.request(http.MethodPost, s.api(wsID, "collections", colID, "fields"), f)
		require.Equal(s.t, http.StatusCreated, status, "create field: %v", body)
	}

	for _, rec := range []map[string]any{
		{"title": "Write spec", "estimate": 3},
		{"title": "Review PR", "estimate": 2, "done": true},
	} {
		status, body = s.request(http.MethodPost, s.api(wsID, "collections", colID, "records"), rec)
		require.Equal(s.t, http.StatusCreated, status, "create record: %v", body)
	}
	return colID
}

func TestAPI_RecordValidationErrors(t *testing.T) {
	s := newTestServer(t)
	wsID := s.register("acme", "ada@acme.test")
	colID := s.buildTaskSchema(wsID)

	status, body := s.request(http.MethodPost, s.api(wsID, "collections", colID, "records"), map[string]any{
		"estimate": "a lot",
		"mystery":  1,
	})

	assert.Equal(t, http.StatusBadRequest, status)
	errBody := body["error"].(map[string]any)
	assert.Equal(t, "validation_failed", errBody["code"])

	details := errBody["details"].([]any)
	codes := map[string]string{}
	for _, d := range details {
		fe := d.(map[string]any)
		codes[fe["field"].(string)] = fe["code"].(string)
	}
	assert.Equal(t, "required", codes["title"])
	assert.Equal(t, "type", codes["estimate"])
	assert.Equal(t, "unknown_field", codes["mystery"])
}

func TestAPI_PublicCompositionExecution(t *testing.T) {
	s := newTestServer(t)
	wsID := s.register("acme", "ada@acme.test")
	s.buildTaskSchema(wsID)

	status, body := s.request(http.MethodPost, s.api(wsID, "compositions"), map[string]any{
		"slug": "open-tasks", "name": "Open tasks",
		"accessLevel": "public",
		"config": map[string]any{
			"from":    "tasks",
			"select":  []string{"title", "estimate"},
			"filters": []map[string]any{{"field": "done", "operator": "eq", "value": false}},
			"sort":    []map[string]any{{"field": "estimate", "direction": "desc"}},
		},
	})
	require.Equal(t, http.StatusCreated, status, "create composition: %v", body)

	// Anonymous call: no Authorization header.
	s.token = ""
	status, body = s.request(http.MethodGet, "/c/acme/open-tasks", nil)
	require.Equal(t, http.StatusOK, status, "execute: %v", body)

	data := body["data"].([]any)
	require.Len(t, data, 1)
	row := data[0].(map[string]any)
	assert.Equal(t, "Write spec", row["title"])

	metadata := body["metadata"].(map[string]any)
	assert.Equal(t, float64(1), metadata["count"])
}

func TestAPI_DeactivatedWorkspaceLooksMissing(t *testing.T) {
	s := newTestServer(t)
	wsID := s.register("acme", "ada@acme.test")
	s.buildTaskSchema(wsID)

	status, body := s.request(http.MethodPost, s.api(wsID, "compositions"), map[string]any{
		"slug": "open-tasks", "name": "Open tasks",
		"accessLevel": "public",
		"config":      map[string]any{"from": "tasks", "select": []string{"title"}},
	})
	require.Equal(t, http.StatusCreated, status, "create composition: %v", body)

	status, body = s.request(http.MethodPatch, s.api(wsID), map[string]any{"active": false})
	require.Equal(t, http.StatusOK, status, "deactivate: %v", body)
	assert.Equal(t, false, body["isActive"])

	// The published endpoint vanishes, data intact.
	token := s.token
	s.token = ""
	status, _ = s.request(http.MethodGet, "/c/acme/open-tasks", nil)
	assert.Equal(t, http.StatusNotFound, status)

	s.token = token
	status, body = s.request(http.MethodPatch, s.api(wsID), map[string]any{"active": true})
	require.Equal(t, http.StatusOK, status, "reactivate: %v", body)

	s.token = ""
	status, _ = s.request(http.MethodGet, "/c/acme/open-tasks", nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestAPI_ParamBindingFromQueryString(t *testing.T) {
	s := newTestServer(t)
	wsID := s.register("acme", "ada@acme.test")
	s.buildTaskSchema(wsID)

	status, body := s.request(http.MethodPost, s.api(wsID, "compositions"), map[string]any{
		"slug": "by-title", "name": "By title",
		"accessLevel": "public",
		"config": map[string]any{
			"from":    "tasks",
			"select":  []string{"title"},
			"filters": []map[string]any{{"field": "title", "operator": "in", "param": "titles"}},
		},
	})
	require.Equal(t, http.StatusCreated, status, "create composition: %v", body)
	s.token = ""

	// Repeated query keys become the list an `in` filter expects.
	status, body = s.request(http.MethodGet, "/c/acme/by-title?titles=Write+spec&titles=Review+PR", nil)
	require.Equal(t, http.StatusOK, status, "execute: %v", body)
	assert.Len(t, body["data"].([]any), 2)

	// A single occurrence of the key arrives as a scalar and binds as a
	// one-element list.
	status, body = s.request(http.MethodGet, "/c/acme/by-title?titles=Review+PR", nil)
	require.Equal(t, http.StatusOK, status, "execute with one key: %v", body)
	assert.Len(t, body["data"].([]any), 1)

	// Without the parameter the request is a caller fault.
	status, body = s.request(http.MethodGet, "/c/acme/by-title", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "missing_param", body["error"].(map[string]any)["code"])
}

func TestAPI_InternalCompositionNeedsToken(t *testing.T) {
	s := newTestServer(t)
	wsID := s.register("acme", "ada@acme.test")
	s.buildTaskSchema(wsID)

	status, body := s.request(http.MethodPost, s.api(wsID, "compositions"), map[string]any{
		"slug": "team-view", "name": "Team view",
		"accessLevel": "internal",
		"config":      map[string]any{"from": "tasks", "select": []string{"title"}},
	})
	require.Equal(t, http.StatusCreated, status, "create composition: %v", body)
	token := s.token

	s.token = ""
	status, body = s.request(http.MethodGet, "/c/acme/team-view", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "unauthorized", body["error"].(map[string]any)["code"])

	s.token = token
	status, _ = s.request(http.MethodGet, "/c/acme/team-view", nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestAPI_ForeignWorkspaceLooksMissing(t *testing.T) {
	s := newTestServer(t)
	wsID := s.register("acme", "ada@acme.test")
	s.buildTaskSchema(wsID)

	// A member of another workspace cannot see acme's management API.
	s.register("rival", "eve@rival.test")
	status, body := s.request(http.MethodGet, s.api(wsID, "collections"), nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "not_found", body["error"].(map[string]any)["code"])
}

func TestAPI_PreviewAlwaysAnswers200(t *testing.T) {
	s := newTestServer(t)
	wsID := s.register("acme", "ada@acme.test")
	s.buildTaskSchema(wsID)

	// A valid config previews with data.
	status, body := s.request(http.MethodPost, s.api(wsID, "compositions", "preview"), map[string]any{
		"config": map[string]any{"from": "tasks", "select": []string{"title"}},
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["success"])
	assert.Len(t, body["data"].([]any), 2)

	// A broken config still answers 200, with the fault attributed.
	status, body = s.request(http.MethodPost, s.api(wsID, "compositions", "preview"), map[string]any{
		"config": map[string]any{
			"from":    "tasks",
			"filters": []map[string]any{{"field": "ghost", "operator": "eq", "value": 1}},
		},
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, body["success"])
	errBody := body["error"].(map[string]any)
	assert.Equal(t, "filters[0].field", errBody["field"])
}

func TestAPI_SchemaMutationInvalidatesCompositions(t *testing.T) {
	s := newTestServer(t)
	wsID := s.register("acme", "ada@acme.test")
	colID := s.buildTaskSchema(wsID)

	status, body := s.request(http.MethodPost, s.api(wsID, "compositions"), map[string]any{
		"slug": "titles", "name": "Titles",
		"accessLevel": "public",
		"config": map[string]any{
			"from":   "tasks",
			"select": []string{"title"},
		},
	})
	require.Equal(t, http.StatusCreated, status, "create composition: %v", body)
	token := s.token

	// Find and delete the title field; the composition now fails to compile.
	status, body = s.request(http.MethodGet, s.api(wsID, "collections", colID), nil)
	require.Equal(t, http.StatusOK, status)
	var fieldID string
	for _, f := range body["fields"].([]any) {
		field := f.(map[string]any)
		if field["slug"] == "title" {
			fieldID = field["id"].(string)
		}
	}
	require.NotEmpty(t, fieldID)

	status, _ = s.request(http.MethodDelete, s.api(wsID, "fields", fieldID), nil)
	require.Equal(t, http.StatusOK, status)

	s.token = ""
	status, body = s.request(http.MethodGet, "/c/acme/titles", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "compile_error", body["error"].(map[string]any)["code"])
	s.token = token
}
