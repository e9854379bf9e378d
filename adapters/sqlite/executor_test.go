package sqlite

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/fieldbase/fieldbase/domain/composition"
	"github.com/fieldbase/fieldbase/domain/record"
	"github.com/fieldbase/fieldbase/domain/schema"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	// One connection, or each pooled connection gets its own empty memory DB.
	db.SetMaxOpenConns(1)
	if err := db.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// staticResolver serves compile-time schema lookups, keyed workspace/slug.
type staticResolver map[string]*schema.FieldSet

func (r staticResolver) CollectionBySlug(_ context.Context, workspaceID, slug string) (*schema.FieldSet, error) {
	return r[workspaceID+"/"+slug], nil
}

// seedQueryFixture loads two workspaces: ws1 with tasks and projects, and ws2
// with its own tasks collection to prove isolation.
func seedQueryFixture(t *testing.T, db *DB) staticResolver {
	t.Helper()
	ctx := context.Background()
	workspaces := NewWorkspaceStore(db)
	collections := NewCollectionStore(db)
	records := NewRecordStore(db)

	for _, ws := range []schema.Workspace{
		{ID: "ws1", Slug: "acme", Name: "Acme", Active: true},
		{ID: "ws2", Slug: "rival", Name: "Rival", Active: true},
	} {
		if err := workspaces.Create(ctx, ws); err != nil {
			t.Fatalf("seed workspace %s: %v", ws.ID, err)
		}
	}

	taskCol := schema.Collection{ID: "col-tasks", WorkspaceID: "ws1", Slug: "tasks", Name: "Tasks"}
	projCol := schema.Collection{ID: "col-projects", WorkspaceID: "ws1", Slug: "projects", Name: "Projects"}
	foreignCol := schema.Collection{ID: "col-foreign", WorkspaceID: "ws2", Slug: "tasks", Name: "Tasks"}
	for _, col := range []schema.Collection{taskCol, projCol, foreignCol} {
		if err := collections.Create(ctx, col); err != nil {
			t.Fatalf("seed collection %s: %v", col.ID, err)
		}
	}

	taskFields := []schema.Field{
		{Slug: "title", Type: schema.FieldTypeText},
		{Slug: "estimate", Type: schema.FieldTypeNumber},
		{Slug: "project", Type: schema.FieldTypeText},
		{Slug: "done", Type: schema.FieldTypeBoolean},
		{Slug: "tags", Type: schema.FieldTypeMultiSelect},
		{Slug: "meta", Type: schema.FieldTypeJSON},
	}
	projFields := []schema.Field{
		{Slug: "code", Type: schema.FieldTypeText},
		{Slug: "owner", Type: schema.FieldTypeText},
		{Slug: "budget", Type: schema.FieldTypeNumber},
	}

	seed := []record.Record{
		{ID: "r1", WorkspaceID: "ws1", CollectionID: "col-tasks", Data: map[string]any{
			"title": "Write spec", "estimate": 3, "project": "alpha", "done": false,
			"tags": []any{"a", "b"}, "meta": map[string]any{"origin": "import"},
		}},
		{ID: "r2", WorkspaceID: "ws1", CollectionID: "col-tasks", Data: map[string]any{
			"title": "Review PR", "estimate": 2, "project": "alpha", "done": true,
		}},
		{ID: "r3", WorkspaceID: "ws1", CollectionID: "col-tasks", Data: map[string]any{
			"title": "Deploy release", "estimate": 8, "project": "beta", "done": false,
		}},
		{ID: "p1", WorkspaceID: "ws1", CollectionID: "col-projects", Data: map[string]any{
			"code": "alpha", "owner": "ada", "budget": 100,
		}},
		{ID: "p2", WorkspaceID: "ws1", CollectionID: "col-projects", Data: map[string]any{
			"code": "beta", "owner": "grace", "budget": 50,
		}},
		{ID: "f1", WorkspaceID: "ws2", CollectionID: "col-foreign", Data: map[string]any{
			"title": "Not yours",
		}},
	}
	for _, rec := range seed {
		if err := records.Create(ctx, rec); err != nil {
			t.Fatalf("seed record %s: %v", rec.ID, err)
		}
	}

	return staticResolver{
		"ws1/tasks":    schema.NewFieldSet(taskCol, taskFields),
		"ws1/projects": schema.NewFieldSet(projCol, projFields),
		"ws2/tasks":    schema.NewFieldSet(foreignCol, []schema.Field{{Slug: "title", Type: schema.FieldTypeText}}),
	}
}

func mustCompile(t *testing.T, cfg composition.Config, resolver composition.SchemaResolver) *composition.QueryPlan {
	t.Helper()
	plan, err := composition.Compile(context.Background(), cfg, "ws1", resolver, composition.CompileOptions{})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	return plan
}

func TestExecutor_ProjectionAndFilter(t *testing.T) {
	db := testDB(t)
	resolver := seedQueryFixture(t, db)
	exec := NewExecutor(db)

	plan := mustCompile(t, composition.Config{
		From:    "tasks",
		Select:  []string{"title", "estimate", "done"},
		Filters: []composition.Filter{{Field: "done", Op: composition.OpEq, Value: false}},
		Sort:    []composition.Sort{{Field: "estimate"}},
	}, resolver)

	result, err := exec.Execute(context.Background(), plan, nil)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.Count != 2 || len(result.Rows) != 2 {
		t.Fatalf("Count = %d, Rows = %d, want 2", result.Count, len(result.Rows))
	}
	if got := result.Rows[0]["title"]; got != "Write spec" {
		t.Errorf("rows[0].title = %v, want Write spec", got)
	}
	if got := result.Rows[1]["title"]; got != "Deploy release" {
		t.Errorf("rows[1].title = %v, want Deploy release", got)
	}
	// JSON booleans come back as Go bools, not SQLite integers.
	if got := result.Rows[0]["done"]; got != false {
		t.Errorf("rows[0].done = %v (%T), want false", got, got)
	}
	if got := result.Rows[1]["estimate"]; got != int64(8) {
		t.Errorf("rows[1].estimate = %v (%T), want 8", got, got)
	}
}

func TestExecutor_WorkspaceIsolation(t *testing.T) {
	db := testDB(t)
	resolver := seedQueryFixture(t, db)
	exec := NewExecutor(db)

	plan := mustCompile(t, composition.Config{From: "tasks"}, resolver)
	result, err := exec.Execute(context.Background(), plan, nil)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.Count != 3 {
		t.Errorf("Count = %d, want 3 (ws2 rows leaked)", result.Count)
	}
	for _, row := range result.Rows {
		if row["title"] == "Not yours" {
			t.Error("record from a foreign workspace surfaced")
		}
	}
}

func TestExecutor_GroupBySum(t *testing.T) {
	db := testDB(t)
	resolver := seedQueryFixture(t, db)
	exec := NewExecutor(db)

	plan := mustCompile(t, composition.Config{
		From:    "tasks",
		GroupBy: []string{"project"},
		Aggregations: []composition.Aggregation{
			{Func: composition.AggCount, Alias: "n"},
			{Func: composition.AggSum, Field: "estimate", Alias: "total"},
		},
		Sort: []composition.Sort{{Field: "total", Direction: "desc"}},
	}, resolver)

	result, err := exec.Execute(context.Background(), plan, nil)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	want := []map[string]any{
		{"project": "beta", "n": int64(1), "total": int64(8)},
		{"project": "alpha", "n": int64(2), "total": int64(5)},
	}
	if !reflect.DeepEqual(result.Rows, want) {
		t.Errorf("Rows = %+v, want %+v", result.Rows, want)
	}
}

func TestExecutor_Join(t *testing.T) {
	db := testDB(t)
	resolver := seedQueryFixture(t, db)
	exec := NewExecutor(db)

	plan := mustCompile(t, composition.Config{
		From: "tasks",
		Joins: []composition.Join{
			{Collection: "projects", On: composition.JoinOn{Left: "project", Right: "code"}},
		},
		Select:  []string{"title", "owner"},
		Filters: []composition.Filter{{Field: "done", Op: composition.OpEq, Value: false}},
		Sort:    []composition.Sort{{Field: "title"}},
	}, resolver)

	result, err := exec.Execute(context.Background(), plan, nil)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	want := []map[string]any{
		{"title": "Deploy release", "owner": "grace"},
		{"title": "Write spec", "owner": "ada"},
	}
	if !reflect.DeepEqual(result.Rows, want) {
		t.Errorf("Rows = %+v, want %+v", result.Rows, want)
	}
}

func TestExecutor_WorkspaceMismatch(t *testing.T) {
	db := testDB(t)
	resolver := seedQueryFixture(t, db)
	exec := NewExecutor(db)

	// A plan compiled from a stale snapshot may carry collections that no
	// longer belong to the executing workspace.
	plan := mustCompile(t, composition.Config{From: "tasks"}, resolver)
	plan.WorkspaceID = "ws2"

	_, err := exec.Execute(context.Background(), plan, nil)
	if !errors.Is(err, composition.ErrWorkspaceMismatch) {
		t.Fatalf("err = %v, want ErrWorkspaceMismatch", err)
	}
}

func TestExecutor_MissingParam(t *testing.T) {
	db := testDB(t)
	resolver := seedQueryFixture(t, db)
	exec := NewExecutor(db)

	plan := mustCompile(t, composition.Config{
		From:    "tasks",
		Filters: []composition.Filter{{Field: "project", Op: composition.OpEq, Param: "p"}},
	}, resolver)

	_, err := exec.Execute(context.Background(), plan, map[string]any{})
	var pe *composition.ParamError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v, want *ParamError", err)
	}
	if pe.Param != "p" {
		t.Errorf("Param = %q, want p", pe.Param)
	}
}

func TestExecutor_InOperator(t *testing.T) {
	db := testDB(t)
	resolver := seedQueryFixture(t, db)
	exec := NewExecutor(db)

	plan := mustCompile(t, composition.Config{
		From:    "tasks",
		Select:  []string{"title"},
		Filters: []composition.Filter{{Field: "project", Op: composition.OpIn, Param: "ps"}},
	}, resolver)
	ctx := context.Background()

	result, err := exec.Execute(ctx, plan, map[string]any{"ps": []any{"beta"}})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.Count != 1 || result.Rows[0]["title"] != "Deploy release" {
		t.Errorf("Rows = %+v, want one beta task", result.Rows)
	}

	// Repeated query keys arrive as []string; those bind too.
	result, err = exec.Execute(ctx, plan, map[string]any{"ps": []string{"alpha", "beta"}})
	if err != nil {
		t.Fatalf("execute with []string: %v", err)
	}
	if result.Count != 3 {
		t.Errorf("Count = %d, want 3", result.Count)
	}

	// An empty list matches nothing rather than everything.
	result, err = exec.Execute(ctx, plan, map[string]any{"ps": []any{}})
	if err != nil {
		t.Fatalf("execute with empty list: %v", err)
	}
	if result.Count != 0 {
		t.Errorf("Count = %d, want 0 for empty in-list", result.Count)
	}

	// A single value for the key arrives as a bare scalar; it binds as a
	// one-element list.
	result, err = exec.Execute(ctx, plan, map[string]any{"ps": "beta"})
	if err != nil {
		t.Fatalf("execute with scalar: %v", err)
	}
	if result.Count != 1 || result.Rows[0]["title"] != "Deploy release" {
		t.Errorf("Rows = %+v, want one beta task for scalar in-value", result.Rows)
	}
}

func TestExecutor_ParamCoercion(t *testing.T) {
	db := testDB(t)
	resolver := seedQueryFixture(t, db)
	exec := NewExecutor(db)

	plan := mustCompile(t, composition.Config{
		From:    "tasks",
		Select:  []string{"title"},
		Filters: []composition.Filter{{Field: "estimate", Op: composition.OpGt, Param: "min"}},
	}, resolver)
	ctx := context.Background()

	// Query-string values arrive as strings; numeric fields parse them.
	result, err := exec.Execute(ctx, plan, map[string]any{"min": "4"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.Count != 1 || result.Rows[0]["title"] != "Deploy release" {
		t.Errorf("Rows = %+v, want the 8-point task only", result.Rows)
	}

	_, err = exec.Execute(ctx, plan, map[string]any{"min": "lots"})
	var pe *composition.ParamError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v, want *ParamError for unparseable number", err)
	}
	if pe.Param != "min" {
		t.Errorf("Param = %q, want min", pe.Param)
	}
}

func TestExecutor_BooleanParamCoercion(t *testing.T) {
	db := testDB(t)
	resolver := seedQueryFixture(t, db)
	exec := NewExecutor(db)

	plan := mustCompile(t, composition.Config{
		From:    "tasks",
		Select:  []string{"title"},
		Filters: []composition.Filter{{Field: "done", Op: composition.OpEq, Param: "done"}},
	}, resolver)

	result, err := exec.Execute(context.Background(), plan, map[string]any{"done": "true"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.Count != 1 || result.Rows[0]["title"] != "Review PR" {
		t.Errorf("Rows = %+v, want the one finished task", result.Rows)
	}
}

func TestExecutor_ContainsCaseInsensitive(t *testing.T) {
	db := testDB(t)
	resolver := seedQueryFixture(t, db)
	exec := NewExecutor(db)

	plan := mustCompile(t, composition.Config{
		From:    "tasks",
		Select:  []string{"title"},
		Filters: []composition.Filter{{Field: "title", Op: composition.OpContains, Param: "q"}},
	}, resolver)

	result, err := exec.Execute(context.Background(), plan, map[string]any{"q": "SPEC"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.Count != 1 || result.Rows[0]["title"] != "Write spec" {
		t.Errorf("Rows = %+v, want the spec task", result.Rows)
	}
}

func TestExecutor_StructuredOutput(t *testing.T) {
	db := testDB(t)
	resolver := seedQueryFixture(t, db)
	exec := NewExecutor(db)

	plan := mustCompile(t, composition.Config{
		From:    "tasks",
		Select:  []string{"title", "tags", "meta"},
		Filters: []composition.Filter{{Field: "title", Op: composition.OpEq, Value: "Write spec"}},
	}, resolver)

	result, err := exec.Execute(context.Background(), plan, nil)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.Count != 1 {
		t.Fatalf("Count = %d, want 1", result.Count)
	}

	row := result.Rows[0]
	if !reflect.DeepEqual(row["tags"], []any{"a", "b"}) {
		t.Errorf("tags = %#v, want [a b]", row["tags"])
	}
	if !reflect.DeepEqual(row["meta"], map[string]any{"origin": "import"}) {
		t.Errorf("meta = %#v, want origin map", row["meta"])
	}
}

func TestExecutor_LimitApplied(t *testing.T) {
	db := testDB(t)
	resolver := seedQueryFixture(t, db)
	exec := NewExecutor(db)

	one := 1
	plan := mustCompile(t, composition.Config{
		From:   "tasks",
		Select: []string{"title"},
		Sort:   []composition.Sort{{Field: "title"}},
		Limit:  &one,
	}, resolver)

	result, err := exec.Execute(context.Background(), plan, nil)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.Count != 1 || result.Rows[0]["title"] != "Deploy release" {
		t.Errorf("Rows = %+v, want the first task alphabetically", result.Rows)
	}
}
