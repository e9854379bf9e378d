package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/fieldbase/fieldbase/domain/composition"
	"github.com/fieldbase/fieldbase/domain/schema"
	"github.com/fieldbase/fieldbase/ports"
)

// Executor runs compiled query plans against the records table. Field access
// goes through json_extract with the JSON path bound as a parameter, so no
// user-controlled text is ever concatenated into SQL. The only identifiers
// interpolated are compiler-assigned table aliases and output names the
// compiler has already restricted to a safe alphabet.
type Executor struct {
	db *DB
}

// NewExecutor creates a plan executor on the given database.
func NewExecutor(db *DB) *Executor {
	return &Executor{db: db}
}

// Execute verifies workspace ownership, binds every parameter hole, runs the
// plan, and returns all rows or no rows at all.
func (e *Executor) Execute(ctx context.Context, plan *composition.QueryPlan, params map[string]any) (ports.ExecutionResult, error) {
	if err := e.verifyWorkspace(ctx, plan); err != nil {
		return ports.ExecutionResult{}, err
	}

	query, args, err := buildQuery(plan, params)
	if err != nil {
		return ports.ExecutionResult{}, err
	}

	rows, err := e.db.QueryContext(ctx, query, args...)
	if err != nil {
		return ports.ExecutionResult{}, fmt.Errorf("execute plan: %w", err)
	}
	defer rows.Close()

	names, err := rows.Columns()
	if err != nil {
		return ports.ExecutionResult{}, err
	}
	types := outputTypes(plan)

	result := ports.ExecutionResult{Rows: []map[string]any{}}
	for rows.Next() {
		values := make([]any, len(names))
		dest := make([]any, len(names))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return ports.ExecutionResult{}, fmt.Errorf("scan row: %w", err)
		}

		row := make(map[string]any, len(names))
		for i, name := range names {
			row[name] = convertOutput(values[i], types[name])
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		// Partial results are never surfaced.
		return ports.ExecutionResult{}, fmt.Errorf("execute plan: %w", err)
	}

	result.Count = len(result.Rows)
	return result, nil
}

// verifyWorkspace re-checks that every collection in the plan belongs to the
// executing workspace. Compilation already resolved them there, but the plan
// may have been built from a stale schema snapshot.
func (e *Executor) verifyWorkspace(ctx context.Context, plan *composition.QueryPlan) error {
	ids := make(map[string]bool)
	for _, table := range plan.Tables() {
		ids[table.CollectionID] = true
	}

	placeholders := make([]string, 0, len(ids))
	args := []any{plan.WorkspaceID}
	for id := range ids {
		placeholders = append(placeholders, "?")
		args = append(args, id)
	}

	var count int
	err := e.db.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT COUNT(*) FROM collections
		WHERE workspace_id = ? AND id IN (%s)
	`, strings.Join(placeholders, ", ")), args...).Scan(&count)
	if err != nil {
		return fmt.Errorf("verify workspace ownership: %w", err)
	}
	if count != len(ids) {
		return composition.ErrWorkspaceMismatch
	}
	return nil
}

// builder assembles the SQL text and its argument list in lockstep, so every
// placeholder lines up with its value.
type builder struct {
	sql  strings.Builder
	args []any
}

func (b *builder) write(s string) {
	b.sql.WriteString(s)
}

// fieldExpr emits a json_extract over one plan column; the JSON path travels
// as a bound parameter.
func (b *builder) fieldExpr(col composition.PlanColumn) string {
	b.args = append(b.args, jsonPath(col.FieldSlug))
	return "json_extract(" + col.TableAlias + ".data, ?)"
}

func jsonPath(slug string) string {
	return `$."` + strings.ReplaceAll(slug, `"`, ``) + `"`
}

// quoteName quotes an output identifier. The compiler only admits names
// matching its identifier alphabet, which excludes quotes.
func quoteName(name string) string {
	return `"` + name + `"`
}

func buildQuery(plan *composition.QueryPlan, params map[string]any) (string, []any, error) {
	b := &builder{}

	// SELECT
	b.write("SELECT ")
	var selects []string
	if plan.Grouped() {
		for _, col := range plan.GroupBy {
			selects = append(selects, b.fieldExpr(col)+" AS "+quoteName(col.FieldSlug))
		}
		for _, agg := range plan.Aggregates {
			selects = append(selects, aggExpr(b, agg)+" AS "+quoteName(agg.Alias))
		}
	} else {
		for _, col := range plan.Columns {
			selects = append(selects, b.fieldExpr(col)+" AS "+quoteName(col.FieldSlug))
		}
	}
	if len(selects) == 0 {
		// A collection with no fields still has record identities.
		selects = append(selects, plan.Source.Alias+".id AS \"_id\"")
	}
	b.write(strings.Join(selects, ", "))

	// FROM + JOINs
	b.write(" FROM records " + plan.Source.Alias)
	for _, join := range plan.Joins {
		b.write(" " + joinKeyword(join.Type) + " records " + join.Table.Alias)
		b.write(" ON " + join.Table.Alias + ".workspace_id = ?")
		b.args = append(b.args, plan.WorkspaceID)
		b.write(" AND " + join.Table.Alias + ".collection_id = ?")
		b.args = append(b.args, join.Table.CollectionID)
		left := b.fieldExpr(join.Left)
		right := b.fieldExpr(join.Right)
		b.write(" AND " + left + " = " + right)
	}

	// WHERE
	b.write(" WHERE " + plan.Source.Alias + ".workspace_id = ?")
	b.args = append(b.args, plan.WorkspaceID)
	b.write(" AND " + plan.Source.Alias + ".collection_id = ?")
	b.args = append(b.args, plan.Source.CollectionID)
	for _, pred := range plan.Predicates {
		clause, err := predicateClause(b, pred, params)
		if err != nil {
			return "", nil, err
		}
		b.write(" AND " + clause)
	}

	// GROUP BY
	if len(plan.GroupBy) > 0 {
		var groups []string
		for _, col := range plan.GroupBy {
			groups = append(groups, b.fieldExpr(col))
		}
		b.write(" GROUP BY " + strings.Join(groups, ", "))
	}

	// ORDER BY
	if len(plan.Sort) > 0 {
		var orders []string
		for _, s := range plan.Sort {
			dir := " ASC"
			if s.Desc {
				dir = " DESC"
			}
			orders = append(orders, quoteName(s.Name)+dir)
		}
		b.write(" ORDER BY " + strings.Join(orders, ", "))
	}

	// LIMIT
	b.write(" LIMIT ?")
	b.args = append(b.args, plan.Limit)

	return b.sql.String(), b.args, nil
}

func joinKeyword(t composition.JoinType) string {
	switch t {
	case composition.JoinLeft:
		return "LEFT JOIN"
	case composition.JoinRight:
		return "RIGHT JOIN"
	default:
		return "INNER JOIN"
	}
}

func aggExpr(b *builder, agg composition.PlanAggregate) string {
	if agg.Column == nil {
		return "COUNT(*)"
	}
	inner := b.fieldExpr(*agg.Column)
	switch agg.Func {
	case composition.AggCount:
		return "COUNT(" + inner + ")"
	case composition.AggSum:
		return "SUM(" + inner + ")"
	case composition.AggAvg:
		return "AVG(" + inner + ")"
	case composition.AggMin:
		return "MIN(" + inner + ")"
	case composition.AggMax:
		return "MAX(" + inner + ")"
	}
	return "COUNT(" + inner + ")"
}

// predicateClause renders one predicate and binds its value, resolving the
// named hole from params when the filter declared one.
func predicateClause(b *builder, pred composition.Predicate, params map[string]any) (string, error) {
	value := pred.Value
	if pred.Param != "" {
		bound, ok := params[pred.Param]
		if !ok {
			return "", &composition.ParamError{Param: pred.Param, Message: "required parameter not supplied"}
		}
		value = bound
	}

	name := pred.Param
	if name == "" {
		name = pred.Column.FieldSlug
	}

	switch pred.Op {
	case composition.OpIn:
		// A bare scalar binds as a one-element list; query strings with a
		// single occurrence of the key arrive that way.
		items, ok := asList(value)
		if !ok {
			items = []any{value}
		}
		if len(items) == 0 {
			return "1 = 0", nil
		}
		expr := b.fieldExpr(pred.Column)
		placeholders := make([]string, len(items))
		for i, item := range items {
			coerced, err := coerceValue(item, pred.Column.FieldType, name)
			if err != nil {
				return "", err
			}
			placeholders[i] = "?"
			b.args = append(b.args, coerced)
		}
		return expr + " IN (" + strings.Join(placeholders, ", ") + ")", nil

	case composition.OpContains:
		str, err := coerceString(value, name)
		if err != nil {
			return "", err
		}
		expr := b.fieldExpr(pred.Column)
		b.args = append(b.args, strings.ToLower(str))
		return "instr(lower(" + expr + "), ?) > 0", nil

	default:
		coerced, err := coerceValue(value, pred.Column.FieldType, name)
		if err != nil {
			return "", err
		}
		expr := b.fieldExpr(pred.Column)
		b.args = append(b.args, coerced)
		return expr + " " + sqlOp(pred.Op) + " ?", nil
	}
}

func sqlOp(op composition.Op) string {
	switch op {
	case composition.OpEq:
		return "="
	case composition.OpNeq:
		return "!="
	case composition.OpGt:
		return ">"
	case composition.OpGte:
		return ">="
	case composition.OpLt:
		return "<"
	case composition.OpLte:
		return "<="
	}
	return "="
}

// coerceValue converts a bound value to the field's comparison type.
// Query-string parameters arrive as strings, so numbers and booleans are
// parsed; anything unparseable is the caller's fault, not a query fault.
func coerceValue(value any, ft schema.FieldType, param string) (any, error) {
	switch ft {
	case schema.FieldTypeNumber:
		switch v := value.(type) {
		case float64, int, int64:
			return v, nil
		case json.Number:
			f, err := v.Float64()
			if err == nil {
				return f, nil
			}
		case string:
			f, err := strconv.ParseFloat(v, 64)
			if err == nil {
				return f, nil
			}
		}
		return nil, &composition.ParamError{Param: param, Message: "expected a numeric value"}

	case schema.FieldTypeBoolean:
		switch v := value.(type) {
		case bool:
			return v, nil
		case string:
			b, err := strconv.ParseBool(v)
			if err == nil {
				return b, nil
			}
		}
		return nil, &composition.ParamError{Param: param, Message: "expected a boolean value"}

	default:
		return value, nil
	}
}

func coerceString(value any, param string) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case int:
		return strconv.Itoa(v), nil
	}
	return "", &composition.ParamError{Param: param, Message: "expected a string value"}
}

func asList(value any) ([]any, bool) {
	switch v := value.(type) {
	case []any:
		return v, true
	case []string:
		items := make([]any, len(v))
		for i, s := range v {
			items[i] = s
		}
		return items, true
	}
	return nil, false
}

// outputTypes maps result column names to the static field type driving
// their presentation. Aggregate columns are absent (their SQL type stands).
func outputTypes(plan *composition.QueryPlan) map[string]schema.FieldType {
	types := make(map[string]schema.FieldType)
	for _, col := range plan.GroupBy {
		types[col.FieldSlug] = col.FieldType
	}
	for _, col := range plan.Columns {
		types[col.FieldSlug] = col.FieldType
	}
	return types
}

// convertOutput maps raw SQLite values back to their JSON-facing shapes:
// byte slices become strings, JSON booleans come back as bools, and
// structured fields are re-inflated from their JSON text.
func convertOutput(value any, ft schema.FieldType) any {
	if value == nil {
		return nil
	}
	if b, ok := value.([]byte); ok {
		value = string(b)
	}

	switch ft {
	case schema.FieldTypeBoolean:
		switch v := value.(type) {
		case int64:
			return v != 0
		case bool:
			return v
		}
	case schema.FieldTypeJSON, schema.FieldTypeMultiSelect:
		if s, ok := value.(string); ok {
			trimmed := strings.TrimSpace(s)
			if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
				var out any
				if err := json.Unmarshal([]byte(s), &out); err == nil {
					return out
				}
			}
		}
	}
	return value
}

var _ ports.QueryExecutor = (*Executor)(nil)
