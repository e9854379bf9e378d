package composition

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/fieldbase/fieldbase/domain/schema"
)

// SchemaResolver resolves a collection slug to its field schema within one
// workspace. A (nil, nil) return means the collection does not exist there.
type SchemaResolver interface {
	CollectionBySlug(ctx context.Context, workspaceID, slug string) (*schema.FieldSet, error)
}

// CompileError is one structured compilation failure, attributed to the
// config clause that caused it.
type CompileError struct {
	Path    string `json:"path"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// CompileErrors accumulates independent compilation failures.
type CompileErrors []CompileError

// Error implements the error interface.
func (e CompileErrors) Error() string {
	if len(e) == 1 {
		return fmt.Sprintf("compile %s: %s", e[0].Path, e[0].Message)
	}
	parts := make([]string, len(e))
	for i, ce := range e {
		parts[i] = ce.Path + ": " + ce.Message
	}
	return fmt.Sprintf("%d compile errors: %s", len(e), strings.Join(parts, "; "))
}

// DefaultMaxLimit caps result sizes when the config asks for more, or does
// not ask at all.
const DefaultMaxLimit = 1000

// CompileOptions tunes compilation.
type CompileOptions struct {
	// MaxLimit is the server-side row cap. Zero means DefaultMaxLimit.
	MaxLimit int
}

// identRe constrains every name that ends up as a result column identifier.
// Field slugs and aggregation aliases outside this alphabet never reach the
// executor.
var identRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]{0,62}$`)

// scope tracks which tables are visible for field resolution, in order:
// the source collection first, then joins in declaration order. The first
// table owning a slug wins.
type scope struct {
	entries []scopeEntry
}

type scopeEntry struct {
	alias  string
	fields *schema.FieldSet
}

func (s *scope) add(alias string, fields *schema.FieldSet) {
	s.entries = append(s.entries, scopeEntry{alias: alias, fields: fields})
}

func (s *scope) resolve(slug string) (PlanColumn, bool) {
	for _, e := range s.entries {
		if f, ok := e.fields.Lookup(slug); ok {
			return PlanColumn{TableAlias: e.alias, FieldSlug: slug, FieldType: f.Type}, true
		}
	}
	return PlanColumn{}, false
}

type compiler struct {
	ctx         context.Context
	workspaceID string
	resolver    SchemaResolver
	errs        CompileErrors
}

func (c *compiler) errorf(path, code, format string, args ...any) {
	c.errs = append(c.errs, CompileError{Path: path, Code: code, Message: fmt.Sprintf(format, args...)})
}

// Compile resolves and validates cfg against the workspace's schema and
// produces a canonical query plan. It returns CompileErrors for config
// faults (accumulated where feasible) and a plain error for registry
// failures. Compilation holds no state between calls: the same config and
// schema snapshot always yield an identical plan.
func Compile(ctx context.Context, cfg Config, workspaceID string, resolver SchemaResolver, opts CompileOptions) (*QueryPlan, error) {
	maxLimit := opts.MaxLimit
	if maxLimit <= 0 {
		maxLimit = DefaultMaxLimit
	}

	c := &compiler{ctx: ctx, workspaceID: workspaceID, resolver: resolver}

	// Step 1: the source collection. Without it nothing else can resolve,
	// so this is the one fail-fast step.
	if strings.TrimSpace(cfg.From) == "" {
		c.errorf("from", "missing", "source collection is required")
		return nil, c.errs
	}
	source, err := resolver.CollectionBySlug(ctx, workspaceID, cfg.From)
	if err != nil {
		return nil, fmt.Errorf("resolve source collection: %w", err)
	}
	if source == nil {
		c.errorf("from", "unknown_collection", "collection %q not found in workspace", cfg.From)
		return nil, c.errs
	}

	plan := &QueryPlan{
		WorkspaceID: workspaceID,
		Source: PlanTable{
			CollectionID:   source.Collection.ID,
			CollectionSlug: source.Collection.Slug,
			Alias:          "t0",
		},
	}

	sc := &scope{}
	sc.add("t0", source)

	if err := c.compileJoins(cfg, plan, sc); err != nil {
		return nil, err
	}
	c.compileFilters(cfg, plan, sc)
	c.compileAggregations(cfg, plan, sc)
	c.compileGrouping(cfg, plan, sc)
	c.compileSort(cfg, plan)

	// Step 7: the server-side cap applies regardless of what the caller asked
	// for; an explicit non-positive limit is a config fault.
	plan.Limit = maxLimit
	if cfg.Limit != nil {
		if *cfg.Limit <= 0 {
			c.errorf("limit", "invalid", "limit must be a positive integer")
		} else if *cfg.Limit < maxLimit {
			plan.Limit = *cfg.Limit
		}
	}

	if len(c.errs) > 0 {
		return nil, c.errs
	}
	return plan, nil
}

// compileJoins resolves each joined collection and its join condition.
// The left side resolves against the source and previously joined tables,
// the right side only against the newly joined one.
func (c *compiler) compileJoins(cfg Config, plan *QueryPlan, sc *scope) error {
	for i, join := range cfg.Joins {
		path := fmt.Sprintf("joins[%d]", i)

		joinType := join.Type
		if joinType == "" {
			joinType = JoinInner
		}
		if !joinType.Valid() {
			c.errorf(path+".type", "invalid_join_type", "join type %q not supported (inner, left, right)", join.Type)
		}

		joined, err := c.resolver.CollectionBySlug(c.ctx, c.workspaceID, join.Collection)
		if err != nil {
			return fmt.Errorf("resolve joined collection: %w", err)
		}
		if joined == nil {
			c.errorf(path+".collection", "unknown_collection", "collection %q not found in workspace", join.Collection)
			continue
		}

		alias := fmt.Sprintf("t%d", i+1)
		pj := PlanJoin{
			Table: PlanTable{
				CollectionID:   joined.Collection.ID,
				CollectionSlug: joined.Collection.Slug,
				Alias:          alias,
			},
			Type: joinType,
		}

		left, ok := sc.resolve(join.On.Left)
		if !ok {
			c.errorf(path+".on.left", "unknown_field", "field %q not found in query scope", join.On.Left)
		}
		pj.Left = left

		if f, ok := joined.Lookup(join.On.Right); ok {
			pj.Right = PlanColumn{TableAlias: alias, FieldSlug: join.On.Right, FieldType: f.Type}
		} else {
			c.errorf(path+".on.right", "unknown_field", "field %q not found on collection %q", join.On.Right, join.Collection)
		}

		sc.add(alias, joined)
		plan.Joins = append(plan.Joins, pj)
	}
	return nil
}

// compileFilters resolves filter fields and operators and records named
// parameter holes. Holes stay holes: nothing is substituted at compile time.
func (c *compiler) compileFilters(cfg Config, plan *QueryPlan, sc *scope) {
	seenParams := make(map[string]bool)
	for i, filter := range cfg.Filters {
		path := fmt.Sprintf("filters[%d]", i)

		col, resolved := sc.resolve(filter.Field)
		if !resolved {
			c.errorf(path+".field", "unknown_field", "field %q not found in query scope", filter.Field)
		}

		if !filter.Op.Valid() {
			c.errorf(path+".operator", "invalid_operator", "operator %q not supported", filter.Op)
		} else if resolved && filter.Op.Ordering() && col.FieldType.Known() && !col.FieldType.Numeric() {
			c.errorf(path+".operator", "type_mismatch",
				"operator %q needs a number or date field, %q is %s", filter.Op, filter.Field, col.FieldType)
		}

		hasValue := filter.Value != nil
		hasParam := filter.Param != ""
		switch {
		case hasValue && hasParam:
			c.errorf(path, "ambiguous", "filter sets both value and param")
		case !hasValue && !hasParam:
			c.errorf(path, "missing_value", "filter needs a literal value or a param name")
		case hasParam:
			if seenParams[filter.Param] {
				c.errorf(path+".param", "duplicate_param", "param %q declared more than once", filter.Param)
			}
			seenParams[filter.Param] = true
			plan.Params = append(plan.Params, filter.Param)
		}

		plan.Predicates = append(plan.Predicates, Predicate{
			Column: col,
			Op:     filter.Op,
			Value:  filter.Value,
			Param:  filter.Param,
		})
	}
}

// compileAggregations resolves aggregate functions, their fields, and their
// output aliases.
func (c *compiler) compileAggregations(cfg Config, plan *QueryPlan, sc *scope) {
	seenAliases := make(map[string]bool)
	for i, agg := range cfg.Aggregations {
		path := fmt.Sprintf("aggregations[%d]", i)

		if !agg.Func.Valid() {
			c.errorf(path+".function", "invalid_function", "aggregation function %q not supported", agg.Func)
		}

		switch {
		case agg.Alias == "":
			c.errorf(path+".alias", "missing", "aggregation needs an output alias")
		case !identRe.MatchString(agg.Alias):
			c.errorf(path+".alias", "invalid_identifier", "alias %q is not a valid identifier", agg.Alias)
		case seenAliases[agg.Alias]:
			c.errorf(path+".alias", "duplicate_alias", "alias %q used more than once", agg.Alias)
		default:
			seenAliases[agg.Alias] = true
		}

		pa := PlanAggregate{Func: agg.Func, Alias: agg.Alias}
		if agg.Field == "" {
			// Count of rows is the only field-less aggregate.
			if agg.Func.Valid() && agg.Func != AggCount {
				c.errorf(path+".field", "missing", "%s needs a field", agg.Func)
			}
		} else {
			col, ok := sc.resolve(agg.Field)
			if !ok {
				c.errorf(path+".field", "unknown_field", "field %q not found in query scope", agg.Field)
			} else {
				if (agg.Func == AggSum || agg.Func == AggAvg) &&
					col.FieldType.Known() && col.FieldType != schema.FieldTypeNumber {
					c.errorf(path+".function", "type_mismatch",
						"%s needs a number field, %q is %s", agg.Func, agg.Field, col.FieldType)
				}
				pa.Column = &col
			}
		}
		plan.Aggregates = append(plan.Aggregates, pa)
	}
}

// compileGrouping resolves groupBy and the projection. With aggregations in
// play, the result columns are exactly the grouped fields plus the aggregate
// aliases; a select entry outside groupBy is the classic ungrouped-column
// fault. Without aggregations the projection is select, or every source
// field when select is empty.
func (c *compiler) compileGrouping(cfg Config, plan *QueryPlan, sc *scope) {
	grouped := make(map[string]bool, len(cfg.GroupBy))
	for i, slug := range cfg.GroupBy {
		path := fmt.Sprintf("groupBy[%d]", i)
		if grouped[slug] {
			c.errorf(path, "duplicate", "field %q grouped more than once", slug)
			continue
		}
		grouped[slug] = true

		col, ok := sc.resolve(slug)
		if !ok {
			c.errorf(path, "unknown_field", "field %q not found in query scope", slug)
			continue
		}
		if !identRe.MatchString(slug) {
			c.errorf(path, "invalid_identifier", "field slug %q is not a valid result identifier", slug)
			continue
		}
		plan.GroupBy = append(plan.GroupBy, col)
	}

	// Aggregate aliases may not shadow grouped columns.
	for i, agg := range cfg.Aggregations {
		if agg.Alias != "" && grouped[agg.Alias] {
			c.errorf(fmt.Sprintf("aggregations[%d].alias", i), "duplicate_alias",
				"alias %q collides with a grouped field", agg.Alias)
		}
	}

	aggregating := len(cfg.Aggregations) > 0 || len(cfg.GroupBy) > 0
	if aggregating {
		for i, slug := range cfg.Select {
			if !grouped[slug] {
				c.errorf(fmt.Sprintf("select[%d]", i), "ungrouped_column",
					"field %q is neither grouped nor aggregated", slug)
			}
		}
		return
	}

	if len(cfg.Select) == 0 {
		// Project every field of the source collection, in schema order.
		for _, e := range sc.entries[:1] {
			for _, f := range e.fields.Fields {
				if identRe.MatchString(f.Slug) {
					plan.Columns = append(plan.Columns, PlanColumn{
						TableAlias: e.alias, FieldSlug: f.Slug, FieldType: f.Type,
					})
				}
			}
		}
		return
	}

	seen := make(map[string]bool, len(cfg.Select))
	for i, slug := range cfg.Select {
		path := fmt.Sprintf("select[%d]", i)
		if seen[slug] {
			c.errorf(path, "duplicate", "field %q selected more than once", slug)
			continue
		}
		seen[slug] = true

		col, ok := sc.resolve(slug)
		if !ok {
			c.errorf(path, "unknown_field", "field %q not found in query scope", slug)
			continue
		}
		if !identRe.MatchString(slug) {
			c.errorf(path, "invalid_identifier", "field slug %q is not a valid result identifier", slug)
			continue
		}
		plan.Columns = append(plan.Columns, col)
	}
}

// compileSort checks that every sort clause names a projected column or an
// aggregation alias.
func (c *compiler) compileSort(cfg Config, plan *QueryPlan) {
	outputs := make(map[string]bool)
	for _, name := range plan.OutputNames() {
		outputs[name] = true
	}

	for i, s := range cfg.Sort {
		path := fmt.Sprintf("sort[%d]", i)

		if !outputs[s.Field] {
			c.errorf(path+".field", "unknown_sort_field",
				"sort field %q is not a selected, grouped, or aggregated column", s.Field)
			continue
		}

		var desc bool
		switch s.Direction {
		case "", "asc":
			desc = false
		case "desc":
			desc = true
		default:
			c.errorf(path+".direction", "invalid_direction", "direction %q not supported (asc, desc)", s.Direction)
			continue
		}

		plan.Sort = append(plan.Sort, PlanSort{Name: s.Field, Desc: desc})
	}
}
