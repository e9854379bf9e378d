package composition

import "github.com/fieldbase/fieldbase/domain/schema"

// PlanTable is one resolved collection reference. Alias is compiler-assigned
// ("t0" for the source, "t1".. for joins) and never user-controlled.
type PlanTable struct {
	CollectionID   string
	CollectionSlug string
	Alias          string
}

// PlanColumn is one resolved field reference: which table alias it reads
// from, the field slug, and the field's static type (used for operator
// checks and parameter coercion).
type PlanColumn struct {
	TableAlias string
	FieldSlug  string
	FieldType  schema.FieldType
}

// PlanJoin is one resolved join edge.
type PlanJoin struct {
	Table PlanTable
	Type  JoinType
	Left  PlanColumn // resolved on the source or an earlier join
	Right PlanColumn // resolved on the newly joined table
}

// Predicate is one resolved filter. When Param is non-empty the value is a
// named hole bound at execution time; Value is unused.
type Predicate struct {
	Column PlanColumn
	Op     Op
	Value  any
	Param  string
}

// PlanAggregate is one resolved aggregate output. Column is nil for a
// count-of-rows aggregate.
type PlanAggregate struct {
	Func   AggFunc
	Column *PlanColumn
	Alias  string
}

// PlanSort orders the result by a projected output name (a selected or
// grouped field slug, or an aggregation alias).
type PlanSort struct {
	Name string
	Desc bool
}

// QueryPlan is the compiler's canonical, injection-safe intermediate
// representation of a config. Every identifier in it has been resolved
// against the schema registry; every value position is a literal or a named
// hole, never query text.
type QueryPlan struct {
	WorkspaceID string
	Source      PlanTable
	Joins       []PlanJoin
	Predicates  []Predicate
	GroupBy     []PlanColumn
	Aggregates  []PlanAggregate
	Columns     []PlanColumn // plain projection; empty when aggregating
	Sort        []PlanSort
	Limit       int // always positive, capped server-side

	// Params lists required named parameters in filter declaration order.
	Params []string
}

// Grouped reports whether the plan produces aggregated output.
func (p *QueryPlan) Grouped() bool {
	return len(p.Aggregates) > 0 || len(p.GroupBy) > 0
}

// Tables returns every table referenced by the plan, source first.
func (p *QueryPlan) Tables() []PlanTable {
	tables := make([]PlanTable, 0, len(p.Joins)+1)
	tables = append(tables, p.Source)
	for _, j := range p.Joins {
		tables = append(tables, j.Table)
	}
	return tables
}

// OutputNames returns the result column names in projection order: grouped
// or selected field slugs first, then aggregation aliases.
func (p *QueryPlan) OutputNames() []string {
	var names []string
	if p.Grouped() {
		for _, col := range p.GroupBy {
			names = append(names, col.FieldSlug)
		}
		for _, agg := range p.Aggregates {
			names = append(names, agg.Alias)
		}
		return names
	}
	for _, col := range p.Columns {
		names = append(names, col.FieldSlug)
	}
	return names
}
